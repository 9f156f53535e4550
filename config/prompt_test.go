package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptSource(t *testing.T) {
	var out bytes.Buffer
	source, err := PromptSource(strings.NewReader("1\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, WebcamSource, source)
	assert.Contains(t, out.String(), "1: Live Webcam")

	video := filepath.Join(t.TempDir(), "entrance.mp4")
	require.NoError(t, os.WriteFile(video, []byte{0}, 0o644))
	source, err = PromptSource(strings.NewReader(" 2 \n"+video), &out)
	require.NoError(t, err)
	assert.Equal(t, video, source)
}

func TestPromptSourceErrors(t *testing.T) {
	var out bytes.Buffer
	_, err := PromptSource(strings.NewReader("3\n"), &out)
	assert.Error(t, err)

	_, err = PromptSource(strings.NewReader("2\n/definitely/missing.mp4\n"), &out)
	assert.Error(t, err)

	_, err = PromptSource(strings.NewReader(""), &out)
	assert.Error(t, err)
}
