package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// WebcamSource is device index of the default camera
const WebcamSource = "0"

// PromptSource asks operator to choose between webcam and video file
func PromptSource(in io.Reader, out io.Writer) (string, error) {
	reader := bufio.NewReader(in)
	fmt.Fprintln(out, "Select video source:")
	fmt.Fprintln(out, "  1: Live Webcam")
	fmt.Fprintln(out, "  2: Video File")
	fmt.Fprint(out, "Enter choice (1 or 2): ")
	choice, err := readAnswer(reader)
	if err != nil {
		return "", err
	}
	switch choice {
	case "1":
		return WebcamSource, nil
	case "2":
		fmt.Fprint(out, "Enter the full path to your video file: ")
		path, err := readAnswer(reader)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err != nil {
			return "", errors.Wrapf(err, "file not found at '%s'", path)
		}
		return path, nil
	default:
		return "", fmt.Errorf("invalid choice %q", choice)
	}
}

func readAnswer(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errors.Wrap(err, "can't read answer")
	}
	return strings.TrimSpace(line), nil
}
