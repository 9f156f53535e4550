package replay

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const maxLineSize = 10 << 20

// Frame is single JSON line of recorded detections:
//
//	{"frame": 12, "width": 1280, "height": 720, "items": [{"id": 7, "bbox": [x1, y1, x2, y2], "confidence": 0.8, "class": 0}]}
//
// Items without "id" are untracked detections.
type Frame struct {
	Index  int
	Width  int
	Height int
	Items  []gjson.Result
}

// Source reads frames from JSON-lines file
type Source struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int
	frames  int
}

// OpenSource opens JSON-lines detections file
func OpenSource(path string) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't open replay file")
	}
	source := &Source{file: file}
	source.resetScanner()
	return source, nil
}

func (source *Source) resetScanner() {
	source.scanner = bufio.NewScanner(source.file)
	source.scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	source.line = 0
	source.frames = 0
}

// Read returns next frame. Blank lines are skipped.
func (source *Source) Read() (Frame, bool, error) {
	for source.scanner.Scan() {
		source.line++
		data := source.scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		if !gjson.ValidBytes(data) {
			return Frame{}, false, fmt.Errorf("invalid JSON on line %d", source.line)
		}
		frame := parseFrame(gjson.ParseBytes(data), source.frames)
		source.frames++
		return frame, true, nil
	}
	if err := source.scanner.Err(); err != nil {
		return Frame{}, false, errors.Wrapf(err, "can't read replay line %d", source.line+1)
	}
	return Frame{}, false, nil
}

// Rewind restarts reading from the first frame
func (source *Source) Rewind() error {
	if _, err := source.file.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "can't rewind replay file")
	}
	source.resetScanner()
	return nil
}

// Close closes underlying file
func (source *Source) Close() error {
	return source.file.Close()
}

func parseFrame(doc gjson.Result, fallbackIndex int) Frame {
	frame := Frame{
		Index:  fallbackIndex,
		Width:  int(doc.Get("width").Int()),
		Height: int(doc.Get("height").Int()),
		Items:  doc.Get("items").Array(),
	}
	if index := doc.Get("frame"); index.Exists() {
		frame.Index = int(index.Int())
	}
	return frame
}
