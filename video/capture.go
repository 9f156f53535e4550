package video

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Capture reads frames from camera or video file
type Capture struct {
	capture *gocv.VideoCapture
	source  string
	isFile  bool
}

// OpenCapture opens camera by index ("0") or video file by path
func OpenCapture(source string) (*Capture, error) {
	var device interface{} = source
	isFile := true
	if index, err := strconv.Atoi(source); err == nil {
		device = index
		isFile = false
	} else if _, err := os.Stat(source); err != nil {
		return nil, errors.Wrapf(err, "file not found at '%s'", source)
	}
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open video source '%s'", source)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("could not open video source '%s'", source)
	}
	return &Capture{
		capture: capture,
		source:  source,
		isFile:  isFile,
	}, nil
}

// Read implements pipeline.Source. Every frame is a new Mat owned by caller until Release.
func (c *Capture) Read() (gocv.Mat, bool, error) {
	frame := gocv.NewMat()
	if ok := c.capture.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.Mat{}, false, nil
	}
	return frame, true, nil
}

// Release implements pipeline.FrameReleaser
func (c *Capture) Release(frame gocv.Mat) {
	frame.Close()
}

// Rewind seeks video file back to the first frame. Cameras can't rewind, so it is no-op for them.
func (c *Capture) Rewind() error {
	if !c.isFile {
		return nil
	}
	c.capture.Set(gocv.VideoCapturePosFrames, 0)
	return nil
}

// Source returns camera index or file path
func (c *Capture) Source() string {
	return c.source
}

// Close releases capture device
func (c *Capture) Close() error {
	return c.capture.Close()
}
