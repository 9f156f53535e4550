package pipeline

import (
	"fmt"
	"iter"

	"github.com/LdDl/mot-counter/counting"
	"github.com/pkg/errors"
)

var (
	// ErrFirstFrame is returned when source can't provide the frame used for line selection
	ErrFirstFrame = errors.New("can't read first frame")
	// ErrLoopPanic wraps unexpected failure recovered at the loop boundary
	ErrLoopPanic = errors.New("processing loop failed")
)

// Source is pull-based frame provider. ok=false means end of stream.
type Source[F any] interface {
	Read() (frame F, ok bool, err error)
}

// FrameReleaser is implemented by sources whose frames own native memory
type FrameReleaser[F any] interface {
	Release(frame F)
}

// Detector produces tracked detections for a frame
type Detector[F any] interface {
	Detect(frame F) (iter.Seq[counting.Detection], error)
}

// Renderer displays frame together with session state. It must not mutate the session.
type Renderer[F any] interface {
	Render(frame F, detections []counting.Detection, snapshot counting.Snapshot, fps float64) error
}

// Controls is polled once per frame for session commands (quit, reset)
type Controls interface {
	Poll() counting.Command
}

// FrameObserver receives per-frame loop state
type FrameObserver interface {
	ObserveFrame(snapshot counting.Snapshot, fps float64)
}

// FirstFrame reads the frame shown during line selection
func FirstFrame[F any](source Source[F]) (F, error) {
	frame, ok, err := source.Read()
	if err != nil {
		var zero F
		return zero, fmt.Errorf("%w: %w", ErrFirstFrame, err)
	}
	if !ok {
		var zero F
		return zero, ErrFirstFrame
	}
	return frame, nil
}

// Rewinder is implemented by sources that can restart from the first frame
type Rewinder interface {
	Rewind() error
}
