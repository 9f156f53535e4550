package video

import (
	"fmt"
	"image"
	"image/color"

	"github.com/LdDl/mot-counter/counting"
	"gocv.io/x/gocv"
)

const (
	// CounterWindowTitle is title of the main window
	CounterWindowTitle = "People IN/OUT Counter (q=quit, r=reset)"
	panelWidth         = 320
	maxRenderedEvents  = 8
)

var (
	lineColor   = color.RGBA{255, 0, 255, 0}
	boxColor    = color.RGBA{0, 200, 0, 0}
	labelColor  = color.RGBA{255, 255, 255, 0}
	panelColor  = color.RGBA{30, 30, 30, 0}
	inColor     = color.RGBA{0, 255, 0, 0}
	outColor    = color.RGBA{255, 120, 0, 0}
	fpsColor    = color.RGBA{200, 200, 200, 0}
	eventsColor = color.RGBA{220, 220, 220, 0}
)

// Window shows annotated frames and turns key presses into session commands
type Window struct {
	window *gocv.Window
}

// NewWindow opens main counter window
func NewWindow() *Window {
	return &Window{
		window: gocv.NewWindow(CounterWindowTitle),
	}
}

// Render implements pipeline.Renderer. Frame is annotated in place.
func (w *Window) Render(frame gocv.Mat, detections []counting.Detection, snapshot counting.Snapshot, fps float64) error {
	DrawOverlay(&frame, detections, snapshot, fps)
	w.window.IMShow(frame)
	return nil
}

// Poll implements pipeline.Controls
func (w *Window) Poll() counting.Command {
	return sessionCommand(w.window.WaitKey(1))
}

// Close closes window
func (w *Window) Close() error {
	return w.window.Close()
}

// DrawOverlay draws boxes, counting line and right-side panel with counters, FPS and recent events
func DrawOverlay(frame *gocv.Mat, detections []counting.Detection, snapshot counting.Snapshot, fps float64) {
	for _, detection := range detections {
		if !detection.HasTrackID {
			continue
		}
		box := detection.Box
		gocv.Rectangle(frame, box, boxColor, 2)
		gocv.PutText(frame, fmt.Sprintf("ID:%d", detection.TrackID), image.Pt(box.Min.X, box.Min.Y-10), gocv.FontHersheySimplex, 0.5, labelColor, 1)
	}
	gocv.Line(frame, snapshot.Line.Start(), snapshot.Line.End(), lineColor, 3)

	width, height := frame.Cols(), frame.Rows()
	left := width - panelWidth
	gocv.Rectangle(frame, image.Rect(left, 0, width, height), panelColor, -1)
	gocv.PutText(frame, fmt.Sprintf("IN: %d", snapshot.In), image.Pt(left+20, 50), gocv.FontHersheySimplex, 1.2, inColor, 3)
	gocv.PutText(frame, fmt.Sprintf("OUT: %d", snapshot.Out), image.Pt(left+20, 110), gocv.FontHersheySimplex, 1.2, outColor, 3)
	gocv.PutText(frame, fmt.Sprintf("FPS: %.1f", fps), image.Pt(left+20, 160), gocv.FontHersheySimplex, 0.8, fpsColor, 2)
	for i, summary := range snapshot.Recent {
		if i >= maxRenderedEvents {
			break
		}
		gocv.PutText(frame, summary, image.Pt(left+10, 210+i*25), gocv.FontHersheySimplex, 0.45, eventsColor, 1)
	}
}

// sessionCommand maps key code returned by WaitKey
func sessionCommand(key int) counting.Command {
	switch key & 0xff {
	case 'q':
		return counting.Command{Kind: counting.CommandQuitSession}
	case 'r':
		return counting.Command{Kind: counting.CommandResetSession}
	default:
		return counting.Command{Kind: counting.CommandNone}
	}
}
