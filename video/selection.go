package video

import (
	"image"
	"image/color"

	"github.com/LdDl/mot-counter/counting"
	"gocv.io/x/gocv"
)

// SelectionWindowTitle is title of line selection window
const SelectionWindowTitle = "Select Counting Line"

var (
	pointColor = color.RGBA{0, 255, 0, 0}
	draftColor = color.RGBA{255, 0, 0, 0}
	hintColor  = color.RGBA{255, 255, 255, 0}
)

// SelectionWindow lets operator pick the counting line on the first frame.
// Two points come from a drag (ROI selection): its opposite corners become the clicks.
// Keys: 's' select points, 'c' confirm, 'r' reset, 'q' quit.
type SelectionWindow struct {
	window *gocv.Window
	frame  gocv.Mat
	queue  []counting.Command
	// Drag is offered automatically once every time selection becomes empty
	offered bool
}

// NewSelectionWindow opens selection window for frame. Frame stays owned by caller.
func NewSelectionWindow(frame gocv.Mat) *SelectionWindow {
	return &SelectionWindow{
		window: gocv.NewWindow(SelectionWindowTitle),
		frame:  frame,
	}
}

// NextCommand implements counting.SelectionInput
func (sw *SelectionWindow) NextCommand(state counting.SelectionState) (counting.Command, error) {
	if len(sw.queue) > 0 {
		cmd := sw.queue[0]
		sw.queue = sw.queue[1:]
		return cmd, nil
	}
	if state.Phase() != counting.SelectionEmpty {
		sw.offered = false
	}

	display := sw.frame.Clone()
	defer display.Close()
	drawSelection(&display, state)
	sw.window.IMShow(display)

	if state.Phase() == counting.SelectionEmpty && !sw.offered {
		sw.offered = true
		first, second, ok := sw.drag(display)
		if !ok {
			return counting.Command{Kind: counting.CommandNone}, nil
		}
		sw.queue = append(sw.queue, second)
		return first, nil
	}

	switch sw.window.WaitKey(20) & 0xff {
	case 'q':
		return counting.Command{Kind: counting.CommandQuitSelection}, nil
	case 'r':
		sw.offered = false
		return counting.Command{Kind: counting.CommandResetSelection}, nil
	case 'c':
		return counting.Command{Kind: counting.CommandConfirm}, nil
	case 's':
		first, second, ok := sw.drag(display)
		if !ok {
			return counting.Command{Kind: counting.CommandNone}, nil
		}
		if state.Phase() != counting.SelectionEmpty {
			sw.queue = append(sw.queue, first, second)
			return counting.Command{Kind: counting.CommandResetSelection}, nil
		}
		sw.queue = append(sw.queue, second)
		return first, nil
	}
	return counting.Command{Kind: counting.CommandNone}, nil
}

// drag runs ROI selection. Opposite corners of the rectangle become two clicks.
func (sw *SelectionWindow) drag(display gocv.Mat) (counting.Command, counting.Command, bool) {
	rect := sw.window.SelectROI(display)
	if rect.Empty() {
		return counting.Command{}, counting.Command{}, false
	}
	return counting.Click(rect.Min.X, rect.Min.Y), counting.Click(rect.Max.X, rect.Max.Y), true
}

// Close closes selection window
func (sw *SelectionWindow) Close() error {
	return sw.window.Close()
}

func drawSelection(display *gocv.Mat, state counting.SelectionState) {
	points := state.Points()
	switch len(points) {
	case 0:
		gocv.PutText(display, "Drag to pick two points ('s'), 'q' to quit", image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, hintColor, 2)
	case 1:
		gocv.Circle(display, points[0], 5, pointColor, -1)
	default:
		gocv.Circle(display, points[0], 5, pointColor, -1)
		gocv.Circle(display, points[1], 5, pointColor, -1)
		gocv.Line(display, points[0], points[1], draftColor, 2)
		gocv.PutText(display, "Press 'c' to confirm, 'r' to reset", image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, hintColor, 2)
	}
}
