package counting

import (
	"fmt"
	"image"
	"math"
)

// Line is a vertical counting boundary at horizontal coordinate X.
// YMin and YMax are used for display only: crossing is decided on X alone.
type Line struct {
	X    int
	YMin int
	YMax int
}

// NewLineFromPoints builds the line the way a confirmed selection does:
// X is the rounded mean of both horizontal coordinates, the vertical range spans both points.
func NewLineFromPoints(p1, p2 image.Point) Line {
	return Line{
		X:    int(math.Round(float64(p1.X+p2.X) / 2.0)),
		YMin: minInt(p1.Y, p2.Y),
		YMax: maxInt(p1.Y, p2.Y),
	}
}

// Start returns upper end of the line
func (l Line) Start() image.Point {
	return image.Pt(l.X, l.YMin)
}

// End returns lower end of the line
func (l Line) End() image.Point {
	return image.Pt(l.X, l.YMax)
}

func (l Line) String() string {
	return fmt.Sprintf("X=%d (from Y=%d to Y=%d)", l.X, l.YMin, l.YMax)
}

// Centroid returns horizontal center of bounding box.
func Centroid(box image.Rectangle) int {
	return (box.Min.X + box.Max.X) / 2
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
