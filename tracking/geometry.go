package tracking

import (
	"image"
	"math"
	"sort"
)

// Rectangle is bounding box in float pixel coordinates
type Rectangle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// NewRect creates rectangle from top-left corner and size
func NewRect(x, y, width, height float64) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

// Image rounds rectangle to integer pixel grid
func (r Rectangle) Image() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.Width)),
		int(math.Round(r.Y+r.Height)),
	)
}

// Center returns center point of rectangle
func (r Rectangle) Center() Point {
	return Point{
		X: r.X + r.Width/2.0,
		Y: r.Y + r.Height/2.0,
	}
}

// Scale multiplies coordinates and size by factor
func (r Rectangle) Scale(factor float64) Rectangle {
	return Rectangle{
		X:      r.X * factor,
		Y:      r.Y * factor,
		Width:  r.Width * factor,
		Height: r.Height * factor,
	}
}

// Point in float pixel coordinates
type Point struct {
	X float64
	Y float64
}

// IoU calculates Intersection over Union between two rectangles.
func IoU(r1, r2 Rectangle) float64 {
	xA := math.Max(r1.X, r2.X)
	yA := math.Max(r1.Y, r2.Y)
	xB := math.Min(r1.X+r1.Width, r2.X+r2.Width)
	yB := math.Min(r1.Y+r1.Height, r2.Y+r2.Height)

	interArea := math.Max(0, xB-xA) * math.Max(0, yB-yA)
	if interArea == 0 {
		return 0.0
	}
	unionArea := r1.Width*r1.Height + r2.Width*r2.Height - interArea
	if unionArea <= 0 {
		return 0.0
	}
	return interArea / unionArea
}

// SuppressOverlaps performs greedy non-maximum suppression.
// Returns indices of kept boxes ordered by descending score.
func SuppressOverlaps(boxes []Rectangle, scores []float64, iouThreshold float64) []int {
	order := make([]int, len(boxes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	kept := make([]int, 0, len(order))
	suppressed := make([]bool, len(boxes))
	for _, idx := range order {
		if suppressed[idx] {
			continue
		}
		kept = append(kept, idx)
		for _, other := range order {
			if other != idx && !suppressed[other] && IoU(boxes[idx], boxes[other]) > iouThreshold {
				suppressed[other] = true
			}
		}
	}
	return kept
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
