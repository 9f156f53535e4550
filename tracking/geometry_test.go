package tracking

import (
	"image"
	"math"
	"testing"
)

const (
	eps = 0.00001
)

func TestIoU(t *testing.T) {
	r1 := NewRect(0, 0, 10, 10)
	if iou := IoU(r1, r1); math.Abs(iou-1.0) > eps {
		t.Errorf("IoU of identical boxes should be 1, got %f", iou)
	}
	r2 := NewRect(5, 0, 10, 10)
	if iou := IoU(r1, r2); math.Abs(iou-50.0/150.0) > eps {
		t.Errorf("Wrong IoU: %f, expected %f", iou, 50.0/150.0)
	}
	if iou := IoU(r1, NewRect(20, 20, 5, 5)); iou != 0 {
		t.Errorf("Disjoint boxes should have zero IoU, got %f", iou)
	}
	if iou := IoU(NewRect(0, 0, 0, 0), NewRect(0, 0, 0, 0)); iou != 0 {
		t.Errorf("Degenerate boxes should have zero IoU, got %f", iou)
	}
}

func TestRectangleConversions(t *testing.T) {
	rect := NewRect(10, 20, 30, 60)
	if rect.Image() != image.Rect(10, 20, 40, 80) {
		t.Errorf("Wrong round trip: %v", rect.Image())
	}
	center := rect.Center()
	if center.X != 25 || center.Y != 50 {
		t.Errorf("Wrong center: %v", center)
	}
	if rect.Scale(2) != NewRect(20, 40, 60, 120) {
		t.Errorf("Wrong scale: %v", rect.Scale(2))
	}
}

func TestSuppressOverlaps(t *testing.T) {
	boxes := []Rectangle{
		NewRect(0, 0, 10, 10),
		NewRect(1, 1, 10, 10),
		NewRect(100, 100, 10, 10),
		NewRect(0, 0, 10, 11),
	}
	scores := []float64{0.6, 0.9, 0.5, 0.3}
	kept := SuppressOverlaps(boxes, scores, 0.45)
	if len(kept) != 2 {
		t.Fatalf("Expected 2 kept boxes, got %v", kept)
	}
	if kept[0] != 1 || kept[1] != 2 {
		t.Errorf("Expected kept indices [1 2], got %v", kept)
	}
}
