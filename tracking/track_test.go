package tracking

import (
	"math"
	"testing"
)

func TestNewTrack(t *testing.T) {
	bbox := Rectangle{X: 10, Y: 20, Width: 30, Height: 40}
	track := newTrack(42, Detection{BBox: bbox, Confidence: 0.7, ClassID: 0}, 1.0)

	if track.ID() != 42 {
		t.Errorf("Expected id 42, got %d", track.ID())
	}
	if track.BBox() != bbox {
		t.Errorf("Expected bbox %v, got %v", bbox, track.BBox())
	}
	if track.Hits() != 1 {
		t.Errorf("Expected 1 hit, got %d", track.Hits())
	}
	if len(track.Trail()) != 1 || track.Trail()[0] != (Point{X: 25, Y: 40}) {
		t.Errorf("Unexpected trail %v", track.Trail())
	}
}

func TestTrackPredictAndUpdate(t *testing.T) {
	track := newTrack(1, Detection{BBox: Rectangle{X: 10, Y: 20, Width: 30, Height: 40}, Confidence: 0.9}, 1.0)
	track.predict()
	predicted := track.PredictedBBox()
	if math.Abs(predicted.Width-30) > 1.0 || math.Abs(predicted.Height-40) > 1.0 {
		t.Errorf("Predicted size drifted too far: %v", predicted)
	}

	track.noMatchTimes = 3
	err := track.update(Detection{BBox: Rectangle{X: 12, Y: 22, Width: 30, Height: 40}, Confidence: 0.6, ClassID: 2})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if track.NoMatchTimes() != 0 {
		t.Errorf("NoMatchTimes should be 0 after update, got %d", track.NoMatchTimes())
	}
	if track.Confidence() != 0.6 || track.ClassID() != 2 {
		t.Errorf("Detection attributes not updated: %f %d", track.Confidence(), track.ClassID())
	}
	center := track.BBox().Center()
	if center.X < 24 || center.X > 29 {
		t.Errorf("Smoothed center should stay near measured one, got %f", center.X)
	}
}

func TestTrackTrailBound(t *testing.T) {
	track := newTrack(1, Detection{BBox: Rectangle{X: 0, Y: 0, Width: 10, Height: 10}, Confidence: 0.9}, 1.0)
	track.maxTrailLen = 3
	for i := 1; i <= 5; i++ {
		track.predict()
		if err := track.update(Detection{BBox: Rectangle{X: float64(i), Y: 0, Width: 10, Height: 10}, Confidence: 0.9}); err != nil {
			t.Fatal(err)
		}
	}
	if len(track.Trail()) != 3 {
		t.Errorf("Expected trail length 3, got %d", len(track.Trail()))
	}
}
