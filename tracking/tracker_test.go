package tracking

import (
	"testing"
)

func detectionsFrom(rects []Rectangle, confidence float64) []Detection {
	detections := make([]Detection, len(rects))
	for i, rect := range rects {
		detections[i] = Detection{BBox: rect, Confidence: confidence}
	}
	return detections
}

func TestTrackerKeepsIdentities(t *testing.T) {
	for _, algorithm := range []MatchingAlgorithm{MatchingAlgorithmHungarian, MatchingAlgorithmGreedy} {
		t.Run(algorithm.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Algorithm = algorithm
			tracker := NewTracker(cfg, nil)

			frame1 := detectionsFrom([]Rectangle{
				{X: 10, Y: 20, Width: 30, Height: 40},
				{X: 100, Y: 200, Width: 30, Height: 40},
			}, 0.9)
			tracks, err := tracker.Update(frame1)
			if err != nil {
				t.Fatalf("Frame 1 failed: %v", err)
			}
			if len(tracks) != 2 {
				t.Fatalf("Expected 2 tracks after frame 1, got %d", len(tracks))
			}
			if tracks[0].ID() != 1 || tracks[1].ID() != 2 {
				t.Errorf("Expected ids 1 and 2, got %d and %d", tracks[0].ID(), tracks[1].ID())
			}

			// Second frame - slightly moved detections, listed in reverse order
			frame2 := detectionsFrom([]Rectangle{
				{X: 102, Y: 202, Width: 30, Height: 40},
				{X: 12, Y: 22, Width: 30, Height: 40},
			}, 0.9)
			tracks, err = tracker.Update(frame2)
			if err != nil {
				t.Fatalf("Frame 2 failed: %v", err)
			}
			if len(tracks) != 2 {
				t.Fatalf("Expected 2 tracks after frame 2, got %d", len(tracks))
			}
			if len(tracker.Tracks()) != 2 {
				t.Errorf("Expected 2 alive tracks, got %d", len(tracker.Tracks()))
			}
			for _, track := range tracks {
				if len(track.Trail()) != 2 {
					t.Errorf("Track %d should have 2 trail points, got %d", track.ID(), len(track.Trail()))
				}
				if track.Hits() != 2 {
					t.Errorf("Track %d should have 2 hits, got %d", track.ID(), track.Hits())
				}
			}
			if tracks[0].BBox().X > 50 {
				t.Errorf("Track 1 should follow the left object, got bbox %v", tracks[0].BBox())
			}
		})
	}
}

func TestTrackerLowConfidenceRecovery(t *testing.T) {
	tracker := DefaultTracker()
	_, err := tracker.Update(detectionsFrom([]Rectangle{{X: 10, Y: 20, Width: 30, Height: 40}}, 0.9))
	if err != nil {
		t.Fatal(err)
	}

	// Low confidence detection keeps existing track alive but never starts a new one
	tracks, err := tracker.Update([]Detection{
		{BBox: Rectangle{X: 11, Y: 21, Width: 30, Height: 40}, Confidence: 0.4},
		{BBox: Rectangle{X: 400, Y: 400, Width: 30, Height: 40}, Confidence: 0.4},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0].ID() != 1 {
		t.Fatalf("Expected track 1 to be recovered, got %d tracks", len(tracks))
	}
	if tracks[0].Confidence() != 0.4 {
		t.Errorf("Expected confidence 0.4, got %f", tracks[0].Confidence())
	}
	if len(tracker.Tracks()) != 1 {
		t.Errorf("Low confidence detection must not start a track, got %d tracks", len(tracker.Tracks()))
	}

	// Below low threshold is ignored completely
	tracks, err = tracker.Update([]Detection{{BBox: Rectangle{X: 12, Y: 22, Width: 30, Height: 40}, Confidence: 0.1}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 0 {
		t.Errorf("Expected no matched tracks, got %d", len(tracks))
	}
	if tracker.Tracks()[0].NoMatchTimes() != 1 {
		t.Errorf("Expected NoMatchTimes 1, got %d", tracker.Tracks()[0].NoMatchTimes())
	}
}

func TestTrackerRemovesDisappeared(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDisappeared = 5
	tracker := NewTracker(cfg, nil)
	_, err := tracker.Update(detectionsFrom([]Rectangle{{X: 10, Y: 20, Width: 30, Height: 40}}, 0.9))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if _, err := tracker.Update(nil); err != nil {
			t.Fatal(err)
		}
	}
	if len(tracker.Tracks()) != 1 {
		t.Fatalf("Track should survive 4 empty frames, got %d tracks", len(tracker.Tracks()))
	}
	if _, err := tracker.Update(nil); err != nil {
		t.Fatal(err)
	}
	if len(tracker.Tracks()) != 0 {
		t.Fatalf("Track should be removed after 5 empty frames, got %d tracks", len(tracker.Tracks()))
	}

	// Identities are never reused
	tracks, err := tracker.Update(detectionsFrom([]Rectangle{{X: 10, Y: 20, Width: 30, Height: 40}}, 0.9))
	if err != nil {
		t.Fatal(err)
	}
	if tracks[0].ID() != 2 {
		t.Errorf("Expected new id 2, got %d", tracks[0].ID())
	}
}

func TestTrackerReset(t *testing.T) {
	tracker := DefaultTracker()
	if _, err := tracker.Update(detectionsFrom([]Rectangle{{X: 0, Y: 0, Width: 10, Height: 10}}, 0.9)); err != nil {
		t.Fatal(err)
	}
	tracker.Reset()
	if len(tracker.Tracks()) != 0 {
		t.Errorf("Expected no tracks after reset, got %d", len(tracker.Tracks()))
	}
	tracks, err := tracker.Update(detectionsFrom([]Rectangle{{X: 0, Y: 0, Width: 10, Height: 10}}, 0.9))
	if err != nil {
		t.Fatal(err)
	}
	if tracks[0].ID() != 2 {
		t.Errorf("Expected id 2 after reset, got %d", tracks[0].ID())
	}
}

func TestTrackerWalkingPerson(t *testing.T) {
	tracker := DefaultTracker()
	var id int
	for step := 0; step < 30; step++ {
		rect := Rectangle{X: float64(50 + step*5), Y: 100, Width: 40, Height: 120}
		tracks, err := tracker.Update(detectionsFrom([]Rectangle{rect}, 0.8))
		if err != nil {
			t.Fatalf("Step %d failed: %v", step, err)
		}
		if len(tracks) != 1 {
			t.Fatalf("Step %d: expected 1 track, got %d", step, len(tracks))
		}
		if step == 0 {
			id = tracks[0].ID()
		} else if tracks[0].ID() != id {
			t.Fatalf("Step %d: identity switched from %d to %d", step, id, tracks[0].ID())
		}
	}
	vx, _, _, _ := tracker.Tracks()[0].Velocity()
	t.Logf("Estimated horizontal velocity: %f", vx)
}

func TestParseMatchingAlgorithm(t *testing.T) {
	cases := map[string]MatchingAlgorithm{
		"":          MatchingAlgorithmHungarian,
		"hungarian": MatchingAlgorithmHungarian,
		"Greedy":    MatchingAlgorithmGreedy,
	}
	for input, expected := range cases {
		got, err := ParseMatchingAlgorithm(input)
		if err != nil {
			t.Errorf("Unexpected error for %q: %v", input, err)
		}
		if got != expected {
			t.Errorf("Wrong algorithm for %q: %v, expected %v", input, got, expected)
		}
	}
	if _, err := ParseMatchingAlgorithm("auction"); err == nil {
		t.Error("Expected error for unknown algorithm")
	}
}
