package replay

import (
	"io"

	"github.com/LdDl/mot-counter/counting"
	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
)

// Renderer writes one JSON line with counters per processed frame.
// It does not look into frame content, so it can follow any source.
type Renderer[F any] struct {
	w      io.Writer
	frames int
	// Recent summaries are printed at most this many, as on screen
	maxRecent int
}

// NewRenderer creates renderer writing to w
func NewRenderer[F any](w io.Writer) *Renderer[F] {
	return &Renderer[F]{
		w:         w,
		maxRecent: 8,
	}
}

// Render implements pipeline.Renderer
func (renderer *Renderer[F]) Render(_ F, detections []counting.Detection, snapshot counting.Snapshot, fps float64) error {
	line, err := encodeSnapshot(renderer.frames, detections, snapshot, fps, renderer.maxRecent)
	if err != nil {
		return err
	}
	renderer.frames++
	if _, err := io.WriteString(renderer.w, line+"\n"); err != nil {
		return errors.Wrap(err, "can't write snapshot")
	}
	return nil
}

func encodeSnapshot(frame int, detections []counting.Detection, snapshot counting.Snapshot, fps float64, maxRecent int) (string, error) {
	doc := "{}"
	values := []struct {
		path  string
		value any
	}{
		{"frame", frame},
		{"in", snapshot.In},
		{"out", snapshot.Out},
		{"fps", fps},
		{"tracks", snapshot.Tracks},
		{"line.x", snapshot.Line.X},
		{"line.y_min", snapshot.Line.YMin},
		{"line.y_max", snapshot.Line.YMax},
	}
	var err error
	for _, v := range values {
		if doc, err = sjson.Set(doc, v.path, v.value); err != nil {
			return "", errors.Wrapf(err, "can't encode %s", v.path)
		}
	}
	recent := snapshot.Recent
	if recent == nil {
		recent = []string{}
	}
	if len(recent) > maxRecent {
		recent = recent[:maxRecent]
	}
	if doc, err = sjson.Set(doc, "recent", recent); err != nil {
		return "", errors.Wrap(err, "can't encode recent events")
	}
	if doc, err = sjson.SetRaw(doc, "detections", "[]"); err != nil {
		return "", errors.Wrap(err, "can't encode detections")
	}
	for _, detection := range detections {
		if !detection.HasTrackID {
			continue
		}
		box := detection.Box
		item := `{}`
		item, _ = sjson.Set(item, "id", detection.TrackID)
		item, _ = sjson.Set(item, "bbox", []int{box.Min.X, box.Min.Y, box.Max.X, box.Max.Y})
		if doc, err = sjson.SetRaw(doc, "detections.-1", item); err != nil {
			return "", errors.Wrap(err, "can't encode detection")
		}
	}
	return doc, nil
}
