package replay

import (
	"iter"
	"math"

	"github.com/LdDl/mot-counter/counting"
	"github.com/LdDl/mot-counter/tracking"
	"github.com/tidwall/gjson"
)

// Detector turns recorded items into counting detections.
// Items keep their recorded "id". When tracker is set, recorded ids are ignored
// and identities come from the tracker instead.
type Detector struct {
	tracker *tracking.Tracker
	keep    func(classID int) bool
	minConf float64
}

// DetectorOption configures Detector
type DetectorOption func(*Detector)

// WithTracker assigns identities using tracker
func WithTracker(tracker *tracking.Tracker) DetectorOption {
	return func(detector *Detector) {
		detector.tracker = tracker
	}
}

// WithClassFilter drops items of classes not accepted by keep
func WithClassFilter(keep func(classID int) bool) DetectorOption {
	return func(detector *Detector) {
		detector.keep = keep
	}
}

// WithMinConfidence drops items below confidence
func WithMinConfidence(confidence float64) DetectorOption {
	return func(detector *Detector) {
		detector.minConf = confidence
	}
}

// NewDetector creates detector for recorded frames
func NewDetector(options ...DetectorOption) *Detector {
	detector := &Detector{}
	for _, option := range options {
		option(detector)
	}
	return detector
}

// Detect implements pipeline.Detector
func (detector *Detector) Detect(frame Frame) (iter.Seq[counting.Detection], error) {
	items := make([]item, 0, len(frame.Items))
	for _, raw := range frame.Items {
		it, ok := parseItem(raw)
		if !ok {
			continue
		}
		if detector.keep != nil && !detector.keep(it.classID) {
			continue
		}
		if it.confidence < detector.minConf {
			continue
		}
		items = append(items, it)
	}
	if detector.tracker == nil {
		return func(yield func(counting.Detection) bool) {
			for _, it := range items {
				detection := counting.Detection{Box: it.box.Image()}
				if it.hasID {
					detection = counting.TrackedDetection(it.id, it.box.Image())
				}
				if !yield(detection) {
					return
				}
			}
		}, nil
	}

	detections := make([]tracking.Detection, len(items))
	for i, it := range items {
		detections[i] = tracking.Detection{BBox: it.box, Confidence: it.confidence, ClassID: it.classID}
	}
	tracks, err := detector.tracker.Update(detections)
	if err != nil {
		return nil, err
	}
	return func(yield func(counting.Detection) bool) {
		for _, track := range tracks {
			if !yield(counting.TrackedDetection(track.ID(), track.BBox().Image())) {
				return
			}
		}
	}, nil
}

type item struct {
	id         int
	hasID      bool
	box        tracking.Rectangle
	confidence float64
	classID    int
}

// parseItem reads {"id": 7, "bbox": [x1, y1, x2, y2], "confidence": 0.8, "class": 0}.
// Missing confidence means certain detection.
func parseItem(raw gjson.Result) (item, bool) {
	coords := make([]float64, 0, 4)
	raw.Get("bbox").ForEach(func(_, value gjson.Result) bool {
		coords = append(coords, value.Float())
		return true
	})
	if len(coords) != 4 {
		return item{}, false
	}
	x1, y1 := math.Min(coords[0], coords[2]), math.Min(coords[1], coords[3])
	x2, y2 := math.Max(coords[0], coords[2]), math.Max(coords[1], coords[3])
	it := item{
		box:        tracking.NewRect(x1, y1, x2-x1, y2-y1),
		confidence: 1.0,
		classID:    int(raw.Get("class").Int()),
	}
	if id := raw.Get("id"); id.Exists() && id.Type != gjson.Null {
		it.id = int(id.Int())
		it.hasID = true
	}
	if confidence := raw.Get("confidence"); confidence.Exists() {
		it.confidence = confidence.Float()
	}
	return it, true
}
