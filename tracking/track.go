package tracking

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// Detection is a single raw detector output for one frame
type Detection struct {
	BBox       Rectangle
	Confidence float64
	ClassID    int
}

// Track is an object followed across frames.
// Box dynamics are smoothed by 8-D Kalman filter: [cx, cy, w, h, vx, vy, vw, vh].
type Track struct {
	id            int
	currentBBox   Rectangle
	predictedBBox Rectangle
	confidence    float64
	classID       int
	trail         []Point
	maxTrailLen   int
	hits          int
	noMatchTimes  int
	kf            *kalman_filter.KalmanBBox
}

func newTrack(id int, detection Detection, dt float64) *Track {
	bbox := detection.BBox
	center := bbox.Center()

	// Kalman filter props
	uCx := 1.0
	uCy := 1.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	kf := kalman_filter.NewKalmanBBox(
		dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(center.X, center.Y, bbox.Width, bbox.Height),
	)
	track := &Track{
		id:            id,
		currentBBox:   bbox,
		predictedBBox: bbox,
		confidence:    detection.Confidence,
		classID:       detection.ClassID,
		trail:         make([]Point, 0, defaultTrailLen),
		maxTrailLen:   defaultTrailLen,
		hits:          1,
		kf:            kf,
	}
	track.trail = append(track.trail, center)
	return track
}

const defaultTrailLen = 150

// ID returns integer track identity. Identities are never reused within tracker lifetime.
func (track *Track) ID() int {
	return track.id
}

// BBox returns current (smoothed) bounding box
func (track *Track) BBox() Rectangle {
	return track.currentBBox
}

// PredictedBBox returns bounding box predicted for the next frame
func (track *Track) PredictedBBox() Rectangle {
	return track.predictedBBox
}

// Confidence returns confidence of last matched detection
func (track *Track) Confidence() float64 {
	return track.confidence
}

// ClassID returns class of last matched detection
func (track *Track) ClassID() int {
	return track.classID
}

// Trail returns centers history. Be careful: this is not copy of trail, but reference to it
func (track *Track) Trail() []Point {
	return track.trail
}

// Hits returns number of frames track was matched in
func (track *Track) Hits() int {
	return track.hits
}

// NoMatchTimes returns number of consecutive frames track was not matched in
func (track *Track) NoMatchTimes() int {
	return track.noMatchTimes
}

// Velocity returns current velocity estimates (vx, vy, vw, vh) from Kalman filter
func (track *Track) Velocity() (float64, float64, float64, float64) {
	return track.kf.GetVelocity()
}

func (track *Track) predict() {
	track.kf.Predict()
	cx, cy, w, h := track.kf.GetState()
	track.predictedBBox = Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}
}

func (track *Track) update(detection Detection) error {
	measured := detection.BBox.Center()
	err := track.kf.Update(measured.X, measured.Y, detection.BBox.Width, detection.BBox.Height)
	if err != nil {
		return errors.Wrapf(err, "can't update Kalman filter of track %d", track.id)
	}
	cx, cy, w, h := track.kf.GetState()
	track.currentBBox = Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}
	track.confidence = detection.Confidence
	track.classID = detection.ClassID
	track.hits++
	track.noMatchTimes = 0
	track.trail = append(track.trail, Point{X: cx, Y: cy})
	if len(track.trail) > track.maxTrailLen {
		track.trail = track.trail[1:]
	}
	return nil
}
