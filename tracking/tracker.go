package tracking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arthurkushman/go-hungarian"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MatchingAlgorithm is for algorithm type for matching detections to tracks
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	MatchingAlgorithmHungarian MatchingAlgorithm = iota
	// MatchingAlgorithmGreedy uses a greedy algorithm for faster but potentially suboptimal assignment
	MatchingAlgorithmGreedy
)

func (algorithm MatchingAlgorithm) String() string {
	switch algorithm {
	case MatchingAlgorithmHungarian:
		return "hungarian"
	case MatchingAlgorithmGreedy:
		return "greedy"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(algorithm))
	}
}

// ParseMatchingAlgorithm parses "hungarian" or "greedy"
func ParseMatchingAlgorithm(s string) (MatchingAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hungarian", "":
		return MatchingAlgorithmHungarian, nil
	case "greedy":
		return MatchingAlgorithmGreedy, nil
	default:
		return 0, fmt.Errorf("unknown matching algorithm: %q", s)
	}
}

// Config holds tracker parameters
type Config struct {
	// Maximum number of frames an object can be missing before it is removed
	MaxDisappeared int
	// Minimum IoU between predicted track box and detection to be considered the same object
	MinIoU float64
	// High detection confidence threshold: only such detections may start new tracks
	HighThresh float64
	// Low detection confidence threshold: weaker detections are dropped
	LowThresh float64
	// Algorithm to use for matching
	Algorithm MatchingAlgorithm
	// Time step of Kalman filter
	DT float64
}

// DefaultConfig returns default tracker parameters
func DefaultConfig() Config {
	return Config{
		MaxDisappeared: 5,
		MinIoU:         0.3,
		HighThresh:     0.5,
		LowThresh:      0.3,
		Algorithm:      MatchingAlgorithmHungarian,
		DT:             1.0,
	}
}

// Tracker is ByteTrack-style multi-object tracker assigning integer identities.
// It associates high confidence detections first, then recovers unmatched tracks with low confidence ones.
type Tracker struct {
	cfg    Config
	tracks map[int]*Track
	nextID int
	logger logrus.FieldLogger
}

// NewTracker creates a new instance of Tracker with specified parameters.
func NewTracker(cfg Config, logger logrus.FieldLogger) *Tracker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.DT <= 0 {
		cfg.DT = 1.0
	}
	return &Tracker{
		cfg:    cfg,
		tracks: make(map[int]*Track),
		nextID: 1,
		logger: logger,
	}
}

// DefaultTracker creates a Tracker with default parameters.
func DefaultTracker() *Tracker {
	return NewTracker(DefaultConfig(), nil)
}

// trackBox is a helper struct to pair track ID with its bounding box.
type trackBox struct {
	ID   int
	BBox Rectangle
}

// Update matches detections of the current frame with existing tracks.
// Returns tracks matched or created in this frame ordered by ID.
func (tracker *Tracker) Update(detections []Detection) ([]*Track, error) {
	// Predict next positions for all existing tracks via Kalman filter
	for _, track := range tracker.tracks {
		track.predict()
	}

	activeTrackBoxes := make([]trackBox, 0, len(tracker.tracks))
	for _, id := range tracker.sortedIDs() {
		track := tracker.tracks[id]
		if track.noMatchTimes < tracker.cfg.MaxDisappeared {
			activeTrackBoxes = append(activeTrackBoxes, trackBox{ID: id, BBox: track.predictedBBox})
		}
	}

	matchedTracks := make(map[int]struct{})
	matchedDetections := make(map[int]struct{})

	// 1. First stage: high confidence detections
	highDetectionIndices := make([]int, 0, len(detections))
	for i, detection := range detections {
		if detection.Confidence >= tracker.cfg.HighThresh {
			highDetectionIndices = append(highDetectionIndices, i)
		}
	}
	if err := tracker.associate(activeTrackBoxes, highDetectionIndices, detections, matchedTracks, matchedDetections); err != nil {
		return nil, errors.Wrap(err, "error processing matches in stage 1")
	}

	// 2. Second stage: low confidence detections with remaining tracks
	unmatchedTrackBoxes := make([]trackBox, 0, len(activeTrackBoxes))
	for _, box := range activeTrackBoxes {
		if _, found := matchedTracks[box.ID]; !found {
			unmatchedTrackBoxes = append(unmatchedTrackBoxes, box)
		}
	}
	lowDetectionIndices := make([]int, 0)
	for i, detection := range detections {
		if _, found := matchedDetections[i]; found {
			continue
		}
		if detection.Confidence < tracker.cfg.HighThresh && detection.Confidence >= tracker.cfg.LowThresh {
			lowDetectionIndices = append(lowDetectionIndices, i)
		}
	}
	if err := tracker.associate(unmatchedTrackBoxes, lowDetectionIndices, detections, matchedTracks, matchedDetections); err != nil {
		return nil, errors.Wrap(err, "error processing matches in stage 2")
	}

	// 3. New tracks for unmatched high confidence detections
	for _, detIdx := range highDetectionIndices {
		if _, found := matchedDetections[detIdx]; found {
			continue
		}
		track := newTrack(tracker.nextID, detections[detIdx], tracker.cfg.DT)
		tracker.tracks[track.id] = track
		matchedTracks[track.id] = struct{}{}
		tracker.nextID++
	}

	// 4. Age unmatched tracks and remove those which disappeared for too long
	for id, track := range tracker.tracks {
		if _, found := matchedTracks[id]; found {
			continue
		}
		track.noMatchTimes++
		if track.noMatchTimes >= tracker.cfg.MaxDisappeared {
			delete(tracker.tracks, id)
		}
	}

	matched := make([]*Track, 0, len(matchedTracks))
	for _, id := range tracker.sortedIDs() {
		if _, found := matchedTracks[id]; found {
			matched = append(matched, tracker.tracks[id])
		}
	}
	return matched, nil
}

// Tracks returns all alive tracks ordered by ID, including temporarily lost ones
func (tracker *Tracker) Tracks() []*Track {
	ids := tracker.sortedIDs()
	tracks := make([]*Track, len(ids))
	for i, id := range ids {
		tracks[i] = tracker.tracks[id]
	}
	return tracks
}

// Reset forgets every track. Identities keep growing so old ids are never reused.
func (tracker *Tracker) Reset() {
	clear(tracker.tracks)
}

func (tracker *Tracker) sortedIDs() []int {
	ids := make([]int, 0, len(tracker.tracks))
	for id := range tracker.tracks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// associate runs one matching stage and updates matched tracks.
func (tracker *Tracker) associate(
	trackBoxes []trackBox,
	detectionIndices []int,
	detections []Detection,
	matchedTracks map[int]struct{},
	matchedDetections map[int]struct{},
) error {
	if len(trackBoxes) == 0 || len(detectionIndices) == 0 {
		return nil
	}
	iouMatrix := createIoUMatrix(trackBoxes, detectionIndices, detections)
	var matches [][2]int
	switch tracker.cfg.Algorithm {
	case MatchingAlgorithmHungarian:
		matches = tracker.hungarianMatching(iouMatrix, len(trackBoxes), len(detectionIndices))
	default:
		matches = greedyMatching(iouMatrix, tracker.cfg.MinIoU)
	}
	for _, match := range matches {
		trackIdx, detIdx := match[0], match[1]
		if iouMatrix[trackIdx][detIdx] < tracker.cfg.MinIoU {
			continue
		}
		trackID := trackBoxes[trackIdx].ID
		originalDetIdx := detectionIndices[detIdx]
		track, ok := tracker.tracks[trackID]
		if !ok {
			continue
		}
		if err := track.update(detections[originalDetIdx]); err != nil {
			return err
		}
		matchedTracks[trackID] = struct{}{}
		matchedDetections[originalDetIdx] = struct{}{}
	}
	return nil
}

// createIoUMatrix builds matrix: rows = tracks, columns = detections of the stage
func createIoUMatrix(trackBoxes []trackBox, detectionIndices []int, detections []Detection) [][]float64 {
	iouMatrix := make([][]float64, len(trackBoxes))
	for i, box := range trackBoxes {
		row := make([]float64, len(detectionIndices))
		for j, detIdx := range detectionIndices {
			row[j] = IoU(box.BBox, detections[detIdx].BBox)
		}
		iouMatrix[i] = row
	}
	return iouMatrix
}

// hungarianMatching pads IoU matrix to square one and solves assignment maximizing total IoU.
// Returns pairs {trackIndex, detectionIndex} within the stage.
func (tracker *Tracker) hungarianMatching(iouMatrix [][]float64, numTracks, numDetections int) [][2]int {
	size := maxInt(numTracks, numDetections)
	padded := iouMatrix
	if numTracks != numDetections {
		// Padding is done with 0.0 values (lowest IoU)
		padded = make([][]float64, size)
		for i := range padded {
			padded[i] = make([]float64, size)
			if i < numTracks {
				copy(padded[i], iouMatrix[i])
			}
		}
	}
	assignments := hungarian.SolveMax(padded)
	matches := make([][2]int, 0, len(assignments))
	for trackIdx, row := range assignments {
		for detIdx := range row {
			if trackIdx < numTracks && detIdx < numDetections {
				matches = append(matches, [2]int{trackIdx, detIdx})
			} else if trackIdx >= size || detIdx >= size {
				tracker.logger.WithFields(logrus.Fields{
					"track_idx":     trackIdx,
					"detection_idx": detIdx,
				}).Warn("Hungarian assignment out of bounds")
			}
			break
		}
	}
	// Map iteration order is random: keep processing deterministic
	sort.Slice(matches, func(i, j int) bool { return matches[i][0] < matches[j][0] })
	return matches
}

// greedyMatching picks the best free detection for every track in order
func greedyMatching(iouMatrix [][]float64, minIoU float64) [][2]int {
	matches := make([][2]int, 0)
	taken := make(map[int]struct{})
	for i, row := range iouMatrix {
		bestIoU := -1.0
		bestDetIdx := -1
		for j, iouVal := range row {
			if _, found := taken[j]; found {
				continue
			}
			if iouVal > bestIoU && iouVal >= minIoU {
				bestIoU = iouVal
				bestDetIdx = j
			}
		}
		if bestDetIdx != -1 {
			matches = append(matches, [2]int{i, bestDetIdx})
			taken[bestDetIdx] = struct{}{}
		}
	}
	return matches
}
