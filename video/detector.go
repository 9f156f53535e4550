package video

import (
	"image"
	"iter"
	"math"

	"github.com/LdDl/mot-counter/counting"
	"github.com/LdDl/mot-counter/tracking"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// DetectorConfig describes YOLOv8 ONNX model usage
type DetectorConfig struct {
	ModelPath      string
	InferenceWidth int
	Confidence     float64
	NMSThreshold   float64
	// Class filter. Nil keeps every class
	KeepClass func(classID int) bool
}

// Detector runs YOLOv8 and assigns identities with tracker.
// It is not safe for concurrent use.
type Detector struct {
	net     gocv.Net
	cfg     DetectorConfig
	tracker *tracking.Tracker
	logger  logrus.FieldLogger
}

// NewDetector loads model. Failure to load is fatal for the caller.
func NewDetector(cfg DetectorConfig, tracker *tracking.Tracker, logger logrus.FieldLogger) (*Detector, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.InferenceWidth <= 0 {
		cfg.InferenceWidth = 640
	}
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, errors.Errorf("error loading YOLO model '%s'", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	logger.WithField("model", cfg.ModelPath).Info("Model loaded")
	return &Detector{
		net:     net,
		cfg:     cfg,
		tracker: tracker,
		logger:  logger,
	}, nil
}

// Detect implements pipeline.Detector. Boxes are in coordinates of the original frame.
func (detector *Detector) Detect(frame gocv.Mat) (iter.Seq[counting.Detection], error) {
	raw, err := detector.infer(frame)
	if err != nil {
		return nil, err
	}
	tracks, err := detector.tracker.Update(raw)
	if err != nil {
		return nil, errors.Wrap(err, "can't update tracker")
	}
	return func(yield func(counting.Detection) bool) {
		for _, track := range tracks {
			if !yield(counting.TrackedDetection(track.ID(), track.BBox().Image())) {
				return
			}
		}
	}, nil
}

// infer returns filtered and non-overlapping detections in original frame coordinates
func (detector *Detector) infer(frame gocv.Mat) ([]tracking.Detection, error) {
	size := detector.cfg.InferenceWidth
	scale := inferenceScale(frame.Cols(), frame.Rows(), size)

	input := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(114, 114, 114, 0), size, size, gocv.MatTypeCV8UC3)
	defer input.Close()
	contentWidth := int(float64(frame.Cols()) * scale)
	contentHeight := int(float64(frame.Rows()) * scale)
	content := input.Region(image.Rect(0, 0, contentWidth, contentHeight))
	if scale < 1.0 {
		resized := gocv.NewMat()
		gocv.Resize(frame, &resized, image.Pt(contentWidth, contentHeight), 0, 0, gocv.InterpolationLinear)
		resized.CopyTo(&content)
		resized.Close()
	} else {
		frame.CopyTo(&content)
	}
	content.Close()

	blob := gocv.BlobFromImage(input, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	detector.net.SetInput(blob, "")
	output := detector.net.Forward("")
	defer output.Close()

	// YOLOv8 output is [1, 4+classes, anchors]
	dims := output.Size()
	if len(dims) != 3 || dims[1] <= 4 {
		return nil, errors.Errorf("unexpected model output shape %v", dims)
	}
	attributes, anchors := dims[1], dims[2]
	planes := output.Reshape(1, attributes)
	defer planes.Close()
	rows := gocv.NewMat()
	defer rows.Close()
	gocv.Transpose(planes, &rows)

	boxes := make([]tracking.Rectangle, 0)
	scores := make([]float64, 0)
	classes := make([]int, 0)
	for i := 0; i < anchors; i++ {
		classID, score := -1, float32(0)
		for c := 4; c < attributes; c++ {
			if v := rows.GetFloatAt(i, c); v > score {
				classID, score = c-4, v
			}
		}
		if classID < 0 || float64(score) < detector.cfg.Confidence {
			continue
		}
		if detector.cfg.KeepClass != nil && !detector.cfg.KeepClass(classID) {
			continue
		}
		cx, cy := float64(rows.GetFloatAt(i, 0)), float64(rows.GetFloatAt(i, 1))
		w, h := float64(rows.GetFloatAt(i, 2)), float64(rows.GetFloatAt(i, 3))
		box := tracking.NewRect(cx-w/2, cy-h/2, w, h).Scale(1.0 / scale)
		boxes = append(boxes, box)
		scores = append(scores, float64(score))
		classes = append(classes, classID)
	}

	kept := tracking.SuppressOverlaps(boxes, scores, detector.cfg.NMSThreshold)
	detections := make([]tracking.Detection, 0, len(kept))
	for _, idx := range kept {
		detections = append(detections, tracking.Detection{
			BBox:       boxes[idx],
			Confidence: scores[idx],
			ClassID:    classes[idx],
		})
	}
	return detections, nil
}

// Close releases model
func (detector *Detector) Close() error {
	return detector.net.Close()
}

// inferenceScale downscales frames which don't fit into square model input. Smaller frames are used as is.
func inferenceScale(width, height, size int) float64 {
	if width <= 0 || height <= 0 {
		return 1.0
	}
	return math.Min(1.0, math.Min(float64(size)/float64(width), float64(size)/float64(height)))
}
