package config

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/LdDl/mot-counter/tracking"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultEventLog is CSV log name created in working directory
	DefaultEventLog = "entry_data.csv"
	// DefaultModelPath is YOLOv8 nano exported to ONNX
	DefaultModelPath = "yolov8n.onnx"
	// PersonClassID is COCO class index of "person"
	PersonClassID = 0
)

// TrackerConfig mirrors tracking.Config in file-friendly form
type TrackerConfig struct {
	MaxDisappeared int     `yaml:"max_disappeared"`
	MinIoU         float64 `yaml:"min_iou"`
	HighThresh     float64 `yaml:"high_thresh"`
	LowThresh      float64 `yaml:"low_thresh"`
	Algorithm      string  `yaml:"algorithm"`
}

// Config is the root configuration of the counter
type Config struct {
	// Camera index ("0") or path to video file. Empty means ask interactively
	Source string `yaml:"source"`
	// JSON-lines file with recorded detections. Replaces camera and model
	Replay string `yaml:"replay"`
	// Ignore recorded ids and assign new ones with tracker
	ReplayRetrack bool `yaml:"replay_retrack"`
	// Detector model (ONNX)
	ModelPath string `yaml:"model"`
	// Frames wider than this are downscaled before inference
	InferenceWidth int `yaml:"inference_width"`
	// Minimum detector confidence
	Confidence float64 `yaml:"confidence"`
	// IoU threshold for non-maximum suppression of detector output
	NMSThreshold float64 `yaml:"nms_threshold"`
	// Class ids to keep
	Classes []int `yaml:"classes"`
	// CSV crossing log
	EventLog string `yaml:"event_log"`
	// Optional SQLite mirror of crossing log
	SQLitePath string `yaml:"sqlite"`
	// Optional address for Prometheus metrics, e.g. ":9090"
	MetricsAddr string `yaml:"metrics_addr"`
	// Optional preset line "x1,y1,x2,y2" which skips interactive selection
	Line string `yaml:"line"`
	// Forget tracks unseen for this many frames. Zero keeps them for whole session
	StaleTrackFrames int `yaml:"stale_track_frames"`
	// Run without windows
	Headless bool `yaml:"headless"`
	// Run detection on separate goroutine
	AsyncDetection bool `yaml:"async_detection"`
	// Logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	Tracker TrackerConfig `yaml:"tracker"`
}

// Default returns configuration used when no file is given
func Default() *Config {
	trackerDefaults := tracking.DefaultConfig()
	return &Config{
		ModelPath:      DefaultModelPath,
		InferenceWidth: 640,
		Confidence:     0.5,
		NMSThreshold:   0.45,
		Classes:        []int{PersonClassID},
		EventLog:       DefaultEventLog,
		LogLevel:       "info",
		Tracker: TrackerConfig{
			MaxDisappeared: trackerDefaults.MaxDisappeared,
			MinIoU:         trackerDefaults.MinIoU,
			HighThresh:     trackerDefaults.HighThresh,
			LowThresh:      trackerDefaults.LowThresh,
			Algorithm:      trackerDefaults.Algorithm.String(),
		},
	}
}

// Load reads YAML file on top of defaults. Fields omitted from the file keep default values.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "can't read config file")
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "can't parse config file %s", cleanPath)
	}
	return cfg, nil
}

// Validate checks configuration consistency
func (cfg *Config) Validate() error {
	if cfg.Confidence < 0 || cfg.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0, 1], got %v", cfg.Confidence)
	}
	if cfg.NMSThreshold < 0 || cfg.NMSThreshold > 1 {
		return fmt.Errorf("nms_threshold must be in [0, 1], got %v", cfg.NMSThreshold)
	}
	if cfg.InferenceWidth <= 0 {
		return fmt.Errorf("inference_width must be positive, got %d", cfg.InferenceWidth)
	}
	if cfg.StaleTrackFrames < 0 {
		return fmt.Errorf("stale_track_frames must be non-negative, got %d", cfg.StaleTrackFrames)
	}
	if cfg.EventLog == "" {
		return errors.New("event_log must not be empty")
	}
	if cfg.Replay == "" && cfg.ModelPath == "" {
		return errors.New("model is required unless replay is set")
	}
	if cfg.Replay != "" && cfg.Line == "" {
		return errors.New("replay requires preset line")
	}
	if _, err := cfg.TrackingConfig(); err != nil {
		return err
	}
	if cfg.Line != "" {
		if _, _, err := ParseLinePoints(cfg.Line); err != nil {
			return err
		}
	}
	return nil
}

// TrackingConfig converts tracker section into tracking.Config
func (cfg *Config) TrackingConfig() (tracking.Config, error) {
	algorithm, err := tracking.ParseMatchingAlgorithm(cfg.Tracker.Algorithm)
	if err != nil {
		return tracking.Config{}, err
	}
	if cfg.Tracker.MaxDisappeared <= 0 {
		return tracking.Config{}, fmt.Errorf("tracker.max_disappeared must be positive, got %d", cfg.Tracker.MaxDisappeared)
	}
	if cfg.Tracker.LowThresh > cfg.Tracker.HighThresh {
		return tracking.Config{}, fmt.Errorf("tracker.low_thresh (%v) must not exceed tracker.high_thresh (%v)", cfg.Tracker.LowThresh, cfg.Tracker.HighThresh)
	}
	return tracking.Config{
		MaxDisappeared: cfg.Tracker.MaxDisappeared,
		MinIoU:         cfg.Tracker.MinIoU,
		HighThresh:     cfg.Tracker.HighThresh,
		LowThresh:      cfg.Tracker.LowThresh,
		Algorithm:      algorithm,
		DT:             1.0,
	}, nil
}

// ParseLinePoints parses "x1,y1,x2,y2" into two points
func ParseLinePoints(s string) (image.Point, image.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Point{}, image.Point{}, fmt.Errorf("line must be \"x1,y1,x2,y2\", got %q", s)
	}
	values := make([]int, 4)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return image.Point{}, image.Point{}, errors.Wrapf(err, "bad line coordinate %q", part)
		}
		values[i] = v
	}
	return image.Pt(values[0], values[1]), image.Pt(values[2], values[3]), nil
}

// KeepsClass reports whether detections of class should be counted
func (cfg *Config) KeepsClass(classID int) bool {
	if len(cfg.Classes) == 0 {
		return true
	}
	for _, keep := range cfg.Classes {
		if keep == classID {
			return true
		}
	}
	return false
}
