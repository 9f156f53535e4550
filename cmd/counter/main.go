package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/LdDl/mot-counter/config"
	"github.com/LdDl/mot-counter/counting"
	"github.com/LdDl/mot-counter/eventlog"
	"github.com/LdDl/mot-counter/metrics"
	"github.com/LdDl/mot-counter/pipeline"
	"github.com/LdDl/mot-counter/replay"
	"github.com/LdDl/mot-counter/tracking"
	"github.com/LdDl/mot-counter/video"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var (
	configPath     = flag.String("config", "", "Path to YAML configuration file")
	sourceFlag     = flag.String("source", "", "Camera index or video file path. Asked interactively when empty")
	replayFlag     = flag.String("replay", "", "JSON-lines file with recorded detections (replaces camera and model)")
	retrackFlag    = flag.Bool("replay-retrack", false, "Ignore recorded ids and assign new ones with tracker")
	modelFlag      = flag.String("model", config.DefaultModelPath, "YOLOv8 ONNX model")
	confidenceFlag = flag.Float64("confidence", 0.5, "Minimum detection confidence")
	eventLogFlag   = flag.String("log", config.DefaultEventLog, "CSV file for crossing events")
	sqliteFlag     = flag.String("sqlite", "", "Optional SQLite database mirroring crossing events")
	metricsFlag    = flag.String("metrics", "", "Address to expose Prometheus metrics on, e.g. :9090")
	lineFlag       = flag.String("line", "", "Preset counting line x1,y1,x2,y2 (skips interactive selection)")
	staleFlag      = flag.Int("stale-frames", 0, "Forget tracks unseen for this many frames (0 = never)")
	headlessFlag   = flag.Bool("headless", false, "Run without windows, print snapshots as JSON lines")
	asyncFlag      = flag.Bool("async", false, "Run detection on separate goroutine")
	matchingFlag   = flag.String("matching", "hungarian", "Tracker matching algorithm: hungarian or greedy")
	logLevelFlag   = flag.String("log-level", "info", "Log level")
	logJSONFlag    = flag.Bool("log-json", false, "Log in JSON format")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logrus.WithError(err).Fatal("Can't load configuration")
		}
		cfg = loaded
	}
	applyFlags(cfg)

	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Counter stopped with error")
		os.Exit(1)
	}
}

// applyFlags overrides configuration with explicitly set flags
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source = *sourceFlag
		case "replay":
			cfg.Replay = *replayFlag
		case "replay-retrack":
			cfg.ReplayRetrack = *retrackFlag
		case "model":
			cfg.ModelPath = *modelFlag
		case "confidence":
			cfg.Confidence = *confidenceFlag
		case "log":
			cfg.EventLog = *eventLogFlag
		case "sqlite":
			cfg.SQLitePath = *sqliteFlag
		case "metrics":
			cfg.MetricsAddr = *metricsFlag
		case "line":
			cfg.Line = *lineFlag
		case "stale-frames":
			cfg.StaleTrackFrames = *staleFlag
		case "headless":
			cfg.Headless = *headlessFlag
		case "async":
			cfg.AsyncDetection = *asyncFlag
		case "matching":
			cfg.Tracker.Algorithm = *matchingFlag
		case "log-level":
			cfg.LogLevel = *logLevelFlag
		case "log-json":
			cfg.LogJSON = *logJSONFlag
		}
	})
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// counterApp owns resources shared by video and replay modes
type counterApp struct {
	cfg       *config.Config
	logger    *logrus.Logger
	sessionID uuid.UUID
	metrics   *metrics.Metrics
	sqlite    *eventlog.SQLiteWriter
}

func run(cfg *config.Config, logger *logrus.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &counterApp{
		cfg:       cfg,
		logger:    logger,
		sessionID: uuid.New(),
		metrics:   metrics.New(),
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("unexpected failure: %v", r)
		}
		logger.Info("Cleanup complete")
	}()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := app.metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	if cfg.Replay != "" {
		return app.runReplay(ctx)
	}
	return app.runVideo(ctx)
}

// openWriter opens CSV log and optional SQLite mirror
func (app *counterApp) openWriter() (counting.EventWriter, error) {
	csvWriter, err := eventlog.OpenCSV(app.cfg.EventLog)
	if err != nil {
		return nil, err
	}
	if app.cfg.SQLitePath == "" {
		return csvWriter, nil
	}
	sqliteWriter, err := eventlog.OpenSQLite(app.cfg.SQLitePath, app.sessionID)
	if err != nil {
		csvWriter.Close()
		return nil, err
	}
	app.sqlite = sqliteWriter
	return eventlog.Multi{csvWriter, sqliteWriter}, nil
}

// newSession opens durable storage and creates session for confirmed line
func (app *counterApp) newSession(line counting.Line) (*counting.Session, error) {
	writer, err := app.openWriter()
	if err != nil {
		return nil, errors.Wrap(err, "can't open event log")
	}
	store := counting.NewMapStoreWithEviction(app.cfg.StaleTrackFrames)
	sessionLogger := app.logger.WithField("session_id", app.sessionID.String())
	sink := counting.NewEventSink(writer, sessionLogger)
	session := counting.NewSession(line, sink,
		counting.WithStore(store),
		counting.WithLogger(sessionLogger),
		counting.WithObserver(app.metrics),
	)
	sessionLogger.WithFields(logrus.Fields{
		"line":   line.String(),
		"csv":    app.cfg.EventLog,
		"sqlite": app.cfg.SQLitePath,
	}).Info("Session started")
	return session, nil
}

func (app *counterApp) closeSession(session *counting.Session) {
	snapshot := session.Snapshot()
	fields := logrus.Fields{
		"in":  snapshot.In,
		"out": snapshot.Out,
	}
	if app.sqlite != nil {
		if counters, err := app.sqlite.Counts(app.sessionID); err == nil {
			fields["stored_in"] = counters.In
			fields["stored_out"] = counters.Out
		}
	}
	app.logger.WithFields(fields).Info("Session finished")
	if err := session.Close(); err != nil {
		app.logger.WithError(err).Error("Can't close event log")
	}
}

func (app *counterApp) tracker() (*tracking.Tracker, error) {
	trackerCfg, err := app.cfg.TrackingConfig()
	if err != nil {
		return nil, err
	}
	return tracking.NewTracker(trackerCfg, app.logger), nil
}

func (app *counterApp) presetLine() (counting.Line, error) {
	p1, p2, err := config.ParseLinePoints(app.cfg.Line)
	if err != nil {
		return counting.Line{}, err
	}
	return counting.SelectLine(counting.NewPresetInput(p1, p2))
}

func (app *counterApp) asyncDepth() int {
	if app.cfg.AsyncDetection {
		return 2
	}
	return 0
}

func (app *counterApp) runVideo(ctx context.Context) error {
	source := app.cfg.Source
	if source == "" {
		prompted, err := config.PromptSource(os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		source = prompted
	}

	tracker, err := app.tracker()
	if err != nil {
		return err
	}
	detector, err := video.NewDetector(video.DetectorConfig{
		ModelPath:      app.cfg.ModelPath,
		InferenceWidth: app.cfg.InferenceWidth,
		Confidence:     app.cfg.Confidence,
		NMSThreshold:   app.cfg.NMSThreshold,
		KeepClass:      app.cfg.KeepsClass,
	}, tracker, app.logger)
	if err != nil {
		return err
	}
	defer detector.Close()

	capture, err := video.OpenCapture(source)
	if err != nil {
		return err
	}
	defer capture.Close()

	firstFrame, err := pipeline.FirstFrame[gocv.Mat](capture)
	if err != nil {
		return err
	}
	line, err := app.selectLine(firstFrame)
	capture.Release(firstFrame)
	if errors.Is(err, counting.ErrSelectionCancelled) {
		app.logger.Info("Line selection cancelled. Exiting")
		return nil
	}
	if err != nil {
		return err
	}
	app.logger.WithField("line", line.String()).Info("Line confirmed")
	if err := capture.Rewind(); err != nil {
		return err
	}

	session, err := app.newSession(line)
	if err != nil {
		return err
	}
	defer app.closeSession(session)

	options := []pipeline.RunnerOption[gocv.Mat]{
		pipeline.WithFrameObserver[gocv.Mat](app.metrics),
		pipeline.WithAsyncDetection[gocv.Mat](app.asyncDepth()),
		pipeline.WithRunnerLogger[gocv.Mat](app.logger),
	}
	if app.cfg.Headless {
		options = append(options, pipeline.WithRenderer[gocv.Mat](replay.NewRenderer[gocv.Mat](os.Stdout)))
	} else {
		window := video.NewWindow()
		defer window.Close()
		options = append(options,
			pipeline.WithRenderer[gocv.Mat](window),
			pipeline.WithControls[gocv.Mat](window),
		)
	}
	return pipeline.NewRunner[gocv.Mat](capture, detector, session, options...).Run(ctx)
}

func (app *counterApp) selectLine(firstFrame gocv.Mat) (counting.Line, error) {
	if app.cfg.Line != "" {
		return app.presetLine()
	}
	if app.cfg.Headless {
		return counting.Line{}, errors.New("headless mode requires preset line")
	}
	selection := video.NewSelectionWindow(firstFrame)
	defer selection.Close()
	app.logger.Info("Drag over the frame to pick two points of the counting line. Press 'c' to confirm, 'r' to reset, 'q' to quit")
	return counting.SelectLine(selection)
}

func (app *counterApp) runReplay(ctx context.Context) error {
	source, err := replay.OpenSource(app.cfg.Replay)
	if err != nil {
		return err
	}
	defer source.Close()

	// Recording without a single readable frame must not open a session
	if _, err := pipeline.FirstFrame[replay.Frame](source); err != nil {
		return err
	}
	if err := source.Rewind(); err != nil {
		return err
	}

	line, err := app.presetLine()
	if err != nil {
		return err
	}
	options := []replay.DetectorOption{
		replay.WithClassFilter(app.cfg.KeepsClass),
		replay.WithMinConfidence(app.cfg.Confidence),
	}
	if app.cfg.ReplayRetrack {
		tracker, err := app.tracker()
		if err != nil {
			return err
		}
		options = append(options, replay.WithTracker(tracker))
	}

	session, err := app.newSession(line)
	if err != nil {
		return err
	}
	defer app.closeSession(session)

	return pipeline.NewRunner[replay.Frame](source, replay.NewDetector(options...), session,
		pipeline.WithRenderer[replay.Frame](replay.NewRenderer[replay.Frame](os.Stdout)),
		pipeline.WithFrameObserver[replay.Frame](app.metrics),
		pipeline.WithAsyncDetection[replay.Frame](app.asyncDepth()),
		pipeline.WithRunnerLogger[replay.Frame](app.logger),
	).Run(ctx)
}
