package pipeline

import (
	"context"
	"slices"
	"time"

	"github.com/LdDl/mot-counter/counting"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Runner drives frames from source through detector into counting session
type Runner[F any] struct {
	source     Source[F]
	detector   Detector[F]
	session    *counting.Session
	renderer   Renderer[F]
	controls   Controls
	observers  []FrameObserver
	asyncDepth int
	now        func() time.Time
	logger     logrus.FieldLogger

	fps *fpsMeter
}

// RunnerOption configures Runner
type RunnerOption[F any] func(*Runner[F])

// WithRenderer sets frame renderer
func WithRenderer[F any](renderer Renderer[F]) RunnerOption[F] {
	return func(runner *Runner[F]) {
		runner.renderer = renderer
	}
}

// WithControls sets command source polled after every frame
func WithControls[F any](controls Controls) RunnerOption[F] {
	return func(runner *Runner[F]) {
		runner.controls = controls
	}
}

// WithFrameObserver registers observer of per-frame state
func WithFrameObserver[F any](observer FrameObserver) RunnerOption[F] {
	return func(runner *Runner[F]) {
		runner.observers = append(runner.observers, observer)
	}
}

// WithAsyncDetection runs detector on separate goroutine with up to depth frames in flight
func WithAsyncDetection[F any](depth int) RunnerOption[F] {
	return func(runner *Runner[F]) {
		runner.asyncDepth = depth
	}
}

// WithRunnerClock overrides time source of FPS estimation
func WithRunnerClock[F any](now func() time.Time) RunnerOption[F] {
	return func(runner *Runner[F]) {
		runner.now = now
	}
}

// WithRunnerLogger sets logger
func WithRunnerLogger[F any](logger logrus.FieldLogger) RunnerOption[F] {
	return func(runner *Runner[F]) {
		runner.logger = logger
	}
}

// NewRunner creates loop for session
func NewRunner[F any](source Source[F], detector Detector[F], session *counting.Session, options ...RunnerOption[F]) *Runner[F] {
	runner := &Runner[F]{
		source:   source,
		detector: detector,
		session:  session,
		now:      time.Now,
		logger:   logrus.StandardLogger(),
	}
	for _, option := range options {
		option(runner)
	}
	return runner
}

// Run processes frames until end of stream, quit command or context cancellation.
// Panics inside the loop are recovered and returned as ErrLoopPanic.
func (runner *Runner[F]) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	runner.fps = newFPSMeter(runner.now)
	if runner.asyncDepth > 0 {
		return runner.runAsync(ctx)
	}
	return runner.runSync(ctx)
}

func (runner *Runner[F]) runSync(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			runner.logger.Info("Processing interrupted")
			return nil
		}
		frame, ok, err := runner.source.Read()
		if err != nil {
			return errors.Wrap(err, "can't read frame")
		}
		if !ok {
			runner.logger.Info("End of video stream")
			return nil
		}
		result := detectAll(runner.detector, frame)
		if result.Err != nil {
			runner.release(frame)
			return errors.Wrap(result.Err, "can't detect objects")
		}
		stop, err := runner.step(frame, result.Detections)
		if err != nil || stop {
			return err
		}
	}
}

func (runner *Runner[F]) runAsync(ctx context.Context) (err error) {
	async := NewAsyncDetector(runner.detector, runner.asyncDepth)
	async.Start()
	defer func() {
		async.Close()
		// Release frames which were still in flight
		for {
			result, ok, _ := async.Next(context.Background())
			if !ok {
				break
			}
			runner.release(result.Frame)
		}
		async.Wait()
	}()

	pending := 0
	eof := false
	for {
		if ctx.Err() != nil {
			runner.logger.Info("Processing interrupted")
			return nil
		}
		for !eof && pending < async.Depth() {
			frame, ok, err := runner.source.Read()
			if err != nil {
				return errors.Wrap(err, "can't read frame")
			}
			if !ok {
				eof = true
				break
			}
			if err := async.Submit(ctx, frame); err != nil {
				runner.release(frame)
				return nil
			}
			pending++
		}
		if pending == 0 {
			runner.logger.Info("End of video stream")
			return nil
		}
		result, ok, err := async.Next(ctx)
		if err != nil {
			runner.logger.Info("Processing interrupted")
			return nil
		}
		if !ok {
			return errors.New("detection worker stopped unexpectedly")
		}
		pending--
		if result.Err != nil {
			runner.release(result.Frame)
			return errors.Wrap(result.Err, "can't detect objects")
		}
		stop, err := runner.step(result.Frame, result.Detections)
		if err != nil || stop {
			return err
		}
	}
}

// step applies detections of a single frame, renders it and handles commands.
// Returns true when quit was requested.
func (runner *Runner[F]) step(frame F, detections []counting.Detection) (bool, error) {
	defer runner.release(frame)

	runner.session.ProcessFrame(slices.Values(detections))

	fps, refreshed := runner.fps.tick()
	if refreshed {
		runner.logger.WithField("fps", fps).Debug("Processing rate")
	}
	snapshot := runner.session.Snapshot()
	for _, observer := range runner.observers {
		observer.ObserveFrame(snapshot, fps)
	}
	if runner.renderer != nil {
		if err := runner.renderer.Render(frame, detections, snapshot, fps); err != nil {
			return false, errors.Wrap(err, "can't render frame")
		}
	}
	if runner.controls == nil {
		return false, nil
	}
	switch command := runner.controls.Poll(); command.Kind {
	case counting.CommandQuitSession:
		runner.logger.Info("Quitting")
		return true, nil
	case counting.CommandResetSession:
		runner.session.Reset()
	}
	return false, nil
}

func (runner *Runner[F]) release(frame F) {
	if releaser, ok := runner.source.(FrameReleaser[F]); ok {
		releaser.Release(frame)
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return errors.Wrapf(ErrLoopPanic, "panic: %v", err)
	}
	return errors.Wrapf(ErrLoopPanic, "panic: %v", r)
}
