package pipeline

import (
	"context"
	"slices"
	"sync"

	"github.com/LdDl/mot-counter/counting"
)

// Result is detector output for a single submitted frame
type Result[F any] struct {
	Frame      F
	Detections []counting.Detection
	Err        error
}

// AsyncDetector runs detection on a separate goroutine.
// Single worker serves requests in submission order, so results come back FIFO.
type AsyncDetector[F any] struct {
	detector Detector[F]
	depth    int
	requests chan F
	results  chan Result[F]
	wg       sync.WaitGroup
	once     sync.Once
}

// NewAsyncDetector wraps detector. Depth is the maximum number of frames in flight.
func NewAsyncDetector[F any](detector Detector[F], depth int) *AsyncDetector[F] {
	if depth < 1 {
		depth = 1
	}
	return &AsyncDetector[F]{
		detector: detector,
		depth:    depth,
		requests: make(chan F, depth),
		results:  make(chan Result[F], depth),
	}
}

// Depth returns maximum number of frames in flight
func (async *AsyncDetector[F]) Depth() int {
	return async.depth
}

// Start launches the worker
func (async *AsyncDetector[F]) Start() {
	async.wg.Add(1)
	go func() {
		defer async.wg.Done()
		defer close(async.results)
		for frame := range async.requests {
			async.results <- detectAll(async.detector, frame)
		}
	}()
}

// Submit queues frame for detection
func (async *AsyncDetector[F]) Submit(ctx context.Context, frame F) error {
	select {
	case async.requests <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns result of the oldest submitted frame. ok=false after Close drained everything.
func (async *AsyncDetector[F]) Next(ctx context.Context) (Result[F], bool, error) {
	select {
	case result, ok := <-async.results:
		return result, ok, nil
	case <-ctx.Done():
		return Result[F]{}, false, ctx.Err()
	}
}

// Close stops accepting frames. Already submitted frames are still processed and can be read with Next.
func (async *AsyncDetector[F]) Close() {
	async.once.Do(func() {
		close(async.requests)
	})
}

// Wait blocks until worker exits
func (async *AsyncDetector[F]) Wait() {
	async.wg.Wait()
}

func detectAll[F any](detector Detector[F], frame F) (result Result[F]) {
	result.Frame = frame
	defer func() {
		if r := recover(); r != nil {
			result.Err = panicError(r)
		}
	}()
	detections, err := detector.Detect(frame)
	if err != nil {
		result.Err = err
		return result
	}
	result.Detections = slices.Collect(detections)
	return result
}
