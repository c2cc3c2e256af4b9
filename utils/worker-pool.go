package utils

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ProgressTracker tracks progress of concurrent operations
type ProgressTracker struct {
	Total     int64
	Processed int64
	StartTime time.Time
	Name      string

	logger *slog.Logger
}

func NewProgressTracker(total int64, name string, logger *slog.Logger) *ProgressTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressTracker{
		Total:     total,
		StartTime: time.Now(),
		Name:      name,
		logger:    logger,
	}
}

// Increment increments the processed count atomically
func (pt *ProgressTracker) Increment() {
	processed := atomic.AddInt64(&pt.Processed, 1)

	// log every 1000 items and at completion
	if processed%1000 == 0 || processed == pt.Total {
		elapsed := time.Since(pt.StartTime)
		pt.logger.Debug("progress",
			"name", pt.Name,
			"processed", processed,
			"total", pt.Total,
			"percent", float64(processed)/float64(pt.Total)*100,
			"itemsPerSecond", float64(processed)/elapsed.Seconds())
	}
}

// GetProgress returns the current progress
func (pt *ProgressTracker) GetProgress() (int64, int64, float64) {
	processed := atomic.LoadInt64(&pt.Processed)
	if pt.Total == 0 {
		return processed, 0, 100
	}
	return processed, pt.Total, float64(processed) / float64(pt.Total) * 100
}

// ParallelProcessor runs a function over a batch of items with a bounded
// number of goroutines.
type ParallelProcessor struct {
	NumWorkers int
	Logger     *slog.Logger
}

func NewParallelProcessor(numWorkers int, logger *slog.Logger) *ParallelProcessor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ParallelProcessor{NumWorkers: numWorkers, Logger: logger}
}

// ProcessBatch applies workFunc to every item and returns the results in item
// order. The first error cancels the remaining work and is returned.
func ProcessBatch[T, R any](ctx context.Context, pp *ParallelProcessor, items []T,
	workFunc func(ctx context.Context, index int, item T) (R, error),
	progressName string) ([]R, error) {

	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	tracker := NewProgressTracker(int64(len(items)), progressName, pp.Logger)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pp.NumWorkers)
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := workFunc(ctx, i, item)
			if err != nil {
				return err
			}
			results[i] = result
			tracker.Increment()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pp.Logger.Debug("batch completed", "name", progressName, "items", len(items),
		"elapsed", time.Since(tracker.StartTime))
	return results, nil
}
