package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/breatheroute/routekit/internal/routing"
)

// Status is the outcome of one job.
type Status string

const (
	StatusOK    Status = "ok"
	StatusEmpty Status = "empty" // Provider returned nothing, e.g. a skipped API error
	StatusError Status = "error"
)

// Result is one output line of a batch.
type Result struct {
	ID         string              `json:"id"`
	Provider   string              `json:"provider"`
	Operation  Operation           `json:"operation"`
	Status     Status              `json:"status"`
	Error      string              `json:"error,omitempty"`
	DurationMS int64               `json:"duration_ms"`
	Directions *routing.Directions `json:"directions,omitempty"`
	Isochrones *routing.Isochrones `json:"isochrones,omitempty"`
	Matrix     *routing.Matrix     `json:"matrix,omitempty"`
}

// Summary aggregates a finished batch.
type Summary struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Total     int
	Succeeded int
	Empty     int
	Failed    int
}

// BatchJob runs a JobFile through a routing Service.
type BatchJob struct {
	service *routing.Service
	file    JobFile
	logger  zerolog.Logger
}

// NewBatchJob creates a batch runner.
func NewBatchJob(service *routing.Service, file JobFile, logger zerolog.Logger) *BatchJob {
	if file.Concurrency <= 0 {
		file.Concurrency = DefaultConcurrency
	}
	if file.Timeout <= 0 {
		file.Timeout = DefaultTimeout
	}
	return &BatchJob{service: service, file: file, logger: logger}
}

// Run executes every job and writes one JSON line per job to out as jobs finish. A
// failing job is reported in its line and does not stop the batch; Run only fails when
// out cannot be written or ctx is cancelled.
func (b *BatchJob) Run(ctx context.Context, out io.Writer) (*Summary, error) {
	summary := &Summary{StartTime: time.Now(), Total: len(b.file.Jobs)}

	b.logger.Info().
		Int("jobs", summary.Total).
		Int("concurrency", b.file.Concurrency).
		Msg("starting routing batch")

	var mu sync.Mutex
	enc := json.NewEncoder(out)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.file.Concurrency)

	for _, job := range b.file.Ordered() {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result := b.runJob(gctx, job)

			mu.Lock()
			defer mu.Unlock()
			switch result.Status {
			case StatusOK:
				summary.Succeeded++
			case StatusEmpty:
				summary.Empty++
			default:
				summary.Failed++
			}
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("write result %s: %w", result.ID, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)

	b.logger.Info().
		Dur("duration", summary.Duration).
		Int("succeeded", summary.Succeeded).
		Int("empty", summary.Empty).
		Int("failed", summary.Failed).
		Msg("routing batch completed")

	return summary, err
}

func (b *BatchJob) runJob(ctx context.Context, job Job) Result {
	ctx, cancel := context.WithTimeout(ctx, b.file.Timeout)
	defer cancel()

	result := Result{ID: job.ID, Provider: job.Provider, Operation: job.Operation}
	start := time.Now()

	var (
		empty bool
		err   error
	)
	switch job.Operation {
	case OperationDirections:
		result.Directions, err = b.service.Directions(ctx, job.Provider, routing.DirectionsQuery{
			Locations:    job.coordinates(),
			Profile:      job.Profile,
			Alternatives: job.Alternatives,
			Extra:        job.Extra,
			DryRun:       job.DryRun,
		})
		empty = result.Directions.Empty()
	case OperationIsochrones:
		var location routing.Coordinate
		if coords := job.coordinates(); len(coords) > 0 {
			location = coords[0]
		}
		result.Isochrones, err = b.service.Isochrones(ctx, job.Provider, routing.IsochronesQuery{
			Location:     location,
			Profile:      job.Profile,
			Intervals:    job.Intervals,
			IntervalType: job.IntervalType,
			Extra:        job.Extra,
			DryRun:       job.DryRun,
		})
		empty = result.Isochrones.Empty()
	case OperationMatrix:
		result.Matrix, err = b.service.Matrix(ctx, job.Provider, routing.MatrixQuery{
			Locations:    job.coordinates(),
			Profile:      job.Profile,
			Sources:      job.Sources,
			Destinations: job.Destinations,
			Extra:        job.Extra,
			DryRun:       job.DryRun,
		})
		empty = result.Matrix.Empty()
	default:
		err = fmt.Errorf("unknown operation %q", job.Operation)
	}
	result.DurationMS = time.Since(start).Milliseconds()

	switch {
	case err != nil:
		result.Status = StatusError
		result.Error = err.Error()
		result.Directions, result.Isochrones, result.Matrix = nil, nil, nil
		b.logger.Warn().Err(err).
			Str("job", job.ID).
			Str("provider", job.Provider).
			Msg("routing job failed")
	case empty:
		result.Status = StatusEmpty
	default:
		result.Status = StatusOK
	}
	return result
}
