package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"spacetrack/pkg/logger"
	"spacetrack/pkg/query"
	"spacetrack/pkg/spacetrack"
	"spacetrack/pkg/storage"
)

// Job is one query of a batch run
type Job struct {
	Index int
	Name  string
	Query *query.Builder
}

// Result is the outcome of a job
type Result struct {
	Job      Job
	Success  bool
	Skipped  bool
	Error    error
	Duration time.Duration
	Size     int
	Path     string
}

// Querier runs catalog queries. *spacetrack.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, q *query.Builder) (*spacetrack.Result, error)
}

// ResultStorage persists query results. *storage.Manager satisfies it.
type ResultStorage interface {
	Exists(name string, format query.Format) bool
	Save(r io.Reader, name string, format query.Format) (string, error)
}

// Observer is told about every job as it starts and finishes. Calls come
// from worker goroutines.
type Observer interface {
	QueryStarted(job Job)
	QueryFinished(result Result)
}

// Pauser is implemented by observers that can hold the workers.
type Pauser interface {
	IsPaused() bool
}

const pausePoll = 200 * time.Millisecond

// WorkerPool runs jobs on a fixed number of workers. The workers share one
// client, so they also share its rate limit.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      Querier
	storage     ResultStorage
	observer    Observer
	logger      logger.Logger
}

// NewWorkerPool creates a pool bound to ctx. Cancelling ctx stops workers
// between jobs and aborts queries waiting on the rate limit.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	client Querier,
	store ResultStorage,
	log logger.Logger,
) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		client:      client,
		storage:     store,
		logger:      log.WithField("component", "batch"),
	}
}

// SetObserver registers o for job events. It must be called before Start.
func (wp *WorkerPool) SetObserver(o Observer) {
	wp.observer = o
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for the workers to drain it and closes the
// result channel.
func (wp *WorkerPool) Stop() {
	wp.logger.Info("Stopping worker pool...")

	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Info("Worker pool stopped")
}

// Cancel aborts running queries. Stop must still be called.
func (wp *WorkerPool) Cancel() {
	wp.cancel()
}

// Submit adds a job to the queue
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"name":   job.Name,
			"entity": job.Query.Entity(),
		})
		return nil
	case <-wp.ctx.Done():
		return errors.New("worker pool is shutting down")
	}
}

// Results returns the result channel
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.DebugWithFields("Worker started", map[string]interface{}{
		"worker_id": id,
	})

	for job := range wp.jobQueue {
		var result Result
		if err := wp.waitWhilePaused(); err != nil {
			result = wp.abandon(job, err)
		} else if err := wp.ctx.Err(); err != nil {
			result = wp.abandon(job, err)
		} else {
			result = wp.processJob(job, id)
		}

		// results are always delivered so callers can count every job
		wp.resultQueue <- result
	}

	wp.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

// abandon reports a job that will not run as finished with err.
func (wp *WorkerPool) abandon(job Job, err error) Result {
	result := Result{Job: job, Error: err}
	if wp.observer != nil {
		wp.observer.QueryFinished(result)
	}
	return result
}

func (wp *WorkerPool) waitWhilePaused() error {
	pauser, ok := wp.observer.(Pauser)
	if !ok {
		return nil
	}
	for pauser.IsPaused() {
		select {
		case <-time.After(pausePoll):
		case <-wp.ctx.Done():
			return wp.ctx.Err()
		}
	}
	return nil
}

// processJob runs and saves a single query
func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}
	format := job.Query.GetFormat()

	fields := map[string]interface{}{
		"worker_id": workerID,
		"name":      job.Name,
	}

	// skipped jobs are reported finished without having started
	defer func() {
		if wp.observer != nil {
			wp.observer.QueryFinished(result)
		}
	}()

	if wp.storage.Exists(job.Name, format) {
		wp.logger.DebugWithFields("Result already saved", fields)
		result.Success = true
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	if wp.observer != nil {
		wp.observer.QueryStarted(job)
	}

	res, err := wp.client.Query(wp.ctx, job.Query)
	if err != nil {
		result.Error = fmt.Errorf("query failed: %w", err)
		result.Duration = time.Since(start)
		wp.logger.WithError(err).ErrorWithFields("Worker failed to run query", fields)
		return result
	}

	result.Size = len(res.Raw)

	path, err := wp.storage.Save(bytes.NewReader(res.Raw), job.Name, format)
	if err != nil {
		if errors.Is(err, storage.ErrExists) {
			result.Success = true
			result.Skipped = true
			result.Path = path
			result.Duration = time.Since(start)
			return result
		}
		result.Error = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)
		wp.logger.WithError(err).ErrorWithFields("Worker failed to save result", fields)
		return result
	}

	result.Success = true
	result.Path = path
	result.Duration = time.Since(start)

	fields["size"] = result.Size
	fields["duration"] = result.Duration
	wp.logger.DebugWithFields("Worker completed job successfully", fields)

	return result
}

// GetQueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}

// GetActiveWorkers returns the number of workers
func (wp *WorkerPool) GetActiveWorkers() int {
	return wp.numWorkers
}
