package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spacetrack/pkg/logger"
	"spacetrack/pkg/query"
	"spacetrack/pkg/ratelimit"
	"spacetrack/pkg/spacetrack"
)

// MockClient is a mock catalog client
type MockClient struct {
	queryDelay   time.Duration
	queryError   error
	queryCounter int32
	limiter      ratelimit.Limiter
}

func (m *MockClient) Query(ctx context.Context, q *query.Builder) (*spacetrack.Result, error) {
	run := func(ctx context.Context) (*spacetrack.Result, error) {
		atomic.AddInt32(&m.queryCounter, 1)
		if m.queryDelay > 0 {
			select {
			case <-time.After(m.queryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if m.queryError != nil {
			return nil, m.queryError
		}
		return &spacetrack.Result{Path: q.Path(), Format: q.GetFormat(), Raw: []byte("[]")}, nil
	}
	if m.limiter != nil {
		return ratelimit.Do(ctx, m.limiter, run)
	}
	return run(ctx)
}

func (m *MockClient) GetQueryCount() int {
	return int(atomic.LoadInt32(&m.queryCounter))
}

// MockStorage is a mock result store
type MockStorage struct {
	saved     map[string]bool
	saveError error
	mu        sync.Mutex
}

func NewMockStorage() *MockStorage {
	return &MockStorage{saved: make(map[string]bool)}
}

func (m *MockStorage) Exists(name string, format query.Format) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[name+"."+string(format)]
}

func (m *MockStorage) Save(r io.Reader, name string, format query.Format) (string, error) {
	if m.saveError != nil {
		return "", m.saveError
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := name + "." + string(format)
	m.saved[key] = true
	return "/results/" + key, nil
}

func (m *MockStorage) GetSavedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// recordingObserver counts events and can hold the pool
type recordingObserver struct {
	started  int32
	finished int32
	paused   atomic.Bool
}

func (o *recordingObserver) QueryStarted(job Job)        { atomic.AddInt32(&o.started, 1) }
func (o *recordingObserver) QueryFinished(result Result) { atomic.AddInt32(&o.finished, 1) }
func (o *recordingObserver) IsPaused() bool              { return o.paused.Load() }

func runPool(t *testing.T, pool *WorkerPool, jobs []Job) []Result {
	t.Helper()

	pool.Start()

	var results []Result
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			results = append(results, result)
		}
	}()

	for _, job := range jobs {
		if err := pool.Submit(job); err != nil {
			t.Errorf("Failed to submit job %s: %v", job.Name, err)
		}
	}

	pool.Stop()
	wg.Wait()
	return results
}

func makeJobs(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{
			Index: i,
			Name:  fmt.Sprintf("query%d", i),
			Query: query.New(query.EntityGP).Where("NORAD_CAT_ID", 25544+i),
		}
	}
	return jobs
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	mockClient := &MockClient{queryDelay: 10 * time.Millisecond}
	mockStorage := NewMockStorage()
	observer := &recordingObserver{}

	pool := NewWorkerPool(context.Background(), 3, mockClient, mockStorage, logger.NewTestLogger())
	pool.SetObserver(observer)

	numJobs := 10
	results := runPool(t, pool, makeJobs(numJobs))

	if len(results) != numJobs {
		t.Fatalf("Expected %d results, got %d", numJobs, len(results))
	}
	for _, result := range results {
		if !result.Success || result.Skipped {
			t.Errorf("Expected %s to succeed, got %+v", result.Job.Name, result)
		}
		if result.Path != "/results/"+result.Job.Name+".json" {
			t.Errorf("Unexpected path %s", result.Path)
		}
	}
	if mockClient.GetQueryCount() != numJobs {
		t.Errorf("Expected %d query calls, got %d", numJobs, mockClient.GetQueryCount())
	}
	if mockStorage.GetSavedCount() != numJobs {
		t.Errorf("Expected %d saved results, got %d", numJobs, mockStorage.GetSavedCount())
	}
	if observer.started != int32(numJobs) || observer.finished != int32(numJobs) {
		t.Errorf("Observer saw %d starts and %d finishes", observer.started, observer.finished)
	}
}

func TestWorkerPoolWithErrors(t *testing.T) {
	mockClient := &MockClient{queryError: fmt.Errorf("upstream error")}
	mockStorage := NewMockStorage()

	pool := NewWorkerPool(context.Background(), 2, mockClient, mockStorage, logger.NewTestLogger())
	results := runPool(t, pool, makeJobs(5))

	if len(results) != 5 {
		t.Errorf("Expected 5 results, got %d", len(results))
	}
	for _, result := range results {
		if result.Success {
			t.Error("Expected all queries to fail")
		}
		if result.Error == nil {
			t.Error("Expected error in result")
		}
	}
	if mockStorage.GetSavedCount() != 0 {
		t.Error("Nothing should be saved")
	}
}

func TestWorkerPoolSaveErrors(t *testing.T) {
	mockStorage := NewMockStorage()
	mockStorage.saveError = fmt.Errorf("disk full")

	log := logger.NewTestLogger()
	pool := NewWorkerPool(context.Background(), 1, &MockClient{}, mockStorage, log)
	results := runPool(t, pool, makeJobs(1))

	if results[0].Success || results[0].Error == nil {
		t.Errorf("Expected save failure, got %+v", results[0])
	}
	if !log.HasMessage("Worker failed to save result") {
		t.Error("Expected save failure to be logged")
	}
}

func TestWorkerPoolConcurrency(t *testing.T) {
	mockClient := &MockClient{queryDelay: 100 * time.Millisecond}

	pool := NewWorkerPool(context.Background(), 5, mockClient, NewMockStorage(), logger.NewTestLogger())

	startTime := time.Now()
	results := runPool(t, pool, makeJobs(10))
	elapsed := time.Since(startTime)

	// 5 workers and 10 jobs of 100ms each
	if elapsed > 300*time.Millisecond {
		t.Errorf("Queries took too long: %v", elapsed)
	}
	if len(results) != 10 {
		t.Errorf("Expected 10 results, got %d", len(results))
	}
}

func TestWorkerPoolSharesRateLimit(t *testing.T) {
	gate, err := ratelimit.NewGate(2, 200*time.Millisecond, ratelimit.WithLogger(logger.NewTestLogger()))
	if err != nil {
		t.Fatal(err)
	}
	mockClient := &MockClient{limiter: gate}

	pool := NewWorkerPool(context.Background(), 5, mockClient, NewMockStorage(), logger.NewTestLogger())

	startTime := time.Now()
	results := runPool(t, pool, makeJobs(5))
	elapsed := time.Since(startTime)

	// five admissions at two per window need two full windows
	if elapsed < 400*time.Millisecond {
		t.Errorf("Workers outran the shared gate: %v", elapsed)
	}
	if len(results) != 5 {
		t.Errorf("Expected 5 results, got %d", len(results))
	}
	if gate.Stats().Throttled == 0 {
		t.Error("Expected the gate to throttle")
	}
}

func TestWorkerPoolDuplicateDetection(t *testing.T) {
	mockClient := &MockClient{}
	mockStorage := NewMockStorage()
	mockStorage.saved["query1.json"] = true
	mockStorage.saved["query3.json"] = true
	observer := &recordingObserver{}

	pool := NewWorkerPool(context.Background(), 2, mockClient, mockStorage, logger.NewTestLogger())
	pool.SetObserver(observer)
	results := runPool(t, pool, makeJobs(4))

	if len(results) != 4 {
		t.Errorf("Expected 4 results, got %d", len(results))
	}

	skipped := 0
	for _, result := range results {
		if result.Skipped {
			skipped++
		}
	}
	if skipped != 2 {
		t.Errorf("Expected 2 skipped results, got %d", skipped)
	}
	if mockClient.GetQueryCount() != 2 {
		t.Errorf("Expected 2 queries, got %d", mockClient.GetQueryCount())
	}
	if mockStorage.GetSavedCount() != 4 {
		t.Errorf("Expected 4 saved results, got %d", mockStorage.GetSavedCount())
	}
	if observer.started != 2 || observer.finished != 4 {
		t.Errorf("Expected 2 starts and 4 finishes, got %d and %d", observer.started, observer.finished)
	}
}

func TestWorkerPoolPause(t *testing.T) {
	mockClient := &MockClient{}
	observer := &recordingObserver{}
	observer.paused.Store(true)

	pool := NewWorkerPool(context.Background(), 1, mockClient, NewMockStorage(), logger.NewTestLogger())
	pool.SetObserver(observer)

	go func() {
		time.Sleep(300 * time.Millisecond)
		if mockClient.GetQueryCount() != 0 {
			t.Error("Queries ran while paused")
		}
		observer.paused.Store(false)
	}()

	results := runPool(t, pool, makeJobs(2))
	if len(results) != 2 || mockClient.GetQueryCount() != 2 {
		t.Errorf("Expected both queries after resume, got %d results and %d queries", len(results), mockClient.GetQueryCount())
	}
}

func TestWorkerPoolCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mockClient := &MockClient{queryDelay: time.Second}

	pool := NewWorkerPool(ctx, 2, mockClient, NewMockStorage(), logger.NewTestLogger())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := runPool(t, pool, makeJobs(2))
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Cancel should abort running queries")
	}
	for _, result := range results {
		if result.Success {
			t.Error("Cancelled queries should not succeed")
		}
	}
}

func TestWorkerPoolCancelWhilePaused(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mockClient := &MockClient{}
	observer := &recordingObserver{}
	observer.paused.Store(true)

	pool := NewWorkerPool(ctx, 1, mockClient, NewMockStorage(), logger.NewTestLogger())
	pool.SetObserver(observer)

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	results := runPool(t, pool, makeJobs(2))
	if len(results) != 2 || mockClient.GetQueryCount() != 0 {
		t.Fatalf("Expected 2 unrun results, got %d results and %d queries", len(results), mockClient.GetQueryCount())
	}
	for _, result := range results {
		if !errors.Is(result.Error, context.Canceled) {
			t.Errorf("Expected %s to fail with context.Canceled, got %v", result.Job.Name, result.Error)
		}
	}
	if observer.started != 0 || observer.finished != 2 {
		t.Errorf("Expected 0 started and 2 finished, got %d and %d", observer.started, observer.finished)
	}
}

func TestObservers(t *testing.T) {
	if Observers() != nil || Observers(nil, nil) != nil {
		t.Error("Expected nil observer when nothing is combined")
	}

	a := &recordingObserver{}
	if Observers(nil, a) != Observer(a) {
		t.Error("Expected a single observer to be returned as is")
	}

	b := &recordingObserver{}
	combined := Observers(a, nil, b)
	combined.QueryStarted(Job{Name: "q"})
	combined.QueryFinished(Result{Job: Job{Name: "q"}})
	combined.QueryFinished(Result{Job: Job{Name: "q"}})

	for i, o := range []*recordingObserver{a, b} {
		if o.started != 1 || o.finished != 2 {
			t.Errorf("Observer %d: expected 1 start and 2 finishes, got %d and %d", i, o.started, o.finished)
		}
	}

	pauser, ok := combined.(Pauser)
	if !ok {
		t.Fatal("Expected combined observer to be a Pauser")
	}
	if pauser.IsPaused() {
		t.Error("Expected not paused")
	}
	b.paused.Store(true)
	if !pauser.IsPaused() {
		t.Error("Expected paused while a member is paused")
	}
}
