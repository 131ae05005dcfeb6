package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"spacetrack/internal/batch"
	"spacetrack/pkg/ratelimit"
)

// QueryState represents the state of a batch query
type QueryState int

const (
	QueryPending QueryState = iota
	QueryRunning
	QueryDone
	QuerySkipped
	QueryFailed
)

// QueryItem is one row of the dashboard
type QueryItem struct {
	Index     int
	Name      string
	Entity    string
	Format    string
	State     QueryState
	StartTime time.Time
	Duration  time.Duration
	Size      int64
	Path      string
	Error     error
}

// Model holds the dashboard state. All methods take the model's lock, so
// the TUI front end may read it from worker goroutines.
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	items   []*QueryItem
	workers int

	totalSize        int64
	sessionStartTime time.Time
	finished         bool

	// gate
	gateStats      ratelimit.Stats
	statsFn        func() ratelimit.Stats
	throttledUntil time.Time
	recentStarts   []time.Time

	width          int
	height         int
	showHelp       bool
	isPaused       bool
	logMessages    []LogMessage
	maxLogMessages int

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a dashboard for jobs. statsFn, if set, is polled on
// every tick for the gate counters.
func NewModel(jobs []batch.Job, workers int, statsFn func() ratelimit.Stats) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	m := &Model{
		spinner:          s,
		progress:         p,
		workers:          workers,
		statsFn:          statsFn,
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
	for _, job := range jobs {
		m.AddQuery(job)
	}
	if statsFn != nil {
		m.gateStats = statsFn()
	}
	return m
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// AddQuery appends a pending query. Rows are addressed by job index.
func (m *Model) AddQuery(job batch.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &QueryItem{Index: job.Index, Name: job.Name, State: QueryPending}
	if job.Query != nil {
		item.Entity = job.Query.Entity()
		item.Format = string(job.Query.GetFormat())
	}
	for len(m.items) <= job.Index {
		m.items = append(m.items, nil)
	}
	m.items[job.Index] = item
}

func (m *Model) item(index int) *QueryItem {
	if index < 0 || index >= len(m.items) {
		return nil
	}
	return m.items[index]
}

// StartQuery marks a query as running
func (m *Model) StartQuery(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item := m.item(index); item != nil {
		item.State = QueryRunning
		item.StartTime = time.Now()
		m.recentStarts = append(m.recentStarts, item.StartTime)
	}
}

// FinishQuery records the outcome of a query
func (m *Model) FinishQuery(result batch.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.item(result.Job.Index)
	if item == nil {
		return
	}
	item.Duration = result.Duration
	item.Size = int64(result.Size)
	item.Path = result.Path
	item.Error = result.Error

	switch {
	case result.Skipped:
		item.State = QuerySkipped
	case result.Success:
		item.State = QueryDone
		m.totalSize += item.Size
	default:
		item.State = QueryFailed
	}
}

// UpdateGate replaces the gate counters
func (m *Model) UpdateGate(stats ratelimit.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateStats = stats
}

// Throttled records that the gate is holding callers until until
func (m *Model) Throttled(until time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if until.After(m.throttledUntil) {
		m.throttledUntil = until
	}
}

// SetFinished marks the batch as complete
func (m *Model) SetFinished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = true
}

// IsPaused reports whether the user paused the workers
func (m *Model) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLogLocked(level, message)
}

func (m *Model) addLogLocked(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Counts tallies the rows by state
type Counts struct {
	Pending int
	Running int
	Done    int
	Skipped int
	Failed  int
}

// Total is the number of queries
func (c Counts) Total() int {
	return c.Pending + c.Running + c.Done + c.Skipped + c.Failed
}

// Finished is the number of queries no longer pending or running
func (c Counts) Finished() int {
	return c.Done + c.Skipped + c.Failed
}

// GetCounts returns the rows tallied by state
func (m *Model) GetCounts() Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countsLocked()
}

func (m *Model) countsLocked() Counts {
	var c Counts
	for _, item := range m.items {
		if item == nil {
			continue
		}
		switch item.State {
		case QueryPending:
			c.Pending++
		case QueryRunning:
			c.Running++
		case QueryDone:
			c.Done++
		case QuerySkipped:
			c.Skipped++
		case QueryFailed:
			c.Failed++
		}
	}
	return c
}

// GetQueries returns copies of the rows in state, in file order
func (m *Model) GetQueries(state QueryState) []QueryItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queriesLocked(state)
}

func (m *Model) queriesLocked(state QueryState) []QueryItem {
	var out []QueryItem
	for _, item := range m.items {
		if item != nil && item.State == state {
			out = append(out, *item)
		}
	}
	return out
}

// Progress is the finished fraction of the batch
func (m *Model) Progress() float64 {
	c := m.GetCounts()
	if c.Total() == 0 {
		return 0
	}
	return float64(c.Finished()) / float64(c.Total())
}

// windowUsageLocked counts query starts inside the gate's window and prunes
// older ones.
func (m *Model) windowUsageLocked(now time.Time) int {
	period := m.gateStats.Period
	if period <= 0 {
		return 0
	}
	cutoff := now.Add(-period)
	i := 0
	for i < len(m.recentStarts) && !m.recentStarts[i].After(cutoff) {
		i++
	}
	m.recentStarts = m.recentStarts[i:]
	return len(m.recentStarts)
}

// GetETA estimates the remaining time from the average query duration
func (m *Model) GetETA() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.countsLocked()
	if c.Finished() == 0 || c.Pending+c.Running == 0 {
		return 0
	}
	perQuery := time.Since(m.sessionStartTime) / time.Duration(c.Finished())
	return perQuery * time.Duration(c.Pending+c.Running)
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatRate formats a query rate
func FormatRate(perMinute float64) string {
	return fmt.Sprintf("%.1f/min", perMinute)
}
