package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"spacetrack/internal/batch"
	"spacetrack/pkg/ratelimit"
)

// TUI is the full-screen batch dashboard. It satisfies batch.Observer and
// batch.Pauser, and Throttled is a ratelimit.ThrottleFunc.
type TUI struct {
	program *tea.Program
	model   *Model
}

var (
	_ batch.Observer = (*TUI)(nil)
	_ batch.Pauser   = (*TUI)(nil)
)

// NewTUI creates a dashboard for jobs
func NewTUI(jobs []batch.Job, workers int, statsFn func() ratelimit.Stats, opts ...tea.ProgramOption) *TUI {
	model := NewModel(jobs, workers, statsFn)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}

	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the program until the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Model returns the dashboard state
func (t *TUI) Model() *Model {
	return t.model
}

// QueryStarted implements batch.Observer
func (t *TUI) QueryStarted(job batch.Job) {
	t.Send(QueryStartMsg{Job: job})
}

// QueryFinished implements batch.Observer
func (t *TUI) QueryFinished(result batch.Result) {
	t.Send(QueryDoneMsg{Result: result})
}

// Throttled shows the wait on the gate panel
func (t *TUI) Throttled(_ context.Context, until time.Time) error {
	t.Send(ThrottleMsg{Until: until})
	return nil
}

// Finished tells the dashboard the batch is complete
func (t *TUI) Finished() {
	t.Send(FinishedMsg{})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}

// IsPaused returns whether queries are paused
func (t *TUI) IsPaused() bool {
	return t.model.IsPaused()
}
