package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"spacetrack/internal/batch"
	"spacetrack/pkg/ratelimit"
)

// Message types for the TUI

// QueryStartMsg is sent when a worker picks up a query
type QueryStartMsg struct {
	Job batch.Job
}

// QueryDoneMsg is sent when a query finishes, successfully or not
type QueryDoneMsg struct {
	Result batch.Result
}

// GateMsg carries fresh gate counters
type GateMsg struct {
	Stats ratelimit.Stats
}

// ThrottleMsg is sent when the gate starts holding callers
type ThrottleMsg struct {
	Until time.Time
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// FinishedMsg is sent once the whole batch has run
type FinishedMsg struct{}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.mu.Unlock()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.statsFn != nil {
			m.UpdateGate(m.statsFn())
		}
		return m, tickCmd()

	case QueryStartMsg:
		m.StartQuery(msg.Job.Index)
		m.AddLogMessage("INFO", "Querying "+msg.Job.Name)
		return m, nil

	case QueryDoneMsg:
		m.FinishQuery(msg.Result)
		switch {
		case msg.Result.Skipped:
			m.AddLogMessage("INFO", "Skipped "+msg.Result.Job.Name+": already saved")
		case msg.Result.Success:
			m.AddLogMessage("SUCCESS", "Saved "+msg.Result.Job.Name+" ("+FormatBytes(int64(msg.Result.Size))+")")
		default:
			m.AddLogMessage("ERROR", "Failed "+msg.Result.Job.Name+": "+msg.Result.Error.Error())
		}
		return m, nil

	case GateMsg:
		m.UpdateGate(msg.Stats)
		return m, nil

	case ThrottleMsg:
		m.Throttled(msg.Until)
		m.AddLogMessage("WARN", "Rate limit reached, resuming at "+msg.Until.Format("15:04:05"))
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil

	case FinishedMsg:
		m.SetFinished()
		m.AddLogMessage("SUCCESS", "Batch complete, press q to exit")
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "p", "P":
		m.mu.Lock()
		m.isPaused = !m.isPaused
		if m.isPaused {
			m.addLogLocked("WARN", "Queries paused by user")
		} else {
			m.addLogLocked("INFO", "Queries resumed by user")
		}
		m.mu.Unlock()
		return m, nil

	case "?":
		m.mu.Lock()
		m.showHelp = !m.showHelp
		m.mu.Unlock()
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
