package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderLogo())
	sections = append(sections, m.renderProgress())

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLeftColumn(),
		"  ",
		m.renderRightColumn(),
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderLogo() string {
	logo := `
╔═══════════════════════════════════════════════════════╗
║  ▄▀▀ █▀▄ ▄▀▄ ▄▀▀ ██▀ ▀█▀ █▀▄ ▄▀▄ ▄▀▀ █▄▀              ║
║  ▄██ █▀  █▀█ ▀▄▄ █▄▄  █  █▀▄ █▀█ ▀▄▄ █ █              ║
║         ORBITAL CATALOG BATCH CONSOLE                 ║
╚═══════════════════════════════════════════════════════╝`

	return logoStyle.Width(m.width).Render(logo)
}

// renderProgress renders the overall batch progress bar
func (m *Model) renderProgress() string {
	c := m.countsLocked()
	pct := 0.0
	if c.Total() > 0 {
		pct = float64(c.Finished()) / float64(c.Total())
	}

	m.progress.Width = m.width - 30
	if m.progress.Width < 10 {
		m.progress.Width = 10
	}

	label := fmt.Sprintf(" %d/%d queries ", c.Finished(), c.Total())
	if m.finished {
		label = successStyle.Render(label)
	} else {
		label = statsValueStyle.Render(label)
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, m.progress.ViewAs(pct), label)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderRunningPanel(width),
		m.renderQueuePanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderGatePanel(width),
		m.renderLogsPanel(width),
	)
}

// renderStatsPanel renders the statistics panel
func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" BATCH STATS ")

	elapsed := time.Since(m.sessionStartTime)
	c := m.countsLocked()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(c.Done) / elapsed.Minutes()
	}

	eta := time.Duration(0)
	if c.Finished() > 0 && c.Pending+c.Running > 0 {
		eta = elapsed / time.Duration(c.Finished()) * time.Duration(c.Pending+c.Running)
	}

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Session Time:"), statsValueStyle.Render(formatDuration(elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Workers:"), statsValueStyle.Render(fmt.Sprintf("%d", m.workers))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Saved:"), successStyle.Render(fmt.Sprintf("%d", c.Done))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Skipped:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Skipped))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprintf("%d", c.Failed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Total Size:"), statsValueStyle.Render(FormatBytes(m.totalSize))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Rate:"), speedStyle.Render(FormatRate(rate))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("ETA:"), statsValueStyle.Render(formatDuration(eta))),
	}

	if m.isPaused {
		stats = append(stats, warningStyle.Render("⏸  PAUSED"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

// renderRunningPanel lists the queries in flight
func (m *Model) renderRunningPanel(width int) string {
	title := titleStyle.Render(" RUNNING ")

	running := m.queriesLocked(QueryRunning)
	if len(running) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("No queries in flight")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	var rows []string
	for _, item := range running {
		rows = append(rows, fmt.Sprintf("%s %s %s %s",
			m.spinner.View(),
			queueItemActiveStyle.Render(item.Name),
			lipgloss.NewStyle().Foreground(dimWhite).Render(item.Entity+"/"+item.Format),
			speedStyle.Render(formatDuration(time.Since(item.StartTime))),
		))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

// renderQueuePanel renders the pending and finished queries
func (m *Model) renderQueuePanel(width int) string {
	title := titleStyle.Render(" QUERY QUEUE ")

	pending := m.queriesLocked(QueryPending)
	done := append(m.queriesLocked(QueryDone), m.queriesLocked(QuerySkipped)...)
	failed := m.queriesLocked(QueryFailed)

	var items []string

	if n := len(pending); n > 0 {
		items = append(items, warningStyle.Render(fmt.Sprintf("⏳ %d pending", n)))
		for i := 0; i < 3 && i < n; i++ {
			items = append(items, queueItemStyle.Render("• "+pending[i].Name))
		}
		if n > 3 {
			items = append(items, lipgloss.NewStyle().Foreground(dimWhite).Render(fmt.Sprintf("  ... and %d more", n-3)))
		}
	}

	if n := len(done); n > 0 {
		items = append(items, "", successStyle.Render(fmt.Sprintf("✓ %d finished", n)))
		for i := max(0, n-3); i < n; i++ {
			items = append(items, queueItemCompletedStyle.Render("✓ "+done[i].Name))
		}
	}

	if n := len(failed); n > 0 {
		items = append(items, "", errorStyle.Render(fmt.Sprintf("✗ %d failed", n)))
		for i := max(0, n-3); i < n; i++ {
			items = append(items, queueItemStyle.Render("✗ "+failed[i].Name))
		}
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

// renderGatePanel renders the sliding window usage and gate counters
func (m *Model) renderGatePanel(width int) string {
	title := titleStyle.Render(" RATE GATE ")

	st := m.gateStats
	used := m.windowUsageLocked(time.Now())
	usage := 0.0
	if st.MaxCalls > 0 {
		usage = float64(used) / float64(st.MaxCalls) * 100
	}
	if usage > 100 {
		usage = 100
	}

	barWidth := width - 8
	if barWidth < 1 {
		barWidth = 1
	}
	filled := int(usage * float64(barWidth) / 100)
	barStyle := GetRateLimitStyle(usage)
	bar := barStyle.Render(strings.Repeat("█", filled)) +
		progressEmptyStyle.Render(strings.Repeat("░", barWidth-filled))

	content := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Window:"),
			statsValueStyle.Render(fmt.Sprintf("%d calls / %s", st.MaxCalls, st.Period))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Recent:"),
			barStyle.Render(fmt.Sprintf("%d/%d (%.0f%%)", used, st.MaxCalls, usage))),
		bar,
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Admitted:"), statsValueStyle.Render(fmt.Sprintf("%d", st.Admitted))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Throttled:"), statsValueStyle.Render(fmt.Sprintf("%d", st.Throttled))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Waited:"), statsValueStyle.Render(formatDuration(st.Waited))),
	}

	if wait := time.Until(m.throttledUntil); wait > 0 {
		content = append(content, warningStyle.Render("⏳ resuming in "+formatDuration(wait)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

// renderLogsPanel renders the logs panel
func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" SYSTEM LOGS ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))

		msg := log.Message
		if maxLen := width - 25; maxLen > 3 && len(msg) > maxLen {
			msg = msg[:maxLen-3] + "..."
		}

		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(msg)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := m.height - 35
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `
  Navigation:
    q/Q      - Quit (running queries are cancelled)
    p/P      - Pause/Resume workers
    ctrl+l   - Clear logs
    ?        - Toggle this help

  Status Indicators:
    ` + successStyle.Render("Green") + `    - Saved/Healthy
    ` + warningStyle.Render("Orange") + `   - Pending/Throttled
    ` + errorStyle.Render("Red") + `      - Failed/Window full

  Icons:
    ⏳       - Pending query or gate wait
    ✓        - Saved or already on disk
    ✗        - Failed query
    ⏸        - Paused
`

	return panelStyle.Width(m.width).Render(help)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
