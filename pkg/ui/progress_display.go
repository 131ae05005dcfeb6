package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"spacetrack/internal/batch"
)

// ProgressDisplay prints a one-line batch progress meter. It is the plain
// terminal counterpart of the full-screen dashboard and satisfies
// batch.Observer.
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	label     string
	total     int
	finished  int
	failed    int
	skipped   int
	bytes     int64
	current   string
	startTime time.Time
	throttled time.Time
	isDebug   bool
}

// NewProgressDisplay creates a meter for total queries. In debug mode every
// query gets its own line instead of the meter.
func NewProgressDisplay(out io.Writer, label string, total int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		label:     label,
		total:     total,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// QueryStarted implements batch.Observer
func (p *ProgressDisplay) QueryStarted(job batch.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = job.Name
	if !p.isDebug {
		p.printProgress()
	}
}

// QueryFinished implements batch.Observer
func (p *ProgressDisplay) QueryFinished(result batch.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.finished++
	switch {
	case result.Skipped:
		p.skipped++
	case result.Success:
		p.bytes += int64(result.Size)
	default:
		p.failed++
	}
	if p.current == result.Job.Name {
		p.current = ""
	}

	if !p.isDebug {
		p.printProgress()
		return
	}
	if result.Error != nil {
		fmt.Fprintf(p.out, "%s %s • %v\n", Red("✗"), result.Job.Name, result.Error)
	} else {
		fmt.Fprintf(p.out, "%s %s • %s • %s\n", Green("✓"), result.Job.Name, formatBytes(int64(result.Size)), Dim(result.Path))
	}
}

// Throttled notes that the gate holds queries until until. It has the
// shape of ratelimit.ThrottleFunc.
func (p *ProgressDisplay) Throttled(_ context.Context, until time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.throttled = until
	if p.isDebug {
		fmt.Fprintf(p.out, "%s Rate limit reached. Waiting %s...\n",
			Yellow("⚠"), formatDuration(time.Until(until)))
		return nil
	}
	p.printProgress()
	return nil
}

// printProgress redraws the meter in place
func (p *ProgressDisplay) printProgress() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.finished) / elapsed.Minutes()
	}

	progress := 0.0
	if p.total > 0 {
		progress = float64(p.finished) / float64(p.total)
	}
	const barWidth = 20
	filled := int(progress * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %.1f/min • %s • %s",
		Cyan(p.label),
		bar,
		p.finished,
		p.total,
		rate,
		formatBytes(p.bytes),
		p.eta(elapsed),
	)

	if wait := time.Until(p.throttled); wait > 0 {
		line += " • " + Yellow("waiting "+formatDuration(wait))
	} else if p.current != "" {
		line += " • " + p.current
	}
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d errors", p.failed))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete prints the closing summary
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	fmt.Fprintf(p.out, "\n\n%s Ran %d queries from %s\n", Green("✓"), p.finished, p.label)
	fmt.Fprintf(p.out, "  %s %s in %s\n", Dim("•"), formatBytes(p.bytes), formatDuration(elapsed))
	if p.skipped > 0 {
		fmt.Fprintf(p.out, "  %s %d already saved\n", Dim("•"), p.skipped)
	}
	if p.failed > 0 {
		fmt.Fprintf(p.out, "  %s %d queries failed\n", Dim("•"), p.failed)
	}
}

// eta estimates time remaining
func (p *ProgressDisplay) eta(elapsed time.Duration) string {
	if p.finished == 0 {
		return "calculating..."
	}
	remaining := p.total - p.finished
	if remaining <= 0 {
		return "done"
	}
	perQuery := elapsed / time.Duration(p.finished)
	return formatDuration(perQuery * time.Duration(remaining))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
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
