package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"spacetrack/pkg/logger"
)

// Run executes every query of f on a pool of workers and returns the
// results in file order. Queries not started before ctx ends are reported
// with ctx's error.
func Run(
	ctx context.Context,
	f *File,
	workers int,
	client Querier,
	store ResultStorage,
	observer Observer,
	log logger.Logger,
) ([]Result, error) {
	pool := NewWorkerPool(ctx, workers, client, store, log)
	if observer != nil {
		pool.SetObserver(observer)
	}
	pool.Start()

	results := make([]Result, len(f.Queries))
	delivered := make([]bool, len(f.Queries))

	all, buildErrs := f.Jobs()
	jobs := make([]Job, 0, len(all))
	for _, job := range all {
		if err, ok := buildErrs[job.Index]; ok {
			results[job.Index] = Result{Job: job, Error: err}
			delivered[job.Index] = true
			if observer != nil {
				observer.QueryFinished(results[job.Index])
			}
			continue
		}
		jobs = append(jobs, job)
	}

	go func() {
		for _, job := range jobs {
			if err := pool.Submit(job); err != nil {
				break
			}
		}
		pool.Stop()
	}()

	for r := range pool.Results() {
		results[r.Job.Index] = r
		delivered[r.Job.Index] = true
	}

	for i := range results {
		if !delivered[i] {
			results[i] = Result{
				Job:   Job{Index: i, Name: f.Queries[i].Name},
				Error: fmt.Errorf("not started: %w", ctx.Err()),
			}
			if observer != nil {
				observer.QueryFinished(results[i])
			}
		}
	}

	return results, ctx.Err()
}

// Summary counts the outcomes of a run.
type Summary struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Bytes     int64
	Duration  time.Duration
}

// Summarize totals results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Skipped:
			s.Skipped++
		case r.Success:
			s.Succeeded++
		default:
			s.Failed++
		}
		s.Bytes += int64(r.Size)
		s.Duration += r.Duration
	}
	return s
}

// RenderTable renders results as a table with a totals footer.
func RenderTable(results []Result) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"Name", "Class", "Format", "Status", "Size", "Time", "Output"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Size", Align: text.AlignRight},
		{Name: "Time", Align: text.AlignRight},
		{Name: "Output", WidthMax: 60},
	})

	for _, r := range results {
		class, format := "", ""
		if r.Job.Query != nil {
			class = r.Job.Query.Entity()
			format = string(r.Job.Query.GetFormat())
		}
		t.AppendRow(table.Row{
			r.Job.Name,
			class,
			format,
			statusLabel(r),
			formatSize(int64(r.Size)),
			r.Duration.Round(time.Millisecond).String(),
			outputLabel(r),
		})
	}

	s := Summarize(results)
	t.AppendFooter(table.Row{
		"",
		"",
		"",
		fmt.Sprintf("%d ok, %d skipped, %d failed", s.Succeeded, s.Skipped, s.Failed),
		formatSize(s.Bytes),
		"",
		"",
	})

	return t.Render()
}

func statusLabel(r Result) string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Success:
		return "ok"
	default:
		return "failed"
	}
}

func outputLabel(r Result) string {
	if r.Error != nil {
		return strings.ReplaceAll(r.Error.Error(), "\n", "; ")
	}
	return r.Path
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
