package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"spacetrack/internal/batch"
	"spacetrack/pkg/checkpoint"
	"spacetrack/pkg/logger"
	"spacetrack/pkg/storage"
	"spacetrack/pkg/ui"
	"spacetrack/pkg/ui/tui"
)

var (
	// Batch flags
	batchWorkers   int
	batchOutput    string
	batchOverwrite bool
	batchTUI       bool
	batchResume    bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run every query of a batch file",
	Long: `Run the named queries of a YAML batch file on a pool of workers and
save each response to the output directory as <name>.<format>.

All workers share one session and one rate gate, so the run never exceeds
the configured calls per window. Queries whose result file already exists
are skipped unless --overwrite is given. Progress is checkpointed; after an
interrupted or partly failed run, --resume runs only the queries that have
not finished yet.

Batch file format:
  queries:
    - name: iss
      class: gp
      where:
        NORAD_CAT_ID: "25544"
      format: 3le
    - name: recent_decays
      class: decay
      where:
        DECAY_EPOCH: ">now-7"
      order_by: [DECAY_EPOCH desc]`,
	Example: `  spacetrack batch queries.yaml
  spacetrack batch queries.yaml --workers 8 --output ./catalog --tui`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "number of concurrent workers")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "output directory")
	batchCmd.Flags().BoolVar(&batchOverwrite, "overwrite", false, "overwrite existing result files")
	batchCmd.Flags().BoolVar(&batchTUI, "tui", false, "show the interactive dashboard")
	batchCmd.Flags().BoolVar(&batchResume, "resume", false, "skip queries finished by an earlier run")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file, err := batch.LoadFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(map[string]interface{}{
		"workers": batchWorkers,
		"output":  batchOutput,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if batchOverwrite {
		cfg.Output.OverwriteExisting = true
	}

	log := logger.GetLogger()
	if batchTUI && cfg.Logging.File == "" {
		// console lines would tear the dashboard
		log = logger.NewNopLogger()
	}

	s, err := newSession(cfg, log)
	if err != nil {
		return err
	}
	defer s.close()

	store, err := storage.NewManager(cfg.Output.Directory, cfg.Output.OverwriteExisting)
	if err != nil {
		return fmt.Errorf("failed to prepare output directory: %w", err)
	}

	journal, cp, file := openCheckpoint(args[0], file, log)
	if len(file.Queries) == 0 {
		ui.PrintSuccess("Every query already finished, nothing to run")
		if journal != nil {
			_ = journal.Delete()
		}
		return nil
	}
	var recorder batch.Observer
	if journal != nil {
		recorder = checkpoint.NewRecorder(journal, cp)
	}

	ctx, stop := signalContext()
	defer stop()

	if !quiet {
		ui.PrintInfo("Batch", filepath.Base(args[0]))
		ui.PrintInfo("Queries", fmt.Sprint(len(file.Queries)))
		ui.PrintInfo("Workers", fmt.Sprint(cfg.Batch.Workers))
		ui.PrintInfo("Rate", fmt.Sprintf("%d calls / %s", cfg.RateLimit.MaxCalls, cfg.RateLimit.Period))
		ui.PrintInfo("Output", store.GetOutputDir())
	}

	var results []batch.Result
	if batchTUI {
		results, err = runBatchDashboard(ctx, s, file, store, recorder, log)
	} else {
		results, err = runBatchPlain(ctx, s, file, store, recorder, args[0], log)
	}

	fmt.Println(batch.RenderTable(results))

	summary := batch.Summarize(results)
	message := fmt.Sprintf("%d ok, %d skipped, %d failed", summary.Succeeded, summary.Skipped, summary.Failed)
	s.notifyDone("Batch finished", message, summary.Failed > 0)

	if journal != nil {
		if err == nil && summary.Failed == 0 {
			if derr := journal.Delete(); derr != nil {
				log.WithError(derr).Warn("Failed to remove checkpoint")
			}
		} else if !quiet {
			ui.PrintWarning("Run again with --resume to skip the finished queries")
		}
	}

	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d queries failed", summary.Failed, len(results))
	}
	if !quiet {
		ui.PrintSuccess("Batch completed: " + message)
	}
	return nil
}

func runBatchPlain(
	ctx context.Context,
	s *session,
	file *batch.File,
	store batch.ResultStorage,
	recorder batch.Observer,
	label string,
	log logger.Logger,
) ([]batch.Result, error) {
	observer := recorder
	if !quiet {
		display := ui.NewProgressDisplay(os.Stderr, filepath.Base(label), len(file.Queries), s.cfg.Logging.Level == "debug")
		s.throttle.Add(display.Throttled)
		observer = batch.Observers(display, recorder)
		defer display.Complete()
	}

	return batch.Run(ctx, file, s.cfg.Batch.Workers, s.client, store, observer, log)
}

// runBatchDashboard runs the batch behind the dashboard. Quitting the
// dashboard cancels the queries still waiting.
func runBatchDashboard(
	ctx context.Context,
	s *session,
	file *batch.File,
	store batch.ResultStorage,
	recorder batch.Observer,
	log logger.Logger,
) ([]batch.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs, _ := file.Jobs()
	dash := tui.NewTUI(jobs, s.cfg.Batch.Workers, s.gate.Stats)
	s.throttle.Add(dash.Throttled)

	var (
		results []batch.Result
		runErr  error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		results, runErr = batch.Run(ctx, file, s.cfg.Batch.Workers, s.client, store, batch.Observers(dash, recorder), log)
		dash.Finished()
	}()

	uiErr := dash.Start()
	cancel()
	<-done

	if uiErr != nil {
		return results, fmt.Errorf("dashboard failed: %w", uiErr)
	}
	if errors.Is(runErr, context.Canceled) {
		return results, errors.New("batch stopped before all queries ran")
	}
	return results, runErr
}

// openCheckpoint returns the run journal for path and the queries still to
// run. Without --resume, or when the file changed since the checkpoint, the
// journal starts over. A nil journal means progress is not recorded.
func openCheckpoint(path string, file *batch.File, log logger.Logger) (*checkpoint.Manager, *checkpoint.Checkpoint, *batch.File) {
	journal, err := checkpoint.NewManager(path)
	if err != nil {
		log.WithError(err).Warn("Checkpoints disabled")
		return nil, nil, file
	}
	digest, err := checkpoint.FileDigest(path)
	if err != nil {
		log.WithError(err).Warn("Checkpoints disabled")
		return nil, nil, file
	}

	if batchResume {
		cp, err := journal.Load()
		switch {
		case err != nil:
			log.WithError(err).Warn("Ignoring unreadable checkpoint")
		case cp == nil:
			log.Info("No checkpoint found, running every query")
		case !cp.Matches(digest):
			ui.PrintWarning("Batch file changed since the last run, starting over")
		default:
			rest := cp.Remaining(file)
			if !quiet {
				ui.PrintInfo("Resuming", fmt.Sprintf("%d of %d queries already done", len(file.Queries)-len(rest.Queries), len(file.Queries)))
			}
			return journal, cp, rest
		}
	}

	cp, err := journal.Create(path, digest, len(file.Queries))
	if err != nil {
		log.WithError(err).Warn("Checkpoints disabled")
		return nil, nil, file
	}
	return journal, cp, file
}
