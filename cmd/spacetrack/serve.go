package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"spacetrack/internal/server"
	"spacetrack/pkg/logger"
	"spacetrack/pkg/ui"
)

var (
	serveHost string
	servePort int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve catalog queries over local HTTP",
	Long: `Start a local HTTP proxy in front of the catalog. Every request goes
through one logged-in session and one rate gate, so several local tools
can share an account without tripping its limits.

Endpoints:
  GET /query?class=gp&NORAD_CAT_ID=25544&format=3le
  GET /query/{class}?...
  GET /stats     rate gate counters
  GET /health`,
	Example: `  spacetrack serve --port 8080
  curl 'http://127.0.0.1:8080/query/gp?NORAD_CAT_ID=25544&format=3le'`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "address to listen on")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{
		"host": serveHost,
		"port": servePort,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.GetLogger()

	s, err := newSession(cfg, log)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signalContext()
	defer stop()

	srv := server.New(cfg.Server, s.client, s.gate, log)
	if !quiet {
		ui.PrintInfo("Listening", "http://"+srv.Addr())
		ui.PrintInfo("Rate", fmt.Sprintf("%d calls / %s", cfg.RateLimit.MaxCalls, cfg.RateLimit.Period))
	}

	return srv.Run(ctx)
}
