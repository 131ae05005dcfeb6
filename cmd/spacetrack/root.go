package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"spacetrack/pkg/logger"
	"spacetrack/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	notify     bool
	quiet      bool
	identity   string
	baseURL    string
	maxCalls   int
	period     time.Duration
	binding    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "spacetrack",
	Short: "A rate-limited client for the Space-Track orbital catalog",
	Long: `spacetrack queries the Space-Track orbital catalog without tripping its
request limits.

Features:
  - Sliding-window rate gate shared by every request of a run
  - Lazy login with a single re-login on expired sessions
  - Query builder for every catalog class and output format
  - Concurrent batch runs from a YAML query file
  - Local HTTP proxy that serves queries through one session
  - Credential storage in the system keychain`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}

		// Don't show logo for certain commands
		switch cmd.Name() {
		case "version", "help", "query", "show":
			return
		}
		if !quiet {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	logger.Version = version

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.spacetrack.yaml or ~/.config/spacetrack/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notify, "notify", false, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().StringVarP(&identity, "identity", "u", "", "catalog account to use")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "catalog base URL")
	rootCmd.PersistentFlags().IntVar(&maxCalls, "max-calls", 0, "calls allowed per rate window")
	rootCmd.PersistentFlags().DurationVar(&period, "period", 0, "length of the rate window")
	rootCmd.PersistentFlags().StringVar(&binding, "binding", "", "rate gate binding (blocking, cooperative)")

	rootCmd.SetVersionTemplate(`spacetrack {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
