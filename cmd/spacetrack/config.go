package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"spacetrack/pkg/config"
	"spacetrack/pkg/logger"
	"spacetrack/pkg/ratelimit"
	"spacetrack/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage spacetrack configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (SPACETRACK_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the defaults",
	Long: `Write every option with its default value to a configuration file.

The file is created as '.spacetrack.yaml' in the current directory unless
a different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the configuration after merging every source. The password is
masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration and check it:
  - YAML syntax and value ranges
  - Rate gate binding
  - Output and log directories can be created
  - Credentials are available`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".spacetrack.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(os.Stderr, "\nNext steps:")
	fmt.Fprintln(os.Stderr, "1. Save your login with 'spacetrack auth login'")
	fmt.Fprintln(os.Stderr, "2. Run 'spacetrack config validate' to check the configuration")
	fmt.Fprintln(os.Stderr, "3. Query the catalog with 'spacetrack query gp --where NORAD_CAT_ID=25544'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	display := *cfg
	if display.SpaceTrack.Password != "" {
		display.SpaceTrack.Password = "********"
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var warnings []string
	var problems []error

	if _, err := ratelimit.ParseBindingKind(cfg.RateLimit.Binding); err != nil {
		problems = append(problems, err)
	}
	if cfg.Output.Directory != "" {
		if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create output directory: %w", err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}

	resolveCredentials(cfg, logger.NewNopLogger())
	if !cfg.HasCredentials() {
		warnings = append(warnings, "no credentials configured, run 'spacetrack auth login'")
	}
	if cfg.RateLimit.MaxCalls > 30 && cfg.RateLimit.Period <= time.Minute {
		warnings = append(warnings, "more than 30 calls per minute exceeds the catalog's published limit")
	}

	for _, w := range warnings {
		ui.PrintWarning("⚠️  " + w)
	}
	if err := errors.Join(problems...); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	ui.PrintSuccess("✅ Configuration is valid")
	return nil
}
