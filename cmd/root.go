package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"survey-capture/infrastructure/config"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "survey-capture",
	Short: "Run webcam-monitored survey response sessions",
	Long: `survey-capture runs an interactive survey response session with live
webcam monitoring:

  - Record a continuous video of the full session
  - Score face visibility from the camera while each question is answered
  - Capture a snapshot at the moment each question is answered
  - Submit answers, snapshots, and the session video to the survey service

Example:
  survey-capture respond --survey 3`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = "config/config.yaml"
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		// Config file is optional for some commands (like help)
		// Commands that need config will check and error appropriately
		cfg = nil
	}
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

// newLogger builds the application logger. Session progress goes to the
// terminal through prompts, so log output goes to stderr.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
