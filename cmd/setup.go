package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"survey-capture/infrastructure/config"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create configuration file interactively",
	Long: `Prompts for configuration values and creates config.yaml.

This command guides you through setting up the survey service endpoint,
the camera device, and the face detection model.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	return RunSetupWithPrompter(DefaultPrompter, "config/config.yaml")
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(prompter Prompter, configPath string) error {
	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm("config.yaml already exists. Overwrite?", false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !overwrite {
			fmt.Println("Setup cancelled.")
			return nil
		}
	}

	fmt.Println("Welcome to survey-capture setup!")
	fmt.Println()

	cfg := &config.Config{}

	if err := promptAPI(prompter, cfg); err != nil {
		return err
	}
	if err := promptCamera(prompter, cfg); err != nil {
		return err
	}
	if err := promptDetection(prompter, cfg); err != nil {
		return err
	}

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Save configuration
	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println()
	fmt.Printf("Configuration saved to %s\n", configPath)
	return nil
}

func promptAPI(prompter Prompter, cfg *config.Config) error {
	baseURL, err := prompter.Input("Base URL of the survey service?", "http://localhost:8000")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if baseURL == "" {
		return fmt.Errorf("service base URL is required")
	}
	cfg.API.BaseURL = baseURL
	return nil
}

func promptCamera(prompter Prompter, cfg *config.Config) error {
	device, err := prompter.Input("Camera device ID?", "0")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if device != "" {
		id, err := strconv.Atoi(device)
		if err != nil {
			return fmt.Errorf("camera device ID must be a number: %q", device)
		}
		cfg.Camera.DeviceID = id
	}
	return nil
}

func promptDetection(prompter Prompter, cfg *config.Config) error {
	cascade, err := prompter.Input("Path to the face cascade file?", "haarcascade_frontalface_default.xml")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if cascade == "" {
		return fmt.Errorf("cascade file is required")
	}
	cfg.Detection.CascadeFile = cascade
	return nil
}
