package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

// IntegrationTag guards the tests that need a wired panel.
const IntegrationTag = "integration"

// gate wraps one devtool quality target in a command.
func gate(use, short, what string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := run(); err != nil {
				return fmt.Errorf("failed to run %s: %w", what, err)
			}
			return nil
		},
	}
}

func TestCmd() *cobra.Command {
	return gate("test", "Run unit tests against the simulated panel", "tests", test.Test)
}

func LintCmd() *cobra.Command {
	return gate("lint", "Run linters", "linting", test.Lint)
}

// IntegrationTestCmd runs the integration tagged tests against the panel
// described by a glcd config file.
func IntegrationTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration-test",
		Short: "Run integration tests against a wired panel",
		Long: `Run the tests built with the integration tag. They open the backend named
in the config file (GLCD_CONFIG or --config) and check display on/off and
status round-trips on the real panel. A config with "backend: sim" runs
them against the simulator.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %w", err)
			}
			if path == "" {
				path = os.Getenv("GLCD_CONFIG")
			}
			if path == "" {
				return errors.New("integration tests need a panel config, set --config or GLCD_CONFIG")
			}
			path, err = filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("could not resolve config path: %w", err)
			}
			slog.Info("running integration tests", "config", path)
			run := exec.CommandContext(cmd.Context(), "go", "test", "-count=1", "-v", "-tags", IntegrationTag, "./...")
			run.Env = append(os.Environ(), "GLCD_CONFIG="+path)
			run.Stdout = os.Stdout
			run.Stderr = os.Stderr
			if err := run.Run(); err != nil {
				return fmt.Errorf("failed to run integration tests: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("config", "", "panel config file")
	return cmd
}
