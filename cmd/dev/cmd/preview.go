package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// PreviewCmd opens the simulated panel window, optionally showing an image.
func PreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [image]",
		Short: "Show the simulated panel in a window",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scale, err := cmd.Flags().GetInt("scale")
			if err != nil {
				return fmt.Errorf("could not get scale flag: %w", err)
			}
			goArgs := append([]string{"run", "./cmd/glcd", "view", "--scale", fmt.Sprint(scale)}, args...)
			slog.Info("starting preview", "args", goArgs)
			run := exec.CommandContext(cmd.Context(), "go", goArgs...)
			run.Stdout = os.Stdout
			run.Stderr = os.Stderr
			if err := run.Run(); err != nil {
				return fmt.Errorf("preview failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Int("scale", 4, "window pixels per panel pixel")
	return cmd
}
