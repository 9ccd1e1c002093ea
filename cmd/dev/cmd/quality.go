package cmd

import (
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func TestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run unit tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Test()
			if err != nil {
				return fmt.Errorf("failed to run tests: %w", err)
			}
			return nil
		},
	}
}

func LintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Run linting",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Lint()
			if err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
}

// SmokeCmd runs the built cli against the mock adapter.
func SmokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "smoke",
		Short: "Run the built cli against the simulated sensor",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs := [][]string{
				{"--adapter", "mock", "read"},
				{"--adapter", "mock", "read", "--count", "1", "--yaml"},
				{"--adapter", "mock", "set", "led", "path"},
				{"--adapter", "mock", "set", "scan-interval", "100"},
			}
			for _, run := range runs {
				var out bytes.Buffer
				c := exec.CommandContext(cmd.Context(), binaryPath, run...)
				c.Stdout = &out
				c.Stderr = &out
				err := c.Run()
				if err != nil {
					return fmt.Errorf("%s %s failed: %w\n%s", binaryPath, strings.Join(run, " "), err, out.String())
				}
				slog.Info("smoke run passed", "args", strings.Join(run, " "))
			}
			return nil
		},
	}
}
