package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

func ChangelogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Update CHANGELOG.md from conventional commits",
		Long: `Update CHANGELOG.md with git-chglog.

Commits are expected as <type>(<scope>): <description>, e.g.
  feat(proximity): strict validation of settings
  fix(serial): surface read errors after a timeout

Examples:
  dev changelog --next v0.3.0
  dev changelog --tag v0.2.0 --output CHANGES.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			chglogArgs, err := changelogArgs(cmd)
			if err != nil {
				return err
			}
			if _, err := exec.LookPath("git-chglog"); err != nil {
				slog.Error("git-chglog not found in PATH, install it with: go install github.com/git-chglog/git-chglog/cmd/git-chglog@latest")
				return fmt.Errorf("git-chglog not installed: %w", err)
			}
			slog.Debug("running git-chglog", "args", chglogArgs)
			gitChglog := exec.CommandContext(cmd.Context(), "git-chglog", chglogArgs...)
			gitChglog.Stdout = os.Stdout
			gitChglog.Stderr = os.Stderr
			err = gitChglog.Run()
			if err != nil {
				return fmt.Errorf("failed to generate changelog: %w", err)
			}
			slog.Info("changelog updated", "output", cmd.Flag("output").Value.String())
			return nil
		},
	}
	cmd.Flags().String("next", "", "next version tag (e.g. v1.2.0)")
	cmd.Flags().String("output", "CHANGELOG.md", "output file path")
	cmd.Flags().String("tag", "", "generate changelog for a specific tag")
	return cmd
}

func changelogArgs(cmd *cobra.Command) ([]string, error) {
	var args []string
	next, err := cmd.Flags().GetString("next")
	if err != nil {
		return nil, fmt.Errorf("could not get next flag: %w", err)
	}
	if next != "" {
		args = append(args, "--next-tag", next)
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, fmt.Errorf("could not get output flag: %w", err)
	}
	args = append(args, "--output", output)
	tag, err := cmd.Flags().GetString("tag")
	if err != nil {
		return nil, fmt.Errorf("could not get tag flag: %w", err)
	}
	if tag != "" {
		args = append(args, tag)
	}
	return args, nil
}
