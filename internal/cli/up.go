package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

const (
	repositorySlug = "ppasupat/web-entity-extractor-ACL2014"
	checksumsFile  = "checksums.txt"
)

var errNoRelease = errors.New("no release found")

func (c *CLI) newUpCommand() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Self-update to the latest release",
		Example: `  extractor up
  extractor up --check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.selfUpdate(cmd.Context(), cmd.OutOrStdout(), check)
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Only report whether a newer release exists")
	return cmd
}

// currentVersion maps development builds to a version every release beats.
func (c *CLI) currentVersion() string {
	if c.version == "" || c.version == "dev" || c.version == "test" {
		return "0.0.0"
	}
	return c.version
}

func (c *CLI) selfUpdate(ctx context.Context, w io.Writer, check bool) error {
	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: checksumsFile},
	})
	if err != nil {
		return err
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(repositorySlug))
	if err != nil {
		return fmt.Errorf("detect latest version: %w", err)
	}
	if !found {
		return errNoRelease
	}
	if latest.LessOrEqual(c.currentVersion()) {
		_, err := fmt.Fprintf(w, "Already up to date (%s)\n", c.version)
		return err
	}
	if check {
		_, err := fmt.Fprintf(w, "Release %s is available (running %s)\n", latest.Version(), c.version)
		return err
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		exe, err = os.Executable()
		if err != nil {
			return err
		}
	}
	slog.Info("Updating", "from", c.version, "to", latest.Version(), "executable", exe)
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	_, err = fmt.Fprintf(w, "Updated to %s\n", latest.Version())
	return err
}
