package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/spf13/cobra"
)

var checkUpdateCmd = &cobra.Command{
	Use:   "check-update <remote-manifest> [mods-dir]",
	Short: "Report whether a published manifest is newer than the local one",
	Long: `Compare the local manifest with a published one by build time.

The published manifest is read from a local or mounted path. Use "latest"
to compare against the newest build recorded in the history instead.
Exits with status 1 when an update is needed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCheckUpdate,
}

func init() {
	rootCmd.AddCommand(checkUpdateCmd)
}

func runCheckUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var fetcher manifest.Fetcher = manifest.FileFetcher{Path: args[0]}
	if args[0] == "latest" {
		store, err := manifest.NewStore(cfg.Manifest.HistoryDir)
		if err != nil {
			return err
		}
		fetcher = manifest.StoreFetcher{Store: store}
	}

	ctx, cancel := signalContext()
	defer cancel()

	remote, err := fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch remote manifest: %w", err)
	}

	local, _, err := loadManifest(cfg, modsDir(cfg, args[1:]))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		local = nil
	}

	if !manifest.NeedsUpdate(local, remote) {
		printInfo("Up to date (built %s).", remote.CreatedAt)
		return nil
	}

	if local == nil {
		printInfo("Update available: no local manifest, remote built %s.", remote.CreatedAt)
	} else {
		printInfo("Update available: local built %s, remote built %s.", local.CreatedAt, remote.CreatedAt)
	}
	return errProblems
}
