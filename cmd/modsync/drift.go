package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jamesainslie/modsync/pkg/modsync/config"
	"github.com/jamesainslie/modsync/pkg/modsync/drift"
	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/output"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
	"github.com/jamesainslie/modsync/pkg/modsync/watch"
	"github.com/spf13/cobra"
)

var driftCmd = &cobra.Command{
	Use:   "drift [local-dir]",
	Short: "Compare a local mod folder with the manifest",
	Long: `Report files of the manifest that are missing or differ locally, local
files the manifest does not know, and local files that cannot be read.

A file whose digest matches a manifest entry is accepted even if renamed.
With --watch the check is repeated whenever the folder changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDrift,
}

func init() {
	driftCmd.Flags().Bool("watch", false, "re-run whenever the folder changes")
	driftCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before re-running in watch mode")
	rootCmd.AddCommand(driftCmd)
}

func runDrift(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := modsDir(cfg, args)
	m, _, err := loadManifest(cfg, dir)
	if err != nil {
		return err
	}

	engine, closeEngine, err := openEngine(cfg, m.Algorithm())
	if err != nil {
		return err
	}
	defer closeEngine()

	ctx, cancel := signalContext()
	defer cancel()

	watching, _ := cmd.Flags().GetBool("watch")
	if watching {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		return watchDrift(ctx, cfg, engine, m, dir, debounce)
	}

	rep, err := checkDrift(ctx, cfg, engine, m, dir, true)
	if err != nil {
		return err
	}
	if !rep.Clean() {
		return errProblems
	}
	return nil
}

func checkDrift(ctx context.Context, cfg *config.Config, engine *hashing.Engine, m *manifest.Manifest, dir string, progress bool) (*drift.Report, error) {
	var rep *drift.Report
	work := func(ctx context.Context, emit types.ProgressFunc) error {
		var err error
		rep, err = drift.New(engine, drift.Options{Exclude: cfg.Exclude, OnProgress: emit}).Diff(ctx, m, dir)
		return err
	}

	var err error
	if progress {
		err = withProgress(ctx, "Checking "+dir, work)
	} else {
		err = work(ctx, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("drift check failed: %w", err)
	}
	if err := render(output.FromDrift(rep)); err != nil {
		return nil, err
	}
	return rep, nil
}

func watchDrift(ctx context.Context, cfg *config.Config, engine *hashing.Engine, m *manifest.Manifest, dir string, debounce time.Duration) error {
	w, err := watch.New(watch.Options{Debounce: debounce})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	if _, err := checkDrift(ctx, cfg, engine, m, dir, false); err != nil {
		return err
	}
	printInfo("Watching %s for changes (Ctrl+C to stop)...", dir)

	w.Run(ctx, func(paths []string) {
		printVerbose("%d paths changed", len(paths))
		// the manifest may have been rebuilt in place
		if fresh, _, err := loadManifest(cfg, dir); err == nil {
			m = fresh
		}
		if _, err := checkDrift(ctx, cfg, engine, m, dir, false); err != nil && !errors.Is(err, context.Canceled) {
			printError("%v", err)
		}
	})
	return nil
}
