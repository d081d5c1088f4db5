package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesainslie/modsync/cmd/modsync/tui"
	"github.com/jamesainslie/modsync/pkg/modsync/cache"
	"github.com/jamesainslie/modsync/pkg/modsync/config"
	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/output"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
	"github.com/mattn/go-isatty"
	"github.com/spf13/viper"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openEngine builds a hashing engine for algo, backed by the digest cache
// unless it is disabled. The returned close function is always non-nil.
func openEngine(cfg *config.Config, algo hashing.Algorithm) (*hashing.Engine, func(), error) {
	opts := hashing.Options{Algorithm: algo}
	closeFn := func() {}

	if cfg.Cache.Enabled && !viper.GetBool("no_cache") {
		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			// another modsync process may hold the cache
			printVerbose("digest cache unavailable: %v", err)
		} else {
			opts.Cache = c
			closeFn = func() { _ = c.Close() }
		}
	}

	engine, err := hashing.New(opts)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return engine, closeFn, nil
}

// modsDir returns the first argument or the configured mods directory.
func modsDir(cfg *config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.ModsDir
}

// loadManifest loads the manifest for dir.
func loadManifest(cfg *config.Config, dir string) (*manifest.Manifest, string, error) {
	path := cfg.ManifestPath(dir)
	printVerbose("Loading manifest %s", path)
	m, err := manifest.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load manifest: %w", err)
	}
	return m, path, nil
}

// render writes r in the selected output format.
func render(r *output.Result) error {
	name := viper.GetString("output")
	if name == "" {
		name = "pretty"
	}
	formatter, err := output.Get(name)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", name, output.Available())
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())
	return nil
}

// interactive reports whether the progress view may be shown.
func interactive() bool {
	if viper.GetBool("no_tui") || getQuiet() {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// withProgress runs work, showing the progress view on a terminal and
// debug lines otherwise.
func withProgress(ctx context.Context, title string, work tui.Work) error {
	if interactive() {
		return tui.Run(ctx, title, work)
	}
	return work(ctx, func(p types.Progress) {
		printVerbose("%s %d/%d %s (%s)", p.Stage, p.Current, p.Total, p.Path, types.FormatSize(p.Bytes))
	})
}
