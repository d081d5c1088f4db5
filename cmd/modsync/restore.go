package main

import (
	"context"
	"fmt"

	"github.com/jamesainslie/modsync/pkg/modsync/output"
	"github.com/jamesainslie/modsync/pkg/modsync/restore"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [mods-dir]",
	Short: "Reassemble chunked files and validate the rest",
	Long: `Restore every file of the manifest into the output directory.

Chunked files are reassembled from their fragments after verification;
an existing output is checked instead of overwritten. Unchunked files are
checked for presence, size and digest. Every file is attempted even when
some fail.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().StringP("output-dir", "O", "", "directory to restore into (default: mods dir)")
	_ = viper.BindPFlag("output_dir", restoreCmd.Flags().Lookup("output-dir"))
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := modsDir(cfg, args)
	m, _, err := loadManifest(cfg, dir)
	if err != nil {
		return err
	}

	outDir := cfg.OutputDir
	if outDir == "" {
		outDir = dir
	}

	engine, closeEngine, err := openEngine(cfg, m.Algorithm())
	if err != nil {
		return err
	}
	defer closeEngine()

	ctx, cancel := signalContext()
	defer cancel()

	var summary *restore.Summary
	err = withProgress(ctx, "Restoring "+outDir, func(ctx context.Context, emit types.ProgressFunc) error {
		r, err := restore.New(engine, restore.Options{
			OutputDir:  outDir,
			ChunkDir:   cfg.ChunkDir,
			OnProgress: emit,
		})
		if err != nil {
			return err
		}
		summary, err = r.Run(ctx, m)
		return err
	})
	if summary == nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	if rerr := render(output.FromRestore(summary, m)); rerr != nil {
		return rerr
	}
	if err != nil {
		return fmt.Errorf("restore interrupted: %w", err)
	}
	if !summary.OK() {
		return errProblems
	}
	return nil
}
