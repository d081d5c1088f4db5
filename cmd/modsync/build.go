package main

import (
	"context"
	"fmt"

	"github.com/jamesainslie/modsync/pkg/modsync/builder"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/output"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var buildCmd = &cobra.Command{
	Use:   "build [mods-dir]",
	Short: "Build a manifest of a mod folder",
	Long: `Hash every tracked file in the mod folder, split files above the split
threshold into fragments, and write the manifest.

Existing fragments (*.partNN) are never recorded as files of their own.
A file that cannot be read is reported and left out of the manifest.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().String("split-threshold", "", "split files larger than this (e.g. 50MB)")
	buildCmd.Flags().String("chunk-size", "", "fragment size (e.g. 30MB)")
	buildCmd.Flags().String("algorithm", "", "hash algorithm (md5, sha256, blake3, xxh64)")
	buildCmd.Flags().StringSlice("ext", nil, "tracked extensions (default .jar)")
	buildCmd.Flags().Bool("no-modinfo", false, "do not read mod metadata from jars")
	buildCmd.Flags().Bool("no-record", false, "do not record the build in the history")

	_ = viper.BindPFlag("split_threshold", buildCmd.Flags().Lookup("split-threshold"))
	_ = viper.BindPFlag("chunk_size", buildCmd.Flags().Lookup("chunk-size"))
	_ = viper.BindPFlag("hash_algorithm", buildCmd.Flags().Lookup("algorithm"))
	_ = viper.BindPFlag("extensions", buildCmd.Flags().Lookup("ext"))

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	threshold, chunkSize, err := cfg.Sizes()
	if err != nil {
		return err
	}
	algo, err := cfg.Algorithm()
	if err != nil {
		return err
	}
	noModInfo, _ := cmd.Flags().GetBool("no-modinfo")
	noRecord, _ := cmd.Flags().GetBool("no-record")

	engine, closeEngine, err := openEngine(cfg, algo)
	if err != nil {
		return err
	}
	defer closeEngine()

	dir := modsDir(cfg, args)
	path := cfg.ManifestPath(dir)
	printVerbose("Building %s (threshold %s, chunks %s, %s)", dir, types.FormatSize(threshold), types.FormatSize(chunkSize), algo)

	ctx, cancel := signalContext()
	defer cancel()

	var result *builder.Result
	err = withProgress(ctx, "Building manifest", func(ctx context.Context, emit types.ProgressFunc) error {
		b, err := builder.New(engine, builder.Options{
			SplitThreshold: threshold,
			ChunkSize:      chunkSize,
			Extensions:     cfg.Extensions,
			Exclude:        cfg.Exclude,
			ChunkDir:       cfg.ChunkDir,
			ReadModInfo:    cfg.ReadModInfo && !noModInfo,
			OnProgress:     emit,
		})
		if err != nil {
			return err
		}
		result, err = b.BuildAndSave(ctx, dir, path)
		return err
	})
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if !noRecord {
		if err := recordBuild(cfg.Manifest.HistoryDir, result.Manifest); err != nil {
			printVerbose("history not recorded: %v", err)
		}
	}

	if err := render(output.FromBuild(result)); err != nil {
		return err
	}
	printInfo("Manifest written to %s", path)
	return nil
}

func recordBuild(dir string, m *manifest.Manifest) error {
	store, err := manifest.NewStore(dir)
	if err != nil {
		return err
	}
	return store.Record(m)
}
