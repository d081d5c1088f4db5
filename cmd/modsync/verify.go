package main

import (
	"fmt"

	"github.com/jamesainslie/modsync/pkg/modsync/chunk"
	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/output"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [file-name...]",
	Short: "Check fragments against the manifest",
	Long: `Check that every fragment of each chunked file exists with the recorded
size and digest. Digests are always recomputed from the bytes on disk.

Without arguments all chunked files in the manifest are verified.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringP("dir", "d", "", "mods directory holding the manifest (default: mods_dir)")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.ModsDir
	}

	m, _, err := loadManifest(cfg, dir)
	if err != nil {
		return err
	}
	engine, err := hashing.New(hashing.Options{Algorithm: m.Algorithm()})
	if err != nil {
		return err
	}
	verifier := chunk.NewVerifier(engine, chunk.VerifierOptions{ChunkDir: cfg.ChunkDir})

	names := args
	if len(names) == 0 {
		for _, f := range m.Files {
			if f.IsChunked {
				names = append(names, f.Name)
			}
		}
	}
	if len(names) == 0 {
		printInfo("No chunked files in manifest.")
		return nil
	}

	failed := 0
	for _, name := range names {
		rec, ok := m.File(name)
		if !ok {
			return fmt.Errorf("%s is not in the manifest", name)
		}
		if !rec.IsChunked || rec.Chunks == nil {
			return fmt.Errorf("%s: %w", name, chunk.ErrNotChunked)
		}

		vr := verifier.Verify(rec.Chunks)
		if !vr.OK() {
			failed++
		}
		if err := render(output.FromVerify(rec, vr)); err != nil {
			return err
		}
	}

	if failed > 0 {
		printError("%d of %d chunked files failed verification", failed, len(names))
		return errProblems
	}
	return nil
}
