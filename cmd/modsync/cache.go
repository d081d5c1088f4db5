package main

import (
	"fmt"
	"os"

	"github.com/jamesainslie/modsync/pkg/modsync/cache"
	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the digest cache",
	Long: `Commands for managing the digest cache.

The cache remembers digests of files whose size and modification time have
not changed, so repeat builds and drift checks skip re-hashing them.
Fragment verification and reassembly never use it.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [algorithm]",
	Short: "Clear cached digests",
	Long:  `Removes all cached digests, or only those of one algorithm.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE:  runCacheStats,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Println(cfg.Cache.Path)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openCache opens the configured cache, or returns nil when none exists yet.
func openCache() (*cache.Cache, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	path := cfg.Cache.Path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, path, nil
	}
	c, err := cache.Open(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to open cache: %w", err)
	}
	return c, path, nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, _, err := openCache()
	if err != nil {
		return err
	}
	if c == nil {
		printInfo("Cache is already empty.")
		return nil
	}
	defer c.Close()

	if len(args) == 1 {
		algo, err := hashing.ParseAlgorithm(args[0])
		if err != nil {
			return err
		}
		if err := c.Clear(algo); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		printInfo("Cleared %s digests.", algo)
		return nil
	}

	if err := c.ClearAll(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	printInfo("Cache cleared.")
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, path, err := openCache()
	if err != nil {
		return err
	}
	fmt.Printf("Cache location: %s\n", path)
	if c == nil {
		fmt.Println("Cache: empty (no cache database)")
		return nil
	}
	defer c.Close()

	total, err := c.Len()
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}
	fmt.Printf("Cached digests: %d\n", total)

	for _, name := range hashing.Supported() {
		n, err := c.CountFor(hashing.Algorithm(name))
		if err != nil {
			return fmt.Errorf("failed to count %s entries: %w", name, err)
		}
		if n > 0 {
			fmt.Printf("  %-8s %d\n", name, n)
		}
	}
	return nil
}
