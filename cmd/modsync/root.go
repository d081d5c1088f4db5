package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jamesainslie/modsync/pkg/modsync/config"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// errProblems is returned when a command completed but found problems it
// already reported, so the process exits non-zero without repeating them.
var errProblems = errors.New("problems found")

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "modsync",
		Short: "Keep a Minecraft mod folder in sync with a published manifest",
		Long: `modsync builds manifests of a mod folder, splits large jars into
fixed-size fragments, restores them on the receiving side and reports drift
between a manifest and a local folder.

Examples:
  modsync build ./mods                   # Build modpack_manifest.json
  modsync verify                         # Check every fragment against the manifest
  modsync restore -O ~/.minecraft/mods   # Reassemble and validate all files
  modsync drift ~/.minecraft/mods        # Report missing, changed and extra files
  modsync drift --watch                  # Re-check whenever the folder changes`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initializeLogging,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/modsync/config.yaml)")
	rootCmd.PersistentFlags().StringP("manifest", "m", "", "manifest file (default: <mods dir>/modpack_manifest.json)")
	rootCmd.PersistentFlags().StringP("output", "o", "pretty", "output format (pretty, plain, json, jsonl, yaml, tsv, csv, markdown)")
	rootCmd.PersistentFlags().StringSliceP("exclude", "e", nil, "exclude patterns (can be specified multiple times)")
	rootCmd.PersistentFlags().String("chunk-dir", "", "directory holding fragments (default: next to each file)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "do not use the digest cache")
	rootCmd.PersistentFlags().Bool("no-tui", false, "never show the interactive progress view")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	_ = viper.BindPFlag("manifest.path", rootCmd.PersistentFlags().Lookup("manifest"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("exclude", rootCmd.PersistentFlags().Lookup("exclude"))
	_ = viper.BindPFlag("chunk_dir", rootCmd.PersistentFlags().Lookup("chunk-dir"))
	_ = viper.BindPFlag("no_cache", rootCmd.PersistentFlags().Lookup("no-cache"))
	_ = viper.BindPFlag("no_tui", rootCmd.PersistentFlags().Lookup("no-tui"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if err := config.Configure(viper.GetViper()); err != nil {
		printError("%v", err)
	}
}

// loadConfig decodes the global viper state, flags included.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Unmarshal(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initializeLogging is the PersistentPreRunE hook. Logging problems are
// reported but never stop a command.
func initializeLogging(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lc, err := cfg.LoggingSetup()
	if err != nil {
		return err
	}
	if getVerbose() {
		lc.ConsoleLevel = "debug"
	}

	if err := logging.Init(lc); err != nil {
		printVerbose("logging disabled: %v", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = logging.Close() }()

	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errProblems) {
		printError("%v", err)
	}
	return err
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
