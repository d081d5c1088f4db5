package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jamesainslie/modsync/pkg/modsync/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage modsync configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/modsync/config.yaml (if set)
  2. ~/.config/modsync/config.yaml

Environment variables can override config file settings using the MODSYNC_ prefix:
  MODSYNC_CHUNK_SIZE=16MB
  MODSYNC_HASH_ALGORITHM=sha256
  MODSYNC_MANIFEST_PATH=/srv/pack/modpack_manifest.json`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in $VISUAL, $EDITOR or vi.

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("mods_dir:                 %s\n", cfg.ModsDir)
	fmt.Printf("split_threshold:          %s\n", cfg.SplitThreshold)
	fmt.Printf("chunk_size:               %s\n", cfg.ChunkSize)
	fmt.Printf("hash_algorithm:           %s\n", cfg.HashAlgorithm)
	fmt.Printf("extensions:               %v\n", cfg.Extensions)
	fmt.Printf("exclude:                  %v\n", cfg.Exclude)
	fmt.Printf("chunk_dir:                %s\n", cfg.ChunkDir)
	fmt.Printf("output_dir:               %s\n", cfg.OutputDir)
	fmt.Printf("read_mod_info:            %t\n", cfg.ReadModInfo)
	fmt.Printf("manifest.path:            %s\n", cfg.ManifestPath(cfg.ModsDir))
	fmt.Printf("manifest.history_dir:     %s\n", cfg.Manifest.HistoryDir)
	fmt.Printf("manifest.retention_days:  %d\n", cfg.Manifest.RetentionDays)
	fmt.Printf("cache.enabled:            %t\n", cfg.Cache.Enabled)
	fmt.Printf("cache.path:               %s\n", cfg.Cache.Path)
	fmt.Printf("logging.level:            %s\n", cfg.Logging.Level)

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	anyOverrides := false
	for _, key := range viper.AllKeys() {
		name := "MODSYNC_" + envKey(key)
		if val := os.Getenv(name); val != "" {
			fmt.Printf("%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Println("(none)")
	}
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigFile()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'modsync config edit' to modify it.")
		return nil
	}

	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	printInfo("Created default config file: %s", configPath)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigFile()
	if err != nil {
		return err
	}
	fmt.Println(configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}
	return nil
}

// envKey converts a config key to its environment variable suffix.
func envKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
