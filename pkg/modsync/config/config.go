package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
	"github.com/spf13/viper"
)

const appName = "modsync"

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// ManifestConfig locates the working manifest and the build history.
type ManifestConfig struct {
	Path          string `mapstructure:"path"`
	HistoryDir    string `mapstructure:"history_dir"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// CacheConfig configures the persistent digest cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Config represents the application configuration.
type Config struct {
	ModsDir        string   `mapstructure:"mods_dir"`
	SplitThreshold string   `mapstructure:"split_threshold"`
	ChunkSize      string   `mapstructure:"chunk_size"`
	HashAlgorithm  string   `mapstructure:"hash_algorithm"`
	Extensions     []string `mapstructure:"extensions"`
	Exclude        []string `mapstructure:"exclude"`
	ChunkDir       string   `mapstructure:"chunk_dir"`
	OutputDir      string   `mapstructure:"output_dir"`
	ReadModInfo    bool     `mapstructure:"read_mod_info"`

	Manifest ManifestConfig `mapstructure:"manifest"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mods_dir", DefaultModsDir)
	v.SetDefault("split_threshold", DefaultSplitThreshold)
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("hash_algorithm", DefaultHashAlgorithm)
	v.SetDefault("extensions", DefaultExtensions)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("chunk_dir", "")
	v.SetDefault("output_dir", "")
	v.SetDefault("read_mod_info", true)

	v.SetDefault("manifest.path", "")
	v.SetDefault("manifest.history_dir", "")
	v.SetDefault("manifest.retention_days", DefaultRetentionDays)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.components", map[string]string{
		"chunk":   "info",
		"builder": "info",
		"drift":   "info",
		"restore": "info",
		"watch":   "warn",
	})
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/modsync/config.yaml
//   - $HOME/.config/modsync/config.yaml
//
// Environment variables are prefixed with MODSYNC_ (e.g. MODSYNC_CHUNK_SIZE).
func Load() (*Config, error) {
	v := viper.New()
	if err := Configure(v); err != nil {
		return nil, err
	}
	return Unmarshal(v)
}

// Configure prepares v with search paths, environment binding and defaults,
// then reads the config file if one exists.
func Configure(v *viper.Viper) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, appName))
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", appName))

	v.SetEnvPrefix("MODSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// Unmarshal decodes v into a Config and resolves path defaults.
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolve() error {
	var err error
	for _, p := range []*string{&c.ModsDir, &c.ChunkDir, &c.OutputDir, &c.Manifest.Path, &c.Manifest.HistoryDir, &c.Cache.Path, &c.Logging.Path} {
		if *p, err = ExpandPath(*p); err != nil {
			return err
		}
	}

	if c.Manifest.HistoryDir == "" {
		c.Manifest.HistoryDir = DefaultHistoryDir()
	}
	if c.Cache.Path == "" {
		c.Cache.Path = DefaultCachePath()
	}
	return nil
}

// ManifestPath returns the configured manifest file, or the default file
// inside dir when none is configured.
func (c *Config) ManifestPath(dir string) string {
	if c.Manifest.Path != "" {
		return c.Manifest.Path
	}
	return filepath.Join(dir, DefaultManifestFile)
}

// Sizes parses the split threshold and chunk size.
func (c *Config) Sizes() (threshold, chunkSize uint64, err error) {
	threshold, err = types.ParseSize(c.SplitThreshold)
	if err != nil {
		return 0, 0, fmt.Errorf("split_threshold: %w", err)
	}
	chunkSize, err = types.ParseSize(c.ChunkSize)
	if err != nil {
		return 0, 0, fmt.Errorf("chunk_size: %w", err)
	}
	if chunkSize == 0 {
		return 0, 0, fmt.Errorf("chunk_size: %w", types.ErrInvalidSize)
	}
	return threshold, chunkSize, nil
}

// Algorithm parses the configured hash algorithm.
func (c *Config) Algorithm() (hashing.Algorithm, error) {
	return hashing.ParseAlgorithm(c.HashAlgorithm)
}

// LoggingSetup converts the logging section for logging.Init.
func (c *Config) LoggingSetup() (logging.Config, error) {
	rot := logging.DefaultRotationConfig()
	if c.Logging.Rotation.MaxSize != "" {
		size, err := types.ParseSize(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("logging.rotation.max_size: %w", err)
		}
		rot.MaxSize = int64(size)
	}
	rot.MaxAge = c.Logging.Rotation.MaxAge
	rot.MaxBackups = c.Logging.Rotation.MaxBackups

	return logging.Config{
		Level:      c.Logging.Level,
		Path:       c.Logging.Path,
		Rotation:   rot,
		Components: c.Logging.Components,
	}, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, appName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", appName), nil
}

// ConfigFile returns the path of the YAML config file.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	configPath, err := ConfigFile()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# modsync configuration

# Directory built from, checked and restored into when none is given
mods_dir: %s

# Files larger than this are split into fragments
split_threshold: %s

# Size of every fragment but the last
chunk_size: %s

# Digest for new manifests: md5, sha256, blake3, xxh64
hash_algorithm: %s

# Tracked file extensions
extensions:
  - .jar

# Names and patterns never tracked
exclude:
  - .git
  - "*.disabled"

# Where fragments are written (empty means next to the source file)
chunk_dir: ""

# Where restore writes files (empty means mods_dir)
output_dir: ""

# Record mod id and version from jar descriptors
read_mod_info: true

manifest:
  # Manifest file (empty means <mods_dir>/%s)
  path: ""
  # Recorded builds (empty means $XDG_DATA_HOME/modsync/history)
  history_dir: ""
  retention_days: %d

# Digest cache for unchanged files
cache:
  enabled: true
  # Empty means $XDG_CACHE_HOME/modsync/digests
  path: ""

logging:
  # Log level: debug, info, warn, error
  level: info
  # Empty means $XDG_STATE_HOME/modsync/modsync.log
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
  components:
    chunk: info
    builder: info
    drift: info
    restore: info
    watch: warn
`, DefaultModsDir, DefaultSplitThreshold, DefaultChunkSize, DefaultHashAlgorithm, DefaultManifestFile, DefaultRetentionDays)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return configPath, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/modsync/.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// StateDir returns $XDG_STATE_HOME/modsync/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// CacheDir returns $XDG_CACHE_HOME/modsync/.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, appName)
}

// DefaultHistoryDir returns the default directory of recorded manifests.
func DefaultHistoryDir() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultCachePath returns the default digest cache database directory.
func DefaultCachePath() string {
	return filepath.Join(CacheDir(), "digests")
}
