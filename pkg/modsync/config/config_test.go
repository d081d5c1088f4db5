package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	return home
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ModsDir != DefaultModsDir {
		t.Errorf("ModsDir = %q, want %q", cfg.ModsDir, DefaultModsDir)
	}
	if cfg.SplitThreshold != DefaultSplitThreshold {
		t.Errorf("SplitThreshold = %q, want %q", cfg.SplitThreshold, DefaultSplitThreshold)
	}
	if cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("ChunkSize = %q, want %q", cfg.ChunkSize, DefaultChunkSize)
	}
	if cfg.HashAlgorithm != DefaultHashAlgorithm {
		t.Errorf("HashAlgorithm = %q, want %q", cfg.HashAlgorithm, DefaultHashAlgorithm)
	}
	if len(cfg.Extensions) != 1 || cfg.Extensions[0] != ".jar" {
		t.Errorf("Extensions = %v, want [.jar]", cfg.Extensions)
	}
	if len(cfg.Exclude) != len(DefaultExclusions) {
		t.Errorf("len(Exclude) = %d, want %d", len(cfg.Exclude), len(DefaultExclusions))
	}
	if !cfg.ReadModInfo {
		t.Error("ReadModInfo = false, want true")
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true")
	}
	if cfg.Manifest.RetentionDays != DefaultRetentionDays {
		t.Errorf("Manifest.RetentionDays = %d, want %d", cfg.Manifest.RetentionDays, DefaultRetentionDays)
	}
	if cfg.Manifest.HistoryDir != DefaultHistoryDir() {
		t.Errorf("Manifest.HistoryDir = %q, want %q", cfg.Manifest.HistoryDir, DefaultHistoryDir())
	}
	if cfg.Cache.Path != DefaultCachePath() {
		t.Errorf("Cache.Path = %q, want %q", cfg.Cache.Path, DefaultCachePath())
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_FromFile(t *testing.T) {
	home := isolate(t)
	configDir := filepath.Join(home, ".config", "modsync")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `
mods_dir: /srv/pack/mods
split_threshold: 20MB
chunk_size: 8MB
hash_algorithm: sha256
extensions:
  - .jar
  - .zip
chunk_dir: ~/chunks
manifest:
  path: /srv/pack/manifest.json
  retention_days: 7
cache:
  enabled: false
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ModsDir != "/srv/pack/mods" {
		t.Errorf("ModsDir = %q, want %q", cfg.ModsDir, "/srv/pack/mods")
	}
	if cfg.HashAlgorithm != "sha256" {
		t.Errorf("HashAlgorithm = %q, want sha256", cfg.HashAlgorithm)
	}
	if len(cfg.Extensions) != 2 {
		t.Errorf("len(Extensions) = %d, want 2", len(cfg.Extensions))
	}
	if want := filepath.Join(home, "chunks"); cfg.ChunkDir != want {
		t.Errorf("ChunkDir = %q, want %q", cfg.ChunkDir, want)
	}
	if cfg.ManifestPath("/ignored") != "/srv/pack/manifest.json" {
		t.Errorf("ManifestPath() = %q, want configured path", cfg.ManifestPath("/ignored"))
	}
	if cfg.Manifest.RetentionDays != 7 {
		t.Errorf("Manifest.RetentionDays = %d, want 7", cfg.Manifest.RetentionDays)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}

	threshold, chunkSize, err := cfg.Sizes()
	if err != nil {
		t.Fatalf("Sizes() error = %v", err)
	}
	if threshold != 20*types.MiB || chunkSize != 8*types.MiB {
		t.Errorf("Sizes() = %d, %d, want %d, %d", threshold, chunkSize, 20*types.MiB, 8*types.MiB)
	}

	algo, err := cfg.Algorithm()
	if err != nil {
		t.Fatalf("Algorithm() error = %v", err)
	}
	if algo != hashing.SHA256 {
		t.Errorf("Algorithm() = %q, want sha256", algo)
	}
}

func TestLoad_XDGConfigHome(t *testing.T) {
	isolate(t)
	xdgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgHome)

	dir := filepath.Join(xdgHome, "modsync")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("chunk_size: 1MB\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != "1MB" {
		t.Errorf("ChunkSize = %q, want 1MB", cfg.ChunkSize)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("MODSYNC_CHUNK_SIZE", "4MB")
	t.Setenv("MODSYNC_HASH_ALGORITHM", "blake3")
	t.Setenv("MODSYNC_MANIFEST_RETENTION_DAYS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != "4MB" {
		t.Errorf("ChunkSize = %q, want 4MB", cfg.ChunkSize)
	}
	if cfg.HashAlgorithm != "blake3" {
		t.Errorf("HashAlgorithm = %q, want blake3", cfg.HashAlgorithm)
	}
	if cfg.Manifest.RetentionDays != 3 {
		t.Errorf("Manifest.RetentionDays = %d, want 3", cfg.Manifest.RetentionDays)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "modsync")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("chunk_size: [unclosed\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}

func TestConfig_Sizes(t *testing.T) {
	tests := []struct {
		name      string
		threshold string
		chunk     string
		wantErr   bool
	}{
		{"defaults", DefaultSplitThreshold, DefaultChunkSize, false},
		{"bad threshold", "lots", "1MB", true},
		{"bad chunk", "1MB", "-5", true},
		{"zero chunk", "1MB", "0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{SplitThreshold: tt.threshold, ChunkSize: tt.chunk}
			_, _, err := cfg.Sizes()
			if (err != nil) != tt.wantErr {
				t.Errorf("Sizes() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ManifestPathDefault(t *testing.T) {
	cfg := &Config{}
	got := cfg.ManifestPath("/srv/pack/mods")
	if want := filepath.Join("/srv/pack/mods", DefaultManifestFile); got != want {
		t.Errorf("ManifestPath() = %q, want %q", got, want)
	}
}

func TestConfig_LoggingSetup(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{
		Level:      "debug",
		Rotation:   RotationConfig{MaxSize: "2MB", MaxAge: 3, MaxBackups: 1},
		Components: map[string]string{"drift": "warn"},
	}}

	lc, err := cfg.LoggingSetup()
	if err != nil {
		t.Fatalf("LoggingSetup() error = %v", err)
	}
	if lc.Rotation.MaxSize != int64(2*types.MiB) {
		t.Errorf("Rotation.MaxSize = %d, want %d", lc.Rotation.MaxSize, 2*types.MiB)
	}
	if lc.Rotation.MaxBackups != 1 || lc.Rotation.MaxAge != 3 {
		t.Errorf("Rotation = %+v", lc.Rotation)
	}
	if lc.Components["drift"] != "warn" {
		t.Errorf("Components[drift] = %q, want warn", lc.Components["drift"])
	}

	cfg.Logging.Rotation.MaxSize = "huge"
	if _, err := cfg.LoggingSetup(); !errors.Is(err, types.ErrInvalidSize) {
		t.Errorf("LoggingSetup() error = %v, want ErrInvalidSize", err)
	}
}

func TestWriteDefault(t *testing.T) {
	isolate(t)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading default config: %v", err)
	}
	if !strings.Contains(string(data), "split_threshold: 50MB") {
		t.Errorf("default config missing split_threshold:\n%s", data)
	}

	if err := os.WriteFile(path, []byte("chunk_size: 2MB\n"), 0o644); err != nil {
		t.Fatalf("overwriting config: %v", err)
	}
	if _, err := WriteDefault(); err != nil {
		t.Fatalf("second WriteDefault() error = %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "chunk_size: 2MB\n" {
		t.Error("WriteDefault() overwrote an existing config")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() after WriteDefault error = %v", err)
	}
	if cfg.ChunkSize != "2MB" {
		t.Errorf("ChunkSize = %q, want 2MB", cfg.ChunkSize)
	}
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	tests := []struct {
		in   string
		want string
	}{
		{"~/mods", filepath.Join(home, "mods")},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		if err != nil {
			t.Fatalf("ExpandPath(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
