// Package config provides configuration management for modsync.
package config

// Default configuration values for modsync.
const (
	// DefaultModsDir is the directory built from or checked when none is given.
	DefaultModsDir = "./mods"

	// DefaultSplitThreshold is the size above which files are split.
	DefaultSplitThreshold = "50MB"

	// DefaultChunkSize is the size of every fragment but the last.
	DefaultChunkSize = "30MB"

	// DefaultHashAlgorithm is the digest used for new manifests.
	DefaultHashAlgorithm = "md5"

	// DefaultManifestFile is the manifest file name inside the mods directory.
	DefaultManifestFile = "modpack_manifest.json"

	// DefaultRetentionDays is the number of days recorded manifests are kept.
	DefaultRetentionDays = 30
)

// DefaultExtensions are the file extensions tracked by default.
var DefaultExtensions = []string{".jar"}

// DefaultExclusions contains patterns that are never tracked.
var DefaultExclusions = []string{
	".git",
	"*.disabled",
}
