package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// DirName is the name of the global and per-repo configuration directory.
const DirName = ".cptconv"

// Config holds application configuration.
type Config struct {
	// SkeletonPath overrides the embedded BRO/IMBRO XML skeleton.
	// Empty means use the built-in template.
	SkeletonPath string `json:"skeleton_path,omitempty"`

	// TokenSeparator and BlockSeparator split the XML values block when a
	// document does not declare its own encoding. Defaults are "," and ";".
	TokenSeparator string `json:"token_separator,omitempty"`
	BlockSeparator string `json:"block_separator,omitempty"`

	// DropIncompleteRows removes rows with any missing sample before a
	// record is mapped to XML.
	DropIncompleteRows bool `json:"drop_incomplete_rows,omitempty"`

	// BatchWorkers limits concurrent conversions in batch mode.
	BatchWorkers int `json:"batch_workers,omitempty"`

	// AllowedPaths is an allowlist of directories for file reads and writes.
	// Paths should be absolute (relative paths are ignored).
	// An empty list allows any directory.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TokenSeparator: ",",
		BlockSeparator: ";",
		BatchWorkers:   4,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cptconv.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.cptconv) and repo (.cptconv) directories.
// Repo config is found by walking upward from startDir to find the nearest .cptconv/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// GlobalDir returns ~/.cptconv.
func GlobalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DirName), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .cptconv/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// A relative skeleton path is relative to the config file's directory
	if cfg.SkeletonPath != "" && !filepath.IsAbs(cfg.SkeletonPath) {
		cfg.SkeletonPath = filepath.Join(filepath.Dir(configPath), cfg.SkeletonPath)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.SkeletonPath = overlay.SkeletonPath
	if result.SkeletonPath == "" {
		result.SkeletonPath = base.SkeletonPath
	}

	result.TokenSeparator = overlay.TokenSeparator
	if result.TokenSeparator == "" {
		result.TokenSeparator = base.TokenSeparator
	}

	result.BlockSeparator = overlay.BlockSeparator
	if result.BlockSeparator == "" {
		result.BlockSeparator = base.BlockSeparator
	}

	result.BatchWorkers = overlay.BatchWorkers
	if result.BatchWorkers == 0 {
		result.BatchWorkers = base.BatchWorkers
	}

	// Booleans: overlay wins if true, else base
	result.DropIncompleteRows = base.DropIncompleteRows || overlay.DropIncompleteRows
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
