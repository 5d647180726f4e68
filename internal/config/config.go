package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// StateDir holds run locks and the sqlite destination by default.
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Sync tunes the orchestrator.
type Sync struct {
	Workers           int `toml:"workers"`
	GraceSeconds      int `toml:"grace_seconds"`
	RunTimeoutSeconds int `toml:"run_timeout_seconds"`
	MaxDepth          int `toml:"max_depth"`
}

// RateLimit tunes the shared adaptive limiter and the retry ceilings.
type RateLimit struct {
	InitialDelayMS   int `toml:"initial_delay_ms"`
	MinDelayMS       int `toml:"min_delay_ms"`
	MaxDelayMS       int `toml:"max_delay_ms"`
	TransientRetries int `toml:"transient_retries"`
	RateLimitRetries int `toml:"rate_limit_retries"`
}

// Destination selects and configures the store adapter.
type Destination struct {
	Driver     string `toml:"driver"`
	Token      string `toml:"token"`
	BaseURL    string `toml:"base_url"`
	SQLitePath string `toml:"sqlite_path"`
}

// Metrics configures the Prometheus textfile export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// IGDB holds Twitch client credentials for the IGDb API.
type IGDB struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	BaseURL      string `toml:"base_url"`
	TokenURL     string `toml:"token_url"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

// MusicBrainz requires an identifying user agent.
type MusicBrainz struct {
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"`
}

// Spotify holds client credentials for the Spotify Web API.
type Spotify struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	BaseURL      string `toml:"base_url"`
	TokenURL     string `toml:"token_url"`
	Market       string `toml:"market"`
}

// GoogleBooks works without a key at a lower quota.
type GoogleBooks struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// ComicVine contains configuration for the ComicVine API.
type ComicVine struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	// ForceScraping scrapes volume pages on every run, not only when the
	// API response lacks themes.
	ForceScraping bool `toml:"force_scraping"`
}

// Providers groups catalog client settings.
type Providers struct {
	IGDB        IGDB        `toml:"igdb"`
	TMDB        TMDB        `toml:"tmdb"`
	MusicBrainz MusicBrainz `toml:"musicbrainz"`
	Spotify     Spotify     `toml:"spotify"`
	GoogleBooks GoogleBooks `toml:"googlebooks"`
	ComicVine   ComicVine   `toml:"comicvine"`
}

// Database maps one destination database onto logical fields.
type Database struct {
	ID   string `toml:"id"`
	Kind string `toml:"kind"`
	// PrimaryScheme names the external id used to find existing records.
	PrimaryScheme string `toml:"primary_scheme"`
	Icon          string `toml:"icon"`
	// Properties maps logical field names to destination property ids.
	Properties map[string]string `toml:"properties"`
	// IDProperties maps id schemes (isrc, spotify, igdb, ...) to property ids.
	IDProperties map[string]string `toml:"id_properties"`
	// Behavior maps logical field names to merge behaviors.
	Behavior map[string]string `toml:"behavior"`
}

// Target lists the databases a target writes to, keyed by database name.
type Target struct {
	Databases map[string]Database `toml:"databases"`
}

// Config encapsulates all configuration values for shelfsync.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - Logging: log format and level
//   - Sync: worker count, grace window, run timeout, relation depth
//   - RateLimit: adaptive limiter bounds and retry ceilings
//   - Destination: notion or sqlite adapter settings
//   - Metrics: Prometheus textfile export
//   - Providers: catalog credentials and endpoints
//   - Targets: per-target database and property mappings
type Config struct {
	Paths       Paths             `toml:"paths"`
	Logging     Logging           `toml:"logging"`
	Sync        Sync              `toml:"sync"`
	RateLimit   RateLimit         `toml:"ratelimit"`
	Destination Destination       `toml:"destination"`
	Metrics     Metrics           `toml:"metrics"`
	Providers   Providers         `toml:"providers"`
	Targets     map[string]Target `toml:"targets"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, "", false, err
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads path into the environment. Variables that are already
// set keep their value.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TargetNames returns the configured targets in sorted order.
func (c *Config) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DatabaseNames returns a target's database names in sorted order.
func (t Target) DatabaseNames() []string {
	names := make([]string, 0, len(t.Databases))
	for name := range t.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Encode renders the configuration as TOML with secrets redacted.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	redacted.Destination.Token = redact(redacted.Destination.Token)
	redacted.Providers.IGDB.ClientSecret = redact(redacted.Providers.IGDB.ClientSecret)
	redacted.Providers.TMDB.APIKey = redact(redacted.Providers.TMDB.APIKey)
	redacted.Providers.Spotify.ClientSecret = redact(redacted.Providers.Spotify.ClientSecret)
	redacted.Providers.GoogleBooks.APIKey = redact(redacted.Providers.GoogleBooks.APIKey)
	redacted.Providers.ComicVine.APIKey = redact(redacted.Providers.ComicVine.APIKey)
	out, err := toml.Marshal(redacted)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
