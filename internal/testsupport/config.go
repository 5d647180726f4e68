package testsupport

import (
	"path/filepath"
	"testing"

	"shelfsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It writes to a sqlite destination under the temp dir and has no targets
// unless options add them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Logging.Format = "json"
	cfgVal.Destination.Driver = config.DriverSQLite
	cfgVal.Destination.SQLitePath = filepath.Join(base, "state", "shelfsync.db")
	cfgVal.Sync.GraceSeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTarget adds or replaces a target mapping.
func WithTarget(name string, target config.Target) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Targets[name] = target
	}
}

// WithGamesTarget maps a games database with the given id onto the common
// property names used by the sqlite fixtures.
func WithGamesTarget(databaseID string) ConfigOption {
	return WithTarget("games", config.Target{Databases: map[string]config.Database{
		"games": {
			ID:            databaseID,
			Kind:          "game",
			PrimaryScheme: "igdb",
			Properties: map[string]string{
				"title":        "Name",
				"release_date": "Release",
				"genres":       "Genres",
				"last_synced":  "Last Synced",
			},
			IDProperties: map[string]string{"igdb": "IGDB ID"},
		},
	}})
}

// WithProviderBaseURL points every provider at baseURL, typically an
// httptest server, and fills in dummy credentials.
func WithProviderBaseURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		p := &b.cfg.Providers
		p.IGDB.ClientID, p.IGDB.ClientSecret = "igdb-id", "igdb-secret"
		p.IGDB.BaseURL, p.IGDB.TokenURL = baseURL+"/igdb", baseURL+"/oauth2/token"
		p.TMDB.APIKey, p.TMDB.BaseURL = "tmdb-key", baseURL+"/tmdb"
		p.MusicBrainz.BaseURL = baseURL + "/musicbrainz"
		p.Spotify.ClientID, p.Spotify.ClientSecret = "spotify-id", "spotify-secret"
		p.Spotify.BaseURL, p.Spotify.TokenURL = baseURL+"/spotify", baseURL+"/api/token"
		p.GoogleBooks.BaseURL = baseURL + "/books"
		p.ComicVine.APIKey, p.ComicVine.BaseURL = "cv-key", baseURL+"/comicvine"
	}
}

// WithNotion switches the destination to the notion driver at baseURL.
func WithNotion(baseURL, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Destination.Driver = config.DriverNotion
		b.cfg.Destination.BaseURL = baseURL
		b.cfg.Destination.Token = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
