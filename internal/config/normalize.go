package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeSync()
	c.normalizeRateLimit()
	if err := c.normalizeDestination(); err != nil {
		return err
	}
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeProviders()
	c.normalizeTargets()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "":
		level = defaultLogLevel
	case "warning":
		level = "warn"
	}
	c.Logging.Level = level
}

func (c *Config) normalizeSync() {
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = defaultWorkers
	}
	if c.Sync.GraceSeconds < 0 {
		c.Sync.GraceSeconds = defaultGraceSeconds
	}
	if c.Sync.RunTimeoutSeconds <= 0 {
		c.Sync.RunTimeoutSeconds = defaultRunTimeoutSeconds
	}
	if c.Sync.MaxDepth <= 0 {
		c.Sync.MaxDepth = defaultMaxDepth
	}
}

func (c *Config) normalizeRateLimit() {
	if c.RateLimit.InitialDelayMS <= 0 {
		c.RateLimit.InitialDelayMS = defaultInitialDelayMS
	}
	if c.RateLimit.MinDelayMS <= 0 {
		c.RateLimit.MinDelayMS = defaultMinDelayMS
	}
	if c.RateLimit.MaxDelayMS <= 0 {
		c.RateLimit.MaxDelayMS = defaultMaxDelayMS
	}
	if c.RateLimit.TransientRetries < 0 {
		c.RateLimit.TransientRetries = 0
	}
	if c.RateLimit.RateLimitRetries < 0 {
		c.RateLimit.RateLimitRetries = 0
	}
}

func (c *Config) normalizeDestination() error {
	c.Destination.Driver = strings.ToLower(strings.TrimSpace(c.Destination.Driver))
	if c.Destination.Driver == "" {
		c.Destination.Driver = defaultDriver
	}
	c.Destination.Token = envFallback(c.Destination.Token, "NOTION_TOKEN")
	c.Destination.BaseURL = strings.TrimRight(strings.TrimSpace(c.Destination.BaseURL), "/")
	if c.Destination.BaseURL == "" {
		c.Destination.BaseURL = defaultNotionBaseURL
	}
	if strings.TrimSpace(c.Destination.SQLitePath) == "" {
		c.Destination.SQLitePath = filepath.Join(c.Paths.StateDir, defaultSQLiteName)
	}
	var err error
	if c.Destination.SQLitePath, err = expandPath(c.Destination.SQLitePath); err != nil {
		return fmt.Errorf("destination.sqlite_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeMetrics() error {
	if strings.TrimSpace(c.Metrics.Textfile) == "" {
		c.Metrics.Textfile = ""
		return nil
	}
	var err error
	if c.Metrics.Textfile, err = expandPath(c.Metrics.Textfile); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

func (c *Config) normalizeProviders() {
	p := &c.Providers
	p.IGDB.ClientID = envFallback(p.IGDB.ClientID, "IGDB_CLIENT_ID")
	p.IGDB.ClientSecret = envFallback(p.IGDB.ClientSecret, "IGDB_CLIENT_SECRET")
	p.IGDB.BaseURL = withDefault(p.IGDB.BaseURL, defaultIGDBBaseURL)
	p.IGDB.TokenURL = withDefault(p.IGDB.TokenURL, defaultIGDBTokenURL)

	p.TMDB.APIKey = envFallback(p.TMDB.APIKey, "TMDB_API_KEY")
	p.TMDB.BaseURL = withDefault(p.TMDB.BaseURL, defaultTMDBBaseURL)
	p.TMDB.Language = withDefault(p.TMDB.Language, defaultTMDBLanguage)

	p.MusicBrainz.BaseURL = withDefault(p.MusicBrainz.BaseURL, defaultMusicBrainzURL)
	p.MusicBrainz.UserAgent = withDefault(p.MusicBrainz.UserAgent, defaultMusicBrainzAgent)

	p.Spotify.ClientID = envFallback(p.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	p.Spotify.ClientSecret = envFallback(p.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	p.Spotify.BaseURL = withDefault(p.Spotify.BaseURL, defaultSpotifyBaseURL)
	p.Spotify.TokenURL = withDefault(p.Spotify.TokenURL, defaultSpotifyTokenURL)
	p.Spotify.Market = strings.ToUpper(withDefault(p.Spotify.Market, defaultSpotifyMarket))

	p.GoogleBooks.APIKey = envFallback(p.GoogleBooks.APIKey, "GOOGLE_BOOKS_API_KEY")
	p.GoogleBooks.BaseURL = withDefault(p.GoogleBooks.BaseURL, defaultGoogleBooksURL)

	p.ComicVine.APIKey = envFallback(p.ComicVine.APIKey, "COMICVINE_API_KEY")
	p.ComicVine.BaseURL = withDefault(p.ComicVine.BaseURL, defaultComicVineBaseURL)
}

func (c *Config) normalizeTargets() {
	if c.Targets == nil {
		c.Targets = map[string]Target{}
	}
	normalized := make(map[string]Target, len(c.Targets))
	for name, target := range c.Targets {
		dbs := make(map[string]Database, len(target.Databases))
		for dbName, db := range target.Databases {
			db.ID = strings.TrimSpace(db.ID)
			db.Kind = strings.ToLower(strings.TrimSpace(db.Kind))
			db.PrimaryScheme = strings.ToLower(strings.TrimSpace(db.PrimaryScheme))
			db.Icon = strings.TrimSpace(db.Icon)
			db.Properties = trimKeys(db.Properties)
			db.IDProperties = trimKeys(db.IDProperties)
			db.Behavior = trimKeys(db.Behavior)
			dbs[strings.ToLower(strings.TrimSpace(dbName))] = db
		}
		target.Databases = dbs
		normalized[strings.ToLower(strings.TrimSpace(name))] = target
	}
	c.Targets = normalized
}

// envFallback returns value, or the named environment variable when value
// is blank.
func envFallback(value, env string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv(env))
}

func withDefault(value, fallback string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	return value
}

func trimKeys(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}
