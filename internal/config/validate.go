package config

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// kindsByTarget lists the record kinds each target may map databases to.
var kindsByTarget = map[string][]any{
	"games":  {"game"},
	"movies": {"movie", "tv"},
	"books":  {"book"},
	"music":  {"track", "album", "artist", "label"},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateDestination(); err != nil {
		return err
	}
	if err := c.validateTargets(); err != nil {
		return err
	}
	return c.validateProviders()
}

func (c *Config) validateLogging() error {
	err := validation.ValidateStruct(&c.Logging,
		validation.Field(&c.Logging.Format, validation.In("console", "json", "auto")),
		validation.Field(&c.Logging.Level, validation.In("debug", "info", "warn", "error")),
	)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func (c *Config) validateSync() error {
	err := validation.ValidateStruct(&c.Sync,
		validation.Field(&c.Sync.Workers, validation.Min(1), validation.Max(maxWorkers)),
		validation.Field(&c.Sync.GraceSeconds, validation.Min(0)),
		validation.Field(&c.Sync.RunTimeoutSeconds, validation.Min(1)),
		validation.Field(&c.Sync.MaxDepth, validation.Min(1), validation.Max(8)),
	)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	r := c.RateLimit
	if r.MinDelayMS > r.MaxDelayMS {
		return errors.New("ratelimit.min_delay_ms must not exceed ratelimit.max_delay_ms")
	}
	if r.InitialDelayMS < r.MinDelayMS || r.InitialDelayMS > r.MaxDelayMS {
		return errors.New("ratelimit.initial_delay_ms must lie between min_delay_ms and max_delay_ms")
	}
	return nil
}

func (c *Config) validateDestination() error {
	d := &c.Destination
	err := validation.ValidateStruct(d,
		validation.Field(&d.Driver, validation.Required, validation.In(DriverNotion, DriverSQLite)),
		validation.Field(&d.SQLitePath, validation.When(d.Driver == DriverSQLite, validation.Required)),
	)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if d.Driver == DriverNotion && d.Token == "" {
		return fmt.Errorf("destination.token is required for the notion driver. Set NOTION_TOKEN env var or edit %s (create with 'shelfsync config init')", configHint())
	}
	return nil
}

func (c *Config) validateTargets() error {
	for _, name := range c.TargetNames() {
		kinds, ok := kindsByTarget[name]
		if !ok {
			return fmt.Errorf("targets.%s: unknown target (want games, movies, books, or music)", name)
		}
		target := c.Targets[name]
		if len(target.Databases) == 0 {
			return fmt.Errorf("targets.%s: at least one database is required", name)
		}
		seen := make(map[string]string, len(target.Databases))
		for _, dbName := range target.DatabaseNames() {
			db := target.Databases[dbName]
			err := validation.ValidateStruct(&db,
				validation.Field(&db.ID, validation.Required),
				validation.Field(&db.Kind, validation.Required, validation.In(kinds...)),
				validation.Field(&db.PrimaryScheme, validation.Required),
				validation.Field(&db.Properties, validation.Required),
			)
			if err != nil {
				return fmt.Errorf("targets.%s.databases.%s: %w", name, dbName, err)
			}
			if other, dup := seen[db.Kind]; dup {
				return fmt.Errorf("targets.%s: databases %s and %s both hold %s records", name, other, dbName, db.Kind)
			}
			seen[db.Kind] = dbName
			if _, ok := db.IDProperties[db.PrimaryScheme]; !ok {
				return fmt.Errorf("targets.%s.databases.%s: primary_scheme %q has no id_properties entry", name, dbName, db.PrimaryScheme)
			}
		}
	}
	return nil
}

func (c *Config) validateProviders() error {
	p := c.Providers
	if _, ok := c.Targets["games"]; ok {
		if p.IGDB.ClientID == "" || p.IGDB.ClientSecret == "" {
			return missingCredential("providers.igdb.client_id and client_secret", "IGDB_CLIENT_ID/IGDB_CLIENT_SECRET")
		}
	}
	if _, ok := c.Targets["movies"]; ok && p.TMDB.APIKey == "" {
		return missingCredential("providers.tmdb.api_key", "TMDB_API_KEY")
	}
	if _, ok := c.Targets["music"]; ok {
		if p.Spotify.ClientID == "" || p.Spotify.ClientSecret == "" {
			return missingCredential("providers.spotify.client_id and client_secret", "SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET")
		}
		if strings.TrimSpace(p.MusicBrainz.UserAgent) == "" {
			return errors.New("providers.musicbrainz.user_agent must be set")
		}
	}
	return nil
}

func missingCredential(field, env string) error {
	return fmt.Errorf("%s required. Set %s env vars or edit %s", field, env, configHint())
}

func configHint() string {
	path, err := DefaultConfigPath()
	if err != nil {
		return defaultConfigPath
	}
	return path
}
