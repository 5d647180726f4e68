package wiring

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"shelfsync/internal/catalog"
	"shelfsync/internal/catalog/comicvine"
	"shelfsync/internal/catalog/googlebooks"
	"shelfsync/internal/catalog/igdb"
	"shelfsync/internal/catalog/musicbrainz"
	"shelfsync/internal/catalog/spotify"
	"shelfsync/internal/catalog/tmdb"
	"shelfsync/internal/config"
	"shelfsync/internal/identity"
	"shelfsync/internal/logging"
	"shelfsync/internal/metrics"
	"shelfsync/internal/ratelimit"
	"shelfsync/internal/schema"
	"shelfsync/internal/services"
	"shelfsync/internal/store"
	"shelfsync/internal/store/notion"
	"shelfsync/internal/store/sqlite"
	"shelfsync/internal/syncer"
)

// Options overrides construction defaults, mostly for tests.
type Options struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	Clock      func() time.Time
}

// App holds the assembled engine.
type App struct {
	Config   *config.Config
	Targets  []schema.Target
	Limiter  *ratelimit.Limiter
	Registry *catalog.Registry
	Resolver *identity.Resolver
	Store    store.Store
	// Mirror is set when the destination is the sqlite driver.
	Mirror  *sqlite.Store
	Metrics *metrics.Recorder
	Syncer  *syncer.Syncer
	Router  *syncer.Router

	closers []func() error
}

// Build wires every component from cfg.
func Build(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "wiring", "build", "config required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	targets, err := Targets(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		Targets: targets,
		Limiter: NewLimiter(cfg),
		Metrics: metrics.New(),
	}

	execOpts := []catalog.ExecutorOption{
		catalog.WithLimiter(app.Limiter),
		catalog.WithRetryPolicy(RetryPolicy(cfg)),
		catalog.WithObserver(app.Metrics),
		catalog.WithLogger(logger),
	}
	if opts.HTTPClient != nil {
		execOpts = append(execOpts, catalog.WithHTTPClient(opts.HTTPClient))
	}

	providers, err := Providers(cfg, opts.HTTPClient, execOpts...)
	if err != nil {
		return nil, err
	}
	if app.Registry, err = catalog.NewRegistry(providers...); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "wiring", "registry", "", err)
	}
	app.Resolver = identity.NewResolver(app.Registry, nil, logger)

	if err := app.openStore(cfg, logger, opts); err != nil {
		return nil, err
	}

	app.Syncer, err = syncer.New(syncer.Options{
		Store:    app.Store,
		Resolver: app.Resolver,
		Targets:  targets,
		Logger:   logger,
		Observer: app.Metrics,
		Grace:    time.Duration(cfg.Sync.GraceSeconds) * time.Second,
		MaxDepth: cfg.Sync.MaxDepth,
		Clock:    opts.Clock,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Router = syncer.NewRouter(app.Store, targets)
	return app, nil
}

// Target returns the schema target with the given name.
func (a *App) Target(name catalog.Target) (schema.Target, bool) {
	for _, t := range a.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return schema.Target{}, false
}

// Close releases the destination.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStore(cfg *config.Config, logger *slog.Logger, opts Options) error {
	switch cfg.Destination.Driver {
	case config.DriverSQLite:
		var storeOpts []sqlite.Option
		if opts.Clock != nil {
			storeOpts = append(storeOpts, sqlite.WithClock(opts.Clock))
		}
		mirror, err := sqlite.Open(cfg.Destination.SQLitePath, storeOpts...)
		if err != nil {
			return fmt.Errorf("open sqlite destination: %w", err)
		}
		a.Mirror = mirror
		a.Store = mirror
		a.closers = append(a.closers, mirror.Close)
		return nil
	case config.DriverNotion:
		storeOpts := []catalog.ExecutorOption{
			catalog.WithRetryPolicy(RetryPolicy(cfg)),
			catalog.WithObserver(a.Metrics),
		}
		if opts.HTTPClient != nil {
			storeOpts = append(storeOpts, catalog.WithHTTPClient(opts.HTTPClient))
		}
		st, err := notion.New(notion.Config{
			Token:   cfg.Destination.Token,
			BaseURL: cfg.Destination.BaseURL,
			Logger:  logger,
			Options: storeOpts,
		})
		if err != nil {
			return err
		}
		a.Store = st
		return nil
	default:
		return services.Wrap(services.ErrConfiguration, "wiring", "store",
			fmt.Sprintf("unknown destination driver %q", cfg.Destination.Driver), nil)
	}
}

// NewLimiter builds the run-wide adaptive limiter.
func NewLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{
		Initial: time.Duration(cfg.RateLimit.InitialDelayMS) * time.Millisecond,
		Min:     time.Duration(cfg.RateLimit.MinDelayMS) * time.Millisecond,
		Max:     time.Duration(cfg.RateLimit.MaxDelayMS) * time.Millisecond,
	})
}

// RetryPolicy applies the configured retry ceilings to the default backoff.
func RetryPolicy(cfg *config.Config) ratelimit.RetryPolicy {
	p := ratelimit.DefaultRetryPolicy()
	p.TransientRetries = cfg.RateLimit.TransientRetries
	p.RateLimitRetries = cfg.RateLimit.RateLimitRetries
	return p
}

// Providers builds the catalog clients the configured targets need. Books
// use ComicVine only when an API key is present.
func Providers(cfg *config.Config, client *http.Client, opts ...catalog.ExecutorOption) ([]catalog.Provider, error) {
	p := cfg.Providers
	wrap := func(name string, err error) error {
		return services.Wrap(services.ErrConfiguration, name, "init", "", err)
	}
	var out []catalog.Provider
	for _, name := range cfg.TargetNames() {
		switch catalog.Target(name) {
		case catalog.TargetGames:
			c, err := igdb.New(igdb.Config{
				ClientID:     p.IGDB.ClientID,
				ClientSecret: p.IGDB.ClientSecret,
				BaseURL:      p.IGDB.BaseURL,
				TokenURL:     p.IGDB.TokenURL,
				HTTPClient:   client,
			}, opts...)
			if err != nil {
				return nil, wrap(igdb.Name, err)
			}
			out = append(out, c)
		case catalog.TargetMovies:
			c, err := tmdb.New(p.TMDB.APIKey, p.TMDB.BaseURL, p.TMDB.Language, opts...)
			if err != nil {
				return nil, wrap(tmdb.Name, err)
			}
			out = append(out, c)
		case catalog.TargetBooks:
			out = append(out, googlebooks.New(p.GoogleBooks.APIKey, p.GoogleBooks.BaseURL, opts...))
			if p.ComicVine.APIKey != "" {
				c, err := comicvine.New(comicvine.Config{
					APIKey:        p.ComicVine.APIKey,
					BaseURL:       p.ComicVine.BaseURL,
					ForceScraping: p.ComicVine.ForceScraping,
				}, opts...)
				if err != nil {
					return nil, wrap(comicvine.Name, err)
				}
				out = append(out, c)
			}
		case catalog.TargetMusic:
			mb, err := musicbrainz.New(p.MusicBrainz.BaseURL, p.MusicBrainz.UserAgent, opts...)
			if err != nil {
				return nil, wrap(musicbrainz.Name, err)
			}
			sp, err := spotify.New(spotify.Config{
				ClientID:     p.Spotify.ClientID,
				ClientSecret: p.Spotify.ClientSecret,
				BaseURL:      p.Spotify.BaseURL,
				TokenURL:     p.Spotify.TokenURL,
				Market:       p.Spotify.Market,
				HTTPClient:   client,
			}, opts...)
			if err != nil {
				return nil, wrap(spotify.Name, err)
			}
			out = append(out, mb, sp)
		}
	}
	return out, nil
}
