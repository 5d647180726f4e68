package config

const (
	defaultConfigPath        = "~/.config/shelfsync/config.toml"
	projectConfigName        = "shelfsync.toml"
	defaultStateDir          = "~/.local/state/shelfsync"
	defaultLogDir            = "~/.local/state/shelfsync/logs"
	defaultLogFormat         = "auto"
	defaultLogLevel          = "info"
	defaultWorkers           = 1
	maxWorkers               = 4
	defaultGraceSeconds      = 120
	defaultRunTimeoutSeconds = 1800
	defaultMaxDepth          = 4
	defaultInitialDelayMS    = 800
	defaultMinDelayMS        = 300
	defaultMaxDelayMS        = 2000
	defaultTransientRetries  = 3
	defaultRateLimitRetries  = 1
	defaultDriver            = DriverNotion
	defaultNotionBaseURL     = "https://api.notion.com/v1"
	defaultSQLiteName        = "shelfsync.db"
	defaultIGDBBaseURL       = "https://api.igdb.com/v4"
	defaultIGDBTokenURL      = "https://id.twitch.tv/oauth2/token"
	defaultTMDBBaseURL       = "https://api.themoviedb.org/3"
	defaultTMDBLanguage      = "en-US"
	defaultMusicBrainzURL    = "https://musicbrainz.org/ws/2"
	defaultMusicBrainzAgent  = "shelfsync/1.0 (https://github.com/shelfsync/shelfsync)"
	defaultSpotifyBaseURL    = "https://api.spotify.com/v1"
	defaultSpotifyTokenURL   = "https://accounts.spotify.com/api/token"
	defaultSpotifyMarket     = "US"
	defaultGoogleBooksURL    = "https://www.googleapis.com/books/v1"
	defaultComicVineBaseURL  = "https://comicvine.gamespot.com/api"
)

// Destination drivers.
const (
	DriverNotion = "notion"
	DriverSQLite = "sqlite"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Sync: Sync{
			Workers:           defaultWorkers,
			GraceSeconds:      defaultGraceSeconds,
			RunTimeoutSeconds: defaultRunTimeoutSeconds,
			MaxDepth:          defaultMaxDepth,
		},
		RateLimit: RateLimit{
			InitialDelayMS:   defaultInitialDelayMS,
			MinDelayMS:       defaultMinDelayMS,
			MaxDelayMS:       defaultMaxDelayMS,
			TransientRetries: defaultTransientRetries,
			RateLimitRetries: defaultRateLimitRetries,
		},
		Destination: Destination{
			Driver:  defaultDriver,
			BaseURL: defaultNotionBaseURL,
		},
		Providers: Providers{
			IGDB: IGDB{
				BaseURL:  defaultIGDBBaseURL,
				TokenURL: defaultIGDBTokenURL,
			},
			TMDB: TMDB{
				BaseURL:  defaultTMDBBaseURL,
				Language: defaultTMDBLanguage,
			},
			MusicBrainz: MusicBrainz{
				BaseURL:   defaultMusicBrainzURL,
				UserAgent: defaultMusicBrainzAgent,
			},
			Spotify: Spotify{
				BaseURL:  defaultSpotifyBaseURL,
				TokenURL: defaultSpotifyTokenURL,
				Market:   defaultSpotifyMarket,
			},
			GoogleBooks: GoogleBooks{
				BaseURL: defaultGoogleBooksURL,
			},
			ComicVine: ComicVine{
				BaseURL: defaultComicVineBaseURL,
			},
		},
		Targets: map[string]Target{},
	}
}
