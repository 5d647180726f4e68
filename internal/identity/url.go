package identity

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"shelfsync/internal/catalog"
)

// Link is a provider entity named by a pasted URL or URI.
type Link struct {
	Provider string
	Kind     catalog.Kind
	// Scheme is the id scheme of ID; empty for the provider's native ids.
	Scheme string
	ID     string
}

var (
	comicVinePattern = regexp.MustCompile(`/4050-(\d+)/?`)
	tmdbIDPattern    = regexp.MustCompile(`^(\d+)`)
	mbidPattern      = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

var spotifyKinds = map[string]catalog.Kind{
	"track":  catalog.KindTrack,
	"album":  catalog.KindAlbum,
	"artist": catalog.KindArtist,
}

var tmdbKinds = map[string]catalog.Kind{
	"movie": catalog.KindMovie,
	"tv":    catalog.KindTV,
}

var musicBrainzKinds = map[string]catalog.Kind{
	"recording": catalog.KindTrack,
	"release":   catalog.KindAlbum,
	"artist":    catalog.KindArtist,
	"label":     catalog.KindLabel,
}

// ParseURL recognizes catalog links. Unsupported hosts and paths return an
// error naming the input.
func ParseURL(raw string) (Link, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 {
			if kind, ok := spotifyKinds[parts[1]]; ok && parts[2] != "" {
				return Link{Provider: catalog.SchemeSpotify, Kind: kind, ID: parts[2]}, nil
			}
		}
		return Link{}, fmt.Errorf("unsupported spotify uri %q", raw)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Link{}, fmt.Errorf("not a url: %q", raw)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := splitPath(u.Path)

	switch {
	case host == "open.spotify.com":
		// Localized links carry a prefix such as /intl-de/.
		if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
			segments = segments[1:]
		}
		if len(segments) >= 2 {
			if kind, ok := spotifyKinds[segments[0]]; ok {
				return Link{Provider: catalog.SchemeSpotify, Kind: kind, ID: segments[1]}, nil
			}
		}
	case host == "igdb.com":
		if len(segments) >= 2 && segments[0] == "games" {
			return Link{Provider: catalog.SchemeIGDb, Kind: catalog.KindGame, Scheme: catalog.SchemeIGDbSlug, ID: segments[1]}, nil
		}
	case host == "themoviedb.org":
		if len(segments) >= 2 {
			if kind, ok := tmdbKinds[segments[0]]; ok {
				if m := tmdbIDPattern.FindStringSubmatch(segments[1]); m != nil {
					return Link{Provider: catalog.SchemeTMDb, Kind: kind, ID: m[1]}, nil
				}
			}
		}
	case host == "musicbrainz.org":
		if len(segments) >= 2 {
			if kind, ok := musicBrainzKinds[segments[0]]; ok && mbidPattern.MatchString(segments[1]) {
				return Link{Provider: catalog.SchemeMusicBrainz, Kind: kind, ID: strings.ToLower(segments[1])}, nil
			}
		}
	case host == "books.google.com" || strings.HasPrefix(host, "google."):
		if id := u.Query().Get("id"); id != "" {
			return Link{Provider: catalog.SchemeGoogleBooks, Kind: catalog.KindBook, ID: id}, nil
		}
		// google.com/books/edition/<title>/<id>
		if len(segments) >= 4 && segments[0] == "books" && segments[1] == "edition" {
			return Link{Provider: catalog.SchemeGoogleBooks, Kind: catalog.KindBook, ID: segments[3]}, nil
		}
	case host == "comicvine.gamespot.com":
		if m := comicVinePattern.FindStringSubmatch(u.Path); m != nil {
			return Link{Provider: catalog.SchemeComicVine, Kind: catalog.KindBook, ID: m[1]}, nil
		}
	}
	return Link{}, fmt.Errorf("unsupported catalog url %q", raw)
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
