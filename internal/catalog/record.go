package catalog

import (
	"fmt"
	"strings"
)

// Target selects which catalogs and destination databases a run touches.
type Target string

const (
	TargetGames  Target = "games"
	TargetMovies Target = "movies"
	TargetBooks  Target = "books"
	TargetMusic  Target = "music"
)

// Targets lists every supported target in display order.
func Targets() []Target {
	return []Target{TargetGames, TargetMovies, TargetBooks, TargetMusic}
}

// ParseTarget validates a user supplied target name.
func ParseTarget(value string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(value)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown target %q (want games, movies, books, or music)", value)
	}
	return t, nil
}

// Valid reports whether t is a known target.
func (t Target) Valid() bool {
	switch t {
	case TargetGames, TargetMovies, TargetBooks, TargetMusic:
		return true
	}
	return false
}

// Kind is the entity type a record describes.
type Kind string

const (
	KindGame   Kind = "game"
	KindMovie  Kind = "movie"
	KindTV     Kind = "tv"
	KindBook   Kind = "book"
	KindTrack  Kind = "track"
	KindAlbum  Kind = "album"
	KindArtist Kind = "artist"
	KindLabel  Kind = "label"
)

// Holds reports whether a database of kind k stores records of kind other.
// Movie databases hold TV shows as well.
func (k Kind) Holds(other Kind) bool {
	return k == other || (k == KindMovie && other == KindTV)
}

// Rank orders music kinds along the track→album→artist→label hierarchy.
// Non-music kinds rank zero and never link.
func (k Kind) Rank() int {
	switch k {
	case KindTrack:
		return 1
	case KindAlbum:
		return 2
	case KindArtist:
		return 3
	case KindLabel:
		return 4
	default:
		return 0
	}
}

// External id schemes. Provider-native schemes equal the provider name.
const (
	SchemeISRC        = "isrc"
	SchemeUPC         = "upc"
	SchemeEAN         = "ean"
	SchemeISBN        = "isbn"
	SchemeIMDb        = "imdb"
	SchemeIGDb        = "igdb"
	SchemeIGDbSlug    = "igdb_slug"
	SchemeTMDb        = "tmdb"
	SchemeMusicBrainz = "musicbrainz"
	SchemeSpotify     = "spotify"
	SchemeGoogleBooks = "google_books"
	SchemeComicVine   = "comicvine"
)

// Contributor is a credited person or company.
type Contributor struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Record is metadata normalized from one provider response. Records are not
// mutated after the provider returns them.
type Record struct {
	Provider     string            `json:"provider"`
	ID           string            `json:"id"`
	Kind         Kind              `json:"kind"`
	Title        string            `json:"title"`
	ReleaseDate  string            `json:"release_date,omitempty"`
	Rating       *float64          `json:"rating,omitempty"`
	Description  string            `json:"description,omitempty"`
	Series       string            `json:"series,omitempty"`
	Seasons      int               `json:"seasons,omitempty"`
	Episodes     int               `json:"episodes,omitempty"`
	Genres       []string          `json:"genres,omitempty"`
	Platforms    []string          `json:"platforms,omitempty"`
	Themes       []string          `json:"themes,omitempty"`
	Contributors []Contributor     `json:"contributors,omitempty"`
	CoverURL     string            `json:"cover_url,omitempty"`
	URL          string            `json:"url,omitempty"`
	ExternalIDs  map[string]string `json:"external_ids,omitempty"`
	// Related holds parent entities one step up the music hierarchy.
	Related []Record `json:"related,omitempty"`
	// Partial marks search hits that need a follow-up Fetch for full detail.
	Partial bool `json:"partial,omitempty"`
}

// ExternalID returns the id stored for scheme.
func (r *Record) ExternalID(scheme string) string {
	if r == nil || r.ExternalIDs == nil {
		return ""
	}
	return r.ExternalIDs[scheme]
}

// ContributorsWithRole returns contributor names carrying role, in order.
func (r *Record) ContributorsWithRole(role string) []string {
	if r == nil {
		return nil
	}
	var names []string
	for _, c := range r.Contributors {
		if strings.EqualFold(c.Role, role) {
			names = append(names, c.Name)
		}
	}
	return names
}

// Query addresses a catalog entity by id or by name.
type Query struct {
	Kind Kind
	// ID is looked up in Scheme. An empty Scheme means the provider's own ids.
	ID     string
	Scheme string
	Name   string
	// Scrape forces HTML scraping for providers that support it.
	Scrape bool
}

// ByID reports whether q addresses an entity by identifier.
func (q Query) ByID() bool {
	return strings.TrimSpace(q.ID) != ""
}

func (q Query) String() string {
	switch {
	case q.ByID() && q.Scheme != "":
		return fmt.Sprintf("%s:%s", q.Scheme, q.ID)
	case q.ByID():
		return q.ID
	default:
		return fmt.Sprintf("name:%q", q.Name)
	}
}
