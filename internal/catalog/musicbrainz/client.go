package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"shelfsync/internal/catalog"
	"shelfsync/internal/services"
)

// Name is the provider key used in the registry and external id maps.
const Name = catalog.SchemeMusicBrainz

const (
	DefaultBaseURL = "https://musicbrainz.org/ws/2"
	siteBaseURL    = "https://musicbrainz.org/"
	coverArtURL    = "https://coverartarchive.org/release/%s/front-500"
	searchLimit    = 5
)

// MusicBrainz allows one request per second per client.
var defaultPace = rate.Every(time.Second)

var mbidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Client reads the MusicBrainz web service.
type Client struct {
	baseURL string
	exec    *catalog.Executor
}

var _ catalog.Provider = (*Client)(nil)

// New creates a MusicBrainz client. MusicBrainz rejects anonymous clients, so
// a descriptive user agent with contact details is required.
func New(baseURL, userAgent string, opts ...catalog.ExecutorOption) (*Client, error) {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return nil, errors.New("musicbrainz user agent required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	execOpts := []catalog.ExecutorOption{
		catalog.WithPacer(rate.NewLimiter(defaultPace, 1)),
		catalog.WithUserAgent(userAgent),
	}
	execOpts = append(execOpts, opts...)
	return &Client{baseURL: baseURL, exec: catalog.NewExecutor(Name, execOpts...)}, nil
}

// Name implements catalog.Provider.
func (c *Client) Name() string { return Name }

// Fetch implements catalog.Provider. Supported schemes are the native MBID
// (kind selects the entity), isrc, upc/ean barcodes, and spotify artist ids.
func (c *Client) Fetch(ctx context.Context, q catalog.Query) (*catalog.Record, error) {
	id := strings.TrimSpace(q.ID)
	switch q.Scheme {
	case "", Name:
		if !mbidPattern.MatchString(strings.ToLower(id)) {
			return nil, services.Wrap(services.ErrValidation, Name, "fetch", fmt.Sprintf("invalid mbid %q", q.ID), nil)
		}
		return c.lookup(ctx, q.Kind, strings.ToLower(id))
	case catalog.SchemeISRC:
		return c.LookupISRC(ctx, id)
	case catalog.SchemeUPC, catalog.SchemeEAN:
		return c.LookupBarcode(ctx, id)
	case catalog.SchemeSpotify:
		if q.Kind != catalog.KindArtist {
			return nil, services.Wrap(services.ErrValidation, Name, "fetch", "spotify ids resolve artists only", nil)
		}
		return c.LookupSpotifyArtist(ctx, id)
	default:
		return nil, services.Wrap(services.ErrValidation, Name, "fetch", "unsupported id scheme "+q.Scheme, nil)
	}
}

// Search implements catalog.Provider using MusicBrainz's scored search.
func (c *Client) Search(ctx context.Context, q catalog.Query) ([]catalog.Record, error) {
	name := strings.TrimSpace(q.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, Name, "search", "query must not be empty", nil)
	}
	entity, err := entityFor(q.Kind)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("query", name)
	params.Set("limit", strconv.Itoa(searchLimit))
	var payload searchResponse
	if err := c.get(ctx, "/"+entity, params, &payload); err != nil {
		return nil, err
	}
	var out []catalog.Record
	switch q.Kind {
	case catalog.KindTrack:
		for _, r := range payload.Recordings {
			out = append(out, *r.record(""))
		}
	case catalog.KindAlbum:
		for _, r := range payload.Releases {
			out = append(out, *r.record())
		}
	case catalog.KindArtist:
		for _, a := range payload.Artists {
			out = append(out, *a.record())
		}
	case catalog.KindLabel:
		for _, l := range payload.Labels {
			out = append(out, *l.record())
		}
	}
	for i := range out {
		out[i].Partial = true
	}
	return out, nil
}

// LookupISRC resolves a recording by ISRC.
func (c *Client) LookupISRC(ctx context.Context, isrc string) (*catalog.Record, error) {
	isrc = strings.ToUpper(strings.TrimSpace(isrc))
	params := url.Values{}
	params.Set("inc", "artist-credits+releases+genres+isrcs")
	var payload isrcResponse
	if err := c.get(ctx, "/isrc/"+url.PathEscape(isrc), params, &payload); err != nil {
		return nil, err
	}
	if len(payload.Recordings) == 0 {
		return nil, services.Wrap(services.ErrNotFound, Name, "isrc", "no recording for isrc "+isrc, nil)
	}
	return payload.Recordings[0].record(isrc), nil
}

// LookupBarcode resolves a release by UPC or EAN barcode.
func (c *Client) LookupBarcode(ctx context.Context, barcode string) (*catalog.Record, error) {
	barcode = strings.TrimSpace(barcode)
	params := url.Values{}
	params.Set("query", "barcode:"+barcode)
	params.Set("limit", "1")
	var payload searchResponse
	if err := c.get(ctx, "/release", params, &payload); err != nil {
		return nil, err
	}
	if len(payload.Releases) == 0 {
		return nil, services.Wrap(services.ErrNotFound, Name, "barcode", "no release for barcode "+barcode, nil)
	}
	return c.lookup(ctx, catalog.KindAlbum, payload.Releases[0].ID)
}

// LookupSpotifyArtist follows the MusicBrainz URL relationship for a Spotify
// artist link.
func (c *Client) LookupSpotifyArtist(ctx context.Context, spotifyID string) (*catalog.Record, error) {
	params := url.Values{}
	params.Set("resource", "https://open.spotify.com/artist/"+strings.TrimSpace(spotifyID))
	params.Set("inc", "artist-rels")
	var payload urlResponse
	if err := c.get(ctx, "/url", params, &payload); err != nil {
		return nil, err
	}
	for _, rel := range payload.Relations {
		if rel.Artist != nil && rel.Artist.ID != "" {
			return c.lookup(ctx, catalog.KindArtist, rel.Artist.ID)
		}
	}
	return nil, services.Wrap(services.ErrNotFound, Name, "url", "no artist linked to spotify id "+spotifyID, nil)
}

func (c *Client) lookup(ctx context.Context, kind catalog.Kind, mbid string) (*catalog.Record, error) {
	params := url.Values{}
	switch kind {
	case catalog.KindTrack:
		params.Set("inc", "artist-credits+releases+genres+isrcs")
		var r recording
		if err := c.get(ctx, "/recording/"+mbid, params, &r); err != nil {
			return nil, err
		}
		return r.record(""), nil
	case catalog.KindAlbum:
		params.Set("inc", "artist-credits+labels+genres+release-groups+media")
		var r release
		if err := c.get(ctx, "/release/"+mbid, params, &r); err != nil {
			return nil, err
		}
		return r.record(), nil
	case catalog.KindArtist:
		params.Set("inc", "genres")
		var a artist
		if err := c.get(ctx, "/artist/"+mbid, params, &a); err != nil {
			return nil, err
		}
		return a.record(), nil
	case catalog.KindLabel:
		var l label
		if err := c.get(ctx, "/label/"+mbid, params, &l); err != nil {
			return nil, err
		}
		return l.record(), nil
	default:
		return nil, services.Wrap(services.ErrValidation, Name, "lookup", fmt.Sprintf("unsupported kind %q", kind), nil)
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	params.Set("fmt", "json")
	return c.exec.GetJSON(ctx, c.baseURL+path+"?"+params.Encode(), http.Header{}, v)
}

func entityFor(kind catalog.Kind) (string, error) {
	switch kind {
	case catalog.KindTrack:
		return "recording", nil
	case catalog.KindAlbum:
		return "release", nil
	case catalog.KindArtist:
		return "artist", nil
	case catalog.KindLabel:
		return "label", nil
	default:
		return "", services.Wrap(services.ErrValidation, Name, "search", fmt.Sprintf("unsupported kind %q", kind), nil)
	}
}
