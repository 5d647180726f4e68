package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"shelfsync/internal/catalog"
	"shelfsync/internal/services"
)

// Name is the provider key used in the registry and external id maps.
const Name = catalog.SchemeSpotify

const (
	DefaultBaseURL  = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
	searchLimit     = 5
)

// Config holds Spotify client credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	Market       string
	HTTPClient   *http.Client
}

// Client reads tracks, albums, and artists from the Spotify Web API.
type Client struct {
	baseURL string
	market  string
	exec    *catalog.Executor
}

var _ catalog.Provider = (*Client)(nil)

type image struct {
	URL string `json:"url"`
}

type simpleArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
	UPC  string `json:"upc"`
	EAN  string `json:"ean"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

type album struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	AlbumType    string         `json:"album_type"`
	ReleaseDate  string         `json:"release_date"`
	Artists      []simpleArtist `json:"artists"`
	Images       []image        `json:"images"`
	Genres       []string       `json:"genres"`
	Label        string         `json:"label"`
	ExternalIDs  externalIDs    `json:"external_ids"`
	ExternalURLs externalURLs   `json:"external_urls"`
}

type track struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Album        album          `json:"album"`
	Artists      []simpleArtist `json:"artists"`
	ExternalIDs  externalIDs    `json:"external_ids"`
	ExternalURLs externalURLs   `json:"external_urls"`
}

type fullArtist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Genres       []string     `json:"genres"`
	Images       []image      `json:"images"`
	ExternalURLs externalURLs `json:"external_urls"`
}

type page[T any] struct {
	Items []T `json:"items"`
}

type searchResponse struct {
	Tracks  page[track]      `json:"tracks"`
	Albums  page[album]      `json:"albums"`
	Artists page[fullArtist] `json:"artists"`
}

// New creates a Spotify client using the client-credentials grant.
func New(cfg Config, opts ...catalog.ExecutorOption) (*Client, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || secret == "" {
		return nil, errors.New("spotify client id and secret required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	creds := catalog.ClientCredentials{
		Provider:     Name,
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: secret,
		Style:        catalog.AuthInHeader,
		HTTPClient:   cfg.HTTPClient,
	}
	execOpts := []catalog.ExecutorOption{
		catalog.WithHTTPClient(cfg.HTTPClient),
		catalog.WithTokenSource(catalog.NewCachedTokenSource(creds.Fetch, catalog.DefaultTokenLeeway)),
	}
	execOpts = append(execOpts, opts...)
	return &Client{
		baseURL: baseURL,
		market:  strings.TrimSpace(cfg.Market),
		exec:    catalog.NewExecutor(Name, execOpts...),
	}, nil
}

// Name implements catalog.Provider.
func (c *Client) Name() string { return Name }

// Fetch implements catalog.Provider. Only native Spotify ids are supported and
// the query kind selects the endpoint.
func (c *Client) Fetch(ctx context.Context, q catalog.Query) (*catalog.Record, error) {
	if q.Scheme != "" && q.Scheme != Name {
		return nil, services.Wrap(services.ErrValidation, Name, "fetch", "unsupported id scheme "+q.Scheme, nil)
	}
	id := url.PathEscape(strings.TrimSpace(q.ID))
	switch q.Kind {
	case catalog.KindTrack:
		var t track
		if err := c.get(ctx, "/tracks/"+id, nil, &t); err != nil {
			return nil, err
		}
		return t.record(), nil
	case catalog.KindAlbum:
		var a album
		if err := c.get(ctx, "/albums/"+id, nil, &a); err != nil {
			return nil, err
		}
		return a.record(), nil
	case catalog.KindArtist:
		var a fullArtist
		if err := c.get(ctx, "/artists/"+id, nil, &a); err != nil {
			return nil, err
		}
		return a.record(), nil
	default:
		return nil, services.Wrap(services.ErrValidation, Name, "fetch", fmt.Sprintf("unsupported kind %q", q.Kind), nil)
	}
}

// Search implements catalog.Provider.
func (c *Client) Search(ctx context.Context, q catalog.Query) ([]catalog.Record, error) {
	name := strings.TrimSpace(q.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, Name, "search", "query must not be empty", nil)
	}
	var kind string
	switch q.Kind {
	case catalog.KindTrack, catalog.KindAlbum, catalog.KindArtist:
		kind = string(q.Kind)
	default:
		return nil, services.Wrap(services.ErrValidation, Name, "search", fmt.Sprintf("unsupported kind %q", q.Kind), nil)
	}
	params := url.Values{}
	params.Set("q", name)
	params.Set("type", kind)
	params.Set("limit", fmt.Sprint(searchLimit))
	var payload searchResponse
	if err := c.get(ctx, "/search", params, &payload); err != nil {
		return nil, err
	}
	var out []catalog.Record
	for _, t := range payload.Tracks.Items {
		out = append(out, *t.record())
	}
	for _, a := range payload.Albums.Items {
		rec := a.record()
		rec.Partial = true
		out = append(out, *rec)
	}
	for _, a := range payload.Artists.Items {
		out = append(out, *a.record())
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	if params == nil {
		params = url.Values{}
	}
	if c.market != "" {
		params.Set("market", c.market)
	}
	endpoint := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	return c.exec.GetJSON(ctx, endpoint, nil, v)
}

func (t track) record() *catalog.Record {
	rec := &catalog.Record{
		Provider:     Name,
		ID:           t.ID,
		Kind:         catalog.KindTrack,
		Title:        strings.TrimSpace(t.Name),
		ReleaseDate:  t.Album.ReleaseDate,
		Contributors: artistCredits(t.Artists),
		CoverURL:     firstImage(t.Album.Images),
		URL:          t.ExternalURLs.Spotify,
		ExternalIDs:  map[string]string{Name: t.ID},
	}
	if isrc := strings.ToUpper(strings.TrimSpace(t.ExternalIDs.ISRC)); isrc != "" {
		rec.ExternalIDs[catalog.SchemeISRC] = isrc
	}
	if t.Album.ID != "" {
		parent := t.Album.record()
		parent.Partial = true
		rec.Related = []catalog.Record{*parent}
	}
	return rec
}

func (a album) record() *catalog.Record {
	rec := &catalog.Record{
		Provider:     Name,
		ID:           a.ID,
		Kind:         catalog.KindAlbum,
		Title:        strings.TrimSpace(a.Name),
		ReleaseDate:  a.ReleaseDate,
		Genres:       titled(a.Genres),
		Contributors: artistCredits(a.Artists),
		CoverURL:     firstImage(a.Images),
		URL:          a.ExternalURLs.Spotify,
		ExternalIDs:  map[string]string{Name: a.ID},
	}
	if a.AlbumType != "" {
		rec.Themes = []string{catalog.TitleCase(a.AlbumType)}
	}
	if a.Label != "" {
		rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: a.Label, Role: "Label"})
	}
	if upc := strings.TrimSpace(a.ExternalIDs.UPC); upc != "" {
		rec.ExternalIDs[catalog.SchemeUPC] = upc
	}
	if ean := strings.TrimSpace(a.ExternalIDs.EAN); ean != "" {
		rec.ExternalIDs[catalog.SchemeEAN] = ean
	}
	for _, artist := range a.Artists {
		if artist.ID == "" {
			continue
		}
		rec.Related = append(rec.Related, catalog.Record{
			Provider:    Name,
			ID:          artist.ID,
			Kind:        catalog.KindArtist,
			Title:       artist.Name,
			ExternalIDs: map[string]string{Name: artist.ID},
			Partial:     true,
		})
	}
	return rec
}

func (a fullArtist) record() *catalog.Record {
	return &catalog.Record{
		Provider:    Name,
		ID:          a.ID,
		Kind:        catalog.KindArtist,
		Title:       strings.TrimSpace(a.Name),
		Genres:      titled(a.Genres),
		CoverURL:    firstImage(a.Images),
		URL:         a.ExternalURLs.Spotify,
		ExternalIDs: map[string]string{Name: a.ID},
	}
}

func artistCredits(artists []simpleArtist) []catalog.Contributor {
	out := make([]catalog.Contributor, 0, len(artists))
	for _, a := range artists {
		out = append(out, catalog.Contributor{Name: a.Name, Role: "Artist"})
	}
	return out
}

func firstImage(images []image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func titled(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, catalog.TitleCase(v))
	}
	return catalog.DedupeFold(out)
}
