package igdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shelfsync/internal/catalog"
	"shelfsync/internal/services"
)

// Name is the provider key used in the registry and external id maps.
const Name = catalog.SchemeIGDb

const (
	DefaultBaseURL  = "https://api.igdb.com/v4"
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"
	coverURLFormat  = "https://images.igdb.com/igdb/image/upload/t_cover_big/%s.jpg"
	searchLimit     = 10
)

const gameFields = "fields name,slug,url,summary,first_release_date,total_rating," +
	"genres.name,themes.name,platforms.name,game_modes.name,franchises.name,collections.name," +
	"involved_companies.developer,involved_companies.publisher,involved_companies.company.name,cover.image_id;"

// Config holds IGDb credentials. IGDb authenticates through Twitch.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	HTTPClient   *http.Client
}

// Client queries the IGDb v4 API with apicalypse request bodies.
type Client struct {
	clientID string
	baseURL  string
	exec     *catalog.Executor
}

var _ catalog.Provider = (*Client)(nil)

type namedRef struct {
	Name string `json:"name"`
}

type involvedCompany struct {
	Developer bool     `json:"developer"`
	Publisher bool     `json:"publisher"`
	Company   namedRef `json:"company"`
}

// Game is the subset of the IGDb game resource the sync consumes.
type Game struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Slug              string            `json:"slug"`
	URL               string            `json:"url"`
	Summary           string            `json:"summary"`
	FirstReleaseDate  int64             `json:"first_release_date"`
	TotalRating       float64           `json:"total_rating"`
	Genres            []namedRef        `json:"genres"`
	Themes            []namedRef        `json:"themes"`
	Platforms         []namedRef        `json:"platforms"`
	GameModes         []namedRef        `json:"game_modes"`
	Franchises        []namedRef        `json:"franchises"`
	Collections       []namedRef        `json:"collections"`
	InvolvedCompanies []involvedCompany `json:"involved_companies"`
	Cover             *struct {
		ImageID string `json:"image_id"`
	} `json:"cover"`
}

// New creates an IGDb client. The token source is built from the Twitch
// credentials; extra executor options are applied after it.
func New(cfg Config, opts ...catalog.ExecutorOption) (*Client, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || secret == "" {
		return nil, errors.New("igdb client id and secret required")
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
		Style:        catalog.AuthInBody,
		HTTPClient:   cfg.HTTPClient,
	}
	execOpts := []catalog.ExecutorOption{
		catalog.WithHTTPClient(cfg.HTTPClient),
		catalog.WithTokenSource(catalog.NewCachedTokenSource(creds.Fetch, catalog.DefaultTokenLeeway)),
	}
	execOpts = append(execOpts, opts...)
	return &Client{
		clientID: clientID,
		baseURL:  baseURL,
		exec:     catalog.NewExecutor(Name, execOpts...),
	}, nil
}

// Name implements catalog.Provider.
func (c *Client) Name() string { return Name }

// Fetch implements catalog.Provider. Games are addressed by numeric id or slug.
func (c *Client) Fetch(ctx context.Context, q catalog.Query) (*catalog.Record, error) {
	id := strings.TrimSpace(q.ID)
	var where string
	switch q.Scheme {
	case "", Name:
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			return nil, services.Wrap(services.ErrValidation, Name, "fetch", fmt.Sprintf("invalid game id %q", q.ID), err)
		}
		where = "where id = " + id + ";"
	case catalog.SchemeIGDbSlug:
		where = "where slug = " + quote(id) + ";"
	default:
		return nil, services.Wrap(services.ErrValidation, Name, "fetch", "unsupported id scheme "+q.Scheme, nil)
	}
	games, err := c.query(ctx, gameFields+" "+where+" limit 1;")
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, services.Wrap(services.ErrNotFound, Name, "fetch", "no game for "+q.String(), nil)
	}
	return games[0].record(), nil
}

// Search implements catalog.Provider using IGDb's relevance ranking.
func (c *Client) Search(ctx context.Context, q catalog.Query) ([]catalog.Record, error) {
	name := strings.TrimSpace(q.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, Name, "search", "query must not be empty", nil)
	}
	body := fmt.Sprintf("search %s; %s limit %d;", quote(name), gameFields, searchLimit)
	games, err := c.query(ctx, body)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Record, 0, len(games))
	for _, g := range games {
		out = append(out, *g.record())
	}
	return out, nil
}

func (c *Client) query(ctx context.Context, body string) ([]Game, error) {
	resp, err := c.exec.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/games", strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Client-ID", c.clientID)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "text/plain")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	var games []Game
	if err := resp.Decode(&games); err != nil {
		return nil, services.Wrap(services.ErrValidation, Name, "decode games", "", err)
	}
	return games, nil
}

func (g Game) record() *catalog.Record {
	id := strconv.FormatInt(g.ID, 10)
	rec := &catalog.Record{
		Provider:    Name,
		ID:          id,
		Kind:        catalog.KindGame,
		Title:       strings.TrimSpace(g.Name),
		Description: strings.TrimSpace(g.Summary),
		URL:         g.URL,
		Genres:      names(g.Genres),
		Themes:      catalog.DedupeFold(append(names(g.Themes), names(g.GameModes)...)),
		Platforms:   names(g.Platforms),
		ExternalIDs: map[string]string{Name: id},
	}
	if g.Slug != "" {
		rec.ExternalIDs[catalog.SchemeIGDbSlug] = g.Slug
	}
	if g.FirstReleaseDate > 0 {
		rec.ReleaseDate = time.Unix(g.FirstReleaseDate, 0).UTC().Format("2006-01-02")
	}
	if g.TotalRating > 0 {
		rating := math.Round(g.TotalRating*10) / 10
		rec.Rating = &rating
	}
	if series := append(names(g.Franchises), names(g.Collections)...); len(series) > 0 {
		rec.Series = series[0]
	}
	for _, ic := range g.InvolvedCompanies {
		if ic.Developer {
			rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: ic.Company.Name, Role: "Developer"})
		}
		if ic.Publisher {
			rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: ic.Company.Name, Role: "Publisher"})
		}
	}
	if g.Cover != nil && g.Cover.ImageID != "" {
		rec.CoverURL = fmt.Sprintf(coverURLFormat, g.Cover.ImageID)
	}
	return rec
}

func names(refs []namedRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name)
	}
	return catalog.DedupeFold(out)
}

// quote renders s as an apicalypse string literal.
func quote(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}
