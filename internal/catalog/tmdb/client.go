package tmdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"shelfsync/internal/catalog"
	"shelfsync/internal/services"
)

// Name is the provider key used in the registry and external id maps.
const Name = catalog.SchemeTMDb

const (
	DefaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p/w500"
	siteBaseURL    = "https://www.themoviedb.org/"
	maxCast        = 5
)

// Result represents a single TMDB search match. TV results carry Name and
// FirstAirDate instead of Title and ReleaseDate.
type Result struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int64   `json:"vote_count"`
}

// Response models the TMDB paginated search response.
type Response struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

type named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CastMember is one billed actor.
type CastMember struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// CrewMember is one crew credit.
type CrewMember struct {
	Name string `json:"name"`
	Job  string `json:"job"`
}

// MovieDetails captures the movie payload with credits appended.
type MovieDetails struct {
	Result
	IMDbID              string  `json:"imdb_id"`
	Genres              []named `json:"genres"`
	BelongsToCollection *named  `json:"belongs_to_collection"`
	ProductionCompanies []named `json:"production_companies"`
	Credits             struct {
		Cast []CastMember `json:"cast"`
		Crew []CrewMember `json:"crew"`
	} `json:"credits"`
}

// TVDetails captures the tv payload with credits and external ids appended.
type TVDetails struct {
	Result
	Genres              []named `json:"genres"`
	CreatedBy           []named `json:"created_by"`
	Networks            []named `json:"networks"`
	ProductionCompanies []named `json:"production_companies"`
	NumberOfSeasons     int     `json:"number_of_seasons"`
	NumberOfEpisodes    int     `json:"number_of_episodes"`
	Credits             struct {
		Cast []CastMember `json:"cast"`
	} `json:"credits"`
	ExternalIDs struct {
		IMDbID string `json:"imdb_id"`
	} `json:"external_ids"`
}

type findResponse struct {
	MovieResults []Result `json:"movie_results"`
	TVResults    []Result `json:"tv_results"`
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey   string
	baseURL  string
	language string
	exec     *catalog.Executor
}

var _ catalog.Provider = (*Client)(nil)

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...catalog.ExecutorOption) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	return &Client{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: strings.TrimSpace(language),
		exec:     catalog.NewExecutor(Name, opts...),
	}, nil
}

// Name implements catalog.Provider.
func (c *Client) Name() string { return Name }

// SearchMovie searches TMDB for the supplied title. A positive year narrows
// results to that primary release year.
func (c *Client) SearchMovie(ctx context.Context, query string, year int) (*Response, error) {
	params := url.Values{}
	if year > 0 {
		params.Set("primary_release_year", strconv.Itoa(year))
	}
	return c.search(ctx, "/search/movie", query, params)
}

// SearchTV searches TMDB for TV shows matching query.
func (c *Client) SearchTV(ctx context.Context, query string) (*Response, error) {
	return c.search(ctx, "/search/tv", query, url.Values{})
}

func (c *Client) search(ctx context.Context, path, query string, params url.Values) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, Name, "search", "query must not be empty", nil)
	}
	params.Set("query", query)
	params.Set("include_adult", "false")
	var payload Response
	if err := c.exec.GetJSON(ctx, c.endpoint(path, params), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetMovieDetails fetches a movie with its credits.
func (c *Client) GetMovieDetails(ctx context.Context, movieID int64) (*MovieDetails, error) {
	if movieID <= 0 {
		return nil, services.Wrap(services.ErrValidation, Name, "movie", "movie id must be positive", nil)
	}
	params := url.Values{}
	params.Set("append_to_response", "credits")
	var payload MovieDetails
	if err := c.exec.GetJSON(ctx, c.endpoint("/movie/"+strconv.FormatInt(movieID, 10), params), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetTVDetails fetches a TV show with its credits and external ids.
func (c *Client) GetTVDetails(ctx context.Context, tvID int64) (*TVDetails, error) {
	if tvID <= 0 {
		return nil, services.Wrap(services.ErrValidation, Name, "tv", "tv id must be positive", nil)
	}
	params := url.Values{}
	params.Set("append_to_response", "credits,external_ids")
	var payload TVDetails
	if err := c.exec.GetJSON(ctx, c.endpoint("/tv/"+strconv.FormatInt(tvID, 10), params), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FindByIMDb maps an IMDb id onto a TMDB movie or, for kind tv, a TV show.
func (c *Client) FindByIMDb(ctx context.Context, imdbID string, kind catalog.Kind) (*Result, error) {
	imdbID = strings.TrimSpace(imdbID)
	params := url.Values{}
	params.Set("external_source", "imdb_id")
	var payload findResponse
	if err := c.exec.GetJSON(ctx, c.endpoint("/find/"+url.PathEscape(imdbID), params), nil, &payload); err != nil {
		return nil, err
	}
	results := payload.MovieResults
	if kind == catalog.KindTV {
		results = payload.TVResults
	}
	if len(results) == 0 {
		return nil, services.Wrap(services.ErrNotFound, Name, "find", "no "+string(kindOrMovie(kind))+" for imdb id "+imdbID, nil)
	}
	return &results[0], nil
}

// Fetch implements catalog.Provider. Kind tv reads /tv; anything else reads
// /movie.
func (c *Client) Fetch(ctx context.Context, q catalog.Query) (*catalog.Record, error) {
	kind := kindOrMovie(q.Kind)
	var tmdbID int64
	switch q.Scheme {
	case "", Name:
		id, err := strconv.ParseInt(strings.TrimSpace(q.ID), 10, 64)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, Name, "fetch", fmt.Sprintf("invalid %s id %q", kind, q.ID), err)
		}
		tmdbID = id
	case catalog.SchemeIMDb:
		found, err := c.FindByIMDb(ctx, q.ID, kind)
		if err != nil {
			return nil, err
		}
		tmdbID = found.ID
	default:
		return nil, services.Wrap(services.ErrValidation, Name, "fetch", "unsupported id scheme "+q.Scheme, nil)
	}
	if kind == catalog.KindTV {
		details, err := c.GetTVDetails(ctx, tmdbID)
		if err != nil {
			return nil, err
		}
		return details.record(), nil
	}
	details, err := c.GetMovieDetails(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	return details.record(), nil
}

// Search implements catalog.Provider.
func (c *Client) Search(ctx context.Context, q catalog.Query) ([]catalog.Record, error) {
	kind := kindOrMovie(q.Kind)
	var (
		resp *Response
		err  error
	)
	if kind == catalog.KindTV {
		resp, err = c.SearchTV(ctx, q.Name)
	} else {
		resp, err = c.SearchMovie(ctx, q.Name, 0)
	}
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Record, 0, len(resp.Results))
	for _, r := range resp.Results {
		rec := r.record(kind)
		rec.Partial = true
		out = append(out, rec)
	}
	return out, nil
}

func kindOrMovie(kind catalog.Kind) catalog.Kind {
	if kind == catalog.KindTV {
		return kind
	}
	return catalog.KindMovie
}

func (c *Client) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	return c.baseURL + path + "?" + params.Encode()
}

func (r Result) record(kind catalog.Kind) catalog.Record {
	id := strconv.FormatInt(r.ID, 10)
	rec := catalog.Record{
		Provider:    Name,
		ID:          id,
		Kind:        kind,
		Title:       strings.TrimSpace(firstNonEmpty(r.Title, r.Name)),
		ReleaseDate: firstNonEmpty(r.ReleaseDate, r.FirstAirDate),
		Description: strings.TrimSpace(r.Overview),
		URL:         siteBaseURL + string(kind) + "/" + id,
		ExternalIDs: map[string]string{Name: id},
	}
	if r.VoteCount > 0 {
		rating := math.Round(r.VoteAverage*10) / 10
		rec.Rating = &rating
	}
	if r.PosterPath != "" {
		rec.CoverURL = imageBaseURL + r.PosterPath
	}
	return rec
}

func (d *MovieDetails) record() *catalog.Record {
	rec := d.Result.record(catalog.KindMovie)
	for _, g := range d.Genres {
		rec.Genres = append(rec.Genres, g.Name)
	}
	rec.Genres = catalog.DedupeFold(rec.Genres)
	if d.BelongsToCollection != nil {
		rec.Series = strings.TrimSpace(d.BelongsToCollection.Name)
	}
	if d.IMDbID != "" {
		rec.ExternalIDs[catalog.SchemeIMDb] = d.IMDbID
	}
	for _, crew := range d.Credits.Crew {
		if crew.Job == "Director" {
			rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: crew.Name, Role: "Director"})
		}
	}
	rec.Contributors = append(rec.Contributors, billedCast(d.Credits.Cast)...)
	for _, company := range d.ProductionCompanies {
		rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: company.Name, Role: "Studio"})
	}
	return &rec
}

func (d *TVDetails) record() *catalog.Record {
	rec := d.Result.record(catalog.KindTV)
	for _, g := range d.Genres {
		rec.Genres = append(rec.Genres, g.Name)
	}
	rec.Genres = catalog.DedupeFold(rec.Genres)
	rec.Seasons = d.NumberOfSeasons
	rec.Episodes = d.NumberOfEpisodes
	if d.ExternalIDs.IMDbID != "" {
		rec.ExternalIDs[catalog.SchemeIMDb] = d.ExternalIDs.IMDbID
	}
	for _, creator := range d.CreatedBy {
		rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: creator.Name, Role: "Creator"})
	}
	rec.Contributors = append(rec.Contributors, billedCast(d.Credits.Cast)...)
	for _, network := range d.Networks {
		rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: network.Name, Role: "Studio"})
	}
	for _, company := range d.ProductionCompanies {
		rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: company.Name, Role: "Studio"})
	}
	return &rec
}

func billedCast(members []CastMember) []catalog.Contributor {
	cast := append([]CastMember(nil), members...)
	sort.SliceStable(cast, func(i, j int) bool { return cast[i].Order < cast[j].Order })
	out := make([]catalog.Contributor, 0, maxCast)
	for i, member := range cast {
		if i == maxCast {
			break
		}
		out = append(out, catalog.Contributor{Name: member.Name, Role: "Cast"})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
