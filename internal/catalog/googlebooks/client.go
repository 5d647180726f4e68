package googlebooks

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"shelfsync/internal/catalog"
	"shelfsync/internal/services"
)

// Name is the provider key used in the registry and external id maps.
const Name = catalog.SchemeGoogleBooks

const (
	DefaultBaseURL    = "https://www.googleapis.com/books/v1"
	searchLimit       = 10
	matureCategory    = "Mature"
	categorySeparator = " / "
)

var isbnPattern = regexp.MustCompile(`^(\d{9}[\dX]|\d{13})$`)

// Client reads volumes from the Google Books API. The API key is optional.
type Client struct {
	apiKey  string
	baseURL string
	exec    *catalog.Executor
}

var _ catalog.Provider = (*Client)(nil)

type identifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type volumeInfo struct {
	Title               string            `json:"title"`
	Subtitle            string            `json:"subtitle"`
	Authors             []string          `json:"authors"`
	Publisher           string            `json:"publisher"`
	PublishedDate       string            `json:"publishedDate"`
	Description         string            `json:"description"`
	IndustryIdentifiers []identifier      `json:"industryIdentifiers"`
	PageCount           int               `json:"pageCount"`
	PrintType           string            `json:"printType"`
	Categories          []string          `json:"categories"`
	AverageRating       float64           `json:"averageRating"`
	RatingsCount        int               `json:"ratingsCount"`
	ImageLinks          map[string]string `json:"imageLinks"`
	CanonicalVolumeLink string            `json:"canonicalVolumeLink"`
	InfoLink            string            `json:"infoLink"`
}

// Volume is one Google Books volume resource.
type Volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

// New creates a Google Books client.
func New(apiKey, baseURL string, opts ...catalog.ExecutorOption) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: baseURL,
		exec:    catalog.NewExecutor(Name, opts...),
	}
}

// Name implements catalog.Provider.
func (c *Client) Name() string { return Name }

// Fetch implements catalog.Provider for volume ids and ISBNs.
func (c *Client) Fetch(ctx context.Context, q catalog.Query) (*catalog.Record, error) {
	id := strings.TrimSpace(q.ID)
	switch q.Scheme {
	case "", Name:
		var vol Volume
		if err := c.get(ctx, "/volumes/"+url.PathEscape(id), nil, &vol); err != nil {
			return nil, err
		}
		return vol.record(), nil
	case catalog.SchemeISBN:
		isbn := NormalizeISBN(id)
		if !isbnPattern.MatchString(isbn) {
			return nil, services.Wrap(services.ErrValidation, Name, "fetch", fmt.Sprintf("invalid isbn %q", id), nil)
		}
		vols, err := c.volumes(ctx, "isbn:"+isbn, 1)
		if err != nil {
			return nil, err
		}
		if len(vols) == 0 {
			return nil, services.Wrap(services.ErrNotFound, Name, "fetch", "no volume for isbn "+isbn, nil)
		}
		return vols[0].record(), nil
	default:
		return nil, services.Wrap(services.ErrValidation, Name, "fetch", "unsupported id scheme "+q.Scheme, nil)
	}
}

// Search implements catalog.Provider.
func (c *Client) Search(ctx context.Context, q catalog.Query) ([]catalog.Record, error) {
	name := strings.TrimSpace(q.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, Name, "search", "query must not be empty", nil)
	}
	vols, err := c.volumes(ctx, "intitle:"+name, searchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Record, 0, len(vols))
	for _, vol := range vols {
		rec := vol.record()
		rec.Partial = true
		out = append(out, *rec)
	}
	return out, nil
}

func (c *Client) volumes(ctx context.Context, query string, limit int) ([]Volume, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("printType", "books")
	params.Set("maxResults", fmt.Sprint(limit))
	var payload volumesResponse
	if err := c.get(ctx, "/volumes", params, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	endpoint := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	return c.exec.GetJSON(ctx, endpoint, nil, v)
}

// NormalizeISBN strips hyphens and spaces and upper-cases the check digit.
func NormalizeISBN(value string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(value) {
		if (r >= '0' && r <= '9') || r == 'X' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (v Volume) record() *catalog.Record {
	info := v.VolumeInfo
	title := strings.TrimSpace(info.Title)
	if sub := strings.TrimSpace(info.Subtitle); sub != "" {
		title += ": " + sub
	}
	rec := &catalog.Record{
		Provider:    Name,
		ID:          v.ID,
		Kind:        catalog.KindBook,
		Title:       title,
		ReleaseDate: info.PublishedDate,
		Description: catalog.StripHTML(info.Description),
		Genres:      splitCategories(info.Categories),
		CoverURL:    coverURL(info.ImageLinks),
		URL:         firstNonEmpty(info.CanonicalVolumeLink, info.InfoLink),
		ExternalIDs: map[string]string{Name: v.ID},
	}
	if info.AverageRating > 0 {
		rating := info.AverageRating
		rec.Rating = &rating
	}
	if info.PrintType != "" {
		rec.Platforms = []string{catalog.TitleCase(info.PrintType)}
	}
	for _, author := range info.Authors {
		rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: author, Role: "Author"})
	}
	if info.Publisher != "" {
		rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: info.Publisher, Role: "Publisher"})
	}
	// ISBN_13 wins over ISBN_10 when both are present.
	for _, want := range []string{"ISBN_13", "ISBN_10"} {
		for _, ident := range info.IndustryIdentifiers {
			if ident.Type == want && rec.ExternalIDs[catalog.SchemeISBN] == "" {
				rec.ExternalIDs[catalog.SchemeISBN] = NormalizeISBN(ident.Identifier)
			}
		}
	}
	return rec
}

func splitCategories(categories []string) []string {
	var out []string
	for _, category := range categories {
		for _, part := range strings.Split(category, categorySeparator) {
			part = strings.TrimSpace(part)
			if part == "" || strings.EqualFold(part, matureCategory) {
				continue
			}
			out = append(out, part)
		}
	}
	return catalog.DedupeFold(out)
}

func coverURL(links map[string]string) string {
	for _, size := range []string{"extraLarge", "large", "medium", "small", "thumbnail", "smallThumbnail"} {
		if link := strings.TrimSpace(links[size]); link != "" {
			return strings.Replace(link, "http://", "https://", 1)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
