package comicvine

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"

	"shelfsync/internal/catalog"
	"shelfsync/internal/services"
)

// Name is the provider key used in the registry and external id maps.
const Name = catalog.SchemeComicVine

const (
	DefaultBaseURL = "https://comicvine.gamespot.com/api"
	volumePrefix   = "4050-"
	searchLimit    = 10
	volumeFields   = "id,name,description,start_year,publisher,count_of_issues,person_credits,concepts,image,site_detail_url"
	minCredits     = 5
	maxCredits     = 100
)

var (
	volumeIDPattern = regexp.MustCompile(`^(?:4050-)?(\d+)$`)
	creditPattern   = regexp.MustCompile(`^(.+?)\s+(\d+)$`)
)

// Config holds ComicVine settings.
type Config struct {
	APIKey  string
	BaseURL string
	// ForceScraping scrapes the volume page even when the API returned themes.
	ForceScraping bool
}

// Client reads comic volumes from the ComicVine API and fills gaps by
// scraping the public volume page.
type Client struct {
	apiKey        string
	baseURL       string
	forceScraping bool
	exec          *catalog.Executor
}

var _ catalog.Provider = (*Client)(nil)

type named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type credit struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type images struct {
	OriginalURL string `json:"original_url"`
	SuperURL    string `json:"super_url"`
	MediumURL   string `json:"medium_url"`
}

// Volume is the ComicVine volume resource.
type Volume struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	StartYear     string   `json:"start_year"`
	Publisher     *named   `json:"publisher"`
	CountOfIssues int      `json:"count_of_issues"`
	PersonCredits []credit `json:"person_credits"`
	Concepts      []named  `json:"concepts"`
	Image         images   `json:"image"`
	SiteDetailURL string   `json:"site_detail_url"`
}

type envelope struct {
	Error      string          `json:"error"`
	StatusCode int             `json:"status_code"`
	Results    json.RawMessage `json:"results"`
}

// ComicVine reports failures in the body of a 200 response.
const (
	statusOK            = 1
	statusInvalidKey    = 100
	statusObjectMissing = 101
)

func (e envelope) err(op string) error {
	switch e.StatusCode {
	case 0, statusOK:
		return nil
	case statusInvalidKey:
		return services.Wrap(services.ErrAuth, Name, op, e.Error, nil)
	case statusObjectMissing:
		return services.Wrap(services.ErrNotFound, Name, op, e.Error, nil)
	default:
		return services.Wrap(services.ErrValidation, Name, op, fmt.Sprintf("status %d: %s", e.StatusCode, e.Error), nil)
	}
}

// New creates a ComicVine client.
func New(cfg Config, opts ...catalog.ExecutorOption) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("comicvine api key required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:        key,
		baseURL:       baseURL,
		forceScraping: cfg.ForceScraping,
		exec:          catalog.NewExecutor(Name, opts...),
	}, nil
}

// Name implements catalog.Provider.
func (c *Client) Name() string { return Name }

// Fetch implements catalog.Provider for volume ids ("4050-1234" or "1234").
func (c *Client) Fetch(ctx context.Context, q catalog.Query) (*catalog.Record, error) {
	if q.Scheme != "" && q.Scheme != Name {
		return nil, services.Wrap(services.ErrValidation, Name, "fetch", "unsupported id scheme "+q.Scheme, nil)
	}
	match := volumeIDPattern.FindStringSubmatch(strings.TrimSpace(q.ID))
	if match == nil {
		return nil, services.Wrap(services.ErrValidation, Name, "fetch", fmt.Sprintf("invalid volume id %q", q.ID), nil)
	}
	params := url.Values{}
	params.Set("field_list", volumeFields)
	var vol Volume
	if err := c.get(ctx, "fetch", "/volume/"+volumePrefix+match[1]+"/", params, &vol); err != nil {
		return nil, err
	}
	if vol.ID == 0 {
		return nil, services.Wrap(services.ErrNotFound, Name, "fetch", "no volume "+match[1], nil)
	}
	rec := vol.record()
	if vol.SiteDetailURL != "" && (q.Scrape || c.forceScraping || len(rec.Themes) == 0) {
		c.enrich(ctx, rec, vol)
	}
	return rec, nil
}

// Search implements catalog.Provider.
func (c *Client) Search(ctx context.Context, q catalog.Query) ([]catalog.Record, error) {
	name := strings.TrimSpace(q.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, Name, "search", "query must not be empty", nil)
	}
	params := url.Values{}
	params.Set("query", name)
	params.Set("resources", "volume")
	params.Set("limit", strconv.Itoa(searchLimit))
	var vols []Volume
	if err := c.get(ctx, "search", "/search/", params, &vols); err != nil {
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

func (c *Client) get(ctx context.Context, op, path string, params url.Values, v any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	var payload envelope
	if err := c.exec.GetJSON(ctx, c.baseURL+path+"?"+params.Encode(), nil, &payload); err != nil {
		return err
	}
	if err := payload.err(op); err != nil {
		return err
	}
	if len(payload.Results) == 0 || bytes.Equal(payload.Results, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(payload.Results, v); err != nil {
		return services.Wrap(services.ErrValidation, Name, op, "decode results", err)
	}
	return nil
}

// enrich scrapes themes and issue credits from the volume page. Scrape
// failures leave the API data untouched.
func (c *Client) enrich(ctx context.Context, rec *catalog.Record, vol Volume) {
	resp, err := c.exec.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, vol.SiteDetailURL, nil)
	})
	if err != nil {
		return
	}
	page, err := ParseVolumePage(resp.Body)
	if err != nil {
		return
	}
	if len(page.Themes) > 0 {
		rec.Themes = catalog.DedupeFold(append(rec.Themes, page.Themes...))
	}
	creators := page.Creators(vol.CountOfIssues)
	if len(creators) > 0 && len(rec.ContributorsWithRole("Creator")) == 0 {
		for _, name := range creators {
			rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: name, Role: "Creator"})
		}
	}
}

// IssueCredit is one entry from the "Most issue credits" list.
type IssueCredit struct {
	Name  string
	Count int
}

// VolumePage holds data scraped from a volume's public page.
type VolumePage struct {
	Themes  []string
	Credits []IssueCredit
}

// Creators returns names whose credit count spans the whole run. When the
// issue count is unknown, credits between minCredits and maxCredits qualify.
func (p VolumePage) Creators(totalIssues int) []string {
	var out []string
	for _, credit := range p.Credits {
		if totalIssues > 0 {
			if credit.Count == totalIssues {
				out = append(out, credit.Name)
			}
			continue
		}
		if credit.Count >= minCredits && credit.Count <= maxCredits {
			out = append(out, credit.Name)
		}
	}
	return out
}

// ParseVolumePage extracts the themes row of the details table and the
// issue credits list.
func ParseVolumePage(body []byte) (VolumePage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return VolumePage{}, fmt.Errorf("parse volume page: %w", err)
	}
	var page VolumePage
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		if !strings.Contains(strings.ToLower(cells.First().Text()), "themes") {
			return
		}
		cells.Eq(1).Find("a").Each(func(_ int, link *goquery.Selection) {
			if theme := strings.TrimSpace(link.Text()); theme != "" {
				page.Themes = append(page.Themes, theme)
			}
		})
	})
	page.Themes = catalog.DedupeFold(page.Themes)

	doc.Find("*").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if node.Children().Length() > 0 || !strings.EqualFold(strings.TrimSpace(node.Text()), "most issue credits") {
			return true
		}
		container := node.Parent()
		for container.Length() > 0 && container.Find("ul").Length() == 0 {
			container = container.Parent()
		}
		container.Find("ul").First().Find("li").Each(func(_ int, item *goquery.Selection) {
			match := creditPattern.FindStringSubmatch(spacedText(item))
			if match == nil {
				return
			}
			count, err := strconv.Atoi(match[2])
			if err != nil {
				return
			}
			page.Credits = append(page.Credits, IssueCredit{Name: match[1], Count: count})
		})
		return false
	})
	return page, nil
}

// spacedText joins child element text with spaces so markup such as
// <a>Name</a><span>12</span> reads "Name 12".
func spacedText(sel *goquery.Selection) string {
	children := sel.Children()
	if children.Length() == 0 {
		return strings.Join(strings.Fields(sel.Text()), " ")
	}
	parts := children.Map(func(_ int, child *goquery.Selection) string {
		return child.Text()
	})
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func (v Volume) record() *catalog.Record {
	id := strconv.FormatInt(v.ID, 10)
	rec := &catalog.Record{
		Provider:    Name,
		ID:          id,
		Kind:        catalog.KindBook,
		Title:       strings.TrimSpace(v.Name),
		ReleaseDate: strings.TrimSpace(v.StartYear),
		Description: catalog.StripHTML(v.Description),
		CoverURL:    firstNonEmpty(v.Image.OriginalURL, v.Image.SuperURL, v.Image.MediumURL),
		URL:         v.SiteDetailURL,
		Platforms:   []string{"Comic"},
		ExternalIDs: map[string]string{Name: id},
	}
	for _, concept := range v.Concepts {
		rec.Themes = append(rec.Themes, concept.Name)
	}
	rec.Themes = catalog.DedupeFold(rec.Themes)
	if v.Publisher != nil && v.Publisher.Name != "" {
		rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: v.Publisher.Name, Role: "Publisher"})
	}
	for _, person := range v.PersonCredits {
		rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: person.Name, Role: "Creator"})
	}
	return rec
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
