package notion

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"shelfsync/internal/catalog"
	"shelfsync/internal/logging"
	"shelfsync/internal/merge"
	"shelfsync/internal/services"
	"shelfsync/internal/store"
)

const (
	// Name labels requests in logs and metrics.
	Name = "notion"

	DefaultBaseURL = "https://api.notion.com/v1"
	APIVersion     = "2022-06-28"
	// RequestsPerSecond is Notion's documented average request ceiling.
	RequestsPerSecond = 3
	maxPageSize       = 100
)

// Config configures the adapter.
type Config struct {
	Token   string
	BaseURL string
	Logger  *slog.Logger
	// Options are passed to the underlying executor.
	Options []catalog.ExecutorOption
}

// Store implements store.Store against the Notion REST API.
type Store struct {
	baseURL string
	exec    *catalog.Executor
	logger  *slog.Logger

	mu      sync.Mutex
	schemas map[string]store.Schema
	parents map[string]string
}

var _ store.Store = (*Store)(nil)

// New builds a Notion adapter paced to RequestsPerSecond.
func New(cfg Config) (*Store, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, services.Wrap(services.ErrConfiguration, Name, "init", "notion token required", nil)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts := []catalog.ExecutorOption{
		catalog.WithTokenSource(catalog.StaticToken(token)),
		catalog.WithPacer(rate.NewLimiter(rate.Limit(RequestsPerSecond), 1)),
		catalog.WithLogger(cfg.Logger),
	}
	opts = append(opts, cfg.Options...)
	return &Store{
		baseURL: baseURL,
		exec:    catalog.NewExecutor(Name, opts...),
		logger:  logging.NewComponentLogger(cfg.Logger, "store.notion"),
		schemas: make(map[string]store.Schema),
		parents: make(map[string]string),
	}, nil
}

type databaseResponse struct {
	ID         string                    `json:"id"`
	Title      []richText                `json:"title"`
	Properties map[string]store.Property `json:"properties"`
}

type parent struct {
	Type       string `json:"type"`
	DatabaseID string `json:"database_id,omitempty"`
}

type page struct {
	ID             string                   `json:"id"`
	Parent         parent                   `json:"parent"`
	CreatedTime    time.Time                `json:"created_time"`
	LastEditedTime time.Time                `json:"last_edited_time"`
	URL            string                   `json:"url"`
	Properties     map[string]propertyValue `json:"properties"`
}

type queryResponse struct {
	Results    []page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// Describe returns the database schema keyed by property id. Results are
// cached for the life of the adapter.
func (s *Store) Describe(ctx context.Context, databaseID string) (store.Schema, error) {
	databaseID = store.NormalizeID(databaseID)
	s.mu.Lock()
	cached, ok := s.schemas[databaseID]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	var resp databaseResponse
	if err := s.call(ctx, http.MethodGet, "/databases/"+databaseID, nil, &resp); err != nil {
		if services.Classify(err) == services.OutcomeNotFound {
			return store.Schema{}, services.Wrap(services.ErrSchema, Name, "describe", "database "+databaseID+" not found or not shared with the integration", err)
		}
		return store.Schema{}, err
	}
	schema := store.Schema{
		DatabaseID: databaseID,
		Title:      plain(resp.Title),
		Properties: make(map[string]store.Property, len(resp.Properties)),
	}
	for name, prop := range resp.Properties {
		if prop.Name == "" {
			prop.Name = name
		}
		schema.Properties[prop.ID] = prop
	}
	s.mu.Lock()
	s.schemas[databaseID] = schema
	s.mu.Unlock()
	return schema, nil
}

// Query pages through the database until the filter is exhausted or the
// limit is reached.
func (s *Store) Query(ctx context.Context, databaseID string, filter store.Filter) ([]store.Record, error) {
	databaseID = store.NormalizeID(databaseID)
	schema, err := s.Describe(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	body, err := buildQuery(schema, filter)
	if err != nil {
		return nil, err
	}

	var out []store.Record
	cursor := ""
	for {
		if cursor != "" {
			body["start_cursor"] = cursor
		}
		pageSize := maxPageSize
		if filter.Limit > 0 && filter.Limit-len(out) < pageSize {
			pageSize = filter.Limit - len(out)
		}
		body["page_size"] = pageSize

		var resp queryResponse
		if err := s.call(ctx, http.MethodPost, "/databases/"+databaseID+"/query", body, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Results {
			out = append(out, s.toRecord(p))
		}
		if !resp.HasMore || resp.NextCursor == "" || (filter.Limit > 0 && len(out) >= filter.Limit) {
			break
		}
		cursor = resp.NextCursor
	}
	s.logger.Debug("database queried",
		logging.String("database_id", databaseID),
		logging.Int("results", len(out)),
	)
	return out, nil
}

// Get reads a single page.
func (s *Store) Get(ctx context.Context, id string) (*store.Record, error) {
	id = store.NormalizeID(id)
	var p page
	if err := s.call(ctx, http.MethodGet, "/pages/"+id, nil, &p); err != nil {
		return nil, err
	}
	rec := s.toRecord(p)
	return &rec, nil
}

// Create adds a page to the database and returns its id.
func (s *Store) Create(ctx context.Context, databaseID string, props merge.Properties, deco store.Decoration) (string, error) {
	databaseID = store.NormalizeID(databaseID)
	schema, err := s.Describe(ctx, databaseID)
	if err != nil {
		return "", err
	}
	encoded, err := encodeProperties(schema, props)
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"parent":     parent{Type: "database_id", DatabaseID: databaseID},
		"properties": encoded,
	}
	decorate(body, deco)

	var created page
	if err := s.call(ctx, http.MethodPost, "/pages", body, &created); err != nil {
		return "", err
	}
	id := store.NormalizeID(created.ID)
	s.rememberParent(id, databaseID)
	return id, nil
}

// Update patches the listed properties and decoration of a page.
func (s *Store) Update(ctx context.Context, id string, props merge.Properties, deco store.Decoration) error {
	id = store.NormalizeID(id)
	databaseID, err := s.parentOf(ctx, id)
	if err != nil {
		return err
	}
	schema, err := s.Describe(ctx, databaseID)
	if err != nil {
		return err
	}
	encoded, err := encodeProperties(schema, props)
	if err != nil {
		return err
	}
	body := map[string]any{"properties": encoded}
	decorate(body, deco)
	return s.call(ctx, http.MethodPatch, "/pages/"+id, body, nil)
}

func (s *Store) toRecord(p page) store.Record {
	rec := store.Record{
		ID:             store.NormalizeID(p.ID),
		DatabaseID:     store.NormalizeID(p.Parent.DatabaseID),
		Properties:     make(merge.Properties, len(p.Properties)),
		CreatedTime:    p.CreatedTime,
		LastEditedTime: p.LastEditedTime,
		URL:            p.URL,
	}
	for _, prop := range p.Properties {
		if v, ok := decodeValue(prop); ok {
			rec.Properties[prop.ID] = v
		}
	}
	if rec.DatabaseID != "" {
		s.rememberParent(rec.ID, rec.DatabaseID)
	}
	return rec
}

func (s *Store) rememberParent(pageID, databaseID string) {
	s.mu.Lock()
	s.parents[pageID] = databaseID
	s.mu.Unlock()
}

func (s *Store) parentOf(ctx context.Context, pageID string) (string, error) {
	s.mu.Lock()
	databaseID, ok := s.parents[pageID]
	s.mu.Unlock()
	if ok {
		return databaseID, nil
	}
	rec, err := s.Get(ctx, pageID)
	if err != nil {
		return "", err
	}
	if rec.DatabaseID == "" {
		return "", services.Wrap(services.ErrValidation, Name, "update", "page "+pageID+" is not in a database", nil)
	}
	return rec.DatabaseID, nil
}

func (s *Store) call(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}
	resp, err := s.exec.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Notion-Version", APIVersion)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return services.Wrap(services.ErrValidation, Name, method+" "+path, "", err)
	}
	return nil
}

func encodeProperties(schema store.Schema, props merge.Properties) (map[string]any, error) {
	out := make(map[string]any, len(props))
	for _, id := range props.Keys() {
		prop, ok := schema.Property(id)
		if !ok {
			return nil, services.Wrap(services.ErrSchema, Name, "encode", fmt.Sprintf("property %s not in database %s", id, schema.DatabaseID), nil)
		}
		if !prop.Type.Writable() {
			continue
		}
		encoded, ok := encodeValue(prop.Type, props[id])
		if !ok {
			return nil, services.Wrap(services.ErrSchema, Name, "encode", fmt.Sprintf("property %s has unsupported type %s", prop.Name, prop.Type), nil)
		}
		out[id] = encoded
	}
	return out, nil
}

func decorate(body map[string]any, deco store.Decoration) {
	if deco.CoverURL != "" {
		body["cover"] = map[string]any{
			"type":     "external",
			"external": map[string]string{"url": deco.CoverURL},
		}
	}
	if deco.Icon != "" {
		body["icon"] = map[string]string{"type": "emoji", "emoji": deco.Icon}
	}
}

func buildQuery(schema store.Schema, filter store.Filter) (map[string]any, error) {
	var clauses []map[string]any
	if filter.EmptyProperty != "" {
		prop, ok := schema.Property(filter.EmptyProperty)
		if !ok {
			return nil, services.Wrap(services.ErrSchema, Name, "query", "unknown property "+filter.EmptyProperty, nil)
		}
		clauses = append(clauses, map[string]any{
			"property":         prop.ID,
			string(prop.Type): map[string]bool{"is_empty": true},
		})
	}
	if !filter.CreatedAfter.IsZero() {
		clauses = append(clauses, map[string]any{
			"timestamp":    "created_time",
			"created_time": map[string]string{"after": filter.CreatedAfter.UTC().Format(time.RFC3339)},
		})
	}
	if !filter.EditedAfter.IsZero() {
		clauses = append(clauses, map[string]any{
			"timestamp":        "last_edited_time",
			"last_edited_time": map[string]string{"after": filter.EditedAfter.UTC().Format(time.RFC3339)},
		})
	}
	if filter.Equals != nil {
		prop, ok := schema.Property(filter.Equals.Property)
		if !ok {
			return nil, services.Wrap(services.ErrSchema, Name, "query", "unknown property "+filter.Equals.Property, nil)
		}
		condition := map[string]any{"equals": filter.Equals.Value}
		switch prop.Type {
		case store.TypeMultiSelect, store.TypeRelation:
			condition = map[string]any{"contains": filter.Equals.Value}
		case store.TypeNumber:
			n, err := strconv.ParseFloat(strings.TrimSpace(filter.Equals.Value), 64)
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, Name, "query", "non-numeric match for "+prop.Name, err)
			}
			condition = map[string]any{"equals": n}
		}
		clauses = append(clauses, map[string]any{
			"property":         prop.ID,
			string(prop.Type): condition,
		})
	}

	body := map[string]any{}
	switch len(clauses) {
	case 0:
	case 1:
		body["filter"] = clauses[0]
	default:
		body["filter"] = map[string]any{"and": clauses}
	}
	if filter.SortByEdited {
		body["sorts"] = []map[string]string{{"timestamp": "last_edited_time", "direction": "descending"}}
	}
	return body, nil
}
