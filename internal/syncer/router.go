package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"shelfsync/internal/catalog"
	"shelfsync/internal/identity"
	"shelfsync/internal/schema"
	"shelfsync/internal/services"
	"shelfsync/internal/store"
)

// Router maps webhook input onto sync requests.
type Router struct {
	store   store.Store
	targets []schema.Target
}

// NewRouter builds a router over the configured targets.
func NewRouter(st store.Store, targets []schema.Target) *Router {
	return &Router{store: st, targets: targets}
}

// Route reads the page and returns a single-record request for the target
// owning its parent database.
func (r *Router) Route(ctx context.Context, pageID string) (Request, error) {
	id, ok := store.ExtractPageID(pageID)
	if !ok {
		return Request{}, services.Wrap(services.ErrValidation, "router", "route", "invalid page id "+pageID, nil)
	}
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	for _, target := range r.targets {
		if db, ok := target.DatabaseByID(rec.DatabaseID); ok {
			return Request{
				Target:   target.Name,
				Scope:    SingleRecord(id),
				Trigger:  TriggerWebhook,
				Workers:  1,
				Database: db.Name,
			}, nil
		}
	}
	return Request{}, services.Wrap(services.ErrNotFound, "router", "route",
		fmt.Sprintf("no target registered for database %s", rec.DatabaseID), nil)
}

// createTargets lists the providers whose links may create records, and the
// target each one creates into.
var createTargets = map[string]catalog.Target{
	catalog.SchemeSpotify: catalog.TargetMusic,
	catalog.SchemeTMDb:    catalog.TargetMovies,
}

// RouteURL returns a create request for a Spotify track, album or artist
// link, or a TMDb movie or TV link.
func (r *Router) RouteURL(raw string) (Request, error) {
	link, err := identity.ParseURL(raw)
	if err != nil {
		return Request{}, services.Wrap(services.ErrValidation, "router", "route url", "", err)
	}
	name, ok := createTargets[link.Provider]
	if !ok {
		return Request{}, services.Wrap(services.ErrValidation, "router", "route url", "only spotify and tmdb links can create records: "+raw, nil)
	}
	req := Request{
		Target:  name,
		Scope:   CreateFromURL(raw),
		Trigger: TriggerWebhook,
		Workers: 1,
	}
	for _, target := range r.targets {
		if target.Name != name {
			continue
		}
		db, ok := target.DatabaseForKind(link.Kind)
		if !ok {
			return Request{}, services.Wrap(services.ErrConfiguration, "router", "route url",
				fmt.Sprintf("%s target has no database for %s", name, link.Kind), nil)
		}
		req.Database = db.Name
		return req, nil
	}
	return Request{}, services.Wrap(services.ErrConfiguration, "router", "route url", string(name)+" target is not configured", nil)
}

// Payload is the JSON body a webhook delivers. Automations send the page
// under data; manual callers may use page_id or url directly.
type Payload struct {
	PageID     string `json:"page_id"`
	URL        string `json:"url"`
	SpotifyURL string `json:"spotify_url"`
	TMDbURL    string `json:"tmdb_url"`
	Data       struct {
		ID string `json:"id"`
	} `json:"data"`
}

// RoutePayload decodes a webhook body and routes it. A URL takes precedence
// over a page id.
func (r *Router) RoutePayload(ctx context.Context, body []byte) (Request, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Request{}, services.Wrap(services.ErrValidation, "router", "decode payload", "", err)
	}
	for _, u := range []string{p.SpotifyURL, p.TMDbURL, p.URL} {
		if strings.TrimSpace(u) != "" {
			return r.RouteURL(strings.TrimSpace(u))
		}
	}
	for _, id := range []string{p.PageID, p.Data.ID} {
		if strings.TrimSpace(id) != "" {
			return r.Route(ctx, id)
		}
	}
	return Request{}, services.Wrap(services.ErrValidation, "router", "decode payload", "payload names no page or url", nil)
}
