package identity

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"shelfsync/internal/catalog"
	"shelfsync/internal/logging"
	"shelfsync/internal/services"
)

// Hint is everything known about the entity to resolve.
type Hint struct {
	Kind catalog.Kind
	// IDs holds external ids keyed by scheme, typically read from the
	// destination record.
	IDs  map[string]string
	URL  string
	Name string
	// Scrape asks providers that support it to scrape HTML as well.
	Scrape bool
	// AltKind is tried after Kind at each step when the stored record does
	// not say which of the two it is (movie or tv).
	AltKind catalog.Kind
}

func (h Hint) kinds() []catalog.Kind {
	if h.AltKind == "" || h.AltKind == h.Kind {
		return []catalog.Kind{h.Kind}
	}
	return []catalog.Kind{h.Kind, h.AltKind}
}

// Lookup binds an id scheme to the provider authoritative for it.
type Lookup struct {
	Scheme   string
	Provider string
}

// Route lists, for one kind, the id lookups in priority order and the
// provider used for name search.
type Route struct {
	Lookups []Lookup
	Search  string
}

// DefaultRoutes returns the lookup order used for each kind. Stronger
// identifiers come first.
func DefaultRoutes() map[catalog.Kind]Route {
	return map[catalog.Kind]Route{
		catalog.KindGame: {
			Lookups: []Lookup{{catalog.SchemeIGDb, catalog.SchemeIGDb}, {catalog.SchemeIGDbSlug, catalog.SchemeIGDb}},
			Search:  catalog.SchemeIGDb,
		},
		catalog.KindMovie: {
			Lookups: []Lookup{{catalog.SchemeTMDb, catalog.SchemeTMDb}, {catalog.SchemeIMDb, catalog.SchemeTMDb}},
			Search:  catalog.SchemeTMDb,
		},
		catalog.KindTV: {
			Lookups: []Lookup{{catalog.SchemeTMDb, catalog.SchemeTMDb}, {catalog.SchemeIMDb, catalog.SchemeTMDb}},
			Search:  catalog.SchemeTMDb,
		},
		catalog.KindBook: {
			Lookups: []Lookup{
				{catalog.SchemeISBN, catalog.SchemeGoogleBooks},
				{catalog.SchemeGoogleBooks, catalog.SchemeGoogleBooks},
				{catalog.SchemeComicVine, catalog.SchemeComicVine},
			},
			Search: catalog.SchemeGoogleBooks,
		},
		catalog.KindTrack: {
			Lookups: []Lookup{
				{catalog.SchemeISRC, catalog.SchemeMusicBrainz},
				{catalog.SchemeMusicBrainz, catalog.SchemeMusicBrainz},
				{catalog.SchemeSpotify, catalog.SchemeSpotify},
			},
			Search: catalog.SchemeMusicBrainz,
		},
		catalog.KindAlbum: {
			Lookups: []Lookup{
				{catalog.SchemeUPC, catalog.SchemeMusicBrainz},
				{catalog.SchemeEAN, catalog.SchemeMusicBrainz},
				{catalog.SchemeMusicBrainz, catalog.SchemeMusicBrainz},
				{catalog.SchemeSpotify, catalog.SchemeSpotify},
			},
			Search: catalog.SchemeMusicBrainz,
		},
		catalog.KindArtist: {
			Lookups: []Lookup{
				{catalog.SchemeMusicBrainz, catalog.SchemeMusicBrainz},
				{catalog.SchemeSpotify, catalog.SchemeMusicBrainz},
				{catalog.SchemeSpotify, catalog.SchemeSpotify},
			},
			Search: catalog.SchemeMusicBrainz,
		},
		catalog.KindLabel: {
			Lookups: []Lookup{{catalog.SchemeMusicBrainz, catalog.SchemeMusicBrainz}},
			Search:  catalog.SchemeMusicBrainz,
		},
	}
}

// Resolver turns hints into catalog records.
type Resolver struct {
	registry *catalog.Registry
	routes   map[catalog.Kind]Route
	logger   *slog.Logger
}

// NewResolver builds a resolver over registry. Nil routes use DefaultRoutes.
func NewResolver(registry *catalog.Registry, routes map[catalog.Kind]Route, logger *slog.Logger) *Resolver {
	if routes == nil {
		routes = DefaultRoutes()
	}
	return &Resolver{
		registry: registry,
		routes:   routes,
		logger:   logging.NewComponentLogger(logger, "identity"),
	}
}

// Resolve finds the catalog record for hint. Stored ids are tried first and
// a match on any of them ends resolution without a search. When every id
// lookup misses, the URL and then the name are tried in turn. With an
// AltKind, ids and names are tried for Kind before AltKind.
func (r *Resolver) Resolve(ctx context.Context, hint Hint) (*catalog.Record, error) {
	idsTried := false
	if ids := nonEmpty(hint.IDs); len(ids) > 0 {
		for _, kind := range hint.kinds() {
			rec, err := r.byIDs(ctx, kind, ids, "", hint.Scrape)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				return rec, nil
			}
		}
		idsTried = true
		r.logger.Debug("stored ids missed; trying url and name",
			logging.String("kind", string(hint.Kind)),
			logging.String("name", hint.Name),
		)
	}
	hasName := strings.TrimSpace(hint.Name) != ""
	if strings.TrimSpace(hint.URL) != "" {
		rec, err := r.byURL(ctx, hint)
		if err == nil || !hasName || !errors.Is(err, services.ErrNotFound) {
			return rec, err
		}
	}
	if hasName {
		var err error
		for _, kind := range hint.kinds() {
			var rec *catalog.Record
			rec, err = r.byName(ctx, hint, kind)
			if err == nil || !errors.Is(err, services.ErrNotFound) {
				return rec, err
			}
		}
		return nil, err
	}
	if idsTried {
		return nil, services.Wrap(services.ErrNotFound, "identity", "resolve", "no catalog matched stored ids", nil)
	}
	return nil, services.Wrap(services.ErrNotFound, "identity", "resolve", "hint has no id, url, or name", nil)
}

// byIDs walks the route's lookups in order. A nil record with nil error
// means every lookup missed. Lookups served by skipProvider are not tried.
func (r *Resolver) byIDs(ctx context.Context, kind catalog.Kind, ids map[string]string, skipProvider string, scrape bool) (*catalog.Record, error) {
	route, ok := r.routes[kind]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "identity", "resolve", "no route for kind "+string(kind), nil)
	}
	for _, lookup := range route.Lookups {
		id := strings.TrimSpace(ids[lookup.Scheme])
		if id == "" || lookup.Provider == skipProvider {
			continue
		}
		provider, ok := r.registry.Get(lookup.Provider)
		if !ok {
			continue
		}
		q := catalog.Query{Kind: kind, ID: id, Scrape: scrape}
		if lookup.Scheme != provider.Name() {
			q.Scheme = lookup.Scheme
		}
		rec, err := provider.Fetch(ctx, q)
		if err == nil {
			r.logger.Debug("resolved by id",
				logging.String("provider", provider.Name()),
				logging.String("query", q.String()),
			)
			return rec, nil
		}
		if !errors.Is(err, services.ErrNotFound) {
			return nil, err
		}
		r.logger.Debug("id lookup missed",
			logging.String("provider", provider.Name()),
			logging.String("query", q.String()),
		)
	}
	return nil, nil
}

// byURL fetches the linked record and, when it carries ids another provider
// is authoritative for, prefers that provider's record.
func (r *Resolver) byURL(ctx context.Context, hint Hint) (*catalog.Record, error) {
	link, err := ParseURL(hint.URL)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "identity", "parse url", "", err)
	}
	if hint.Kind != "" && !hint.Kind.Holds(link.Kind) {
		return nil, services.Wrap(services.ErrValidation, "identity", "parse url",
			"url names a "+string(link.Kind)+", expected "+string(hint.Kind), nil)
	}
	provider, ok := r.registry.Get(link.Provider)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "identity", "resolve url", "provider "+link.Provider+" is not configured", nil)
	}
	linked, err := provider.Fetch(ctx, catalog.Query{Kind: link.Kind, ID: link.ID, Scheme: link.Scheme, Scrape: hint.Scrape})
	if err != nil {
		return nil, err
	}

	authoritative, err := r.byIDs(ctx, link.Kind, linked.ExternalIDs, link.Provider, hint.Scrape)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}
	if authoritative == nil {
		return linked, nil
	}
	return combine(authoritative, linked), nil
}

// byName searches the route's search provider. Results keep provider order
// except that exact normalized title matches move to the front.
func (r *Resolver) byName(ctx context.Context, hint Hint, kind catalog.Kind) (*catalog.Record, error) {
	route, ok := r.routes[kind]
	if !ok || route.Search == "" {
		return nil, services.Wrap(services.ErrValidation, "identity", "search", "no search provider for kind "+string(kind), nil)
	}
	provider, ok := r.registry.Get(route.Search)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "identity", "search", "provider "+route.Search+" is not configured", nil)
	}
	results, err := provider.Search(ctx, catalog.Query{Kind: kind, Name: hint.Name, Scrape: hint.Scrape})
	if err != nil {
		return nil, err
	}
	candidates := results[:0:0]
	for _, rec := range results {
		if kind == "" || rec.Kind == kind {
			candidates = append(candidates, rec)
		}
	}
	if len(candidates) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "identity", "search", "no results for "+hint.Name, nil)
	}
	Rank(candidates, hint.Name)
	best := candidates[0]
	r.logger.Debug("resolved by name",
		logging.String("provider", provider.Name()),
		logging.String("query", hint.Name),
		logging.String("match", best.Title),
		logging.Int("candidates", len(candidates)),
	)
	if !best.Partial {
		return &best, nil
	}
	return provider.Fetch(ctx, catalog.Query{Kind: best.Kind, ID: best.ID, Scrape: hint.Scrape})
}

// Rank moves exact normalized title matches ahead of the rest, keeping the
// provider's order within each group.
func Rank(records []catalog.Record, name string) {
	want := catalog.NormalizeTitle(name)
	sort.SliceStable(records, func(i, j int) bool {
		return catalog.NormalizeTitle(records[i].Title) == want && catalog.NormalizeTitle(records[j].Title) != want
	})
}

// combine fills gaps in primary from secondary without overriding it.
func combine(primary, secondary *catalog.Record) *catalog.Record {
	out := *primary
	ids := make(map[string]string, len(primary.ExternalIDs)+len(secondary.ExternalIDs))
	for k, v := range secondary.ExternalIDs {
		ids[k] = v
	}
	for k, v := range primary.ExternalIDs {
		ids[k] = v
	}
	out.ExternalIDs = ids
	if out.CoverURL == "" {
		out.CoverURL = secondary.CoverURL
	}
	if len(out.Genres) == 0 {
		out.Genres = secondary.Genres
	}
	if out.ReleaseDate == "" {
		out.ReleaseDate = secondary.ReleaseDate
	}
	return &out
}

func nonEmpty(ids map[string]string) map[string]string {
	out := make(map[string]string, len(ids))
	for k, v := range ids {
		if strings.TrimSpace(v) != "" {
			out[k] = v
		}
	}
	return out
}
