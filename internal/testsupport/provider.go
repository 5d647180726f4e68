package testsupport

import (
	"context"
	"strings"
	"sync"

	"shelfsync/internal/catalog"
	"shelfsync/internal/services"
)

// FakeProvider is a scripted catalog.Provider that counts calls.
type FakeProvider struct {
	name string

	mu       sync.Mutex
	records  map[string]catalog.Record
	searches map[string][]catalog.Record
	errs     map[string]error
	fetches  []catalog.Query
	lookups  []catalog.Query
	onFetch  func(catalog.Query)
}

var _ catalog.Provider = (*FakeProvider)(nil)

// NewFakeProvider returns an empty provider registered under name.
func NewFakeProvider(name string) *FakeProvider {
	return &FakeProvider{
		name:     name,
		records:  map[string]catalog.Record{},
		searches: map[string][]catalog.Record{},
		errs:     map[string]error{},
	}
}

func fetchKey(scheme, id string) string {
	return strings.ToLower(scheme) + ":" + strings.TrimSpace(id)
}

// Add makes rec answer Fetch for id in scheme. An empty scheme means the
// provider's native ids.
func (p *FakeProvider) Add(scheme, id string, rec catalog.Record) *FakeProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	if scheme == p.name {
		scheme = ""
	}
	p.records[fetchKey(scheme, id)] = rec
	return p
}

// AddSearch makes recs answer Search for name.
func (p *FakeProvider) AddSearch(name string, recs ...catalog.Record) *FakeProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searches[catalog.NormalizeTitle(name)] = recs
	return p
}

// FailFetch makes Fetch for id in scheme return err.
func (p *FakeProvider) FailFetch(scheme, id string, err error) *FakeProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[fetchKey(scheme, id)] = err
	return p
}

// OnFetch runs fn after every Fetch is recorded, before it answers.
func (p *FakeProvider) OnFetch(fn func(catalog.Query)) *FakeProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFetch = fn
	return p
}

// Name implements catalog.Provider.
func (p *FakeProvider) Name() string { return p.name }

// Fetch implements catalog.Provider.
func (p *FakeProvider) Fetch(_ context.Context, q catalog.Query) (*catalog.Record, error) {
	p.mu.Lock()
	p.fetches = append(p.fetches, q)
	hook := p.onFetch
	p.mu.Unlock()
	if hook != nil {
		hook(q)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	scheme := q.Scheme
	if scheme == p.name {
		scheme = ""
	}
	key := fetchKey(scheme, q.ID)
	if err, ok := p.errs[key]; ok {
		return nil, err
	}
	rec, ok := p.records[key]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, p.name, "fetch", q.String(), nil)
	}
	return &rec, nil
}

// Search implements catalog.Provider.
func (p *FakeProvider) Search(_ context.Context, q catalog.Query) ([]catalog.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups = append(p.lookups, q)
	return append([]catalog.Record(nil), p.searches[catalog.NormalizeTitle(q.Name)]...), nil
}

// FetchCount reports how many Fetch calls were made.
func (p *FakeProvider) FetchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fetches)
}

// SearchCount reports how many Search calls were made.
func (p *FakeProvider) SearchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lookups)
}

// Calls reports the total number of Fetch and Search calls.
func (p *FakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fetches) + len(p.lookups)
}

// Fetches returns a copy of every Fetch query received.
func (p *FakeProvider) Fetches() []catalog.Query {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]catalog.Query(nil), p.fetches...)
}
