package testsupport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"shelfsync/internal/merge"
	"shelfsync/internal/services"
	"shelfsync/internal/store"
)

// FakeStore is an in-memory store.Store that counts calls.
type FakeStore struct {
	mu          sync.Mutex
	now         func() time.Time
	schemas     map[string]store.Schema
	records     map[string]*store.Record
	decorations map[string]store.Decoration
	payloads    map[string][]merge.Properties
	nextID      int

	Describes int
	Queries   int
	Gets      int
	Creates   int
	Updates   int
}

var _ store.Store = (*FakeStore)(nil)

// NewFakeStore returns an empty store using now for edit times. A nil now
// uses time.Now.
func NewFakeStore(now func() time.Time) *FakeStore {
	if now == nil {
		now = time.Now
	}
	return &FakeStore{
		now:         now,
		schemas:     map[string]store.Schema{},
		records:     map[string]*store.Record{},
		decorations: map[string]store.Decoration{},
		payloads:    map[string][]merge.Properties{},
	}
}

// Define registers a database schema.
func (s *FakeStore) Define(schema store.Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	schema.DatabaseID = store.NormalizeID(schema.DatabaseID)
	s.schemas[schema.DatabaseID] = schema
}

// Seed inserts a record directly, bypassing counters. Zero times default to
// the store clock.
func (s *FakeStore) Seed(rec store.Record) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	rec.DatabaseID = store.NormalizeID(rec.DatabaseID)
	if rec.CreatedTime.IsZero() {
		rec.CreatedTime = s.now()
	}
	if rec.LastEditedTime.IsZero() {
		rec.LastEditedTime = rec.CreatedTime
	}
	rec.Properties = rec.Properties.Clone()
	if rec.Properties == nil {
		rec.Properties = merge.Properties{}
	}
	s.records[rec.ID] = &rec
	return rec.ID
}

// Record returns a copy of the stored record.
func (s *FakeStore) Record(id string) (store.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return store.Record{}, false
	}
	out := *rec
	out.Properties = rec.Properties.Clone()
	return out, true
}

// Records returns copies of every record in databaseID, oldest first.
func (s *FakeStore) Records(databaseID string) []store.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(store.NormalizeID(databaseID))
}

// Decoration returns the last decoration written for id.
func (s *FakeStore) Decoration(id string) store.Decoration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decorations[id]
}

// Payloads returns every property set written to id, in order.
func (s *FakeStore) Payloads(id string) []merge.Properties {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]merge.Properties, 0, len(s.payloads[id]))
	for _, p := range s.payloads[id] {
		out = append(out, p.Clone())
	}
	return out
}

// Writes reports creates plus updates.
func (s *FakeStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Creates + s.Updates
}

// Describe implements store.Store.
func (s *FakeStore) Describe(_ context.Context, databaseID string) (store.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Describes++
	schema, ok := s.schemas[store.NormalizeID(databaseID)]
	if !ok {
		return store.Schema{}, services.Wrap(services.ErrSchema, "fake", "describe", "unknown database "+databaseID, nil)
	}
	return schema, nil
}

// Query implements store.Store.
func (s *FakeStore) Query(_ context.Context, databaseID string, filter store.Filter) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries++
	databaseID = store.NormalizeID(databaseID)
	if _, ok := s.schemas[databaseID]; !ok {
		return nil, services.Wrap(services.ErrSchema, "fake", "query", "unknown database "+databaseID, nil)
	}
	all := s.list(databaseID)
	if filter.SortByEdited {
		sort.SliceStable(all, func(i, j int) bool { return all[i].LastEditedTime.After(all[j].LastEditedTime) })
	}
	var out []store.Record
	for _, rec := range all {
		if filter.EmptyProperty != "" && !rec.Properties[filter.EmptyProperty].IsEmpty() {
			continue
		}
		if !filter.CreatedAfter.IsZero() && !rec.CreatedTime.After(filter.CreatedAfter) {
			continue
		}
		if !filter.EditedAfter.IsZero() && !rec.LastEditedTime.After(filter.EditedAfter) {
			continue
		}
		if filter.Equals != nil && !valueMatches(rec.Properties[filter.Equals.Property], filter.Equals.Value) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Get implements store.Store.
func (s *FakeStore) Get(_ context.Context, id string) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gets++
	rec, ok := s.records[store.NormalizeID(id)]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "fake", "get", id, nil)
	}
	out := *rec
	out.Properties = rec.Properties.Clone()
	return &out, nil
}

// Create implements store.Store.
func (s *FakeStore) Create(_ context.Context, databaseID string, props merge.Properties, deco store.Decoration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Creates++
	databaseID = store.NormalizeID(databaseID)
	schema, ok := s.schemas[databaseID]
	if !ok {
		return "", services.Wrap(services.ErrSchema, "fake", "create", "unknown database "+databaseID, nil)
	}
	if err := checkProps(schema, props); err != nil {
		return "", err
	}
	now := s.now()
	id := s.newID()
	s.records[id] = &store.Record{
		ID:             id,
		DatabaseID:     databaseID,
		Properties:     props.Clone(),
		CreatedTime:    now,
		LastEditedTime: now,
	}
	s.decorations[id] = deco
	s.payloads[id] = append(s.payloads[id], props.Clone())
	return id, nil
}

// Update implements store.Store.
func (s *FakeStore) Update(_ context.Context, id string, props merge.Properties, deco store.Decoration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Updates++
	rec, ok := s.records[store.NormalizeID(id)]
	if !ok {
		return services.Wrap(services.ErrNotFound, "fake", "update", id, nil)
	}
	if err := checkProps(s.schemas[rec.DatabaseID], props); err != nil {
		return err
	}
	for k, v := range props.Clone() {
		rec.Properties[k] = v
	}
	s.payloads[rec.ID] = append(s.payloads[rec.ID], props.Clone())
	rec.LastEditedTime = s.now()
	if !deco.IsZero() {
		s.decorations[rec.ID] = deco
	}
	return nil
}

func (s *FakeStore) newID() string {
	s.nextID++
	return fmt.Sprintf("%032x", s.nextID)
}

func (s *FakeStore) list(databaseID string) []store.Record {
	var out []store.Record
	for _, rec := range s.records {
		if rec.DatabaseID != databaseID {
			continue
		}
		cp := *rec
		cp.Properties = rec.Properties.Clone()
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func checkProps(schema store.Schema, props merge.Properties) error {
	for id := range props {
		if _, ok := schema.Property(id); !ok {
			return services.Wrap(services.ErrSchema, "fake", "write", "unknown property "+id, nil)
		}
	}
	return nil
}

func valueMatches(v merge.Value, want string) bool {
	want = strings.TrimSpace(want)
	if v.Kind == merge.KindList || v.Kind == merge.KindRelation {
		for _, item := range v.Items {
			if item == want {
				return true
			}
		}
		return false
	}
	return v.String() == want
}
