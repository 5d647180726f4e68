package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shelfsync/internal/merge"
	"shelfsync/internal/services"
	"shelfsync/internal/store"
	"shelfsync/internal/store/sqlite"
)

const dbID = "11111111111111111111111111111111"

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func openStore(t *testing.T) (*sqlite.Store, *stepClock) {
	t.Helper()
	clock := &stepClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "mirror.db"), sqlite.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	err = s.DefineDatabase(context.Background(), store.Schema{
		DatabaseID: dbID,
		Title:      "Songs",
		Properties: map[string]store.Property{
			"title": {ID: "title", Name: "Name", Type: store.TypeTitle},
			"isrc":  {ID: "isrc", Name: "ISRC", Type: store.TypeRichText},
			"gen":   {ID: "gen", Name: "Genres", Type: store.TypeMultiSelect},
			"alb":   {ID: "alb", Name: "Album", Type: store.TypeRelation},
			"edit":  {ID: "edit", Name: "Edited", Type: store.TypeLastEditedTime},
		},
	})
	if err != nil {
		t.Fatalf("DefineDatabase: %v", err)
	}
	return s, clock
}

func TestCreateGetUpdate(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, dbID, merge.Properties{
		"title": merge.Text("Never Gonna Give You Up"),
		"gen":   merge.List("Pop, Dance", "Pop Dance"),
		"edit":  merge.Date("ignored"),
	}, store.Decoration{Icon: "🎵"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(id) != 32 {
		t.Fatalf("expected 32-char id, got %q", id)
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := rec.Properties["gen"].Items; len(got) != 1 || got[0] != "Pop Dance" {
		t.Fatalf("multi-select not sanitized: %v", got)
	}
	if _, ok := rec.Properties["edit"]; ok {
		t.Fatal("read-only property stored")
	}
	created := rec.LastEditedTime

	if err := s.Update(ctx, id, merge.Properties{"isrc": merge.Text("GBARL9300135")}, store.Decoration{CoverURL: "https://img"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	rec, err = s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Properties["isrc"].Text != "GBARL9300135" || rec.Properties["title"].Text == "" {
		t.Fatalf("update lost data: %#v", rec.Properties)
	}
	if !rec.LastEditedTime.After(created) {
		t.Fatalf("edit time not advanced: %v vs %v", rec.LastEditedTime, created)
	}
	deco, err := s.Decoration(ctx, id)
	if err != nil || deco.Icon != "🎵" || deco.CoverURL != "https://img" {
		t.Fatalf("unexpected decoration %#v %v", deco, err)
	}
}

func TestQueryFilters(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	first, _ := s.Create(ctx, dbID, merge.Properties{"title": merge.Text("A"), "isrc": merge.Text("X1")}, store.Decoration{})
	second, _ := s.Create(ctx, dbID, merge.Properties{"title": merge.Text("B"), "alb": merge.Relation("r1")}, store.Decoration{})

	empty, err := s.Query(ctx, dbID, store.Filter{EmptyProperty: "isrc"})
	if err != nil || len(empty) != 1 || empty[0].ID != second {
		t.Fatalf("EmptyProperty query = %v, %v", empty, err)
	}
	eq, err := s.Query(ctx, dbID, store.Filter{Equals: &store.Match{Property: "isrc", Value: "X1"}})
	if err != nil || len(eq) != 1 || eq[0].ID != first {
		t.Fatalf("Equals query = %v, %v", eq, err)
	}
	rel, err := s.Query(ctx, dbID, store.Filter{Equals: &store.Match{Property: "alb", Value: "r1"}})
	if err != nil || len(rel) != 1 || rel[0].ID != second {
		t.Fatalf("relation Equals query = %v, %v", rel, err)
	}
	last, err := s.Query(ctx, dbID, store.Filter{SortByEdited: true, Limit: 1})
	if err != nil || len(last) != 1 || last[0].ID != second {
		t.Fatalf("last edited query = %v, %v", last, err)
	}
	firstRec, _ := s.Get(ctx, first)
	after, err := s.Query(ctx, dbID, store.Filter{CreatedAfter: firstRec.CreatedTime})
	if err != nil || len(after) != 1 || after[0].ID != second {
		t.Fatalf("CreatedAfter query = %v, %v", after, err)
	}
}

func TestUnknownPropertyAndDatabase(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, dbID, merge.Properties{"nope": merge.Text("x")}, store.Decoration{}); !errors.Is(err, services.ErrSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
	if _, err := s.Describe(ctx, "22222222222222222222222222222222"); !errors.Is(err, services.ErrSchema) {
		t.Fatalf("expected schema error for undefined database, got %v", err)
	}
	if _, err := s.Get(ctx, "33333333333333333333333333333333"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")
	s, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.DefineDatabase(context.Background(), store.Schema{DatabaseID: dbID, Properties: map[string]store.Property{
		"title": {ID: "title", Name: "Name", Type: store.TypeTitle},
	}}); err != nil {
		t.Fatalf("DefineDatabase: %v", err)
	}
	_ = s.Close()

	s, err = sqlite.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	schema, err := s.Describe(context.Background(), dbID)
	if err != nil || len(schema.Properties) != 1 {
		t.Fatalf("Describe after reopen = %#v, %v", schema, err)
	}
}
