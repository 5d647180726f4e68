package syncer_test

import (
	"context"
	"testing"
	"time"

	"shelfsync/internal/catalog"
	"shelfsync/internal/merge"
	"shelfsync/internal/schema"
	"shelfsync/internal/store"
	"shelfsync/internal/syncer"
)

func moviesTarget() schema.Target {
	return schema.Target{
		Name: catalog.TargetMovies,
		Databases: []schema.Database{{
			Name:          "movies",
			ID:            moviesDB,
			Kind:          catalog.KindMovie,
			PrimaryScheme: catalog.SchemeTMDb,
			Properties: map[schema.Field]string{
				schema.FieldTitle:       "t",
				schema.FieldContentType: "ct",
				schema.FieldSeasons:     "sea",
				schema.FieldLastSynced:  "ls",
			},
			IDProperties: map[string]string{catalog.SchemeTMDb: "tmdb"},
		}},
	}
}

func moviesSchema() store.Schema {
	return store.Schema{
		DatabaseID: moviesDB,
		Title:      "Movies",
		Properties: map[string]store.Property{
			"t":    {ID: "t", Name: "Name", Type: store.TypeTitle},
			"ct":   {ID: "ct", Name: "Content Type", Type: store.TypeSelect},
			"sea":  {ID: "sea", Name: "Seasons", Type: store.TypeNumber},
			"ls":   {ID: "ls", Name: "Last Synced", Type: store.TypeDate},
			"tmdb": {ID: "tmdb", Name: "TMDB ID", Type: store.TypeRichText},
		},
	}
}

func severance() catalog.Record {
	return catalog.Record{
		Provider:    catalog.SchemeTMDb,
		ID:          "95396",
		Kind:        catalog.KindTV,
		Title:       "Severance",
		Seasons:     2,
		Episodes:    19,
		ExternalIDs: map[string]string{catalog.SchemeTMDb: "95396"},
	}
}

func (f *fixture) seedMovie(props merge.Properties) string {
	edited := now.Add(-time.Hour)
	return f.store.Seed(store.Record{DatabaseID: moviesDB, Properties: props, CreatedTime: edited, LastEditedTime: edited})
}

func TestRunInfersTVWhenContentTypeUnset(t *testing.T) {
	f := newFixture(t)
	f.tmdb.AddSearch("Severance", severance())
	id := f.seedMovie(merge.Properties{"t": merge.Text("Severance")})

	report, err := f.syncer.Run(context.Background(), syncer.Request{Target: catalog.TargetMovies, Scope: syncer.AllRecords()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Counters.Updated != 1 {
		t.Fatalf("unexpected counters %+v", report.Counters)
	}
	// Movie first, then tv.
	if f.tmdb.SearchCount() != 2 {
		t.Fatalf("searches = %d, want 2", f.tmdb.SearchCount())
	}
	rec, _ := f.store.Record(id)
	if got := rec.Properties["ct"].String(); got != "TV" {
		t.Fatalf("content type = %q, want TV", got)
	}
	if got := rec.Properties["sea"].String(); got != "2" {
		t.Fatalf("seasons = %q, want 2", got)
	}
	if got := rec.Properties["tmdb"].String(); got != "95396" {
		t.Fatalf("tmdb id = %q", got)
	}
}

func TestRunContentTypeSelectsTVLookup(t *testing.T) {
	f := newFixture(t)
	f.tmdb.Add("", "95396", severance())
	f.seedMovie(merge.Properties{
		"t":    merge.Text("Severance"),
		"ct":   merge.Text("TV"),
		"tmdb": merge.Text("95396"),
	})

	if _, err := f.syncer.Run(context.Background(), syncer.Request{Target: catalog.TargetMovies, Scope: syncer.AllRecords()}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	fetches := f.tmdb.Fetches()
	if len(fetches) != 1 || fetches[0].Kind != catalog.KindTV {
		t.Fatalf("unexpected fetches %+v", fetches)
	}
	if f.tmdb.SearchCount() != 0 {
		t.Fatal("stored id must prevent name search")
	}
}

func TestCreateFromTMDbTVURL(t *testing.T) {
	f := newFixture(t)
	f.tmdb.Add("", "95396", severance())

	report, err := f.syncer.Run(context.Background(), syncer.Request{
		Target: catalog.TargetMovies,
		Scope:  syncer.CreateFromURL("https://www.themoviedb.org/tv/95396-severance"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Counters.Created != 1 {
		t.Fatalf("unexpected counters %+v", report.Counters)
	}
	records := f.store.Records(moviesDB)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if got := records[0].Properties["ct"].String(); got != "TV" {
		t.Fatalf("content type = %q, want TV", got)
	}
	if deco := f.store.Decoration(records[0].ID); deco.Icon != "📺" {
		t.Fatalf("icon = %q, want 📺", deco.Icon)
	}
}
