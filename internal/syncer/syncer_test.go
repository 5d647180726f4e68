package syncer_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"shelfsync/internal/catalog"
	"shelfsync/internal/identity"
	"shelfsync/internal/merge"
	"shelfsync/internal/schema"
	"shelfsync/internal/services"
	"shelfsync/internal/store"
	"shelfsync/internal/syncer"
	"shelfsync/internal/testsupport"
)

const (
	gamesDB   = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	songsDB   = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	albumsDB  = "cccccccccccccccccccccccccccccccc"
	artistsDB = "dddddddddddddddddddddddddddddddd"
	moviesDB  = "ffffffffffffffffffffffffffffffff"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func gamesTarget() schema.Target {
	return schema.Target{
		Name: catalog.TargetGames,
		Databases: []schema.Database{{
			Name:          "games",
			ID:            gamesDB,
			Kind:          catalog.KindGame,
			PrimaryScheme: catalog.SchemeIGDb,
			Properties: map[schema.Field]string{
				schema.FieldTitle:      "t",
				schema.FieldGenres:     "gen",
				schema.FieldRating:     "rt",
				schema.FieldLastSynced: "ls",
			},
			IDProperties: map[string]string{catalog.SchemeIGDb: "id"},
			Behavior:     map[schema.Field]merge.Behavior{schema.FieldRating: merge.BehaviorPreserve},
		}},
	}
}

func gamesSchema() store.Schema {
	return store.Schema{
		DatabaseID: gamesDB,
		Title:      "Games",
		Properties: map[string]store.Property{
			"t":   {ID: "t", Name: "Name", Type: store.TypeTitle},
			"gen": {ID: "gen", Name: "Genres", Type: store.TypeMultiSelect},
			"rt":  {ID: "rt", Name: "Rating", Type: store.TypeNumber},
			"ls":  {ID: "ls", Name: "Last Synced", Type: store.TypeDate},
			"id":  {ID: "id", Name: "IGDB ID", Type: store.TypeNumber},
		},
	}
}

func musicTarget() schema.Target {
	return schema.Target{
		Name: catalog.TargetMusic,
		Databases: []schema.Database{
			{
				Name:          "songs",
				ID:            songsDB,
				Kind:          catalog.KindTrack,
				PrimaryScheme: catalog.SchemeISRC,
				Properties: map[schema.Field]string{
					schema.FieldTitle:      "t",
					schema.FieldAlbum:      "alb",
					schema.FieldLastSynced: "ls",
				},
				IDProperties: map[string]string{catalog.SchemeISRC: "isrc", catalog.SchemeSpotify: "sp"},
			},
			{
				Name:          "albums",
				ID:            albumsDB,
				Kind:          catalog.KindAlbum,
				PrimaryScheme: catalog.SchemeSpotify,
				Properties: map[schema.Field]string{
					schema.FieldTitle:      "t",
					schema.FieldArtist:     "art",
					schema.FieldLastSynced: "ls",
				},
				IDProperties: map[string]string{catalog.SchemeSpotify: "sp"},
			},
			{
				Name:          "artists",
				ID:            artistsDB,
				Kind:          catalog.KindArtist,
				PrimaryScheme: catalog.SchemeSpotify,
				Properties: map[schema.Field]string{
					schema.FieldTitle:      "t",
					schema.FieldLastSynced: "ls",
				},
				IDProperties: map[string]string{catalog.SchemeSpotify: "sp"},
			},
		},
	}
}

func musicSchemas() []store.Schema {
	base := func(id, title string, extra map[string]store.Property) store.Schema {
		props := map[string]store.Property{
			"t":  {ID: "t", Name: "Name", Type: store.TypeTitle},
			"ls": {ID: "ls", Name: "Last Synced", Type: store.TypeDate},
			"sp": {ID: "sp", Name: "Spotify ID", Type: store.TypeRichText},
		}
		for k, v := range extra {
			props[k] = v
		}
		return store.Schema{DatabaseID: id, Title: title, Properties: props}
	}
	return []store.Schema{
		base(songsDB, "Songs", map[string]store.Property{
			"alb":  {ID: "alb", Name: "Album", Type: store.TypeRelation},
			"isrc": {ID: "isrc", Name: "ISRC", Type: store.TypeRichText},
		}),
		base(albumsDB, "Albums", map[string]store.Property{
			"art": {ID: "art", Name: "Artist", Type: store.TypeRelation},
		}),
		base(artistsDB, "Artists", nil),
	}
}

type fixture struct {
	store   *testsupport.FakeStore
	igdb    *testsupport.FakeProvider
	spotify *testsupport.FakeProvider
	mb      *testsupport.FakeProvider
	tmdb    *testsupport.FakeProvider
	syncer  *syncer.Syncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   testsupport.NewFakeStore(clock),
		igdb:    testsupport.NewFakeProvider(catalog.SchemeIGDb),
		spotify: testsupport.NewFakeProvider(catalog.SchemeSpotify),
		mb:      testsupport.NewFakeProvider(catalog.SchemeMusicBrainz),
		tmdb:    testsupport.NewFakeProvider(catalog.SchemeTMDb),
	}
	f.store.Define(gamesSchema())
	for _, s := range musicSchemas() {
		f.store.Define(s)
	}
	f.store.Define(moviesSchema())
	registry, err := catalog.NewRegistry(f.igdb, f.spotify, f.mb, f.tmdb)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	f.syncer, err = syncer.New(syncer.Options{
		Store:    f.store,
		Resolver: identity.NewResolver(registry, nil, nil),
		Targets:  []schema.Target{gamesTarget(), musicTarget(), moviesTarget()},
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func syncedAt(t time.Time) merge.Value {
	return merge.Date(t.Format(time.RFC3339))
}

func (f *fixture) seedGame(title, igdbID string, edited time.Time, lastSynced *time.Time, extra merge.Properties) string {
	props := merge.Properties{"t": merge.Text(title)}
	if n, err := strconv.ParseFloat(igdbID, 64); err == nil {
		props["id"] = merge.Number(n)
	}
	if lastSynced != nil {
		props["ls"] = syncedAt(*lastSynced)
	}
	for k, v := range extra {
		props[k] = v
	}
	return f.store.Seed(store.Record{DatabaseID: gamesDB, Properties: props, CreatedTime: edited, LastEditedTime: edited})
}

func ptr[T any](v T) *T { return &v }

func hades() catalog.Record {
	return catalog.Record{
		Provider:    "igdb",
		ID:          "113112",
		Kind:        catalog.KindGame,
		Title:       "Hades",
		Genres:      []string{"Roguelike", "Action"},
		Rating:      ptr(93.0),
		ExternalIDs: map[string]string{"igdb": "113112"},
	}
}

func TestRunSkipsRecentlySyncedRecords(t *testing.T) {
	f := newFixture(t)
	f.igdb.Add("", "113112", hades())
	fresh := f.seedGame("Hades", "113112", now, ptr(now.Add(-time.Minute)), nil)
	stale := f.seedGame("Hades", "113112", now, ptr(now.Add(-10*time.Minute)), nil)

	report, err := f.syncer.Run(context.Background(), syncer.Request{Target: catalog.TargetGames, Scope: syncer.AllRecords()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Counters.Scanned != 2 || report.Counters.Skipped != 1 {
		t.Fatalf("unexpected counters %+v", report.Counters)
	}
	if f.igdb.FetchCount() != 1 {
		t.Fatalf("expected one fetch for the stale record, got %d", f.igdb.FetchCount())
	}
	if len(f.store.Payloads(fresh)) != 0 {
		t.Fatal("skipped record was written")
	}
	if len(f.store.Payloads(stale)) != 1 {
		t.Fatalf("stale record writes = %d, want 1", len(f.store.Payloads(stale)))
	}
}

func TestRunWritesOnlyChangedPropertiesAndMarker(t *testing.T) {
	f := newFixture(t)
	f.igdb.Add("", "113112", hades())
	id := f.seedGame("Hades", "113112", now.Add(-time.Hour), nil, merge.Properties{
		"gen": merge.List("Action"),
		"rt":  merge.Number(80),
	})

	report, err := f.syncer.Run(context.Background(), syncer.Request{Target: catalog.TargetGames, Scope: syncer.AllRecords()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Counters.Updated != 1 {
		t.Fatalf("unexpected counters %+v", report.Counters)
	}
	payloads := f.store.Payloads(id)
	if len(payloads) != 1 {
		t.Fatalf("writes = %d, want exactly one", len(payloads))
	}
	got := payloads[0].Keys()
	want := []string{"gen", "ls", "rt"}
	if len(got) != len(want) {
		t.Fatalf("payload keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("payload keys = %v, want %v", got, want)
		}
	}
	rec, _ := f.store.Record(id)
	if !rec.Properties["gen"].Equal(merge.List("Roguelike", "Action")) {
		t.Fatalf("genres = %v", rec.Properties["gen"])
	}
	if ts, ok := schema.LastSynced(gamesTarget().Databases[0], &rec); !ok || !ts.Equal(now) {
		t.Fatalf("last synced = %v %v", ts, ok)
	}
	if f.igdb.SearchCount() != 0 {
		t.Fatal("stored id must prevent name search")
	}
}

func TestRunPreserveKeepsExistingWhenFetchedEmpty(t *testing.T) {
	f := newFixture(t)
	rec := hades()
	rec.Rating = nil
	f.igdb.Add("", "113112", rec)
	id := f.seedGame("Hades", "113112", now.Add(-time.Hour), nil, merge.Properties{"rt": merge.Number(80)})

	if _, err := f.syncer.Run(context.Background(), syncer.Request{Target: catalog.TargetGames, Scope: syncer.AllRecords()}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _ := f.store.Record(id)
	if got.Properties["rt"].String() != "80" {
		t.Fatalf("preserved rating overwritten: %v", got.Properties["rt"])
	}
}

func TestRunDryRunNeverWrites(t *testing.T) {
	f := newFixture(t)
	f.igdb.Add("", "113112", hades())
	f.seedGame("Hades", "113112", now, nil, nil)

	report, err := f.syncer.Run(context.Background(), syncer.Request{
		Target: catalog.TargetGames,
		Scope:  syncer.AllRecords(),
		Flags:  syncer.Flags{DryRun: true},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.store.Writes() != 0 {
		t.Fatalf("dry run wrote %d times", f.store.Writes())
	}
	if !report.DryRun || len(report.Changed()) != 1 || len(report.Outcomes[0].Changes) == 0 {
		t.Fatalf("dry run report missing changes: %+v", report)
	}
}

func TestRunRecordsPerRecordFailures(t *testing.T) {
	f := newFixture(t)
	f.igdb.Add("", "113112", hades())
	f.seedGame("Hades", "113112", now, nil, nil)
	missing := f.seedGame("Unknown Game", "999", now, nil, nil)

	report, err := f.syncer.Run(context.Background(), syncer.Request{Target: catalog.TargetGames, Scope: syncer.AllRecords(), Workers: 2})
	if err != nil {
		t.Fatalf("per-record failure must not fail the run: %v", err)
	}
	if report.Counters.Failed != 1 || report.Counters.Updated != 1 {
		t.Fatalf("unexpected counters %+v", report.Counters)
	}
	failures := report.Failures()
	if len(failures) != 1 || failures[0].RecordID != missing || failures[0].Class != services.OutcomeNotFound {
		t.Fatalf("unexpected failures %+v", failures)
	}
}

func TestRunStopsAfterCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f.igdb.OnFetch(func(catalog.Query) { cancel() })
	for _, id := range []string{"1", "2", "3"} {
		rec := hades()
		rec.ID = id
		rec.ExternalIDs = map[string]string{"igdb": id}
		f.igdb.Add("", id, rec)
	}
	ids := []string{
		f.seedGame("Hades", "1", now, nil, nil),
		f.seedGame("Hades II", "2", now, nil, nil),
		f.seedGame("Hades III", "3", now, nil, nil),
	}

	report, err := f.syncer.Run(ctx, syncer.Request{Target: catalog.TargetGames, Scope: syncer.AllRecords(), Workers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report == nil || report.Counters.Scanned != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	if f.igdb.Calls() != 1 {
		t.Fatalf("records after cancellation were resolved: %d calls", f.igdb.Calls())
	}
	written := 0
	for _, id := range ids {
		if len(f.store.Payloads(id)) > 0 {
			written++
		}
	}
	if written > 1 {
		t.Fatalf("%d records written after cancellation", written)
	}
}

func TestRunAbortsOnAuthFailure(t *testing.T) {
	f := newFixture(t)
	f.igdb.FailFetch("", "113112", services.Wrap(services.ErrAuth, "igdb", "token", "credentials rejected", nil))
	f.seedGame("Hades", "113112", now, nil, nil)

	report, err := f.syncer.Run(context.Background(), syncer.Request{Target: catalog.TargetGames, Scope: syncer.AllRecords()})
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if report == nil || report.Counters.Failed != 1 {
		t.Fatalf("expected partial report, got %+v", report)
	}
}

func TestRunRejectsBulkScopeFromDispatch(t *testing.T) {
	f := newFixture(t)
	f.seedGame("Hades", "113112", now, nil, nil)
	for _, scope := range []syncer.Scope{syncer.AllRecords(), syncer.LastEdited()} {
		_, err := f.syncer.Run(context.Background(), syncer.Request{
			Target:  catalog.TargetGames,
			Scope:   scope,
			Trigger: syncer.TriggerDispatch,
		})
		if !errors.Is(err, services.ErrSchema) {
			t.Fatalf("scope %s: expected schema error, got %v", scope.Kind, err)
		}
	}
	if f.store.Describes != 0 || f.igdb.Calls() != 0 {
		t.Fatal("guard must reject before touching the store or catalogs")
	}
}

func TestRunValidatesSchemaBeforeFetching(t *testing.T) {
	f := newFixture(t)
	broken := gamesSchema()
	delete(broken.Properties, "gen")
	f.store.Define(broken)
	f.igdb.Add("", "113112", hades())
	f.seedGame("Hades", "113112", now, nil, nil)

	_, err := f.syncer.Run(context.Background(), syncer.Request{Target: catalog.TargetGames, Scope: syncer.AllRecords()})
	if !errors.Is(err, services.ErrSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
	if f.igdb.Calls() != 0 || f.store.Writes() != 0 {
		t.Fatal("schema failure must stop the run before any fetch or write")
	}
}

func TestRunSingleRecordAcceptsPageURL(t *testing.T) {
	f := newFixture(t)
	f.igdb.Add("", "113112", hades())
	id := f.seedGame("Hades", "113112", now, nil, nil)
	f.seedGame("Other", "1", now, nil, nil)

	report, err := f.syncer.Run(context.Background(), syncer.Request{
		Target:  catalog.TargetGames,
		Scope:   syncer.SingleRecord("https://www.notion.so/Hades-" + id),
		Trigger: syncer.TriggerDispatch,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Counters.Scanned != 1 || report.Outcomes[0].RecordID != id {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRunLastEditedVisitsNewestRecord(t *testing.T) {
	f := newFixture(t)
	f.igdb.Add("", "113112", hades())
	f.seedGame("Old", "1", now.Add(-time.Hour), nil, nil)
	newest := f.seedGame("Hades", "113112", now, nil, nil)

	report, err := f.syncer.Run(context.Background(), syncer.Request{Target: catalog.TargetGames, Scope: syncer.LastEdited()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Outcomes) != 1 || report.Outcomes[0].RecordID != newest {
		t.Fatalf("unexpected outcomes %+v", report.Outcomes)
	}
}

func TestRunForceResearchIgnoresStoredIDs(t *testing.T) {
	f := newFixture(t)
	f.igdb.AddSearch("Hades", hades())
	f.seedGame("Hades", "1", now, ptr(now), nil)

	report, err := f.syncer.Run(context.Background(), syncer.Request{
		Target: catalog.TargetGames,
		Scope:  syncer.AllRecords(),
		Flags:  syncer.Flags{ForceResearch: true},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.igdb.SearchCount() != 1 || f.igdb.FetchCount() != 0 {
		t.Fatalf("expected name search only, fetches=%d searches=%d", f.igdb.FetchCount(), f.igdb.SearchCount())
	}
	if report.Counters.Updated != 1 {
		t.Fatalf("unexpected counters %+v", report.Counters)
	}
}

func TestRunForceIconsDecoratesUpdate(t *testing.T) {
	f := newFixture(t)
	rec := hades()
	rec.CoverURL = "https://images.igdb.com/cover.jpg"
	f.igdb.Add("", "113112", rec)
	id := f.seedGame("Hades", "113112", now, ptr(now), nil)

	if _, err := f.syncer.Run(context.Background(), syncer.Request{
		Target: catalog.TargetGames,
		Scope:  syncer.AllRecords(),
		Flags:  syncer.Flags{ForceIcons: true},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	deco := f.store.Decoration(id)
	if deco.Icon != "🎮" || deco.CoverURL != rec.CoverURL {
		t.Fatalf("unexpected decoration %+v", deco)
	}
}

func TestRunCreatedAfterFilter(t *testing.T) {
	f := newFixture(t)
	f.igdb.Add("", "113112", hades())
	f.seedGame("Old", "1", now.Add(-48*time.Hour), nil, nil)
	recent := f.seedGame("Hades", "113112", now, nil, nil)

	report, err := f.syncer.Run(context.Background(), syncer.Request{
		Target:       catalog.TargetGames,
		Scope:        syncer.AllRecords(),
		CreatedAfter: now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Counters.Scanned != 1 || report.Outcomes[0].RecordID != recent {
		t.Fatalf("unexpected report %+v", report)
	}
}

func spotifyTrack() catalog.Record {
	artist := catalog.Record{
		Provider: "spotify", ID: "art", Kind: catalog.KindArtist, Title: "The Killers", Partial: true,
		ExternalIDs: map[string]string{"spotify": "art"},
	}
	album := catalog.Record{
		Provider: "spotify", ID: "alb", Kind: catalog.KindAlbum, Title: "Hot Fuss", Partial: true,
		ExternalIDs: map[string]string{"spotify": "alb"},
		Related:     []catalog.Record{artist},
	}
	return catalog.Record{
		Provider:    "spotify",
		ID:          "trk",
		Kind:        catalog.KindTrack,
		Title:       "Mr. Brightside",
		ExternalIDs: map[string]string{"spotify": "trk", "isrc": "USRC17607839"},
		Related:     []catalog.Record{album},
	}
}

func (f *fixture) addSpotifyCatalog() {
	track := spotifyTrack()
	album := track.Related[0]
	album.Partial = false
	artist := album.Related[0]
	artist.Partial = false
	f.spotify.Add("", "trk", track).Add("", "alb", album).Add("", "art", artist)
}

func TestCreateFromURLCreatesHierarchy(t *testing.T) {
	f := newFixture(t)
	f.addSpotifyCatalog()

	report, err := f.syncer.Run(context.Background(), syncer.Request{
		Target: catalog.TargetMusic,
		Scope:  syncer.CreateFromURL("https://open.spotify.com/track/trk"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Counters.Created != 3 {
		t.Fatalf("created = %d, want 3 (%+v)", report.Counters.Created, report.Created)
	}
	songs, albums, artists := f.store.Records(songsDB), f.store.Records(albumsDB), f.store.Records(artistsDB)
	if len(songs) != 1 || len(albums) != 1 || len(artists) != 1 {
		t.Fatalf("records: songs=%d albums=%d artists=%d", len(songs), len(albums), len(artists))
	}
	if got := songs[0].Properties["isrc"].Text; got != "USRC17607839" {
		t.Fatalf("isrc = %q", got)
	}
	if !songs[0].Properties["alb"].Equal(merge.Relation(albums[0].ID)) {
		t.Fatalf("song album relation = %v", songs[0].Properties["alb"])
	}
	if !albums[0].Properties["art"].Equal(merge.Relation(artists[0].ID)) {
		t.Fatalf("album artist relation = %v", albums[0].Properties["art"])
	}
	if f.store.Decoration(songs[0].ID).Icon != "🎵" {
		t.Fatal("created song missing icon")
	}
	if len(f.store.Payloads(songs[0].ID)) != 1 {
		t.Fatal("created song written more than once")
	}

	again, err := f.syncer.Run(context.Background(), syncer.Request{
		Target: catalog.TargetMusic,
		Scope:  syncer.CreateFromURL("spotify:track:trk"),
	})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Counters.Created != 0 || len(f.store.Records(songsDB)) != 1 {
		t.Fatalf("second run duplicated records: %+v", again.Counters)
	}
}

func TestCreateFromURLDryRunPlansOnly(t *testing.T) {
	f := newFixture(t)
	f.addSpotifyCatalog()

	report, err := f.syncer.Run(context.Background(), syncer.Request{
		Target: catalog.TargetMusic,
		Scope:  syncer.CreateFromURL("https://open.spotify.com/track/trk"),
		Flags:  syncer.Flags{DryRun: true},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.store.Writes() != 0 {
		t.Fatal("dry run created records")
	}
	if len(report.Planned) != 3 || report.Planned[0].Kind != catalog.KindTrack {
		t.Fatalf("unexpected plan %+v", report.Planned)
	}
}

func TestConcurrentTracksShareOneAlbum(t *testing.T) {
	f := newFixture(t)
	f.addSpotifyCatalog()
	second := spotifyTrack()
	second.ID = "trk2"
	second.Title = "Somebody Told Me"
	second.ExternalIDs = map[string]string{"spotify": "trk2", "isrc": "USIR20400001"}
	f.spotify.Add("", "trk2", second)

	for _, id := range []string{"trk", "trk2"} {
		f.store.Seed(store.Record{DatabaseID: songsDB, Properties: merge.Properties{
			"t":  merge.Text(id),
			"sp": merge.Text(id),
		}})
	}

	report, err := f.syncer.Run(context.Background(), syncer.Request{
		Target:   catalog.TargetMusic,
		Scope:    syncer.AllRecords(),
		Database: "songs",
		Workers:  4,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := len(f.store.Records(albumsDB)); n != 1 {
		t.Fatalf("albums = %d, want 1", n)
	}
	if n := len(f.store.Records(artistsDB)); n != 1 {
		t.Fatalf("artists = %d, want 1", n)
	}
	if report.Counters.Updated != 2 || report.Counters.Created != 2 {
		t.Fatalf("unexpected counters %+v", report.Counters)
	}
}

func TestPartialParentResolvingToKnownEntityIsNotPlannedTwice(t *testing.T) {
	f := newFixture(t)
	f.addSpotifyCatalog()
	full := spotifyTrack().Related[0]
	full.Partial = false
	second := spotifyTrack()
	second.ID = "trk2"
	second.Title = "Somebody Told Me"
	second.ExternalIDs = map[string]string{"spotify": "trk2", "isrc": "USIR20400001"}
	second.Related = []catalog.Record{{
		Provider: "musicbrainz", ID: "mb-alb", Kind: catalog.KindAlbum, Title: "Hot Fuss", Partial: true,
		ExternalIDs: map[string]string{"musicbrainz": "mb-alb"},
	}}
	f.spotify.Add("", "trk2", second)
	f.mb.Add("", "mb-alb", full)

	for _, id := range []string{"trk", "trk2"} {
		f.store.Seed(store.Record{DatabaseID: songsDB, Properties: merge.Properties{
			"t":  merge.Text(id),
			"sp": merge.Text(id),
		}})
	}

	report, err := f.syncer.Run(context.Background(), syncer.Request{
		Target:   catalog.TargetMusic,
		Scope:    syncer.AllRecords(),
		Database: "songs",
		Workers:  1,
		Flags:    syncer.Flags{DryRun: true},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	albums := 0
	for _, c := range report.Planned {
		if c.Kind == catalog.KindAlbum {
			albums++
		}
	}
	if albums != 1 {
		t.Fatalf("planned albums = %d, want 1 (%+v)", albums, report.Planned)
	}
}

func TestRunRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t)
	cases := []syncer.Request{
		{Target: "comics", Scope: syncer.AllRecords()},
		{Target: catalog.TargetGames, Scope: syncer.AllRecords(), Workers: 5},
		{Target: catalog.TargetGames, Scope: syncer.SingleRecord("")},
		{Target: catalog.TargetMusic, Scope: syncer.CreateFromURL("")},
		{Target: catalog.TargetGames, Scope: syncer.AllRecords(), Trigger: "cron"},
	}
	for _, req := range cases {
		if _, err := f.syncer.Run(context.Background(), req); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("request %+v: expected validation error, got %v", req, err)
		}
	}
	if _, err := f.syncer.Run(context.Background(), syncer.Request{Target: catalog.TargetGames, Scope: syncer.AllRecords(), Database: "films"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown database: got %v", err)
	}
}
