package syncer_test

import (
	"context"
	"errors"
	"testing"

	"shelfsync/internal/catalog"
	"shelfsync/internal/merge"
	"shelfsync/internal/schema"
	"shelfsync/internal/services"
	"shelfsync/internal/store"
	"shelfsync/internal/syncer"
	"shelfsync/internal/testsupport"
)

func newRouter(t *testing.T) (*syncer.Router, *testsupport.FakeStore) {
	t.Helper()
	st := testsupport.NewFakeStore(clock)
	st.Define(gamesSchema())
	for _, s := range musicSchemas() {
		st.Define(s)
	}
	st.Define(moviesSchema())
	return syncer.NewRouter(st, []schema.Target{gamesTarget(), musicTarget(), moviesTarget()}), st
}

func TestRouteByParentDatabase(t *testing.T) {
	router, st := newRouter(t)
	id := st.Seed(store.Record{DatabaseID: albumsDB, Properties: merge.Properties{"t": merge.Text("Hot Fuss")}})

	req, err := router.Route(context.Background(), id)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if req.Target != catalog.TargetMusic || req.Database != "albums" || req.Scope.Kind != syncer.ScopeSingle || req.Scope.RecordID != id {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Trigger != syncer.TriggerWebhook {
		t.Fatalf("trigger = %q", req.Trigger)
	}
}

func TestRouteUnknownDatabase(t *testing.T) {
	router, st := newRouter(t)
	st.Define(store.Schema{DatabaseID: "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"})
	id := st.Seed(store.Record{DatabaseID: "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"})
	if _, err := router.Route(context.Background(), id); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := router.Route(context.Background(), "not-a-page"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRouteSpotifyURL(t *testing.T) {
	router, _ := newRouter(t)
	req, err := router.RouteURL("https://open.spotify.com/album/alb")
	if err != nil {
		t.Fatalf("RouteURL: %v", err)
	}
	if req.Target != catalog.TargetMusic || req.Scope.Kind != syncer.ScopeCreateFromURL || req.Database != "albums" {
		t.Fatalf("unexpected request %+v", req)
	}
	if _, err := router.RouteURL("https://www.igdb.com/games/hades"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("non-spotify url: got %v", err)
	}
}

func TestRouteTMDbTVURL(t *testing.T) {
	router, _ := newRouter(t)
	req, err := router.RouteURL("https://www.themoviedb.org/tv/1399-game-of-thrones")
	if err != nil {
		t.Fatalf("RouteURL: %v", err)
	}
	if req.Target != catalog.TargetMovies || req.Database != "movies" || req.Scope.Kind != syncer.ScopeCreateFromURL {
		t.Fatalf("unexpected request %+v", req)
	}

	req, err = router.RoutePayload(context.Background(), []byte(`{"tmdb_url":"https://www.themoviedb.org/movie/603"}`))
	if err != nil {
		t.Fatalf("RoutePayload: %v", err)
	}
	if req.Target != catalog.TargetMovies || req.Scope.URL != "https://www.themoviedb.org/movie/603" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestRoutePayload(t *testing.T) {
	router, st := newRouter(t)
	id := st.Seed(store.Record{DatabaseID: gamesDB})

	req, err := router.RoutePayload(context.Background(), []byte(`{"source":{"type":"automation"},"data":{"object":"page","id":"`+id+`"}}`))
	if err != nil {
		t.Fatalf("RoutePayload: %v", err)
	}
	if req.Target != catalog.TargetGames || req.Scope.RecordID != id {
		t.Fatalf("unexpected request %+v", req)
	}

	req, err = router.RoutePayload(context.Background(), []byte(`{"spotify_url":"spotify:track:trk","page_id":"`+id+`"}`))
	if err != nil {
		t.Fatalf("RoutePayload url: %v", err)
	}
	if req.Scope.Kind != syncer.ScopeCreateFromURL || req.Database != "songs" {
		t.Fatalf("url should win over page id: %+v", req)
	}

	if _, err := router.RoutePayload(context.Background(), []byte(`{}`)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty payload: got %v", err)
	}
}
