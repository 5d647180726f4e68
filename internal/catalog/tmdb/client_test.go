package tmdb_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"shelfsync/internal/catalog"
	"shelfsync/internal/catalog/tmdb"
	"shelfsync/internal/services"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := tmdb.New("", "https://example.com", "en-US"); err == nil {
		t.Fatal("expected error when api key missing")
	}
}

func TestSearchMovieSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "key" {
			t.Errorf("expected api_key query parameter, got %q", r.URL.RawQuery)
		}
		if r.URL.Path != "/search/movie" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":1,"title":"Example","vote_average":7.26,"vote_count":10}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "en-US")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	results, err := client.Search(context.Background(), catalog.Query{Kind: catalog.KindMovie, Name: "Example"})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Example" || !results[0].Partial {
		t.Fatalf("unexpected results: %#v", results)
	}
	if results[0].Rating == nil || *results[0].Rating != 7.3 {
		t.Fatalf("expected rating rounded to 7.3, got %v", results[0].Rating)
	}
}

func TestFetchMovieDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("append_to_response") != "credits" {
			t.Errorf("expected credits to be appended")
		}
		_, _ = w.Write([]byte(`{
			"id":603,"title":"The Matrix","release_date":"1999-03-30","imdb_id":"tt0133093",
			"poster_path":"/p.jpg","vote_average":8.2,"vote_count":20000,
			"genres":[{"id":28,"name":"Action"},{"id":878,"name":"Science Fiction"}],
			"belongs_to_collection":{"id":2344,"name":"The Matrix Collection"},
			"credits":{"cast":[{"name":"Carrie-Anne Moss","order":2},{"name":"Keanu Reeves","order":0}],
			           "crew":[{"name":"Lana Wachowski","job":"Director"},{"name":"Bill Pope","job":"Director of Photography"}]}
		}`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	rec, err := client.Fetch(context.Background(), catalog.Query{ID: "603"})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if rec.Series != "The Matrix Collection" || rec.ExternalID(catalog.SchemeIMDb) != "tt0133093" {
		t.Fatalf("unexpected record: %#v", rec)
	}
	if got := rec.ContributorsWithRole("Director"); len(got) != 1 || got[0] != "Lana Wachowski" {
		t.Fatalf("unexpected directors %v", got)
	}
	if got := rec.ContributorsWithRole("Cast"); len(got) != 2 || got[0] != "Keanu Reeves" {
		t.Fatalf("expected cast ordered by billing, got %v", got)
	}
	if rec.CoverURL != "https://image.tmdb.org/t/p/w500/p.jpg" {
		t.Fatalf("unexpected cover %q", rec.CoverURL)
	}

	if _, err := client.Fetch(context.Background(), catalog.Query{ID: "1"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFetchByIMDbID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/find/tt0133093":
			_, _ = w.Write([]byte(`{"movie_results":[{"id":603,"title":"The Matrix"}]}`))
		case "/movie/603":
			_, _ = w.Write([]byte(`{"id":603,"title":"The Matrix"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	rec, err := client.Fetch(context.Background(), catalog.Query{ID: "tt0133093", Scheme: catalog.SchemeIMDb})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if rec.ID != "603" {
		t.Fatalf("expected movie 603, got %s", rec.ID)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	client, err := tmdb.New("key", "https://example.com", "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.SearchMovie(context.Background(), "  ", 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty query, got %v", err)
	}
}

func TestFetchTVDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1399" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("append_to_response") != "credits,external_ids" {
			t.Errorf("expected credits and external ids to be appended, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{
			"id":1399,"name":"Game of Thrones","first_air_date":"2011-04-17","poster_path":"/got.jpg",
			"vote_average":8.44,"vote_count":24000,"number_of_seasons":8,"number_of_episodes":73,
			"genres":[{"id":18,"name":"Drama"}],
			"created_by":[{"id":9813,"name":"David Benioff"},{"id":228068,"name":"D. B. Weiss"}],
			"networks":[{"id":49,"name":"HBO"}],
			"credits":{"cast":[{"name":"Emilia Clarke","order":1},{"name":"Kit Harington","order":0}]},
			"external_ids":{"imdb_id":"tt0944947"}
		}`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	rec, err := client.Fetch(context.Background(), catalog.Query{Kind: catalog.KindTV, ID: "1399"})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if rec.Kind != catalog.KindTV || rec.Title != "Game of Thrones" || rec.ReleaseDate != "2011-04-17" {
		t.Fatalf("unexpected record: %#v", rec)
	}
	if rec.Seasons != 8 || rec.Episodes != 73 || rec.ExternalID(catalog.SchemeIMDb) != "tt0944947" {
		t.Fatalf("unexpected tv details: %#v", rec)
	}
	if got := rec.ContributorsWithRole("Creator"); len(got) != 2 || got[0] != "David Benioff" {
		t.Fatalf("unexpected creators %v", got)
	}
	if got := rec.ContributorsWithRole("Cast"); len(got) != 2 || got[0] != "Kit Harington" {
		t.Fatalf("expected cast ordered by billing, got %v", got)
	}
	if got := rec.ContributorsWithRole("Studio"); len(got) != 1 || got[0] != "HBO" {
		t.Fatalf("unexpected networks %v", got)
	}
	if rec.URL != "https://www.themoviedb.org/tv/1399" {
		t.Fatalf("unexpected url %q", rec.URL)
	}

	if _, err := client.Fetch(context.Background(), catalog.Query{Kind: catalog.KindMovie, ID: "1399"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("movie lookup must not read /tv, got %v", err)
	}
}

func TestSearchTVAndFindByIMDb(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/tv":
			if r.URL.Query().Get("query") != "Severance" {
				t.Errorf("unexpected query %q", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"page":1,"results":[{"id":95396,"name":"Severance","first_air_date":"2022-02-17"}]}`))
		case "/find/tt11280740":
			_, _ = w.Write([]byte(`{"movie_results":[],"tv_results":[{"id":95396,"name":"Severance"}]}`))
		case "/tv/95396":
			_, _ = w.Write([]byte(`{"id":95396,"name":"Severance","number_of_seasons":2}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	results, err := client.Search(context.Background(), catalog.Query{Kind: catalog.KindTV, Name: "Severance"})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 1 || results[0].Kind != catalog.KindTV || results[0].Title != "Severance" || results[0].ReleaseDate != "2022-02-17" {
		t.Fatalf("unexpected results: %#v", results)
	}

	rec, err := client.Fetch(context.Background(), catalog.Query{Kind: catalog.KindTV, ID: "tt11280740", Scheme: catalog.SchemeIMDb})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if rec.ID != "95396" || rec.Seasons != 2 {
		t.Fatalf("unexpected record %#v", rec)
	}
	if _, err := client.Fetch(context.Background(), catalog.Query{Kind: catalog.KindMovie, ID: "tt11280740", Scheme: catalog.SchemeIMDb}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected no movie for a tv imdb id, got %v", err)
	}
}
