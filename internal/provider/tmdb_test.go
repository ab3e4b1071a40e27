package provider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/provider"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *provider.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := provider.NewClient(config.Provider{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		Language:       "en-US",
		TimeoutSeconds: 5,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestSearchAndMatchMovie(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("missing api key on %s", r.URL.Path)
		}
		switch r.URL.Path {
		case "/search/movie":
			if got := r.URL.Query().Get("primary_release_year"); got != "2021" {
				t.Errorf("year filter = %q", got)
			}
			w.Write([]byte(`{"results":[{"id":42,"title":"Example Movie","release_date":"2021-03-01","overview":"a film","vote_average":7.5}]}`))
		case "/movie/42":
			w.Write([]byte(`{"id":42,"title":"Example Movie","release_date":"2021-03-01","overview":"a film","vote_average":7.5,"runtime":117,"genres":[{"name":"Drama"},{"name":"Thriller"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	item := &catalog.Item{Title: "Example Movie", Year: 2021, MediaType: catalog.MediaTypeMovie}
	result, err := client.SearchAndMatch(context.Background(), item)
	if err != nil {
		t.Fatalf("SearchAndMatch: %v", err)
	}
	if result == nil || result.Empty() {
		t.Fatal("expected a populated result")
	}
	if result.Title == nil || *result.Title != "Example Movie" {
		t.Errorf("Title = %v", result.Title)
	}
	if result.Year == nil || *result.Year != 2021 {
		t.Errorf("Year = %v", result.Year)
	}
	if result.RuntimeMinutes == nil || *result.RuntimeMinutes != 117 {
		t.Errorf("RuntimeMinutes = %v", result.RuntimeMinutes)
	}
	if result.Genres == nil || *result.Genres != "Drama, Thriller" {
		t.Errorf("Genres = %v", result.Genres)
	}
	if result.Rating == nil || *result.Rating != 7.5 {
		t.Errorf("Rating = %v", result.Rating)
	}
}

func TestSearchAndMatchEpisodeUsesTVEndpoints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/tv":
			w.Write([]byte(`{"results":[{"id":7,"name":"Some Show","first_air_date":"1999-09-01"}]}`))
		case "/tv/7":
			w.Write([]byte(`{"id":7,"name":"Some Show","first_air_date":"1999-09-01","overview":"a show"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	item := &catalog.Item{Title: "Some Show", MediaType: catalog.MediaTypeEpisode}
	result, err := client.SearchAndMatch(context.Background(), item)
	if err != nil {
		t.Fatalf("SearchAndMatch: %v", err)
	}
	if result.Title == nil || *result.Title != "Some Show" {
		t.Errorf("Title = %v", result.Title)
	}
	if result.AiredDate == nil || *result.AiredDate != "1999-09-01" {
		t.Errorf("AiredDate = %v", result.AiredDate)
	}
}

func TestSearchAndMatchNoResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	})

	item := &catalog.Item{Title: "Nothing", MediaType: catalog.MediaTypeMovie}
	result, err := client.SearchAndMatch(context.Background(), item)
	if err != nil {
		t.Fatalf("SearchAndMatch: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}
}

func TestSearchAndMatchServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	item := &catalog.Item{Title: "Broken", MediaType: catalog.MediaTypeMovie}
	if _, err := client.SearchAndMatch(context.Background(), item); err == nil {
		t.Fatal("expected error on server failure")
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := provider.NewClient(config.Provider{BaseURL: "http://x"}); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := provider.NewClient(config.Provider{APIKey: "k"}); err == nil {
		t.Error("expected error for missing base url")
	}
}
