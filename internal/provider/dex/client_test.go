package dex

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/koanime/internal/model"
)

func newTestClient(t *testing.T, body string) (*Client, *string) {
	t.Helper()
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return NewClient(server.URL, server.Client(), nil, 0), &gotPath
}

func TestClient_Search_TopLevelArray(t *testing.T) {
	c, path := newTestClient(t, `[
		{"mal_id": 20, "title": "Naruto", "image": "https://img/n.jpg", "type": "TV", "year": 2002},
		{"id": "777", "name": "Boruto", "poster": "https://img/b.jpg", "format": "TV", "releaseDate": "Apr 5, 2017"},
		{"animeId": 5, "animeTitle": "Road of Naruto", "rating": 85},
		{"image": "https://img/untitled.jpg"},
		"garbage"
	]`)

	got, err := c.Search(context.Background(), "naruto shippuden")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *path != "/search/naruto%20shippuden" {
		t.Errorf("path = %s", *path)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}

	first := got[0].Summary
	if first.ID != 20 || first.Source != model.SourceMAL || first.Year == nil || *first.Year != 2002 {
		t.Errorf("first = %+v", first)
	}

	second := got[1].Summary
	if second.ID != 777 || second.Source != model.SourceDex || second.Title != "Boruto" {
		t.Errorf("second = %+v", second)
	}
	if second.Image != "https://img/b.jpg" || second.Type != "TV" {
		t.Errorf("second image/type = %q/%q", second.Image, second.Type)
	}
	if second.Year == nil || *second.Year != 2017 {
		t.Errorf("second year = %v, should be extracted from releaseDate", second.Year)
	}

	third := got[2].Summary
	if third.ID != 5 || third.Title != "Road of Naruto" {
		t.Errorf("third = %+v", third)
	}
	if third.Rating == nil || *third.Rating != 8.5 {
		t.Errorf("third rating = %v, want 8.5", third.Rating)
	}
}

func TestClient_Search_WrappedArrays(t *testing.T) {
	for _, key := range []string{"results", "data", "items", "animes"} {
		t.Run(key, func(t *testing.T) {
			c, _ := newTestClient(t, fmt.Sprintf(`{%q: [{"title": "Bleach"}]}`, key))
			got, err := c.Search(context.Background(), "bleach")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != 1 || got[0].Summary.Title != "Bleach" {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestClient_Search_UnknownShapeIsEmpty(t *testing.T) {
	c, _ := newTestClient(t, `{"message": "ok", "count": 3}`)

	got, err := c.Search(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %+v, want empty", got)
	}
}
