package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/koanime/internal/catalog"
	"github.com/hitoshi/koanime/internal/model"
)

func animeRouter(svc CatalogServiceInterface) http.Handler {
	h := NewAnimeHandler(svc)
	r := chi.NewRouter()
	r.Get("/api/anime/trending", h.Trending)
	r.Get("/api/anime/new", h.NewReleases)
	r.Get("/api/anime/search", h.Search)
	r.Get("/api/anime/discover", h.Discover)
	r.Get("/api/anime/genres", h.Genres)
	r.Get("/api/anime/news", h.News)
	r.Get("/api/anime/info/{id}", h.Info)
	r.Get("/api/anime/episodes/{id}", h.Episodes)
	r.Get("/api/anime/streams/{id}", h.Streams)
	return r
}

func TestAnimeHandler_Trending(t *testing.T) {
	svc := &mockCatalogService{trendingFn: func(context.Context) []model.AnimeSummary {
		return []model.AnimeSummary{{ID: 1, Source: model.SourceMAL, Title: "A"}}
	}}

	w := doRequest(t, animeRouter(svc), http.MethodGet, "/api/anime/trending", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody[resultsResponse[model.AnimeSummary]](t, w)
	if len(body.Results) != 1 || body.Results[0].Title != "A" {
		t.Errorf("results = %+v", body.Results)
	}
}

func TestAnimeHandler_EmptyShapesAreArrays(t *testing.T) {
	router := animeRouter(&mockCatalogService{})

	paths := map[string]string{
		"/api/anime/trending":     `{"results":[]}`,
		"/api/anime/new":          `{"results":[]}`,
		"/api/anime/search?q=":    `{"results":[]}`,
		"/api/anime/genres":       `{"genres":[]}`,
		"/api/anime/news":         `{"results":[]}`,
		"/api/anime/streams/1":    `{"links":[]}`,
		"/api/anime/episodes/abc": `{"episodes":[],"pagination":null}`,
		"/api/anime/streams/abc":  `{"links":[]}`,
	}
	for path, want := range paths {
		w := doRequest(t, router, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, w.Code)
		}
		if got := w.Body.String(); got != want+"\n" {
			t.Errorf("%s: body = %q, want %q", path, got, want)
		}
	}
}

func TestAnimeHandler_Search_PassesQuery(t *testing.T) {
	var got string
	svc := &mockCatalogService{searchFn: func(_ context.Context, q string) []model.SearchResultItem {
		got = q
		return []model.SearchResultItem{{ID: 5, Title: "Naruto"}}
	}}

	w := doRequest(t, animeRouter(svc), http.MethodGet, "/api/anime/search?q=naruto+shippuden", "")
	if got != "naruto shippuden" {
		t.Errorf("query = %q", got)
	}
	body := decodeBody[resultsResponse[model.SearchResultItem]](t, w)
	if len(body.Results) != 1 {
		t.Errorf("results = %+v", body.Results)
	}
}

func TestAnimeHandler_Discover_ParsesParams(t *testing.T) {
	var got catalog.DiscoverParams
	svc := &mockCatalogService{discoverFn: func(_ context.Context, p catalog.DiscoverParams) model.AnimePage {
		got = p
		return model.AnimePage{Results: []model.AnimeSummary{}, Pagination: model.Pagination{Page: p.Page, HasNextPage: true}}
	}}

	w := doRequest(t, animeRouter(svc), http.MethodGet,
		"/api/anime/discover?q=mecha&genre=Action&page=3&order_by=score&sort=desc", "")
	want := catalog.DiscoverParams{Query: "mecha", Genre: "Action", Page: 3, OrderBy: "score", Sort: "desc"}
	if got != want {
		t.Errorf("params = %+v, want %+v", got, want)
	}
	body := decodeBody[model.AnimePage](t, w)
	if body.Pagination.Page != 3 || !body.Pagination.HasNextPage {
		t.Errorf("pagination = %+v", body.Pagination)
	}

	doRequest(t, animeRouter(svc), http.MethodGet, "/api/anime/discover?page=abc", "")
	if got.Page != 1 {
		t.Errorf("invalid page should default to 1, got %d", got.Page)
	}
}

func TestAnimeHandler_Info(t *testing.T) {
	var gotRef model.AnimeRef
	svc := &mockCatalogService{infoFn: func(_ context.Context, ref model.AnimeRef) *model.AnimeSummary {
		gotRef = ref
		if ref.ID == 404 {
			return nil
		}
		return &model.AnimeSummary{ID: ref.ID, Source: ref.Source, Title: "Found",
			Seasons: []model.Season{{ID: ref.ID, Source: ref.Source, Number: 1}}}
	}}
	router := animeRouter(svc)

	t.Run("取得成功", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/anime/info/21", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		body := decodeBody[model.AnimeSummary](t, w)
		if body.ID != 21 || len(body.Seasons) != 1 {
			t.Errorf("body = %+v", body)
		}
		if gotRef != (model.AnimeRef{Source: model.SourceMAL, ID: 21}) {
			t.Errorf("ref = %+v", gotRef)
		}
	})

	t.Run("source指定", func(t *testing.T) {
		doRequest(t, router, http.MethodGet, "/api/anime/info/21?source=anilist", "")
		if gotRef.Source != model.SourceAniList {
			t.Errorf("source = %q, want anilist", gotRef.Source)
		}
	})

	t.Run("数値以外のIDは400", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/anime/info/abc", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
		if body := decodeBody[errorBody](t, w); body.Error != model.ErrCodeInvalidID {
			t.Errorf("error = %q", body.Error)
		}
	})

	t.Run("未知のsourceは400", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/anime/info/1?source=kitsu", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("全プロバイダ失敗は404", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/anime/info/404", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestAnimeHandler_EpisodesAndStreams_PassParams(t *testing.T) {
	var page, ep int
	var ref model.AnimeRef
	svc := &mockCatalogService{
		episodesFn: func(_ context.Context, r model.AnimeRef, p int) model.EpisodePage {
			ref, page = r, p
			return model.EpisodePage{Episodes: []model.EpisodeItem{{ID: "1", Number: 1}}}
		},
		streamsFn: func(_ context.Context, r model.AnimeRef, e int) []model.StreamLink {
			ref, ep = r, e
			return []model.StreamLink{{Name: "Crunchyroll", URL: "https://www.crunchyroll.com/x"}}
		},
	}
	router := animeRouter(svc)

	w := doRequest(t, router, http.MethodGet, "/api/anime/episodes/20?page=2&source=anilist", "")
	if page != 2 || ref != (model.AnimeRef{Source: model.SourceAniList, ID: 20}) {
		t.Errorf("page = %d ref = %+v", page, ref)
	}
	if body := decodeBody[model.EpisodePage](t, w); len(body.Episodes) != 1 {
		t.Errorf("episodes = %+v", body.Episodes)
	}

	w = doRequest(t, router, http.MethodGet, "/api/anime/streams/20?ep=3&sub=dub", "")
	if ep != 3 || ref.Source != model.SourceMAL {
		t.Errorf("ep = %d ref = %+v", ep, ref)
	}
	if body := decodeBody[linksResponse](t, w); len(body.Links) != 1 {
		t.Errorf("links = %+v", body.Links)
	}
}
