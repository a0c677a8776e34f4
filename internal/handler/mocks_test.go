package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/koanime/internal/auth"
	"github.com/hitoshi/koanime/internal/catalog"
	"github.com/hitoshi/koanime/internal/model"
	"github.com/hitoshi/koanime/internal/user"
)

// --- モック定義 ---

type mockCatalogService struct {
	trendingFn    func(ctx context.Context) []model.AnimeSummary
	newReleasesFn func(ctx context.Context) []model.AnimeSummary
	searchFn      func(ctx context.Context, query string) []model.SearchResultItem
	discoverFn    func(ctx context.Context, p catalog.DiscoverParams) model.AnimePage
	genresFn      func(ctx context.Context) []model.Genre
	infoFn        func(ctx context.Context, ref model.AnimeRef) *model.AnimeSummary
	episodesFn    func(ctx context.Context, ref model.AnimeRef, page int) model.EpisodePage
	streamsFn     func(ctx context.Context, ref model.AnimeRef, ep int) []model.StreamLink
	newsFn        func(ctx context.Context) []model.NewsItem
}

func (m *mockCatalogService) Trending(ctx context.Context) []model.AnimeSummary {
	if m.trendingFn != nil {
		return m.trendingFn(ctx)
	}
	return []model.AnimeSummary{}
}

func (m *mockCatalogService) NewReleases(ctx context.Context) []model.AnimeSummary {
	if m.newReleasesFn != nil {
		return m.newReleasesFn(ctx)
	}
	return []model.AnimeSummary{}
}

func (m *mockCatalogService) Search(ctx context.Context, query string) []model.SearchResultItem {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return []model.SearchResultItem{}
}

func (m *mockCatalogService) Discover(ctx context.Context, p catalog.DiscoverParams) model.AnimePage {
	if m.discoverFn != nil {
		return m.discoverFn(ctx, p)
	}
	return model.AnimePage{Results: []model.AnimeSummary{}}
}

func (m *mockCatalogService) Genres(ctx context.Context) []model.Genre {
	if m.genresFn != nil {
		return m.genresFn(ctx)
	}
	return []model.Genre{}
}

func (m *mockCatalogService) Info(ctx context.Context, ref model.AnimeRef) *model.AnimeSummary {
	if m.infoFn != nil {
		return m.infoFn(ctx, ref)
	}
	return nil
}

func (m *mockCatalogService) Episodes(ctx context.Context, ref model.AnimeRef, page int) model.EpisodePage {
	if m.episodesFn != nil {
		return m.episodesFn(ctx, ref, page)
	}
	return model.EpisodePage{Episodes: []model.EpisodeItem{}}
}

func (m *mockCatalogService) Streams(ctx context.Context, ref model.AnimeRef, ep int) []model.StreamLink {
	if m.streamsFn != nil {
		return m.streamsFn(ctx, ref, ep)
	}
	return []model.StreamLink{}
}

func (m *mockCatalogService) News(ctx context.Context) []model.NewsItem {
	if m.newsFn != nil {
		return m.newsFn(ctx)
	}
	return []model.NewsItem{}
}

type mockAuthService struct {
	signupFn      func(ctx context.Context, username, password string) (*auth.Result, error)
	loginFn       func(ctx context.Context, username, password string) (*auth.Result, error)
	currentUserFn func(ctx context.Context, userID string) (*model.AuthUser, error)
}

func (m *mockAuthService) Signup(ctx context.Context, username, password string) (*auth.Result, error) {
	return m.signupFn(ctx, username, password)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*auth.Result, error) {
	return m.loginFn(ctx, username, password)
}

func (m *mockAuthService) CurrentUser(ctx context.Context, userID string) (*model.AuthUser, error) {
	return m.currentUserFn(ctx, userID)
}

type mockProgressService struct {
	continueFn     func(ctx context.Context, userID string) ([]model.WatchEntry, error)
	saveProgressFn func(ctx context.Context, userID string, in user.ProgressInput) ([]model.WatchEntry, error)
}

func (m *mockProgressService) Continue(ctx context.Context, userID string) ([]model.WatchEntry, error) {
	return m.continueFn(ctx, userID)
}

func (m *mockProgressService) SaveProgress(ctx context.Context, userID string, in user.ProgressInput) ([]model.WatchEntry, error) {
	return m.saveProgressFn(ctx, userID, in)
}

// --- ヘルパー ---

func doRequest(t *testing.T, h http.Handler, method, path, body string, setup ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, fn := range setup {
		fn(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v (body=%q)", err, w.Body.String())
	}
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
