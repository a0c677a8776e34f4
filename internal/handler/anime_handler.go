package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/koanime/internal/catalog"
	"github.com/hitoshi/koanime/internal/model"
)

// CatalogServiceInterface はアニメハンドラーが必要とするサービスインターフェース。
// いずれの操作も上流の障害をエラーとして返さず、空の結果に縮退する。
type CatalogServiceInterface interface {
	Trending(ctx context.Context) []model.AnimeSummary
	NewReleases(ctx context.Context) []model.AnimeSummary
	Search(ctx context.Context, query string) []model.SearchResultItem
	Discover(ctx context.Context, p catalog.DiscoverParams) model.AnimePage
	Genres(ctx context.Context) []model.Genre
	Info(ctx context.Context, ref model.AnimeRef) *model.AnimeSummary
	Episodes(ctx context.Context, ref model.AnimeRef, page int) model.EpisodePage
	Streams(ctx context.Context, ref model.AnimeRef, ep int) []model.StreamLink
	News(ctx context.Context) []model.NewsItem
}

// AnimeHandler はカタログ閲覧のHTTPハンドラー。
type AnimeHandler struct {
	service CatalogServiceInterface
}

// NewAnimeHandler はAnimeHandlerを生成する。
func NewAnimeHandler(service CatalogServiceInterface) *AnimeHandler {
	return &AnimeHandler{service: service}
}

type resultsResponse[T any] struct {
	Results []T `json:"results"`
}

type genresResponse struct {
	Genres []model.Genre `json:"genres"`
}

type linksResponse struct {
	Links []model.StreamLink `json:"links"`
}

// Trending は人気作品一覧を返す。
// GET /api/anime/trending
func (h *AnimeHandler) Trending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, resultsResponse[model.AnimeSummary]{Results: h.service.Trending(r.Context())})
}

// NewReleases は今期の作品一覧を返す。
// GET /api/anime/new
func (h *AnimeHandler) NewReleases(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, resultsResponse[model.AnimeSummary]{Results: h.service.NewReleases(r.Context())})
}

// Search はランキング済みの検索結果を返す。
// GET /api/anime/search?q=
func (h *AnimeHandler) Search(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, resultsResponse[model.SearchResultItem]{Results: h.service.Search(r.Context(), r.URL.Query().Get("q"))})
}

// Discover は条件で絞り込んだ作品一覧をページ単位で返す。
// GET /api/anime/discover?q&genre&page&order_by&sort
func (h *AnimeHandler) Discover(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, h.service.Discover(r.Context(), catalog.DiscoverParams{
		Query:   q.Get("q"),
		Genre:   q.Get("genre"),
		Page:    queryInt(q.Get("page"), 1),
		OrderBy: q.Get("order_by"),
		Sort:    q.Get("sort"),
	}))
}

// Genres はジャンル語彙を返す。
// GET /api/anime/genres
func (h *AnimeHandler) Genres(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, genresResponse{Genres: h.service.Genres(r.Context())})
}

// News はアニメ関連ニュースを返す。
// GET /api/anime/news
func (h *AnimeHandler) News(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, resultsResponse[model.NewsItem]{Results: h.service.News(r.Context())})
}

// Info は作品詳細とシーズン一覧を返す。
// GET /api/anime/info/{id}?source=
func (h *AnimeHandler) Info(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	ref, ok := parseRef(raw, r.URL.Query().Get("source"))
	if !ok {
		handleServiceError(w, model.NewInvalidIDError(raw))
		return
	}

	anime := h.service.Info(r.Context(), ref)
	if anime == nil {
		handleServiceError(w, model.NewAnimeNotFoundError(ref.ID))
		return
	}
	writeJSON(w, anime)
}

// Episodes はエピソード一覧を返す。不正なIDには空の一覧を返す。
// GET /api/anime/episodes/{id}?page=&source=
func (h *AnimeHandler) Episodes(w http.ResponseWriter, r *http.Request) {
	ref, ok := parseRef(chi.URLParam(r, "id"), r.URL.Query().Get("source"))
	if !ok {
		writeJSON(w, model.EpisodePage{Episodes: []model.EpisodeItem{}})
		return
	}
	writeJSON(w, h.service.Episodes(r.Context(), ref, queryInt(r.URL.Query().Get("page"), 1)))
}

// Streams は外部配信サービスへのリンクを返す。不正なIDには空の一覧を返す。
// subパラメータ（sub|dub）は互換性のために受け付けるが結果には影響しない。
// GET /api/anime/streams/{id}?ep=&sub=&source=
func (h *AnimeHandler) Streams(w http.ResponseWriter, r *http.Request) {
	ref, ok := parseRef(chi.URLParam(r, "id"), r.URL.Query().Get("source"))
	if !ok {
		writeJSON(w, linksResponse{Links: []model.StreamLink{}})
		return
	}
	writeJSON(w, linksResponse{Links: h.service.Streams(r.Context(), ref, queryInt(r.URL.Query().Get("ep"), 0))})
}

// parseRef はパスのIDとsourceクエリから名前空間付きIDを組み立てる。
func parseRef(rawID, rawSource string) (model.AnimeRef, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return model.AnimeRef{}, false
	}
	source, ok := model.ParseSource(strings.ToLower(strings.TrimSpace(rawSource)))
	if !ok {
		return model.AnimeRef{}, false
	}
	return model.AnimeRef{Source: source, ID: id}, true
}

// queryInt はクエリの整数値を返す。未指定・不正・負の値はdefを返す。
func queryInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return def
	}
	return n
}
