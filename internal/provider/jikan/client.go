// Package jikan はREST形式のアニメ情報プロバイダ（MyAnimeList ID体系）のアダプタを提供する。
package jikan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/hitoshi/koanime/internal/model"
	"github.com/hitoshi/koanime/internal/provider/upstream"
)

// Tag はキャッシュキーとメトリクスに使うプロバイダ名。
const Tag = "jikan"

const (
	listLimit       = 24
	searchLimit     = 30
	episodesPerPage = 100
)

// ErrForeignGenre はジャンルがJikanの語彙で解決されていないことを示す。
var ErrForeignGenre = errors.New("jikan: genre id is not in the jikan vocabulary")

// orderFields はdiscoverのorder_byとして受け付ける項目。
var orderFields = map[string]bool{
	"mal_id": true, "title": true, "start_date": true, "end_date": true,
	"episodes": true, "score": true, "scored_by": true, "rank": true,
	"popularity": true, "members": true, "favorites": true,
}

// TextSanitizer はHTML断片をプレーンテキストに変換する。
type TextSanitizer interface {
	PlainText(raw string) string
}

// Client はJikan APIのアダプタ。
// プロバイダ側の利用制限（毎秒3リクエスト）に合わせてクライアント側でも流量を制限する。
type Client struct {
	http      *upstream.Client
	baseURL   string
	limiter   *rate.Limiter
	sanitizer TextSanitizer
}

// NewClient はClientを生成する。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger, maxBodySize int64, sanitizer TextSanitizer) *Client {
	return &Client{
		http:      upstream.NewClient(Tag, httpClient, logger, maxBodySize),
		baseURL:   baseURL,
		limiter:   rate.NewLimiter(rate.Limit(3), 3),
		sanitizer: sanitizer,
	}
}

// Tag はプロバイダ名を返す。
func (c *Client) Tag() string { return Tag }

// Supports はMyAnimeList ID体系のみを扱う。
func (c *Client) Supports(source model.Source) bool {
	return source == model.SourceMAL
}

func (c *Client) get(ctx context.Context, path string, query url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("jikan rate limiter: %w", err)
	}
	return c.http.GetJSON(ctx, c.baseURL+path, query, v)
}

func (c *Client) list(ctx context.Context, path string, query url.Values) ([]model.AnimeSummary, error) {
	var resp listResponse
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, err
	}
	return c.summaries(resp.Data), nil
}

// Trending は評価上位の作品を返す。
func (c *Client) Trending(ctx context.Context) ([]model.AnimeSummary, error) {
	return c.list(ctx, "/top/anime", url.Values{
		"limit": {strconv.Itoa(listLimit)},
		"sfw":   {"true"},
	})
}

// NewReleases は今期放送中の作品を返す。
func (c *Client) NewReleases(ctx context.Context) ([]model.AnimeSummary, error) {
	return c.list(ctx, "/seasons/now", url.Values{
		"limit": {strconv.Itoa(listLimit)},
		"sfw":   {"true"},
	})
}

// Search はランキング前の検索候補を返す。
func (c *Client) Search(ctx context.Context, query string) ([]model.SearchCandidate, error) {
	var resp listResponse
	err := c.get(ctx, "/anime", url.Values{
		"q":        {query},
		"limit":    {strconv.Itoa(searchLimit)},
		"sfw":      {"true"},
		"order_by": {"members"},
		"sort":     {"desc"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	records := decodeEach[animeRecord](resp.Data)
	out := make([]model.SearchCandidate, 0, len(records))
	for _, r := range records {
		if r.MalID <= 0 {
			continue
		}
		out = append(out, model.SearchCandidate{
			Summary:    c.summarize(r),
			Titles:     titles(r),
			Popularity: r.Members,
			Favorites:  r.Favorites,
		})
	}
	return out, nil
}

// Discover は条件付きの作品一覧を1ページ分返す。
func (c *Client) Discover(ctx context.Context, q model.DiscoverQuery) (*model.AnimePage, error) {
	if q.GenreName != "" && (q.GenreProvider != Tag || q.GenreID <= 0) {
		return nil, ErrForeignGenre
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	params := url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(listLimit)},
		"sfw":   {"true"},
	}
	if q.Query != "" {
		params.Set("q", q.Query)
	}
	if q.GenreID > 0 {
		params.Set("genres", strconv.Itoa(q.GenreID))
	}
	if orderFields[q.OrderBy] {
		params.Set("order_by", q.OrderBy)
		if q.Sort == "asc" || q.Sort == "desc" {
			params.Set("sort", q.Sort)
		}
	}

	var resp listResponse
	if err := c.get(ctx, "/anime", params, &resp); err != nil {
		return nil, err
	}
	return &model.AnimePage{
		Results:    c.summaries(resp.Data),
		Pagination: normalizePagination(resp.Pagination, page),
	}, nil
}

// Genres はジャンル語彙を返す。
func (c *Client) Genres(ctx context.Context) ([]model.Genre, error) {
	var resp listResponse
	if err := c.get(ctx, "/genres/anime", nil, &resp); err != nil {
		return nil, err
	}
	records := decodeEach[named](resp.Data)
	out := make([]model.Genre, 0, len(records))
	for _, g := range records {
		if g.MalID > 0 && g.Name != "" {
			out = append(out, model.Genre{ID: g.MalID, Name: g.Name})
		}
	}
	return out, nil
}

// Info は作品詳細を返す。該当が無い場合は nil, nil を返す。
func (c *Client) Info(ctx context.Context, ref model.AnimeRef) (*model.AnimeSummary, error) {
	var resp itemResponse
	if err := c.get(ctx, "/anime/"+strconv.Itoa(ref.ID)+"/full", nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	var rec animeRecord
	if err := json.Unmarshal(resp.Data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode jikan anime %d: %w", ref.ID, err)
	}
	if rec.MalID <= 0 {
		return nil, nil
	}
	s := c.summarize(rec)
	return &s, nil
}

// Relations は作品の前作・続編を返す。Jikanは関連作品の放送形態を返さないため Format は空になる。
func (c *Client) Relations(ctx context.Context, ref model.AnimeRef) (*model.RelationEdges, error) {
	var resp listResponse
	if err := c.get(ctx, "/anime/"+strconv.Itoa(ref.ID)+"/relations", nil, &resp); err != nil {
		return nil, err
	}

	edges := &model.RelationEdges{Self: model.RelationNode{Ref: ref}}
	for _, group := range decodeEach[relationGroup](resp.Data) {
		var dst *[]model.RelationNode
		switch group.Relation {
		case "Prequel":
			dst = &edges.Prequels
		case "Sequel":
			dst = &edges.Sequels
		default:
			continue
		}
		for _, e := range group.Entry {
			if e.MalID <= 0 || (e.Type != "" && e.Type != "anime") {
				continue
			}
			*dst = append(*dst, model.RelationNode{
				Ref:   model.AnimeRef{Source: model.SourceMAL, ID: e.MalID},
				Title: e.Name,
			})
		}
	}
	return edges, nil
}

// Episodes はエピソード一覧を1ページ分返す。1ページは最大100件。
func (c *Client) Episodes(ctx context.Context, ref model.AnimeRef, page int) (*model.EpisodePage, error) {
	if page < 1 {
		page = 1
	}
	var resp listResponse
	err := c.get(ctx, "/anime/"+strconv.Itoa(ref.ID)+"/episodes", url.Values{"page": {strconv.Itoa(page)}}, &resp)
	if err != nil {
		return nil, err
	}
	pg := normalizePagination(resp.Pagination, page)
	return &model.EpisodePage{
		Episodes:   episodeItems(ref.ID, page, decodeEach[episodeRecord](resp.Data)),
		Pagination: &pg,
	}, nil
}

// Streams は配信サービスへのリンクを返す。エピソード単位のリンクは提供されないため ep は使わない。
func (c *Client) Streams(ctx context.Context, ref model.AnimeRef, _ int) ([]model.StreamLink, error) {
	var resp listResponse
	if err := c.get(ctx, "/anime/"+strconv.Itoa(ref.ID)+"/streaming", nil, &resp); err != nil {
		return nil, err
	}
	records := decodeEach[streamRecord](resp.Data)
	out := make([]model.StreamLink, 0, len(records))
	for _, s := range records {
		if s.URL == "" {
			continue
		}
		out = append(out, model.StreamLink{Name: s.Name, URL: s.URL})
	}
	return out, nil
}
