// Package anilist はGraphQL形式のアニメ情報プロバイダのアダプタを提供する。
// MAL IDを持つ作品はMAL ID体系で、持たない作品はAniList ID体系で返す。
package anilist

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shurcooL/graphql"
	"golang.org/x/time/rate"

	"github.com/hitoshi/koanime/internal/model"
	"github.com/hitoshi/koanime/internal/provider/upstream"
)

// Tag はキャッシュキーとメトリクスに使うプロバイダ名。
const Tag = "anilist"

const airingPerPage = 50

// sortFields はdiscoverのorder_byをMediaSortの基底名に対応付ける。
var sortFields = map[string]string{
	"score":      "SCORE",
	"popularity": "POPULARITY",
	"members":    "POPULARITY",
	"title":      "TITLE_ROMAJI",
	"start_date": "START_DATE",
	"end_date":   "END_DATE",
	"episodes":   "EPISODES",
	"favorites":  "FAVOURITES",
	"mal_id":     "ID",
}

// TextSanitizer はHTML断片をプレーンテキストに変換する。
type TextSanitizer interface {
	PlainText(raw string) string
}

// Client はAniList GraphQL APIのアダプタ。
type Client struct {
	gql       *graphql.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
	sanitizer TextSanitizer
	now       func() time.Time
}

// NewClient はClientを生成する。AniListの制限（毎分90リクエスト）に合わせて流量を制限する。
func NewClient(endpoint string, httpClient *http.Client, logger *slog.Logger, sanitizer TextSanitizer) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		gql:       graphql.NewClient(endpoint, httpClient),
		limiter:   rate.NewLimiter(rate.Every(time.Minute/90), 5),
		logger:    logger,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Tag はプロバイダ名を返す。
func (c *Client) Tag() string { return Tag }

// Supports はMAL ID（idMal引き）とAniList IDの両方を扱える。
func (c *Client) Supports(source model.Source) bool {
	return source == model.SourceMAL || source == model.SourceAniList
}

func (c *Client) query(ctx context.Context, q any, vars map[string]any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("anilist rate limiter: %w", err)
	}
	if err := c.gql.Query(ctx, q, vars); err != nil {
		c.logger.Warn("AniListへのクエリに失敗しました", slog.String("error", err.Error()))
		return fmt.Errorf("anilist query failed: %w", err)
	}
	return nil
}

// Trending は話題の作品を返す。
func (c *Client) Trending(ctx context.Context) ([]model.AnimeSummary, error) {
	var q trendingQuery
	if err := c.query(ctx, &q, nil); err != nil {
		return nil, err
	}
	return c.summaries(q.Page.Media), nil
}

// NewReleases は現在のクールの作品を人気順で返す。
func (c *Client) NewReleases(ctx context.Context) ([]model.AnimeSummary, error) {
	season, year := currentSeason(c.now())
	var q seasonQuery
	vars := map[string]any{
		"season": season,
		"year":   graphql.Int(year),
	}
	if err := c.query(ctx, &q, vars); err != nil {
		return nil, err
	}
	return c.summaries(q.Page.Media), nil
}

// Search はランキング前の検索候補を返す。
func (c *Client) Search(ctx context.Context, query string) ([]model.SearchCandidate, error) {
	var q searchQuery
	if err := c.query(ctx, &q, map[string]any{"search": graphql.String(query)}); err != nil {
		return nil, err
	}
	out := make([]model.SearchCandidate, 0, len(q.Page.Media))
	for _, m := range q.Page.Media {
		out = append(out, model.SearchCandidate{
			Summary:    c.summarize(m),
			Titles:     titles(m),
			Popularity: m.Popularity,
			Favorites:  m.Favourites,
		})
	}
	return out, nil
}

// Discover は条件付きの作品一覧を1ページ分返す。ジャンルは名前で絞り込む。
func (c *Client) Discover(ctx context.Context, dq model.DiscoverQuery) (*model.AnimePage, error) {
	page := dq.Page
	if page < 1 {
		page = 1
	}
	search := (*graphql.String)(nil)
	if dq.Query != "" {
		s := graphql.String(dq.Query)
		search = &s
	}
	genre := (*graphql.String)(nil)
	if dq.GenreName != "" {
		g := graphql.String(dq.GenreName)
		genre = &g
	}

	var q discoverQuery
	vars := map[string]any{
		"page":   graphql.Int(page),
		"search": search,
		"genre":  genre,
		"sort":   []MediaSort{discoverSort(dq)},
	}
	if err := c.query(ctx, &q, vars); err != nil {
		return nil, err
	}

	pi := q.Page.PageInfo
	current := pi.CurrentPage
	if current <= 0 {
		current = page
	}
	return &model.AnimePage{
		Results: c.summaries(q.Page.Media),
		Pagination: model.Pagination{
			Page:            current,
			HasNextPage:     pi.HasNextPage,
			LastVisiblePage: pi.LastPage,
		},
	}, nil
}

// discoverSort はorder_by/sortをMediaSortに変換する。不明な項目は人気順とする。
// 検索語がある場合の既定は関連度順。
func discoverSort(dq model.DiscoverQuery) MediaSort {
	base, ok := sortFields[dq.OrderBy]
	if !ok {
		if dq.Query != "" {
			return "SEARCH_MATCH"
		}
		return "POPULARITY_DESC"
	}
	if dq.Sort == "asc" {
		return MediaSort(base)
	}
	return MediaSort(base + "_DESC")
}

// Genres はジャンル語彙を返す。AniListのジャンルはIDを持たないため並び順から1始まりで採番する。
func (c *Client) Genres(ctx context.Context) ([]model.Genre, error) {
	var q genreQuery
	if err := c.query(ctx, &q, nil); err != nil {
		return nil, err
	}
	out := make([]model.Genre, 0, len(q.GenreCollection))
	for i, name := range q.GenreCollection {
		if name == "" {
			continue
		}
		out = append(out, model.Genre{ID: i + 1, Name: name})
	}
	return out, nil
}

// Info は作品詳細を返す。
func (c *Client) Info(ctx context.Context, ref model.AnimeRef) (*model.AnimeSummary, error) {
	var q infoQuery
	if err := c.query(ctx, &q, refVariables(ref)); err != nil {
		return nil, err
	}
	if q.Media.ID == 0 {
		return nil, nil
	}
	s := c.summarize(q.Media)
	return &s, nil
}

// Relations は作品の前作・続編を放送形態つきで返す。
func (c *Client) Relations(ctx context.Context, ref model.AnimeRef) (*model.RelationEdges, error) {
	var q relationsQuery
	if err := c.query(ctx, &q, refVariables(ref)); err != nil {
		return nil, err
	}
	m := q.Media
	if m.ID == 0 {
		return nil, nil
	}

	edges := &model.RelationEdges{
		Self: model.RelationNode{Ref: nodeRef(m.ID, m.IDMal), Title: preferredTitle(m.Title), Format: m.Format},
	}
	for _, e := range m.Relations.Edges {
		if e.Node.Type != "" && e.Node.Type != "ANIME" {
			continue
		}
		node := model.RelationNode{
			Ref:    nodeRef(e.Node.ID, e.Node.IDMal),
			Title:  preferredTitle(e.Node.Title),
			Format: e.Node.Format,
		}
		switch e.RelationType {
		case "PREQUEL":
			edges.Prequels = append(edges.Prequels, node)
		case "SEQUEL":
			edges.Sequels = append(edges.Sequels, node)
		}
	}
	return edges, nil
}

// Episodes は放送スケジュールからエピソード一覧を返す。
// スケジュールが無い完結済み作品は総話数から1ページにまとめて生成する。
func (c *Client) Episodes(ctx context.Context, ref model.AnimeRef, page int) (*model.EpisodePage, error) {
	if page < 1 {
		page = 1
	}
	vars := refVariables(ref)
	vars["page"] = graphql.Int(page)

	var q episodesQuery
	if err := c.query(ctx, &q, vars); err != nil {
		return nil, err
	}
	m := q.Media
	schedule := m.AiringSchedule

	if len(schedule.Nodes) > 0 {
		items := make([]model.EpisodeItem, 0, len(schedule.Nodes))
		for i, n := range schedule.Nodes {
			number := n.Episode
			if number <= 0 {
				number = (page-1)*airingPerPage + i + 1
			}
			item := model.EpisodeItem{ID: strconv.Itoa(n.ID), Number: number}
			if n.AiringAt > 0 {
				aired := time.Unix(n.AiringAt, 0).UTC().Format(time.RFC3339)
				item.AirDate = &aired
			}
			items = append(items, item)
		}
		current := schedule.PageInfo.CurrentPage
		if current <= 0 {
			current = page
		}
		return &model.EpisodePage{
			Episodes: items,
			Pagination: &model.Pagination{
				Page:            current,
				HasNextPage:     schedule.PageInfo.HasNextPage,
				LastVisiblePage: schedule.PageInfo.LastPage,
			},
		}, nil
	}

	if page != 1 || m.Episodes <= 0 {
		return &model.EpisodePage{Episodes: []model.EpisodeItem{}}, nil
	}
	items := make([]model.EpisodeItem, 0, m.Episodes)
	for n := 1; n <= m.Episodes; n++ {
		item := model.EpisodeItem{ID: fmt.Sprintf("%d-%d", m.ID, n), Number: n}
		if n <= len(m.StreamingEpisodes) {
			item.Title = m.StreamingEpisodes[n-1].Title
		}
		items = append(items, item)
	}
	last := 1
	return &model.EpisodePage{
		Episodes:   items,
		Pagination: &model.Pagination{Page: 1, LastVisiblePage: &last},
	}, nil
}

// Streams は配信サービスへのリンクを返す。epが指定され該当話の配信リンクがあればそれを先頭に含める。
func (c *Client) Streams(ctx context.Context, ref model.AnimeRef, ep int) ([]model.StreamLink, error) {
	var q streamsQuery
	if err := c.query(ctx, &q, refVariables(ref)); err != nil {
		return nil, err
	}
	var out []model.StreamLink
	if ep > 0 && ep <= len(q.Media.StreamingEpisodes) {
		se := q.Media.StreamingEpisodes[ep-1]
		if se.URL != "" {
			out = append(out, model.StreamLink{Name: upstream.FirstNonEmpty(se.Site, se.Title), URL: se.URL})
		}
	}
	for _, l := range q.Media.ExternalLinks {
		if l.Type == "STREAMING" && l.URL != "" {
			out = append(out, model.StreamLink{Name: l.Site, URL: l.URL})
		}
	}
	return out, nil
}

// currentSeason は日付が属するAniListのシーズンと年を返す。
func currentSeason(t time.Time) (MediaSeason, int) {
	switch t.Month() {
	case time.January, time.February, time.March:
		return "WINTER", t.Year()
	case time.April, time.May, time.June:
		return "SPRING", t.Year()
	case time.July, time.August, time.September:
		return "SUMMER", t.Year()
	default:
		return "FALL", t.Year()
	}
}
