// Package catalog は複数のアニメ情報プロバイダを束ね、キャッシュとフォールバックを
// 備えたカタログ操作（一覧・検索・詳細・エピソード・配信リンク・ニュース）を提供する。
// 上流の失敗はエラーとして返さず、空の結果に縮退する。
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/koanime/internal/model"
)

// TrendingSource は人気作品一覧を返すプロバイダ。
type TrendingSource interface {
	Tag() string
	Trending(ctx context.Context) ([]model.AnimeSummary, error)
}

// SeasonalSource は今期の作品一覧を返すプロバイダ。
type SeasonalSource interface {
	Tag() string
	NewReleases(ctx context.Context) ([]model.AnimeSummary, error)
}

// SearchSource はタイトル検索の候補を返すプロバイダ。
type SearchSource interface {
	Tag() string
	Search(ctx context.Context, query string) ([]model.SearchCandidate, error)
}

// DiscoverSource は条件付きの作品一覧を返すプロバイダ。
type DiscoverSource interface {
	Tag() string
	Discover(ctx context.Context, q model.DiscoverQuery) (*model.AnimePage, error)
}

// GenreSource はジャンル語彙を返すプロバイダ。
type GenreSource interface {
	Tag() string
	Genres(ctx context.Context) ([]model.Genre, error)
}

// DetailSource は作品詳細を返すプロバイダ。
type DetailSource interface {
	Tag() string
	Supports(source model.Source) bool
	Info(ctx context.Context, ref model.AnimeRef) (*model.AnimeSummary, error)
}

// RelationSource は前作・続編の関連を返すプロバイダ。
type RelationSource interface {
	Tag() string
	Supports(source model.Source) bool
	Relations(ctx context.Context, ref model.AnimeRef) (*model.RelationEdges, error)
}

// EpisodeSource はエピソード一覧を返すプロバイダ。
type EpisodeSource interface {
	Tag() string
	Supports(source model.Source) bool
	Episodes(ctx context.Context, ref model.AnimeRef, page int) (*model.EpisodePage, error)
}

// StreamSource は配信リンクを返すプロバイダ。
type StreamSource interface {
	Tag() string
	Supports(source model.Source) bool
	Streams(ctx context.Context, ref model.AnimeRef, ep int) ([]model.StreamLink, error)
}

// NewsSource はニュース記事を返すプロバイダ。
type NewsSource interface {
	Tag() string
	News(ctx context.Context) ([]model.NewsItem, error)
}

// URLValidator は外部へ返すURLが安全かを検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Chains は操作ごとのプロバイダの試行順。
type Chains struct {
	Trending  []TrendingSource
	New       []SeasonalSource
	Search    []SearchSource
	Discover  []DiscoverSource
	Genres    []GenreSource
	Info      []DetailSource
	Relations []RelationSource
	Episodes  []EpisodeSource
	Streams   []StreamSource
	News      []NewsSource
}

// DiscoverParams はdiscoverのリクエストパラメータ（未検証）。
type DiscoverParams struct {
	Query   string
	Genre   string
	Page    int
	OrderBy string
	Sort    string
}

// Service はカタログ操作を提供する。
type Service struct {
	chains    Chains
	orch      *Orchestrator
	validator URLValidator
}

// NewService はServiceを生成する。
func NewService(chains Chains, orch *Orchestrator, validator URLValidator) *Service {
	return &Service{chains: chains, orch: orch, validator: validator}
}

func isEmpty[E any](v []E) bool { return len(v) == 0 }

func isNil[E any](v *E) bool { return v == nil }

// Trending は人気作品一覧を返す。
func (s *Service) Trending(ctx context.Context) []model.AnimeSummary {
	steps := make([]step[[]model.AnimeSummary], 0, len(s.chains.Trending))
	for _, p := range s.chains.Trending {
		steps = append(steps, step[[]model.AnimeSummary]{tag: p.Tag(), call: p.Trending})
	}
	v, _, _ := run(ctx, s.orch, OpTrending, "", steps, isEmpty[model.AnimeSummary])
	return nonNil(v)
}

// NewReleases は今期の作品一覧を返す。
func (s *Service) NewReleases(ctx context.Context) []model.AnimeSummary {
	steps := make([]step[[]model.AnimeSummary], 0, len(s.chains.New))
	for _, p := range s.chains.New {
		steps = append(steps, step[[]model.AnimeSummary]{tag: p.Tag(), call: p.NewReleases})
	}
	v, _, _ := run(ctx, s.orch, OpNew, "", steps, isEmpty[model.AnimeSummary])
	return nonNil(v)
}

// Search はタイトル検索を行う。候補はプロバイダごとにランク付けされる。
// 空白のみのクエリはプロバイダに問い合わせずに空を返す。
func (s *Service) Search(ctx context.Context, query string) []model.SearchResultItem {
	q := strings.TrimSpace(query)
	if q == "" {
		return []model.SearchResultItem{}
	}

	steps := make([]step[[]model.SearchResultItem], 0, len(s.chains.Search))
	for _, p := range s.chains.Search {
		steps = append(steps, step[[]model.SearchResultItem]{
			tag: p.Tag(),
			call: func(ctx context.Context) ([]model.SearchResultItem, error) {
				candidates, err := p.Search(ctx, q)
				if err != nil {
					return nil, err
				}
				return Rank(q, candidates), nil
			},
		})
	}
	v, _, _ := run(ctx, s.orch, OpSearch, normalizeQuery(q), steps, isEmpty[model.SearchResultItem])
	return nonNil(v)
}

// Genres はジャンル語彙を返す。
func (s *Service) Genres(ctx context.Context) []model.Genre {
	v, _ := s.genres(ctx)
	return nonNil(v)
}

// genres はジャンル語彙と、それを提供したプロバイダ名を返す。
func (s *Service) genres(ctx context.Context) ([]model.Genre, string) {
	steps := make([]step[[]model.Genre], 0, len(s.chains.Genres))
	for _, p := range s.chains.Genres {
		steps = append(steps, step[[]model.Genre]{tag: p.Tag(), call: p.Genres})
	}
	v, tag, _ := run(ctx, s.orch, OpGenres, "", steps, isEmpty[model.Genre])
	return v, tag
}

// Discover は条件付きの作品一覧を返す。
// ジャンルは名前（大文字小文字を区別しない）またはIDで語彙と照合し、該当しなければ無視する。
func (s *Service) Discover(ctx context.Context, p DiscoverParams) model.AnimePage {
	dq := model.DiscoverQuery{
		Query:   strings.TrimSpace(p.Query),
		Page:    max(p.Page, 1),
		OrderBy: strings.ToLower(strings.TrimSpace(p.OrderBy)),
		Sort:    strings.ToLower(strings.TrimSpace(p.Sort)),
	}
	if dq.Sort != "asc" && dq.Sort != "desc" {
		dq.Sort = ""
	}
	if genre := strings.TrimSpace(p.Genre); genre != "" {
		vocab, tag := s.genres(ctx)
		if g, ok := matchGenre(vocab, genre); ok {
			dq.GenreID = g.ID
			dq.GenreName = g.Name
			dq.GenreProvider = tag
		}
	}

	steps := make([]step[*model.AnimePage], 0, len(s.chains.Discover))
	for _, src := range s.chains.Discover {
		steps = append(steps, step[*model.AnimePage]{
			tag: src.Tag(),
			call: func(ctx context.Context) (*model.AnimePage, error) {
				return src.Discover(ctx, dq)
			},
		})
	}
	key := fmt.Sprintf("q=%s|genre=%s|page=%d|order=%s|sort=%s",
		normalizeQuery(dq.Query), normalizeQuery(dq.GenreName), dq.Page, dq.OrderBy, dq.Sort)
	v, _, ok := run(ctx, s.orch, OpDiscover, key, steps, func(p *model.AnimePage) bool {
		return p == nil || len(p.Results) == 0
	})
	if !ok {
		return model.AnimePage{
			Results:    []model.AnimeSummary{},
			Pagination: model.Pagination{Page: dq.Page},
		}
	}
	v.Results = nonNil(v.Results)
	return *v
}

// matchGenre は語彙から名前またはIDが一致するジャンルを探す。
func matchGenre(vocab []model.Genre, raw string) (model.Genre, bool) {
	for _, g := range vocab {
		if strings.EqualFold(g.Name, raw) {
			return g, true
		}
	}
	if id, err := strconv.Atoi(raw); err == nil {
		for _, g := range vocab {
			if g.ID == id {
				return g, true
			}
		}
	}
	return model.Genre{}, false
}

// Info は作品詳細を返す。すべてのプロバイダで取得できなければnilを返す。
// 関連情報を取得できた場合はシーズン一覧を付与する。
func (s *Service) Info(ctx context.Context, ref model.AnimeRef) *model.AnimeSummary {
	var steps []step[*model.AnimeSummary]
	for _, p := range s.chains.Info {
		if !p.Supports(ref.Source) {
			continue
		}
		steps = append(steps, step[*model.AnimeSummary]{
			tag: p.Tag(),
			call: func(ctx context.Context) (*model.AnimeSummary, error) {
				return p.Info(ctx, ref)
			},
		})
	}
	info, _, ok := run(ctx, s.orch, OpInfo, refKey(ref), steps, isNil[model.AnimeSummary])
	if !ok {
		return nil
	}
	info.Seasons = resolveSeasons(ctx, info, s.relations)
	return info
}

// relations は作品の前作・続編を返す。
func (s *Service) relations(ctx context.Context, ref model.AnimeRef) (*model.RelationEdges, bool) {
	var steps []step[*model.RelationEdges]
	for _, p := range s.chains.Relations {
		if !p.Supports(ref.Source) {
			continue
		}
		steps = append(steps, step[*model.RelationEdges]{
			tag: p.Tag(),
			call: func(ctx context.Context) (*model.RelationEdges, error) {
				return p.Relations(ctx, ref)
			},
		})
	}
	v, _, ok := run(ctx, s.orch, OpRelations, refKey(ref), steps, isNil[model.RelationEdges])
	return v, ok
}

// Episodes はエピソード一覧を返す。取得できなければ空の一覧を返す。
func (s *Service) Episodes(ctx context.Context, ref model.AnimeRef, page int) model.EpisodePage {
	page = max(page, 1)
	var steps []step[*model.EpisodePage]
	for _, p := range s.chains.Episodes {
		if !p.Supports(ref.Source) {
			continue
		}
		steps = append(steps, step[*model.EpisodePage]{
			tag: p.Tag(),
			call: func(ctx context.Context) (*model.EpisodePage, error) {
				return p.Episodes(ctx, ref, page)
			},
		})
	}
	key := fmt.Sprintf("%s|page=%d", refKey(ref), page)
	v, _, ok := run(ctx, s.orch, OpEpisodes, key, steps, func(p *model.EpisodePage) bool {
		return p == nil || len(p.Episodes) == 0
	})
	if !ok {
		return model.EpisodePage{Episodes: []model.EpisodeItem{}}
	}
	return *v
}

// Streams は配信リンクを返す。安全でないURLのリンクは除外する。
func (s *Service) Streams(ctx context.Context, ref model.AnimeRef, ep int) []model.StreamLink {
	var steps []step[[]model.StreamLink]
	for _, p := range s.chains.Streams {
		if !p.Supports(ref.Source) {
			continue
		}
		steps = append(steps, step[[]model.StreamLink]{
			tag: p.Tag(),
			call: func(ctx context.Context) ([]model.StreamLink, error) {
				links, err := p.Streams(ctx, ref, ep)
				if err != nil {
					return nil, err
				}
				return s.safeLinks(links), nil
			},
		})
	}
	key := fmt.Sprintf("%s|ep=%d", refKey(ref), ep)
	v, _, _ := run(ctx, s.orch, OpStreams, key, steps, isEmpty[model.StreamLink])
	return nonNil(v)
}

func (s *Service) safeLinks(links []model.StreamLink) []model.StreamLink {
	out := make([]model.StreamLink, 0, len(links))
	for _, l := range links {
		if l.URL == "" || s.validator.ValidateURL(l.URL) != nil {
			continue
		}
		out = append(out, l)
	}
	return out
}

// News はアニメ関連ニュースを返す。
func (s *Service) News(ctx context.Context) []model.NewsItem {
	steps := make([]step[[]model.NewsItem], 0, len(s.chains.News))
	for _, p := range s.chains.News {
		steps = append(steps, step[[]model.NewsItem]{tag: p.Tag(), call: p.News})
	}
	v, _, _ := run(ctx, s.orch, OpNews, "", steps, isEmpty[model.NewsItem])
	return nonNil(v)
}

func refKey(ref model.AnimeRef) string {
	return string(ref.Source) + "/" + strconv.Itoa(ref.ID)
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(fold(q)), " ")
}

func nonNil[E any](v []E) []E {
	if v == nil {
		return []E{}
	}
	return v
}
