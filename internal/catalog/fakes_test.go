package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hitoshi/koanime/internal/model"
)

var errNotImplemented = errors.New("not implemented")

// fakeProvider は関数フィールドで振る舞いを差し替えられるプロバイダ。
type fakeProvider struct {
	tag         string
	sources     []model.Source
	trendingFn  func(ctx context.Context) ([]model.AnimeSummary, error)
	newFn       func(ctx context.Context) ([]model.AnimeSummary, error)
	searchFn    func(ctx context.Context, q string) ([]model.SearchCandidate, error)
	discoverFn  func(ctx context.Context, q model.DiscoverQuery) (*model.AnimePage, error)
	genresFn    func(ctx context.Context) ([]model.Genre, error)
	infoFn      func(ctx context.Context, ref model.AnimeRef) (*model.AnimeSummary, error)
	relationsFn func(ctx context.Context, ref model.AnimeRef) (*model.RelationEdges, error)
	episodesFn  func(ctx context.Context, ref model.AnimeRef, page int) (*model.EpisodePage, error)
	streamsFn   func(ctx context.Context, ref model.AnimeRef, ep int) ([]model.StreamLink, error)
	newsFn      func(ctx context.Context) ([]model.NewsItem, error)
}

func (f *fakeProvider) Tag() string { return f.tag }

func (f *fakeProvider) Supports(source model.Source) bool {
	if f.sources == nil {
		return source == model.SourceMAL
	}
	for _, s := range f.sources {
		if s == source {
			return true
		}
	}
	return false
}

func (f *fakeProvider) Trending(ctx context.Context) ([]model.AnimeSummary, error) {
	if f.trendingFn == nil {
		return nil, errNotImplemented
	}
	return f.trendingFn(ctx)
}

func (f *fakeProvider) NewReleases(ctx context.Context) ([]model.AnimeSummary, error) {
	if f.newFn == nil {
		return nil, errNotImplemented
	}
	return f.newFn(ctx)
}

func (f *fakeProvider) Search(ctx context.Context, q string) ([]model.SearchCandidate, error) {
	if f.searchFn == nil {
		return nil, errNotImplemented
	}
	return f.searchFn(ctx, q)
}

func (f *fakeProvider) Discover(ctx context.Context, q model.DiscoverQuery) (*model.AnimePage, error) {
	if f.discoverFn == nil {
		return nil, errNotImplemented
	}
	return f.discoverFn(ctx, q)
}

func (f *fakeProvider) Genres(ctx context.Context) ([]model.Genre, error) {
	if f.genresFn == nil {
		return nil, errNotImplemented
	}
	return f.genresFn(ctx)
}

func (f *fakeProvider) Info(ctx context.Context, ref model.AnimeRef) (*model.AnimeSummary, error) {
	if f.infoFn == nil {
		return nil, errNotImplemented
	}
	return f.infoFn(ctx, ref)
}

func (f *fakeProvider) Relations(ctx context.Context, ref model.AnimeRef) (*model.RelationEdges, error) {
	if f.relationsFn == nil {
		return nil, errNotImplemented
	}
	return f.relationsFn(ctx, ref)
}

func (f *fakeProvider) Episodes(ctx context.Context, ref model.AnimeRef, page int) (*model.EpisodePage, error) {
	if f.episodesFn == nil {
		return nil, errNotImplemented
	}
	return f.episodesFn(ctx, ref, page)
}

func (f *fakeProvider) Streams(ctx context.Context, ref model.AnimeRef, ep int) ([]model.StreamLink, error) {
	if f.streamsFn == nil {
		return nil, errNotImplemented
	}
	return f.streamsFn(ctx, ref, ep)
}

func (f *fakeProvider) News(ctx context.Context) ([]model.NewsItem, error) {
	if f.newsFn == nil {
		return nil, errNotImplemented
	}
	return f.newsFn(ctx)
}

type providerCall struct {
	provider, operation, outcome string
}

// fakeRecorder は記録された計測値を保持する。
type fakeRecorder struct {
	mu        sync.Mutex
	calls     []providerCall
	hits      int
	misses    int
	fallbacks []string
	degraded  []string
}

func (r *fakeRecorder) RecordProviderCall(provider, operation, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, providerCall{provider, operation, outcome})
}

func (r *fakeRecorder) RecordCacheLookup(_ string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *fakeRecorder) RecordFallback(_, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, provider)
}

func (r *fakeRecorder) RecordDegraded(operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.degraded = append(r.degraded, operation)
}
