package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/koanime/internal/provider/upstream"
)

// 操作名。キャッシュキーとメトリクスのラベルに使う。
const (
	OpTrending  = "trending"
	OpNew       = "new"
	OpSearch    = "search"
	OpDiscover  = "discover"
	OpGenres    = "genres"
	OpInfo      = "info"
	OpRelations = "relations"
	OpEpisodes  = "episodes"
	OpStreams   = "streams"
	OpNews      = "news"
)

const (
	// DefaultTimeout はプロバイダ1回あたりの既定の打ち切り時間。
	DefaultTimeout = 12 * time.Second
	// shortTimeout はジャンル語彙と配信リンクの打ち切り時間。
	shortTimeout = 10 * time.Second
)

// errEmptyResult はプロバイダが空の結果を返したことを示す。
var errEmptyResult = errors.New("catalog: empty result")

// Recorder はプロバイダ呼び出しとキャッシュの計測値を受け取る。
type Recorder interface {
	RecordProviderCall(provider, operation, outcome string, duration time.Duration)
	RecordCacheLookup(operation string, hit bool)
	RecordFallback(operation, provider string)
	RecordDegraded(operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordProviderCall(string, string, string, time.Duration) {}
func (nopRecorder) RecordCacheLookup(string, bool)                           {}
func (nopRecorder) RecordFallback(string, string)                            {}
func (nopRecorder) RecordDegraded(string)                                    {}

// Orchestrator はプロバイダチェーンを順に試し、最初に得られた非空の結果を返す。
// 結果はプロバイダ名・操作・正規化済みクエリをキーにキャッシュされる。
// 同一キーへの同時呼び出しは1回のプロバイダ呼び出しにまとめられる。
type Orchestrator struct {
	cache    Cache
	recorder Recorder
	logger   *slog.Logger
	timeout  time.Duration
	group    singleflight.Group
}

// NewOrchestrator はOrchestratorを生成する。recorderがnilの場合は計測しない。
// timeoutが0以下の場合は12秒とする。
func NewOrchestrator(cache Cache, recorder Recorder, logger *slog.Logger, timeout time.Duration) *Orchestrator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{
		cache:    cache,
		recorder: recorder,
		logger:   logger,
		timeout:  timeout,
	}
}

func (o *Orchestrator) timeoutFor(op string) time.Duration {
	if op == OpGenres || op == OpStreams {
		return min(o.timeout, shortTimeout)
	}
	return o.timeout
}

// step はチェーン上の1プロバイダ分の呼び出し。
type step[T any] struct {
	tag  string
	call func(ctx context.Context) (T, error)
}

func cacheKey(tag, op, query string) string {
	return tag + ":" + op + ":" + query
}

// run はチェーンを実行する。まずチェーン上の全プロバイダについてキャッシュを確認し、
// いずれもミスした場合にのみ先頭から順にプロバイダを呼び出す。
// 失敗や空の結果は次のプロバイダへ進み、全滅した場合はゼロ値とok=falseを返す。
// 呼び出し元のctxが取り消された場合は待機をやめてok=falseを返すが、
// 同じキーを待つ他の呼び出し元の上流呼び出しは継続する。
// 戻り値のtagは結果を提供したプロバイダ名。
func run[T any](ctx context.Context, o *Orchestrator, op, query string, steps []step[T], empty func(T) bool) (T, string, bool) {
	var zero T

	for _, s := range steps {
		payload, ok := o.cache.Get(ctx, cacheKey(s.tag, op, query))
		if !ok {
			continue
		}
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			o.logger.Warn("キャッシュの復元に失敗しました",
				slog.String("provider", s.tag),
				slog.String("operation", op),
				slog.String("error", err.Error()),
			)
			continue
		}
		o.recorder.RecordCacheLookup(op, true)
		return v, s.tag, true
	}
	o.recorder.RecordCacheLookup(op, false)

	for i, s := range steps {
		if ctx.Err() != nil {
			return zero, "", false
		}
		key := cacheKey(s.tag, op, query)
		// 共有される呼び出しは最初の呼び出し元の取り消しを引き継がない。
		// 打ち切りはプロバイダごとのタイムアウトのみで行う。
		ch := o.group.DoChan(key, func() (any, error) {
			return fetch(context.WithoutCancel(ctx), o, op, key, s, empty)
		})

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return zero, "", false
		}

		err := res.Err
		if err == nil {
			var v T
			if err = json.Unmarshal(res.Val.([]byte), &v); err == nil {
				return v, s.tag, true
			}
		}

		if !errors.Is(err, errEmptyResult) {
			o.logger.Warn("プロバイダ呼び出しに失敗しました",
				slog.String("provider", s.tag),
				slog.String("operation", op),
				slog.String("error", err.Error()),
			)
		}
		if i < len(steps)-1 {
			o.recorder.RecordFallback(op, steps[i+1].tag)
		}
	}

	o.recorder.RecordDegraded(op)
	o.logger.Warn("全プロバイダから結果を得られませんでした",
		slog.String("operation", op),
		slog.Int("providers", len(steps)),
	)
	return zero, "", false
}

// fetch はプロバイダを1回呼び出し、非空の結果をキャッシュしてJSONバイト列で返す。
func fetch[T any](ctx context.Context, o *Orchestrator, op, key string, s step[T], empty func(T) bool) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeoutFor(op))
	defer cancel()

	start := time.Now()
	v, err := s.call(callCtx)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		o.recorder.RecordProviderCall(s.tag, op, string(upstream.Classify(err)), elapsed)
		return nil, err
	case empty(v):
		o.recorder.RecordProviderCall(s.tag, op, string(upstream.OutcomeEmpty), elapsed)
		return nil, errEmptyResult
	}

	payload, err := json.Marshal(v)
	if err != nil {
		o.recorder.RecordProviderCall(s.tag, op, string(upstream.OutcomeError), elapsed)
		return nil, err
	}
	o.recorder.RecordProviderCall(s.tag, op, string(upstream.OutcomeOK), elapsed)
	o.cache.Set(ctx, key, payload)
	return payload, nil
}
