package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hitoshi/koanime/internal/auth"
	"github.com/hitoshi/koanime/internal/catalog"
	"github.com/hitoshi/koanime/internal/config"
	"github.com/hitoshi/koanime/internal/database"
	"github.com/hitoshi/koanime/internal/handler"
	"github.com/hitoshi/koanime/internal/metrics"
	"github.com/hitoshi/koanime/internal/middleware"
	"github.com/hitoshi/koanime/internal/provider/anilist"
	"github.com/hitoshi/koanime/internal/provider/dex"
	"github.com/hitoshi/koanime/internal/provider/jikan"
	"github.com/hitoshi/koanime/internal/provider/news"
	"github.com/hitoshi/koanime/internal/repository"
	"github.com/hitoshi/koanime/internal/security"
	"github.com/hitoshi/koanime/internal/user"
	"github.com/hitoshi/koanime/internal/worker/cleanup"
)

// connectTimeout はPostgreSQLとRedisへの起動時の接続確認の上限。
const connectTimeout = 5 * time.Second

// application はserveモードで組み立てた依存関係一式。
type application struct {
	handler http.Handler
	cleanup *cleanup.CleanupJob // Redisキャッシュ使用時はnil
	closers []func()
}

// Close は確保したリソースを組み立てと逆順に解放する。
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build は設定から全依存関係をワイヤリングする。
// PostgreSQLとRedisは設定され、かつ接続できた場合のみ使用し、
// それ以外はファイルストアとプロセス内キャッシュで起動する。
func build(ctx context.Context, cfg *config.Config) (*application, error) {
	logger := slog.Default()
	app := &application{}

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. 進捗ストア
	store, err := openStore(ctx, cfg, collector, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	// 3. カタログキャッシュ
	cache := openCache(ctx, cfg, app)
	if mc, ok := cache.(*catalog.MemoryCache); ok {
		app.cleanup = cleanup.NewCleanupJob(mc, collector, logger)
	}

	// 4. プロバイダ
	guard := security.NewGuard()
	sanitizer := security.NewTextSanitizer()
	httpClient := guard.NewSafeClient(cfg.ProviderTimeout)

	jk := jikan.NewClient(cfg.JikanBaseURL, httpClient, logger, cfg.ProviderMaxSize, sanitizer)
	al := anilist.NewClient(cfg.AniListURL, httpClient, logger, sanitizer)
	dx := dex.NewClient(cfg.DexBaseURL, httpClient, logger, cfg.ProviderMaxSize)
	nw := news.NewClient(cfg.NewsFeedURL, httpClient, logger, cfg.ProviderMaxSize, sanitizer, guard)

	chains := catalog.Chains{
		Trending:  []catalog.TrendingSource{jk, al},
		New:       []catalog.SeasonalSource{jk, al},
		Search:    []catalog.SearchSource{jk, al, dx},
		Discover:  []catalog.DiscoverSource{jk, al},
		Genres:    []catalog.GenreSource{jk, al},
		Info:      []catalog.DetailSource{jk, al},
		Relations: []catalog.RelationSource{al, jk},
		Episodes:  []catalog.EpisodeSource{jk, al},
		Streams:   []catalog.StreamSource{jk, al},
		News:      []catalog.NewsSource{nw},
	}
	orch := catalog.NewOrchestrator(cache, collector, logger, cfg.ProviderTimeout)
	catalogService := catalog.NewService(chains, orch, guard)

	// 5. 認証と視聴進捗
	authService := auth.NewService(store, auth.NewTokenService(cfg.AuthSecret, cfg.TokenTTL))
	progressService := user.NewService(store)

	// 6. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))
	app.closers = append(app.closers, rateLimiter.Stop)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		TokenVerifier:     authService,
		StatusRecorder:    collector,
		MetricsHandler:    metrics.Handler(reg),
		CatalogService:    catalogService,
		AuthService:       authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},
		ProgressService: progressService,
	})
	app.handler = otelhttp.NewHandler(router, "koanime")

	return app, nil
}

// openStore はファイルストアを開き、PostgreSQLに接続できればフォールバック付きのストアを返す。
func openStore(ctx context.Context, cfg *config.Config, recorder repository.FallbackRecorder, app *application) (repository.Store, error) {
	file, err := repository.NewFileStore(cfg.DataFile, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	app.closers = append(app.closers, file.Close)

	if cfg.DatabaseURL == "" {
		slog.Info("ファイルストアを使用します", slog.String("path", cfg.DataFile))
		return file, nil
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL, connectTimeout)
	if err != nil {
		slog.Warn("PostgreSQLに接続できないため、ファイルストアを使用します",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
			slog.String("error", err.Error()),
		)
		return file, nil
	}
	app.closers = append(app.closers, func() { db.Close() })

	slog.Info("database connection established")
	return repository.NewFallbackStore(repository.NewPostgresStore(db), file, slog.Default(), recorder), nil
}

// openCache はRedisに接続できればRedisキャッシュを、それ以外はプロセス内キャッシュを返す。
func openCache(ctx context.Context, cfg *config.Config, app *application) catalog.Cache {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Warn("REDIS_URLが不正なため、プロセス内キャッシュを使用します",
				slog.String("error", err.Error()),
			)
			return catalog.NewMemoryCache(cfg.CacheTTL)
		}

		client := redis.NewClient(opts)
		rc := catalog.NewRedisCache(client, cfg.CacheTTL, slog.Default())

		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			client.Close()
			slog.Warn("Redisに接続できないため、プロセス内キャッシュを使用します",
				slog.String("error", err.Error()),
			)
			return catalog.NewMemoryCache(cfg.CacheTTL)
		}

		app.closers = append(app.closers, func() { client.Close() })
		slog.Info("Redisキャッシュを使用します", slog.String("addr", opts.Addr))
		return rc
	}
	return catalog.NewMemoryCache(cfg.CacheTTL)
}
