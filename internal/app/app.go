// Package app は設定の読み込みから依存関係の組み立て、サーバーの起動までを担う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/pumpbook/internal/auth"
	"github.com/hitoshi/pumpbook/internal/config"
	"github.com/hitoshi/pumpbook/internal/database"
	"github.com/hitoshi/pumpbook/internal/handler"
	"github.com/hitoshi/pumpbook/internal/logger"
	"github.com/hitoshi/pumpbook/internal/metrics"
	"github.com/hitoshi/pumpbook/internal/middleware"
	"github.com/hitoshi/pumpbook/internal/record"
	"github.com/hitoshi/pumpbook/internal/repository"
	"github.com/hitoshi/pumpbook/internal/repository/memory"
	"github.com/hitoshi/pumpbook/internal/security"
)

// defaultPort はSERVER_PORT未設定時のポート番号。
const defaultPort = "8001"

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// connectTimeout はストレージ接続全体の待ち時間。リトライを含む。
const connectTimeout = time.Minute

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.SlogLevel())
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = defaultPort
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("storage_driver", cfg.StorageDriver),
		slog.Bool("redis_sessions", cfg.UsesRedisSessions()),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	ln, err := net.Listen("tcp", ":"+cfg.ServerPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.ServerPort, err)
	}
	return srv.Serve(ctx, ln)
}

// server は組み立て済みのHTTPハンドラーとその後始末をまとめたもの。
type server struct {
	handler     http.Handler
	store       *repository.Store
	rateLimiter *middleware.RateLimiter
}

// newServer はストレージに接続し、全依存関係をワイヤリングする。
func newServer(ctx context.Context, cfg *config.Config) (*server, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	// IdPクライアント
	provider := auth.NewEmergentProvider(auth.ProviderConfig{
		URL:    cfg.ProviderSessionURL,
		Client: providerClient(cfg),
	})

	authService := auth.NewService(provider, store.Users, store.Sessions, recorder, auth.ServiceConfig{
		SessionTTL: cfg.SessionTTL,
	})
	resolver := auth.NewResolver(nil, store.Sessions, store.Users, recorder)

	recordService := record.NewService(record.Repositories{
		FuelSales:      store.FuelSales,
		CreditSales:    store.CreditSales,
		IncomeExpenses: store.IncomeExpenses,
		FuelRates:      store.FuelRates,
	}, security.NewTextSanitizer(), recorder)

	cookie := auth.DefaultCookieConfig()
	cookie.Domain = cfg.CookieDomain
	cookie.MaxAge = int(cfg.SessionTTL / time.Second)

	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:      slog.Default(),
		Metrics:     recorder,
		CORSOrigins: cfg.CORSOrigins,
		RateLimiter: rateLimiter,
		TrustProxy:  cfg.TrustProxy,

		AuthService: authService,
		Resolver:    resolver,
		Cookie:      cookie,

		RecordService: recordService,

		StatusChecks:  store.StatusChecks,
		HealthChecker: store.Health,

		MetricsHandler: metrics.Handler(registry),
	})

	return &server{handler: router, store: store, rateLimiter: rateLimiter}, nil
}

// Serve はctxが終了するまでlnでHTTP要求を受け付ける。
func (s *server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// Close はレート制限のクリーンアップを止め、ストレージ接続を閉じる。
func (s *server) Close() error {
	s.rateLimiter.Stop()
	if s.store.Close == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		slog.Error("failed to close storage", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// openStore は設定されたドライバーでストレージに接続し、リポジトリ一式を返す。
// SESSION_STORE=redis の場合はセッションのみRedisに保存する。
func openStore(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var store *repository.Store
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store = repository.NewPostgresStore(db)
	case config.DriverMongo:
		db, err := database.OpenMongo(ctx, mongoOptions(cfg))
		if err != nil {
			return nil, err
		}
		store = repository.NewMongoStore(db)
		if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
			_ = store.Close()
			return nil, err
		}
	case config.DriverMemory:
		slog.Warn("using in-memory storage; data is lost on restart")
		store = memory.NewStore(nil).Repositories()
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	slog.Info("storage connection established", slog.String("driver", cfg.StorageDriver))

	if cfg.UsesRedisSessions() {
		client, err := database.OpenRedis(ctx, database.RedisOptions{
			URL:           cfg.RedisURL,
			RetryAttempts: cfg.MongoRetryAttempts,
			RetryInterval: cfg.MongoRetryInterval,
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		store = repository.WithRedisSessions(store, client)
		slog.Info("redis session store enabled")
	}

	return store, nil
}

func mongoOptions(cfg *config.Config) database.MongoOptions {
	return database.MongoOptions{
		URL:            cfg.MongoURL,
		Database:       cfg.MongoDatabase,
		ConnectTimeout: cfg.MongoConnectTimeout,
		MaxPoolSize:    cfg.MongoMaxPoolSize,
		RetryAttempts:  cfg.MongoRetryAttempts,
		RetryInterval:  cfg.MongoRetryInterval,
	}
}

// providerClient はIdP呼び出し用のHTTPクライアントを返す。
// PROVIDER_ALLOW_PRIVATE は開発環境でローカルのIdPスタブを使うためのもの。
func providerClient(cfg *config.Config) *http.Client {
	if cfg.ProviderAllowPrivate {
		return &http.Client{Timeout: cfg.ProviderTimeout}
	}
	return security.NewOutboundGuard().NewSafeClient(cfg.ProviderTimeout)
}

// runMigrate はストレージのスキーマとインデックスを準備する。
func runMigrate(cfg *config.Config) error {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		slog.Info("running database migrations",
			slog.String("database_url", maskURL(cfg.DatabaseURL)),
		)
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case config.DriverMongo:
		slog.Info("creating mongo indexes",
			slog.String("mongo_url", maskURL(cfg.MongoURL)),
			slog.String("database", cfg.MongoDatabase),
		)
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		db, err := database.OpenMongo(ctx, mongoOptions(cfg))
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		defer func() { _ = db.Client().Disconnect(context.Background()) }()

		if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	default:
		slog.Info("storage driver has no schema; nothing to migrate",
			slog.String("driver", cfg.StorageDriver),
		)
		return nil
	}

	slog.Info("migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskURL は接続URLの認証情報をマスクする。
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("xxxxx")
	}
	u.RawQuery = ""
	return u.Redacted()
}
