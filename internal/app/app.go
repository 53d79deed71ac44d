package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alexdevfreak/plansfilesharecombined/internal/bot"
	"github.com/alexdevfreak/plansfilesharecombined/internal/catalog"
	"github.com/alexdevfreak/plansfilesharecombined/internal/config"
	"github.com/alexdevfreak/plansfilesharecombined/internal/database"
	"github.com/alexdevfreak/plansfilesharecombined/internal/delivery"
	"github.com/alexdevfreak/plansfilesharecombined/internal/entitlement"
	"github.com/alexdevfreak/plansfilesharecombined/internal/handler"
	"github.com/alexdevfreak/plansfilesharecombined/internal/index"
	"github.com/alexdevfreak/plansfilesharecombined/internal/ingest"
	"github.com/alexdevfreak/plansfilesharecombined/internal/logger"
	"github.com/alexdevfreak/plansfilesharecombined/internal/metrics"
	"github.com/alexdevfreak/plansfilesharecombined/internal/purchase"
	"github.com/alexdevfreak/plansfilesharecombined/internal/repository"
	"github.com/alexdevfreak/plansfilesharecombined/internal/security"
	"github.com/alexdevfreak/plansfilesharecombined/internal/selector"
	"github.com/alexdevfreak/plansfilesharecombined/internal/telegram"
	"github.com/alexdevfreak/plansfilesharecombined/internal/worker/expiry"
)

// sweepInterval は期限切れ配信レコードの掃除周期。
const sweepInterval = 15 * time.Minute

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
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
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はボットと運用APIサーバーを起動する。
// DB接続を開き、全依存関係をワイヤリングし、ロングポーリングとHTTPサーバーを並行稼働させる。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	subRepo := repository.NewPostgresSubscriptionRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	itemRepo := repository.NewPostgresChannelItemRepo(db)
	deliveryRepo := repository.NewPostgresDeliveryRepo(db)
	progressRepo := repository.NewPostgresProgressRepo(db)

	// 3. バケットカタログとメトリクスの初期化
	cat, err := catalog.Parse(cfg.BucketChannels)
	if err != nil {
		return fmt.Errorf("failed to parse bucket catalog: %w", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. Telegramクライアントとセキュリティサービスの初期化
	// ロングポーリングがHTTPタイムアウトで切られないよう余裕を持たせる
	httpClient := &http.Client{Timeout: cfg.PollTimeout + 10*time.Second}
	tg := telegram.NewClient(httpClient, slog.Default(), cfg.APIBaseURL, cfg.BotToken)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 5. プランの読み込みとQR画像URLの到達性検証
	plans, err := purchase.LoadPlans(cfg.QRURLs)
	if err != nil {
		return fmt.Errorf("failed to load plans: %w", err)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer startupCancel()

	qrVerifier := purchase.NewQRVerifier(ssrfGuard, slog.Default(), cfg.QRFetchTimeout, cfg.QRMaxSize)
	plans = qrVerifier.VerifyPlans(startupCtx, plans)

	// 6. ドメインサービスの初期化
	entService := entitlement.NewService(subRepo, slog.Default())
	purService := purchase.NewService(sessionRepo, entService, cfg, collector, slog.Default(), plans)

	idxService := index.NewService(cat, index.NewStoreHistorySource(itemRepo), collector, slog.Default(), cfg.ScanLimit)
	selService := selector.NewService(idxService, progressRepo, slog.Default())

	scheduler := delivery.NewScheduler(tg, deliveryRepo, collector, slog.Default())
	defer scheduler.Stop()

	delService := delivery.NewService(cat, tg, deliveryRepo, scheduler, collector, slog.Default(), cfg.Retention)
	recorder := ingest.NewRecorder(cat, itemRepo, slog.Default())

	limiter := bot.NewActionLimiter(cfg.RateLimitActions)
	defer limiter.Stop()

	dispatcher := bot.NewDispatcher(
		tg, cfg, cat,
		entService, purService, selService, delService, idxService, recorder,
		sanitizer, limiter, slog.Default(),
	)

	// 7. 再起動前に積まれた配信の期限タイマーを復元する
	rearmed, err := scheduler.ReArmPending(startupCtx)
	if err != nil {
		return fmt.Errorf("failed to re-arm pending deliveries: %w", err)
	}
	if rearmed > 0 {
		slog.Info("pending deliveries re-armed", slog.Int("count", rearmed))
	}

	// 8. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		DB:            db,
		AdminAPIToken: cfg.AdminAPIToken,
		Gatherer:      registry,
		Logger:        slog.Default(),

		Subscriptions: entService,
		Cache:         idxService,
		Deliveries:    delService,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// 9. バックグラウンドジョブの起動
	sweeper := expiry.NewSweeperJob(deliveryRepo, slog.Default())
	go sweeper.RunPeriodic(ctx, sweepInterval)

	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("dispatcher stopped", slog.String("error", err.Error()))
		}
	}()

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
