package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/voltrack/internal/auth"
	"github.com/hitoshi/voltrack/internal/bot"
	"github.com/hitoshi/voltrack/internal/config"
	"github.com/hitoshi/voltrack/internal/database"
	"github.com/hitoshi/voltrack/internal/github"
	"github.com/hitoshi/voltrack/internal/handler"
	"github.com/hitoshi/voltrack/internal/logger"
	"github.com/hitoshi/voltrack/internal/metrics"
	"github.com/hitoshi/voltrack/internal/ratelimit"
	"github.com/hitoshi/voltrack/internal/repository"
	"github.com/hitoshi/voltrack/internal/worker/cleanup"
	"github.com/hitoshi/voltrack/internal/worklog"
)

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
			port = "8000"
		}
		return runHealthcheck(port)
	}

	// export はCSVをwに書き出すため、ログは標準エラーに逃がす
	logWriter := w
	if cmd == CommandExport {
		logWriter = os.Stderr
	}

	cfg, err := Init(logWriter)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.PublicBaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandExport:
		return runExport(cfg, w)
	default:
		return runServe(cfg)
	}
}

// runServe はボット+APIサーバーモードで起動する。
// DB接続とマイグレーション適用の後、全依存関係をワイヤリングして
// Discordボットの接続とHTTPサーバーの起動を行う。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続とマイグレーション
	if err := database.RunMigrations(cfg.DatabasePath); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("path", cfg.DatabasePath),
	)

	// 2. リポジトリの初期化
	stateRepo := repository.NewSQLiteStateRepo(db)
	linkRepo := repository.NewSQLiteLinkRepo(db)
	logRepo := repository.NewSQLiteWorkLogRepo(db)

	// 3. メトリクスとレート制限
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	oauthLimiter := ratelimit.New(cfg.OAuthRateMax, cfg.OAuthRateWindow)
	defer oauthLimiter.Stop()
	commandLimiter := ratelimit.New(cfg.CommandRateMax, cfg.CommandRateWindow)
	defer commandLimiter.Stop()

	// 4. ドメインサービスの初期化
	oauthProvider := auth.NewGitHubOAuthProvider(auth.GitHubOAuthConfig{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.RedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, stateRepo, linkRepo, oauthLimiter, collector,
		auth.ServiceConfig{StateTTL: cfg.StateTTL},
	)

	githubClient := github.NewClient(
		&http.Client{Timeout: 10 * time.Second},
		slog.Default(), collector, cfg.GitHubToken, cfg.GitHubAPIURL,
	)
	workService := worklog.NewService(linkRepo, logRepo, githubClient,
		worklog.ServiceConfig{CommitLookback: cfg.CommitLookback},
	)

	// 5. Discordボットの初期化
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	discordBot := bot.New(session, workService, commandLimiter, bot.Config{
		PublicBaseURL:      cfg.PublicBaseURL,
		LogCommandCooldown: cfg.LogCommandCooldown,
	})

	// 6. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:       slog.Default(),
		OAuthService: authService,
		DB:           db,
		Gatherer:     registry,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 7. バックグラウンドジョブの起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupJob := cleanup.NewCleanupJob(stateRepo, slog.Default())
	cleanupJob.Interval = cfg.StateCleanupInterval
	go cleanupJob.Loop(ctx)

	// 8. ボット接続とHTTPサーバー起動
	if err := discordBot.Start(); err != nil {
		return fmt.Errorf("failed to start discord bot: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

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

	if err := discordBot.Stop(); err != nil {
		slog.Error("discord bot shutdown failed", slog.String("error", err.Error()))
	}

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
		slog.String("path", cfg.DatabasePath),
	)

	if err := database.RunMigrations(cfg.DatabasePath); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runExport は全記録をCSV形式で書き出す。
func runExport(cfg *config.Config, w io.Writer) error {
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	exporter := worklog.NewExporter(repository.NewSQLiteWorkLogRepo(db))
	if err := exporter.WriteCSV(context.Background(), w); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

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
