// Package app はアプリケーションの起動と依存関係のワイヤリングを担う。
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/warikan/internal/auth"
	"github.com/hitoshi/warikan/internal/config"
	"github.com/hitoshi/warikan/internal/gemini"
	"github.com/hitoshi/warikan/internal/handler"
	"github.com/hitoshi/warikan/internal/logger"
	"github.com/hitoshi/warikan/internal/metrics"
	"github.com/hitoshi/warikan/internal/receipt"
	"github.com/hitoshi/warikan/internal/repository"
	"github.com/hitoshi/warikan/internal/token"
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

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. セッションストアの初期化
	// セッションはプロセス内メモリに保持する。再起動で全セッションが消えるが、
	// 再ログインで回復できるため許容する
	sessionRepo := repository.NewMemorySessionRepo()

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 認証サービスの初期化
	verifier := auth.NewGoogleIDTokenVerifier(cfg.GoogleClientID)
	authService := auth.NewService(verifier, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})

	// 4. AIプロバイダーの初期化
	// APIキーが未設定の場合はプロバイダーをnilのままにし、
	// AIエンドポイントは呼び出し時にPROVIDER_NOT_CONFIGUREDを返す
	var extractor receipt.Extractor
	var minter token.Minter
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(context.Background(), gemini.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.GeminiTimeout,
		}, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to initialize gemini client: %w", err)
		}
		extractor = client
		minter = client
		slog.Info("gemini client initialized", slog.String("model", cfg.GeminiModel))
	} else {
		slog.Warn("GEMINI_API_KEY is not set; AI endpoints will return configuration errors")
	}

	receiptService := receipt.NewService(extractor, collector)
	tokenService := token.NewService(minter, collector)

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:          slog.Default(),
		SessionResolver: authService,
		StatusRecorder:  collector,
		AllowedOrigins:  cfg.CORSAllowedOrigins,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ReceiptService: receiptService,
		TokenService:   tokenService,

		MetricsHandler: metrics.Handler(registry),
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // 画像抽出のプロバイダー待ちを含むため長めに取る
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
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
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
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
