package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/warikan/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger          *slog.Logger
	SessionResolver middleware.SessionResolver
	StatusRecorder  middleware.StatusRecorder
	AllowedOrigins  []string

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// AI仲介
	ReceiptService ReceiptServiceInterface
	TokenService   TokenServiceInterface

	// 運用エンドポイント
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → SecurityHeaders → CORS
//
// セッションミドルウェアは/aiグループにのみ適用する。
// 認証ルート（/auth/*）はログイン前のアクセスを前提とするため外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.AllowedOrigins))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	aiHandler := NewAIHandler(deps.ReceiptService, deps.TokenService)

	// --- 認証不要のルート ---

	r.Route("/auth", func(r chi.Router) {
		r.Post("/google", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// 死活監視用
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---

	r.Route("/ai", func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))

		r.Post("/ocr", aiHandler.OCR)
		r.Get("/get-ephemeral-key", aiHandler.GetEphemeralKey)
	})

	return r
}
