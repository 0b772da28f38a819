// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/warikan/internal/auth"
	"github.com/hitoshi/warikan/internal/middleware"
	"github.com/hitoshi/warikan/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, token string) (*model.Session, error)
	Resolve(ctx context.Context, cookieValue string) (*model.Session, error)
	Logout(ctx context.Context, cookieValue string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はセッションライフサイクル関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginRequest はPOST /auth/googleのリクエストボディ。
type loginRequest struct {
	Token string `json:"token"`
}

// userResponse はレスポンスに含めるユーザープロフィール。
type userResponse struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// Login はGoogle IDトークンを検証し、セッションを確立する。
// POST /auth/google
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディをJSONとして解釈できません"))
		return
	}
	if req.Token == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("tokenフィールドは必須です"))
		return
	}

	session, err := h.service.Login(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			// 検証失敗の詳細はサービス側でログ済み。クライアントには一般的な401のみ返す
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		slog.Error("login failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.setSessionCookie(w, session.Key, h.config.SessionMaxAge)

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"user": userResponse{
			Email:   session.Email,
			Name:    session.Name,
			Picture: session.Picture,
		},
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Resolve(r.Context(), sessionCookieValue(r))
	if err != nil {
		// 未認証・不明キー・期限切れのいずれも同一の401に丸める
		if !errors.Is(err, auth.ErrNotAuthenticated) && !errors.Is(err, auth.ErrSessionExpired) {
			slog.Error("session resolution failed", slog.String("error", err.Error()))
		}
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"user": userResponse{
			Email:   session.Email,
			Name:    session.Name,
			Picture: session.Picture,
		},
	})
}

// Logout はセッションレコードを削除し、Cookieをクリアする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), sessionCookieValue(r)); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		// レコード削除に失敗してもCookieはクリアする
	}

	h.setSessionCookie(w, "", -1)

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
	})
}

// setSessionCookie はセッションCookieを設定する。maxAge < 0で削除。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionCookieValue はリクエストからセッションCookieの値を取り出す。
// Cookieが存在しない場合は空文字を返す。
func sessionCookieValue(r *http.Request) string {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
