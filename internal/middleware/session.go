package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/warikan/internal/model"
)

// SessionCookieName はセッションCookieの名前。
const SessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionResolver はCookie値からセッションを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionResolver interface {
	Resolve(ctx context.Context, cookieValue string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookie未送信と不明・期限切れキーはクライアントには区別せず、
// いずれも同一の401レスポンスを返す。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var cookieValue string
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				cookieValue = cookie.Value
			}

			session, err := resolver.Resolve(r.Context(), cookieValue)
			if err != nil {
				// 原因の種別はログにのみ残す
				slog.Warn("session resolution failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*model.Session, error) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok || session == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return session, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
