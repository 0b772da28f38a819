// Package auth はIDトークン検証とセッションライフサイクル管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/warikan/internal/model"
	"github.com/hitoshi/warikan/internal/repository"
)

// 認証失敗の種別。ハンドラーはerrors.Isで分岐するが、
// クライアントへのレスポンスでは区別しない。
var (
	// ErrInvalidToken はIDトークンの検証失敗を表す。
	ErrInvalidToken = errors.New("invalid identity token")
	// ErrNotAuthenticated はセッションCookieが存在しないことを表す。
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionExpired はセッションキーが不明または期限切れであることを表す。
	ErrSessionExpired = errors.New("session expired")
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）。CookieのMax-Ageと一致させる
}

// Service はセッションライフサイクルに関するビジネスロジックを提供する。
type Service struct {
	verifier    TokenVerifier
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(verifier TokenVerifier, sessionRepo repository.SessionRepository, config ServiceConfig) *Service {
	return &Service{
		verifier:    verifier,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Login はIDトークンを検証し、セッションを作成する。
// セッションキーにはIdPのsubject idを使用するため、同一ユーザーの
// 再ログインは既存レコードの完全上書きになる。
func (s *Service) Login(ctx context.Context, token string) (*model.Session, error) {
	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		slog.Warn("id token verification failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	now := time.Now()
	session := &model.Session{
		Key:       claims.SubjectID,
		SubjectID: claims.SubjectID,
		Email:     claims.Email,
		Name:      claims.Name,
		Picture:   claims.Picture,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("subject_id", claims.SubjectID),
		slog.String("email", claims.Email),
	)

	return session, nil
}

// Resolve はCookie値からセッションを解決する。
// Cookieが空の場合はErrNotAuthenticated、キーが不明または期限切れの場合は
// ErrSessionExpiredを返す。
func (s *Service) Resolve(ctx context.Context, cookieValue string) (*model.Session, error) {
	if cookieValue == "" {
		return nil, ErrNotAuthenticated
	}

	session, err := s.sessionRepo.FindByKey(ctx, cookieValue)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionExpired
	}

	return session, nil
}

// Logout はセッションレコードを削除する。
// Cookieが空・キーが不明でもエラーにしない（冪等）。
func (s *Service) Logout(ctx context.Context, cookieValue string) error {
	if cookieValue == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByKey(ctx, cookieValue); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_key", cookieValue))
	return nil
}
