// Package token はプロバイダーへの直接接続用の一時クレデンシャル発行を提供する。
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/warikan/internal/model"
)

const (
	// primaryTTL は発行するクレデンシャル自体の有効期間。
	primaryTTL = 30 * time.Minute
	// newSessionTTL はこのクレデンシャルで新規セッションを開始できる期間。
	// primaryTTLに内包される狭い初回接続窓。
	newSessionTTL = 1 * time.Minute
)

var (
	// ErrIssuanceFailed はクレデンシャル発行の失敗を表す。
	// プロバイダーエラーの詳細はログにのみ記録する。
	ErrIssuanceFailed = errors.New("ephemeral credential issuance failed")
	// ErrNotConfigured はプロバイダーのクレデンシャルが未設定であることを表す。
	ErrNotConfigured = errors.New("credential provider not configured")
)

// Minter は単回使用の委譲クレデンシャルを発行するプロバイダーのインターフェース。
type Minter interface {
	MintScopedToken(ctx context.Context, expireTime, newSessionExpireTime time.Time) (string, error)
}

// MetricsRecorder は発行処理のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordTokenIssued()
	RecordTokenIssueFailure()
}

// Service は一時クレデンシャル発行のビジネスロジックを提供する。
// 発行したトークンの記録は一切保持しない（単回使用の強制はプロバイダーに委譲）。
type Service struct {
	minter  Minter          // nilの場合、プロバイダー未設定として扱う
	metrics MetricsRecorder // nil可

	// now はテストで時刻を固定するためのフック。
	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(minter Minter, metrics MetricsRecorder) *Service {
	return &Service{
		minter:  minter,
		metrics: metrics,
		now:     time.Now,
	}
}

// Issue は有効期間30分・新規セッション開始窓1分の単回使用クレデンシャルを発行する。
// 期限の計算と返却はすべてUTCで行う。
func (s *Service) Issue(ctx context.Context) (*model.EphemeralCredential, error) {
	if s.minter == nil {
		return nil, ErrNotConfigured
	}

	now := s.now().UTC()
	primaryExpiry := now.Add(primaryTTL)
	newSessionExpiry := now.Add(newSessionTTL)

	token, err := s.minter.MintScopedToken(ctx, primaryExpiry, newSessionExpiry)
	if err != nil {
		slog.Error("ephemeral credential minting failed", slog.String("error", err.Error()))
		if s.metrics != nil {
			s.metrics.RecordTokenIssueFailure()
		}
		return nil, fmt.Errorf("%w: %w", ErrIssuanceFailed, err)
	}

	if s.metrics != nil {
		s.metrics.RecordTokenIssued()
	}

	slog.Info("ephemeral credential issued",
		slog.Time("expires_at", primaryExpiry),
	)

	return &model.EphemeralCredential{
		Token:     token,
		ExpiresAt: primaryExpiry,
	}, nil
}
