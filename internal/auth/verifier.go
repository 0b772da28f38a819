package auth

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"

	"github.com/hitoshi/warikan/internal/model"
)

// TokenVerifier はフェデレーテッドIDトークンの検証インターフェース。
// 署名・audience・有効期限の検証を行い、成功時にクレームを返す。
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.IdentityClaims, error)
}

// GoogleIDTokenVerifier はGoogleのIDトークンを検証するTokenVerifier実装。
// audienceには自サービスのOAuthクライアントIDを指定する。
type GoogleIDTokenVerifier struct {
	audience string
}

// NewGoogleIDTokenVerifier はGoogleIDTokenVerifierを生成する。
func NewGoogleIDTokenVerifier(audience string) *GoogleIDTokenVerifier {
	return &GoogleIDTokenVerifier{audience: audience}
}

// Verify はIDトークンを検証し、ユーザーのアイデンティティクレームを返す。
// 署名不正・audience不一致・期限切れはすべてエラーになる。
func (v *GoogleIDTokenVerifier) Verify(ctx context.Context, token string) (*model.IdentityClaims, error) {
	payload, err := idtoken.Validate(ctx, token, v.audience)
	if err != nil {
		return nil, fmt.Errorf("failed to validate id token: %w", err)
	}

	if payload.Subject == "" {
		return nil, fmt.Errorf("empty subject in verified token")
	}

	return &model.IdentityClaims{
		SubjectID: payload.Subject,
		Email:     stringClaim(payload.Claims, "email"),
		Name:      stringClaim(payload.Claims, "name"),
		Picture:   stringClaim(payload.Claims, "picture"),
	}, nil
}

// stringClaim はクレームマップから文字列クレームを取り出す。
// 欠落時・型不一致時は空文字を返す（name、pictureは任意クレーム）。
func stringClaim(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// compile-time interface check
var _ TokenVerifier = (*GoogleIDTokenVerifier)(nil)
