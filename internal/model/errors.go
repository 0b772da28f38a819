// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, ai, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeProviderNotConfigured = "PROVIDER_NOT_CONFIGURED"
	ErrCodeOCRFailed             = "OCR_FAILED"
	ErrCodeEphemeralKeyFailed    = "EPHEMERAL_KEY_FAILED"
)

// NewUnauthorizedError は認証エラーを生成する。
// Cookie未送信・不明なセッションキー・IDトークン検証失敗のいずれでも
// クライアントには同一のレスポンスを返す（原因の詳細はログのみに記録する）。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証されていません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト形式を確認してください。",
	}
}

// NewProviderNotConfiguredError はAIプロバイダーのクレデンシャルが未設定の場合のエラーを生成する。
func NewProviderNotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderNotConfigured,
		Message:  "AIプロバイダーが設定されていません。",
		Category: "system",
		Action:   "サーバー管理者に連絡してください。",
	}
}

// NewOCRFailedError はレシート抽出の失敗エラーを生成する。
// プロバイダー由来の失敗理由はクライアントに開示しない。
func NewOCRFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeOCRFailed,
		Message:  "レシートの読み取りに失敗しました。",
		Category: "ai",
		Action:   "画像を撮り直して再度お試しください。",
	}
}

// NewEphemeralKeyFailedError は一時クレデンシャル発行の失敗エラーを生成する。
func NewEphemeralKeyFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeEphemeralKeyFailed,
		Message:  "一時キーの発行に失敗しました。",
		Category: "ai",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
