// Package model はドメインモデルを定義する。
package model

import "time"

// EphemeralCredential はプロバイダーが発行した短命・単回使用の委譲クレデンシャルを表す。
// サーバー側では発行後の記録を一切保持しない（失効・再利用の管理はプロバイダーに委譲）。
type EphemeralCredential struct {
	Token     string
	ExpiresAt time.Time
}
