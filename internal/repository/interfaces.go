// Package repository はセッションデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/warikan/internal/model"
)

// SessionRepository はセッションデータの永続化インターフェース。
// 現在の実装はプロセス内メモリだが、外部ストアへの差し替えを想定して
// AuthGatewayからはこのインターフェースのみを参照する。
type SessionRepository interface {
	// Put はセッションを保存する。同一キーの既存レコードは無条件に上書きする。
	Put(ctx context.Context, session *model.Session) error

	// FindByKey は指定キーのセッションを取得する。
	// 見つからない場合と期限切れの場合はnilを返す。
	FindByKey(ctx context.Context, key string) (*model.Session, error)

	// DeleteByKey は指定キーのセッションを削除する。存在しないキーでもエラーにしない。
	DeleteByKey(ctx context.Context, key string) error
}
