// Package model はドメインモデルを定義する。
package model

import "time"

// IdentityClaims はIDトークン検証で得られるユーザーのアイデンティティ情報を表す。
// セッション作成時にのみ使用し、それ以降は保持しない。
type IdentityClaims struct {
	SubjectID string // IdPが割り当てる安定したユーザー識別子（Googleのsub）
	Email     string
	Name      string
	Picture   string
}

// Session はユーザーのログインセッションを表す。
// キーはIdPのsubject idをそのまま使用する（同一ユーザーの再ログインは上書き）。
type Session struct {
	Key       string
	SubjectID string
	Email     string
	Name      string
	Picture   string
	ExpiresAt time.Time
	CreatedAt time.Time
}
