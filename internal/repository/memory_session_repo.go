package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/warikan/internal/model"
)

// MemorySessionRepo はプロセス内メモリを使用したセッションリポジトリ。
// subject idをキーとする無制限のマップで、プロセス終了とともに消える。
// 期限切れレコードは参照時に不在として扱い、その場で削除する。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session

	// now はテストで時刻を固定するためのフック。
	now func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]*model.Session),
		now:      time.Now,
	}
}

// Put はセッションを保存する。同一キーの既存レコードは無条件に上書きする。
// 同一subjectの並行ログインは後勝ちとなるが、どちらも同等のレコードを
// 同一キーに書き込むため実害はない。
func (r *MemorySessionRepo) Put(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *session
	r.sessions[session.Key] = &copied
	return nil
}

// FindByKey は指定キーのセッションを取得する。
// 見つからない場合と期限切れの場合はnilを返す。
func (r *MemorySessionRepo) FindByKey(_ context.Context, key string) (*model.Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[key]
	r.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	// サーバー側でも有効期限を強制する（CookieのMax-Ageだけに依存しない）
	if !session.ExpiresAt.IsZero() && !r.now().Before(session.ExpiresAt) {
		r.mu.Lock()
		// ロック再取得までの間に同一キーへ再ログインが入った場合、
		// 新しいレコードを巻き添えにしないよう読み取ったレコード自体のみ削除する
		if current, ok := r.sessions[key]; ok && current == session {
			delete(r.sessions, key)
		}
		r.mu.Unlock()
		return nil, nil
	}

	copied := *session
	return &copied, nil
}

// DeleteByKey は指定キーのセッションを削除する。存在しないキーでもエラーにしない。
func (r *MemorySessionRepo) DeleteByKey(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, key)
	return nil
}

// Len は現在保持しているセッション数を返す。テスト用。
func (r *MemorySessionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// compile-time interface check
var _ SessionRepository = (*MemorySessionRepo)(nil)
