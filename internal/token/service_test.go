package token

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- モック定義 ---

type mockMinter struct {
	mintFn func(ctx context.Context, expireTime, newSessionExpireTime time.Time) (string, error)
}

func (m *mockMinter) MintScopedToken(ctx context.Context, expireTime, newSessionExpireTime time.Time) (string, error) {
	if m.mintFn != nil {
		return m.mintFn(ctx, expireTime, newSessionExpireTime)
	}
	return "", nil
}

type mockMetrics struct {
	issued   int
	failures int
}

func (m *mockMetrics) RecordTokenIssued() { m.issued++ }

func (m *mockMetrics) RecordTokenIssueFailure() { m.failures++ }

// --- compile-time interface checks ---
var _ Minter = (*mockMinter)(nil)
var _ MetricsRecorder = (*mockMetrics)(nil)

// --- テスト ---

func TestIssue_ComputesExactExpiryWindows(t *testing.T) {
	// JST（UTC+9）の固定時刻でもUTCで計算されることを確認する
	jst := time.FixedZone("JST", 9*60*60)
	issueTime := time.Date(2025, 6, 15, 21, 30, 0, 0, jst)

	var gotExpire, gotNewSession time.Time
	minter := &mockMinter{
		mintFn: func(ctx context.Context, expireTime, newSessionExpireTime time.Time) (string, error) {
			gotExpire = expireTime
			gotNewSession = newSessionExpireTime
			return "auth_tokens/abc123", nil
		},
	}

	svc := NewService(minter, nil)
	svc.now = func() time.Time { return issueTime }

	cred, err := svc.Issue(context.Background())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// primaryExpiry - issueTime == 30m
	if got := gotExpire.Sub(issueTime.UTC()); got != 30*time.Minute {
		t.Errorf("primary expiry offset = %v, want 30m", got)
	}
	// renewalWindowExpiry - issueTime == 1m
	if got := gotNewSession.Sub(issueTime.UTC()); got != 1*time.Minute {
		t.Errorf("new session expiry offset = %v, want 1m", got)
	}

	// 期限はUTCで表現されること
	if gotExpire.Location() != time.UTC {
		t.Errorf("expire time location = %v, want UTC", gotExpire.Location())
	}

	// 返却されるExpiresAtはprimaryExpiryと一致すること
	if !cred.ExpiresAt.Equal(gotExpire) {
		t.Errorf("ExpiresAt = %v, want %v", cred.ExpiresAt, gotExpire)
	}
	if cred.Token != "auth_tokens/abc123" {
		t.Errorf("token = %q, want %q", cred.Token, "auth_tokens/abc123")
	}
}

func TestIssue_ProviderError_ReturnsErrIssuanceFailed(t *testing.T) {
	minter := &mockMinter{
		mintFn: func(ctx context.Context, expireTime, newSessionExpireTime time.Time) (string, error) {
			return "", errors.New("provider unavailable")
		},
	}
	metrics := &mockMetrics{}
	svc := NewService(minter, metrics)

	_, err := svc.Issue(context.Background())
	if !errors.Is(err, ErrIssuanceFailed) {
		t.Fatalf("Issue() error = %v, want ErrIssuanceFailed", err)
	}
	if metrics.failures != 1 {
		t.Errorf("failure metric = %d, want 1", metrics.failures)
	}
	if metrics.issued != 0 {
		t.Errorf("issued metric = %d, want 0", metrics.issued)
	}
}

func TestIssue_NilMinter_ReturnsNotConfigured(t *testing.T) {
	svc := NewService(nil, nil)

	_, err := svc.Issue(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Issue() error = %v, want ErrNotConfigured", err)
	}
}

func TestIssue_RecordsSuccessMetric(t *testing.T) {
	minter := &mockMinter{
		mintFn: func(ctx context.Context, expireTime, newSessionExpireTime time.Time) (string, error) {
			return "auth_tokens/xyz", nil
		},
	}
	metrics := &mockMetrics{}
	svc := NewService(minter, metrics)

	if _, err := svc.Issue(context.Background()); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if metrics.issued != 1 {
		t.Errorf("issued metric = %d, want 1", metrics.issued)
	}
}
