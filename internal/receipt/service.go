// Package receipt はレシート画像からの構造化抽出を提供する。
// 画像ペイロードのデコード、抽出プロバイダーへの委譲、結果の正規化を担う。
package receipt

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/warikan/internal/model"
)

var (
	// ErrExtractionFailed は抽出処理の失敗を表す。
	// デコード失敗・プロバイダーエラー・スキーマ不適合のいずれもこの1種に集約し、
	// 原因の詳細はログにのみ記録する。
	ErrExtractionFailed = errors.New("receipt extraction failed")
	// ErrNotConfigured は抽出プロバイダーのクレデンシャルが未設定であることを表す。
	ErrNotConfigured = errors.New("extraction provider not configured")
)

// Extractor はレシート画像の構造化抽出プロバイダーのインターフェース。
// スキーマ固定のJSONテキストを返す。
type Extractor interface {
	ExtractReceiptJSON(ctx context.Context, image []byte) (string, error)
}

// MetricsRecorder は抽出処理のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordOCRSuccess()
	RecordOCRFailure(reason string)
	RecordOCRLatency(duration time.Duration)
}

// Service はレシート抽出のビジネスロジックを提供する。
type Service struct {
	extractor Extractor       // nilの場合、プロバイダー未設定として扱う
	metrics   MetricsRecorder // nil可
}

// NewService はServiceを生成する。
func NewService(extractor Extractor, metrics MetricsRecorder) *Service {
	return &Service{
		extractor: extractor,
		metrics:   metrics,
	}
}

// rawItem はプロバイダー応答の明細行。スキーマ上すべて必須フィールドのため、
// 欠落を検出できるようポインタで受ける。
type rawItem struct {
	Name  *string `json:"name"`
	Price *int    `json:"price"`
	Taxed *bool   `json:"taxed"`
}

// rawExtraction はプロバイダー応答全体。tax/tipは省略時0。
type rawExtraction struct {
	Items []rawItem `json:"items"`
	Tax   int       `json:"tax"`
	Tip   int       `json:"tip"`
}

// Extract はbase64エンコードされたレシート画像から明細と税・チップを抽出する。
// ペイロードはデータURL形式（"<meta>,<base64>"）とベアbase64の両方を受け付ける。
// 部分的な結果は返さない: いずれかの明細が不正な場合は全体を失敗させる。
func (s *Service) Extract(ctx context.Context, imagePayload string) (*model.ReceiptExtraction, error) {
	if s.extractor == nil {
		return nil, ErrNotConfigured
	}

	// 1. データURLヘッダーの除去とbase64デコード
	image, err := decodeImagePayload(imagePayload)
	if err != nil {
		slog.Warn("receipt image decoding failed", slog.String("error", err.Error()))
		s.recordFailure("decode")
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	// 2. プロバイダーへの委譲
	start := time.Now()
	raw, err := s.extractor.ExtractReceiptJSON(ctx, image)
	if s.metrics != nil {
		s.metrics.RecordOCRLatency(time.Since(start))
	}
	if err != nil {
		slog.Error("receipt extraction provider call failed", slog.String("error", err.Error()))
		s.recordFailure("provider_error")
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	// 3. スキーマ検証
	parsed, err := parseExtraction(raw)
	if err != nil {
		slog.Error("receipt extraction response validation failed", slog.String("error", err.Error()))
		s.recordFailure("invalid_response")
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	// 4. 明細への不透明ID採番（順序はプロバイダーの返却順を保持）
	items := make([]model.ReceiptItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		id, err := newItemID()
		if err != nil {
			s.recordFailure("id_generation")
			return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
		}
		items = append(items, model.ReceiptItem{
			ID:    id,
			Name:  *it.Name,
			Price: *it.Price,
			Taxed: *it.Taxed,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordOCRSuccess()
	}

	return &model.ReceiptExtraction{
		Items: items,
		Tax:   parsed.Tax,
		Tip:   parsed.Tip,
	}, nil
}

// decodeImagePayload はデータURLヘッダー（存在する場合）を取り除き、base64デコードする。
// ヘッダーの有無はカンマの有無で判定する。
func decodeImagePayload(payload string) ([]byte, error) {
	if i := strings.Index(payload, ","); i >= 0 {
		payload = payload[i+1:]
	}

	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}
	return image, nil
}

// parseExtraction はプロバイダーのJSON応答をパースし、スキーマ適合を検証する。
// 必須フィールドの欠落・負の金額は全体の失敗として扱う。
func parseExtraction(raw string) (*rawExtraction, error) {
	var parsed rawExtraction
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	if parsed.Items == nil {
		return nil, fmt.Errorf("missing items field in extraction response")
	}

	for i, it := range parsed.Items {
		if it.Name == nil || *it.Name == "" {
			return nil, fmt.Errorf("item %d: missing or empty name", i)
		}
		if it.Price == nil {
			return nil, fmt.Errorf("item %d: missing price", i)
		}
		if *it.Price < 0 {
			return nil, fmt.Errorf("item %d: negative price %d", i, *it.Price)
		}
		if it.Taxed == nil {
			return nil, fmt.Errorf("item %d: missing taxed flag", i)
		}
	}

	if parsed.Tax < 0 || parsed.Tip < 0 {
		return nil, fmt.Errorf("negative tax or tip in extraction response")
	}

	return &parsed, nil
}

// newItemID は明細用のランダムな不透明IDを生成する。
// 4バイトのhex表現で、1レシート内の明細数に対して実用上衝突しない。
func newItemID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *Service) recordFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordOCRFailure(reason)
	}
}
