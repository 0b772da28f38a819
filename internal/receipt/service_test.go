package receipt

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

// --- モック定義 ---

type mockExtractor struct {
	extractFn func(ctx context.Context, image []byte) (string, error)
}

func (m *mockExtractor) ExtractReceiptJSON(ctx context.Context, image []byte) (string, error) {
	if m.extractFn != nil {
		return m.extractFn(ctx, image)
	}
	return "", nil
}

type mockMetrics struct {
	successes int
	failures  []string
	latencies int
}

func (m *mockMetrics) RecordOCRSuccess() { m.successes++ }

func (m *mockMetrics) RecordOCRFailure(reason string) { m.failures = append(m.failures, reason) }

func (m *mockMetrics) RecordOCRLatency(_ time.Duration) { m.latencies++ }

// --- compile-time interface checks ---
var _ Extractor = (*mockExtractor)(nil)
var _ MetricsRecorder = (*mockMetrics)(nil)

const validResponse = `{"items":[{"name":"Coffee","price":350,"taxed":true}],"tax":28,"tip":0}`

func testImageBase64() string {
	return base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes"))
}

// --- テスト ---

func TestExtract_Success(t *testing.T) {
	ctx := context.Background()
	extractor := &mockExtractor{
		extractFn: func(ctx context.Context, image []byte) (string, error) {
			return validResponse, nil
		},
	}
	metrics := &mockMetrics{}
	svc := NewService(extractor, metrics)

	result, err := svc.Extract(ctx, testImageBase64())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(result.Items) != 1 {
		t.Fatalf("items length = %d, want 1", len(result.Items))
	}
	item := result.Items[0]
	if item.ID == "" {
		t.Error("expected generated item ID")
	}
	if item.Name != "Coffee" {
		t.Errorf("name = %q, want %q", item.Name, "Coffee")
	}
	if item.Price != 350 {
		t.Errorf("price = %d, want 350", item.Price)
	}
	if !item.Taxed {
		t.Error("taxed = false, want true")
	}
	if result.Tax != 28 {
		t.Errorf("tax = %d, want 28", result.Tax)
	}
	if result.Tip != 0 {
		t.Errorf("tip = %d, want 0", result.Tip)
	}

	if metrics.successes != 1 {
		t.Errorf("success metric = %d, want 1", metrics.successes)
	}
	if metrics.latencies != 1 {
		t.Errorf("latency metric = %d, want 1", metrics.latencies)
	}
}

func TestExtract_DataURLAndBareBase64_DecodeToSameBytes(t *testing.T) {
	ctx := context.Background()

	var captured [][]byte
	extractor := &mockExtractor{
		extractFn: func(ctx context.Context, image []byte) (string, error) {
			captured = append(captured, image)
			return validResponse, nil
		},
	}
	svc := NewService(extractor, nil)

	bare := testImageBase64()
	dataURL := "data:image/jpeg;base64," + bare

	if _, err := svc.Extract(ctx, bare); err != nil {
		t.Fatalf("Extract(bare) error = %v", err)
	}
	if _, err := svc.Extract(ctx, dataURL); err != nil {
		t.Fatalf("Extract(dataURL) error = %v", err)
	}

	if len(captured) != 2 {
		t.Fatalf("extractor call count = %d, want 2", len(captured))
	}
	if string(captured[0]) != string(captured[1]) {
		t.Error("data-URL payload and bare base64 payload should decode to the same bytes")
	}
	if string(captured[0]) != "fake-jpeg-bytes" {
		t.Errorf("decoded bytes = %q, want %q", captured[0], "fake-jpeg-bytes")
	}
}

func TestExtract_MalformedBase64_FailsAsExtractionError(t *testing.T) {
	svc := NewService(&mockExtractor{}, nil)

	_, err := svc.Extract(context.Background(), "not-valid-base64!!!")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("Extract() error = %v, want ErrExtractionFailed", err)
	}
}

func TestExtract_ProviderError_FailsAsExtractionError(t *testing.T) {
	extractor := &mockExtractor{
		extractFn: func(ctx context.Context, image []byte) (string, error) {
			return "", errors.New("empty response from gemini")
		},
	}
	metrics := &mockMetrics{}
	svc := NewService(extractor, metrics)

	_, err := svc.Extract(context.Background(), testImageBase64())
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("Extract() error = %v, want ErrExtractionFailed", err)
	}
	if len(metrics.failures) != 1 || metrics.failures[0] != "provider_error" {
		t.Errorf("failure metrics = %v, want [provider_error]", metrics.failures)
	}
}

func TestExtract_NonConformingResponse_FailsWholeExtraction(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"not json", "this is not json"},
		{"missing items", `{"tax":0,"tip":0}`},
		{"item missing name", `{"items":[{"price":100,"taxed":false}],"tax":0,"tip":0}`},
		{"item empty name", `{"items":[{"name":"","price":100,"taxed":false}],"tax":0,"tip":0}`},
		{"item missing price", `{"items":[{"name":"Tea","taxed":false}],"tax":0,"tip":0}`},
		{"item missing taxed", `{"items":[{"name":"Tea","price":100}],"tax":0,"tip":0}`},
		{"negative price", `{"items":[{"name":"Tea","price":-100,"taxed":false}],"tax":0,"tip":0}`},
		{"negative tax", `{"items":[],"tax":-5,"tip":0}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			extractor := &mockExtractor{
				extractFn: func(ctx context.Context, image []byte) (string, error) {
					return tc.response, nil
				},
			}
			svc := NewService(extractor, nil)

			_, err := svc.Extract(context.Background(), testImageBase64())
			if !errors.Is(err, ErrExtractionFailed) {
				t.Errorf("Extract() error = %v, want ErrExtractionFailed", err)
			}
		})
	}
}

func TestExtract_TaxTipOmitted_DefaultToZero(t *testing.T) {
	extractor := &mockExtractor{
		extractFn: func(ctx context.Context, image []byte) (string, error) {
			return `{"items":[{"name":"Water","price":150,"taxed":false}]}`, nil
		},
	}
	svc := NewService(extractor, nil)

	result, err := svc.Extract(context.Background(), testImageBase64())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Tax != 0 || result.Tip != 0 {
		t.Errorf("tax/tip = %d/%d, want 0/0 when omitted", result.Tax, result.Tip)
	}
}

func TestExtract_ItemIDsAreDistinctWithinResponse(t *testing.T) {
	extractor := &mockExtractor{
		extractFn: func(ctx context.Context, image []byte) (string, error) {
			return `{"items":[
				{"name":"A","price":100,"taxed":false},
				{"name":"B","price":200,"taxed":true},
				{"name":"C","price":300,"taxed":false},
				{"name":"D","price":400,"taxed":true},
				{"name":"E","price":500,"taxed":false}
			],"tax":0,"tip":0}`, nil
		},
	}
	svc := NewService(extractor, nil)

	result, err := svc.Extract(context.Background(), testImageBase64())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	seen := make(map[string]bool)
	for _, item := range result.Items {
		if item.ID == "" {
			t.Error("expected non-empty item ID")
		}
		if seen[item.ID] {
			t.Errorf("duplicate item ID %q within one response", item.ID)
		}
		seen[item.ID] = true
	}

	// 順序はプロバイダーの返却順を保持すること
	wantNames := []string{"A", "B", "C", "D", "E"}
	for i, item := range result.Items {
		if item.Name != wantNames[i] {
			t.Errorf("items[%d].Name = %q, want %q (order must be preserved)", i, item.Name, wantNames[i])
		}
	}
}

func TestExtract_EmptyItemList_IsValid(t *testing.T) {
	extractor := &mockExtractor{
		extractFn: func(ctx context.Context, image []byte) (string, error) {
			return `{"items":[],"tax":0,"tip":0}`, nil
		},
	}
	svc := NewService(extractor, nil)

	result, err := svc.Extract(context.Background(), testImageBase64())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(result.Items) != 0 {
		t.Errorf("items length = %d, want 0", len(result.Items))
	}
}

func TestExtract_NilExtractor_ReturnsNotConfigured(t *testing.T) {
	svc := NewService(nil, nil)

	_, err := svc.Extract(context.Background(), testImageBase64())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Extract() error = %v, want ErrNotConfigured", err)
	}
}
