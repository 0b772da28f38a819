// Package gemini はGemini APIのクライアントを提供する。
// レシート画像の構造化抽出と、クライアントがプロバイダーと直接通信するための
// 一時認証トークンの発行を担う。
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

// extractionPrompt はレシート抽出の固定指示。
// 金額の単位（セント）とtaxedフラグの意味をここで固定する。
const extractionPrompt = `
Extract all items from this receipt.
Rules:
- price must be in cents (multiply dollars by 100)
- taxed should be true for items that have tax applied
- Extract tax amount separately (in cents). If no tax is shown, set to 0
- Extract tip amount separately (in cents). If no tip is shown, set to 0
- The items array should only contain line items, not tax or tip
- Return structured JSON matching the schema
`

// receiptSchema は構造化出力の必須スキーマ。
// 明細リストとは別にtax/tipを独立フィールドとして受け取る。
var receiptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"items": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":  {Type: genai.TypeString},
					"price": {Type: genai.TypeInteger},
					"taxed": {Type: genai.TypeBoolean},
				},
				Required: []string{"name", "price", "taxed"},
			},
		},
		"tax": {Type: genai.TypeInteger},
		"tip": {Type: genai.TypeInteger},
	},
	Required: []string{"items"},
}

// ClientConfig はGeminiクライアントの設定。
type ClientConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration // プロバイダー呼び出し1回あたりの上限時間
}

// Client はGemini APIのクライアント。
type Client struct {
	genai   *genai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient はClientを生成する。APIキーは必須。
func NewClient(ctx context.Context, config ClientConfig, logger *slog.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		genai:   gc,
		model:   config.Model,
		timeout: config.Timeout,
		logger:  logger,
	}, nil
}

// ExtractReceiptJSON はレシート画像をスキーマ固定の構造化出力で抽出し、
// 生のJSONテキストを返す。パースとバリデーションは呼び出し元が行う。
func (c *Client) ExtractReceiptJSON(ctx context.Context, image []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []*genai.Part{
		genai.NewPartFromText(extractionPrompt),
		genai.NewPartFromBytes(image, "image/jpeg"),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   receiptSchema,
	})
	if err != nil {
		c.logger.Error("gemini generate content failed",
			slog.String("model", c.model),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		c.logger.Error("gemini returned empty response", slog.String("model", c.model))
		return "", fmt.Errorf("empty response from gemini")
	}

	return text, nil
}

// MintScopedToken は単回使用の一時認証トークンを発行する。
// expireTimeはトークン自体の有効期限、newSessionExpireTimeは
// このトークンで新規セッションを開始できる期限（前者に内包される狭い窓）。
func (c *Client) MintScopedToken(ctx context.Context, expireTime, newSessionExpireTime time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.genai.AuthTokens.Create(ctx, &genai.CreateAuthTokenConfig{
		ExpireTime:           expireTime,
		NewSessionExpireTime: newSessionExpireTime,
		Uses:                 genai.Ptr[int32](1), // 単回使用
		HTTPOptions: &genai.HTTPOptions{
			APIVersion: "v1alpha",
		},
	})
	if err != nil {
		c.logger.Error("gemini auth token creation failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("gemini auth token creation failed: %w", err)
	}

	if token.Name == "" {
		return "", fmt.Errorf("empty token name in gemini response")
	}

	return token.Name, nil
}
