package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/warikan/internal/middleware"
	"github.com/hitoshi/warikan/internal/model"
	"github.com/hitoshi/warikan/internal/receipt"
	"github.com/hitoshi/warikan/internal/token"
)

// ReceiptServiceInterface はAIハンドラーが必要とするレシート抽出サービスインターフェース。
type ReceiptServiceInterface interface {
	Extract(ctx context.Context, imagePayload string) (*model.ReceiptExtraction, error)
}

// TokenServiceInterface はAIハンドラーが必要とする一時クレデンシャル発行サービスインターフェース。
type TokenServiceInterface interface {
	Issue(ctx context.Context) (*model.EphemeralCredential, error)
}

// AIHandler はレシート抽出と一時キー発行のHTTPハンドラー。
// 全エンドポイントはセッションミドルウェアの内側に配置する。
type AIHandler struct {
	receiptService ReceiptServiceInterface
	tokenService   TokenServiceInterface
}

// NewAIHandler はAIHandlerを生成する。
func NewAIHandler(receiptService ReceiptServiceInterface, tokenService TokenServiceInterface) *AIHandler {
	return &AIHandler{
		receiptService: receiptService,
		tokenService:   tokenService,
	}
}

// ocrRequest はPOST /ai/ocrのリクエストボディ。
type ocrRequest struct {
	Image string `json:"image"`
}

// OCR はレシート画像から明細と税・チップを抽出して返す。
// POST /ai/ocr
func (h *AIHandler) OCR(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		// セッションミドルウェアを通過していれば到達しない
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req ocrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディをJSONとして解釈できません"))
		return
	}
	if req.Image == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("imageフィールドは必須です"))
		return
	}

	extraction, err := h.receiptService.Extract(r.Context(), req.Image)
	if err != nil {
		switch {
		case errors.Is(err, receipt.ErrNotConfigured):
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewProviderNotConfiguredError())
		case errors.Is(err, receipt.ErrExtractionFailed):
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewOCRFailedError())
		default:
			slog.Error("receipt extraction failed", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
		}
		return
	}

	slog.Info("receipt extracted",
		slog.String("subject_id", session.SubjectID),
		slog.Int("item_count", len(extraction.Items)),
	)

	writeJSONResponse(w, http.StatusOK, extraction)
}

// ephemeralKeyResponse はGET /ai/get-ephemeral-keyのレスポンスボディ。
type ephemeralKeyResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"` // RFC 3339（UTC）
}

// GetEphemeralKey はプロバイダー直接接続用の単回使用クレデンシャルを発行する。
// GET /ai/get-ephemeral-key
func (h *AIHandler) GetEphemeralKey(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	credential, err := h.tokenService.Issue(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, token.ErrNotConfigured):
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewProviderNotConfiguredError())
		case errors.Is(err, token.ErrIssuanceFailed):
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewEphemeralKeyFailedError())
		default:
			slog.Error("ephemeral credential issuance failed", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
		}
		return
	}

	slog.Info("ephemeral credential issued",
		slog.String("subject_id", session.SubjectID),
	)

	writeJSONResponse(w, http.StatusOK, ephemeralKeyResponse{
		Token:     credential.Token,
		ExpiresAt: credential.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
