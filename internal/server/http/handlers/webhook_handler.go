package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/ordercheckout/internal/domain/model"
	pkgAuth "github.com/polkiloo/ordercheckout/internal/pkg/auth"
	"github.com/polkiloo/ordercheckout/internal/server/http/dto"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
	SignatureHeader = "X-Signature"
	maxWebhookBody  = 64 << 10
)

// WebhookHandler accepts payment status reports from the gateway. Delivery is
// at-least-once; repeated reports are acknowledged without changing the order.
type WebhookHandler struct {
	facade   PaymentFacade
	verifier pkgAuth.WebhookVerifier
	logger   *slog.Logger
}

// NewWebhookHandler constructs WebhookHandler.
func NewWebhookHandler(facade PaymentFacade, verifier pkgAuth.WebhookVerifier, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{facade: facade, verifier: verifier, logger: logger}
}

// Payment handles POST /api/payments/webhook.
func (h *WebhookHandler) Payment(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil || len(body) > maxWebhookBody {
		c.Status(http.StatusBadRequest)
		return
	}
	if !h.verifier.Verify(body, c.GetHeader(SignatureHeader)) {
		h.logger.Warn("rejected webhook with invalid signature", slog.String("remote", c.ClientIP()))
		c.Status(http.StatusUnauthorized)
		return
	}

	var req dto.PaymentWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil || req.IntentID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "malformed payment report"})
		return
	}
	status := model.IntentStatus(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "unknown intent status"})
		return
	}

	outcome, err := h.facade.ConfirmPayment(c.Request.Context(), req.IntentID, status)
	if err != nil {
		writeError(c, err)
		return
	}
	h.logger.Info("payment report applied",
		slog.String("intent_id", req.IntentID),
		slog.String("status", req.Status),
		slog.String("outcome", outcome.String()),
	)
	if outcome == model.OutcomeNotFound {
		// unknown intents are answered 404 so the gateway redelivers
		c.JSON(http.StatusNotFound, dto.PaymentWebhookResponse{Outcome: outcome.String()})
		return
	}
	c.JSON(http.StatusOK, dto.PaymentWebhookResponse{Outcome: outcome.String()})
}
