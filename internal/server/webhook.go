package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	webhookdomain "github.com/smallbiznis/quotepilot/internal/webhook/domain"
)

const (
	maxWebhookBodyBytes   = 1 << 20
	stripeSignatureHeader = "Stripe-Signature"
)

// StripeWebhook hands the untouched body to the verifier; it must not be
// parsed before the signature is checked.
func (s *Server) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, fmt.Errorf("%w: read body: %v", webhookdomain.ErrInvalidPayload, err))
		return
	}

	outcome, err := s.webhookSvc.Ingest(c.Request.Context(), body, c.GetHeader(stripeSignatureHeader))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "status": outcome})
}
