package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/quotepilot/internal/checkout/domain"
	"go.uber.org/zap"
)

// checkoutRequest is shared by the JSON endpoint and the direct redirect,
// which also accepts query strings and form posts. Checkout never rejects a
// request: fields that fail to decode keep their zero value and the service
// applies defaults.
type checkoutRequest struct {
	Email        string        `json:"email" form:"email"`
	TeamSize     numericString `json:"team_size" form:"team_size"`
	DocsPerMonth numericString `json:"docs_per_month" form:"docs_per_month"`
	Pack         string        `json:"pack" form:"pack"`
	PromoCode    string        `json:"promo_code" form:"promo_code"`
}

func (r checkoutRequest) toDomain() checkoutdomain.Request {
	return checkoutdomain.Request{
		Email:        r.Email,
		Pack:         r.Pack,
		TeamSize:     r.TeamSize.Int64(1),
		DocsPerMonth: r.DocsPerMonth.Int64(0),
		PromoCode:    r.PromoCode,
	}
}

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.log.Debug("checkout body not fully read, using defaults", zap.Error(err))
	}

	session, err := s.checkoutSvc.Build(c.Request.Context(), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}

func (s *Server) CreateCheckoutSessionDirect(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBind(&req); err != nil {
		s.log.Debug("checkout params not fully read, using defaults", zap.Error(err))
	}

	session, err := s.checkoutSvc.Build(c.Request.Context(), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Redirect(http.StatusSeeOther, session.URL)
}
