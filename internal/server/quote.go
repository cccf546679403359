package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	quotedomain "github.com/smallbiznis/quotepilot/internal/quote/domain"
)

type createQuoteRequest struct {
	Email     string        `json:"email"`
	TeamSize  numericString `json:"team_size"`
	Pack      string        `json:"pack"`
	PromoCode string        `json:"promo_code"`
}

func (s *Server) CreateQuote(c *gin.Context) {
	var req createQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.quoteSvc.Create(c.Request.Context(), quotedomain.CreateRequest{
		Email:     req.Email,
		Pack:      req.Pack,
		TeamSize:  req.TeamSize.Int64(1),
		PromoCode: req.PromoCode,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
