package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	promotiondomain "github.com/smallbiznis/quotepilot/internal/promotion/domain"
)

type promoLookupResponse struct {
	OK     bool                    `json:"ok"`
	Found  bool                    `json:"found"`
	Coupon *promotiondomain.Coupon `json:"coupon,omitempty"`
}

func (s *Server) PromoLookup(c *gin.Context) {
	result, err := s.promotionSvc.Lookup(c.Request.Context(), c.Query("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, promoLookupResponse{
		OK:     true,
		Found:  result.Found,
		Coupon: result.Coupon,
	})
}
