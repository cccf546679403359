package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/quotepilot/internal/subscription/domain"
)

type createSubscriptionRequest struct {
	CustomerID    string        `json:"customerId"`
	TeamSize      numericString `json:"team_size"`
	DocsPerMonth  numericString `json:"docs_per_month"`
	TrialStartISO string        `json:"trial_start_iso"`
}

type createSubscriptionResponse struct {
	OK             bool   `json:"ok"`
	SubscriptionID string `json:"subscriptionId"`
	TrialEnd       int64  `json:"trial_end"`
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.subscriptions.Create(c.Request.Context(), subscriptiondomain.CreateRequest{
		CustomerID:    req.CustomerID,
		TeamSize:      req.TeamSize.Int64(1),
		DocsPerMonth:  req.DocsPerMonth.Int64(0),
		TrialStartISO: req.TrialStartISO,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, createSubscriptionResponse{
		OK:             true,
		SubscriptionID: result.SubscriptionID,
		TrialEnd:       result.TrialEnd,
	})
}
