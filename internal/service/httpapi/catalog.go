package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type paymentIntentRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) listMenu(c *gin.Context) {
	items, err := s.menu.List(c.Request.Context())
	if err != nil {
		s.writeError(c, domain.BackendError("list menu", err))
		return
	}
	for i := range items {
		items[i] = items[i].WithDefaults()
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) createPaymentIntent(c *gin.Context) {
	var req paymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.RecordPaymentIntent("invalid")
		s.writeError(c, domain.ErrPaymentAmountInvalid)
		return
	}
	if err := domain.ValidatePaymentAmount(req.Amount); err != nil {
		s.metrics.RecordPaymentIntent("invalid")
		s.writeError(c, err)
		return
	}

	intent, err := s.payments.CreateIntent(c.Request.Context(), req.Amount, s.currency)
	if err != nil {
		s.metrics.RecordPaymentIntent("error")
		s.writeError(c, err)
		return
	}
	s.metrics.RecordPaymentIntent("ok")
	c.JSON(http.StatusOK, gin.H{"clientSecret": intent.ClientSecret})
}
