package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

var errInvalidJSON = fmt.Errorf("%w: invalid json body", domain.ErrValidation)

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNumberTaken):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает JSON {"error": ...}. Детали 5xx ошибок остаются в логах.
func (s *Server) writeError(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(log.Fields{
			"request_id": c.GetString(requestIDKey),
			"route":      c.FullPath(),
		}).Error("request failed")
		c.JSON(status, gin.H{
			"error":      http.StatusText(status),
			"request_id": c.GetString(requestIDKey),
		})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": domain.Kind(err)})
}
