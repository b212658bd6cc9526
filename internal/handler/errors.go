package handler

import (
	"errors"
	"net/http"

	"pharmatrack/internal/ledger"
	"pharmatrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeServiceError maps the ledger failure taxonomy onto HTTP statuses.
// Anything outside the taxonomy is a server fault.
func writeServiceError(c *gin.Context, err error) {
	var insufficient *ledger.InsufficientStockError

	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, insufficient.Error()))
	case errors.Is(err, ledger.ErrInsufficientStock):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	case errors.Is(err, ledger.ErrAlreadyFinalized):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	}
}
