package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cityServiceDesk/models"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: "validation", Message: message})
}

// handleServiceError maps desk error kinds onto HTTP statuses.
func handleServiceError(c *gin.Context, err error) {
	var (
		code int
		kind string
	)
	switch {
	case errors.Is(err, models.ErrValidation):
		code, kind = http.StatusBadRequest, "validation"
	case errors.Is(err, models.ErrNotFound):
		code, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrConflict):
		code, kind = http.StatusConflict, "conflict"
	case errors.Is(err, models.ErrAuthorization):
		code, kind = http.StatusForbidden, "forbidden"
		if principal(c) == nil {
			code, kind = http.StatusUnauthorized, "unauthenticated"
		}
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal server error"})
		return
	}
	c.JSON(code, errorBody{Error: kind, Message: err.Error()})
}
