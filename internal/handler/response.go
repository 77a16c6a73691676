package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/triplens/service-trip-duration/internal/domain"
)

// fieldError is one failed constraint in a request body.
type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// bindingError reports a request body that failed shape or range validation.
func bindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]fieldError, len(verrs))
		for i, fe := range verrs {
			details[i] = fieldError{Field: fe.Namespace(), Rule: fe.Tag(), Param: fe.Param()}
		}
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": details})
		return
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "request body must be valid JSON: " + err.Error()})
}

// respondError maps a use-case error onto a response without leaking internals.
func respondError(c *gin.Context, err error, opaque string) {
	_ = c.Error(err)
	switch {
	case domain.IsClientError(err):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": opaque})
	}
}
