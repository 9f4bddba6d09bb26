package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "signup-gateway/internal/common/errors"
)

// renderError maps the error taxonomy onto HTTP statuses and always sends
// the StandardError as the body, so the page can show the Dutch message
// and decide on retry from the retryable flag.
func renderError(c *gin.Context, err error) {
	se := apperrors.AsStandard(err)
	if se == nil {
		se = apperrors.NewBackendFailedError(http.StatusInternalServerError, err.Error())
	}

	status := http.StatusBadGateway
	switch se.Code {
	case apperrors.ErrCodeAuthFailed, apperrors.ErrCodeMissingUsername:
		status = http.StatusUnauthorized
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeValidationFailed:
		status = http.StatusUnprocessableEntity
	case apperrors.ErrCodeMutationPending:
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{"error": se})
}
