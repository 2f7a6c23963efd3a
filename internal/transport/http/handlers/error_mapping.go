package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/security"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/transport/http/middleware"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// commonErrorCases apply to every auth endpoint after the endpoint specific ones.
var commonErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid username or password"},
	{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
	{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid token"},
	{Err: usecase.ErrAccountDisabled, Status: http.StatusForbidden, Message: "account is disabled"},
	{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "insufficient permissions"},
	{Err: usecase.ErrRateLimiterUnavailable, Status: http.StatusServiceUnavailable, Message: "authentication temporarily unavailable"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// Rate limit rejections always render as problem details. Unmapped errors are attached to the
// gin context so the access log records them.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var limited *usecase.RateLimitExceededError
	if errors.As(err, &limited) {
		middleware.AbortRateLimited(c, limited.RetryAfter)
		return
	}

	for _, set := range [][]ErrorCase{cases, commonErrorCases} {
		for _, cs := range set {
			if cs.Err == nil || !errors.Is(err, cs.Err) {
				continue
			}
			resp := NewErrorResponse(c, cs.Message)
			var violation *security.PasswordValidationError
			if errors.As(err, &violation) {
				resp.Error = violation.Message
				resp.Code = violation.Code
			}
			c.AbortWithStatusJSON(cs.Status, resp)
			return
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}
