package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	appLogger "github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/logger"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// AccessTokenAuthenticator verifies a bearer access token.
type AccessTokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.TokenClaims, error)
}

// Authenticate binds the caller identity when a valid bearer access token is presented.
// Missing, malformed, invalid or revoked tokens leave the request anonymous.
func Authenticate(validator AccessTokenAuthenticator, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || validator == nil {
			c.Next()
			return
		}

		claims, err := validator.Authenticate(c.Request.Context(), token)
		if err != nil {
			appLogger.WithContext(c.Request.Context(), log).Debug("bearer token rejected", zap.Error(err))
			c.Next()
			return
		}

		setAuthenticated(c, claims)
		c.Next()
	}
}

// RequireAuthenticated rejects anonymous callers.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerFrom(c).IsAnonymous() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "authentication required"))
			return
		}
		c.Next()
	}
}

// RequireRoles asks the authorizer whether the caller holds one of the roles.
func RequireRoles(authorizer port.Authorizer, roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerFrom(c)
		if caller.IsAnonymous() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "authentication required"))
			return
		}

		if decision := authorizer.Authorize(c.Request.Context(), caller, roles); !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
