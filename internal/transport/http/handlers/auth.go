package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/transport/http/middleware"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/usecase"
)

// AuthHandler exposes login, token and session endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login authenticates username and password and returns a token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username and password are required"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Username:   strings.TrimSpace(req.Username),
		Password:   req.Password,
		RememberMe: req.RememberMe,
		ClientKey:  middleware.ClientKey(c),
	})
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to login")
		return
	}

	user := newUserSummary(result.Principal)
	c.JSON(http.StatusOK, newTokenResponse(result.Tokens, &user))
}

// Refresh exchanges a refresh token for a new pair. The presented token is consumed.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refreshToken is required"))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(pair, nil))
}

// Logout revokes the bearer access token and the optional refresh token in the body.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid logout payload"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), claims, strings.TrimSpace(req.RefreshToken)); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to logout")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// LogoutAll deletes every refresh token of the caller.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	count, err := h.auth.LogoutAll(c.Request.Context(), claims)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to logout")
		return
	}

	c.JSON(http.StatusOK, RevokedResponse{Message: "logged out from all sessions", Revoked: count})
}

// Me returns the identity bound to the bearer token.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, callerSummary(middleware.CallerFrom(c)))
}

// RevokeUserSessions lets an administrator sign a user out everywhere.
func (h *AuthHandler) RevokeUserSessions(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user id is required"))
		return
	}

	count, err := h.auth.RevokeUserSessions(c.Request.Context(), middleware.CallerFrom(c), userID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}

	c.JSON(http.StatusOK, RevokedResponse{Message: "sessions revoked", Revoked: count})
}
