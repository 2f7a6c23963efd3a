package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/transport/http/middleware"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/usecase"
)

const resetRequestedMessage = "If an account exists for that email, a reset link has been sent."

// PasswordHandler exposes the password reset endpoints.
type PasswordHandler struct {
	reset *usecase.PasswordResetService
}

func NewPasswordHandler(reset *usecase.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{reset: reset}
}

// RequestReset answers identically for known and unknown emails.
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	if err := h.reset.RequestReset(c.Request.Context(), req.Email, middleware.ClientKey(c)); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to process password reset")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: resetRequestedMessage})
}

// ConfirmReset redeems a reset token and sets the new password.
func (h *PasswordHandler) ConfirmReset(c *gin.Context) {
	var req PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token, newPassword and confirmPassword are required"))
		return
	}

	err := h.reset.ConfirmReset(c.Request.Context(), req.Token, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPasswordMismatch, Status: http.StatusBadRequest, Message: "passwords do not match"},
			{Err: usecase.ErrResetTokenInvalid, Status: http.StatusBadRequest, Message: "invalid password reset token"},
			{Err: usecase.ErrTokenAlreadyUsed, Status: http.StatusBadRequest, Message: "password reset token already used"},
			{Err: usecase.ErrResetTokenExpired, Status: http.StatusBadRequest, Message: "password reset token expired"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrSamePassword, Status: http.StatusBadRequest, Message: "new password must differ from the current password"},
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password has been reset"})
}
