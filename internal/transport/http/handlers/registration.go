package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/usecase"
)

// RegistrationHandler exposes self-service account creation.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
}

func NewRegistrationHandler(registration *usecase.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// Register creates an account and returns its summary.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username, email, password and role are required"))
		return
	}

	user, err := h.registration.Register(c.Request.Context(), usecase.RegistrationInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidUsername, Status: http.StatusBadRequest, Message: usecase.ErrInvalidUsername.Error()},
			{Err: usecase.ErrInvalidEmail, Status: http.StatusBadRequest, Message: "email address is invalid"},
			{Err: usecase.ErrInvalidRole, Status: http.StatusBadRequest, Message: "role must be one of STUDENT, TEACHER, ADMIN, COORDINATOR"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrUsernameTaken, Status: http.StatusBadRequest, Message: "username already registered"},
			{Err: usecase.ErrEmailTaken, Status: http.StatusBadRequest, Message: "email already registered"},
		}, http.StatusInternalServerError, "failed to register user")
		return
	}

	c.JSON(http.StatusCreated, newUserSummary(*user))
}
