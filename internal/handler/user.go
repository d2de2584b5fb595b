package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sharewheels/internal/domain"
	"sharewheels/internal/service"
)

// TokenIssuer signs access tokens for registered users.
type TokenIssuer interface {
	GenerateToken(userID string, role domain.UserRole) (string, error)
}

// UserHandler handles HTTP requests for users.
type UserHandler struct {
	userService *service.UserService
	tokens      TokenIssuer
	log         logrus.FieldLogger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService, tokens TokenIssuer, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{
		userService: userService,
		tokens:      tokens,
		log:         log,
	}
}

// RegisterUserRequest is the HTTP request body for registering a user.
type RegisterUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"` // driver or passenger
}

// RegisterUserResponse is the HTTP response for registering a user.
type RegisterUserResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

// Register handles POST /v1/users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), service.RegisterRequest{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Role:  req.Role,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusCreated, RegisterUserResponse{
		User:  newUserResponse(user),
		Token: token,
	})
}

// GetUser handles GET /v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusOK, newUserResponse(user))
}
