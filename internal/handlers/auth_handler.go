package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"treebio-api/internal/models"
	"treebio-api/internal/store"
)

// RegisterRequest represents the registration payload
type RegisterRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ImageURL  string `json:"imageUrl"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token   string          `json:"token"`
	UserID  string          `json:"userId"`
	Email   string          `json:"email"`
	Profile *models.Profile `json:"profile"`
	Message string          `json:"message"`
}

// Register creates an identity with an empty profile and signs it in.
// POST /api/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request. Email and password are required.",
		})
		return
	}

	user, profile, err := h.Store.Register(c.Request.Context(), req.Email, req.Password, store.Onboarding{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		h.fail(c, err, "Failed to register")
		return
	}
	h.respondWithToken(c, http.StatusCreated, user, profile, "Registration successful")
}

// Login checks credentials, onboards the profile and issues a token.
// POST /api/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request. Email and password are required.",
		})
		return
	}

	user, err := h.Store.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err, "Failed to sign in")
		return
	}
	profile, err := h.Store.OnboardUser(c.Request.Context(), user, store.Onboarding{})
	if err != nil {
		h.fail(c, err, "Failed to load profile")
		return
	}
	h.respondWithToken(c, http.StatusOK, user, profile, "Login successful")
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user *models.User, profile *models.Profile, msg string) {
	token, err := h.Tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("token generation failed", "userId", user.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate token",
		})
		return
	}
	c.JSON(status, LoginResponse{
		Token:   token,
		UserID:  user.ID,
		Email:   user.Email,
		Profile: profile,
		Message: msg,
	})
}
