package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/utils/auth"
	"github.com/xuebang/xuebang-api/utils/response"
)

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // in seconds
}

// Login handles user login with brute force lockout
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	ctx := c.Context()

	if h.protector != nil {
		if locked, until := h.protector.IsLocked(ctx, req.Email); locked {
			return response.AccountLocked(c, "Account temporarily locked due to failed login attempts", until)
		}
	}

	var user model.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		// Record the failure even when the account does not exist, so
		// enumeration attempts lock out the same way.
		if h.protector != nil {
			h.protector.RecordFailure(ctx, req.Email)
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		if h.protector != nil {
			h.protector.RecordFailure(ctx, req.Email)
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if !user.Active {
		return response.Forbidden(c, "Account is disabled")
	}

	if h.protector != nil {
		h.protector.RecordSuccess(ctx, req.Email)
	}

	accessToken, err := h.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate access token")
	}

	refreshToken, err := h.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate refresh token")
	}

	return response.Success(c, LoginResponse{
		User: UserResponse{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			Role:      user.Role,
			CreatedAt: user.CreatedAt,
		},
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    24 * 60 * 60,
	})
}
