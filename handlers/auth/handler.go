package auth

import (
	"time"

	"github.com/xuebang/xuebang-api/utils/auth"
	"github.com/xuebang/xuebang-api/utils/middleware"
	"github.com/xuebang/xuebang-api/utils/validation"
	"gorm.io/gorm"
)

// AuthHandler handles registration, login and token management
type AuthHandler struct {
	db         *gorm.DB
	jwtManager *auth.JWTManager
	protector  *middleware.BruteForceProtector
	validator  *validation.Validator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, jwtManager *auth.JWTManager, protector *middleware.BruteForceProtector) *AuthHandler {
	return &AuthHandler{
		db:         db,
		jwtManager: jwtManager,
		protector:  protector,
		validator:  validation.NewValidator(),
	}
}

// UserResponse is the public shape of a user
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
