// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/library-backend/internal/config"
	"github.com/javajoker/library-backend/internal/i18n"
	"github.com/javajoker/library-backend/internal/models"
	"github.com/javajoker/library-backend/internal/repository"
	"github.com/javajoker/library-backend/internal/utils"
)

type AuthService struct {
	users repository.UserStore
	cfg   config.JWTConfig
	log   logrus.FieldLogger
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"` // in seconds
}

func NewAuthService(users repository.UserStore, cfg config.JWTConfig, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		users: users,
		cfg:   cfg,
		log:   log,
	}
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(utils.GetValidationErrors(err))
	}

	// Find user by email
	user, err := s.users.FindUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidCredentialsError()
		}
		s.log.WithError(err).WithField("operation", "Login").Error("Failed to look up user")
		return nil, infrastructureError(err)
	}

	// Verify password before revealing the account status
	if err := user.CheckPassword(req.Password); err != nil {
		return nil, invalidCredentialsError()
	}
	if !user.IsActive() {
		return nil, accountInactiveError()
	}

	// Update last login time
	now := time.Now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login time")
	} else {
		user.LastLoginAt = &now
	}

	accessToken, err := utils.GenerateJWT(user.ID, user.Email, user.Roles(), s.cfg.AccessTokenTTL)
	if err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("Failed to sign access token")
		return nil, infrastructureError(fmt.Errorf("failed to generate access token: %w", err))
	}

	s.log.WithField("user_id", user.ID).Info("User logged in")

	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   s.cfg.AccessTokenTTL * 3600, // Convert hours to seconds
	}, nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, i18n.KeyUserNotFound)
		}
		s.log.WithError(err).WithFields(logrus.Fields{"operation": "Me", "user_id": userID}).Error("Failed to load user")
		return nil, infrastructureError(err)
	}
	return user, nil
}
