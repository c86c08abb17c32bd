package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/garyjia/invoice-ai/internal/apperror"
	"github.com/garyjia/invoice-ai/internal/auth"
	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/garyjia/invoice-ai/internal/repository"
	"github.com/garyjia/invoice-ai/pkg/utils"
	"go.uber.org/zap"
)

const minPasswordLength = 6

// UserView is the public part of an account
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AuthResult is returned by register and login
type AuthResult struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

// AuthService registers users and issues bearer tokens
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenIssuer
	dummyHash string
	logger    *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users repository.UserRepository, tokens *auth.TokenIssuer, logger *zap.Logger) (*AuthService, error) {
	// compared against on unknown emails so both login failures cost one bcrypt check
	dummy, err := auth.HashPassword("invoice-ai-unknown-account")
	if err != nil {
		return nil, err
	}
	return &AuthService{users: users, tokens: tokens, dummyHash: dummy, logger: logger}, nil
}

// Register creates an account and signs it in
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = utils.NormalizeEmail(email)
	name = utils.SanitizeString(name)

	if email == "" || password == "" || name == "" {
		return nil, apperror.Validation("Email, password and name are required")
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, apperror.Validation("Invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, apperror.Validation("Password must be at least 6 characters")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Persistence("Failed to register user", err)
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Email: email, PasswordHash: hash, Name: name}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.ErrEmailExists
		}
		return nil, apperror.Persistence("Failed to register user", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return s.signIn(user)
}

// Login checks credentials. Unknown emails and wrong passwords fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.Validation("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Persistence("Failed to log in", err)
	}
	if user == nil {
		auth.CheckPassword(s.dummyHash, password)
		return nil, apperror.ErrInvalidCredentials
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		s.logger.Warn("Login rejected", zap.String("user_id", user.ID))
		return nil, apperror.ErrInvalidCredentials
	}

	return s.signIn(user)
}

func (s *AuthService) signIn(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token: token,
		User:  UserView{ID: user.ID, Email: user.Email, Name: user.Name},
	}, nil
}
