package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"todoapp/internal/models"
	"todoapp/internal/store"
)

// Service handles registration, login and token checks.
type Service struct {
	store  store.Store
	hasher *PasswordHasher
	jwt    *JWTManager
}

// NewService creates a new Service.
func NewService(s store.Store, hasher *PasswordHasher, jwt *JWTManager) *Service {
	return &Service{store: s, hasher: hasher, jwt: jwt}
}

// Register creates an account and signs the new user in.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Login verifies credentials. Unknown e-mail and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("invalid email or password: %w", models.ErrUnauthorized)
		}
		return nil, err
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, fmt.Errorf("invalid email or password: %w", models.ErrUnauthorized)
	}

	return s.issue(user)
}

// Authenticate validates a bearer token and returns its claims.
func (s *Service) Authenticate(token string) (*Claims, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrUnauthorized)
	}
	return claims, nil
}

// Me returns the user a token was issued to. A deleted account is reported as unauthorized.
func (s *Service) Me(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("user no longer exists: %w", models.ErrUnauthorized)
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) issue(user *models.User) (*models.AuthResponse, error) {
	token, expires, err := s.jwt.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &models.AuthResponse{Token: token, Expires: expires, User: *user}, nil
}
