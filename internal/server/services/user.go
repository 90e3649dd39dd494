// Package services contains server-side business logic. This file implements
// UserService: registration, login, and session-token verification.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/cryptox"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/users"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string
	User  models.PublicUser
}

// UserService provides authentication-related operations.
type UserService struct {
	users    users.Repository
	tokens   *auth.TokenIssuer
	hashCost int
	burner   *cryptox.Burner
}

// NewUserService wires the service. hashCost of 0 selects cryptox.DefaultCost.
func NewUserService(repo users.Repository, tokens *auth.TokenIssuer, hashCost int) *UserService {
	return &UserService{users: repo, tokens: tokens, hashCost: hashCost, burner: cryptox.NewBurner(hashCost)}
}

// NormalizeEmail lower-cases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and returns a session for it.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)

	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", common.ErrorValidation)
	case email == "":
		return nil, fmt.Errorf("%w: email is required", common.ErrorValidation)
	case !emailPattern.MatchString(email):
		return nil, fmt.Errorf("%w: email is not a valid address", common.ErrorValidation)
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, MinPasswordLength)
	}

	hash, err := cryptox.HashPassword(password, s.hashCost)
	if err != nil {
		if errors.Is(err, cryptox.ErrTooLong) {
			return nil, fmt.Errorf("%w: password is too long", common.ErrorValidation)
		}
		return nil, err
	}

	u, err := s.users.Create(ctx, &models.User{Name: name, Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("%w: email is already registered", common.ErrorAlreadyExists)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.session(u)
}

// Login verifies credentials. An unknown email and a wrong password are
// indistinguishable to the caller, in both result and cost.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burner.Compare(password)
			return nil, common.ErrorInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := cryptox.CheckPassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, cryptox.ErrMismatch) {
			return nil, common.ErrorInvalidCredentials
		}
		return nil, err
	}

	return s.session(u)
}

// Authenticate returns the user id carried by a valid token. Every failure
// wraps common.ErrorUnauthorized.
func (s *UserService) Authenticate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", common.ErrorUnauthorized)
	}
	id, err := s.tokens.UserIDFromToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	return id, nil
}

// Me returns the public profile of userID. A user that no longer exists is
// reported as unauthorized.
func (s *UserService) Me(ctx context.Context, userID string) (*models.PublicUser, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", common.ErrorUnauthorized)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	p := u.Public()
	return &p, nil
}

func (s *UserService) session(u *models.User) (*AuthResult, error) {
	token, err := s.tokens.GenerateToken(u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: u.Public()}, nil
}
