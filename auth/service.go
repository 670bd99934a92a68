package auth

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidCredentials signals wrong email or password.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Service handles authentication business logic: credential verification,
// token issuance and token-to-actor resolution.
type Service struct {
	repo   Repository
	tokens *TokenService
}

// LoginResult bundles the token and the collaborator returned after a
// successful login.
type LoginResult struct {
	Token        string
	Collaborator Collaborator
}

// NewService creates a new authentication service.
func NewService(repo Repository, tokens *TokenService) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Login verifies credentials and issues a session token. A wrong password
// and an unknown email are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if req.Email == "" || req.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	c, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrCollaboratorNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	ok, err := VerifyPassword(c.PasswordHash, req.Password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: verify password: %w", err)
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(c)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{Token: token, Collaborator: c}, nil
}

// Authenticate resolves a session token into an actor, including the
// employee number from the backing record. Token errors pass through
// unchanged so callers can distinguish expiry from tampering.
func (s *Service) Authenticate(ctx context.Context, token string) (Actor, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return Actor{}, err
	}

	c, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrCollaboratorNotFound) {
			// Account deleted after issuance; the token no longer maps
			// to an identity.
			return Actor{}, ErrTokenInvalid
		}
		return Actor{}, err
	}

	return Actor{UserID: c.ID, Role: c.Role, EmployeeNumber: c.EmployeeNumber}, nil
}
