package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/studyroomhq/studyroom-chat/internal/repository"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service implements account registration and login. It is a collaborator of
// the chat core, not part of it: the websocket path only consumes the
// authenticated username.
type Service struct {
	repo   repository.Repository
	tokens *TokenManager
}

// NewService creates the auth service.
func NewService(repo repository.Repository, tokens *TokenManager) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if _, err := s.repo.CreateUser(ctx, username, string(hash)); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if user.PasswordHash == "" {
		// Username was auto-created by a websocket join and never registered.
		return "", ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	return s.tokens.Generate(username)
}

// UsernameFromToken resolves the authenticated username behind a token,
// empty when the token is invalid.
func (s *Service) UsernameFromToken(token string) string {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return ""
	}
	return claims.Username
}
