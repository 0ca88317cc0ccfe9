package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"

	"github.com/google/uuid"

	"dbmlviewer/internal/models"
	"dbmlviewer/internal/repositories"
	"dbmlviewer/internal/utils"
)

const minPasswordLength = 8

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

// SessionStore tracks issued token ids and revocations.
type SessionStore interface {
	StoreSession(ctx context.Context, jti string, userID string) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	Blacklist(ctx context.Context, jti string) error
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"-"`
}

type AuthService struct {
	userRepo UserRepository
	sessions SessionStore
	secrets  utils.Secrets
}

func NewAuthService(userRepo UserRepository, sessions SessionStore, secrets utils.Secrets) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		sessions: sessions,
		secrets:  secrets,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = utils.NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid email", ErrInvalidRequest)
	}
	if len(password) < minPasswordLength {
		return nil, nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRequest, minPasswordLength)
	}

	existing, err := s.userRepo.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, ErrUserExists
	}

	hashedPassword, err := utils.Hash(password)
	if err != nil {
		return nil, nil, err
	}
	user := &models.User{Email: email, PasswordHash: string(hashedPassword)}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return nil, nil, ErrUserExists
		}
		return nil, nil, err
	}

	tokens, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.userRepo.FindUserByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := utils.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.userRepo.TouchLastLogin(ctx, user.ID); err != nil {
		log.Printf("failed to record login for %s: %v", user.ID, err)
	}
	return s.issue(ctx, user.ID)
}

// Refresh rotates a refresh token. The presented token is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.verify(ctx, refreshToken, s.secrets.Refresh)
	if err != nil {
		return nil, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	if err := s.sessions.Blacklist(ctx, claims.ID); err != nil {
		return nil, err
	}
	return s.issue(ctx, user.ID)
}

// Logout revokes the session of an access token. Both tokens of the pair
// share its jti.
func (s *AuthService) Logout(ctx context.Context, jti string) error {
	return s.sessions.Blacklist(ctx, jti)
}

// Authenticate validates an access token and returns its claims.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*utils.Claims, error) {
	return s.verify(ctx, accessToken, s.secrets.Access)
}

func (s *AuthService) verify(ctx context.Context, token string, secret []byte) (*utils.Claims, error) {
	claims, err := utils.VerifyJWT(token, secret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	revoked, err := s.sessions.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) issue(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	access, refresh, jti, err := utils.GenerateTokens(userID, s.secrets)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.StoreSession(ctx, jti, userID.String()); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
