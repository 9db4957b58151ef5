package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"toko-online/internal/auth"
	"toko-online/internal/domain"
	"toko-online/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const invalidCredentialsMessage = "invalid email or password"

// AuthService defines the interface for account and session logic
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	VerifyToken(token string) (domain.Principal, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Session is the result of a successful login
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

type authService struct {
	users  repository.UserRepository
	hasher auth.PasswordHasher
	tokens auth.TokenManager
	logger *zap.Logger
}

// NewAuthService creates a new instance of AuthService
func NewAuthService(
	users repository.UserRepository,
	hasher auth.PasswordHasher,
	tokens auth.TokenManager,
	logger *zap.Logger,
) AuthService {
	return &authService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// NormalizeEmail is applied before every lookup and insert so that
// case and whitespace variants of one address collide.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, domain.NewError(domain.ErrValidation, "name, email and password are required")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, domain.NewError(domain.ErrConflict, "email is already registered")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, domain.NewError(domain.ErrConflict, "email is already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login never reveals whether the email or the password was wrong
func (s *authService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.NewError(domain.ErrValidation, "email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.NewError(domain.ErrUnauthorized, invalidCredentialsMessage)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		s.logger.Warn("Stored password hash could not be verified",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return nil, domain.NewError(domain.ErrUnauthorized, invalidCredentialsMessage)
	}
	if !ok {
		return nil, domain.NewError(domain.ErrUnauthorized, invalidCredentialsMessage)
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *authService) VerifyToken(token string) (domain.Principal, error) {
	principal, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return domain.Principal{}, domain.NewError(domain.ErrUnauthorized, "token expired")
		}
		return domain.Principal{}, domain.NewError(domain.ErrUnauthorized, "invalid token")
	}
	return principal, nil
}

func (s *authService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.NewError(domain.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
