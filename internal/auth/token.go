package auth

import (
	"errors"
	"fmt"
	"time"

	"toko-online/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenExpiry is the validity of a session token
const DefaultTokenExpiry = 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

// Claims represents the JWT claims
type Claims struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies signed session tokens
type TokenManager interface {
	Issue(user *domain.User) (string, time.Time, error)
	Verify(token string) (domain.Principal, error)
}

type jwtManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewJWTManager creates an HS256 TokenManager
func NewJWTManager(secret string, expiry time.Duration) TokenManager {
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &jwtManager{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

// Issue signs a token embedding the user ID and role
func (m *jwtManager) Issue(user *domain.User) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.expiry)

	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify parses the token and returns the principal it names
func (m *jwtManager) Verify(tokenString string) (domain.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, ErrTokenExpired
		}
		return domain.Principal{}, ErrInvalidToken
	}

	if !token.Valid || claims.UserID == uuid.Nil {
		return domain.Principal{}, ErrInvalidToken
	}

	switch claims.Role {
	case domain.RoleCustomer, domain.RoleAdmin:
	default:
		return domain.Principal{}, ErrInvalidToken
	}

	return domain.Principal{UserID: claims.UserID, Role: claims.Role}, nil
}
