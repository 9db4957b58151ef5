package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"toko-online/internal/auth"
	"toko-online/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// tokenVerifier adapts auth.TokenManager to the middleware's verifier
type tokenVerifier struct {
	tokens auth.TokenManager
}

func (v tokenVerifier) VerifyToken(token string) (domain.Principal, error) {
	principal, err := v.tokens.Verify(token)
	if err != nil {
		return domain.Principal{}, domain.NewError(domain.ErrUnauthorized, "invalid token")
	}
	return principal, nil
}

func newAuthHandler(expiry time.Duration) (http.Handler, auth.TokenManager, *domain.Principal) {
	tokens := auth.NewJWTManager(testSecret, expiry)
	seen := &domain.Principal{}

	handler := AuthMiddleware(tokenVerifier{tokens: tokens}, zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r.Context())
			if !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			*seen = principal
			w.WriteHeader(http.StatusOK)
		}))

	return handler, tokens, seen
}

func TestProperty_ProtectedEndpointsRejectMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without authorization header are rejected", prop.ForAll(
		func(path string, method string) bool {
			handler, _, _ := newAuthHandler(time.Hour)

			req := httptest.NewRequest(method, "/"+path, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.Identifier(),
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ValidTokensCarryPrincipal(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a valid bearer token reaches the handler with its principal", prop.ForAll(
		func(role domain.Role) bool {
			handler, tokens, seen := newAuthHandler(time.Hour)
			user := &domain.User{ID: uuid.New(), Role: role}

			token, _, err := tokens.Issue(user)
			if err != nil {
				return false
			}

			req := httptest.NewRequest("GET", "/api/orders/my-orders", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusOK && seen.UserID == user.ID && seen.Role == role
		},
		gen.OneConstOf(domain.RoleCustomer, domain.RoleAdmin),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestExpiredTokenIsRejected(t *testing.T) {
	handler, _, _ := newAuthHandler(time.Hour)

	claims := auth.Claims{
		UserID: uuid.New(),
		Role:   domain.RoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-25 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestMalformedAuthorizationHeaders(t *testing.T) {
	handler, tokens, _ := newAuthHandler(time.Hour)
	token, _, _ := tokens.Issue(&domain.User{ID: uuid.New(), Role: domain.RoleCustomer})

	headers := []string{
		token,
		"Basic " + token,
		"Bearer",
		"Bearer ",
		"Bearer not.a.jwt",
	}

	for _, header := range headers {
		req := httptest.NewRequest("GET", "/api/orders/my-orders", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
			continue
		}

		var response ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil || response.Error.Message == "" {
			t.Errorf("header %q: missing error envelope", header)
		}
	}
}
