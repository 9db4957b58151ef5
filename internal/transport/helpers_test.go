package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"toko-online/internal/domain"
	"toko-online/internal/middleware"
	"toko-online/internal/service"

	"github.com/google/uuid"
)

func asPrincipal(principal domain.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), principal)))
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, w.Body.String())
	}
	return env
}

type stubCatalog struct {
	list   func(ctx context.Context) ([]*domain.Product, error)
	get    func(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	create func(ctx context.Context, p domain.Principal, f service.ProductFields) (*domain.Product, error)
	update func(ctx context.Context, p domain.Principal, id uuid.UUID, f service.ProductFields) (*domain.Product, error)
	delete func(ctx context.Context, p domain.Principal, id uuid.UUID) error
}

func (s *stubCatalog) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.list(ctx)
}

func (s *stubCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.get(ctx, id)
}

func (s *stubCatalog) CreateProduct(ctx context.Context, p domain.Principal, f service.ProductFields) (*domain.Product, error) {
	return s.create(ctx, p, f)
}

func (s *stubCatalog) UpdateProduct(ctx context.Context, p domain.Principal, id uuid.UUID, f service.ProductFields) (*domain.Product, error) {
	return s.update(ctx, p, id, f)
}

func (s *stubCatalog) DeleteProduct(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	return s.delete(ctx, p, id)
}

type stubCheckout struct {
	checkout func(ctx context.Context, userID uuid.UUID, items []domain.CartItem) (*domain.Order, error)
	list     func(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	cancel   func(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
}

func (s *stubCheckout) Checkout(ctx context.Context, userID uuid.UUID, items []domain.CartItem) (*domain.Order, error) {
	return s.checkout(ctx, userID, items)
}

func (s *stubCheckout) ListOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	return s.list(ctx, userID)
}

func (s *stubCheckout) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	return s.cancel(ctx, userID, orderID)
}
