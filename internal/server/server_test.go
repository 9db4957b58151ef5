package server

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"toko-online/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type fakeDB struct {
	status string
}

func (f fakeDB) DB() *sql.DB { return nil }

func (f fakeDB) Health() map[string]string { return map[string]string{"status": f.status} }

func (f fakeDB) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: "0", Env: "production"},
		JWT:       config.JWTConfig{Secret: "test-secret", Expiry: time.Hour},
		Upload:    config.UploadConfig{URLPrefix: "/uploads", MaxBytes: 1 << 20},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}},
		RateLimit: config.RateLimitConfig{Requests: 2, Window: time.Minute},
	}
}

func newTestRouter(t *testing.T, dbStatus string) (http.Handler, afero.Fs) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	uploads := afero.NewMemMapFs()
	return NewRouter(testConfig(), zap.NewNop(), fakeDB{status: dbStatus}, redisClient, uploads), uploads
}

func TestHealthReportsDatabaseStatus(t *testing.T) {
	for status, code := range map[string]int{"up": http.StatusOK, "down": http.StatusServiceUnavailable} {
		router, _ := newTestRouter(t, status)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		if w.Code != code {
			t.Errorf("db %s: status = %d, want %d", status, w.Code, code)
		}
	}
}

func TestUploadsAreServed(t *testing.T) {
	router, uploads := newTestRouter(t, "up")
	afero.WriteFile(uploads, "/123-pen.png", []byte("png-bytes"), 0o644)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/123-pen.png", nil))
	if w.Code != http.StatusOK || w.Body.String() != "png-bytes" {
		t.Errorf("status = %d body = %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/missing.png", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing upload: status = %d, want 404", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, "up")

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/orders/checkout"},
		{http.MethodGet, "/api/orders/my-orders"},
		{http.MethodDelete, "/api/orders/7f9c1a52-2f1e-4c56-9d3b-0b8f5b1c2d3e/cancel"},
		{http.MethodPost, "/api/products"},
		{http.MethodGet, "/api/auth/me"},
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(route.method, route.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", route.method, route.path, w.Code)
		}
	}
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	router, _ := newTestRouter(t, "up")

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{}`))
		req.RemoteAddr = "10.1.1.1:4000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes[i] = w.Code
	}

	if codes[0] != http.StatusBadRequest || codes[1] != http.StatusBadRequest || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [400 400 429]", codes)
	}
}

func TestCORSHeadersOnAPI(t *testing.T) {
	router, _ := newTestRouter(t, "up")

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
