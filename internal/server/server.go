package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"toko-online/internal/auth"
	"toko-online/internal/config"
	"toko-online/internal/database"
	custommiddleware "toko-online/internal/middleware"
	"toko-online/internal/repository"
	"toko-online/internal/service"
	"toko-online/internal/storage"
	"toko-online/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer builds the router over the given store handles. The server
// owns db and redisClient from here on and releases them in Close.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) (*Server, error) {
	uploads, err := storage.NewDiskFs(cfg.Upload.Dir)
	if err != nil {
		return nil, err
	}

	router := NewRouter(cfg, logger, db, redisClient, uploads)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}, nil
}

// NewRouter wires repositories, services and handlers onto a chi router.
// Product images are written to and served from uploads.
func NewRouter(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client, uploads afero.Fs) http.Handler {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.Server.IsDevelopment()))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health()
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, map[string]interface{}{
			"status": http.StatusText(status),
			"db":     health,
		})
	})

	prefix := strings.TrimRight(cfg.Upload.URLPrefix, "/")
	router.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(afero.NewHttpFs(uploads).Dir("/"))))

	// Initialize repositories
	sqlDB := db.DB()
	userRepo := repository.NewUserRepository(sqlDB)
	productRepo := repository.NewProductRepository(sqlDB)
	orderRepo := repository.NewOrderRepository(sqlDB)
	txManager := repository.NewTxManager(sqlDB)

	// Initialize services
	images := storage.NewImageStore(uploads, prefix, cfg.Upload.MaxBytes)
	authService := service.NewAuthService(
		userRepo,
		auth.NewBcryptHasher(auth.BcryptCost),
		auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry),
		logger,
	)
	catalogService := service.NewCatalogService(productRepo, txManager, images, logger)
	checkoutService := service.NewCheckoutService(productRepo, orderRepo, txManager, logger)

	// Initialize handlers
	authMiddleware := custommiddleware.AuthMiddleware(authService, logger)
	authRateLimit := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "rate_limit:auth",
	}, logger)

	transport.NewAuthHandler(authService, logger).RegisterRoutes(router, authMiddleware, authRateLimit)
	transport.NewProductHandler(catalogService, cfg.Upload.MaxBytes, logger).RegisterRoutes(router, authMiddleware)
	transport.NewOrderHandler(checkoutService, logger).RegisterRoutes(router, authMiddleware)

	return router
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
