package transport

import (
	"errors"
	"net/http"

	"toko-online/internal/domain"
	"toko-online/internal/middleware"

	"go.uber.org/zap"
)

// Response is the body of every successful API response
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func respond(w http.ResponseWriter, status int, message string, data interface{}) {
	middleware.RespondWithJSON(w, status, Response{Message: message, Data: data})
}

// statusFor maps a domain error kind to its HTTP status
func statusFor(kind error) int {
	switch kind {
	case domain.ErrValidation,
		domain.ErrConflict,
		domain.ErrProductNotFound,
		domain.ErrInsufficientStock,
		domain.ErrInvalidState:
		return http.StatusBadRequest
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError writes the error envelope for err. Unknown errors
// are logged and reported as a generic 500.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		status := statusFor(domainErr.Kind)
		if status == http.StatusInternalServerError {
			logger.Warn("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		}
		middleware.RespondWithError(w, status, domainErr.Message)
		return
	}

	logger.Error("Unexpected error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
}

// respondWithDecodeError reports a body that failed to decode or validate
func respondWithDecodeError(w http.ResponseWriter, err error) {
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

func principalFrom(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
	}
	return principal, ok
}
