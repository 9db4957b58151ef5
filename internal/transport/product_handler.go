package transport

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"toko-online/internal/domain"
	"toko-online/internal/middleware"
	"toko-online/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const multipartMemory = 1 << 20

// ProductRequest is the JSON form of a product create or update. Price and
// stock accept numbers or numeric strings.
type ProductRequest struct {
	Name        *string      `json:"name" validate:"omitempty,max=255"`
	Description *string      `json:"description"`
	Price       *json.Number `json:"price"`
	Stock       *json.Number `json:"stock"`
}

// ProductHandler handles HTTP requests for the product catalog
type ProductHandler struct {
	catalog        service.CatalogService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, maxUploadBytes int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog:        catalog,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List returns every product, newest first
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	respond(w, http.StatusOK, "products retrieved", products)
}

// Get returns one product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "product retrieved", product)
}

// Create adds a product from a multipart form or a JSON body
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	fields, err := h.readFields(w, r)
	defer releaseUpload(r, fields)
	if err != nil {
		h.respondWithInputError(w, r, err)
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), principal, fields)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	respond(w, http.StatusCreated, "product created", product)
}

// Update applies a partial update to a product
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}

	fields, err := h.readFields(w, r)
	defer releaseUpload(r, fields)
	if err != nil {
		h.respondWithInputError(w, r, err)
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), principal, id, fields)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "product updated", product)
}

// Delete removes a product that no order references
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), principal, id); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "product deleted", nil)
}

func (h *ProductHandler) respondWithInputError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		middleware.RespondWithError(w, http.StatusBadRequest, "request body too large")
	case errors.Is(err, domain.ErrValidation):
		respondWithServiceError(w, r, h.logger, err)
	default:
		h.logger.Debug("Product request rejected", zap.Error(err))
		respondWithDecodeError(w, err)
	}
}

// readFields accepts multipart/form-data (with an optional "image" file)
// or a JSON body. Absent fields stay nil.
func (h *ProductHandler) readFields(w http.ResponseWriter, r *http.Request) (service.ProductFields, error) {
	var fields service.ProductFields

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req ProductRequest
		if err := middleware.DecodeAndValidate(r, &req); err != nil {
			return fields, err
		}
		fields.Name = req.Name
		fields.Description = req.Description
		return fields, parseNumbers(&fields, numberString(req.Price), numberString(req.Stock))
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return fields, err
	}

	form := r.MultipartForm.Value
	fields.Name = formValue(form, "name")
	fields.Description = formValue(form, "description")
	if err := parseNumbers(&fields, formValue(form, "price"), formValue(form, "stock")); err != nil {
		return fields, err
	}

	if files := r.MultipartForm.File["image"]; len(files) > 0 {
		file, err := files[0].Open()
		if err != nil {
			return fields, err
		}
		fields.Image = &service.ImageUpload{Filename: files[0].Filename, Content: file}
	}

	return fields, nil
}

// releaseUpload closes the uploaded file and removes multipart temp files
func releaseUpload(r *http.Request, fields service.ProductFields) {
	if fields.Image != nil {
		if closer, ok := fields.Image.Content.(io.Closer); ok {
			closer.Close()
		}
	}
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

func parseNumbers(fields *service.ProductFields, price, stock *string) error {
	if price != nil {
		parsed, err := service.ParsePrice(*price)
		if err != nil {
			return err
		}
		fields.Price = &parsed
	}
	if stock != nil {
		parsed, err := service.ParseStock(*stock)
		if err != nil {
			return err
		}
		fields.Stock = &parsed
	}
	return nil
}

func numberString(n *json.Number) *string {
	if n == nil {
		return nil
	}
	s := n.String()
	return &s
}

func formValue(form map[string][]string, key string) *string {
	values, ok := form[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := strings.TrimSpace(values[0])
	return &v
}

func pathID(w http.ResponseWriter, r *http.Request, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, resource+" not found")
		return uuid.Nil, false
	}
	return id, true
}
