package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"toko-online/internal/domain"
	"toko-online/internal/repository"
	"toko-online/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService defines the interface for product catalog logic
type CatalogService interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	CreateProduct(ctx context.Context, principal domain.Principal, fields ProductFields) (*domain.Product, error)
	UpdateProduct(ctx context.Context, principal domain.Principal, id uuid.UUID, fields ProductFields) (*domain.Product, error)
	DeleteProduct(ctx context.Context, principal domain.Principal, id uuid.UUID) error
}

// ProductFields carries product attributes. Nil fields are absent: create
// rejects a missing name, price or stock; update keeps the stored value.
type ProductFields struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Image       *ImageUpload
}

// ImageUpload is a product photo supplied with a create or update
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

// Column bounds of products.price DECIMAL(12,2) and products.stock INTEGER
const priceScale = 2

var priceLimit = decimal.New(1, 10)

type catalogService struct {
	products repository.ProductRepository
	tx       repository.TxManager
	images   storage.ImageStore
	logger   *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	products repository.ProductRepository,
	tx repository.TxManager,
	images storage.ImageStore,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		products: products,
		tx:       tx,
		images:   images,
		logger:   logger,
	}
}

// ParsePrice parses a decimal price as sent in a form or JSON body
func ParsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, domain.NewError(domain.ErrValidation, "price must be a number")
	}
	return price, nil
}

// ParseStock parses a whole-number stock count
func ParseStock(raw string) (int, error) {
	stock, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.NewError(domain.ErrValidation, "stock must be an integer")
	}
	return stock, nil
}

func requireAdmin(principal domain.Principal) error {
	if !principal.IsAdmin() {
		return domain.NewError(domain.ErrForbidden, "insufficient permissions")
	}
	return nil
}

func (f ProductFields) validate() error {
	if f.Name != nil && strings.TrimSpace(*f.Name) == "" {
		return domain.NewError(domain.ErrValidation, "name must not be empty")
	}
	if f.Price != nil {
		switch {
		case f.Price.IsNegative():
			return domain.NewError(domain.ErrValidation, "price must not be negative")
		case !f.Price.Equal(f.Price.Round(priceScale)):
			return domain.NewError(domain.ErrValidation, "price must have at most %d decimal places", priceScale)
		case f.Price.GreaterThanOrEqual(priceLimit):
			return domain.NewError(domain.ErrValidation, "price must be less than %s", priceLimit)
		}
	}
	if f.Stock != nil {
		if *f.Stock < 0 {
			return domain.NewError(domain.ErrValidation, "stock must not be negative")
		}
		if *f.Stock > math.MaxInt32 {
			return domain.NewError(domain.ErrValidation, "stock must not exceed %d", math.MaxInt32)
		}
	}
	return nil
}

func (s *catalogService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NewError(domain.ErrNotFound, "product not found")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, principal domain.Principal, fields ProductFields) (*domain.Product, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	if fields.Name == nil || fields.Price == nil || fields.Stock == nil {
		return nil, domain.NewError(domain.ErrValidation, "name, price and stock are required")
	}
	if err := fields.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(*fields.Name),
		Price:     *fields.Price,
		Stock:     *fields.Stock,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if fields.Description != nil {
		product.Description = *fields.Description
	}

	photo, err := s.saveImage(ctx, fields.Image)
	if err != nil {
		return nil, err
	}
	product.PhotoURL = photo

	if err := s.products.Create(ctx, product); err != nil {
		s.discardImage(ctx, photo)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("admin_id", principal.UserID.String()),
	)
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, principal domain.Principal, id uuid.UUID, fields ProductFields) (*domain.Product, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	if err := fields.validate(); err != nil {
		return nil, err
	}

	photo, err := s.saveImage(ctx, fields.Image)
	if err != nil {
		return nil, err
	}

	var (
		product  *domain.Product
		oldPhoto *string
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.products.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if fields.Name != nil {
			current.Name = strings.TrimSpace(*fields.Name)
		}
		if fields.Description != nil {
			current.Description = *fields.Description
		}
		if fields.Price != nil {
			current.Price = *fields.Price
		}
		if fields.Stock != nil {
			current.Stock = *fields.Stock
		}
		if photo != nil {
			oldPhoto = current.PhotoURL
			current.PhotoURL = photo
		}
		current.UpdatedAt = time.Now().UTC()

		if err := s.products.Update(ctx, current); err != nil {
			return err
		}
		product = current
		return nil
	})
	if err != nil {
		s.discardImage(ctx, photo)
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NewError(domain.ErrNotFound, "product not found")
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.discardImage(ctx, oldPhoto)

	s.logger.Info("Product updated",
		zap.String("product_id", product.ID.String()),
		zap.String("admin_id", principal.UserID.String()),
	)
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, principal domain.Principal, id uuid.UUID) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return domain.NewError(domain.ErrNotFound, "product not found")
		}
		return fmt.Errorf("failed to find product: %w", err)
	}

	if err := s.products.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			return domain.NewError(domain.ErrNotFound, "product not found")
		case errors.Is(err, repository.ErrProductReferenced):
			return domain.NewError(domain.ErrConflict, "cannot delete this product because it has transaction history")
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.discardImage(ctx, product.PhotoURL)

	s.logger.Info("Product deleted",
		zap.String("product_id", id.String()),
		zap.String("admin_id", principal.UserID.String()),
	)
	return nil
}

func (s *catalogService) saveImage(ctx context.Context, image *ImageUpload) (*string, error) {
	if image == nil {
		return nil, nil
	}

	ref, err := s.images.Save(ctx, image.Content)
	if err != nil {
		if errors.Is(err, storage.ErrNotImage) || errors.Is(err, storage.ErrImageTooLarge) {
			s.logger.Debug("Product image rejected", zap.String("filename", image.Filename), zap.Error(err))
			return nil, domain.NewError(domain.ErrValidation, "%s", err.Error())
		}
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	return &ref, nil
}

func (s *catalogService) discardImage(ctx context.Context, ref *string) {
	if ref == nil {
		return
	}
	if err := s.images.Delete(ctx, *ref); err != nil {
		s.logger.Warn("Failed to remove product image", zap.String("photo", *ref), zap.Error(err))
	}
}
