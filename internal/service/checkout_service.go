package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"toko-online/internal/domain"
	"toko-online/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const transactionFailedMessage = "transaction failed, please try again"

// CheckoutService turns carts into orders and cancels them, keeping stock
// consistent with the orders that hold it.
type CheckoutService interface {
	Checkout(ctx context.Context, userID uuid.UUID, items []domain.CartItem) (*domain.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
}

type checkoutService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	tx       repository.TxManager
	logger   *zap.Logger
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	tx repository.TxManager,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		products: products,
		orders:   orders,
		tx:       tx,
		logger:   logger,
	}
}

// Checkout validates, reserves and prices every item inside a single
// transaction. Items are processed in request order, so a product listed
// twice sees the stock left by its earlier line.
func (s *checkoutService) Checkout(ctx context.Context, userID uuid.UUID, items []domain.CartItem) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, domain.NewError(domain.ErrValidation, "shopping cart is empty")
	}
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, domain.NewError(domain.ErrValidation, "product id is required")
		}
		if item.Quantity <= 0 {
			return nil, domain.NewError(domain.ErrValidation, "quantity must be greater than zero")
		}
	}

	var order *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		total := decimal.Zero
		lines := make([]domain.OrderItem, 0, len(items))

		for _, item := range items {
			product, err := s.products.FindByIDForUpdate(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, repository.ErrProductNotFound) {
					return domain.NewError(domain.ErrProductNotFound, "product with id %s not found", item.ProductID)
				}
				return err
			}

			if product.Stock < item.Quantity {
				return insufficientStock(product)
			}

			if err := s.products.DecrementStock(ctx, product.ID, item.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return insufficientStock(product)
				}
				return err
			}

			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			lines = append(lines, domain.OrderItem{
				ID:        uuid.New(),
				ProductID: product.ID,
				Quantity:  item.Quantity,
				Price:     product.Price,
				Product: &domain.ProductSummary{
					ID:       product.ID,
					Name:     product.Name,
					Price:    product.Price,
					PhotoURL: product.PhotoURL,
				},
			})
		}

		now := time.Now().UTC()
		created := &domain.Order{
			ID:         uuid.New(),
			UserID:     userID,
			TotalPrice: total,
			Status:     domain.OrderStatusPaid,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		for i := range lines {
			lines[i].OrderID = created.ID
		}
		created.Items = lines

		if err := s.orders.Create(ctx, created); err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, s.transactionError("checkout", userID, err)
	}

	s.logger.Info("Checkout completed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("total_price", order.TotalPrice.String()),
		zap.Int("items", len(order.Items)),
	)
	return order, nil
}

func (s *checkoutService) ListOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return orders, nil
}

// CancelOrder restores every item's quantity to stock and marks the order
// cancelled. Only PENDING and PAID orders can be cancelled.
func (s *checkoutService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		found, err := s.orders.FindByIDForUser(ctx, orderID, userID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return domain.NewError(domain.ErrNotFound, "order not found")
			}
			return err
		}

		if !found.Status.Cancellable() {
			return domain.NewError(domain.ErrInvalidState, "order with status %s cannot be cancelled", found.Status)
		}

		for _, item := range found.Items {
			if err := s.products.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := s.orders.UpdateStatus(ctx, found.ID, domain.OrderStatusCancelled); err != nil {
			return err
		}

		found.Status = domain.OrderStatusCancelled
		found.UpdatedAt = time.Now().UTC()
		order = found
		return nil
	})
	if err != nil {
		return nil, s.transactionError("cancel order", userID, err)
	}

	s.logger.Info("Order cancelled",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return order, nil
}

// transactionError passes business errors through untouched and hides
// everything else behind a generic failure.
func (s *checkoutService) transactionError(op string, userID uuid.UUID, err error) error {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		s.logger.Debug("Transaction rejected",
			zap.String("operation", op),
			zap.String("user_id", userID.String()),
			zap.String("reason", domainErr.Message),
		)
		return domainErr
	}

	s.logger.Error("Transaction failed",
		zap.String("operation", op),
		zap.String("user_id", userID.String()),
		zap.Error(err),
	)
	return domain.NewError(domain.ErrTransactionFailed, transactionFailedMessage)
}

func insufficientStock(product *domain.Product) error {
	return domain.NewError(domain.ErrInsufficientStock,
		"insufficient stock for product '%s'. Remaining: %d", product.Name, product.Stock)
}
