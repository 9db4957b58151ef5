package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"toko-online/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// Create inserts the order and all of its items
	Create(ctx context.Context, order *domain.Order) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	// FindByIDForUser locks the order row; orders owned by someone else are not found
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	exec := conn(ctx, r.db)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		order.ID,
		order.UserID,
		order.TotalPrice,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, line_no, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			item.ID,
			order.ID,
			item.ProductID,
			i+1,
			item.Quantity,
			item.Price,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

// ListByUser returns the user's orders newest first, each with its items
// in checkout order and the referenced product details
func (r *orderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	query := `
		SELECT o.id, o.user_id, o.total_price, o.status, o.created_at, o.updated_at,
		       oi.id, oi.product_id, oi.quantity, oi.price,
		       p.name, p.price, p.photo_url
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		JOIN products p ON p.id = oi.product_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id, oi.line_no
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	var current *domain.Order
	for rows.Next() {
		var (
			order   domain.Order
			item    domain.OrderItem
			product domain.ProductSummary
		)
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.TotalPrice,
			&order.Status,
			&order.CreatedAt,
			&order.UpdatedAt,
			&item.ID,
			&item.ProductID,
			&item.Quantity,
			&item.Price,
			&product.Name,
			&product.Price,
			&product.PhotoURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}

		if current == nil || current.ID != order.ID {
			current = &order
			orders = append(orders, current)
		}

		product.ID = item.ProductID
		item.OrderID = current.ID
		item.Product = &product
		current.Items = append(current.Items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Order, error) {
	exec := conn(ctx, r.db)

	order := &domain.Order{}
	err := exec.QueryRowContext(ctx, `
		SELECT id, user_id, total_price, status, created_at, updated_at
		FROM orders
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, id, userID).Scan(
		&order.ID,
		&order.UserID,
		&order.TotalPrice,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY line_no
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
	`, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return expectOneRow(result, ErrOrderNotFound)
}
