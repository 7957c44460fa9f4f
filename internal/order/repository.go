package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Repository interface {
	CreateOrder(ctx context.Context, o *Order) error
	FindOrderByID(ctx context.Context, orderID string) (*Order, error)
	FindAllOrders(ctx context.Context) ([]*Order, error)
	FindOrdersByUserID(ctx context.Context, userID string) ([]*Order, error)
	FindOrdersByStatus(ctx context.Context, status OrderStatus) ([]*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error

	// UpdateOrderStatus applies the transition only when the row still
	// holds the expected status. ErrStatusConflict means the guard failed
	// and the caller should re-read to decide what happened.
	UpdateOrderStatus(ctx context.Context, orderID string, expected, next OrderStatus) error

	// MarkStockRestored flips the restore flag exactly once. The second
	// caller gets false and must not credit stock again.
	MarkStockRestored(ctx context.Context, orderID string) (bool, error)

	// ClearStockRestored undoes MarkStockRestored after a failed credit
	// so a later attempt can restore the stock.
	ClearStockRestored(ctx context.Context, orderID string) error

	// DeleteOrder soft-deletes; the row is kept for auditing.
	DeleteOrder(ctx context.Context, orderID string) error
}

// ErrStatusConflict is the repository-level signal that the
// expected-status guard rejected a stale transition.
var ErrStatusConflict = errors.New("order status changed concurrently")

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, total, status, payment_method,
			street, city, state, postal_code, country,
			order_date, status_update_date, stock_restored, deleted
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,FALSE,FALSE)
	`,
		o.ID, o.UserID, o.Total, o.Status, o.PaymentMethod,
		o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.State,
		o.ShippingAddress.PostalCode, o.ShippingAddress.Country,
		o.OrderDate, o.StatusUpdateDate,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, p := range o.Products {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_products (order_id, product_id, name, unit_price, quantity)
			VALUES ($1,$2,$3,$4,$5)
		`, o.ID, p.ProductID, p.Name, p.UnitPrice, p.Quantity)
		if err != nil {
			return fmt.Errorf("insert order product: %w", err)
		}
	}

	return tx.Commit()
}

const orderColumns = `
	id, user_id, total, status, payment_method,
	street, city, state, postal_code, country,
	order_date, status_update_date, stock_restored, deleted, deleted_at`

func (r *repository) scanOrder(row interface{ Scan(...interface{}) error }) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Total, &o.Status, &o.PaymentMethod,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.PostalCode, &o.ShippingAddress.Country,
		&o.OrderDate, &o.StatusUpdateDate, &o.StockRestored, &o.Deleted, &o.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) FindOrderByID(ctx context.Context, orderID string) (*Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+orderColumns+` FROM orders WHERE id = $1 AND deleted = FALSE`, orderID)

	o, err := r.scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadProducts(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) loadProducts(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, unit_price, quantity
		FROM order_products WHERE order_id = $1
	`, o.ID)
	if err != nil {
		return fmt.Errorf("load order products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p OrderProduct
		if err := rows.Scan(&p.ProductID, &p.Name, &p.UnitPrice, &p.Quantity); err != nil {
			return err
		}
		o.Products = append(o.Products, p)
	}
	return rows.Err()
}

func (r *repository) queryOrders(ctx context.Context, where string, args ...interface{}) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+orderColumns+` FROM orders WHERE deleted = FALSE`+where+` ORDER BY order_date DESC`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, o := range orders {
		if err := r.loadProducts(ctx, o); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *repository) FindAllOrders(ctx context.Context) ([]*Order, error) {
	return r.queryOrders(ctx, ``)
}

func (r *repository) FindOrdersByUserID(ctx context.Context, userID string) ([]*Order, error) {
	return r.queryOrders(ctx, ` AND user_id = $1`, userID)
}

func (r *repository) FindOrdersByStatus(ctx context.Context, status OrderStatus) ([]*Order, error) {
	return r.queryOrders(ctx, ` AND status = $1`, status)
}

func (r *repository) UpdateOrder(ctx context.Context, o *Order) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			total = $2, status = $3, payment_method = $4,
			street = $5, city = $6, state = $7, postal_code = $8, country = $9,
			status_update_date = $10
		WHERE id = $1 AND deleted = FALSE
	`,
		o.ID, o.Total, o.Status, o.PaymentMethod,
		o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.State,
		o.ShippingAddress.PostalCode, o.ShippingAddress.Country,
		o.StatusUpdateDate,
	)
	if err != nil {
		return err
	}
	return requireRow(res, ErrOrderNotFound)
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID string, expected, next OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, status_update_date = NOW()
		WHERE id = $1 AND status = $2 AND deleted = FALSE
	`, orderID, expected, next)
	if err != nil {
		return err
	}
	return requireRow(res, ErrStatusConflict)
}

func (r *repository) MarkStockRestored(ctx context.Context, orderID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET stock_restored = TRUE
		WHERE id = $1 AND stock_restored = FALSE
	`, orderID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *repository) ClearStockRestored(ctx context.Context, orderID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET stock_restored = FALSE
		WHERE id = $1
	`, orderID)
	return err
}

func (r *repository) DeleteOrder(ctx context.Context, orderID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET deleted = TRUE, deleted_at = $2
		WHERE id = $1 AND deleted = FALSE
	`, orderID, time.Now())
	if err != nil {
		return err
	}
	return requireRow(res, ErrOrderNotFound)
}

func requireRow(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return missing
	}
	return nil
}
