package stock

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Reserve runs the whole reservation in one transaction. Rows are locked
// in sorted product-id order so concurrent reservations cannot deadlock,
// and every decrement is conditional on sufficient quantity, so two
// transactions can never both take the last unit.
func (r *repository) Reserve(ctx context.Context, quantities map[string]int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var short []string
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `
			UPDATE product_stock
			SET quantity = quantity - $1, updated_at = NOW()
			WHERE product_id = $2 AND quantity >= $1
		`, quantities[id], id)
		if err != nil {
			return fmt.Errorf("reserve stock for %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			short = append(short, id)
		}
	}

	if len(short) > 0 {
		// Rollback via the deferred call; nothing is committed.
		return &InsufficientStockError{Short: short}
	}

	return tx.Commit()
}

func (r *repository) Restore(ctx context.Context, quantities map[string]int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		// Unknown product ids are skipped, not errors: compensations may
		// run for products removed from the catalog since the order.
		_, err := tx.ExecContext(ctx, `
			UPDATE product_stock
			SET quantity = quantity + $1, updated_at = NOW()
			WHERE product_id = $2
		`, quantities[id], id)
		if err != nil {
			return fmt.Errorf("restore stock for %s: %w", id, err)
		}
	}

	return tx.Commit()
}

func (r *repository) CheckAvailability(ctx context.Context, quantities map[string]int) (map[string]bool, error) {
	availability := make(map[string]bool, len(quantities))

	for id, qty := range quantities {
		var current int
		err := r.db.QueryRowContext(ctx,
			`SELECT quantity FROM product_stock WHERE product_id = $1`, id).Scan(&current)
		if err == sql.ErrNoRows {
			availability[id] = false
			continue
		}
		if err != nil {
			return nil, err
		}
		availability[id] = current >= qty
	}

	return availability, nil
}

func (r *repository) CurrentStock(ctx context.Context, productID string) (int, error) {
	var quantity int
	err := r.db.QueryRowContext(ctx,
		`SELECT quantity FROM product_stock WHERE product_id = $1`, productID).Scan(&quantity)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return quantity, nil
}

func (r *repository) CurrentStockBulk(ctx context.Context, productIDs []string) (map[string]int, error) {
	stock := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		quantity, err := r.CurrentStock(ctx, id)
		if err != nil {
			return nil, err
		}
		stock[id] = quantity
	}
	return stock, nil
}
