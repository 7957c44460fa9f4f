package stock

import (
	"context"

	"assembliestore-be/internal/logger"

	"go.uber.org/zap"
)

// Repository is the storage port behind the ledger. Reserve must be
// atomic across the whole set: either every product is decremented or
// none is, and two concurrent reservations for the same product can
// never both pass the availability check.
type Repository interface {
	Reserve(ctx context.Context, quantities map[string]int) error
	Restore(ctx context.Context, quantities map[string]int) error
	CheckAvailability(ctx context.Context, quantities map[string]int) (map[string]bool, error)
	CurrentStock(ctx context.Context, productID string) (int, error)
	CurrentStockBulk(ctx context.Context, productIDs []string) (map[string]int, error)
}

// Notifier receives best-effort stock change events. Implementations
// must never block on or propagate delivery failures.
type Notifier interface {
	NotifyStockChange(productID string, previous, current int, changeType string)
	NotifyOutOfStock(productID string)
}

// Ledger coordinates all stock reservations and compensations.
type Ledger interface {
	// Reserve decrements the whole set atomically. If any product is
	// short it fails with InsufficientStockError and mutates nothing.
	Reserve(ctx context.Context, quantities map[string]int) error

	// Restore credits quantities back unconditionally. Safe to call for
	// a set that was never reserved; compensations are defensive.
	Restore(ctx context.Context, quantities map[string]int) error

	// CheckAvailability is a pure read: per-product sufficiency.
	CheckAvailability(ctx context.Context, quantities map[string]int) (map[string]bool, error)

	CurrentStock(ctx context.Context, productID string) (int, error)
	CurrentStockBulk(ctx context.Context, productIDs []string) (map[string]int, error)
}

type ledger struct {
	repo     Repository
	notifier Notifier
}

func NewLedger(repo Repository, notifier Notifier) Ledger {
	return &ledger{repo: repo, notifier: notifier}
}

func validateQuantities(quantities map[string]int) error {
	for _, qty := range quantities {
		if qty < 1 {
			return ErrInvalidQuantity
		}
	}
	return nil
}

func (l *ledger) Reserve(ctx context.Context, quantities map[string]int) error {
	if len(quantities) == 0 {
		return nil
	}
	if err := validateQuantities(quantities); err != nil {
		return err
	}

	before, err := l.repo.CurrentStockBulk(ctx, productIDs(quantities))
	if err != nil {
		// The snapshot only feeds notifications; reservation correctness
		// does not depend on it.
		logger.FromCtx(ctx).Warn("failed to snapshot stock before reserve", zap.Error(err))
		before = nil
	}

	if err := l.repo.Reserve(ctx, quantities); err != nil {
		return err
	}

	l.notifyChanges(ctx, quantities, before, -1, "SALE")
	return nil
}

func (l *ledger) Restore(ctx context.Context, quantities map[string]int) error {
	if len(quantities) == 0 {
		return nil
	}
	if err := validateQuantities(quantities); err != nil {
		return err
	}

	before, err := l.repo.CurrentStockBulk(ctx, productIDs(quantities))
	if err != nil {
		logger.FromCtx(ctx).Warn("failed to snapshot stock before restore", zap.Error(err))
		before = nil
	}

	if err := l.repo.Restore(ctx, quantities); err != nil {
		return err
	}

	l.notifyChanges(ctx, quantities, before, 1, "RESTORE")
	return nil
}

func (l *ledger) CheckAvailability(ctx context.Context, quantities map[string]int) (map[string]bool, error) {
	if err := validateQuantities(quantities); err != nil {
		return nil, err
	}
	return l.repo.CheckAvailability(ctx, quantities)
}

func (l *ledger) CurrentStock(ctx context.Context, productID string) (int, error) {
	return l.repo.CurrentStock(ctx, productID)
}

func (l *ledger) CurrentStockBulk(ctx context.Context, productIDs []string) (map[string]int, error) {
	return l.repo.CurrentStockBulk(ctx, productIDs)
}

func (l *ledger) notifyChanges(ctx context.Context, quantities, before map[string]int, sign int, changeType string) {
	if l.notifier == nil {
		return
	}
	for productID, qty := range quantities {
		prev, known := before[productID]
		if !known {
			continue
		}
		current := prev + sign*qty
		l.notifier.NotifyStockChange(productID, prev, current, changeType)
		if current == 0 && sign < 0 {
			l.notifier.NotifyOutOfStock(productID)
		}
	}
}

func productIDs(quantities map[string]int) []string {
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	return ids
}
