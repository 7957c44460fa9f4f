package stock

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidQuantity = errors.New("stock quantity must be at least 1")
)

// InsufficientStockError reports which products were short. The whole
// reservation is rejected and nothing was mutated.
type InsufficientStockError struct {
	Short []string
}

func (e *InsufficientStockError) Error() string {
	products := append([]string(nil), e.Short...)
	sort.Strings(products)
	return fmt.Sprintf("insufficient stock for product(s): %s", strings.Join(products, ", "))
}

// ErrInsufficientStock is the sentinel callers match with errors.Is.
var ErrInsufficientStock = errors.New("insufficient stock")

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
