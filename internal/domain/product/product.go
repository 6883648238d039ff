package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a product does not exist or is inactive.
var ErrNotFound = errors.New("product not found")

// InsufficientStockError indicates a requested quantity exceeds the
// available stock for a product.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Product is a catalog entry. Order items copy the fields they need at
// checkout time, so later catalog edits never affect historical orders.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Image         string          `json:"image"`
	Category      string          `json:"category"`
	StockQuantity int             `json:"stock_quantity"`
	TotalSales    int             `json:"total_sales"`
	Active        bool            `json:"active"`
}

// Repository provides catalog lookup and stock mutation.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	List(ctx context.Context, limit, offset int) ([]Product, int, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	// Deactivate hides a product from the catalog without deleting it.
	Deactivate(ctx context.Context, id string) error

	// AdjustStock applies stockDelta and salesDelta to a product in one
	// statement. It fails with InsufficientStockError when the resulting
	// stock would go negative.
	AdjustStock(ctx context.Context, id string, stockDelta, salesDelta int) error
}
