package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// MovementFilter narrows the stock movement log.
type MovementFilter struct {
	ProductID     int64
	MovementType  MovementType
	ReferenceType string
	From          *time.Time
	To            *time.Time
	Page          shared.Pagination
}

// Repository serves inventory reads for the tenant bound to the context.
type Repository interface {
	Movements(ctx context.Context, f MovementFilter) ([]StockMovement, int, error)
	Valuation(ctx context.Context) (*Valuation, error)
}

type repository struct {
	source db.Source
}

// NewRepository constructs the inventory read repository.
func NewRepository(source db.Source) Repository {
	return &repository{source: source}
}

const movementColumns = `m.id, m.product_id, p.code, p.name, m.movement_type, m.qty, m.unit_cost,
m.balance_qty, m.reference, m.reference_type, m.note, m.moved_at`

func (r *repository) Movements(ctx context.Context, f MovementFilter) ([]StockMovement, int, error) {
	where, args := movementFilterSQL(f)
	pool := r.source.Pool(ctx)

	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements m`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + movementColumns + ` FROM stock_movements m JOIN products p ON p.id = m.product_id` +
		where + ` ORDER BY m.moved_at DESC, m.id DESC` +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := pool.Query(ctx, query, append(args, f.Page.PerPage, f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var mv StockMovement
		if err := rows.Scan(&mv.ID, &mv.ProductID, &mv.ProductCode, &mv.ProductName, &mv.MovementType,
			&mv.Qty, &mv.UnitCost, &mv.BalanceQty, &mv.Reference, &mv.ReferenceType, &mv.Note, &mv.MovedAt); err != nil {
			return nil, 0, err
		}
		movements = append(movements, mv)
	}
	return movements, total, rows.Err()
}

func (r *repository) Valuation(ctx context.Context) (*Valuation, error) {
	rows, err := r.source.Pool(ctx).Query(ctx, `SELECT id, code, name, stock, avg_cost, stock * avg_cost AS value
FROM products WHERE is_active = TRUE AND stock <> 0
ORDER BY value DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	v := &Valuation{Lines: []ValuationLine{}}
	for rows.Next() {
		var line ValuationLine
		if err := rows.Scan(&line.ProductID, &line.ProductCode, &line.ProductName,
			&line.Stock, &line.AvgCost, &line.Value); err != nil {
			return nil, err
		}
		v.Lines = append(v.Lines, line)
		v.TotalValue += line.Value
	}
	v.TotalItems = len(v.Lines)
	return v, rows.Err()
}

// movementFilterSQL builds the shared WHERE clause for movement queries.
func movementFilterSQL(f MovementFilter) (string, []any) {
	where := ``
	args := []any{}
	add := func(cond string, arg any) {
		args = append(args, arg)
		if where == "" {
			where = ` WHERE `
		} else {
			where += ` AND `
		}
		where += fmt.Sprintf(cond, len(args))
	}
	if f.ProductID > 0 {
		add(`m.product_id = $%d`, f.ProductID)
	}
	if f.MovementType != "" {
		add(`m.movement_type = $%d`, string(f.MovementType))
	}
	if f.ReferenceType != "" {
		add(`m.reference_type = $%d`, f.ReferenceType)
	}
	if f.From != nil {
		add(`m.moved_at >= $%d`, *f.From)
	}
	if f.To != nil {
		add(`m.moved_at <= $%d`, *f.To)
	}
	return where, args
}
