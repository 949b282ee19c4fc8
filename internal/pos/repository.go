package pos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// SaleFilter narrows sale listings.
type SaleFilter struct {
	CustomerID    int64
	PaymentMethod string
	Cashier       string
	From          *time.Time
	To            *time.Time
	Page          shared.Pagination
}

// Repository is the sales store for the tenant bound to the context.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Sales(ctx context.Context, f SaleFilter) ([]Sale, int, error)
	Sale(ctx context.Context, id int64) (*Sale, error)
}

// TxRepository runs the write side of a checkout inside one transaction.
type TxRepository interface {
	// Querier exposes the transaction for collaborators that post into it.
	Querier() db.Querier
	NextNumber(ctx context.Context, day time.Time) (string, error)
	InsertSale(ctx context.Context, sale *Sale) error
	InsertItems(ctx context.Context, saleID int64, items []SaleItem) error
}

type repository struct {
	source db.Source
}

// NewRepository constructs the sales repository.
func NewRepository(source db.Source) Repository {
	return &repository{source: source}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.source.Pool(ctx), func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: tx})
	})
}

const saleColumns = `s.id, s.number, s.customer_id, COALESCE(c.name, ''), s.status, s.payment_method,
s.subtotal, s.discount, s.total, s.paid_amount, s.change_amount, s.cashier, s.sold_at, s.created_at`

func (r *repository) Sales(ctx context.Context, f SaleFilter) ([]Sale, int, error) {
	where, args := saleFilterSQL(f)
	pool := r.source.Pool(ctx)

	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales s`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + saleColumns + ` FROM sales s LEFT JOIN customers c ON c.id = s.customer_id` +
		where + ` ORDER BY s.sold_at DESC, s.id DESC` +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := pool.Query(ctx, query, append(args, f.Page.PerPage, f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, s)
	}
	return sales, total, rows.Err()
}

func (r *repository) Sale(ctx context.Context, id int64) (*Sale, error) {
	pool := r.source.Pool(ctx)
	row := pool.QueryRow(ctx, `SELECT `+saleColumns+
		` FROM sales s LEFT JOIN customers c ON c.id = s.customer_id WHERE s.id = $1`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sale %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}

	rows, err := pool.Query(ctx, `SELECT i.id, i.sale_id, i.product_id, p.code, p.name, i.qty, i.unit_price, i.unit_cost, i.line_total
FROM sale_items i JOIN products p ON p.id = i.product_id
WHERE i.sale_id = $1 ORDER BY i.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductCode, &item.ProductName,
			&item.Qty, &item.UnitPrice, &item.UnitCost, &item.LineTotal); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sale, nil
}

type txRepository struct {
	q pgx.Tx
}

func (t *txRepository) Querier() db.Querier {
	return t.q
}

func (t *txRepository) NextNumber(ctx context.Context, day time.Time) (string, error) {
	return shared.NextDocNumber(ctx, t.q, "POS", "sales", "sold_at", day)
}

func (t *txRepository) InsertSale(ctx context.Context, sale *Sale) error {
	err := t.q.QueryRow(ctx, `INSERT INTO sales
(number, customer_id, status, payment_method, subtotal, discount, total, paid_amount, change_amount, cashier, sold_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, created_at`,
		sale.Number, sale.CustomerID, sale.Status, sale.PaymentMethod, sale.Subtotal, sale.Discount,
		sale.Total, sale.PaidAmount, sale.ChangeAmount, sale.Cashier, sale.SoldAt).
		Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sale %s: %w", sale.Number, err)
	}
	return nil
}

func (t *txRepository) InsertItems(ctx context.Context, saleID int64, items []SaleItem) error {
	for i := range items {
		err := t.q.QueryRow(ctx, `INSERT INTO sale_items (sale_id, product_id, qty, unit_price, unit_cost, line_total)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			saleID, items[i].ProductID, items[i].Qty, items[i].UnitPrice, items[i].UnitCost, items[i].LineTotal).
			Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("insert sale item %d: %w", i, err)
		}
		items[i].SaleID = saleID
	}
	return nil
}

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.Number, &s.CustomerID, &s.CustomerName, &s.Status, &s.PaymentMethod,
		&s.Subtotal, &s.Discount, &s.Total, &s.PaidAmount, &s.ChangeAmount, &s.Cashier, &s.SoldAt, &s.CreatedAt)
	return s, err
}

func saleFilterSQL(f SaleFilter) (string, []any) {
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
	if f.CustomerID > 0 {
		add(`s.customer_id = $%d`, f.CustomerID)
	}
	if f.PaymentMethod != "" {
		add(`s.payment_method = $%d`, f.PaymentMethod)
	}
	if f.Cashier != "" {
		add(`s.cashier = $%d`, f.Cashier)
	}
	if f.From != nil {
		add(`s.sold_at >= $%d`, *f.From)
	}
	if f.To != nil {
		add(`s.sold_at <= $%d`, *f.To)
	}
	return where, args
}
