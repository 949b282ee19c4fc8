package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// PurchaseFilter narrows purchase listings.
type PurchaseFilter struct {
	SupplierID    int64
	PaymentMethod string
	From          *time.Time
	To            *time.Time
	Page          shared.Pagination
}

// Repository reads purchases and opens purchase transactions.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Purchases(ctx context.Context, f PurchaseFilter) ([]Purchase, int, error)
	Purchase(ctx context.Context, id int64) (*Purchase, error)
}

// TxRepository is the write surface inside one purchase transaction.
type TxRepository interface {
	Querier() db.Querier
	NextNumber(ctx context.Context, day time.Time) (string, error)
	InsertPurchase(ctx context.Context, p *Purchase) error
	InsertItems(ctx context.Context, purchaseID int64, items []PurchaseItem) error
	SupplierName(ctx context.Context, id int64) (string, error)
}

type repository struct {
	source db.Source
}

// NewRepository returns a Repository over the tenant database bound to ctx.
func NewRepository(source db.Source) Repository {
	return &repository{source: source}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.source.Pool(ctx), func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: tx})
	})
}

const purchaseColumns = `p.id, p.number, p.supplier_id, COALESCE(s.name, '') AS supplier_name,
	p.status, p.payment_method, p.total, p.note, p.received_at, p.created_at`

func (r *repository) Purchases(ctx context.Context, f PurchaseFilter) ([]Purchase, int, error) {
	pool := r.source.Pool(ctx)
	where, args := purchaseFilterSQL(f)

	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchases p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}

	query := `SELECT ` + purchaseColumns + ` FROM purchases p LEFT JOIN suppliers s ON s.id = p.supplier_id` +
		where + ` ORDER BY p.received_at DESC, p.id DESC` +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := pool.Query(ctx, query, append(args, f.Page.PerPage, f.Page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, 0, err
		}
		purchases = append(purchases, p)
	}
	return purchases, total, rows.Err()
}

func (r *repository) Purchase(ctx context.Context, id int64) (*Purchase, error) {
	pool := r.source.Pool(ctx)
	row := pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases p LEFT JOIN suppliers s ON s.id = p.supplier_id WHERE p.id = $1`, id)
	p, err := scanPurchase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("purchase %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `SELECT i.id, i.purchase_id, i.product_id, pr.code, pr.name,
		i.qty, i.unit_cost, i.line_total
		FROM purchase_items i
		JOIN products pr ON pr.id = i.product_id
		WHERE i.purchase_id = $1 ORDER BY i.id`, id)
	if err != nil {
		return nil, fmt.Errorf("list purchase items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item PurchaseItem
		if err := rows.Scan(&item.ID, &item.PurchaseID, &item.ProductID, &item.ProductCode,
			&item.ProductName, &item.Qty, &item.UnitCost, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("scan purchase item: %w", err)
		}
		p.Items = append(p.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

type txRepository struct {
	q db.Querier
}

func (t *txRepository) Querier() db.Querier { return t.q }

func (t *txRepository) NextNumber(ctx context.Context, day time.Time) (string, error) {
	return shared.NextDocNumber(ctx, t.q, "PO", "purchases", "received_at", day)
}

func (t *txRepository) InsertPurchase(ctx context.Context, p *Purchase) error {
	row := t.q.QueryRow(ctx, `INSERT INTO purchases (number, supplier_id, status, payment_method, total, note, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		p.Number, p.SupplierID, p.Status, p.PaymentMethod, p.Total, p.Note, p.ReceivedAt)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (t *txRepository) InsertItems(ctx context.Context, purchaseID int64, items []PurchaseItem) error {
	for i := range items {
		row := t.q.QueryRow(ctx, `INSERT INTO purchase_items (purchase_id, product_id, qty, unit_cost, line_total)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			purchaseID, items[i].ProductID, items[i].Qty, items[i].UnitCost, items[i].LineTotal)
		if err := row.Scan(&items[i].ID); err != nil {
			return fmt.Errorf("insert purchase item: %w", err)
		}
		items[i].PurchaseID = purchaseID
	}
	return nil
}

func (t *txRepository) SupplierName(ctx context.Context, id int64) (string, error) {
	var name string
	err := t.q.QueryRow(ctx, `SELECT name FROM suppliers WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load supplier: %w", err)
	}
	return name, nil
}

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.Number, &p.SupplierID, &p.SupplierName, &p.Status,
		&p.PaymentMethod, &p.Total, &p.Note, &p.ReceivedAt, &p.CreatedAt)
	if err != nil {
		return Purchase{}, fmt.Errorf("scan purchase: %w", err)
	}
	return p, nil
}

func purchaseFilterSQL(f PurchaseFilter) (string, []any) {
	var (
		where string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		cond = fmt.Sprintf(cond, len(args))
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}
	if f.SupplierID > 0 {
		add("p.supplier_id = $%d", f.SupplierID)
	}
	if f.PaymentMethod != "" {
		add("p.payment_method = $%d", f.PaymentMethod)
	}
	if f.From != nil {
		add("p.received_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("p.received_at <= $%d", *f.To)
	}
	return where, args
}
