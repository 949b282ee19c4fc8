package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// ProductFilter narrows product listings.
type ProductFilter struct {
	Search   string
	Category string
	IsActive *bool
	LowStock bool
	SortBy   string
	SortDir  string
	Page     shared.Pagination
}

// Repository is the catalog store for the tenant bound to the context.
type Repository interface {
	Products(ctx context.Context, f ProductFilter) ([]Product, int, error)
	Product(ctx context.Context, id int64) (*Product, error)
	ProductsByIDs(ctx context.Context, ids []int64) (map[int64]Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	DeactivateProduct(ctx context.Context, id int64) error

	Customers(ctx context.Context, search string, page shared.Pagination) ([]Customer, int, error)
	Customer(ctx context.Context, id int64) (*Customer, error)
	CreateCustomer(ctx context.Context, c *Customer) error
	UpdateCustomer(ctx context.Context, c *Customer) error

	Suppliers(ctx context.Context, search string, page shared.Pagination) ([]Supplier, int, error)
	Supplier(ctx context.Context, id int64) (*Supplier, error)
	CreateSupplier(ctx context.Context, s *Supplier) error
	UpdateSupplier(ctx context.Context, s *Supplier) error
}

type repository struct {
	source db.Source
}

// NewRepository constructs the catalog repository.
func NewRepository(source db.Source) Repository {
	return &repository{source: source}
}

const productColumns = `id, code, name, category, unit, price, cost, avg_cost, last_purchase_price, stock, min_stock, is_active, created_at, updated_at`

func (r *repository) Products(ctx context.Context, f ProductFilter) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + `)`
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where += ` AND category = $` + strconv.Itoa(len(args))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		where += ` AND is_active = $` + strconv.Itoa(len(args))
	}
	if f.LowStock {
		where += ` AND min_stock > 0 AND stock <= min_stock`
	}

	pool := r.source.Pool(ctx)
	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + productSort(f.SortBy, f.SortDir) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := pool.Query(ctx, query, append(args, f.Page.PerPage, f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Product(ctx context.Context, id int64) (*Product, error) {
	row := r.source.Pool(ctx).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]Product, error) {
	if len(ids) == 0 {
		return map[int64]Product{}, nil
	}
	rows, err := r.source.Pool(ctx).Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *repository) CreateProduct(ctx context.Context, p *Product) error {
	err := r.source.Pool(ctx).QueryRow(ctx, `INSERT INTO products
	(code, name, category, unit, price, cost, avg_cost, last_purchase_price, stock, min_stock, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, created_at, updated_at`,
		p.Code, p.Name, p.Category, p.Unit, p.Price, p.Cost, p.AvgCost, p.LastPurchasePrice,
		p.Stock, p.MinStock, p.IsActive).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return translateUnique(err, "product code "+p.Code)
}

func (r *repository) UpdateProduct(ctx context.Context, p *Product) error {
	tag, err := r.source.Pool(ctx).Exec(ctx, `UPDATE products
SET code = $2, name = $3, category = $4, unit = $5, price = $6, cost = $7, min_stock = $8, is_active = $9, updated_at = NOW()
WHERE id = $1`,
		p.ID, p.Code, p.Name, p.Category, p.Unit, p.Price, p.Cost, p.MinStock, p.IsActive)
	if err != nil {
		return translateUnique(err, "product code "+p.Code)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", p.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) DeactivateProduct(ctx context.Context, id int64) error {
	tag, err := r.source.Pool(ctx).Exec(ctx, `UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ProductForUpdate loads a product inside the caller's transaction and takes
// a row lock on it, so concurrent stock changes to the same product serialize.
func ProductForUpdate(ctx context.Context, q db.Querier, id int64) (Product, error) {
	row := q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, err
}

const customerColumns = `id, name, phone, email, address, created_at, updated_at`

func (r *repository) Customers(ctx context.Context, search string, page shared.Pagination) ([]Customer, int, error) {
	where := ``
	args := []any{}
	if search != "" {
		args = append(args, "%"+search+"%")
		where = ` WHERE (name ILIKE $1 OR phone ILIKE $1)`
	}

	pool := r.source.Pool(ctx)
	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + customerColumns + ` FROM customers` + where +
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := pool.Query(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}

func (r *repository) Customer(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	err := r.source.Pool(ctx).QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) CreateCustomer(ctx context.Context, c *Customer) error {
	return r.source.Pool(ctx).QueryRow(ctx, `INSERT INTO customers (name, phone, email, address)
VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		c.Name, c.Phone, c.Email, c.Address).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *repository) UpdateCustomer(ctx context.Context, c *Customer) error {
	tag, err := r.source.Pool(ctx).Exec(ctx, `UPDATE customers
SET name = $2, phone = $3, email = $4, address = $5, updated_at = NOW() WHERE id = $1`,
		c.ID, c.Name, c.Phone, c.Email, c.Address)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", c.ID, shared.ErrNotFound)
	}
	return nil
}

const supplierColumns = `id, name, contact, phone, address, created_at, updated_at`

func (r *repository) Suppliers(ctx context.Context, search string, page shared.Pagination) ([]Supplier, int, error) {
	where := ``
	args := []any{}
	if search != "" {
		args = append(args, "%"+search+"%")
		where = ` WHERE name ILIKE $1`
	}

	pool := r.source.Pool(ctx)
	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + supplierColumns + ` FROM suppliers` + where +
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := pool.Query(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Contact, &s.Phone, &s.Address, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func (r *repository) Supplier(ctx context.Context, id int64) (*Supplier, error) {
	var s Supplier
	err := r.source.Pool(ctx).QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Contact, &s.Phone, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &s, nil
}

func (r *repository) CreateSupplier(ctx context.Context, s *Supplier) error {
	return r.source.Pool(ctx).QueryRow(ctx, `INSERT INTO suppliers (name, contact, phone, address)
VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		s.Name, s.Contact, s.Phone, s.Address).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *repository) UpdateSupplier(ctx context.Context, s *Supplier) error {
	tag, err := r.source.Pool(ctx).Exec(ctx, `UPDATE suppliers
SET name = $2, contact = $3, phone = $4, address = $5, updated_at = NOW() WHERE id = $1`,
		s.ID, s.Name, s.Contact, s.Phone, s.Address)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier %d: %w", s.ID, shared.ErrNotFound)
	}
	return nil
}

// productSort whitelists sortable columns.
func productSort(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "price":
		return "price " + dir
	case "stock":
		return "stock " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Category, &p.Unit, &p.Price, &p.Cost, &p.AvgCost,
		&p.LastPurchasePrice, &p.Stock, &p.MinStock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func translateUnique(err error, subject string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", subject, shared.ErrDuplicate)
	}
	return err
}
