package servicedesk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lokapos/lokapos/internal/masterdata"
	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	Status     Status
	CustomerID int64
	Technician string
	From       *time.Time
	To         *time.Time
	Page       shared.Pagination
}

// Repository reads tickets and opens ticket transactions.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Tickets(ctx context.Context, f TicketFilter) ([]Ticket, int, error)
	Ticket(ctx context.Context, id int64) (*Ticket, error)
}

// TxRepository is the write surface inside one ticket transaction.
type TxRepository interface {
	Querier() db.Querier
	NextNumber(ctx context.Context, day time.Time) (string, error)
	InsertTicket(ctx context.Context, t *Ticket) error
	TicketForUpdate(ctx context.Context, id int64) (*Ticket, error)
	UpdateTicket(ctx context.Context, t *Ticket) error
	InsertPart(ctx context.Context, p *TicketPart) error
	DeletePart(ctx context.Context, ticketID, partID int64) error
	UpdatePartCost(ctx context.Context, partID int64, unitCost float64) error
	Parts(ctx context.Context, ticketID int64) ([]TicketPart, error)
	ProductForUpdate(ctx context.Context, id int64) (masterdata.Product, error)
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

const ticketColumns = `t.id, t.number, t.customer_id, COALESCE(c.name, '') AS customer_name,
	t.device, t.complaint, t.diagnosis, t.status, t.technician, t.labor_charge, t.payment_method,
	COALESCE((SELECT SUM(p.qty * p.unit_price) FROM service_ticket_parts p WHERE p.ticket_id = t.id), 0) AS parts_total,
	t.completed_at, t.created_at, t.updated_at`

func (r *repository) Tickets(ctx context.Context, f TicketFilter) ([]Ticket, int, error) {
	pool := r.source.Pool(ctx)
	where, args := ticketFilterSQL(f)

	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_tickets t`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	query := `SELECT ` + ticketColumns + ` FROM service_tickets t LEFT JOIN customers c ON c.id = t.customer_id` +
		where + ` ORDER BY t.created_at DESC, t.id DESC` +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := pool.Query(ctx, query, append(args, f.Page.PerPage, f.Page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, t)
	}
	return tickets, total, rows.Err()
}

func (r *repository) Ticket(ctx context.Context, id int64) (*Ticket, error) {
	pool := r.source.Pool(ctx)
	row := pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM service_tickets t LEFT JOIN customers c ON c.id = t.customer_id WHERE t.id = $1`, id)
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ticket %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	parts, err := (&txRepository{q: pool}).Parts(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Parts = parts
	return &t, nil
}

type txRepository struct {
	q db.Querier
}

func (t *txRepository) Querier() db.Querier { return t.q }

func (t *txRepository) NextNumber(ctx context.Context, day time.Time) (string, error) {
	return shared.NextDocNumber(ctx, t.q, "SRV", "service_tickets", "created_at", day)
}

func (t *txRepository) InsertTicket(ctx context.Context, ticket *Ticket) error {
	row := t.q.QueryRow(ctx, `INSERT INTO service_tickets
		(number, customer_id, device, complaint, diagnosis, status, technician, labor_charge, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		ticket.Number, ticket.CustomerID, ticket.Device, ticket.Complaint, ticket.Diagnosis,
		ticket.Status, ticket.Technician, ticket.LaborCharge, ticket.PaymentMethod)
	if err := row.Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (t *txRepository) TicketForUpdate(ctx context.Context, id int64) (*Ticket, error) {
	row := t.q.QueryRow(ctx, `SELECT id, number, customer_id, device, complaint, diagnosis, status,
		technician, labor_charge, payment_method, completed_at, created_at, updated_at
		FROM service_tickets WHERE id = $1 FOR UPDATE`, id)
	var ticket Ticket
	err := row.Scan(&ticket.ID, &ticket.Number, &ticket.CustomerID, &ticket.Device, &ticket.Complaint,
		&ticket.Diagnosis, &ticket.Status, &ticket.Technician, &ticket.LaborCharge,
		&ticket.PaymentMethod, &ticket.CompletedAt, &ticket.CreatedAt, &ticket.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ticket %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock ticket: %w", err)
	}
	return &ticket, nil
}

func (t *txRepository) UpdateTicket(ctx context.Context, ticket *Ticket) error {
	tag, err := t.q.Exec(ctx, `UPDATE service_tickets SET
		device = $2, complaint = $3, diagnosis = $4, status = $5, technician = $6,
		labor_charge = $7, payment_method = $8, completed_at = $9, updated_at = NOW()
		WHERE id = $1`,
		ticket.ID, ticket.Device, ticket.Complaint, ticket.Diagnosis, ticket.Status,
		ticket.Technician, ticket.LaborCharge, ticket.PaymentMethod, ticket.CompletedAt)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ticket %d: %w", ticket.ID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepository) InsertPart(ctx context.Context, part *TicketPart) error {
	row := t.q.QueryRow(ctx, `INSERT INTO service_ticket_parts (ticket_id, product_id, qty, unit_price, unit_cost)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		part.TicketID, part.ProductID, part.Qty, part.UnitPrice, part.UnitCost)
	if err := row.Scan(&part.ID); err != nil {
		return fmt.Errorf("insert ticket part: %w", err)
	}
	return nil
}

func (t *txRepository) DeletePart(ctx context.Context, ticketID, partID int64) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM service_ticket_parts WHERE id = $1 AND ticket_id = $2`, partID, ticketID)
	if err != nil {
		return fmt.Errorf("delete ticket part: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ticket part %d: %w", partID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepository) UpdatePartCost(ctx context.Context, partID int64, unitCost float64) error {
	_, err := t.q.Exec(ctx, `UPDATE service_ticket_parts SET unit_cost = $2 WHERE id = $1`, partID, unitCost)
	if err != nil {
		return fmt.Errorf("update ticket part cost: %w", err)
	}
	return nil
}

func (t *txRepository) ProductForUpdate(ctx context.Context, id int64) (masterdata.Product, error) {
	return masterdata.ProductForUpdate(ctx, t.q, id)
}

func (t *txRepository) Parts(ctx context.Context, ticketID int64) ([]TicketPart, error) {
	rows, err := t.q.Query(ctx, `SELECT p.id, p.ticket_id, p.product_id, pr.code, pr.name,
		p.qty, p.unit_price, p.unit_cost
		FROM service_ticket_parts p
		JOIN products pr ON pr.id = p.product_id
		WHERE p.ticket_id = $1 ORDER BY p.id`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list ticket parts: %w", err)
	}
	defer rows.Close()

	var parts []TicketPart
	for rows.Next() {
		var p TicketPart
		if err := rows.Scan(&p.ID, &p.TicketID, &p.ProductID, &p.ProductCode, &p.ProductName,
			&p.Qty, &p.UnitPrice, &p.UnitCost); err != nil {
			return nil, fmt.Errorf("scan ticket part: %w", err)
		}
		p.LineTotal = p.Qty * p.UnitPrice
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.Number, &t.CustomerID, &t.CustomerName, &t.Device, &t.Complaint,
		&t.Diagnosis, &t.Status, &t.Technician, &t.LaborCharge, &t.PaymentMethod,
		&t.PartsTotal, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Ticket{}, fmt.Errorf("scan ticket: %w", err)
	}
	t.Total = t.LaborCharge + t.PartsTotal
	return t, nil
}

func ticketFilterSQL(f TicketFilter) (string, []any) {
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
	if f.Status != "" {
		add("t.status = $%d", f.Status)
	}
	if f.CustomerID > 0 {
		add("t.customer_id = $%d", f.CustomerID)
	}
	if f.Technician != "" {
		add("t.technician = $%d", f.Technician)
	}
	if f.From != nil {
		add("t.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("t.created_at <= $%d", *f.To)
	}
	return where, args
}
