package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// Repository reads the ledger and opens transactions against the
// tenant database bound to the context.
type Repository interface {
	// WithTx runs fn inside one transaction on the tenant database.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// RunIn wraps an externally-owned transaction or pool so callers
	// composing several ledger writes can share one atomic unit.
	RunIn(q db.Querier) TxRepository

	ListAccounts(ctx context.Context) ([]Account, error)
	ListJournals(ctx context.Context, f JournalFilter) ([]JournalEntry, int, error)
	GetJournal(ctx context.Context, id int64) (*JournalEntry, error)
	ListRecords(ctx context.Context, f RecordFilter) ([]FinancialRecord, int, error)
	Summary(ctx context.Context, from, to *time.Time) (*Summary, error)
}

// TxRepository is the write surface available inside a transaction.
type TxRepository interface {
	AccountsByCode(ctx context.Context, codes []string) (map[string]Account, error)
	InsertAccount(ctx context.Context, a Account) (Account, error)
	InsertJournal(ctx context.Context, e *JournalEntry) error
	InsertJournalLines(ctx context.Context, journalID int64, lines []JournalLine) error
	// InsertRecord writes one record; a duplicate source triple is a
	// no-op and reports inserted=false with the surviving row loaded.
	InsertRecord(ctx context.Context, rec *FinancialRecord) (bool, error)
	RecordExists(ctx context.Context, referenceType, reference string) (bool, error)
}

type repository struct {
	source db.Source
}

// NewRepository constructs the ledger repository over a pool source.
func NewRepository(source db.Source) Repository {
	return &repository{source: source}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.source.Pool(ctx), func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: tx})
	})
}

func (r *repository) RunIn(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

const accountColumns = `id, code, name, type, subtype, normal_balance, parent_id, is_active, created_at, updated_at`

func (r *repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.source.Pool(ctx).Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// JournalFilter narrows journal listings. Zero fields match everything.
type JournalFilter struct {
	EntryType     EntryType
	Reference     string
	ReferenceType string
	From          *time.Time
	To            *time.Time
	Page          shared.Pagination
}

func journalFilterSQL(f JournalFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.EntryType != "" {
		add("entry_type = $%d", f.EntryType)
	}
	if f.Reference != "" {
		add("reference = $%d", f.Reference)
	}
	if f.ReferenceType != "" {
		add("reference_type = $%d", f.ReferenceType)
	}
	if f.From != nil {
		add("entry_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("entry_date <= $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *repository) ListJournals(ctx context.Context, f JournalFilter) ([]JournalEntry, int, error) {
	where, args := journalFilterSQL(f)
	pool := r.source.Pool(ctx)

	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, number, entry_type, description, reference, reference_type, total_amount, status, entry_date, created_at
FROM journal_entries` + where + fmt.Sprintf(` ORDER BY number DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := pool.Query(ctx, query, append(args, f.Page.PerPage, f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.Number, &e.EntryType, &e.Description, &e.Reference, &e.ReferenceType,
			&e.TotalAmount, &e.Status, &e.EntryDate, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *repository) GetJournal(ctx context.Context, id int64) (*JournalEntry, error) {
	pool := r.source.Pool(ctx)
	var e JournalEntry
	err := pool.QueryRow(ctx, `SELECT id, number, entry_type, description, reference, reference_type, total_amount, status, entry_date, created_at
FROM journal_entries WHERE id = $1`, id).
		Scan(&e.ID, &e.Number, &e.EntryType, &e.Description, &e.Reference, &e.ReferenceType,
			&e.TotalAmount, &e.Status, &e.EntryDate, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("journal %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}

	rows, err := pool.Query(ctx, `SELECT l.id, l.journal_id, l.account_id, a.code, l.debit, l.credit, l.memo
FROM journal_lines l JOIN accounts a ON a.id = l.account_id
WHERE l.journal_id = $1 ORDER BY l.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.AccountCode, &line.Debit, &line.Credit, &line.Memo); err != nil {
			return nil, err
		}
		e.Lines = append(e.Lines, line)
	}
	return &e, rows.Err()
}

// RecordFilter narrows record listings. Zero fields match everything.
type RecordFilter struct {
	RecordType    RecordType
	Category      string
	PaymentMethod string
	ReferenceType string
	From          *time.Time
	To            *time.Time
	Page          shared.Pagination
}

// recordFilterSQL keeps both date bounds inclusive so a record stamped
// exactly on a boundary is always part of the window.
func recordFilterSQL(f RecordFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.RecordType != "" {
		add("record_type = $%d", f.RecordType)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.PaymentMethod != "" {
		add("payment_method = $%d", f.PaymentMethod)
	}
	if f.ReferenceType != "" {
		add("reference_type = $%d", f.ReferenceType)
	}
	if f.From != nil {
		add("occurred_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("occurred_at <= $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const recordColumns = `id, record_type, category, subcategory, amount, description, payment_method, reference, reference_type, status, tags, occurred_at, created_at`

func (r *repository) ListRecords(ctx context.Context, f RecordFilter) ([]FinancialRecord, int, error) {
	where, args := recordFilterSQL(f)
	pool := r.source.Pool(ctx)

	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM financial_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordColumns + ` FROM financial_records` + where +
		fmt.Sprintf(` ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := pool.Query(ctx, query, append(args, f.Page.PerPage, f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []FinancialRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func (r *repository) Summary(ctx context.Context, from, to *time.Time) (*Summary, error) {
	where, args := recordFilterSQL(RecordFilter{From: from, To: to})
	pool := r.source.Pool(ctx)

	s := &Summary{
		IncomeByCategory:  make(map[string]float64),
		ExpenseByCategory: make(map[string]float64),
		ByPaymentMethod:   make(map[string]float64),
	}
	err := pool.QueryRow(ctx, `SELECT
	COALESCE(SUM(amount) FILTER (WHERE record_type = 'income'), 0),
	COALESCE(SUM(amount) FILTER (WHERE record_type = 'expense'), 0),
	COUNT(*)
FROM financial_records`+where, args...).
		Scan(&s.TotalIncome, &s.TotalExpense, &s.TransactionCount)
	if err != nil {
		return nil, err
	}
	s.NetProfit = s.TotalIncome - s.TotalExpense

	rows, err := pool.Query(ctx, `SELECT record_type, category, payment_method, SUM(amount)
FROM financial_records`+where+` GROUP BY record_type, category, payment_method`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var recordType RecordType
		var category, method string
		var amount float64
		if err := rows.Scan(&recordType, &category, &method, &amount); err != nil {
			return nil, err
		}
		switch recordType {
		case RecordIncome:
			s.IncomeByCategory[category] += amount
			s.ByPaymentMethod[method] += amount
		case RecordExpense:
			s.ExpenseByCategory[category] += amount
		}
	}
	return s, rows.Err()
}

type txRepository struct {
	q db.Querier
}

func (r *txRepository) AccountsByCode(ctx context.Context, codes []string) (map[string]Account, error) {
	if len(codes) == 0 {
		return map[string]Account{}, nil
	}
	rows, err := r.q.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]Account, len(codes))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.Code] = a
	}
	return out, rows.Err()
}

// InsertAccount creates an account if its code is free. A concurrent
// transaction may win the race; the surviving row is returned either
// way.
func (r *txRepository) InsertAccount(ctx context.Context, a Account) (Account, error) {
	row := r.q.QueryRow(ctx, `INSERT INTO accounts (code, name, type, subtype, normal_balance, parent_id)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (code) DO NOTHING
RETURNING `+accountColumns, a.Code, a.Name, a.Type, a.Subtype, a.NormalBalance, a.ParentID)

	created, err := scanAccount(row)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Account{}, err
	}
	row = r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code = $1`, a.Code)
	return scanAccount(row)
}

func (r *txRepository) InsertJournal(ctx context.Context, e *JournalEntry) error {
	return r.q.QueryRow(ctx, `INSERT INTO journal_entries (entry_type, description, reference, reference_type, total_amount, entry_date)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, number, status, created_at`,
		e.EntryType, e.Description, e.Reference, e.ReferenceType, toNumeric(e.TotalAmount), e.EntryDate).
		Scan(&e.ID, &e.Number, &e.Status, &e.CreatedAt)
}

func (r *txRepository) InsertJournalLines(ctx context.Context, journalID int64, lines []JournalLine) error {
	for i := range lines {
		line := &lines[i]
		err := r.q.QueryRow(ctx, `INSERT INTO journal_lines (journal_id, account_id, debit, credit, memo)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			journalID, line.AccountID, toNumeric(line.Debit), toNumeric(line.Credit), line.Memo).
			Scan(&line.ID)
		if err != nil {
			return err
		}
		line.JournalID = journalID
	}
	return nil
}

func (r *txRepository) InsertRecord(ctx context.Context, rec *FinancialRecord) (bool, error) {
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	row := r.q.QueryRow(ctx, `INSERT INTO financial_records
	(record_type, category, subcategory, amount, description, payment_method, reference, reference_type, status, tags, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (reference_type, reference, description) WHERE reference <> '' DO NOTHING
RETURNING id, created_at`,
		rec.RecordType, rec.Category, rec.Subcategory, toNumeric(rec.Amount), rec.Description,
		rec.PaymentMethod, rec.Reference, rec.ReferenceType, rec.Status, rec.Tags, rec.OccurredAt)

	err := row.Scan(&rec.ID, &rec.CreatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	// The source triple already has a row; load it so the caller sees
	// the surviving record.
	row = r.q.QueryRow(ctx, `SELECT `+recordColumns+` FROM financial_records
WHERE reference_type = $1 AND reference = $2 AND description = $3`,
		rec.ReferenceType, rec.Reference, rec.Description)
	existing, err := scanRecord(row)
	if err != nil {
		return false, err
	}
	*rec = existing
	return false, nil
}

func (r *txRepository) RecordExists(ctx context.Context, referenceType, reference string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM financial_records WHERE reference_type = $1 AND reference = $2)`,
		referenceType, reference).Scan(&exists)
	return exists, err
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.NormalBalance,
		&a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func scanRecord(row pgx.Row) (FinancialRecord, error) {
	var rec FinancialRecord
	err := row.Scan(&rec.ID, &rec.RecordType, &rec.Category, &rec.Subcategory, &rec.Amount,
		&rec.Description, &rec.PaymentMethod, &rec.Reference, &rec.ReferenceType,
		&rec.Status, &rec.Tags, &rec.OccurredAt, &rec.CreatedAt)
	return rec, err
}

// toNumeric renders a money amount for a NUMERIC(16,2) column.
func toNumeric(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
