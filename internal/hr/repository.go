package hr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// EmployeeFilter narrows employee listings.
type EmployeeFilter struct {
	IncludeInactive bool
	Search          string
	Page            shared.Pagination
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	EmployeeID int64
	From       *time.Time
	To         *time.Time
	Page       shared.Pagination
}

// PayrollFilter narrows payroll listings.
type PayrollFilter struct {
	Period     string
	EmployeeID int64
	Status     PayrollStatus
	Page       shared.Pagination
}

// Repository is the HR data surface.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Employees(ctx context.Context, f EmployeeFilter) ([]Employee, int, error)
	Employee(ctx context.Context, id int64) (*Employee, error)
	CreateEmployee(ctx context.Context, e *Employee) error
	UpdateEmployee(ctx context.Context, e *Employee) error
	DeactivateEmployee(ctx context.Context, id int64) error

	Attendance(ctx context.Context, f AttendanceFilter) ([]Attendance, int, error)
	UpsertAttendance(ctx context.Context, a *Attendance) error

	Payrolls(ctx context.Context, f PayrollFilter) ([]Payroll, int, error)
	Payroll(ctx context.Context, id int64) (*Payroll, error)
	InsertPayroll(ctx context.Context, p *Payroll) error
	GenerateDrafts(ctx context.Context, period string) (int, error)
}

// TxRepository is the write surface inside one payroll transaction.
type TxRepository interface {
	Querier() db.Querier
	PayrollForUpdate(ctx context.Context, id int64) (*Payroll, error)
	UpdatePayrollAmounts(ctx context.Context, p *Payroll) error
	SetPayrollStatus(ctx context.Context, id int64, status PayrollStatus, paymentMethod string, paidAt *time.Time) error
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

const employeeColumns = `id, name, position, phone, base_salary, is_active, joined_at, created_at, updated_at`

func (r *repository) Employees(ctx context.Context, f EmployeeFilter) ([]Employee, int, error) {
	pool := r.source.Pool(ctx)
	where := ` WHERE ($1::boolean OR is_active)`
	args := []any{f.IncludeInactive}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR position ILIKE $%d)`, len(args), len(args))
	}

	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}

	query := `SELECT ` + employeeColumns + ` FROM employees` + where +
		` ORDER BY name` + fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := pool.Query(ctx, query, append(args, f.Page.PerPage, f.Page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, err
		}
		employees = append(employees, e)
	}
	return employees, total, rows.Err()
}

func (r *repository) Employee(ctx context.Context, id int64) (*Employee, error) {
	row := r.source.Pool(ctx).QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
	e, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("employee %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) CreateEmployee(ctx context.Context, e *Employee) error {
	row := r.source.Pool(ctx).QueryRow(ctx, `INSERT INTO employees (name, position, phone, base_salary, is_active, joined_at)
		VALUES ($1, $2, $3, $4, TRUE, $5) RETURNING id, is_active, created_at, updated_at`,
		e.Name, e.Position, e.Phone, e.BaseSalary, e.JoinedAt)
	if err := row.Scan(&e.ID, &e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

func (r *repository) UpdateEmployee(ctx context.Context, e *Employee) error {
	tag, err := r.source.Pool(ctx).Exec(ctx, `UPDATE employees SET
		name = $2, position = $3, phone = $4, base_salary = $5, joined_at = $6, updated_at = NOW()
		WHERE id = $1`,
		e.ID, e.Name, e.Position, e.Phone, e.BaseSalary, e.JoinedAt)
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("employee %d: %w", e.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) DeactivateEmployee(ctx context.Context, id int64) error {
	tag, err := r.source.Pool(ctx).Exec(ctx, `UPDATE employees SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate employee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("employee %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Attendance(ctx context.Context, f AttendanceFilter) ([]Attendance, int, error) {
	pool := r.source.Pool(ctx)
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
	if f.EmployeeID > 0 {
		add("a.employee_id = $%d", f.EmployeeID)
	}
	if f.From != nil {
		add("a.work_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("a.work_date <= $%d", *f.To)
	}

	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance_records a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}

	query := `SELECT a.id, a.employee_id, e.name, a.work_date, a.status, a.check_in, a.check_out, a.note
		FROM attendance_records a JOIN employees e ON e.id = a.employee_id` + where +
		` ORDER BY a.work_date DESC, e.name` + fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := pool.Query(ctx, query, append(args, f.Page.PerPage, f.Page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []Attendance
	for rows.Next() {
		var a Attendance
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.EmployeeName, &a.WorkDate, &a.Status,
			&a.CheckIn, &a.CheckOut, &a.Note); err != nil {
			return nil, 0, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, a)
	}
	return records, total, rows.Err()
}

func (r *repository) UpsertAttendance(ctx context.Context, a *Attendance) error {
	row := r.source.Pool(ctx).QueryRow(ctx, `INSERT INTO attendance_records (employee_id, work_date, status, check_in, check_out, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (employee_id, work_date)
		DO UPDATE SET status = EXCLUDED.status, check_in = EXCLUDED.check_in, check_out = EXCLUDED.check_out, note = EXCLUDED.note
		RETURNING id`,
		a.EmployeeID, a.WorkDate, a.Status, a.CheckIn, a.CheckOut, a.Note)
	if err := row.Scan(&a.ID); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

const payrollColumns = `p.id, p.employee_id, e.name, p.period, p.base_salary, p.allowance, p.deduction,
	p.net_pay, p.status, p.payment_method, p.paid_at, p.created_at, p.updated_at`

func (r *repository) Payrolls(ctx context.Context, f PayrollFilter) ([]Payroll, int, error) {
	pool := r.source.Pool(ctx)
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
	if f.Period != "" {
		add("p.period = $%d", f.Period)
	}
	if f.EmployeeID > 0 {
		add("p.employee_id = $%d", f.EmployeeID)
	}
	if f.Status != "" {
		add("p.status = $%d", f.Status)
	}

	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM payroll_records p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payrolls: %w", err)
	}

	query := `SELECT ` + payrollColumns + ` FROM payroll_records p JOIN employees e ON e.id = p.employee_id` +
		where + ` ORDER BY p.period DESC, e.name` + fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := pool.Query(ctx, query, append(args, f.Page.PerPage, f.Page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payrolls: %w", err)
	}
	defer rows.Close()

	var payrolls []Payroll
	for rows.Next() {
		p, err := scanPayroll(rows)
		if err != nil {
			return nil, 0, err
		}
		payrolls = append(payrolls, p)
	}
	return payrolls, total, rows.Err()
}

func (r *repository) Payroll(ctx context.Context, id int64) (*Payroll, error) {
	row := r.source.Pool(ctx).QueryRow(ctx, `SELECT `+payrollColumns+` FROM payroll_records p JOIN employees e ON e.id = p.employee_id WHERE p.id = $1`, id)
	p, err := scanPayroll(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("payroll %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) InsertPayroll(ctx context.Context, p *Payroll) error {
	row := r.source.Pool(ctx).QueryRow(ctx, `INSERT INTO payroll_records
		(employee_id, period, base_salary, allowance, deduction, net_pay, status, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at, updated_at`,
		p.EmployeeID, p.Period, p.BaseSalary, p.Allowance, p.Deduction, p.NetPay, p.Status, p.PaymentMethod)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return translateUnique(err, fmt.Sprintf("payroll for employee %d period %s", p.EmployeeID, p.Period))
	}
	return nil
}

// GenerateDrafts creates a draft payroll for every active employee that
// does not have one for the period yet. The unique key on
// (employee_id, period) makes re-runs add only the missing rows.
func (r *repository) GenerateDrafts(ctx context.Context, period string) (int, error) {
	tag, err := r.source.Pool(ctx).Exec(ctx, `INSERT INTO payroll_records
		(employee_id, period, base_salary, allowance, deduction, net_pay, status)
		SELECT id, $1, base_salary, 0, 0, base_salary, 'draft' FROM employees WHERE is_active
		ON CONFLICT (employee_id, period) DO NOTHING`, period)
	if err != nil {
		return 0, fmt.Errorf("generate payroll drafts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type txRepository struct {
	q db.Querier
}

func (t *txRepository) Querier() db.Querier { return t.q }

func (t *txRepository) PayrollForUpdate(ctx context.Context, id int64) (*Payroll, error) {
	row := t.q.QueryRow(ctx, `SELECT p.id, p.employee_id,
		(SELECT name FROM employees e WHERE e.id = p.employee_id),
		p.period, p.base_salary, p.allowance, p.deduction, p.net_pay, p.status, p.payment_method,
		p.paid_at, p.created_at, p.updated_at
		FROM payroll_records p WHERE p.id = $1 FOR UPDATE`, id)
	p, err := scanPayroll(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("payroll %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *txRepository) UpdatePayrollAmounts(ctx context.Context, p *Payroll) error {
	tag, err := t.q.Exec(ctx, `UPDATE payroll_records SET
		base_salary = $2, allowance = $3, deduction = $4, net_pay = $5, payment_method = $6, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.BaseSalary, p.Allowance, p.Deduction, p.NetPay, p.PaymentMethod)
	if err != nil {
		return fmt.Errorf("update payroll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payroll %d: %w", p.ID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepository) SetPayrollStatus(ctx context.Context, id int64, status PayrollStatus, paymentMethod string, paidAt *time.Time) error {
	tag, err := t.q.Exec(ctx, `UPDATE payroll_records SET status = $2, payment_method = $3, paid_at = $4, updated_at = NOW() WHERE id = $1`,
		id, status, paymentMethod, paidAt)
	if err != nil {
		return fmt.Errorf("set payroll status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payroll %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Name, &e.Position, &e.Phone, &e.BaseSalary, &e.IsActive,
		&e.JoinedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Employee{}, fmt.Errorf("scan employee: %w", err)
	}
	return e, nil
}

func scanPayroll(row pgx.Row) (Payroll, error) {
	var p Payroll
	err := row.Scan(&p.ID, &p.EmployeeID, &p.EmployeeName, &p.Period, &p.BaseSalary,
		&p.Allowance, &p.Deduction, &p.NetPay, &p.Status, &p.PaymentMethod,
		&p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Payroll{}, fmt.Errorf("scan payroll: %w", err)
	}
	return p, nil
}

func translateUnique(err error, subject string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s already exists: %w", subject, shared.ErrDuplicate)
	}
	return err
}
