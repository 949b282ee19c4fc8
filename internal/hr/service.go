package hr

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/lokapos/lokapos/internal/integration"
	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// EmployeeInput carries the mutable employee fields.
type EmployeeInput struct {
	Name       string
	Position   string
	Phone      string
	BaseSalary float64
	JoinedAt   *time.Time
}

func (in EmployeeInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("employee name required: %w", shared.ErrValidation)
	}
	if in.BaseSalary < 0 {
		return fmt.Errorf("base salary cannot be negative: %w", shared.ErrValidation)
	}
	return nil
}

// AttendanceInput marks one employee's day. Re-marking the same day
// replaces the earlier record.
type AttendanceInput struct {
	EmployeeID int64
	WorkDate   time.Time
	Status     string
	CheckIn    *time.Time
	CheckOut   *time.Time
	Note       string
}

func (in AttendanceInput) validate() error {
	if in.EmployeeID <= 0 {
		return fmt.Errorf("employee id required: %w", shared.ErrValidation)
	}
	if in.WorkDate.IsZero() {
		return fmt.Errorf("work date required: %w", shared.ErrValidation)
	}
	switch in.Status {
	case AttendancePresent, AttendanceSick, AttendanceLeave, AttendanceAbsent:
	default:
		return fmt.Errorf("unknown attendance status %q: %w", in.Status, shared.ErrValidation)
	}
	return nil
}

// PayrollInput creates one payroll record. A nil BaseSalary takes the
// employee's current base salary.
type PayrollInput struct {
	EmployeeID    int64
	Period        string
	BaseSalary    *float64
	Allowance     float64
	Deduction     float64
	PaymentMethod string
}

// PayrollAmounts adjusts a draft record.
type PayrollAmounts struct {
	BaseSalary    *float64
	Allowance     *float64
	Deduction     *float64
	PaymentMethod string
}

// PayInput settles an approved payroll record.
type PayInput struct {
	PaymentMethod string
	PaidAt        *time.Time
}

type payrollBooker interface {
	PayrollPaid(ctx context.Context, tx ledger.TxRepository, ev integration.PayrollEvent) error
}

// Service manages employees, attendance, and the payroll lifecycle.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	booker   payrollBooker
	ledgerTx func(db.Querier) ledger.TxRepository
	audit    *shared.AuditLogger
	now      func() time.Time
}

// NewService constructs the HR service.
func NewService(logger *slog.Logger, repo Repository, ledgerSvc *ledger.Service, hooks *integration.Hooks, audit *shared.AuditLogger) *Service {
	return &Service{
		logger:   logger.With(slog.String("component", "hr")),
		repo:     repo,
		booker:   hooks,
		ledgerTx: func(q db.Querier) ledger.TxRepository { return ledgerSvc.Repo().RunIn(q) },
		audit:    audit,
		now:      time.Now,
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateEmployee registers a new active employee.
func (s *Service) CreateEmployee(ctx context.Context, in EmployeeInput) (*Employee, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	e := Employee{
		Name:       strings.TrimSpace(in.Name),
		Position:   strings.TrimSpace(in.Position),
		Phone:      strings.TrimSpace(in.Phone),
		BaseSalary: round2(in.BaseSalary),
		JoinedAt:   in.JoinedAt,
	}
	if err := s.repo.CreateEmployee(ctx, &e); err != nil {
		return nil, err
	}
	s.logger.Info("employee created", slog.Int64("id", e.ID), slog.String("name", e.Name))
	return &e, nil
}

// UpdateEmployee rewrites the employee's profile fields.
func (s *Service) UpdateEmployee(ctx context.Context, id int64, in EmployeeInput) (*Employee, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	e, err := s.repo.Employee(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Name = strings.TrimSpace(in.Name)
	e.Position = strings.TrimSpace(in.Position)
	e.Phone = strings.TrimSpace(in.Phone)
	e.BaseSalary = round2(in.BaseSalary)
	e.JoinedAt = in.JoinedAt
	if err := s.repo.UpdateEmployee(ctx, e); err != nil {
		return nil, err
	}
	return s.repo.Employee(ctx, id)
}

// DeactivateEmployee takes the employee off the active roster. History
// stays; draft generation skips them from the next period on.
func (s *Service) DeactivateEmployee(ctx context.Context, id int64) error {
	if err := s.repo.DeactivateEmployee(ctx, id); err != nil {
		return err
	}
	s.logger.Info("employee deactivated", slog.Int64("id", id))
	return nil
}

// Employees lists the roster.
func (s *Service) Employees(ctx context.Context, f EmployeeFilter) ([]Employee, shared.Pagination, error) {
	employees, total, err := s.repo.Employees(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return employees, shared.NewPagination(f.Page.Page, f.Page.PerPage, total), nil
}

// Employee loads one employee.
func (s *Service) Employee(ctx context.Context, id int64) (*Employee, error) {
	return s.repo.Employee(ctx, id)
}

// MarkAttendance records the employee's status for one day, replacing
// any earlier mark for the same day.
func (s *Service) MarkAttendance(ctx context.Context, in AttendanceInput) (*Attendance, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	e, err := s.repo.Employee(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return nil, fmt.Errorf("employee %s is inactive: %w", e.Name, shared.ErrValidation)
	}

	a := Attendance{
		EmployeeID:   e.ID,
		EmployeeName: e.Name,
		WorkDate:     in.WorkDate,
		Status:       in.Status,
		CheckIn:      in.CheckIn,
		CheckOut:     in.CheckOut,
		Note:         in.Note,
	}
	if err := s.repo.UpsertAttendance(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Attendance lists attendance records, newest day first.
func (s *Service) Attendance(ctx context.Context, f AttendanceFilter) ([]Attendance, shared.Pagination, error) {
	records, total, err := s.repo.Attendance(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return records, shared.NewPagination(f.Page.Page, f.Page.PerPage, total), nil
}

// CreatePayroll drafts one payroll record for an employee and period.
func (s *Service) CreatePayroll(ctx context.Context, in PayrollInput) (*Payroll, error) {
	if _, _, err := shared.MonthWindow(in.Period); err != nil {
		return nil, err
	}
	e, err := s.repo.Employee(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return nil, fmt.Errorf("employee %s is inactive: %w", e.Name, shared.ErrValidation)
	}

	base := e.BaseSalary
	if in.BaseSalary != nil {
		base = *in.BaseSalary
	}
	if base < 0 || in.Allowance < 0 || in.Deduction < 0 {
		return nil, fmt.Errorf("payroll amounts cannot be negative: %w", shared.ErrValidation)
	}
	netPay := round2(base + in.Allowance - in.Deduction)
	if netPay <= 0 {
		return nil, fmt.Errorf("net pay must be positive: %w", shared.ErrValidation)
	}
	method := in.PaymentMethod
	if method == "" {
		method = "bank_transfer"
	}

	p := Payroll{
		EmployeeID:    e.ID,
		EmployeeName:  e.Name,
		Period:        in.Period,
		BaseSalary:    round2(base),
		Allowance:     round2(in.Allowance),
		Deduction:     round2(in.Deduction),
		NetPay:        netPay,
		Status:        PayrollDraft,
		PaymentMethod: method,
	}
	if err := s.repo.InsertPayroll(ctx, &p); err != nil {
		return nil, err
	}
	s.logger.Info("payroll drafted",
		slog.Int64("id", p.ID),
		slog.String("employee", p.EmployeeName),
		slog.String("period", p.Period))
	return &p, nil
}

// GenerateDrafts creates draft payroll records for every active employee
// missing one for the period, at their current base salary.
func (s *Service) GenerateDrafts(ctx context.Context, period string) (int, error) {
	if _, _, err := shared.MonthWindow(period); err != nil {
		return 0, err
	}
	created, err := s.repo.GenerateDrafts(ctx, period)
	if err != nil {
		return 0, err
	}
	s.logger.Info("payroll drafts generated",
		slog.String("period", period),
		slog.Int("created", created))
	return created, nil
}

// UpdatePayroll adjusts the amounts of a draft record.
func (s *Service) UpdatePayroll(ctx context.Context, id int64, in PayrollAmounts) (*Payroll, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.PayrollForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.Status.CanEdit() {
			return fmt.Errorf("payroll %d is %s and cannot be edited: %w", id, p.Status, shared.ErrValidation)
		}
		if in.BaseSalary != nil {
			p.BaseSalary = *in.BaseSalary
		}
		if in.Allowance != nil {
			p.Allowance = *in.Allowance
		}
		if in.Deduction != nil {
			p.Deduction = *in.Deduction
		}
		if in.PaymentMethod != "" {
			p.PaymentMethod = in.PaymentMethod
		}
		if p.BaseSalary < 0 || p.Allowance < 0 || p.Deduction < 0 {
			return fmt.Errorf("payroll amounts cannot be negative: %w", shared.ErrValidation)
		}
		p.NetPay = round2(p.BaseSalary + p.Allowance - p.Deduction)
		if p.NetPay <= 0 {
			return fmt.Errorf("net pay must be positive: %w", shared.ErrValidation)
		}
		return tx.UpdatePayrollAmounts(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Payroll(ctx, id)
}

// ApprovePayroll moves a draft to approved, freezing the amounts.
func (s *Service) ApprovePayroll(ctx context.Context, id int64) (*Payroll, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.PayrollForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.Status.CanApprove() {
			return fmt.Errorf("payroll %d is %s and cannot be approved: %w", id, p.Status, shared.ErrValidation)
		}
		return tx.SetPayrollStatus(ctx, id, PayrollApproved, p.PaymentMethod, nil)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Payroll(ctx, id)
}

// PayPayroll settles an approved record and books the salary expense in
// the same transaction. The row lock serializes concurrent payouts; a
// replayed call fails the status check before any money moves, and the
// ledger keys expense records by payroll id as a second net.
func (s *Service) PayPayroll(ctx context.Context, id int64, in PayInput) (*Payroll, error) {
	var (
		paid   Payroll
		paidAt time.Time
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.PayrollForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.Status.CanPay() {
			return fmt.Errorf("payroll %d is %s and cannot be paid: %w", id, p.Status, shared.ErrValidation)
		}

		method := p.PaymentMethod
		if in.PaymentMethod != "" {
			method = in.PaymentMethod
		}
		paidAt = s.now()
		if in.PaidAt != nil {
			paidAt = *in.PaidAt
		}
		if err := tx.SetPayrollStatus(ctx, id, PayrollPaid, method, &paidAt); err != nil {
			return err
		}

		paid = *p
		paid.Status = PayrollPaid
		paid.PaymentMethod = method
		paid.PaidAt = &paidAt
		return s.booker.PayrollPaid(ctx, s.ledgerTx(tx.Querier()), integration.PayrollEvent{
			PayrollID:     p.ID,
			EmployeeName:  p.EmployeeName,
			Period:        p.Period,
			NetPay:        p.NetPay,
			PaymentMethod: method,
			OccurredAt:    paidAt,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Action:   "hr.payroll_pay",
			Entity:   "payroll",
			EntityID: fmt.Sprintf("%d", paid.ID),
			Meta:     map[string]any{"employee": paid.EmployeeName, "period": paid.Period, "net_pay": paid.NetPay},
			At:       paidAt,
		}); err != nil {
			s.logger.Warn("audit write failed", slog.Any("error", err))
		}
	}

	s.logger.Info("payroll paid",
		slog.Int64("id", paid.ID),
		slog.String("employee", paid.EmployeeName),
		slog.String("period", paid.Period),
		slog.Float64("net_pay", paid.NetPay))
	return &paid, nil
}

// Payrolls lists payroll records.
func (s *Service) Payrolls(ctx context.Context, f PayrollFilter) ([]Payroll, shared.Pagination, error) {
	payrolls, total, err := s.repo.Payrolls(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return payrolls, shared.NewPagination(f.Page.Page, f.Page.PerPage, total), nil
}

// Payroll loads one record.
func (s *Service) Payroll(ctx context.Context, id int64) (*Payroll, error) {
	return s.repo.Payroll(ctx, id)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
