package hr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lokapos/lokapos/internal/integration"
	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type memoryRepo struct {
	nextEmpID  int64
	nextAttID  int64
	nextPayID  int64
	employees  map[int64]*Employee
	attendance map[string]*Attendance
	payrolls   map[int64]*Payroll
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		employees:  map[int64]*Employee{},
		attendance: map[string]*Attendance{},
		payrolls:   map[int64]*Payroll{},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]*Payroll, len(r.payrolls))
	for id, p := range r.payrolls {
		cp := *p
		snapshot[id] = &cp
	}
	if err := fn(ctx, r); err != nil {
		r.payrolls = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) Querier() db.Querier { return nil }

func (r *memoryRepo) Employees(_ context.Context, f EmployeeFilter) ([]Employee, int, error) {
	var out []Employee
	for _, e := range r.employees {
		if !f.IncludeInactive && !e.IsActive {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (r *memoryRepo) Employee(_ context.Context, id int64) (*Employee, error) {
	e, ok := r.employees[id]
	if !ok {
		return nil, fmt.Errorf("employee %d: %w", id, shared.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (r *memoryRepo) CreateEmployee(_ context.Context, e *Employee) error {
	r.nextEmpID++
	e.ID = r.nextEmpID
	e.IsActive = true
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	r.employees[e.ID] = &cp
	return nil
}

func (r *memoryRepo) UpdateEmployee(_ context.Context, e *Employee) error {
	if _, ok := r.employees[e.ID]; !ok {
		return fmt.Errorf("employee %d: %w", e.ID, shared.ErrNotFound)
	}
	cp := *e
	r.employees[e.ID] = &cp
	return nil
}

func (r *memoryRepo) DeactivateEmployee(_ context.Context, id int64) error {
	e, ok := r.employees[id]
	if !ok {
		return fmt.Errorf("employee %d: %w", id, shared.ErrNotFound)
	}
	e.IsActive = false
	return nil
}

func (r *memoryRepo) Attendance(_ context.Context, f AttendanceFilter) ([]Attendance, int, error) {
	var out []Attendance
	for _, a := range r.attendance {
		if f.EmployeeID > 0 && a.EmployeeID != f.EmployeeID {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkDate.After(out[j].WorkDate) })
	return out, len(out), nil
}

func (r *memoryRepo) UpsertAttendance(_ context.Context, a *Attendance) error {
	key := fmt.Sprintf("%d:%s", a.EmployeeID, a.WorkDate.Format(shared.DateOnly))
	if existing, ok := r.attendance[key]; ok {
		a.ID = existing.ID
	} else {
		r.nextAttID++
		a.ID = r.nextAttID
	}
	cp := *a
	r.attendance[key] = &cp
	return nil
}

func (r *memoryRepo) Payrolls(_ context.Context, f PayrollFilter) ([]Payroll, int, error) {
	var out []Payroll
	for _, p := range r.payrolls {
		if f.Period != "" && p.Period != f.Period {
			continue
		}
		if f.EmployeeID > 0 && p.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *memoryRepo) Payroll(_ context.Context, id int64) (*Payroll, error) {
	p, ok := r.payrolls[id]
	if !ok {
		return nil, fmt.Errorf("payroll %d: %w", id, shared.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r *memoryRepo) InsertPayroll(_ context.Context, p *Payroll) error {
	for _, existing := range r.payrolls {
		if existing.EmployeeID == p.EmployeeID && existing.Period == p.Period {
			return fmt.Errorf("payroll for employee %d period %s already exists: %w",
				p.EmployeeID, p.Period, shared.ErrDuplicate)
		}
	}
	r.nextPayID++
	p.ID = r.nextPayID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.payrolls[p.ID] = &cp
	return nil
}

func (r *memoryRepo) GenerateDrafts(_ context.Context, period string) (int, error) {
	var ids []int64
	for id := range r.employees {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	created := 0
	for _, id := range ids {
		e := r.employees[id]
		if !e.IsActive {
			continue
		}
		exists := false
		for _, p := range r.payrolls {
			if p.EmployeeID == id && p.Period == period {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		r.nextPayID++
		r.payrolls[r.nextPayID] = &Payroll{
			ID:           r.nextPayID,
			EmployeeID:   id,
			EmployeeName: e.Name,
			Period:       period,
			BaseSalary:   e.BaseSalary,
			NetPay:       e.BaseSalary,
			Status:       PayrollDraft,
		}
		created++
	}
	return created, nil
}

func (r *memoryRepo) PayrollForUpdate(_ context.Context, id int64) (*Payroll, error) {
	p, ok := r.payrolls[id]
	if !ok {
		return nil, fmt.Errorf("payroll %d: %w", id, shared.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r *memoryRepo) UpdatePayrollAmounts(_ context.Context, p *Payroll) error {
	existing, ok := r.payrolls[p.ID]
	if !ok {
		return fmt.Errorf("payroll %d: %w", p.ID, shared.ErrNotFound)
	}
	existing.BaseSalary = p.BaseSalary
	existing.Allowance = p.Allowance
	existing.Deduction = p.Deduction
	existing.NetPay = p.NetPay
	existing.PaymentMethod = p.PaymentMethod
	return nil
}

func (r *memoryRepo) SetPayrollStatus(_ context.Context, id int64, status PayrollStatus, paymentMethod string, paidAt *time.Time) error {
	p, ok := r.payrolls[id]
	if !ok {
		return fmt.Errorf("payroll %d: %w", id, shared.ErrNotFound)
	}
	p.Status = status
	p.PaymentMethod = paymentMethod
	p.PaidAt = paidAt
	return nil
}

type captureBooker struct {
	events []integration.PayrollEvent
	err    error
}

func (b *captureBooker) PayrollPaid(_ context.Context, _ ledger.TxRepository, ev integration.PayrollEvent) error {
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, ev)
	return nil
}

func newTestService(t *testing.T, repo *memoryRepo, booker *captureBooker) *Service {
	t.Helper()
	return &Service{
		logger:   testLogger(t),
		repo:     repo,
		booker:   booker,
		ledgerTx: func(db.Querier) ledger.TxRepository { return nil },
		now: func() time.Time {
			return time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)
		},
	}
}

func seedEmployee(t *testing.T, svc *Service, name string, salary float64) *Employee {
	t.Helper()
	e, err := svc.CreateEmployee(context.Background(), EmployeeInput{
		Name:       name,
		Position:   "kasir",
		BaseSalary: salary,
	})
	require.NoError(t, err)
	return e
}

func TestCreateEmployeeAndRoster(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, &captureBooker{})
	ctx := context.Background()

	budi := seedEmployee(t, svc, "Budi Santoso", 4500000)
	seedEmployee(t, svc, "Siti Rahma", 4000000)
	require.True(t, budi.IsActive)

	require.NoError(t, svc.DeactivateEmployee(ctx, budi.ID))

	active, page, err := svc.Employees(ctx, EmployeeFilter{Page: shared.NewPagination(1, 20, 0)})
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Siti Rahma", active[0].Name)
	require.Equal(t, 1, page.Total)

	all, _, err := svc.Employees(ctx, EmployeeFilter{IncludeInactive: true, Page: shared.NewPagination(1, 20, 0)})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestCreateEmployeeValidates(t *testing.T) {
	svc := newTestService(t, newMemoryRepo(), &captureBooker{})

	_, err := svc.CreateEmployee(context.Background(), EmployeeInput{Name: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateEmployee(context.Background(), EmployeeInput{Name: "Budi", BaseSalary: -1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMarkAttendanceReplacesSameDay(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, &captureBooker{})
	ctx := context.Background()
	budi := seedEmployee(t, svc, "Budi Santoso", 4500000)
	day := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)

	first, err := svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: budi.ID, WorkDate: day, Status: AttendancePresent})
	require.NoError(t, err)

	second, err := svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: budi.ID, WorkDate: day, Status: AttendanceSick, Note: "demam"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	records, page, err := svc.Attendance(ctx, AttendanceFilter{EmployeeID: budi.ID, Page: shared.NewPagination(1, 20, 0)})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, AttendanceSick, records[0].Status)
	require.Equal(t, "demam", records[0].Note)
	require.Equal(t, 1, page.Total)
}

func TestMarkAttendanceValidates(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, &captureBooker{})
	ctx := context.Background()
	budi := seedEmployee(t, svc, "Budi Santoso", 4500000)
	day := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)

	_, err := svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: budi.ID, WorkDate: day, Status: "vacation"})
	require.ErrorIs(t, err, shared.ErrValidation)

	require.NoError(t, svc.DeactivateEmployee(ctx, budi.ID))
	_, err = svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: budi.ID, WorkDate: day, Status: AttendancePresent})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "inactive")
}

func TestCreatePayrollDefaultsBaseSalary(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, &captureBooker{})
	ctx := context.Background()
	budi := seedEmployee(t, svc, "Budi Santoso", 4500000)

	p, err := svc.CreatePayroll(ctx, PayrollInput{
		EmployeeID: budi.ID,
		Period:     "2026-08",
		Allowance:  500000,
		Deduction:  200000,
	})
	require.NoError(t, err)
	require.Equal(t, 4500000.0, p.BaseSalary)
	require.Equal(t, 4800000.0, p.NetPay)
	require.Equal(t, PayrollDraft, p.Status)
	require.Equal(t, "bank_transfer", p.PaymentMethod)
	require.Equal(t, "Budi Santoso", p.EmployeeName)
}

func TestCreatePayrollRejectsDuplicatePeriod(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, &captureBooker{})
	ctx := context.Background()
	budi := seedEmployee(t, svc, "Budi Santoso", 4500000)

	_, err := svc.CreatePayroll(ctx, PayrollInput{EmployeeID: budi.ID, Period: "2026-08"})
	require.NoError(t, err)

	_, err = svc.CreatePayroll(ctx, PayrollInput{EmployeeID: budi.ID, Period: "2026-08"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestCreatePayrollValidatesPeriod(t *testing.T) {
	svc := newTestService(t, newMemoryRepo(), &captureBooker{})

	_, err := svc.CreatePayroll(context.Background(), PayrollInput{EmployeeID: 1, Period: "Agustus 2026"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestGenerateDraftsSkipsExistingAndInactive(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, &captureBooker{})
	ctx := context.Background()

	budi := seedEmployee(t, svc, "Budi Santoso", 4500000)
	seedEmployee(t, svc, "Siti Rahma", 4000000)
	gone := seedEmployee(t, svc, "Andi Wijaya", 3500000)
	require.NoError(t, svc.DeactivateEmployee(ctx, gone.ID))

	_, err := svc.CreatePayroll(ctx, PayrollInput{EmployeeID: budi.ID, Period: "2026-08"})
	require.NoError(t, err)

	created, err := svc.GenerateDrafts(ctx, "2026-08")
	require.NoError(t, err)
	require.Equal(t, 1, created)

	created, err = svc.GenerateDrafts(ctx, "2026-08")
	require.NoError(t, err)
	require.Equal(t, 0, created)

	payrolls, _, err := svc.Payrolls(ctx, PayrollFilter{Period: "2026-08", Page: shared.NewPagination(1, 20, 0)})
	require.NoError(t, err)
	require.Len(t, payrolls, 2)
}

func TestPayrollLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	booker := &captureBooker{}
	svc := newTestService(t, repo, booker)
	ctx := context.Background()
	budi := seedEmployee(t, svc, "Budi Santoso", 4500000)

	p, err := svc.CreatePayroll(ctx, PayrollInput{EmployeeID: budi.ID, Period: "2026-08"})
	require.NoError(t, err)

	allowance := 750000.0
	p, err = svc.UpdatePayroll(ctx, p.ID, PayrollAmounts{Allowance: &allowance})
	require.NoError(t, err)
	require.Equal(t, 5250000.0, p.NetPay)

	p, err = svc.ApprovePayroll(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, PayrollApproved, p.Status)

	_, err = svc.UpdatePayroll(ctx, p.ID, PayrollAmounts{Allowance: &allowance})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "cannot be edited")

	p, err = svc.PayPayroll(ctx, p.ID, PayInput{})
	require.NoError(t, err)
	require.Equal(t, PayrollPaid, p.Status)
	require.NotNil(t, p.PaidAt)
	require.Equal(t, time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC), *p.PaidAt)

	require.Len(t, booker.events, 1)
	ev := booker.events[0]
	require.Equal(t, p.ID, ev.PayrollID)
	require.Equal(t, "Budi Santoso", ev.EmployeeName)
	require.Equal(t, "2026-08", ev.Period)
	require.Equal(t, 5250000.0, ev.NetPay)
	require.Equal(t, "bank_transfer", ev.PaymentMethod)
}

func TestPayRequiresApproval(t *testing.T) {
	repo := newMemoryRepo()
	booker := &captureBooker{}
	svc := newTestService(t, repo, booker)
	ctx := context.Background()
	budi := seedEmployee(t, svc, "Budi Santoso", 4500000)

	p, err := svc.CreatePayroll(ctx, PayrollInput{EmployeeID: budi.ID, Period: "2026-08"})
	require.NoError(t, err)

	_, err = svc.PayPayroll(ctx, p.ID, PayInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "cannot be paid")
	require.Empty(t, booker.events)
}

func TestPayTwiceRejected(t *testing.T) {
	repo := newMemoryRepo()
	booker := &captureBooker{}
	svc := newTestService(t, repo, booker)
	ctx := context.Background()
	budi := seedEmployee(t, svc, "Budi Santoso", 4500000)

	p, err := svc.CreatePayroll(ctx, PayrollInput{EmployeeID: budi.ID, Period: "2026-08"})
	require.NoError(t, err)
	_, err = svc.ApprovePayroll(ctx, p.ID)
	require.NoError(t, err)
	_, err = svc.PayPayroll(ctx, p.ID, PayInput{})
	require.NoError(t, err)

	_, err = svc.PayPayroll(ctx, p.ID, PayInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Len(t, booker.events, 1)
}

func TestPayRollsBackWhenBookingFails(t *testing.T) {
	repo := newMemoryRepo()
	booker := &captureBooker{err: errors.New("ledger unavailable")}
	svc := newTestService(t, repo, booker)
	ctx := context.Background()
	budi := seedEmployee(t, svc, "Budi Santoso", 4500000)

	p, err := svc.CreatePayroll(ctx, PayrollInput{EmployeeID: budi.ID, Period: "2026-08"})
	require.NoError(t, err)
	_, err = svc.ApprovePayroll(ctx, p.ID)
	require.NoError(t, err)

	_, err = svc.PayPayroll(ctx, p.ID, PayInput{})
	require.ErrorContains(t, err, "ledger unavailable")

	after, err := svc.Payroll(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, PayrollApproved, after.Status)
	require.Nil(t, after.PaidAt)
}

func TestUpdatePayrollValidatesNetPay(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, &captureBooker{})
	ctx := context.Background()
	budi := seedEmployee(t, svc, "Budi Santoso", 4500000)

	p, err := svc.CreatePayroll(ctx, PayrollInput{EmployeeID: budi.ID, Period: "2026-08"})
	require.NoError(t, err)

	deduction := 9000000.0
	_, err = svc.UpdatePayroll(ctx, p.ID, PayrollAmounts{Deduction: &deduction})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "net pay must be positive")
}

func TestPayrollStatusPredicates(t *testing.T) {
	require.True(t, PayrollDraft.CanEdit())
	require.True(t, PayrollDraft.CanApprove())
	require.False(t, PayrollDraft.CanPay())
	require.True(t, PayrollApproved.CanPay())
	require.False(t, PayrollApproved.CanEdit())
	require.False(t, PayrollPaid.CanPay())
	require.True(t, PayrollPaid.IsValid())
	require.False(t, PayrollStatus("pending").IsValid())
}
