package servicedesk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lokapos/lokapos/internal/integration"
	"github.com/lokapos/lokapos/internal/inventory"
	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/masterdata"
	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// memoryRepo implements Repository and TxRepository in memory. A failed
// transaction restores the snapshot taken when it began.
type memoryRepo struct {
	nextID   int64
	seq      int
	order    []int64
	tickets  map[int64]*Ticket
	parts    map[int64][]TicketPart
	products map[int64]masterdata.Product
}

func newMemoryRepo(products map[int64]masterdata.Product) *memoryRepo {
	return &memoryRepo{
		tickets:  make(map[int64]*Ticket),
		parts:    make(map[int64][]TicketPart),
		products: products,
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	ticketsBefore := make(map[int64]*Ticket, len(m.tickets))
	for id, t := range m.tickets {
		cp := *t
		ticketsBefore[id] = &cp
	}
	partsBefore := make(map[int64][]TicketPart, len(m.parts))
	for id, ps := range m.parts {
		partsBefore[id] = append([]TicketPart(nil), ps...)
	}
	orderBefore := append([]int64(nil), m.order...)
	seqBefore, idBefore := m.seq, m.nextID

	if err := fn(ctx, m); err != nil {
		m.tickets, m.parts, m.order = ticketsBefore, partsBefore, orderBefore
		m.seq, m.nextID = seqBefore, idBefore
		return err
	}
	return nil
}

func (m *memoryRepo) Querier() db.Querier { return nil }

func (m *memoryRepo) NextNumber(_ context.Context, day time.Time) (string, error) {
	m.seq++
	return shared.FormatDocNumber("SRV", day, m.seq), nil
}

func (m *memoryRepo) InsertTicket(_ context.Context, t *Ticket) error {
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.tickets[t.ID] = &cp
	m.order = append(m.order, t.ID)
	return nil
}

func (m *memoryRepo) TicketForUpdate(_ context.Context, id int64) (*Ticket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: %w", id, shared.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *memoryRepo) UpdateTicket(_ context.Context, t *Ticket) error {
	if _, ok := m.tickets[t.ID]; !ok {
		return fmt.Errorf("ticket %d: %w", t.ID, shared.ErrNotFound)
	}
	cp := *t
	cp.UpdatedAt = time.Now()
	m.tickets[t.ID] = &cp
	return nil
}

func (m *memoryRepo) InsertPart(_ context.Context, p *TicketPart) error {
	m.nextID++
	p.ID = m.nextID
	m.parts[p.TicketID] = append(m.parts[p.TicketID], *p)
	return nil
}

func (m *memoryRepo) DeletePart(_ context.Context, ticketID, partID int64) error {
	ps := m.parts[ticketID]
	for i := range ps {
		if ps[i].ID == partID {
			m.parts[ticketID] = append(ps[:i:i], ps[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("ticket part %d: %w", partID, shared.ErrNotFound)
}

func (m *memoryRepo) UpdatePartCost(_ context.Context, partID int64, unitCost float64) error {
	for ticketID, ps := range m.parts {
		for i := range ps {
			if ps[i].ID == partID {
				m.parts[ticketID][i].UnitCost = unitCost
				return nil
			}
		}
	}
	return fmt.Errorf("ticket part %d: %w", partID, shared.ErrNotFound)
}

func (m *memoryRepo) Parts(_ context.Context, ticketID int64) ([]TicketPart, error) {
	ps := append([]TicketPart(nil), m.parts[ticketID]...)
	for i := range ps {
		ps[i].LineTotal = ps[i].Qty * ps[i].UnitPrice
	}
	return ps, nil
}

func (m *memoryRepo) ProductForUpdate(_ context.Context, id int64) (masterdata.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return masterdata.Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (m *memoryRepo) Tickets(ctx context.Context, _ TicketFilter) ([]Ticket, int, error) {
	var out []Ticket
	for _, id := range m.order {
		t, err := m.Ticket(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Ticket(ctx context.Context, id int64) (*Ticket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: %w", id, shared.ErrNotFound)
	}
	cp := *t
	parts, _ := m.Parts(ctx, id)
	cp.Parts = parts
	cp.PartsTotal = 0
	for _, p := range parts {
		cp.PartsTotal += p.LineTotal
	}
	cp.Total = cp.LaborCharge + cp.PartsTotal
	return &cp, nil
}

// memoryStock issues stock from the shared product catalog.
type memoryStock struct {
	products map[int64]masterdata.Product
}

func (m *memoryStock) Outbound(_ context.Context, _ db.Querier, mov inventory.Movement) (inventory.StockMovement, masterdata.Product, error) {
	p, ok := m.products[mov.ProductID]
	if !ok {
		return inventory.StockMovement{}, masterdata.Product{}, fmt.Errorf("product %d: %w", mov.ProductID, shared.ErrNotFound)
	}
	p.Stock -= mov.Qty
	m.products[mov.ProductID] = p
	return inventory.StockMovement{
		ProductID:     p.ID,
		MovementType:  inventory.MovementOut,
		Qty:           mov.Qty,
		UnitCost:      p.UnitCost(),
		BalanceQty:    p.Stock,
		Reference:     mov.Reference,
		ReferenceType: mov.ReferenceType,
		MovedAt:       mov.MovedAt,
	}, p, nil
}

// captureBooker records ticket events instead of posting journals.
type captureBooker struct {
	events []integration.TicketEvent
	err    error
}

func (b *captureBooker) TicketCompleted(_ context.Context, _ ledger.TxRepository, ev integration.TicketEvent) error {
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, ev)
	return nil
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, nil))
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *memoryStock, *captureBooker) {
	t.Helper()
	products := map[int64]masterdata.Product{
		1: {ID: 1, Code: "LCD-A52", Name: "LCD Samsung A52", Price: 450000, AvgCost: 300000, Stock: 5, IsActive: true},
		2: {ID: 2, Code: "BAT-X", Name: "Baterai Xiaomi", Price: 150000, AvgCost: 90000, Stock: 8, IsActive: true},
		3: {ID: 3, Code: "OLD-P", Name: "Part Lama", Price: 50000, AvgCost: 20000, Stock: 1, IsActive: false},
	}
	repo := newMemoryRepo(products)
	stock := &memoryStock{products: products}
	booker := &captureBooker{}
	svc := &Service{
		logger:   testLogger(t),
		repo:     repo,
		stock:    stock,
		booker:   booker,
		ledgerTx: func(db.Querier) ledger.TxRepository { return nil },
		now:      time.Now,
	}
	return svc, repo, stock, booker
}

func openTicket(t *testing.T, svc *Service) *Ticket {
	t.Helper()
	ticket, err := svc.Open(context.Background(), OpenInput{
		Device:      "Samsung A52",
		Complaint:   "Layar pecah",
		LaborCharge: 100000,
	})
	require.NoError(t, err)
	return ticket
}

func TestOpenAssignsNumberAndDefaults(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.WithNow(func() time.Time { return time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC) })

	ticket := openTicket(t, svc)
	require.Equal(t, "SRV-20260821-0001", ticket.Number)
	require.Equal(t, StatusOpen, ticket.Status)
	require.Equal(t, "cash", ticket.PaymentMethod)
	require.Equal(t, 100000.0, ticket.LaborCharge)
}

func TestOpenValidates(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Open(context.Background(), OpenInput{Complaint: "mati total"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Open(context.Background(), OpenInput{Device: "HP", Complaint: "x", LaborCharge: -1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTicketLifecycle(t *testing.T) {
	svc, _, stock, booker := newTestService(t)
	ctx := context.Background()

	ticket := openTicket(t, svc)

	ticket, err := svc.Start(ctx, ticket.ID, "budi")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, ticket.Status)
	require.Equal(t, "budi", ticket.Technician)

	ticket, err = svc.AddPart(ctx, ticket.ID, PartInput{ProductID: 1, Qty: 1})
	require.NoError(t, err)
	require.Len(t, ticket.Parts, 1)
	require.Equal(t, 450000.0, ticket.Parts[0].UnitPrice)
	require.Equal(t, 550000.0, ticket.Total)

	ticket, err = svc.Complete(ctx, ticket.ID, CompleteInput{Diagnosis: "LCD diganti"})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, ticket.Status)
	require.NotNil(t, ticket.CompletedAt)
	require.Equal(t, "LCD diganti", ticket.Diagnosis)
	require.Equal(t, 300000.0, ticket.Parts[0].UnitCost)
	require.Equal(t, 4.0, stock.products[1].Stock)

	require.Len(t, booker.events, 1)
	ev := booker.events[0]
	require.Equal(t, ticket.Number, ev.Number)
	require.Equal(t, 100000.0, ev.LaborCharge)
	require.Equal(t, 450000.0, ev.PartsRevenue())
	require.Equal(t, 300000.0, ev.PartsCost())

	ticket, err = svc.Deliver(ctx, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, ticket.Status)
}

func TestAddPartRejectsInactiveProduct(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ticket := openTicket(t, svc)

	_, err := svc.AddPart(context.Background(), ticket.ID, PartInput{ProductID: 3, Qty: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAddPartRejectsAfterCompletion(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	ticket := openTicket(t, svc)

	_, err := svc.Complete(ctx, ticket.ID, CompleteInput{})
	require.NoError(t, err)

	_, err = svc.AddPart(ctx, ticket.ID, PartInput{ProductID: 1, Qty: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRemovePart(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	ticket := openTicket(t, svc)

	ticket, err := svc.AddPart(ctx, ticket.ID, PartInput{ProductID: 2, Qty: 2, UnitPrice: 140000})
	require.NoError(t, err)
	require.Len(t, ticket.Parts, 1)

	ticket, err = svc.RemovePart(ctx, ticket.ID, ticket.Parts[0].ID)
	require.NoError(t, err)
	require.Empty(t, ticket.Parts)
	require.Equal(t, 100000.0, ticket.Total)
}

func TestCompleteRequiresSomethingToBill(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	ticket, err := svc.Open(ctx, OpenInput{Device: "HP", Complaint: "cek dulu"})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, ticket.ID, CompleteInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "nothing to bill")
}

func TestCompleteTwiceRejected(t *testing.T) {
	svc, _, _, booker := newTestService(t)
	ctx := context.Background()
	ticket := openTicket(t, svc)

	_, err := svc.Complete(ctx, ticket.ID, CompleteInput{})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, ticket.ID, CompleteInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Len(t, booker.events, 1)
}

func TestCompleteRollsBackWhenBookingFails(t *testing.T) {
	svc, repo, _, booker := newTestService(t)
	ctx := context.Background()
	ticket := openTicket(t, svc)
	booker.err = errors.New("ledger unavailable")

	_, err := svc.Complete(ctx, ticket.ID, CompleteInput{})
	require.Error(t, err)

	got, err := repo.Ticket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, got.Status)
	require.Nil(t, got.CompletedAt)
}

func TestDeliverRequiresCompletion(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ticket := openTicket(t, svc)

	_, err := svc.Deliver(context.Background(), ticket.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCancelClosedTicketRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	ticket := openTicket(t, svc)

	_, err := svc.Complete(ctx, ticket.ID, CompleteInput{})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, ticket.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestStatusPredicates(t *testing.T) {
	require.True(t, StatusOpen.CanStart())
	require.True(t, StatusOpen.CanComplete())
	require.True(t, StatusInProgress.CanComplete())
	require.False(t, StatusCompleted.CanComplete())
	require.True(t, StatusCompleted.CanDeliver())
	require.False(t, StatusDelivered.CanDeliver())
	require.False(t, StatusCompleted.CanCancel())
	require.True(t, StatusCancelled.IsValid())
	require.False(t, Status("garbage").IsValid())
}
