package procurement

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
// transaction discards everything written inside it.
type memoryRepo struct {
	nextID    int64
	seq       int
	purchases []Purchase
	items     map[int64][]PurchaseItem
	suppliers map[int64]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:     make(map[int64][]PurchaseItem),
		suppliers: map[int64]string{7: "PT Sumber Makmur"},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	before := len(m.purchases)
	seqBefore := m.seq
	err := fn(ctx, m)
	if err != nil {
		for _, p := range m.purchases[before:] {
			delete(m.items, p.ID)
		}
		m.purchases = m.purchases[:before]
		m.seq = seqBefore
	}
	return err
}

func (m *memoryRepo) Querier() db.Querier { return nil }

func (m *memoryRepo) NextNumber(_ context.Context, day time.Time) (string, error) {
	m.seq++
	return shared.FormatDocNumber("PO", day, m.seq), nil
}

func (m *memoryRepo) InsertPurchase(_ context.Context, p *Purchase) error {
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	m.purchases = append(m.purchases, *p)
	return nil
}

func (m *memoryRepo) InsertItems(_ context.Context, purchaseID int64, items []PurchaseItem) error {
	for i := range items {
		m.nextID++
		items[i].ID = m.nextID
		items[i].PurchaseID = purchaseID
	}
	m.items[purchaseID] = append(m.items[purchaseID], items...)
	return nil
}

func (m *memoryRepo) SupplierName(_ context.Context, id int64) (string, error) {
	name, ok := m.suppliers[id]
	if !ok {
		return "", fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
	}
	return name, nil
}

func (m *memoryRepo) Purchases(context.Context, PurchaseFilter) ([]Purchase, int, error) {
	return m.purchases, len(m.purchases), nil
}

func (m *memoryRepo) Purchase(_ context.Context, id int64) (*Purchase, error) {
	for _, p := range m.purchases {
		if p.ID == id {
			p.Items = m.items[id]
			return &p, nil
		}
	}
	return nil, shared.ErrNotFound
}

// memoryStock reprices an in-memory catalog the way the real store does.
type memoryStock struct {
	products map[int64]masterdata.Product
}

func (m *memoryStock) Inbound(_ context.Context, _ db.Querier, mov inventory.Movement) (inventory.StockMovement, masterdata.Product, error) {
	p, ok := m.products[mov.ProductID]
	if !ok {
		return inventory.StockMovement{}, masterdata.Product{}, fmt.Errorf("product %d: %w", mov.ProductID, shared.ErrNotFound)
	}
	prevQty := p.Stock
	if prevQty < 0 {
		prevQty = 0
	}
	newQty := prevQty + mov.Qty
	if newQty > 0 {
		p.AvgCost = (prevQty*p.AvgCost + mov.Qty*mov.UnitCost) / newQty
	} else {
		p.AvgCost = mov.UnitCost
	}
	p.Stock += mov.Qty
	p.LastPurchasePrice = mov.UnitCost
	m.products[mov.ProductID] = p
	return inventory.StockMovement{
		ProductID:     p.ID,
		MovementType:  inventory.MovementIn,
		Qty:           mov.Qty,
		UnitCost:      mov.UnitCost,
		BalanceQty:    p.Stock,
		Reference:     mov.Reference,
		ReferenceType: mov.ReferenceType,
		MovedAt:       mov.MovedAt,
	}, p, nil
}

// captureBooker records purchase events instead of posting journals.
type captureBooker struct {
	events []integration.PurchaseEvent
	err    error
}

func (b *captureBooker) PurchaseReceived(_ context.Context, _ ledger.TxRepository, ev integration.PurchaseEvent) error {
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
	repo := newMemoryRepo()
	stock := &memoryStock{products: map[int64]masterdata.Product{
		1: {ID: 1, Code: "BRS-5", Name: "Beras 5kg", Price: 50000, AvgCost: 30000, Stock: 10, IsActive: true},
		2: {ID: 2, Code: "MNY-1", Name: "Minyak 1L", Price: 20000, AvgCost: 15000, Stock: 0, IsActive: true},
	}}
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

func TestReceiveMovesStockAndBooksAsset(t *testing.T) {
	svc, repo, stock, booker := newTestService(t)
	receivedAt := time.Date(2026, 8, 21, 8, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return receivedAt })
	supplierID := int64(7)

	purchase, err := svc.Receive(context.Background(), ReceiveInput{
		SupplierID:    &supplierID,
		PaymentMethod: "bank_transfer",
		Items: []ReceiveItem{
			{ProductID: 1, Qty: 10, UnitCost: 32000},
			{ProductID: 2, Qty: 24, UnitCost: 14500},
		},
	})
	require.NoError(t, err)

	require.Equal(t, "PO-20260821-0001", purchase.Number)
	require.Equal(t, StatusReceived, purchase.Status)
	require.Equal(t, "PT Sumber Makmur", purchase.SupplierName)
	require.Equal(t, 668000.0, purchase.Total)
	require.Len(t, purchase.Items, 2)
	require.Equal(t, 320000.0, purchase.Items[0].LineTotal)

	require.Equal(t, 20.0, stock.products[1].Stock)
	require.InDelta(t, 31000.0, stock.products[1].AvgCost, 0.01)
	require.Equal(t, 32000.0, stock.products[1].LastPurchasePrice)
	require.Equal(t, 24.0, stock.products[2].Stock)
	require.Equal(t, 14500.0, stock.products[2].AvgCost)

	require.Len(t, booker.events, 1)
	require.Equal(t, 668000.0, booker.events[0].Total)
	require.Equal(t, "PT Sumber Makmur", booker.events[0].SupplierName)
	require.Equal(t, "bank_transfer", booker.events[0].PaymentMethod)

	require.Len(t, repo.purchases, 1)
}

func TestReceiveZeroValueSkipsLedger(t *testing.T) {
	svc, repo, stock, booker := newTestService(t)

	purchase, err := svc.Receive(context.Background(), ReceiveInput{
		Items: []ReceiveItem{{ProductID: 2, Qty: 5, UnitCost: 0}},
	})
	require.NoError(t, err)
	require.Equal(t, 0.0, purchase.Total)
	require.Equal(t, 5.0, stock.products[2].Stock)
	require.Empty(t, booker.events)
	require.Len(t, repo.purchases, 1)
}

func TestReceiveBackdates(t *testing.T) {
	svc, _, _, booker := newTestService(t)
	yesterday := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	purchase, err := svc.Receive(context.Background(), ReceiveInput{
		ReceivedAt: &yesterday,
		Items:      []ReceiveItem{{ProductID: 1, Qty: 1, UnitCost: 30000}},
	})
	require.NoError(t, err)
	require.Equal(t, "PO-20260820-0001", purchase.Number)
	require.Equal(t, yesterday, purchase.ReceivedAt)
	require.Equal(t, yesterday, booker.events[0].OccurredAt)
}

func TestReceiveValidatesInput(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Receive(context.Background(), ReceiveInput{})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Receive(context.Background(), ReceiveInput{
		Items: []ReceiveItem{{ProductID: 1, Qty: 0, UnitCost: 100}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Receive(context.Background(), ReceiveInput{
		Items: []ReceiveItem{{ProductID: 1, Qty: 1, UnitCost: -5}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReceiveRollsBackWhenBookingFails(t *testing.T) {
	svc, repo, _, booker := newTestService(t)
	booker.err = errors.New("ledger unavailable")

	_, err := svc.Receive(context.Background(), ReceiveInput{
		Items: []ReceiveItem{{ProductID: 1, Qty: 2, UnitCost: 31000}},
	})
	require.Error(t, err)
	require.Empty(t, repo.purchases)
}

func TestReceiveUnknownSupplierFails(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	missing := int64(99)

	_, err := svc.Receive(context.Background(), ReceiveInput{
		SupplierID: &missing,
		Items:      []ReceiveItem{{ProductID: 1, Qty: 1, UnitCost: 1000}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.purchases)
}
