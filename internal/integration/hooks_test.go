package integration

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lokapos/lokapos/internal/ledger"
)

// memoryLedger is an in-memory ledger.TxRepository for hook tests.
type memoryLedger struct {
	nextID   int64
	accounts map[string]ledger.Account
	journals []ledger.JournalEntry
	lines    map[int64][]ledger.JournalLine
	records  []ledger.FinancialRecord
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		accounts: make(map[string]ledger.Account),
		lines:    make(map[int64][]ledger.JournalLine),
	}
}

func (m *memoryLedger) AccountsByCode(_ context.Context, codes []string) (map[string]ledger.Account, error) {
	out := make(map[string]ledger.Account)
	for _, code := range codes {
		if a, ok := m.accounts[code]; ok {
			out[code] = a
		}
	}
	return out, nil
}

func (m *memoryLedger) InsertAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	if existing, ok := m.accounts[a.Code]; ok {
		return existing, nil
	}
	m.nextID++
	a.ID = m.nextID
	m.accounts[a.Code] = a
	return a, nil
}

func (m *memoryLedger) InsertJournal(_ context.Context, e *ledger.JournalEntry) error {
	m.nextID++
	e.ID = m.nextID
	e.Number = int64(len(m.journals) + 1)
	e.Status = ledger.JournalPosted
	m.journals = append(m.journals, *e)
	return nil
}

func (m *memoryLedger) InsertJournalLines(_ context.Context, journalID int64, lines []ledger.JournalLine) error {
	for i := range lines {
		m.nextID++
		lines[i].ID = m.nextID
		lines[i].JournalID = journalID
	}
	m.lines[journalID] = append(m.lines[journalID], lines...)
	return nil
}

func (m *memoryLedger) InsertRecord(_ context.Context, rec *ledger.FinancialRecord) (bool, error) {
	if rec.Reference != "" {
		for _, existing := range m.records {
			if existing.ReferenceType == rec.ReferenceType &&
				existing.Reference == rec.Reference &&
				existing.Description == rec.Description {
				*rec = existing
				return false, nil
			}
		}
	}
	m.nextID++
	rec.ID = m.nextID
	m.records = append(m.records, *rec)
	return true, nil
}

func (m *memoryLedger) RecordExists(_ context.Context, referenceType, reference string) (bool, error) {
	for _, rec := range m.records {
		if rec.ReferenceType == referenceType && rec.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryLedger) lastLines(t *testing.T) []ledger.JournalLine {
	t.Helper()
	require.NotEmpty(t, m.journals)
	return m.lines[m.journals[len(m.journals)-1].ID]
}

func findLine(t *testing.T, lines []ledger.JournalLine, code string) ledger.JournalLine {
	t.Helper()
	for _, line := range lines {
		if line.AccountCode == code {
			return line
		}
	}
	t.Fatalf("no line for account %s", code)
	return ledger.JournalLine{}
}

func recordsByType(records []ledger.FinancialRecord, typ ledger.RecordType) []ledger.FinancialRecord {
	var out []ledger.FinancialRecord
	for _, rec := range records {
		if rec.RecordType == typ {
			out = append(out, rec)
		}
	}
	return out
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func newTestHooks(t *testing.T) (*Hooks, *memoryLedger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewHooks(logger, ledger.NewService(logger, nil, nil)), newMemoryLedger()
}

func TestSettlementAccount(t *testing.T) {
	cases := map[string]string{
		"cash":                ledger.CodeCash,
		"bank":                ledger.CodeBank,
		"bank_transfer":       ledger.CodeBank,
		"credit_card":         ledger.CodeBank,
		"accounts_receivable": ledger.CodeReceivable,
		"credit":              ledger.CodeReceivable,
		"":                    ledger.CodeCash,
		"qris":                ledger.CodeCash,
	}
	for method, want := range cases {
		require.Equal(t, want, SettlementAccount(method), "method %q", method)
	}
}

func TestSaleCompletedBooksJournalAndRecords(t *testing.T) {
	hooks, store := newTestHooks(t)
	soldAt := time.Date(2026, 8, 21, 14, 30, 0, 0, time.UTC)

	err := hooks.SaleCompleted(context.Background(), store, SaleEvent{
		SaleID:        1,
		Number:        "POS-20260821-0001",
		PaymentMethod: "cash",
		OccurredAt:    soldAt,
		Lines: []SaleLine{
			{ProductID: 1, Name: "Beras 5kg", Qty: 2, UnitPrice: 50000, UnitCost: 30000},
		},
	})
	require.NoError(t, err)

	require.Len(t, store.journals, 1)
	entry := store.journals[0]
	require.Equal(t, ledger.EntrySale, entry.EntryType)
	require.Equal(t, 100000.0, entry.TotalAmount)
	require.Equal(t, "POS-20260821-0001", entry.Reference)
	require.Equal(t, "pos_sale", entry.ReferenceType)

	lines := store.lastLines(t)
	require.Len(t, lines, 4)
	require.Equal(t, 100000.0, findLine(t, lines, ledger.CodeCash).Debit)
	require.Equal(t, 100000.0, findLine(t, lines, ledger.CodeSalesRevenue).Credit)
	require.Equal(t, 60000.0, findLine(t, lines, ledger.CodeCOGS).Debit)
	require.Equal(t, 60000.0, findLine(t, lines, ledger.CodeInventory).Credit)

	income := recordsByType(store.records, ledger.RecordIncome)
	require.Len(t, income, 1)
	require.Equal(t, "sales_revenue", income[0].Category)
	require.Equal(t, 100000.0, income[0].Amount)
	require.Equal(t, "pos_sale", income[0].ReferenceType)

	expense := recordsByType(store.records, ledger.RecordExpense)
	require.Len(t, expense, 1)
	require.Equal(t, "cogs", expense[0].Category)
	require.Equal(t, 60000.0, expense[0].Amount)
	require.Equal(t, "pos_cogs", expense[0].ReferenceType)
}

func TestSaleWithoutRevenueFails(t *testing.T) {
	hooks, store := newTestHooks(t)
	err := hooks.SaleCompleted(context.Background(), store, SaleEvent{Number: "POS-X"})
	require.Error(t, err)
	require.Empty(t, store.journals)
	require.Empty(t, store.records)
}

func TestSaleDiscountShrinksRevenue(t *testing.T) {
	hooks, store := newTestHooks(t)
	err := hooks.SaleCompleted(context.Background(), store, SaleEvent{
		Number:        "POS-20260821-0002",
		PaymentMethod: "bank_transfer",
		Discount:      5000,
		Lines: []SaleLine{
			{ProductID: 2, Qty: 1, UnitPrice: 75000, UnitCost: 40000},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 70000.0, store.journals[0].TotalAmount)
	require.Equal(t, 70000.0, findLine(t, store.lastLines(t), ledger.CodeBank).Debit)
}

func TestTicketCompletedSplitsRevenue(t *testing.T) {
	hooks, store := newTestHooks(t)
	completedAt := time.Date(2026, 8, 22, 16, 0, 0, 0, time.UTC)

	err := hooks.TicketCompleted(context.Background(), store, TicketEvent{
		TicketID:      9,
		Number:        "SRV-20260822-0003",
		PaymentMethod: "cash",
		LaborCharge:   100000,
		OccurredAt:    completedAt,
		Parts: []TicketPart{
			{ProductID: 5, Name: "LCD", Qty: 1, UnitPrice: 50000, UnitCost: 30000},
		},
	})
	require.NoError(t, err)

	require.Len(t, store.journals, 1)
	lines := store.lastLines(t)
	require.Len(t, lines, 5)
	require.Equal(t, 150000.0, findLine(t, lines, ledger.CodeCash).Debit)
	require.Equal(t, 100000.0, findLine(t, lines, ledger.CodeServiceRevenue).Credit)
	require.Equal(t, 50000.0, findLine(t, lines, ledger.CodeSalesRevenue).Credit)
	require.Equal(t, 30000.0, findLine(t, lines, ledger.CodeCOGS).Debit)
	require.Equal(t, 30000.0, findLine(t, lines, ledger.CodeInventory).Credit)

	require.Len(t, store.records, 3)
	income := recordsByType(store.records, ledger.RecordIncome)
	require.Len(t, income, 2)
	expense := recordsByType(store.records, ledger.RecordExpense)
	require.Len(t, expense, 1)
	require.Equal(t, "service_parts", expense[0].Subcategory)
}

func TestTicketCompletedReplayBooksOnce(t *testing.T) {
	hooks, store := newTestHooks(t)
	ev := TicketEvent{
		TicketID:      9,
		Number:        "SRV-20260822-0003",
		PaymentMethod: "cash",
		LaborCharge:   100000,
	}

	require.NoError(t, hooks.TicketCompleted(context.Background(), store, ev))
	require.NoError(t, hooks.TicketCompleted(context.Background(), store, ev))

	require.Len(t, store.journals, 1)
	require.Len(t, store.records, 1)
}

func TestTicketLaborOnly(t *testing.T) {
	hooks, store := newTestHooks(t)
	err := hooks.TicketCompleted(context.Background(), store, TicketEvent{
		Number:        "SRV-20260822-0004",
		PaymentMethod: "cash",
		LaborCharge:   80000,
	})
	require.NoError(t, err)

	lines := store.lastLines(t)
	require.Len(t, lines, 2)
	require.Equal(t, 80000.0, findLine(t, lines, ledger.CodeCash).Debit)
	require.Equal(t, 80000.0, findLine(t, lines, ledger.CodeServiceRevenue).Credit)
	require.Len(t, store.records, 1)
	require.Equal(t, "service_revenue", store.records[0].Category)
}

func TestPurchaseReceivedBooksAssetNotExpense(t *testing.T) {
	hooks, store := newTestHooks(t)
	err := hooks.PurchaseReceived(context.Background(), store, PurchaseEvent{
		PurchaseID:    3,
		Number:        "PO-20260823-0001",
		SupplierName:  "PT Sumber Rejeki",
		PaymentMethod: "bank_transfer",
		Total:         2500000,
	})
	require.NoError(t, err)

	lines := store.lastLines(t)
	require.Equal(t, 2500000.0, findLine(t, lines, ledger.CodeInventory).Debit)
	require.Equal(t, 2500000.0, findLine(t, lines, ledger.CodeBank).Credit)

	require.Len(t, store.records, 1)
	require.Equal(t, ledger.RecordAsset, store.records[0].RecordType)
	require.Equal(t, "inventory_purchase", store.records[0].Category)
	require.Empty(t, recordsByType(store.records, ledger.RecordIncome))
	require.Empty(t, recordsByType(store.records, ledger.RecordExpense))
}

func TestPayrollPaidTwiceBooksOnce(t *testing.T) {
	hooks, store := newTestHooks(t)
	ev := PayrollEvent{
		PayrollID:     12,
		EmployeeName:  "Budi Santoso",
		Period:        "2026-08",
		NetPay:        4500000,
		PaymentMethod: "bank_transfer",
	}

	require.NoError(t, hooks.PayrollPaid(context.Background(), store, ev))
	require.NoError(t, hooks.PayrollPaid(context.Background(), store, ev))

	require.Len(t, store.journals, 1)
	expense := recordsByType(store.records, ledger.RecordExpense)
	require.Len(t, expense, 1)
	require.Equal(t, "payroll", expense[0].Category)
	require.Equal(t, 4500000.0, expense[0].Amount)

	lines := store.lastLines(t)
	require.Equal(t, 4500000.0, findLine(t, lines, ledger.CodePayrollExpense).Debit)
	require.Equal(t, 4500000.0, findLine(t, lines, ledger.CodeBank).Credit)
}
