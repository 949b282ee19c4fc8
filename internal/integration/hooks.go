// Package integration turns domain events into accounting writes.
//
// POS checkouts, service completions, purchase receipts and payroll payouts
// each map onto one balanced journal entry plus the financial records the
// report feed is built from. Hooks run inside the caller's transaction so a
// failed posting rolls the whole business event back.
package integration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lokapos/lokapos/internal/ledger"
)

// SettlementAccount maps a payment method onto the asset account the money
// lands in. Unknown methods settle to cash.
func SettlementAccount(paymentMethod string) string {
	switch paymentMethod {
	case "bank", "bank_transfer", "credit_card":
		return ledger.CodeBank
	case "accounts_receivable", "credit":
		return ledger.CodeReceivable
	default:
		return ledger.CodeCash
	}
}

// Hooks posts the accounting side of domain events.
type Hooks struct {
	logger *slog.Logger
	ledger *ledger.Service
}

// NewHooks constructs the event translators.
func NewHooks(logger *slog.Logger, ledgerSvc *ledger.Service) *Hooks {
	return &Hooks{
		logger: logger.With(slog.String("component", "integration")),
		ledger: ledgerSvc,
	}
}

// SaleLine is one sold item with the cost it left inventory at.
type SaleLine struct {
	ProductID int64
	Name      string
	Qty       float64
	UnitPrice float64
	UnitCost  float64
}

// SaleEvent describes a completed POS checkout.
type SaleEvent struct {
	SaleID        int64
	Number        string
	PaymentMethod string
	Discount      float64
	OccurredAt    time.Time
	Lines         []SaleLine
}

// Revenue is the sum of line totals less the sale discount.
func (ev SaleEvent) Revenue() float64 {
	var total float64
	for _, line := range ev.Lines {
		total += monetary(line.Qty, line.UnitPrice)
	}
	return round2(total - ev.Discount)
}

// COGS is the recorded cost of everything the sale consumed.
func (ev SaleEvent) COGS() float64 {
	var total float64
	for _, line := range ev.Lines {
		total += monetary(line.Qty, line.UnitCost)
	}
	return round2(total)
}

// SaleCompleted books a checkout: the settlement account and COGS are
// debited, sales revenue and inventory credited, and the report feed gets
// one income and one expense record.
func (h *Hooks) SaleCompleted(ctx context.Context, tx ledger.TxRepository, ev SaleEvent) error {
	revenue := ev.Revenue()
	cogs := ev.COGS()
	if revenue <= 0 {
		return fmt.Errorf("integration: sale %s has no revenue", ev.Number)
	}

	lines := []ledger.JournalLineInput{
		{AccountCode: SettlementAccount(ev.PaymentMethod), Debit: revenue, Memo: "Penerimaan " + ev.Number},
		{AccountCode: ledger.CodeSalesRevenue, Credit: revenue, Memo: "Penjualan " + ev.Number},
	}
	if cogs > 0 {
		lines = append(lines,
			ledger.JournalLineInput{AccountCode: ledger.CodeCOGS, Debit: cogs, Memo: "HPP " + ev.Number},
			ledger.JournalLineInput{AccountCode: ledger.CodeInventory, Credit: cogs, Memo: "Persediaan " + ev.Number},
		)
	}
	if _, err := h.ledger.Post(ctx, tx, ledger.JournalInput{
		EntryType:     ledger.EntrySale,
		Description:   "Penjualan " + ev.Number,
		Reference:     ev.Number,
		ReferenceType: "pos_sale",
		EntryDate:     ev.OccurredAt,
		Lines:         lines,
	}); err != nil {
		return fmt.Errorf("integration: journal for sale %s: %w", ev.Number, err)
	}

	if _, _, err := h.ledger.Record(ctx, tx, ledger.RecordInput{
		RecordType:    ledger.RecordIncome,
		Category:      "sales_revenue",
		Amount:        revenue,
		Description:   "Penjualan " + ev.Number,
		PaymentMethod: ev.PaymentMethod,
		Reference:     ev.Number,
		ReferenceType: "pos_sale",
		OccurredAt:    ev.OccurredAt,
	}); err != nil {
		return fmt.Errorf("integration: income record for sale %s: %w", ev.Number, err)
	}
	if cogs > 0 {
		if _, _, err := h.ledger.Record(ctx, tx, ledger.RecordInput{
			RecordType:    ledger.RecordExpense,
			Category:      "cogs",
			Amount:        cogs,
			Description:   "HPP penjualan " + ev.Number,
			PaymentMethod: ev.PaymentMethod,
			Reference:     ev.Number,
			ReferenceType: "pos_cogs",
			OccurredAt:    ev.OccurredAt,
		}); err != nil {
			return fmt.Errorf("integration: cogs record for sale %s: %w", ev.Number, err)
		}
	}

	h.logger.Info("sale booked",
		slog.String("number", ev.Number),
		slog.Float64("revenue", revenue),
		slog.Float64("cogs", cogs))
	return nil
}

// TicketPart is one consumed spare part on a service ticket.
type TicketPart struct {
	ProductID int64
	Name      string
	Qty       float64
	UnitPrice float64
	UnitCost  float64
}

// TicketEvent describes a service ticket moving to completed.
type TicketEvent struct {
	TicketID      int64
	Number        string
	PaymentMethod string
	LaborCharge   float64
	OccurredAt    time.Time
	Parts         []TicketPart
}

// PartsRevenue sums the billed price of consumed parts.
func (ev TicketEvent) PartsRevenue() float64 {
	var total float64
	for _, p := range ev.Parts {
		total += monetary(p.Qty, p.UnitPrice)
	}
	return round2(total)
}

// PartsCost sums the recorded cost of consumed parts.
func (ev TicketEvent) PartsCost() float64 {
	var total float64
	for _, p := range ev.Parts {
		total += monetary(p.Qty, p.UnitCost)
	}
	return round2(total)
}

// TicketCompleted books a finished service ticket. Labor and parts revenue
// are split across the service and sales revenue accounts, parts cost moves
// from inventory to COGS, and each figure lands in the report feed as its
// own record. Ticket edits can replay the event; records dedupe on their
// source triple and the journal is skipped when nothing new was recorded.
func (h *Hooks) TicketCompleted(ctx context.Context, tx ledger.TxRepository, ev TicketEvent) error {
	labor := round2(ev.LaborCharge)
	partsRevenue := ev.PartsRevenue()
	partsCost := ev.PartsCost()
	revenue := labor + partsRevenue
	if revenue <= 0 && partsCost <= 0 {
		h.logger.Info("ticket completed with nothing to book", slog.String("number", ev.Number))
		return nil
	}

	var inserted bool
	record := func(in ledger.RecordInput) error {
		_, fresh, err := h.ledger.Record(ctx, tx, in)
		if err != nil {
			return fmt.Errorf("integration: %s record for ticket %s: %w", in.Category, ev.Number, err)
		}
		inserted = inserted || fresh
		return nil
	}

	if labor > 0 {
		if err := record(ledger.RecordInput{
			RecordType:    ledger.RecordIncome,
			Category:      "service_revenue",
			Amount:        labor,
			Description:   "Jasa servis " + ev.Number,
			PaymentMethod: ev.PaymentMethod,
			Reference:     ev.Number,
			ReferenceType: "service_ticket",
			OccurredAt:    ev.OccurredAt,
		}); err != nil {
			return err
		}
	}
	if partsRevenue > 0 {
		if err := record(ledger.RecordInput{
			RecordType:    ledger.RecordIncome,
			Category:      "parts_revenue",
			Amount:        partsRevenue,
			Description:   "Penjualan sparepart " + ev.Number,
			PaymentMethod: ev.PaymentMethod,
			Reference:     ev.Number,
			ReferenceType: "service_ticket",
			OccurredAt:    ev.OccurredAt,
		}); err != nil {
			return err
		}
	}
	if partsCost > 0 {
		if err := record(ledger.RecordInput{
			RecordType:    ledger.RecordExpense,
			Category:      "cogs",
			Subcategory:   "service_parts",
			Amount:        partsCost,
			Description:   "HPP sparepart " + ev.Number,
			PaymentMethod: ev.PaymentMethod,
			Reference:     ev.Number,
			ReferenceType: "service_ticket",
			OccurredAt:    ev.OccurredAt,
		}); err != nil {
			return err
		}
	}

	if !inserted {
		h.logger.Info("ticket already booked", slog.String("number", ev.Number))
		return nil
	}

	var lines []ledger.JournalLineInput
	if revenue > 0 {
		lines = append(lines, ledger.JournalLineInput{
			AccountCode: SettlementAccount(ev.PaymentMethod), Debit: revenue, Memo: "Penerimaan " + ev.Number,
		})
	}
	if labor > 0 {
		lines = append(lines, ledger.JournalLineInput{
			AccountCode: ledger.CodeServiceRevenue, Credit: labor, Memo: "Jasa servis " + ev.Number,
		})
	}
	if partsRevenue > 0 {
		lines = append(lines, ledger.JournalLineInput{
			AccountCode: ledger.CodeSalesRevenue, Credit: partsRevenue, Memo: "Sparepart " + ev.Number,
		})
	}
	if partsCost > 0 {
		lines = append(lines,
			ledger.JournalLineInput{AccountCode: ledger.CodeCOGS, Debit: partsCost, Memo: "HPP sparepart " + ev.Number},
			ledger.JournalLineInput{AccountCode: ledger.CodeInventory, Credit: partsCost, Memo: "Persediaan " + ev.Number},
		)
	}
	if _, err := h.ledger.Post(ctx, tx, ledger.JournalInput{
		EntryType:     ledger.EntryService,
		Description:   "Servis " + ev.Number,
		Reference:     ev.Number,
		ReferenceType: "service_ticket",
		EntryDate:     ev.OccurredAt,
		Lines:         lines,
	}); err != nil {
		return fmt.Errorf("integration: journal for ticket %s: %w", ev.Number, err)
	}

	h.logger.Info("ticket booked",
		slog.String("number", ev.Number),
		slog.Float64("labor", labor),
		slog.Float64("parts_revenue", partsRevenue),
		slog.Float64("parts_cost", partsCost))
	return nil
}

// PurchaseEvent describes received inventory.
type PurchaseEvent struct {
	PurchaseID    int64
	Number        string
	SupplierName  string
	PaymentMethod string
	Total         float64
	OccurredAt    time.Time
}

// PurchaseReceived books a stock purchase as an asset move: inventory up,
// settlement account down. The report feed gets a single asset record so
// purchase cost never shows up as expense next to sale-time COGS.
func (h *Hooks) PurchaseReceived(ctx context.Context, tx ledger.TxRepository, ev PurchaseEvent) error {
	total := round2(ev.Total)
	if total <= 0 {
		return fmt.Errorf("integration: purchase %s has no total", ev.Number)
	}

	if _, err := h.ledger.Post(ctx, tx, ledger.JournalInput{
		EntryType:     ledger.EntryPurchase,
		Description:   "Pembelian " + ev.Number,
		Reference:     ev.Number,
		ReferenceType: "purchase",
		EntryDate:     ev.OccurredAt,
		Lines: []ledger.JournalLineInput{
			{AccountCode: ledger.CodeInventory, Debit: total, Memo: "Persediaan " + ev.Number},
			{AccountCode: SettlementAccount(ev.PaymentMethod), Credit: total, Memo: "Pembayaran " + ev.Number},
		},
	}); err != nil {
		return fmt.Errorf("integration: journal for purchase %s: %w", ev.Number, err)
	}

	description := "Pembelian persediaan " + ev.Number
	if ev.SupplierName != "" {
		description += " dari " + ev.SupplierName
	}
	if _, _, err := h.ledger.Record(ctx, tx, ledger.RecordInput{
		RecordType:    ledger.RecordAsset,
		Category:      "inventory_purchase",
		Amount:        total,
		Description:   description,
		PaymentMethod: ev.PaymentMethod,
		Reference:     ev.Number,
		ReferenceType: "purchase",
		OccurredAt:    ev.OccurredAt,
	}); err != nil {
		return fmt.Errorf("integration: asset record for purchase %s: %w", ev.Number, err)
	}

	h.logger.Info("purchase booked",
		slog.String("number", ev.Number),
		slog.Float64("total", total))
	return nil
}

// PayrollEvent describes one payroll record moving to paid.
type PayrollEvent struct {
	PayrollID     int64
	EmployeeName  string
	Period        string
	NetPay        float64
	PaymentMethod string
	OccurredAt    time.Time
}

// Reference identifies the payroll record in the report feed.
func (ev PayrollEvent) Reference() string {
	return fmt.Sprintf("%d", ev.PayrollID)
}

// PayrollPaid books a salary payout once. A replayed paid transition finds
// the existing record and writes nothing.
func (h *Hooks) PayrollPaid(ctx context.Context, tx ledger.TxRepository, ev PayrollEvent) error {
	netPay := round2(ev.NetPay)
	if netPay <= 0 {
		return fmt.Errorf("integration: payroll %s has no net pay", ev.Reference())
	}

	exists, err := tx.RecordExists(ctx, "payroll", ev.Reference())
	if err != nil {
		return fmt.Errorf("integration: payroll %s lookup: %w", ev.Reference(), err)
	}
	if exists {
		h.logger.Info("payroll already booked",
			slog.String("employee", ev.EmployeeName),
			slog.String("period", ev.Period))
		return nil
	}

	description := fmt.Sprintf("Gaji %s %s", ev.EmployeeName, ev.Period)
	if _, err := h.ledger.Post(ctx, tx, ledger.JournalInput{
		EntryType:     ledger.EntryPayroll,
		Description:   description,
		Reference:     ev.Reference(),
		ReferenceType: "payroll",
		EntryDate:     ev.OccurredAt,
		Lines: []ledger.JournalLineInput{
			{AccountCode: ledger.CodePayrollExpense, Debit: netPay, Memo: description},
			{AccountCode: SettlementAccount(ev.PaymentMethod), Credit: netPay, Memo: "Pembayaran gaji"},
		},
	}); err != nil {
		return fmt.Errorf("integration: journal for payroll %s: %w", ev.Reference(), err)
	}

	if _, _, err := h.ledger.Record(ctx, tx, ledger.RecordInput{
		RecordType:    ledger.RecordExpense,
		Category:      "payroll",
		Amount:        netPay,
		Description:   description,
		PaymentMethod: ev.PaymentMethod,
		Reference:     ev.Reference(),
		ReferenceType: "payroll",
		OccurredAt:    ev.OccurredAt,
	}); err != nil {
		return fmt.Errorf("integration: expense record for payroll %s: %w", ev.Reference(), err)
	}

	h.logger.Info("payroll booked",
		slog.String("employee", ev.EmployeeName),
		slog.String("period", ev.Period),
		slog.Float64("net_pay", netPay))
	return nil
}
