// Package reporting aggregates the financial-record feed and the live
// sales, service, and stock tables into period summaries. It only
// reads; every number here is derivable from the domain tables.
package reporting

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lokapos/lokapos/internal/ledger"
)

// Window is the inclusive date range a report covers.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SalesTotals folds completed sales over a window.
type SalesTotals struct {
	Transactions int64   `json:"transactions"`
	Gross        float64 `json:"gross"`
	Discount     float64 `json:"discount"`
	Net          float64 `json:"net"`
	COGS         float64 `json:"cogs"`
	GrossProfit  float64 `json:"grossProfit"`
}

// DailySales is one day of the sales series.
type DailySales struct {
	Date         string  `json:"date"`
	Transactions int64   `json:"transactions"`
	Net          float64 `json:"net"`
}

// ProductSales ranks a product by revenue within the window.
type ProductSales struct {
	ProductID   int64   `json:"productId"`
	ProductCode string  `json:"productCode"`
	ProductName string  `json:"productName"`
	Qty         float64 `json:"qty"`
	Net         float64 `json:"net"`
}

// SalesReport is the POS summary for one window.
type SalesReport struct {
	Window          Window             `json:"window"`
	Totals          SalesTotals        `json:"totals"`
	NetDisplay      string             `json:"netDisplay"`
	ProfitDisplay   string             `json:"profitDisplay"`
	ByPaymentMethod map[string]float64 `json:"byPaymentMethod"`
	Daily           []DailySales       `json:"daily"`
	TopProducts     []ProductSales     `json:"topProducts"`
}

// ServiceTotals splits finished repair revenue into labor and parts.
// Tickets are attributed to the window by completion time.
type ServiceTotals struct {
	Completed    int64   `json:"completed"`
	LaborRevenue float64 `json:"laborRevenue"`
	PartsRevenue float64 `json:"partsRevenue"`
	PartsCost    float64 `json:"partsCost"`
	Revenue      float64 `json:"revenue"`
}

// ServiceReport is the repair-desk summary for one window.
type ServiceReport struct {
	Window         Window           `json:"window"`
	Totals         ServiceTotals    `json:"totals"`
	RevenueDisplay string           `json:"revenueDisplay"`
	ByStatus       map[string]int64 `json:"byStatus"`
}

// FinancialReport wraps the ledger summary with display strings.
type FinancialReport struct {
	Window           Window         `json:"window"`
	Summary          ledger.Summary `json:"summary"`
	IncomeDisplay    string         `json:"incomeDisplay"`
	ExpenseDisplay   string         `json:"expenseDisplay"`
	NetProfitDisplay string         `json:"netProfitDisplay"`
}

// ProductValue is one product's contribution to stock value, priced at
// its recorded unit cost.
type ProductValue struct {
	ProductID   int64   `json:"productId"`
	ProductCode string  `json:"productCode"`
	ProductName string  `json:"productName"`
	Stock       float64 `json:"stock"`
	UnitCost    float64 `json:"unitCost"`
	Value       float64 `json:"value"`
}

// LowStockItem flags a product at or below its minimum stock level.
type LowStockItem struct {
	ProductID   int64   `json:"productId"`
	ProductCode string  `json:"productCode"`
	ProductName string  `json:"productName"`
	Stock       float64 `json:"stock"`
	MinStock    float64 `json:"minStock"`
}

// InventoryValueReport is the stock valuation snapshot.
type InventoryValueReport struct {
	AsOf              time.Time      `json:"asOf"`
	Products          []ProductValue `json:"products"`
	TotalValue        float64        `json:"totalValue"`
	TotalValueDisplay string         `json:"totalValueDisplay"`
	LowStock          []LowStockItem `json:"lowStock"`
}

// Dashboard is the landing snapshot: today's trade, the month so far,
// and the two operational queues worth watching.
type Dashboard struct {
	Today         SalesTotals    `json:"today"`
	MonthSales    SalesTotals    `json:"monthSales"`
	Month         ledger.Summary `json:"month"`
	OpenTickets   int64          `json:"openTickets"`
	LowStockCount int            `json:"lowStockCount"`
	GeneratedAt   time.Time      `json:"generatedAt"`
}

// rupiah renders amounts the way receipts in the field print them,
// thousands separated with dots.
var rupiah = message.NewPrinter(language.Indonesian)

func formatMoney(v float64) string {
	return rupiah.Sprintf("Rp %.0f", v)
}
