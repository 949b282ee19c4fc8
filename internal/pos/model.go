// Package pos runs the sales counter. A checkout issues stock, prices the
// receipt, posts the sale to the ledger and writes the report feed records in
// one transaction.
package pos

import "time"

// SaleStatus values. Every checkout lands completed; there is no draft
// basket on the server side.
const StatusCompleted = "completed"

// Sale is one finished checkout.
type Sale struct {
	ID            int64      `json:"id"`
	Number        string     `json:"number"`
	CustomerID    *int64     `json:"customerId,omitempty"`
	CustomerName  string     `json:"customerName,omitempty"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"paymentMethod"`
	Subtotal      float64    `json:"subtotal"`
	Discount      float64    `json:"discount"`
	Total         float64    `json:"total"`
	PaidAmount    float64    `json:"paidAmount"`
	ChangeAmount  float64    `json:"changeAmount"`
	Cashier       string     `json:"cashier,omitempty"`
	SoldAt        time.Time  `json:"soldAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	Items         []SaleItem `json:"items,omitempty"`
}

// SaleItem is one receipt line. UnitCost is the cost the stock left
// inventory at, frozen at checkout time.
type SaleItem struct {
	ID          int64   `json:"id"`
	SaleID      int64   `json:"saleId"`
	ProductID   int64   `json:"productId"`
	ProductCode string  `json:"productCode,omitempty"`
	ProductName string  `json:"productName,omitempty"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unitPrice"`
	UnitCost    float64 `json:"unitCost"`
	LineTotal   float64 `json:"lineTotal"`
}
