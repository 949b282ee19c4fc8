// Package procurement records inventory purchases. Receiving a purchase
// prices the stock in at the supplier's cost, moves the moving average,
// and books the spend as an asset through the ledger translators, never
// as expense.
package procurement

import "time"

// StatusReceived is the only purchase status. Stock and ledger effects
// happen at receipt, so a purchase exists once the goods are in.
const StatusReceived = "received"

// Purchase is a received supplier delivery.
type Purchase struct {
	ID            int64          `json:"id"`
	Number        string         `json:"number"`
	SupplierID    *int64         `json:"supplierId,omitempty"`
	SupplierName  string         `json:"supplierName,omitempty"`
	Status        string         `json:"status"`
	PaymentMethod string         `json:"paymentMethod"`
	Total         float64        `json:"total"`
	Note          string         `json:"note,omitempty"`
	ReceivedAt    time.Time      `json:"receivedAt"`
	CreatedAt     time.Time      `json:"createdAt"`
	Items         []PurchaseItem `json:"items,omitempty"`
}

// PurchaseItem is one received product line.
type PurchaseItem struct {
	ID          int64   `json:"id"`
	PurchaseID  int64   `json:"purchaseId"`
	ProductID   int64   `json:"productId"`
	ProductCode string  `json:"productCode,omitempty"`
	ProductName string  `json:"productName,omitempty"`
	Qty         float64 `json:"qty"`
	UnitCost    float64 `json:"unitCost"`
	LineTotal   float64 `json:"lineTotal"`
}
