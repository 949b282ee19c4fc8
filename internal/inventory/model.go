// Package inventory tracks stock levels and costs for products.
//
// Every change to a product's stock goes through a movement: purchases and
// positive adjustments come in, sales and service parts go out. Inbound
// movements reprice the product with a moving average, outbound movements
// consume stock at the current average without touching it.
package inventory

import "time"

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementIn     MovementType = "in"
	MovementOut    MovementType = "out"
	MovementAdjust MovementType = "adjust"
)

// StockMovement is one entry in a product's stock history. BalanceQty is the
// product's stock immediately after the movement was applied.
type StockMovement struct {
	ID            int64        `json:"id"`
	ProductID     int64        `json:"productId"`
	ProductCode   string       `json:"productCode,omitempty"`
	ProductName   string       `json:"productName,omitempty"`
	MovementType  MovementType `json:"movementType"`
	Qty           float64      `json:"qty"`
	UnitCost      float64      `json:"unitCost"`
	BalanceQty    float64      `json:"balanceQty"`
	Reference     string       `json:"reference,omitempty"`
	ReferenceType string       `json:"referenceType,omitempty"`
	Note          string       `json:"note,omitempty"`
	MovedAt       time.Time    `json:"movedAt"`
}

// Movement describes a stock change to apply. Qty is always positive; the
// direction comes from the Store method it is passed to. UnitCost is only
// read on inbound movements, outbound cost comes from the product itself.
type Movement struct {
	ProductID     int64
	Qty           float64
	UnitCost      float64
	Reference     string
	ReferenceType string
	Note          string
	MovedAt       time.Time
}

// ValuationLine is one product's contribution to the stock valuation.
type ValuationLine struct {
	ProductID   int64   `json:"productId"`
	ProductCode string  `json:"productCode"`
	ProductName string  `json:"productName"`
	Stock       float64 `json:"stock"`
	AvgCost     float64 `json:"avgCost"`
	Value       float64 `json:"value"`
}

// Valuation is the stock value of all active products at average cost.
type Valuation struct {
	TotalValue float64         `json:"totalValue"`
	TotalItems int             `json:"totalItems"`
	Lines      []ValuationLine `json:"lines"`
}
