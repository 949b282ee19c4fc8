// Package masterdata holds the tenant catalog: products, customers and
// suppliers. The ledger translators read product cost fields from here;
// stock and cost mutations live in the inventory package.
package masterdata

import "time"

// Product is one catalog item. AvgCost is maintained by inventory as a
// moving average over purchases; LastPurchasePrice is the most recent
// purchase unit cost.
type Product struct {
	ID                int64     `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	Category          string    `json:"category,omitempty"`
	Unit              string    `json:"unit"`
	Price             float64   `json:"price"`
	Cost              float64   `json:"cost"`
	AvgCost           float64   `json:"avgCost"`
	LastPurchasePrice float64   `json:"lastPurchasePrice"`
	Stock             float64   `json:"stock"`
	MinStock          float64   `json:"minStock"`
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// UnitCost is the cost a sale or part consumption books against
// inventory: the moving average when known, else the last purchase
// price, else the catalog cost.
func (p Product) UnitCost() float64 {
	if p.AvgCost > 0 {
		return p.AvgCost
	}
	if p.LastPurchasePrice > 0 {
		return p.LastPurchasePrice
	}
	return p.Cost
}

// LowOnStock reports whether the product sits at or under its minimum.
func (p Product) LowOnStock() bool {
	return p.MinStock > 0 && p.Stock <= p.MinStock
}

// Customer is a buyer in the tenant's books.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Supplier is a vendor purchases are received from.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
