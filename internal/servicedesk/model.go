// Package servicedesk manages repair tickets from intake to handover.
// Completing a ticket consumes its reserved parts from stock and books
// labor and parts revenue through the ledger translators, all inside
// the transaction that flips the status.
package servicedesk

import "time"

// Status is the lifecycle state of a service ticket.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanEdit reports whether ticket fields and parts may still change.
func (s Status) CanEdit() bool {
	return s == StatusOpen || s == StatusInProgress
}

// CanStart reports whether work on the ticket may begin.
func (s Status) CanStart() bool {
	return s == StatusOpen
}

// CanComplete reports whether the ticket may be completed. Walk-in
// repairs finished on the spot go straight from open to completed.
func (s Status) CanComplete() bool {
	return s == StatusOpen || s == StatusInProgress
}

// CanDeliver reports whether the finished device may be handed over.
func (s Status) CanDeliver() bool {
	return s == StatusCompleted
}

// CanCancel reports whether the ticket may still be cancelled. Parts
// only leave stock at completion, so cancelling never returns stock.
func (s Status) CanCancel() bool {
	return s == StatusOpen || s == StatusInProgress
}

// Ticket is a repair job for a customer device.
type Ticket struct {
	ID            int64        `json:"id"`
	Number        string       `json:"number"`
	CustomerID    *int64       `json:"customerId,omitempty"`
	CustomerName  string       `json:"customerName,omitempty"`
	Device        string       `json:"device"`
	Complaint     string       `json:"complaint"`
	Diagnosis     string       `json:"diagnosis,omitempty"`
	Status        Status       `json:"status"`
	Technician    string       `json:"technician,omitempty"`
	LaborCharge   float64      `json:"laborCharge"`
	PaymentMethod string       `json:"paymentMethod"`
	PartsTotal    float64      `json:"partsTotal"`
	Total         float64      `json:"total"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	Parts         []TicketPart `json:"parts,omitempty"`
}

// TicketPart is a spare part reserved for a ticket. UnitCost starts as
// an estimate from the product's recorded cost and is fixed to the
// actual cost when the part leaves stock at completion.
type TicketPart struct {
	ID          int64   `json:"id"`
	TicketID    int64   `json:"ticketId"`
	ProductID   int64   `json:"productId"`
	ProductCode string  `json:"productCode,omitempty"`
	ProductName string  `json:"productName,omitempty"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unitPrice"`
	UnitCost    float64 `json:"unitCost"`
	LineTotal   float64 `json:"lineTotal"`
}
