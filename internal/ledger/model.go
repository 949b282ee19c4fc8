// Package ledger is the tenant-scoped financial core: the chart of
// accounts, the double-entry journal engine, and the denormalized
// financial-record feed the dashboards read.
package ledger

import "time"

// AccountType classifies a chart-of-accounts node.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountEquity    AccountType = "equity"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
)

// NormalBalance is the side an account naturally grows on.
type NormalBalance string

const (
	BalanceDebit  NormalBalance = "debit"
	BalanceCredit NormalBalance = "credit"
)

// Account is one chart-of-accounts row in a tenant database.
type Account struct {
	ID            int64         `json:"id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Type          AccountType   `json:"type"`
	Subtype       string        `json:"subtype,omitempty"`
	NormalBalance NormalBalance `json:"normalBalance"`
	ParentID      *int64        `json:"parentId,omitempty"`
	IsActive      bool          `json:"isActive"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// EntryType tags what kind of business event produced a journal entry.
type EntryType string

const (
	EntrySale     EntryType = "sale"
	EntryService  EntryType = "service"
	EntryPurchase EntryType = "purchase"
	EntryPayroll  EntryType = "payroll"
	EntryManual   EntryType = "manual"
)

// JournalStatus is the entry lifecycle. Entries post immediately and
// stay posted; there is no draft or void workflow.
type JournalStatus string

const JournalPosted JournalStatus = "posted"

// JournalEntry is a posted double-entry record. Number comes from a
// per-database sequence so it is unique and monotonic per tenant.
type JournalEntry struct {
	ID            int64         `json:"id"`
	Number        int64         `json:"number"`
	EntryType     EntryType     `json:"entryType"`
	Description   string        `json:"description,omitempty"`
	Reference     string        `json:"reference,omitempty"`
	ReferenceType string        `json:"referenceType,omitempty"`
	TotalAmount   float64       `json:"totalAmount"`
	Status        JournalStatus `json:"status"`
	EntryDate     time.Time     `json:"entryDate"`
	CreatedAt     time.Time     `json:"createdAt"`
	Lines         []JournalLine `json:"lines,omitempty"`
}

// JournalLine carries one side of a posting. Either debit or credit is
// normally zero; both are stored.
type JournalLine struct {
	ID          int64   `json:"id"`
	JournalID   int64   `json:"journalId"`
	AccountID   int64   `json:"accountId"`
	AccountCode string  `json:"accountCode,omitempty"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Memo        string  `json:"memo,omitempty"`
}

// RecordType classifies a financial record. Only income and expense
// count toward profit; asset and transfer live outside those totals.
type RecordType string

const (
	RecordIncome   RecordType = "income"
	RecordExpense  RecordType = "expense"
	RecordTransfer RecordType = "transfer"
	RecordAsset    RecordType = "asset"
)

// Valid reports whether the record type is one of the known values.
func (t RecordType) Valid() bool {
	switch t {
	case RecordIncome, RecordExpense, RecordTransfer, RecordAsset:
		return true
	}
	return false
}

// RecordStatus is the financial-record lifecycle.
type RecordStatus string

const (
	RecordConfirmed RecordStatus = "confirmed"
	RecordPending   RecordStatus = "pending"
	RecordCancelled RecordStatus = "cancelled"
)

// FinancialRecord is one row of the report feed: a single economic
// event, denormalized for fast aggregation. Reference and ReferenceType
// point back at the domain object that caused it.
type FinancialRecord struct {
	ID            int64        `json:"id"`
	RecordType    RecordType   `json:"recordType"`
	Category      string       `json:"category"`
	Subcategory   string       `json:"subcategory,omitempty"`
	Amount        float64      `json:"amount"`
	Description   string       `json:"description,omitempty"`
	PaymentMethod string       `json:"paymentMethod"`
	Reference     string       `json:"reference,omitempty"`
	ReferenceType string       `json:"referenceType,omitempty"`
	Status        RecordStatus `json:"status"`
	Tags          []string     `json:"tags,omitempty"`
	OccurredAt    time.Time    `json:"occurredAt"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Summary aggregates the record feed over a date window. Both window
// bounds are inclusive. Income and expense are the only types folded
// into the totals; TransactionCount counts every record in the window.
type Summary struct {
	TotalIncome       float64            `json:"totalIncome"`
	TotalExpense      float64            `json:"totalExpense"`
	NetProfit         float64            `json:"netProfit"`
	TransactionCount  int64              `json:"transactionCount"`
	IncomeByCategory  map[string]float64 `json:"incomeByCategory"`
	ExpenseByCategory map[string]float64 `json:"expenseByCategory"`
	ByPaymentMethod   map[string]float64 `json:"byPaymentMethod"`
}
