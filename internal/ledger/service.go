package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lokapos/lokapos/internal/observability"
	"github.com/lokapos/lokapos/internal/shared"
)

// Service is the double-entry journal engine plus the financial-record
// recorder. Translators in other packages compose its Tx methods inside
// their own transactions; the plain methods open one themselves.
type Service struct {
	logger  *slog.Logger
	repo    Repository
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService constructs the ledger service.
func NewService(logger *slog.Logger, repo Repository, metrics *observability.Metrics) *Service {
	return &Service{logger: logger, repo: repo, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Repo exposes the repository for read-side collaborators.
func (s *Service) Repo() Repository {
	return s.repo
}

// JournalLineInput is one requested posting line, addressed by account
// code rather than id.
type JournalLineInput struct {
	AccountCode string
	Debit       float64
	Credit      float64
	Memo        string
}

// JournalInput is a journal entry to post.
type JournalInput struct {
	EntryType     EntryType
	Description   string
	Reference     string
	ReferenceType string
	EntryDate     time.Time
	Lines         []JournalLineInput
}

// Validate checks line shape and the balance invariant. Totals are
// compared after rounding to two decimals.
func (in JournalInput) Validate() error {
	if in.EntryType == "" {
		return fmt.Errorf("ledger: entry type required: %w", shared.ErrValidation)
	}
	if len(in.Lines) < 2 {
		return fmt.Errorf("ledger: journal needs at least two lines: %w", shared.ErrValidation)
	}
	var debit, credit float64
	for i, line := range in.Lines {
		if line.AccountCode == "" {
			return fmt.Errorf("ledger: line %d missing account code: %w", i, shared.ErrValidation)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("ledger: line %d has a negative amount: %w", i, shared.ErrValidation)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("ledger: line %d cannot carry both debit and credit: %w", i, shared.ErrValidation)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if fmt.Sprintf("%.2f", debit) != fmt.Sprintf("%.2f", credit) {
		return &BalanceError{Debit: round2(debit), Credit: round2(credit)}
	}
	return nil
}

// CreateJournalEntry validates, bootstraps accounts and posts the
// entry in one transaction.
func (s *Service) CreateJournalEntry(ctx context.Context, in JournalInput) (*JournalEntry, error) {
	var entry *JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.Post(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Post writes one balanced journal entry inside the caller's
// transaction. Referenced accounts are created from the default chart
// first; an unbalanced input fails before anything is written.
func (s *Service) Post(ctx context.Context, tx TxRepository, in JournalInput) (*JournalEntry, error) {
	if err := in.Validate(); err != nil {
		var balanceErr *BalanceError
		if errors.As(err, &balanceErr) {
			s.metrics.BalanceViolation()
			s.logger.Warn("journal rejected",
				slog.String("entry_type", string(in.EntryType)),
				slog.Float64("debit", balanceErr.Debit),
				slog.Float64("credit", balanceErr.Credit))
		}
		return nil, err
	}

	codes := make([]string, 0, len(in.Lines))
	for _, line := range in.Lines {
		codes = append(codes, line.AccountCode)
	}
	accounts, err := ensureAccounts(ctx, tx, codes)
	if err != nil {
		return nil, err
	}

	var debitTotal float64
	lines := make([]JournalLine, 0, len(in.Lines))
	for _, line := range in.Lines {
		account, ok := accounts[line.AccountCode]
		if !ok {
			return nil, &AccountError{Code: line.AccountCode}
		}
		debitTotal += line.Debit
		lines = append(lines, JournalLine{
			AccountID:   account.ID,
			AccountCode: account.Code,
			Debit:       round2(line.Debit),
			Credit:      round2(line.Credit),
			Memo:        line.Memo,
		})
	}

	entryDate := in.EntryDate
	if entryDate.IsZero() {
		entryDate = s.now()
	}
	entry := &JournalEntry{
		EntryType:     in.EntryType,
		Description:   in.Description,
		Reference:     in.Reference,
		ReferenceType: in.ReferenceType,
		TotalAmount:   round2(debitTotal),
		EntryDate:     entryDate,
	}
	if err := tx.InsertJournal(ctx, entry); err != nil {
		return nil, err
	}
	if err := tx.InsertJournalLines(ctx, entry.ID, lines); err != nil {
		return nil, err
	}
	entry.Lines = lines

	s.metrics.JournalPosted(string(entry.EntryType))
	return entry, nil
}

// RecordInput is one economic event for the report feed.
type RecordInput struct {
	RecordType    RecordType
	Category      string
	Subcategory   string
	Amount        float64
	Description   string
	PaymentMethod string
	Reference     string
	ReferenceType string
	Tags          []string
	OccurredAt    time.Time
}

// RecordEvent writes one financial record. Status defaults to
// confirmed and the timestamp to now. Duplicate source triples collapse
// onto the existing row.
func (s *Service) RecordEvent(ctx context.Context, in RecordInput) (*FinancialRecord, error) {
	var rec *FinancialRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rec, _, err = s.Record(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Record writes one financial record inside the caller's transaction
// and reports whether a new row was inserted.
func (s *Service) Record(ctx context.Context, tx TxRepository, in RecordInput) (*FinancialRecord, bool, error) {
	if !in.RecordType.Valid() {
		return nil, false, fmt.Errorf("ledger: unknown record type %q: %w", in.RecordType, shared.ErrValidation)
	}
	if in.Category == "" {
		return nil, false, fmt.Errorf("ledger: record category required: %w", shared.ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, false, fmt.Errorf("ledger: record amount must be positive: %w", shared.ErrValidation)
	}

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	paymentMethod := in.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = "cash"
	}
	rec := &FinancialRecord{
		RecordType:    in.RecordType,
		Category:      in.Category,
		Subcategory:   in.Subcategory,
		Amount:        round2(in.Amount),
		Description:   in.Description,
		PaymentMethod: paymentMethod,
		Reference:     in.Reference,
		ReferenceType: in.ReferenceType,
		Status:        RecordConfirmed,
		Tags:          in.Tags,
		OccurredAt:    occurredAt,
	}
	inserted, err := tx.InsertRecord(ctx, rec)
	if err != nil {
		return nil, false, err
	}
	return rec, inserted, nil
}

// BootstrapAccounts materializes the full default chart for a tenant.
func (s *Service) BootstrapAccounts(ctx context.Context) ([]Account, error) {
	codes := make([]string, 0, len(defaultChart))
	for _, tpl := range defaultChart {
		codes = append(codes, tpl.Code)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := ensureAccounts(ctx, tx, codes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.repo.ListAccounts(ctx)
}

// Accounts lists the tenant's chart of accounts.
func (s *Service) Accounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// Journals lists journal entries matching the filter.
func (s *Service) Journals(ctx context.Context, f JournalFilter) ([]JournalEntry, shared.Pagination, error) {
	entries, total, err := s.repo.ListJournals(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(f.Page.Page, f.Page.PerPage, total), nil
}

// Journal loads one entry with its lines.
func (s *Service) Journal(ctx context.Context, id int64) (*JournalEntry, error) {
	return s.repo.GetJournal(ctx, id)
}

// Records lists financial records matching the filter.
func (s *Service) Records(ctx context.Context, f RecordFilter) ([]FinancialRecord, shared.Pagination, error) {
	records, total, err := s.repo.ListRecords(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return records, shared.NewPagination(f.Page.Page, f.Page.PerPage, total), nil
}

// GetSummary folds the record feed over an inclusive date window.
func (s *Service) GetSummary(ctx context.Context, from, to *time.Time) (*Summary, error) {
	return s.repo.Summary(ctx, from, to)
}

// round2 rounds a money amount to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
