package ledger

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// fakeStore is an in-memory TxRepository used by the service tests.
type fakeStore struct {
	nextID   int64
	accounts map[string]Account
	created  []string
	journals []JournalEntry
	lines    map[int64][]JournalLine
	records  []FinancialRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]Account),
		lines:    make(map[int64][]JournalLine),
	}
}

func (f *fakeStore) AccountsByCode(_ context.Context, codes []string) (map[string]Account, error) {
	out := make(map[string]Account)
	for _, code := range codes {
		if a, ok := f.accounts[code]; ok {
			out[code] = a
		}
	}
	return out, nil
}

func (f *fakeStore) InsertAccount(_ context.Context, a Account) (Account, error) {
	if existing, ok := f.accounts[a.Code]; ok {
		return existing, nil
	}
	f.nextID++
	a.ID = f.nextID
	a.IsActive = true
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.accounts[a.Code] = a
	f.created = append(f.created, a.Code)
	return a, nil
}

func (f *fakeStore) InsertJournal(_ context.Context, e *JournalEntry) error {
	f.nextID++
	e.ID = f.nextID
	e.Number = int64(len(f.journals) + 1)
	e.Status = JournalPosted
	e.CreatedAt = time.Now()
	f.journals = append(f.journals, *e)
	return nil
}

func (f *fakeStore) InsertJournalLines(_ context.Context, journalID int64, lines []JournalLine) error {
	for i := range lines {
		f.nextID++
		lines[i].ID = f.nextID
		lines[i].JournalID = journalID
	}
	f.lines[journalID] = append(f.lines[journalID], lines...)
	return nil
}

func (f *fakeStore) InsertRecord(_ context.Context, rec *FinancialRecord) (bool, error) {
	if rec.Reference != "" {
		for _, existing := range f.records {
			if existing.ReferenceType == rec.ReferenceType &&
				existing.Reference == rec.Reference &&
				existing.Description == rec.Description {
				*rec = existing
				return false, nil
			}
		}
	}
	f.nextID++
	rec.ID = f.nextID
	rec.CreatedAt = time.Now()
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	f.records = append(f.records, *rec)
	return true, nil
}

func (f *fakeStore) RecordExists(_ context.Context, referenceType, reference string) (bool, error) {
	for _, rec := range f.records {
		if rec.ReferenceType == referenceType && rec.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

// fakeRepo satisfies Repository over the in-memory store.
type fakeRepo struct {
	store *fakeStore
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f.store)
}

func (f *fakeRepo) RunIn(db.Querier) TxRepository {
	return f.store
}

func (f *fakeRepo) ListAccounts(context.Context) ([]Account, error) {
	out := make([]Account, 0, len(f.store.accounts))
	for _, a := range f.store.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f *fakeRepo) ListJournals(context.Context, JournalFilter) ([]JournalEntry, int, error) {
	return f.store.journals, len(f.store.journals), nil
}

func (f *fakeRepo) GetJournal(_ context.Context, id int64) (*JournalEntry, error) {
	for _, e := range f.store.journals {
		if e.ID == id {
			e.Lines = f.store.lines[id]
			return &e, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeRepo) ListRecords(context.Context, RecordFilter) ([]FinancialRecord, int, error) {
	return f.store.records, len(f.store.records), nil
}

func (f *fakeRepo) Summary(context.Context, *time.Time, *time.Time) (*Summary, error) {
	return &Summary{}, nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	svc := NewService(logger, &fakeRepo{store: store}, nil)
	return svc, store
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestJournalInputValidation(t *testing.T) {
	base := JournalInput{
		EntryType: EntryManual,
		Lines: []JournalLineInput{
			{AccountCode: CodeCash, Debit: 100},
			{AccountCode: CodeSalesRevenue, Credit: 100},
		},
	}
	require.NoError(t, base.Validate())

	missingType := base
	missingType.EntryType = ""
	require.ErrorIs(t, missingType.Validate(), shared.ErrValidation)

	oneLine := base
	oneLine.Lines = base.Lines[:1]
	require.ErrorIs(t, oneLine.Validate(), shared.ErrValidation)

	negative := base
	negative.Lines = []JournalLineInput{
		{AccountCode: CodeCash, Debit: -5},
		{AccountCode: CodeSalesRevenue, Credit: -5},
	}
	require.ErrorIs(t, negative.Validate(), shared.ErrValidation)

	bothSides := base
	bothSides.Lines = []JournalLineInput{
		{AccountCode: CodeCash, Debit: 50, Credit: 50},
		{AccountCode: CodeSalesRevenue, Credit: 0},
	}
	require.ErrorIs(t, bothSides.Validate(), shared.ErrValidation)
}

func TestUnbalancedJournalFailsWithTotals(t *testing.T) {
	in := JournalInput{
		EntryType: EntryManual,
		Lines: []JournalLineInput{
			{AccountCode: CodeCash, Debit: 100},
			{AccountCode: CodeSalesRevenue, Credit: 99},
		},
	}
	err := in.Validate()
	var balanceErr *BalanceError
	require.ErrorAs(t, err, &balanceErr)
	require.InDelta(t, 100, balanceErr.Debit, 0.001)
	require.InDelta(t, 99, balanceErr.Credit, 0.001)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "100.00")
	require.Contains(t, err.Error(), "99.00")
}

func TestBalanceCheckToleratesFloatNoise(t *testing.T) {
	// 0.1 + 0.2 is not exactly 0.3 in binary floating point; the 2dp
	// comparison must still treat this journal as balanced.
	in := JournalInput{
		EntryType: EntryManual,
		Lines: []JournalLineInput{
			{AccountCode: CodeCash, Debit: 0.1},
			{AccountCode: CodeBank, Debit: 0.2},
			{AccountCode: CodeSalesRevenue, Credit: 0.3},
		},
	}
	require.NoError(t, in.Validate())
}

func TestUnbalancedJournalWritesNothing(t *testing.T) {
	svc, store := newTestService(t)
	_, err := svc.CreateJournalEntry(context.Background(), JournalInput{
		EntryType: EntryManual,
		Lines: []JournalLineInput{
			{AccountCode: CodeCash, Debit: 100},
			{AccountCode: CodeSalesRevenue, Credit: 99},
		},
	})
	require.Error(t, err)
	require.Empty(t, store.journals)
	require.Empty(t, store.accounts)
	require.Empty(t, store.records)
}

func TestCreateJournalEntryPersistsBalancedEntry(t *testing.T) {
	svc, store := newTestService(t)
	entry, err := svc.CreateJournalEntry(context.Background(), JournalInput{
		EntryType:     EntrySale,
		Description:   "Penjualan POS-001",
		Reference:     "POS-001",
		ReferenceType: "pos_sale",
		Lines: []JournalLineInput{
			{AccountCode: CodeCash, Debit: 100000},
			{AccountCode: CodeCOGS, Debit: 60000},
			{AccountCode: CodeSalesRevenue, Credit: 100000},
			{AccountCode: CodeInventory, Credit: 60000},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.Equal(t, int64(1), entry.Number)
	require.Equal(t, JournalPosted, entry.Status)
	require.InDelta(t, 160000, entry.TotalAmount, 0.001)
	require.Len(t, entry.Lines, 4)
	for _, line := range entry.Lines {
		require.NotZero(t, line.AccountID, "line %s must reference a created account", line.AccountCode)
	}
	require.Len(t, store.journals, 1)
	require.Len(t, store.lines[entry.ID], 4)
}

func TestBootstrapCreatesAncestorsParentFirst(t *testing.T) {
	svc, store := newTestService(t)
	_, err := svc.CreateJournalEntry(context.Background(), JournalInput{
		EntryType: EntryManual,
		Lines: []JournalLineInput{
			{AccountCode: CodeCash, Debit: 5000},
			{AccountCode: CodeSalesRevenue, Credit: 5000},
		},
	})
	require.NoError(t, err)

	for _, code := range []string{"1100", "1110", CodeCash, "4100", CodeSalesRevenue} {
		require.Contains(t, store.accounts, code)
	}

	pos := make(map[string]int, len(store.created))
	for i, code := range store.created {
		pos[code] = i
	}
	require.Less(t, pos["1100"], pos["1110"])
	require.Less(t, pos["1110"], pos[CodeCash])
	require.Less(t, pos["4100"], pos[CodeSalesRevenue])

	cash := store.accounts[CodeCash]
	require.NotNil(t, cash.ParentID)
	require.Equal(t, store.accounts["1110"].ID, *cash.ParentID)
}

func TestUnknownAccountCodeFails(t *testing.T) {
	svc, store := newTestService(t)
	_, err := svc.CreateJournalEntry(context.Background(), JournalInput{
		EntryType: EntryManual,
		Lines: []JournalLineInput{
			{AccountCode: "9999", Debit: 100},
			{AccountCode: CodeSalesRevenue, Credit: 100},
		},
	})
	var accountErr *AccountError
	require.ErrorAs(t, err, &accountErr)
	require.Equal(t, "9999", accountErr.Code)
	require.Empty(t, store.journals)
}

func TestBootstrapAccountsMaterializesFullChart(t *testing.T) {
	svc, store := newTestService(t)
	accounts, err := svc.BootstrapAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, len(DefaultChart()))
	require.Len(t, store.accounts, len(DefaultChart()))
}

func TestRecordEventDefaults(t *testing.T) {
	svc, store := newTestService(t)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return now })

	rec, err := svc.RecordEvent(context.Background(), RecordInput{
		RecordType: RecordIncome,
		Category:   "Penjualan",
		Amount:     150000.005,
	})
	require.NoError(t, err)
	require.Equal(t, RecordConfirmed, rec.Status)
	require.Equal(t, now, rec.OccurredAt)
	require.Equal(t, "cash", rec.PaymentMethod)
	require.InDelta(t, 150000.01, rec.Amount, 0.0001)
	require.Len(t, store.records, 1)
}

func TestRecordDuplicateSourceCollapses(t *testing.T) {
	svc, store := newTestService(t)

	in := RecordInput{
		RecordType:    RecordExpense,
		Category:      "Gaji Karyawan",
		Amount:        2500000,
		Description:   "Gaji periode 2026-08",
		ReferenceType: "payroll",
		Reference:     "41",
	}
	first, err := svc.RecordEvent(context.Background(), in)
	require.NoError(t, err)

	second, err := svc.RecordEvent(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, store.records, 1)
}

func TestRecordValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RecordEvent(context.Background(), RecordInput{RecordType: "bogus", Category: "X", Amount: 1})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordEvent(context.Background(), RecordInput{RecordType: RecordIncome, Amount: 1})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordEvent(context.Background(), RecordInput{RecordType: RecordIncome, Category: "X"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRequiredCodesClosureAndOrder(t *testing.T) {
	codes := requiredCodes([]string{CodeCOGS, CodeCash, "CUSTOM-1"})

	pos := make(map[string]int, len(codes))
	for i, code := range codes {
		pos[code] = i
	}
	for _, code := range []string{"1100", "1110", CodeCash, "5100", CodeCOGS} {
		require.Contains(t, pos, code)
	}
	require.Less(t, pos["1100"], pos["1110"])
	require.Less(t, pos["1110"], pos[CodeCash])
	require.Less(t, pos["5100"], pos[CodeCOGS])
	// Codes outside the template ride along at the end.
	require.Equal(t, len(codes)-1, pos["CUSTOM-1"])

	// Requesting the same subtree twice must not duplicate codes.
	again := requiredCodes([]string{CodeCash, CodeBank})
	seen := make(map[string]bool)
	for _, code := range again {
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestRecordFilterSQLInclusiveBounds(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)

	where, args := recordFilterSQL(RecordFilter{From: &from, To: &to})
	require.Equal(t, " WHERE occurred_at >= $1 AND occurred_at <= $2", where)
	require.Equal(t, []any{from, to}, args)

	where, args = recordFilterSQL(RecordFilter{})
	require.Empty(t, where)
	require.Empty(t, args)

	where, args = recordFilterSQL(RecordFilter{RecordType: RecordExpense, Category: "Operasional"})
	require.Equal(t, " WHERE record_type = $1 AND category = $2", where)
	require.Len(t, args, 2)
}

func TestJournalFilterSQL(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	where, args := journalFilterSQL(JournalFilter{EntryType: EntrySale, Reference: "POS-1", From: &from})
	require.Equal(t, " WHERE entry_type = $1 AND reference = $2 AND entry_date >= $3", where)
	require.Len(t, args, 3)
}

func TestBalanceErrorIsValidation(t *testing.T) {
	err := error(&BalanceError{Debit: 10, Credit: 9})
	require.ErrorIs(t, err, shared.ErrValidation)
}
