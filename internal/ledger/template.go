package ledger

// Account codes the rest of the system posts against. They match the
// default chart below; custom accounts may exist alongside them.
const (
	CodeCash           = "1111"
	CodeBank           = "1112"
	CodeReceivable     = "1120"
	CodeInventory      = "1130"
	CodePayable        = "2110"
	CodeSalesRevenue   = "4110"
	CodeServiceRevenue = "4210"
	CodeCOGS           = "5110"
	CodePayrollExpense = "6110"
)

// TemplateAccount is one node of the default chart of accounts shipped
// with the application.
type TemplateAccount struct {
	Code          string
	Name          string
	Type          AccountType
	Subtype       string
	NormalBalance NormalBalance
	ParentCode    string
}

// defaultChart lists parents before children; account bootstrap walks
// it in order so a child's parent row always exists first.
var defaultChart = []TemplateAccount{
	{Code: "1100", Name: "Aset Lancar", Type: AccountAsset, Subtype: "current_asset", NormalBalance: BalanceDebit},
	{Code: "1110", Name: "Kas & Bank", Type: AccountAsset, Subtype: "cash_bank", NormalBalance: BalanceDebit, ParentCode: "1100"},
	{Code: CodeCash, Name: "Kas", Type: AccountAsset, Subtype: "cash", NormalBalance: BalanceDebit, ParentCode: "1110"},
	{Code: CodeBank, Name: "Bank", Type: AccountAsset, Subtype: "bank", NormalBalance: BalanceDebit, ParentCode: "1110"},
	{Code: CodeReceivable, Name: "Piutang Usaha", Type: AccountAsset, Subtype: "receivable", NormalBalance: BalanceDebit, ParentCode: "1100"},
	{Code: CodeInventory, Name: "Persediaan Barang", Type: AccountAsset, Subtype: "inventory", NormalBalance: BalanceDebit, ParentCode: "1100"},
	{Code: "2100", Name: "Kewajiban Lancar", Type: AccountLiability, Subtype: "current_liability", NormalBalance: BalanceCredit},
	{Code: CodePayable, Name: "Hutang Usaha", Type: AccountLiability, Subtype: "payable", NormalBalance: BalanceCredit, ParentCode: "2100"},
	{Code: "3100", Name: "Modal Pemilik", Type: AccountEquity, Subtype: "owner_equity", NormalBalance: BalanceCredit},
	{Code: "4100", Name: "Pendapatan Penjualan", Type: AccountRevenue, Subtype: "operating_revenue", NormalBalance: BalanceCredit},
	{Code: CodeSalesRevenue, Name: "Penjualan Barang", Type: AccountRevenue, Subtype: "sales", NormalBalance: BalanceCredit, ParentCode: "4100"},
	{Code: "4200", Name: "Pendapatan Jasa", Type: AccountRevenue, Subtype: "operating_revenue", NormalBalance: BalanceCredit},
	{Code: CodeServiceRevenue, Name: "Jasa Servis", Type: AccountRevenue, Subtype: "service", NormalBalance: BalanceCredit, ParentCode: "4200"},
	{Code: "5100", Name: "Harga Pokok", Type: AccountExpense, Subtype: "cogs", NormalBalance: BalanceDebit},
	{Code: CodeCOGS, Name: "Harga Pokok Penjualan", Type: AccountExpense, Subtype: "cogs", NormalBalance: BalanceDebit, ParentCode: "5100"},
	{Code: "6100", Name: "Beban Operasional", Type: AccountExpense, Subtype: "operating_expense", NormalBalance: BalanceDebit},
	{Code: CodePayrollExpense, Name: "Beban Gaji", Type: AccountExpense, Subtype: "payroll", NormalBalance: BalanceDebit, ParentCode: "6100"},
}

var templateIndex = func() map[string]TemplateAccount {
	idx := make(map[string]TemplateAccount, len(defaultChart))
	for _, a := range defaultChart {
		idx[a.Code] = a
	}
	return idx
}()

// DefaultChart returns a copy of the default chart of accounts.
func DefaultChart() []TemplateAccount {
	out := make([]TemplateAccount, len(defaultChart))
	copy(out, defaultChart)
	return out
}

// TemplateByCode looks a default account up by code.
func TemplateByCode(code string) (TemplateAccount, bool) {
	a, ok := templateIndex[code]
	return a, ok
}
