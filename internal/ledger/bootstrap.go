package ledger

import "context"

// requiredCodes expands the requested codes to the transitive closure
// of their template ancestors, ordered parents before children. Codes
// outside the template pass through untouched; they must already exist
// in the tenant database.
func requiredCodes(codes []string) []string {
	needed := make(map[string]bool, len(codes))
	var custom []string
	for _, code := range codes {
		tpl, ok := TemplateByCode(code)
		if !ok {
			if !needed[code] {
				needed[code] = true
				custom = append(custom, code)
			}
			continue
		}
		for {
			needed[tpl.Code] = true
			if tpl.ParentCode == "" {
				break
			}
			tpl = templateIndex[tpl.ParentCode]
		}
	}

	out := make([]string, 0, len(needed))
	for _, tpl := range defaultChart {
		if needed[tpl.Code] {
			out = append(out, tpl.Code)
		}
	}
	return append(out, custom...)
}

// ensureAccounts makes every requested account and its template
// ancestors exist in the tenant database and returns them keyed by
// code. Creation order follows the template so a child's parent id
// always resolves; duplicate-creation races collapse onto the winning
// row through the unique code constraint.
func ensureAccounts(ctx context.Context, tx TxRepository, codes []string) (map[string]Account, error) {
	wanted := requiredCodes(codes)
	existing, err := tx.AccountsByCode(ctx, wanted)
	if err != nil {
		return nil, err
	}

	for _, code := range wanted {
		if _, ok := existing[code]; ok {
			continue
		}
		tpl, ok := TemplateByCode(code)
		if !ok {
			return nil, &AccountError{Code: code}
		}
		account := Account{
			Code:          tpl.Code,
			Name:          tpl.Name,
			Type:          tpl.Type,
			Subtype:       tpl.Subtype,
			NormalBalance: tpl.NormalBalance,
		}
		if tpl.ParentCode != "" {
			parent, ok := existing[tpl.ParentCode]
			if !ok {
				return nil, &AccountError{Code: tpl.ParentCode}
			}
			parentID := parent.ID
			account.ParentID = &parentID
		}
		created, err := tx.InsertAccount(ctx, account)
		if err != nil {
			return nil, err
		}
		existing[created.Code] = created
	}
	return existing, nil
}
