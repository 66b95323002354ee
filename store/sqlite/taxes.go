package sqlite

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/sage-poster/engine"
)

// taxRow is one authority and its amount.
type taxRow struct {
	Authority string
	Amount    decimal.Decimal
}

// taxes is an ordered tax breakdown; authorities are matched case-insensitively.
type taxes []taxRow

func (t taxes) total() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range t {
		sum = sum.Add(r.Amount)
	}
	return sum
}

func (t taxes) clone() taxes {
	return append(taxes(nil), t...)
}

// taxSummary is a staged copy of a breakdown; Save writes it back.
type taxSummary struct {
	target *taxes
	rows   taxes
}

func newTaxSummary(target *taxes) *taxSummary {
	return &taxSummary{target: target, rows: target.clone()}
}

var _ engine.TaxSummary = (*taxSummary)(nil)

func (ts *taxSummary) Count() int {
	return len(ts.rows)
}

func (ts *taxSummary) Name(row int) string {
	if row < 1 || row > len(ts.rows) {
		return ""
	}
	return ts.rows[row-1].Authority
}

func (ts *taxSummary) Amount(row int) decimal.Decimal {
	if row < 1 || row > len(ts.rows) {
		return decimal.Zero
	}
	return ts.rows[row-1].Amount
}

// SetByName replaces the amount of an authority, adding the authority when
// the breakdown does not have it yet.
func (ts *taxSummary) SetByName(authority string, amount decimal.Decimal) error {
	name := strings.TrimSpace(authority)
	if name == "" {
		return &engine.ValidationError{Field: "tax_authority", Message: "must not be blank"}
	}
	for i := range ts.rows {
		if strings.EqualFold(ts.rows[i].Authority, name) {
			ts.rows[i].Amount = amount
			return nil
		}
	}
	ts.rows = append(ts.rows, taxRow{Authority: name, Amount: amount})
	return nil
}

func (ts *taxSummary) Save() error {
	*ts.target = ts.rows.clone()
	return nil
}

func (ts *taxSummary) Cancel() {
	ts.rows = ts.target.clone()
}
