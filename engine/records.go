package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER RECORDS
// =============================================================================

// Party is a customer or vendor. TaxID is only meaningful for vendors.
type Party struct {
	Name         string
	Contact      string
	Street1      string
	Street2      string
	City         string
	Province     string
	PostalCode   string
	Country      string
	Phone1       string
	Phone2       string
	Fax          string
	Email        string
	Website      string
	CurrencyCode string
	TaxID        string
}

type Employee struct {
	Name       string
	Street1    string
	Street2    string
	City       string
	Province   string
	PostalCode string
	Phone1     string
	Phone2     string
	SIN        string
	BirthDate  *time.Time
	HireDate   *time.Time
	TaxTable   string
	PayPeriods int16
}

type Inventory struct {
	PartCode        string
	Name            string
	NameAlt         string
	IsService       bool
	IsActivity      bool
	StockingUnit    string
	StockingUnitAlt string
	RegularPrice    decimal.Decimal
	PreferredPrice  decimal.Decimal
	AssetAccount    string
	ExpenseAccount  string
	RevenueAccount  string
	VarianceAccount string
}

type Project struct {
	Name      string
	NameAlt   string
	StartDate *time.Time
}

// Account is a chart-of-accounts row.
type Account struct {
	Number  int
	Name    string
	NameAlt string
	Type    string
	Class   string
}

// =============================================================================
// JOURNAL DOCUMENTS
// =============================================================================

type InvoiceHeader struct {
	InvoiceNumber string
	Date          *time.Time
	PaidByType    string
	ChequeNumber  string
}

type InvoiceLine struct {
	ItemNumber  string
	Description string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Amount      decimal.Decimal
	Account     string
	TaxCode     string
}

// SetQuantity sets the quantity and derives the amount from it and the
// current price.
func (l *InvoiceLine) SetQuantity(q decimal.Decimal) {
	l.Quantity = q
	l.Amount = q.Mul(l.Price)
}

// SetPrice sets the unit price and derives the amount from it and the
// current quantity.
func (l *InvoiceLine) SetPrice(p decimal.Decimal) {
	l.Price = p
	l.Amount = l.Quantity.Mul(p)
}

// SetAmount overrides the derived amount.
func (l *InvoiceLine) SetAmount(a decimal.Decimal) {
	l.Amount = a
}

type JournalHeader struct {
	Source  string
	Comment string
	Date    *time.Time
}

type JournalLine struct {
	Account string
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Comment string
}

// DateLayout is the canonical date format used when dates are echoed back.
const DateLayout = "2006-01-02"

// FormatDate renders an optional date, or "" when unset.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
