package poster

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/sage-poster/engine"
	"github.com/warp/sage-poster/patch"
)

// =============================================================================
// LEDGER FIELD TABLES
// =============================================================================

func partyFields(vendor bool) patch.Set[*Payload, *engine.Party] {
	set := patch.Set[*Payload, *engine.Party]{
		patch.Text("name", func(p *Payload) *string { return p.Name }, func(r *engine.Party, v string) { r.Name = v }),
		patch.Text("contact_name", func(p *Payload) *string { return p.Contact }, func(r *engine.Party, v string) { r.Contact = v }),
		patch.Text("street1", func(p *Payload) *string { return p.Street1 }, func(r *engine.Party, v string) { r.Street1 = v }),
		patch.Text("street2", func(p *Payload) *string { return p.Street2 }, func(r *engine.Party, v string) { r.Street2 = v }),
		patch.Text("city", func(p *Payload) *string { return p.City }, func(r *engine.Party, v string) { r.City = v }),
		patch.Text("province", func(p *Payload) *string { return p.Province }, func(r *engine.Party, v string) { r.Province = v }),
		patch.Text("postal_code", func(p *Payload) *string { return p.PostalCode }, func(r *engine.Party, v string) { r.PostalCode = v }),
		patch.Text("country", func(p *Payload) *string { return p.Country }, func(r *engine.Party, v string) { r.Country = v }),
		patch.Text("phone1", func(p *Payload) *string { return p.Phone1 }, func(r *engine.Party, v string) { r.Phone1 = v }),
		patch.Text("phone2", func(p *Payload) *string { return p.Phone2 }, func(r *engine.Party, v string) { r.Phone2 = v }),
		patch.Text("fax", func(p *Payload) *string { return p.Fax }, func(r *engine.Party, v string) { r.Fax = v }),
		patch.Text("email", func(p *Payload) *string { return p.Email }, func(r *engine.Party, v string) { r.Email = v }),
		patch.Text("website", func(p *Payload) *string { return p.Website }, func(r *engine.Party, v string) { r.Website = v }),
		patch.Text("currency_code", func(p *Payload) *string { return p.CurrencyCode }, func(r *engine.Party, v string) { r.CurrencyCode = v }),
	}
	if vendor {
		set = append(set, patch.Text("tax_id", func(p *Payload) *string { return p.TaxID }, func(r *engine.Party, v string) { r.TaxID = v }))
	}
	return set
}

var employeeFields = patch.Set[*Payload, *engine.Employee]{
	patch.Text("name", func(p *Payload) *string { return p.Name }, func(r *engine.Employee, v string) { r.Name = v }),
	patch.Text("street1", func(p *Payload) *string { return p.Street1 }, func(r *engine.Employee, v string) { r.Street1 = v }),
	patch.Text("street2", func(p *Payload) *string { return p.Street2 }, func(r *engine.Employee, v string) { r.Street2 = v }),
	patch.Text("city", func(p *Payload) *string { return p.City }, func(r *engine.Employee, v string) { r.City = v }),
	patch.Text("province", func(p *Payload) *string { return p.Province }, func(r *engine.Employee, v string) { r.Province = v }),
	patch.Text("postal_code", func(p *Payload) *string { return p.PostalCode }, func(r *engine.Employee, v string) { r.PostalCode = v }),
	patch.Text("phone1", func(p *Payload) *string { return p.Phone1 }, func(r *engine.Employee, v string) { r.Phone1 = v }),
	patch.Text("phone2", func(p *Payload) *string { return p.Phone2 }, func(r *engine.Employee, v string) { r.Phone2 = v }),
	patch.Text("sin", func(p *Payload) *string { return p.SIN }, func(r *engine.Employee, v string) { r.SIN = v }),
	patch.Date("birth_date", func(p *Payload) *string { return p.BirthDate }, func(r *engine.Employee, v time.Time) { r.BirthDate = &v }),
	patch.Date("hire_date", func(p *Payload) *string { return p.HireDate }, func(r *engine.Employee, v time.Time) { r.HireDate = &v }),
	patch.Text("tax_table_province", func(p *Payload) *string { return p.TaxTableProvince }, func(r *engine.Employee, v string) { r.TaxTable = v }),
	patch.Short("pay_periods", func(p *Payload) *string { return p.PayPeriods }, func(r *engine.Employee, v int16) { r.PayPeriods = v }),
}

var inventoryFields = patch.Set[*Payload, *engine.Inventory]{
	patch.Text("part_code", func(p *Payload) *string { return p.PartCode }, func(r *engine.Inventory, v string) { r.PartCode = v }),
	patch.Text("name", func(p *Payload) *string { return p.Name }, func(r *engine.Inventory, v string) { r.Name = v }),
	patch.Text("name_alt", func(p *Payload) *string { return p.NameAlt }, func(r *engine.Inventory, v string) { r.NameAlt = v }),
	patch.Flag("is_service", func(p *Payload) *bool { return p.IsService }, func(r *engine.Inventory, v bool) { r.IsService = v }),
	patch.Flag("is_activity", func(p *Payload) *bool { return p.IsActivity }, func(r *engine.Inventory, v bool) { r.IsActivity = v }),
	patch.Text("stocking_unit", func(p *Payload) *string { return p.StockingUnit }, func(r *engine.Inventory, v string) { r.StockingUnit = v }),
	patch.Text("stocking_unit_alt", func(p *Payload) *string { return p.StockingUnitAlt }, func(r *engine.Inventory, v string) { r.StockingUnitAlt = v }),
	patch.Decimal("price_regular", func(p *Payload) *string { return p.PriceRegular }, func(r *engine.Inventory, v decimal.Decimal) { r.RegularPrice = v }),
	patch.Decimal("price_preferred", func(p *Payload) *string { return p.PricePreferred }, func(r *engine.Inventory, v decimal.Decimal) { r.PreferredPrice = v }),
	patch.Account("account_asset", func(p *Payload) *string { return p.AccountAsset }, func(r *engine.Inventory, v string) { r.AssetAccount = v }),
	patch.Account("account_revenue", func(p *Payload) *string { return p.AccountRevenue }, func(r *engine.Inventory, v string) { r.RevenueAccount = v }),
	patch.Account("account_expense", func(p *Payload) *string { return p.AccountExpense }, func(r *engine.Inventory, v string) { r.ExpenseAccount = v }),
	patch.Account("account_variance", func(p *Payload) *string { return p.AccountVariance }, func(r *engine.Inventory, v string) { r.VarianceAccount = v }),
}

var projectFields = patch.Set[*Payload, *engine.Project]{
	patch.Text("name", func(p *Payload) *string { return p.Name }, func(r *engine.Project, v string) { r.Name = v }),
	patch.Text("name_alt", func(p *Payload) *string { return p.NameAlt }, func(r *engine.Project, v string) { r.NameAlt = v }),
	patch.Date("start_date", func(p *Payload) *string { return p.StartDate }, func(r *engine.Project, v time.Time) { r.StartDate = &v }),
}

// The account number is stored as given; normalization applies only to
// account references on other records.
var accountFields = patch.Set[*Payload, *engine.Account]{
	patch.Text("name", func(p *Payload) *string { return p.Name }, func(r *engine.Account, v string) { r.Name = v }),
	patch.Text("name_alt", func(p *Payload) *string { return p.NameAlt }, func(r *engine.Account, v string) { r.NameAlt = v }),
	patch.Int("account_number", func(p *Payload) *string { return p.AccountNumber }, func(r *engine.Account, v int) { r.Number = v }),
	patch.Text("account_type", func(p *Payload) *string { return p.AccountType }, func(r *engine.Account, v string) { r.Type = v }),
	patch.Text("account_class", func(p *Payload) *string { return p.AccountClass }, func(r *engine.Account, v string) { r.Class = v }),
}

// =============================================================================
// JOURNAL FIELD TABLES
// =============================================================================

// Party and paid-by are selections on the journal, not header fields; see
// syncInvoice.
var invoiceHeaderFields = patch.Set[*Payload, *engine.InvoiceHeader]{
	patch.Text("invoice_number", func(p *Payload) *string { return p.InvoiceNumber }, func(h *engine.InvoiceHeader, v string) { h.InvoiceNumber = v }),
	patch.Date("invoice_date", func(p *Payload) *string { return p.InvoiceDate }, func(h *engine.InvoiceHeader, v time.Time) { h.Date = &v }),
	patch.Text("cheque_number", func(p *Payload) *string { return p.ChequeNumber }, func(h *engine.InvoiceHeader, v string) { h.ChequeNumber = v }),
}

var invoiceLineFields = patch.Set[*DetailLine, *engine.InvoiceLine]{
	patch.Text("item_number", func(d *DetailLine) *string { return d.ItemNumber }, func(l *engine.InvoiceLine, v string) { l.ItemNumber = v }),
	patch.Text("item_description", func(d *DetailLine) *string { return d.ItemDescription }, func(l *engine.InvoiceLine, v string) { l.Description = v }),
	patch.Decimal("quantity", func(d *DetailLine) *string { return d.Quantity }, (*engine.InvoiceLine).SetQuantity),
	patch.Decimal("price", func(d *DetailLine) *string { return d.Price }, (*engine.InvoiceLine).SetPrice),
	patch.Decimal("line_amount", func(d *DetailLine) *string { return d.LineAmount }, (*engine.InvoiceLine).SetAmount),
	patch.Account("ledger_account", func(d *DetailLine) *string { return d.LedgerAccount }, func(l *engine.InvoiceLine, v string) { l.Account = v }),
	patch.Text("tax_code", func(d *DetailLine) *string { return d.TaxCode }, func(l *engine.InvoiceLine, v string) { l.TaxCode = v }),
}

var journalHeaderFields = patch.Set[*Payload, *engine.JournalHeader]{
	patch.Text("source", func(p *Payload) *string { return p.Source }, func(h *engine.JournalHeader, v string) { h.Source = v }),
	patch.Text("comment", func(p *Payload) *string { return p.Comment }, func(h *engine.JournalHeader, v string) { h.Comment = v }),
	patch.Date("journal_date", func(p *Payload) *string { return p.JournalDate }, func(h *engine.JournalHeader, v time.Time) { h.Date = &v }),
}

var journalLineFields = patch.Set[*DetailLine, *engine.JournalLine]{
	patch.Account("ledger_account", func(d *DetailLine) *string { return d.LedgerAccount }, func(l *engine.JournalLine, v string) { l.Account = v }),
	patch.Decimal("debit_amount", func(d *DetailLine) *string { return d.DebitAmount }, func(l *engine.JournalLine, v decimal.Decimal) { l.Debit = v }),
	patch.Decimal("credit_amount", func(d *DetailLine) *string { return d.CreditAmount }, func(l *engine.JournalLine, v decimal.Decimal) { l.Credit = v }),
	patch.Text("comment", func(d *DetailLine) *string { return d.Comment }, func(l *engine.JournalLine, v string) { l.Comment = v }),
}

// =============================================================================
// ECHOES - Record read back from the engine into the response shape
// =============================================================================

func echoParty(vendor bool) func(*engine.Party) Record {
	return func(r *engine.Party) Record {
		rec := Record{
			Name:         str(r.Name),
			Contact:      str(r.Contact),
			Street1:      str(r.Street1),
			Street2:      str(r.Street2),
			City:         str(r.City),
			Province:     str(r.Province),
			PostalCode:   str(r.PostalCode),
			Country:      str(r.Country),
			Phone1:       str(r.Phone1),
			Phone2:       str(r.Phone2),
			Fax:          str(r.Fax),
			Email:        str(r.Email),
			Website:      str(r.Website),
			CurrencyCode: str(r.CurrencyCode),
		}
		if vendor {
			rec.TaxID = str(r.TaxID)
		}
		return rec
	}
}

func echoEmployee(r *engine.Employee) Record {
	rec := Record{
		Name:             str(r.Name),
		Street1:          str(r.Street1),
		Street2:          str(r.Street2),
		City:             str(r.City),
		Province:         str(r.Province),
		PostalCode:       str(r.PostalCode),
		Phone1:           str(r.Phone1),
		Phone2:           str(r.Phone2),
		SIN:              str(r.SIN),
		TaxTableProvince: str(r.TaxTable),
		PayPeriods:       str(strconv.Itoa(int(r.PayPeriods))),
	}
	if r.BirthDate != nil {
		rec.BirthDate = str(engine.FormatDate(r.BirthDate))
	}
	if r.HireDate != nil {
		rec.HireDate = str(engine.FormatDate(r.HireDate))
	}
	return rec
}

func echoInventory(r *engine.Inventory) Record {
	isService, isActivity := r.IsService, r.IsActivity
	return Record{
		PartCode:        str(r.PartCode),
		Name:            str(r.Name),
		NameAlt:         str(r.NameAlt),
		IsService:       &isService,
		IsActivity:      &isActivity,
		StockingUnit:    str(r.StockingUnit),
		StockingUnitAlt: str(r.StockingUnitAlt),
		PriceRegular:    str(r.RegularPrice.String()),
		PricePreferred:  str(r.PreferredPrice.String()),
		AccountAsset:    str(r.AssetAccount),
		AccountRevenue:  str(r.RevenueAccount),
		AccountExpense:  str(r.ExpenseAccount),
		AccountVariance: str(r.VarianceAccount),
	}
}

func echoProject(r *engine.Project) Record {
	rec := Record{
		Name:    str(r.Name),
		NameAlt: str(r.NameAlt),
	}
	if r.StartDate != nil {
		rec.StartDate = str(engine.FormatDate(r.StartDate))
	}
	return rec
}

func echoAccount(r *engine.Account) Record {
	return Record{
		Name:          str(r.Name),
		NameAlt:       str(r.NameAlt),
		AccountNumber: str(strconv.Itoa(r.Number)),
		AccountType:   str(r.Type),
		AccountClass:  str(r.Class),
	}
}
