package poster

// Template returns a sample operation for a routable action, with every
// field the action reads present and blank. Callers fill in the values
// they need; blank fields are ignored when the batch runs.
func (r *Router) Template(name string) (Operation, bool) {
	a, _, ok := r.Resolve(name)
	if !ok {
		return Operation{}, false
	}
	body, ok := templateBody(a)
	if !ok {
		return Operation{}, false
	}
	return Operation{Action: a.String(), Body: body}, true
}

func templateBody(a Action) (*Payload, bool) {
	p := &Payload{}

	switch a.Entity {
	case EntityCustomer, EntityVendor:
		if a.Verb != VerbCreate {
			p.FindName = blank()
		}
		if a.Verb != VerbLookup {
			partyTemplate(&p.Record, a.Entity == EntityVendor)
		}
	case EntityEmployee:
		if a.Verb != VerbCreate {
			p.FindName = blank()
		}
		if a.Verb != VerbLookup {
			fill(&p.Name, &p.Street1, &p.Street2, &p.City, &p.Province, &p.PostalCode,
				&p.Phone1, &p.Phone2, &p.SIN, &p.BirthDate, &p.HireDate, &p.TaxTableProvince, &p.PayPeriods)
		}
	case EntityInventory:
		if a.Verb != VerbCreate {
			p.FindPartCode = blank()
		}
		if a.Verb != VerbLookup {
			fill(&p.PartCode, &p.Name, &p.NameAlt, &p.StockingUnit, &p.StockingUnitAlt,
				&p.PriceRegular, &p.PricePreferred,
				&p.AccountAsset, &p.AccountRevenue, &p.AccountExpense, &p.AccountVariance)
			p.IsService, p.IsActivity = no(), no()
		}
	case EntityProject:
		if a.Verb != VerbCreate {
			p.FindName = blank()
		}
		if a.Verb != VerbLookup {
			fill(&p.Name, &p.NameAlt, &p.StartDate)
		}
	case EntityAccount:
		if a.Verb != VerbCreate {
			p.FindAccountNumber = blank()
		}
		if a.Verb != VerbLookup {
			fill(&p.Name, &p.NameAlt, &p.AccountNumber, &p.AccountType, &p.AccountClass)
		}
	case EntitySalesInvoice, EntityPurchaseInvoice:
		if a.Verb != VerbCreate {
			fill(&p.FindInvoiceNumber, &p.FindCusVenName)
		}
		if a.Verb == VerbCreate || a.Verb == VerbAdjust {
			fill(&p.CusVenName, &p.InvoiceNumber, &p.InvoiceDate, &p.PaidByType, &p.ChequeNumber)
			line := DetailLine{TaxLines: []TaxDetailLine{taxTemplate()}}
			fill(&line.ItemNumber, &line.ItemDescription, &line.Quantity, &line.Price,
				&line.TaxCode, &line.LineAmount, &line.LedgerAccount)
			p.DetailLines = []DetailLine{line}
			p.TaxLines = []TaxDetailLine{taxTemplate()}
		}
	case EntityGeneralJournal:
		if a.Verb != VerbCreate {
			p.FindJournalID = blank()
		}
		if a.Verb == VerbLookup {
			p.FindJournalLastYear = no()
			break
		}
		fill(&p.JournalDate, &p.Source, &p.Comment)
		debit, credit := DetailLine{}, DetailLine{}
		fill(&debit.LedgerAccount, &debit.DebitAmount, &debit.Comment)
		fill(&credit.LedgerAccount, &credit.CreditAmount, &credit.Comment)
		p.DetailLines = []DetailLine{debit, credit}
	case EntitySQLNonQuery:
		p.SQLNonQuery = blank()
	default:
		return nil, false
	}
	return p, true
}

func partyTemplate(r *Record, vendor bool) {
	fill(&r.Name, &r.Contact, &r.Street1, &r.Street2, &r.City, &r.Province, &r.PostalCode,
		&r.Country, &r.Phone1, &r.Phone2, &r.Fax, &r.Email, &r.Website, &r.CurrencyCode)
	if vendor {
		r.TaxID = blank()
	}
}

func taxTemplate() TaxDetailLine {
	return TaxDetailLine{TaxAuthority: blank(), TaxAmount: blank()}
}

func fill(fields ...**string) {
	for _, f := range fields {
		*f = blank()
	}
}

func blank() *string { return str("") }

func no() *bool {
	b := false
	return &b
}
