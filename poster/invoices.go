package poster

import (
	"context"
	"fmt"

	"github.com/warp/sage-poster/engine"
	"github.com/warp/sage-poster/patch"
)

// invoiceJournal handles sales or purchase invoices. Both share every step;
// only the journal handle differs.
type invoiceJournal struct {
	entity Entity
	open   func(engine.Session) (engine.InvoiceJournal, error)
	close  func(engine.Session) error
}

var (
	salesInvoices = invoiceJournal{
		entity: EntitySalesInvoice,
		open:   engine.Session.OpenSalesJournal,
		close:  engine.Session.CloseSalesJournal,
	}
	purchaseInvoices = invoiceJournal{
		entity: EntityPurchaseInvoice,
		open:   engine.Session.OpenPurchasesJournal,
		close:  engine.Session.ClosePurchasesJournal,
	}
)

func (k invoiceJournal) register(r *Router) {
	r.Handle(Action{VerbCreate, k.entity}, k.create)
	r.Handle(Action{VerbAdjust, k.entity}, k.adjust)
	r.Handle(Action{VerbLookup, k.entity}, k.lookup)
	r.Handle(Action{VerbVoid, k.entity}, k.void)
}

func (k invoiceJournal) with(sc *Scope, fn func(engine.InvoiceJournal) (*Result, error)) (*Result, error) {
	return use(
		func() (engine.InvoiceJournal, error) { return k.open(sc.Session) },
		func() error { return k.close(sc.Session) },
		msgJournalUnavailable,
		fn,
	)
}

func (k invoiceJournal) create(ctx context.Context, sc *Scope, body *Payload) (*Result, error) {
	return k.with(sc, func(j engine.InvoiceJournal) (*Result, error) {
		return postInvoice(ctx, sc, j, body)
	})
}

func (k invoiceJournal) adjust(ctx context.Context, sc *Scope, body *Payload) (*Result, error) {
	return k.with(sc, func(j engine.InvoiceJournal) (*Result, error) {
		if err := loadInvoice(ctx, j, VerbAdjust, body); err != nil {
			return nil, err
		}
		return postInvoice(ctx, sc, j, body)
	})
}

func (k invoiceJournal) lookup(ctx context.Context, sc *Scope, body *Payload) (*Result, error) {
	return k.with(sc, func(j engine.InvoiceJournal) (*Result, error) {
		if err := loadInvoice(ctx, j, VerbLookup, body); err != nil {
			return nil, err
		}
		return &Result{Record: readInvoice(j)}, nil
	})
}

func (k invoiceJournal) void(ctx context.Context, sc *Scope, body *Payload) (*Result, error) {
	return k.with(sc, func(j engine.InvoiceJournal) (*Result, error) {
		if err := loadInvoice(ctx, j, VerbVoid, body); err != nil {
			return nil, err
		}
		ok, err := j.Reverse(ctx)
		if err != nil {
			return nil, errEngine("Void", err)
		}
		return posted(ok), nil
	})
}

// loadInvoice finds the invoice named by find_invoice_number and
// find_cusven_name. Adjust loads it editable; lookup and void read-only.
func loadInvoice(ctx context.Context, j engine.InvoiceJournal, verb Verb, body *Payload) error {
	number, numberOK := patch.Present(body.FindInvoiceNumber)
	party, partyOK := patch.Present(body.FindCusVenName)
	miss := errLookupMiss(verb, fmt.Sprintf("invoice %s for %s", deref(body.FindInvoiceNumber), deref(body.FindCusVenName)))
	if !numberOK || !partyOK {
		return miss
	}

	load := j.LoadForLookup
	if verb == VerbAdjust {
		load = j.LoadForAdjust
	}
	found, err := load(ctx, party, number)
	if err != nil {
		return errEngine(verb.Title(), err)
	}
	if !found {
		return miss
	}
	return nil
}

// postInvoice writes the payload and posts. On success the result echoes
// the party and the invoice number the engine recorded.
func postInvoice(ctx context.Context, sc *Scope, j engine.InvoiceJournal, body *Payload) (*Result, error) {
	if err := syncInvoice(ctx, sc, j, body); err != nil {
		return nil, err
	}
	number, party := j.Header().InvoiceNumber, j.PartyName()

	ok, err := j.Post(ctx)
	if err != nil {
		return nil, errEngine("Post", err)
	}
	res := posted(ok)
	if ok {
		res.CusVenName = str(party)
		res.InvoiceNumber = str(number)
	}
	return res, nil
}

func readInvoice(j engine.InvoiceJournal) Record {
	h := j.Header()
	rec := Record{
		CusVenName:    str(j.PartyName()),
		InvoiceNumber: str(h.InvoiceNumber),
		PaidByType:    str(h.PaidByType),
		ChequeNumber:  str(h.ChequeNumber),
		SubTotal:      str(j.SubTotal().String()),
		Total:         str(j.Total().String()),
	}
	if h.Date != nil {
		rec.InvoiceDate = str(engine.FormatDate(h.Date))
	}

	rec.DetailLines = make([]DetailLine, 0, j.LineCount())
	for n := 1; n <= j.LineCount(); n++ {
		l := j.Line(n)
		rec.DetailLines = append(rec.DetailLines, DetailLine{
			ItemNumber:      str(l.ItemNumber),
			ItemDescription: str(l.Description),
			Quantity:        str(l.Quantity.String()),
			Price:           str(l.Price.String()),
			LineAmount:      str(l.Amount.String()),
			LedgerAccount:   str(l.Account),
			TaxCode:         str(l.TaxCode),
			TaxLines:        readTaxes(j.LineTaxSummary(n)),
		})
	}
	rec.TaxLines = readTaxes(j.TotalTaxSummary())
	return rec
}
