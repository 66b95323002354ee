package poster

import (
	"context"
	"errors"

	"github.com/warp/sage-poster/engine"
	"github.com/warp/sage-poster/patch"
)

// errLineNotRemoved is wrapped when the engine declines a removal without
// raising.
var errLineNotRemoved = errors.New("line was not removed")

// clearLines prepares a document loaded for adjustment to receive a new
// line list: it removes line 1 repeatedly until a single line remains.
// The payload's lines then overwrite from line 1; when the payload has
// fewer lines than the document had, the surviving line keeps whatever
// the payload did not overwrite.
func clearLines(set engine.LineSet) error {
	for remaining := set.LineCount() - 1; remaining > 0; remaining-- {
		ok, err := set.RemoveLine(1)
		if err != nil {
			return errLineRemoval(err)
		}
		if !ok {
			return errLineRemoval(errLineNotRemoved)
		}
	}
	return nil
}

// replacesLines reports whether the payload brings a new line list for a
// document loaded for adjustment. An empty list counts; an absent one does
// not.
func replacesLines(set engine.LineSet, body *Payload) bool {
	return body.DetailLines != nil && set.InAdjustMode()
}

// syncInvoice writes the payload onto an invoice journal: header fields,
// party and paid-by selections, detail lines with their taxes and the
// document-level taxes.
func syncInvoice(ctx context.Context, sc *Scope, j engine.InvoiceJournal, body *Payload) error {
	if replacesLines(j, body) {
		if err := clearLines(j); err != nil {
			return err
		}
	}

	invoiceHeaderFields.Apply(sc.Env, body, j.Header())
	if party, ok := patch.Present(body.CusVenName); ok {
		if err := j.SelectParty(ctx, party); err != nil {
			return errEngine("Post", err)
		}
	}
	if paidBy, ok := patch.Present(body.PaidByType); ok {
		if err := j.SelectPaidByType(paidBy); err != nil {
			return errEngine("Post", err)
		}
	}

	for i := range body.DetailLines {
		n := i + 1
		line := &body.DetailLines[i]
		invoiceLineFields.Apply(sc.Env, line, j.Line(n))
		if err := applyTaxes(j.LineTaxSummary(n), line.TaxLines); err != nil {
			return errEngine("Post", err)
		}
	}

	if body.TaxLines != nil {
		if err := applyTaxes(j.TotalTaxSummary(), body.TaxLines); err != nil {
			return errEngine("Post", err)
		}
	}
	return nil
}

// syncJournal writes the payload onto a general journal.
func syncJournal(sc *Scope, j engine.GeneralJournal, body *Payload) error {
	if replacesLines(j, body) {
		if err := clearLines(j); err != nil {
			return err
		}
	}

	journalHeaderFields.Apply(sc.Env, body, j.Header())
	for i := range body.DetailLines {
		journalLineFields.Apply(sc.Env, &body.DetailLines[i], j.Line(i+1))
	}
	return nil
}

// applyTaxes sets each authority's amount on a staged summary and saves it.
// Rows without an authority or a parsable amount are skipped.
func applyTaxes(ts engine.TaxSummary, lines []TaxDetailLine) error {
	for _, t := range lines {
		authority, ok := patch.Present(t.TaxAuthority)
		if !ok {
			continue
		}
		raw, ok := patch.Present(t.TaxAmount)
		if !ok {
			continue
		}
		amount, err := patch.ParseDecimal(raw)
		if err != nil {
			continue
		}
		if err := ts.SetByName(authority, amount); err != nil {
			ts.Cancel()
			return err
		}
	}
	return ts.Save()
}

// readTaxes copies a summary into the response shape and discards the
// staged view.
func readTaxes(ts engine.TaxSummary) []TaxDetailLine {
	defer ts.Cancel()

	out := make([]TaxDetailLine, 0, ts.Count())
	for row := 1; row <= ts.Count(); row++ {
		out = append(out, TaxDetailLine{
			TaxAuthority: str(ts.Name(row)),
			TaxAmount:    str(ts.Amount(row).String()),
		})
	}
	return out
}
