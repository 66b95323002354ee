package poster

import (
	"context"
	"strconv"
	"strings"

	"github.com/warp/sage-poster/engine"
	"github.com/warp/sage-poster/patch"
)

// generalJournal handles journal entries. There is no void: a posted entry
// is corrected by adjusting it.
type generalJournal struct{}

func (g generalJournal) register(r *Router) {
	r.Handle(Action{VerbCreate, EntityGeneralJournal}, g.create)
	r.Handle(Action{VerbAdjust, EntityGeneralJournal}, g.adjust)
	r.Handle(Action{VerbLookup, EntityGeneralJournal}, g.lookup)
}

func (generalJournal) with(sc *Scope, fn func(engine.GeneralJournal) (*Result, error)) (*Result, error) {
	return use(
		sc.Session.OpenGeneralJournal,
		sc.Session.CloseGeneralJournal,
		msgJournalUnavailable,
		fn,
	)
}

func (g generalJournal) create(ctx context.Context, sc *Scope, body *Payload) (*Result, error) {
	return g.with(sc, func(j engine.GeneralJournal) (*Result, error) {
		return postJournal(ctx, sc, j, body)
	})
}

func (g generalJournal) adjust(ctx context.Context, sc *Scope, body *Payload) (*Result, error) {
	return g.with(sc, func(j engine.GeneralJournal) (*Result, error) {
		id, ok := journalID(body)
		if !ok {
			return nil, missJournal(VerbAdjust, body)
		}
		found, err := j.LoadForAdjust(ctx, id)
		if err != nil {
			return nil, errEngine("Adjust", err)
		}
		if !found {
			return nil, missJournal(VerbAdjust, body)
		}
		return postJournal(ctx, sc, j, body)
	})
}

// lookup needs both the entry number and the fiscal-year flag.
func (g generalJournal) lookup(ctx context.Context, sc *Scope, body *Payload) (*Result, error) {
	return g.with(sc, func(j engine.GeneralJournal) (*Result, error) {
		id, ok := journalID(body)
		if !ok || body.FindJournalLastYear == nil {
			return nil, missJournal(VerbLookup, body)
		}
		found, err := j.LoadForLookup(ctx, id, *body.FindJournalLastYear)
		if err != nil {
			return nil, errEngine("Lookup", err)
		}
		if !found {
			return nil, missJournal(VerbLookup, body)
		}
		return &Result{Record: readJournal(j, id)}, nil
	})
}

func journalID(body *Payload) (int, bool) {
	raw, ok := patch.Present(body.FindJournalID)
	if !ok {
		return 0, false
	}
	id, err := patch.ParseInt(raw)
	return id, err == nil
}

func missJournal(verb Verb, body *Payload) *ItemError {
	return errLookupMiss(verb, "general journal "+deref(body.FindJournalID))
}

// postJournal writes the payload and posts. On success the result carries
// the entry number, taken as the higher of the current and previous fiscal
// year's last entry.
func postJournal(ctx context.Context, sc *Scope, j engine.GeneralJournal, body *Payload) (*Result, error) {
	if err := syncJournal(sc, j, body); err != nil {
		return nil, err
	}

	ok, err := j.Post(ctx)
	if err != nil {
		return nil, errEngine("Post", err)
	}
	res := posted(ok)
	if !ok {
		return res, nil
	}

	current, err := j.LastEntryNumber(ctx, false)
	if err != nil {
		return nil, errEngine("Post", err)
	}
	previous, err := j.LastEntryNumber(ctx, true)
	if err != nil {
		return nil, errEngine("Post", err)
	}
	res.JournalID = str(strconv.Itoa(max(current, previous)))
	return res, nil
}

// readJournal echoes the loaded entry. Lines without an account are
// placeholders and are left out.
func readJournal(j engine.GeneralJournal, id int) Record {
	h := j.Header()
	rec := Record{
		JournalID: str(strconv.Itoa(id)),
		Source:    str(h.Source),
		Comment:   str(h.Comment),
	}
	if h.Date != nil {
		rec.JournalDate = str(engine.FormatDate(h.Date))
	}

	rec.DetailLines = make([]DetailLine, 0, j.LineCount())
	for n := 1; n <= j.LineCount(); n++ {
		l := j.Line(n)
		if strings.TrimSpace(l.Account) == "" {
			continue
		}
		rec.DetailLines = append(rec.DetailLines, DetailLine{
			LedgerAccount: str(l.Account),
			DebitAmount:   str(l.Debit.String()),
			CreditAmount:  str(l.Credit.String()),
			Comment:       str(l.Comment),
		})
	}
	return rec
}
