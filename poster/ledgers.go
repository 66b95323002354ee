package poster

import (
	"context"
	"strconv"

	"github.com/warp/sage-poster/engine"
	"github.com/warp/sage-poster/patch"
)

// ledgerKind describes one master-record ledger. Create, adjust and lookup
// are the same for every ledger once these pieces are known.
type ledgerKind[R any] struct {
	entity Entity
	open   func(engine.Session) (engine.Ledger[R], error)
	close  func(engine.Session) error
	fields patch.Set[*Payload, *R]
	echo   func(*R) Record

	// key returns the lookup key and its label for messages. ok is false
	// when the payload carries no usable key.
	key func(*Payload) (key, label string, ok bool)
}

var (
	customers = ledgerKind[engine.Party]{
		entity: EntityCustomer,
		open:   engine.Session.OpenCustomerLedger,
		close:  engine.Session.CloseCustomerLedger,
		fields: partyFields(false),
		echo:   echoParty(false),
		key:    byName,
	}
	vendors = ledgerKind[engine.Party]{
		entity: EntityVendor,
		open:   engine.Session.OpenVendorLedger,
		close:  engine.Session.CloseVendorLedger,
		fields: partyFields(true),
		echo:   echoParty(true),
		key:    byName,
	}
	employees = ledgerKind[engine.Employee]{
		entity: EntityEmployee,
		open:   engine.Session.OpenEmployeeLedger,
		close:  engine.Session.CloseEmployeeLedger,
		fields: employeeFields,
		echo:   echoEmployee,
		key:    byName,
	}
	inventory = ledgerKind[engine.Inventory]{
		entity: EntityInventory,
		open:   engine.Session.OpenInventoryLedger,
		close:  engine.Session.CloseInventoryLedger,
		fields: inventoryFields,
		echo:   echoInventory,
		key: func(p *Payload) (string, string, bool) {
			code, ok := patch.Present(p.FindPartCode)
			return code, deref(p.FindPartCode), ok
		},
	}
	projects = ledgerKind[engine.Project]{
		entity: EntityProject,
		open:   engine.Session.OpenProjectLedger,
		close:  engine.Session.CloseProjectLedger,
		fields: projectFields,
		echo:   echoProject,
		key:    byName,
	}
	accounts = ledgerKind[engine.Account]{
		entity: EntityAccount,
		open:   engine.Session.OpenAccountLedger,
		close:  engine.Session.CloseAccountLedger,
		fields: accountFields,
		echo:   echoAccount,
		key: func(p *Payload) (string, string, bool) {
			raw, ok := patch.Present(p.FindAccountNumber)
			if !ok {
				return "", deref(p.FindAccountNumber), false
			}
			n, err := patch.ParseInt(raw)
			if err != nil {
				return "", raw, false
			}
			return strconv.Itoa(n), raw, true
		},
	}
)

func byName(p *Payload) (string, string, bool) {
	name, ok := patch.Present(p.FindName)
	return name, deref(p.FindName), ok
}

func (k ledgerKind[R]) register(r *Router) {
	r.Handle(Action{VerbCreate, k.entity}, k.create)
	r.Handle(Action{VerbAdjust, k.entity}, k.adjust)
	r.Handle(Action{VerbLookup, k.entity}, k.lookup)
}

func (k ledgerKind[R]) with(sc *Scope, fn func(engine.Ledger[R]) (*Result, error)) (*Result, error) {
	return use(
		func() (engine.Ledger[R], error) { return k.open(sc.Session) },
		func() error { return k.close(sc.Session) },
		msgLedgerUnavailable,
		fn,
	)
}

func (k ledgerKind[R]) create(ctx context.Context, sc *Scope, body *Payload) (*Result, error) {
	return k.with(sc, func(l engine.Ledger[R]) (*Result, error) {
		l.InitializeNew()
		return k.save(ctx, sc, l, body)
	})
}

func (k ledgerKind[R]) adjust(ctx context.Context, sc *Scope, body *Payload) (*Result, error) {
	return k.with(sc, func(l engine.Ledger[R]) (*Result, error) {
		if err := k.load(ctx, l, VerbAdjust, body); err != nil {
			return nil, err
		}
		return k.save(ctx, sc, l, body)
	})
}

func (k ledgerKind[R]) lookup(ctx context.Context, sc *Scope, body *Payload) (*Result, error) {
	return k.with(sc, func(l engine.Ledger[R]) (*Result, error) {
		if err := k.load(ctx, l, VerbLookup, body); err != nil {
			return nil, err
		}
		return &Result{Record: k.echo(l.Record())}, nil
	})
}

func (k ledgerKind[R]) load(ctx context.Context, l engine.Ledger[R], verb Verb, body *Payload) error {
	key, label, ok := k.key(body)
	if !ok {
		return errLookupMiss(verb, string(k.entity)+" "+label)
	}
	found, err := l.Load(ctx, key)
	if err != nil {
		return errEngine(verb.Title(), err)
	}
	if !found {
		return errLookupMiss(verb, string(k.entity)+" "+label)
	}
	return nil
}

// save patches the current record and persists it. A refused save is a
// result with post_ok false, not an error.
func (k ledgerKind[R]) save(ctx context.Context, sc *Scope, l engine.Ledger[R], body *Payload) (*Result, error) {
	k.fields.Apply(sc.Env, body, l.Record())

	ok, err := l.Save(ctx)
	if err != nil {
		return nil, errEngine("Save", err)
	}
	res := posted(ok)
	if ok {
		res.Record = k.echo(l.Record())
	}
	return res, nil
}
