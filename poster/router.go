package poster

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/warp/sage-poster/engine"
	"github.com/warp/sage-poster/patch"
)

// =============================================================================
// ACTIONS
// =============================================================================

// Verb is the operation half of an action name.
type Verb string

const (
	VerbCreate Verb = "create"
	VerbAdjust Verb = "adjust"
	VerbLookup Verb = "lookup"
	VerbVoid   Verb = "void"
)

// Title returns the verb as it appears in messages ("Adjust").
func (v Verb) Title() string {
	if v == "" {
		return ""
	}
	return strings.ToUpper(string(v[:1])) + string(v[1:])
}

// Entity is the target half of an action name.
type Entity string

const (
	EntityCustomer        Entity = "customer"
	EntityVendor          Entity = "vendor"
	EntityEmployee        Entity = "employee"
	EntityInventory       Entity = "inventory"
	EntityProject         Entity = "project"
	EntityAccount         Entity = "account"
	EntitySalesInvoice    Entity = "sales_invoice"
	EntityPurchaseInvoice Entity = "purchase_invoice"
	EntityGeneralJournal  Entity = "general_journal"
	EntitySQLNonQuery     Entity = "sql_non_query"
)

// Action is a (verb, entity) pair such as create_sales_invoice.
type Action struct {
	Verb   Verb
	Entity Entity
}

func (a Action) String() string {
	return string(a.Verb) + "_" + string(a.Entity)
}

// ParseAction splits an action name at its first underscore. It does not
// check that the pair is routable.
func ParseAction(name string) (Action, bool) {
	verb, entity, ok := strings.Cut(name, "_")
	if !ok || verb == "" || entity == "" {
		return Action{}, false
	}
	return Action{Verb: Verb(verb), Entity: Entity(entity)}, true
}

// =============================================================================
// ROUTER
// =============================================================================

// Scope is what a handler may touch while processing one item.
type Scope struct {
	Session engine.Session
	Env     *patch.Env
	Logger  *slog.Logger
}

// Handler processes one payload. A returned error becomes a failed Result;
// *ItemError values keep their kind and message.
type Handler func(ctx context.Context, sc *Scope, body *Payload) (*Result, error)

// Router maps action names to handlers. Matching is exact: no case folding,
// no prefixes.
type Router struct {
	routes map[Action]Handler
}

// NewRouter returns a router with every supported action registered.
func NewRouter() *Router {
	r := &Router{routes: make(map[Action]Handler)}

	for _, l := range []interface{ register(*Router) }{
		customers, vendors, employees, inventory, projects, accounts,
	} {
		l.register(r)
	}
	for _, j := range []invoiceJournal{salesInvoices, purchaseInvoices} {
		j.register(r)
	}
	generalJournal{}.register(r)

	r.Handle(Action{VerbCreate, EntitySQLNonQuery}, runNonQuery)
	return r
}

// Handle registers or replaces the handler for an action.
func (r *Router) Handle(a Action, h Handler) {
	if r.routes == nil {
		r.routes = make(map[Action]Handler)
	}
	r.routes[a] = h
}

// Resolve finds the handler for an action name.
func (r *Router) Resolve(name string) (Action, Handler, bool) {
	a, ok := ParseAction(name)
	if !ok {
		return Action{}, nil, false
	}
	h, ok := r.routes[a]
	if !ok {
		return Action{}, nil, false
	}
	return a, h, true
}

// Actions lists the routable actions sorted by entity, then verb.
func (r *Router) Actions() []Action {
	out := make([]Action, 0, len(r.routes))
	for a := range r.routes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return verbOrder(out[i].Verb) < verbOrder(out[j].Verb)
	})
	return out
}

func verbOrder(v Verb) int {
	switch v {
	case VerbCreate:
		return 0
	case VerbAdjust:
		return 1
	case VerbLookup:
		return 2
	case VerbVoid:
		return 3
	}
	return 4
}
