/*
Package patch applies partial updates from a loosely-typed payload onto
strongly-typed records.

PURPOSE:
  Create and adjust share one code path. A create payload carries every
  field, an adjust payload only the ones that change. Either way, a field
  is copied only when it is present and not blank.

DESCRIPTORS:
  Each entity declares a Set of Field descriptors. A descriptor knows its
  payload key, how to read the raw value from the source, how to parse it,
  and how to assign it to the target:

    var customerFields = patch.Set[*Payload, *engine.Party]{
        patch.Text("name", func(p *Payload) *string { return p.Name },
            func(r *engine.Party, v string) { r.Name = v }),
        ...
    }

  Adding a field is a new table entry, not new branching code.

PARSE FAILURES:
  A value that does not parse (e.g. "abc" for a price) is skipped. The
  target keeps its previous value and no error is reported. This mirrors
  the long-standing behaviour of the poster; see DESIGN.md.

SEE ALSO:
  - account.go: Account number normalization used by Account fields
  - poster/fields.go: Descriptor tables per entity
*/
package patch

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Env carries per-session state needed by some parsers.
type Env struct {
	Accounts Normalizer
}

// Field copies one payload value onto a target when present and parsable.
type Field[S, T any] struct {
	Key   string
	apply func(env *Env, src S, dst T) bool
}

// Apply copies the field and reports whether the target was changed.
func (f Field[S, T]) Apply(env *Env, src S, dst T) bool {
	if f.apply == nil {
		return false
	}
	if env == nil {
		env = &Env{Accounts: Normalizer{Length: DefaultAccountLength}}
	}
	return f.apply(env, src, dst)
}

// Set is an ordered list of field descriptors for one target type.
type Set[S, T any] []Field[S, T]

// Apply runs every descriptor and returns how many fields were assigned.
func (s Set[S, T]) Apply(env *Env, src S, dst T) int {
	applied := 0
	for _, f := range s {
		if f.Apply(env, src, dst) {
			applied++
		}
	}
	return applied
}

// Keys returns the payload keys covered by the set, in order.
func (s Set[S, T]) Keys() []string {
	keys := make([]string, len(s))
	for i, f := range s {
		keys[i] = f.Key
	}
	return keys
}

// =============================================================================
// DESCRIPTOR CONSTRUCTORS
// =============================================================================

// Text assigns the raw string unchanged.
func Text[S, T any](key string, from func(S) *string, set func(T, string)) Field[S, T] {
	return parsed(key, from, func(s string) (string, error) { return s, nil }, set)
}

// Int assigns a base-10 integer.
func Int[S, T any](key string, from func(S) *string, set func(T, int)) Field[S, T] {
	return parsed(key, from, ParseInt, set)
}

// Short assigns a 16-bit integer.
func Short[S, T any](key string, from func(S) *string, set func(T, int16)) Field[S, T] {
	return parsed(key, from, ParseShort, set)
}

// Decimal assigns a decimal number.
func Decimal[S, T any](key string, from func(S) *string, set func(T, decimal.Decimal)) Field[S, T] {
	return parsed(key, from, ParseDecimal, set)
}

// Date assigns a calendar date.
func Date[S, T any](key string, from func(S) *string, set func(T, time.Time)) Field[S, T] {
	return parsed(key, from, ParseDate, set)
}

// Flag assigns an optional boolean when it has a value.
func Flag[S, T any](key string, from func(S) *bool, set func(T, bool)) Field[S, T] {
	return Field[S, T]{
		Key: key,
		apply: func(_ *Env, src S, dst T) bool {
			v := from(src)
			if v == nil {
				return false
			}
			set(dst, *v)
			return true
		},
	}
}

// Account parses an integer account number, normalizes it to the session's
// account length, and assigns its decimal form.
func Account[S, T any](key string, from func(S) *string, set func(T, string)) Field[S, T] {
	return Field[S, T]{
		Key: key,
		apply: func(env *Env, src S, dst T) bool {
			raw, ok := Present(from(src))
			if !ok {
				return false
			}
			n, err := ParseInt(raw)
			if err != nil {
				return false
			}
			set(dst, strconv.Itoa(env.Accounts.Normalize(n)))
			return true
		},
	}
}

func parsed[S, T, V any](key string, from func(S) *string, parse func(string) (V, error), set func(T, V)) Field[S, T] {
	return Field[S, T]{
		Key: key,
		apply: func(_ *Env, src S, dst T) bool {
			raw, ok := Present(from(src))
			if !ok {
				return false
			}
			v, err := parse(raw)
			if err != nil {
				return false
			}
			set(dst, v)
			return true
		},
	}
}

// =============================================================================
// PARSERS
// =============================================================================

// Present returns the value when it is non-nil and not blank.
func Present(s *string) (string, bool) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "", false
	}
	return *s, true
}

func ParseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func ParseShort(s string) (int16, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 16)
	return int16(n), err
}

func ParseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// dateLayouts are tried in order.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"Jan 2, 2006",
}

// ParseDate accepts the date formats callers have historically sent.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
