package patch

import (
	"context"
	"strconv"
	"strings"
)

// maxAccountDigits caps how far an account number is ever padded.
const maxAccountDigits = 8

// DefaultAccountLength is used when the company setting cannot be read.
const DefaultAccountLength = 4

// AccountLengthQuery reads the configured account number length.
const AccountLengthQuery = "SELECT account_number_length FROM company_settings"

// Normalize turns a raw account number into the canonical account code by
// right-padding its digits with zeros up to min(8, maxLen) digits.
// Non-positive numbers normalize as if they were 1.
//
//	Normalize(7, 4)        == 7000
//	Normalize(0, 4)        == 1000
//	Normalize(12345678, 4) == 12345678
func Normalize(raw, maxLen int) int {
	digits := "1"
	if raw > 0 {
		digits = strconv.Itoa(raw)
	}

	width := min(maxAccountDigits, maxLen)
	if len(digits) < width {
		digits += strings.Repeat("0", width-len(digits))
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return raw
	}
	return n
}

// Normalizer applies Normalize with the account length of one session.
type Normalizer struct {
	Length int
}

// Normalize pads raw to the session's account length.
func (n Normalizer) Normalize(raw int) int {
	length := n.Length
	if length <= 0 {
		length = DefaultAccountLength
	}
	return Normalize(raw, length)
}

// Querier runs single-value queries. engine.Database satisfies it.
type Querier interface {
	ScalarQuery(ctx context.Context, query string) (any, error)
}

// LoadNormalizer reads the account length once for a session. Any failure
// falls back to DefaultAccountLength.
func LoadNormalizer(ctx context.Context, q Querier) Normalizer {
	if q == nil {
		return Normalizer{Length: DefaultAccountLength}
	}
	v, err := q.ScalarQuery(ctx, AccountLengthQuery)
	if err != nil {
		return Normalizer{Length: DefaultAccountLength}
	}
	length, ok := toInt(v)
	if !ok || length <= 0 {
		return Normalizer{Length: DefaultAccountLength}
	}
	return Normalizer{Length: length}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case []byte:
		i, err := strconv.Atoi(strings.TrimSpace(string(n)))
		return i, err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}
