package patch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/sage-poster/patch"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type source struct {
	Name    *string
	Count   *string
	Periods *string
	Price   *string
	Start   *string
	Active  *bool
	Account *string
}

type target struct {
	Name    string
	Count   int
	Periods int16
	Price   decimal.Decimal
	Start   time.Time
	Active  bool
	Account string
}

var fields = patch.Set[*source, *target]{
	patch.Text("name", func(s *source) *string { return s.Name }, func(t *target, v string) { t.Name = v }),
	patch.Int("count", func(s *source) *string { return s.Count }, func(t *target, v int) { t.Count = v }),
	patch.Short("periods", func(s *source) *string { return s.Periods }, func(t *target, v int16) { t.Periods = v }),
	patch.Decimal("price", func(s *source) *string { return s.Price }, func(t *target, v decimal.Decimal) { t.Price = v }),
	patch.Date("start", func(s *source) *string { return s.Start }, func(t *target, v time.Time) { t.Start = v }),
	patch.Flag("active", func(s *source) *bool { return s.Active }, func(t *target, v bool) { t.Active = v }),
	patch.Account("account", func(s *source) *string { return s.Account }, func(t *target, v string) { t.Account = v }),
}

func str(s string) *string { return &s }
func flag(b bool) *bool    { return &b }

func existing() *target {
	return &target{
		Name:    "X",
		Count:   3,
		Periods: 12,
		Price:   decimal.RequireFromString("9.99"),
		Start:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:  true,
		Account: "1060",
	}
}

// =============================================================================
// PARTIAL UPDATE
// =============================================================================

func TestApply_AbsentFieldsNeverOverwrite(t *testing.T) {
	// GIVEN: A record with every attribute set
	dst := existing()

	// WHEN: Applying an empty payload
	n := fields.Apply(nil, &source{}, dst)

	// THEN: Nothing changed
	assert.Equal(t, 0, n)
	assert.Equal(t, existing(), dst)
}

func TestApply_BlankFieldsNeverOverwrite(t *testing.T) {
	dst := existing()

	n := fields.Apply(nil, &source{
		Name:    str(""),
		Count:   str("   "),
		Price:   str("\t"),
		Start:   str(" "),
		Account: str(""),
	}, dst)

	assert.Equal(t, 0, n)
	assert.Equal(t, "X", dst.Name)
	assert.Equal(t, existing(), dst)
}

func TestApply_AssignsParsedValues(t *testing.T) {
	dst := &target{}
	env := &patch.Env{Accounts: patch.Normalizer{Length: 4}}

	n := fields.Apply(env, &source{
		Name:    str("Acme"),
		Count:   str(" 42 "),
		Periods: str("26"),
		Price:   str("12.50"),
		Start:   str("2025-03-10"),
		Active:  flag(false),
		Account: str("12"),
	}, dst)

	assert.Equal(t, 7, n)
	assert.Equal(t, "Acme", dst.Name)
	assert.Equal(t, 42, dst.Count)
	assert.Equal(t, int16(26), dst.Periods)
	assert.True(t, decimal.RequireFromString("12.5").Equal(dst.Price))
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), dst.Start)
	assert.False(t, dst.Active)
	assert.Equal(t, "1200", dst.Account)
}

func TestApply_TextIsNotTrimmed(t *testing.T) {
	dst := &target{}
	fields.Apply(nil, &source{Name: str(" padded ")}, dst)
	assert.Equal(t, " padded ", dst.Name)
}

func TestApply_UnparsableValuesAreSkippedSilently(t *testing.T) {
	// GIVEN: A record with numeric and date attributes
	dst := existing()

	// WHEN: The payload carries garbage for each typed field
	n := fields.Apply(nil, &source{
		Count:   str("abc"),
		Periods: str("70000"), // overflows int16
		Price:   str("abc"),
		Start:   str("not a date"),
		Account: str("11-20"),
	}, dst)

	// THEN: Nothing is assigned and the previous values survive
	assert.Equal(t, 0, n)
	assert.Equal(t, existing(), dst)
}

func TestApply_IsIdempotent(t *testing.T) {
	src := &source{
		Name:  str("Acme"),
		Count: str("7"),
		Price: str("1.25"),
		Start: str("03/15/2025"),
	}

	once := existing()
	fields.Apply(nil, src, once)

	twice := existing()
	fields.Apply(nil, src, twice)
	fields.Apply(nil, src, twice)

	assert.Equal(t, once, twice)
}

func TestKeys_FollowDeclarationOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"name", "count", "periods", "price", "start", "active", "account"},
		fields.Keys())
}

func TestParseDate_AcceptedLayouts(t *testing.T) {
	want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2025-03-10", "2025-03-10T00:00:00Z", "2025-03-10 00:00:00", "03/10/2025", "Mar 10, 2025"} {
		got, err := patch.ParseDate(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), s)
	}

	_, err := patch.ParseDate("10.03.2025")
	assert.Error(t, err)
}

// =============================================================================
// ACCOUNT NUMBERS
// =============================================================================

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw, maxLen, want int
	}{
		{7, 4, 7000},
		{0, 4, 1000},
		{-5, 4, 1000},
		{12345678, 4, 12345678},
		{1060, 4, 1060},
		{106, 6, 106000},
		{5, 12, 50000000}, // capped at 8 digits
		{42, 1, 42},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, patch.Normalize(tt.raw, tt.maxLen), "Normalize(%d, %d)", tt.raw, tt.maxLen)
	}
}

type fakeQuerier struct {
	value any
	err   error
}

func (f fakeQuerier) ScalarQuery(context.Context, string) (any, error) { return f.value, f.err }

func TestLoadNormalizer(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, 6, patch.LoadNormalizer(ctx, fakeQuerier{value: int64(6)}).Length)
	assert.Equal(t, 5, patch.LoadNormalizer(ctx, fakeQuerier{value: []byte("5")}).Length)
	assert.Equal(t, patch.DefaultAccountLength, patch.LoadNormalizer(ctx, fakeQuerier{err: errors.New("no table")}).Length)
	assert.Equal(t, patch.DefaultAccountLength, patch.LoadNormalizer(ctx, fakeQuerier{value: "x"}).Length)
	assert.Equal(t, patch.DefaultAccountLength, patch.LoadNormalizer(ctx, nil).Length)
}
