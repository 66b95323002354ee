package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInvoiceLine_AmountFollowsQuantityAndPrice(t *testing.T) {
	// GIVEN: A line carrying an amount from an earlier document
	l := &InvoiceLine{Quantity: decimal.NewFromInt(3), Price: decimal.NewFromInt(10), Amount: decimal.NewFromInt(30)}

	// WHEN: Quantity and price change
	l.SetQuantity(decimal.NewFromInt(4))
	l.SetPrice(decimal.RequireFromString("2.5"))

	// THEN: The amount is derived from them
	assert.Equal(t, "10", l.Amount.String())

	// AND: An explicit amount still wins when set last
	l.SetAmount(decimal.NewFromInt(9))
	assert.Equal(t, "9", l.Amount.String())
}
