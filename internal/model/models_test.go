package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_RecomputeTotals(t *testing.T) {
	o := &Order{
		Items: []LineItem{
			{ProductID: "p1", Quantity: 1, UnitPrice: 100},
			{ProductID: "p2", Quantity: 2, UnitPrice: 50},
		},
		DeliveryFee: 35,
	}

	o.RecomputeTotals()

	assert.Equal(t, 200.0, o.Subtotal)
	assert.Equal(t, 235.0, o.TotalAmount)
	assert.Equal(t, int64(23500), o.AmountMinorUnits())
}

func TestOrder_RecomputeTotals_AvoidsFloatDrift(t *testing.T) {
	o := &Order{
		Items: []LineItem{
			{Quantity: 3, UnitPrice: 0.1},
			{Quantity: 1, UnitPrice: 0.2},
		},
		DeliveryFee: 15,
	}

	o.RecomputeTotals()

	assert.Equal(t, 0.5, o.Subtotal)
	assert.Equal(t, 15.5, o.TotalAmount)
	assert.InDelta(t, o.Subtotal+o.DeliveryFee, o.TotalAmount, 0.01)
}

func TestPaymentMethod_Valid(t *testing.T) {
	assert.True(t, PaymentCOD.Valid())
	assert.True(t, PaymentCard.Valid())
	assert.False(t, PaymentMethod("gcash").Valid())
}
