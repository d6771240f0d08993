package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{PaymentStatusPendiente, PaymentStatusPendienteVerificacion, true},
		{PaymentStatusPendiente, PaymentStatusConfirmado, true},
		{PaymentStatusPendiente, PaymentStatusRechazado, true},
		{PaymentStatusPendienteVerificacion, PaymentStatusConfirmado, true},
		{PaymentStatusPendienteVerificacion, PaymentStatusRechazado, true},
		{PaymentStatusPendienteVerificacion, PaymentStatusPendiente, false},
		{PaymentStatusConfirmado, PaymentStatusRechazado, false},
		{PaymentStatusConfirmado, PaymentStatusPendiente, false},
		{PaymentStatusRechazado, PaymentStatusConfirmado, false},
		{PaymentStatusRechazado, PaymentStatusPendienteVerificacion, false},
		{PaymentStatus("UNKNOWN"), PaymentStatusConfirmado, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentStatusPendiente.Terminal())
	assert.False(t, PaymentStatusPendienteVerificacion.Terminal())
	assert.True(t, PaymentStatusConfirmado.Terminal())
	assert.True(t, PaymentStatusRechazado.Terminal())
}

func TestPaymentInvoiced(t *testing.T) {
	p := &Payment{Status: PaymentStatusConfirmado}
	assert.False(t, p.Invoiced())

	empty := ""
	p.CAE = &empty
	assert.False(t, p.Invoiced())

	cae := "71234567890123"
	p.CAE = &cae
	assert.True(t, p.Invoiced())
}
