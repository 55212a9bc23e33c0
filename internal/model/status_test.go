package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionsStayInsideEnum(t *testing.T) {
	for from, targets := range transitions {
		assert.True(t, from.Valid(), "source %s", from)
		for _, to := range targets {
			assert.True(t, to.Valid(), "%s -> %s", from, to)
			assert.NotEqual(t, StatusPendiente, to, "nothing may return to PENDIENTE")
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusRechazada.Terminal())
	assert.True(t, StatusEntregada.Terminal())
	assert.True(t, StatusPagadoPorCajaMenor.Terminal())
	assert.False(t, StatusPendiente.Terminal())
	assert.False(t, StatusAprobada.Terminal())
	assert.False(t, Status("BORRADOR").Terminal())
}

func TestCanMoveTo(t *testing.T) {
	assert.True(t, StatusPendiente.CanMoveTo(StatusAprobada))
	assert.True(t, StatusPendiente.CanMoveTo(StatusRechazada))
	assert.True(t, StatusAprobada.CanMoveTo(StatusPasadaACajaMenor))
	assert.True(t, StatusPasadaACajaMenor.CanMoveTo(StatusPagadoPorCajaMenor))

	assert.False(t, StatusPendiente.CanMoveTo(StatusPagado))
	assert.False(t, StatusRechazada.CanMoveTo(StatusAprobada))
	assert.False(t, StatusPagado.CanMoveTo(StatusPasadaACajaMenor))
	assert.False(t, StatusEntregada.CanMoveTo(StatusPendiente))
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"PENDIENTE":             StatusPendiente,
		"Aprobada":              StatusAprobada,
		"pendiente inventario":  StatusPendienteInventario,
		"Pendiente Inventario":  StatusPendienteInventario,
		"pasada-a-caja-menor":   StatusPasadaACajaMenor,
		"Pagado por caja menor": StatusPagadoPorCajaMenor,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseStatus("ANULADA")
	assert.Error(t, err)
	_, err = ParseStatus("  ")
	assert.Error(t, err)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Pendiente Inventario", StatusPendienteInventario.Label())
	assert.Equal(t, "Rechazada", StatusRechazada.Label())
	assert.Equal(t, "OTRO", Status("OTRO").Label())
}
