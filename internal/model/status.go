package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a requisition or partida.
type Status string

// Status enum constants
const (
	StatusPendiente           Status = "PENDIENTE"
	StatusAprobada            Status = "APROBADA"
	StatusRechazada           Status = "RECHAZADA"
	StatusPagado              Status = "PAGADO"
	StatusPasadaACajaMenor    Status = "PASADA_A_CAJA_MENOR"
	StatusPagadoPorCajaMenor  Status = "PAGADO_POR_CAJA_MENOR"
	StatusPendienteInventario Status = "PENDIENTE_INVENTARIO"
	StatusPendienteEntrega    Status = "PENDIENTE_ENTREGA"
	StatusEntregada           Status = "ENTREGADA"
)

// AllStatuses lists every status in pipeline order.
var AllStatuses = []Status{
	StatusPendiente,
	StatusAprobada,
	StatusRechazada,
	StatusPagado,
	StatusPasadaACajaMenor,
	StatusPagadoPorCajaMenor,
	StatusPendienteInventario,
	StatusPendienteEntrega,
	StatusEntregada,
}

var statusLabels = map[Status]string{
	StatusPendiente:           "Pendiente",
	StatusAprobada:            "Aprobada",
	StatusRechazada:           "Rechazada",
	StatusPagado:              "Pagado",
	StatusPasadaACajaMenor:    "Pasada a caja menor",
	StatusPagadoPorCajaMenor:  "Pagado por caja menor",
	StatusPendienteInventario: "Pendiente Inventario",
	StatusPendienteEntrega:    "Pendiente entrega",
	StatusEntregada:           "Entregada",
}

// transitions is the whole state machine: from -> allowed targets.
var transitions = map[Status][]Status{
	StatusPendiente:           {StatusAprobada, StatusRechazada},
	StatusAprobada:            {StatusPagado, StatusPasadaACajaMenor, StatusPendienteInventario, StatusEntregada},
	StatusPasadaACajaMenor:    {StatusPagadoPorCajaMenor},
	StatusPagado:              {StatusPendienteEntrega, StatusPendienteInventario, StatusEntregada},
	StatusPendienteInventario: {StatusEntregada},
	StatusPendienteEntrega:    {StatusEntregada},
}

// Label returns the human readable name shown to users.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s belongs to the enumeration.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanMoveTo reports whether the state machine allows s -> next.
func (s Status) CanMoveTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step.
func (s Status) NextStatuses() []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// ParseStatus accepts canonical names and display labels, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	key := normalizeKey(raw)
	if key == "" {
		return "", fmt.Errorf("empty status")
	}
	for _, s := range AllStatuses {
		if key == normalizeKey(string(s)) || key == normalizeKey(statusLabels[s]) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// normalizeKey lowercases, strips accents and turns separators into underscores.
func normalizeKey(raw string) string {
	r := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n",
		"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ñ", "n",
		" ", "_", "-", "_",
	)
	return strings.ToLower(r.Replace(strings.TrimSpace(raw)))
}
