package model

import "fmt"

// Role is the canonical user role. It replaces free-form role names stored on users.
type Role string

// Role enum constants
const (
	RoleAdmin           Role = "admin"
	RoleRector          Role = "rector"
	RoleVicerrector     Role = "vicerrector"
	RoleSindico         Role = "sindico"
	RoleTesoreria       Role = "tesoreria"
	RoleContabilidad    Role = "contabilidad"
	RoleAlmacen         Role = "almacen"
	RoleResponsableArea Role = "responsable_area"
)

// AllRoles lists every known role.
var AllRoles = []Role{
	RoleAdmin,
	RoleRector,
	RoleVicerrector,
	RoleSindico,
	RoleTesoreria,
	RoleContabilidad,
	RoleAlmacen,
	RoleResponsableArea,
}

// Capability is an action a role may perform on a requisition.
type Capability string

const (
	CapDecide    Capability = "decide"    // approve or reject
	CapPay       Capability = "pay"       // treasury and petty cash
	CapLogistics Capability = "logistics" // inventory receipt and delivery
)

var roleCapabilities = map[Role][]Capability{
	RoleAdmin:           {CapDecide, CapPay, CapLogistics},
	RoleRector:          {CapDecide},
	RoleVicerrector:     {CapDecide},
	RoleSindico:         {CapDecide},
	RoleTesoreria:       {CapPay},
	RoleAlmacen:         {CapLogistics},
	RoleResponsableArea: {CapLogistics},
}

// Valid reports whether r belongs to the enumeration.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Has reports whether the role holds capability c.
func (r Role) Has(c Capability) bool {
	for _, have := range roleCapabilities[r] {
		if have == c {
			return true
		}
	}
	return false
}

// ParseRole maps legacy spellings ("Admin", "Responsable de Área") onto the enumeration.
func ParseRole(raw string) (Role, error) {
	key := normalizeKey(raw)
	switch key {
	case "responsable_de_area", "responsable":
		return RoleResponsableArea, nil
	case "tesorero":
		return RoleTesoreria, nil
	case "contador":
		return RoleContabilidad, nil
	}
	r := Role(key)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return r, nil
}

// requiredCapability names the capability guarding the edge from -> to.
func requiredCapability(from, to Status) (Capability, bool) {
	if !from.CanMoveTo(to) {
		return "", false
	}
	switch to {
	case StatusAprobada, StatusRechazada:
		return CapDecide, true
	case StatusPagado, StatusPasadaACajaMenor, StatusPagadoPorCajaMenor:
		return CapPay, true
	case StatusPendienteInventario, StatusPendienteEntrega, StatusEntregada:
		return CapLogistics, true
	}
	return "", false
}

// CanTransition is the single permission policy for status changes. It is false
// for edges the state machine does not allow, whatever the role.
func CanTransition(role Role, from, to Status) bool {
	c, ok := requiredCapability(from, to)
	if !ok {
		return false
	}
	return role.Has(c)
}
