package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind discriminates requisitions from partidas no presupuestadas. Both share one table.
type Kind string

// Kind enum constants
const (
	KindRequisicion Kind = "REQUISICION"
	KindPartida     Kind = "PARTIDA"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindRequisicion || k == KindPartida
}

// Requisition is a purchase request moving through the approval pipeline.
type Requisition struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind   Kind      `gorm:"type:varchar(20);not null;index" json:"tipo"`
	Numero string    `gorm:"type:varchar(20);index" json:"numero"` // REQ-000123 / PNP-000123

	Area        string `gorm:"type:varchar(120);not null" json:"area"`
	Solicitante string `gorm:"type:varchar(255);not null" json:"solicitante"`
	ProveedorID *int64 `gorm:"index" json:"proveedor_id"`
	Cuenta      string `gorm:"type:varchar(120)" json:"cuenta"`
	Concepto    string `gorm:"type:varchar(255)" json:"concepto"`
	Producto    string `gorm:"type:varchar(255)" json:"producto"`

	Cantidad           int             `gorm:"not null" json:"cantidad"`
	ValorUnitario      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"valor_unitario"`
	ValorPresupuestado decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"valor_presupuestado"`
	IVA                decimal.Decimal `gorm:"column:iva;type:decimal(18,2);not null;default:0" json:"iva"`
	Justificacion      string          `gorm:"type:text" json:"justificacion"`

	Status Status `gorm:"type:varchar(30);not null;default:'PENDIENTE';index" json:"status"`

	// Committee decision
	NumeroComite    string           `gorm:"type:varchar(20);index" json:"numero_comite"`
	FechaAprobacion *time.Time       `gorm:"index" json:"fecha_aprobacion"`
	Rector          bool             `gorm:"default:false" json:"rector"`
	Vicerrector     bool             `gorm:"default:false" json:"vicerrector"`
	Sindico         bool             `gorm:"default:false" json:"sindico"`
	ValorDefinido   *decimal.Decimal `gorm:"type:decimal(18,2)" json:"valor_definido"`
	IVADefinido     *decimal.Decimal `gorm:"column:iva_definido;type:decimal(18,2)" json:"iva_definido"`
	Garantia        bool             `gorm:"default:false" json:"garantia"`
	TiempoGarantia  string           `gorm:"type:varchar(80)" json:"tiempo_garantia"`
	MotivoRechazo   string           `gorm:"type:text" json:"motivo_rechazo"`

	CreatedBy *uuid.UUID `gorm:"type:uuid;index" json:"created_by"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName keeps requisitions and partidas in one table.
func (Requisition) TableName() string {
	return "requisiciones"
}

// Approvers returns the committee roles flagged on the decision.
func (r Requisition) Approvers() []string {
	return approverNames(r.Rector, r.Vicerrector, r.Sindico)
}

func approverNames(rector, vicerrector, sindico bool) []string {
	names := make([]string, 0, 3)
	if rector {
		names = append(names, string(RoleRector))
	}
	if vicerrector {
		names = append(names, string(RoleVicerrector))
	}
	if sindico {
		names = append(names, string(RoleSindico))
	}
	return names
}

// PaymentMethod enum constants
const (
	PaymentTesoreria = "tesoreria"
	PaymentCajaMenor = "caja_menor"
)

// Payment records money paid against a requisition, either by treasury or petty cash.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequisitionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"requisition_id"`
	RegisteredBy  uuid.UUID       `gorm:"type:uuid;not null" json:"registered_by"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"monto"`
	Method        string          `gorm:"type:varchar(20);not null" json:"metodo"`
	Concepto      string          `gorm:"type:varchar(255)" json:"concepto"`
	SupportID     *uuid.UUID      `gorm:"type:uuid" json:"soporte_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TableName overrides the gorm default.
func (Payment) TableName() string {
	return "pagos"
}
