package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType classifies entries of a requisition's trace history.
type EventType string

// EventType enum constants
const (
	EventCreacion           EventType = "CREACION"
	EventAprobacion         EventType = "APROBACION"
	EventRechazo            EventType = "RECHAZO"
	EventPago               EventType = "PAGO"
	EventSoporteAgregado    EventType = "SOPORTE_AGREGADO"
	EventEstadoCambio       EventType = "ESTADO_CAMBIO"
	EventComentarioAgregado EventType = "COMENTARIO_AGREGADO"
	EventEntrega            EventType = "ENTREGA"
)

// AuditEvent is an immutable entry of the per-requisition trail.
// Rows are only ever inserted.
type AuditEvent struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequisitionID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_audit_req_ts,priority:1" json:"requisition_id"`
	Timestamp      time.Time  `gorm:"not null;index:idx_audit_req_ts,priority:2" json:"timestamp"`
	ActorID        *uuid.UUID `gorm:"type:uuid;index" json:"actor_id"`
	Actor          string     `gorm:"type:varchar(255);not null" json:"actor"`
	EventType      EventType  `gorm:"type:varchar(30);not null;index" json:"event_type"`
	PreviousStatus *Status    `gorm:"type:varchar(30)" json:"previous_status,omitempty"`
	NewStatus      *Status    `gorm:"type:varchar(30)" json:"new_status,omitempty"`
	Description    string     `gorm:"type:text" json:"description"`
	SupportID      *uuid.UUID `gorm:"type:uuid" json:"support_id,omitempty"`
	Details        string     `gorm:"type:jsonb" json:"details"` // JSON of the EventDetail variant
}

// TableName overrides the gorm default.
func (AuditEvent) TableName() string {
	return "auditoria_eventos"
}

// EventDetail is the structured payload of an audit event. Each variant belongs
// to exactly one EventType.
type EventDetail interface {
	EventType() EventType
}

type CreationDetail struct {
	Numero string `json:"numero"`
	Kind   Kind   `json:"tipo"`
}

type ApprovalDetail struct {
	NumeroComite   string          `json:"numero_comite"`
	ProveedorID    int64           `json:"proveedor_id"`
	ValorDefinido  decimal.Decimal `json:"valor_definido"`
	IVADefinido    decimal.Decimal `json:"iva_definido"`
	Aprobadores    []string        `json:"aprobadores"`
	TiempoGarantia string          `json:"tiempo_garantia,omitempty"`
}

type RejectionDetail struct {
	NumeroComite string   `json:"numero_comite"`
	Motivo       string   `json:"motivo"`
	Aprobadores  []string `json:"aprobadores"`
}

type PaymentDetail struct {
	PaymentID uuid.UUID       `json:"pago_id"`
	Monto     decimal.Decimal `json:"monto"`
	Metodo    string          `json:"metodo"`
	Concepto  string          `json:"concepto,omitempty"`
}

type SupportDetail struct {
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	Version   int    `json:"version"`
}

type StatusChangeDetail struct {
	PreviousStatus Status `json:"previous_status"`
	NewStatus      Status `json:"new_status"`
	Reason         string `json:"reason,omitempty"`
}

type CommentDetail struct {
	Comentario string `json:"comentario"`
}

type DeliveryDetail struct {
	RecibidoPor   string `json:"recibido_por"`
	Observaciones string `json:"observaciones,omitempty"`
}

func (CreationDetail) EventType() EventType     { return EventCreacion }
func (ApprovalDetail) EventType() EventType     { return EventAprobacion }
func (RejectionDetail) EventType() EventType    { return EventRechazo }
func (PaymentDetail) EventType() EventType      { return EventPago }
func (SupportDetail) EventType() EventType      { return EventSoporteAgregado }
func (StatusChangeDetail) EventType() EventType { return EventEstadoCambio }
func (CommentDetail) EventType() EventType      { return EventComentarioAgregado }
func (DeliveryDetail) EventType() EventType     { return EventEntrega }

// EncodeDetail serializes d for the Details column.
func EncodeDetail(d EventDetail) (string, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode %s detail: %w", d.EventType(), err)
	}
	return string(b), nil
}

// DecodeDetail restores the variant matching t from raw JSON.
func DecodeDetail(t EventType, raw string) (EventDetail, error) {
	var d EventDetail
	switch t {
	case EventCreacion:
		d = &CreationDetail{}
	case EventAprobacion:
		d = &ApprovalDetail{}
	case EventRechazo:
		d = &RejectionDetail{}
	case EventPago:
		d = &PaymentDetail{}
	case EventSoporteAgregado:
		d = &SupportDetail{}
	case EventEstadoCambio:
		d = &StatusChangeDetail{}
	case EventComentarioAgregado:
		d = &CommentDetail{}
	case EventEntrega:
		d = &DeliveryDetail{}
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), d); err != nil {
		return nil, fmt.Errorf("decode %s detail: %w", t, err)
	}
	return d, nil
}

// Detail decodes the structured payload of e.
func (e AuditEvent) Detail() (EventDetail, error) {
	return DecodeDetail(e.EventType, e.Details)
}
