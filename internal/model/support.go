package model

import (
	"time"

	"github.com/google/uuid"
)

// SupportDocument is a versioned attachment of a requisition. Versions are
// count+1 per requisition and never reused.
type SupportDocument struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequisitionID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_soporte_req_version,priority:1" json:"requisition_id"`
	Version       int        `gorm:"not null;uniqueIndex:idx_soporte_req_version,priority:2" json:"version"`
	Filename      string     `gorm:"type:varchar(255);not null" json:"filename"`
	MimeType      string     `gorm:"type:varchar(120);not null" json:"mime_type"`
	SizeBytes     int64      `gorm:"not null" json:"size_bytes"`
	StorageKey    string     `gorm:"type:varchar(255)" json:"-"` // object key when content lives in the blob store
	Content       []byte     `gorm:"type:bytea" json:"-"`        // inline content when no blob store is configured
	UploadedAt    time.Time  `gorm:"not null" json:"uploaded_at"`
	UploadedByID  *uuid.UUID `gorm:"type:uuid" json:"uploaded_by_id"`
	UploadedBy    string     `gorm:"type:varchar(255);not null" json:"uploaded_by"`
	Description   string     `gorm:"type:text" json:"description"`
}

// TableName overrides the gorm default.
func (SupportDocument) TableName() string {
	return "soportes"
}

// MaxSupportBytes is the largest attachment accepted.
const MaxSupportBytes = 5 * 1024 * 1024

// AllowedSupportTypes maps accepted mime types to their usual extension.
var AllowedSupportTypes = map[string]string{
	"application/pdf":    ".pdf",
	"image/jpeg":         ".jpg",
	"image/png":          ".png",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
}

// CommitteeNumber binds a calendar day to the committee number issued for it.
type CommitteeNumber struct {
	DateKey   string    `gorm:"type:varchar(10);primaryKey" json:"fecha"` // YYYY-MM-DD
	Numero    string    `gorm:"type:varchar(20);not null;uniqueIndex" json:"numero"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the gorm default.
func (CommitteeNumber) TableName() string {
	return "comite_numeros"
}

// SequenceCounter keys
const (
	SeqRequisicion = "ultimoNumeroRequisicion"
	SeqPartida     = "ultimoNumeroPartida"
)

// SequenceCounter is a monotonically increasing counter row.
type SequenceCounter struct {
	Key       string    `gorm:"type:varchar(60);primaryKey" json:"key"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the gorm default.
func (SequenceCounter) TableName() string {
	return "sequence_counters"
}
