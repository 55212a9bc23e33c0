package repository

import (
	"context"

	"requisiciones/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository is append-only: there is no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, event *model.AuditEvent) error
	ListByRequisition(ctx context.Context, requisitionID uuid.UUID) ([]model.AuditEvent, error)
	List(ctx context.Context, page, limit int) ([]model.AuditEvent, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, event *model.AuditEvent) error {
	return GetDB(ctx, r.db).Create(event).Error
}

// ListByRequisition returns the trail newest first.
func (r *auditRepository) ListByRequisition(ctx context.Context, requisitionID uuid.UUID) ([]model.AuditEvent, error) {
	var events []model.AuditEvent
	if err := GetDB(ctx, r.db).
		Where("requisition_id = ?", requisitionID).
		Order("timestamp DESC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *auditRepository) List(ctx context.Context, page, limit int) ([]model.AuditEvent, int64, error) {
	var events []model.AuditEvent
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.AuditEvent{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("timestamp desc").Offset(offset).Limit(limit).Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
