package repository

import (
	"context"
	"fmt"

	"requisiciones/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SupportRepository interface {
	Create(ctx context.Context, doc *model.SupportDocument) error
	CountByRequisition(ctx context.Context, requisitionID uuid.UUID) (int64, error)
	ListByRequisition(ctx context.Context, requisitionID uuid.UUID) ([]model.SupportDocument, error)
	FindByID(ctx context.Context, requisitionID, id uuid.UUID) (*model.SupportDocument, error)
}

type supportRepository struct {
	db *gorm.DB
}

func NewSupportRepository(db *gorm.DB) SupportRepository {
	return &supportRepository{db: db}
}

func (r *supportRepository) Create(ctx context.Context, doc *model.SupportDocument) error {
	if err := GetDB(ctx, r.db).Create(doc).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("support version %d already exists: %w", doc.Version, ErrConflict)
		}
		return err
	}
	return nil
}

func (r *supportRepository) CountByRequisition(ctx context.Context, requisitionID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.SupportDocument{}).
		Where("requisition_id = ?", requisitionID).
		Count(&count).Error
	return count, err
}

// ListByRequisition omits the inline content column.
func (r *supportRepository) ListByRequisition(ctx context.Context, requisitionID uuid.UUID) ([]model.SupportDocument, error) {
	var docs []model.SupportDocument
	if err := GetDB(ctx, r.db).
		Omit("content").
		Where("requisition_id = ?", requisitionID).
		Order("version ASC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *supportRepository) FindByID(ctx context.Context, requisitionID, id uuid.UUID) (*model.SupportDocument, error) {
	var doc model.SupportDocument
	if err := GetDB(ctx, r.db).First(&doc, "id = ? AND requisition_id = ?", id, requisitionID).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}
