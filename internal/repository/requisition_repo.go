package repository

import (
	"context"

	"requisiciones/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequisitionFilter narrows List; zero values mean "any".
type RequisitionFilter struct {
	Status model.Status
	Kind   model.Kind
	Area   string
	Page   int
	Limit  int
}

type RequisitionRepository interface {
	Create(ctx context.Context, req *model.Requisition) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Requisition, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Requisition, error)
	List(ctx context.Context, filter RequisitionFilter) ([]model.Requisition, int64, error)
	ListByKind(ctx context.Context, kind model.Kind) ([]model.Requisition, error)
	ListApproved(ctx context.Context) ([]model.Requisition, error)
	Update(ctx context.Context, req *model.Requisition) error
}

type requisitionRepository struct {
	db *gorm.DB
}

func NewRequisitionRepository(db *gorm.DB) RequisitionRepository {
	return &requisitionRepository{db: db}
}

func (r *requisitionRepository) Create(ctx context.Context, req *model.Requisition) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requisitionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Requisition, error) {
	var req model.Requisition
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindByIDForUpdate row-locks the requisition for the rest of the ambient transaction.
func (r *requisitionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Requisition, error) {
	var req model.Requisition
	if err := forUpdate(ctx, GetDB(ctx, r.db)).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requisitionRepository) List(ctx context.Context, filter RequisitionFilter) ([]model.Requisition, int64, error) {
	var reqs []model.Requisition
	var total int64

	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Kind != "" {
			q = q.Where("kind = ?", filter.Kind)
		}
		if filter.Area != "" {
			q = q.Where("area = ?", filter.Area)
		}
		return q
	}

	db := GetDB(ctx, r.db)
	if err := apply(db.Model(&model.Requisition{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := apply(db).Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&reqs).Error; err != nil {
		return nil, 0, err
	}

	return reqs, total, nil
}

// ListByKind returns every row of a kind in creation order.
func (r *requisitionRepository) ListByKind(ctx context.Context, kind model.Kind) ([]model.Requisition, error) {
	var reqs []model.Requisition
	if err := GetDB(ctx, r.db).Where("kind = ?", kind).Order("created_at ASC").Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

// ListApproved returns every row carrying an approval date, in creation order.
func (r *requisitionRepository) ListApproved(ctx context.Context) ([]model.Requisition, error) {
	var reqs []model.Requisition
	if err := GetDB(ctx, r.db).
		Where("fecha_aprobacion IS NOT NULL AND status <> ?", model.StatusRechazada).
		Order("created_at ASC").
		Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *requisitionRepository) Update(ctx context.Context, req *model.Requisition) error {
	return GetDB(ctx, r.db).Save(req).Error
}
