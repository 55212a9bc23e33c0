package repository

import (
	"context"
	"fmt"
	"time"

	"requisiciones/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatisticsRepository interface {
	CountByStatus(ctx context.Context, start, end time.Time) ([]model.StatusCount, error)
	SumValues(ctx context.Context, start, end time.Time) (budgeted, approved decimal.Decimal, err error)
	PaymentsByMethod(ctx context.Context, start, end time.Time) ([]model.MethodTotal, error)
	TopAreas(ctx context.Context, start, end time.Time, limit int) ([]model.AreaRanking, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) inRange(ctx context.Context, table string, start, end time.Time) *gorm.DB {
	return GetDB(ctx, r.db).Table(table).
		Where(table+".created_at >= ? AND "+table+".created_at <= ?", start, end)
}

func (r *statisticsRepository) CountByStatus(ctx context.Context, start, end time.Time) ([]model.StatusCount, error) {
	var counts []model.StatusCount
	if err := r.inRange(ctx, "requisiciones", start, end).
		Select("status, COUNT(*) as count").
		Group("status").
		Order("count DESC").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count requisitions by status: %w", err)
	}
	return counts, nil
}

func (r *statisticsRepository) SumValues(ctx context.Context, start, end time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var result struct {
		Budgeted decimal.Decimal
		Approved decimal.Decimal
	}
	// Approved value counts the defined value plus its VAT, only once a decision exists.
	err := r.inRange(ctx, "requisiciones", start, end).
		Select(`COALESCE(SUM(valor_presupuestado), 0) as budgeted,
			COALESCE(SUM(CASE WHEN fecha_aprobacion IS NOT NULL
				THEN COALESCE(valor_definido, 0) + COALESCE(iva_definido, 0) ELSE 0 END), 0) as approved`).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum requisition values: %w", err)
	}
	return result.Budgeted, result.Approved, nil
}

func (r *statisticsRepository) PaymentsByMethod(ctx context.Context, start, end time.Time) ([]model.MethodTotal, error) {
	var totals []model.MethodTotal
	if err := r.inRange(ctx, "pagos", start, end).
		Select("method, COUNT(*) as count, COALESCE(SUM(amount), 0) as total").
		Group("method").
		Order("method ASC").
		Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("failed to total payments: %w", err)
	}
	return totals, nil
}

func (r *statisticsRepository) TopAreas(ctx context.Context, start, end time.Time, limit int) ([]model.AreaRanking, error) {
	var rankings []model.AreaRanking
	if err := r.inRange(ctx, "requisiciones", start, end).
		Select(`area, COUNT(*) as total_requisiciones,
			COALESCE(SUM(COALESCE(valor_definido, 0) + COALESCE(iva_definido, 0)), 0) as valor_aprobado`).
		Group("area").
		Order("valor_aprobado DESC, total_requisiciones DESC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to rank areas: %w", err)
	}
	return rankings, nil
}
