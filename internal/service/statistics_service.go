package service

import (
	"context"
	"time"

	"requisiciones/internal/model"
	"requisiciones/internal/repository"
)

const topAreasLimit = 5

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error)
}

type statisticsService struct {
	repo repository.StatisticsRepository
}

func NewStatisticsService(repo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{repo: repo}
}

// GetStatistics aggregates requisitions created within [startDate, endDate].
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error) {
	if endDate.Before(startDate) {
		errs := fieldErrors{}
		errs.add("end_date", "debe ser posterior a start_date")
		return model.StatisticsResponse{}, errs.err()
	}

	res := model.StatisticsResponse{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
	}

	counts, err := s.repo.CountByStatus(ctx, startDate, endDate)
	if err != nil {
		return res, storageErr("statistics", err)
	}
	for i := range counts {
		counts[i].Label = counts[i].Status.Label()
		res.TotalRequisiciones += counts[i].Count
	}
	res.PorEstado = counts

	res.ValorPresupuestado, res.ValorAprobado, err = s.repo.SumValues(ctx, startDate, endDate)
	if err != nil {
		return res, storageErr("statistics", err)
	}

	res.PagosPorMetodo, err = s.repo.PaymentsByMethod(ctx, startDate, endDate)
	if err != nil {
		return res, storageErr("statistics", err)
	}
	for _, m := range res.PagosPorMetodo {
		res.TotalPagado = res.TotalPagado.Add(m.Total)
	}

	res.TopAreas, err = s.repo.TopAreas(ctx, startDate, endDate, topAreasLimit)
	if err != nil {
		return res, storageErr("statistics", err)
	}
	return res, nil
}
