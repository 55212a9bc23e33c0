package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatisticsResponse aggregates requisition counts and amounts over a date range.
type StatisticsResponse struct {
	TotalRequisiciones int64           `json:"total_requisiciones"`
	PorEstado          []StatusCount   `json:"por_estado"`
	ValorPresupuestado decimal.Decimal `json:"valor_presupuestado"`
	ValorAprobado      decimal.Decimal `json:"valor_aprobado"`
	TotalPagado        decimal.Decimal `json:"total_pagado"`
	PagosPorMetodo     []MethodTotal   `json:"pagos_por_metodo"`
	TopAreas           []AreaRanking   `json:"top_areas"`
	TimeRangeStartDate time.Time       `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time       `json:"time_range_end_date"`
}

type StatusCount struct {
	Status Status `json:"status"`
	Label  string `json:"label" gorm:"-"`
	Count  int64  `json:"count"`
}

type MethodTotal struct {
	Method string          `json:"metodo"`
	Count  int64           `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// AreaRanking ranks requesting areas by approved value.
type AreaRanking struct {
	Area               string          `json:"area"`
	TotalRequisiciones int64           `json:"total_requisiciones"`
	ValorAprobado      decimal.Decimal `json:"valor_aprobado"`
}
