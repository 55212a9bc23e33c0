package handler

import (
	"net/http"
	"time"

	"requisiciones/internal/middleware"
	"requisiciones/internal/model"
	"requisiciones/internal/service"
	"requisiciones/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	loc               *time.Location
	now               func() time.Time
}

func NewStatisticsHandler(statisticsService service.StatisticsService, loc *time.Location) *StatisticsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &StatisticsHandler{statisticsService: statisticsService, loc: loc, now: time.Now}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	statsGroup := router.Group("/api/estadisticas")
	statsGroup.Use(auth, middleware.RequireRole(
		model.RoleAdmin, model.RoleRector, model.RoleVicerrector, model.RoleSindico,
		model.RoleTesoreria, model.RoleContabilidad,
	))
	{
		statsGroup.GET("", h.GetStatistics)
	}
}

// parseDate accepts RFC3339 or a plain YYYY-MM-DD in the school timezone.
func (h *StatisticsHandler) parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", raw, h.loc)
}

// @Summary      Get dashboard statistics
// @Description  Requisition counts per status, budgeted and approved values, payments per method and top areas. Defaults to the current month
// @Tags         estadisticas
// @Produce      json
// @Param        start_date query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param        end_date   query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success      200 {object} response.Response{data=model.StatisticsResponse}
// @Failure      400 {object} response.Response "Invalid date format"
// @Failure      422 {object} response.Response
// @Security     BearerAuth
// @Router       /api/estadisticas [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	now := h.now().In(h.loc)
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, h.loc)
	endDate := now

	if raw := c.Query("start_date"); raw != "" {
		t, err := h.parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid start_date format, expected RFC3339 or YYYY-MM-DD"))
			return
		}
		startDate = t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := h.parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid end_date format, expected RFC3339 or YYYY-MM-DD"))
			return
		}
		if len(raw) == len("2006-01-02") {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond) // whole day
		}
		endDate = t
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), startDate, endDate)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
