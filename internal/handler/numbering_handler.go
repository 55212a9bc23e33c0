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

type NumberingHandler struct {
	numberingService service.NumberingService
	loc              *time.Location
}

// NewNumberingHandler reads committee dates in loc, the school's timezone.
func NewNumberingHandler(numberingService service.NumberingService, loc *time.Location) *NumberingHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &NumberingHandler{numberingService: numberingService, loc: loc}
}

func (h *NumberingHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	group := router.Group("/api/numeracion")
	group.Use(auth)
	{
		group.GET("", h.Counters)
		group.GET("/comite", middleware.RequireRole(model.RoleAdmin, model.RoleRector, model.RoleVicerrector, model.RoleSindico), h.CommitteeNumber)
		group.POST("/inicializar", middleware.RequireRole(model.RoleAdmin), h.Initialize)
		group.POST("/comite/regenerar", middleware.RequireRole(model.RoleAdmin), h.RegenerateCommittees)
	}
}

// Counters
// @Summary      Get numbering counters
// @Tags         numeracion
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.CountersResponse}
// @Router       /api/numeracion [get]
func (h *NumberingHandler) Counters(c *gin.Context) {
	counters, err := h.numberingService.Counters(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, counters))
}

// CommitteeNumber returns the committee number of a calendar day, allocating it on first use
// @Summary      Committee number for a date
// @Tags         numeracion
// @Produce      json
// @Security     BearerAuth
// @Param        fecha  query     string  false  "Date as YYYY-MM-DD (default today)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      400    {object}  response.Response
// @Router       /api/numeracion/comite [get]
func (h *NumberingHandler) CommitteeNumber(c *gin.Context) {
	var date time.Time
	if raw := c.Query("fecha"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid fecha, expected YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	numero, err := h.numberingService.CommitteeNumberFor(c.Request.Context(), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]string{"numero_comite": numero}))
}

// Initialize seeds the counters from existing requisitions
// @Summary      Initialize numbering
// @Description  Assigns missing display numbers and committee numbers. Skipped when both counters are already set
// @Tags         numeracion
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.InitializeReport}
// @Router       /api/numeracion/inicializar [post]
func (h *NumberingHandler) Initialize(c *gin.Context) {
	report, err := h.numberingService.InitializeFromExisting(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// RegenerateCommittees
// @Summary      Regenerate committee numbers
// @Description  Clears the per-day allocations and renumbers approved requisitions in creation order
// @Tags         numeracion
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.CommitteeChange}
// @Router       /api/numeracion/comite/regenerar [post]
func (h *NumberingHandler) RegenerateCommittees(c *gin.Context) {
	changes, err := h.numberingService.RegenerateCommitteeNumbers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, changes))
}
