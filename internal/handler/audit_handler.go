package handler

import (
	"net/http"

	"requisiciones/internal/middleware"
	"requisiciones/internal/model"
	"requisiciones/internal/service"
	"requisiciones/pkg/pagination"
	"requisiciones/pkg/response"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	group := router.Group("/api/requisiciones/:id")
	group.Use(auth)
	{
		group.GET("/trazabilidad", h.ListEvents)
		group.GET("/trazabilidad/export", h.ExportTrace)
		group.GET("/soportes", h.ListSupports)
		group.POST("/soportes", h.AttachSupport)
		group.GET("/soportes/:supportId/contenido", h.SupportContent)
	}

	logs := router.Group("/api/auditoria")
	logs.Use(auth, middleware.RequireRole(model.RoleAdmin, model.RoleRector))
	{
		logs.GET("", h.GetAuditLogs)
	}
}

// ListEvents returns the trace history of one requisition, newest first
// @Summary      Get trace history
// @Tags         trazabilidad
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Requisition ID"
// @Success      200  {object}  response.Response{data=[]service.AuditEventResponse}
// @Router       /api/requisiciones/{id}/trazabilidad [get]
func (h *AuditHandler) ListEvents(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	events, err := h.auditService.ListEvents(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, events))
}

// ExportTrace downloads the trace history as a spreadsheet
// @Summary      Export trace history
// @Tags         trazabilidad
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        id   path  string  true  "Requisition ID"
// @Success      200  {file}  file
// @Failure      404  {object}  response.Response
// @Router       /api/requisiciones/{id}/trazabilidad/export [get]
func (h *AuditHandler) ExportTrace(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	content, filename, err := h.auditService.ExportTrace(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, content)
}

// ListSupports returns the supporting documents in upload order
// @Summary      List supports
// @Tags         soportes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Requisition ID"
// @Success      200  {object}  response.Response{data=[]service.SupportResponse}
// @Router       /api/requisiciones/{id}/soportes [get]
func (h *AuditHandler) ListSupports(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	supports, err := h.auditService.ListSupports(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, supports))
}

// AttachSupport uploads a document and records it in the trace history
// @Summary      Attach support
// @Description  Accepts PDF, JPEG, PNG, Word or Excel files up to 5 MB as base64 (data URLs allowed)
// @Tags         soportes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Requisition ID"
// @Param        payload  body      service.SupportUpload  true  "Document"
// @Success      201      {object}  response.Response{data=service.SupportResponse}
// @Failure      422      {object}  response.Response
// @Failure      502      {object}  response.Response
// @Router       /api/requisiciones/{id}/soportes [post]
func (h *AuditHandler) AttachSupport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req service.SupportUpload
	if !bindJSON(c, &req) {
		return
	}

	doc, err := h.auditService.AttachSupport(c.Request.Context(), id, req, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, doc))
}

// SupportContent streams the stored file
// @Summary      Download support
// @Tags         soportes
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        id         path  string  true  "Requisition ID"
// @Param        supportId  path  string  true  "Support ID"
// @Success      200  {file}  file
// @Failure      404  {object}  response.Response
// @Router       /api/requisiciones/{id}/soportes/{supportId}/contenido [get]
func (h *AuditHandler) SupportContent(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	supportID, ok := pathUUID(c, "supportId")
	if !ok {
		return
	}

	meta, data, err := h.auditService.SupportContent(c.Request.Context(), id, supportID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+meta.Filename+`"`)
	c.Data(http.StatusOK, meta.MimeType, data)
}

// GetAuditLogs lists every trace event across requisitions
// @Summary      Get audit logs
// @Tags         trazabilidad
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/auditoria [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.Page(logs, total, p.Page, p.Limit)))
}
