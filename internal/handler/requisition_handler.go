package handler

import (
	"net/http"

	"requisiciones/internal/service"
	"requisiciones/pkg/pagination"
	"requisiciones/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RequisitionHandler struct {
	requisitionService service.RequisitionService
}

func NewRequisitionHandler(requisitionService service.RequisitionService) *RequisitionHandler {
	return &RequisitionHandler{requisitionService: requisitionService}
}

// RegisterRoutes binds the lifecycle endpoints.
func (h *RequisitionHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	group := router.Group("/api/requisiciones")
	group.Use(auth)
	{
		group.POST("", h.Create)
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.PUT("/:id/aprobar", h.Approve)
		group.PUT("/:id/rechazar", h.Reject)
		group.POST("/:id/pagos", h.RegisterPayment)
		group.PUT("/:id/caja-menor", h.PassToPettyCash)
		group.POST("/:id/caja-menor/gastos", h.RegisterPettyCashExpense)
		group.PUT("/:id/inventario", h.SendToInventory)
		group.PUT("/:id/pendiente-entrega", h.MarkPendingDelivery)
		group.PUT("/:id/entregar", h.Deliver)
		group.POST("/:id/comentarios", h.Comment)
	}
}

// Create registers a new requisition or partida in PENDIENTE
// @Summary      Create requisition
// @Description  Creates a requisition (tipo REQUISICION) or unbudgeted item (tipo PARTIDA) and assigns its display number
// @Tags         requisiciones
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRequisitionRequest  true  "Requisition"
// @Success      201      {object}  response.Response{data=service.RequisitionResponse}
// @Failure      422      {object}  response.Response
// @Router       /api/requisiciones [post]
func (h *RequisitionHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.CreateRequisitionRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.requisitionService.Create(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// List returns requisitions newest first
// @Summary      List requisitions
// @Tags         requisiciones
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Status name or label"
// @Param        tipo    query     string  false  "REQUISICION or PARTIDA"
// @Param        area    query     string  false  "Requesting area"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Router       /api/requisiciones [get]
func (h *RequisitionHandler) List(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.requisitionService.List(c.Request.Context(), service.ListRequisitionsQuery{
		Status: c.Query("status"),
		Tipo:   c.Query("tipo"),
		Area:   c.Query("area"),
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.Page(items, total, p.Page, p.Limit)))
}

// Get returns one requisition with its payments
// @Summary      Get requisition
// @Tags         requisiciones
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Requisition ID"
// @Success      200  {object}  response.Response{data=service.RequisitionResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/requisiciones/{id} [get]
func (h *RequisitionHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.requisitionService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Approve records the committee approval
// @Summary      Approve requisition
// @Description  PENDIENTE -> APROBADA. Requires provider, defined value and VAT, committee number and at least one approver flag
// @Tags         requisiciones
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                             true  "Requisition ID"
// @Param        payload  body      service.ApproveRequisitionRequest  true  "Committee decision"
// @Success      200      {object}  response.Response{data=service.RequisitionResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/requisiciones/{id}/aprobar [put]
func (h *RequisitionHandler) Approve(c *gin.Context) {
	var req service.ApproveRequisitionRequest
	h.handleTransition(c, &req, func(actor service.Actor, id uuid.UUID) (service.RequisitionResponse, error) {
		return h.requisitionService.Approve(c.Request.Context(), actor, id, req)
	})
}

// Reject records the committee rejection
// @Summary      Reject requisition
// @Description  PENDIENTE -> RECHAZADA. The motive needs at least 10 characters
// @Tags         requisiciones
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                            true  "Requisition ID"
// @Param        payload  body      service.RejectRequisitionRequest  true  "Committee decision"
// @Success      200      {object}  response.Response{data=service.RequisitionResponse}
// @Failure      422      {object}  response.Response
// @Router       /api/requisiciones/{id}/rechazar [put]
func (h *RequisitionHandler) Reject(c *gin.Context) {
	var req service.RejectRequisitionRequest
	h.handleTransition(c, &req, func(actor service.Actor, id uuid.UUID) (service.RequisitionResponse, error) {
		return h.requisitionService.Reject(c.Request.Context(), actor, id, req)
	})
}

// RegisterPayment records a treasury or petty-cash payment
// @Summary      Register payment
// @Description  APROBADA -> PAGADO (tesoreria) or PASADA_A_CAJA_MENOR (caja_menor). The optional support is stored with the payment
// @Tags         pagos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                          true  "Requisition ID"
// @Param        payload  body      service.RegisterPaymentRequest  true  "Payment"
// @Success      200      {object}  response.Response{data=service.RequisitionResponse}
// @Failure      422      {object}  response.Response
// @Failure      502      {object}  response.Response
// @Router       /api/requisiciones/{id}/pagos [post]
func (h *RequisitionHandler) RegisterPayment(c *gin.Context) {
	var req service.RegisterPaymentRequest
	h.handleTransition(c, &req, func(actor service.Actor, id uuid.UUID) (service.RequisitionResponse, error) {
		return h.requisitionService.RegisterPayment(c.Request.Context(), actor, id, req)
	})
}

// PassToPettyCash routes an approved requisition to petty cash
// @Summary      Pass to petty cash
// @Tags         pagos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true   "Requisition ID"
// @Param        payload  body      service.StatusChangeRequest  false  "Reason"
// @Success      200      {object}  response.Response{data=service.RequisitionResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/requisiciones/{id}/caja-menor [put]
func (h *RequisitionHandler) PassToPettyCash(c *gin.Context) {
	var req service.StatusChangeRequest
	h.handleOptionalTransition(c, &req, func(actor service.Actor, id uuid.UUID) (service.RequisitionResponse, error) {
		return h.requisitionService.PassToPettyCash(c.Request.Context(), actor, id, req)
	})
}

// RegisterPettyCashExpense settles a requisition from petty cash
// @Summary      Register petty cash expense
// @Tags         pagos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                           true  "Requisition ID"
// @Param        payload  body      service.PettyCashExpenseRequest  true  "Expense"
// @Success      200      {object}  response.Response{data=service.RequisitionResponse}
// @Router       /api/requisiciones/{id}/caja-menor/gastos [post]
func (h *RequisitionHandler) RegisterPettyCashExpense(c *gin.Context) {
	var req service.PettyCashExpenseRequest
	h.handleTransition(c, &req, func(actor service.Actor, id uuid.UUID) (service.RequisitionResponse, error) {
		return h.requisitionService.RegisterPettyCashExpense(c.Request.Context(), actor, id, req)
	})
}

// SendToInventory moves the requisition to inventory receipt
// @Summary      Send to inventory
// @Tags         logistica
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true   "Requisition ID"
// @Param        payload  body      service.StatusChangeRequest  false  "Reason"
// @Success      200      {object}  response.Response{data=service.RequisitionResponse}
// @Router       /api/requisiciones/{id}/inventario [put]
func (h *RequisitionHandler) SendToInventory(c *gin.Context) {
	var req service.StatusChangeRequest
	h.handleOptionalTransition(c, &req, func(actor service.Actor, id uuid.UUID) (service.RequisitionResponse, error) {
		return h.requisitionService.SendToInventory(c.Request.Context(), actor, id, req)
	})
}

// MarkPendingDelivery
// @Summary      Mark pending delivery
// @Tags         logistica
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true   "Requisition ID"
// @Param        payload  body      service.StatusChangeRequest  false  "Reason"
// @Success      200      {object}  response.Response{data=service.RequisitionResponse}
// @Router       /api/requisiciones/{id}/pendiente-entrega [put]
func (h *RequisitionHandler) MarkPendingDelivery(c *gin.Context) {
	var req service.StatusChangeRequest
	h.handleOptionalTransition(c, &req, func(actor service.Actor, id uuid.UUID) (service.RequisitionResponse, error) {
		return h.requisitionService.MarkPendingDelivery(c.Request.Context(), actor, id, req)
	})
}

// Deliver
// @Summary      Deliver requisition
// @Tags         logistica
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Requisition ID"
// @Param        payload  body      service.DeliverRequest  true  "Receipt"
// @Success      200      {object}  response.Response{data=service.RequisitionResponse}
// @Router       /api/requisiciones/{id}/entregar [put]
func (h *RequisitionHandler) Deliver(c *gin.Context) {
	var req service.DeliverRequest
	h.handleTransition(c, &req, func(actor service.Actor, id uuid.UUID) (service.RequisitionResponse, error) {
		return h.requisitionService.Deliver(c.Request.Context(), actor, id, req)
	})
}

// Comment appends a comment to the trace history
// @Summary      Add comment
// @Tags         trazabilidad
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Requisition ID"
// @Param        payload  body      service.CommentRequest  true  "Comment (5+ characters)"
// @Success      201      {object}  response.Response{data=service.AuditEventResponse}
// @Failure      422      {object}  response.Response
// @Router       /api/requisiciones/{id}/comentarios [post]
func (h *RequisitionHandler) Comment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req service.CommentRequest
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.requisitionService.Comment(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, event))
}

type transitionFunc func(actor service.Actor, id uuid.UUID) (service.RequisitionResponse, error)

func (h *RequisitionHandler) handleTransition(c *gin.Context, req interface{}, fn transitionFunc) {
	h.runTransition(c, req, bindJSON, fn)
}

func (h *RequisitionHandler) handleOptionalTransition(c *gin.Context, req interface{}, fn transitionFunc) {
	h.runTransition(c, req, bindOptionalJSON, fn)
}

func (h *RequisitionHandler) runTransition(c *gin.Context, req interface{}, bind func(*gin.Context, interface{}) bool, fn transitionFunc) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !bind(c, req) {
		return
	}

	res, err := fn(actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
