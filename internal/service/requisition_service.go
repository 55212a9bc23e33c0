package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"requisiciones/internal/metrics"
	"requisiciones/internal/model"
	"requisiciones/internal/repository"
	"requisiciones/pkg/pagination"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateRequisitionRequest struct {
	Kind               model.Kind      `json:"tipo" validate:"required,oneof=REQUISICION PARTIDA"`
	Area               string          `json:"area" validate:"required,max=120"`
	Solicitante        string          `json:"solicitante" validate:"required,max=255"`
	ProveedorID        *int64          `json:"proveedor_id" validate:"omitempty,gt=0"`
	Cuenta             string          `json:"cuenta" validate:"max=120"`
	Concepto           string          `json:"concepto" validate:"max=255"`
	Producto           string          `json:"producto" validate:"required,max=255"`
	Cantidad           int             `json:"cantidad" validate:"gt=0"`
	ValorUnitario      decimal.Decimal `json:"valor_unitario" validate:"gte=0"`
	ValorPresupuestado decimal.Decimal `json:"valor_presupuestado" validate:"gte=0"`
	IVA                decimal.Decimal `json:"iva" validate:"gte=0"`
	Justificacion      string          `json:"justificacion" validate:"required"`
}

type ApproveRequisitionRequest struct {
	ProveedorID    *int64           `json:"proveedor_id" validate:"required,gt=0"`
	ValorDefinido  *decimal.Decimal `json:"valor_definido"`
	IVADefinido    *decimal.Decimal `json:"iva_definido"`
	NumeroComite   string           `json:"numero_comite" validate:"required,max=20"`
	Rector         bool             `json:"rector"`
	Vicerrector    bool             `json:"vicerrector"`
	Sindico        bool             `json:"sindico"`
	Garantia       bool             `json:"garantia"`
	TiempoGarantia string           `json:"tiempo_garantia" validate:"max=80"`
}

type RejectRequisitionRequest struct {
	NumeroComite  string `json:"numero_comite" validate:"required,max=20"`
	Rector        bool   `json:"rector"`
	Vicerrector   bool   `json:"vicerrector"`
	Sindico       bool   `json:"sindico"`
	MotivoRechazo string `json:"motivo_rechazo"`
}

type RegisterPaymentRequest struct {
	Monto    decimal.Decimal `json:"monto" validate:"gt=0"`
	Metodo   string          `json:"metodo" validate:"required"`
	Concepto string          `json:"concepto" validate:"max=255"`
	Soporte  *SupportUpload  `json:"soporte"`
}

type PettyCashExpenseRequest struct {
	Monto    decimal.Decimal `json:"monto" validate:"gt=0"`
	Concepto string          `json:"concepto" validate:"required,max=255"`
	Soporte  *SupportUpload  `json:"soporte"`
}

type StatusChangeRequest struct {
	Motivo string `json:"motivo" validate:"max=500"`
}

type DeliverRequest struct {
	RecibidoPor   string `json:"recibido_por" validate:"required,max=255"`
	Observaciones string `json:"observaciones"`
}

type CommentRequest struct {
	Comentario string `json:"comentario"`
}

type ListRequisitionsQuery struct {
	Status string
	Tipo   string
	Area   string
	Page   int
	Limit  int
}

type PaymentResponse struct {
	ID        string  `json:"id"`
	Monto     string  `json:"monto"`
	Metodo    string  `json:"metodo"`
	Concepto  string  `json:"concepto,omitempty"`
	SoporteID *string `json:"soporte_id,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type RequisitionResponse struct {
	ID                 string            `json:"id"`
	Tipo               model.Kind        `json:"tipo"`
	Numero             string            `json:"numero"`
	Area               string            `json:"area"`
	Solicitante        string            `json:"solicitante"`
	ProveedorID        *int64            `json:"proveedor_id"`
	Cuenta             string            `json:"cuenta"`
	Concepto           string            `json:"concepto"`
	Producto           string            `json:"producto"`
	Cantidad           int               `json:"cantidad"`
	ValorUnitario      string            `json:"valor_unitario"`
	ValorPresupuestado string            `json:"valor_presupuestado"`
	IVA                string            `json:"iva"`
	Justificacion      string            `json:"justificacion"`
	Status             model.Status      `json:"status"`
	StatusLabel        string            `json:"status_label"`
	SiguientesEstados  []model.Status    `json:"siguientes_estados"`
	NumeroComite       string            `json:"numero_comite,omitempty"`
	FechaAprobacion    *string           `json:"fecha_aprobacion,omitempty"`
	Rector             bool              `json:"rector"`
	Vicerrector        bool              `json:"vicerrector"`
	Sindico            bool              `json:"sindico"`
	ValorDefinido      *string           `json:"valor_definido,omitempty"`
	IVADefinido        *string           `json:"iva_definido,omitempty"`
	Garantia           bool              `json:"garantia"`
	TiempoGarantia     string            `json:"tiempo_garantia,omitempty"`
	MotivoRechazo      string            `json:"motivo_rechazo,omitempty"`
	Pagos              []PaymentResponse `json:"pagos,omitempty"`
	CreatedAt          string            `json:"created_at"`
	UpdatedAt          string            `json:"updated_at"`
}

// Notifier pushes lifecycle changes to connected clients.
type Notifier interface {
	Publish(topic string, payload interface{})
}

// StatusChangedNotification is published after every committed transition.
type StatusChangedNotification struct {
	RequisitionID string       `json:"requisition_id"`
	Numero        string       `json:"numero"`
	From          model.Status `json:"from"`
	To            model.Status `json:"to"`
	Actor         string       `json:"actor"`
	At            string       `json:"at"`
}

const TopicStatusChanged = "requisicion.estado"

// --- Interface ---

type RequisitionService interface {
	Create(ctx context.Context, actor Actor, req CreateRequisitionRequest) (RequisitionResponse, error)
	Approve(ctx context.Context, actor Actor, id uuid.UUID, req ApproveRequisitionRequest) (RequisitionResponse, error)
	Reject(ctx context.Context, actor Actor, id uuid.UUID, req RejectRequisitionRequest) (RequisitionResponse, error)
	RegisterPayment(ctx context.Context, actor Actor, id uuid.UUID, req RegisterPaymentRequest) (RequisitionResponse, error)
	PassToPettyCash(ctx context.Context, actor Actor, id uuid.UUID, req StatusChangeRequest) (RequisitionResponse, error)
	RegisterPettyCashExpense(ctx context.Context, actor Actor, id uuid.UUID, req PettyCashExpenseRequest) (RequisitionResponse, error)
	SendToInventory(ctx context.Context, actor Actor, id uuid.UUID, req StatusChangeRequest) (RequisitionResponse, error)
	MarkPendingDelivery(ctx context.Context, actor Actor, id uuid.UUID, req StatusChangeRequest) (RequisitionResponse, error)
	Deliver(ctx context.Context, actor Actor, id uuid.UUID, req DeliverRequest) (RequisitionResponse, error)
	Comment(ctx context.Context, actor Actor, id uuid.UUID, req CommentRequest) (AuditEventResponse, error)
	Get(ctx context.Context, id uuid.UUID) (RequisitionResponse, error)
	List(ctx context.Context, q ListRequisitionsQuery) ([]RequisitionResponse, int64, error)
}

type requisitionService struct {
	reqRepo     repository.RequisitionRepository
	paymentRepo repository.PaymentRepository
	txManager   repository.TransactionManager
	numbering   NumberingService
	audit       AuditService
	notifier    Notifier
	now         func() time.Time
}

func NewRequisitionService(
	reqRepo repository.RequisitionRepository,
	paymentRepo repository.PaymentRepository,
	txManager repository.TransactionManager,
	numbering NumberingService,
	audit AuditService,
	notifier Notifier,
) RequisitionService {
	return &requisitionService{
		reqRepo:     reqRepo,
		paymentRepo: paymentRepo,
		txManager:   txManager,
		numbering:   numbering,
		audit:       audit,
		notifier:    notifier,
		now:         time.Now,
	}
}

// --- Implementation ---

func (s *requisitionService) Create(ctx context.Context, actor Actor, in CreateRequisitionRequest) (RequisitionResponse, error) {
	in.Kind = model.Kind(strings.ToUpper(strings.TrimSpace(string(in.Kind))))
	errs := fieldErrors{}
	checkStruct(in, errs)
	if err := errs.err(); err != nil {
		return RequisitionResponse{}, err
	}

	req := model.Requisition{
		Kind:               in.Kind,
		Area:               strings.TrimSpace(in.Area),
		Solicitante:        strings.TrimSpace(in.Solicitante),
		ProveedorID:        in.ProveedorID,
		Cuenta:             in.Cuenta,
		Concepto:           in.Concepto,
		Producto:           in.Producto,
		Cantidad:           in.Cantidad,
		ValorUnitario:      in.ValorUnitario,
		ValorPresupuestado: in.ValorPresupuestado,
		IVA:                in.IVA,
		Justificacion:      in.Justificacion,
		Status:             model.StatusPendiente,
		CreatedBy:          actor.idPtr(),
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		numero, err := s.numbering.NextNumber(txCtx, req.Kind)
		if err != nil {
			return err
		}
		req.Numero = numero
		req.ID, err = uuid.NewV7()
		if err != nil {
			return fmt.Errorf("requisition id: %w", err)
		}
		if err := s.reqRepo.Create(txCtx, &req); err != nil {
			return fmt.Errorf("create requisition: %w", err)
		}

		status := model.StatusPendiente
		_, err = s.audit.RecordEvent(txCtx, EventInput{
			RequisitionID: req.ID,
			Actor:         actor,
			NewStatus:     &status,
			Description:   fmt.Sprintf("%s creada por %s", req.Numero, actor.displayName()),
			Detail:        model.CreationDetail{Numero: req.Numero, Kind: req.Kind},
		})
		return err
	})
	if err != nil {
		return RequisitionResponse{}, err
	}

	log.Info().Str("id", req.ID.String()).Str("numero", req.Numero).Str("area", req.Area).Msg("requisition created")
	return toRequisitionResponse(&req, nil), nil
}

func (s *requisitionService) Approve(ctx context.Context, actor Actor, id uuid.UUID, in ApproveRequisitionRequest) (RequisitionResponse, error) {
	in.NumeroComite = strings.TrimSpace(in.NumeroComite)
	errs := fieldErrors{}
	checkStruct(in, errs)
	switch {
	case in.ValorDefinido == nil:
		errs.add("valor_definido", tagMessages["required"])
	case !in.ValorDefinido.IsPositive():
		errs.add("valor_definido", tagMessages["gt"])
	}
	switch {
	case in.IVADefinido == nil:
		errs.add("iva_definido", tagMessages["required"])
	case in.IVADefinido.IsNegative():
		errs.add("iva_definido", tagMessages["gte"])
	}
	requireApprover(errs, in.Rector, in.Vicerrector, in.Sindico)
	if in.Garantia && strings.TrimSpace(in.TiempoGarantia) == "" {
		errs.add("tiempo_garantia", "es obligatorio cuando hay garantía")
	}
	if err := errs.err(); err != nil {
		return RequisitionResponse{}, err
	}

	return s.transition(ctx, actor, id, model.StatusAprobada, func(txCtx context.Context, req *model.Requisition) (EventInput, error) {
		approvedAt := s.now()
		numero, err := s.numbering.ClaimCommitteeNumber(txCtx, approvedAt, in.NumeroComite)
		if err != nil {
			return EventInput{}, err
		}
		if numero != in.NumeroComite {
			log.Warn().
				Str("requested", in.NumeroComite).
				Str("assigned", numero).
				Msg("committee number of the day already allocated; reusing it")
		}

		valor, iva := *in.ValorDefinido, *in.IVADefinido
		req.ProveedorID = in.ProveedorID
		req.ValorDefinido = &valor
		req.IVADefinido = &iva
		req.NumeroComite = numero
		req.FechaAprobacion = &approvedAt
		req.Rector, req.Vicerrector, req.Sindico = in.Rector, in.Vicerrector, in.Sindico
		req.Garantia = in.Garantia
		req.TiempoGarantia = ""
		if in.Garantia {
			req.TiempoGarantia = strings.TrimSpace(in.TiempoGarantia)
		}

		return EventInput{
			Description: fmt.Sprintf("Aprobada en comité %s", numero),
			Detail: model.ApprovalDetail{
				NumeroComite:   numero,
				ProveedorID:    *in.ProveedorID,
				ValorDefinido:  valor,
				IVADefinido:    iva,
				Aprobadores:    req.Approvers(),
				TiempoGarantia: req.TiempoGarantia,
			},
		}, nil
	}, nil)
}

func (s *requisitionService) Reject(ctx context.Context, actor Actor, id uuid.UUID, in RejectRequisitionRequest) (RequisitionResponse, error) {
	in.NumeroComite = strings.TrimSpace(in.NumeroComite)
	errs := fieldErrors{}
	checkStruct(in, errs)
	requireApprover(errs, in.Rector, in.Vicerrector, in.Sindico)
	minRunes(errs, "motivo_rechazo", in.MotivoRechazo, 10)
	if err := errs.err(); err != nil {
		return RequisitionResponse{}, err
	}

	return s.transition(ctx, actor, id, model.StatusRechazada, func(_ context.Context, req *model.Requisition) (EventInput, error) {
		motivo := strings.TrimSpace(in.MotivoRechazo)
		req.NumeroComite = in.NumeroComite
		req.Rector, req.Vicerrector, req.Sindico = in.Rector, in.Vicerrector, in.Sindico
		req.MotivoRechazo = motivo

		return EventInput{
			Description: "Rechazada: " + motivo,
			Detail: model.RejectionDetail{
				NumeroComite: in.NumeroComite,
				Motivo:       motivo,
				Aprobadores:  req.Approvers(),
			},
		}, nil
	}, nil)
}

// RegisterPayment records a payment; treasury payments move to PAGADO and
// petty-cash ones to PASADA_A_CAJA_MENOR.
func (s *requisitionService) RegisterPayment(ctx context.Context, actor Actor, id uuid.UUID, in RegisterPaymentRequest) (RequisitionResponse, error) {
	in.Metodo = normalizePaymentMethod(in.Metodo)
	errs := fieldErrors{}
	checkStruct(in, errs)
	if in.Metodo != "" && in.Metodo != model.PaymentTesoreria && in.Metodo != model.PaymentCajaMenor {
		errs.add("metodo", "debe ser tesoreria o caja_menor")
	}
	if err := errs.err(); err != nil {
		return RequisitionResponse{}, err
	}

	to := model.StatusPagado
	if in.Metodo == model.PaymentCajaMenor {
		to = model.StatusPasadaACajaMenor
	}
	return s.pay(ctx, actor, id, to, in.Monto, in.Metodo, in.Concepto, in.Soporte)
}

func (s *requisitionService) RegisterPettyCashExpense(ctx context.Context, actor Actor, id uuid.UUID, in PettyCashExpenseRequest) (RequisitionResponse, error) {
	errs := fieldErrors{}
	checkStruct(in, errs)
	if err := errs.err(); err != nil {
		return RequisitionResponse{}, err
	}
	return s.pay(ctx, actor, id, model.StatusPagadoPorCajaMenor, in.Monto, model.PaymentCajaMenor, strings.TrimSpace(in.Concepto), in.Soporte)
}

func (s *requisitionService) pay(ctx context.Context, actor Actor, id uuid.UUID, to model.Status, monto decimal.Decimal, metodo, concepto string, upload *SupportUpload) (RequisitionResponse, error) {
	var prepared *PreparedSupport
	if upload != nil {
		p, err := s.audit.PrepareSupport(ctx, id, *upload)
		if err != nil {
			return RequisitionResponse{}, err
		}
		prepared = p
	}

	return s.transition(ctx, actor, id, to, func(txCtx context.Context, req *model.Requisition) (EventInput, error) {
		paymentID, err := uuid.NewV7()
		if err != nil {
			return EventInput{}, fmt.Errorf("payment id: %w", err)
		}
		payment := model.Payment{
			ID:            paymentID,
			RequisitionID: req.ID,
			RegisteredBy:  actor.ID,
			Amount:        monto,
			Method:        metodo,
			Concepto:      concepto,
			CreatedAt:     s.now().UTC(),
		}

		var supportID *uuid.UUID
		if prepared != nil {
			doc, err := s.audit.StoreSupport(txCtx, prepared, actor)
			if err != nil {
				return EventInput{}, err
			}
			supportID = &doc.ID
			payment.SupportID = supportID
		}
		if err := s.paymentRepo.Create(txCtx, &payment); err != nil {
			return EventInput{}, fmt.Errorf("create payment: %w", err)
		}

		return EventInput{
			Description: fmt.Sprintf("Pago de %s por %s", monto.StringFixed(2), paymentMethodLabel(metodo)),
			SupportID:   supportID,
			Detail: model.PaymentDetail{
				PaymentID: payment.ID,
				Monto:     monto,
				Metodo:    metodo,
				Concepto:  concepto,
			},
		}, nil
	}, func() {
		s.audit.DiscardSupport(ctx, prepared)
	})
}

// PassToPettyCash routes an approved requisition to petty cash without money
// changing hands yet.
func (s *requisitionService) PassToPettyCash(ctx context.Context, actor Actor, id uuid.UUID, in StatusChangeRequest) (RequisitionResponse, error) {
	return s.simpleTransition(ctx, actor, id, model.StatusPasadaACajaMenor, in)
}

func (s *requisitionService) SendToInventory(ctx context.Context, actor Actor, id uuid.UUID, in StatusChangeRequest) (RequisitionResponse, error) {
	return s.simpleTransition(ctx, actor, id, model.StatusPendienteInventario, in)
}

func (s *requisitionService) MarkPendingDelivery(ctx context.Context, actor Actor, id uuid.UUID, in StatusChangeRequest) (RequisitionResponse, error) {
	return s.simpleTransition(ctx, actor, id, model.StatusPendienteEntrega, in)
}

func (s *requisitionService) simpleTransition(ctx context.Context, actor Actor, id uuid.UUID, to model.Status, in StatusChangeRequest) (RequisitionResponse, error) {
	errs := fieldErrors{}
	checkStruct(in, errs)
	if err := errs.err(); err != nil {
		return RequisitionResponse{}, err
	}

	reason := strings.TrimSpace(in.Motivo)
	return s.transition(ctx, actor, id, to, func(_ context.Context, req *model.Requisition) (EventInput, error) {
		desc := "Estado cambiado a " + to.Label()
		if reason != "" {
			desc += ": " + reason
		}
		return EventInput{
			Description: desc,
			Detail:      model.StatusChangeDetail{NewStatus: to, Reason: reason},
		}, nil
	}, nil)
}

func (s *requisitionService) Deliver(ctx context.Context, actor Actor, id uuid.UUID, in DeliverRequest) (RequisitionResponse, error) {
	errs := fieldErrors{}
	checkStruct(in, errs)
	if err := errs.err(); err != nil {
		return RequisitionResponse{}, err
	}

	return s.transition(ctx, actor, id, model.StatusEntregada, func(_ context.Context, req *model.Requisition) (EventInput, error) {
		recibido := strings.TrimSpace(in.RecibidoPor)
		return EventInput{
			Description: "Entregada a " + recibido,
			Detail: model.DeliveryDetail{
				RecibidoPor:   recibido,
				Observaciones: strings.TrimSpace(in.Observaciones),
			},
		}, nil
	}, nil)
}

// Comment appends a note to the trail without touching the status.
func (s *requisitionService) Comment(ctx context.Context, actor Actor, id uuid.UUID, in CommentRequest) (AuditEventResponse, error) {
	errs := fieldErrors{}
	minRunes(errs, "comentario", in.Comentario, 5)
	if err := errs.err(); err != nil {
		return AuditEventResponse{}, err
	}

	comentario := strings.TrimSpace(in.Comentario)
	var event model.AuditEvent
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.reqRepo.FindByID(txCtx, id); err != nil {
			return notFoundOr(err, "load requisition")
		}
		recorded, err := s.audit.RecordEvent(txCtx, EventInput{
			RequisitionID: id,
			Actor:         actor,
			Description:   comentario,
			Detail:        model.CommentDetail{Comentario: comentario},
		})
		event = recorded
		return err
	})
	if err != nil {
		return AuditEventResponse{}, err
	}
	return toAuditEventResponse(event), nil
}

func (s *requisitionService) Get(ctx context.Context, id uuid.UUID) (RequisitionResponse, error) {
	req, err := s.reqRepo.FindByID(ctx, id)
	if err != nil {
		return RequisitionResponse{}, notFoundOr(err, "find requisition")
	}
	payments, err := s.paymentRepo.ListByRequisition(ctx, id)
	if err != nil {
		return RequisitionResponse{}, fmt.Errorf("list payments: %w", err)
	}
	return toRequisitionResponse(req, payments), nil
}

func (s *requisitionService) List(ctx context.Context, q ListRequisitionsQuery) ([]RequisitionResponse, int64, error) {
	p := pagination.Normalize(q.Page, q.Limit)
	filter := repository.RequisitionFilter{
		Area:  strings.TrimSpace(q.Area),
		Page:  p.Page,
		Limit: p.Limit,
	}

	errs := fieldErrors{}
	if q.Status != "" {
		st, err := model.ParseStatus(q.Status)
		if err != nil {
			errs.add("status", "estado desconocido")
		}
		filter.Status = st
	}
	if q.Tipo != "" {
		kind := model.Kind(strings.ToUpper(strings.TrimSpace(q.Tipo)))
		if !kind.Valid() {
			errs.add("tipo", tagMessages["oneof"])
		}
		filter.Kind = kind
	}
	if err := errs.err(); err != nil {
		return nil, 0, err
	}

	reqs, total, err := s.reqRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list requisitions: %w", err)
	}
	res := make([]RequisitionResponse, 0, len(reqs))
	for i := range reqs {
		res = append(res, toRequisitionResponse(&reqs[i], nil))
	}
	return res, total, nil
}

type transitionStep func(txCtx context.Context, req *model.Requisition) (EventInput, error)

// transition locks the requisition, checks the edge and the actor's role, lets
// step fill in the accompanying data and appends the event, all in one
// transaction. onFail runs when nothing was committed.
func (s *requisitionService) transition(ctx context.Context, actor Actor, id uuid.UUID, to model.Status, step transitionStep, onFail func()) (RequisitionResponse, error) {
	var (
		updated model.Requisition
		from    model.Status
	)
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.reqRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFoundOr(err, "load requisition")
		}
		from = req.Status
		if !from.CanMoveTo(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		if !model.CanTransition(actor.Role, from, to) {
			return fmt.Errorf("%w: %q cannot move %s -> %s", ErrForbidden, actor.Role, from, to)
		}

		req.Status = to
		event, err := step(txCtx, req)
		if err != nil {
			return err
		}
		if err := s.reqRepo.Update(txCtx, req); err != nil {
			return fmt.Errorf("update requisition: %w", err)
		}

		prev, next := from, to
		event.RequisitionID = req.ID
		event.Actor = actor
		event.PreviousStatus = &prev
		event.NewStatus = &next
		if d, ok := event.Detail.(model.StatusChangeDetail); ok {
			d.PreviousStatus = prev
			event.Detail = d
		}
		if _, err := s.audit.RecordEvent(txCtx, event); err != nil {
			return err
		}
		updated = *req
		return nil
	})
	if err != nil {
		if onFail != nil {
			onFail()
		}
		switch {
		case errors.Is(err, ErrInvalidTransition):
			metrics.Rejected("invalid_transition")
		case errors.Is(err, ErrForbidden):
			metrics.Rejected("forbidden")
		}
		return RequisitionResponse{}, err
	}

	metrics.Transition(string(from), string(to))
	log.Info().
		Str("id", updated.ID.String()).
		Str("numero", updated.Numero).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor", actor.displayName()).
		Msg("requisition status changed")

	if s.notifier != nil {
		s.notifier.Publish(TopicStatusChanged, StatusChangedNotification{
			RequisitionID: updated.ID.String(),
			Numero:        updated.Numero,
			From:          from,
			To:            to,
			Actor:         actor.displayName(),
			At:            s.now().UTC().Format(time.RFC3339),
		})
	}
	return toRequisitionResponse(&updated, nil), nil
}

func normalizePaymentMethod(raw string) string {
	m := strings.ToLower(strings.TrimSpace(raw))
	m = strings.NewReplacer(" ", "_", "-", "_", "é", "e").Replace(m)
	if m == "cajamenor" {
		m = model.PaymentCajaMenor
	}
	return m
}

func paymentMethodLabel(m string) string {
	if m == model.PaymentCajaMenor {
		return "caja menor"
	}
	return "tesorería"
}

func decimalPtrString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func toRequisitionResponse(r *model.Requisition, payments []model.Payment) RequisitionResponse {
	res := RequisitionResponse{
		ID:                 r.ID.String(),
		Tipo:               r.Kind,
		Numero:             r.Numero,
		Area:               r.Area,
		Solicitante:        r.Solicitante,
		ProveedorID:        r.ProveedorID,
		Cuenta:             r.Cuenta,
		Concepto:           r.Concepto,
		Producto:           r.Producto,
		Cantidad:           r.Cantidad,
		ValorUnitario:      r.ValorUnitario.StringFixed(2),
		ValorPresupuestado: r.ValorPresupuestado.StringFixed(2),
		IVA:                r.IVA.StringFixed(2),
		Justificacion:      r.Justificacion,
		Status:             r.Status,
		StatusLabel:        r.Status.Label(),
		SiguientesEstados:  r.Status.NextStatuses(),
		NumeroComite:       r.NumeroComite,
		Rector:             r.Rector,
		Vicerrector:        r.Vicerrector,
		Sindico:            r.Sindico,
		ValorDefinido:      decimalPtrString(r.ValorDefinido),
		IVADefinido:        decimalPtrString(r.IVADefinido),
		Garantia:           r.Garantia,
		TiempoGarantia:     r.TiempoGarantia,
		MotivoRechazo:      r.MotivoRechazo,
		CreatedAt:          r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          r.UpdatedAt.Format(time.RFC3339),
	}
	if r.FechaAprobacion != nil {
		f := r.FechaAprobacion.Format(time.RFC3339)
		res.FechaAprobacion = &f
	}
	for _, p := range payments {
		pr := PaymentResponse{
			ID:        p.ID.String(),
			Monto:     p.Amount.StringFixed(2),
			Metodo:    p.Method,
			Concepto:  p.Concepto,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		}
		if p.SupportID != nil {
			sid := p.SupportID.String()
			pr.SoporteID = &sid
		}
		res.Pagos = append(res.Pagos, pr)
	}
	return res
}
