package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"requisiciones/internal/metrics"
	"requisiciones/internal/model"
	"requisiciones/internal/report"
	"requisiciones/internal/repository"
	"requisiciones/internal/storage"
	"requisiciones/pkg/pagination"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// --- DTOs ---

// SupportUpload is a file sent as base64 inside a JSON body.
type SupportUpload struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	MimeType    string `json:"mime_type" validate:"required"`
	Content     string `json:"content" validate:"required"`
	Description string `json:"description" validate:"max=500"`
}

type SupportResponse struct {
	ID            string `json:"id"`
	RequisitionID string `json:"requisition_id"`
	Version       int    `json:"version"`
	Filename      string `json:"filename"`
	MimeType      string `json:"mime_type"`
	SizeBytes     int64  `json:"size_bytes"`
	UploadedAt    string `json:"uploaded_at"`
	UploadedBy    string `json:"uploaded_by"`
	Description   string `json:"description,omitempty"`
}

type AuditEventResponse struct {
	ID             string          `json:"id"`
	RequisitionID  string          `json:"requisition_id"`
	Timestamp      string          `json:"timestamp"`
	Actor          string          `json:"actor"`
	EventType      model.EventType `json:"event_type"`
	PreviousStatus *model.Status   `json:"previous_status,omitempty"`
	NewStatus      *model.Status   `json:"new_status,omitempty"`
	Description    string          `json:"description"`
	SupportID      *string         `json:"support_id,omitempty"`
	Details        json.RawMessage `json:"details"`
}

// EventInput is what callers supply; id, timestamp and event type are derived.
type EventInput struct {
	RequisitionID  uuid.UUID
	Actor          Actor
	PreviousStatus *model.Status
	NewStatus      *model.Status
	Description    string
	SupportID      *uuid.UUID
	Detail         model.EventDetail
}

// PreparedSupport is a validated upload whose content is already in the blob
// store (when one is configured) but has no database row yet.
type PreparedSupport struct {
	requisitionID uuid.UUID
	filename      string
	mimeType      string
	description   string
	data          []byte
	storageKey    string
}

// --- Interface ---

type AuditService interface {
	RecordEvent(ctx context.Context, in EventInput) (model.AuditEvent, error)
	AttachSupport(ctx context.Context, requisitionID uuid.UUID, upload SupportUpload, actor Actor) (SupportResponse, error)
	PrepareSupport(ctx context.Context, requisitionID uuid.UUID, upload SupportUpload) (*PreparedSupport, error)
	StoreSupport(txCtx context.Context, p *PreparedSupport, actor Actor) (model.SupportDocument, error)
	DiscardSupport(ctx context.Context, p *PreparedSupport)
	ListEvents(ctx context.Context, requisitionID uuid.UUID) ([]AuditEventResponse, error)
	ListSupports(ctx context.Context, requisitionID uuid.UUID) ([]SupportResponse, error)
	SupportContent(ctx context.Context, requisitionID, supportID uuid.UUID) (SupportResponse, []byte, error)
	ExportTrace(ctx context.Context, requisitionID uuid.UUID) ([]byte, string, error)
	GetAuditLogs(ctx context.Context, page, limit int) ([]AuditEventResponse, int64, error)
}

type auditService struct {
	auditRepo   repository.AuditRepository
	supportRepo repository.SupportRepository
	reqRepo     repository.RequisitionRepository
	txManager   repository.TransactionManager
	blobs       storage.BlobStore // nil keeps content in the database
	now         func() time.Time
}

// NewAuditService creates a new AuditService instance
func NewAuditService(
	auditRepo repository.AuditRepository,
	supportRepo repository.SupportRepository,
	reqRepo repository.RequisitionRepository,
	txManager repository.TransactionManager,
	blobs storage.BlobStore,
) AuditService {
	return &auditService{
		auditRepo:   auditRepo,
		supportRepo: supportRepo,
		reqRepo:     reqRepo,
		txManager:   txManager,
		blobs:       blobs,
		now:         time.Now,
	}
}

// --- Implementation ---

// RecordEvent appends one immutable event. It joins the transaction carried by ctx.
func (s *auditService) RecordEvent(ctx context.Context, in EventInput) (model.AuditEvent, error) {
	if in.Detail == nil {
		return model.AuditEvent{}, fmt.Errorf("audit event for %s has no detail", in.RequisitionID)
	}
	details, err := model.EncodeDetail(in.Detail)
	if err != nil {
		return model.AuditEvent{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return model.AuditEvent{}, fmt.Errorf("event id: %w", err)
	}

	event := model.AuditEvent{
		ID:             id,
		RequisitionID:  in.RequisitionID,
		Timestamp:      s.now().UTC(),
		ActorID:        in.Actor.idPtr(),
		Actor:          in.Actor.displayName(),
		EventType:      in.Detail.EventType(),
		PreviousStatus: in.PreviousStatus,
		NewStatus:      in.NewStatus,
		Description:    in.Description,
		SupportID:      in.SupportID,
		Details:        details,
	}
	if err := s.auditRepo.Append(ctx, &event); err != nil {
		return model.AuditEvent{}, storageErr("append audit event", err)
	}
	return event, nil
}

// AttachSupport stores a new document version and its SOPORTE_AGREGADO event
// in one transaction.
func (s *auditService) AttachSupport(ctx context.Context, requisitionID uuid.UUID, upload SupportUpload, actor Actor) (SupportResponse, error) {
	prepared, err := s.PrepareSupport(ctx, requisitionID, upload)
	if err != nil {
		return SupportResponse{}, err
	}

	var doc model.SupportDocument
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.reqRepo.FindByIDForUpdate(txCtx, requisitionID); err != nil {
			return notFoundOr(err, "lock requisition")
		}
		stored, err := s.StoreSupport(txCtx, prepared, actor)
		if err != nil {
			return err
		}
		doc = stored
		return nil
	})
	if err != nil {
		s.DiscardSupport(ctx, prepared)
		return SupportResponse{}, err
	}

	metrics.SupportAttached()
	return toSupportResponse(doc), nil
}

// PrepareSupport validates the upload and, with a blob store configured, puts
// the content there. Call DiscardSupport if the enclosing transaction fails.
func (s *auditService) PrepareSupport(ctx context.Context, requisitionID uuid.UUID, upload SupportUpload) (*PreparedSupport, error) {
	errs := fieldErrors{}
	checkStruct(upload, errs)

	mimeType := strings.ToLower(strings.TrimSpace(upload.MimeType))
	ext, allowed := model.AllowedSupportTypes[mimeType]
	if upload.MimeType != "" && !allowed {
		errs.add("mime_type", "tipo de archivo no permitido (PDF, JPG, PNG, DOC, DOCX, XLS, XLSX)")
	}

	var data []byte
	if upload.Content != "" {
		decoded, err := decodeContent(upload.Content)
		switch {
		case err != nil:
			errs.add("content", "no es base64 válido")
		case len(decoded) == 0:
			errs.add("content", "el archivo está vacío")
		case len(decoded) > model.MaxSupportBytes:
			errs.add("content", "el archivo supera el máximo de 5 MB")
		default:
			data = decoded
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	p := &PreparedSupport{
		requisitionID: requisitionID,
		filename:      strings.TrimSpace(upload.Filename),
		mimeType:      mimeType,
		description:   strings.TrimSpace(upload.Description),
		data:          data,
	}
	if s.blobs != nil {
		p.storageKey = fmt.Sprintf("soportes/%s/%s%s", requisitionID, uuid.NewString(), ext)
		if err := s.blobs.Put(ctx, p.storageKey, data, mimeType); err != nil {
			return nil, &RemoteError{Service: "object storage", Err: err}
		}
	}
	return p, nil
}

// StoreSupport inserts the document row at the next version and records its
// event. It must run inside a transaction.
func (s *auditService) StoreSupport(txCtx context.Context, p *PreparedSupport, actor Actor) (model.SupportDocument, error) {
	count, err := s.supportRepo.CountByRequisition(txCtx, p.requisitionID)
	if err != nil {
		return model.SupportDocument{}, storageErr("count supports", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return model.SupportDocument{}, fmt.Errorf("support id: %w", err)
	}
	doc := model.SupportDocument{
		ID:            id,
		RequisitionID: p.requisitionID,
		Version:       int(count) + 1,
		Filename:      p.filename,
		MimeType:      p.mimeType,
		SizeBytes:     int64(len(p.data)),
		StorageKey:    p.storageKey,
		UploadedAt:    s.now().UTC(),
		UploadedByID:  actor.idPtr(),
		UploadedBy:    actor.displayName(),
		Description:   p.description,
	}
	if p.storageKey == "" {
		doc.Content = p.data
	}
	if err := s.supportRepo.Create(txCtx, &doc); err != nil {
		return model.SupportDocument{}, storageErr("insert support", err)
	}

	_, err = s.RecordEvent(txCtx, EventInput{
		RequisitionID: p.requisitionID,
		Actor:         actor,
		Description:   fmt.Sprintf("Soporte %s agregado (versión %d)", doc.Filename, doc.Version),
		SupportID:     &doc.ID,
		Detail: model.SupportDetail{
			Filename:  doc.Filename,
			MimeType:  doc.MimeType,
			SizeBytes: doc.SizeBytes,
			Version:   doc.Version,
		},
	})
	if err != nil {
		return model.SupportDocument{}, err
	}
	return doc, nil
}

// DiscardSupport removes blob content of an upload that never got its row.
func (s *auditService) DiscardSupport(ctx context.Context, p *PreparedSupport) {
	if p == nil || p.storageKey == "" || s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), p.storageKey); err != nil {
		log.Warn().Err(err).Str("key", p.storageKey).Msg("failed to remove orphaned support content")
	}
}

func (s *auditService) ListEvents(ctx context.Context, requisitionID uuid.UUID) ([]AuditEventResponse, error) {
	events, err := s.auditRepo.ListByRequisition(ctx, requisitionID)
	if err != nil {
		return nil, storageErr("list audit events", err)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})

	res := make([]AuditEventResponse, 0, len(events))
	for _, e := range events {
		res = append(res, toAuditEventResponse(e))
	}
	return res, nil
}

func (s *auditService) ListSupports(ctx context.Context, requisitionID uuid.UUID) ([]SupportResponse, error) {
	docs, err := s.supportRepo.ListByRequisition(ctx, requisitionID)
	if err != nil {
		return nil, storageErr("list supports", err)
	}
	res := make([]SupportResponse, 0, len(docs))
	for _, d := range docs {
		res = append(res, toSupportResponse(d))
	}
	return res, nil
}

func (s *auditService) SupportContent(ctx context.Context, requisitionID, supportID uuid.UUID) (SupportResponse, []byte, error) {
	doc, err := s.supportRepo.FindByID(ctx, requisitionID, supportID)
	if err != nil {
		return SupportResponse{}, nil, notFoundOr(err, "find support")
	}

	data := doc.Content
	if doc.StorageKey != "" {
		if s.blobs == nil {
			return SupportResponse{}, nil, storageErr("read support", fmt.Errorf("content of %s is in object storage, which is not configured", doc.ID))
		}
		data, err = s.blobs.Get(ctx, doc.StorageKey)
		if err != nil {
			return SupportResponse{}, nil, &RemoteError{Service: "object storage", Err: err}
		}
	}
	return toSupportResponse(*doc), data, nil
}

// ExportTrace renders the requisition's trace history as an xlsx workbook.
func (s *auditService) ExportTrace(ctx context.Context, requisitionID uuid.UUID) ([]byte, string, error) {
	req, err := s.reqRepo.FindByID(ctx, requisitionID)
	if err != nil {
		return nil, "", notFoundOr(err, "find requisition")
	}
	events, err := s.auditRepo.ListByRequisition(ctx, requisitionID)
	if err != nil {
		return nil, "", storageErr("list audit events", err)
	}
	docs, err := s.supportRepo.ListByRequisition(ctx, requisitionID)
	if err != nil {
		return nil, "", storageErr("list supports", err)
	}

	content, err := report.TraceWorkbook(*req, events, docs)
	if err != nil {
		return nil, "", fmt.Errorf("render trace: %w", err)
	}
	name := req.Numero
	if name == "" {
		name = req.ID.String()
	}
	return content, fmt.Sprintf("trazabilidad-%s.xlsx", name), nil
}

// GetAuditLogs pages through events of every requisition, newest first.
func (s *auditService) GetAuditLogs(ctx context.Context, page, limit int) ([]AuditEventResponse, int64, error) {
	p := pagination.Normalize(page, limit)
	events, total, err := s.auditRepo.List(ctx, p.Page, p.Limit)
	if err != nil {
		return nil, 0, storageErr("list audit events", err)
	}
	res := make([]AuditEventResponse, 0, len(events))
	for _, e := range events {
		res = append(res, toAuditEventResponse(e))
	}
	return res, total, nil
}

// decodeContent accepts plain base64 or a data URL.
func decodeContent(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(raw)
}

func toAuditEventResponse(e model.AuditEvent) AuditEventResponse {
	details := json.RawMessage("{}")
	if e.Details != "" {
		details = json.RawMessage(e.Details)
	}
	var supportID *string
	if e.SupportID != nil {
		id := e.SupportID.String()
		supportID = &id
	}
	return AuditEventResponse{
		ID:             e.ID.String(),
		RequisitionID:  e.RequisitionID.String(),
		Timestamp:      e.Timestamp.UTC().Format(time.RFC3339Nano),
		Actor:          e.Actor,
		EventType:      e.EventType,
		PreviousStatus: e.PreviousStatus,
		NewStatus:      e.NewStatus,
		Description:    e.Description,
		SupportID:      supportID,
		Details:        details,
	}
}

func toSupportResponse(d model.SupportDocument) SupportResponse {
	return SupportResponse{
		ID:            d.ID.String(),
		RequisitionID: d.RequisitionID.String(),
		Version:       d.Version,
		Filename:      d.Filename,
		MimeType:      d.MimeType,
		SizeBytes:     d.SizeBytes,
		UploadedAt:    d.UploadedAt.UTC().Format(time.RFC3339),
		UploadedBy:    d.UploadedBy,
		Description:   d.Description,
	}
}
