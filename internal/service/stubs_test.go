package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"requisiciones/internal/model"
	"requisiciones/internal/repository"
	"requisiciones/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errStoreDown = errors.New("store unavailable")

// memStore holds every table the services touch. memTx snapshots it and
// restores the snapshot when the transaction function fails.
type memStore struct {
	reqs       map[uuid.UUID]model.Requisition
	order      []uuid.UUID
	events     []model.AuditEvent
	supports   []model.SupportDocument
	payments   []model.Payment
	committees map[string]string
	sequences  map[string]int64
	created    int

	failAppend    bool
	failIncrement bool
}

func newMemStore() *memStore {
	return &memStore{
		reqs:       map[uuid.UUID]model.Requisition{},
		committees: map[string]string{},
		sequences:  map[string]int64{},
	}
}

type memSnapshot struct {
	reqs       map[uuid.UUID]model.Requisition
	order      []uuid.UUID
	events     []model.AuditEvent
	supports   []model.SupportDocument
	payments   []model.Payment
	committees map[string]string
	sequences  map[string]int64
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		reqs:       make(map[uuid.UUID]model.Requisition, len(s.reqs)),
		order:      append([]uuid.UUID(nil), s.order...),
		events:     append([]model.AuditEvent(nil), s.events...),
		supports:   append([]model.SupportDocument(nil), s.supports...),
		payments:   append([]model.Payment(nil), s.payments...),
		committees: make(map[string]string, len(s.committees)),
		sequences:  make(map[string]int64, len(s.sequences)),
	}
	for k, v := range s.reqs {
		snap.reqs[k] = v
	}
	for k, v := range s.committees {
		snap.committees[k] = v
	}
	for k, v := range s.sequences {
		snap.sequences[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.reqs = snap.reqs
	s.order = snap.order
	s.events = snap.events
	s.supports = snap.supports
	s.payments = snap.payments
	s.committees = snap.committees
	s.sequences = snap.sequences
}

func (s *memStore) eventsFor(id uuid.UUID) []model.AuditEvent {
	var out []model.AuditEvent
	for _, e := range s.events {
		if e.RequisitionID == id {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) eventTypes(id uuid.UUID) []model.EventType {
	var out []model.EventType
	for _, e := range s.eventsFor(id) {
		out = append(out, e.EventType)
	}
	return out
}

// seed inserts a requisition as if it had been stored earlier.
func (s *memStore) seed(r model.Requisition) model.Requisition {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = model.StatusPendiente
	}
	s.created++
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Date(2026, 1, 1, 0, 0, s.created, 0, time.UTC)
	}
	s.reqs[r.ID] = r
	s.order = append(s.order, r.ID)
	return r
}

type txMarker struct{}

type memTx struct {
	st *memStore
}

func (m *memTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	snap := m.st.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		m.st.restore(snap)
		return err
	}
	return nil
}

// --- requisitions ---

type memRequisitionRepo struct{ st *memStore }

func (r *memRequisitionRepo) Create(_ context.Context, req *model.Requisition) error {
	*req = r.st.seed(*req)
	return nil
}

func (r *memRequisitionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Requisition, error) {
	req, ok := r.st.reqs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &req, nil
}

func (r *memRequisitionRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Requisition, error) {
	return r.FindByID(ctx, id)
}

func (r *memRequisitionRepo) List(_ context.Context, filter repository.RequisitionFilter) ([]model.Requisition, int64, error) {
	var matched []model.Requisition
	for i := len(r.st.order) - 1; i >= 0; i-- {
		req := r.st.reqs[r.st.order[i]]
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && req.Kind != filter.Kind {
			continue
		}
		if filter.Area != "" && req.Area != filter.Area {
			continue
		}
		matched = append(matched, req)
	}
	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *memRequisitionRepo) ListByKind(_ context.Context, kind model.Kind) ([]model.Requisition, error) {
	var out []model.Requisition
	for _, id := range r.st.order {
		if req := r.st.reqs[id]; req.Kind == kind {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *memRequisitionRepo) ListApproved(_ context.Context) ([]model.Requisition, error) {
	var out []model.Requisition
	for _, id := range r.st.order {
		req := r.st.reqs[id]
		if req.FechaAprobacion != nil && req.Status != model.StatusRechazada {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *memRequisitionRepo) Update(_ context.Context, req *model.Requisition) error {
	if _, ok := r.st.reqs[req.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.st.reqs[req.ID] = *req
	return nil
}

// --- audit events ---

type memAuditRepo struct{ st *memStore }

func (r *memAuditRepo) Append(_ context.Context, event *model.AuditEvent) error {
	if r.st.failAppend {
		return errStoreDown
	}
	r.st.events = append(r.st.events, *event)
	return nil
}

func (r *memAuditRepo) ListByRequisition(_ context.Context, requisitionID uuid.UUID) ([]model.AuditEvent, error) {
	out := r.st.eventsFor(requisitionID)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (r *memAuditRepo) List(_ context.Context, page, limit int) ([]model.AuditEvent, int64, error) {
	all := append([]model.AuditEvent(nil), r.st.events...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, int64(len(all)), nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

// --- supports ---

type memSupportRepo struct{ st *memStore }

func (r *memSupportRepo) Create(_ context.Context, doc *model.SupportDocument) error {
	for _, d := range r.st.supports {
		if d.RequisitionID == doc.RequisitionID && d.Version == doc.Version {
			return fmt.Errorf("insert support: %w", repository.ErrConflict)
		}
	}
	r.st.supports = append(r.st.supports, *doc)
	return nil
}

func (r *memSupportRepo) CountByRequisition(_ context.Context, requisitionID uuid.UUID) (int64, error) {
	var n int64
	for _, d := range r.st.supports {
		if d.RequisitionID == requisitionID {
			n++
		}
	}
	return n, nil
}

func (r *memSupportRepo) ListByRequisition(_ context.Context, requisitionID uuid.UUID) ([]model.SupportDocument, error) {
	var out []model.SupportDocument
	for _, d := range r.st.supports {
		if d.RequisitionID == requisitionID {
			d.Content = nil
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (r *memSupportRepo) FindByID(_ context.Context, requisitionID, id uuid.UUID) (*model.SupportDocument, error) {
	for _, d := range r.st.supports {
		if d.RequisitionID == requisitionID && d.ID == id {
			return &d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// --- payments ---

type memPaymentRepo struct{ st *memStore }

func (r *memPaymentRepo) Create(_ context.Context, p *model.Payment) error {
	r.st.payments = append(r.st.payments, *p)
	return nil
}

func (r *memPaymentRepo) ListByRequisition(_ context.Context, requisitionID uuid.UUID) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range r.st.payments {
		if p.RequisitionID == requisitionID {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- numbering ---

type memSequenceStore struct{ st *memStore }

func (s *memSequenceStore) Increment(_ context.Context, key string) (int64, error) {
	if s.st.failIncrement {
		return 0, errStoreDown
	}
	s.st.sequences[key]++
	return s.st.sequences[key], nil
}

func (s *memSequenceStore) Peek(_ context.Context, key string) (int64, error) {
	return s.st.sequences[key], nil
}

func (s *memSequenceStore) Set(_ context.Context, key string, value int64) error {
	s.st.sequences[key] = value
	return nil
}

type memCommitteeStore struct{ st *memStore }

func (s *memCommitteeStore) Find(_ context.Context, dateKey string) (string, bool, error) {
	n, ok := s.st.committees[dateKey]
	return n, ok, nil
}

func (s *memCommitteeStore) CountByYear(_ context.Context, year int) (int64, error) {
	prefix := fmt.Sprintf("%04d-", year)
	var n int64
	for k := range s.st.committees {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n, nil
}

func (s *memCommitteeStore) FindByNumero(_ context.Context, numero string) (string, bool, error) {
	for k, n := range s.st.committees {
		if n == numero {
			return k, true, nil
		}
	}
	return "", false, nil
}

func (s *memCommitteeStore) NumerosWithPrefix(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for _, n := range s.st.committees {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memCommitteeStore) Save(ctx context.Context, dateKey, numero string) error {
	if _, ok := s.st.committees[dateKey]; ok {
		return repository.ErrConflict
	}
	if _, taken, _ := s.FindByNumero(ctx, numero); taken {
		return repository.ErrConflict
	}
	s.st.committees[dateKey] = numero
	return nil
}

func (s *memCommitteeStore) Clear(_ context.Context) error {
	s.st.committees = map[string]string{}
	return nil
}

// --- blobs and notifications ---

type memBlobStore struct {
	objects map[string][]byte
	failPut bool
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: map[string][]byte{}}
}

func (b *memBlobStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if b.failPut {
		return errors.New("access denied")
	}
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func (b *memBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (b *memBlobStore) Delete(_ context.Context, key string) error {
	delete(b.objects, key)
	return nil
}

type recordingNotifier struct {
	published []StatusChangedNotification
}

func (n *recordingNotifier) Publish(_ string, payload interface{}) {
	if p, ok := payload.(StatusChangedNotification); ok {
		n.published = append(n.published, p)
	}
}

var (
	_ repository.TransactionManager    = (*memTx)(nil)
	_ repository.RequisitionRepository = (*memRequisitionRepo)(nil)
	_ repository.AuditRepository       = (*memAuditRepo)(nil)
	_ repository.SupportRepository     = (*memSupportRepo)(nil)
	_ repository.PaymentRepository     = (*memPaymentRepo)(nil)
	_ repository.SequenceStore         = (*memSequenceStore)(nil)
	_ repository.CommitteeStore        = (*memCommitteeStore)(nil)
	_ storage.BlobStore                = (*memBlobStore)(nil)
	_ Notifier                         = (*recordingNotifier)(nil)
)

// schoolTZ stands in for America/Bogota without relying on tzdata.
var schoolTZ = time.FixedZone("COT", -5*60*60)

type fixture struct {
	st        *memStore
	blobs     *memBlobStore
	notifier  *recordingNotifier
	numbering *numberingService
	audit     *auditService
	svc       *requisitionService
	clock     time.Time
}

// newFixture wires the services over one memStore. withBlobs selects blob
// storage for support content instead of inline bytes.
func newFixture(t *testing.T, withBlobs bool) *fixture {
	t.Helper()
	st := newMemStore()
	tx := &memTx{st: st}
	reqRepo := &memRequisitionRepo{st: st}

	f := &fixture{
		st:       st,
		notifier: &recordingNotifier{},
		clock:    time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
	}

	var blobs storage.BlobStore
	if withBlobs {
		f.blobs = newMemBlobStore()
		blobs = f.blobs
	}

	f.numbering = NewNumberingService(&memSequenceStore{st: st}, &memCommitteeStore{st: st}, reqRepo, tx, schoolTZ, "memory").(*numberingService)
	f.audit = NewAuditService(&memAuditRepo{st: st}, &memSupportRepo{st: st}, reqRepo, tx, blobs).(*auditService)
	f.svc = NewRequisitionService(reqRepo, &memPaymentRepo{st: st}, tx, f.numbering, f.audit, f.notifier).(*requisitionService)

	f.numbering.now = f.tick
	f.audit.now = f.tick
	f.svc.now = f.tick
	return f
}

// tick returns the fixture clock and advances it by one second.
func (f *fixture) tick() time.Time {
	now := f.clock
	f.clock = f.clock.Add(time.Second)
	return now
}

var (
	adminActor    = Actor{ID: uuid.New(), Name: "Admin", Role: model.RoleAdmin}
	rectorActor   = Actor{ID: uuid.New(), Name: "Rector", Role: model.RoleRector}
	tesoreroActor = Actor{ID: uuid.New(), Name: "Tesorería", Role: model.RoleTesoreria}
	almacenActor  = Actor{ID: uuid.New(), Name: "Almacén", Role: model.RoleAlmacen}
	areaActor     = Actor{ID: uuid.New(), Name: "Biblioteca", Role: model.RoleResponsableArea}
)
