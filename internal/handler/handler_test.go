package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"requisiciones/internal/middleware"
	"requisiciones/internal/model"
	"requisiciones/internal/service"
	"requisiciones/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Unimplemented methods fall through to the nil embedded interface and panic.
type stubRequisitions struct {
	service.RequisitionService
	create  func(service.Actor, service.CreateRequisitionRequest) (service.RequisitionResponse, error)
	approve func(service.Actor, uuid.UUID, service.ApproveRequisitionRequest) (service.RequisitionResponse, error)
	pending func(service.Actor, uuid.UUID, service.StatusChangeRequest) (service.RequisitionResponse, error)
	list    func(service.ListRequisitionsQuery) ([]service.RequisitionResponse, int64, error)
}

func (s *stubRequisitions) Create(_ context.Context, a service.Actor, r service.CreateRequisitionRequest) (service.RequisitionResponse, error) {
	return s.create(a, r)
}

func (s *stubRequisitions) Approve(_ context.Context, a service.Actor, id uuid.UUID, r service.ApproveRequisitionRequest) (service.RequisitionResponse, error) {
	return s.approve(a, id, r)
}

func (s *stubRequisitions) MarkPendingDelivery(_ context.Context, a service.Actor, id uuid.UUID, r service.StatusChangeRequest) (service.RequisitionResponse, error) {
	return s.pending(a, id, r)
}

func (s *stubRequisitions) List(_ context.Context, q service.ListRequisitionsQuery) ([]service.RequisitionResponse, int64, error) {
	return s.list(q)
}

type stubAudit struct {
	service.AuditService
	export func(uuid.UUID) ([]byte, string, error)
}

func (s *stubAudit) ExportTrace(_ context.Context, id uuid.UUID) ([]byte, string, error) {
	return s.export(id)
}

type stubNumbering struct {
	service.NumberingService
	dates []time.Time
}

func (s *stubNumbering) CommitteeNumberFor(_ context.Context, date time.Time) (string, error) {
	s.dates = append(s.dates, date)
	return "COM-2026-004", nil
}

var tesorero = service.Actor{ID: uuid.New(), Name: "Tesorería", Role: model.RoleTesoreria}

func fakeAuth(actor service.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ActorKey, actor)
		c.Next()
	}
}

func rejectAll(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
}

func newRouter(reqs *stubRequisitions, audit *stubAudit, auth gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("")
	NewRequisitionHandler(reqs).RegisterRoutes(api, auth)
	NewAuditHandler(audit).RegisterRoutes(api, auth)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var res response.Response
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	}
	return w, res
}

func TestCreateRequisition(t *testing.T) {
	var got service.CreateRequisitionRequest
	reqs := &stubRequisitions{create: func(a service.Actor, r service.CreateRequisitionRequest) (service.RequisitionResponse, error) {
		got = r
		assert.Equal(t, tesorero.ID, a.ID)
		return service.RequisitionResponse{Numero: "REQ-000001", Status: model.StatusPendiente}, nil
	}}
	r := newRouter(reqs, &stubAudit{}, fakeAuth(tesorero))

	w, res := do(t, r, http.MethodPost, "/api/requisiciones", map[string]interface{}{
		"tipo":     "REQUISICION",
		"area":     "Sistemas",
		"cantidad": 2,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, model.KindRequisicion, got.Kind)
	assert.Equal(t, 2, got.Cantidad)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &service.ValidationError{Fields: map[string]string{"numero_comite": "es obligatorio"}}, http.StatusUnprocessableEntity},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"wrong status", service.ErrInvalidTransition, http.StatusConflict},
		{"storage", &service.StorageError{Op: "allocate", Err: errors.New("down")}, http.StatusServiceUnavailable},
		{"remote", &service.RemoteError{Service: "minio", Err: errors.New("denied")}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs := &stubRequisitions{approve: func(service.Actor, uuid.UUID, service.ApproveRequisitionRequest) (service.RequisitionResponse, error) {
				return service.RequisitionResponse{}, tt.err
			}}
			r := newRouter(reqs, &stubAudit{}, fakeAuth(tesorero))

			w, res := do(t, r, http.MethodPut, "/api/requisiciones/"+uuid.NewString()+"/aprobar", map[string]interface{}{})
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "error", res.Status)
			if tt.code == http.StatusUnprocessableEntity {
				assert.Equal(t, "es obligatorio", res.Fields["numero_comite"])
			}
		})
	}
}

func TestBadRequests(t *testing.T) {
	r := newRouter(&stubRequisitions{}, &stubAudit{}, fakeAuth(tesorero))

	w, _ := do(t, r, http.MethodPut, "/api/requisiciones/not-a-uuid/aprobar", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPut, "/api/requisiciones/"+uuid.NewString()+"/aprobar", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutesRequireAuth(t *testing.T) {
	r := newRouter(&stubRequisitions{}, &stubAudit{}, rejectAll)

	w, _ := do(t, r, http.MethodGet, "/api/requisiciones", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/requisiciones/"+uuid.NewString()+"/trazabilidad", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusChangeAcceptsEmptyBody(t *testing.T) {
	id := uuid.New()
	reqs := &stubRequisitions{pending: func(_ service.Actor, got uuid.UUID, r service.StatusChangeRequest) (service.RequisitionResponse, error) {
		assert.Equal(t, id, got)
		assert.Empty(t, r.Motivo)
		return service.RequisitionResponse{Status: model.StatusPendienteEntrega}, nil
	}}
	r := newRouter(reqs, &stubAudit{}, fakeAuth(tesorero))

	w, res := do(t, r, http.MethodPut, "/api/requisiciones/"+id.String()+"/pendiente-entrega", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", res.Status)
}

func TestListPassesFiltersAndPaging(t *testing.T) {
	reqs := &stubRequisitions{list: func(q service.ListRequisitionsQuery) ([]service.RequisitionResponse, int64, error) {
		assert.Equal(t, "APROBADA", q.Status)
		assert.Equal(t, 2, q.Page)
		assert.Equal(t, 100, q.Limit, "limit is capped")
		return []service.RequisitionResponse{{Numero: "REQ-000010"}}, 41, nil
	}}
	r := newRouter(reqs, &stubAudit{}, fakeAuth(tesorero))

	w, res := do(t, r, http.MethodGet, "/api/requisiciones?status=APROBADA&page=2&limit=500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := res.Data.(map[string]interface{})
	assert.Equal(t, float64(41), data["total"])
}

func TestExportTraceServesSpreadsheet(t *testing.T) {
	audit := &stubAudit{export: func(uuid.UUID) ([]byte, string, error) {
		return []byte("PK\x03\x04"), "trazabilidad-REQ-000007.xlsx", nil
	}}
	r := newRouter(&stubRequisitions{}, audit, fakeAuth(tesorero))

	w, _ := do(t, r, http.MethodGet, "/api/requisiciones/"+uuid.NewString()+"/trazabilidad/export", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "trazabilidad-REQ-000007.xlsx")
}

func TestCommitteeNumberReadsDateInSchoolTimezone(t *testing.T) {
	loc := time.FixedZone("COT", -5*60*60)
	numbering := &stubNumbering{}
	admin := service.Actor{ID: uuid.New(), Name: "Admin", Role: model.RoleAdmin}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewNumberingHandler(numbering, loc).RegisterRoutes(r.Group(""), fakeAuth(admin))

	w, res := do(t, r, http.MethodGet, "/api/numeracion/comite?fecha=2026-03-02", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COM-2026-004", res.Data.(map[string]interface{})["numero_comite"])
	require.Len(t, numbering.dates, 1)
	assert.True(t, time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC).Equal(numbering.dates[0]))

	w, _ = do(t, r, http.MethodGet, "/api/numeracion/comite?fecha=02/03/2026", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	clerk := service.Actor{ID: uuid.New(), Role: model.RoleAlmacen}
	r = gin.New()
	NewNumberingHandler(numbering, loc).RegisterRoutes(r.Group(""), fakeAuth(clerk))
	w, _ = do(t, r, http.MethodGet, "/api/numeracion/comite", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type stubStatistics struct {
	start, end time.Time
}

func (s *stubStatistics) GetStatistics(_ context.Context, start, end time.Time) (model.StatisticsResponse, error) {
	s.start, s.end = start, end
	return model.StatisticsResponse{TotalRequisiciones: 3}, nil
}

func TestStatisticsDateRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stats := &stubStatistics{}
	h := NewStatisticsHandler(stats, time.UTC)
	h.now = func() time.Time { return time.Date(2026, 3, 17, 10, 0, 0, 0, time.UTC) }
	contador := service.Actor{ID: uuid.New(), Role: model.RoleContabilidad}

	r := gin.New()
	h.RegisterRoutes(r.Group(""), fakeAuth(contador))

	w, _ := do(t, r, http.MethodGet, "/api/estadisticas", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), stats.start)

	w, _ = do(t, r, http.MethodGet, "/api/estadisticas?start_date=2026-01-01&end_date=2026-01-31", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 31, stats.end.Day())
	assert.Equal(t, 23, stats.end.Hour(), "a plain end date covers the whole day")

	w, _ = do(t, r, http.MethodGet, "/api/estadisticas?start_date=ayer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = gin.New()
	h.RegisterRoutes(r.Group(""), fakeAuth(service.Actor{ID: uuid.New(), Role: model.RoleAlmacen}))
	w, _ = do(t, r, http.MethodGet, "/api/estadisticas", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
