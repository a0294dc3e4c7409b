package patient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
)

type tokens map[string]*model.TokenClaims

func (t tokens) ValidateToken(token string) (*model.TokenClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

type stubLister struct {
	filters *model.AppointmentFilters
}

func (s *stubLister) ListAppointments(_ context.Context, _ model.Actor, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, int, error) {
	s.filters = filters
	return []*model.AppointmentDetail{}, 0, nil
}

type fixture struct {
	engine  *gin.Engine
	own     uuid.UUID
	other   uuid.UUID
	staffID uuid.UUID
	lister  *stubLister
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := memory.NewStore()
	own := &model.Patient{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Status: model.PatientStatusActive}
	other := &model.Patient{FirstName: "John", LastName: "Roe", Email: "john@example.com", Status: model.PatientStatusActive}
	require.NoError(t, store.Patients().Create(ctx, own))
	require.NoError(t, store.Patients().Create(ctx, other))
	st := &model.Staff{FirstName: "Lisa", LastName: "Cuddy", Email: "cuddy@example.com", Status: model.StaffStatusActive}
	require.NoError(t, store.Staff().Create(ctx, st))

	lister := &stubLister{}
	auth := middleware.NewAuthMiddleware(tokens{
		"staff":   {UserID: uuid.New(), Role: model.RoleStaff, StaffID: &st.ID},
		"patient": {UserID: uuid.New(), Role: model.RolePatient, PatientID: &own.ID},
	})

	r := gin.New()
	svc := patient.NewService(store.Patients(), store.Treatments(), store.Staff(), 0)
	NewHandler(svc, lister).RegisterRoutes(r.Group("/api"), auth)
	return &fixture{engine: r, own: own.ID, other: other.ID, staffID: st.ID, lister: lister}
}

func (f *fixture) call(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestPatientRoleGuards(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{"list requires auth", http.MethodGet, "/api/patients", "", "", http.StatusUnauthorized},
		{"patient cannot list", http.MethodGet, "/api/patients", "patient", "", http.StatusForbidden},
		{"staff lists", http.MethodGet, "/api/patients", "staff", "", http.StatusOK},
		{"patient reads own record", http.MethodGet, "/api/patients/" + f.own.String(), "patient", "", http.StatusOK},
		{"patient cannot read others", http.MethodGet, "/api/patients/" + f.other.String(), "patient", "", http.StatusForbidden},
		{"patient cannot create", http.MethodPost, "/api/patients", "patient", `{"first_name":"A","last_name":"B","email":"a@example.com"}`, http.StatusForbidden},
		{"staff creates", http.MethodPost, "/api/patients", "staff", `{"first_name":"A","last_name":"B","email":"a@example.com"}`, http.StatusCreated},
		{"create validates email", http.MethodPost, "/api/patients", "staff", `{"first_name":"A","last_name":"B","email":"nope"}`, http.StatusBadRequest},
		{"patient updates own record", http.MethodPut, "/api/patients/" + f.own.String(), "patient", `{"first_name":"Janet"}`, http.StatusOK},
		{"patient cannot change status", http.MethodPut, "/api/patients/" + f.own.String(), "patient", `{"status":"inactive"}`, http.StatusForbidden},
		{"patient cannot delete", http.MethodDelete, "/api/patients/" + f.own.String(), "patient", "", http.StatusForbidden},
		{"unknown patient", http.MethodGet, "/api/patients/" + uuid.NewString(), "staff", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/patients/42", "staff", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.call(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestTreatments(t *testing.T) {
	f := setup(t)
	path := "/api/patients/" + f.own.String() + "/treatments"
	body := `{"staff_id":"` + f.staffID.String() + `","description":"Annual checkup","cost":50,"treated_on":"2026-10-01"}`

	w := f.call(http.MethodPost, path, "patient", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.call(http.MethodPost, path, "staff", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.call(http.MethodGet, path, "patient", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Annual checkup")

	w = f.call(http.MethodGet, "/api/patients/"+f.other.String()+"/treatments", "patient", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPatientAppointmentHistory(t *testing.T) {
	f := setup(t)

	w := f.call(http.MethodGet, "/api/patients/"+f.other.String()+"/appointments", "patient", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, f.lister.filters)

	w = f.call(http.MethodGet, "/api/patients/"+f.own.String()+"/appointments?page=2", "patient", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.lister.filters)
	assert.Equal(t, f.own, f.lister.filters.PatientID)
	assert.Contains(t, w.Body.String(), `"items":[]`)
}
