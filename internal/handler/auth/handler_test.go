package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	authsvc "github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	svc := authsvc.NewService(store.Users(), store.Staff(),
		auth.NewJWTService(auth.Config{Secret: "test-secret"}),
		security.NewBcryptHasher(bcrypt.MinCost))

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api"), middleware.NewAuthMiddleware(svc))
	return r
}

func call(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeTokens(t *testing.T, w *httptest.ResponseRecorder) model.TokenResponse {
	t.Helper()
	var env struct {
		Data model.TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data
}

const registration = `{"email":"jane@example.com","password":"correct-horse","first_name":"Jane","last_name":"Doe"}`

func TestRegisterLoginAndMe(t *testing.T) {
	r := newRouter(t)

	w := call(r, http.MethodPost, "/api/auth/register", "", registration)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	registered := decodeTokens(t, w)
	assert.Equal(t, "Bearer", registered.TokenType)
	require.NotNil(t, registered.User)
	assert.Equal(t, model.RolePatient, registered.User.Role)
	assert.NotNil(t, registered.User.PatientID)

	w = call(r, http.MethodPost, "/api/auth/register", "", registration)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(r, http.MethodPost, "/api/auth/login", "", `{"email":"jane@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(r, http.MethodPost, "/api/auth/login", "", `{"email":"jane@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, w.Code)
	tokens := decodeTokens(t, w)

	w = call(r, http.MethodGet, "/api/auth/me", tokens.AccessToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"jane@example.com"`)
	assert.NotContains(t, w.Body.String(), "password")

	w = call(r, http.MethodGet, "/api/auth/me", tokens.RefreshToken, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(r, http.MethodPost, "/api/auth/refresh", "", `{"refresh_token":"`+tokens.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeTokens(t, w).AccessToken)

	w = call(r, http.MethodPost, "/api/auth/users", tokens.AccessToken,
		`{"email":"admin2@example.com","password":"correct-horse","name":"Admin","role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	r := newRouter(t)

	w := call(r, http.MethodPost, "/api/auth/register", "", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}
