package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func respond(err error) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	RespondError(c, err)
	return w
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{apperrors.NotFound("patient", nil), http.StatusNotFound, "patient not found"},
		{apperrors.ErrSlotUnavailable, http.StatusConflict, apperrors.SlotUnavailableMessage},
		{apperrors.Forbidden("nope"), http.StatusForbidden, "nope"},
		{errors.New("db exploded"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		w := respond(tt.err)
		assert.Equal(t, tt.status, w.Code)

		var body Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "error", body.Status)
		assert.Equal(t, tt.message, body.Message)
	}
}

func TestActorAndParamID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	assert.Equal(t, model.Actor{}, Actor(c))

	actor := model.Actor{UserID: uuid.New(), Role: model.RoleStaff}
	c.Set(ContextActor, actor)
	assert.Equal(t, actor, Actor(c))

	id := uuid.New()
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	got, ok := ParamID(c, "id")
	assert.True(t, ok)
	assert.Equal(t, id, got)

	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	_, ok = ParamID(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
