package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/hyperagent/pkg/api/models"
	"github.com/goclaw/hyperagent/pkg/api/response"
	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/logger"
)

func postGoal(h *GoalHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/goals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.CreateGoal(w, req)
	return w
}

func TestGoalHandler_CreateGoal(t *testing.T) {
	h := NewGoalHandler(testEngine(t), logger.Nop())

	w := postGoal(h, `{"description":"find the moons of jupiter","priority":200}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	got := decode[models.GoalResponse](t, w)
	assert.Equal(t, "find the moons of jupiter", got.Description)
	assert.Equal(t, uint8(200), got.Priority)
	assert.Equal(t, goal.StatusActive, got.Status)
	assert.Equal(t, goal.Label("find the moons of jupiter"), got.Label)
}

func TestGoalHandler_CreateGoalErrors(t *testing.T) {
	h := NewGoalHandler(testEngine(t), logger.Nop())
	require.Equal(t, http.StatusCreated, postGoal(h, `{"description":"map the solar system"}`).Code)

	tests := []struct {
		name string
		body string
		code int
		err  string
	}{
		{"malformed", `{"description":`, http.StatusBadRequest, response.ErrCodeBadRequest},
		{"missing description", `{"priority":1}`, http.StatusBadRequest, response.ErrCodeValidationFailed},
		{"priority out of range", `{"description":"x","priority":300}`, http.StatusBadRequest, response.ErrCodeValidationFailed},
		{"duplicate", `{"description":"map the solar system"}`, http.StatusConflict, response.ErrCodeConflict},
		{"unknown blocker", `{"description":"y","blocked_by":[987654]}`, http.StatusBadRequest, response.ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postGoal(h, tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.err, decode[response.ErrorResponse](t, w).Error.Code)
		})
	}
}

func TestGoalHandler_ListGoals(t *testing.T) {
	eng := testEngine(t)
	h := NewGoalHandler(eng, logger.Nop())
	_, err := eng.CreateGoal(context.Background(), goal.Spec{Description: "first"})
	require.NoError(t, err)
	_, err = eng.CreateGoal(context.Background(), goal.Spec{Description: "second"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ListGoals(w, httptest.NewRequest(http.MethodGet, "/api/v1/goals", nil))
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.GoalListResponse](t, w)
	assert.Equal(t, 2, list.Total)

	w = httptest.NewRecorder()
	h.ListGoals(w, httptest.NewRequest(http.MethodGet, "/api/v1/goals?status=completed", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[models.GoalListResponse](t, w).Total)

	w = httptest.NewRecorder()
	h.ListGoals(w, httptest.NewRequest(http.MethodGet, "/api/v1/goals?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGoalHandler_GetGoal(t *testing.T) {
	eng := testEngine(t)
	h := NewGoalHandler(eng, logger.Nop())
	g, err := eng.CreateGoal(context.Background(), goal.Spec{Description: "first"})
	require.NoError(t, err)

	get := func(id string) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Get("/api/v1/goals/{id}", h.GetGoal)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/goals/"+id, nil))
		return w
	}

	w := get(strconv.FormatUint(uint64(g.ID), 10))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, g.ID, decode[models.GoalResponse](t, w).ID)

	assert.Equal(t, http.StatusNotFound, get("999999").Code)
	assert.Equal(t, http.StatusBadRequest, get("abc").Code)
}
