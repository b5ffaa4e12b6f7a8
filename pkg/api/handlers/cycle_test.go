package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/hyperagent/pkg/api/models"
	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/logger"
)

func TestCycleHandler_RunCycleWithoutGoals(t *testing.T) {
	h := NewCycleHandler(testEngine(t), logger.Nop())

	w := httptest.NewRecorder()
	h.RunCycle(w, httptest.NewRequest(http.MethodPost, "/api/v1/cycles", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCycleHandler_RunCycleStopped(t *testing.T) {
	eng := testEngine(t)
	require.NoError(t, eng.Stop(context.Background()))
	h := NewCycleHandler(eng, logger.Nop())

	w := httptest.NewRecorder()
	h.RunCycle(w, httptest.NewRequest(http.MethodPost, "/api/v1/cycles", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCycleHandler_RunAndList(t *testing.T) {
	eng := testEngine(t)
	seedGraph(t, eng)
	g, err := eng.CreateGoal(context.Background(), goal.Spec{Description: "find the moons of jupiter", Priority: 200})
	require.NoError(t, err)
	h := NewCycleHandler(eng, logger.Nop())

	w := httptest.NewRecorder()
	h.RunCycle(w, httptest.NewRequest(http.MethodPost, "/api/v1/cycles", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[models.CycleResponse](t, w)
	assert.Equal(t, uint64(1), res.Cycle)
	assert.Equal(t, uint64(g.ID), res.GoalID)
	assert.Equal(t, goal.Label(g.Description), res.Goal)
	assert.NotEmpty(t, res.Tool)
	assert.NotEmpty(t, res.Progress)
	assert.NotEmpty(t, res.Candidates)

	w = httptest.NewRecorder()
	h.ListCycles(w, httptest.NewRequest(http.MethodGet, "/api/v1/cycles?limit=10", nil))
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.CycleListResponse](t, w)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, res.Tool, list.Cycles[0].Tool)

	w = httptest.NewRecorder()
	h.ListProvenance(w, httptest.NewRequest(http.MethodGet, "/api/v1/provenance?goal_id="+strconv.FormatUint(uint64(g.ID), 10), nil))
	require.Equal(t, http.StatusOK, w.Code)
	prov := decode[models.ProvenanceListResponse](t, w)
	require.Equal(t, 1, prov.Total)
	assert.Equal(t, res.Tool, prov.Records[0].Tool)
}

func TestCycleHandler_ListProvenanceBadGoal(t *testing.T) {
	h := NewCycleHandler(testEngine(t), logger.Nop())

	w := httptest.NewRecorder()
	h.ListProvenance(w, httptest.NewRequest(http.MethodGet, "/api/v1/provenance?goal_id=x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ListProvenance(w, httptest.NewRequest(http.MethodGet, "/api/v1/provenance", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[models.ProvenanceListResponse](t, w).Total)
}
