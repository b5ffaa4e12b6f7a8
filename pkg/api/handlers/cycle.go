package handlers

import (
	"net/http"
	"strconv"

	"github.com/goclaw/hyperagent/pkg/agent"
	"github.com/goclaw/hyperagent/pkg/api/models"
	"github.com/goclaw/hyperagent/pkg/api/response"
	"github.com/goclaw/hyperagent/pkg/engine"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/logger"
	"github.com/goclaw/hyperagent/pkg/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// CycleHandler runs cycles and serves their history.
type CycleHandler struct {
	engine *engine.Engine
	logger logger.Logger
}

// NewCycleHandler creates a new cycle handler.
func NewCycleHandler(eng *engine.Engine, log logger.Logger) *CycleHandler {
	return &CycleHandler{engine: eng, logger: log}
}

// RunCycle handles POST /api/v1/cycles
func (h *CycleHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := h.engine.RunCycle(ctx)
	if err != nil {
		if response.HTTPStatusFromError(err) == http.StatusInternalServerError {
			h.logger.Error("Cycle failed", "error", err)
		}
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, h.view(res))
}

// ListCycles handles GET /api/v1/cycles
func (h *CycleHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recs, err := h.engine.ListCycles(ctx, queryLimit(r, defaultListLimit, maxListLimit))
	if err != nil {
		h.logger.Error("Failed to list cycles", "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to list cycles", getRequestID(ctx))
		return
	}
	if recs == nil {
		recs = []*storage.CycleRecord{}
	}
	response.JSON(w, http.StatusOK, models.CycleListResponse{Cycles: recs, Total: len(recs)})
}

// ListProvenance handles GET /api/v1/provenance
func (h *CycleHandler) ListProvenance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := &storage.ProvenanceFilter{Limit: queryLimit(r, defaultListLimit, maxListLimit)}
	if s := r.URL.Query().Get("goal_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "goal_id must be numeric", getRequestID(ctx))
			return
		}
		filter.GoalID = kg.SymbolID(id)
	}

	recs, err := h.engine.ListProvenance(ctx, filter)
	if err != nil {
		h.logger.Error("Failed to list provenance", "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to list provenance", getRequestID(ctx))
		return
	}
	if recs == nil {
		recs = []*storage.ProvenanceRecord{}
	}
	response.JSON(w, http.StatusOK, models.ProvenanceListResponse{Records: recs, Total: len(recs)})
}

func (h *CycleHandler) view(res *agent.CycleResult) models.CycleResponse {
	out := models.CycleResponse{
		Cycle:      res.Cycle,
		GoalID:     uint64(res.Decision.GoalID),
		Goal:       h.engine.GoalKey(res.Decision.GoalID),
		Tool:       res.Decision.Tool,
		Score:      res.Decision.Score,
		Reasoning:  res.Decision.Reasoning,
		Output:     res.Action.Output.Text,
		Success:    res.Action.Output.Success,
		StartedAt:  res.StartedAt,
		DurationMS: res.Duration.Milliseconds(),
	}
	if p := res.Action.Progress; p != nil {
		out.Progress = string(p.Kind())
		switch v := p.(type) {
		case agent.Advanced:
			out.Detail = v.Detail
		case agent.Failed:
			out.Detail = v.Reason
		}
	}
	if res.Impasse != nil {
		out.Impasse = &models.ImpasseView{Kind: res.Impasse.Kind.String(), BestScore: res.Impasse.BestScore}
	}
	for i := range res.Candidates {
		c := &res.Candidates[i]
		out.Candidates = append(out.Candidates, models.CandidateView{
			Tool:      c.Tool,
			Score:     c.Total(),
			Breakdown: c.Breakdown(),
		})
	}
	return out
}
