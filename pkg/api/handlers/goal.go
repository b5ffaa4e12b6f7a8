package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/goclaw/hyperagent/pkg/api/models"
	"github.com/goclaw/hyperagent/pkg/api/response"
	"github.com/goclaw/hyperagent/pkg/engine"
	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/logger"
)

// GoalHandler handles goal endpoints.
type GoalHandler struct {
	engine    *engine.Engine
	logger    logger.Logger
	validator *validator.Validate
}

// NewGoalHandler creates a new goal handler.
func NewGoalHandler(eng *engine.Engine, log logger.Logger) *GoalHandler {
	return &GoalHandler{
		engine:    eng,
		logger:    log,
		validator: validator.New(),
	}
}

// CreateGoal handles POST /api/v1/goals
func (h *GoalHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	}

	spec := goal.Spec{
		Description:     req.Description,
		SuccessCriteria: req.SuccessCriteria,
		Priority:        uint8(req.Priority),
	}
	for _, id := range req.BlockedBy {
		spec.BlockedBy = append(spec.BlockedBy, kg.SymbolID(id))
	}

	g, err := h.engine.CreateGoal(ctx, spec)
	switch {
	case errors.Is(err, goal.ErrExists):
		response.Error(w, http.StatusConflict, response.ErrCodeConflict, err.Error(), getRequestID(ctx))
		return
	case errors.Is(err, goal.ErrInvalidGoal), errors.Is(err, goal.ErrNotFound):
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	case err != nil:
		h.logger.Error("Failed to create goal", "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to create goal", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusCreated, h.view(*g))
}

// ListGoals handles GET /api/v1/goals
func (h *GoalHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	status := goal.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Unknown goal status", getRequestID(r.Context()))
		return
	}

	resp := models.GoalListResponse{Goals: []models.GoalResponse{}}
	for _, g := range h.engine.ListGoals() {
		if status != "" && g.Status != status {
			continue
		}
		resp.Goals = append(resp.Goals, h.view(g))
	}
	resp.Total = len(resp.Goals)
	response.JSON(w, http.StatusOK, resp)
}

// GetGoal handles GET /api/v1/goals/{id}
func (h *GoalHandler) GetGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Goal ID must be numeric", getRequestID(ctx))
		return
	}
	g, ok := h.engine.GetGoal(kg.SymbolID(id))
	if !ok {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, "Goal not found", getRequestID(ctx))
		return
	}
	response.JSON(w, http.StatusOK, h.view(*g))
}

func (h *GoalHandler) view(g goal.Goal) models.GoalResponse {
	return models.GoalResponse{Goal: g, Label: h.engine.GoalKey(g.ID)}
}
