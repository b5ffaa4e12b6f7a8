package handlers

import (
	"net/http"
	"strings"

	"github.com/goclaw/hyperagent/pkg/api/models"
	"github.com/goclaw/hyperagent/pkg/api/response"
	"github.com/goclaw/hyperagent/pkg/engine"
	"github.com/goclaw/hyperagent/pkg/logger"
	"github.com/goclaw/hyperagent/pkg/memory"
)

// MemoryHandler serves working and episodic memory.
type MemoryHandler struct {
	engine *engine.Engine
	logger logger.Logger
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(eng *engine.Engine, log logger.Logger) *MemoryHandler {
	return &MemoryHandler{engine: eng, logger: log}
}

// Working handles GET /api/v1/memory/working
func (h *MemoryHandler) Working(w http.ResponseWriter, r *http.Request) {
	entries := h.engine.WorkingMemory()
	if entries == nil {
		entries = []memory.Entry{}
	}
	status := h.engine.WorkingStatus()
	response.JSON(w, http.StatusOK, models.WorkingMemoryResponse{
		Entries:  entries,
		Capacity: status.Capacity,
		Fill:     status.Fill,
	})
}

// Episodes handles GET /api/v1/memory/episodes. With ?query= it runs a
// hybrid recall instead of listing.
func (h *MemoryHandler) Episodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := queryLimit(r, defaultListLimit, maxListLimit)
	query := strings.TrimSpace(r.URL.Query().Get("query"))

	resp := models.EpisodeListResponse{Episodes: []models.EpisodeView{}, Query: query}
	if query == "" {
		for _, ep := range h.engine.Episodes(limit) {
			resp.Episodes = append(resp.Episodes, models.NewEpisodeView(ep))
		}
		resp.Total = len(resp.Episodes)
		response.JSON(w, http.StatusOK, resp)
		return
	}

	results, err := h.engine.SearchEpisodes(ctx, query, limit)
	if err != nil {
		h.logger.Error("Failed to search episodes", "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to search episodes", getRequestID(ctx))
		return
	}
	for _, res := range results {
		view := models.NewEpisodeView(res.Episode)
		view.Score = res.Score
		resp.Episodes = append(resp.Episodes, view)
	}
	resp.Total = len(resp.Episodes)
	response.JSON(w, http.StatusOK, resp)
}
