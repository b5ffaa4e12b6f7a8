package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/goclaw/hyperagent/pkg/agent"
	"github.com/goclaw/hyperagent/pkg/storage"
)

// provenanceRecorder writes every decision to storage.
type provenanceRecorder struct {
	store storage.Storage
	now   func() time.Time
}

func (r *provenanceRecorder) RecordDecision(ctx context.Context, p agent.Provenance) error {
	rec := &storage.ProvenanceRecord{
		ID:        uuid.NewString(),
		Cycle:     p.Cycle,
		GoalID:    p.GoalID,
		Tool:      p.Tool,
		Score:     p.Score,
		Reasoning: p.Reasoning,
		Impasse:   p.Impasse,
		CreatedAt: p.CreatedAt,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	for _, alt := range p.Alternatives {
		rec.Alternatives = append(rec.Alternatives, storage.Alternative{Tool: alt.Tool, Score: alt.Score})
	}
	return r.store.SaveProvenance(ctx, rec)
}
