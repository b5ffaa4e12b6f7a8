package agent

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goclaw/hyperagent/pkg/logger"
)

// Deps are the collaborators an Agent works against. Episodes may be nil.
type Deps struct {
	Graph    Graph
	Vectors  Vectors
	Working  WorkingMemory
	Episodes EpisodicMemory
	Goals    Goals
	Tools    Tools
}

func (d Deps) validate() error {
	var missing []error
	if d.Graph == nil {
		missing = append(missing, errors.New("graph"))
	}
	if d.Vectors == nil {
		missing = append(missing, errors.New("vectors"))
	}
	if d.Working == nil {
		missing = append(missing, errors.New("working memory"))
	}
	if d.Goals == nil {
		missing = append(missing, errors.New("goals"))
	}
	if d.Tools == nil {
		missing = append(missing, errors.New("tools"))
	}
	if len(missing) > 0 {
		return fmt.Errorf("agent: missing dependencies: %w", errors.Join(missing...))
	}
	return nil
}

// Option is a functional option for configuring the Agent.
type Option func(*Agent)

// WithThresholds sets the initial thresholds.
func WithThresholds(th Thresholds) Option {
	return func(a *Agent) {
		a.th.store(th)
	}
}

// WithLogger sets the agent's logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithProvenance sets where decisions are recorded.
func WithProvenance(p ProvenanceRecorder) Option {
	return func(a *Agent) {
		if p != nil {
			a.provenance = p
		}
	}
}

// WithObserver sets the cycle observer.
func WithObserver(o Observer) Option {
	return func(a *Agent) {
		if o != nil {
			a.observer = o
		}
	}
}

// WithStartCycle resumes numbering after cycle n.
func WithStartCycle(n uint64) Option {
	return func(a *Agent) {
		a.cycle.Store(n)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// Agent runs OODA cycles. RunCycle is not safe for concurrent use; callers
// that drive cycles from several goroutines serialize them.
type Agent struct {
	deps       Deps
	th         *thresholdStore
	evaluator  *ProgressEvaluator
	provenance ProvenanceRecorder
	observer   Observer
	logger     logger.Logger
	now        func() time.Time
	cycle      atomic.Uint64
}

// New creates an Agent.
func New(deps Deps, opts ...Option) (*Agent, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		deps:   deps,
		th:     newThresholdStore(DefaultThresholds()),
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.evaluator = newProgressEvaluator(deps.Graph, deps.Vectors, a.th)
	return a, nil
}

// SetThresholds swaps the thresholds used from the next stage on.
func (a *Agent) SetThresholds(th Thresholds) {
	a.th.store(th)
	a.logger.Info("agent thresholds updated",
		"semantic_floor", th.SemanticFloor,
		"impasse_threshold", th.ImpasseThreshold,
		"tie_epsilon", th.TieEpsilon,
	)
}

// Thresholds returns the thresholds currently in use.
func (a *Agent) Thresholds() Thresholds {
	return a.th.load()
}

// Evaluator returns the agent's progress evaluator.
func (a *Agent) Evaluator() *ProgressEvaluator {
	return a.evaluator
}

// LastCycle returns the number of the most recently started cycle.
func (a *Agent) LastCycle() uint64 {
	return a.cycle.Load()
}
