package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/logger"
)

// Stats counts executions of one tool.
type Stats struct {
	Executions int64 `json:"executions"`
	Failures   int64 `json:"failures"`
}

// Observer is notified after every execution. *metrics.Manager satisfies it.
type Observer interface {
	RecordToolExecution(tool string, success bool, duration time.Duration)
}

// Registry holds the tools the agent may call. It also carries the static
// archetype biases and deny list loaded from configuration.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	stats    map[string]*Stats
	biases   map[string]float64
	denied   map[string]struct{}
	observer Observer
	logger   logger.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBiases sets a per-tool archetype bias.
func WithBiases(biases map[string]float64) RegistryOption {
	return func(r *Registry) {
		for name, b := range biases {
			r.biases[name] = b
		}
	}
}

// WithDenied vetoes the named tools for every goal.
func WithDenied(names ...string) RegistryOption {
	return func(r *Registry) {
		for _, n := range names {
			r.denied[n] = struct{}{}
		}
	}
}

// WithObserver reports executions to o.
func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) { r.observer = o }
}

// WithLogger sets the registry logger.
func WithLogger(l logger.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:  make(map[string]Tool),
		stats:  make(map[string]*Stats),
		biases: make(map[string]float64),
		denied: make(map[string]struct{}),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool.
func (r *Registry) Register(t Tool) error {
	sig := t.Signature()
	if strings.TrimSpace(sig.Name) == "" {
		return fmt.Errorf("%w: tool name cannot be empty", ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[sig.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, sig.Name)
	}
	r.tools[sig.Name] = t
	r.stats[sig.Name] = &Stats{}
	r.logger.Debug("tool registered", "tool", sig.Name)
	return nil
}

// MustRegister registers tools and panics on error.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Signatures lists every registered tool ordered by name.
func (r *Registry) Signatures() []Signature {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Signature, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Signature())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs the named tool. Every error is an *ExecutionError. A tool
// that returns Success=false without an error is not an execution error.
func (r *Registry) Execute(ctx context.Context, name string, in Input) (Output, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Output{}, &ExecutionError{Tool: name, Cause: ErrUnknownTool}
	}

	start := time.Now()
	out, err := t.Execute(ctx, in)
	success := err == nil && out.Success

	r.mu.Lock()
	st := r.stats[name]
	st.Executions++
	if !success {
		st.Failures++
	}
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.RecordToolExecution(name, success, time.Since(start))
	}
	if err != nil {
		r.logger.Debug("tool execution failed", "tool", name, "error", err)
		return Output{}, &ExecutionError{Tool: name, Cause: err}
	}
	return out, nil
}

// Stats returns execution counters for every tool.
func (r *Registry) Stats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Stats, len(r.stats))
	for name, st := range r.stats {
		out[name] = *st
	}
	return out
}

// ArchetypeBias implements ArchetypeBiaser from the configured biases.
func (r *Registry) ArchetypeBias(toolName string, _ kg.SymbolID) float64 {
	return r.biases[toolName]
}

// Veto implements Vetoer from the configured deny list.
func (r *Registry) Veto(toolName string, _ kg.SymbolID) bool {
	_, denied := r.denied[toolName]
	return denied
}

// Func adapts a function to the Tool interface.
type Func struct {
	Sig Signature
	Fn  func(ctx context.Context, in Input) (Output, error)
}

// Signature implements Tool.
func (f Func) Signature() Signature { return f.Sig }

// Execute implements Tool.
func (f Func) Execute(ctx context.Context, in Input) (Output, error) { return f.Fn(ctx, in) }
