// Package engine wires the reasoning agent to its graph, memory, tools,
// storage and event bus, and drives its decision cycles.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/goclaw/hyperagent/config"
	"github.com/goclaw/hyperagent/pkg/agent"
	"github.com/goclaw/hyperagent/pkg/eventbus"
	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/logger"
	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/storage"
	memstore "github.com/goclaw/hyperagent/pkg/storage/memory"
	"github.com/goclaw/hyperagent/pkg/tool"
	"github.com/goclaw/hyperagent/pkg/tool/builtin"
	"github.com/goclaw/hyperagent/pkg/vsa"
)

type engineState int32

const (
	stateIdle engineState = iota
	stateRunning
	stateStopped
	stateError
)

func (s engineState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRunning:
		return "running"
	case stateStopped:
		return "stopped"
	case stateError:
		return "error"
	default:
		return "unknown"
	}
}

// MetricsRecorder receives everything the engine measures.
// *metrics.Manager satisfies it.
type MetricsRecorder interface {
	agent.Observer
	tool.Observer
	eventbus.Telemetry
	SetGoalCounts(counts map[string]int)
	SetWorkingMemory(entries int, fill float64)
	SetEpisodes(n int)
	RecordConsolidation(success bool)
}

type nopMetrics struct{}

func (nopMetrics) ObserveCycle(context.Context, *agent.CycleResult) {}
func (nopMetrics) ObserveCycleError(error)                          {}
func (nopMetrics) RecordToolExecution(string, bool, time.Duration)  {}
func (nopMetrics) RecordPublish(string)                             {}
func (nopMetrics) RecordRetry()                                     {}
func (nopMetrics) SetDegradedMode(bool)                             {}
func (nopMetrics) RecordOutage()                                    {}
func (nopMetrics) RecordRecovery()                                  {}
func (nopMetrics) SetGoalCounts(map[string]int)                     {}
func (nopMetrics) SetWorkingMemory(int, float64)                    {}
func (nopMetrics) SetEpisodes(int)                                  {}
func (nopMetrics) RecordConsolidation(bool)                         {}

// Engine owns one agent and everything it works against.
type Engine struct {
	cfg     *config.Config
	logger  logger.Logger
	store   storage.Storage
	metrics MetricsRecorder
	now     func() time.Time

	nodeID      string
	fileRoot    string
	extraTools  []tool.Tool
	redisClient redis.UniversalClient
	ownsRedis   bool
	bus         eventbus.Bus
	ownsBus     bool
	publisher   *eventbus.Publisher

	graph        *kg.Graph
	items        *vsa.ItemMemory
	working      *memory.WorkingMemory
	episodes     *memory.EpisodicStore
	consolidator *memory.Consolidator
	goals        *goal.Manager
	tools        *tool.Registry
	agent        *agent.Agent

	// cycleMu serializes cycles, consolidation and snapshots.
	cycleMu sync.Mutex

	cfgMu      sync.RWMutex
	hot        config.HotReloadableConfig
	thresholds agent.Thresholds

	lifecycleMu sync.Mutex
	state       atomic.Int32
	startedAt   time.Time
	runCancel   context.CancelFunc
	runDone     chan struct{}
}

// New builds an engine from cfg. A nil store keeps everything in memory.
func New(cfg *config.Config, log logger.Logger, store storage.Storage, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: config is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if store == nil {
		store = memstore.NewMemoryStorage()
	}

	e := &Engine{
		cfg:        cfg,
		logger:     log.Named("engine"),
		store:      store,
		metrics:    nopMetrics{},
		now:        time.Now,
		hot:        config.ExtractHotReloadable(cfg),
		thresholds: agent.ThresholdsFromConfig(cfg.Agent, cfg.Memory),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.nodeID == "" {
		e.nodeID = defaultNodeID()
	}

	if err := e.initBus(); err != nil {
		return nil, err
	}
	publisher, err := eventbus.NewPublisher(e.nodeID, e.bus, eventbus.DefaultRetryConfig(), e.metrics)
	if err != nil {
		e.closeBus()
		return nil, fmt.Errorf("engine: event publisher: %w", err)
	}
	e.publisher = publisher

	e.graph = kg.New()
	e.items = vsa.NewItemMemory(vsa.NewSpace(cfg.Vector.Dimension, cfg.Vector.Seed), e.graph)
	e.working = memory.NewWorkingMemory(cfg.Memory.WorkingCapacity)
	e.episodes = memory.NewEpisodicStore(&cfg.Memory, e.items, store, log.Named("episodes"))
	e.consolidator = memory.NewConsolidator(e.working, e.episodes,
		cfg.Memory.ConsolidateAt, cfg.Memory.ConsolidateEvery, log.Named("consolidator"),
		memory.WithRetention(agent.RecencyEntries))
	e.goals = goal.NewManager(e.graph, store, log.Named("goals"))

	e.tools = tool.NewRegistry(tool.WithObserver(e.metrics), tool.WithLogger(log.Named("tools")))
	if err := builtin.Register(e.tools, builtin.Deps{
		Graph:    e.graph,
		Items:    e.items,
		Episodes: e.episodes,
		Root:     e.fileRoot,
	}); err != nil {
		e.closeBus()
		return nil, fmt.Errorf("engine: register builtin tools: %w", err)
	}
	for _, t := range e.extraTools {
		if err := e.tools.Register(t); err != nil {
			e.closeBus()
			return nil, fmt.Errorf("engine: register tool: %w", err)
		}
	}

	return e, nil
}

func (e *Engine) initBus() error {
	if e.bus != nil {
		return nil
	}
	switch e.cfg.EventBus.Type {
	case "redis":
		if e.redisClient == nil {
			e.redisClient = redis.NewClient(&redis.Options{
				Addr:     e.cfg.EventBus.Redis.Address,
				Password: e.cfg.EventBus.Redis.Password,
				DB:       e.cfg.EventBus.Redis.DB,
			})
			e.ownsRedis = true
		}
		e.bus = eventbus.NewRedisBus(e.redisClient, e.cfg.EventBus.Redis.ChannelPrefix)
	case "", "memory":
		e.bus = eventbus.NewMemoryBus()
	default:
		return fmt.Errorf("engine: unsupported event bus type %q", e.cfg.EventBus.Type)
	}
	e.ownsBus = true
	return nil
}

func (e *Engine) closeBus() {
	if e.ownsBus && e.bus != nil {
		if err := e.bus.Close(); err != nil {
			e.logger.Warn("failed to close event bus", "error", err)
		}
	}
	if e.ownsRedis && e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			e.logger.Warn("failed to close redis client", "error", err)
		}
	}
}

func defaultNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "hyperagent"
	}
	return host + "-" + uuid.NewString()[:8]
}

// Start restores persisted state, builds the agent and, when configured,
// starts the background cycle loop.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if engineState(e.state.Load()) != stateIdle {
		return fmt.Errorf("engine is already %s", engineState(e.state.Load()))
	}

	if err := e.restoreSnapshot(ctx); err != nil {
		e.state.Store(int32(stateError))
		return err
	}
	if err := e.goals.Load(ctx); err != nil {
		e.state.Store(int32(stateError))
		return fmt.Errorf("engine: load goals: %w", err)
	}
	if err := e.episodes.Start(ctx); err != nil {
		e.state.Store(int32(stateError))
		return fmt.Errorf("engine: start episodic memory: %w", err)
	}

	last, err := e.lastCycle(ctx)
	if err != nil {
		e.state.Store(int32(stateError))
		return err
	}
	a, err := agent.New(agent.Deps{
		Graph:    e.graph,
		Vectors:  e.items,
		Working:  e.working,
		Episodes: e.episodes,
		Goals:    e.goals,
		Tools:    e.tools,
	},
		agent.WithThresholds(e.currentThresholds()),
		agent.WithLogger(e.logger.Named("agent")),
		agent.WithProvenance(&provenanceRecorder{store: e.store, now: e.now}),
		agent.WithObserver(e.metrics),
		agent.WithStartCycle(last),
		agent.WithClock(e.now),
	)
	if err != nil {
		e.state.Store(int32(stateError))
		return fmt.Errorf("engine: build agent: %w", err)
	}
	e.agent = a

	e.startedAt = e.now()
	e.state.Store(int32(stateRunning))
	e.refreshGauges()

	symbols, triples := e.graph.Stats()
	e.logger.InfoContext(ctx, "engine started",
		"node_id", e.nodeID,
		"resume_cycle", last,
		"goals", len(e.goals.List()),
		"episodes", e.episodes.Len(),
		"symbols", symbols,
		"triples", triples,
	)

	if e.cfg.Runner.Enabled {
		runCtx, cancel := context.WithCancel(context.Background())
		e.runCancel = cancel
		e.runDone = make(chan struct{})
		go e.runLoop(runCtx, e.runDone)
	}
	return nil
}

// Stop halts the cycle loop, saves the graph snapshot and releases the bus.
func (e *Engine) Stop(ctx context.Context) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if engineState(e.state.Load()) != stateRunning {
		return nil
	}

	if e.runCancel != nil {
		e.runCancel()
		select {
		case <-e.runDone:
		case <-ctx.Done():
			return fmt.Errorf("engine: waiting for cycle loop: %w", ctx.Err())
		}
		e.runCancel = nil
	}

	e.cycleMu.Lock()
	e.state.Store(int32(stateStopped))
	e.cycleMu.Unlock()

	var errs []error
	if err := e.saveSnapshot(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.episodes.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("engine: stop episodic memory: %w", err))
	}
	e.closeBus()

	e.logger.InfoContext(ctx, "engine stopped", "last_cycle", e.agent.LastCycle())
	return errors.Join(errs...)
}

func (e *Engine) restoreSnapshot(ctx context.Context) error {
	snap, err := e.store.LoadSnapshot(ctx)
	if err != nil {
		var nf *storage.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		return fmt.Errorf("engine: load graph snapshot: %w", err)
	}
	if err := e.graph.Restore(*snap); err != nil {
		return fmt.Errorf("engine: restore graph snapshot: %w", err)
	}
	return nil
}

func (e *Engine) saveSnapshot(ctx context.Context) error {
	snap := e.graph.Snapshot()
	if err := e.store.SaveSnapshot(ctx, &snap); err != nil {
		return fmt.Errorf("engine: save graph snapshot: %w", err)
	}
	return nil
}

func (e *Engine) lastCycle(ctx context.Context) (uint64, error) {
	recs, err := e.store.ListCycles(ctx, 1)
	if err != nil {
		return 0, fmt.Errorf("engine: read cycle history: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	return recs[0].Cycle, nil
}

func (e *Engine) running() bool {
	return engineState(e.state.Load()) == stateRunning
}

// IsHealthy returns true if the engine is running.
func (e *Engine) IsHealthy() bool {
	return e.running()
}

// IsReady returns true if the engine is running and its event bus is reachable.
func (e *Engine) IsReady() bool {
	return e.running() && e.bus.Healthy()
}

// EngineStatus represents the engine's current status.
type EngineStatus struct {
	State         string         `json:"state"`
	Uptime        string         `json:"uptime,omitempty"`
	Version       string         `json:"version,omitempty"`
	NodeID        string         `json:"node_id"`
	Cycle         uint64         `json:"cycle"`
	Runner        bool           `json:"runner"`
	Goals         map[string]int `json:"goals"`
	Working       WorkingStatus  `json:"working_memory"`
	Episodes      int            `json:"episodes"`
	Symbols       int            `json:"symbols"`
	Triples       int            `json:"triples"`
	Tools         []string       `json:"tools"`
	EventBus      string         `json:"event_bus"`
	EventDegraded bool           `json:"event_bus_degraded"`
}

// WorkingStatus summarizes working memory.
type WorkingStatus struct {
	Entries  int     `json:"entries"`
	Capacity int     `json:"capacity"`
	Fill     float64 `json:"fill"`
}

// GetStatus returns detailed engine status.
func (e *Engine) GetStatus() *EngineStatus {
	state := engineState(e.state.Load())
	status := &EngineStatus{
		State:         state.String(),
		Version:       e.cfg.App.Version,
		NodeID:        e.nodeID,
		Runner:        e.cfg.Runner.Enabled,
		Goals:         e.goalCounts(),
		Episodes:      e.episodes.Len(),
		EventBus:      e.cfg.EventBus.Type,
		EventDegraded: e.publisher.Degraded(),
		Working: WorkingStatus{
			Entries:  e.working.Len(),
			Capacity: e.working.Capacity(),
			Fill:     e.working.FillRatio(),
		},
	}
	if status.EventBus == "" {
		status.EventBus = "memory"
	}
	if state == stateRunning {
		status.Uptime = e.now().Sub(e.startedAt).Truncate(time.Second).String()
		status.Cycle = e.agent.LastCycle()
	}
	status.Symbols, status.Triples = e.graph.Stats()
	for _, sig := range e.tools.Signatures() {
		status.Tools = append(status.Tools, sig.Name)
	}
	return status
}

func (e *Engine) goalCounts() map[string]int {
	counts := e.goals.Counts()
	out := make(map[string]int, len(counts))
	for s, n := range counts {
		out[string(s)] = n
	}
	return out
}

func (e *Engine) refreshGauges() {
	e.metrics.SetGoalCounts(e.goalCounts())
	e.metrics.SetWorkingMemory(e.working.Len(), e.working.FillRatio())
	e.metrics.SetEpisodes(e.episodes.Len())
}

// ApplyConfig applies the hot-reloadable part of cfg: the log level and the
// agent thresholds. Everything else needs a restart.
func (e *Engine) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	next := config.ExtractHotReloadable(cfg)

	e.cfgMu.Lock()
	if !e.hot.Changed(next) {
		e.cfgMu.Unlock()
		return
	}
	levelChanged := e.hot.LogLevel != next.LogLevel
	e.hot = next
	e.thresholds = agent.ThresholdsFromConfig(cfg.Agent, cfg.Memory)
	th := e.thresholds
	e.cfgMu.Unlock()

	if levelChanged {
		e.logger.SetLevel(logger.ParseLevel(next.LogLevel))
	}
	if a := e.currentAgent(); a != nil {
		a.SetThresholds(th)
	}
	e.logger.Info("configuration reloaded", "log_level", next.LogLevel)
}

func (e *Engine) currentThresholds() agent.Thresholds {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.thresholds
}

func (e *Engine) currentAgent() *agent.Agent {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()
	return e.agent
}
