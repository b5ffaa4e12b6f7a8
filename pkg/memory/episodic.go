package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goclaw/hyperagent/config"
	"github.com/goclaw/hyperagent/pkg/vsa"
	"github.com/google/uuid"
)

// Encoder turns text into hypervectors. *vsa.Space satisfies it.
type Encoder interface {
	Encode(text string) (vsa.Vector, error)
	Dimension() int
}

// EpisodeStore persists episodes. A nil store keeps episodes in process only.
type EpisodeStore interface {
	SaveEpisode(ctx context.Context, ep *Episode) error
	DeleteEpisode(ctx context.Context, id EntryID) error
	ListEpisodes(ctx context.Context) ([]*Episode, error)
}

// storeLogger is the minimal logger interface used by the episodic store.
type storeLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopStoreLogger struct{}

func (nopStoreLogger) Debug(msg string, args ...any) {}
func (nopStoreLogger) Info(msg string, args ...any)  {}
func (nopStoreLogger) Warn(msg string, args ...any)  {}
func (nopStoreLogger) Error(msg string, args ...any) {}

// EpisodicStore indexes episodes for hybrid recall and applies strength decay.
type EpisodicStore struct {
	mu sync.RWMutex

	cfg      *config.MemoryConfig
	encoder  Encoder
	store    EpisodeStore
	vector   *VectorIndex
	bm25     *BM25Index
	hybrid   *HybridRetriever
	decay    *DecayManager
	logger   storeLogger
	episodes map[EntryID]*Episode
	started  bool
}

// NewEpisodicStore creates an episodic store. store and logger may be nil.
func NewEpisodicStore(cfg *config.MemoryConfig, encoder Encoder, store EpisodeStore, logger storeLogger) *EpisodicStore {
	if logger == nil {
		logger = nopStoreLogger{}
	}
	vectorIdx := NewVectorIndex(encoder.Dimension())
	bm25Idx := NewBM25Index(cfg.BM25.K1, cfg.BM25.B)

	return &EpisodicStore{
		cfg:      cfg,
		encoder:  encoder,
		store:    store,
		vector:   vectorIdx,
		bm25:     bm25Idx,
		hybrid:   NewHybridRetriever(vectorIdx, bm25Idx, cfg.VectorWeight, cfg.BM25Weight, cfg.MinScore),
		decay:    NewDecayManager(cfg.ForgetThreshold, cfg.DefaultStability, cfg.DecayInterval),
		logger:   logger,
		episodes: make(map[EntryID]*Episode),
	}
}

// Start loads persisted episodes and starts the decay loop.
func (s *EpisodicStore) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("memory: episodic store already started")
	}
	s.started = true
	s.mu.Unlock()

	if err := s.Load(ctx); err != nil {
		return err
	}
	s.logger.Info("episodic memory started",
		"episodes", s.Len(),
		"decay_interval", s.cfg.DecayInterval,
	)
	s.decay.Start(context.WithoutCancel(ctx), func(ctx context.Context) error {
		_, err := s.Decay(ctx)
		return err
	})
	return nil
}

// Stop halts the decay loop.
func (s *EpisodicStore) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.decay.Stop()
	s.started = false
	return nil
}

// Load replaces the in-process indexes with the persisted episodes.
func (s *EpisodicStore) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	eps, err := s.store.ListEpisodes(ctx)
	if err != nil {
		return fmt.Errorf("memory: load episodes: %w", err)
	}
	for _, ep := range eps {
		if err := s.index(ep); err != nil {
			s.logger.Warn("skipping persisted episode", "episode_id", ep.ID, "error", err)
		}
	}
	return nil
}

// Add stores a new episode. ID, timestamps and decay state are assigned here;
// a zero Vector is filled by encoding the summary.
func (s *EpisodicStore) Add(ctx context.Context, ep Episode) (*Episode, error) {
	ep.Summary = strings.TrimSpace(ep.Summary)
	if ep.Summary == "" {
		return nil, ErrEmptyEpisode
	}
	if ep.ID == "" {
		ep.ID = EntryID(uuid.NewString())
	}
	if ep.Vector.IsZero() {
		v, err := s.encoder.Encode(ep.Summary)
		if err != nil {
			return nil, fmt.Errorf("memory: encode episode: %w", err)
		}
		ep.Vector = v
	}
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = time.Now()
	}
	s.decay.InitEpisode(&ep)

	stored := cloneEpisode(&ep)
	if s.store != nil {
		if err := s.store.SaveEpisode(ctx, stored); err != nil {
			return nil, fmt.Errorf("memory: save episode: %w", err)
		}
	}
	if err := s.index(stored); err != nil {
		return nil, err
	}
	return cloneEpisode(stored), nil
}

func (s *EpisodicStore) index(ep *Episode) error {
	if err := s.vector.Add(ep.ID, ep.Vector); err != nil {
		return err
	}
	s.bm25.Index(ep.ID, ep.Summary)
	s.mu.Lock()
	s.episodes[ep.ID] = ep
	s.mu.Unlock()
	return nil
}

// Recall returns up to k episodes relevant to text and vec, most relevant
// first. Recalled episodes have their strength boosted.
func (s *EpisodicStore) Recall(ctx context.Context, text string, vec vsa.Vector, k int) ([]Episode, error) {
	results, err := s.Search(ctx, Query{Text: text, Vector: vec, TopK: k})
	if err != nil {
		return nil, err
	}
	out := make([]Episode, len(results))
	for i, r := range results {
		out[i] = *r.Episode
	}
	return out, nil
}

// Search runs a recall query and returns scored copies of the matches.
func (s *EpisodicStore) Search(ctx context.Context, q Query) ([]RecallResult, error) {
	if q.TopK <= 0 {
		q.TopK = s.cfg.RecallTopK
	}
	fused, err := s.hybrid.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}

	results := make([]RecallResult, 0, len(fused))
	for _, f := range fused {
		s.mu.Lock()
		ep, ok := s.episodes[f.id]
		if ok {
			s.decay.BoostStrength(ep)
			ep = cloneEpisode(ep)
		}
		s.mu.Unlock()
		if !ok {
			continue
		}
		if s.store != nil {
			if err := s.store.SaveEpisode(ctx, ep); err != nil {
				s.logger.Warn("failed to persist episode strength", "episode_id", ep.ID, "error", err)
			}
		}
		results = append(results, RecallResult{Episode: ep, Score: f.score})
	}
	return results, nil
}

// Get returns a copy of the episode with id.
func (s *EpisodicStore) Get(id EntryID) (*Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.episodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneEpisode(ep), nil
}

// List returns up to limit episodes, newest first. A non-positive limit returns all.
func (s *EpisodicStore) List(limit int) []*Episode {
	s.mu.RLock()
	out := make([]*Episode, 0, len(s.episodes))
	for _, ep := range s.episodes {
		out = append(out, cloneEpisode(ep))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Len returns the number of episodes.
func (s *EpisodicStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.episodes)
}

// Stats summarizes the store.
func (s *EpisodicStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Episodes: len(s.episodes)}
	if st.Episodes == 0 {
		return st
	}
	total := 0.0
	for _, ep := range s.episodes {
		total += ep.Strength
	}
	st.AverageStrength = total / float64(st.Episodes)
	return st
}

// Forget deletes episodes by id.
func (s *EpisodicStore) Forget(ctx context.Context, ids ...EntryID) error {
	for _, id := range ids {
		s.vector.Delete(id)
		s.bm25.Remove(id)
		s.mu.Lock()
		delete(s.episodes, id)
		s.mu.Unlock()
		if s.store != nil {
			if err := s.store.DeleteEpisode(ctx, id); err != nil {
				return fmt.Errorf("memory: delete episode %s: %w", id, err)
			}
		}
	}
	return nil
}

// Decay applies strength decay to every episode, forgets the ones that fell
// below the configured threshold and returns how many were forgotten.
func (s *EpisodicStore) Decay(ctx context.Context) (int, error) {
	s.mu.Lock()
	eps := make([]*Episode, 0, len(s.episodes))
	for _, ep := range s.episodes {
		eps = append(eps, ep)
	}
	updated, forgotten := s.decay.DecayEpisodes(eps)
	snapshot := make([]*Episode, len(updated))
	for i, ep := range updated {
		snapshot[i] = cloneEpisode(ep)
	}
	s.mu.Unlock()

	if s.store != nil {
		for _, ep := range snapshot {
			if err := s.store.SaveEpisode(ctx, ep); err != nil {
				s.logger.Warn("failed to update decayed episode", "episode_id", ep.ID, "error", err)
			}
		}
	}
	if len(forgotten) == 0 {
		return 0, nil
	}
	if err := s.Forget(ctx, forgotten...); err != nil {
		return 0, err
	}
	s.logger.Info("episodic decay forgot episodes", "count", len(forgotten))
	return len(forgotten), nil
}
