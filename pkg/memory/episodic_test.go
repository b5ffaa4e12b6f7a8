package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goclaw/hyperagent/config"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/vsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEpisodeStore struct {
	mu       sync.Mutex
	episodes map[EntryID]*Episode
	saves    int
}

func newFakeEpisodeStore() *fakeEpisodeStore {
	return &fakeEpisodeStore{episodes: make(map[EntryID]*Episode)}
}

func (f *fakeEpisodeStore) SaveEpisode(ctx context.Context, ep *Episode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.episodes[ep.ID] = cloneEpisode(ep)
	return nil
}

func (f *fakeEpisodeStore) DeleteEpisode(ctx context.Context, id EntryID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.episodes, id)
	return nil
}

func (f *fakeEpisodeStore) ListEpisodes(ctx context.Context) ([]*Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Episode, 0, len(f.episodes))
	for _, ep := range f.episodes {
		out = append(out, cloneEpisode(ep))
	}
	return out, nil
}

func testMemoryConfig() *config.MemoryConfig {
	return &config.MemoryConfig{
		WorkingCapacity:  8,
		RecallTopK:       3,
		VectorWeight:     0.7,
		BM25Weight:       0.3,
		BM25:             config.BM25Config{K1: 1.5, B: 0.75},
		ForgetThreshold:  0.1,
		DefaultStability: 24,
	}
}

func newTestEpisodicStore(t *testing.T, store EpisodeStore) (*EpisodicStore, *vsa.Space) {
	t.Helper()
	space := vsa.NewSpace(vsa.DefaultDimension, 1)
	return NewEpisodicStore(testMemoryConfig(), space, store, nil), space
}

func TestEpisodicStore_AddAndRecall(t *testing.T) {
	ctx := context.Background()
	es, space := newTestEpisodicStore(t, nil)

	moons, err := es.Add(ctx, Episode{Summary: "Tool result (kg_query): europa orbits jupiter", Symbols: []kg.SymbolID{1}})
	require.NoError(t, err)
	_, err = es.Add(ctx, Episode{Summary: "Decision: use file_read for goal 7"})
	require.NoError(t, err)

	assert.NotEmpty(t, moons.ID)
	assert.Equal(t, 1.0, moons.Strength)
	assert.Equal(t, 2, es.Len())

	q, err := space.Encode("jupiter orbit")
	require.NoError(t, err)
	got, err := es.Recall(ctx, "jupiter orbit", q, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, moons.ID, got[0].ID)
}

func TestEpisodicStore_RejectsEmptySummary(t *testing.T) {
	es, _ := newTestEpisodicStore(t, nil)
	_, err := es.Add(context.Background(), Episode{Summary: "  "})
	assert.ErrorIs(t, err, ErrEmptyEpisode)
}

func TestEpisodicStore_RecallBoostsStrength(t *testing.T) {
	ctx := context.Background()
	store := newFakeEpisodeStore()
	es, _ := newTestEpisodicStore(t, store)

	ep, err := es.Add(ctx, Episode{Summary: "saturn rings ice"})
	require.NoError(t, err)

	es.mu.Lock()
	es.episodes[ep.ID].Strength = 0.4
	es.mu.Unlock()

	_, err = es.Recall(ctx, "saturn", vsa.Vector{}, 5)
	require.NoError(t, err)

	got, err := es.Get(ep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Strength)
	assert.Equal(t, 36.0, got.Stability)
	assert.Equal(t, 1.0, store.episodes[ep.ID].Strength, "boost is persisted")
}

func TestEpisodicStore_LoadFromStore(t *testing.T) {
	ctx := context.Background()
	store := newFakeEpisodeStore()

	first, _ := newTestEpisodicStore(t, store)
	_, err := first.Add(ctx, Episode{Summary: "europa has an ocean"})
	require.NoError(t, err)

	second, _ := newTestEpisodicStore(t, store)
	require.NoError(t, second.Start(ctx))
	defer second.Stop(ctx) //nolint:errcheck

	assert.Equal(t, 1, second.Len())
	got, err := second.Recall(ctx, "ocean", vsa.Vector{}, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	assert.Error(t, second.Start(ctx), "double start")
}

func TestEpisodicStore_DecayForgetsWeakEpisodes(t *testing.T) {
	ctx := context.Background()
	store := newFakeEpisodeStore()
	es, _ := newTestEpisodicStore(t, store)

	weak, err := es.Add(ctx, Episode{Summary: "old stale memory"})
	require.NoError(t, err)
	_, err = es.Add(ctx, Episode{Summary: "fresh memory"})
	require.NoError(t, err)

	es.mu.Lock()
	es.episodes[weak.ID].LastReview = time.Now().Add(-30 * 24 * time.Hour)
	es.mu.Unlock()

	n, err := es.Decay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, es.Len())
	_, err = es.Get(weak.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotContains(t, store.episodes, weak.ID)
}

func TestEpisodicStore_ListAndStats(t *testing.T) {
	ctx := context.Background()
	es, _ := newTestEpisodicStore(t, nil)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, s := range []string{"first episode", "second episode", "third episode"} {
		_, err := es.Add(ctx, Episode{Summary: s, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	list := es.List(2)
	require.Len(t, list, 2)
	assert.Equal(t, "third episode", list[0].Summary)
	assert.Equal(t, "second episode", list[1].Summary)

	st := es.Stats()
	assert.Equal(t, 3, st.Episodes)
	assert.InDelta(t, 1.0, st.AverageStrength, 1e-9)
}
