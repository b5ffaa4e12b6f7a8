package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goclaw/hyperagent/config"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/tool"
	"github.com/goclaw/hyperagent/pkg/vsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	graph    *kg.Graph
	items    *vsa.ItemMemory
	episodes *memory.EpisodicStore
	reg      *tool.Registry
	root     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := kg.New()
	for _, f := range [][3]string{
		{"dog", "is_a", "mammal"},
		{"mammal", "is_a", "animal"},
		{"dog", "has", "tail"},
	} {
		_, err := g.AssertLabels(f[0], f[1], f[2], 0.9)
		require.NoError(t, err)
	}
	_, err := g.Intern("goal:learn about dogs")
	require.NoError(t, err)

	items := vsa.NewItemMemory(vsa.NewSpace(1024, 7), g)
	episodes := memory.NewEpisodicStore(&config.MemoryConfig{
		RecallTopK:       3,
		VectorWeight:     0.7,
		BM25Weight:       0.3,
		BM25:             config.BM25Config{K1: 1.5, B: 0.75},
		ForgetThreshold:  0.1,
		DefaultStability: 24,
	}, items, nil, nil)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "dog_notes.txt"), []byte("A dog is a loyal mammal."), 0o600))

	reg := tool.NewRegistry()
	require.NoError(t, Register(reg, Deps{Graph: g, Items: items, Episodes: episodes, Root: root}))
	return &fixture{graph: g, items: items, episodes: episodes, reg: reg, root: root}
}

func (f *fixture) id(t *testing.T, label string) kg.SymbolID {
	t.Helper()
	id, ok := f.graph.Lookup(label)
	require.True(t, ok, label)
	return id
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	names := make([]string, 0)
	for _, sig := range f.reg.Signatures() {
		names = append(names, sig.Name)
	}
	assert.ElementsMatch(t, []string{
		tool.KGQuery, tool.KGMutate, tool.Reason, tool.GapAnalysis,
		tool.SimilaritySearch, tool.MemoryRecall, tool.FileRead,
	}, names)

	assert.Error(t, Register(tool.NewRegistry(), Deps{}))

	minimal := tool.NewRegistry()
	require.NoError(t, Register(minimal, Deps{Graph: kg.New()}))
	assert.Len(t, minimal.Signatures(), 4)
}

func TestSignatures_DescribeParams(t *testing.T) {
	f := newFixture(t)
	want := map[string][]string{
		tool.KGQuery:          {tool.ParamTarget},
		tool.KGMutate:         {tool.ParamSubject, tool.ParamPredicate, tool.ParamObject, tool.ParamConfidence},
		tool.Reason:           {tool.ParamExpression},
		tool.GapAnalysis:      {tool.ParamQuery},
		tool.SimilaritySearch: {tool.ParamTarget, tool.ParamQuery, tool.ParamK},
		tool.MemoryRecall:     {tool.ParamQuery, tool.ParamK},
		tool.FileRead:         {tool.ParamPath, tool.ParamQuery},
	}
	for _, sig := range f.reg.Signatures() {
		names := make([]string, 0, len(sig.Params))
		for name, desc := range sig.Params {
			assert.NotEmpty(t, desc, "%s.%s", sig.Name, name)
			names = append(names, name)
		}
		assert.ElementsMatch(t, want[sig.Name], names, sig.Name)
	}
}

func TestKGQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.reg.Execute(ctx, tool.KGQuery, tool.Input{tool.ParamTarget: f.id(t, "dog")})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, []kg.SymbolID{f.id(t, "mammal"), f.id(t, "tail")}, out.Symbols)
	assert.Contains(t, out.Text, "dog is_a mammal")

	out, err = f.reg.Execute(ctx, tool.KGQuery, tool.Input{tool.ParamTarget: "goal:learn about dogs"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Empty(t, out.Symbols)
	assert.Equal(t, "no facts about goal:learn about dogs", out.Text)

	_, err = f.reg.Execute(ctx, tool.KGQuery, tool.Input{tool.ParamTarget: kg.SymbolID(999)})
	assert.ErrorIs(t, err, kg.ErrUnknownSymbol)

	_, err = f.reg.Execute(ctx, tool.KGQuery, tool.Input{})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
}

func TestKGMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := tool.Input{
		tool.ParamSubject:   f.id(t, "tail"),
		tool.ParamPredicate: "related_to",
		tool.ParamObject:    "animal",
	}

	out, err := f.reg.Execute(ctx, tool.KGMutate, in)
	require.NoError(t, err)
	assert.Equal(t, []kg.SymbolID{f.id(t, "animal")}, out.Symbols)
	assert.Equal(t, "asserted tail related_to animal", out.Text)

	conf, ok := f.graph.Confidence(f.id(t, "tail"), f.id(t, "related_to"), f.id(t, "animal"))
	require.True(t, ok)
	assert.Equal(t, 0.6, conf)

	out, err = f.reg.Execute(ctx, tool.KGMutate, in)
	require.NoError(t, err)
	assert.Equal(t, "reinforced tail related_to animal", out.Text)

	_, err = f.reg.Execute(ctx, tool.KGMutate, tool.Input{tool.ParamSubject: "dog", tool.ParamObject: "tail"})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
}

func TestReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.reg.Execute(ctx, tool.Reason, tool.Input{tool.ParamExpression: "(and (is_a dog mammal) (has dog wings))"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Contains(t, out.Text, "verified 1/2 clauses")
	assert.Contains(t, out.Text, "derived: dog is_a animal")
	assert.Contains(t, out.Symbols, f.id(t, "animal"))

	conf, ok := f.graph.Confidence(f.id(t, "dog"), f.id(t, "is_a"), f.id(t, "animal"))
	require.True(t, ok)
	assert.InDelta(t, 0.81, conf, 1e-9)

	out, err = f.reg.Execute(ctx, tool.Reason, tool.Input{tool.ParamExpression: "(has cat whiskers)"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "verified 0/1 clauses", out.Text)

	_, err = f.reg.Execute(ctx, tool.Reason, tool.Input{tool.ParamExpression: "nonsense"})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
}

func TestParseExpression(t *testing.T) {
	cs, err := parseExpression("(and (is_a dog mammal) (has dog tail))")
	require.NoError(t, err)
	assert.Equal(t, []clause{{"is_a", "dog", "mammal"}, {"has", "dog", "tail"}}, cs)

	cs, err = parseExpression("(is_a dog mammal)")
	require.NoError(t, err)
	assert.Len(t, cs, 1)
}

func TestGapAnalysis(t *testing.T) {
	f := newFixture(t)

	out, err := f.reg.Execute(context.Background(), tool.GapAnalysis, tool.Input{tool.ParamQuery: "dogs and their tails and wings"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, []kg.SymbolID{f.id(t, "dog"), f.id(t, "tail")}, out.Symbols)
	assert.Equal(t, "missing: their, wing; sparse: tail", out.Text)

	_, err = f.reg.Execute(context.Background(), tool.GapAnalysis, tool.Input{})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
}

func TestSimilaritySearch(t *testing.T) {
	f := newFixture(t)
	_, err := f.graph.Intern("loyal dog")
	require.NoError(t, err)

	out, err := f.reg.Execute(context.Background(), tool.SimilaritySearch, tool.Input{tool.ParamTarget: f.id(t, "dog")})
	require.NoError(t, err)
	assert.True(t, out.Success)
	require.NotEmpty(t, out.Symbols)
	assert.Equal(t, f.id(t, "loyal dog"), out.Symbols[0])
	for _, id := range out.Symbols {
		assert.NotEqual(t, f.id(t, "dog"), id)
		assert.NotEqual(t, f.id(t, "goal:learn about dogs"), id)
	}
}

func TestMemoryRecall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.reg.Execute(ctx, tool.MemoryRecall, tool.Input{tool.ParamQuery: "dog"})
	require.NoError(t, err)
	assert.Equal(t, "no episodes recalled", out.Text)

	_, err = f.episodes.Add(ctx, memory.Episode{
		Summary: "kg_query on dog found mammal",
		Symbols: []kg.SymbolID{f.id(t, "dog"), f.id(t, "mammal")},
	})
	require.NoError(t, err)

	out, err = f.reg.Execute(ctx, tool.MemoryRecall, tool.Input{tool.ParamQuery: "dog", tool.ParamK: 2})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, []kg.SymbolID{f.id(t, "dog"), f.id(t, "mammal")}, out.Symbols)
	assert.Equal(t, "kg_query on dog found mammal", out.Text)
}

func TestFileRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.reg.Execute(ctx, tool.FileRead, tool.Input{tool.ParamPath: "dog_notes.txt"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "A dog is a loyal mammal.", out.Text)
	assert.Equal(t, []kg.SymbolID{f.id(t, "dog"), f.id(t, "mammal")}, out.Symbols)

	out, err = f.reg.Execute(ctx, tool.FileRead, tool.Input{tool.ParamQuery: "notes about dogs"})
	require.NoError(t, err)
	assert.True(t, out.Success)

	out, err = f.reg.Execute(ctx, tool.FileRead, tool.Input{tool.ParamQuery: "cats"})
	require.NoError(t, err)
	assert.False(t, out.Success)

	_, err = f.reg.Execute(ctx, tool.FileRead, tool.Input{tool.ParamPath: "../outside.txt"})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
}
