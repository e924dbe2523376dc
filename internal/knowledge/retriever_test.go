package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine returns scripted vectors so similarity is fully controlled.
type fakeEngine struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 1}, nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return 2 }
func (f *fakeEngine) Name() string    { return "fake" }

func docText(q, a string) string {
	return "Question: " + q + "\n\nAnswer: " + a
}

func TestIndexAndRetrieve(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{vectors: map[string][]float32{
		docText("what is spacetime", "a fabric"):  {1, 0},
		docText("how do wormholes work", "holes"): {0.9, 0.1},
		"tell me about spacetime":                 {1, 0},
	}}

	r, err := NewRetriever("", engine)
	require.NoError(t, err)

	docs := []Document{
		{ID: "rel_0_abc", Text: docText("what is spacetime", "a fabric"), Topic: "relativity", Source: "rel.yaml"},
		{ID: "rel_1_def", Text: docText("how do wormholes work", "holes"), Topic: "relativity", Source: "rel.yaml"},
	}
	n, err := r.IndexDocuments(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := r.Retrieve(ctx, "tell me about spacetime", RetrieveOptions{})
	require.NoError(t, err)
	assert.Contains(t, out, "[Reference 1 - relativity]")
	assert.Contains(t, out, "a fabric")
}

func TestIndexIdempotence(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{vectors: map[string][]float32{}}
	r, err := NewRetriever("", engine)
	require.NoError(t, err)

	docs := []Document{
		{ID: "a_0_111111111111", Text: docText("q1", "a1"), Topic: "general"},
		{ID: "a_1_222222222222", Text: docText("q2", "a2"), Topic: "general"},
	}

	n, err := r.IndexDocuments(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same batch again: nothing new, count unchanged
	n, err = r.IndexDocuments(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, r.GetStats().Documents)
}

func TestIndexIdempotenceAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	docs := []Document{
		{ID: "a_0_111111111111", Text: docText("q1", "a1"), Topic: "relativity"},
		{ID: "a_1_222222222222", Text: docText("q2", "a2"), Topic: "cosmology"},
	}

	first, err := NewRetriever(dir, &fakeEngine{})
	require.NoError(t, err)
	n, err := first.IndexDocuments(ctx, docs)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// A fresh instance over the same persist dir sees the stored copies:
	// nothing is re-embedded, nothing counts as new.
	engine := &fakeEngine{}
	second, err := NewRetriever(dir, engine)
	require.NoError(t, err)
	n, err = second.IndexDocuments(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, engine.calls, "already-persisted documents must not be re-embedded")

	stats := second.GetStats()
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, []string{"cosmology", "relativity"}, stats.Topics)
}

func TestRetrieveCeilingFiltersDissimilar(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{vectors: map[string][]float32{
		"near": {1, 0},
		"far":  {-1, 0},
		"q":    {1, 0},
	}}
	r, err := NewRetriever("", engine)
	require.NoError(t, err)

	_, err = r.IndexDocuments(ctx, []Document{
		{ID: "n_0_x", Text: "near", Topic: "general"},
		{ID: "f_0_y", Text: "far", Topic: "general"},
	})
	require.NoError(t, err)

	out, err := r.Retrieve(ctx, "q", RetrieveOptions{NResults: 2})
	require.NoError(t, err)
	assert.Contains(t, out, "near")
	assert.NotContains(t, out, "far")
	// Only one survivor, so no separator
	assert.NotContains(t, out, "---")
}

func TestRetrieveEmptyIndex(t *testing.T) {
	r, err := NewRetriever("", &fakeEngine{})
	require.NoError(t, err)

	out, err := r.Retrieve(context.Background(), "anything", RetrieveOptions{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRetrieveTopicFilter(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{vectors: map[string][]float32{
		"qm doc":  {1, 0},
		"rel doc": {1, 0},
		"query":   {1, 0},
	}}
	r, err := NewRetriever("", engine)
	require.NoError(t, err)

	_, err = r.IndexDocuments(ctx, []Document{
		{ID: "qm_0_a", Text: "qm doc", Topic: "quantum_mechanics"},
		{ID: "rel_0_b", Text: "rel doc", Topic: "relativity"},
	})
	require.NoError(t, err)

	out, err := r.Retrieve(ctx, "query", RetrieveOptions{NResults: 2, Topic: "relativity"})
	require.NoError(t, err)
	assert.Contains(t, out, "rel doc")
	assert.NotContains(t, out, "qm doc")
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	r, err := NewRetriever("", &fakeEngine{})
	require.NoError(t, err)

	_, err = r.IndexDocuments(ctx, []Document{{ID: "x_0_z", Text: "doc", Topic: "general"}})
	require.NoError(t, err)
	require.Equal(t, 1, r.GetStats().Documents)

	require.NoError(t, r.Clear())
	assert.Equal(t, 0, r.GetStats().Documents)

	out, err := r.Retrieve(ctx, "doc", RetrieveOptions{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStatsTopics(t *testing.T) {
	ctx := context.Background()
	r, err := NewRetriever("", &fakeEngine{})
	require.NoError(t, err)

	_, err = r.IndexDocuments(ctx, []Document{
		{ID: "a_0_1", Text: "d1", Topic: "relativity"},
		{ID: "b_0_2", Text: "d2", Topic: "cosmology"},
	})
	require.NoError(t, err)

	stats := r.GetStats()
	assert.Equal(t, []string{"cosmology", "relativity"}, stats.Topics)
	assert.Equal(t, "fake", stats.Engine)
	assert.Equal(t, 2, stats.Dimensions)
}

func TestRetrieveMultipleBlocksJoined(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{vectors: map[string][]float32{
		"doc one": {1, 0},
		"doc two": {0.95, 0.05},
		"q":       {1, 0},
	}}
	r, err := NewRetriever("", engine)
	require.NoError(t, err)

	_, err = r.IndexDocuments(ctx, []Document{
		{ID: "a_0_1", Text: "doc one", Topic: "general"},
		{ID: "b_0_2", Text: "doc two", Topic: "general"},
	})
	require.NoError(t, err)

	out, err := r.Retrieve(ctx, "q", RetrieveOptions{NResults: 2})
	require.NoError(t, err)

	parts := strings.Split(out, "\n\n---\n\n")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[0], "[Reference 1 - "))
	assert.True(t, strings.HasPrefix(parts[1], "[Reference 2 - "))
}
