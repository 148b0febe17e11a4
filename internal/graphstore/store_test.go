package graphstore

import (
	"testing"

	"github.com/dominikbraun/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreVertexLifecycle(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore[string, string]()

	require.NoError(t, store.AddVertex("a", "a", graph.VertexProperties{}))
	assert.ErrorIs(t, store.AddVertex("a", "a", graph.VertexProperties{}), graph.ErrVertexAlreadyExists)

	count, err := store.VertexCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	v, _, err := store.Vertex("a")
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	_, _, err = store.Vertex("missing")
	assert.ErrorIs(t, err, graph.ErrVertexNotFound)
}

func TestMemoryStoreEdgesAndCycles(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore[string, string]()

	for _, v := range []string{"start", "stage-1", "stage-2", "end"} {
		require.NoError(t, store.AddVertex(v, v, graph.VertexProperties{}))
	}

	require.NoError(t, store.AddEdge("start", "stage-1", graph.Edge[string]{Source: "start", Target: "stage-1"}))
	require.NoError(t, store.AddEdge("stage-1", "stage-2", graph.Edge[string]{Source: "stage-1", Target: "stage-2"}))
	require.NoError(t, store.AddEdge("stage-2", "end", graph.Edge[string]{Source: "stage-2", Target: "end"}))

	edges, err := store.ListEdges()
	require.NoError(t, err)
	assert.Len(t, edges, 3)

	_, err = store.Edge("start", "stage-1")
	assert.NoError(t, err)

	_, err = store.Edge("stage-2", "start")
	assert.ErrorIs(t, err, graph.ErrEdgeNotFound)

	cycles, err := store.CreatesCycle("end", "start")
	require.NoError(t, err)
	assert.True(t, cycles, "start already reaches end through the chain, so an edge from end back to start would close a cycle")

	cycles, err = store.CreatesCycle("stage-2", "stage-1")
	require.NoError(t, err)
	assert.True(t, cycles, "stage-1 already reaches stage-2, so the reverse edge would close a cycle")
}

func TestMemoryStorePredecessorsAndSuccessors(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore[string, string]()

	for _, v := range []string{"start", "stage-1", "stage-2", "end"} {
		require.NoError(t, store.AddVertex(v, v, graph.VertexProperties{}))
	}

	require.NoError(t, store.AddEdge("start", "stage-1", graph.Edge[string]{Source: "start", Target: "stage-1"}))
	require.NoError(t, store.AddEdge("stage-1", "stage-2", graph.Edge[string]{Source: "stage-1", Target: "stage-2"}))
	require.NoError(t, store.AddEdge("stage-2", "end", graph.Edge[string]{Source: "stage-2", Target: "end"}))

	preds, err := store.Predecessors("stage-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"stage-1"}, preds)

	succs, err := store.Successors("stage-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"stage-2"}, succs)

	preds, err = store.Predecessors("start")
	require.NoError(t, err)
	assert.Empty(t, preds)

	_, err = store.Predecessors("missing")
	assert.ErrorIs(t, err, graph.ErrVertexNotFound)

	_, err = store.Successors("missing")
	assert.ErrorIs(t, err, graph.ErrVertexNotFound)
}

func TestMemoryStoreRemoveVertexRequiresNoEdges(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore[string, string]()

	require.NoError(t, store.AddVertex("a", "a", graph.VertexProperties{}))
	require.NoError(t, store.AddVertex("b", "b", graph.VertexProperties{}))
	require.NoError(t, store.AddEdge("a", "b", graph.Edge[string]{Source: "a", Target: "b"}))

	err := store.RemoveVertex("a")
	assert.ErrorIs(t, err, graph.ErrVertexHasEdges)

	require.NoError(t, store.RemoveEdge("a", "b"))
	require.NoError(t, store.RemoveVertex("b"))

	_, _, err = store.Vertex("b")
	assert.ErrorIs(t, err, graph.ErrVertexNotFound)
}
