package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorten/ciflow/internal/graph"
	"github.com/kmorten/ciflow/internal/provider"
)

func fanOutWorkflow() provider.Workflow {
	return provider.Workflow{
		Path: "ci.yml",
		Name: "CI",
		Jobs: []provider.Job{
			{RawID: "checkout", Name: "checkout"},
			{RawID: "nightly", Name: "nightly", Needs: []string{"checkout"}},
			{RawID: "stable", Name: "stable", Needs: []string{"checkout"}},
		},
	}
}

func TestBuildFanOut(t *testing.T) {
	t.Parallel()

	jg, err := graph.Build(fanOutWorkflow())
	require.NoError(t, err)

	order, err := jg.TopoOrder()
	require.NoError(t, err)
	require.Equal(t, []string{"checkout", "nightly", "stable"}, order)

	assert.Equal(t, []string{"nightly", "stable"}, jg.Dependents("checkout"))
	assert.Empty(t, jg.Dependents("stable"))
	assert.Equal(t, []string{"checkout"}, jg.Needs("nightly"))

	edges := jg.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, graph.Edge{From: "checkout", To: "nightly"}, edges[0])
	assert.Equal(t, graph.Edge{From: "checkout", To: "stable"}, edges[1])
}

func TestBuildUnknownNeed(t *testing.T) {
	t.Parallel()

	wf := provider.Workflow{
		Path: "ci.yml",
		Jobs: []provider.Job{
			{RawID: "test", Needs: []string{"missing"}},
		},
	}
	_, err := graph.Build(wf)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrUnknownNeed)
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestBuildCycle(t *testing.T) {
	t.Parallel()

	wf := provider.Workflow{
		Path: "ci.yml",
		Jobs: []provider.Job{
			{RawID: "a", Needs: []string{"b"}},
			{RawID: "b", Needs: []string{"a"}},
		},
	}
	_, err := graph.Build(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildDuplicateNeedTolerated(t *testing.T) {
	t.Parallel()

	wf := provider.Workflow{
		Path: "ci.yml",
		Jobs: []provider.Job{
			{RawID: "base"},
			{RawID: "top", Needs: []string{"base", "base"}},
		},
	}
	jg, err := graph.Build(wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"top"}, jg.Dependents("base"))
}

func TestTopoOrderDiamond(t *testing.T) {
	t.Parallel()

	wf := provider.Workflow{
		Path: "ci.yml",
		Jobs: []provider.Job{
			{RawID: "a"},
			{RawID: "b", Needs: []string{"a"}},
			{RawID: "c", Needs: []string{"a"}},
			{RawID: "d", Needs: []string{"b", "c"}},
		},
	}
	jg, err := graph.Build(wf)
	require.NoError(t, err)

	order, err := jg.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestClosure(t *testing.T) {
	t.Parallel()

	wf := provider.Workflow{
		Path: "ci.yml",
		Jobs: []provider.Job{
			{RawID: "a"},
			{RawID: "b", Needs: []string{"a"}},
			{RawID: "c", Needs: []string{"b"}},
			{RawID: "unrelated"},
		},
	}

	closure := graph.Closure(wf, map[string]struct{}{"c": {}})
	assert.Len(t, closure, 3)
	assert.Contains(t, closure, "a")
	assert.Contains(t, closure, "b")
	assert.Contains(t, closure, "c")
	assert.NotContains(t, closure, "unrelated")
}

func TestClosureIgnoresUnknownSelection(t *testing.T) {
	t.Parallel()

	wf := provider.Workflow{Jobs: []provider.Job{{RawID: "a"}}}
	closure := graph.Closure(wf, map[string]struct{}{"ghost": {}})
	assert.Empty(t, closure)
}
