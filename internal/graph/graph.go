// Package graph models a workflow's job dependency structure: jobs are
// vertices and each `needs` entry is a directed edge from the prerequisite
// to the dependent job.
package graph

import (
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/kmorten/ciflow/internal/provider"
)

// ErrUnknownNeed reports a needs reference to a job that does not exist.
var ErrUnknownNeed = errors.New("needs references unknown job")

// Edge is a single prerequisite -> dependent relation.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// JobGraph holds the dependency graph for a single workflow.
type JobGraph struct {
	workflow   provider.Workflow
	dag        graph.Graph[string, string]
	dependents map[string][]string
}

// Build validates a workflow's needs declarations and constructs its job
// graph. Unknown references and dependency cycles are rejected.
func Build(wf provider.Workflow) (*JobGraph, error) {
	dag := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for _, job := range wf.Jobs {
		if err := dag.AddVertex(job.RawID); err != nil {
			return nil, errors.Wrapf(err, "add job %q", job.RawID)
		}
	}

	dependents := make(map[string][]string)
	for _, job := range wf.Jobs {
		for _, need := range job.Needs {
			if _, ok := wf.Job(need); !ok {
				return nil, errors.Wrapf(ErrUnknownNeed, "job %q needs %q", job.RawID, need)
			}
			err := dag.AddEdge(need, job.RawID)
			switch {
			case err == nil:
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return nil, errors.Errorf("dependency cycle introduced by %q needs %q", job.RawID, need)
			case errors.Is(err, graph.ErrEdgeAlreadyExists):
				continue
			default:
				return nil, errors.Wrapf(err, "add edge %s -> %s", need, job.RawID)
			}
			dependents[need] = append(dependents[need], job.RawID)
		}
	}
	for _, deps := range dependents {
		sort.Strings(deps)
	}

	return &JobGraph{workflow: wf, dag: dag, dependents: dependents}, nil
}

// TopoOrder returns the job IDs in a deterministic topological order, with
// ties broken lexicographically.
func (jg *JobGraph) TopoOrder() ([]string, error) {
	order, err := graph.StableTopologicalSort(jg.dag, func(a, b string) bool { return a < b })
	if err != nil {
		return nil, errors.Wrap(err, "topological sort")
	}
	return order, nil
}

// Dependents returns the jobs that directly need the given job.
func (jg *JobGraph) Dependents(id string) []string {
	return jg.dependents[id]
}

// Needs returns the direct prerequisites of the given job.
func (jg *JobGraph) Needs(id string) []string {
	job, ok := jg.workflow.Job(id)
	if !ok {
		return nil
	}
	return job.Needs
}

// Edges returns every prerequisite -> dependent relation, sorted.
func (jg *JobGraph) Edges() []Edge {
	edges := make([]Edge, 0)
	for from, tos := range jg.dependents {
		for _, to := range tos {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// Closure expands a set of selected job IDs with every transitive
// prerequisite, so that each selected job's needs remain satisfiable.
// The result preserves the workflow's job set semantics: it contains only
// IDs that exist in the workflow.
func Closure(wf provider.Workflow, selected map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(selected))
	var visit func(id string)
	visit = func(id string) {
		if _, ok := out[id]; ok {
			return
		}
		job, ok := wf.Job(id)
		if !ok {
			return
		}
		out[id] = struct{}{}
		for _, need := range job.Needs {
			visit(need)
		}
	}
	for id := range selected {
		visit(id)
	}
	return out
}
