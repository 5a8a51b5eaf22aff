// Package scheduler executes a workflow's job graph: jobs whose needs are
// satisfied run concurrently, a failed job marks every transitive dependent
// skipped, and already-running siblings are left to finish.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/kmorten/ciflow/internal/ctxlog"
	"github.com/kmorten/ciflow/internal/graph"
	"github.com/kmorten/ciflow/internal/provider"
	"github.com/kmorten/ciflow/internal/report"
)

// JobRunner executes the steps of a single job.
type JobRunner interface {
	RunJob(ctx context.Context, wf provider.Workflow, job provider.Job) report.JobResult
}

// Options configure job scheduling.
type Options struct {
	// MaxParallel bounds the number of jobs running at once. Zero or
	// negative means no bound.
	MaxParallel int
}

// Scheduler runs workflows through a JobRunner.
type Scheduler struct {
	runner JobRunner
	opts   Options
}

// New creates a scheduler that delegates job execution to runner.
func New(runner JobRunner, opts Options) *Scheduler {
	return &Scheduler{runner: runner, opts: opts}
}

type node struct {
	job        provider.Job
	pending    atomic.Int32
	skipOnce   sync.Once
	skipped    atomic.Bool
	dependents []string
}

// RunWorkflow executes every job in wf respecting the dependency graph jg.
// Results are returned in the graph's topological order. Job failures are
// reported through result statuses, not the error return.
func (s *Scheduler) RunWorkflow(ctx context.Context, wf provider.Workflow, jg *graph.JobGraph) ([]report.JobResult, error) {
	order, err := jg.TopoOrder()
	if err != nil {
		return nil, errors.Wrap(err, "resolve job order")
	}
	if len(order) == 0 {
		return nil, nil
	}

	logger := ctxlog.FromContext(ctx)

	nodes := make(map[string]*node, len(wf.Jobs))
	for _, job := range wf.Jobs {
		n := &node{job: job, dependents: jg.Dependents(job.RawID)}
		// The graph stores one edge per unique prerequisite, so a repeated
		// needs entry must not inflate the pending count: it would never be
		// decremented and the job would wait forever.
		n.pending.Store(countUnique(job.Needs))
		nodes[job.RawID] = n
	}

	ready := make(chan string, len(nodes))
	for _, id := range order {
		if nodes[id].pending.Load() == 0 {
			ready <- id
		}
	}

	// Every job is accounted for exactly once: when it finishes running or
	// when it is skipped. Closing ready after the last accounting unblocks
	// the dispatch loop.
	var wg sync.WaitGroup
	wg.Add(len(nodes))
	go func() {
		wg.Wait()
		close(ready)
	}()

	var mu sync.Mutex
	results := make(map[string]report.JobResult, len(nodes))
	record := func(res report.JobResult) {
		mu.Lock()
		results[res.JobID] = res
		mu.Unlock()
	}

	var grp errgroup.Group
	if s.opts.MaxParallel > 0 {
		grp.SetLimit(s.opts.MaxParallel)
	}

	for id := range ready {
		n := nodes[id]
		grp.Go(func() error {
			// A node can reach the ready queue after an earlier prerequisite
			// failure already skipped it; it was accounted for then.
			if n.skipped.Load() {
				return nil
			}
			if ctx.Err() != nil {
				record(s.skipResult(wf, n.job, "run canceled"))
				s.skipDependents(ctx, wf, nodes, n, "run canceled", record, &wg)
				wg.Done()
				return nil
			}

			logger.Info("job starting", "workflow", wf.Name, "job", n.job.RawID)
			res := s.runner.RunJob(ctx, wf, n.job)
			record(res)

			if res.Failed() {
				logger.Warn("job failed", "workflow", wf.Name, "job", n.job.RawID)
				reason := fmt.Sprintf("dependency %q failed", n.job.RawID)
				s.skipDependents(ctx, wf, nodes, n, reason, record, &wg)
			} else {
				logger.Info("job finished", "workflow", wf.Name, "job", n.job.RawID, "status", res.Status)
				for _, dep := range n.dependents {
					if nodes[dep].pending.Add(-1) == 0 {
						ready <- dep
					}
				}
			}
			wg.Done()
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, errors.Wrap(err, "wait for jobs")
	}

	ordered := make([]report.JobResult, 0, len(order))
	for _, id := range order {
		if res, ok := results[id]; ok {
			ordered = append(ordered, res)
		}
	}
	return ordered, nil
}

// skipDependents walks downstream of a job and marks every not-yet accounted
// dependent as skipped with the given reason, so transitive skips still name
// the originating failure. Each node is skipped at most once even when
// several of its prerequisites fail.
func (s *Scheduler) skipDependents(ctx context.Context, wf provider.Workflow, nodes map[string]*node, from *node, reason string, record func(report.JobResult), wg *sync.WaitGroup) {
	logger := ctxlog.FromContext(ctx)
	for _, id := range from.dependents {
		dep := nodes[id]
		dep.skipOnce.Do(func() {
			dep.skipped.Store(true)
			logger.Warn("job skipped", "job", dep.job.RawID, "cause", from.job.RawID)
			record(s.skipResult(wf, dep.job, reason))
			wg.Done()
			s.skipDependents(ctx, wf, nodes, dep, reason, record, wg)
		})
	}
}

func countUnique(ids []string) int32 {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return int32(len(seen))
}

func (s *Scheduler) skipResult(wf provider.Workflow, job provider.Job, reason string) report.JobResult {
	return report.JobResult{
		WorkflowPath: wf.Path,
		WorkflowName: wf.Name,
		JobID:        job.RawID,
		JobName:      job.Name,
		Needs:        job.Needs,
		Status:       report.StatusSkipped,
		SkipReason:   reason,
	}
}
