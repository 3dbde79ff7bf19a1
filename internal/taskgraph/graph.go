// Package taskgraph turns task declarations into dependency-respecting
// execution batches and keeps session task progress in sync with them.
package taskgraph

import (
	"fmt"

	"github.com/openboard/engine/internal/domain"
)

// DetectCycle looks for a dependency cycle among the declared tasks using a
// three-color depth-first traversal with an explicit path stack. It returns
// the first cycle found as an ordered id list closed on the first id, or
// nil when the graph is acyclic. Edges to ids absent from the task set are
// not followed.
func DetectCycle(tasks []domain.TaskGraphTask) []string {
	const (
		white = iota // unvisited
		gray         // in progress
		black        // done
	)

	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
	}

	color := make([]int, len(tasks))
	var path []string
	var cycle []string

	var visit func(i int) bool
	visit = func(i int) bool {
		color[i] = gray
		path = append(path, tasks[i].ID)

		for _, dep := range tasks[i].DependsOn {
			j, ok := index[dep]
			if !ok {
				continue // dangling dependency, tolerated
			}
			switch color[j] {
			case gray:
				// The cycle is the path slice from dep's first occurrence
				// through the current task, closed on dep.
				start := 0
				for k, id := range path {
					if id == dep {
						start = k
						break
					}
				}
				cycle = append(append([]string(nil), path[start:]...), dep)
				return true
			case white:
				if visit(j) {
					return true
				}
			}
		}

		path = path[:len(path)-1]
		color[i] = black
		return false
	}

	for i := range tasks {
		if color[i] == white && visit(i) {
			return cycle
		}
	}
	return nil
}

// BuildBatches computes topologically layered execution waves with Kahn's
// algorithm: each wave is the full set of tasks whose remaining in-degree
// is zero, counting only dependencies present in the task set. Waves become
// batches named batch-1, batch-2, ... in order. A cyclic graph fails with a
// CycleError carrying the cycle path.
func BuildBatches(tasks []domain.TaskGraphTask) ([]domain.TaskBatch, error) {
	if cycle := DetectCycle(tasks); cycle != nil {
		return nil, &domain.CycleError{Path: cycle}
	}

	inSet := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		inSet[t.ID] = true
	}

	indeg := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		indeg[t.ID] = 0
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if !inSet[dep] {
				continue
			}
			indeg[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	remaining := len(tasks)
	var batches []domain.TaskBatch

	for remaining > 0 {
		var wave []domain.BatchTask
		for _, t := range tasks {
			if deg, ok := indeg[t.ID]; ok && deg == 0 {
				wave = append(wave, domain.BatchTask{
					ID:        t.ID,
					Status:    domain.TaskPending,
					DependsOn: presentDeps(t.DependsOn, inSet),
				})
			}
		}

		if len(wave) == 0 {
			// Cycle detection should have caught this; an empty wave with
			// tasks remaining means the graph state is inconsistent.
			return nil, domain.NewEngineError(domain.ErrGraphInternal.Code,
				fmt.Sprintf("empty wave with %d tasks remaining", remaining))
		}

		for _, bt := range wave {
			delete(indeg, bt.ID)
			for _, dep := range dependents[bt.ID] {
				if _, ok := indeg[dep]; ok {
					indeg[dep]--
				}
			}
		}

		batches = append(batches, domain.TaskBatch{
			ID:     fmt.Sprintf("batch-%d", len(batches)+1),
			Tasks:  wave,
			Status: domain.TaskPending,
		})
		remaining -= len(wave)
	}

	return batches, nil
}

func presentDeps(deps []string, inSet map[string]bool) []string {
	var out []string
	for _, dep := range deps {
		if inSet[dep] {
			out = append(out, dep)
		}
	}
	return out
}
