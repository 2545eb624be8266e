// Package settle provides a group of independently-fallible tasks.
//
// Unlike errgroup, a Group never short-circuits: every task runs to
// completion and its failure is captured into a per-task result instead of
// cancelling siblings. Waiters observe completion, not success.
package settle

import (
	"fmt"
	"sync"
)

// Result records the outcome of one task.
type Result struct {
	Name string
	Err  error
}

// Group collects tasks whose individual failures must not fail the aggregate.
// The zero value is ready to use.
type Group struct {
	wg      sync.WaitGroup
	mu      sync.Mutex
	results []Result
}

// Go runs fn in its own goroutine. A panic inside fn is captured as the
// task's error rather than crashing the process.
func (g *Group) Go(name string, fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("task %s panicked: %v", name, r)
				}
			}()
			err = fn()
		}()

		g.mu.Lock()
		g.results = append(g.results, Result{Name: name, Err: err})
		g.mu.Unlock()
	}()
}

// Wait blocks until every task has settled and returns all results.
// It is safe to call from multiple goroutines.
func (g *Group) Wait() []Result {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Result, len(g.results))
	copy(out, g.results)
	return out
}

// Failed returns the subset of results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
