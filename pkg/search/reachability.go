package search

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/symbion/symck/pkg/eval"
	"github.com/symbion/symck/pkg/smt"
	"github.com/symbion/symck/pkg/solvercache"
	"github.com/symbion/symck/pkg/statedb"
	"github.com/symbion/symck/pkg/stats"
)

// ReachConfig configures Reachability. NumWorkers <= 0 defaults to
// runtime.NumCPU(), mirroring the teacher's worker pool default
// (pkg/search/worker.go's NewWorkerPool in the z80 superoptimizer this
// package replaces).
type ReachConfig struct {
	NumWorkers     int
	Bound          int // 0 = unbounded exploration depth
	TimeoutEnabled bool
	Verbose        bool
	Reg            *stats.Registry
}

// ReachResult is Reachability's outcome: either no error state is
// reachable within the explored space, or the first one found plus the
// live state that witnesses it.
type ReachResult struct {
	ErrorFound  bool
	Witness     *eval.State
	StatesVisited int
}

// frontierItem pairs a live evaluator state with its depth (the number
// of observable steps from the initial state), so a worker can expand it
// without the database ever needing to hand a state back out (spec.md §4.9's
// GetState only reconstructs the explicit/symbolic stores, never
// pkg/control/pkg/memlayout — see search.go's package doc).
type frontierItem struct {
	state *eval.State
	depth int
}

// Reachability explores the state space breadth-first from initial,
// reporting the first error state found (spec.md §4.10.1). Frontier
// expansion is parallelized across a bounded goroutine pool, the
// generalisation SPEC_FULL.md calls for of the teacher's
// pkg/search/worker.go pool ("try all candidate instruction sequences"
// becomes "expand all frontier states"): a ticking progress reporter, a
// sync.Mutex-guarded next-frontier sink, and a sync/atomic counter of
// states visited.
func Reachability(initial *eval.State, db *statedb.Database, bridge *smt.Bridge, cache *solvercache.Cache, cfg ReachConfig) (*ReachResult, error) {
	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	var unknownCount int
	_, novel, err := insertCheck(initial, nil, db, bridge, cache, cfg.TimeoutEnabled, &unknownCount)
	if err != nil {
		return nil, fmt.Errorf("search: inserting initial state: %w", err)
	}
	if !novel {
		return nil, fmt.Errorf("search: initial state rejected as non-novel")
	}

	frontier := []frontierItem{{state: initial, depth: 0}}

	var visited atomic.Int64
	visited.Add(1)

	var ticker *time.Ticker
	var tickerDone chan struct{}
	if cfg.Verbose {
		ticker = time.NewTicker(10 * time.Second)
		tickerDone = make(chan struct{})
		start := time.Now()
		go func() {
			for {
				select {
				case <-ticker.C:
					fmt.Printf("  [%s] states visited: %d, frontier: %d\n", time.Since(start).Round(time.Second), visited.Load(), len(frontier))
				case <-tickerDone:
					return
				}
			}
		}()
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
			close(tickerDone)
		}
	}()

	for len(frontier) > 0 {
		type outcome struct {
			nextLayer []frontierItem
			errState  *eval.State
		}

		tasks := make(chan frontierItem, len(frontier))
		for _, it := range frontier {
			tasks <- it
		}
		close(tasks)

		var mu sync.Mutex
		var nextFrontier []frontierItem
		var errState *eval.State
		var firstErr error
		var wg sync.WaitGroup

		for w := 0; w < numWorkers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for it := range tasks {
					mu.Lock()
					done := errState != nil || firstErr != nil
					mu.Unlock()
					if done {
						continue
					}
					if cfg.Bound > 0 && it.depth >= cfg.Bound {
						continue
					}

					leaves, err := Expand(it.state)
					if err != nil {
						mu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						mu.Unlock()
						continue
					}

					var novelLeaves []frontierItem
					for _, l := range leaves {
						var uc int
						_, isNovel, err := insertCheck(l.State, nil, db, bridge, cache, cfg.TimeoutEnabled, &uc)
						if err != nil {
							mu.Lock()
							if firstErr == nil {
								firstErr = err
							}
							mu.Unlock()
							break
						}
						if !isNovel {
							continue
						}
						visited.Add(1)
						if l.IsError {
							mu.Lock()
							if errState == nil {
								errState = l.State
							}
							mu.Unlock()
							continue
						}
						novelLeaves = append(novelLeaves, frontierItem{state: l.State, depth: it.depth + 1})
					}
					if len(novelLeaves) > 0 {
						mu.Lock()
						nextFrontier = append(nextFrontier, novelLeaves...)
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		if firstErr != nil {
			return nil, firstErr
		}
		if errState != nil {
			return &ReachResult{ErrorFound: true, Witness: errState, StatesVisited: int(visited.Load())}, nil
		}
		frontier = nextFrontier
	}

	return &ReachResult{ErrorFound: false, StatesVisited: int(visited.Load())}, nil
}
