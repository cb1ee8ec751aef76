// Command symck is the model checker's CLI (spec.md §6.3): two
// top-level modes, reachability and ltl, both taking a model file and a
// set of orthogonal flags, mirroring cmd/z80opt's rootCmd.AddCommand
// pattern and pflag-backed per-subcommand flag binding.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/symbion/symck/pkg/config"
	"github.com/symbion/symck/pkg/eval"
	"github.com/symbion/symck/pkg/ir"
	"github.com/symbion/symck/pkg/search"
	"github.com/symbion/symck/pkg/smt"
	"github.com/symbion/symck/pkg/solvercache"
	"github.com/symbion/symck/pkg/statedb"
	"github.com/symbion/symck/pkg/stats"
)

var cfg = config.Default()
var entryName string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "symck",
		Short: "symck explores an LLVM-shaped program's state space symbolically",
	}

	root.PersistentFlags().StringVar(&cfg.ModelFile, "model", "", "path to a model JSON file (required)")
	root.PersistentFlags().StringVar(&entryName, "entry", "main", "entry function name")
	root.PersistentFlags().StringVar(&simplifyFlag, "simplify", "cheap", "path-condition simplification: off, cheap, full (validated; the search drivers do not read it)")
	root.PersistentFlags().BoolVar(&cfg.TimeoutEnabled, "timeout", true, "enable the solver's dynamic subsumption timeout")
	root.PersistentFlags().BoolVar(&cfg.CacheEnabled, "cache", true, "enable the subsumption-query cache")
	root.PersistentFlags().BoolVar(&cfg.Partitioned, "partitioned", false, "use the partitioned symbolic store (not yet wired into the evaluator)")
	root.PersistentFlags().IntVar(&cfg.Bound, "bound", 0, "cap exploration depth (0 = unbounded)")
	root.PersistentFlags().StringVar(&cfg.SpaceOutput, "space_output", "", "write the explored product graph as Graphviz DOT to this path")
	root.PersistentFlags().BoolVar(&cfg.TestValidity, "testvalidity", false, "check every reported path condition for satisfiability before printing it")
	root.PersistentFlags().BoolVar(&cfg.Verbose, "verbose", false, "print progress during the search")
	root.PersistentFlags().BoolVar(&cfg.VVerbose, "vverbose", false, "turn on --verbose (no per-transition output is printed)")
	root.PersistentFlags().BoolVar(&cfg.Statistics, "statistics", false, "dump counters and solver-cache effectiveness on exit")
	root.PersistentFlags().IntVar(&cfg.NumWorkers, "workers", 0, "reachability worker-pool size (0 = runtime.NumCPU())")

	root.AddCommand(newReachabilityCmd(), newLTLCmd())
	return root
}

var simplifyFlag string

func bindCommon(cmd *cobra.Command) error {
	mode, err := config.ParseSimplificationMode(simplifyFlag)
	if err != nil {
		return err
	}
	cfg.Simplify = mode
	if cfg.VVerbose {
		cfg.Verbose = true
	}
	if cfg.ModelFile == "" {
		return fmt.Errorf("symck: --model is required")
	}
	if cfg.Partitioned {
		slog.Warn("--partitioned accepted but not yet wired into the evaluator's store; running monolithic")
	}
	return nil
}

func loadModel() (*ir.Module, *ir.Function, error) {
	f, err := os.Open(cfg.ModelFile)
	if err != nil {
		return nil, nil, fmt.Errorf("symck: opening model file: %w", err)
	}
	defer f.Close()

	mod, err := ir.LoadModule(f)
	if err != nil {
		return nil, nil, fmt.Errorf("symck: loading model: %w", err)
	}
	entry := mod.FindFunction(entryName)
	if entry == nil {
		return nil, nil, fmt.Errorf("symck: model has no function named %q", entryName)
	}
	return mod, entry, nil
}

// newBackend constructs the solver bridge, cache and statistics registry
// a run shares, honouring --cache by passing a nil *solvercache.Cache
// when disabled — symbolic.Subseteq treats a nil cache as "always miss,
// never store" (see pkg/symbolic/subsume.go), so this
// is a genuine bypass, not just a disabled stats counter.
func newBackend() (*smt.Bridge, *solvercache.Cache, *stats.Registry, func(), error) {
	reg := stats.NewRegistry()
	bridge, err := smt.NewBridge()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("symck: starting solver: %w", err)
	}
	var cache *solvercache.Cache
	if cfg.CacheEnabled {
		cache = solvercache.New(reg)
	}
	cleanup := func() {
		if cfg.Statistics {
			reg.Dump(os.Stdout)
		}
		bridge.Close()
	}
	return bridge, cache, reg, cleanup, nil
}

func newReachabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reachability",
		Short: "search for a reachable assertion failure (spec.md §4.10.1)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindCommon(cmd); err != nil {
				return err
			}
			mod, entry, err := loadModel()
			if err != nil {
				return err
			}
			bridge, cache, reg, cleanup, err := newBackend()
			if err != nil {
				return err
			}
			defer cleanup()

			initial := eval.NewInitial(mod, entry, mod.GlobalWidths())
			db := statedb.New(reg)

			start := time.Now()
			result, err := search.Reachability(initial, db, bridge, cache, search.ReachConfig{
				NumWorkers:     cfg.NumWorkers,
				Bound:          cfg.Bound,
				TimeoutEnabled: cfg.TimeoutEnabled,
				Verbose:        cfg.Verbose,
				Reg:            reg,
			})
			if err != nil {
				return fmt.Errorf("symck: reachability search failed: %w", err)
			}

			if result.ErrorFound {
				if cfg.TestValidity {
					res, err := search.CheckWitnessValidity(result.Witness, bridge, 0)
					if err != nil {
						return fmt.Errorf("symck: validating witness path condition: %w", err)
					}
					if res != smt.Sat {
						return fmt.Errorf("symck: reported witness path condition is %v, not sat — search bug", res)
					}
				}
				fmt.Printf("UNSAFE: error state reached (%d states visited, %s)\n", result.StatesVisited, time.Since(start).Round(time.Millisecond))
				return nil
			}
			fmt.Printf("SAFE: no error state reachable (%d states visited, %s)\n", result.StatesVisited, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	return cmd
}

// writeSpaceOutput dumps the LTL driver's explored product graph as
// Graphviz DOT to --space_output, matching the "dump the explored state
// space" supplemented feature SPEC_FULL.md adds over spec.md's CLI
// surface.
func writeSpaceOutput(result *search.LTLResult) error {
	f, err := os.Create(cfg.SpaceOutput)
	if err != nil {
		return fmt.Errorf("symck: writing --space_output: %w", err)
	}
	defer f.Close()
	vertexLabel := func(v search.ProductVertex) string {
		return fmt.Sprintf("e%d/s%d:q%d", v.State.ExplicitID, v.State.SymbolicID, v.BA)
	}
	edgeLabel := func(ba search.BAState) string { return fmt.Sprintf("q%d", ba) }
	return result.Graph.WriteDOT(f, vertexLabel, edgeLabel)
}

func newLTLCmd() *cobra.Command {
	var specPath string
	cmd := &cobra.Command{
		Use:   "ltl",
		Short: "search for an accepting cycle in the program/Büchi-automaton product (spec.md §4.10.2)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindCommon(cmd); err != nil {
				return err
			}
			if specPath == "" {
				return fmt.Errorf("symck: --ltl_spec is required (predicates + Büchi automaton, since LTL-to-automaton translation is an external step)")
			}
			mod, entry, err := loadModel()
			if err != nil {
				return err
			}
			specFile, err := os.Open(specPath)
			if err != nil {
				return fmt.Errorf("symck: opening LTL spec file: %w", err)
			}
			preds, ba, err := search.LoadLTLSpec(specFile)
			specFile.Close()
			if err != nil {
				return err
			}

			bridge, cache, reg, cleanup, err := newBackend()
			if err != nil {
				return err
			}
			defer cleanup()

			bound := cfg.Bound
			const maxDoublings = 10
			for attempt := 0; ; attempt++ {
				// Each attempt starts from a fresh database: LTL's
				// initial-state insertion requires novelty, which a
				// second attempt's unchanged initial state would fail on
				// a database a prior attempt already populated.
				initial := eval.NewInitial(mod, entry, mod.GlobalWidths())
				db := statedb.New(reg)
				result, err := search.LTL(initial, ba, preds, db, bridge, cache, search.LTLConfig{
					Bound:          bound,
					TimeoutEnabled: cfg.TimeoutEnabled,
				})
				if err != nil {
					return fmt.Errorf("symck: LTL search failed: %w", err)
				}
				if cfg.SpaceOutput != "" {
					if err := writeSpaceOutput(result); err != nil {
						return err
					}
				}
				if result.CycleFound {
					fmt.Println("VIOLATED: an accepting cycle was found")
					return nil
				}
				if cfg.Bound == 0 {
					fmt.Println("HOLDS: no accepting cycle found")
					return nil
				}
				// Iterative-deepening mode (spec.md §6.3's end-to-end
				// scenario 6): re-run at double the depth until the cycle
				// is found. A caller that wants a single bounded attempt
				// should pass --bound together with a small, fixed budget
				// they check externally; this loop is only entered when
				// --bound was explicitly set.
				if attempt >= maxDoublings {
					fmt.Println("HOLDS: depth bound exhausted without finding a cycle")
					return nil
				}
				bound *= 2
				if cfg.Verbose {
					fmt.Printf("no cycle within bound, doubling to %d\n", bound)
				}
			}
		},
	}
	cmd.Flags().StringVar(&specPath, "ltl_spec", "", "path to a JSON file declaring atomic-proposition predicates and the Büchi automaton")
	return cmd
}
