package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/ontoweave/pkg/conformance"
	"github.com/soundprediction/ontoweave/pkg/types"
)

var checkCmd = &cobra.Command{
	Use:   "check <kg-file>...",
	Short: "Check knowledge graph files against the ontology",
	Long: `Check knowledge graph files (JSON, YAML or triplets parquet) against the stored
ontology. Files are checked independently and in parallel against the stored
knowledge graph. With --commit, and only when every file conforms, the
triplets are added to the stored knowledge graph in argument order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("commit", false, "add conforming triplets to the stored knowledge graph")
	checkCmd.Flags().Int("workers", runtime.NumCPU(), "number of files checked at once")
}

// checkResult is the outcome for one file.
type checkResult struct {
	kg   *types.KG
	plan *conformance.Plan
	err  error
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	commit, _ := cmd.Flags().GetBool("commit")
	workers, _ := cmd.Flags().GetInt("workers")

	s, err := openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	// Ontology snapshots are immutable, so each worker gets its own checker
	// seeded with the stored graph.
	store := s.engine.Ontology()
	stored := s.engine.KnowledgeGraph()

	results := make([]checkResult, len(args))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			kg, err := readKG(path)
			if err != nil {
				return err
			}
			checker := conformance.New(store,
				conformance.WithLogger(log),
				conformance.WithCacheSize(cfg.Engine.AncestorCacheSize))
			if err := checker.Restore(stored); err != nil {
				return err
			}
			plan, err := checker.Check(kg.Triplets)
			results[i] = checkResult{kg: kg, plan: plan, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(out, "%s: rejected\n%v\n", args[i], r.err)
			continue
		}
		fmt.Fprintf(out, "%s: conforms (%d new, %d duplicate)\n", args[i], len(r.plan.Accepted), r.plan.Duplicates)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) rejected", failed, len(args))
	}
	if !commit {
		return nil
	}

	for i, r := range results {
		if _, err := s.engine.AddTriplets(ctx, r.kg.Triplets); err != nil {
			return fmt.Errorf("%s: %w", args[i], err)
		}
	}
	fmt.Fprintf(out, "committed; knowledge graph has %d triplets\n", len(s.engine.KnowledgeGraph().Triplets))
	return s.engine.Save(ctx)
}
