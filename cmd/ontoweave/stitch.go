package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soundprediction/ontoweave/pkg/alert"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

var stitchCmd = &cobra.Command{
	Use:   "stitch",
	Short: "Stitch a fragmented ontology into a single tree",
	Long: `Repeatedly ask the proposer for a merge, bridge or prune operation until the
ontology has a single cluster. Rejected operations are sent back with their
issues. Removing classes also removes the triplets that depend on them.

With --ops the operations are read from a JSON list instead of the proposer.`,
	Args: cobra.NoArgs,
	RunE: runStitch,
}

func init() {
	rootCmd.AddCommand(stitchCmd)
	stitchCmd.Flags().String("ops", "", "JSON file with a list of operations to apply")
	stitchCmd.Flags().String("history", "", "write the stitching history to this file")
}

func runStitch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	opsFile, _ := cmd.Flags().GetString("ops")
	historyFile, _ := cmd.Flags().GetString("history")

	s, err := openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	var p weaver.Proposer
	if opsFile != "" {
		p, err = replay(opsFile)
	} else {
		p, err = newLLM(alert.New(cfg.Alert))
	}
	if err != nil {
		return err
	}

	summary, err := s.engine.Stitch(ctx, p)
	if historyFile != "" && s.engine.LastStitch() != nil {
		if werr := writeHistory(historyFile, s.engine.LastStitch()); werr != nil {
			log.Error("failed to write stitching history", "path", historyFile, "error", werr)
		}
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "stitched %d cluster(s) into %d: %d accepted, %d rejected\n",
		summary.InitialClusters, s.engine.ClusterCount(), summary.Accepted, summary.Rejected)
	if len(summary.RemovedClasses) > 0 {
		fmt.Fprintf(out, "removed classes: %v\n", summary.RemovedClasses)
	}
	if len(summary.RemovedProperties) > 0 {
		fmt.Fprintf(out, "removed properties: %v\n", summary.RemovedProperties)
	}
	return s.engine.Save(ctx)
}

// replay returns a proposer that hands out the operations listed in path
// one at a time.
func replay(path string) (weaver.Proposer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ops := make([]weaver.Operation, 0, len(raws))
	for i, raw := range raws {
		op, err := weaver.DecodeOperation(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: operation %d: %w", path, i+1, err)
		}
		ops = append(ops, op)
	}

	next := 0
	return weaver.ProposerFunc(func(ctx context.Context, in weaver.Input) (weaver.Operation, error) {
		if next == len(ops) {
			return nil, fmt.Errorf("%s: no operations left with %d cluster(s) remaining", path, len(in.Clusters))
		}
		op := ops[next]
		next++
		return op, nil
	}), nil
}

func writeHistory(path string, h *weaver.History) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := h.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
