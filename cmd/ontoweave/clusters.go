package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List the clusters of the ontology",
	Args:  cobra.NoArgs,
	RunE:  runClusters,
}

func init() {
	rootCmd.AddCommand(clustersCmd)
	clustersCmd.Flags().Bool("json", false, "print clusters as JSON")
}

func runClusters(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	asJSON, _ := cmd.Flags().GetBool("json")

	s, err := openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	clusters := s.engine.Clusters()
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(clusters)
	}

	fmt.Fprintf(out, "%d cluster(s)\n", len(clusters))
	for _, c := range clusters {
		fmt.Fprintf(out, "\nCluster %d: %s\n", c.Index, strings.Join(c.Classes, ", "))
		for _, r := range c.Relations {
			fmt.Fprintf(out, "  %s -> %s\n", r.Subclass, r.Superclass)
		}
	}
	return nil
}
