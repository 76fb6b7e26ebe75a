package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/ontoweave/pkg/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ontology and knowledge graph",
	Long: `Export the stored ontology and knowledge graph.

  parquet  writes classes.parquet and triplets.parquet to --out
  neo4j    loads Class and Entity nodes into the configured Neo4j database`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("format", "parquet", "export format (parquet, neo4j)")
	exportCmd.Flags().String("out", ".", "output directory for parquet files")
	exportCmd.Flags().String("neo4j-uri", "", "Neo4j URI (overrides config)")
	exportCmd.Flags().String("neo4j-database", "", "Neo4j database (overrides config)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, _ := cmd.Flags().GetString("format")

	s, err := openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	store, kg := s.engine.Ontology(), s.engine.KnowledgeGraph()
	out := cmd.OutOrStdout()

	switch format {
	case "parquet":
		dir, _ := cmd.Flags().GetString("out")
		files, err := export.WriteParquet(dir, store, kg)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintln(out, f)
		}
		return nil
	case "neo4j":
		neo := cfg.Neo4j
		if cmd.Flags().Changed("neo4j-uri") {
			neo.URI, _ = cmd.Flags().GetString("neo4j-uri")
		}
		if cmd.Flags().Changed("neo4j-database") {
			neo.Database, _ = cmd.Flags().GetString("neo4j-database")
		}
		loader, err := export.NewNeo4jLoader(neo, log)
		if err != nil {
			return err
		}
		defer loader.Close(ctx)
		if err := loader.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("failed to connect to neo4j: %w", err)
		}
		if err := loader.Load(ctx, store, kg); err != nil {
			return err
		}
		fmt.Fprintf(out, "loaded %d classes and %d triplets into %s\n", store.Len(), len(kg.Triplets), neo.URI)
		return nil
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}
