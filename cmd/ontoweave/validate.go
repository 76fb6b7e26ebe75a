package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <concepts-file>...",
	Short: "Validate concept batches and add them to the ontology",
	Long: `Validate concept batches against the stored ontology. Each file is one batch
(JSON or YAML, a list of concepts tagged with "kind"). Accepted batches are
committed in order and the ontology is saved unless --dry-run is set. The
first rejected batch stops the run and its issues are printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("dry-run", false, "validate without saving")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	s, err := openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	for _, path := range args {
		batch, err := readConcepts(path)
		if err != nil {
			return err
		}
		store, err := s.engine.AddConcepts(ctx, batch)
		if err != nil {
			fmt.Fprintf(out, "%s: rejected\n%v\n", path, err)
			return fmt.Errorf("%s rejected", path)
		}
		fmt.Fprintf(out, "%s: accepted (%d concepts, %d classes, %d clusters)\n",
			path, len(batch), store.Len(), s.engine.ClusterCount())
	}

	if dryRun {
		return nil
	}
	return s.engine.Save(ctx)
}
