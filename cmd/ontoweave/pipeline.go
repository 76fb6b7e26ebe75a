package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/ontoweave"
	"github.com/soundprediction/ontoweave/pkg/alert"
	"github.com/soundprediction/ontoweave/pkg/checkpoint"
)

var buildCmd = &cobra.Command{
	Use:   "build <questions.yaml>",
	Short: "Grow the ontology from competency question groups",
	Long: `Ask the proposer for concepts answering each group of competency questions.
The file is a YAML list of groups, each a list of questions. Rejected batches
are retried with their issues; batches that keep failing are skipped.

Progress is checkpointed after every group, so rerunning the same file
resumes an interrupted run.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

var extractCmd = &cobra.Command{
	Use:   "extract <text-file>",
	Short: "Extract knowledge graph triplets from text",
	Long: `Ask the proposer for triplets in each paragraph of a text file. Paragraphs are
separated by blank lines. Triplets are checked against the ontology and
rejected batches are retried with their issues.

Progress is checkpointed after every paragraph, so rerunning the same file
resumes an interrupted run.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	for _, c := range []*cobra.Command{buildCmd, extractCmd} {
		c.Flags().Bool("restart", false, "ignore an existing checkpoint for this input")
		rootCmd.AddCommand(c)
	}
}

// batchFunc runs the engine on one input batch. index counts from 1.
type batchFunc func(ctx context.Context, s *session, index int) (*ontoweave.Report, error)

// pipeline drives batches one at a time, saving the engine and the
// checkpoint after each so an interrupted run can resume.
type pipeline struct {
	stage   checkpoint.Stage
	unit    string
	source  string
	batches []string
	restart bool
	out     io.Writer
	alerter alert.Alerter
}

func (p *pipeline) run(ctx context.Context, s *session, fn batchFunc) error {
	mgr, err := checkpoint.NewManager(cfg.Checkpoint.Dir)
	if err != nil {
		return err
	}
	if cfg.Checkpoint.MaxAge > 0 {
		if n, err := mgr.CleanOld(ctx, time.Duration(cfg.Checkpoint.MaxAge)*time.Hour); err == nil && n > 0 {
			log.Info("removed stale checkpoints", "count", n)
		}
	}

	run := checkpoint.NewRun(p.stage, cfg.Storage.Name, p.source, p.batches)
	if !p.restart {
		prev, err := mgr.Load(ctx, run.ID)
		if err != nil {
			return err
		}
		if prev != nil {
			run = prev
			fmt.Fprintf(p.out, "resuming %s: %s done\n", run.ID, run.Progress())
		}
	}

	for i := range p.batches {
		index := i + 1
		if run.Done(index) {
			continue
		}
		report, err := fn(ctx, s, index)
		if err != nil {
			if cerr := mgr.RecordError(ctx, run, err); cerr != nil {
				log.Warn("failed to record checkpoint error", "error", cerr)
			}
			return fmt.Errorf("%s %d: %w", p.unit, index, err)
		}
		p.print(index, report)

		if err := s.engine.Save(ctx); err != nil {
			return err
		}
		run.Finish(index, report.Accepted > 0)
		if err := mgr.Save(ctx, run); err != nil {
			return err
		}
	}

	fmt.Fprintf(p.out, "%d accepted, %d skipped\n", len(run.Accepted), len(run.Skipped))
	if len(run.Skipped) > 0 {
		msg := fmt.Sprintf("%d of %d %s batch(es) from %s were skipped after exhausting their attempts: %v",
			len(run.Skipped), run.Total, p.stage, p.source, run.Skipped)
		if err := p.alerter.Alert(fmt.Sprintf("%s run %s skipped batches", p.stage, run.ID), msg); err != nil {
			log.Warn("failed to send alert", "error", err)
		}
	}
	return mgr.Delete(ctx, run.ID)
}

func (p *pipeline) print(index int, r *ontoweave.Report) {
	if r.Stitch != nil {
		fmt.Fprintf(p.out, "stitched %d cluster(s) first: %d accepted, %d rejected\n",
			r.Stitch.InitialClusters, r.Stitch.Accepted, r.Stitch.Rejected)
	}
	for _, b := range r.Batches {
		if b.Accepted {
			fmt.Fprintf(p.out, "%s %d: accepted after %d attempt(s), %d item(s)\n", p.unit, index, b.Attempts, b.Items)
			continue
		}
		fmt.Fprintf(p.out, "%s %d: skipped after %d attempt(s)\n", p.unit, index, b.Attempts)
		for _, i := range b.Issues {
			fmt.Fprintf(p.out, "  - %s\n", i)
		}
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var groups [][]string
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = strings.Join(g, "\n")
	}

	p := newPipeline(cmd, checkpoint.StageBuild, "question group", args[0], keys)
	llm, err := newLLM(p.alerter)
	if err != nil {
		return err
	}
	return p.open(cmd.Context(), []ontoweave.Option{ontoweave.WithStitchProposer(llm)},
		func(ctx context.Context, s *session, index int) (*ontoweave.Report, error) {
			return s.engine.BuildOntology(ctx, groups[index-1:index], llm)
		})
}

func runExtract(cmd *cobra.Command, args []string) error {
	texts, err := readParagraphs(args[0])
	if err != nil {
		return err
	}

	p := newPipeline(cmd, checkpoint.StageExtract, "text", args[0], texts)
	llm, err := newLLM(p.alerter)
	if err != nil {
		return err
	}
	return p.open(cmd.Context(), nil,
		func(ctx context.Context, s *session, index int) (*ontoweave.Report, error) {
			return s.engine.ExtractKG(ctx, texts[index-1:index], llm)
		})
}

func newPipeline(cmd *cobra.Command, stage checkpoint.Stage, unit, source string, batches []string) *pipeline {
	restart, _ := cmd.Flags().GetBool("restart")
	return &pipeline{
		stage:   stage,
		unit:    unit,
		source:  source,
		batches: batches,
		restart: restart,
		out:     cmd.OutOrStdout(),
		alerter: alert.New(cfg.Alert),
	}
}

// open runs the pipeline on the stored engine and reports its final size.
func (p *pipeline) open(ctx context.Context, opts []ontoweave.Option, fn batchFunc) error {
	s, err := openEngine(ctx, nil, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := p.run(ctx, s, fn); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "ontology has %d classes in %d cluster(s); knowledge graph has %d triplets\n",
		s.engine.Ontology().Len(), s.engine.ClusterCount(), len(s.engine.KnowledgeGraph().Triplets))
	return nil
}
