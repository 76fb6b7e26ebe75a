package ontoweave

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundprediction/ontoweave/pkg/issues"
	"github.com/soundprediction/ontoweave/pkg/proposer"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

// BatchResult is the outcome of one proposer batch in a remedy loop.
type BatchResult struct {
	Index    int
	Attempts int
	Accepted bool
	// Items counts concepts or triplets in the accepted proposal.
	Items int
	// Issues holds the feedback of the last rejected attempt of a batch
	// that was skipped.
	Issues []issues.Issue
}

// Report summarises BuildOntology and ExtractKG.
type Report struct {
	Batches  []BatchResult
	Accepted int
	Skipped  int
	// Stitch is set when the ontology was stitched before building.
	Stitch *weaver.Summary
}

func (r *Report) add(res BatchResult) {
	r.Batches = append(r.Batches, res)
	if res.Accepted {
		r.Accepted++
	} else {
		r.Skipped++
	}
}

// attemptFunc makes one attempt at a batch with the feedback of the
// previous one. It returns the number of committed items.
type attemptFunc func(ctx context.Context, attempt int, feedback []issues.Issue) (int, error)

// remedy runs fn until it succeeds or the attempts are used up. Validation
// failures and undecodable proposals become feedback for the next attempt;
// any other error ends the loop.
func (c *Client) remedy(ctx context.Context, index int, fn attemptFunc) (BatchResult, error) {
	res := BatchResult{Index: index}
	var feedback []issues.Issue
	for attempt := 1; attempt <= c.maxRemedyAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempts = attempt
		n, err := fn(ctx, attempt, feedback)
		if err == nil {
			res.Accepted = true
			res.Items = n
			return res, nil
		}

		var ierr *issues.Error
		switch {
		case errors.As(err, &ierr):
			feedback = ierr.Issues
		case errors.Is(err, proposer.ErrMalformedProposal), errors.Is(err, proposer.ErrEmptyResponse):
			feedback = []issues.Issue{{
				Code:    issues.CodeMalformedProposal,
				Path:    "response",
				Message: err.Error(),
				Hint:    "Answer with a single JSON object in the requested format.",
			}}
		default:
			return res, err
		}
		c.logger.Warn("rejected proposal",
			"batch", index,
			"attempt", attempt,
			"issues", len(feedback),
			"codes", issues.Codes(feedback))
	}
	res.Issues = feedback
	c.logger.Error("skipping batch after failed attempts",
		"batch", index,
		"attempts", res.Attempts,
		"codes", issues.Codes(feedback))
	return res, nil
}

// BuildOntology implements Engine. Each question group is proposed, checked
// and re-proposed with the issue list as feedback up to the configured
// number of attempts; a group that never passes is skipped. A fragmented
// ontology is stitched first when automatic stitching is enabled and a
// stitch proposer is set.
func (c *Client) BuildOntology(ctx context.Context, questionGroups [][]string, p proposer.ConceptProposer) (*Report, error) {
	report := &Report{}
	if c.autoStitch && c.stitcher != nil && c.ClusterCount() > 1 {
		sum, err := c.Stitch(ctx, nil)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			c.logger.Warn("automatic stitching failed", "error", err)
		}
		report.Stitch = sum
	}

	for i, questions := range questionGroups {
		res, err := c.remedy(ctx, i, func(ctx context.Context, attempt int, feedback []issues.Issue) (int, error) {
			batch, err := p.ProposeConcepts(ctx, proposer.ConceptRequest{
				Questions: questions,
				Ontology:  c.store,
				Feedback:  feedback,
				Attempt:   attempt,
			})
			if err != nil {
				return 0, err
			}
			if _, err := c.AddConcepts(ctx, batch); err != nil {
				return 0, err
			}
			return len(batch), nil
		})
		report.add(res)
		if err != nil {
			return report, fmt.Errorf("question group %d: %w", i, err)
		}
	}

	c.logger.Info("built ontology",
		"groups", len(questionGroups),
		"accepted", report.Accepted,
		"skipped", report.Skipped,
		"classes", c.store.Len())
	return report, nil
}

// ExtractKG implements Engine. Each text goes through the same remedy loop
// as BuildOntology, with the typed entities passed to the proposer so that
// names are reused.
func (c *Client) ExtractKG(ctx context.Context, texts []string, p proposer.TripletProposer) (*Report, error) {
	report := &Report{}
	for i, text := range texts {
		res, err := c.remedy(ctx, i, func(ctx context.Context, attempt int, feedback []issues.Issue) (int, error) {
			batch, err := p.ProposeTriplets(ctx, proposer.TripletRequest{
				Text:     text,
				Ontology: c.store,
				Entities: c.entityTypes(),
				Feedback: feedback,
				Attempt:  attempt,
			})
			if err != nil {
				return 0, err
			}
			plan, err := c.AddTriplets(ctx, batch)
			if err != nil {
				return 0, err
			}
			return len(plan.Accepted), nil
		})
		report.add(res)
		if err != nil {
			return report, fmt.Errorf("text %d: %w", i, err)
		}
	}

	c.logger.Info("extracted knowledge graph",
		"texts", len(texts),
		"accepted", report.Accepted,
		"skipped", report.Skipped,
		"triplets", c.checker.Len())
	return report, nil
}

func (c *Client) entityTypes() map[string]string {
	names := c.checker.Entities()
	out := make(map[string]string, len(names))
	for _, e := range names {
		out[e], _ = c.checker.EntityType(e)
	}
	return out
}
