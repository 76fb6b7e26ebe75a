package proposer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/ontoweave/pkg/types"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

// LLM proposes concepts, triplets and stitching operations by prompting a
// language model through a Chatter.
type LLM struct {
	chat   Chatter
	logger *slog.Logger
}

// Option configures an LLM.
type Option func(*LLM)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *LLM) {
		l.logger = logger
	}
}

// NewLLM creates an LLM proposer over chat.
func NewLLM(chat Chatter, opts ...Option) *LLM {
	l := &LLM{chat: chat, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ProposeConcepts implements ConceptProposer.
func (l *LLM) ProposeConcepts(ctx context.Context, req ConceptRequest) ([]types.Concept, error) {
	user, err := conceptPrompt(req)
	if err != nil {
		return nil, err
	}
	reply, err := l.chat.Chat(ctx, conceptSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("propose concepts: %w", err)
	}
	batch, err := DecodeConcepts(reply)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("proposed concepts", "attempt", req.Attempt, "concepts", len(batch))
	return batch, nil
}

// ProposeTriplets implements TripletProposer.
func (l *LLM) ProposeTriplets(ctx context.Context, req TripletRequest) ([]types.Triplet, error) {
	user, err := tripletPrompt(req)
	if err != nil {
		return nil, err
	}
	reply, err := l.chat.Chat(ctx, tripletSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("propose triplets: %w", err)
	}
	batch, err := DecodeTriplets(reply)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("proposed triplets", "attempt", req.Attempt, "triplets", len(batch))
	return batch, nil
}

// ProposeOperation implements weaver.Proposer.
func (l *LLM) ProposeOperation(ctx context.Context, in weaver.Input) (weaver.Operation, error) {
	user, err := weaverPrompt(in)
	if err != nil {
		return nil, err
	}
	reply, err := l.chat.Chat(ctx, weaverSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("propose operation: %w", err)
	}
	op, err := DecodeOperation(reply)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("proposed stitching operation", "operation", op.Kind(), "clusters", len(in.Clusters))
	return op, nil
}
