package weaver

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/soundprediction/ontoweave/pkg/ontology"
)

// History is the audit record of a stitching run: the starting ontology and
// clusters plus every accepted operation in order.
type History struct {
	RunID            string             `json:"run_id"`
	OriginalOntology *ontology.Document `json:"original_ontology"`
	OriginalClusters []Cluster          `json:"original_clusters"`
	Steps            []Step             `json:"history"`
}

// Step is one accepted operation. It encodes as a [kind, payload] pair.
type Step struct {
	Operation Operation
}

// MarshalJSON implements json.Marshaler.
func (s Step) MarshalJSON() ([]byte, error) {
	if s.Operation == nil {
		return nil, fmt.Errorf("history step without operation")
	}
	payload, err := json.Marshal(s.Operation)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]any{s.Operation.Kind(), json.RawMessage(payload)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Step) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("history step: want [kind, payload], got %d elements", len(pair))
	}
	var kind OperationKind
	if err := json.Unmarshal(pair[0], &kind); err != nil {
		return fmt.Errorf("history step kind: %w", err)
	}
	op, err := decodePayload(kind, pair[1])
	if err != nil {
		return fmt.Errorf("history step: %w", err)
	}
	s.Operation = op
	return nil
}

// Operations returns the accepted operations in order.
func (h *History) Operations() []Operation {
	ops := make([]Operation, len(h.Steps))
	for i, s := range h.Steps {
		ops[i] = s.Operation
	}
	return ops
}

// Replay rebuilds the original ontology and re-applies every recorded
// operation, returning the resulting store. It fails if any step would now
// be rejected.
func (h *History) Replay() (*ontology.Store, error) {
	if h.OriginalOntology == nil {
		return nil, fmt.Errorf("history %s has no original ontology", h.RunID)
	}
	store, err := ontology.FromDocument(h.OriginalOntology)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", h.RunID, err)
	}
	w := New(store, WithRunID(h.RunID))
	for i, step := range h.Steps {
		if _, err := w.Apply(step.Operation); err != nil {
			return nil, fmt.Errorf("replay %s step %d: %w", h.RunID, i+1, err)
		}
	}
	return w.Store(), nil
}

// WriteJSON encodes the history as indented JSON.
func (h *History) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(h)
}

// ReadHistory decodes a history written by WriteJSON.
func ReadHistory(r io.Reader) (*History, error) {
	var h History
	if err := json.NewDecoder(r).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return &h, nil
}
