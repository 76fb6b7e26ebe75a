package proposer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/ontoweave/pkg/types"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

var (
	thinkTags  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFences = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// RemoveThinkTags strips reasoning blocks some models emit before the answer.
func RemoveThinkTags(s string) string {
	return strings.TrimSpace(thinkTags.ReplaceAllString(s, ""))
}

// extractJSON returns the JSON payload of a model response: the contents of
// the first fenced block if there is one, otherwise the text itself. Text
// that does not parse is passed through jsonrepair.
func extractJSON(raw string) ([]byte, error) {
	s := RemoveThinkTags(raw)
	if m := codeFences.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if s == "" {
		return nil, ErrEmptyResponse
	}
	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProposal, err)
	}
	return []byte(repaired), nil
}

// unwrap returns the array or object under key when data is an object that
// carries it, and data otherwise.
func unwrap(data []byte, key string) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return data
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return data
	}
	if inner, ok := fields[key]; ok {
		return inner
	}
	return data
}

// DecodeConcepts parses a concept batch, either a bare list or an object
// with an "additions" list.
func DecodeConcepts(raw string) ([]types.Concept, error) {
	data, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var batch types.Concepts
	if err := json.Unmarshal(unwrap(data, "additions"), &batch); err != nil {
		return nil, fmt.Errorf("%w: concepts: %v", ErrMalformedProposal, err)
	}
	return batch, nil
}

// DecodeTriplets parses a triplet batch, either a bare list or an object
// with a "triplets" list.
func DecodeTriplets(raw string) ([]types.Triplet, error) {
	data, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var batch []types.Triplet
	if err := json.Unmarshal(unwrap(data, "triplets"), &batch); err != nil {
		return nil, fmt.Errorf("%w: triplets: %v", ErrMalformedProposal, err)
	}
	return batch, nil
}

// DecodeOperation parses a stitching operation, either bare or under an
// "operation" key.
func DecodeOperation(raw string) (weaver.Operation, error) {
	data, err := extractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", weaver.ErrInvalidProposal, err)
	}
	op, err := weaver.DecodeOperation(unwrap(data, "operation"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrMalformedProposal, weaver.ErrInvalidProposal, err)
	}
	return op, nil
}
