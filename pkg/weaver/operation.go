package weaver

import (
	"encoding/json"
	"fmt"

	"github.com/soundprediction/ontoweave/pkg/types"
)

// OperationKind discriminates stitching operations.
type OperationKind string

const (
	KindMerge  OperationKind = "merge"
	KindBridge OperationKind = "bridge"
	KindPrune  OperationKind = "prune"
)

// Operation is a proposed repair step. The implementations are Merge,
// Bridge and Prune.
type Operation interface {
	Kind() OperationKind
	ClusterIndexes() []int
	operation()
}

// Merge joins two clusters by adding subclass relations between them.
type Merge struct {
	Indexes   []int                    `json:"indexes"`
	Relations []types.SubclassRelation `json:"relations"`
}

// Bridge connects two clusters through subclass relations. It is validated
// and applied exactly like Merge; the distinction records caller intent.
type Bridge struct {
	Indexes   []int                    `json:"indexes"`
	Relations []types.SubclassRelation `json:"relations"`
}

// Prune removes classes of one cluster from the ontology.
type Prune struct {
	Indexes []int    `json:"indexes"`
	Classes []string `json:"classes"`
}

func (Merge) Kind() OperationKind      { return KindMerge }
func (m Merge) ClusterIndexes() []int  { return m.Indexes }
func (Merge) operation()               {}
func (Bridge) Kind() OperationKind     { return KindBridge }
func (b Bridge) ClusterIndexes() []int { return b.Indexes }
func (Bridge) operation()              {}
func (Prune) Kind() OperationKind      { return KindPrune }
func (p Prune) ClusterIndexes() []int  { return p.Indexes }
func (Prune) operation()               {}

func (m Merge) String() string {
	return fmt.Sprintf("merge(indexes=%v, relations=%d)", m.Indexes, len(m.Relations))
}

func (b Bridge) String() string {
	return fmt.Sprintf("bridge(indexes=%v, relations=%d)", b.Indexes, len(b.Relations))
}

func (p Prune) String() string {
	return fmt.Sprintf("prune(indexes=%v, classes=%v)", p.Indexes, p.Classes)
}

// relationsOf returns the relations carried by a Merge or Bridge.
func relationsOf(op Operation) []types.SubclassRelation {
	switch op := op.(type) {
	case Merge:
		return op.Relations
	case Bridge:
		return op.Relations
	}
	return nil
}

// EncodeOperation renders op as {"type": kind, ...fields}.
func EncodeOperation(op Operation) ([]byte, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(op.Kind())
	fields["type"] = kind
	return json.Marshal(fields)
}

// DecodeOperation parses the {"type": kind, ...fields} form.
func DecodeOperation(data []byte) (Operation, error) {
	var env struct {
		Type OperationKind `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode operation: %w", err)
	}
	return decodePayload(env.Type, data)
}

func decodePayload(kind OperationKind, data []byte) (Operation, error) {
	switch kind {
	case KindMerge:
		var op Merge
		err := json.Unmarshal(data, &op)
		return op, err
	case KindBridge:
		var op Bridge
		err := json.Unmarshal(data, &op)
		return op, err
	case KindPrune:
		var op Prune
		err := json.Unmarshal(data, &op)
		return op, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, kind)
	}
}
