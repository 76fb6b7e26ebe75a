package types

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Concepts is a batch of proposed concepts. It encodes as a list of objects
// tagged with a "kind" field.
type Concepts []Concept

type conceptEnvelope struct {
	Kind ConceptKind `json:"kind" yaml:"kind"`
}

// MarshalJSON implements json.Marshaler.
func (cs Concepts) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(cs))
	for i, c := range cs {
		body, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("concept %d: %w", i, err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("concept %d: %w", i, err)
		}
		kind, _ := json.Marshal(c.Kind())
		fields["kind"] = kind
		tagged, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("concept %d: %w", i, err)
		}
		out = append(out, tagged)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (cs *Concepts) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Concepts, 0, len(raws))
	for i, raw := range raws {
		var env conceptEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("concept %d: %w", i, err)
		}
		c, err := decodeConcept(env.Kind, func(v any) error { return json.Unmarshal(raw, v) })
		if err != nil {
			return fmt.Errorf("concept %d: %w", i, err)
		}
		out = append(out, c)
	}
	*cs = out
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler so batches can be authored in YAML.
func (cs *Concepts) UnmarshalYAML(node *yaml.Node) error {
	var items []yaml.Node
	if err := node.Decode(&items); err != nil {
		return err
	}
	out := make(Concepts, 0, len(items))
	for i := range items {
		item := &items[i]
		var env conceptEnvelope
		if err := item.Decode(&env); err != nil {
			return fmt.Errorf("concept %d: %w", i, err)
		}
		c, err := decodeConcept(env.Kind, item.Decode)
		if err != nil {
			return fmt.Errorf("concept %d: %w", i, err)
		}
		out = append(out, c)
	}
	*cs = out
	return nil
}

func decodeConcept(kind ConceptKind, decode func(any) error) (Concept, error) {
	switch kind {
	case ConceptClass:
		var c ClassDef
		err := decode(&c)
		return c, err
	case ConceptSubclassRelation:
		var r SubclassRelation
		err := decode(&r)
		return r, err
	case ConceptObjectProperty:
		var p ObjectProperty
		err := decode(&p)
		return p, err
	case ConceptDataProperty:
		var p DataProperty
		err := decode(&p)
		return p, err
	default:
		return nil, fmt.Errorf("unknown concept kind %q", kind)
	}
}
