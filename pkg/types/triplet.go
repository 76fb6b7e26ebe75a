package types

import "fmt"

// Triplet is a (subject, predicate, object) fact. Identity is structural:
// two triplets with equal subject, predicate and object are the same fact
// regardless of confidence.
type Triplet struct {
	Subject    string   `json:"subject" yaml:"subject"`
	Predicate  string   `json:"predicate" yaml:"predicate"`
	Object     string   `json:"object" yaml:"object"`
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// TripletKey is the structural identity of a triplet.
type TripletKey struct {
	Subject   string
	Predicate string
	Object    string
}

// Key returns the structural identity of the triplet.
func (t Triplet) Key() TripletKey {
	return TripletKey{Subject: t.Subject, Predicate: t.Predicate, Object: t.Object}
}

// IsTypeAssignment reports whether the triplet uses the reserved isA predicate.
func (t Triplet) IsTypeAssignment() bool {
	return t.Predicate == IsA
}

// Validate checks the triplet fields that do not depend on an ontology.
func (t Triplet) Validate() error {
	if t.Subject == "" || t.Predicate == "" || t.Object == "" {
		return ErrEmptyTripletField
	}
	if t.Confidence != nil && !(*t.Confidence >= 0 && *t.Confidence <= 1) {
		return ErrInvalidConfidence
	}
	return nil
}

func (t Triplet) String() string {
	return fmt.Sprintf("(%s, %s, %s)", t.Subject, t.Predicate, t.Object)
}

// KG is a named knowledge graph document.
type KG struct {
	Name     string    `json:"name" yaml:"name"`
	Triplets []Triplet `json:"triplets" yaml:"triplets"`
}

// Subjects returns the distinct triplet subjects in first-seen order.
func (kg *KG) Subjects() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range kg.Triplets {
		if _, ok := seen[t.Subject]; ok {
			continue
		}
		seen[t.Subject] = struct{}{}
		out = append(out, t.Subject)
	}
	return out
}
