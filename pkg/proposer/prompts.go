package proposer

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soundprediction/ontoweave/pkg/issues"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

const conceptSystemPrompt = `You are an ontology engineer. Given a batch of competency questions and the current state of an ontology, extract new ontological concepts that should be added to the knowledge model.

Rules:
1. Only return concepts that are not already in the ontology.
2. Class names are PascalCase and start with an uppercase letter; property names are camelCase.
3. Every class except the single root has exactly one superclass. A superclass must already exist or be defined in the same batch.
4. Object property domains and ranges must name existing classes. Data property ranges are one of: string, int, float, boolean, date, time, datetime.
5. Prefer general, abstract concepts over specific instances.

Respond with a JSON object {"additions": [...]} where each item carries a "kind" field: "class", "subclass_relation", "object_property" or "data_property".`

const tripletSystemPrompt = `You are an expert in knowledge graph construction. Extract semantic triplets from the text that conform to the ontology.

Rules:
1. Entities are snake_case. If an entity already exists in the knowledge graph, reuse its exact name.
2. Every entity needs a type assignment (entity, isA, Class) with a class from the ontology.
3. Predicates must be properties defined in the ontology, and subjects and objects must fit their domain and range.
4. Only extract facts stated in or directly inferable from the text.

Respond with a JSON object {"triplets": [{"subject": ..., "predicate": ..., "object": ...}]}.`

const weaverSystemPrompt = `You are an experienced ontology engineer stitching together isolated clusters of an ontology. Every operation you propose must reduce the number of clusters.

Operations:
- merge or bridge: {"type": "merge"|"bridge", "indexes": [i, j], "relations": [{"subclass": ..., "superclass": ...}]} links the top class of one cluster below a class of the other.
- prune: {"type": "prune", "indexes": [i], "classes": [...]} removes peripheral classes of one cluster.

Use only existing classes. Respond with a JSON object {"operation": {...}} holding exactly one operation.`

func ontologyYAML(store *ontology.Store) (string, error) {
	if store == nil || store.Empty() {
		return "(empty)", nil
	}
	out, err := yaml.Marshal(store.Document())
	if err != nil {
		return "", fmt.Errorf("failed to marshal ontology to YAML: %w", err)
	}
	return string(out), nil
}

func writeFeedback(b *strings.Builder, feedback []issues.Issue) {
	if len(feedback) == 0 {
		return
	}
	b.WriteString("\nYour previous answer was rejected with the following errors. Fix them:\n")
	for _, i := range feedback {
		fmt.Fprintf(b, "- %s\n", i)
	}
}

func conceptPrompt(req ConceptRequest) (string, error) {
	onto, err := ontologyYAML(req.Ontology)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Competency questions:\n")
	for _, q := range req.Questions {
		fmt.Fprintf(&b, "- %s\n", q)
	}
	fmt.Fprintf(&b, "\nCurrent ontology:\n%s\n", onto)
	writeFeedback(&b, req.Feedback)
	return b.String(), nil
}

func tripletPrompt(req TripletRequest) (string, error) {
	onto, err := ontologyYAML(req.Ontology)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Ontology:\n%s\n", onto)
	if len(req.Entities) > 0 {
		names := make([]string, 0, len(req.Entities))
		for e := range req.Entities {
			names = append(names, e)
		}
		sort.Strings(names)
		b.WriteString("Known entities:\n")
		for _, e := range names {
			fmt.Fprintf(&b, "- %s: %s\n", e, req.Entities[e])
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Text:\n%s\n", req.Text)
	writeFeedback(&b, req.Feedback)
	return b.String(), nil
}

func weaverPrompt(in weaver.Input) (string, error) {
	onto, err := ontologyYAML(in.Ontology)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Ontology:\n%s\nClusters:\n", onto)
	for _, c := range in.Clusters {
		fmt.Fprintf(&b, "- %d: %s\n", c.Index, strings.Join(c.Classes, ", "))
	}
	if len(in.History) > 0 {
		b.WriteString("\nAccepted operations so far:\n")
		for _, op := range in.History {
			fmt.Fprintf(&b, "- %s\n", op)
		}
	}
	writeFeedback(&b, in.Feedback)
	return b.String(), nil
}
