// Package export writes the ontology and knowledge graph to external
// formats: Parquet files for analytics and a Neo4j database for graph
// queries.
package export

import (
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/types"
)

// EntityClasses returns the class of every entity in kg: the deepest class
// among its isA triplets.
func EntityClasses(store *ontology.Store, kg *types.KG) map[string]string {
	out := make(map[string]string)
	for _, t := range kg.Triplets {
		if !t.IsTypeAssignment() {
			continue
		}
		if cur, ok := out[t.Subject]; !ok || store.Depth(t.Object) > store.Depth(cur) {
			out[t.Subject] = t.Object
		}
	}
	return out
}
