// Package conformance checks knowledge graph triplets against an ontology.
//
// A Checker holds the committed triplets and the class of every typed
// entity. Batches are all-or-nothing: Commit either adds every new triplet
// or reports every problem found and leaves the graph untouched. Type
// assignments (isA) in a batch are resolved before the other triplets, so
// an entity may be typed and used in the same batch.
//
// Property characteristics and the shape of data property values are not
// checked.
package conformance
