// Package types defines the core data types shared by the ontoweave packages.
//
// This package contains the schema layer and the instance layer:
//   - Class / ClassDef: committed and proposed ontology classes (single inheritance)
//   - SubclassRelation: the subclass -> superclass link
//   - ObjectProperty / DataProperty: typed properties with domain and range
//   - Concept: the closed union of proposed ontology additions
//   - Triplet / KG: knowledge graph facts and documents
//
// # Concepts
//
// Concept is a sealed interface. Consumers match it with an exhaustive type
// switch:
//
//	switch c := concept.(type) {
//	case types.ClassDef:
//	case types.SubclassRelation:
//	case types.ObjectProperty:
//	case types.DataProperty:
//	}
//
// Concepts encodes a batch as a list of objects tagged with "kind", in JSON
// or YAML.
//
// # Naming
//
// Class names start with an uppercase letter; entity names are snake_case.
// IsUpperName and IsSnakeCase implement both conventions.
package types
