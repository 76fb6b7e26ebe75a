// Package ontology holds the ontology store: classes with single
// inheritance plus object and data properties.
//
// A Store is an immutable snapshot. Changes are staged on a Txn obtained
// from Store.Edit and published with Txn.Commit, which returns a new Store
// with the next generation number:
//
//	txn := store.Edit()
//	txn.PutClass(&types.Class{Name: "Dog", Superclass: "Animal"})
//	next := txn.Commit()
//
// Because the base snapshot never changes, callers can try an edit, inspect
// the result and simply discard it. The validator and the stitcher both use
// this to simulate a batch before accepting it.
//
// Documents are the persisted form (see Document, ReadJSON and WriteJSON).
package ontology
