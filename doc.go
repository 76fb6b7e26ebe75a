// Package ontoweave keeps an ontology and a knowledge graph consistent while
// both are grown from untrusted proposals, typically produced by a language
// model.
//
// Every change goes through a validator before it is committed: concept
// batches through pkg/validator, stitching operations through pkg/weaver and
// triplet batches through pkg/conformance. Rejections carry the complete
// list of issues so that a proposer can repair its answer.
//
// # Basic Usage
//
//	engine := ontoweave.New(nil, ontoweave.WithLogger(logger))
//
//	_, err := engine.AddConcepts(ctx, []types.Concept{
//		types.ClassDef{Name: "Thing"},
//		types.ClassDef{Name: "Animal", Superclass: "Thing"},
//		types.ClassDef{Name: "Person", Superclass: "Thing"},
//		types.ObjectProperty{Name: "hasOwner", Domain: []string{"Animal"}, Range: []string{"Person"}},
//	})
//
//	_, err = engine.AddTriplets(ctx, []types.Triplet{
//		{Subject: "rex", Predicate: types.IsA, Object: "Animal"},
//		{Subject: "alice", Predicate: types.IsA, Object: "Person"},
//		{Subject: "rex", Predicate: "hasOwner", Object: "alice"},
//	})
//
// A rejected batch is reported as an *issues.Error:
//
//	var ierr *issues.Error
//	if errors.As(err, &ierr) {
//		for _, i := range ierr.Issues {
//			fmt.Println(i.Code, i.Message)
//		}
//	}
//
// # Remedy Loops
//
// BuildOntology and ExtractKG drive a proposer batch by batch. A rejected
// batch is proposed again with the issues as feedback, up to
// MaxRemedyAttempts times, and skipped when it never passes.
//
// # Stitching
//
// An ontology loaded from a document may be split into several clusters.
// Stitch asks a weaver.Proposer for merge, bridge and prune operations
// until a single cluster remains. Pruned classes and properties are removed
// from the knowledge graph as well.
//
// # Concurrency
//
// A Client has no internal locking. Callers that share one between
// goroutines, like pkg/server, serialise access themselves.
package ontoweave
