package weaver

import (
	"errors"
	"fmt"
	"sort"

	"github.com/soundprediction/ontoweave/pkg/hierarchy"
	"github.com/soundprediction/ontoweave/pkg/issues"
	"github.com/soundprediction/ontoweave/pkg/ontology"
)

// OpApply names the operation in returned *issues.Error values.
const OpApply = "apply operation"

// ErrUnknownOperation is returned when decoding an unknown operation type.
var ErrUnknownOperation = errors.New("unknown operation type")

// Outcome is the simulated result of an operation.
type Outcome struct {
	Operation Operation
	Store     *ontology.Store
	Clusters  []Cluster
	// RemovedClasses and RemovedProperties are filled by Prune.
	RemovedClasses    []string
	RemovedProperties []string
}

// ApplyOperation checks op against the clusters of store and simulates it.
// The result is a new snapshot; store is left untouched. It does not check
// that the cluster count drops; Weaver.Apply does.
func ApplyOperation(store *ontology.Store, op Operation, clusters []Cluster) (*Outcome, error) {
	if op == nil {
		return nil, issues.New(OpApply, []issues.Issue{{
			Code:    issues.CodeInvalidOperation,
			Path:    "operation",
			Message: "No operation given",
		}})
	}

	var (
		out  *Outcome
		list []issues.Issue
	)
	switch op := op.(type) {
	case Merge, Bridge:
		out, list = connect(store, op, clusters)
	case Prune:
		out, list = prune(store, op, clusters)
	default:
		list = []issues.Issue{{
			Code:    issues.CodeInvalidOperation,
			Path:    "operation",
			Message: fmt.Sprintf("Unsupported operation %T", op),
		}}
	}
	if len(list) > 0 {
		return nil, issues.New(OpApply, list)
	}
	out.Operation = op
	out.Clusters = FindClusters(out.Store)
	return out, nil
}

func checkIndexes(op Operation, clusters []Cluster, want int) ([]Cluster, []issues.Issue) {
	path := string(op.Kind())
	indexes := op.ClusterIndexes()
	if len(indexes) != want {
		return nil, []issues.Issue{{
			Code:    issues.CodeInvalidOperation,
			Path:    path,
			Message: fmt.Sprintf("%s needs exactly %d cluster index(es), got %d", op.Kind(), want, len(indexes)),
		}}
	}
	if want == 2 && indexes[0] == indexes[1] {
		return nil, []issues.Issue{{
			Code:    issues.CodeInvalidOperation,
			Path:    path,
			Message: fmt.Sprintf("%s needs two different clusters, got %d twice", op.Kind(), indexes[0]),
		}}
	}

	var (
		picked []Cluster
		list   []issues.Issue
	)
	for _, idx := range indexes {
		c, ok := clusterByIndex(clusters, idx)
		if !ok {
			list = append(list, issues.Issue{
				Code:    issues.CodeInvalidClusterIndex,
				Path:    path,
				Message: fmt.Sprintf("Invalid cluster index: %d", idx),
				Context: fmt.Sprintf("Valid indices are %v", clusterIndexes(clusters)),
			})
			continue
		}
		picked = append(picked, c)
	}
	return picked, list
}

// connect applies the relations of a Merge or Bridge.
func connect(store *ontology.Store, op Operation, clusters []Cluster) (*Outcome, []issues.Issue) {
	picked, list := checkIndexes(op, clusters, 2)
	if len(list) > 0 {
		return nil, list
	}
	relations := relationsOf(op)
	if len(relations) == 0 {
		return nil, []issues.Issue{{
			Code:    issues.CodeInvalidOperation,
			Path:    string(op.Kind()),
			Message: fmt.Sprintf("%s carries no subclass relations", op.Kind()),
			Hint:    "Add at least one relation linking a class of one cluster to a class of the other.",
		}}
	}

	inScope := func(class string) bool {
		return picked[0].Contains(class) || picked[1].Contains(class)
	}
	parents := make(hierarchy.Parents, store.Len())
	for c, p := range store.Parents() {
		parents[c] = p
	}
	names := store.ClassNames()
	txn := store.Edit()

	for _, r := range relations {
		path := r.Label()
		var problem *issues.Issue
		for _, class := range []string{r.Subclass, r.Superclass} {
			if !store.HasClass(class) {
				problem = &issues.Issue{
					Code:    issues.CodeUnknownClass,
					Path:    path,
					Message: fmt.Sprintf("Class '%s' does not exist", class),
					Hint:    issues.DidYouMean(class, names, "Use classes that already exist in the ontology."),
				}
				break
			}
			if !inScope(class) {
				problem = &issues.Issue{
					Code:    issues.CodeClassNotInCluster,
					Path:    path,
					Message: fmt.Sprintf("Class '%s' is not in cluster %d or %d", class, picked[0].Index, picked[1].Index),
				}
				break
			}
		}
		if problem == nil && parents[r.Subclass] == r.Superclass {
			// Already present; leaves the cluster count to the guard.
			continue
		}
		if problem == nil {
			problem = checkLink(parents, r.Subclass, r.Superclass)
			if problem != nil {
				problem.Path = path
			}
		}
		if problem != nil {
			list = append(list, *problem)
			continue
		}
		parents[r.Subclass] = r.Superclass
		if err := txn.SetSuperclass(r.Subclass, r.Superclass); err != nil {
			list = append(list, issues.Issue{Code: issues.CodeUnknownClass, Path: path, Message: err.Error()})
		}
	}
	if len(list) > 0 {
		return nil, list
	}
	return &Outcome{Store: txn.Commit()}, nil
}

func checkLink(parents hierarchy.Parents, sub, super string) *issues.Issue {
	switch {
	case sub == super:
		return &issues.Issue{
			Code:    issues.CodeSubclassEqualsSuperclass,
			Message: fmt.Sprintf("Class '%s' cannot be its own superclass", sub),
		}
	case parents[sub] != "":
		return &issues.Issue{
			Code:    issues.CodeSubclassAlreadyHasSuperclass,
			Message: fmt.Sprintf("Class '%s' already has superclass '%s'", sub, parents[sub]),
			Hint:    "Only the top class of a cluster can be linked below another class.",
		}
	case hierarchy.CreatesCycle(parents, sub, super):
		return &issues.Issue{
			Code:    issues.CodeCircularHierarchy,
			Message: "Circular hierarchy detected",
			Context: fmt.Sprintf("'%s' is already a subclass of '%s' (directly or indirectly)", super, sub),
		}
	}
	return nil
}

func prune(store *ontology.Store, op Prune, clusters []Cluster) (*Outcome, []issues.Issue) {
	picked, list := checkIndexes(op, clusters, 1)
	if len(list) > 0 {
		return nil, list
	}
	if len(op.Classes) == 0 {
		return nil, []issues.Issue{{
			Code:    issues.CodeInvalidOperation,
			Path:    string(KindPrune),
			Message: "prune names no classes",
		}}
	}

	cluster := picked[0]
	names := store.ClassNames()
	seen := make(map[string]struct{})
	for _, class := range op.Classes {
		path := "class:" + class
		switch {
		case !store.HasClass(class):
			list = append(list, issues.Issue{
				Code:    issues.CodeUnknownClass,
				Path:    path,
				Message: fmt.Sprintf("Class '%s' does not exist", class),
				Hint:    issues.DidYouMean(class, names, "Only existing classes can be pruned."),
			})
		case !cluster.Contains(class):
			list = append(list, issues.Issue{
				Code:    issues.CodeClassNotInCluster,
				Path:    path,
				Message: fmt.Sprintf("Class '%s' is not in cluster %d", class, cluster.Index),
			})
		default:
			if _, dup := seen[class]; dup {
				list = append(list, issues.Issue{
					Code:    issues.CodeInvalidOperation,
					Path:    path,
					Message: fmt.Sprintf("Class '%s' is listed twice", class),
				})
			}
			seen[class] = struct{}{}
		}
	}
	if len(list) > 0 {
		return nil, list
	}

	txn := store.Edit()
	removedProps := make(map[string]struct{})
	for _, class := range op.Classes {
		if err := txn.RemoveClass(class); err != nil {
			return nil, []issues.Issue{{Code: issues.CodeUnknownClass, Path: "class:" + class, Message: err.Error()}}
		}
		for _, p := range txn.DetachClass(class) {
			removedProps[p] = struct{}{}
		}
	}
	txn.RecomputeOwnProperties()

	out := &Outcome{Store: txn.Commit()}
	out.RemovedClasses = append([]string(nil), op.Classes...)
	sort.Strings(out.RemovedClasses)
	for p := range removedProps {
		out.RemovedProperties = append(out.RemovedProperties, p)
	}
	sort.Strings(out.RemovedProperties)
	return out, nil
}
