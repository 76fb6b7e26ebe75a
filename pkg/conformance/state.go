package conformance

import (
	"fmt"
	"sort"

	"github.com/soundprediction/ontoweave/pkg/types"
)

// PruneReport lists what a Prune removed from the knowledge graph.
type PruneReport struct {
	RemovedTriplets []types.Triplet
	UntypedEntities []string
}

// Prune drops everything that depends on the removed classes and
// properties: isA triplets pointing at a removed class, triplets using a
// removed property, and triplets whose subject, or object for object
// properties, is left without a type. Entities narrowed from a surviving
// class fall back to their deepest surviving class. Call SetOntology with
// the pruned store first.
func (c *Checker) Prune(classes, properties []string) *PruneReport {
	goneClasses := toSet(classes)
	goneProps := toSet(properties)
	before := make(map[string]string, len(c.entityTypes))
	for e, t := range c.entityTypes {
		before[e] = t
	}

	var kept, removed []types.Triplet
	typed := make(map[string]string)
	for _, t := range c.triplets {
		if !t.IsTypeAssignment() {
			continue
		}
		if _, gone := goneClasses[t.Object]; gone {
			removed = append(removed, t)
			continue
		}
		if cur, ok := typed[t.Subject]; !ok || c.store.Depth(t.Object) > c.store.Depth(cur) {
			typed[t.Subject] = t.Object
		}
	}

	for _, t := range c.triplets {
		if t.IsTypeAssignment() {
			if _, gone := goneClasses[t.Object]; !gone {
				kept = append(kept, t)
			}
			continue
		}
		if _, gone := goneProps[t.Predicate]; gone {
			removed = append(removed, t)
			continue
		}
		if _, ok := typed[t.Subject]; !ok {
			removed = append(removed, t)
			continue
		}
		if _, isObject := c.store.ObjectProperty(t.Predicate); isObject {
			if _, ok := typed[t.Object]; !ok {
				removed = append(removed, t)
				continue
			}
		}
		kept = append(kept, t)
	}

	c.triplets = nil
	c.index = make(map[types.TripletKey]int, len(kept))
	for _, t := range kept {
		c.index[t.Key()] = len(c.triplets)
		c.triplets = append(c.triplets, t)
	}
	c.entityTypes = typed
	c.ancestors.Purge()

	report := &PruneReport{RemovedTriplets: removed}
	for e := range before {
		if _, ok := typed[e]; !ok {
			report.UntypedEntities = append(report.UntypedEntities, e)
		}
	}
	sort.Strings(report.UntypedEntities)
	c.logger.Debug("pruned knowledge graph",
		"classes", len(classes),
		"properties", len(properties),
		"removed_triplets", len(removed),
		"untyped_entities", len(report.UntypedEntities))
	return report
}

// Reset drops all committed triplets and entity types.
func (c *Checker) Reset() {
	c.triplets = nil
	c.index = make(map[types.TripletKey]int)
	c.entityTypes = make(map[string]string)
}

// Restore replaces the committed state with the triplets of kg. The
// document is checked like any other batch; isA triplets are replayed
// from the most general class down so that narrowings are accepted.
func (c *Checker) Restore(kg *types.KG) error {
	isA := make([]types.Triplet, 0, len(kg.Triplets))
	var rest []types.Triplet
	for _, t := range kg.Triplets {
		if t.IsTypeAssignment() {
			isA = append(isA, t)
		} else {
			rest = append(rest, t)
		}
	}
	sort.SliceStable(isA, func(i, j int) bool {
		return c.store.Depth(isA[i].Object) < c.store.Depth(isA[j].Object)
	})

	prevTriplets, prevIndex, prevTypes := c.triplets, c.index, c.entityTypes
	c.Reset()
	if _, err := c.Commit(append(isA, rest...)); err != nil {
		c.triplets, c.index, c.entityTypes = prevTriplets, prevIndex, prevTypes
		return fmt.Errorf("restore %q: %w", kg.Name, err)
	}
	return nil
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
