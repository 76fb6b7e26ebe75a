package weaver

import (
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/types"
)

// Cluster is a connected component of the class hierarchy. Indexes start at
// 1 and are only meaningful for the pass that produced them.
type Cluster struct {
	Index     int                      `json:"index"`
	Classes   []string                 `json:"classes"`
	Relations []types.SubclassRelation `json:"relations"`
}

// Contains reports whether class belongs to the cluster.
func (c Cluster) Contains(class string) bool {
	for _, name := range c.Classes {
		if name == class {
			return true
		}
	}
	return false
}

// FindClusters returns the connected components of the store's hierarchy,
// largest first. A class without any subclass relation forms a cluster of
// its own.
func FindClusters(store *ontology.Store) []Cluster {
	parents := store.Parents()
	components := store.Components()
	clusters := make([]Cluster, len(components))
	for i, members := range components {
		c := Cluster{Index: i + 1, Classes: members, Relations: []types.SubclassRelation{}}
		for _, name := range members {
			if sup := parents[name]; sup != "" {
				c.Relations = append(c.Relations, types.SubclassRelation{Subclass: name, Superclass: sup})
			}
		}
		clusters[i] = c
	}
	return clusters
}

func clusterByIndex(clusters []Cluster, index int) (Cluster, bool) {
	for _, c := range clusters {
		if c.Index == index {
			return c, true
		}
	}
	return Cluster{}, false
}

func clusterIndexes(clusters []Cluster) []int {
	out := make([]int, len(clusters))
	for i, c := range clusters {
		out[i] = c.Index
	}
	return out
}
