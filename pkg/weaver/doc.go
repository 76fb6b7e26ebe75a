// Package weaver stitches a fragmented class hierarchy back into a single
// tree.
//
// FindClusters splits the hierarchy into connected components. A proposer
// then suggests one operation at a time:
//
//   - Merge and Bridge add subclass relations between two clusters
//   - Prune removes classes of one cluster, together with the properties
//     that no longer have a domain or range
//
// Weaver.Apply simulates the operation on a copy-on-write snapshot and only
// accepts it when the number of clusters drops. The count is a non-negative
// integer, so Run terminates after at most as many accepted operations as
// there were clusters initially.
package weaver
