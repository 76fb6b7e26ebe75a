package hierarchy

import "sort"

// Parents maps every class to its direct superclass. Roots map to "".
type Parents map[string]string

// Edge is an undirected connection between two classes.
type Edge struct {
	A, B string
}

// Ancestors returns the chain that starts at c and climbs superclass links up
// to the root, e.g. [Dog, Mammal, Animal]. The length of the chain is the
// depth of c, counting c itself. Walking stops at the first repeated class,
// so a corrupt (cyclic) parent map still terminates. Unknown classes yield nil.
func Ancestors(parents Parents, c string) []string {
	if _, ok := parents[c]; !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var chain []string
	for cur := c; cur != ""; cur = parents[cur] {
		if _, dup := seen[cur]; dup {
			break
		}
		seen[cur] = struct{}{}
		chain = append(chain, cur)
		if _, ok := parents[cur]; !ok {
			break
		}
	}
	return chain
}

// Depth returns len(Ancestors(parents, c)).
func Depth(parents Parents, c string) int {
	return len(Ancestors(parents, c))
}

// IsAncestorOrSelf reports whether ancestor appears on the chain of c.
func IsAncestorOrSelf(parents Parents, ancestor, c string) bool {
	for _, a := range Ancestors(parents, c) {
		if a == ancestor {
			return true
		}
	}
	return false
}

// Children builds the child adjacency of parents. Child lists are sorted.
func Children(parents Parents) map[string][]string {
	children := make(map[string][]string, len(parents))
	for c, p := range parents {
		if p == "" {
			continue
		}
		children[p] = append(children[p], c)
	}
	for p := range children {
		sort.Strings(children[p])
	}
	return children
}

// Descendants returns the direct children of c.
func Descendants(children map[string][]string, c string) []string {
	return children[c]
}

// Subtree returns c and every class transitively below it, breadth first.
func Subtree(children map[string][]string, c string) []string {
	seen := map[string]struct{}{c: {}}
	out := []string{c}
	for i := 0; i < len(out); i++ {
		for _, child := range children[out[i]] {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			out = append(out, child)
		}
	}
	return out
}

// Roots returns the sorted classes without a superclass.
func Roots(parents Parents) []string {
	var roots []string
	for c, p := range parents {
		if p == "" {
			roots = append(roots, c)
		}
	}
	sort.Strings(roots)
	return roots
}

// CreatesCycle reports whether adding the link sub -> super would close a
// cycle, i.e. sub equals super or already sits on super's ancestor chain.
func CreatesCycle(parents Parents, sub, super string) bool {
	if sub == super {
		return true
	}
	return IsAncestorOrSelf(parents, sub, super)
}

// Unreachable returns the sorted classes that cannot be reached from root by
// following child links.
func Unreachable(parents Parents, root string) []string {
	reached := make(map[string]struct{})
	for _, c := range Subtree(Children(parents), root) {
		reached[c] = struct{}{}
	}
	var out []string
	for c := range parents {
		if _, ok := reached[c]; !ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Edges returns the undirected subclass edges of parents.
func Edges(parents Parents) []Edge {
	edges := make([]Edge, 0, len(parents))
	for c, p := range parents {
		if p != "" {
			edges = append(edges, Edge{A: c, B: p})
		}
	}
	return edges
}

// ConnectedComponents partitions vertices into the connected components of
// the undirected edge set. Edge endpoints missing from vertices are added.
// Members are sorted; components are ordered by size (largest first), then
// by their smallest member, so indices are stable for a given graph.
func ConnectedComponents(vertices []string, edges []Edge) [][]string {
	adj := make(map[string][]string, len(vertices))
	for _, v := range vertices {
		if _, ok := adj[v]; !ok {
			adj[v] = nil
		}
	}
	for _, e := range edges {
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}

	names := make([]string, 0, len(adj))
	for v := range adj {
		names = append(names, v)
	}
	sort.Strings(names)

	visited := make(map[string]struct{}, len(adj))
	var components [][]string
	for _, start := range names {
		if _, ok := visited[start]; ok {
			continue
		}
		visited[start] = struct{}{}
		queue := []string{start}
		for i := 0; i < len(queue); i++ {
			for _, next := range adj[queue[i]] {
				if _, ok := visited[next]; ok {
					continue
				}
				visited[next] = struct{}{}
				queue = append(queue, next)
			}
		}
		sort.Strings(queue)
		components = append(components, queue)
	}

	sort.SliceStable(components, func(i, j int) bool {
		if len(components[i]) != len(components[j]) {
			return len(components[i]) > len(components[j])
		}
		return components[i][0] < components[j][0]
	})
	return components
}
