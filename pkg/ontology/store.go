package ontology

import (
	"fmt"
	"sort"
	"sync"

	"github.com/soundprediction/ontoweave/pkg/hierarchy"
	"github.com/soundprediction/ontoweave/pkg/issues"
	"github.com/soundprediction/ontoweave/pkg/types"
)

// Store is an immutable ontology snapshot. Every change goes through Edit,
// which returns a transaction whose Commit yields a new Store; the receiver
// is never modified, so a Store can be shared freely between readers.
type Store struct {
	generation  uint64
	classes     map[string]*types.Class
	objectProps map[string]types.ObjectProperty
	dataProps   map[string]types.DataProperty

	adjOnce  sync.Once
	parents  hierarchy.Parents
	children map[string][]string
}

// New returns an empty store at generation 0.
func New() *Store {
	return &Store{
		classes:     make(map[string]*types.Class),
		objectProps: make(map[string]types.ObjectProperty),
		dataProps:   make(map[string]types.DataProperty),
	}
}

// Generation counts the commits that led to this snapshot.
func (s *Store) Generation() uint64 { return s.generation }

// Len returns the number of classes.
func (s *Store) Len() int { return len(s.classes) }

// Empty reports whether the store has no classes.
func (s *Store) Empty() bool { return len(s.classes) == 0 }

func (s *Store) adjacency() {
	s.adjOnce.Do(func() {
		s.parents = make(hierarchy.Parents, len(s.classes))
		for name, c := range s.classes {
			s.parents[name] = c.Superclass
		}
		s.children = hierarchy.Children(s.parents)
	})
}

// Parents returns the class to superclass map. Callers must not modify it.
func (s *Store) Parents() hierarchy.Parents {
	s.adjacency()
	return s.parents
}

// HasClass reports whether a class with the given name exists.
func (s *Store) HasClass(name string) bool {
	_, ok := s.classes[name]
	return ok
}

// Class returns a copy of the named class.
func (s *Store) Class(name string) (*types.Class, bool) {
	c, ok := s.classes[name]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// ClassNames returns all class names, sorted.
func (s *Store) ClassNames() []string {
	names := make([]string, 0, len(s.classes))
	for name := range s.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Classes returns copies of all classes ordered by name.
func (s *Store) Classes() []*types.Class {
	out := make([]*types.Class, 0, len(s.classes))
	for _, name := range s.ClassNames() {
		out = append(out, s.classes[name].Clone())
	}
	return out
}

// Superclass returns the direct superclass of name, "" for a root.
func (s *Store) Superclass(name string) (string, bool) {
	c, ok := s.classes[name]
	if !ok {
		return "", false
	}
	return c.Superclass, true
}

// Roots returns the sorted classes without a superclass.
func (s *Store) Roots() []string {
	return hierarchy.Roots(s.Parents())
}

// Root returns the unique root. ok is false when there are zero or several.
func (s *Store) Root() (string, bool) {
	roots := s.Roots()
	if len(roots) != 1 {
		return "", false
	}
	return roots[0], true
}

// Ancestors returns the chain from name up to its root, name first.
func (s *Store) Ancestors(name string) []string {
	return hierarchy.Ancestors(s.Parents(), name)
}

// Depth returns the number of classes on the ancestor chain of name.
func (s *Store) Depth(name string) int {
	return hierarchy.Depth(s.Parents(), name)
}

// IsSubclassOf reports whether ancestor is name or one of its ancestors.
func (s *Store) IsSubclassOf(name, ancestor string) bool {
	return hierarchy.IsAncestorOrSelf(s.Parents(), ancestor, name)
}

// Children returns the direct subclasses of name.
func (s *Store) Children(name string) []string {
	s.adjacency()
	return append([]string(nil), s.children[name]...)
}

// Descendants is an alias of Children.
func (s *Store) Descendants(name string) []string {
	return s.Children(name)
}

// Subtree returns name and every class below it.
func (s *Store) Subtree(name string) []string {
	if !s.HasClass(name) {
		return nil
	}
	s.adjacency()
	return hierarchy.Subtree(s.children, name)
}

// SubclassRelations returns every subclass edge ordered by subclass.
func (s *Store) SubclassRelations() []types.SubclassRelation {
	var out []types.SubclassRelation
	for _, name := range s.ClassNames() {
		if sup := s.classes[name].Superclass; sup != "" {
			out = append(out, types.SubclassRelation{Subclass: name, Superclass: sup})
		}
	}
	return out
}

// Components returns the connected components of the class hierarchy, an
// isolated class forming its own component.
func (s *Store) Components() [][]string {
	p := s.Parents()
	return hierarchy.ConnectedComponents(s.ClassNames(), hierarchy.Edges(p))
}

// HasProperty reports whether an object or data property has the name.
func (s *Store) HasProperty(name string) bool {
	_, ok := s.Property(name)
	return ok
}

// ObjectProperty returns a copy of the named object property.
func (s *Store) ObjectProperty(name string) (types.ObjectProperty, bool) {
	p, ok := s.objectProps[name]
	if !ok {
		return types.ObjectProperty{}, false
	}
	return p.Clone(), true
}

// DataProperty returns a copy of the named data property.
func (s *Store) DataProperty(name string) (types.DataProperty, bool) {
	p, ok := s.dataProps[name]
	if !ok {
		return types.DataProperty{}, false
	}
	return p.Clone(), true
}

// Property looks a name up in the shared property namespace.
func (s *Store) Property(name string) (types.Property, bool) {
	if p, ok := s.objectProps[name]; ok {
		return p.Clone(), true
	}
	if p, ok := s.dataProps[name]; ok {
		return p.Clone(), true
	}
	return nil, false
}

// PropertyNames returns the names of all properties, sorted.
func (s *Store) PropertyNames() []string {
	names := make([]string, 0, len(s.objectProps)+len(s.dataProps))
	for name := range s.objectProps {
		names = append(names, name)
	}
	for name := range s.dataProps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ObjectProperties returns copies of all object properties ordered by name.
func (s *Store) ObjectProperties() []types.ObjectProperty {
	out := make([]types.ObjectProperty, 0, len(s.objectProps))
	for _, p := range s.objectProps {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DataProperties returns copies of all data properties ordered by name.
func (s *Store) DataProperties() []types.DataProperty {
	out := make([]types.DataProperty, 0, len(s.dataProps))
	for _, p := range s.dataProps {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Properties returns the properties usable on instances of class. With
// inherited set, properties declared on ancestors are included, nearest
// class first.
func (s *Store) Properties(class string, inherited bool) []types.Property {
	chain := []string{class}
	if inherited {
		chain = s.Ancestors(class)
	}
	seen := make(map[string]struct{})
	var out []types.Property
	for _, name := range chain {
		c, ok := s.classes[name]
		if !ok {
			continue
		}
		for _, pn := range c.OwnProperties {
			if _, dup := seen[pn]; dup {
				continue
			}
			if p, ok := s.Property(pn); ok {
				seen[pn] = struct{}{}
				out = append(out, p)
			}
		}
	}
	return out
}

// CheckTree reports every violation of the single rooted tree shape:
// several or no roots, cycles, and classes unreachable from the root.
func (s *Store) CheckTree() []issues.Issue {
	if s.Empty() {
		return nil
	}
	p := s.Parents()
	var list []issues.Issue

	for _, name := range s.ClassNames() {
		chain := hierarchy.Ancestors(p, name)
		if top := chain[len(chain)-1]; p[top] != "" {
			list = append(list, issues.Issue{
				Code:    issues.CodeCircularHierarchy,
				Path:    "class:" + name,
				Message: fmt.Sprintf("class '%s' is part of a superclass cycle", name),
			})
		}
	}

	roots := hierarchy.Roots(p)
	switch len(roots) {
	case 0:
		return list
	case 1:
		if unreachable := hierarchy.Unreachable(p, roots[0]); len(unreachable) > 0 {
			list = append(list, issues.Issue{
				Code:    issues.CodeDisconnectedClasses,
				Path:    "ontology",
				Message: fmt.Sprintf("classes not reachable from root '%s': %s", roots[0], issues.Quote(unreachable)),
			})
		}
	default:
		list = append(list, issues.Issue{
			Code:    issues.CodeMultipleRoots,
			Path:    "ontology",
			Message: fmt.Sprintf("ontology has %d root classes: %s", len(roots), issues.Quote(roots)),
			Hint:    "Connect the clusters so exactly one class has no superclass.",
		})
	}
	return list
}
