package ontology

import (
	"errors"
	"fmt"
	"sort"

	"github.com/soundprediction/ontoweave/pkg/types"
)

var (
	ErrClassNotFound    = errors.New("class not found")
	ErrPropertyNotFound = errors.New("property not found")
)

// Txn stages changes against a base snapshot. Maps are copied on first
// write and classes are cloned before they change, so the base snapshot and
// any store committed earlier stay untouched.
type Txn struct {
	base        *Store
	classes     map[string]*types.Class
	objectProps map[string]types.ObjectProperty
	dataProps   map[string]types.DataProperty
	owned       map[string]struct{}
}

// Edit starts a transaction on top of s.
func (s *Store) Edit() *Txn {
	return &Txn{base: s}
}

func (t *Txn) classMap() map[string]*types.Class {
	if t.classes != nil {
		return t.classes
	}
	return t.base.classes
}

func (t *Txn) objectMap() map[string]types.ObjectProperty {
	if t.objectProps != nil {
		return t.objectProps
	}
	return t.base.objectProps
}

func (t *Txn) dataMap() map[string]types.DataProperty {
	if t.dataProps != nil {
		return t.dataProps
	}
	return t.base.dataProps
}

func (t *Txn) writableClasses() map[string]*types.Class {
	if t.classes == nil {
		t.classes = make(map[string]*types.Class, len(t.base.classes)+1)
		for k, v := range t.base.classes {
			t.classes[k] = v
		}
		t.owned = make(map[string]struct{})
	}
	return t.classes
}

// mutableClass returns a class the transaction may change in place.
func (t *Txn) mutableClass(name string) (*types.Class, bool) {
	classes := t.writableClasses()
	c, ok := classes[name]
	if !ok {
		return nil, false
	}
	if _, mine := t.owned[name]; !mine {
		c = c.Clone()
		classes[name] = c
		t.owned[name] = struct{}{}
	}
	return c, true
}

func (t *Txn) writableObjects() map[string]types.ObjectProperty {
	if t.objectProps == nil {
		t.objectProps = make(map[string]types.ObjectProperty, len(t.base.objectProps)+1)
		for k, v := range t.base.objectProps {
			t.objectProps[k] = v
		}
	}
	return t.objectProps
}

func (t *Txn) writableData() map[string]types.DataProperty {
	if t.dataProps == nil {
		t.dataProps = make(map[string]types.DataProperty, len(t.base.dataProps)+1)
		for k, v := range t.base.dataProps {
			t.dataProps[k] = v
		}
	}
	return t.dataProps
}

// HasClass reports whether the staged state contains the class.
func (t *Txn) HasClass(name string) bool {
	_, ok := t.classMap()[name]
	return ok
}

// HasProperty reports whether the staged state contains the property.
func (t *Txn) HasProperty(name string) bool {
	if _, ok := t.objectMap()[name]; ok {
		return true
	}
	_, ok := t.dataMap()[name]
	return ok
}

// PutClass adds or replaces a class.
func (t *Txn) PutClass(c *types.Class) {
	classes := t.writableClasses()
	classes[c.Name] = c.Clone()
	t.owned[c.Name] = struct{}{}
}

// SetSuperclass links name to superclass; "" makes name a root.
func (t *Txn) SetSuperclass(name, superclass string) error {
	if superclass != "" && !t.HasClass(superclass) {
		return fmt.Errorf("superclass %q: %w", superclass, ErrClassNotFound)
	}
	c, ok := t.mutableClass(name)
	if !ok {
		return fmt.Errorf("class %q: %w", name, ErrClassNotFound)
	}
	c.Superclass = superclass
	return nil
}

// RemoveClass deletes a class and clears the superclass link of its
// children. Properties are left to the caller.
func (t *Txn) RemoveClass(name string) error {
	classes := t.writableClasses()
	if _, ok := classes[name]; !ok {
		return fmt.Errorf("class %q: %w", name, ErrClassNotFound)
	}
	delete(classes, name)
	delete(t.owned, name)
	for other, c := range classes {
		if c.Superclass == name {
			mc, _ := t.mutableClass(other)
			mc.Superclass = ""
		}
	}
	return nil
}

// PutObjectProperty adds or replaces an object property.
func (t *Txn) PutObjectProperty(p types.ObjectProperty) {
	if _, ok := t.dataMap()[p.Name]; ok {
		delete(t.writableData(), p.Name)
	}
	t.writableObjects()[p.Name] = p.Clone()
}

// PutDataProperty adds or replaces a data property.
func (t *Txn) PutDataProperty(p types.DataProperty) {
	if _, ok := t.objectMap()[p.Name]; ok {
		delete(t.writableObjects(), p.Name)
	}
	t.writableData()[p.Name] = p.Clone()
}

// RemoveProperty deletes a property of either kind.
func (t *Txn) RemoveProperty(name string) error {
	if _, ok := t.objectMap()[name]; ok {
		delete(t.writableObjects(), name)
		return nil
	}
	if _, ok := t.dataMap()[name]; ok {
		delete(t.writableData(), name)
		return nil
	}
	return fmt.Errorf("property %q: %w", name, ErrPropertyNotFound)
}

// DetachClass removes class from the domain and range of every property and
// deletes the properties left without a domain or object range. It returns
// the deleted property names, sorted.
func (t *Txn) DetachClass(class string) []string {
	var removed []string
	for name, p := range t.objectMap() {
		domain, dHit := without(p.Domain, class)
		rng, rHit := without(p.Range, class)
		if !dHit && !rHit {
			continue
		}
		if len(domain) == 0 || len(rng) == 0 {
			delete(t.writableObjects(), name)
			removed = append(removed, name)
			continue
		}
		p = p.Clone()
		p.Domain, p.Range = domain, rng
		t.writableObjects()[name] = p
	}
	for name, p := range t.dataMap() {
		domain, hit := without(p.Domain, class)
		if !hit {
			continue
		}
		if len(domain) == 0 {
			delete(t.writableData(), name)
			removed = append(removed, name)
			continue
		}
		p = p.Clone()
		p.Domain = domain
		t.writableData()[name] = p
	}
	sort.Strings(removed)
	return removed
}

// RecomputeOwnProperties attaches every property to each class literally
// named in its domain and drops stale attachments.
func (t *Txn) RecomputeOwnProperties() {
	own := make(map[string][]string)
	for name, p := range t.objectMap() {
		for _, c := range p.Domain {
			own[c] = append(own[c], name)
		}
	}
	for name, p := range t.dataMap() {
		for _, c := range p.Domain {
			own[c] = append(own[c], name)
		}
	}
	for name, c := range t.classMap() {
		props := dedupSorted(own[name])
		if equalNames(c.OwnProperties, props) {
			continue
		}
		mc, _ := t.mutableClass(name)
		mc.OwnProperties = props
	}
}

// Commit publishes the staged state as a new snapshot. The transaction may
// keep staging changes on top of the returned store.
func (t *Txn) Commit() *Store {
	s := &Store{
		generation:  t.base.generation + 1,
		classes:     t.classMap(),
		objectProps: t.objectMap(),
		dataProps:   t.dataMap(),
	}
	t.base = s
	t.classes, t.objectProps, t.dataProps, t.owned = nil, nil, nil, nil
	return s
}

func without(names []string, drop string) ([]string, bool) {
	hit := false
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == drop {
			hit = true
			continue
		}
		out = append(out, n)
	}
	return out, hit
}

func dedupSorted(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
