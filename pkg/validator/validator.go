package validator

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/soundprediction/ontoweave/pkg/hierarchy"
	"github.com/soundprediction/ontoweave/pkg/issues"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/types"
)

// Op names the operation in returned *issues.Error values.
const Op = "add concepts"

// Validator checks proposed concept batches against an ontology store.
type Validator struct {
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks batch against store. On success it returns the store with
// the whole batch merged; on failure it returns store itself together with an
// *issues.Error listing every problem found. store is never modified.
// A batch that only repeats committed concepts returns store unchanged.
func (v *Validator) Validate(store *ontology.Store, batch []types.Concept) (*ontology.Store, error) {
	b := newBatchState(store)

	if list := b.partition(batch); len(list) > 0 {
		v.logger.Debug("rejected concept batch", "stage", "partition", "issues", len(list))
		return store, issues.New(Op, list)
	}

	b.addClasses()
	b.addRelations()
	b.checkRoots()
	b.addProperties()

	if len(b.issues) > 0 {
		v.logger.Debug("rejected concept batch",
			"concepts", len(batch),
			"issues", len(b.issues),
			"codes", issues.Codes(b.issues))
		return store, issues.New(Op, b.issues)
	}
	if !b.changed {
		return store, nil
	}

	b.txn.RecomputeOwnProperties()
	next := b.txn.Commit()
	v.logger.Debug("accepted concept batch",
		"concepts", len(batch),
		"classes", next.Len(),
		"generation", next.Generation())
	return next, nil
}

// Validate runs a default Validator.
func Validate(store *ontology.Store, batch []types.Concept) (*ontology.Store, error) {
	return New().Validate(store, batch)
}

type batchState struct {
	store   *ontology.Store
	txn     *ontology.Txn
	parents hierarchy.Parents
	// root is the unique committed root, empty for an empty or fragmented store.
	root string

	classes   []types.ClassDef
	relations []types.SubclassRelation
	props     []types.Property

	added    map[string]struct{}
	failed   map[string]struct{}
	rejected map[string]struct{}
	issues   []issues.Issue
	changed  bool
}

func newBatchState(store *ontology.Store) *batchState {
	parents := make(hierarchy.Parents, store.Len())
	for c, p := range store.Parents() {
		parents[c] = p
	}
	root, _ := store.Root()
	return &batchState{
		root:     root,
		store:    store,
		txn:      store.Edit(),
		parents:  parents,
		added:    make(map[string]struct{}),
		failed:   make(map[string]struct{}),
		rejected: make(map[string]struct{}),
	}
}

func (b *batchState) report(i issues.Issue) {
	b.issues = append(b.issues, i)
}

func (b *batchState) classNames() []string {
	names := make([]string, 0, len(b.parents))
	for c := range b.parents {
		names = append(names, c)
	}
	sort.Strings(names)
	return names
}

// partition splits the batch by kind and reports duplicates inside it.
func (b *batchState) partition(batch []types.Concept) []issues.Issue {
	var list []issues.Issue
	classSeen := make(map[string]int)
	edgeSeen := make(map[string]int)
	propSeen := make(map[string]int)

	addEdge := func(r types.SubclassRelation) {
		edgeSeen[r.Subclass]++
		if edgeSeen[r.Subclass] == 2 {
			list = append(list, issues.Issue{
				Code:    issues.CodeDuplicateInBatch,
				Path:    r.Label(),
				Message: fmt.Sprintf("Class '%s' is given more than one superclass in this batch", r.Subclass),
				Hint:    "A class has exactly one direct superclass. Keep a single subclass relation for it.",
			})
		}
		b.relations = append(b.relations, r)
	}

	for i, c := range batch {
		switch c := c.(type) {
		case types.ClassDef:
			classSeen[c.Name]++
			if classSeen[c.Name] == 2 {
				list = append(list, issues.Issue{
					Code:    issues.CodeDuplicateInBatch,
					Path:    c.Label(),
					Message: fmt.Sprintf("Class '%s' is defined more than once in this batch", c.Name),
					Hint:    "Merge the definitions into one.",
				})
			}
			b.classes = append(b.classes, c)
			if r, ok := c.Relation(); ok {
				addEdge(r)
			}
		case types.SubclassRelation:
			addEdge(c)
		case types.ObjectProperty:
			b.addProp(c, propSeen, &list)
		case types.DataProperty:
			b.addProp(c, propSeen, &list)
		default:
			list = append(list, issues.Issue{
				Code:    issues.CodeUnsupportedConcept,
				Path:    fmt.Sprintf("concept:%d", i),
				Message: fmt.Sprintf("Unsupported concept %T", c),
			})
		}
	}
	return list
}

func (b *batchState) addProp(p types.Property, seen map[string]int, list *[]issues.Issue) {
	seen[p.PropertyName()]++
	if seen[p.PropertyName()] == 2 {
		*list = append(*list, issues.Issue{
			Code:    issues.CodeDuplicateInBatch,
			Path:    p.Label(),
			Message: fmt.Sprintf("Property '%s' is defined more than once in this batch", p.PropertyName()),
			Hint:    "Object and data properties share one namespace. Keep a single definition.",
		})
	}
	b.props = append(b.props, p)
}

func (b *batchState) addClasses() {
	for _, c := range b.classes {
		path := c.Label()
		if c.Name == "" {
			b.report(issues.Issue{
				Code:    issues.CodeEmptyName,
				Path:    path,
				Message: "Class name must not be empty",
			})
			b.rejected[c.Name] = struct{}{}
			continue
		}

		if existing, ok := b.store.Class(c.Name); ok {
			if existing.Description.Equal(c.Description) && (c.Superclass == "" || c.Superclass == existing.Superclass) {
				continue
			}
			b.report(issues.Issue{
				Code:    issues.CodeClassAlreadyExists,
				Path:    path,
				Message: fmt.Sprintf("Class '%s' already exists in the ontology", c.Name),
				Context: describeClass(existing),
				Hint:    "Choose a different name or, if this is a duplicate class definition, omit it.",
			})
			b.rejected[c.Name] = struct{}{}
			b.failed[c.Name] = struct{}{}
			continue
		}

		if !types.IsUpperName(c.Name) {
			b.report(issues.Issue{
				Code:    issues.CodeClassNameNotUppercase,
				Path:    path,
				Message: fmt.Sprintf("Class name '%s' must start with an uppercase letter", c.Name),
				Hint:    fmt.Sprintf("Rename the class to '%s'.", capitalize(c.Name)),
			})
			b.rejected[c.Name] = struct{}{}
			continue
		}

		b.txn.PutClass(&types.Class{Name: c.Name, Description: c.Description})
		b.parents[c.Name] = ""
		b.added[c.Name] = struct{}{}
		b.changed = true
	}
}

func (b *batchState) addRelations() {
	for _, r := range b.relations {
		path := r.Label()
		fail := func(i issues.Issue) {
			i.Path = path
			b.report(i)
			b.failed[r.Subclass] = struct{}{}
		}

		// Relations touching a class rejected above are not reported again.
		_, subRejected := b.rejected[r.Subclass]
		_, superRejected := b.rejected[r.Superclass]
		if subRejected || superRejected {
			b.failed[r.Subclass] = struct{}{}
			continue
		}

		if _, ok := b.parents[r.Subclass]; !ok {
			fail(issues.Issue{
				Code:    issues.CodeSubclassNotFound,
				Message: fmt.Sprintf("Subclass '%s' not found in ontology", r.Subclass),
				Hint:    issues.DidYouMean(r.Subclass, b.classNames(), "Define the class in the same batch or remove the relation."),
			})
			continue
		}
		if _, ok := b.parents[r.Superclass]; !ok {
			fail(issues.Issue{
				Code:    issues.CodeSuperclassNotFound,
				Message: fmt.Sprintf("Superclass '%s' of class '%s' not found in ontology", r.Superclass, r.Subclass),
				Hint: issues.DidYouMean(r.Superclass, b.classNames(),
					fmt.Sprintf("Define the superclass '%s', choose a different one or remove the relation.", r.Superclass)),
			})
			continue
		}
		if r.Subclass == r.Superclass {
			fail(issues.Issue{
				Code:    issues.CodeSubclassEqualsSuperclass,
				Message: fmt.Sprintf("Class '%s' cannot be its own superclass", r.Subclass),
				Hint:    "Choose a different superclass.",
			})
			continue
		}

		if current, committed := b.store.Superclass(r.Subclass); committed && current != "" {
			if current == r.Superclass {
				continue
			}
			fail(issues.Issue{
				Code:    issues.CodeSubclassAlreadyHasSuperclass,
				Message: fmt.Sprintf("Class '%s' already has superclass '%s'", r.Subclass, current),
				Context: fmt.Sprintf("Proposed superclass is '%s'", r.Superclass),
				Hint:    "Classes have a single direct superclass and cannot be re-parented. Remove this relation.",
			})
			continue
		}

		if hierarchy.CreatesCycle(b.parents, r.Subclass, r.Superclass) {
			fail(issues.Issue{
				Code:    issues.CodeCircularHierarchy,
				Message: "Circular hierarchy detected",
				Context: fmt.Sprintf("'%s' is already a subclass of '%s' (directly or indirectly)", r.Superclass, r.Subclass),
				Hint:    "Remove this relation or restructure the hierarchy.",
			})
			continue
		}

		if r.Subclass == b.root {
			fail(issues.Issue{
				Code:    issues.CodeSubclassAlreadyHasSuperclass,
				Message: fmt.Sprintf("Class '%s' is the ontology root and cannot be given a superclass", r.Subclass),
				Context: fmt.Sprintf("Proposed superclass is '%s'", r.Superclass),
				Hint:    fmt.Sprintf("Place '%s' beneath '%s' or one of its subclasses instead.", r.Superclass, r.Subclass),
			})
			continue
		}

		if err := b.txn.SetSuperclass(r.Subclass, r.Superclass); err != nil {
			fail(issues.Issue{Code: issues.CodeSuperclassNotFound, Message: err.Error()})
			continue
		}
		b.parents[r.Subclass] = r.Superclass
		b.changed = true
	}
}

// checkRoots enforces a single root and full reachability on the tentative
// merge. Classes whose own definition or relation already failed are left
// out so that one mistake is not reported twice.
func (b *batchState) checkRoots() {
	if len(b.parents) == 0 {
		return
	}
	var rootless []string
	for _, r := range hierarchy.Roots(b.parents) {
		if _, bad := b.failed[r]; !bad {
			rootless = append(rootless, r)
		}
	}

	if b.root != "" {
		reported := false
		for _, r := range rootless {
			if r == b.root {
				continue
			}
			reported = true
			b.report(issues.Issue{
				Code:    issues.CodeMissingSubclassRelation,
				Path:    "class:" + r,
				Message: fmt.Sprintf("Class '%s' has no superclass", r),
				Context: fmt.Sprintf("The ontology root is '%s'", b.root),
				Hint:    fmt.Sprintf("Add a subclass relation that places '%s' in the hierarchy.", r),
			})
		}
		if reported {
			return
		}
	} else if len(rootless) > 1 {
		b.report(issues.Issue{
			Code:    issues.CodeMultipleRoots,
			Path:    "hierarchy",
			Message: "Multiple top-level classes detected",
			Context: "Classes without superclass are " + issues.Quote(rootless),
			Hint: "Create one general top-level class all classes can inherit from. " +
				"Every other class needs a subclass relation.",
		})
		return
	}

	if len(rootless) != 1 {
		return
	}
	skip := make(map[string]struct{})
	children := hierarchy.Children(b.parents)
	for f := range b.failed {
		if _, ok := b.parents[f]; !ok {
			continue
		}
		for _, c := range hierarchy.Subtree(children, f) {
			skip[c] = struct{}{}
		}
	}
	var unreachable []string
	for _, c := range hierarchy.Unreachable(b.parents, rootless[0]) {
		if _, ok := skip[c]; !ok {
			unreachable = append(unreachable, c)
		}
	}
	if len(unreachable) > 0 {
		b.report(issues.Issue{
			Code:    issues.CodeDisconnectedClasses,
			Path:    "hierarchy",
			Message: fmt.Sprintf("Classes are not reachable from root '%s'", rootless[0]),
			Context: "Disconnected classes are " + issues.Quote(unreachable),
			Hint:    "Add subclass relations connecting these classes to the hierarchy.",
		})
	}
}

func (b *batchState) addProperties() {
	for _, p := range b.props {
		if list := b.checkProperty(p); len(list) > 0 {
			b.issues = append(b.issues, list...)
			continue
		}
		switch p := p.(type) {
		case types.ObjectProperty:
			if existing, ok := b.store.ObjectProperty(p.Name); ok && existing.Equal(p) {
				continue
			}
			b.txn.PutObjectProperty(p)
		case types.DataProperty:
			if existing, ok := b.store.DataProperty(p.Name); ok && existing.Equal(p) {
				continue
			}
			b.txn.PutDataProperty(p)
		}
		b.changed = true
	}
}

func (b *batchState) checkProperty(p types.Property) []issues.Issue {
	name := p.PropertyName()
	path := p.Label()
	if name == "" {
		return []issues.Issue{{Code: issues.CodeEmptyName, Path: path, Message: "Property name must not be empty"}}
	}
	if name == types.IsA {
		return []issues.Issue{{
			Code:    issues.CodeReservedName,
			Path:    path,
			Message: fmt.Sprintf("'%s' is reserved for class assignment and cannot be declared as a property", name),
			Hint:    "Choose a different property name.",
		}}
	}
	if existing, ok := b.store.Property(name); ok {
		if samePropertyDefinition(existing, p) {
			return nil
		}
		return []issues.Issue{{
			Code:    issues.CodePropertyAlreadyExists,
			Path:    path,
			Message: fmt.Sprintf("Property '%s' already exists", name),
			Context: fmt.Sprintf("Existing %s has domain %s", existing.Kind(), issues.Quote(existing.DomainClasses())),
			Hint:    "Choose a different name or remove this duplicate property.",
		}}
	}

	var list []issues.Issue
	if domain := p.DomainClasses(); len(domain) == 0 {
		list = append(list, issues.Issue{
			Code:    issues.CodeEmptyDomain,
			Path:    path,
			Message: fmt.Sprintf("Property '%s' has an empty domain", name),
			Hint:    "List the classes whose instances may carry this property.",
		})
	} else if missing := b.unresolved(domain); len(missing) > 0 {
		list = append(list, issues.Issue{
			Code:    issues.CodeDomainClassesNotFound,
			Path:    path,
			Message: fmt.Sprintf("Domain classes not found for property '%s'", name),
			Context: "Missing classes are " + issues.Quote(missing),
			Hint:    issues.DidYouMean(missing[0], b.classNames(), "Define these classes first or remove them from the domain."),
		})
	}

	switch p := p.(type) {
	case types.ObjectProperty:
		if len(p.Range) == 0 {
			list = append(list, issues.Issue{
				Code:    issues.CodeEmptyRange,
				Path:    path,
				Message: fmt.Sprintf("Object property '%s' has an empty range", name),
				Hint:    "List the classes the property may point to, or declare a data property instead.",
			})
		} else if missing := b.unresolved(p.Range); len(missing) > 0 {
			hint := "Define these classes first or remove them from the range."
			if looksLikeDataType(missing) {
				hint = "The range looks like a literal type. Declare a data property instead."
			}
			list = append(list, issues.Issue{
				Code:    issues.CodeRangeClassesNotFound,
				Path:    path,
				Message: fmt.Sprintf("Range classes not found for property '%s'", name),
				Context: "Missing classes are " + issues.Quote(missing),
				Hint:    issues.DidYouMean(missing[0], b.classNames(), hint),
			})
		}
	case types.DataProperty:
		if !p.Range.Valid() {
			list = append(list, issues.Issue{
				Code:    issues.CodeInvalidDataType,
				Path:    path,
				Message: fmt.Sprintf("Data property '%s' has invalid range '%s'", name, p.Range),
				Context: "Valid data types are " + issues.Quote(dataTypeNames()),
			})
		}
	}

	for _, c := range p.PropertyCharacteristics() {
		if !c.Valid() {
			list = append(list, issues.Issue{
				Code:    issues.CodeInvalidCharacteristic,
				Path:    path,
				Message: fmt.Sprintf("Property '%s' has unknown characteristic '%s'", name, c),
				Context: "Valid characteristics are " + issues.Quote(characteristicNames()),
			})
		}
	}
	return list
}

func (b *batchState) unresolved(names []string) []string {
	var missing []string
	for _, n := range names {
		if _, ok := b.parents[n]; !ok {
			missing = append(missing, n)
			continue
		}
		if _, bad := b.failed[n]; bad {
			if _, isNew := b.added[n]; isNew {
				missing = append(missing, n)
			}
		}
	}
	return missing
}

func samePropertyDefinition(existing, proposed types.Property) bool {
	switch e := existing.(type) {
	case types.ObjectProperty:
		p, ok := proposed.(types.ObjectProperty)
		return ok && e.Equal(p)
	case types.DataProperty:
		p, ok := proposed.(types.DataProperty)
		return ok && e.Equal(p)
	}
	return false
}

func describeClass(c *types.Class) string {
	if c.Superclass == "" {
		return fmt.Sprintf("Existing class '%s' is the root", c.Name)
	}
	return fmt.Sprintf("Existing class '%s' is a subclass of '%s'", c.Name, c.Superclass)
}

func capitalize(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

func looksLikeDataType(names []string) bool {
	for _, n := range names {
		n = strings.TrimPrefix(strings.ToLower(n), "xsd:")
		if types.DataType(n).Valid() {
			return true
		}
	}
	return false
}

func dataTypeNames() []string {
	out := make([]string, len(types.DataTypes))
	for i, d := range types.DataTypes {
		out[i] = string(d)
	}
	return out
}

func characteristicNames() []string {
	out := make([]string, len(types.Characteristics))
	for i, c := range types.Characteristics {
		out[i] = string(c)
	}
	return out
}
