package conformance

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/soundprediction/ontoweave/pkg/issues"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/types"
)

// Op names the operation in returned *issues.Error values.
const Op = "add triplets"

// DefaultCacheSize is the number of ancestor sets kept in memory.
const DefaultCacheSize = 1024

// Checker validates triplet batches against an ontology and holds the
// committed knowledge graph: triplets in insertion order and the current
// class of every typed entity.
type Checker struct {
	store       *ontology.Store
	triplets    []types.Triplet
	index       map[types.TripletKey]int
	entityTypes map[string]string

	ancestors *lru.Cache[string, map[string]struct{}]
	logger    *slog.Logger
	cacheSize int
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// WithCacheSize sets the capacity of the ancestor set cache.
func WithCacheSize(n int) Option {
	return func(c *Checker) {
		c.cacheSize = n
	}
}

// New creates a Checker with an empty knowledge graph.
func New(store *ontology.Store, opts ...Option) *Checker {
	c := &Checker{
		store:       store,
		index:       make(map[types.TripletKey]int),
		entityTypes: make(map[string]string),
		logger:      slog.Default(),
		cacheSize:   DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cacheSize < 1 {
		c.cacheSize = 1
	}
	// lru.New only fails for non-positive sizes.
	c.ancestors, _ = lru.New[string, map[string]struct{}](c.cacheSize)
	return c
}

// Ontology returns the store triplets are checked against.
func (c *Checker) Ontology() *ontology.Store { return c.store }

// SetOntology switches to another ontology snapshot. Committed triplets are
// kept as they are; use Prune to drop those that no longer resolve.
func (c *Checker) SetOntology(store *ontology.Store) {
	c.store = store
	c.ancestors.Purge()
}

// Len returns the number of committed triplets.
func (c *Checker) Len() int { return len(c.triplets) }

// Triplets returns a copy of the committed triplets in insertion order.
func (c *Checker) Triplets() []types.Triplet {
	return append([]types.Triplet(nil), c.triplets...)
}

// KG returns the committed knowledge graph under the given name.
func (c *Checker) KG(name string) *types.KG {
	return &types.KG{Name: name, Triplets: c.Triplets()}
}

// EntityType returns the current class of entity.
func (c *Checker) EntityType(entity string) (string, bool) {
	t, ok := c.entityTypes[entity]
	return t, ok
}

// Entities returns every typed entity, sorted.
func (c *Checker) Entities() []string {
	out := make([]string, 0, len(c.entityTypes))
	for e := range c.entityTypes {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Plan is the outcome of checking a batch.
type Plan struct {
	// Accepted holds the new triplets in batch order.
	Accepted []types.Triplet
	// Duplicates counts triplets already committed or repeated in the batch.
	Duplicates int
	// Typed maps entities to the class they get from this batch.
	Typed map[string]string
}

// Check validates batch without changing the Checker.
func (c *Checker) Check(batch []types.Triplet) (*Plan, error) {
	plan := &Plan{Typed: make(map[string]string)}
	var list []issues.Issue

	seen := make(map[types.TripletKey]struct{}, len(batch))
	var fresh []types.Triplet
	for _, t := range batch {
		if err := t.Validate(); err != nil {
			code := issues.CodeInvalidTriplet
			if errors.Is(err, types.ErrInvalidConfidence) {
				code = issues.CodeInvalidConfidence
			}
			list = append(list, issues.Issue{Code: code, Path: t.String(), Message: fmt.Sprintf("%s: %v", t, err)})
			continue
		}
		key := t.Key()
		if _, ok := c.index[key]; ok {
			plan.Duplicates++
			continue
		}
		if _, ok := seen[key]; ok {
			plan.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, t)
	}

	for _, t := range fresh {
		if t.IsTypeAssignment() {
			list = append(list, c.checkTypeAssignment(t, plan.Typed)...)
		}
	}
	for _, t := range fresh {
		if !t.IsTypeAssignment() {
			list = append(list, c.checkRelation(t, plan.Typed)...)
		}
	}

	if len(list) > 0 {
		return nil, issues.New(Op, list)
	}
	plan.Accepted = fresh
	return plan, nil
}

// Commit validates batch and, if every triplet conforms, adds the new
// triplets to the knowledge graph. On error nothing changes.
func (c *Checker) Commit(batch []types.Triplet) (*Plan, error) {
	plan, err := c.Check(batch)
	if err != nil {
		c.logger.Debug("rejected triplet batch", "triplets", len(batch), "error", err)
		return nil, err
	}
	c.apply(plan)
	c.logger.Debug("committed triplet batch",
		"accepted", len(plan.Accepted),
		"duplicates", plan.Duplicates,
		"total", len(c.triplets))
	return plan, nil
}

func (c *Checker) apply(plan *Plan) {
	for _, t := range plan.Accepted {
		c.index[t.Key()] = len(c.triplets)
		c.triplets = append(c.triplets, t)
	}
	for entity, class := range plan.Typed {
		c.entityTypes[entity] = class
	}
}

func (c *Checker) typeOf(entity string, batch map[string]string) string {
	if t, ok := batch[entity]; ok {
		return t
	}
	return c.entityTypes[entity]
}

func (c *Checker) checkTypeAssignment(t types.Triplet, batch map[string]string) []issues.Issue {
	path := t.String()
	s, o := t.Subject, t.Object

	if current := c.typeOf(s, batch); current != "" {
		if c.store.HasClass(o) && c.isA(o, current) {
			batch[s] = o
			return nil
		}
		if !types.IsSnakeCase(s) {
			return []issues.Issue{notSnakeCase(path, s)}
		}
		return []issues.Issue{{
			Code: issues.CodeAlreadyClassified,
			Path: path,
			Message: fmt.Sprintf("Entity '%s' already classified as '%s'. Cannot reclassify as '%s' unless it's a subclass.",
				s, current, o),
			Hint: fmt.Sprintf("Either remove this triplet or use a subclass of '%s'.", current),
		}}
	}

	if !c.store.HasClass(o) {
		return []issues.Issue{{
			Code:    issues.CodeUnknownClass,
			Path:    path,
			Message: fmt.Sprintf("'%s' is not a defined class in the ontology schema", o),
			Hint: issues.DidYouMean(o, c.store.ClassNames(),
				"For isA relations, the object must be a class defined in the ontology schema."),
		}}
	}
	if c.store.HasClass(s) {
		return []issues.Issue{{
			Code:    issues.CodeClassUsedAsInstance,
			Path:    path,
			Message: fmt.Sprintf("'%s' is a class, not an entity instance", s),
			Hint:    "In isA relations, the subject must be an entity instance, not a class.",
		}}
	}
	if !types.IsSnakeCase(s) {
		return []issues.Issue{notSnakeCase(path, s)}
	}
	batch[s] = o
	return nil
}

func (c *Checker) checkRelation(t types.Triplet, batch map[string]string) []issues.Issue {
	path := t.String()
	s, p, o := t.Subject, t.Predicate, t.Object

	prop, ok := c.store.Property(p)
	if !ok {
		return []issues.Issue{{
			Code:    issues.CodeUnknownProperty,
			Path:    path,
			Message: fmt.Sprintf("'%s' is not a valid property in the ontology schema", p),
			Hint:    issues.DidYouMean(p, c.store.PropertyNames(), "Use only defined properties from the schema."),
		}}
	}

	subjectClass := c.typeOf(s, batch)
	if subjectClass == "" && !c.store.HasClass(s) {
		return []issues.Issue{untyped(path, s)}
	}
	if c.store.HasClass(s) {
		return []issues.Issue{classAsInstance(path, s)}
	}
	if c.store.HasClass(o) {
		return []issues.Issue{classAsInstance(path, o)}
	}
	if !types.IsSnakeCase(s) {
		return []issues.Issue{notSnakeCase(path, s)}
	}

	op, isObject := prop.(types.ObjectProperty)
	if !isObject {
		// Data property values are literals and are not checked.
		return nil
	}

	objectClass := c.typeOf(o, batch)
	if objectClass == "" {
		return []issues.Issue{untyped(path, o)}
	}
	if !c.intersects(subjectClass, op.Domain) || !c.intersects(objectClass, op.Range) {
		return []issues.Issue{{
			Code: issues.CodeDomainRangeMismatch,
			Path: path,
			Message: fmt.Sprintf("Property '%s' cannot connect '%s' entities to '%s' entities according to the ontology constraints",
				p, subjectClass, objectClass),
			Context: fmt.Sprintf("Domain is %s, range is %s", issues.Quote(op.Domain), issues.Quote(op.Range)),
		}}
	}
	if !types.IsSnakeCase(o) {
		return []issues.Issue{notSnakeCase(path, o)}
	}
	return nil
}

// ancestorSet returns class and all its ancestors.
func (c *Checker) ancestorSet(class string) map[string]struct{} {
	if set, ok := c.ancestors.Get(class); ok {
		return set
	}
	chain := c.store.Ancestors(class)
	set := make(map[string]struct{}, len(chain))
	for _, a := range chain {
		set[a] = struct{}{}
	}
	c.ancestors.Add(class, set)
	return set
}

// isA reports whether class is ancestor or one of its subclasses.
func (c *Checker) isA(class, ancestor string) bool {
	_, ok := c.ancestorSet(class)[ancestor]
	return ok
}

// intersects reports whether class, or any of its ancestors, is listed.
func (c *Checker) intersects(class string, allowed []string) bool {
	set := c.ancestorSet(class)
	for _, a := range allowed {
		if _, ok := set[a]; ok {
			return true
		}
	}
	return false
}

func notSnakeCase(path, entity string) issues.Issue {
	return issues.Issue{
		Code:    issues.CodeNotSnakeCase,
		Path:    path,
		Message: fmt.Sprintf("Entity '%s' must be in snake_case format", entity),
		Hint:    "Rename it to follow the convention, e.g. 'new_york_city'.",
	}
}

func untyped(path, entity string) issues.Issue {
	return issues.Issue{
		Code:    issues.CodeUntypedEntity,
		Path:    path,
		Message: fmt.Sprintf("Entity '%s' lacks class assignment", entity),
		Hint:    fmt.Sprintf("First add (%s, %s, <validClass>) before using this entity.", entity, types.IsA),
	}
}

func classAsInstance(path, name string) issues.Issue {
	return issues.Issue{
		Code:    issues.CodeClassUsedAsInstance,
		Path:    path,
		Message: fmt.Sprintf("'%s' is a class definition, not an entity instance", name),
		Hint:    "For non-isA relations, both subject and object must be entity instances.",
	}
}
