package types

import "fmt"

// Class is a committed ontology class. An empty Superclass marks the root.
type Class struct {
	Name          string       `json:"name" yaml:"name"`
	Description   *Description `json:"description,omitempty" yaml:"description,omitempty"`
	Superclass    string       `json:"superclass,omitempty" yaml:"superclass,omitempty"`
	OwnProperties []string     `json:"own_properties" yaml:"own_properties"`
}

// IsRoot reports whether the class has no superclass.
func (c *Class) IsRoot() bool {
	return c.Superclass == ""
}

// Clone returns a deep copy of the class.
func (c *Class) Clone() *Class {
	out := *c
	out.Description = c.Description.Clone()
	out.OwnProperties = cloneStrings(c.OwnProperties)
	return &out
}

// ConceptKind discriminates the members of the Concept union.
type ConceptKind string

const (
	ConceptClass            ConceptKind = "class"
	ConceptSubclassRelation ConceptKind = "subclass_relation"
	ConceptObjectProperty   ConceptKind = "object_property"
	ConceptDataProperty     ConceptKind = "data_property"
)

// Concept is a proposed ontology addition. The set of implementations is
// closed: ClassDef, SubclassRelation, ObjectProperty and DataProperty.
type Concept interface {
	Kind() ConceptKind
	// Label identifies the concept in diagnostics, e.g. "class:Dog".
	Label() string
	concept()
}

// Property is an object or data property.
type Property interface {
	Concept
	PropertyName() string
	DomainClasses() []string
	PropertyCharacteristics() []Characteristic
	property()
}

// ClassDef proposes a new class. Superclass is optional; when set it is
// treated exactly like a SubclassRelation in the same batch.
type ClassDef struct {
	Name        string       `json:"name" yaml:"name"`
	Description *Description `json:"description,omitempty" yaml:"description,omitempty"`
	Superclass  string       `json:"superclass,omitempty" yaml:"superclass,omitempty"`
}

func (ClassDef) Kind() ConceptKind { return ConceptClass }
func (c ClassDef) Label() string   { return "class:" + c.Name }
func (ClassDef) concept()          {}

// Validate checks the fields a class proposal must carry.
func (c ClassDef) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	return nil
}

// Relation returns the inline subclass relation, if any.
func (c ClassDef) Relation() (SubclassRelation, bool) {
	if c.Superclass == "" {
		return SubclassRelation{}, false
	}
	return SubclassRelation{Subclass: c.Name, Superclass: c.Superclass}, true
}

// SubclassRelation links a subclass to its single direct superclass.
type SubclassRelation struct {
	Subclass   string `json:"subclass" yaml:"subclass"`
	Superclass string `json:"superclass" yaml:"superclass"`
}

func (SubclassRelation) Kind() ConceptKind { return ConceptSubclassRelation }
func (r SubclassRelation) Label() string {
	return fmt.Sprintf("relation:%s->%s", r.Subclass, r.Superclass)
}
func (SubclassRelation) concept() {}

// ObjectProperty relates instances of domain classes to instances of range classes.
type ObjectProperty struct {
	Name            string           `json:"name" yaml:"name"`
	Description     *Description     `json:"description,omitempty" yaml:"description,omitempty"`
	Characteristics []Characteristic `json:"characteristics" yaml:"characteristics"`
	Domain          []string         `json:"domain" yaml:"domain"`
	Range           []string         `json:"range" yaml:"range"`
}

func (ObjectProperty) Kind() ConceptKind                           { return ConceptObjectProperty }
func (p ObjectProperty) Label() string                             { return "property:" + p.Name }
func (p ObjectProperty) PropertyName() string                      { return p.Name }
func (p ObjectProperty) DomainClasses() []string                   { return p.Domain }
func (p ObjectProperty) PropertyCharacteristics() []Characteristic { return p.Characteristics }
func (ObjectProperty) concept()                                    {}
func (ObjectProperty) property()                                   {}

// Validate checks the shape of the property without resolving class names.
func (p ObjectProperty) Validate() error {
	if p.Name == "" {
		return ErrEmptyName
	}
	if len(p.Domain) == 0 {
		return ErrEmptyDomain
	}
	if len(p.Range) == 0 {
		return ErrEmptyRange
	}
	return validateCharacteristics(p.Characteristics)
}

// Equal compares two object properties by value.
func (p ObjectProperty) Equal(other ObjectProperty) bool {
	return p.Name == other.Name &&
		p.Description.Equal(other.Description) &&
		equalStrings(p.Domain, other.Domain) &&
		equalStrings(p.Range, other.Range) &&
		equalCharacteristics(p.Characteristics, other.Characteristics)
}

// Clone returns a deep copy of the property.
func (p ObjectProperty) Clone() ObjectProperty {
	p.Description = p.Description.Clone()
	p.Domain = cloneStrings(p.Domain)
	p.Range = cloneStrings(p.Range)
	p.Characteristics = append([]Characteristic(nil), p.Characteristics...)
	return p
}

// DataProperty relates instances of domain classes to literal values.
type DataProperty struct {
	Name            string           `json:"name" yaml:"name"`
	Description     *Description     `json:"description,omitempty" yaml:"description,omitempty"`
	Characteristics []Characteristic `json:"characteristics" yaml:"characteristics"`
	Domain          []string         `json:"domain" yaml:"domain"`
	Range           DataType         `json:"range" yaml:"range"`
}

func (DataProperty) Kind() ConceptKind                           { return ConceptDataProperty }
func (p DataProperty) Label() string                             { return "property:" + p.Name }
func (p DataProperty) PropertyName() string                      { return p.Name }
func (p DataProperty) DomainClasses() []string                   { return p.Domain }
func (p DataProperty) PropertyCharacteristics() []Characteristic { return p.Characteristics }
func (DataProperty) concept()                                    {}
func (DataProperty) property()                                   {}

// Validate checks the shape of the property without resolving class names.
func (p DataProperty) Validate() error {
	if p.Name == "" {
		return ErrEmptyName
	}
	if len(p.Domain) == 0 {
		return ErrEmptyDomain
	}
	if !p.Range.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDataType, p.Range)
	}
	return validateCharacteristics(p.Characteristics)
}

// Equal compares two data properties by value.
func (p DataProperty) Equal(other DataProperty) bool {
	return p.Name == other.Name &&
		p.Description.Equal(other.Description) &&
		equalStrings(p.Domain, other.Domain) &&
		p.Range == other.Range &&
		equalCharacteristics(p.Characteristics, other.Characteristics)
}

// Clone returns a deep copy of the property.
func (p DataProperty) Clone() DataProperty {
	p.Description = p.Description.Clone()
	p.Domain = cloneStrings(p.Domain)
	p.Characteristics = append([]Characteristic(nil), p.Characteristics...)
	return p
}

func equalCharacteristics(a, b []Characteristic) bool {
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
