package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Validation errors
var (
	ErrEmptyName             = errors.New("name cannot be empty")
	ErrEmptyDomain           = errors.New("domain cannot be empty")
	ErrEmptyRange            = errors.New("range cannot be empty")
	ErrInvalidDataType       = errors.New("invalid data type")
	ErrInvalidCharacteristic = errors.New("invalid property characteristic")
	ErrInvalidConfidence     = errors.New("confidence must be within [0, 1]")
	ErrEmptyTripletField     = errors.New("triplet subject, predicate and object cannot be empty")
)

// IsA is the reserved predicate that assigns an entity to an ontology class.
const IsA = "isA"

// Characteristic is an OWL-style property characteristic.
//
// Characteristics are declared on properties and carried through documents,
// but the conformance checker does not enforce them.
type Characteristic string

const (
	Functional        Characteristic = "functional"
	InverseFunctional Characteristic = "inverseFunctional"
	Transitive        Characteristic = "transitive"
	Symmetric         Characteristic = "symmetric"
	Asymmetric        Characteristic = "asymmetric"
	Reflexive         Characteristic = "reflexive"
	Irreflexive       Characteristic = "irreflexive"
)

// Characteristics lists every valid characteristic.
var Characteristics = []Characteristic{
	Functional, InverseFunctional, Transitive, Symmetric, Asymmetric, Reflexive, Irreflexive,
}

// Valid reports whether c is a known characteristic.
func (c Characteristic) Valid() bool {
	for _, known := range Characteristics {
		if c == known {
			return true
		}
	}
	return false
}

// DataType is the literal type a data property ranges over.
type DataType string

const (
	DataTypeString   DataType = "string"
	DataTypeInt      DataType = "int"
	DataTypeFloat    DataType = "float"
	DataTypeBoolean  DataType = "boolean"
	DataTypeDate     DataType = "date"
	DataTypeTime     DataType = "time"
	DataTypeDateTime DataType = "datetime"
)

// DataTypes lists every valid data type.
var DataTypes = []DataType{
	DataTypeString, DataTypeInt, DataTypeFloat, DataTypeBoolean, DataTypeDate, DataTypeTime, DataTypeDateTime,
}

// Valid reports whether d is a known data type.
func (d DataType) Valid() bool {
	for _, known := range DataTypes {
		if d == known {
			return true
		}
	}
	return false
}

// Description documents how an ontology element should be used.
type Description struct {
	Text        string `json:"description,omitempty" yaml:"description,omitempty"`
	Constraints string `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// Equal compares two optional descriptions by value.
func (d *Description) Equal(other *Description) bool {
	if d == nil || other == nil {
		return d == other
	}
	return *d == *other
}

// Clone returns a copy of the description.
func (d *Description) Clone() *Description {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// IsUpperName reports whether name starts with an uppercase letter, the
// convention that separates class names from relation and entity names.
func IsUpperName(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

// IsSnakeCase reports whether s is a snake_case identifier: lowercase
// letters, digits and single inner underscores only.
func IsSnakeCase(s string) bool {
	if s == "" || s[0] == '_' || s[len(s)-1] == '_' {
		return false
	}
	if strings.Contains(s, "__") {
		return false
	}
	for _, r := range s {
		if !(unicode.IsLower(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}

func validateCharacteristics(cs []Characteristic) error {
	for _, c := range cs {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidCharacteristic, c)
		}
	}
	return nil
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func equalStrings(a, b []string) bool {
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
