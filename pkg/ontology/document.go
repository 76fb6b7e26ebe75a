package ontology

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soundprediction/ontoweave/pkg/types"
)

// ClassDocument is the serialized form of a class. Superclass is null for
// the root.
type ClassDocument struct {
	Name          string             `json:"name" yaml:"name"`
	Description   *types.Description `json:"description,omitempty" yaml:"description,omitempty"`
	Superclass    *string            `json:"superclass" yaml:"superclass"`
	OwnProperties []string           `json:"own_properties" yaml:"own_properties"`
}

// Document is the persisted ontology: classes and properties keyed by name.
type Document struct {
	Classes          map[string]ClassDocument        `json:"classes" yaml:"classes"`
	ObjectProperties map[string]types.ObjectProperty `json:"object_properties" yaml:"object_properties"`
	DataProperties   map[string]types.DataProperty   `json:"data_properties" yaml:"data_properties"`
}

// Document materializes the snapshot.
func (s *Store) Document() *Document {
	doc := &Document{
		Classes:          make(map[string]ClassDocument, len(s.classes)),
		ObjectProperties: make(map[string]types.ObjectProperty, len(s.objectProps)),
		DataProperties:   make(map[string]types.DataProperty, len(s.dataProps)),
	}
	for name, c := range s.classes {
		cd := ClassDocument{
			Name:          name,
			Description:   c.Description.Clone(),
			OwnProperties: append([]string{}, c.OwnProperties...),
		}
		if c.Superclass != "" {
			sup := c.Superclass
			cd.Superclass = &sup
		}
		doc.Classes[name] = cd
	}
	for name, p := range s.objectProps {
		p = p.Clone()
		if p.Characteristics == nil {
			p.Characteristics = []types.Characteristic{}
		}
		doc.ObjectProperties[name] = p
	}
	for name, p := range s.dataProps {
		p = p.Clone()
		if p.Characteristics == nil {
			p.Characteristics = []types.Characteristic{}
		}
		doc.DataProperties[name] = p
	}
	return doc
}

// FromDocument builds a store from a document. Every superclass, domain and
// range reference must resolve; the hierarchy itself may be fragmented so
// that stitching can repair it. Own-property lists are recomputed from the
// property domains.
func FromDocument(doc *Document) (*Store, error) {
	txn := New().Edit()
	names := make([]string, 0, len(doc.Classes))
	for key := range doc.Classes {
		names = append(names, key)
	}
	sort.Strings(names)

	for _, key := range names {
		cd := doc.Classes[key]
		name := cd.Name
		if name == "" {
			name = key
		}
		if name != key {
			return nil, fmt.Errorf("class %q stored under key %q", name, key)
		}
		c := &types.Class{Name: name, Description: cd.Description}
		if cd.Superclass != nil {
			c.Superclass = *cd.Superclass
		}
		txn.PutClass(c)
	}
	for _, key := range names {
		if sup := txn.classMap()[key].Superclass; sup != "" && !txn.HasClass(sup) {
			return nil, fmt.Errorf("class %q: superclass %q: %w", key, sup, ErrClassNotFound)
		}
	}

	for key, p := range doc.ObjectProperties {
		if p.Name == "" {
			p.Name = key
		}
		if p.Name != key {
			return nil, fmt.Errorf("object property %q stored under key %q", p.Name, key)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("object property %q: %w", key, err)
		}
		if err := resolveAll(txn, key, p.Domain, p.Range); err != nil {
			return nil, err
		}
		txn.PutObjectProperty(p)
	}
	for key, p := range doc.DataProperties {
		if p.Name == "" {
			p.Name = key
		}
		if p.Name != key {
			return nil, fmt.Errorf("data property %q stored under key %q", p.Name, key)
		}
		if _, dup := doc.ObjectProperties[key]; dup {
			return nil, fmt.Errorf("property %q declared as both object and data property", key)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("data property %q: %w", key, err)
		}
		if err := resolveAll(txn, key, p.Domain); err != nil {
			return nil, err
		}
		txn.PutDataProperty(p)
	}

	txn.RecomputeOwnProperties()
	return txn.Commit(), nil
}

func resolveAll(txn *Txn, property string, lists ...[]string) error {
	for _, list := range lists {
		for _, c := range list {
			if !txn.HasClass(c) {
				return fmt.Errorf("property %q: class %q: %w", property, c, ErrClassNotFound)
			}
		}
	}
	return nil
}

// ReadJSON decodes a JSON ontology document.
func ReadJSON(r io.Reader) (*Store, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode ontology: %w", err)
	}
	return FromDocument(&doc)
}

// ReadYAML decodes a YAML ontology document.
func ReadYAML(r io.Reader) (*Store, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode ontology: %w", err)
	}
	return FromDocument(&doc)
}

// WriteJSON encodes the snapshot as an indented JSON document.
func WriteJSON(w io.Writer, s *Store) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s.Document())
}

// ReadFile loads an ontology document, choosing YAML for .yaml/.yml files
// and JSON otherwise.
func ReadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadYAML(f)
	default:
		return ReadJSON(f)
	}
}
