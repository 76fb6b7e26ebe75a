package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/types"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

// File names written by WriteParquet.
const (
	TripletsFile = "triplets.parquet"
	ClassesFile  = "classes.parquet"
)

// TripletRow is one knowledge graph triplet with the classes of its
// subject and object. ObjectClass is empty for literal values.
type TripletRow struct {
	Subject      string   `parquet:"subject"`
	Predicate    string   `parquet:"predicate"`
	Object       string   `parquet:"object"`
	Confidence   *float64 `parquet:"confidence,optional"`
	SubjectClass string   `parquet:"subject_class"`
	ObjectClass  string   `parquet:"object_class"`
}

// ClassRow is one ontology class.
type ClassRow struct {
	Name          string `parquet:"name"`
	Superclass    string `parquet:"superclass"`
	Depth         int    `parquet:"depth"`
	Cluster       int    `parquet:"cluster"`
	Description   string `parquet:"description"`
	OwnProperties string `parquet:"own_properties"` // comma separated
}

// TripletRows flattens kg.
func TripletRows(store *ontology.Store, kg *types.KG) []TripletRow {
	classes := EntityClasses(store, kg)
	rows := make([]TripletRow, 0, len(kg.Triplets))
	for _, t := range kg.Triplets {
		row := TripletRow{
			Subject:      t.Subject,
			Predicate:    t.Predicate,
			Object:       t.Object,
			Confidence:   t.Confidence,
			SubjectClass: classes[t.Subject],
		}
		if _, ok := store.ObjectProperty(t.Predicate); ok {
			row.ObjectClass = classes[t.Object]
		}
		rows = append(rows, row)
	}
	return rows
}

// ClassRows flattens the class hierarchy, sorted by name.
func ClassRows(store *ontology.Store) []ClassRow {
	cluster := make(map[string]int)
	for _, c := range weaver.FindClusters(store) {
		for _, name := range c.Classes {
			cluster[name] = c.Index
		}
	}
	rows := make([]ClassRow, 0, store.Len())
	for _, c := range store.Classes() {
		row := ClassRow{
			Name:          c.Name,
			Superclass:    c.Superclass,
			Depth:         store.Depth(c.Name),
			Cluster:       cluster[c.Name],
			OwnProperties: strings.Join(c.OwnProperties, ","),
		}
		if c.Description != nil {
			row.Description = c.Description.Text
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteParquet writes TripletsFile and ClassesFile into dir and returns
// their paths.
func WriteParquet(dir string, store *ontology.Store, kg *types.KG) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	triplets := filepath.Join(dir, TripletsFile)
	if err := parquet.WriteFile(triplets, TripletRows(store, kg)); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", TripletsFile, err)
	}
	classes := filepath.Join(dir, ClassesFile)
	if err := parquet.WriteFile(classes, ClassRows(store)); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", ClassesFile, err)
	}
	return []string{triplets, classes}, nil
}

// ReadTriplets reads a triplets file written by WriteParquet back into a
// knowledge graph document.
func ReadTriplets(path, name string) (*types.KG, error) {
	rows, err := parquet.ReadFile[TripletRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	kg := &types.KG{Name: name, Triplets: make([]types.Triplet, 0, len(rows))}
	for _, r := range rows {
		kg.Triplets = append(kg.Triplets, types.Triplet{
			Subject:    r.Subject,
			Predicate:  r.Predicate,
			Object:     r.Object,
			Confidence: r.Confidence,
		})
	}
	return kg, nil
}
