package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoweave/pkg/config"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/types"
	"github.com/soundprediction/ontoweave/pkg/validator"
)

func petGraph(t *testing.T) (*ontology.Store, *types.KG) {
	t.Helper()
	store, err := validator.Validate(ontology.New(), []types.Concept{
		types.ClassDef{Name: "Thing"},
		types.ClassDef{Name: "Animal", Superclass: "Thing", Description: &types.Description{Text: "A living creature"}},
		types.ClassDef{Name: "Dog", Superclass: "Animal"},
		types.ClassDef{Name: "Person", Superclass: "Thing"},
		types.ObjectProperty{Name: "hasOwner", Domain: []string{"Dog"}, Range: []string{"Person"}},
		types.DataProperty{Name: "hasAge", Domain: []string{"Thing"}, Range: types.DataTypeInt},
	})
	require.NoError(t, err)

	confidence := 0.8
	kg := &types.KG{Name: "pets", Triplets: []types.Triplet{
		{Subject: "rex", Predicate: types.IsA, Object: "Animal"},
		{Subject: "rex", Predicate: types.IsA, Object: "Dog"},
		{Subject: "alice", Predicate: types.IsA, Object: "Person"},
		{Subject: "rex", Predicate: "hasOwner", Object: "alice", Confidence: &confidence},
		{Subject: "alice", Predicate: "hasAge", Object: "34"},
	}}
	return store, kg
}

func TestEntityClasses(t *testing.T) {
	store, kg := petGraph(t)
	assert.Equal(t, map[string]string{"rex": "Dog", "alice": "Person"}, EntityClasses(store, kg))
}

func TestRows(t *testing.T) {
	store, kg := petGraph(t)

	rows := TripletRows(store, kg)
	require.Len(t, rows, 5)
	assert.Equal(t, "Dog", rows[3].SubjectClass)
	assert.Equal(t, "Person", rows[3].ObjectClass)
	assert.Empty(t, rows[4].ObjectClass, "literal values have no class")

	classes := ClassRows(store)
	require.Len(t, classes, 4)
	assert.Equal(t, ClassRow{
		Name:        "Animal",
		Superclass:  "Thing",
		Depth:       2,
		Cluster:     1,
		Description: "A living creature",
	}, classes[0])
	assert.Equal(t, "hasOwner", classes[1].OwnProperties)
	assert.Equal(t, "hasAge", classes[3].OwnProperties)
}

func TestParquetRoundTrip(t *testing.T) {
	store, kg := petGraph(t)
	dir := filepath.Join(t.TempDir(), "out")

	files, err := WriteParquet(dir, store, kg)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.FileExists(t, f)
	}

	back, err := ReadTriplets(filepath.Join(dir, TripletsFile), "pets")
	require.NoError(t, err)
	assert.Equal(t, kg, back)
}

func TestStatements(t *testing.T) {
	store, kg := petGraph(t)
	statements := Statements(store, kg)
	require.Len(t, statements, 5)

	classes := statements[0].Params["classes"].([]map[string]any)
	assert.Len(t, classes, 4)
	assert.Contains(t, statements[0].Cypher, "MERGE (n:Class {name: c.name})")

	subclassOf := statements[1].Params["relations"].([]map[string]any)
	assert.Len(t, subclassOf, 3)
	assert.Contains(t, statements[1].Cypher, "SUBCLASS_OF")

	entities := statements[2].Params["entities"].([]map[string]any)
	require.Len(t, entities, 2)
	assert.Equal(t, "alice", entities[0]["name"])
	assert.Equal(t, map[string]any{"hasAge": "34"}, entities[0]["attributes"])
	assert.Equal(t, "Dog", entities[1]["class"])

	instanceOf := statements[3].Params["types"].([]map[string]any)
	assert.Len(t, instanceOf, 3, "every isA triplet becomes an INSTANCE_OF edge")

	relations := statements[4].Params["relations"].([]map[string]any)
	require.Len(t, relations, 1)
	assert.Equal(t, "hasOwner", relations[0]["predicate"])
	assert.Equal(t, 0.8, relations[0]["confidence"])
	assert.Contains(t, statements[4].Cypher, "RELATION {predicate: r.predicate}")
}

func TestNeo4jLoader(t *testing.T) {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}
	loader, err := NewNeo4jLoader(config.Neo4jConfig{
		URI:      uri,
		Username: os.Getenv("NEO4J_USER"),
		Password: os.Getenv("NEO4J_PASSWORD"),
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer loader.Close(ctx)
	if err := loader.VerifyConnectivity(ctx); err != nil {
		t.Skipf("Neo4j not available at %s: %v", uri, err)
	}

	store, kg := petGraph(t)
	require.NoError(t, loader.Load(ctx, store, kg))
	require.NoError(t, loader.Load(ctx, store, kg))
}
