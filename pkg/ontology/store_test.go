package ontology

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoweave/pkg/issues"
	"github.com/soundprediction/ontoweave/pkg/types"
)

func petStore(t *testing.T) *Store {
	t.Helper()
	txn := New().Edit()
	txn.PutClass(&types.Class{Name: "Thing"})
	txn.PutClass(&types.Class{Name: "Animal", Superclass: "Thing"})
	txn.PutClass(&types.Class{Name: "Dog", Superclass: "Animal"})
	txn.PutClass(&types.Class{Name: "Person", Superclass: "Thing"})
	txn.PutObjectProperty(types.ObjectProperty{Name: "hasOwner", Domain: []string{"Animal"}, Range: []string{"Person"}})
	txn.PutDataProperty(types.DataProperty{Name: "hasName", Domain: []string{"Thing"}, Range: types.DataTypeString})
	txn.PutDataProperty(types.DataProperty{Name: "barkVolume", Domain: []string{"Dog"}, Range: types.DataTypeFloat})
	txn.RecomputeOwnProperties()
	return txn.Commit()
}

func TestStoreAccessors(t *testing.T) {
	s := petStore(t)

	assert.Equal(t, uint64(1), s.Generation())
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, []string{"Animal", "Dog", "Person", "Thing"}, s.ClassNames())

	root, ok := s.Root()
	require.True(t, ok)
	assert.Equal(t, "Thing", root)

	assert.Equal(t, []string{"Dog", "Animal", "Thing"}, s.Ancestors("Dog"))
	assert.Equal(t, 3, s.Depth("Dog"))
	assert.True(t, s.IsSubclassOf("Dog", "Thing"))
	assert.True(t, s.IsSubclassOf("Dog", "Dog"))
	assert.False(t, s.IsSubclassOf("Person", "Animal"))

	assert.Equal(t, []string{"Animal", "Person"}, s.Children("Thing"))
	assert.ElementsMatch(t, s.ClassNames(), s.Subtree("Thing"))
	assert.Nil(t, s.Subtree("Missing"))

	sup, ok := s.Superclass("Dog")
	require.True(t, ok)
	assert.Equal(t, "Animal", sup)

	assert.Equal(t, []string{"barkVolume", "hasName", "hasOwner"}, s.PropertyNames())
	assert.True(t, s.HasProperty("hasOwner"))
	assert.False(t, s.HasProperty("isA"))
	assert.Len(t, s.SubclassRelations(), 3)
	assert.Empty(t, s.CheckTree())
	assert.Len(t, s.Components(), 1)
}

func TestProperties(t *testing.T) {
	s := petStore(t)

	names := func(ps []types.Property) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.PropertyName())
		}
		return out
	}

	assert.Equal(t, []string{"barkVolume"}, names(s.Properties("Dog", false)))
	assert.Equal(t, []string{"barkVolume", "hasOwner", "hasName"}, names(s.Properties("Dog", true)))
	assert.Equal(t, []string{"hasName"}, names(s.Properties("Person", true)))

	dog, ok := s.Class("Dog")
	require.True(t, ok)
	assert.Equal(t, []string{"barkVolume"}, dog.OwnProperties)
}

func TestEditDoesNotTouchBase(t *testing.T) {
	base := petStore(t)

	txn := base.Edit()
	txn.PutClass(&types.Class{Name: "Cat", Superclass: "Animal"})
	require.NoError(t, txn.SetSuperclass("Dog", "Thing"))
	next := txn.Commit()

	assert.False(t, base.HasClass("Cat"))
	sup, _ := base.Superclass("Dog")
	assert.Equal(t, "Animal", sup)
	assert.Equal(t, uint64(1), base.Generation())

	assert.True(t, next.HasClass("Cat"))
	sup, _ = next.Superclass("Dog")
	assert.Equal(t, "Thing", sup)
	assert.Equal(t, uint64(2), next.Generation())

	// Returned classes are copies.
	dog, _ := next.Class("Dog")
	dog.Superclass = "Person"
	sup, _ = next.Superclass("Dog")
	assert.Equal(t, "Thing", sup)
}

func TestTxnErrors(t *testing.T) {
	txn := petStore(t).Edit()

	assert.ErrorIs(t, txn.SetSuperclass("Dog", "Missing"), ErrClassNotFound)
	assert.ErrorIs(t, txn.SetSuperclass("Missing", "Thing"), ErrClassNotFound)
	assert.ErrorIs(t, txn.RemoveClass("Missing"), ErrClassNotFound)
	assert.ErrorIs(t, txn.RemoveProperty("missing"), ErrPropertyNotFound)
}

func TestRemoveAndDetachClass(t *testing.T) {
	base := petStore(t)
	txn := base.Edit()

	require.NoError(t, txn.RemoveClass("Person"))
	removed := txn.DetachClass("Person")
	txn.RecomputeOwnProperties()
	next := txn.Commit()

	assert.Equal(t, []string{"hasOwner"}, removed)
	assert.False(t, next.HasClass("Person"))
	assert.False(t, next.HasProperty("hasOwner"))
	assert.True(t, next.HasProperty("hasName"))

	animal, _ := next.Class("Animal")
	assert.Empty(t, animal.OwnProperties)

	// Removing an inner class orphans its children.
	txn = base.Edit()
	require.NoError(t, txn.RemoveClass("Animal"))
	next = txn.Commit()
	sup, ok := next.Superclass("Dog")
	require.True(t, ok)
	assert.Equal(t, "", sup)
	assert.Equal(t, []string{"Dog", "Thing"}, next.Roots())
	assert.True(t, issues.Has(next.CheckTree(), issues.CodeMultipleRoots))
}

func TestDetachClassKeepsPartialDomains(t *testing.T) {
	txn := petStore(t).Edit()
	txn.PutObjectProperty(types.ObjectProperty{
		Name:   "likes",
		Domain: []string{"Dog", "Person"},
		Range:  []string{"Dog", "Person"},
	})
	removed := txn.DetachClass("Dog")
	s := txn.Commit()

	assert.Equal(t, []string{"barkVolume"}, removed)
	likes, ok := s.ObjectProperty("likes")
	require.True(t, ok)
	assert.Equal(t, []string{"Person"}, likes.Domain)
	assert.Equal(t, []string{"Person"}, likes.Range)
}

func TestCheckTree(t *testing.T) {
	t.Run("cycle", func(t *testing.T) {
		txn := New().Edit()
		txn.PutClass(&types.Class{Name: "Root"})
		txn.PutClass(&types.Class{Name: "A", Superclass: "B"})
		txn.PutClass(&types.Class{Name: "B", Superclass: "A"})
		list := txn.Commit().CheckTree()

		assert.True(t, issues.Has(list, issues.CodeCircularHierarchy))
		assert.True(t, issues.Has(list, issues.CodeDisconnectedClasses))
	})

	t.Run("empty store", func(t *testing.T) {
		assert.Empty(t, New().CheckTree())
	})
}

func TestDocumentJSON(t *testing.T) {
	s := petStore(t)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, s))

	var raw map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Nil(t, raw["classes"]["Thing"]["superclass"])
	assert.Equal(t, "Thing", raw["classes"]["Animal"]["superclass"])
	assert.Equal(t, "string", raw["data_properties"]["hasName"]["range"])
	assert.Equal(t, []any{"Person"}, raw["object_properties"]["hasOwner"]["range"])

	loaded, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, s.Document(), loaded.Document())
}

func TestReadYAML(t *testing.T) {
	src := `
classes:
  Animal:
    name: Animal
    superclass: null
  Dog:
    name: Dog
    superclass: Animal
object_properties:
  chases:
    name: chases
    characteristics: [irreflexive]
    domain: [Dog]
    range: [Animal]
data_properties: {}
`
	s, err := ReadYAML(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, []string{"Dog", "Animal"}, s.Ancestors("Dog"))
	dog, _ := s.Class("Dog")
	assert.Equal(t, []string{"chases"}, dog.OwnProperties)
}

func TestFromDocumentRejectsDanglingReferences(t *testing.T) {
	sup := "Missing"
	tests := []struct {
		name string
		doc  *Document
	}{
		{
			name: "superclass",
			doc:  &Document{Classes: map[string]ClassDocument{"A": {Name: "A", Superclass: &sup}}},
		},
		{
			name: "domain",
			doc: &Document{
				Classes: map[string]ClassDocument{"A": {Name: "A"}},
				DataProperties: map[string]types.DataProperty{
					"size": {Name: "size", Domain: []string{"B"}, Range: types.DataTypeInt},
				},
			},
		},
		{
			name: "key mismatch",
			doc:  &Document{Classes: map[string]ClassDocument{"A": {Name: "B"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromDocument(tt.doc)
			assert.Error(t, err)
		})
	}
}
