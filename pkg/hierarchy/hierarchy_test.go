package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func animals() Parents {
	return Parents{
		"Animal": "",
		"Mammal": "Animal",
		"Bird":   "Animal",
		"Dog":    "Mammal",
		"Cat":    "Mammal",
	}
}

func TestAncestors(t *testing.T) {
	tests := []struct {
		name    string
		parents Parents
		class   string
		want    []string
	}{
		{name: "root", parents: animals(), class: "Animal", want: []string{"Animal"}},
		{name: "leaf", parents: animals(), class: "Dog", want: []string{"Dog", "Mammal", "Animal"}},
		{name: "unknown", parents: animals(), class: "Fish", want: nil},
		{
			name:    "cycle terminates",
			parents: Parents{"A": "B", "B": "C", "C": "A"},
			class:   "A",
			want:    []string{"A", "B", "C"},
		},
		{
			name:    "dangling superclass",
			parents: Parents{"A": "Missing"},
			class:   "A",
			want:    []string{"A", "Missing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ancestors(tt.parents, tt.class))
		})
	}
}

func TestDepthMatchesAncestors(t *testing.T) {
	p := animals()
	assert.Equal(t, 1, Depth(p, "Animal"))
	assert.Equal(t, 2, Depth(p, "Bird"))
	assert.Equal(t, 3, Depth(p, "Cat"))
	for c := range p {
		assert.Len(t, Ancestors(p, c), Depth(p, c))
	}
}

func TestChildrenAndSubtree(t *testing.T) {
	p := animals()
	children := Children(p)

	assert.Equal(t, []string{"Bird", "Mammal"}, Descendants(children, "Animal"))
	assert.Equal(t, []string{"Cat", "Dog"}, Descendants(children, "Mammal"))
	assert.Empty(t, Descendants(children, "Dog"))

	assert.Equal(t, []string{"Mammal", "Cat", "Dog"}, Subtree(children, "Mammal"))
	assert.ElementsMatch(t, []string{"Animal", "Mammal", "Bird", "Dog", "Cat"}, Subtree(children, "Animal"))
}

func TestRootsAndUnreachable(t *testing.T) {
	p := animals()
	p["Rock"] = ""
	p["Pebble"] = "Rock"

	assert.Equal(t, []string{"Animal", "Rock"}, Roots(p))
	assert.Equal(t, []string{"Pebble", "Rock"}, Unreachable(p, "Animal"))
	assert.Empty(t, Unreachable(animals(), "Animal"))
}

func TestCreatesCycle(t *testing.T) {
	p := animals()

	assert.True(t, CreatesCycle(p, "Dog", "Dog"))
	assert.True(t, CreatesCycle(p, "Animal", "Dog"))
	assert.True(t, CreatesCycle(p, "Mammal", "Cat"))
	assert.False(t, CreatesCycle(p, "Bird", "Mammal"))
	assert.False(t, CreatesCycle(p, "Fish", "Animal"))
}

func TestConnectedComponents(t *testing.T) {
	t.Run("two islands", func(t *testing.T) {
		p := Parents{"A": "", "B": "A", "C": "", "D": "C"}
		got := ConnectedComponents([]string{"A", "B", "C", "D"}, Edges(p))
		assert.Equal(t, [][]string{{"A", "B"}, {"C", "D"}}, got)
	})

	t.Run("larger first then smallest member", func(t *testing.T) {
		edges := []Edge{{A: "Z", B: "Y"}, {A: "Y", B: "X"}}
		got := ConnectedComponents([]string{"B", "A", "X", "Y", "Z"}, edges)
		assert.Equal(t, [][]string{{"X", "Y", "Z"}, {"A"}, {"B"}}, got)
	})

	t.Run("edge endpoints become vertices", func(t *testing.T) {
		got := ConnectedComponents(nil, []Edge{{A: "A", B: "B"}})
		assert.Equal(t, [][]string{{"A", "B"}}, got)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, ConnectedComponents(nil, nil))
	})
}
