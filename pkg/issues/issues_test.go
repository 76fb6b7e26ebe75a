package issues

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	assert.NoError(t, New("add concepts", nil))

	one := New("add concepts", []Issue{{
		Code:    CodeSuperclassNotFound,
		Path:    "class:Dog",
		Message: "Superclass 'Animl' not found",
		Hint:    "Did you mean 'Animal'?",
	}})
	assert.EqualError(t, one, "add concepts: [class:Dog] Superclass 'Animl' not found (hint: Did you mean 'Animal'?)")

	two := New("add triplets", []Issue{
		{Code: CodeUnknownClass, Path: "(rex, isA, Dgo)", Message: "unknown"},
		{Code: CodeUntypedEntity, Path: "(rex, chases, tom)", Message: "untyped", Context: "tom"},
	})
	assert.Equal(t, "add triplets: 2 issues\n- [(rex, isA, Dgo)] unknown\n- [(rex, chases, tom)] untyped (context: tom)", two.Error())

	wrapped := fmt.Errorf("batch 3: %w", two)
	assert.True(t, errors.Is(wrapped, &Error{}))
	var ierr *Error
	require.True(t, errors.As(wrapped, &ierr))
	assert.True(t, ierr.Has(CodeUntypedEntity))
	assert.False(t, ierr.Has(CodeMultipleRoots))
	assert.Equal(t, []Code{CodeUnknownClass, CodeUntypedEntity}, Codes(ierr.Issues))
}

func TestSuggest(t *testing.T) {
	candidates := []string{"Animal", "Dog", "Person", "hasOwner"}
	tests := []struct {
		name string
		want string
	}{
		{name: "Animl", want: "Animal"},
		{name: "dog", want: "Dog"},
		{name: "hasOwnr", want: "hasOwner"},
		{name: "Spaceship", want: ""},
		{name: "Dog", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Suggest(tt.name, candidates))
		})
	}

	assert.Equal(t, "Did you mean 'Dog'? Use a defined class.", DidYouMean("Dgo", candidates, "Use a defined class."))
	assert.Equal(t, "Use a defined class.", DidYouMean("Xyzzy", candidates, "Use a defined class."))
	assert.Equal(t, "'Dog', 'Cat'", Quote([]string{"Dog", "Cat"}))
}
