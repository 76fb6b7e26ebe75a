package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoweave/pkg/config"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/types"
)

func sampleSnapshot(t *testing.T, name string) *Snapshot {
	t.Helper()
	txn := ontology.New().Edit()
	txn.PutClass(&types.Class{Name: "Thing"})
	txn.PutClass(&types.Class{Name: "Animal", Superclass: "Thing"})
	store := txn.Commit()
	return &Snapshot{
		Name:       name,
		Generation: store.Generation(),
		Ontology:   store.Document(),
		KG: &types.KG{Name: name, Triplets: []types.Triplet{
			{Subject: "rex", Predicate: types.IsA, Object: "Animal"},
		}},
	}
}

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	file, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)
	mem, err := OpenBadger("", true)
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })
	return map[string]Repository{"file": file, "badger": mem}
}

func TestRepositories(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Load(ctx, "pets")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, repo.Save(ctx, sampleSnapshot(t, "pets")))
			require.NoError(t, repo.Save(ctx, sampleSnapshot(t, "farm")))

			got, err := repo.Load(ctx, "pets")
			require.NoError(t, err)
			assert.Equal(t, "pets", got.Name)
			assert.False(t, got.SavedAt.IsZero())
			assert.Len(t, got.Ontology.Classes, 2)
			require.Nil(t, got.Ontology.Classes["Thing"].Superclass)
			assert.Equal(t, "Thing", *got.Ontology.Classes["Animal"].Superclass)
			assert.Len(t, got.KG.Triplets, 1)

			names, err := repo.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"farm", "pets"}, names)

			require.NoError(t, repo.Delete(ctx, "farm"))
			names, err = repo.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"pets"}, names)

			store, err := ontology.FromDocument(got.Ontology)
			require.NoError(t, err)
			assert.True(t, store.IsSubclassOf("Animal", "Thing"))
		})
	}
}

func TestInvalidNames(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			for _, bad := range []string{"", "../escape", "a/b", `a\b`, "nul\x00"} {
				assert.ErrorIs(t, repo.Save(ctx, &Snapshot{Name: bad}), ErrInvalidArtifactName, bad)
				_, err := repo.Load(ctx, bad)
				assert.ErrorIs(t, err, ErrInvalidArtifactName, bad)
			}
		})
	}
}

func TestFileRepositorySkipsPartialWrites(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFileRepository(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "half.json.tmp"), []byte("{"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0755))

	names, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestOpen(t *testing.T) {
	repo, err := Open(config.StorageConfig{Driver: "file", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileRepository{}, repo)

	_, err = Open(config.StorageConfig{Driver: "s3"})
	assert.Error(t, err)
}
