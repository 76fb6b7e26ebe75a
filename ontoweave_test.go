package ontoweave

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoweave/pkg/config"
	"github.com/soundprediction/ontoweave/pkg/issues"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/proposer"
	"github.com/soundprediction/ontoweave/pkg/storage"
	"github.com/soundprediction/ontoweave/pkg/telemetry"
	"github.com/soundprediction/ontoweave/pkg/types"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

var petConcepts = []types.Concept{
	types.ClassDef{Name: "Thing"},
	types.ClassDef{Name: "Animal", Superclass: "Thing"},
	types.ClassDef{Name: "Dog", Superclass: "Animal"},
	types.ClassDef{Name: "Person", Superclass: "Thing"},
	types.ObjectProperty{Name: "hasOwner", Domain: []string{"Dog"}, Range: []string{"Person"}},
}

var petTriplets = []types.Triplet{
	{Subject: "rex", Predicate: types.IsA, Object: "Dog"},
	{Subject: "alice", Predicate: types.IsA, Object: "Person"},
	{Subject: "rex", Predicate: "hasOwner", Object: "alice"},
}

func petEngine(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c := New(nil, opts...)
	_, err := c.AddConcepts(context.Background(), petConcepts)
	require.NoError(t, err)
	return c
}

// islands returns {Thing, Animal, Dog} and {Island, Rock} as two clusters,
// with a property that only touches the second one.
func islands(t *testing.T) *ontology.Store {
	t.Helper()
	txn := ontology.New().Edit()
	for _, c := range []*types.Class{
		{Name: "Thing"},
		{Name: "Animal", Superclass: "Thing"},
		{Name: "Dog", Superclass: "Animal"},
		{Name: "Island"},
		{Name: "Rock", Superclass: "Island"},
	} {
		txn.PutClass(c)
	}
	txn.PutObjectProperty(types.ObjectProperty{Name: "liesOn", Domain: []string{"Rock"}, Range: []string{"Island"}})
	txn.RecomputeOwnProperties()
	return txn.Commit()
}

func TestAddConceptsAndTriplets(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	c := petEngine(t, WithMetrics(telemetry.NewMetrics(reg)))

	assert.Equal(t, 4, c.Ontology().Len())
	assert.Equal(t, 1, c.ClusterCount())

	plan, err := c.AddTriplets(ctx, petTriplets)
	require.NoError(t, err)
	assert.Len(t, plan.Accepted, 3)

	kg := c.KnowledgeGraph()
	assert.Equal(t, "default", kg.Name)
	assert.Equal(t, petTriplets, kg.Triplets)
	rex, ok := c.EntityType("rex")
	require.True(t, ok)
	assert.Equal(t, "Dog", rex)
	assert.Equal(t, []string{"alice", "rex"}, c.Entities())

	_, err = c.AddTriplets(ctx, []types.Triplet{{Subject: "tom", Predicate: "hasOwner", Object: "alice"}})
	var ierr *issues.Error
	require.ErrorAs(t, err, &ierr)
	assert.True(t, ierr.Has(issues.CodeUntypedEntity))
	assert.Len(t, c.KnowledgeGraph().Triplets, 3)

	_, err = c.AddConcepts(ctx, []types.Concept{types.ClassDef{Name: "Cat", Superclass: "Animl"}})
	require.ErrorAs(t, err, &ierr)
	assert.True(t, ierr.Has(issues.CodeSuperclassNotFound))
	assert.False(t, c.Ontology().HasClass("Cat"))

	series, err := testutil.GatherAndCount(reg, "ontoweave_batches_total")
	require.NoError(t, err)
	assert.Equal(t, 4, series, "accepted and rejected batches of both operations")
	count, err := testutil.GatherAndCount(reg, "ontoweave_kg_triplets")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(nil)

	_, err := c.AddConcepts(ctx, petConcepts)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = c.AddTriplets(ctx, petTriplets)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, c.Ontology().Empty())
}

func TestBuildOntology(t *testing.T) {
	var seen []proposer.ConceptRequest
	p := proposer.ConceptProposerFunc(func(_ context.Context, req proposer.ConceptRequest) ([]types.Concept, error) {
		seen = append(seen, req)
		switch req.Questions[0] {
		case "What is there?":
			return []types.Concept{types.ClassDef{Name: "Thing"}}, nil
		case "Which animals are pets?":
			if req.Attempt == 1 {
				return []types.Concept{types.ClassDef{Name: "Pet", Superclass: "Animal"}}, nil
			}
			return []types.Concept{
				types.ClassDef{Name: "Animal", Superclass: "Thing"},
				types.ClassDef{Name: "Pet", Superclass: "Animal"},
			}, nil
		case "Who drives?":
			if req.Attempt == 1 {
				return nil, fmt.Errorf("%w: unexpected token", proposer.ErrMalformedProposal)
			}
			return []types.Concept{types.ClassDef{Name: "Person", Superclass: "Thing"}}, nil
		default:
			return []types.Concept{types.ClassDef{Name: "floating"}}, nil
		}
	})

	c := New(nil, WithMaxRemedyAttempts(3))
	report, err := c.BuildOntology(context.Background(), [][]string{
		{"What is there?"},
		{"Which animals are pets?"},
		{"Who drives?"},
		{"Why?"},
	}, p)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Accepted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []int{1, 2, 2, 3}, []int{
		report.Batches[0].Attempts, report.Batches[1].Attempts,
		report.Batches[2].Attempts, report.Batches[3].Attempts,
	})
	assert.False(t, report.Batches[3].Accepted)
	assert.NotEmpty(t, report.Batches[3].Issues)
	assert.Equal(t, 2, report.Batches[1].Items)
	assert.Nil(t, report.Stitch)

	assert.ElementsMatch(t, []string{"Animal", "Person", "Pet", "Thing"}, c.Ontology().ClassNames())

	require.Len(t, seen, 8)
	assert.Empty(t, seen[1].Feedback)
	assert.True(t, issues.Has(seen[2].Feedback, issues.CodeSuperclassNotFound))
	assert.True(t, issues.Has(seen[4].Feedback, issues.CodeMalformedProposal))
	assert.Equal(t, 3, seen[7].Attempt)
}

func TestBuildOntologyStopsOnProposerFailure(t *testing.T) {
	boom := errors.New("rate limited")
	p := proposer.ConceptProposerFunc(func(context.Context, proposer.ConceptRequest) ([]types.Concept, error) {
		return nil, boom
	})

	report, err := New(nil).BuildOntology(context.Background(), [][]string{{"q1"}, {"q2"}}, p)
	assert.ErrorIs(t, err, boom)
	require.Len(t, report.Batches, 1)
	assert.Equal(t, 1, report.Batches[0].Attempts)
}

func TestBuildOntologyStitchesFirst(t *testing.T) {
	stitcher := weaver.ProposerFunc(func(context.Context, weaver.Input) (weaver.Operation, error) {
		return weaver.Merge{
			Indexes:   []int{1, 2},
			Relations: []types.SubclassRelation{{Subclass: "Island", Superclass: "Thing"}},
		}, nil
	})
	p := proposer.ConceptProposerFunc(func(_ context.Context, req proposer.ConceptRequest) ([]types.Concept, error) {
		return []types.Concept{types.ClassDef{Name: "Cat", Superclass: "Animal"}}, nil
	})

	c := New(islands(t), WithStitchProposer(stitcher), WithEngineConfig(config.EngineConfig{
		MaxRemedyAttempts: 2,
		AutoStitch:        true,
	}))
	require.Equal(t, 2, c.ClusterCount())

	report, err := c.BuildOntology(context.Background(), [][]string{{"Which pets exist?"}}, p)
	require.NoError(t, err)
	require.NotNil(t, report.Stitch)
	assert.Equal(t, 1, report.Stitch.Accepted)
	assert.Equal(t, 1, c.ClusterCount())
	assert.True(t, c.Ontology().HasClass("Cat"))
	require.NotNil(t, c.LastStitch())
	assert.Len(t, c.LastStitch().Steps, 1)
}

func TestExtractKG(t *testing.T) {
	var requests []proposer.TripletRequest
	p := proposer.TripletProposerFunc(func(_ context.Context, req proposer.TripletRequest) ([]types.Triplet, error) {
		requests = append(requests, req)
		switch req.Text {
		case "Rex belongs to Alice.":
			return petTriplets, nil
		case "Fido also belongs to Alice.":
			if req.Attempt == 1 {
				return []types.Triplet{{Subject: "fido", Predicate: "hasOwner", Object: "alice"}}, nil
			}
			return []types.Triplet{
				{Subject: "fido", Predicate: types.IsA, Object: "Dog"},
				{Subject: "fido", Predicate: "hasOwner", Object: "alice"},
			}, nil
		default:
			return nil, proposer.ErrEmptyResponse
		}
	})

	c := petEngine(t, WithMaxRemedyAttempts(2))
	report, err := c.ExtractKG(context.Background(), []string{
		"Rex belongs to Alice.",
		"Fido also belongs to Alice.",
		"Nothing here.",
	}, p)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 5, len(c.KnowledgeGraph().Triplets))
	fido, _ := c.EntityType("fido")
	assert.Equal(t, "Dog", fido)

	require.Len(t, requests, 5)
	assert.Empty(t, requests[0].Entities)
	assert.Equal(t, map[string]string{"alice": "Person", "rex": "Dog"}, requests[1].Entities)
	assert.True(t, issues.Has(requests[2].Feedback, issues.CodeUntypedEntity))
	assert.True(t, issues.Has(report.Batches[2].Issues, issues.CodeMalformedProposal))
}

func TestStitch(t *testing.T) {
	ctx := context.Background()
	c := New(islands(t))

	_, err := c.Stitch(ctx, nil)
	assert.ErrorIs(t, err, ErrNoStitchProposer)

	_, err = c.AddTriplets(ctx, []types.Triplet{
		{Subject: "rex", Predicate: types.IsA, Object: "Dog"},
		{Subject: "boulder", Predicate: types.IsA, Object: "Rock"},
		{Subject: "skye", Predicate: types.IsA, Object: "Island"},
		{Subject: "boulder", Predicate: "liesOn", Object: "skye"},
	})
	require.NoError(t, err)

	calls := 0
	p := weaver.ProposerFunc(func(_ context.Context, in weaver.Input) (weaver.Operation, error) {
		calls++
		if calls == 1 {
			return weaver.Prune{Indexes: []int{2}, Classes: []string{"Rock"}}, nil
		}
		assert.True(t, issues.Has(in.Feedback, issues.CodeClusterCountNotReduced))
		return weaver.Prune{Indexes: []int{2}, Classes: []string{"Island", "Rock"}}, nil
	})

	sum, err := c.Stitch(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Rejected)
	assert.Equal(t, []string{"Island", "Rock"}, sum.RemovedClasses)
	assert.Equal(t, []string{"liesOn"}, sum.RemovedProperties)

	assert.Equal(t, 1, c.ClusterCount())
	assert.Equal(t, []types.Triplet{{Subject: "rex", Predicate: types.IsA, Object: "Dog"}}, c.KnowledgeGraph().Triplets)
	_, ok := c.EntityType("boulder")
	assert.False(t, ok)
}

func TestApplyOperation(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	c := New(islands(t), WithMetrics(telemetry.NewMetrics(reg)))

	_, err := c.ApplyOperation(ctx, weaver.Merge{
		Indexes:   []int{1, 2},
		Relations: []types.SubclassRelation{{Subclass: "Island", Superclass: "Nowhere"}},
	})
	var ierr *issues.Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, 2, c.ClusterCount())

	out, err := c.ApplyOperation(ctx, weaver.Bridge{
		Indexes:   []int{2, 1},
		Relations: []types.SubclassRelation{{Subclass: "Island", Superclass: "Thing"}},
	})
	require.NoError(t, err)
	assert.Len(t, out.Clusters, 1)
	assert.Equal(t, 1, c.ClusterCount())
	sup, _ := c.Ontology().Superclass("Island")
	assert.Equal(t, "Thing", sup)

	series, err := testutil.GatherAndCount(reg, "ontoweave_stitch_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.OpenBadger("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	assert.ErrorIs(t, New(nil).Save(ctx), ErrNoRepository)

	c := petEngine(t, WithRepository(repo, "pets"))
	_, err = c.AddTriplets(ctx, petTriplets)
	require.NoError(t, err)
	require.NoError(t, c.Save(ctx))

	restored := New(nil, WithRepository(repo, "pets"))
	require.NoError(t, restored.Load(ctx))
	assert.ElementsMatch(t, c.Ontology().ClassNames(), restored.Ontology().ClassNames())
	assert.ElementsMatch(t, petTriplets, restored.KnowledgeGraph().Triplets)
	alice, _ := restored.EntityType("alice")
	assert.Equal(t, "Person", alice)

	missing := New(nil, WithRepository(repo, "nothing"))
	assert.ErrorIs(t, missing.Load(ctx), storage.ErrNotFound)
}

func TestLoadInconsistentSnapshot(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewFileRepository(t.TempDir())
	require.NoError(t, err)

	c := petEngine(t, WithRepository(repo, "pets"))
	require.NoError(t, repo.Save(ctx, &storage.Snapshot{
		Name:     "pets",
		Ontology: c.Ontology().Document(),
		KG: &types.KG{Name: "pets", Triplets: []types.Triplet{
			{Subject: "rex", Predicate: types.IsA, Object: "Unicorn"},
		}},
	}))

	err = c.Load(ctx)
	assert.ErrorIs(t, err, ErrInconsistentState)
	assert.Equal(t, 4, c.Ontology().Len(), "failed load keeps the current state")
}
