package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoweave"
	"github.com/soundprediction/ontoweave/pkg/alert"
	"github.com/soundprediction/ontoweave/pkg/checkpoint"
	"github.com/soundprediction/ontoweave/pkg/config"
	"github.com/soundprediction/ontoweave/pkg/export"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/proposer"
	"github.com/soundprediction/ontoweave/pkg/storage"
	"github.com/soundprediction/ontoweave/pkg/types"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

const petsYAML = `
- kind: class
  name: Thing
- kind: class
  name: Animal
  superclass: Thing
- kind: class
  name: Dog
  superclass: Animal
- kind: class
  name: Person
  superclass: Thing
- kind: object_property
  name: hasOwner
  domain: [Dog]
  range: [Person]
`

const petsKG = `{"name": "pets", "triplets": [
	{"subject": "rex", "predicate": "isA", "object": "Dog"},
	{"subject": "alice", "predicate": "isA", "object": "Person"},
	{"subject": "rex", "predicate": "hasOwner", "object": "alice", "confidence": 0.9}
]}`

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the root command against the storage directory data.
func run(t *testing.T, data string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TELEMETRY_PARQUET_PATH", t.TempDir())
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--storage-path", data, "--log-level", "error", "--log-format", "text"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir, data := t.TempDir(), t.TempDir()
	concepts := write(t, dir, "pets.yaml", petsYAML)
	kg := write(t, dir, "pets.json", petsKG)
	bad := write(t, dir, "bad.json", `{"triplets": [{"subject": "tom", "predicate": "hasOwner", "object": "alice"}]}`)

	t.Run("validate", func(t *testing.T) {
		out, err := run(t, data, "validate", concepts)
		require.NoError(t, err, out)
		assert.Contains(t, out, "accepted (5 concepts, 4 classes, 1 clusters)")

		out, err = run(t, data, "validate", write(t, dir, "orphan.json", `[{"kind": "class", "name": "Cat", "superclass": "Feline"}]`))
		require.Error(t, err)
		assert.Contains(t, out, "rejected")
	})

	t.Run("clusters", func(t *testing.T) {
		out, err := run(t, data, "clusters", "--json")
		require.NoError(t, err)
		var clusters []weaver.Cluster
		require.NoError(t, json.Unmarshal([]byte(out), &clusters))
		require.Len(t, clusters, 1)
		assert.Len(t, clusters[0].Classes, 4)
	})

	t.Run("check", func(t *testing.T) {
		out, err := run(t, data, "check", kg, bad, "--workers", "2")
		require.Error(t, err)
		assert.Contains(t, out, "pets.json: conforms (3 new, 0 duplicate)")
		assert.Contains(t, out, "bad.json: rejected")

		out, err = run(t, data, "check", kg, "--commit")
		require.NoError(t, err, out)
		assert.Contains(t, out, "knowledge graph has 3 triplets")
	})

	t.Run("export", func(t *testing.T) {
		out, err := run(t, data, "export", "--format", "parquet", "--out", dir)
		require.NoError(t, err, out)

		exported, err := export.ReadTriplets(filepath.Join(dir, export.TripletsFile), "pets")
		require.NoError(t, err)
		assert.Len(t, exported.Triplets, 3)

		_, err = run(t, data, "export", "--format", "rdf")
		assert.Error(t, err)
	})
}

func TestStitchReplay(t *testing.T) {
	dir, data := t.TempDir(), t.TempDir()

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
	txn.RecomputeOwnProperties()
	repo, err := storage.NewFileRepository(data)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), &storage.Snapshot{
		Name:     "default",
		Ontology: txn.Commit().Document(),
	}))

	ops := write(t, dir, "ops.json", `[
		{"type": "merge", "indexes": [1, 2], "relations": [{"subclass": "Island", "superclass": "Nowhere"}]},
		{"type": "bridge", "indexes": [2, 1], "relations": [{"subclass": "Island", "superclass": "Thing"}]}
	]`)
	history := filepath.Join(dir, "history.json")

	out, err := run(t, data, "stitch", "--ops", ops, "--history", history)
	require.NoError(t, err, out)
	assert.Contains(t, out, "stitched 2 cluster(s) into 1: 1 accepted, 1 rejected")

	f, err := os.Open(history)
	require.NoError(t, err)
	defer f.Close()
	h, err := weaver.ReadHistory(f)
	require.NoError(t, err)
	assert.Len(t, h.Operations(), 1)

	snap, err := repo.Load(context.Background(), "default")
	require.NoError(t, err)
	require.NotNil(t, snap.Ontology.Classes["Island"].Superclass)
	assert.Equal(t, "Thing", *snap.Ontology.Classes["Island"].Superclass)
}

func TestReplayExhausted(t *testing.T) {
	path := write(t, t.TempDir(), "ops.json", `[{"type": "prune", "indexes": [2], "classes": ["Rock"]}]`)
	p, err := replay(path)
	require.NoError(t, err)

	op, err := p.ProposeOperation(context.Background(), weaver.Input{})
	require.NoError(t, err)
	assert.Equal(t, weaver.KindPrune, op.Kind())

	_, err = p.ProposeOperation(context.Background(), weaver.Input{})
	assert.Error(t, err)

	_, err = replay(write(t, t.TempDir(), "bad.json", `[{"type": "split"}]`))
	assert.ErrorIs(t, err, weaver.ErrUnknownOperation)
}

type recordingAlerter struct{ subjects []string }

func (r *recordingAlerter) Alert(subject, message string) error {
	r.subjects = append(r.subjects, subject)
	return nil
}

func TestPipelineResumes(t *testing.T) {
	ctx := context.Background()
	cfg = &config.Config{
		Storage:    config.StorageConfig{Driver: "file", Path: t.TempDir(), Name: "default"},
		Engine:     config.EngineConfig{MaxRemedyAttempts: 2, MaxRejections: 25, AncestorCacheSize: 64},
		Checkpoint: config.CheckpointConfig{Dir: t.TempDir()},
	}
	log = slog.New(slog.NewTextHandler(io.Discard, nil))

	groups := [][]string{
		{"What kinds of animals are there?"},
		{"Which animals are pets?"},
		{"What do cats eat?"},
	}
	replies := []string{
		`[{"kind": "class", "name": "Thing"}, {"kind": "class", "name": "Animal", "superclass": "Thing"}]`,
		`[{"kind": "class", "name": "Dog", "superclass": "Animal"}]`,
		`[{"kind": "class", "name": "Cat", "superclass": "Feline"}]`,
		`[{"kind": "class", "name": "Cat", "superclass": "Felid"}]`,
	}
	keys := []string{groups[0][0], groups[1][0], groups[2][0]}

	build := func(script *proposer.Script, alerter alert.Alerter) (string, error) {
		var out bytes.Buffer
		p := &pipeline{
			stage:   checkpoint.StageBuild,
			unit:    "question group",
			source:  "questions.yaml",
			batches: keys,
			out:     &out,
			alerter: alerter,
		}
		llm := proposer.NewLLM(script, proposer.WithLogger(log))
		err := p.open(ctx, nil, func(ctx context.Context, s *session, index int) (*ontoweave.Report, error) {
			return s.engine.BuildOntology(ctx, groups[index-1:index], llm)
		})
		return out.String(), err
	}

	// The script runs dry during the second group.
	first := proposer.NewScript(replies[0])
	out, err := build(first, &alert.NoOpAlerter{})
	require.ErrorIs(t, err, proposer.ErrScriptExhausted)
	assert.Contains(t, out, "question group 1: accepted after 1 attempt(s), 2 item(s)")

	mgr, err := checkpoint.NewManager(cfg.Checkpoint.Dir)
	require.NoError(t, err)
	run, err := mgr.Load(ctx, checkpoint.RunID(checkpoint.StageBuild, "default", keys))
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, []int{1}, run.Accepted)
	assert.Equal(t, 1, run.AttemptCount)

	second := proposer.NewScript(replies[1:]...)
	alerts := &recordingAlerter{}
	out, err = build(second, alerts)
	require.NoError(t, err, out)
	assert.Contains(t, out, "resuming build-default-")
	assert.Contains(t, out, "question group 2: accepted")
	assert.Contains(t, out, "question group 3: skipped after 2 attempt(s)")
	assert.Contains(t, out, "2 accepted, 1 skipped")
	assert.Contains(t, out, "ontology has 3 classes in 1 cluster(s)")
	assert.Len(t, second.Prompts(), 3)
	assert.Len(t, alerts.subjects, 1)

	runs, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs, "finished runs drop their checkpoint")
}
