package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoweave"
	"github.com/soundprediction/ontoweave/pkg/issues"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/server/dto"
	"github.com/soundprediction/ontoweave/pkg/storage"
	"github.com/soundprediction/ontoweave/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const petBatch = `{"concepts": [
	{"kind": "class", "name": "Thing"},
	{"kind": "class", "name": "Animal", "superclass": "Thing"},
	{"kind": "class", "name": "Dog", "superclass": "Animal"},
	{"kind": "class", "name": "Person", "superclass": "Thing"},
	{"kind": "object_property", "name": "hasOwner", "domain": ["Dog"], "range": ["Person"]}
]}`

func router(guard *Guard) *gin.Engine {
	r := gin.New()
	health := NewHealthHandler(guard)
	onto := NewOntologyHandler(guard)
	kg := NewKGHandler(guard)
	r.GET("/health", health.HealthCheck)
	r.GET("/ready", health.ReadinessCheck)
	r.GET("/live", health.LivenessCheck)
	r.GET("/ontology", onto.GetOntology)
	r.POST("/ontology/concepts", onto.AddConcepts)
	r.GET("/ontology/clusters", onto.GetClusters)
	r.POST("/ontology/operations", onto.ApplyOperation)
	r.GET("/kg", kg.GetKG)
	r.POST("/kg/triplets", kg.AddTriplets)
	r.GET("/entities/:name", kg.GetEntity)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func newGuard(opts ...ontoweave.Option) *Guard {
	opts = append([]ontoweave.Option{ontoweave.WithLogger(discard)}, opts...)
	return NewGuard(ontoweave.New(nil, opts...), false, discard)
}

// islands has {Thing, Animal, Dog} as cluster 1 and {Island, Rock} as
// cluster 2.
func islands() *ontology.Store {
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
	return txn.Commit()
}

func TestHealthCheck(t *testing.T) {
	t.Run("no engine", func(t *testing.T) {
		h := router(nil)
		w := do(t, h, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		w = do(t, h, http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		w = do(t, h, http.MethodGet, "/live", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alive", decode[map[string]any](t, w)["status"])
	})

	t.Run("healthy", func(t *testing.T) {
		h := router(newGuard())
		require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/ontology/concepts", petBatch).Code)

		w := do(t, h, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[map[string]any](t, w)
		assert.Equal(t, "healthy", resp["status"])
		assert.Equal(t, "ontoweave", resp["service"])
		assert.Contains(t, resp, "version")
		onto := resp["ontology"].(map[string]any)
		assert.EqualValues(t, 4, onto["classes"])
		assert.EqualValues(t, 1, onto["clusters"])

		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/ready", "").Code)
	})

	t.Run("fragmented", func(t *testing.T) {
		guard := NewGuard(ontoweave.New(islands(), ontoweave.WithLogger(discard)), false, discard)
		w := do(t, router(guard), http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "degraded", decode[map[string]any](t, w)["status"])
	})
}

func TestAddConcepts(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "malformed json", body: `{"concepts": [`, status: http.StatusBadRequest, code: dto.ErrCodeInvalidRequest},
		{name: "unknown kind", body: `{"concepts": [{"kind": "individual", "name": "rex"}]}`, status: http.StatusBadRequest, code: dto.ErrCodeInvalidRequest},
		{name: "empty batch", body: `{"concepts": []}`, status: http.StatusBadRequest, code: dto.ErrCodeInvalidRequest},
		{
			name:   "unknown superclass",
			body:   `{"concepts": [{"kind": "class", "name": "Dog", "superclass": "Animal"}]}`,
			status: http.StatusUnprocessableEntity,
			code:   dto.ErrCodeValidationFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := router(newGuard())
			w := do(t, h, http.MethodPost, "/ontology/concepts", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decode[dto.ErrorResponse](t, w)
			assert.Equal(t, tt.code, resp.Error)
			if tt.status == http.StatusUnprocessableEntity {
				assert.NotEmpty(t, resp.Issues)
			}
		})
	}

	t.Run("accepted", func(t *testing.T) {
		h := router(newGuard())
		w := do(t, h, http.MethodPost, "/ontology/concepts", petBatch)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[dto.AddConceptsResponse](t, w)
		assert.Equal(t, 4, resp.Classes)
		assert.Equal(t, 1, resp.Clusters)
		assert.NotZero(t, resp.Generation)
	})
}

func TestGetOntology(t *testing.T) {
	h := router(newGuard())
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/ontology/concepts", petBatch).Code)

	w := do(t, h, http.MethodGet, "/ontology", "")
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode[ontology.Document](t, w)
	assert.Len(t, doc.Classes, 4)
	require.NotNil(t, doc.Classes["Dog"].Superclass)
	assert.Equal(t, "Animal", *doc.Classes["Dog"].Superclass)
	assert.Contains(t, doc.ObjectProperties, "hasOwner")

	w = do(t, h, http.MethodGet, "/ontology?format=yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "yaml")
	assert.Contains(t, w.Body.String(), "classes:")
}

func TestOperations(t *testing.T) {
	guard := NewGuard(ontoweave.New(islands(), ontoweave.WithLogger(discard)), false, discard)
	h := router(guard)

	w := do(t, h, http.MethodGet, "/ontology/clusters", "")
	require.Equal(t, http.StatusOK, w.Code)
	clusters := decode[dto.ClustersResponse](t, w)
	require.Equal(t, 2, clusters.Count)
	assert.Equal(t, []string{"Island", "Rock"}, clusters.Clusters[1].Classes)

	w = do(t, h, http.MethodPost, "/ontology/operations", `{"type": "split", "indexes": [1]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/ontology/operations",
		`{"type": "merge", "indexes": [1, 2], "relations": [{"subclass": "Island", "superclass": "Nowhere"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEmpty(t, decode[dto.ErrorResponse](t, w).Issues)

	w = do(t, h, http.MethodPost, "/ontology/operations",
		`{"type": "prune", "indexes": [2], "classes": ["Island", "Rock"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.OperationResponse](t, w)
	assert.Equal(t, "prune", string(resp.Operation))
	assert.Equal(t, 1, resp.Clusters)
	assert.Equal(t, []string{"Island", "Rock"}, resp.RemovedClasses)
}

func TestTriplets(t *testing.T) {
	h := router(newGuard())
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/ontology/concepts", petBatch).Code)

	body := `{"triplets": [
		{"subject": "rex", "predicate": "isA", "object": "Dog"},
		{"subject": "alice", "predicate": "isA", "object": "Person"},
		{"subject": "rex", "predicate": "hasOwner", "object": "alice", "confidence": 0.9}
	]}`
	w := do(t, h, http.MethodPost, "/kg/triplets", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	added := decode[dto.AddTripletsResponse](t, w)
	assert.Equal(t, 3, added.Accepted)
	assert.Equal(t, 3, added.Total)

	w = do(t, h, http.MethodPost, "/kg/triplets", body)
	require.Equal(t, http.StatusOK, w.Code)
	added = decode[dto.AddTripletsResponse](t, w)
	assert.Zero(t, added.Accepted)
	assert.Equal(t, 3, added.Duplicates)

	w = do(t, h, http.MethodPost, "/kg/triplets", `{"triplets": [{"subject": "tom", "predicate": "hasOwner", "object": "alice"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[dto.ErrorResponse](t, w)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, issues.CodeUntypedEntity, resp.Issues[0].Code)

	w = do(t, h, http.MethodPost, "/kg/triplets", `{"triplets": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/kg", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[types.KG](t, w).Triplets, 3)

	w = do(t, h, http.MethodGet, "/entities/rex", "")
	require.Equal(t, http.StatusOK, w.Code)
	entity := decode[dto.EntityResponse](t, w)
	assert.Equal(t, "Dog", entity.Class)
	assert.Len(t, entity.Triplets, 2)

	w = do(t, h, http.MethodGet, "/entities/tom", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decode[dto.ErrorResponse](t, w).Error)
}

func TestGuardPersistence(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewFileRepository(t.TempDir())
	require.NoError(t, err)

	engine := ontoweave.New(nil, ontoweave.WithLogger(discard), ontoweave.WithRepository(repo, "pets"))
	h := router(NewGuard(engine, true, discard))
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/ontology/concepts", petBatch).Code)

	snap, err := repo.Load(ctx, "pets")
	require.NoError(t, err)
	assert.Len(t, snap.Ontology.Classes, 4)

	unsaved := ontoweave.New(nil, ontoweave.WithLogger(discard))
	w := do(t, router(NewGuard(unsaved, true, discard)), http.MethodPost, "/ontology/concepts", petBatch)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.ErrCodePersistFailed, decode[dto.ErrorResponse](t, w).Error)
	assert.Equal(t, 4, unsaved.Ontology().Len(), "the batch stays committed")
}
