package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/soundprediction/ontoweave/pkg/config"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/types"
)

// Statement is a parameterised Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

// schemaStatements create the uniqueness constraints the load relies on.
// They cannot share a transaction with data writes.
var schemaStatements = []string{
	"CREATE CONSTRAINT class_name IF NOT EXISTS FOR (c:Class) REQUIRE c.name IS UNIQUE",
	"CREATE CONSTRAINT entity_name IF NOT EXISTS FOR (e:Entity) REQUIRE e.name IS UNIQUE",
}

const (
	mergeClasses = `
		UNWIND $classes AS c
		MERGE (n:Class {name: c.name})
		SET n.description = c.description, n.depth = c.depth
	`
	mergeSubclassOf = `
		UNWIND $relations AS r
		MATCH (s:Class {name: r.subclass})
		MATCH (p:Class {name: r.superclass})
		MERGE (s)-[:SUBCLASS_OF]->(p)
	`
	mergeEntities = `
		UNWIND $entities AS e
		MERGE (n:Entity {name: e.name})
		SET n.class = e.class
		SET n += e.attributes
	`
	mergeInstanceOf = `
		UNWIND $types AS t
		MATCH (n:Entity {name: t.entity})
		MATCH (c:Class {name: t.class})
		MERGE (n)-[:INSTANCE_OF]->(c)
	`
	mergeRelations = `
		UNWIND $relations AS r
		MATCH (s:Entity {name: r.subject})
		MATCH (o:Entity {name: r.object})
		MERGE (s)-[e:RELATION {predicate: r.predicate}]->(o)
		SET e.confidence = r.confidence
	`
)

// Statements builds the data statements that load store and kg: Class
// nodes linked by SUBCLASS_OF, Entity nodes linked to their classes by
// INSTANCE_OF, and one RELATION edge per object property triplet. Data
// property values become entity node properties; when a predicate has
// several values the last one is kept.
func Statements(store *ontology.Store, kg *types.KG) []Statement {
	classes := make([]map[string]any, 0, store.Len())
	for _, c := range store.Classes() {
		description := ""
		if c.Description != nil {
			description = c.Description.Text
		}
		classes = append(classes, map[string]any{
			"name":        c.Name,
			"description": description,
			"depth":       int64(store.Depth(c.Name)),
		})
	}

	subclassOf := make([]map[string]any, 0, store.Len())
	for _, r := range store.SubclassRelations() {
		subclassOf = append(subclassOf, map[string]any{"subclass": r.Subclass, "superclass": r.Superclass})
	}

	entityClass := EntityClasses(store, kg)
	attributes := make(map[string]map[string]any, len(entityClass))
	for e := range entityClass {
		attributes[e] = make(map[string]any)
	}
	var instanceOf, relations []map[string]any
	for _, t := range kg.Triplets {
		switch {
		case t.IsTypeAssignment():
			instanceOf = append(instanceOf, map[string]any{"entity": t.Subject, "class": t.Object})
		default:
			if _, ok := store.ObjectProperty(t.Predicate); ok {
				var confidence any
				if t.Confidence != nil {
					confidence = *t.Confidence
				}
				relations = append(relations, map[string]any{
					"subject":    t.Subject,
					"predicate":  t.Predicate,
					"object":     t.Object,
					"confidence": confidence,
				})
				continue
			}
			if attrs, ok := attributes[t.Subject]; ok {
				attrs[t.Predicate] = t.Object
			}
		}
	}

	names := make([]string, 0, len(entityClass))
	for e := range entityClass {
		names = append(names, e)
	}
	sort.Strings(names)
	entities := make([]map[string]any, 0, len(names))
	for _, e := range names {
		entities = append(entities, map[string]any{
			"name":       e,
			"class":      entityClass[e],
			"attributes": attributes[e],
		})
	}

	return []Statement{
		{Cypher: mergeClasses, Params: map[string]any{"classes": classes}},
		{Cypher: mergeSubclassOf, Params: map[string]any{"relations": subclassOf}},
		{Cypher: mergeEntities, Params: map[string]any{"entities": entities}},
		{Cypher: mergeInstanceOf, Params: map[string]any{"types": instanceOf}},
		{Cypher: mergeRelations, Params: map[string]any{"relations": relations}},
	}
}

// Neo4jLoader writes ontologies and knowledge graphs to Neo4j.
type Neo4jLoader struct {
	client   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jLoader creates a loader for the database in cfg.
func NewNeo4jLoader(cfg config.Neo4jConfig, logger *slog.Logger) (*Neo4jLoader, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Neo4jLoader{client: driver, database: database, logger: logger}, nil
}

// VerifyConnectivity checks if the loader can reach the database.
func (l *Neo4jLoader) VerifyConnectivity(ctx context.Context) error {
	return l.client.VerifyConnectivity(ctx)
}

// Close releases the driver.
func (l *Neo4jLoader) Close(ctx context.Context) error {
	return l.client.Close(ctx)
}

// Load creates the constraints and writes store and kg in one transaction.
// Nodes and edges are merged, so loading the same graph twice is a no-op.
func (l *Neo4jLoader) Load(ctx context.Context, store *ontology.Store, kg *types.KG) error {
	session := l.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.database})
	defer session.Close(ctx)

	for _, q := range schemaStatements {
		if _, err := session.Run(ctx, q, nil); err != nil {
			if !strings.Contains(err.Error(), "already exists") && !strings.Contains(err.Error(), "An equivalent") {
				return fmt.Errorf("failed to create constraint: %w", err)
			}
		}
	}

	statements := Statements(store, kg)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for i, s := range statements {
			if _, err := tx.Run(ctx, s.Cypher, s.Params); err != nil {
				return nil, fmt.Errorf("failed to run export statement %d: %w", i, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	l.logger.Info("exported graph to neo4j",
		"database", l.database,
		"classes", store.Len(),
		"triplets", len(kg.Triplets))
	return nil
}
