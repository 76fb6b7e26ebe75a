package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/ontoweave"
	"github.com/soundprediction/ontoweave/pkg/alert"
	"github.com/soundprediction/ontoweave/pkg/export"
	"github.com/soundprediction/ontoweave/pkg/proposer"
	"github.com/soundprediction/ontoweave/pkg/storage"
	"github.com/soundprediction/ontoweave/pkg/telemetry"
	"github.com/soundprediction/ontoweave/pkg/types"
)

// session is an engine bound to the configured repository.
type session struct {
	engine *ontoweave.Client
	repo   storage.Repository
}

// openEngine loads the engine saved under the configured name, or starts
// an empty one when nothing was saved yet.
func openEngine(ctx context.Context, reg prometheus.Registerer, extra ...ontoweave.Option) (*session, error) {
	repo, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	opts := []ontoweave.Option{
		ontoweave.WithLogger(log),
		ontoweave.WithEngineConfig(cfg.Engine),
		ontoweave.WithRepository(repo, cfg.Storage.Name),
	}
	if reg != nil {
		opts = append(opts, ontoweave.WithMetrics(telemetry.NewMetrics(reg)))
	}
	opts = append(opts, extra...)
	engine := ontoweave.New(nil, opts...)

	if err := engine.Load(ctx); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			_ = repo.Close()
			return nil, err
		}
		log.Info("starting with an empty ontology", "name", cfg.Storage.Name)
	}
	return &session{engine: engine, repo: repo}, nil
}

func (s *session) Close() error { return s.repo.Close() }

// newLLM builds the proposer selected by the proposer config.
func newLLM(alerter alert.Alerter) (*proposer.LLM, error) {
	if cfg.Proposer.Provider != "openai" {
		return nil, fmt.Errorf("unsupported proposer provider: %s", cfg.Proposer.Provider)
	}
	chat, err := proposer.NewOpenAIChat(cfg.Proposer)
	if err != nil {
		return nil, err
	}
	guarded := proposer.NewCircuitBreaker(chat, cfg.CircuitBreaker, "proposer", alerter, log)
	return proposer.NewLLM(guarded, proposer.WithLogger(log)), nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// readConcepts reads a concept batch. JSON files may hold a bare list or
// an object with a "concepts" list.
func readConcepts(path string) ([]types.Concept, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isYAML(path) {
		var batch types.Concepts
		if err := yaml.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return batch, nil
	}
	batch, err := proposer.DecodeConcepts(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return batch, nil
}

// readKG reads a knowledge graph from JSON, YAML or a triplets parquet
// file. Graphs without a name are named after the file.
func readKG(path string) (*types.KG, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return export.ReadTriplets(path, name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	kg := &types.KG{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, kg)
	} else {
		err = json.Unmarshal(data, kg)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if kg.Name == "" {
		kg.Name = name
	}
	return kg, nil
}

// readParagraphs returns the blank-line separated paragraphs of path.
func readParagraphs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, part := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n\n") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}
