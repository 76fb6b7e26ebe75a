package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// Stage names the pipeline a run belongs to.
type Stage string

const (
	StageBuild   Stage = "build"
	StageExtract Stage = "extract"
)

// Run is the progress of one pipeline over an input file.
type Run struct {
	ID     string `json:"id"`
	Stage  Stage  `json:"stage"`
	Name   string `json:"name"`
	Source string `json:"source"`
	// Total is the number of batches in the input.
	Total int `json:"total"`
	// Accepted and Skipped hold 1-based batch indexes.
	Accepted []int `json:"accepted"`
	Skipped  []int `json:"skipped"`

	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	AttemptCount  int       `json:"attempt_count"`
	LastError     string    `json:"last_error,omitempty"`
}

// RunID derives a stable ID from the stage, the engine name and the input
// batches, so rerunning the same input resumes the same checkpoint.
func RunID(stage Stage, name string, batches []string) string {
	h := sha256.New()
	for _, b := range batches {
		h.Write([]byte(b))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s-%s-%s", stage, name, hex.EncodeToString(h.Sum(nil))[:12])
}

// NewRun creates a checkpoint with no finished batches.
func NewRun(stage Stage, name, source string, batches []string) *Run {
	now := time.Now()
	return &Run{
		ID:            RunID(stage, name, batches),
		Stage:         stage,
		Name:          name,
		Source:        source,
		Total:         len(batches),
		Accepted:      []int{},
		Skipped:       []int{},
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

// Done reports whether batch index was accepted or skipped already.
func (r *Run) Done(index int) bool {
	return contains(r.Accepted, index) || contains(r.Skipped, index)
}

// Finish records the outcome of batch index.
func (r *Run) Finish(index int, accepted bool) {
	if r.Done(index) {
		return
	}
	if accepted {
		r.Accepted = insert(r.Accepted, index)
	} else {
		r.Skipped = insert(r.Skipped, index)
	}
}

// Completed reports whether every batch has finished.
func (r *Run) Completed() bool {
	return len(r.Accepted)+len(r.Skipped) >= r.Total
}

// Progress returns a short progress line such as "3/10 (30%)".
func (r *Run) Progress() string {
	finished := len(r.Accepted) + len(r.Skipped)
	if r.Total == 0 {
		return "0/0 (100%)"
	}
	return fmt.Sprintf("%d/%d (%d%%)", finished, r.Total, finished*100/r.Total)
}

func contains(sorted []int, v int) bool {
	i := sort.SearchInts(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

func insert(sorted []int, v int) []int {
	i := sort.SearchInts(sorted, v)
	sorted = append(sorted, 0)
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = v
	return sorted
}
