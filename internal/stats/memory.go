package stats

import (
	"context"
	"sync"

	"github.com/castlelight/gambit/internal/models"
)

// MemoryRecorder keeps results in memory for tests and database-less
// deployments.
type MemoryRecorder struct {
	mu      sync.Mutex
	results []models.GameResult
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// RecordResult appends the result.
func (m *MemoryRecorder) RecordResult(ctx context.Context, result models.GameResult) error {
	m.mu.Lock()
	m.results = append(m.results, result)
	m.mu.Unlock()
	return nil
}

// Results returns a copy of everything recorded so far.
func (m *MemoryRecorder) Results() []models.GameResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.GameResult, len(m.results))
	copy(out, m.results)
	return out
}
