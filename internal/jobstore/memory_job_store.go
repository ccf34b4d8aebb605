// Package jobstore хранит задачи генерации аватаров. Две реализации:
// in-memory (тесты, single-node) и redis (несколько реплик сервиса).
package jobstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"storybook-server/internal/interfaces"
	"storybook-server/internal/models"
)

// Compile-time check
var _ interfaces.JobStore = (*MemoryJobStore)(nil)

// MemoryJobStore keeps generation jobs in process memory behind a RWMutex.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]models.GenerationJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[uuid.UUID]models.GenerationJob)}
}

func (s *MemoryJobStore) Get(_ context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, models.ErrJobNotFound
	}
	out := cloneJob(job)
	return &out, nil
}

func (s *MemoryJobStore) Save(_ context.Context, job *models.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (s *MemoryJobStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *MemoryJobStore) ListByCharacter(_ context.Context, characterID uuid.UUID) ([]models.GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.GenerationJob
	for _, job := range s.jobs {
		if job.CharacterID == characterID {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

// cloneJob копирует задачу вместе с картами, чтобы вызывающие не делили
// состояние со store
func cloneJob(job models.GenerationJob) models.GenerationJob {
	out := job
	if job.Results != nil {
		out.Results = make(map[models.Variant]models.VariantResult, len(job.Results))
		for k, v := range job.Results {
			out.Results[k] = v
		}
	}
	if job.Variants != nil {
		out.Variants = append([]models.Variant(nil), job.Variants...)
	}
	return out
}
