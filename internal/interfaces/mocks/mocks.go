package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"storybook-server/internal/models"
)

// Mock CharacterRepository
type CharacterRepository struct {
	mock.Mock
}

func (m *CharacterRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Character, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Character), args.Error(1)
}

func (m *CharacterRepository) GetByName(ctx context.Context, userID uuid.UUID, name string) (*models.Character, error) {
	args := m.Called(ctx, userID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Character), args.Error(1)
}

func (m *CharacterRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Character, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Character), args.Error(1)
}

func (m *CharacterRepository) Create(ctx context.Context, character *models.Character) error {
	args := m.Called(ctx, character)
	return args.Error(0)
}

func (m *CharacterRepository) Update(ctx context.Context, character *models.Character) error {
	args := m.Called(ctx, character)
	return args.Error(0)
}

// Mock JobStore
type JobStore struct {
	mock.Mock
}

func (m *JobStore) Get(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GenerationJob), args.Error(1)
}

func (m *JobStore) Save(ctx context.Context, job *models.GenerationJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *JobStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *JobStore) ListByCharacter(ctx context.Context, characterID uuid.UUID) ([]models.GenerationJob, error) {
	args := m.Called(ctx, characterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GenerationJob), args.Error(1)
}

// Mock PageSlotRepository
type PageSlotRepository struct {
	mock.Mock
}

func (m *PageSlotRepository) Get(ctx context.Context, storyID uuid.UUID, kind models.SlotKind, position int) (*models.PageSlot, error) {
	args := m.Called(ctx, storyID, kind, position)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PageSlot), args.Error(1)
}

func (m *PageSlotRepository) Save(ctx context.Context, slot *models.PageSlot) error {
	args := m.Called(ctx, slot)
	return args.Error(0)
}

// Mock GenerationClient
type GenerationClient struct {
	mock.Mock
}

func (m *GenerationClient) GenerateVariant(ctx context.Context, req models.VariantRequest) (models.VariantResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.VariantResult), args.Error(1)
}

// Mock GenerationStarter
type GenerationStarter struct {
	mock.Mock
}

func (m *GenerationStarter) StartGeneration(ctx context.Context, req models.GenerationRequest) (*models.GenerationJob, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GenerationJob), args.Error(1)
}

// Mock PhotoAnalyzer
type PhotoAnalyzer struct {
	mock.Mock
}

func (m *PhotoAnalyzer) Analyze(ctx context.Context, image string) (*models.PhotoAnalysis, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PhotoAnalysis), args.Error(1)
}

// Mock JobUpdatePublisher
type JobUpdatePublisher struct {
	mock.Mock
}

func (m *JobUpdatePublisher) PublishJobUpdate(ctx context.Context, payload models.JobUpdate) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}
