package generation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storybook-server/internal/generation"
	"storybook-server/internal/interfaces/mocks"
	"storybook-server/internal/jobstore"
	"storybook-server/internal/models"
)

func fastConfig() generation.Config {
	return generation.Config{LookupAttempts: 2, LookupDelay: time.Millisecond}
}

func storedCharacter() *models.Character {
	return &models.Character{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Name:   "Лука",
		Age:    8,
		Gender: "male",
		Photos: &models.PhotoSet{
			Original: "data:image/jpeg;base64,ORIG",
			FaceCrop: "data:image/jpeg;base64,FACE",
		},
		Version: 1,
	}
}

func seedJob(t *testing.T, jobs *jobstore.MemoryJobStore, ch *models.Character, variants ...models.Variant) *models.GenerationJob {
	t.Helper()
	job := &models.GenerationJob{
		ID:          uuid.New(),
		CharacterID: ch.ID,
		UserID:      ch.UserID,
		Variants:    variants,
		Reason:      models.JobReasonRegenerate,
		Status:      models.JobStatusPending,
		Results:     make(map[models.Variant]models.VariantResult),
	}
	require.NoError(t, jobs.Save(context.Background(), job))
	return job
}

func TestSupervisor_CharacterNeverAppears(t *testing.T) {
	chars := new(mocks.CharacterRepository)
	client := new(mocks.GenerationClient)
	jobs := jobstore.NewMemoryJobStore()

	chars.On("GetByID", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, models.ErrCharacterNotFound)

	s := generation.NewSupervisor(chars, jobs, client, nil, zap.NewNop(), fastConfig())
	ch := storedCharacter()
	job := seedJob(t, jobs, ch, models.VariantStandard)

	s.Run(context.Background(), job.ID)

	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
	// Запись персонажа не создается и не пишется
	chars.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	chars.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "GenerateVariant", mock.Anything, mock.Anything)
}

func TestSupervisor_PartialResult(t *testing.T) {
	chars := new(mocks.CharacterRepository)
	client := new(mocks.GenerationClient)
	jobs := jobstore.NewMemoryJobStore()
	ch := storedCharacter()

	chars.On("GetByID", mock.Anything, ch.UserID, ch.ID).Return(ch, nil)

	for _, v := range []models.Variant{models.VariantWinter, models.VariantStandard, models.VariantFormal} {
		variant := v
		client.On("GenerateVariant", mock.Anything, mock.MatchedBy(func(req models.VariantRequest) bool {
			return req.Variant == variant
		})).Return(models.VariantResult{Image: "IMG_" + string(variant)}, nil)
	}
	// Летний вариант падает на стороне генератора
	client.On("GenerateVariant", mock.Anything, mock.MatchedBy(func(req models.VariantRequest) bool {
		return req.Variant == models.VariantSummer
	})).Return(models.VariantResult{Error: "gpu out of memory"}, nil)

	var persisted models.Character
	chars.On("Update", mock.Anything, mock.AnythingOfType("*models.Character")).
		Run(func(args mock.Arguments) {
			persisted = *args.Get(1).(*models.Character)
		}).
		Return(nil).Once()

	s := generation.NewSupervisor(chars, jobs, client, nil, zap.NewNop(), fastConfig())
	job := seedJob(t, jobs, ch, models.KnownVariants...)

	s.Run(context.Background(), job.ID)

	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPartial, got.Status)
	assert.Equal(t, 4, got.Completed)
	// Текст ошибки неудавшегося варианта сохраняется в задаче
	assert.Equal(t, "gpu out of memory", got.Results[models.VariantSummer].Error)

	// Три успешных изображения записаны, ровно одной записью
	chars.AssertExpectations(t)
	require.NotNil(t, persisted.Avatars)
	assert.Len(t, persisted.Avatars.Images, 3)
	assert.Equal(t, "IMG_standard", persisted.Avatars.Images[models.VariantStandard])
	assert.Equal(t, models.AvatarStatusPartial, persisted.Avatars.Status)
}

func TestSupervisor_StaleFlag(t *testing.T) {
	run := func(t *testing.T, variants []models.Variant) models.Character {
		chars := new(mocks.CharacterRepository)
		client := new(mocks.GenerationClient)
		jobs := jobstore.NewMemoryJobStore()

		ch := storedCharacter()
		ch.Avatars = &models.AvatarSet{
			Status: models.AvatarStatusComplete,
			Stale:  true,
			Images: map[models.Variant]string{models.VariantStandard: "OLD_STANDARD"},
		}

		chars.On("GetByID", mock.Anything, ch.UserID, ch.ID).Return(ch, nil)
		client.On("GenerateVariant", mock.Anything, mock.Anything).
			Return(models.VariantResult{Image: "FRESH"}, nil)

		var persisted models.Character
		chars.On("Update", mock.Anything, mock.AnythingOfType("*models.Character")).
			Run(func(args mock.Arguments) {
				persisted = *args.Get(1).(*models.Character)
			}).
			Return(nil).Once()

		s := generation.NewSupervisor(chars, jobs, client, nil, zap.NewNop(), fastConfig())
		job := seedJob(t, jobs, ch, variants...)
		s.Run(context.Background(), job.ID)
		return persisted
	}

	t.Run("cleared when standard regenerated", func(t *testing.T) {
		persisted := run(t, []models.Variant{models.VariantStandard, models.VariantWinter})
		require.NotNil(t, persisted.Avatars)
		assert.False(t, persisted.Avatars.Stale)
	})

	t.Run("carried when standard untouched", func(t *testing.T) {
		persisted := run(t, []models.Variant{models.VariantWinter})
		require.NotNil(t, persisted.Avatars)
		assert.True(t, persisted.Avatars.Stale)
		// Старый standard при этом не теряется
		assert.Equal(t, "OLD_STANDARD", persisted.Avatars.Images[models.VariantStandard])
	})
}

func TestSupervisor_PersistenceBeforeCompletion(t *testing.T) {
	chars := new(mocks.CharacterRepository)
	client := new(mocks.GenerationClient)
	jobs := jobstore.NewMemoryJobStore()
	ch := storedCharacter()

	chars.On("GetByID", mock.Anything, ch.UserID, ch.ID).Return(ch, nil)
	client.On("GenerateVariant", mock.Anything, mock.Anything).
		Return(models.VariantResult{Image: "IMG"}, nil)
	chars.On("Update", mock.Anything, mock.Anything).Return(models.ErrInternalServer)

	s := generation.NewSupervisor(chars, jobs, client, nil, zap.NewNop(), fastConfig())
	job := seedJob(t, jobs, ch, models.VariantStandard)

	s.Run(context.Background(), job.ID)

	// Непрошедшая запись означает failed, никогда complete
	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
}

func TestSupervisor_VersionConflictRetried(t *testing.T) {
	chars := new(mocks.CharacterRepository)
	client := new(mocks.GenerationClient)
	jobs := jobstore.NewMemoryJobStore()
	ch := storedCharacter()

	chars.On("GetByID", mock.Anything, ch.UserID, ch.ID).Return(ch, nil)
	client.On("GenerateVariant", mock.Anything, mock.Anything).
		Return(models.VariantResult{Image: "IMG"}, nil)
	// Конкурентная запись: первый Update проигрывает гонку версий
	chars.On("Update", mock.Anything, mock.Anything).Return(models.ErrVersionConflict).Once()
	chars.On("Update", mock.Anything, mock.Anything).Return(nil).Once()

	s := generation.NewSupervisor(chars, jobs, client, nil, zap.NewNop(), fastConfig())
	job := seedJob(t, jobs, ch, models.VariantStandard)

	s.Run(context.Background(), job.ID)

	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, got.Status)
	chars.AssertExpectations(t)
}

func TestSupervisor_PublishesUpdates(t *testing.T) {
	chars := new(mocks.CharacterRepository)
	client := new(mocks.GenerationClient)
	publisher := new(mocks.JobUpdatePublisher)
	jobs := jobstore.NewMemoryJobStore()
	ch := storedCharacter()

	chars.On("GetByID", mock.Anything, ch.UserID, ch.ID).Return(ch, nil)
	client.On("GenerateVariant", mock.Anything, mock.Anything).
		Return(models.VariantResult{Image: "IMG"}, nil)
	chars.On("Update", mock.Anything, mock.Anything).Return(nil)

	var statuses []models.JobStatus
	publisher.On("PublishJobUpdate", mock.Anything, mock.AnythingOfType("models.JobUpdate")).
		Run(func(args mock.Arguments) {
			statuses = append(statuses, args.Get(1).(models.JobUpdate).Status)
		}).
		Return(nil)

	s := generation.NewSupervisor(chars, jobs, client, publisher, zap.NewNop(), fastConfig())
	job := seedJob(t, jobs, ch, models.VariantStandard)

	s.Run(context.Background(), job.ID)

	assert.Equal(t, []models.JobStatus{models.JobStatusGenerating, models.JobStatusComplete}, statuses)
}

// flakyJobStore роняет первые N записей терминального статуса.
type flakyJobStore struct {
	*jobstore.MemoryJobStore
	terminalFailures int
}

func (f *flakyJobStore) Save(ctx context.Context, job *models.GenerationJob) error {
	if job.IsTerminal() && f.terminalFailures > 0 {
		f.terminalFailures--
		return models.ErrInternalServer
	}
	return f.MemoryJobStore.Save(ctx, job)
}

func TestSupervisor_TerminalStatusSaveRetried(t *testing.T) {
	chars := new(mocks.CharacterRepository)
	client := new(mocks.GenerationClient)
	jobs := &flakyJobStore{MemoryJobStore: jobstore.NewMemoryJobStore(), terminalFailures: 1}
	ch := storedCharacter()

	chars.On("GetByID", mock.Anything, ch.UserID, ch.ID).Return(ch, nil)
	client.On("GenerateVariant", mock.Anything, mock.Anything).
		Return(models.VariantResult{Image: "IMG"}, nil)
	chars.On("Update", mock.Anything, mock.Anything).Return(nil)

	s := generation.NewSupervisor(chars, jobs, client, nil, zap.NewNop(), fastConfig())
	job := seedJob(t, jobs.MemoryJobStore, ch, models.VariantStandard)

	s.Run(context.Background(), job.ID)

	// Сбой первой записи терминального статуса не оставляет задачу в generating
	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, got.Status)
}

func TestSupervisor_StartGenerationAsync(t *testing.T) {
	chars := new(mocks.CharacterRepository)
	client := new(mocks.GenerationClient)
	jobs := jobstore.NewMemoryJobStore()
	ch := storedCharacter()

	chars.On("GetByID", mock.Anything, ch.UserID, ch.ID).Return(ch, nil)
	client.On("GenerateVariant", mock.Anything, mock.Anything).
		Return(models.VariantResult{Image: "IMG"}, nil)
	chars.On("Update", mock.Anything, mock.Anything).Return(nil)

	s := generation.NewSupervisor(chars, jobs, client, nil, zap.NewNop(), fastConfig())

	job, err := s.StartGeneration(context.Background(), models.GenerationRequest{
		CharacterID: ch.ID,
		UserID:      ch.UserID,
		Reason:      models.JobReasonRegenerate,
	})
	require.NoError(t, err)
	// Пустой список вариантов означает полный набор
	assert.Len(t, job.Variants, len(models.KnownVariants))

	assert.Eventually(t, func() bool {
		got, getErr := jobs.Get(context.Background(), job.ID)
		return getErr == nil && got.IsTerminal()
	}, 2*time.Second, 10*time.Millisecond)

	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, got.Status)
}
