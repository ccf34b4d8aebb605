package jobstore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook-server/internal/jobstore"
	"storybook-server/internal/models"
)

func TestMemoryJobStore_SaveGet(t *testing.T) {
	store := jobstore.NewMemoryJobStore()
	ctx := context.Background()

	job := &models.GenerationJob{
		ID:          uuid.New(),
		CharacterID: uuid.New(),
		Variants:    []models.Variant{models.VariantStandard, models.VariantWinter},
		Status:      models.JobStatusPending,
	}
	require.NoError(t, store.Save(ctx, job))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.JobStatusPending, got.Status)
}

func TestMemoryJobStore_GetMissing(t *testing.T) {
	store := jobstore.NewMemoryJobStore()

	_, err := store.Get(context.Background(), uuid.New())

	assert.ErrorIs(t, err, models.ErrJobNotFound)
}

func TestMemoryJobStore_NoSharedState(t *testing.T) {
	store := jobstore.NewMemoryJobStore()
	ctx := context.Background()

	job := &models.GenerationJob{
		ID:      uuid.New(),
		Status:  models.JobStatusGenerating,
		Results: map[models.Variant]models.VariantResult{},
	}
	require.NoError(t, store.Save(ctx, job))

	// Мутация возвращенной копии не должна протекать в store
	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	got.Results[models.VariantStandard] = models.VariantResult{Image: "IMG"}
	got.Status = models.JobStatusComplete

	again, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Results)
	assert.Equal(t, models.JobStatusGenerating, again.Status)
}

func TestMemoryJobStore_Delete(t *testing.T) {
	store := jobstore.NewMemoryJobStore()
	ctx := context.Background()

	job := &models.GenerationJob{ID: uuid.New()}
	require.NoError(t, store.Save(ctx, job))
	require.NoError(t, store.Delete(ctx, job.ID))

	_, err := store.Get(ctx, job.ID)
	assert.ErrorIs(t, err, models.ErrJobNotFound)

	// Повторное удаление идемпотентно
	assert.NoError(t, store.Delete(ctx, job.ID))
}

func TestMemoryJobStore_ListByCharacter(t *testing.T) {
	store := jobstore.NewMemoryJobStore()
	ctx := context.Background()
	charID := uuid.New()

	require.NoError(t, store.Save(ctx, &models.GenerationJob{ID: uuid.New(), CharacterID: charID}))
	require.NoError(t, store.Save(ctx, &models.GenerationJob{ID: uuid.New(), CharacterID: charID}))
	require.NoError(t, store.Save(ctx, &models.GenerationJob{ID: uuid.New(), CharacterID: uuid.New()}))

	jobs, err := store.ListByCharacter(ctx, charID)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}
