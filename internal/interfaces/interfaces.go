// Package interfaces declares the seams between the core and its
// collaborators: хранилище персонажей, реестр задач, внешний сервис
// генерации и издатель клиентских уведомлений.
package interfaces

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"storybook-server/internal/models"
)

// DBTX abstracts a pgx pool or transaction for repositories.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CharacterRepository is the character store consumed by the core. Storage
// format is the store's concern.
//
//go:generate mockery --name CharacterRepository --output ./mocks --outpkg mocks --case=underscore
type CharacterRepository interface {
	// GetByID retrieves a character scoped to its owner.
	// Returns models.ErrCharacterNotFound when absent.
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Character, error)

	// GetByName retrieves the most recently created character with the given
	// name. Covers a client-held id differing from the server-assigned one.
	GetByName(ctx context.Context, userID uuid.UUID, name string) (*models.Character, error)

	// ListByUser returns all characters of a user, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Character, error)

	// Create inserts a new character record.
	Create(ctx context.Context, character *models.Character) error

	// Update persists a merged record. The write succeeds only when the
	// record's version stamp still matches character.Version; otherwise
	// models.ErrVersionConflict is returned and the caller must re-merge.
	Update(ctx context.Context, character *models.Character) error
}

// JobStore is the injected generation-job registry. Сознательно интерфейс,
// а не process-wide глобальное состояние: позже может быть подложена
// долговечная очередь без изменения call site'ов.
//
//go:generate mockery --name JobStore --output ./mocks --outpkg mocks --case=underscore
type JobStore interface {
	// Get returns models.ErrJobNotFound when the job is absent.
	Get(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error)
	Save(ctx context.Context, job *models.GenerationJob) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCharacter(ctx context.Context, characterID uuid.UUID) ([]models.GenerationJob, error)
}

// PageSlotRepository stores versioned page/cover image slots.
//
//go:generate mockery --name PageSlotRepository --output ./mocks --outpkg mocks --case=underscore
type PageSlotRepository interface {
	// Get returns models.ErrPageSlotNotFound when the slot does not exist yet.
	Get(ctx context.Context, storyID uuid.UUID, kind models.SlotKind, position int) (*models.PageSlot, error)
	Save(ctx context.Context, slot *models.PageSlot) error
}

// GenerationClient is one call per variant against the external image
// generation service. Its own retry/backoff policy is external.
//
//go:generate mockery --name GenerationClient --output ./mocks --outpkg mocks --case=underscore
type GenerationClient interface {
	GenerateVariant(ctx context.Context, req models.VariantRequest) (models.VariantResult, error)
}

// GenerationStarter запускает задачу генерации; реализуется супервизором.
type GenerationStarter interface {
	StartGeneration(ctx context.Context, req models.GenerationRequest) (*models.GenerationJob, error)
}

// PhotoAnalyzer analyzes an uploaded photo: face detection plus attribute
// estimation used to prefill physical traits.
type PhotoAnalyzer interface {
	Analyze(ctx context.Context, image string) (*models.PhotoAnalysis, error)
}

// JobUpdatePublisher pushes job status updates towards the client-facing
// layer (websocket/push), if one is configured.
type JobUpdatePublisher interface {
	PublishJobUpdate(ctx context.Context, payload models.JobUpdate) error
}
