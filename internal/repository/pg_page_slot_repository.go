package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"storybook-server/internal/interfaces"
	"storybook-server/internal/models"
)

// Compile-time check
var _ interfaces.PageSlotRepository = (*pgPageSlotRepository)(nil)

type pgPageSlotRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

func NewPgPageSlotRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.PageSlotRepository {
	return &pgPageSlotRepository{
		db:     db,
		logger: logger.Named("PgPageSlotRepo"),
	}
}

func (r *pgPageSlotRepository) Get(ctx context.Context, storyID uuid.UUID, kind models.SlotKind, position int) (*models.PageSlot, error) {
	query := `
        SELECT id, story_id, kind, position, slot, created_at, updated_at
        FROM page_slots
        WHERE story_id = $1 AND kind = $2 AND position = $3
    `
	slot := &models.PageSlot{}
	logFields := []zap.Field{
		zap.String("storyID", storyID.String()),
		zap.String("kind", string(kind)),
		zap.Int("position", position),
	}
	r.logger.Debug("Getting page slot", logFields...)

	err := r.db.QueryRow(ctx, query, storyID, kind, position).Scan(
		&slot.ID, &slot.StoryID, &slot.Kind, &slot.Position, &slot.Slot,
		&slot.CreatedAt, &slot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPageSlotNotFound
		}
		r.logger.Error("Failed to get page slot", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("ошибка получения слота страницы: %w", err)
	}
	return slot, nil
}

// Save делает upsert по (story_id, kind, position): слот создается первой
// записанной версией
func (r *pgPageSlotRepository) Save(ctx context.Context, slot *models.PageSlot) error {
	query := `
        INSERT INTO page_slots
            (id, story_id, kind, position, slot, created_at, updated_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (story_id, kind, position)
        DO UPDATE SET slot = EXCLUDED.slot, updated_at = EXCLUDED.updated_at
    `
	logFields := []zap.Field{
		zap.String("storyID", slot.StoryID.String()),
		zap.String("kind", string(slot.Kind)),
		zap.Int("position", slot.Position),
		zap.Int("versions", len(slot.Slot.Versions)),
	}
	r.logger.Debug("Saving page slot", logFields...)

	_, err := r.db.Exec(ctx, query,
		slot.ID,
		slot.StoryID,
		slot.Kind,
		slot.Position,
		slot.Slot,
		slot.CreatedAt,
		slot.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save page slot", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка сохранения слота страницы: %w", err)
	}
	return nil
}
