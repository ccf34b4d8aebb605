package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"storybook-server/internal/interfaces"
	"storybook-server/internal/models"
)

// Compile-time check
var _ interfaces.CharacterRepository = (*pgCharacterRepository)(nil)

type pgCharacterRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

func NewPgCharacterRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.CharacterRepository {
	return &pgCharacterRepository{
		db:     db,
		logger: logger.Named("PgCharacterRepo"),
	}
}

func (r *pgCharacterRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Character, error) {
	query := `
        SELECT id, user_id, name, age, gender, physical, photos, avatars, version, created_at, updated_at
        FROM characters
        WHERE id = $1 AND user_id = $2
    `
	character := &models.Character{}
	logFields := []zap.Field{zap.String("characterID", id.String()), zap.String("userID", userID.String())}
	r.logger.Debug("Getting character by ID", logFields...)

	err := r.db.QueryRow(ctx, query, id, userID).Scan(
		&character.ID, &character.UserID, &character.Name, &character.Age, &character.Gender,
		&character.Physical, &character.Photos, &character.Avatars,
		&character.Version, &character.CreatedAt, &character.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Character not found by ID for user", logFields...)
			return nil, models.ErrCharacterNotFound
		}
		r.logger.Error("Failed to get character by ID", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("ошибка получения персонажа %s: %w", id, err)
	}
	return character, nil
}

// GetByName берет самую свежую запись с таким именем: клиент мог прислать
// свой временный id, тогда матчим по имени
func (r *pgCharacterRepository) GetByName(ctx context.Context, userID uuid.UUID, name string) (*models.Character, error) {
	query := `
        SELECT id, user_id, name, age, gender, physical, photos, avatars, version, created_at, updated_at
        FROM characters
        WHERE user_id = $1 AND name = $2
        ORDER BY created_at DESC
        LIMIT 1
    `
	character := &models.Character{}
	logFields := []zap.Field{zap.String("userID", userID.String()), zap.String("name", name)}
	r.logger.Debug("Getting character by name", logFields...)

	err := r.db.QueryRow(ctx, query, userID, name).Scan(
		&character.ID, &character.UserID, &character.Name, &character.Age, &character.Gender,
		&character.Physical, &character.Photos, &character.Avatars,
		&character.Version, &character.CreatedAt, &character.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrCharacterNotFound
		}
		r.logger.Error("Failed to get character by name", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("ошибка получения персонажа по имени %q: %w", name, err)
	}
	return character, nil
}

func (r *pgCharacterRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Character, error) {
	query := `
        SELECT id, user_id, name, age, gender, physical, photos, avatars, version, created_at, updated_at
        FROM characters
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	r.logger.Debug("Listing characters", zap.String("userID", userID.String()))

	var characters []models.Character
	if err := pgxscan.Select(ctx, r.db, &characters, query, userID); err != nil {
		r.logger.Error("Failed to list characters", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("ошибка получения списка персонажей: %w", err)
	}
	return characters, nil
}

func (r *pgCharacterRepository) Create(ctx context.Context, character *models.Character) error {
	query := `
        INSERT INTO characters
            (id, user_id, name, age, gender, physical, photos, avatars, version, created_at, updated_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `
	logFields := []zap.Field{zap.String("characterID", character.ID.String()), zap.String("userID", character.UserID.String())}
	r.logger.Debug("Creating character", logFields...)

	_, err := r.db.Exec(ctx, query,
		character.ID,
		character.UserID,
		character.Name,
		character.Age,
		character.Gender,
		character.Physical,
		character.Photos,
		character.Avatars,
		character.Version,
		character.CreatedAt,
		character.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create character", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания персонажа: %w", err)
	}
	r.logger.Info("Character created successfully", logFields...)
	return nil
}

// Update пишет запись только если version в БД совпадает с version записи.
// Несовпадение означает конкурентную запись: вызывающий обязан перечитать
// и перемержить.
func (r *pgCharacterRepository) Update(ctx context.Context, character *models.Character) error {
	query := `
        UPDATE characters
        SET name = $1, age = $2, gender = $3, physical = $4, photos = $5, avatars = $6,
            version = version + 1, updated_at = $7
        WHERE id = $8 AND user_id = $9 AND version = $10
    `
	logFields := []zap.Field{
		zap.String("characterID", character.ID.String()),
		zap.String("userID", character.UserID.String()),
		zap.Int64("version", character.Version),
	}
	r.logger.Debug("Updating character", logFields...)

	tag, err := r.db.Exec(ctx, query,
		character.Name,
		character.Age,
		character.Gender,
		character.Physical,
		character.Photos,
		character.Avatars,
		character.UpdatedAt,
		character.ID,
		character.UserID,
		character.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update character", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка обновления персонажа %s: %w", character.ID, err)
	}

	if tag.RowsAffected() == 0 {
		// Либо записи нет, либо version устарела — различаем отдельным запросом
		var exists bool
		checkErr := r.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM characters WHERE id = $1 AND user_id = $2)`,
			character.ID, character.UserID,
		).Scan(&exists)
		if checkErr != nil {
			r.logger.Error("Failed to check character existence", append(logFields, zap.Error(checkErr))...)
			return fmt.Errorf("ошибка проверки существования персонажа %s: %w", character.ID, checkErr)
		}
		if !exists {
			r.logger.Warn("Character to update not found", logFields...)
			return models.ErrCharacterNotFound
		}
		r.logger.Warn("Character version conflict on update", logFields...)
		return models.ErrVersionConflict
	}

	character.Version++
	r.logger.Info("Character updated successfully", logFields...)
	return nil
}
