// Package service реализует прикладные операции сервиса персонажей поверх
// чистых движков reconcile/slotindex/projection.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storybook-server/internal/interfaces"
	"storybook-server/internal/models"
	"storybook-server/internal/projection"
	"storybook-server/internal/reconcile"
)

// Пределы повторов при конфликте версий: конкурентные save'ы одного
// пользователя редки, длинный цикл не нужен.
const maxSaveAttempts = 3

// CharacterService обслуживает операции с персонажами: сохранение с
// reconciliation, списки, полные записи, запуск генерации, статусы задач.
type CharacterService struct {
	chars    interfaces.CharacterRepository
	jobs     interfaces.JobStore
	starter  interfaces.GenerationStarter
	analyzer interfaces.PhotoAnalyzer
	logger   *zap.Logger
}

func NewCharacterService(
	chars interfaces.CharacterRepository,
	jobs interfaces.JobStore,
	starter interfaces.GenerationStarter,
	analyzer interfaces.PhotoAnalyzer,
	logger *zap.Logger,
) *CharacterService {
	return &CharacterService{
		chars:    chars,
		jobs:     jobs,
		starter:  starter,
		analyzer: analyzer,
		logger:   logger.Named("CharacterService"),
	}
}

// SaveCharacters мержит присланные записи с хранимыми и сохраняет результат.
// Возвращает сохраненные записи и суммарное число подставленных из хранилища
// полей. Смена исходной фотографии помечает аватары устаревшими и запускает
// регенерацию в фоне.
func (s *CharacterService) SaveCharacters(ctx context.Context, userID uuid.UUID, incoming []models.Character) ([]models.Character, int, error) {
	saved := make([]models.Character, 0, len(incoming))
	totalPreserved := 0

	for _, record := range incoming {
		record.UserID = userID
		result, preserved, err := s.saveOne(ctx, userID, record)
		if err != nil {
			return nil, 0, err
		}
		saved = append(saved, *result)
		totalPreserved += preserved
	}
	return saved, totalPreserved, nil
}

func (s *CharacterService) saveOne(ctx context.Context, userID uuid.UUID, record models.Character) (*models.Character, int, error) {
	log := s.logger.With(zap.String("userID", userID.String()), zap.String("name", record.Name))

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		existing, err := s.findExisting(ctx, userID, record)
		if err != nil {
			return nil, 0, err
		}

		now := time.Now().UTC()
		if existing == nil {
			// Новый персонаж: id назначает сервер, если клиент не прислал свой
			created := record
			if created.ID == uuid.Nil {
				created.ID = uuid.New()
			}
			created.UserID = userID
			created.Version = 0
			created.CreatedAt = now
			created.UpdatedAt = now
			if err := s.chars.Create(ctx, &created); err != nil {
				return nil, 0, err
			}
			log.Info("Character created", zap.String("characterID", created.ID.String()))
			return &created, 0, nil
		}

		photoChanged := sourcePhotoChanged(record, existing)

		merged, preserved := reconcile.MergeCharacter(record, existing)
		// Совпадение по имени: клиент мог прислать свой временный id, запись
		// обновляется под серверным
		merged.ID = existing.ID
		merged.UpdatedAt = now

		if photoChanged && merged.Avatars != nil && len(merged.Avatars.Images) > 0 {
			// Аватары сгенерированы по старой фотографии
			merged.Avatars.Stale = true
		}

		err = s.chars.Update(ctx, &merged)
		if errors.Is(err, models.ErrVersionConflict) {
			log.Warn("Version conflict on save, re-merging", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, 0, err
		}

		if photoChanged {
			s.startRegeneration(ctx, &merged, log)
		}
		log.Debug("Character saved",
			zap.String("characterID", merged.ID.String()),
			zap.Int("preservedFields", len(preserved)),
		)
		return &merged, len(preserved), nil
	}
	return nil, 0, fmt.Errorf("сохранение персонажа не прошло за %d попыток: %w", maxSaveAttempts, models.ErrVersionConflict)
}

// findExisting ищет хранимую запись сначала по id, затем по имени: клиент
// мог прислать свой временный id для записи, которую сервер уже знает.
func (s *CharacterService) findExisting(ctx context.Context, userID uuid.UUID, record models.Character) (*models.Character, error) {
	if record.ID != uuid.Nil {
		existing, err := s.chars.GetByID(ctx, userID, record.ID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, models.ErrCharacterNotFound) {
			return nil, err
		}
	}
	if record.Name != "" {
		existing, err := s.chars.GetByName(ctx, userID, record.Name)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, models.ErrCharacterNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// sourcePhotoChanged — пришла ли в записи новая исходная фотография.
func sourcePhotoChanged(record models.Character, existing *models.Character) bool {
	if record.Photos == nil || record.Photos.Original == "" {
		return false
	}
	if existing.Photos == nil || existing.Photos.Original == "" {
		return true
	}
	return record.Photos.Original != existing.Photos.Original
}

// startRegeneration — best effort: неудавшийся автозапуск не роняет save,
// клиент может перезапустить генерацию вручную.
func (s *CharacterService) startRegeneration(ctx context.Context, merged *models.Character, log *zap.Logger) {
	if s.starter == nil {
		return
	}
	job, err := s.starter.StartGeneration(ctx, models.GenerationRequest{
		CharacterID: merged.ID,
		UserID:      merged.UserID,
		Reason:      models.JobReasonPhotoChanged,
	})
	if err != nil {
		log.Warn("Failed to auto-start avatar regeneration",
			zap.Error(err),
			zap.String("characterID", merged.ID.String()),
		)
		return
	}
	log.Info("Avatar regeneration started after photo change",
		zap.String("characterID", merged.ID.String()),
		zap.String("jobID", job.ID.String()),
	)
}

// ListCharacters возвращает облегченные записи персонажей пользователя.
func (s *CharacterService) ListCharacters(ctx context.Context, userID uuid.UUID) ([]models.LightCharacter, error) {
	chars, err := s.chars.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return projection.LightAll(chars), nil
}

// GetCharacter возвращает полную запись персонажа.
func (s *CharacterService) GetCharacter(ctx context.Context, userID, id uuid.UUID) (*models.Character, error) {
	return s.chars.GetByID(ctx, userID, id)
}

// StartGeneration запускает задачу генерации аватаров вручную.
func (s *CharacterService) StartGeneration(ctx context.Context, req models.GenerationRequest) (*models.GenerationJob, error) {
	if req.CharacterID == uuid.Nil {
		return nil, fmt.Errorf("%w: не задан id персонажа", models.ErrInvalidInput)
	}
	if req.Reason == "" {
		req.Reason = models.JobReasonRegenerate
	}
	return s.starter.StartGeneration(ctx, req)
}

// GetJobStatus возвращает состояние задачи генерации. Задача в терминальном
// статусе после выдачи удаляется: клиент увидел результат, держать запись
// дальше незачем.
func (s *CharacterService) GetJobStatus(ctx context.Context, userID, jobID uuid.UUID) (*models.GenerationJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, models.ErrJobNotFound
	}
	if job.IsTerminal() {
		if err := s.jobs.Delete(ctx, jobID); err != nil {
			s.logger.Warn("Failed to delete observed terminal job",
				zap.Error(err),
				zap.String("jobID", jobID.String()),
			)
		}
	}
	return job, nil
}

// AnalyzePhoto прогоняет фотографию через внешний анализатор.
func (s *CharacterService) AnalyzePhoto(ctx context.Context, image string) (*models.PhotoAnalysis, error) {
	return s.analyzer.Analyze(ctx, image)
}
