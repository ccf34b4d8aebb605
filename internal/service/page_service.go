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
	"storybook-server/internal/slotindex"
)

// PageService ведет версионируемые слоты изображений страниц и обложек.
// Все пересчеты индексов делегированы slotindex; сервис работает только с
// клиентскими (array) позициями.
type PageService struct {
	slots  interfaces.PageSlotRepository
	logger *zap.Logger
}

func NewPageService(slots interfaces.PageSlotRepository, logger *zap.Logger) *PageService {
	return &PageService{
		slots:  slots,
		logger: logger.Named("PageService"),
	}
}

// AppendPageVersion добавляет новую версию изображения в слот и делает ее
// активной. Слот создается первой версией. Возвращает слот и клиентский
// индекс новой версии.
func (s *PageService) AppendPageVersion(ctx context.Context, storyID uuid.UUID, kind models.SlotKind, position int, version models.ImageVersion) (*models.PageSlot, int, error) {
	if version.Image == "" {
		return nil, 0, fmt.Errorf("%w: пустое изображение версии", models.ErrInvalidInput)
	}

	now := time.Now().UTC()
	slot, err := s.slots.Get(ctx, storyID, kind, position)
	if err != nil {
		if !errors.Is(err, models.ErrPageSlotNotFound) {
			return nil, 0, err
		}
		slot = &models.PageSlot{
			ID:        uuid.New(),
			StoryID:   storyID,
			Kind:      kind,
			Position:  position,
			CreatedAt: now,
		}
	}

	arrayIndex := len(slot.Slot.Versions)
	slotindex.Push(&slot.Slot, version, kind)
	slot.UpdatedAt = now

	if err := s.slots.Save(ctx, slot); err != nil {
		return nil, 0, err
	}

	s.logger.Info("Page version appended",
		zap.String("storyID", storyID.String()),
		zap.String("kind", string(kind)),
		zap.Int("position", position),
		zap.Int("arrayIndex", arrayIndex),
		zap.Int("activeIndex", slot.Slot.ActiveIndex),
	)
	return slot, arrayIndex, nil
}

// SetActiveVersion переключает активную версию слота на клиентский индекс.
func (s *PageService) SetActiveVersion(ctx context.Context, storyID uuid.UUID, kind models.SlotKind, position, arrayIndex int) (*models.PageSlot, error) {
	slot, err := s.slots.Get(ctx, storyID, kind, position)
	if err != nil {
		return nil, err
	}
	if arrayIndex < 0 || arrayIndex >= len(slot.Slot.Versions) {
		return nil, fmt.Errorf("%w: индекс версии %d вне истории из %d версий",
			models.ErrInvalidInput, arrayIndex, len(slot.Slot.Versions))
	}

	slot.Slot.ActiveIndex = slotindex.ArrayToDBIndex(arrayIndex, kind)
	slot.UpdatedAt = time.Now().UTC()

	if err := s.slots.Save(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

// GetPageSlot возвращает слот вместе с разрешенной активной версией.
func (s *PageService) GetPageSlot(ctx context.Context, storyID uuid.UUID, kind models.SlotKind, position int) (*models.PageSlot, *models.ImageVersion, error) {
	slot, err := s.slots.Get(ctx, storyID, kind, position)
	if err != nil {
		return nil, nil, err
	}
	active, ok := slotindex.ActiveVersion(slot.Slot, kind)
	if !ok {
		return slot, nil, nil
	}
	return slot, &active, nil
}
