// Package slotindex centralizes the mapping between client-facing array
// positions and storage positions of versioned image slots.
//
// Исторически обложки получили версионирование позже сцен: сцены к тому
// моменту уже резервировали storage-позицию 0, поэтому две семьи слотов
// живут в разных системах координат. Все пересчеты собраны здесь, чтобы
// off-by-one не расползался по call site'ам.
package slotindex

import "storybook-server/internal/models"

// IsCoverKind reports whether the kind is one of the fixed single-instance
// cover slots. Anything else (including "scene" and unknown strings) follows
// the scene offset convention.
func IsCoverKind(kind models.SlotKind) bool {
	switch kind {
	case models.SlotKindFrontCover, models.SlotKindInitialPage, models.SlotKindBackCover:
		return true
	}
	return false
}

// ArrayToDBIndex converts a client-facing array position to a storage
// position. Scene slots reserve storage position 0, covers map identically.
func ArrayToDBIndex(i int, kind models.SlotKind) int {
	if IsCoverKind(kind) {
		return i
	}
	return i + 1
}

// DBToArrayIndex is the exact inverse of ArrayToDBIndex for the same kind.
func DBToArrayIndex(i int, kind models.SlotKind) int {
	if IsCoverKind(kind) {
		return i
	}
	return i - 1
}

// ActiveIndexAfterPush returns the storage index a newly appended version
// becomes active at: 0 for an empty history, otherwise the storage position
// of the new tail.
func ActiveIndexAfterPush(versions []models.ImageVersion, kind models.SlotKind) int {
	if len(versions) == 0 {
		return 0
	}
	return ArrayToDBIndex(len(versions), kind)
}

// Push appends a version to the slot and advances ActiveIndex to the newly
// appended version. Returns the new active storage index.
func Push(slot *models.ImageSlot, v models.ImageVersion, kind models.SlotKind) int {
	idx := ActiveIndexAfterPush(slot.Versions, kind)
	slot.Versions = append(slot.Versions, v)
	slot.ActiveIndex = idx
	return idx
}

// ActiveVersion resolves the currently active version of the slot. The second
// return value is false for an empty history. Индекс за пределами истории
// (возможен для legacy-записей) прижимается к границам.
func ActiveVersion(slot models.ImageSlot, kind models.SlotKind) (models.ImageVersion, bool) {
	if len(slot.Versions) == 0 {
		return models.ImageVersion{}, false
	}
	i := DBToArrayIndex(slot.ActiveIndex, kind)
	if i < 0 {
		i = 0
	}
	if i >= len(slot.Versions) {
		i = len(slot.Versions) - 1
	}
	return slot.Versions[i], true
}
