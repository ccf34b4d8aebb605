package models

import (
	"time"

	"github.com/google/uuid"
)

// SlotKind classifies a versioned image position. Cover kinds are fixed
// single-instance slots; everything else is treated as the growing scene
// sequence.
type SlotKind string

const (
	SlotKindFrontCover  SlotKind = "frontCover"
	SlotKindInitialPage SlotKind = "initialPage"
	SlotKindBackCover   SlotKind = "backCover"
	SlotKindScene       SlotKind = "scene"
)

// ImageVersion — одна ревизия изображения в слоте.
type ImageVersion struct {
	Image string `json:"image"`
	// Score — опциональная оценка качества/соответствия лица, справочная.
	Score  *float64 `json:"score,omitempty"`
	Prompt string   `json:"prompt,omitempty"`
}

// ImageSlot holds the ordered version history of one image position plus the
// index of the currently active version. ActiveIndex is expressed in storage
// coordinates (see slotindex), which differ between cover and scene slots.
type ImageSlot struct {
	Versions    []ImageVersion `json:"versions"`
	ActiveIndex int            `json:"activeIndex"`
}

// PageSlot привязывает версионируемый слот изображения к странице истории.
// Для обложек Position всегда 0, для сцен — порядковый номер сцены.
type PageSlot struct {
	ID        uuid.UUID `db:"id" json:"id"`
	StoryID   uuid.UUID `db:"story_id" json:"storyId"`
	Kind      SlotKind  `db:"kind" json:"kind"`
	Position  int       `db:"position" json:"position"`
	Slot      ImageSlot `db:"slot" json:"slot"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
