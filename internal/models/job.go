package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus описывает жизненный цикл задачи генерации аватаров.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusGenerating JobStatus = "generating"
	JobStatusComplete   JobStatus = "complete"
	JobStatusPartial    JobStatus = "partial"
	JobStatusFailed     JobStatus = "failed"
)

// JobReason — причина создания задачи генерации.
type JobReason string

const (
	JobReasonPhotoChanged JobReason = "photo_changed"
	JobReasonRegenerate   JobReason = "regenerate"
)

// VariantResult is the outcome of a single variant call: either an image
// (with an optional advisory identity score) or an error string.
type VariantResult struct {
	Image string   `json:"image,omitempty"`
	Score *float64 `json:"score,omitempty"`
	Error string   `json:"error,omitempty"`
}

// Succeeded reports whether the variant produced an image.
func (r VariantResult) Succeeded() bool {
	return r.Error == "" && r.Image != ""
}

// GenerationJob — одна асинхронная задача (ре)генерации аватаров персонажа.
// Мутируется только супервизором; клиент лишь опрашивает статус.
type GenerationJob struct {
	ID          uuid.UUID                 `json:"id"`
	CharacterID uuid.UUID                 `json:"characterId"`
	UserID      uuid.UUID                 `json:"userId"`
	Variants    []Variant                 `json:"variants"`
	Style       string                    `json:"style,omitempty"`
	Reason      JobReason                 `json:"reason"`
	Status      JobStatus                 `json:"status"`
	Results     map[Variant]VariantResult `json:"results"`
	Completed   int                       `json:"completed"`
	Error       string                    `json:"error,omitempty"`
	CreatedAt   time.Time                 `json:"createdAt"`
	UpdatedAt   time.Time                 `json:"updatedAt"`
}

// IsTerminal reports whether the job reached a final state.
func (j *GenerationJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusComplete, JobStatusPartial, JobStatusFailed:
		return true
	}
	return false
}

// GenerationRequest — запрос на запуск генерации аватаров.
type GenerationRequest struct {
	CharacterID uuid.UUID `json:"characterId"`
	UserID      uuid.UUID `json:"userId"`
	Variants    []Variant `json:"variants,omitempty"`
	Style       string    `json:"style,omitempty"`
	Reason      JobReason `json:"reason"`
}

// VariantRequest is the reference material handed to the external image
// generation service for one variant call.
type VariantRequest struct {
	CharacterID    uuid.UUID            `json:"characterId"`
	Variant        Variant              `json:"variant"`
	Style          string               `json:"style,omitempty"`
	ReferenceImage string               `json:"referenceImage,omitempty"`
	FaceImage      string               `json:"faceImage,omitempty"`
	Traits         *PhysicalTraits      `json:"traits,omitempty"`
	Clothing       *ClothingDescription `json:"clothing,omitempty"`
}

// JobUpdate — уведомление клиентскому слою о смене статуса задачи.
type JobUpdate struct {
	JobID       uuid.UUID `json:"jobId"`
	CharacterID uuid.UUID `json:"characterId"`
	UserID      uuid.UUID `json:"userId"`
	Status      JobStatus `json:"status"`
	Completed   int       `json:"completed"`
	Total       int       `json:"total"`
	Error       string    `json:"error,omitempty"`
}
