package handler

import "storybook-server/internal/models"

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}

type saveCharactersRequest struct {
	Characters []models.Character `json:"characters"`
}

type saveCharactersResponse struct {
	Characters      []models.Character `json:"characters"`
	PreservedFields int                `json:"preservedFields"`
}

type startGenerationRequest struct {
	Variants []models.Variant `json:"variants,omitempty"`
	Style    string           `json:"style,omitempty"`
}

type appendVersionRequest struct {
	Image  string   `json:"image"`
	Score  *float64 `json:"score,omitempty"`
	Prompt string   `json:"prompt,omitempty"`
}

type appendVersionResponse struct {
	Slot  *models.PageSlot `json:"slot"`
	Index int              `json:"index"`
}

type setActiveVersionRequest struct {
	Index int `json:"index"`
}

type pageSlotResponse struct {
	Slot   *models.PageSlot     `json:"slot"`
	Active *models.ImageVersion `json:"active,omitempty"`
}

type analyzePhotoRequest struct {
	Image string `json:"image"`
}
