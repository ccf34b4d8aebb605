package models

import "errors"

// Errors shared across repositories, services and handlers.
var (
	ErrNotFound          = errors.New("resource not found") // General not found
	ErrCharacterNotFound = errors.New("character not found")
	ErrJobNotFound       = errors.New("generation job not found")
	ErrPageSlotNotFound  = errors.New("page slot not found")

	// ErrVersionConflict — база мержа устарела: запись была изменена другим
	// писателем между чтением и записью.
	ErrVersionConflict = errors.New("character version conflict")

	ErrInvalidInput   = errors.New("invalid input data")
	ErrInternalServer = errors.New("internal server error")
)
