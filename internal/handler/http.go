// Package handler — HTTP слой сервиса персонажей. Аутентификацию выполняет
// шлюз выше по стеку; сюда запрос приходит с заголовком X-User-Id.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"storybook-server/internal/analysis"
	"storybook-server/internal/models"
	"storybook-server/internal/service"
)

const userIDHeader = "X-User-Id"

// CharacterHandler обрабатывает HTTP запросы сервиса персонажей.
type CharacterHandler struct {
	characters *service.CharacterService
	pages      *service.PageService
	logger     *zap.Logger
}

func NewCharacterHandler(characters *service.CharacterService, pages *service.PageService, logger *zap.Logger) *CharacterHandler {
	return &CharacterHandler{
		characters: characters,
		pages:      pages,
		logger:     logger.Named("CharacterHandler"),
	}
}

// RegisterRoutes регистрирует маршруты сервиса.
func (h *CharacterHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.health)

	charactersGroup := e.Group("/characters")
	{
		charactersGroup.POST("/save", h.saveCharacters)
		charactersGroup.GET("", h.listCharacters)
		charactersGroup.GET("/:id", h.getCharacter)
		charactersGroup.POST("/:id/generate", h.startGeneration)
	}

	e.GET("/generation-jobs/:id", h.getJobStatus)

	slotsGroup := e.Group("/stories/:story_id/slots/:kind")
	{
		slotsGroup.POST("/versions", h.appendPageVersion)
		slotsGroup.GET("", h.getPageSlot)
		slotsGroup.PUT("/active", h.setActiveVersion)
	}

	e.POST("/photos/analyze", h.analyzePhoto)
}

func (h *CharacterHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CharacterHandler) saveCharacters(c echo.Context) error {
	userID, err := userIDFromRequest(c)
	if err != nil {
		return err
	}

	var req saveCharactersRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn("Invalid save request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, APIError{Message: "некорректное тело запроса"})
	}
	if len(req.Characters) == 0 {
		return c.JSON(http.StatusBadRequest, APIError{Message: "пустой список персонажей"})
	}

	saved, preserved, err := h.characters.SaveCharacters(c.Request().Context(), userID, req.Characters)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, saveCharactersResponse{Characters: saved, PreservedFields: preserved})
}

func (h *CharacterHandler) listCharacters(c echo.Context) error {
	userID, err := userIDFromRequest(c)
	if err != nil {
		return err
	}

	list, err := h.characters.ListCharacters(c.Request().Context(), userID)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CharacterHandler) getCharacter(c echo.Context) error {
	userID, err := userIDFromRequest(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "некорректный id персонажа"})
	}

	character, err := h.characters.GetCharacter(c.Request().Context(), userID, id)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, character)
}

func (h *CharacterHandler) startGeneration(c echo.Context) error {
	userID, err := userIDFromRequest(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "некорректный id персонажа"})
	}

	var req startGenerationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "некорректное тело запроса"})
	}

	job, err := h.characters.StartGeneration(c.Request().Context(), models.GenerationRequest{
		CharacterID: id,
		UserID:      userID,
		Variants:    req.Variants,
		Style:       req.Style,
		Reason:      models.JobReasonRegenerate,
	})
	if err != nil {
		return h.handleServiceError(c, err)
	}
	// 202: задача выполняется в фоне, клиент опрашивает статус
	return c.JSON(http.StatusAccepted, job)
}

func (h *CharacterHandler) getJobStatus(c echo.Context) error {
	userID, err := userIDFromRequest(c)
	if err != nil {
		return err
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "некорректный id задачи"})
	}

	job, err := h.characters.GetJobStatus(c.Request().Context(), userID, jobID)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *CharacterHandler) appendPageVersion(c echo.Context) error {
	storyID, kind, position, err := slotParams(c)
	if err != nil {
		return err
	}

	var req appendVersionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "некорректное тело запроса"})
	}

	slot, index, err := h.pages.AppendPageVersion(c.Request().Context(), storyID, kind, position, models.ImageVersion{
		Image:  req.Image,
		Score:  req.Score,
		Prompt: req.Prompt,
	})
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, appendVersionResponse{Slot: slot, Index: index})
}

func (h *CharacterHandler) getPageSlot(c echo.Context) error {
	storyID, kind, position, err := slotParams(c)
	if err != nil {
		return err
	}

	slot, active, err := h.pages.GetPageSlot(c.Request().Context(), storyID, kind, position)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, pageSlotResponse{Slot: slot, Active: active})
}

func (h *CharacterHandler) setActiveVersion(c echo.Context) error {
	storyID, kind, position, err := slotParams(c)
	if err != nil {
		return err
	}

	var req setActiveVersionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "некорректное тело запроса"})
	}

	slot, err := h.pages.SetActiveVersion(c.Request().Context(), storyID, kind, position, req.Index)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, slot)
}

func (h *CharacterHandler) analyzePhoto(c echo.Context) error {
	if _, err := userIDFromRequest(c); err != nil {
		return err
	}

	var req analyzePhotoRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "некорректное тело запроса"})
	}

	result, err := h.characters.AnalyzePhoto(c.Request().Context(), req.Image)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// userIDFromRequest извлекает идентификатор пользователя, проставленный
// шлюзом.
func userIDFromRequest(c echo.Context) (uuid.UUID, error) {
	raw := c.Request().Header.Get(userIDHeader)
	if raw == "" {
		return uuid.Nil, c.JSON(http.StatusUnauthorized, APIError{Message: "отсутствует идентификатор пользователя"})
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, c.JSON(http.StatusUnauthorized, APIError{Message: "некорректный идентификатор пользователя"})
	}
	return userID, nil
}

func slotParams(c echo.Context) (uuid.UUID, models.SlotKind, int, error) {
	storyID, err := uuid.Parse(c.Param("story_id"))
	if err != nil {
		return uuid.Nil, "", 0, c.JSON(http.StatusBadRequest, APIError{Message: "некорректный id истории"})
	}
	kind := models.SlotKind(c.Param("kind"))
	if kind == "" {
		return uuid.Nil, "", 0, c.JSON(http.StatusBadRequest, APIError{Message: "не задан вид слота"})
	}

	position := 0
	if raw := c.QueryParam("position"); raw != "" {
		position, err = strconv.Atoi(raw)
		if err != nil || position < 0 {
			return uuid.Nil, "", 0, c.JSON(http.StatusBadRequest, APIError{Message: "некорректная позиция слота"})
		}
	}
	return storyID, kind, position, nil
}

func (h *CharacterHandler) handleServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrCharacterNotFound),
		errors.Is(err, models.ErrJobNotFound),
		errors.Is(err, models.ErrPageSlotNotFound),
		errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, APIError{Message: err.Error()})
	case errors.Is(err, models.ErrVersionConflict):
		return c.JSON(http.StatusConflict, APIError{Message: err.Error()})
	case errors.Is(err, models.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	case errors.Is(err, analysis.ErrPhotoAnalysisFailed):
		return c.JSON(http.StatusBadGateway, APIError{Message: err.Error()})
	default:
		h.logger.Error("Unhandled service error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, APIError{Message: "внутренняя ошибка сервиса"})
	}
}
