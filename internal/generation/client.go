// Package generation содержит клиент внешнего сервиса генерации аватаров и
// супервизор задач генерации.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"storybook-server/internal/interfaces"
	"storybook-server/internal/models"
)

// ErrVariantGenerationFailed - ошибка при генерации варианта аватара.
var ErrVariantGenerationFailed = errors.New("variant generation failed")

// Compile-time check
var _ interfaces.GenerationClient = (*httpGenerationClient)(nil)

type httpGenerationClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPGenerationClient создает клиент внешнего generation API.
func NewHTTPGenerationClient(baseURL string, timeout time.Duration, logger *zap.Logger) (interfaces.GenerationClient, error) {
	if baseURL == "" {
		return nil, errors.New("generation API base URL is not configured")
	}
	return &httpGenerationClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("GenerationClient"),
	}, nil
}

// generateVariantRequest - структура запроса к generation API.
type generateVariantRequest struct {
	CharacterID    string                      `json:"character_id"`
	Variant        string                      `json:"variant"`
	Style          string                      `json:"style,omitempty"`
	ReferenceImage string                      `json:"reference_image,omitempty"`
	FaceImage      string                      `json:"face_image,omitempty"`
	Traits         *models.PhysicalTraits      `json:"traits,omitempty"`
	Clothing       *models.ClothingDescription `json:"clothing,omitempty"`
}

// generateVariantResponse - структура ответа generation API.
type generateVariantResponse struct {
	Success       bool     `json:"success"`
	Image         string   `json:"image"`
	IdentityScore *float64 `json:"identity_score"`
	Error         string   `json:"error"`
}

func (c *httpGenerationClient) GenerateVariant(ctx context.Context, req models.VariantRequest) (models.VariantResult, error) {
	log := c.logger.With(
		zap.String("characterID", req.CharacterID.String()),
		zap.String("variant", string(req.Variant)),
	)

	reqPayload := generateVariantRequest{
		CharacterID:    req.CharacterID.String(),
		Variant:        string(req.Variant),
		Style:          req.Style,
		ReferenceImage: req.ReferenceImage,
		FaceImage:      req.FaceImage,
		Traits:         req.Traits,
		Clothing:       req.Clothing,
	}
	reqBodyBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return models.VariantResult{}, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	endpointURL := c.baseURL + "/generate-variant"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(reqBodyBytes))
	if err != nil {
		return models.VariantResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Debug("Sending request to generation API", zap.String("url", endpointURL))
	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Error("Failed to execute generation API request", zap.Error(err))
		return models.VariantResult{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Error("Generation API returned non-OK status",
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response_body", bodyBytes),
		)
		return models.VariantResult{}, fmt.Errorf("%w: API returned status %d", ErrVariantGenerationFailed, resp.StatusCode)
	}
	if readErr != nil {
		return models.VariantResult{}, fmt.Errorf("failed to read response body: %w", readErr)
	}

	var apiResp generateVariantResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		log.Error("Failed to unmarshal generation API response", zap.Error(err))
		return models.VariantResult{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !apiResp.Success {
		log.Warn("Generation API reported failure", zap.String("api_error", apiResp.Error))
		return models.VariantResult{Error: apiResp.Error}, nil
	}
	if apiResp.Image == "" {
		return models.VariantResult{}, fmt.Errorf("%w: API returned empty image", ErrVariantGenerationFailed)
	}

	log.Debug("Variant generated", zap.Int("image_bytes", len(apiResp.Image)))
	return models.VariantResult{Image: apiResp.Image, Score: apiResp.IdentityScore}, nil
}
