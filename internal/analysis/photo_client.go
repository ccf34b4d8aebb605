// Package analysis — клиент внешнего сервиса анализа фотографий. Сервис
// находит лицо, оценивает возраст/пол/рост/телосложение и возвращает кроп
// лица для последующей генерации аватаров.
package analysis

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

// ErrPhotoAnalysisFailed - анализатор не смог обработать фотографию.
var ErrPhotoAnalysisFailed = errors.New("photo analysis failed")

// Compile-time check
var _ interfaces.PhotoAnalyzer = (*httpPhotoAnalyzer)(nil)

type httpPhotoAnalyzer struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewHTTPPhotoAnalyzer(baseURL string, timeout time.Duration, logger *zap.Logger) (interfaces.PhotoAnalyzer, error) {
	if baseURL == "" {
		return nil, errors.New("photo analyzer base URL is not configured")
	}
	return &httpPhotoAnalyzer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("PhotoAnalyzer"),
	}, nil
}

type analyzeRequest struct {
	Image string `json:"image"`
}

type analyzeResponse struct {
	Success    bool   `json:"success"`
	Attributes struct {
		Age    int    `json:"age"`
		Gender string `json:"gender"`
		Height int    `json:"height"`
		Build  string `json:"build"`
	} `json:"attributes"`
	CroppedImage string `json:"cropped_image"`
	Error        string `json:"error"`
}

func (a *httpPhotoAnalyzer) Analyze(ctx context.Context, image string) (*models.PhotoAnalysis, error) {
	if image == "" {
		return nil, fmt.Errorf("%w: пустое изображение", models.ErrInvalidInput)
	}

	reqBodyBytes, err := json.Marshal(analyzeRequest{Image: image})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	endpointURL := a.baseURL + "/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(reqBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	a.logger.Debug("Sending photo to analyzer", zap.String("url", endpointURL), zap.Int("image_bytes", len(image)))
	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Error("Failed to execute analyzer request", zap.Error(err))
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		a.logger.Error("Analyzer returned non-OK status",
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response_body", bodyBytes),
		)
		return nil, fmt.Errorf("%w: analyzer returned status %d", ErrPhotoAnalysisFailed, resp.StatusCode)
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read response body: %w", readErr)
	}

	var apiResp analyzeResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		a.logger.Error("Failed to unmarshal analyzer response", zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !apiResp.Success {
		a.logger.Warn("Analyzer reported failure", zap.String("api_error", apiResp.Error))
		return nil, fmt.Errorf("%w: %s", ErrPhotoAnalysisFailed, apiResp.Error)
	}

	return &models.PhotoAnalysis{
		Age:      apiResp.Attributes.Age,
		Gender:   apiResp.Attributes.Gender,
		HeightCm: apiResp.Attributes.Height,
		Build:    apiResp.Attributes.Build,
		FaceCrop: apiResp.CroppedImage,
	}, nil
}
