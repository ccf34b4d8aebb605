package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"storybook-server/internal/interfaces"
	"storybook-server/internal/models"
	"storybook-server/internal/reconcile"
)

// Метрики Prometheus
var (
	variantsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "character_generation_variants_total",
			Help: "Total number of avatar variant generation attempts.",
		},
		[]string{"status"}, // "success", "error"
	)
	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "character_generation_job_duration_seconds",
		Help:    "Duration of avatar generation jobs end to end.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// Config задает политику поиска персонажа перед записью результатов: запись
// могла еще не успеть сохраниться клиентским save.
type Config struct {
	LookupAttempts int
	LookupDelay    time.Duration
}

// Compile-time check
var _ interfaces.GenerationStarter = (*Supervisor)(nil)

// Supervisor ведет задачи генерации аватаров от создания до терминального
// статуса. Ключевая гарантия: терминальный статус complete/partial задача
// получает только ПОСЛЕ того, как результаты записаны в хранилище персонажей.
type Supervisor struct {
	chars   interfaces.CharacterRepository
	jobs    interfaces.JobStore
	client  interfaces.GenerationClient
	updates interfaces.JobUpdatePublisher // может быть nil
	logger  *zap.Logger
	cfg     Config
}

func NewSupervisor(
	chars interfaces.CharacterRepository,
	jobs interfaces.JobStore,
	client interfaces.GenerationClient,
	updates interfaces.JobUpdatePublisher,
	logger *zap.Logger,
	cfg Config,
) *Supervisor {
	if cfg.LookupAttempts <= 0 {
		cfg.LookupAttempts = 10
	}
	if cfg.LookupDelay <= 0 {
		cfg.LookupDelay = 2 * time.Second
	}
	return &Supervisor{
		chars:   chars,
		jobs:    jobs,
		client:  client,
		updates: updates,
		logger:  logger.Named("GenerationSupervisor"),
		cfg:     cfg,
	}
}

// StartGeneration регистрирует pending задачу и запускает ее обработку в
// фоне. Возвращает сразу: клиент опрашивает статус по job id.
func (s *Supervisor) StartGeneration(ctx context.Context, req models.GenerationRequest) (*models.GenerationJob, error) {
	variants := req.Variants
	if len(variants) == 0 {
		variants = append([]models.Variant(nil), models.KnownVariants...)
	}

	now := time.Now().UTC()
	job := &models.GenerationJob{
		ID:          uuid.New(),
		CharacterID: req.CharacterID,
		UserID:      req.UserID,
		Variants:    variants,
		Style:       req.Style,
		Reason:      req.Reason,
		Status:      models.JobStatusPending,
		Results:     make(map[models.Variant]models.VariantResult),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("не удалось зарегистрировать задачу генерации: %w", err)
	}

	s.logger.Info("Generation job registered",
		zap.String("jobID", job.ID.String()),
		zap.String("characterID", job.CharacterID.String()),
		zap.String("reason", string(job.Reason)),
		zap.Int("variants", len(variants)),
	)

	// Время жизни задачи не привязано к HTTP запросу, который ее создал
	go s.Run(context.Background(), job.ID)

	return job, nil
}

// Run выполняет задачу до терминального состояния. Экспортирован, чтобы
// обработку можно было прогнать синхронно.
func (s *Supervisor) Run(ctx context.Context, jobID uuid.UUID) {
	start := time.Now()
	defer func() {
		jobDuration.Observe(time.Since(start).Seconds())
	}()

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		s.logger.Error("Failed to load job for processing", zap.Error(err), zap.String("jobID", jobID.String()))
		return
	}
	log := s.logger.With(
		zap.String("jobID", job.ID.String()),
		zap.String("characterID", job.CharacterID.String()),
	)

	// Персонаж нужен до генерации: оттуда берутся референсные фото и черты.
	// Запись могла еще не долететь — ждем ее ограниченное число попыток.
	stored, err := s.lookupCharacter(ctx, job.UserID, job.CharacterID)
	if err != nil {
		log.Warn("Character unreachable, failing job", zap.Error(err))
		s.failJob(ctx, job, fmt.Sprintf("персонаж %s недоступен: %v", job.CharacterID, err))
		return
	}

	job.Status = models.JobStatusGenerating
	job.UpdatedAt = time.Now().UTC()
	if err := s.saveJobStatus(ctx, job, log); err != nil {
		// Генерация продолжается: статус допишется со следующим прогрессом
		log.Error("Failed to mark job generating, continuing", zap.Error(err))
	}
	s.publishUpdate(ctx, job)
	log.Info("Generation started", zap.Int("variants", len(job.Variants)))

	s.generateVariants(ctx, job, stored, log)

	succeeded := 0
	for _, res := range job.Results {
		if res.Succeeded() {
			succeeded++
		}
	}
	if succeeded == 0 {
		log.Warn("All variants failed")
		s.failJob(ctx, job, "ни один вариант не был сгенерирован")
		return
	}

	// Сначала персист результатов, только потом терминальный статус
	if err := s.persistResults(ctx, job, log); err != nil {
		log.Error("Failed to persist generation results", zap.Error(err))
		s.failJob(ctx, job, fmt.Sprintf("результаты не сохранены: %v", err))
		return
	}

	if succeeded == len(job.Variants) {
		job.Status = models.JobStatusComplete
	} else {
		job.Status = models.JobStatusPartial
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.saveJobStatus(ctx, job, log); err != nil {
		log.Error("Terminal job status not saved, client will see stale status until TTL", zap.Error(err))
	}
	s.publishUpdate(ctx, job)
	log.Info("Generation job finished",
		zap.String("status", string(job.Status)),
		zap.Int("succeeded", succeeded),
		zap.Int("total", len(job.Variants)),
	)
}

// generateVariants параллельно вызывает внешний сервис по одному разу на
// вариант. Каждый результат сразу фиксируется в store для видимости прогресса.
func (s *Supervisor) generateVariants(ctx context.Context, job *models.GenerationJob, stored *models.Character, log *zap.Logger) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, variant := range job.Variants {
		wg.Add(1)
		go func(v models.Variant) {
			defer wg.Done()

			result, err := s.client.GenerateVariant(ctx, s.buildVariantRequest(job, stored, v))
			if err != nil {
				result = models.VariantResult{Error: err.Error()}
			}

			if result.Succeeded() {
				variantsGenerated.WithLabelValues("success").Inc()
			} else {
				variantsGenerated.WithLabelValues("error").Inc()
				log.Warn("Variant generation failed",
					zap.String("variant", string(v)),
					zap.String("variant_error", result.Error),
				)
			}

			mu.Lock()
			defer mu.Unlock()
			job.Results[v] = result
			job.Completed++
			job.UpdatedAt = time.Now().UTC()
			if saveErr := s.jobs.Save(ctx, job); saveErr != nil {
				log.Warn("Failed to save variant progress", zap.Error(saveErr))
			}
		}(variant)
	}
	wg.Wait()
}

func (s *Supervisor) buildVariantRequest(job *models.GenerationJob, stored *models.Character, variant models.Variant) models.VariantRequest {
	req := models.VariantRequest{
		CharacterID: job.CharacterID,
		Variant:     variant,
		Style:       job.Style,
		Traits:      stored.Physical,
	}
	if stored.Photos != nil {
		req.FaceImage = stored.Photos.FaceCrop
		// Лучший доступный референс фигуры
		switch {
		case stored.Photos.BodyNoBackground != "":
			req.ReferenceImage = stored.Photos.BodyNoBackground
		case stored.Photos.Body != "":
			req.ReferenceImage = stored.Photos.Body
		default:
			req.ReferenceImage = stored.Photos.Original
		}
	}
	if stored.Avatars != nil {
		req.Clothing = stored.Avatars.Clothing[variant]
	}
	return req
}

// persistResults записывает сгенерированные изображения в запись персонажа
// через reconciliation merge, чтобы не затереть варианты, которые эта задача
// не перегенерировала. Конфликт версий разрешается перечитыванием и повторным
// мержем.
func (s *Supervisor) persistResults(ctx context.Context, job *models.GenerationJob, log *zap.Logger) error {
	const maxWriteAttempts = 3

	images := make(map[models.Variant]string)
	for variant, res := range job.Results {
		if res.Succeeded() {
			images[variant] = res.Image
		}
	}

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		stored, err := s.lookupCharacter(ctx, job.UserID, job.CharacterID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		status := models.AvatarStatusComplete
		if len(images) < len(job.Variants) {
			status = models.AvatarStatusPartial
		}

		// Stale снимается только если standard реально перегенерирован и
		// попадает в эту запись; иначе флаг переносится как есть
		stale := false
		if images[models.VariantStandard] == "" && stored.Avatars != nil {
			stale = stored.Avatars.Stale
		}

		incoming := models.Character{
			ID:     stored.ID,
			UserID: stored.UserID,
			Name:   stored.Name,
			Age:    stored.Age,
			Gender: stored.Gender,
			Avatars: &models.AvatarSet{
				Status:      status,
				Stale:       stale,
				GeneratedAt: &now,
				Images:      images,
			},
		}

		merged, preserved := reconcile.MergeCharacter(incoming, stored)
		merged.UpdatedAt = now

		err = s.chars.Update(ctx, &merged)
		if err == nil {
			log.Info("Generation results persisted",
				zap.Int("images", len(images)),
				zap.Strings("preserved", preserved),
				zap.Int("attempt", attempt),
			)
			return nil
		}
		if !errors.Is(err, models.ErrVersionConflict) {
			return err
		}
		log.Warn("Version conflict while persisting results, re-merging", zap.Int("attempt", attempt))
	}
	return fmt.Errorf("запись результатов не прошла за %d попыток: %w", maxWriteAttempts, models.ErrVersionConflict)
}

// lookupCharacter ждет появления записи персонажа ограниченное число попыток.
func (s *Supervisor) lookupCharacter(ctx context.Context, userID, characterID uuid.UUID) (*models.Character, error) {
	for attempt := 1; ; attempt++ {
		character, err := s.chars.GetByID(ctx, userID, characterID)
		if err == nil {
			return character, nil
		}
		if !errors.Is(err, models.ErrCharacterNotFound) {
			return nil, err
		}
		if attempt >= s.cfg.LookupAttempts {
			return nil, models.ErrCharacterNotFound
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.LookupDelay):
		}
	}
}

func (s *Supervisor) failJob(ctx context.Context, job *models.GenerationJob, reason string) {
	job.Status = models.JobStatusFailed
	job.Error = reason
	job.UpdatedAt = time.Now().UTC()
	if err := s.saveJobStatus(ctx, job, s.logger.With(zap.String("jobID", job.ID.String()))); err != nil {
		s.logger.Error("Failed job status not saved", zap.Error(err), zap.String("jobID", job.ID.String()))
	}
	s.publishUpdate(ctx, job)
}

// saveJobStatus пишет статусный переход задачи с повторами: задача, застрявшая
// в нетерминальном статусе, живет до истечения TTL и опрашивается впустую.
func (s *Supervisor) saveJobStatus(ctx context.Context, job *models.GenerationJob, log *zap.Logger) error {
	const maxAttempts = 3
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = s.jobs.Save(ctx, job); err == nil {
			return nil
		}
		log.Warn("Failed to save job status, retrying",
			zap.Int("attempt", attempt),
			zap.String("status", string(job.Status)),
			zap.Error(err),
		)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return err
}

// publishUpdate — best effort: недоставленное уведомление не влияет на задачу.
func (s *Supervisor) publishUpdate(ctx context.Context, job *models.GenerationJob) {
	if s.updates == nil {
		return
	}
	update := models.JobUpdate{
		JobID:       job.ID,
		CharacterID: job.CharacterID,
		UserID:      job.UserID,
		Status:      job.Status,
		Completed:   job.Completed,
		Total:       len(job.Variants),
		Error:       job.Error,
	}
	if err := s.updates.PublishJobUpdate(ctx, update); err != nil {
		s.logger.Warn("Failed to publish job update",
			zap.Error(err),
			zap.String("jobID", job.ID.String()),
		)
	}
}
