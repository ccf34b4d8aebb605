package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storybook-server/internal/interfaces"
	"storybook-server/internal/models"
)

// Compile-time check
var _ interfaces.JobStore = (*RedisJobStore)(nil)

// RedisJobStore stores generation jobs in Redis as JSON blobs.
// Для каждой задачи два места: сам ключ generation_job:{id} с TTL и
// set character_jobs:{characterID} для выборки по персонажу.
type RedisJobStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisJobStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisJobStore {
	return &RedisJobStore{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisJobStore"),
	}
}

func jobKey(id uuid.UUID) string {
	return fmt.Sprintf("generation_job:%s", id)
}

func characterJobsKey(characterID uuid.UUID) string {
	return fmt.Sprintf("character_jobs:%s", characterID)
}

func (s *RedisJobStore) Get(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrJobNotFound
		}
		s.logger.Error("Failed to get job from redis", zap.Error(err), zap.String("jobID", id.String()))
		return nil, fmt.Errorf("failed to get job from redis: %w", err)
	}

	var job models.GenerationJob
	if err := json.Unmarshal(data, &job); err != nil {
		// Данные в Redis повреждены
		s.logger.Error("Failed to unmarshal job from redis", zap.Error(err), zap.String("jobID", id.String()))
		return nil, fmt.Errorf("corrupted job data in redis for %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisJobStore) Save(ctx context.Context, job *models.GenerationJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, jobKey(job.ID), data, s.ttl)
	pipe.SAdd(ctx, characterJobsKey(job.CharacterID), job.ID.String())
	pipe.Expire(ctx, characterJobsKey(job.CharacterID), s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Failed to save job in redis",
			zap.Error(err),
			zap.String("jobID", job.ID.String()),
			zap.String("characterID", job.CharacterID.String()),
		)
		return fmt.Errorf("failed to save job in redis: %w", err)
	}
	return nil
}

func (s *RedisJobStore) Delete(ctx context.Context, id uuid.UUID) error {
	// Сначала читаем задачу, чтобы узнать characterID для чистки set'а
	job, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			return nil // идемпотентно
		}
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, jobKey(id))
	pipe.SRem(ctx, characterJobsKey(job.CharacterID), id.String())

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Failed to delete job from redis", zap.Error(err), zap.String("jobID", id.String()))
		return fmt.Errorf("failed to delete job from redis: %w", err)
	}
	return nil
}

func (s *RedisJobStore) ListByCharacter(ctx context.Context, characterID uuid.UUID) ([]models.GenerationJob, error) {
	ids, err := s.client.SMembers(ctx, characterJobsKey(characterID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		s.logger.Error("Failed to list character jobs", zap.Error(err), zap.String("characterID", characterID.String()))
		return nil, fmt.Errorf("failed to list jobs for character %s: %w", characterID, err)
	}

	var out []models.GenerationJob
	var staleIDs []interface{}
	for _, idStr := range ids {
		id, parseErr := uuid.Parse(idStr)
		if parseErr != nil {
			s.logger.Warn("Malformed job id in character set", zap.String("value", idStr))
			staleIDs = append(staleIDs, idStr)
			continue
		}
		job, getErr := s.Get(ctx, id)
		if getErr != nil {
			if errors.Is(getErr, models.ErrJobNotFound) {
				// Ключ задачи истек по TTL, а set остался — подчищаем
				staleIDs = append(staleIDs, idStr)
				continue
			}
			return nil, getErr
		}
		out = append(out, *job)
	}

	if len(staleIDs) > 0 {
		if err := s.client.SRem(ctx, characterJobsKey(characterID), staleIDs...).Err(); err != nil {
			s.logger.Warn("Failed to prune stale job ids from character set", zap.Error(err))
		}
	}
	return out, nil
}
