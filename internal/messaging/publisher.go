// Package messaging — публикация уведомлений о ходе генерации в RabbitMQ.
// Очередь читается клиентским слоем (websocket/push); сервис только пишет.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storybook-server/internal/interfaces"
	"storybook-server/internal/models"
)

// Compile-time check
var _ interfaces.JobUpdatePublisher = (*rabbitMQPublisher)(nil)

type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQJobUpdatePublisher открывает канал и объявляет очередь
// уведомлений. Параметры очереди должны совпадать с консьюмером.
func NewRabbitMQJobUpdatePublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (interfaces.JobUpdatePublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("job update publisher: не удалось открыть канал: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("job update publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}
	log := logger.Named("JobUpdatePublisher")
	log.Info("Queue declared", zap.String("queue", queueName))
	return &rabbitMQPublisher{channel: ch, queueName: queueName, logger: log}, nil
}

// PublishJobUpdate публикует уведомление о смене статуса задачи генерации.
func (p *rabbitMQPublisher) PublishJobUpdate(ctx context.Context, payload models.JobUpdate) error {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Failed to marshal job update",
			zap.Error(err),
			zap.String("jobID", payload.JobID.String()),
		)
		return fmt.Errorf("ошибка сериализации уведомления для задачи %s: %w", payload.JobID, err)
	}

	if err := p.publishMessage(ctx, body); err != nil {
		p.logger.Error("Failed to publish job update",
			zap.Error(err),
			zap.String("jobID", payload.JobID.String()),
			zap.String("status", string(payload.Status)),
		)
		return fmt.Errorf("ошибка публикации уведомления для задачи %s: %w", payload.JobID, err)
	}
	return nil
}

func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("канал RabbitMQ не инициализирован")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	// Попытка публикации с retry до 3 раз
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (используем default)
			p.queueName, // routing key (имя очереди)
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "character-service",
			},
		)
		if err == nil {
			p.logger.Debug("Message published",
				zap.String("queue", p.queueName),
				zap.Int("attempt", attempt),
			)
			return nil
		}
		p.logger.Warn("Publish attempt failed",
			zap.Error(err),
			zap.String("queue", p.queueName),
			zap.Int("attempt", attempt),
		)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return fmt.Errorf("ошибка публикации в очередь %s после retries: %w", p.queueName, err)
}
