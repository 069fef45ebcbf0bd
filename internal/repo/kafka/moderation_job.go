package kafka

import (
	"context"
	"errors"
	"fmt"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/metrics"
	"guestbook-backend/internal/repo"
	"guestbook-backend/pkg/retry"
	"net"
	"strconv"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/segmentio/kafka-go"
	"github.com/vmihailenco/msgpack/v5"
)

const defaultPartitions = 3

type ModerationJobConfig struct {
	Brokers []string
	// ReplicationFactor - желаемый фактор репликации новых топиков, фактический не больше числа брокеров
	ReplicationFactor int
	Topic             string
	DLQTopic          string
	GroupID           string
	Partitions        int
	MaxAttempts       int
	RequeueDelay      time.Duration
}

// messageWriter и messageReader - части kafka.Writer и kafka.Reader, которые нам нужны
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ModerationJobKafkaRepository struct {
	writer        messageWriter
	readerFactory func() messageReader
	cfg           ModerationJobConfig
}

// replicationFactor ограничивает желаемый фактор репликации числом брокеров в кластере
func replicationFactor(desired, brokers int) int {
	if desired <= 0 {
		desired = 1
	}
	return max(1, min(desired, brokers))
}

// ensureTopics создает топик задач и DLQ, если их еще нет
func ensureTopics(ctx context.Context, cfg ModerationJobConfig) error {
	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	brokers, err := conn.Brokers()
	if err != nil {
		return fmt.Errorf("ошибка получения метаданных о брокерах: %w", err)
	}
	factor := replicationFactor(cfg.ReplicationFactor, len(brokers))
	if factor < cfg.ReplicationFactor {
		log.Warnf("в кластере %d брокеров, фактор репликации снижен до %d", len(brokers), factor)
	}

	var missing []kafka.TopicConfig
	for _, topic := range []string{cfg.Topic, cfg.DLQTopic} {
		partitions, err := conn.ReadPartitions(topic)
		if err != nil && !errors.Is(err, kafka.UnknownTopicOrPartition) {
			return fmt.Errorf("ошибка чтения партиций топика %s: %w", topic, err)
		}
		if len(partitions) > 0 {
			continue
		}
		missing = append(missing, kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     cfg.Partitions,
			ReplicationFactor: factor,
		})
	}
	if len(missing) == 0 {
		return nil
	}

	// топики создаются только через контроллер кластера
	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer func() { _ = controllerConn.Close() }()

	// другой воркер мог успеть создать топик между проверкой и созданием
	if err := controllerConn.CreateTopics(missing...); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return err
	}
	for _, topic := range missing {
		log.Infof("создан топик %s: партиций %d, фактор репликации %d", topic.Topic, topic.NumPartitions, topic.ReplicationFactor)
	}
	return nil
}

func NewModerationJobKafkaRepository(cfg ModerationJobConfig) (*ModerationJobKafkaRepository, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("не предоставлены брокеры Kafka")
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = defaultPartitions
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureTopics(ctx, cfg); err != nil {
		return nil, fmt.Errorf("ошибка при создании топиков %s, %s: %w", cfg.Topic, cfg.DLQTopic, err)
	}

	return &ModerationJobKafkaRepository{
		// топик указывается в каждом сообщении, ключ - ID комментария,
		// поэтому вся цепочка одного комментария идет через одну партицию
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		readerFactory: func() messageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:  cfg.Brokers,
				Topic:    cfg.Topic,
				GroupID:  cfg.GroupID,
				MinBytes: 1,
				MaxBytes: 10e6,
				// Группа постоянная: после рестарта продолжаем с последнего закоммиченного смещения
				StartOffset: kafka.FirstOffset,
			})
		},
		cfg: cfg,
	}, nil
}

func (r *ModerationJobKafkaRepository) publish(ctx context.Context, topic string, job *entity.ModerationJob) error {
	b, err := msgpack.Marshal(job)
	if err != nil {
		return err
	}
	return r.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.Itoa(job.CommentID)),
		Value: b,
	})
}

func (r *ModerationJobKafkaRepository) Enqueue(ctx context.Context, job *entity.ModerationJob) error {
	if job.Attempt <= 0 {
		job.Attempt = 1
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	if err := r.publish(ctx, r.cfg.Topic, job); err != nil {
		return fmt.Errorf("ошибка публикации задачи для комментария %d: %w", job.CommentID, err)
	}
	return nil
}

// NewConsumer создает читателя в группе потребителей. У каждого воркера свой читатель:
// смещения коммитятся по партиции, и общий читатель мог бы закоммитить еще не обработанное
func (r *ModerationJobKafkaRepository) NewConsumer() repo.ModerationConsumer {
	return &moderationJobConsumer{
		reader: r.readerFactory(),
		repo:   r,
	}
}

func (r *ModerationJobKafkaRepository) Close() error {
	return r.writer.Close()
}

type moderationJobConsumer struct {
	reader messageReader
	repo   *ModerationJobKafkaRepository
}

func (c *moderationJobConsumer) Fetch(ctx context.Context) (*entity.Delivery, error) {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return nil, err
		}

		job := &entity.ModerationJob{}
		if err := msgpack.Unmarshal(m.Value, job); err != nil || job.CommentID <= 0 {
			// битое сообщение никогда не обработается, коммитим и читаем дальше
			log.Errorf("не удалось разобрать задачу модерации (partition=%d offset=%d): %v", m.Partition, m.Offset, err)
			if err := c.reader.CommitMessages(ctx, m); err != nil {
				return nil, fmt.Errorf("commit broken message: %w", err)
			}
			continue
		}
		if job.Attempt <= 0 {
			job.Attempt = 1
		}
		return &entity.Delivery{Job: job, Handle: m}, nil
	}
}

func (c *moderationJobConsumer) Ack(ctx context.Context, delivery *entity.Delivery) error {
	m, ok := delivery.Handle.(kafka.Message)
	if !ok {
		return fmt.Errorf("delivery of comment %d has no kafka message", delivery.Job.CommentID)
	}
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit (partition=%d offset=%d): %w", m.Partition, m.Offset, err)
	}
	return nil
}

// nextAttempt решает, куда отправить задачу после неудачной попытки
func nextAttempt(job *entity.ModerationJob, cause error, maxAttempts int, topic, dlqTopic string) (string, *entity.ModerationJob) {
	retry := *job
	if cause != nil {
		retry.LastError = cause.Error()
	}
	if maxAttempts > 0 && job.Attempt >= maxAttempts {
		return dlqTopic, &retry
	}
	retry.Attempt = job.Attempt + 1
	return topic, &retry
}

func (c *moderationJobConsumer) Nack(ctx context.Context, delivery *entity.Delivery, cause error) error {
	cfg := c.repo.cfg
	topic, nextJob := nextAttempt(delivery.Job, cause, cfg.MaxAttempts, cfg.Topic, cfg.DLQTopic)

	if topic == cfg.DLQTopic {
		if err := c.repo.publish(ctx, topic, nextJob); err != nil {
			return fmt.Errorf("publish to dlq %s: %w", topic, err)
		}
		metrics.JobsDeadLettered.Inc()
		log.Errorf("задача комментария %d отправлена в DLQ после %d попыток: %v", nextJob.CommentID, nextJob.Attempt, cause)
	} else {
		if cfg.RequeueDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.RequeueDelay):
			}
		}
		if err := c.repo.publish(ctx, topic, nextJob); err != nil {
			return fmt.Errorf("requeue: %w", err)
		}
		metrics.JobsRequeued.Inc()
		log.Warnf("задача комментария %d возвращена в очередь, попытка %d: %v", nextJob.CommentID, nextJob.Attempt, cause)
	}

	// копия уже в топике: повторяем только коммит, повтор публикации задвоил бы задачу
	if err := retry.Retry(ctx, func() error { return c.Ack(ctx, delivery) }); err != nil {
		return fmt.Errorf("commit after requeue: %w", err)
	}
	return nil
}

func (c *moderationJobConsumer) Close() error {
	return c.reader.Close()
}
