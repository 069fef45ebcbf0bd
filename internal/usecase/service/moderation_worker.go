package service

import (
	"context"
	"errors"
	"fmt"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/repo"
	"guestbook-backend/internal/usecase"
	"guestbook-backend/pkg/retry"

	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"
)

// ConsumerFactory выдает каждому потоку воркера собственного читателя очереди
type ConsumerFactory interface {
	NewConsumer() repo.ModerationConsumer
}

type ModerationWorker struct {
	moderation usecase.Moderation
	consumers  ConsumerFactory
	workerID   string
	workers    int
}

func NewModerationWorker(moderation usecase.Moderation, consumers ConsumerFactory, workerID string, workers int) *ModerationWorker {
	if workers <= 0 {
		workers = 1
	}
	return &ModerationWorker{
		moderation: moderation,
		consumers:  consumers,
		workerID:   workerID,
		workers:    workers,
	}
}

// Start блокируется до отмены ctx или до ошибки, после которой продолжать нельзя
// (например, не удалось подтвердить сообщение). Ошибки обработки задач сюда не попадают.
func (w *ModerationWorker) Start(ctx context.Context) error {
	log.Infof("Запущен воркер модерации: %s, потоков: %d", w.workerID, w.workers)

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.workers; i++ {
		i := i
		consumer := w.consumers.NewConsumer()
		g.Go(func() error {
			defer func() {
				if err := consumer.Close(); err != nil {
					log.Errorf("ошибка закрытия читателя очереди %d: %v", i, err)
				}
			}()
			return w.consume(gCtx, consumer)
		})
	}

	err := g.Wait()
	log.Infof("Остановка воркера модерации: %s", w.workerID)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *ModerationWorker) consume(ctx context.Context, consumer repo.ModerationConsumer) error {
	for {
		delivery, err := consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch moderation job: %w", err)
		}
		if err := w.handle(ctx, consumer, delivery); err != nil {
			return err
		}
	}
}

func (w *ModerationWorker) handle(ctx context.Context, consumer repo.ModerationConsumer, delivery *entity.Delivery) error {
	job := delivery.Job
	processErr := w.process(ctx, job)
	if processErr == nil {
		if err := retry.Retry(ctx, func() error { return consumer.Ack(ctx, delivery) }); err != nil {
			return fmt.Errorf("ack job %s of comment %d: %w", job.JobID, job.CommentID, err)
		}
		return nil
	}

	log.Errorf("ошибка обработки задачи %s комментария %d (попытка %d): %v", job.JobID, job.CommentID, job.Attempt, processErr)
	if err := consumer.Nack(ctx, delivery, processErr); err != nil {
		return fmt.Errorf("nack job %s of comment %d: %w", job.JobID, job.CommentID, err)
	}
	return nil
}

// process не дает панике в обработчике уронить весь пул
func (w *ModerationWorker) process(ctx context.Context, job *entity.ModerationJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing comment %d: %v", job.CommentID, r)
		}
	}()
	return w.moderation.Process(ctx, job)
}
