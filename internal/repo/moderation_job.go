package repo

import (
	"context"
	"guestbook-backend/internal/entity"
)

type ModerationQueue interface {
	// Enqueue публикует задачу модерации
	Enqueue(ctx context.Context, job *entity.ModerationJob) error
}

type ModerationConsumer interface {
	// Fetch блокируется до получения следующей задачи
	Fetch(ctx context.Context) (*entity.Delivery, error)
	// Ack подтверждает, что задача обработана
	Ack(ctx context.Context, delivery *entity.Delivery) error
	// Nack возвращает задачу в очередь на повторную обработку или отправляет в DLQ,
	// если попытки исчерпаны. Публикует копию один раз, сбои коммита повторяет сам,
	// поэтому после ошибки Nack повторно не вызывается
	Nack(ctx context.Context, delivery *entity.Delivery, cause error) error
	Close() error
}
