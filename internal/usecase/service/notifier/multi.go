package notifier

import (
	"context"
	"errors"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/usecase"
)

// Multi отправляет уведомление во все каналы; ошибка одного канала не мешает остальным
type Multi []usecase.Notifier

func (m Multi) NotifyNewComment(ctx context.Context, comment *entity.Comment) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyNewComment(ctx, comment); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
