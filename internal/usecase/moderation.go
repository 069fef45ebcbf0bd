package usecase

import (
	"context"
	"guestbook-backend/internal/entity"
)

type Moderation interface {
	// Process выполняет один шаг модерации по задаче. nil означает, что задачу можно подтвердить,
	// ошибка - что задачу нужно вернуть в очередь
	Process(ctx context.Context, job *entity.ModerationJob) error
}

type SpamScorer interface {
	// Score оценивает комментарий. Недоступность внешнего сервиса не ошибка:
	// в этом случае возвращается SpamScoreAmbiguous
	Score(ctx context.Context, comment *entity.Comment, submission map[string]string) entity.SpamScore
}

type ImageOptimizer interface {
	// OptimizePhoto уменьшает сохраненное фото на месте. Если оптимизация не удалась,
	// исходное фото остается нетронутым
	OptimizePhoto(ctx context.Context, name string) error
}

type Notifier interface {
	// NotifyNewComment сообщает администратору о комментарии, готовом к публикации
	NotifyNewComment(ctx context.Context, comment *entity.Comment) error
}
