package repo

import (
	"context"
	"errors"
	"guestbook-backend/internal/entity"
	"time"
)

type Comment interface {
	// GetComment возвращает комментарий по ID
	GetComment(ctx context.Context, commentID int) (*entity.Comment, error)
	// AddComment добавляет комментарий в состоянии submitted и возвращает его ID
	AddComment(ctx context.Context, comment *entity.Comment) (int, error)
	// SwapStage переводит комментарий из стадии expected в стадию next. Если стадия в БД уже
	// другая, возвращает ErrStageConflict и ничего не пишет
	SwapStage(ctx context.Context, commentID int, expected, next entity.Stage) error
	// ClaimNotification отмечает, что администратор уведомлен о комментарии.
	// Возвращает false, если отметка уже стояла
	ClaimNotification(ctx context.Context, commentID int) (bool, error)
	// GetStalledComments возвращает комментарии, застрявшие в середине цепочки модерации
	// и перезапущенные автоматически меньше maxRedrives раз (0 - без ограничения)
	GetStalledComments(ctx context.Context, olderThan time.Time, maxRedrives, limit int) ([]*entity.Comment, error)
	// MarkRedriven увеличивает счетчик автоматических перезапусков и обновляет updated_at
	MarkRedriven(ctx context.Context, commentID int) error
}

var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrStageConflict   = errors.New("comment stage changed concurrently")
)
