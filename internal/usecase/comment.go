package usecase

import (
	"context"
	"errors"
	"guestbook-backend/internal/entity"
)

type Comment interface {
	// Submit сохраняет комментарий в состоянии submitted и ставит первую задачу модерации
	Submit(ctx context.Context, request *entity.SubmitCommentRequest) (int, error)
	// Reject ставит задачу на отклонение помеченного комментария
	Reject(ctx context.Context, commentID int) error
	// Redrive заново запускает цепочку модерации комментария
	Redrive(ctx context.Context, commentID int) error
}

var (
	ErrInvalidComment    = errors.New("invalid comment")
	ErrInvalidConference = errors.New("invalid conference")
	ErrCommentFinished   = errors.New("comment moderation already finished")
	ErrNotUnderReview    = errors.New("comment is not flagged for review")
)
