package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/metrics"
	"guestbook-backend/internal/repo"
	"guestbook-backend/internal/usecase"
	"guestbook-backend/internal/workflow"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

type Comment struct {
	commentRepo repo.Comment
	photoRepo   repo.PhotoStorage
	queue       repo.ModerationQueue
	validate    *validator.Validate
}

func NewComment(commentRepo repo.Comment, photoRepo repo.PhotoStorage, queue repo.ModerationQueue) usecase.Comment {
	return &Comment{
		commentRepo: commentRepo,
		photoRepo:   photoRepo,
		queue:       queue,
		validate:    validator.New(),
	}
}

// photoName переводит название файла в base64 (без учета расширения файла) и добавляет к нему префикс uuid,
// чтобы избежать проблем с кириллицей и пробелами
func photoName(original string) string {
	base := filepath.Base(original)
	ext := filepath.Ext(base)
	return fmt.Sprintf(
		"%s_%s%s",
		uuid.New().String(),
		base64.RawURLEncoding.EncodeToString([]byte(strings.TrimSuffix(base, ext))),
		strings.ToLower(ext),
	)
}

// inModeration сообщает, есть ли у цепочки модерации комментария еще незавершенные шаги
func inModeration(comment *entity.Comment) bool {
	switch comment.State {
	case entity.CommentSubmitted:
		return true
	case entity.CommentAccepted:
		return comment.NotifiedAt == nil
	}
	return false
}

func (c *Comment) Submit(ctx context.Context, request *entity.SubmitCommentRequest) (int, error) {
	if err := c.validate.Struct(request); err != nil {
		return 0, fmt.Errorf("%w: %v", usecase.ErrInvalidComment, err)
	}

	comment := &entity.Comment{
		ConferenceID:      request.ConferenceID,
		Author:            request.Author,
		Email:             request.Email,
		Text:              request.Text,
		State:             entity.CommentSubmitted,
		SubmissionContext: request.Context,
	}

	if request.Photo != nil && request.Photo.RawBytes != nil {
		name := photoName(request.Photo.Filename)
		if err := c.photoRepo.PutPhoto(ctx, name, request.Photo.RawBytes, request.Photo.Size); err != nil {
			return 0, fmt.Errorf("upload photo: %w", err)
		}
		comment.PhotoFilename = &name
	}

	commentID, err := c.commentRepo.AddComment(ctx, comment)
	if err != nil {
		if comment.HasPhoto() {
			if delErr := c.photoRepo.DeletePhoto(ctx, *comment.PhotoFilename); delErr != nil {
				log.Errorf("не удалось удалить фото %s: %v", *comment.PhotoFilename, delErr)
			}
		}
		return 0, err
	}
	comment.ID = commentID

	if err := c.enqueue(ctx, comment, entity.JobModerate, ""); err != nil {
		// комментарий уже сохранен, его подберет фоновый перезапуск
		return commentID, err
	}
	log.Infof("комментарий %d к конференции %d отправлен на модерацию", commentID, comment.ConferenceID)
	return commentID, nil
}

func (c *Comment) Reject(ctx context.Context, commentID int) error {
	comment, err := c.commentRepo.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if !workflow.Can(comment, workflow.Reject) {
		return fmt.Errorf("%w: comment %d is %s", usecase.ErrNotUnderReview, commentID, comment.State)
	}
	return c.enqueue(ctx, comment, entity.JobReview, entity.ReviewReject)
}

func (c *Comment) Redrive(ctx context.Context, commentID int) error {
	comment, err := c.commentRepo.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if !inModeration(comment) {
		return fmt.Errorf("%w: comment %d is %s", usecase.ErrCommentFinished, commentID, comment.State)
	}
	if err := c.enqueue(ctx, comment, entity.JobModerate, ""); err != nil {
		return err
	}
	metrics.Redrives.WithLabelValues("manual").Inc()
	log.Infof("цепочка модерации комментария %d перезапущена", commentID)
	return nil
}

// newJob начинает новую цепочку задач: у нее свой JobID и счетчик попыток с единицы
func newJob(comment *entity.Comment, jobType entity.JobType, decision entity.ReviewDecision) *entity.ModerationJob {
	return &entity.ModerationJob{
		JobID:     uuid.New().String(),
		Type:      jobType,
		CommentID: comment.ID,
		Context:   comment.SubmissionContext,
		Decision:  decision,
		Attempt:   1,
	}
}

func (c *Comment) enqueue(ctx context.Context, comment *entity.Comment, jobType entity.JobType, decision entity.ReviewDecision) error {
	if err := c.queue.Enqueue(ctx, newJob(comment, jobType, decision)); err != nil {
		return fmt.Errorf("enqueue %s job for comment %d: %w", jobType, comment.ID, err)
	}
	return nil
}
