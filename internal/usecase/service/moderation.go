package service

import (
	"context"
	"errors"
	"fmt"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/metrics"
	"guestbook-backend/internal/repo"
	"guestbook-backend/internal/usecase"
	"guestbook-backend/internal/workflow"
	"time"

	"github.com/labstack/gommon/log"
)

const (
	outcomeAdvanced = "advanced"
	outcomeNotified = "notified"
	outcomeDropped  = "dropped"
	outcomeFailed   = "failed"
)

type ModerationConfig struct {
	SpamCheckTimeout time.Duration
	OptimizeTimeout  time.Duration
	NotifyTimeout    time.Duration
}

type jobHandler func(ctx context.Context, job *entity.ModerationJob) (string, error)

type Moderation struct {
	commentRepo repo.Comment
	queue       repo.ModerationQueue
	scorer      usecase.SpamScorer
	optimizer   usecase.ImageOptimizer
	notifier    usecase.Notifier
	cfg         ModerationConfig
	handlers    map[entity.JobType]jobHandler
}

func NewModeration(
	commentRepo repo.Comment,
	queue repo.ModerationQueue,
	scorer usecase.SpamScorer,
	optimizer usecase.ImageOptimizer,
	notifier usecase.Notifier,
	cfg ModerationConfig,
) usecase.Moderation {
	m := &Moderation{
		commentRepo: commentRepo,
		queue:       queue,
		scorer:      scorer,
		optimizer:   optimizer,
		notifier:    notifier,
		cfg:         cfg,
	}
	// обработчики по типу задачи определяются один раз при создании
	m.handlers = map[entity.JobType]jobHandler{
		entity.JobModerate: m.moderate,
		entity.JobReview:   m.review,
	}
	return m
}

func (m *Moderation) Process(ctx context.Context, job *entity.ModerationJob) error {
	jobType := job.Type
	if jobType == "" {
		jobType = entity.JobModerate
	}

	handler, ok := m.handlers[jobType]
	if !ok {
		log.Warnf("неизвестный тип задачи %q для комментария %d, задача отброшена", job.Type, job.CommentID)
		metrics.JobsProcessed.WithLabelValues(string(jobType), outcomeDropped).Inc()
		return nil
	}

	outcome, err := handler(ctx, job)
	if err != nil {
		outcome = outcomeFailed
	}
	metrics.JobsProcessed.WithLabelValues(string(jobType), outcome).Inc()
	return err
}

func (m *Moderation) loadComment(ctx context.Context, commentID int) (*entity.Comment, error) {
	comment, err := m.commentRepo.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (m *Moderation) moderate(ctx context.Context, job *entity.ModerationJob) (string, error) {
	comment, err := m.loadComment(ctx, job.CommentID)
	if errors.Is(err, repo.ErrCommentNotFound) {
		// комментарий удалили, пока задача была в очереди
		log.Debugf("комментарий %d не найден, задача отброшена", job.CommentID)
		return outcomeDropped, nil
	}
	if err != nil {
		return "", fmt.Errorf("load comment %d: %w", job.CommentID, err)
	}

	switch {
	case workflow.Can(comment, workflow.Accept):
		return m.scoreComment(ctx, job, comment)
	case workflow.Can(comment, workflow.Publish) || workflow.Can(comment, workflow.PublishHam):
		return m.publishComment(ctx, comment)
	case workflow.Can(comment, workflow.Optimize):
		return m.optimizePhoto(ctx, job, comment)
	default:
		log.Debugf("нет допустимого перехода для комментария %d (state %s), задача отброшена", comment.ID, comment.State)
		return outcomeDropped, nil
	}
}

func (m *Moderation) scoreComment(ctx context.Context, job *entity.ModerationJob, comment *entity.Comment) (string, error) {
	scoreCtx, cancel := context.WithTimeout(ctx, m.cfg.SpamCheckTimeout)
	score := m.scorer.Score(scoreCtx, comment, job.Context)
	cancel()
	metrics.SpamScores.WithLabelValues(score.String()).Inc()

	transition := workflow.ResolveTransition(score)
	if err := m.apply(ctx, comment, transition); err != nil {
		return m.raceOrFail(comment.ID, transition, err)
	}

	// следующий шаг выполняется отдельной задачей, уже после коммита нового состояния
	if err := m.requeue(ctx, job); err != nil {
		return "", err
	}
	return outcomeAdvanced, nil
}

func (m *Moderation) publishComment(ctx context.Context, comment *entity.Comment) (string, error) {
	// состояние не меняется, отметка об уведомлении защищает от повторной отправки при редоставке
	claimed, err := m.commentRepo.ClaimNotification(ctx, comment.ID)
	if errors.Is(err, repo.ErrCommentNotFound) {
		return outcomeDropped, nil
	}
	if err != nil {
		return "", fmt.Errorf("claim notification of comment %d: %w", comment.ID, err)
	}
	if !claimed {
		log.Debugf("администратор уже уведомлен о комментарии %d, задача отброшена", comment.ID)
		return outcomeDropped, nil
	}

	notifyCtx, cancel := context.WithTimeout(ctx, m.cfg.NotifyTimeout)
	defer cancel()
	if err := m.notifier.NotifyNewComment(notifyCtx, comment); err != nil {
		log.Errorf("не удалось уведомить администратора о комментарии %d: %v", comment.ID, err)
	}
	return outcomeNotified, nil
}

func (m *Moderation) optimizePhoto(ctx context.Context, job *entity.ModerationJob, comment *entity.Comment) (string, error) {
	if comment.HasPhoto() {
		optimizeCtx, cancel := context.WithTimeout(ctx, m.cfg.OptimizeTimeout)
		err := m.optimizer.OptimizePhoto(optimizeCtx, *comment.PhotoFilename)
		cancel()
		switch {
		case errors.Is(err, repo.ErrPhotoNotFound):
			metrics.PhotoOptimizations.WithLabelValues("not_found").Inc()
			return "", fmt.Errorf("photo %s of comment %d: %w", *comment.PhotoFilename, comment.ID, err)
		case err != nil:
			metrics.PhotoOptimizations.WithLabelValues("failed").Inc()
			return "", fmt.Errorf("optimize photo of comment %d: %w", comment.ID, err)
		}
		metrics.PhotoOptimizations.WithLabelValues("ok").Inc()
	}

	if err := m.apply(ctx, comment, workflow.Optimize); err != nil {
		return m.raceOrFail(comment.ID, workflow.Optimize, err)
	}
	if err := m.requeue(ctx, job); err != nil {
		return "", err
	}
	return outcomeAdvanced, nil
}

func (m *Moderation) review(ctx context.Context, job *entity.ModerationJob) (string, error) {
	comment, err := m.loadComment(ctx, job.CommentID)
	if errors.Is(err, repo.ErrCommentNotFound) {
		log.Debugf("комментарий %d не найден, решение администратора отброшено", job.CommentID)
		return outcomeDropped, nil
	}
	if err != nil {
		return "", fmt.Errorf("load comment %d: %w", job.CommentID, err)
	}

	if job.Decision != entity.ReviewReject {
		log.Warnf("неизвестное решение %q для комментария %d, задача отброшена", job.Decision, comment.ID)
		return outcomeDropped, nil
	}
	if !workflow.Can(comment, workflow.Reject) {
		log.Debugf("комментарий %d не ждет решения администратора (state %s, flagged %t), задача отброшена", comment.ID, comment.State, comment.Flagged)
		return outcomeDropped, nil
	}

	if err := m.apply(ctx, comment, workflow.Reject); err != nil {
		return m.raceOrFail(comment.ID, workflow.Reject, err)
	}
	return outcomeAdvanced, nil
}

// apply применяет переход и сохраняет новую стадию, только если в БД стадия еще прежняя
func (m *Moderation) apply(ctx context.Context, comment *entity.Comment, transition workflow.Transition) error {
	prev, err := workflow.Apply(comment, transition)
	if err != nil {
		return err
	}
	if err := m.commentRepo.SwapStage(ctx, comment.ID, prev, comment.Stage()); err != nil {
		return err
	}
	metrics.TransitionsApplied.WithLabelValues(string(transition)).Inc()
	log.Infof("комментарий %d: %s, %s -> %s", comment.ID, transition, prev.State, comment.State)
	return nil
}

// raceOrFail отличает проигранную гонку с другой доставкой той же задачи от настоящей ошибки
func (m *Moderation) raceOrFail(commentID int, transition workflow.Transition, err error) (string, error) {
	if errors.Is(err, repo.ErrStageConflict) || errors.Is(err, repo.ErrCommentNotFound) {
		log.Debugf("комментарий %d изменен параллельно, переход %s пропущен: %v", commentID, transition, err)
		return outcomeDropped, nil
	}
	return "", fmt.Errorf("apply %s to comment %d: %w", transition, commentID, err)
}

func (m *Moderation) requeue(ctx context.Context, job *entity.ModerationJob) error {
	next := &entity.ModerationJob{
		JobID:     job.JobID,
		Type:      entity.JobModerate,
		CommentID: job.CommentID,
		Context:   job.Context,
		Attempt:   1,
	}
	if err := m.queue.Enqueue(ctx, next); err != nil {
		return fmt.Errorf("requeue comment %d: %w", job.CommentID, err)
	}
	return nil
}
