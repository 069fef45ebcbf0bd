package service

import (
	"context"
	"fmt"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/metrics"
	"guestbook-backend/internal/repo"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/labstack/gommon/log"
)

const redriveBatchSize = 100

type RedriverConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	// MaxRedrives - сколько раз комментарий перезапускается автоматически, 0 - без ограничения
	MaxRedrives int
}

// Redriver периодически перезапускает цепочки модерации, которые остановились
// (например, после того как задача ушла в DLQ или не была поставлена после коммита)
type Redriver struct {
	commentRepo repo.Comment
	queue       repo.ModerationQueue
	cfg         RedriverConfig
}

func NewRedriver(commentRepo repo.Comment, queue repo.ModerationQueue, cfg RedriverConfig) *Redriver {
	return &Redriver{
		commentRepo: commentRepo,
		queue:       queue,
		cfg:         cfg,
	}
}

// RedriveStalled ставит новую задачу для каждого комментария, не менявшегося дольше StaleAfter.
// Перезапуск сдвигает updated_at и увеличивает счетчик, поэтому комментарий, чья задача снова
// ушла в DLQ, не подбирается раньше следующего окна и не больше MaxRedrives раз.
// Возвращает число перезапущенных цепочек
func (r *Redriver) RedriveStalled(ctx context.Context) (int, error) {
	olderThan := time.Now().Add(-r.cfg.StaleAfter)
	comments, err := r.commentRepo.GetStalledComments(ctx, olderThan, r.cfg.MaxRedrives, redriveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("get stalled comments: %w", err)
	}

	redriven := 0
	for _, comment := range comments {
		if !inModeration(comment) {
			continue
		}
		if err := r.queue.Enqueue(ctx, newJob(comment, entity.JobModerate, "")); err != nil {
			return redriven, fmt.Errorf("redrive comment %d: %w", comment.ID, err)
		}
		if err := r.commentRepo.MarkRedriven(ctx, comment.ID); err != nil {
			return redriven, fmt.Errorf("mark comment %d redriven: %w", comment.ID, err)
		}
		metrics.Redrives.WithLabelValues("sweeper").Inc()
		redriven++
		log.Infof("цепочка модерации комментария %d перезапущена (state %s, перезапуск %d, обновлен %s)",
			comment.ID, comment.State, comment.RedriveCount+1, comment.UpdatedAt.Format(time.RFC3339))
		if r.cfg.MaxRedrives > 0 && comment.RedriveCount+1 >= r.cfg.MaxRedrives {
			log.Warnf("комментарий %d перезапущен автоматически %d раз, дальше только вручную", comment.ID, r.cfg.MaxRedrives)
		}
	}
	return redriven, nil
}

// Start запускает периодический перезапуск и блокируется до отмены ctx
func (r *Redriver) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(r.cfg.Interval),
		gocron.NewTask(func() {
			if _, err := r.RedriveStalled(ctx); err != nil {
				log.Errorf("ошибка перезапуска зависших комментариев: %v", err)
			}
		}),
		gocron.WithName("redrive-stalled-comments"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule redrive job: %w", err)
	}

	log.Infof("Запущен перезапуск зависших комментариев, интервал %s", r.cfg.Interval)
	s.Start()
	<-ctx.Done()
	log.Info("Остановка перезапуска зависших комментариев")
	return s.Shutdown()
}
