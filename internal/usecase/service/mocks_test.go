package service_test

import (
	"context"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/repo"
	"io"
	"sync"
	"time"
)

type stageSwap struct {
	commentID int
	from      entity.Stage
	to        entity.Stage
}

// memCommentStore - хранилище комментариев в памяти с той же условной заменой стадии, что и в БД
type memCommentStore struct {
	mu       sync.Mutex
	comments map[int]*entity.Comment
	nextID   int
	swaps    []stageSwap

	getErr     error
	swapErr    error
	claimErr   error
	beforeSwap func(store *memCommentStore, commentID int)
}

func newMemCommentStore() *memCommentStore {
	return &memCommentStore{comments: map[int]*entity.Comment{}, nextID: 1}
}

func (s *memCommentStore) put(comment *entity.Comment) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if comment.ID == 0 {
		comment.ID = s.nextID
		s.nextID++
	}
	if comment.State == "" {
		comment.State = entity.CommentSubmitted
	}
	c := *comment
	s.comments[c.ID] = &c
	return c.ID
}

func (s *memCommentStore) get(commentID int) *entity.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (s *memCommentStore) remove(commentID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.comments, commentID)
}

func (s *memCommentStore) setStage(commentID int, stage entity.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[commentID].SetStage(stage)
}

func (s *memCommentStore) swapCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.swaps)
}

func (s *memCommentStore) GetComment(_ context.Context, commentID int) (*entity.Comment, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	c := s.get(commentID)
	if c == nil {
		return nil, repo.ErrCommentNotFound
	}
	return c, nil
}

func (s *memCommentStore) AddComment(_ context.Context, comment *entity.Comment) (int, error) {
	comment.CreatedAt = time.Now()
	comment.UpdatedAt = comment.CreatedAt
	id := s.put(comment)
	comment.ID = id
	return id, nil
}

func (s *memCommentStore) SwapStage(_ context.Context, commentID int, expected, next entity.Stage) error {
	if s.beforeSwap != nil {
		s.beforeSwap(s, commentID)
	}
	if s.swapErr != nil {
		return s.swapErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return repo.ErrCommentNotFound
	}
	if c.Stage() != expected {
		return repo.ErrStageConflict
	}
	c.SetStage(next)
	c.UpdatedAt = time.Now()
	s.swaps = append(s.swaps, stageSwap{commentID: commentID, from: expected, to: next})
	return nil
}

func (s *memCommentStore) ClaimNotification(_ context.Context, commentID int) (bool, error) {
	if s.claimErr != nil {
		return false, s.claimErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return false, repo.ErrCommentNotFound
	}
	if c.NotifiedAt != nil {
		return false, nil
	}
	now := time.Now()
	c.NotifiedAt = &now
	return true, nil
}

func (s *memCommentStore) GetStalledComments(_ context.Context, olderThan time.Time, maxRedrives, limit int) ([]*entity.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*entity.Comment
	for _, c := range s.comments {
		if len(res) == limit {
			break
		}
		if !c.UpdatedAt.Before(olderThan) {
			continue
		}
		if maxRedrives > 0 && c.RedriveCount >= maxRedrives {
			continue
		}
		if c.State == entity.CommentSubmitted || (c.State == entity.CommentAccepted && c.NotifiedAt == nil) {
			cp := *c
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (s *memCommentStore) MarkRedriven(_ context.Context, commentID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return repo.ErrCommentNotFound
	}
	c.RedriveCount++
	c.UpdatedAt = time.Now()
	return nil
}

// age сдвигает updated_at в прошлое, как будто комментарий давно не менялся
func (s *memCommentStore) age(commentID int, by time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[commentID].UpdatedAt = time.Now().Add(-by)
}

type memQueue struct {
	mu   sync.Mutex
	jobs []*entity.ModerationJob
	err  error
}

func (q *memQueue) Enqueue(_ context.Context, job *entity.ModerationJob) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *job
	q.jobs = append(q.jobs, &cp)
	return nil
}

func (q *memQueue) pop() *entity.ModerationJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job
}

func (q *memQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// mockScorer по умолчанию берет оценку из контекста отправки (ключ spam_score)
type mockScorer struct {
	scoreFn func(ctx context.Context, comment *entity.Comment, submission map[string]string) entity.SpamScore
	calls   int
}

func (m *mockScorer) Score(ctx context.Context, comment *entity.Comment, submission map[string]string) entity.SpamScore {
	m.calls++
	if m.scoreFn != nil {
		return m.scoreFn(ctx, comment, submission)
	}
	switch submission["spam_score"] {
	case "blatant":
		return entity.SpamScoreBlatant
	case "ambiguous":
		return entity.SpamScoreAmbiguous
	}
	return entity.SpamScoreHam
}

type mockOptimizer struct {
	optimizeFn func(ctx context.Context, name string) error
	calls      []string
}

func (m *mockOptimizer) OptimizePhoto(ctx context.Context, name string) error {
	m.calls = append(m.calls, name)
	if m.optimizeFn != nil {
		return m.optimizeFn(ctx, name)
	}
	return nil
}

type mockNotifier struct {
	notifyFn func(ctx context.Context, comment *entity.Comment) error
	notified []int
}

func (m *mockNotifier) NotifyNewComment(ctx context.Context, comment *entity.Comment) error {
	m.notified = append(m.notified, comment.ID)
	if m.notifyFn != nil {
		return m.notifyFn(ctx, comment)
	}
	return nil
}

type mockPhotoStorage struct {
	putFn    func(ctx context.Context, name string, r io.Reader, size int64) error
	deleteFn func(ctx context.Context, name string) error
	put      []string
	deleted  []string
}

func (m *mockPhotoStorage) PutPhoto(ctx context.Context, name string, r io.Reader, size int64) error {
	m.put = append(m.put, name)
	if m.putFn != nil {
		return m.putFn(ctx, name, r, size)
	}
	return nil
}

func (m *mockPhotoStorage) FetchPhoto(context.Context, string, string) error {
	return nil
}

func (m *mockPhotoStorage) DeletePhoto(ctx context.Context, name string) error {
	m.deleted = append(m.deleted, name)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, name)
	}
	return nil
}

type mockConferenceRepo struct {
	addFn    func(ctx context.Context, conference *entity.Conference) (int, error)
	deleteFn func(ctx context.Context, conferenceID int) ([]string, error)
}

func (m *mockConferenceRepo) AddConference(ctx context.Context, conference *entity.Conference) (int, error) {
	if m.addFn != nil {
		return m.addFn(ctx, conference)
	}
	return 1, nil
}

func (m *mockConferenceRepo) GetConference(context.Context, int) (*entity.Conference, error) {
	return nil, repo.ErrConferenceNotFound
}

func (m *mockConferenceRepo) DeleteConference(ctx context.Context, conferenceID int) ([]string, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, conferenceID)
	}
	return nil, nil
}

type mockModeration struct {
	processFn func(ctx context.Context, job *entity.ModerationJob) error
}

func (m *mockModeration) Process(ctx context.Context, job *entity.ModerationJob) error {
	if m.processFn != nil {
		return m.processFn(ctx, job)
	}
	return nil
}

// fakeConsumer отдает задачи из канала и запоминает ack/nack
type fakeConsumer struct {
	deliveries chan *entity.Delivery
	ackFn      func(delivery *entity.Delivery) error
	nackFn     func(delivery *entity.Delivery) error

	mu     sync.Mutex
	acked  []string
	nacked map[string]error
	closed bool
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{deliveries: make(chan *entity.Delivery, 16), nacked: map[string]error{}}
}

func (c *fakeConsumer) NewConsumer() repo.ModerationConsumer {
	return c
}

func (c *fakeConsumer) Fetch(ctx context.Context) (*entity.Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case d := <-c.deliveries:
		return d, nil
	}
}

func (c *fakeConsumer) Ack(_ context.Context, delivery *entity.Delivery) error {
	if c.ackFn != nil {
		if err := c.ackFn(delivery); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked = append(c.acked, delivery.Job.JobID)
	return nil
}

func (c *fakeConsumer) Nack(_ context.Context, delivery *entity.Delivery, cause error) error {
	if c.nackFn != nil {
		if err := c.nackFn(delivery); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nacked[delivery.Job.JobID] = cause
	return nil
}

func (c *fakeConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConsumer) handled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acked) + len(c.nacked)
}
