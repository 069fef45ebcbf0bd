package entity

import (
	"io"
	"time"
)

type CommentState string

const (
	CommentSubmitted CommentState = "submitted"
	CommentAccepted  CommentState = "accepted"
	CommentPublished CommentState = "published"
	CommentSpam      CommentState = "spam"
	CommentRejected  CommentState = "rejected"
)

// Valid проверяет, что состояние входит в закрытый набор значений
func (s CommentState) Valid() bool {
	switch s {
	case CommentSubmitted, CommentAccepted, CommentPublished, CommentSpam, CommentRejected:
		return true
	}
	return false
}

// Terminal возвращает true для состояний без исходящих переходов
func (s CommentState) Terminal() bool {
	return s == CommentPublished || s == CommentSpam || s == CommentRejected
}

// Stage - часть комментария, которой управляет workflow. По ней же делается
// условное обновление строки в БД
type Stage struct {
	State          CommentState `json:"state" db:"state"`
	Flagged        bool         `json:"flagged" db:"flagged"`
	PhotoOptimized bool         `json:"photo_optimized" db:"photo_optimized"`
}

type Comment struct {
	ID                int               `json:"id" db:"id"`
	ConferenceID      int               `json:"conference_id" db:"conference_id"`
	Author            string            `json:"author" db:"author"`
	Text              string            `json:"text" db:"text"`
	Email             string            `json:"email" db:"email"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	PhotoFilename     *string           `json:"photo_filename" db:"photo_filename"`
	State             CommentState      `json:"state" db:"state"`
	Flagged           bool              `json:"flagged" db:"flagged"`
	PhotoOptimized    bool              `json:"photo_optimized" db:"photo_optimized"`
	NotifiedAt        *time.Time        `json:"notified_at" db:"notified_at"`
	RedriveCount      int               `json:"redrive_count" db:"redrive_count"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
	SubmissionContext map[string]string `json:"submission_context" db:"-"`
}

// HasPhoto сообщает, прикреплено ли к комментарию фото
func (c *Comment) HasPhoto() bool {
	return c.PhotoFilename != nil && *c.PhotoFilename != ""
}

func (c *Comment) Stage() Stage {
	return Stage{
		State:          c.State,
		Flagged:        c.Flagged,
		PhotoOptimized: c.PhotoOptimized,
	}
}

func (c *Comment) SetStage(stage Stage) {
	c.State = stage.State
	c.Flagged = stage.Flagged
	c.PhotoOptimized = stage.PhotoOptimized
}

type SubmitCommentRequest struct {
	ConferenceID int               `json:"conference_id" validate:"gt=0"`
	Author       string            `json:"author" validate:"required,max=255"`
	Email        string            `json:"email" validate:"required,email,max=255"`
	Text         string            `json:"text" validate:"required"`
	Photo        *Photo            `json:"-"`
	Context      map[string]string `json:"context"`
}

// Photo - загружаемое вместе с комментарием изображение
type Photo struct {
	Filename string
	Size     int64
	RawBytes io.Reader
}
