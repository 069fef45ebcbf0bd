package cockroach

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/repo"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const commentTable = "guestbook_comment"

var commentColumns = []string{
	"id",
	"conference_id",
	"author",
	"text",
	"email",
	"created_at",
	"updated_at",
	"photo_filename",
	"state",
	"flagged",
	"photo_optimized",
	"notified_at",
	"redrive_count",
	"submission_context",
}

// psql - построитель запросов с плейсхолдерами в стиле postgres ($1, $2, ...)
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type commentRow struct {
	entity.Comment
	SubmissionContext []byte `db:"submission_context"`
}

func (r *commentRow) toEntity() (*entity.Comment, error) {
	comment := r.Comment
	if len(r.SubmissionContext) > 0 {
		if err := json.Unmarshal(r.SubmissionContext, &comment.SubmissionContext); err != nil {
			return nil, fmt.Errorf("decode submission context of comment %d: %w", comment.ID, err)
		}
	}
	return &comment, nil
}

type Comment struct {
	db *sqlx.DB
}

func NewComment(db *sqlx.DB) repo.Comment {
	return &Comment{
		db: db,
	}
}

func (c *Comment) GetComment(ctx context.Context, commentID int) (*entity.Comment, error) {
	query, args, err := psql.Select(commentColumns...).
		From(commentTable).
		Where(sq.Eq{"id": commentID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	row := &commentRow{}
	err = c.db.GetContext(ctx, row, query, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, repo.ErrCommentNotFound
	case err != nil:
		return nil, err
	}
	return row.toEntity()
}

func (c *Comment) AddComment(ctx context.Context, comment *entity.Comment) (int, error) {
	if comment.SubmissionContext == nil {
		comment.SubmissionContext = map[string]string{}
	}
	submissionContext, err := json.Marshal(comment.SubmissionContext)
	if err != nil {
		return 0, err
	}
	if comment.State == "" {
		comment.State = entity.CommentSubmitted
	}

	// created_at выставляет БД, дальше оно не меняется
	var commentID int
	err = c.db.QueryRowxContext(ctx, `
		INSERT INTO guestbook_comment (conference_id, author, text, email, photo_filename, state, submission_context)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`,
		comment.ConferenceID,
		comment.Author,
		comment.Text,
		comment.Email,
		comment.PhotoFilename,
		comment.State,
		submissionContext,
	).Scan(&commentID, &comment.CreatedAt, &comment.UpdatedAt)
	if isForeignKeyViolation(err) {
		return 0, repo.ErrConferenceNotFound
	}
	if err != nil {
		return 0, err
	}
	comment.ID = commentID
	return commentID, nil
}

func swapStageQuery(commentID int, expected, next entity.Stage) (string, []interface{}, error) {
	return psql.Update(commentTable).
		Set("state", next.State).
		Set("flagged", next.Flagged).
		Set("photo_optimized", next.PhotoOptimized).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{
			"id":              commentID,
			"state":           expected.State,
			"flagged":         expected.Flagged,
			"photo_optimized": expected.PhotoOptimized,
		}).
		ToSql()
}

func (c *Comment) SwapStage(ctx context.Context, commentID int, expected, next entity.Stage) error {
	query, args, err := swapStageQuery(commentID, expected, next)
	if err != nil {
		return err
	}

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// строка не обновилась: либо комментарий удален, либо его стадию уже поменял другой воркер
	var exists bool
	if err := c.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM guestbook_comment WHERE id = $1)`, commentID); err != nil {
		return err
	}
	if !exists {
		return repo.ErrCommentNotFound
	}
	return repo.ErrStageConflict
}

func (c *Comment) ClaimNotification(ctx context.Context, commentID int) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`UPDATE guestbook_comment SET notified_at = now() WHERE id = $1 AND notified_at IS NULL`,
		commentID,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func stalledCommentsQuery(olderThan time.Time, maxRedrives, limit int) (string, []interface{}, error) {
	query := psql.Select(commentColumns...).
		From(commentTable).
		Where(sq.Lt{"updated_at": olderThan}).
		Where(sq.Or{
			sq.Eq{"state": entity.CommentSubmitted},
			sq.And{
				sq.Eq{"state": entity.CommentAccepted},
				sq.Eq{"notified_at": nil},
			},
		})
	if maxRedrives > 0 {
		query = query.Where(sq.Lt{"redrive_count": maxRedrives})
	}
	return query.
		OrderBy("updated_at").
		Limit(uint64(limit)).
		ToSql()
}

func (c *Comment) GetStalledComments(ctx context.Context, olderThan time.Time, maxRedrives, limit int) ([]*entity.Comment, error) {
	query, args, err := stalledCommentsQuery(olderThan, maxRedrives, limit)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var comments []*entity.Comment
	for rows.Next() {
		row := &commentRow{}
		if err := rows.StructScan(row); err != nil {
			return nil, err
		}
		comment, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Comment) MarkRedriven(ctx context.Context, commentID int) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE guestbook_comment SET redrive_count = redrive_count + 1, updated_at = now() WHERE id = $1`,
		commentID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repo.ErrCommentNotFound
	}
	return nil
}
