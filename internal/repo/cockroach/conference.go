package cockroach

import (
	"context"
	"database/sql"
	"errors"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/repo"

	"github.com/jmoiron/sqlx"
)

type Conference struct {
	db *sqlx.DB
}

func NewConference(db *sqlx.DB) repo.Conference {
	return &Conference{db: db}
}

func (c *Conference) AddConference(ctx context.Context, conference *entity.Conference) (int, error) {
	var id int
	err := c.db.QueryRowContext(ctx,
		"INSERT INTO conference (city, year, is_international) VALUES ($1, $2, $3) RETURNING id",
		conference.City, conference.Year, conference.IsInternational,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	conference.ID = id
	return id, nil
}

func (c *Conference) GetConference(ctx context.Context, conferenceID int) (*entity.Conference, error) {
	conference := &entity.Conference{}
	err := c.db.GetContext(ctx, conference,
		"SELECT id, city, year, is_international FROM conference WHERE id = $1", conferenceID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, repo.ErrConferenceNotFound
	case err != nil:
		return nil, err
	}

	conference.CommentIDs = make([]int, 0)
	err = c.db.SelectContext(ctx, &conference.CommentIDs,
		"SELECT id FROM guestbook_comment WHERE conference_id = $1 ORDER BY created_at DESC", conferenceID)
	if err != nil {
		return nil, err
	}
	return conference, nil
}

func (c *Conference) DeleteConference(ctx context.Context, conferenceID int) ([]string, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// блокируем конференцию, чтобы к ней не добавились комментарии, пока мы их удаляем
	var id int
	err = tx.GetContext(ctx, &id, "SELECT id FROM conference WHERE id = $1 FOR UPDATE", conferenceID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, repo.ErrConferenceNotFound
	case err != nil:
		return nil, err
	}

	photos := make([]string, 0)
	err = tx.SelectContext(ctx, &photos, `
		SELECT photo_filename FROM guestbook_comment
		WHERE conference_id = $1 AND photo_filename IS NOT NULL AND photo_filename <> ''
	`, conferenceID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM guestbook_comment WHERE conference_id = $1", conferenceID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM conference WHERE id = $1", conferenceID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return photos, nil
}
