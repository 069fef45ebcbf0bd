package repo

import (
	"context"
	"errors"
	"guestbook-backend/internal/entity"
)

type Conference interface {
	// AddConference добавляет конференцию
	AddConference(ctx context.Context, conference *entity.Conference) (int, error)
	// GetConference возвращает конференцию вместе с ID ее комментариев
	GetConference(ctx context.Context, conferenceID int) (*entity.Conference, error)
	// DeleteConference удаляет конференцию и все ее комментарии одной транзакцией.
	// Возвращает имена фото удаленных комментариев
	DeleteConference(ctx context.Context, conferenceID int) ([]string, error)
}

var (
	ErrConferenceNotFound = errors.New("conference not found")
)
