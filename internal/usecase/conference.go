package usecase

import (
	"context"
	"guestbook-backend/internal/entity"
)

type Conference interface {
	// AddConference добавляет конференцию
	AddConference(ctx context.Context, conference *entity.Conference) (int, error)
	// DeleteConference удаляет конференцию вместе с комментариями и их фото
	DeleteConference(ctx context.Context, conferenceID int) error
}
