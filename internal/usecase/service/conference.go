package service

import (
	"context"
	"fmt"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/repo"
	"guestbook-backend/internal/usecase"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
)

type Conference struct {
	conferenceRepo repo.Conference
	photoRepo      repo.PhotoStorage
	validate       *validator.Validate
}

func NewConference(conferenceRepo repo.Conference, photoRepo repo.PhotoStorage) usecase.Conference {
	return &Conference{
		conferenceRepo: conferenceRepo,
		photoRepo:      photoRepo,
		validate:       validator.New(),
	}
}

func (c *Conference) AddConference(ctx context.Context, conference *entity.Conference) (int, error) {
	if err := c.validate.Struct(conference); err != nil {
		return 0, fmt.Errorf("%w: %v", usecase.ErrInvalidConference, err)
	}
	return c.conferenceRepo.AddConference(ctx, conference)
}

func (c *Conference) DeleteConference(ctx context.Context, conferenceID int) error {
	photos, err := c.conferenceRepo.DeleteConference(ctx, conferenceID)
	if err != nil {
		return err
	}

	// строки уже удалены, оставшиеся файлы ни на что не влияют, поэтому ошибки только логируем
	for _, photo := range photos {
		if err := c.photoRepo.DeletePhoto(ctx, photo); err != nil {
			log.Errorf("не удалось удалить фото %s конференции %d: %v", photo, conferenceID, err)
		}
	}
	log.Infof("конференция %d удалена вместе с %d фото", conferenceID, len(photos))
	return nil
}
