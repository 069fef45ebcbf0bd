package repo

import (
	"context"
	"errors"
	"io"
)

type PhotoStorage interface {
	// PutPhoto сохраняет фото под именем name, заменяя существующее
	PutPhoto(ctx context.Context, name string, r io.Reader, size int64) error
	// FetchPhoto скачивает фото в локальный файл dst
	FetchPhoto(ctx context.Context, name string, dst string) error
	// DeletePhoto удаляет фото, отсутствие фото ошибкой не считается
	DeletePhoto(ctx context.Context, name string) error
}

// LocalPhotoStorage реализуют хранилища, в которых фото лежит прямо на диске
type LocalPhotoStorage interface {
	PhotoStorage
	PhotoPath(name string) string
}

var (
	ErrPhotoNotFound = errors.New("photo not found")
)
