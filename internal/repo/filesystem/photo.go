package filesystem

import (
	"context"
	"errors"
	"fmt"
	"guestbook-backend/internal/repo"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Photo хранит фото в локальной директории
type Photo struct {
	dir string
}

func NewPhoto(dir string) (repo.LocalPhotoStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Photo{dir: dir}, nil
}

func (p *Photo) PhotoPath(name string) string {
	return filepath.Join(p.dir, filepath.Base(name))
}

func (p *Photo) PutPhoto(_ context.Context, name string, r io.Reader, _ int64) error {
	// пишем во временный файл и переименовываем, чтобы не оставить обрезанное фото
	tmp, err := os.CreateTemp(p.dir, ".upload-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.PhotoPath(name))
}

func (p *Photo) FetchPhoto(_ context.Context, name string, dst string) error {
	src, err := os.Open(p.PhotoPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return repo.ErrPhotoNotFound
	}
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy photo %s: %w", name, err)
	}
	return out.Close()
}

func (p *Photo) DeletePhoto(_ context.Context, name string) error {
	err := os.Remove(p.PhotoPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
