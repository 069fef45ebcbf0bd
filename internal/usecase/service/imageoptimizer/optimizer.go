package imageoptimizer

import (
	"context"
	"errors"
	"fmt"
	"guestbook-backend/internal/repo"
	"guestbook-backend/internal/usecase"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/gommon/log"
)

const (
	DefaultBin    = "convert"
	DefaultWidth  = 200
	DefaultHeight = 150
)

var (
	ErrOptimizeFailed = errors.New("photo optimization failed")
)

type Config struct {
	Bin    string
	Width  int
	Height int
}

// Optimizer уменьшает фото внешней утилитой (по умолчанию ImageMagick convert)
type Optimizer struct {
	runner CommandRunner
	cfg    Config
}

func NewOptimizer(runner CommandRunner, cfg Config) *Optimizer {
	if cfg.Bin == "" {
		cfg.Bin = DefaultBin
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	return &Optimizer{
		runner: runner,
		cfg:    cfg,
	}
}

func isImage(mt *mimetype.MIME) bool {
	return strings.HasPrefix(mt.String(), "image/")
}

// Optimize заменяет файл path уменьшенной копией. Возвращает false, если оставлен оригинал,
// потому что результат оказался не меньше. При ошибке оригинал не меняется.
func (o *Optimizer) Optimize(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("%s: %w", path, repo.ErrPhotoNotFound)
	case err != nil:
		return false, fmt.Errorf("%w: %v", ErrOptimizeFailed, err)
	case info.IsDir():
		return false, fmt.Errorf("%w: %s is a directory", ErrOptimizeFailed, path)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrOptimizeFailed, err)
	}
	if !isImage(mt) {
		return false, fmt.Errorf("%w: %s is %s", ErrOptimizeFailed, path, mt.String())
	}

	// расширение временного файла определяет формат, в котором convert запишет результат
	tmp, err := os.CreateTemp(filepath.Dir(path), ".optimize-*"+mt.Extension())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrOptimizeFailed, err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpName) }()

	size := strconv.Itoa(o.cfg.Width) + "x" + strconv.Itoa(o.cfg.Height)
	out, err := o.runner.Run(ctx, Command{
		Name: o.cfg.Bin,
		Args: []string{path, "-resize", size, "-strip", tmpName},
	})
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v: %s", ErrOptimizeFailed, o.cfg.Bin, err, strings.TrimSpace(string(out)))
	}

	outInfo, err := os.Stat(tmpName)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrOptimizeFailed, err)
	}
	if outInfo.Size() == 0 {
		return false, fmt.Errorf("%w: %s produced an empty file", ErrOptimizeFailed, o.cfg.Bin)
	}
	outType, err := mimetype.DetectFile(tmpName)
	if err != nil || !isImage(outType) {
		return false, fmt.Errorf("%w: %s produced a non-image file", ErrOptimizeFailed, o.cfg.Bin)
	}

	if outInfo.Size() >= info.Size() {
		log.Debugf("оптимизированное фото %s не меньше исходного (%d >= %d), оставляем исходное", path, outInfo.Size(), info.Size())
		return false, nil
	}
	if err := os.Rename(tmpName, path); err != nil {
		return false, fmt.Errorf("%w: %v", ErrOptimizeFailed, err)
	}
	log.Debugf("фото %s оптимизировано: %d -> %d байт", path, info.Size(), outInfo.Size())
	return true, nil
}

// Stored оптимизирует фото прямо в хранилище комментариев
type Stored struct {
	optimizer *Optimizer
	storage   repo.PhotoStorage
	tmpDir    string
}

func NewStored(optimizer *Optimizer, storage repo.PhotoStorage, tmpDir string) usecase.ImageOptimizer {
	return &Stored{
		optimizer: optimizer,
		storage:   storage,
		tmpDir:    tmpDir,
	}
}

func (s *Stored) OptimizePhoto(ctx context.Context, name string) error {
	if local, ok := s.storage.(repo.LocalPhotoStorage); ok {
		_, err := s.optimizer.Optimize(ctx, local.PhotoPath(name))
		return err
	}

	dir, err := os.MkdirTemp(s.tmpDir, "photo-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOptimizeFailed, err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, filepath.Base(name))
	if err := s.storage.FetchPhoto(ctx, name, path); err != nil {
		return fmt.Errorf("fetch photo %s: %w", name, err)
	}

	replaced, err := s.optimizer.Optimize(ctx, path)
	if err != nil || !replaced {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOptimizeFailed, err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOptimizeFailed, err)
	}
	if err := s.storage.PutPhoto(ctx, name, f, info.Size()); err != nil {
		return fmt.Errorf("upload optimized photo %s: %w", name, err)
	}
	return nil
}
