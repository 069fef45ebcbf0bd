package imageoptimizer

import (
	"bytes"
	"context"
	"errors"
	"guestbook-backend/internal/repo"
	"guestbook-backend/internal/repo/filesystem"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func pngOfSize(n int) []byte {
	b := make([]byte, n)
	copy(b, pngMagic)
	return b
}

type fakeRunner struct {
	output []byte
	err    error
	calls  []Command
}

// Run пишет output в последний аргумент, как это делает convert
func (r *fakeRunner) Run(_ context.Context, cmd Command) ([]byte, error) {
	r.calls = append(r.calls, cmd)
	if r.err != nil {
		return []byte("convert: no decode delegate"), r.err
	}
	dst := cmd.Args[len(cmd.Args)-1]
	return nil, os.WriteFile(dst, r.output, 0o644)
}

func writePhoto(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestOptimizeReplacesWithSmallerOutput(t *testing.T) {
	dir := t.TempDir()
	path := writePhoto(t, dir, "photo.png", pngOfSize(4096))
	runner := &fakeRunner{output: pngOfSize(256)}

	replaced, err := NewOptimizer(runner, Config{}).Optimize(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, replaced)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 256)
	assert.Equal(t, []string{"photo.png"}, dirEntries(t, dir))

	require.Len(t, runner.calls, 1)
	cmd := runner.calls[0]
	assert.Equal(t, "convert", cmd.Name)
	assert.Equal(t, path, cmd.Args[0])
	assert.Equal(t, []string{"-resize", "200x150", "-strip"}, cmd.Args[1:4])
	assert.Equal(t, ".png", filepath.Ext(cmd.Args[4]))
	assert.Equal(t, dir, filepath.Dir(cmd.Args[4]))
}

func TestOptimizeKeepsOriginalWhenOutputIsNotSmaller(t *testing.T) {
	dir := t.TempDir()
	original := pngOfSize(128)
	path := writePhoto(t, dir, "photo.png", original)

	replaced, err := NewOptimizer(&fakeRunner{output: pngOfSize(512)}, Config{}).Optimize(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, replaced)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, got)
	assert.Equal(t, []string{"photo.png"}, dirEntries(t, dir))
}

func TestOptimizeFailureLeavesOriginalUntouched(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{name: "command failed", runner: &fakeRunner{err: errors.New("exit status 1")}},
		{name: "empty output", runner: &fakeRunner{output: []byte{}}},
		{name: "not an image", runner: &fakeRunner{output: []byte("plain text")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			original := pngOfSize(2048)
			path := writePhoto(t, dir, "photo.png", original)

			_, err := NewOptimizer(tt.runner, Config{}).Optimize(context.Background(), path)
			require.ErrorIs(t, err, ErrOptimizeFailed)

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, original, got)
			assert.Equal(t, []string{"photo.png"}, dirEntries(t, dir))
		})
	}
}

func TestOptimizeMissingPhoto(t *testing.T) {
	runner := &fakeRunner{}
	_, err := NewOptimizer(runner, Config{}).Optimize(context.Background(), filepath.Join(t.TempDir(), "gone.png"))
	require.ErrorIs(t, err, repo.ErrPhotoNotFound)
	assert.NotErrorIs(t, err, ErrOptimizeFailed)
	assert.Empty(t, runner.calls)
}

func TestOptimizeRejectsNonImage(t *testing.T) {
	path := writePhoto(t, t.TempDir(), "notes.png", []byte("definitely not a picture"))
	runner := &fakeRunner{}

	_, err := NewOptimizer(runner, Config{}).Optimize(context.Background(), path)
	require.ErrorIs(t, err, ErrOptimizeFailed)
	assert.Empty(t, runner.calls)
}

func TestStoredOptimizesLocalPhotoInPlace(t *testing.T) {
	dir := t.TempDir()
	storage, err := filesystem.NewPhoto(dir)
	require.NoError(t, err)
	writePhoto(t, dir, "a.png", pngOfSize(1024))

	stored := NewStored(NewOptimizer(&fakeRunner{output: pngOfSize(100)}, Config{}), storage, t.TempDir())
	require.NoError(t, stored.OptimizePhoto(context.Background(), "a.png"))

	got, err := os.ReadFile(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	assert.Len(t, got, 100)
}

type memoryStorage struct {
	photos map[string][]byte
	puts   int
}

func (m *memoryStorage) PutPhoto(_ context.Context, name string, r io.Reader, _ int64) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.photos[name] = b
	m.puts++
	return nil
}

func (m *memoryStorage) FetchPhoto(_ context.Context, name string, dst string) error {
	b, ok := m.photos[name]
	if !ok {
		return repo.ErrPhotoNotFound
	}
	return os.WriteFile(dst, b, 0o644)
}

func (m *memoryStorage) DeletePhoto(_ context.Context, name string) error {
	delete(m.photos, name)
	return nil
}

func TestStoredUploadsOptimizedRemotePhoto(t *testing.T) {
	storage := &memoryStorage{photos: map[string][]byte{"b.png": pngOfSize(1024)}}
	stored := NewStored(NewOptimizer(&fakeRunner{output: pngOfSize(64)}, Config{}), storage, t.TempDir())

	require.NoError(t, stored.OptimizePhoto(context.Background(), "b.png"))
	assert.Equal(t, 1, storage.puts)
	assert.True(t, bytes.Equal(pngOfSize(64), storage.photos["b.png"]))
}

func TestStoredRemoteFailureKeepsObject(t *testing.T) {
	original := pngOfSize(1024)
	storage := &memoryStorage{photos: map[string][]byte{"b.png": original}}
	stored := NewStored(NewOptimizer(&fakeRunner{err: errors.New("killed")}, Config{}), storage, t.TempDir())

	require.ErrorIs(t, stored.OptimizePhoto(context.Background(), "b.png"), ErrOptimizeFailed)
	assert.Zero(t, storage.puts)
	assert.Equal(t, original, storage.photos["b.png"])
}

func TestStoredRemoteMissingPhoto(t *testing.T) {
	storage := &memoryStorage{photos: map[string][]byte{}}
	stored := NewStored(NewOptimizer(&fakeRunner{}, Config{}), storage, t.TempDir())

	require.ErrorIs(t, stored.OptimizePhoto(context.Background(), "missing.png"), repo.ErrPhotoNotFound)
}
