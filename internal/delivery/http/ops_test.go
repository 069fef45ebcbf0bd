package http

import (
	"context"
	"encoding/json"
	"errors"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/repo"
	"guestbook-backend/internal/usecase"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCommentUseCase struct {
	redriveFn func(ctx context.Context, commentID int) error
	rejectFn  func(ctx context.Context, commentID int) error
}

func (m *mockCommentUseCase) Submit(context.Context, *entity.SubmitCommentRequest) (int, error) {
	return 0, nil
}

func (m *mockCommentUseCase) Reject(ctx context.Context, commentID int) error {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, commentID)
	}
	return nil
}

func (m *mockCommentUseCase) Redrive(ctx context.Context, commentID int) error {
	if m.redriveFn != nil {
		return m.redriveFn(ctx, commentID)
	}
	return nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func newServer(comments usecase.Comment, db Pinger) *echo.Echo {
	e := echo.New()
	NewOps(comments, db).Configure(e.Group(""))
	return e
}

func do(t *testing.T, e *echo.Echo, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	body := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	healthy := newServer(&mockCommentUseCase{}, pingerFunc(func(context.Context) error { return nil }))
	rec, body := do(t, healthy, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	broken := newServer(&mockCommentUseCase{}, pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }))
	rec, _ = do(t, broken, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newServer(&mockCommentUseCase{}, pingerFunc(func(context.Context) error { return nil }))
	rec, _ := do(t, e, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRedrive(t *testing.T) {
	var got int
	comments := &mockCommentUseCase{redriveFn: func(_ context.Context, commentID int) error {
		got = commentID
		switch commentID {
		case 404:
			return repo.ErrCommentNotFound
		case 409:
			return usecase.ErrCommentFinished
		case 500:
			return errors.New("broker down")
		}
		return nil
	}}
	e := newServer(comments, pingerFunc(func(context.Context) error { return nil }))

	rec, body := do(t, e, http.MethodPost, "/comments/12/redrive")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 12, got)
	assert.Equal(t, float64(12), body["comment_id"])

	for _, code := range []int{404, 409, 500} {
		rec, _ := do(t, e, http.MethodPost, "/comments/"+strconv.Itoa(code)+"/redrive")
		assert.Equal(t, code, rec.Code)
	}

	rec, _ = do(t, e, http.MethodPost, "/comments/abc/redrive")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReject(t *testing.T) {
	comments := &mockCommentUseCase{rejectFn: func(_ context.Context, commentID int) error {
		if commentID == 2 {
			return usecase.ErrNotUnderReview
		}
		return nil
	}}
	e := newServer(comments, pingerFunc(func(context.Context) error { return nil }))

	rec, _ := do(t, e, http.MethodPost, "/comments/1/reject")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec, _ = do(t, e, http.MethodPost, "/comments/2/reject")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
