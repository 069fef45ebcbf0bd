package http

import (
	"context"
	"errors"
	"guestbook-backend/internal/repo"
	"guestbook-backend/internal/usecase"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ops - служебные ручки воркера: проверка здоровья, метрики и ручное управление цепочками
type Ops struct {
	commentUseCase usecase.Comment
	db             Pinger
}

func NewOps(commentUseCase usecase.Comment, db Pinger) *Ops {
	return &Ops{
		commentUseCase: commentUseCase,
		db:             db,
	}
}

func (o *Ops) Configure(server *echo.Group) {
	server.GET("/healthz", o.Health)
	server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	server.POST("/comments/:id/redrive", o.Redrive)
	server.POST("/comments/:id/reject", o.Reject)
}

func (o *Ops) Health(e echo.Context) error {
	ctx, cancel := context.WithTimeout(e.Request().Context(), 2*time.Second)
	defer cancel()
	if err := o.db.PingContext(ctx); err != nil {
		log.Errorf("база данных недоступна: %v", err)
		return e.JSON(http.StatusServiceUnavailable, echo.Map{
			"status": "unavailable",
		})
	}
	return e.JSON(http.StatusOK, echo.Map{
		"status": "ok",
	})
}

func commentID(e echo.Context) (int, bool) {
	id, err := strconv.Atoi(e.Param("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (o *Ops) Redrive(e echo.Context) error {
	id, ok := commentID(e)
	if !ok {
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный ID комментария",
		})
	}

	err := o.commentUseCase.Redrive(e.Request().Context(), id)
	switch {
	case errors.Is(err, repo.ErrCommentNotFound):
		return e.JSON(http.StatusNotFound, echo.Map{
			"error": "Комментарий не найден",
		})
	case errors.Is(err, usecase.ErrCommentFinished):
		return e.JSON(http.StatusConflict, echo.Map{
			"error": "Модерация комментария уже завершена",
		})
	case err != nil:
		return e.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return e.JSON(http.StatusAccepted, echo.Map{
		"comment_id": id,
	})
}

func (o *Ops) Reject(e echo.Context) error {
	id, ok := commentID(e)
	if !ok {
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный ID комментария",
		})
	}

	err := o.commentUseCase.Reject(e.Request().Context(), id)
	switch {
	case errors.Is(err, repo.ErrCommentNotFound):
		return e.JSON(http.StatusNotFound, echo.Map{
			"error": "Комментарий не найден",
		})
	case errors.Is(err, usecase.ErrNotUnderReview):
		return e.JSON(http.StatusConflict, echo.Map{
			"error": "Комментарий не ожидает проверки администратором",
		})
	case err != nil:
		return e.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return e.JSON(http.StatusAccepted, echo.Map{
		"comment_id": id,
	})
}
