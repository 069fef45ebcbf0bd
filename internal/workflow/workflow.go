// Package workflow описывает конечный автомат модерации комментария.
//
// Таблица переходов неизменяемая и собирается один раз при загрузке пакета.
// Проверка Can ничего не меняет и может вызываться сколько угодно раз,
// Apply проверяет guard и только потом меняет стадию комментария.
package workflow

import (
	"errors"
	"fmt"

	"guestbook-backend/internal/entity"
)

type Transition string

const (
	Accept      Transition = "accept"
	MightBeSpam Transition = "might_be_spam"
	RejectSpam  Transition = "reject_spam"
	Publish     Transition = "publish"
	PublishHam  Transition = "publish_ham"
	Optimize    Transition = "optimize"
	Reject      Transition = "reject"
)

var (
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	ErrUnknownTransition    = errors.New("unknown transition")
)

type edge struct {
	name  Transition
	from  entity.CommentState
	to    entity.CommentState
	guard func(c *entity.Comment) bool
	// effect меняет флаги стадии помимо состояния
	effect func(stage *entity.Stage)
}

// Порядок строк важен только для Enabled
var table = []edge{
	{
		name:   Accept,
		from:   entity.CommentSubmitted,
		to:     entity.CommentAccepted,
		effect: func(s *entity.Stage) { s.Flagged = false },
	},
	{
		name:   MightBeSpam,
		from:   entity.CommentSubmitted,
		to:     entity.CommentAccepted,
		effect: func(s *entity.Stage) { s.Flagged = true },
	},
	{
		name: RejectSpam,
		from: entity.CommentSubmitted,
		to:   entity.CommentSpam,
	},
	{
		name:  Publish,
		from:  entity.CommentAccepted,
		to:    entity.CommentPublished,
		guard: func(c *entity.Comment) bool { return !c.HasPhoto() },
	},
	{
		name:  PublishHam,
		from:  entity.CommentAccepted,
		to:    entity.CommentPublished,
		guard: func(c *entity.Comment) bool { return c.HasPhoto() && c.PhotoOptimized },
	},
	{
		name:   Optimize,
		from:   entity.CommentAccepted,
		to:     entity.CommentAccepted,
		guard:  func(c *entity.Comment) bool { return c.HasPhoto() && !c.PhotoOptimized },
		effect: func(s *entity.Stage) { s.PhotoOptimized = true },
	},
	{
		// решение администратора по помеченному комментарию
		name:  Reject,
		from:  entity.CommentAccepted,
		to:    entity.CommentRejected,
		guard: func(c *entity.Comment) bool { return c.Flagged },
	},
}

var byName = func() map[Transition]edge {
	m := make(map[Transition]edge, len(table))
	for _, e := range table {
		m[e.name] = e
	}
	return m
}()

// Can сообщает, применим ли переход к комментарию в его текущей стадии
func Can(c *entity.Comment, t Transition) bool {
	e, ok := byName[t]
	if !ok || c == nil {
		return false
	}
	if c.State != e.from {
		return false
	}
	return e.guard == nil || e.guard(c)
}

// Next возвращает стадию, в которую перейдет комментарий, не меняя его
func Next(c *entity.Comment, t Transition) (entity.Stage, error) {
	e, ok := byName[t]
	if !ok {
		return entity.Stage{}, fmt.Errorf("%w: %s", ErrUnknownTransition, t)
	}
	if !Can(c, t) {
		return entity.Stage{}, fmt.Errorf("%w: %s from %s", ErrTransitionNotAllowed, t, c.State)
	}
	next := c.Stage()
	next.State = e.to
	if e.effect != nil {
		e.effect(&next)
	}
	return next, nil
}

// Apply проверяет guard и переводит комментарий в новую стадию.
// Возвращает стадию, в которой комментарий был до перехода
func Apply(c *entity.Comment, t Transition) (entity.Stage, error) {
	next, err := Next(c, t)
	if err != nil {
		return entity.Stage{}, err
	}
	prev := c.Stage()
	c.SetStage(next)
	return prev, nil
}

// Enabled возвращает все переходы, доступные из текущей стадии
func Enabled(c *entity.Comment) []Transition {
	var res []Transition
	for _, e := range table {
		if Can(c, e.name) {
			res = append(res, e.name)
		}
	}
	return res
}

// ResolveTransition выбирает переход accept-семейства по оценке спама
func ResolveTransition(score entity.SpamScore) Transition {
	switch score {
	case entity.SpamScoreBlatant:
		return RejectSpam
	case entity.SpamScoreAmbiguous:
		return MightBeSpam
	default:
		return Accept
	}
}

// Edges возвращает копию таблицы в виде троек from-transition-to
func Edges() []Edge {
	res := make([]Edge, 0, len(table))
	for _, e := range table {
		res = append(res, Edge{From: e.from, Transition: e.name, To: e.to})
	}
	return res
}

type Edge struct {
	From       entity.CommentState
	Transition Transition
	To         entity.CommentState
}
