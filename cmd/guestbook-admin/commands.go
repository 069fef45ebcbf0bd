package main

import (
	"fmt"
	"os"
	"path/filepath"

	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/repo"
	"guestbook-backend/internal/repo/cockroach"
	"guestbook-backend/internal/usecase/service"
	"guestbook-backend/pkg/goosehelper"

	"github.com/labstack/gommon/log"
	cli "github.com/urfave/cli/v2"
)

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "миграции схемы базы данных",
	Subcommands: []*cli.Command{
		{
			Name: "up",
			Action: withEnv(func(cctx *cli.Context, e *env) error {
				return goosehelper.MigrateUp(cctx.Context, e.db.DB, e.cfg.MigrationsDir)
			}),
		},
		{
			Name:  "down",
			Usage: "откатить последнюю миграцию",
			Action: withEnv(func(cctx *cli.Context, e *env) error {
				return goosehelper.MigrateDown(cctx.Context, e.db.DB, e.cfg.MigrationsDir)
			}),
		},
		{
			Name: "status",
			Action: withEnv(func(cctx *cli.Context, e *env) error {
				return goosehelper.Status(cctx.Context, e.db.DB, e.cfg.MigrationsDir)
			}),
		},
	},
}

var conferenceCmd = &cli.Command{
	Name: "conference",
	Subcommands: []*cli.Command{
		conferenceAddCmd,
		conferenceDeleteCmd,
	},
}

var conferenceAddCmd = &cli.Command{
	Name: "add",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "city", Required: true},
		&cli.StringFlag{Name: "year", Required: true},
		&cli.BoolFlag{Name: "international"},
	},
	Action: withEnv(func(cctx *cli.Context, e *env) error {
		photos, err := e.photoStorage(cctx.Context)
		if err != nil {
			return err
		}
		conferences := service.NewConference(cockroach.NewConference(e.db), photos)

		id, err := conferences.AddConference(cctx.Context, &entity.Conference{
			City:            cctx.String("city"),
			Year:            cctx.String("year"),
			IsInternational: cctx.Bool("international"),
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	}),
}

var conferenceDeleteCmd = &cli.Command{
	Name:  "delete",
	Usage: "удалить конференцию вместе с комментариями и фото",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "id", Required: true},
	},
	Action: withEnv(func(cctx *cli.Context, e *env) error {
		photos, err := e.photoStorage(cctx.Context)
		if err != nil {
			return err
		}
		conferences := service.NewConference(cockroach.NewConference(e.db), photos)
		return conferences.DeleteConference(cctx.Context, cctx.Int("id"))
	}),
}

var commentCmd = &cli.Command{
	Name: "comment",
	Subcommands: []*cli.Command{
		commentSubmitCmd,
		commentRejectCmd,
		commentRedriveCmd,
	},
}

var commentSubmitCmd = &cli.Command{
	Name:  "submit",
	Usage: "оставить комментарий и запустить его модерацию",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "conference", Required: true},
		&cli.StringFlag{Name: "author", Required: true},
		&cli.StringFlag{Name: "email", Required: true},
		&cli.StringFlag{Name: "text", Required: true},
		&cli.PathFlag{Name: "photo"},
		&cli.StringFlag{Name: "ip", Value: "127.0.0.1"},
		&cli.StringFlag{Name: "user-agent"},
		&cli.StringFlag{Name: "referrer"},
		&cli.StringFlag{Name: "permalink"},
	},
	Action: withQueue(func(cctx *cli.Context, e *env, queue repo.ModerationQueue) error {
		photos, err := e.photoStorage(cctx.Context)
		if err != nil {
			return err
		}

		request := &entity.SubmitCommentRequest{
			ConferenceID: cctx.Int("conference"),
			Author:       cctx.String("author"),
			Email:        cctx.String("email"),
			Text:         cctx.String("text"),
			Context: map[string]string{
				entity.ContextIP:        cctx.String("ip"),
				entity.ContextUserAgent: cctx.String("user-agent"),
				entity.ContextReferrer:  cctx.String("referrer"),
				entity.ContextPermalink: cctx.String("permalink"),
			},
		}

		if path := cctx.Path("photo"); path != "" {
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = file.Close() }()
			info, err := file.Stat()
			if err != nil {
				return err
			}
			request.Photo = &entity.Photo{
				Filename: filepath.Base(path),
				Size:     info.Size(),
				RawBytes: file,
			}
		}

		comments := service.NewComment(cockroach.NewComment(e.db), photos, queue)
		id, err := comments.Submit(cctx.Context, request)
		if err != nil && id > 0 {
			// комментарий сохранен, его подберет периодический перезапуск
			log.Warnf("комментарий %d сохранен, но задача модерации не поставлена: %v", id, err)
			fmt.Println(id)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	}),
}

var commentRejectCmd = &cli.Command{
	Name:  "reject",
	Usage: "отклонить помеченный комментарий",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "id", Required: true},
	},
	Action: withQueue(func(cctx *cli.Context, e *env, queue repo.ModerationQueue) error {
		comments := service.NewComment(cockroach.NewComment(e.db), nil, queue)
		return comments.Reject(cctx.Context, cctx.Int("id"))
	}),
}

var commentRedriveCmd = &cli.Command{
	Name:  "redrive",
	Usage: "заново поставить задачу модерации комментария",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "id", Required: true},
	},
	Action: withQueue(func(cctx *cli.Context, e *env, queue repo.ModerationQueue) error {
		comments := service.NewComment(cockroach.NewComment(e.db), nil, queue)
		return comments.Redrive(cctx.Context, cctx.Int("id"))
	}),
}

var redriveStalledCmd = &cli.Command{
	Name:  "redrive-stalled",
	Usage: "перезапустить все комментарии, застрявшие в модерации",
	Flags: []cli.Flag{
		&cli.DurationFlag{Name: "older-than", Usage: "по умолчанию REDRIVE_STALE_AFTER"},
	},
	Action: withQueue(func(cctx *cli.Context, e *env, queue repo.ModerationQueue) error {
		staleAfter := e.cfg.RedriveStaleAfter
		if cctx.IsSet("older-than") {
			staleAfter = cctx.Duration("older-than")
		}
		redriver := service.NewRedriver(cockroach.NewComment(e.db), queue, service.RedriverConfig{
			Interval:    e.cfg.RedriveInterval,
			StaleAfter:  staleAfter,
			MaxRedrives: e.cfg.RedriveMax,
		})
		n, err := redriver.RedriveStalled(cctx.Context)
		if err != nil {
			return err
		}
		fmt.Printf("перезапущено комментариев: %d\n", n)
		return nil
	}),
}
