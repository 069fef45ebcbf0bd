package main

import (
	"context"
	"fmt"

	"guestbook-backend/internal/config"
	"guestbook-backend/internal/repo"
	"guestbook-backend/internal/repo/filesystem"
	"guestbook-backend/internal/repo/kafka"
	"guestbook-backend/internal/repo/minio"
	"guestbook-backend/pkg/connector"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/gommon/log"
	cli "github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "guestbook-admin"
	app.Usage = "администрирование гостевой книги конференций"

	app.Before = func(cctx *cli.Context) error {
		log.SetHeader("${time_rfc3339} ${level}")
		return nil
	}
	app.Commands = []*cli.Command{
		migrateCmd,
		conferenceCmd,
		commentCmd,
		redriveStalledCmd,
	}

	app.RunAndExitOnError()
}

// env - зависимости, общие для административных команд
type env struct {
	cfg *config.Config
	db  *sqlx.DB
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadAdmin()
	if err != nil {
		return nil, err
	}
	log.SetLevel(cfg.GommonLevel())

	db, err := connector.GetCockroachConnector(ctx, cfg.DBConnectDSN, 2)
	if err != nil {
		return nil, fmt.Errorf("подключение к базе данных: %w", err)
	}
	return &env{cfg: cfg, db: db}, nil
}

func (e *env) Close() {
	if err := e.db.Close(); err != nil {
		log.Errorf("Ошибка при закрытии соединения с базой данных: %v", err)
	}
}

func (e *env) photoStorage(ctx context.Context) (repo.PhotoStorage, error) {
	if !e.cfg.UseMinio() {
		local, err := filesystem.NewPhoto(e.cfg.PhotoDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	client, err := connector.GetMinioConnector(connector.MinioConfig{
		Endpoint:  e.cfg.MinioEndpoint,
		AccessKey: e.cfg.MinioAccessKey,
		SecretKey: e.cfg.MinioSecretKey,
		UseSSL:    e.cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return minio.NewPhoto(ctx, client, e.cfg.PhotoBucket)
}

func (e *env) queue() (*kafka.ModerationJobKafkaRepository, error) {
	return kafka.NewModerationJobKafkaRepository(kafka.ModerationJobConfig{
		Brokers:           e.cfg.KafkaBrokers,
		ReplicationFactor: e.cfg.KafkaReplicationFactor,
		Topic:             e.cfg.ModerationTopic,
		DLQTopic:          e.cfg.ModerationDLQTopic,
	})
}

// withEnv открывает зависимости на время выполнения команды
func withEnv(action func(cctx *cli.Context, e *env) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		e, err := openEnv(cctx.Context)
		if err != nil {
			return err
		}
		defer e.Close()
		return action(cctx, e)
	}
}

// withQueue дополнительно поднимает продюсера задач модерации
func withQueue(action func(cctx *cli.Context, e *env, queue repo.ModerationQueue) error) cli.ActionFunc {
	return withEnv(func(cctx *cli.Context, e *env) error {
		queue, err := e.queue()
		if err != nil {
			return fmt.Errorf("подключение к Kafka: %w", err)
		}
		defer func() {
			if err := queue.Close(); err != nil {
				log.Errorf("Ошибка при закрытии продюсера Kafka: %v", err)
			}
		}()
		return action(cctx, e, queue)
	})
}
