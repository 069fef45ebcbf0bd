package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guestbook-backend/internal/config"
	delivery "guestbook-backend/internal/delivery/http"
	"guestbook-backend/internal/repo"
	"guestbook-backend/internal/repo/cockroach"
	"guestbook-backend/internal/repo/filesystem"
	"guestbook-backend/internal/repo/kafka"
	"guestbook-backend/internal/repo/minio"
	"guestbook-backend/internal/usecase"
	"guestbook-backend/internal/usecase/service"
	"guestbook-backend/internal/usecase/service/imageoptimizer"
	"guestbook-backend/internal/usecase/service/notifier"
	"guestbook-backend/internal/usecase/service/spamchecker"
	"guestbook-backend/pkg/connector"
	"guestbook-backend/pkg/goosehelper"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

func newPhotoStorage(ctx context.Context, cfg *config.Config) (repo.PhotoStorage, error) {
	if !cfg.UseMinio() {
		local, err := filesystem.NewPhoto(cfg.PhotoDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	client, err := connector.GetMinioConnector(connector.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return minio.NewPhoto(ctx, client, cfg.PhotoBucket)
}

func newNotifier(cfg *config.Config) (usecase.Notifier, error) {
	var channels notifier.Multi
	if cfg.SMTPAddr != "" {
		mail, err := notifier.NewMail(notifier.MailConfig{
			Addr:     cfg.SMTPAddr,
			From:     cfg.SMTPFrom,
			To:       cfg.AdminEmail,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		})
		if err != nil {
			return nil, err
		}
		channels = append(channels, mail)
	}
	if cfg.TelegramBotToken != "" {
		tg, err := notifier.NewTelegram(cfg.TelegramBotToken, cfg.TelegramAdminChatID)
		if err != nil {
			return nil, err
		}
		channels = append(channels, tg)
	}
	if len(channels) == 0 {
		log.Warn("Не настроен ни SMTP_ADDR, ни TELEGRAM_BOT_TOKEN: уведомления администратору отключены")
	}
	return channels, nil
}

func workerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Sprintf("moderation-worker-%d", time.Now().Unix())
	}
	return fmt.Sprintf("moderation-worker-%s-%d", hostname, time.Now().Unix())
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}
	log.SetLevel(cfg.GommonLevel())
	log.SetHeader("${time_rfc3339} ${level}")

	// Настройка контекста для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Подключение к базе данных
	dbConn, err := connector.GetCockroachConnector(ctx, cfg.DBConnectDSN, cfg.ModerationWorkers*2)
	if err != nil {
		log.Fatalf("Ошибка при подключении к базе данных: %v", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			log.Errorf("Ошибка при закрытии соединения с базой данных: %v", err)
		}
	}()

	// Выполнить миграции при старте
	if err := goosehelper.MigrateUp(ctx, dbConn.DB, cfg.MigrationsDir); err != nil {
		log.Fatalf("Ошибка при выполнении миграций: %v", err)
	}

	photoRepo, err := newPhotoStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Ошибка при подключении к хранилищу фото: %v", err)
	}
	commentRepo := cockroach.NewComment(dbConn)

	jobRepo, err := kafka.NewModerationJobKafkaRepository(kafka.ModerationJobConfig{
		Brokers:           cfg.KafkaBrokers,
		ReplicationFactor: cfg.KafkaReplicationFactor,
		Topic:             cfg.ModerationTopic,
		DLQTopic:          cfg.ModerationDLQTopic,
		GroupID:           cfg.ModerationGroupID,
		MaxAttempts:       cfg.ModerationMaxAttempts,
		RequeueDelay:      cfg.ModerationRequeueDelay,
	})
	if err != nil {
		log.Fatalf("Ошибка при подключении к Kafka: %v", err)
	}
	defer func() {
		if err := jobRepo.Close(); err != nil {
			log.Errorf("Ошибка при закрытии продюсера Kafka: %v", err)
		}
	}()

	adminNotifier, err := newNotifier(cfg)
	if err != nil {
		log.Fatalf("Ошибка при настройке уведомлений: %v", err)
	}

	// Внешние сервисы шагов модерации
	scorer := spamchecker.NewAkismet(spamchecker.AkismetConfig{
		Key:      cfg.AkismetKey,
		Endpoint: cfg.AkismetEndpoint,
		SiteURL:  cfg.SiteURL,
		Retries:  2,
	})
	optimizer := imageoptimizer.NewStored(
		imageoptimizer.NewOptimizer(imageoptimizer.ExecCommandRunner{}, imageoptimizer.Config{Bin: cfg.OptimizerBin}),
		photoRepo,
		os.TempDir(),
	)

	moderation := service.NewModeration(commentRepo, jobRepo, scorer, optimizer, adminNotifier, service.ModerationConfig{
		SpamCheckTimeout: cfg.SpamCheckTimeout,
		OptimizeTimeout:  cfg.OptimizerTimeout,
		NotifyTimeout:    cfg.NotifyTimeout,
	})
	commentUseCase := service.NewComment(commentRepo, photoRepo, jobRepo)

	// Служебный HTTP сервер: healthz, метрики, ручной перезапуск цепочек
	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.Use(middleware.Recover())
	delivery.NewOps(commentUseCase, dbConn).Configure(echoServer.Group(""))
	go func(server *echo.Echo) {
		if err := server.Start(cfg.OpsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Служебный сервер завершил свою работу по причине: %v", err)
			stop()
		}
	}(echoServer)

	redriver := service.NewRedriver(commentRepo, jobRepo, service.RedriverConfig{
		Interval:    cfg.RedriveInterval,
		StaleAfter:  cfg.RedriveStaleAfter,
		MaxRedrives: cfg.RedriveMax,
	})
	go func() {
		if err := redriver.Start(ctx); err != nil {
			log.Errorf("Ошибка перезапуска зависших комментариев: %v", err)
		}
	}()

	// Создание и запуск воркера, блокируется до сигнала завершения
	worker := service.NewModerationWorker(moderation, jobRepo, workerID(), cfg.ModerationWorkers)
	workerErr := worker.Start(ctx)
	if workerErr != nil {
		log.Errorf("Воркер модерации остановлен с ошибкой: %v", workerErr)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := echoServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Во время выключения служебного сервера возникла ошибка: %v", err)
	}
	log.Info("Воркер модерации остановлен")
	if workerErr != nil {
		os.Exit(1)
	}
}
