package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/spf13/viper"
)

var (
	ErrConfiguration = errors.New("configuration error")
)

// Config собирается из переменных окружения (и .env файла, если он есть)
type Config struct {
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	DBConnectDSN  string `mapstructure:"db_connect_dsn" validate:"required"`
	MigrationsDir string `mapstructure:"migrations_dir" validate:"required"`

	KafkaBrokers           []string      `mapstructure:"kafka_brokers"             validate:"min=1,dive,required"`
	KafkaReplicationFactor int           `mapstructure:"kafka_replication_factor"  validate:"min=1,max=5"`
	ModerationTopic        string        `mapstructure:"moderation_topic"          validate:"required"`
	ModerationDLQTopic     string        `mapstructure:"moderation_dlq_topic"      validate:"required,nefield=ModerationTopic"`
	ModerationGroupID      string        `mapstructure:"moderation_group_id"       validate:"required"`
	ModerationWorkers      int           `mapstructure:"moderation_workers"        validate:"min=1,max=64"`
	ModerationMaxAttempts  int           `mapstructure:"moderation_max_attempts"   validate:"min=0"`
	ModerationRequeueDelay time.Duration `mapstructure:"moderation_requeue_delay"  validate:"min=0"`

	AkismetKey       string        `mapstructure:"akismet_key"        validate:"required"`
	AkismetEndpoint  string        `mapstructure:"akismet_endpoint"   validate:"required"`
	SiteURL          string        `mapstructure:"site_url"           validate:"required,url"`
	SpamCheckTimeout time.Duration `mapstructure:"spam_check_timeout" validate:"min=100ms,max=1m"`

	PhotoDir       string `mapstructure:"photo_dir"        validate:"required"`
	MinioEndpoint  string `mapstructure:"minio_endpoint"`
	MinioAccessKey string `mapstructure:"minio_access_key" validate:"required_with=MinioEndpoint"`
	MinioSecretKey string `mapstructure:"minio_secret_key" validate:"required_with=MinioEndpoint"`
	MinioUseSSL    bool   `mapstructure:"minio_use_ssl"`
	PhotoBucket    string `mapstructure:"photo_bucket"     validate:"required_with=MinioEndpoint"`

	OptimizerBin     string        `mapstructure:"optimizer_bin"     validate:"required"`
	OptimizerTimeout time.Duration `mapstructure:"optimizer_timeout" validate:"min=1s,max=10m"`

	AdminEmail   string `mapstructure:"admin_email"   validate:"required,email"`
	SMTPAddr     string `mapstructure:"smtp_addr"     validate:"omitempty,hostname_port"`
	SMTPFrom     string `mapstructure:"smtp_from"     validate:"omitempty,email"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`

	TelegramBotToken    string `mapstructure:"telegram_bot_token"`
	TelegramAdminChatID int64  `mapstructure:"telegram_admin_chat_id" validate:"required_with=TelegramBotToken"`

	NotifyTimeout time.Duration `mapstructure:"notify_timeout" validate:"min=1s,max=5m"`

	OpsAddr           string        `mapstructure:"ops_addr"            validate:"required"`
	RedriveInterval   time.Duration `mapstructure:"redrive_interval"    validate:"min=1s"`
	RedriveStaleAfter time.Duration `mapstructure:"redrive_stale_after" validate:"min=1s"`
	RedriveMax        int           `mapstructure:"redrive_max"         validate:"min=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("db_connect_dsn", "")
	v.SetDefault("migrations_dir", "./cockroachdb/migrations")

	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_replication_factor", 3)
	v.SetDefault("moderation_topic", "comment-moderation")
	v.SetDefault("moderation_dlq_topic", "comment-moderation-dlq")
	v.SetDefault("moderation_group_id", "moderation-worker")
	v.SetDefault("moderation_workers", 4)
	v.SetDefault("moderation_max_attempts", 5)
	v.SetDefault("moderation_requeue_delay", time.Second)

	v.SetDefault("akismet_key", "")
	v.SetDefault("akismet_endpoint", "https://%s.rest.akismet.com/1.1/comment-check")
	v.SetDefault("site_url", "")
	v.SetDefault("spam_check_timeout", 5*time.Second)

	v.SetDefault("photo_dir", "./uploads/photos")
	v.SetDefault("minio_endpoint", "")
	v.SetDefault("minio_access_key", "")
	v.SetDefault("minio_secret_key", "")
	v.SetDefault("minio_use_ssl", false)
	v.SetDefault("photo_bucket", "guestbook-photos")

	v.SetDefault("optimizer_bin", "convert")
	v.SetDefault("optimizer_timeout", 30*time.Second)

	v.SetDefault("admin_email", "")
	v.SetDefault("smtp_addr", "")
	v.SetDefault("smtp_from", "")
	v.SetDefault("smtp_user", "")
	v.SetDefault("smtp_password", "")

	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("telegram_admin_chat_id", 0)

	v.SetDefault("notify_timeout", 10*time.Second)

	v.SetDefault("ops_addr", ":8090")
	v.SetDefault("redrive_interval", time.Minute)
	v.SetDefault("redrive_stale_after", 15*time.Minute)
	v.SetDefault("redrive_max", 3)
}

// Load читает .env (если есть) и переменные окружения, применяет значения по умолчанию и проверяет результат
func Load() (*Config, error) {
	return load()
}

// adminFields - настройки, без которых не обойтись административным командам
var adminFields = []string{
	"LogLevel",
	"DBConnectDSN",
	"MigrationsDir",
	"KafkaBrokers",
	"KafkaReplicationFactor",
	"ModerationTopic",
	"ModerationDLQTopic",
	"PhotoDir",
	"MinioAccessKey",
	"MinioSecretKey",
	"PhotoBucket",
}

// LoadAdmin загружает ту же конфигурацию, но проверяет только настройки базы, очереди и хранилища фото
func LoadAdmin() (*Config, error) {
	return load(adminFields...)
}

func load(fields ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info(".env файл не обнаружен")
	}

	v := viper.New()
	setDefaults(v)
	// ключи совпадают с именами переменных окружения в нижнем регистре
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.AdminEmail
	}

	validate := validator.New()
	var err error
	if len(fields) == 0 {
		err = validate.Struct(cfg)
	} else {
		err = validate.StructPartial(cfg, fields...)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return cfg, nil
}

// GommonLevel переводит LOG_LEVEL в уровень логгера gommon
func (c *Config) GommonLevel() log.Lvl {
	switch c.LogLevel {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

// UseMinio сообщает, что фото хранятся в MinIO, а не в локальной директории
func (c *Config) UseMinio() bool {
	return c.MinioEndpoint != ""
}
