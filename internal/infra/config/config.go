package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv  string `envconfig:"APP_ENV" default:"dev"`
	LogFile string `envconfig:"LOG_FILE" default:"bot.log"`

	Telegram struct {
		Token         string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL    string `envconfig:"TG_WEBHOOK_URL"`
		WebhookSecret string `envconfig:"TG_WEBHOOK_SECRET"`
		APIID         int    `envconfig:"TG_API_ID"`
		APIHash       string `envconfig:"TG_API_HASH"`
	} `envconfig:""`

	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	Workers  int    `envconfig:"WORKERS" default:"4"`

	Moderation struct {
		BlockFiles      bool   `envconfig:"BLOCK_FILES" default:"true"`
		RoleErrorPolicy string `envconfig:"ROLE_ERROR_POLICY" default:"skip"`
	} `envconfig:""`

	VIP struct {
		Store string `envconfig:"VIP_STORE" default:"file"`
		File  string `envconfig:"VIP_FILE" default:"vip_users.json"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	Scheduler string `envconfig:"SCHEDULER" default:"memory"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	Queues struct {
		Cleanup string `envconfig:"CLEANUP_QUEUE_KEY" default:"guard:cleanups"`
	} `envconfig:""`
}

const (
	StoreFile     = "file"
	StorePostgres = "postgres"

	SchedulerMemory = "memory"
	SchedulerRedis  = "redis"
)

// webhookSecretRe — допустимые символы secret_token по правилам Bot API.
var webhookSecretRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// Load загружает конфиг из окружения. Файл .env подхватывается, если он есть.
func Load() AppConfig {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("не удалось прочитать .env: %v", err)
	}
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает и проверяет конфиг без завершения процесса.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c AppConfig) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("не указан токен Telegram (TG_BOT_TOKEN)")
	}
	if c.Telegram.WebhookURL != "" && !webhookSecretRe.MatchString(c.Telegram.WebhookSecret) {
		return errors.New("для TG_WEBHOOK_URL нужен TG_WEBHOOK_SECRET: 1-256 символов A-Z, a-z, 0-9, _ и -")
	}
	if (c.Telegram.APIID == 0) != (c.Telegram.APIHash == "") {
		return errors.New("TG_API_ID и TG_API_HASH задаются вместе")
	}
	switch c.VIP.Store {
	case StoreFile:
		if c.VIP.File == "" {
			return errors.New("не указан путь к файлу VIP (VIP_FILE)")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return errors.New("для VIP_STORE=postgres нужен PG_DSN")
		}
	default:
		return fmt.Errorf("неизвестное хранилище VIP %q", c.VIP.Store)
	}
	switch c.Scheduler {
	case SchedulerMemory:
	case SchedulerRedis:
		if c.RedisAddr == "" {
			return errors.New("для SCHEDULER=redis нужен REDIS_ADDR")
		}
	default:
		return fmt.Errorf("неизвестный планировщик %q", c.Scheduler)
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS должен быть положительным, получено %d", c.Workers)
	}
	return nil
}

// MTProtoEnabled сообщает, настроен ли MTProto-клиент для поиска по @username.
func (c AppConfig) MTProtoEnabled() bool {
	return c.Telegram.APIID != 0 && c.Telegram.APIHash != ""
}
