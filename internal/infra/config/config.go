package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию зеркала.
type AppConfig struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL"`
	OpsAddr  string `envconfig:"OPS_ADDR"`

	Telegram struct {
		Token           string `envconfig:"TG_BOT_TOKEN"`
		ChannelID       int64  `envconfig:"TG_CHANNEL_ID"`
		ChannelUsername string `envconfig:"TG_CHANNEL_USERNAME"`
		APIID           int    `envconfig:"TG_API_ID"`
		APIHash         string `envconfig:"TG_API_HASH"`
		UpdatesLimit    int    `envconfig:"TG_UPDATES_LIMIT" default:"100"`
		AckUpdates      bool   `envconfig:"TG_ACK_UPDATES" default:"false"`
	} `envconfig:""`

	MTProto struct {
		SessionFile string `envconfig:"MTPROTO_SESSION_FILE" default:"mtproto.session.json"`
	} `envconfig:""`

	WordPress struct {
		Destinations Destinations  `envconfig:"WP_DESTINATIONS"`
		DefaultURL   string        `envconfig:"WP_DEFAULT_URL"`
		Username     string        `envconfig:"WP_USERNAME"`
		Password     string        `envconfig:"WP_PASSWORD"`
		Timeout      time.Duration `envconfig:"WP_TIMEOUT" default:"30s"`
		RPS          float64       `envconfig:"WP_RPS" default:"5"`
		TitleLimit   int           `envconfig:"WP_TITLE_LIMIT" default:"120"`
	} `envconfig:""`

	Store struct {
		Driver     string `envconfig:"STORE_DRIVER" default:"sqlite"`
		SQLitePath string `envconfig:"SQLITE_PATH" default:"microblog.db"`
		PGDSN      string `envconfig:"PG_DSN"`
	} `envconfig:""`

	Media struct {
		Backend        string `envconfig:"MEDIA_BACKEND" default:"fs"`
		Dir            string `envconfig:"MEDIA_DIR" default:"images"`
		MinioEndpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
		MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
		MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
		MinioBucket    string `envconfig:"MINIO_BUCKET" default:"mirror-media"`
		MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
		MinioRegion    string `envconfig:"MINIO_REGION"`
	} `envconfig:""`

	Retry struct {
		MaxAttempts     int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"4"`
		InitialInterval time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"500ms"`
		MaxInterval     time.Duration `envconfig:"RETRY_MAX_INTERVAL" default:"10s"`
	} `envconfig:""`

	Sync struct {
		PollIntervalMinutes  int    `envconfig:"POLL_INTERVAL_MINUTES" default:"5"`
		Cron                 string `envconfig:"SYNC_CRON"`
		Once                 bool   `envconfig:"SYNC_ONCE" default:"false"`
		DeletionCheckEnabled bool   `envconfig:"DELETION_CHECK_ENABLED" default:"false"`
		DeletionSnapshot     string `envconfig:"DELETION_SNAPSHOT" default:"updates"`
		DeletionAllowEmpty   bool   `envconfig:"DELETION_ALLOW_EMPTY_SNAPSHOT" default:"false"`
	} `envconfig:""`

	RedisAddr   string        `envconfig:"REDIS_ADDR"`
	PassLockTTL time.Duration `envconfig:"PASS_LOCK_TTL" default:"30m"`

	Social struct {
		Mode      string `envconfig:"SOCIAL_MODE" default:"off"`
		BskyHost  string `envconfig:"BSKY_HOST" default:"https://bsky.social"`
		Handle    string `envconfig:"BSKY_HANDLE"`
		Password  string `envconfig:"BSKY_PASSWORD"`
		RabbitURL string `envconfig:"RABBITMQ_URL"`
		Queue     string `envconfig:"SOCIAL_QUEUE" default:"social_posts"`
		TextLimit int    `envconfig:"SOCIAL_TEXT_LIMIT" default:"297"`
	} `envconfig:""`
}

// Destinations сопоставляет код языка с базовым URL сайта: "fa=https://fa.example.com,en=https://example.com".
type Destinations map[string]string

// Decode реализует envconfig.Decoder.
func (d *Destinations) Decode(value string) error {
	out := make(Destinations)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		lang, url, ok := strings.Cut(pair, "=")
		lang = strings.ToLower(strings.TrimSpace(lang))
		url = strings.TrimSpace(url)
		if !ok || lang == "" || url == "" {
			return fmt.Errorf("invalid destination %q, want lang=url", pair)
		}
		out[lang] = url
	}
	*d = out
	return nil
}

// Parse читает .env (если есть) и окружение, затем проверяет результат.
func Parse() (AppConfig, error) {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Validate проверяет согласованность настроек.
func (c AppConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("TG_BOT_TOKEN is required"))
	}
	if c.Telegram.ChannelID == 0 {
		errs = append(errs, errors.New("TG_CHANNEL_ID is required"))
	}
	if strings.TrimSpace(c.WordPress.DefaultURL) == "" {
		errs = append(errs, errors.New("WP_DEFAULT_URL is required"))
	}
	switch c.Store.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Store.PGDSN == "" {
			errs = append(errs, errors.New("PG_DSN is required for postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	switch c.Media.Backend {
	case "fs", "minio":
	default:
		errs = append(errs, fmt.Errorf("unknown MEDIA_BACKEND %q", c.Media.Backend))
	}
	switch c.Sync.DeletionSnapshot {
	case "updates":
		if c.Sync.DeletionCheckEnabled && c.Telegram.AckUpdates {
			errs = append(errs, errors.New("DELETION_SNAPSHOT=updates cannot be combined with TG_ACK_UPDATES"))
		}
	case "mtproto":
		if c.Sync.DeletionCheckEnabled && (c.Telegram.APIID == 0 || c.Telegram.APIHash == "" || c.Telegram.ChannelUsername == "") {
			errs = append(errs, errors.New("mtproto snapshot needs TG_API_ID, TG_API_HASH and TG_CHANNEL_USERNAME"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DELETION_SNAPSHOT %q", c.Sync.DeletionSnapshot))
	}
	if c.Sync.Cron != "" && !gronx.IsValid(c.Sync.Cron) {
		errs = append(errs, fmt.Errorf("invalid SYNC_CRON %q", c.Sync.Cron))
	}
	if c.Sync.Cron == "" && c.Sync.PollIntervalMinutes <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL_MINUTES must be positive"))
	}
	switch c.Social.Mode {
	case "off":
	case "bluesky":
		if c.Social.Handle == "" || c.Social.Password == "" {
			errs = append(errs, errors.New("bluesky announcer needs BSKY_HANDLE and BSKY_PASSWORD"))
		}
	case "rabbitmq":
		if c.Social.RabbitURL == "" {
			errs = append(errs, errors.New("rabbitmq announcer needs RABBITMQ_URL"))
		}
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis announcer needs REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SOCIAL_MODE %q", c.Social.Mode))
	}
	return errors.Join(errs...)
}

// PollInterval возвращает интервал между проходами.
func (c AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Sync.PollIntervalMinutes) * time.Minute
}
