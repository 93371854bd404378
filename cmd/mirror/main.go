package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/adapters/blob"
	"tg-wp-mirror/internal/adapters/langid"
	"tg-wp-mirror/internal/adapters/mtproto"
	"tg-wp-mirror/internal/adapters/repo"
	"tg-wp-mirror/internal/adapters/resilient"
	"tg-wp-mirror/internal/adapters/social"
	"tg-wp-mirror/internal/adapters/telegram"
	"tg-wp-mirror/internal/adapters/wordpress"
	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/config"
	"tg-wp-mirror/internal/infra/db"
	apphttp "tg-wp-mirror/internal/infra/http"
	"tg-wp-mirror/internal/infra/lock"
	applog "tg-wp-mirror/internal/infra/log"
	"tg-wp-mirror/internal/infra/metrics"
	"tg-wp-mirror/internal/infra/queue"
	"tg-wp-mirror/internal/usecase/deletion"
	"tg-wp-mirror/internal/usecase/media"
	"tg-wp-mirror/internal/usecase/mirror"
	"tg-wp-mirror/internal/usecase/publish"
	"tg-wp-mirror/internal/usecase/route"
	"tg-wp-mirror/internal/usecase/schedule"
)

const passLockKey = "tg-wp-mirror:pass"

type store interface {
	domain.PostRepo
	domain.CursorRepo
}

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, cfg.LogLevel)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	posts, closeStore := openStore(cfg, logger)
	defer closeStore()

	schemaCtx, schemaCancel := context.WithTimeout(ctx, 10*time.Second)
	err := posts.EnsureSchema(schemaCtx)
	schemaCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("mirror: не удалось подготовить схему хранилища")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("mirror: не удалось создать бота")
	}

	policy := resilient.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	}
	source := telegram.NewSource(botAPI, posts, cfg.Telegram.ChannelID, cfg.Telegram.UpdatesLimit, cfg.Telegram.AckUpdates,
		logger.With().Str("component", "telegram").Logger())
	files := resilient.NewFiles(telegram.NewFiles(botAPI, cfg.WordPress.Timeout), policy, logger)

	blobs := openBlobs(ctx, cfg, logger)
	mediaCache := media.NewCache(posts, files, blobs, logger.With().Str("component", "media").Logger())
	router := route.NewService(langid.Whatlang{}, cfg.WordPress.Destinations, cfg.WordPress.DefaultURL)

	wpPolicy := policy
	wpPolicy.RPS = cfg.WordPress.RPS
	destination := resilient.NewDestination(
		wordpress.New(cfg.WordPress.Username, cfg.WordPress.Password, wordpress.WithTimeout(cfg.WordPress.Timeout)),
		wpPolicy, logger.With().Str("component", "wordpress").Logger())
	publisher := publish.NewService(destination, posts, blobs, logger.With().Str("component", "publish").Logger())

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	deps := mirror.Deps{
		Source:    source,
		Posts:     posts,
		Media:     mediaCache,
		Router:    router,
		Publisher: publisher,
		Lock:      lock.NewLocal(),
	}
	if redisClient != nil {
		deps.Lock = lock.NewRedis(redisClient, passLockKey)
	}

	if cfg.Sync.DeletionCheckEnabled {
		var snapshot domain.LiveSnapshot
		switch cfg.Sync.DeletionSnapshot {
		case "mtproto":
			snapshot = mtproto.NewProbe(cfg.Telegram.APIID, cfg.Telegram.APIHash, cfg.Telegram.Token,
				cfg.Telegram.ChannelUsername, cfg.Telegram.ChannelID, cfg.MTProto.SessionFile,
				logger.With().Str("component", "mtproto").Logger())
		default:
			snapshot = telegram.NewUpdatesSnapshot(botAPI, cfg.Telegram.ChannelID)
		}
		deps.Deletion = deletion.NewReconciler(posts, snapshot, publisher, router, cfg.Sync.DeletionAllowEmpty, logger.With().Str("component", "deletion").Logger())
	}

	switch cfg.Social.Mode {
	case "bluesky":
		deps.Announcer = social.NewBluesky(cfg.Social.BskyHost, cfg.Social.Handle, cfg.Social.Password,
			cfg.Social.TextLimit, blobs, logger.With().Str("component", "bluesky").Logger())
	case "rabbitmq":
		announcer, err := queue.NewRabbitAnnouncer(cfg.Social.RabbitURL, cfg.Social.Queue)
		if err != nil {
			logger.Fatal().Err(err).Msg("mirror: не удалось инициализировать очередь RabbitMQ")
		}
		defer announcer.Close()
		deps.Announcer = announcer
	case "redis":
		deps.Announcer = queue.NewRedisAnnouncer(redisClient, cfg.Social.Queue)
	}

	service := mirror.NewService(deps, mirror.Options{
		TitleLimit:      cfg.WordPress.TitleLimit,
		SocialTextLimit: cfg.Social.TextLimit,
		LockTTL:         cfg.PassLockTTL,
	}, logger.With().Str("component", "mirror").Logger())

	if cfg.OpsAddr != "" {
		server := apphttp.NewServer(logger.With().Str("component", "http").Logger(), func() any { return service.Status() })
		go func() {
			if err := server.Start(cfg.OpsAddr); err != nil {
				logger.Error().Err(err).Msg("mirror: служебный сервер остановлен с ошибкой")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	run := func(ctx context.Context) error {
		_, err := service.RunPass(ctx)
		return err
	}

	if cfg.Sync.Once {
		logger.Info().Msg("mirror: однократный проход")
		if err := run(ctx); err != nil {
			logger.Error().Err(err).Msg("mirror: проход завершился ошибкой")
		}
		return
	}

	cadence := schedule.Cadence{Cron: cfg.Sync.Cron, Interval: cfg.PollInterval()}
	logger.Info().Str("cron", cadence.Cron).Dur("interval", cadence.Interval).Msg("mirror: запуск цикла синхронизации")
	if err := schedule.Loop(ctx, cadence, logger.With().Str("component", "scheduler").Logger(), run); err != nil {
		logger.Error().Err(err).Msg("mirror: цикл синхронизации остановлен")
	}
	logger.Info().Msg("mirror: остановлен")
}

func openStore(cfg config.AppConfig, logger zerolog.Logger) (store, func()) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := db.Connect(cfg.Store.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("mirror: нет подключения к БД")
		}
		return repo.NewPostgres(pool), pool.Close
	case "memory":
		logger.Warn().Msg("mirror: хранилище в памяти, состояние не переживёт перезапуск")
		return repo.NewMemory(), func() {}
	default:
		conn, err := db.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Store.SQLitePath).Msg("mirror: не удалось открыть SQLite")
		}
		return repo.NewSQLite(conn), func() { _ = conn.Close() }
	}
}

func openBlobs(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) domain.BlobStore {
	if cfg.Media.Backend != "minio" {
		return blob.NewFS(cfg.Media.Dir)
	}
	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	minioStore, err := blob.NewMinio(initCtx, blob.MinioConfig{
		Endpoint:  cfg.Media.MinioEndpoint,
		AccessKey: cfg.Media.MinioAccessKey,
		SecretKey: cfg.Media.MinioSecretKey,
		Bucket:    cfg.Media.MinioBucket,
		UseSSL:    cfg.Media.MinioUseSSL,
		Region:    cfg.Media.MinioRegion,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("mirror: MinIO недоступен")
	}
	return minioStore
}
