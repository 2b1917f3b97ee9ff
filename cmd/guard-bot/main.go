package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-group-guard/internal/adapters/bot"
	"tg-group-guard/internal/adapters/mtproto"
	"tg-group-guard/internal/adapters/telegram"
	"tg-group-guard/internal/adapters/vipstore"
	"tg-group-guard/internal/domain"
	"tg-group-guard/internal/infra/cache"
	"tg-group-guard/internal/infra/config"
	"tg-group-guard/internal/infra/db"
	httpserver "tg-group-guard/internal/infra/http"
	"tg-group-guard/internal/infra/log"
	"tg-group-guard/internal/infra/metrics"
	"tg-group-guard/internal/infra/queue"
	"tg-group-guard/internal/usecase/admission"
	"tg-group-guard/internal/usecase/cleanup"
	"tg-group-guard/internal/usecase/moderation"
	"tg-group-guard/internal/usecase/vip"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger, logFile, err := log.NewLogger(cfg.AppEnv, cfg.LogFile)
	if err != nil {
		logger.Warn().Err(err).Str("file", cfg.LogFile).Msg("лог-файл недоступен, пишем только в stdout")
	}
	defer logFile.Close()
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := admission.Policy{BlockAttachments: cfg.Moderation.BlockFiles}
	policy.OnRoleError, err = admission.ParseRoleErrorPolicy(cfg.Moderation.RoleErrorPolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("некорректный ROLE_ERROR_POLICY")
	}

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()
	registry := vip.NewRegistry(store, logger.With().Str("component", "vip").Logger())
	registry.Load(ctx)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	logger.Info().Str("bot", botAPI.Self.UserName).Msg("авторизация в Telegram выполнена")
	var resolver telegram.UsernameResolver
	if cfg.MTProtoEnabled() {
		r := mtproto.NewResolver(cfg.Telegram.APIID, cfg.Telegram.APIHash, cfg.Telegram.Token, logger.With().Str("component", "mtproto").Logger())
		go func() {
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("MTProto клиент остановлен, /vip @username недоступен")
			}
		}()
		resolver = r
	} else {
		logger.Info().Msg("TG_API_ID не задан, /vip @username недоступен")
	}
	platform := telegram.NewClient(botAPI, resolver)
	executor := cleanup.NewExecutor(platform, logger.With().Str("component", "cleanup").Logger())

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("не удалось подключиться к Redis")
		}
		defer redisClient.Close()
	}

	scheduler, closeScheduler := openScheduler(ctx, cfg, redisClient, executor.Func(), logger)

	service := moderation.NewService(platform, registry, scheduler, policy, botAPI.Self.ID, logger.With().Str("component", "moderation").Logger())
	handler := bot.NewHandler(service, platform, policy.BlockAttachments, logger.With().Str("component", "bot").Logger())

	var dedup bot.Deduper
	var checks []httpserver.HealthCheck
	if redisClient != nil {
		rc := cache.NewRedis(redisClient, "guard:")
		dedup = rc
		checks = append(checks, rc.Ping)
	}
	dispatcher := bot.NewDispatcher(handler, cfg.Workers, dedup, logger)
	dispatcher.Start(context.WithoutCancel(ctx))

	srv := httpserver.NewServer(logger, checks...)
	consumed := make(chan struct{})
	if cfg.Telegram.WebhookURL != "" {
		close(consumed)
		if err := setWebhook(botAPI, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logger.Fatal().Err(err).Msg("не удалось установить вебхук")
		}
		srv.MountWebhook(dispatcher.Webhook(cfg.Telegram.WebhookSecret))
		logger.Info().Str("url", cfg.Telegram.WebhookURL).Msg("режим вебхука")
	} else {
		if _, err := botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			logger.Warn().Err(err).Msg("не удалось снять вебхук")
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updates := botAPI.GetUpdatesChan(u)
		go func() {
			defer close(consumed)
			dispatcher.Consume(ctx, updates)
		}()
		logger.Info().Msg("режим long polling")
	}
	go func() {
		if err := srv.Start(cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	logger.Info().
		Bool("block_files", policy.BlockAttachments).
		Str("vip_store", cfg.VIP.Store).
		Str("scheduler", cfg.Scheduler).
		Int("vips", registry.Len()).
		Msg("бот запущен")
	<-ctx.Done()
	logger.Info().Msg("остановка бота")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if cfg.Telegram.WebhookURL == "" {
		botAPI.StopReceivingUpdates()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ошибка остановки HTTP сервера")
	}
	<-consumed
	dispatcher.Close()
	closeScheduler(shutdownCtx)
	if err := registry.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("не удалось сохранить список VIP")
	}
}

// setWebhook регистрирует вебхук с secret_token; Telegram присылает его в каждом запросе.
func setWebhook(botAPI *tgbotapi.BotAPI, link, secret string) error {
	if _, err := url.ParseRequestURI(link); err != nil {
		return fmt.Errorf("некорректный TG_WEBHOOK_URL: %w", err)
	}
	params := tgbotapi.Params{"url": link}
	params.AddNonEmpty("secret_token", secret)
	if _, err := botAPI.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (domain.VipStore, func()) {
	if cfg.VIP.Store != config.StorePostgres {
		logger.Info().Str("file", cfg.VIP.File).Msg("VIP хранятся в файле")
		return vipstore.NewFile(cfg.VIP.File), func() {}
	}
	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	store := vipstore.NewPostgres(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		logger.Fatal().Err(err).Msg("не удалось подготовить схему vip_users")
	}
	return store, pool.Close
}

func openScheduler(ctx context.Context, cfg config.AppConfig, client *redis.Client, run domain.CleanupFunc, logger zerolog.Logger) (domain.CleanupScheduler, func(context.Context)) {
	schedLog := logger.With().Str("component", "scheduler").Logger()
	if cfg.Scheduler == config.SchedulerRedis {
		q := queue.NewRedisCleanupQueue(client, cfg.Queues.Cleanup, run, schedLog)
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := q.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				schedLog.Error().Err(err).Msg("планировщик очистки остановлен")
			}
		}()
		return q, func(shutdownCtx context.Context) {
			cancel()
			select {
			case <-done:
			case <-shutdownCtx.Done():
			}
		}
	}
	s := queue.NewMemoryScheduler(run, schedLog)
	return s, func(shutdownCtx context.Context) {
		if err := s.Close(shutdownCtx); err != nil {
			schedLog.Warn().Err(err).Msg("не все очистки завершены")
		}
	}
}
