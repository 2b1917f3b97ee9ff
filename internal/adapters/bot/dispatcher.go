package bot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// DedupTTL — сколько помнить обработанные апдейты при повторной доставке вебхука.
const DedupTTL = 10 * time.Minute

// SecretTokenHeader несёт secret_token, заданный в setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

var (
	// ErrDispatcherClosed возвращается из Submit после Close.
	ErrDispatcherClosed = errors.New("dispatcher is closed")
	// ErrHandlerPanic оборачивает панику обработчика.
	ErrHandlerPanic = errors.New("update handler panicked")
)

// UpdateHandler обрабатывает один апдейт.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// Deduper выполняет функцию один раз на ключ.
type Deduper interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// Dispatcher раздаёт апдейты ограниченному числу воркеров.
type Dispatcher struct {
	handler UpdateHandler
	dedup   Deduper
	log     zerolog.Logger
	workers int
	updates chan tgbotapi.Update
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher создаёт пул. dedup может быть nil.
func NewDispatcher(handler UpdateHandler, workers int, dedup Deduper, log zerolog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		handler: handler,
		dedup:   dedup,
		log:     log,
		workers: workers,
		updates: make(chan tgbotapi.Update, workers),
	}
}

// Start запускает воркеров. Они работают до Close.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for upd := range d.updates {
				d.process(ctx, upd)
			}
		}()
	}
}

// Submit ставит апдейт в очередь, ожидая свободного воркера.
// Канал не закрывается, пока хоть один Submit держит блокировку на чтение.
func (d *Dispatcher) Submit(ctx context.Context, upd tgbotapi.Update) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.updates <- upd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume читает канал long polling до его закрытия, отмены контекста или Close.
func (d *Dispatcher) Consume(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			if err := d.Submit(ctx, upd); err != nil {
				return
			}
		}
	}
}

// Close прекращает приём и ждёт завершения обработки.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.updates)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Webhook возвращает HTTP-обработчик для приёма апдейтов. Запрос без заголовка
// SecretTokenHeader, совпадающего с secret, отклоняется с 401. Пустой secret отклоняет всё.
func (d *Dispatcher) Webhook(secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validSecret(r.Header.Get(SecretTokenHeader), secret) {
			d.log.Warn().Str("remote", r.RemoteAddr).Msg("вебхук: неверный secret token")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var upd tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		if err := d.Submit(r.Context(), upd); err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func validSecret(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (d *Dispatcher) process(ctx context.Context, upd tgbotapi.Update) {
	logger := d.log.With().Int("update", upd.UpdateID).Logger()
	if d.dedup == nil {
		if err := d.handle(ctx, upd); err != nil {
			logger.Error().Err(err).Msg("ошибка обработки апдейта")
		}
		return
	}
	ran := false
	err := d.dedup.Once(ctx, "update:"+strconv.Itoa(upd.UpdateID), DedupTTL, func() error {
		ran = true
		return d.handle(ctx, upd)
	})
	switch {
	case err == nil:
	case ran:
		logger.Error().Err(err).Msg("ошибка обработки апдейта")
	default:
		logger.Warn().Err(err).Msg("дедупликация недоступна, обрабатываем апдейт")
		if err := d.handle(ctx, upd); err != nil {
			logger.Error().Err(err).Msg("ошибка обработки апдейта")
		}
	}
}

// handle превращает панику обработчика в ошибку, чтобы ключ дедупликации был снят.
func (d *Dispatcher) handle(ctx context.Context, upd tgbotapi.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	d.handler.HandleUpdate(ctx, upd)
	return nil
}
