package vip

import (
	"context"
	"errors"
	"io/fs"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"tg-group-guard/internal/domain"
	"tg-group-guard/internal/infra/metrics"
)

// Registry хранит VIP в памяти и синхронно дублирует каждое добавление в хранилище.
type Registry struct {
	store domain.VipStore
	log   zerolog.Logger

	mu    sync.RWMutex
	ids   []string
	index map[string]struct{}
	dirty bool
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(store domain.VipStore, log zerolog.Logger) *Registry {
	return &Registry{
		store: store,
		log:   log,
		index: make(map[string]struct{}),
	}
}

// Key приводит Telegram ID к ключу реестра.
func Key(tgUserID int64) string {
	return strconv.FormatInt(tgUserID, 10)
}

// Load читает хранилище. Ошибка чтения не фатальна: реестр остаётся пустым.
func (r *Registry) Load(ctx context.Context) int {
	ids, err := r.store.Load(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = r.ids[:0]
	r.index = make(map[string]struct{})

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.log.Warn().Err(err).Msg("хранилище VIP не найдено, начинаем с пустого списка")
		} else {
			metrics.VipStoreErrors.WithLabelValues("load").Inc()
			r.log.Error().Err(err).Msg("не удалось загрузить VIP")
		}
		metrics.VipRegistrySize.Set(0)
		return 0
	}
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := r.index[id]; ok {
			continue
		}
		r.index[id] = struct{}{}
		r.ids = append(r.ids, id)
	}
	metrics.VipRegistrySize.Set(float64(len(r.ids)))
	r.log.Info().Int("count", len(r.ids)).Msg("VIP загружены")
	return len(r.ids)
}

// IsMember проверяет наличие идентификатора.
func (r *Registry) IsMember(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[id]
	return ok
}

// IsVIP проверяет Telegram ID.
func (r *Registry) IsVIP(tgUserID int64) bool {
	return r.IsMember(Key(tgUserID))
}

// Add добавляет идентификатор и сразу сохраняет список.
// Возвращает false, если идентификатор уже есть; запись в хранилище при этом не выполняется.
// Ошибка записи логируется, добавление в памяти не откатывается.
func (r *Registry) Add(ctx context.Context, id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[id]; ok {
		return false
	}
	r.index[id] = struct{}{}
	r.ids = append(r.ids, id)
	metrics.VipRegistrySize.Set(float64(len(r.ids)))

	if err := r.store.Save(ctx, r.snapshotLocked()); err != nil {
		r.dirty = true
		metrics.VipStoreErrors.WithLabelValues("save").Inc()
		r.log.Error().Err(err).Str("user", id).Msg("не удалось сохранить VIP")
	} else {
		r.dirty = false
		r.log.Info().Str("user", id).Msg("добавлен VIP")
	}
	return true
}

// AddUser добавляет Telegram ID.
func (r *Registry) AddUser(ctx context.Context, tgUserID int64) bool {
	return r.Add(ctx, Key(tgUserID))
}

// List возвращает копию списка в порядке добавления.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Len возвращает размер реестра.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Close выполняет финальную запись при остановке, если последняя запись не удалась.
// Пустой реестр после неудачной загрузки не перезаписывает хранилище.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return nil
	}
	if err := r.store.Save(ctx, r.snapshotLocked()); err != nil {
		metrics.VipStoreErrors.WithLabelValues("flush").Inc()
		return err
	}
	r.dirty = false
	return nil
}

// Dirty сообщает, что в памяти есть изменения, не попавшие в хранилище.
func (r *Registry) Dirty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dirty
}

func (r *Registry) snapshotLocked() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}
