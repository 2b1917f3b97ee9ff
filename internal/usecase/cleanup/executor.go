package cleanup

import (
	"context"

	"github.com/rs/zerolog"

	"tg-group-guard/internal/domain"
	"tg-group-guard/internal/infra/metrics"
)

// Deleter удаляет сообщения в чате.
type Deleter interface {
	Delete(ctx context.Context, chatID int64, messageID int) error
}

// Executor выполняет отложенные очистки.
type Executor struct {
	deleter Deleter
	log     zerolog.Logger
}

// NewExecutor создаёт исполнителя.
func NewExecutor(deleter Deleter, log zerolog.Logger) *Executor {
	return &Executor{deleter: deleter, log: log}
}

// Run удаляет все сообщения задачи. Ошибка по одному сообщению не прерывает удаление остальных;
// сообщение могли уже удалить вручную.
func (e *Executor) Run(ctx context.Context, job domain.DeferredCleanup) {
	failed := 0
	for _, id := range job.MessageIDs {
		err := e.deleter.Delete(ctx, job.ChatID, id)
		metrics.ObserveCleanupDeletion(err)
		if err != nil {
			failed++
			e.log.Debug().Err(err).
				Str("token", job.Token).
				Int64("chat", job.ChatID).
				Int("message", id).
				Msg("не удалось удалить сообщение")
		}
	}
	e.log.Debug().
		Str("token", job.Token).
		Str("reason", string(job.Reason)).
		Int64("chat", job.ChatID).
		Int("total", len(job.MessageIDs)).
		Int("failed", failed).
		Msg("отложенная очистка выполнена")
}

// Func возвращает исполнителя в виде domain.CleanupFunc для планировщиков.
func (e *Executor) Func() domain.CleanupFunc {
	return e.Run
}
