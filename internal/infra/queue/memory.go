package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tg-group-guard/internal/domain"
	"tg-group-guard/internal/infra/metrics"
)

// ErrSchedulerClosed возвращается после остановки планировщика.
var ErrSchedulerClosed = errors.New("scheduler is closed")

// MemoryScheduler выполняет отложенные очистки на таймерах процесса. Задачи теряются при перезапуске.
type MemoryScheduler struct {
	run domain.CleanupFunc
	log zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

var _ domain.CleanupScheduler = (*MemoryScheduler)(nil)

// NewMemoryScheduler создаёт планировщик.
func NewMemoryScheduler(run domain.CleanupFunc, log zerolog.Logger) *MemoryScheduler {
	return &MemoryScheduler{
		run:    run,
		log:    log,
		timers: make(map[string]*time.Timer),
	}
}

// ScheduleOnce запускает таймер на job.Delay.
func (s *MemoryScheduler) ScheduleOnce(ctx context.Context, job domain.DeferredCleanup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	if job.FireAt.IsZero() {
		job.FireAt = time.Now().Add(job.Delay)
	}
	s.timers[job.Token] = time.AfterFunc(job.Delay, func() { s.fire(job) })
	metrics.CleanupScheduled.WithLabelValues("memory").Inc()
	return nil
}

func (s *MemoryScheduler) fire(job domain.DeferredCleanup) {
	s.mu.Lock()
	if _, ok := s.timers[job.Token]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.timers, job.Token)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	s.run(ctx, job)
}

// Pending возвращает количество ожидающих задач.
func (s *MemoryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close останавливает ожидающие таймеры и ждёт завершения уже запущенных задач.
func (s *MemoryScheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	dropped := 0
	for token, timer := range s.timers {
		if timer.Stop() {
			dropped++
		}
		delete(s.timers, token)
	}
	s.mu.Unlock()
	if dropped > 0 {
		s.log.Warn().Int("dropped", dropped).Msg("memory scheduler: ожидающие очистки отброшены при остановке")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
