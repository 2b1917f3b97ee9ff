package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-group-guard/internal/domain"
)

func TestMemorySchedulerFiresOnce(t *testing.T) {
	fired := make(chan domain.DeferredCleanup, 2)
	s := NewMemoryScheduler(func(_ context.Context, job domain.DeferredCleanup) { fired <- job }, zerolog.Nop())
	job := domain.NewDeferredCleanup(-1, 10*time.Millisecond, domain.CleanupWarning, 3)

	if err := s.ScheduleOnce(context.Background(), job); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	select {
	case got := <-fired:
		if got.Token != job.Token {
			t.Fatalf("unexpected job %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not fire")
	}
	select {
	case <-fired:
		t.Fatal("cleanup fired twice")
	case <-time.After(50 * time.Millisecond):
	}
	if s.Pending() != 0 {
		t.Fatalf("expected no pending jobs, got %d", s.Pending())
	}
}

func TestMemorySchedulerCloseDropsPending(t *testing.T) {
	s := NewMemoryScheduler(func(context.Context, domain.DeferredCleanup) {
		t.Error("dropped cleanup must not run")
	}, zerolog.Nop())
	ctx := context.Background()
	if err := s.ScheduleOnce(ctx, domain.NewDeferredCleanup(-1, time.Hour, domain.CleanupVIPGrant, 1, 2)); err != nil {
		t.Fatal(err)
	}
	if s.Pending() != 1 {
		t.Fatalf("expected 1 pending job, got %d", s.Pending())
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.Pending() != 0 {
		t.Fatal("pending jobs must be dropped")
	}
	err := s.ScheduleOnce(ctx, domain.NewDeferredCleanup(-1, time.Millisecond, domain.CleanupNotice, 1))
	if !errors.Is(err, ErrSchedulerClosed) {
		t.Fatalf("expected ErrSchedulerClosed, got %v", err)
	}
}
