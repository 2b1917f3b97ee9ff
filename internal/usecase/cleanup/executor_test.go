package cleanup

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"tg-group-guard/internal/domain"
)

type recordingDeleter struct {
	calls []int
	fail  map[int]bool
}

func (d *recordingDeleter) Delete(_ context.Context, chatID int64, messageID int) error {
	d.calls = append(d.calls, messageID)
	if d.fail[messageID] {
		return errors.New("message to delete not found")
	}
	return nil
}

func TestRunContinuesAfterFailure(t *testing.T) {
	deleter := &recordingDeleter{fail: map[int]bool{11: true}}
	exec := NewExecutor(deleter, zerolog.Nop())
	job := domain.NewDeferredCleanup(-100, 0, domain.CleanupVIPGrant, 10, 11, 12)

	exec.Run(context.Background(), job)

	if want := []int{10, 11, 12}; !reflect.DeepEqual(deleter.calls, want) {
		t.Fatalf("deleted %v, want %v", deleter.calls, want)
	}
}

func TestRunAllAlreadyGone(t *testing.T) {
	deleter := &recordingDeleter{fail: map[int]bool{1: true, 2: true}}
	exec := NewExecutor(deleter, zerolog.Nop())
	exec.Func()(context.Background(), domain.NewDeferredCleanup(1, 0, domain.CleanupNotice, 1, 2))
	if len(deleter.calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(deleter.calls))
	}
}
