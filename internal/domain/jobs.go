package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CleanupReason описывает источник отложенного удаления.
type CleanupReason string

const (
	// CleanupVIPGrant — команда /vip и подтверждение бота.
	CleanupVIPGrant CleanupReason = "vip_grant"
	// CleanupWarning — предупреждение после удаления запрещённого контента.
	CleanupWarning CleanupReason = "warning"
	// CleanupNotice — подсказка или отказ в доступе к команде.
	CleanupNotice CleanupReason = "notice"
)

// DeferredCleanup содержит задачу на удаление сообщений через заданный интервал.
type DeferredCleanup struct {
	Token      string        `json:"token"`
	ChatID     int64         `json:"chat_id"`
	MessageIDs []int         `json:"message_ids"`
	Delay      time.Duration `json:"delay"`
	FireAt     time.Time     `json:"fire_at"`
	Reason     CleanupReason `json:"reason,omitempty"`
}

// NewDeferredCleanup создаёт задачу с уникальным токеном.
func NewDeferredCleanup(chatID int64, delay time.Duration, reason CleanupReason, messageIDs ...int) DeferredCleanup {
	ids := make([]int, len(messageIDs))
	copy(ids, messageIDs)
	return DeferredCleanup{
		Token:      uuid.NewString(),
		ChatID:     chatID,
		MessageIDs: ids,
		Delay:      delay,
		Reason:     reason,
	}
}

// CleanupFunc выполняет задачу удаления. Вызывается планировщиком один раз.
type CleanupFunc func(ctx context.Context, job DeferredCleanup)

// CleanupScheduler регистрирует одноразовые отложенные удаления.
type CleanupScheduler interface {
	// ScheduleOnce планирует выполнение задачи через job.Delay. Отмена не предусмотрена.
	ScheduleOnce(ctx context.Context, job DeferredCleanup) error
}
