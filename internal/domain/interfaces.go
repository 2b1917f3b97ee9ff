package domain

import "context"

// ParseMode задаёт разметку исходящего сообщения.
type ParseMode string

const (
	ParseModePlain    ParseMode = ""
	ParseModeHTML     ParseMode = "HTML"
	ParseModeMarkdown ParseMode = "Markdown"
)

// OutgoingMessage описывает сообщение, которое отправляет бот.
type OutgoingMessage struct {
	ChatID    int64
	Text      string
	ParseMode ParseMode
	ReplyTo   int
}

// Platform — операции мессенджера, нужные модерации.
type Platform interface {
	ChatRole(ctx context.Context, chatID, userID int64) (UserRole, error)
	Send(ctx context.Context, msg OutgoingMessage) (int, error)
	Delete(ctx context.Context, chatID int64, messageID int) error
	UserInfo(ctx context.Context, userID int64) (User, error)
	// ResolveUsername ищет пользователя по @username.
	ResolveUsername(ctx context.Context, username string) (User, error)
}

// VipStore — долговременное хранилище списка VIP.
type VipStore interface {
	// Load возвращает идентификаторы в порядке добавления.
	Load(ctx context.Context) ([]string, error)
	// Save сохраняет полный список идентификаторов.
	Save(ctx context.Context, ids []string) error
}
