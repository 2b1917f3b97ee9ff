package domain

import (
	"fmt"
	"html"
	"strings"
)

// User описывает участника чата Telegram.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	IsBot     bool
}

// DisplayName возвращает имя для показа в сообщениях.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("User %d", u.ID)
}

// MentionHTML формирует HTML-упоминание пользователя по ID.
func (u User) MentionHTML() string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, u.ID, html.EscapeString(u.DisplayName()))
}

// ContentKind описывает категорию ограниченного контента в сообщении.
type ContentKind string

const (
	ContentNone     ContentKind = ""
	ContentLink     ContentKind = "link"
	ContentPhoto    ContentKind = "photo"
	ContentDocument ContentKind = "document"
	ContentVideo    ContentKind = "video"
	ContentVoice    ContentKind = "voice"
	ContentSticker  ContentKind = "sticker"
)

// AttachmentKinds задаёт порядок проверки вложений.
var AttachmentKinds = []ContentKind{
	ContentPhoto,
	ContentDocument,
	ContentVideo,
	ContentVoice,
	ContentSticker,
}

// Plural возвращает название категории для текста предупреждения.
func (k ContentKind) Plural() string {
	if k == ContentNone {
		return "content"
	}
	return string(k) + "s"
}

// String нужен для логов и меток метрик.
func (k ContentKind) String() string {
	if k == ContentNone {
		return "none"
	}
	return string(k)
}

// Content содержит то, что важно для классификации сообщения.
type Content struct {
	Text        string
	EntityTypes []string
	Attachments []ContentKind
}

// HasAttachment сообщает, есть ли в сообщении вложение указанного типа.
func (c Content) HasAttachment(kind ContentKind) bool {
	for _, k := range c.Attachments {
		if k == kind {
			return true
		}
	}
	return false
}

// Message представляет входящее сообщение группы.
type Message struct {
	ChatID     int64
	MessageID  int
	From       *User
	Content    Content
	NewMembers []User
}

// GrantRequest описывает вызов команды выдачи VIP-статуса.
type GrantRequest struct {
	ChatID           int64
	CommandMessageID int
	Invoker          User
	Target           *User
}
