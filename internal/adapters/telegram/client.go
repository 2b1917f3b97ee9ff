package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-group-guard/internal/domain"
	"tg-group-guard/internal/infra/metrics"
)

const (
	component = "telegram_bot"
	target    = "bot_api"
)

// ErrUsernameUnsupported возвращается, когда поиск по @username не настроен.
var ErrUsernameUnsupported = errors.New("telegram: username lookup is not configured")

// API — подмножество методов *tgbotapi.BotAPI, которыми пользуется клиент.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

// UsernameResolver ищет пользователя по @username. Bot API этого не умеет.
type UsernameResolver interface {
	ResolveUsername(ctx context.Context, username string) (domain.User, error)
}

// Client реализует domain.Platform поверх Bot API.
type Client struct {
	api      API
	resolver UsernameResolver
}

// NewClient создаёт клиента Telegram. resolver может быть nil.
func NewClient(api API, resolver UsernameResolver) *Client {
	return &Client{api: api, resolver: resolver}
}

// ChatRole возвращает роль пользователя в чате.
func (c *Client) ChatRole(ctx context.Context, chatID, userID int64) (domain.UserRole, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	metrics.ObserveNetworkRequest(component, "get_chat_member", target, start, err)
	if err != nil {
		return "", fmt.Errorf("getChatMember %d/%d: %w", chatID, userID, err)
	}
	return domain.ParseRole(member.Status), nil
}

// Send отправляет сообщение и возвращает его идентификатор.
func (c *Client) Send(ctx context.Context, out domain.OutgoingMessage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(out.ChatID, out.Text)
	msg.ParseMode = string(out.ParseMode)
	if out.ReplyTo != 0 {
		msg.ReplyToMessageID = out.ReplyTo
		msg.AllowSendingWithoutReply = true
	}
	start := time.Now()
	sent, err := c.api.Send(msg)
	metrics.ObserveNetworkRequest(component, "send_message", target, start, err)
	if err != nil {
		return 0, fmt.Errorf("sendMessage %d: %w", out.ChatID, err)
	}
	return sent.MessageID, nil
}

// Delete удаляет сообщение из чата.
func (c *Client) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	_, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	metrics.ObserveNetworkRequest(component, "delete_message", target, start, err)
	if err != nil {
		return fmt.Errorf("deleteMessage %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

// UserInfo возвращает профиль пользователя по его идентификатору.
func (c *Client) UserInfo(ctx context.Context, userID int64) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	start := time.Now()
	chat, err := c.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: userID}})
	metrics.ObserveNetworkRequest(component, "get_chat", target, start, err)
	if err != nil {
		return domain.User{}, fmt.Errorf("getChat %d: %w", userID, err)
	}
	return domain.User{
		ID:        chat.ID,
		Username:  chat.UserName,
		FirstName: chat.FirstName,
		LastName:  chat.LastName,
	}, nil
}

// ResolveUsername делегирует поиск MTProto-резолверу.
func (c *Client) ResolveUsername(ctx context.Context, username string) (domain.User, error) {
	if c.resolver == nil {
		return domain.User{}, ErrUsernameUnsupported
	}
	return c.resolver.ResolveUsername(ctx, username)
}
