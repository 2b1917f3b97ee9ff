package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-group-guard/internal/domain"
	"tg-group-guard/internal/usecase/moderation"
)

// EventKind определяет обработчик апдейта.
type EventKind string

const (
	EventStart      EventKind = "command:start"
	EventHelp       EventKind = "command:help"
	EventGrantVIP   EventKind = "command:vip"
	EventListVIPs   EventKind = "command:vips"
	EventNewMembers EventKind = "new_members"
	EventContent    EventKind = "content"
)

const textFailure = "❌ An error occurred. Please try again later."

// EventHandler обрабатывает сообщение определённого вида.
type EventHandler func(ctx context.Context, msg *tgbotapi.Message) error

// Moderator — операции модерации, которые вызывает бот.
type Moderator interface {
	Moderate(ctx context.Context, msg domain.Message) (domain.Decision, error)
	GrantVIP(ctx context.Context, req domain.GrantRequest) (moderation.GrantOutcome, error)
	ListVIPs(ctx context.Context, chatID int64, replyTo int) error
	Welcome(ctx context.Context, msg domain.Message) error
}

// Handler обслуживает апдейты бота.
type Handler struct {
	moderator        Moderator
	platform         domain.Platform
	blockAttachments bool
	log              zerolog.Logger
	routes           map[EventKind]EventHandler
}

// NewHandler создаёт обработчик с фиксированной таблицей событий.
func NewHandler(moderator Moderator, platform domain.Platform, blockAttachments bool, log zerolog.Logger) *Handler {
	h := &Handler{
		moderator:        moderator,
		platform:         platform,
		blockAttachments: blockAttachments,
		log:              log,
	}
	h.routes = map[EventKind]EventHandler{
		EventStart:      h.handleStart,
		EventHelp:       h.handleHelp,
		EventGrantVIP:   h.handleGrant,
		EventListVIPs:   h.handleList,
		EventNewMembers: h.handleNewMembers,
		EventContent:    h.handleContent,
	}
	return h
}

// HandleUpdate обрабатывает входящий апдейт. Учитываются только обычные сообщения.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	kind, ok := EventOf(msg)
	if !ok {
		return
	}
	handle, ok := h.routes[kind]
	if !ok {
		return
	}
	err := handle(ctx, msg)
	if err == nil {
		return
	}
	logger := h.log.With().
		Int("update", upd.UpdateID).
		Int64("chat", msg.Chat.ID).
		Str("event", string(kind)).
		Logger()
	if msg.From != nil {
		logger = logger.With().Int64("user", msg.From.ID).Logger()
	}
	if errors.Is(err, moderation.ErrNoSender) {
		logger.Debug().Err(err).Msg("апдейт пропущен")
		return
	}
	logger.Error().Err(err).Msg("ошибка обработки апдейта")
	if _, sendErr := h.platform.Send(ctx, domain.OutgoingMessage{ChatID: msg.Chat.ID, Text: textFailure}); sendErr != nil {
		logger.Error().Err(sendErr).Msg("не удалось сообщить об ошибке")
	}
}

// EventOf определяет вид события. Неизвестные команды игнорируются.
func EventOf(msg *tgbotapi.Message) (EventKind, bool) {
	if len(msg.NewChatMembers) > 0 {
		return EventNewMembers, true
	}
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			return EventStart, true
		case "help":
			return EventHelp, true
		case "vip":
			return EventGrantVIP, true
		case "vips":
			return EventListVIPs, true
		default:
			return "", false
		}
	}
	return EventContent, true
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	return h.reply(ctx, msg, startText, domain.ParseModeMarkdown)
}

func (h *Handler) handleHelp(ctx context.Context, msg *tgbotapi.Message) error {
	return h.reply(ctx, msg, helpText(h.blockAttachments), domain.ParseModeMarkdown)
}

func (h *Handler) handleGrant(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return moderation.ErrNoSender
	}
	target, err := ResolveTarget(ctx, msg, h.platform)
	if err != nil {
		h.log.Info().Err(err).
			Int64("chat", msg.Chat.ID).
			Int64("user", msg.From.ID).
			Msg("адресат /vip не найден")
	}
	_, err = h.moderator.GrantVIP(ctx, domain.GrantRequest{
		ChatID:           msg.Chat.ID,
		CommandMessageID: msg.MessageID,
		Invoker:          toDomainUser(msg.From),
		Target:           target,
	})
	return err
}

func (h *Handler) handleList(ctx context.Context, msg *tgbotapi.Message) error {
	return h.moderator.ListVIPs(ctx, msg.Chat.ID, msg.MessageID)
}

func (h *Handler) handleNewMembers(ctx context.Context, msg *tgbotapi.Message) error {
	return h.moderator.Welcome(ctx, ToDomainMessage(msg))
}

// handleContent не сообщает в чат об ошибках модерации, они только логируются.
func (h *Handler) handleContent(ctx context.Context, msg *tgbotapi.Message) error {
	decision, err := h.moderator.Moderate(ctx, ToDomainMessage(msg))
	if err != nil {
		logger := h.log.With().
			Int64("chat", msg.Chat.ID).
			Int("message", msg.MessageID).
			Str("verdict", string(decision.Verdict)).
			Str("kind", decision.Kind.String()).
			Logger()
		if msg.From != nil {
			logger = logger.With().Int64("user", msg.From.ID).Logger()
		}
		logger.Error().Err(err).Msg("ошибка модерации сообщения")
	}
	return nil
}

func (h *Handler) reply(ctx context.Context, msg *tgbotapi.Message, text string, mode domain.ParseMode) error {
	_, err := h.platform.Send(ctx, domain.OutgoingMessage{
		ChatID:    msg.Chat.ID,
		Text:      text,
		ParseMode: mode,
		ReplyTo:   msg.MessageID,
	})
	if err != nil {
		return fmt.Errorf("ответ на команду: %w", err)
	}
	return nil
}

// ToDomainMessage переводит сообщение Telegram в доменную модель.
func ToDomainMessage(msg *tgbotapi.Message) domain.Message {
	out := domain.Message{
		MessageID: msg.MessageID,
		Content:   toContent(msg),
	}
	if msg.Chat != nil {
		out.ChatID = msg.Chat.ID
	}
	if msg.From != nil {
		from := toDomainUser(msg.From)
		out.From = &from
	}
	for i := range msg.NewChatMembers {
		out.NewMembers = append(out.NewMembers, toDomainUser(&msg.NewChatMembers[i]))
	}
	return out
}

func toContent(msg *tgbotapi.Message) domain.Content {
	c := domain.Content{Text: msg.Text}
	for _, e := range msg.Entities {
		c.EntityTypes = append(c.EntityTypes, e.Type)
	}
	for _, e := range msg.CaptionEntities {
		c.EntityTypes = append(c.EntityTypes, e.Type)
	}
	if len(msg.Photo) > 0 {
		c.Attachments = append(c.Attachments, domain.ContentPhoto)
	}
	if msg.Document != nil {
		c.Attachments = append(c.Attachments, domain.ContentDocument)
	}
	if msg.Video != nil {
		c.Attachments = append(c.Attachments, domain.ContentVideo)
	}
	if msg.Voice != nil {
		c.Attachments = append(c.Attachments, domain.ContentVoice)
	}
	if msg.Sticker != nil {
		c.Attachments = append(c.Attachments, domain.ContentSticker)
	}
	return c
}

// UsernameLookup ищет пользователя по @username.
type UsernameLookup interface {
	ResolveUsername(ctx context.Context, username string) (domain.User, error)
}

// ResolveTarget находит адресата /vip в порядке: автор сообщения, на которое ответили,
// text_mention, @username через lookup, числовой идентификатор в аргументе.
// Ошибка поиска по @username возвращается вместе с nil.
func ResolveTarget(ctx context.Context, msg *tgbotapi.Message, lookup UsernameLookup) (*domain.User, error) {
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		u := toDomainUser(msg.ReplyToMessage.From)
		return &u, nil
	}
	for _, e := range msg.Entities {
		if e.Type == "text_mention" && e.User != nil {
			u := toDomainUser(e.User)
			return &u, nil
		}
	}
	if name := MentionedUsername(msg); name != "" {
		u, err := lookup.ResolveUsername(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("поиск %s: %w", name, err)
		}
		return &u, nil
	}
	arg := strings.TrimSpace(msg.CommandArguments())
	if fields := strings.Fields(arg); len(fields) > 0 {
		if id, err := strconv.ParseInt(fields[0], 10, 64); err == nil && id > 0 {
			return &domain.User{ID: id}, nil
		}
	}
	return nil, nil
}

// MentionedUsername возвращает текст первой сущности mention, например "@bob".
func MentionedUsername(msg *tgbotapi.Message) string {
	for _, e := range msg.Entities {
		if e.Type == "mention" {
			return entityText(msg.Text, e)
		}
	}
	return ""
}

// entityText вырезает сущность; смещения Telegram считаются в UTF-16.
func entityText(text string, e tgbotapi.MessageEntity) string {
	units := utf16.Encode([]rune(text))
	if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
}

func toDomainUser(u *tgbotapi.User) domain.User {
	return domain.User{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsBot:     u.IsBot,
	}
}
