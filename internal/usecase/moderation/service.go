package moderation

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-group-guard/internal/domain"
	"tg-group-guard/internal/infra/metrics"
	"tg-group-guard/internal/usecase/admission"
)

const (
	// WarningTTL — время жизни предупреждения об удалённом контенте.
	WarningTTL = 30 * time.Second
	// DeniedNoticeTTL — время жизни отказа в доступе к /vip.
	DeniedNoticeTTL = 10 * time.Second
	// UsageNoticeTTL — время жизни подсказки по /vip.
	UsageNoticeTTL = 15 * time.Second
	// GrantCleanupDelay — через сколько удаляются команда /vip и подтверждение.
	GrantCleanupDelay = 5 * time.Minute

	vipListLimit      = 20
	defaultRetryDelay = 500 * time.Millisecond
)

// ErrNoSender возвращается для команд без известного отправителя.
var ErrNoSender = errors.New("команда без отправителя")

// GrantOutcome описывает результат команды /vip.
type GrantOutcome string

const (
	GrantAdded      GrantOutcome = "added"
	GrantAlreadyVIP GrantOutcome = "already_vip"
	GrantDenied     GrantOutcome = "denied"
	GrantNoTarget   GrantOutcome = "no_target"
	GrantUnresolved GrantOutcome = "unresolved"
)

// Registry — операции реестра VIP, нужные модерации.
type Registry interface {
	IsVIP(tgUserID int64) bool
	AddUser(ctx context.Context, tgUserID int64) bool
	List() []string
}

// Service применяет политику допуска и обслуживает команды модерации.
type Service struct {
	platform   domain.Platform
	vips       Registry
	scheduler  domain.CleanupScheduler
	policy     admission.Policy
	botID      int64
	log        zerolog.Logger
	retryDelay time.Duration
}

// NewService создаёт сервис модерации.
func NewService(platform domain.Platform, vips Registry, scheduler domain.CleanupScheduler, policy admission.Policy, botID int64, log zerolog.Logger) *Service {
	return &Service{
		platform:   platform,
		vips:       vips,
		scheduler:  scheduler,
		policy:     policy,
		botID:      botID,
		log:        log,
		retryDelay: defaultRetryDelay,
	}
}

// Moderate проверяет сообщение и удаляет его, если отправитель не может публиковать такой контент.
// Ошибка означает, что путь отклонения прерван: сообщение не удалено или предупреждение не отправлено.
func (s *Service) Moderate(ctx context.Context, msg domain.Message) (domain.Decision, error) {
	kind := s.policy.Classify(msg.Content)
	decision := domain.Decision{Verdict: domain.VerdictAllow, Kind: kind}
	if kind == domain.ContentNone || msg.From == nil {
		return decision, nil
	}
	sender := *msg.From
	logger := s.log.With().
		Int64("chat", msg.ChatID).
		Int64("user", sender.ID).
		Int("message", msg.MessageID).
		Str("kind", kind.String()).
		Logger()

	isVIP := s.vips.IsVIP(sender.ID)
	role := domain.RoleMember
	if !isVIP {
		r, err := s.lookupRole(ctx, msg.ChatID, sender.ID)
		switch {
		case err == nil:
			role = r
		case s.policy.OnRoleError == admission.RoleErrorDeny:
			logger.Warn().Err(err).Msg("не удалось проверить статус отправителя, считаем обычным участником")
		default:
			logger.Error().Err(err).Msg("не удалось проверить статус отправителя, сообщение оставлено")
			decision.Verdict = domain.VerdictUnresolved
			metrics.ObserveDecision(string(decision.Verdict), kind.String())
			return decision, nil
		}
	}

	decision.Verdict = admission.Decide(role, kind, isVIP)
	metrics.ObserveDecision(string(decision.Verdict), kind.String())
	if decision.Verdict == domain.VerdictAllow {
		logger.Debug().Bool("vip", isVIP).Str("role", string(role)).Msg("контент разрешён")
		return decision, nil
	}
	return decision, s.reject(ctx, msg, sender, kind, logger)
}

// reject удаляет сообщение, затем отправляет предупреждение и планирует его удаление.
func (s *Service) reject(ctx context.Context, msg domain.Message, sender domain.User, kind domain.ContentKind, logger zerolog.Logger) error {
	if err := s.platform.Delete(ctx, msg.ChatID, msg.MessageID); err != nil {
		return fmt.Errorf("удаление сообщения %d: %w", msg.MessageID, err)
	}
	logger.Info().Str("username", sender.Username).Msg("удалён ограниченный контент")

	warningID, err := s.platform.Send(ctx, domain.OutgoingMessage{
		ChatID:    msg.ChatID,
		Text:      warningText(sender, kind),
		ParseMode: domain.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("отправка предупреждения: %w", err)
	}
	s.schedule(ctx, domain.NewDeferredCleanup(msg.ChatID, WarningTTL, domain.CleanupWarning, warningID))
	return nil
}

// GrantVIP выдаёт VIP-статус по команде администратора.
func (s *Service) GrantVIP(ctx context.Context, req domain.GrantRequest) (GrantOutcome, error) {
	logger := s.log.With().
		Int64("chat", req.ChatID).
		Int64("user", req.Invoker.ID).
		Int("message", req.CommandMessageID).
		Logger()

	role, err := s.lookupRole(ctx, req.ChatID, req.Invoker.ID)
	if err != nil {
		logger.Error().Err(err).Msg("не удалось проверить статус администратора")
		metrics.ObserveGrant(string(GrantUnresolved))
		return GrantUnresolved, nil
	}
	if !role.IsPrivileged() {
		logger.Warn().Str("username", req.Invoker.Username).Msg("команда /vip от обычного участника")
		metrics.ObserveGrant(string(GrantDenied))
		return GrantDenied, s.notice(ctx, req.ChatID, req.CommandMessageID, textDenied, domain.ParseModePlain, DeniedNoticeTTL)
	}
	if req.Target == nil {
		metrics.ObserveGrant(string(GrantNoTarget))
		return GrantNoTarget, s.notice(ctx, req.ChatID, req.CommandMessageID, textUsage, domain.ParseModeMarkdown, UsageNoticeTTL)
	}

	target := *req.Target
	outcome := GrantAlreadyVIP
	text := alreadyVIPText(target)
	if s.vips.AddUser(ctx, target.ID) {
		outcome = GrantAdded
		text = grantedText(target)
	}
	metrics.ObserveGrant(string(outcome))

	confirmID, err := s.platform.Send(ctx, domain.OutgoingMessage{
		ChatID:    req.ChatID,
		Text:      text,
		ParseMode: domain.ParseModeHTML,
		ReplyTo:   req.CommandMessageID,
	})
	if err != nil {
		s.schedule(ctx, domain.NewDeferredCleanup(req.ChatID, GrantCleanupDelay, domain.CleanupVIPGrant, req.CommandMessageID))
		return outcome, fmt.Errorf("отправка подтверждения VIP: %w", err)
	}
	logger.Info().
		Str("username", req.Invoker.Username).
		Int64("target", target.ID).
		Str("target_username", target.Username).
		Str("outcome", string(outcome)).
		Msg("команда /vip выполнена")

	s.schedule(ctx, domain.NewDeferredCleanup(req.ChatID, GrantCleanupDelay, domain.CleanupVIPGrant, req.CommandMessageID, confirmID))
	return outcome, nil
}

// ListVIPs отправляет список VIP, не больше vipListLimit записей.
func (s *Service) ListVIPs(ctx context.Context, chatID int64, replyTo int) error {
	ids := s.vips.List()
	if len(ids) == 0 {
		_, err := s.platform.Send(ctx, domain.OutgoingMessage{ChatID: chatID, Text: textNoVIPs, ReplyTo: replyTo})
		return err
	}

	shown := ids
	if len(shown) > vipListLimit {
		shown = shown[:vipListLimit]
	}
	lines := make([]string, 0, len(shown))
	for _, id := range shown {
		lines = append(lines, "• "+s.vipLine(ctx, id))
	}
	var b strings.Builder
	b.WriteString(textVIPListHead)
	b.WriteString(strings.Join(lines, "\n"))
	if rest := len(ids) - len(shown); rest > 0 {
		b.WriteString(fmt.Sprintf("\n\n... and %d more VIPs", rest))
	}
	_, err := s.platform.Send(ctx, domain.OutgoingMessage{
		ChatID:    chatID,
		Text:      b.String(),
		ParseMode: domain.ParseModeHTML,
		ReplyTo:   replyTo,
	})
	return err
}

func (s *Service) vipLine(ctx context.Context, id string) string {
	if tgID, err := strconv.ParseInt(id, 10, 64); err == nil {
		user, err := s.platform.UserInfo(ctx, tgID)
		if err == nil {
			return user.MentionHTML()
		}
		s.log.Debug().Err(err).Str("user", id).Msg("не удалось получить профиль VIP")
	}
	return "User ID: " + html.EscapeString(id)
}

// Welcome приветствует новых участников, пропуская самого бота.
func (s *Service) Welcome(ctx context.Context, msg domain.Message) error {
	var errs []error
	for _, member := range msg.NewMembers {
		if member.ID == s.botID {
			continue
		}
		_, err := s.platform.Send(ctx, domain.OutgoingMessage{
			ChatID:    msg.ChatID,
			Text:      welcomeText(member),
			ParseMode: domain.ParseModeHTML,
			ReplyTo:   msg.MessageID,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("приветствие %d: %w", member.ID, err))
			continue
		}
		s.log.Info().Int64("chat", msg.ChatID).Int64("user", member.ID).Str("username", member.Username).Msg("новый участник")
	}
	return errors.Join(errs...)
}

// notice отправляет служебное сообщение и планирует его удаление.
func (s *Service) notice(ctx context.Context, chatID int64, replyTo int, text string, mode domain.ParseMode, ttl time.Duration) error {
	id, err := s.platform.Send(ctx, domain.OutgoingMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: mode,
		ReplyTo:   replyTo,
	})
	if err != nil {
		return fmt.Errorf("отправка уведомления: %w", err)
	}
	s.schedule(ctx, domain.NewDeferredCleanup(chatID, ttl, domain.CleanupNotice, id))
	return nil
}

func (s *Service) schedule(ctx context.Context, job domain.DeferredCleanup) {
	if err := s.scheduler.ScheduleOnce(ctx, job); err != nil {
		s.log.Error().Err(err).
			Str("token", job.Token).
			Int64("chat", job.ChatID).
			Ints("messages", job.MessageIDs).
			Msg("не удалось запланировать удаление")
	}
}

// lookupRole запрашивает роль с одной повторной попыткой.
func (s *Service) lookupRole(ctx context.Context, chatID, userID int64) (domain.UserRole, error) {
	role, err := s.platform.ChatRole(ctx, chatID, userID)
	if err == nil {
		return role, nil
	}
	s.log.Debug().Err(err).Int64("chat", chatID).Int64("user", userID).Msg("повтор запроса роли")
	if s.retryDelay > 0 {
		timer := time.NewTimer(s.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	role, err = s.platform.ChatRole(ctx, chatID, userID)
	if err != nil {
		return "", fmt.Errorf("получение роли: %w", err)
	}
	return role, nil
}
