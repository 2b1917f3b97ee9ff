package admission

import (
	"fmt"
	"strings"

	"tg-group-guard/internal/domain"
)

// CommandPrefix отмечает команды бота; они не проходят проверку допуска.
const CommandPrefix = "/"

// RoleErrorPolicy определяет поведение при ошибке получения роли отправителя.
type RoleErrorPolicy string

const (
	// RoleErrorSkip оставляет сообщение без изменений и только логирует ошибку.
	RoleErrorSkip RoleErrorPolicy = "skip"
	// RoleErrorDeny считает отправителя обычным участником.
	RoleErrorDeny RoleErrorPolicy = "deny"
)

// ParseRoleErrorPolicy разбирает значение из конфигурации.
func ParseRoleErrorPolicy(raw string) (RoleErrorPolicy, error) {
	switch p := RoleErrorPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "", RoleErrorSkip:
		return RoleErrorSkip, nil
	case RoleErrorDeny:
		return RoleErrorDeny, nil
	default:
		return "", fmt.Errorf("unknown role error policy %q", raw)
	}
}

// Policy содержит настройки политики допуска.
type Policy struct {
	BlockAttachments bool
	OnRoleError      RoleErrorPolicy
}

// Classify определяет категорию ограниченного контента.
func (p Policy) Classify(content domain.Content) domain.ContentKind {
	return Classify(content, p.BlockAttachments)
}

// Classify определяет категорию: ссылка важнее вложения, команды всегда без категории.
func Classify(content domain.Content, blockAttachments bool) domain.ContentKind {
	if strings.HasPrefix(content.Text, CommandPrefix) {
		return domain.ContentNone
	}
	for _, typ := range content.EntityTypes {
		if isLinkEntity(typ) {
			return domain.ContentLink
		}
	}
	if !blockAttachments {
		return domain.ContentNone
	}
	for _, kind := range domain.AttachmentKinds {
		if content.HasAttachment(kind) {
			return kind
		}
	}
	return domain.ContentNone
}

func isLinkEntity(typ string) bool {
	return typ == "url" || typ == "text_link"
}

// Decide применяет политику к роли, категории и VIP-статусу.
func Decide(role domain.UserRole, kind domain.ContentKind, isVIP bool) domain.Verdict {
	if role.IsPrivileged() || isVIP || kind == domain.ContentNone {
		return domain.VerdictAllow
	}
	return domain.VerdictReject
}
