package domain

import "strings"

// UserRole описывает статус участника в чате.
type UserRole string

const (
	RoleCreator       UserRole = "creator"
	RoleAdministrator UserRole = "administrator"
	RoleMember        UserRole = "member"
)

// ParseRole приводит статус из Bot API к роли. Всё неизвестное считается обычным участником.
func ParseRole(status string) UserRole {
	switch UserRole(strings.ToLower(strings.TrimSpace(status))) {
	case RoleCreator:
		return RoleCreator
	case RoleAdministrator:
		return RoleAdministrator
	default:
		return RoleMember
	}
}

// IsPrivileged возвращает true для владельца и администраторов.
func (r UserRole) IsPrivileged() bool {
	return r == RoleCreator || r == RoleAdministrator
}

// Verdict описывает решение политики допуска.
type Verdict string

const (
	VerdictAllow      Verdict = "allow"
	VerdictReject     Verdict = "reject"
	VerdictUnresolved Verdict = "unresolved"
)

// Decision хранит результат модерации одного сообщения.
type Decision struct {
	Verdict Verdict
	Kind    ContentKind
}
