package moderation

import (
	"fmt"

	"tg-group-guard/internal/domain"
)

const (
	textDenied      = "❌ Only group administrators can use this command."
	textUsage       = "Usage: Reply to a user's message with `/vip` OR type `/vip @username`"
	textNoVIPs      = "📭 No VIP users yet."
	textVIPListHead = "👑 <b>VIP Users:</b>\n\n"
)

func warningText(user domain.User, kind domain.ContentKind) string {
	return fmt.Sprintf("⚠️ %s, only VIP members and admins can post %s.\nContact an admin for VIP status.",
		user.MentionHTML(), kind.Plural())
}

func grantedText(user domain.User) string {
	return fmt.Sprintf("✅ %s has been verified as a VIP member!\n\nThey can now post links and files in this group.",
		user.MentionHTML())
}

func alreadyVIPText(user domain.User) string {
	return fmt.Sprintf("ℹ️ %s is already a VIP member.", user.MentionHTML())
}

func welcomeText(user domain.User) string {
	return fmt.Sprintf("🎉 Welcome to the group, %s!\n\n"+
		"We're excited to have you here. Please:\n"+
		"• Read the group rules\n"+
		"• Introduce yourself\n"+
		"• Enjoy your stay!", user.MentionHTML())
}
