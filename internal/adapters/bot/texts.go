package bot

import "fmt"

const startText = "🤖 *Group Manager Bot*\n\n" +
	"I help manage your Telegram group with these features:\n" +
	"• ✅ Welcome new members\n" +
	"• 🔗 Block links from non-VIP users\n" +
	"• 📎 Block files from non-VIP users\n" +
	"• 👑 VIP verification system\n\n" +
	"Commands:\n" +
	"/start - Show this message\n" +
	"/vip @username - Verify user as VIP (Admin only)\n" +
	"/vips - List all VIP users\n" +
	"/help - Show help information"

func helpText(blockAttachments bool) string {
	status := "DISABLED"
	if blockAttachments {
		status = "ENABLED"
	}
	return "📖 *Bot Help Guide*\n\n" +
		"*Admin Commands:*\n" +
		"• `/vip @username` - Grant VIP status to a user\n" +
		"• The /vip command auto-deletes after 5 minutes\n\n" +
		"*VIP Privileges:*\n" +
		"• VIP users can post links AND files\n" +
		"• Regular members cannot post links or files\n\n" +
		"*File Blocking:*\n" +
		fmt.Sprintf("• File blocking is currently *%s*\n", status) +
		"• Blocks: photos, documents, videos, voice messages, stickers\n\n" +
		"*Bot Requirements:*\n" +
		"1. Bot must be group administrator\n" +
		"2. Group privacy must be DISABLED in @BotFather\n" +
		"3. Bot needs 'Delete Messages' permission\n\n" +
		"Use `/vips` to see current VIP users."
}
