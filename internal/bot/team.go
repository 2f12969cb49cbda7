package bot

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"kursbot/internal/models"
	"kursbot/internal/referral"
)

const (
	teamPageSize  = 8
	teamTreeDepth = 3
)

// ── Team screen ───────────────────────────────────────────────────────

func (b *Bot) sendTeam(c tele.Context, user *models.User, page int, edit bool) error {
	invitees, total, err := b.repos.User.FindInvitees(user.ID, teamPageSize, page*teamPageSize)
	if err != nil {
		b.logger.Error("team list load failed", zap.Uint("user_id", user.ID), zap.Error(err))
		return c.Send("Xatolik yuz berdi. Keyinroq urinib ko'ring.")
	}
	if total == 0 {
		return c.Send(
			"🚫 <b>Sizda hali referal yo'q</b>\n\n" +
				"Referal havolangizni ulashing va jamoangizni kengaytiring.",
			tele.ModeHTML,
		)
	}

	totalPages := int((total + teamPageSize - 1) / teamPageSize)

	var sb strings.Builder
	sb.WriteString("👥 <b>Mening jamoam</b>\n\n")
	fmt.Fprintf(&sb, "Jami referallar: <b>%d</b>\n", total)
	fmt.Fprintf(&sb, "Sahifa: %d/%d\n\n", page+1, totalPages)
	for i, member := range invitees {
		status := "⏳"
		if member.IsConfirmed {
			status = "✅"
		}
		fmt.Fprintf(&sb, "%d. %s <b>%s</b>\n   %s, takliflari: %d\n",
			page*teamPageSize+i+1, status, member.FullName, member.Level, member.ReferralCount)
	}

	kb := b.keyboard.TeamNav(page, totalPages)
	if edit {
		return c.Edit(sb.String(), kb, tele.ModeHTML)
	}
	return c.Send(sb.String(), kb, tele.ModeHTML)
}

func (b *Bot) handleTeamPage(c tele.Context, user *models.User, rawPage string) error {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 0 {
		return nil
	}
	return b.sendTeam(c, user, page, true)
}

func (b *Bot) sendReferralTree(c tele.Context, user *models.User) error {
	nodes, err := b.engine.ReferralTree(user.ID, teamTreeDepth)
	if err != nil {
		b.logger.Error("referral tree load failed", zap.Uint("user_id", user.ID), zap.Error(err))
		return c.Send("Xatolik yuz berdi. Keyinroq urinib ko'ring.")
	}

	text := "🌳 <b>Referal daraxti</b>\n\n"
	if len(nodes) == 0 {
		text += "Daraxtingiz hali bo'sh."
	} else {
		text += renderTree(nodes, 0)
	}
	return c.Send(text, tele.ModeHTML)
}

func renderTree(nodes []referral.TreeNode, depth int) string {
	var sb strings.Builder
	indent := strings.Repeat("    ", depth)
	for _, node := range nodes {
		status := "⏳"
		if node.User.IsConfirmed {
			status = "✅"
		}
		fmt.Fprintf(&sb, "%s├ %s <b>%s</b> (%s)\n", indent, status, node.User.FullName, node.User.Level)
		sb.WriteString(renderTree(node.Children, depth+1))
	}
	return sb.String()
}

func (b *Bot) sendTeamStats(c tele.Context, user *models.User) error {
	stats, err := b.engine.NetworkStatsFor(user.ID)
	if err != nil {
		b.logger.Error("team stats load failed", zap.Uint("user_id", user.ID), zap.Error(err))
		return c.Send("Xatolik yuz berdi. Keyinroq urinib ko'ring.")
	}

	text := fmt.Sprintf(
		"📊 <b>Referal statistikasi</b>\n\n"+
			"👥 Jami referallar: <b>%d</b>\n"+
			"✅ Tasdiqlangan: <b>%d</b>\n"+
			"⏳ Kutilayotgan: <b>%d</b>\n"+
			"🌳 Butun tarmoq: <b>%d</b>",
		stats.Direct, stats.Confirmed, stats.Direct-stats.Confirmed, stats.Network,
	)
	return c.Send(text, tele.ModeHTML)
}
