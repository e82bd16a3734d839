package poll

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/camppoll/camppoll/src/logging"
	"github.com/camppoll/camppoll/src/platform"
	"github.com/camppoll/camppoll/src/timeutil"
	"github.com/camppoll/camppoll/src/types"
)

// interDMDelay spaces reminder DMs out to stay under the global rate limit.
const interDMDelay = 300 * time.Millisecond

// rateLimitBackoff is the pause after a rate-limited DM before moving on to
// the next user. The failed DM is not resent within the same pass.
const rateLimitBackoff = 2 * time.Second

// ReminderStats summarizes one reminder run.
type ReminderStats struct {
	Sent            int
	Failed          int
	AlreadyReminded int
	TotalMembers    int
	TotalPolls      int
}

// SendReminders DMs every eligible member who has not voted in at least one
// open poll. A user with several outstanding polls gets a single DM; on
// delivery they are marked reminded in all of them, so a later run never
// re-pings them for the same polls. A failed DM marks nothing and the user is
// retried on the next run.
func (m *Manager) SendReminders(ctx context.Context, gs *types.GuildSettings) (ReminderStats, error) {
	var stats ReminderStats

	open, err := m.store.OpenPolls(gs.GuildID)
	if err != nil {
		return stats, err
	}
	if len(open) == 0 {
		return stats, nil
	}
	stats.TotalPolls = len(open)

	members, err := m.client.Members(gs.GuildID)
	if err != nil {
		return stats, err
	}
	students := m.filterStudents(gs, members)
	stats.TotalMembers = len(students)
	if len(students) == 0 {
		return stats, nil
	}

	memberIDs := make([]string, 0, len(students))
	for _, mem := range students {
		memberIDs = append(memberIDs, mem.ID)
	}

	// Fan-in: one entry per user across all open polls, in the order users
	// first appear.
	pending := make(map[string][]*types.Poll)
	var order []string
	for i := range open {
		p := &open[i]
		for _, uid := range p.NonVoters(memberIDs) {
			if p.RemindedUsers.Contains(uid) {
				stats.AlreadyReminded++
				continue
			}
			if _, ok := pending[uid]; !ok {
				order = append(order, uid)
			}
			pending[uid] = append(pending[uid], p)
		}
	}
	if len(order) == 0 {
		return stats, nil
	}

	touched := make(map[string]*types.Poll)
	for _, uid := range order {
		if err := ctx.Err(); err != nil {
			break
		}

		embed := m.reminderEmbed(gs, pending[uid])
		if err := m.client.SendDM(uid, embed); err != nil {
			stats.Failed++
			switch {
			case logging.IsRateLimit(err):
				log.Printf("reminders: dm user %s rate limited", uid)
				time.Sleep(rateLimitBackoff)
			case logging.IsForbidden(err):
				log.Printf("reminders: user %s blocks DMs", uid)
			default:
				log.Printf("reminders: dm user %s: %v", uid, err)
			}
		} else {
			stats.Sent++
			// Only delivered reminders count; a failed user stays unmarked
			// and is picked up again on the next run.
			for _, p := range pending[uid] {
				p.MarkReminded(uid)
				touched[p.ID] = p
			}
		}
		time.Sleep(interDMDelay)
	}

	for _, p := range touched {
		if err := m.store.SavePoll(p); err != nil {
			log.Printf("reminders: save poll %s: %v", p.ID, err)
		}
	}

	if stats.Failed > 0 && gs.AlertsChannelID != "" {
		m.sendReminderAlert(gs, stats)
	}
	return stats, nil
}

// filterStudents returns non-bot members holding the student role. The role
// id is authoritative; matching by role name is a deprecated fallback kept
// for guilds configured before ids were introduced.
func (m *Manager) filterStudents(gs *types.GuildSettings, members []platform.Member) []platform.Member {
	roleID := gs.StudentRoleID
	if roleID == "" && gs.StudentRoleName != "" {
		log.Printf("reminders: guild %s resolves the student role by name %q; configure a role id instead", gs.GuildID, gs.StudentRoleName)
		roles, err := m.client.Roles(gs.GuildID)
		if err != nil {
			log.Printf("reminders: list roles for guild %s: %v", gs.GuildID, err)
			return nil
		}
		for _, r := range roles {
			if strings.EqualFold(r.Name, gs.StudentRoleName) {
				roleID = r.ID
				break
			}
		}
	}
	if roleID == "" {
		return nil
	}

	var out []platform.Member
	for _, mem := range members {
		if mem.Bot {
			continue
		}
		for _, rid := range mem.RoleIDs {
			if rid == roleID {
				out = append(out, mem)
				break
			}
		}
	}
	return out
}

func (m *Manager) reminderEmbed(gs *types.GuildSettings, polls []*types.Poll) *discordgo.MessageEmbed {
	var lines []string
	for _, p := range polls {
		publish := gs.PollPublishTime
		if p.IsFeedback {
			publish = gs.FeedbackPublishTime
		}
		line := fmt.Sprintf("• <#%s>", p.ChannelID)
		if deadline, err := timeutil.ClosingDate(p.PollDate, publish, gs.PollCloseTime); err == nil {
			line = fmt.Sprintf("%s — closes %s at %s", line, deadline, gs.PollCloseTime)
		}
		lines = append(lines, line)
	}
	return &discordgo.MessageEmbed{
		Title:       "⏰ You have unanswered polls",
		Description: "Please vote before they close:\n" + strings.Join(lines, "\n"),
		Color:       0xF1C40F,
	}
}

func (m *Manager) sendReminderAlert(gs *types.GuildSettings, stats ReminderStats) {
	embed := &discordgo.MessageEmbed{
		Title: "Reminder run finished with failures",
		Description: fmt.Sprintf("Sent %d, failed %d (members %d, open polls %d)",
			stats.Sent, stats.Failed, stats.TotalMembers, stats.TotalPolls),
		Color: 0xE74C3C,
	}
	if err := m.client.SendEmbed(gs.AlertsChannelID, embed); err != nil {
		log.Printf("reminders: alert embed: %v", err)
	}
}
