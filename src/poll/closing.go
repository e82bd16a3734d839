package poll

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/camppoll/camppoll/src/data"
	"github.com/camppoll/camppoll/src/export"
	"github.com/camppoll/camppoll/src/timeutil"
	"github.com/camppoll/camppoll/src/types"
)

var resultMedals = []string{"🥇", "🥈", "🥉"}

// Close ends a poll on the platform, reconciles the stored votes against the
// authoritative tally, posts the results and CSV export to the organiser
// channel, and persists the closed poll. Returns true only when every step
// succeeded; once the platform poll has ended the close is never rolled back.
func (m *Manager) Close(ctx context.Context, gs *types.GuildSettings, p *types.Poll) (bool, error) {
	if p.IsClosed() {
		return false, nil
	}

	results, err := m.client.EndPoll(p.ChannelID, p.MessageID)
	if err != nil {
		return false, fmt.Errorf("close poll %s: %w", p.ID, err)
	}

	now := time.Now().UTC()
	p.ClosedAt = &now

	// The platform tally is authoritative; locally tracked votes only bridge
	// the window between gateway events.
	for _, a := range results.Answers {
		for i := range p.Options {
			opt := &p.Options[i]
			if (opt.AnswerID != "" && opt.AnswerID == a.AnswerID) || (opt.AnswerID == "" && opt.Title == a.Text) {
				opt.Votes = types.StringList(a.Voters)
				break
			}
		}
	}

	if err := m.store.SavePoll(p); err != nil {
		return false, err
	}

	// The poll stays ended and persisted whatever happens below; failures
	// only mark the run unsuccessful.
	ok := true
	if gs.OrganiserChannelID != "" {
		if err := m.client.SendEmbed(gs.OrganiserChannelID, m.resultsEmbed(p)); err != nil {
			log.Printf("closing: results embed for poll %s: %v", p.ID, err)
			ok = false
		}
		if err := m.sendExport(gs, p); err != nil {
			log.Printf("closing: csv export for poll %s: %v", p.ID, err)
			ok = false
		}
	}

	if err := data.PublishPollEvent(ctx, m.rdb, map[string]interface{}{
		"event":     "closed",
		"poll_id":   p.ID,
		"guild_id":  p.GuildID,
		"poll_date": p.PollDate,
		"voters":    p.TotalVotes(),
	}); err != nil {
		log.Printf("closing: publish stream event: %v", err)
	}
	return ok, nil
}

// CloseAllDue closes every open poll whose closing day has arrived. Feedback
// polls are due the day after their event; attendance polls follow the
// guild's publish/close clock. Returns the number of polls closed.
func (m *Manager) CloseAllDue(ctx context.Context, gs *types.GuildSettings) (int, error) {
	loc, err := timeutil.LoadLocation(gs.Timezone)
	if err != nil {
		return 0, err
	}
	today := timeutil.TodayIn(loc)

	open, err := m.store.OpenPolls(gs.GuildID)
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range open {
		p := &open[i]

		due := false
		if p.IsFeedback {
			due = p.PollDate < today
		} else {
			closing, err := timeutil.ClosingDate(p.PollDate, gs.PollPublishTime, gs.PollCloseTime)
			if err != nil {
				log.Printf("closing: closing date for poll %s: %v", p.ID, err)
				continue
			}
			due = closing <= today
		}
		if !due {
			continue
		}

		ok, err := m.Close(ctx, gs, p)
		if err != nil {
			log.Printf("closing: poll %s: %v", p.ID, err)
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

func (m *Manager) resultsEmbed(p *types.Poll) *discordgo.MessageEmbed {
	ranked := make([]types.PollOption, len(p.Options))
	copy(ranked, p.Options)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].VoteCount() > ranked[j].VoteCount()
	})

	total := p.TotalVotes()
	var desc bytes.Buffer
	for i, opt := range ranked {
		medal := "📝"
		if i < len(resultMedals) {
			medal = resultMedals[i]
		}
		pct := 0.0
		if total > 0 {
			pct = float64(opt.VoteCount()) / float64(total) * 100
		}
		fmt.Fprintf(&desc, "%s %s — %d votes (%.0f%%)\n", medal, opt.Title, opt.VoteCount(), pct)
	}

	title := fmt.Sprintf("📊 Results for %s", p.PollDate)
	if p.IsFeedback {
		title = fmt.Sprintf("📊 Feedback results for %s", p.PollDate)
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: desc.String(),
		Color:       0x3498DB,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d voters", total)},
	}
}

func (m *Manager) sendExport(gs *types.GuildSettings, p *types.Poll) error {
	usernames := make(map[string]string)
	for i := range p.Options {
		for _, uid := range p.Options[i].Votes {
			if _, ok := usernames[uid]; ok {
				continue
			}
			usernames[uid] = m.client.Username(p.GuildID, uid)
		}
	}

	csvData, err := export.AttendanceCSV(p, usernames)
	if err != nil {
		return err
	}
	content := fmt.Sprintf("Attendance export for %s", p.PollDate)
	return m.client.SendFile(gs.OrganiserChannelID, content, export.Filename(p), bytes.NewReader(csvData))
}
