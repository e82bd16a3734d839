package poll

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/camppoll/camppoll/src/data"
	"github.com/camppoll/camppoll/src/platform"
	"github.com/camppoll/camppoll/src/timeutil"
	"github.com/camppoll/camppoll/src/types"
	"github.com/google/uuid"
)

// PublishAttendance publishes tomorrow's attendance poll(s) for a guild.
// Events flagged feedback-only skip attendance and get their feedback poll
// right away. Returns the number of poll messages posted.
func (m *Manager) PublishAttendance(ctx context.Context, gs *types.GuildSettings) (int, error) {
	loc, err := timeutil.LoadLocation(gs.Timezone)
	if err != nil {
		return 0, err
	}
	date := timeutil.TomorrowIn(loc)

	events, err := m.store.EventsByDate(date)
	if err != nil {
		return 0, err
	}

	published := 0
	var candidates []types.Event
	for _, e := range events {
		if e.FeedbackOnly {
			p, err := m.createFeedbackPoll(ctx, gs, e, date)
			if err != nil {
				log.Printf("attendance: feedback-only poll for event %s: %v", e.ID, err)
				continue
			}
			if p != nil {
				published++
			}
			continue
		}
		if e.IsPollable() {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return published, nil
	}

	// Idempotence: a scheduler re-fire must not double-post.
	open, err := m.store.OpenPolls(gs.GuildID)
	if err != nil {
		return published, err
	}
	for _, p := range open {
		if !p.IsFeedback && p.PollDate == date {
			log.Printf("attendance: open poll %s already covers %s in guild %s, skipping", p.ID, date, gs.GuildID)
			return published, nil
		}
	}

	chunks := ChunkEvents(candidates, MaxOptionsPerPoll)
	for i, chunk := range chunks {
		question := fmt.Sprintf("🗳️ Choose your attendance for %s", date)
		if len(chunks) > 1 {
			question = fmt.Sprintf("%s (Poll %d/%d)", question, i+1, len(chunks))
		}

		options := make([]string, 0, len(chunk))
		for _, e := range chunk {
			options = append(options, e.OptionTitle())
		}

		posted, err := m.client.PostPoll(platform.PollSpec{
			ChannelID:     gs.PollChannelID,
			Question:      question,
			Options:       options,
			Multi:         true,
			DurationHours: pollDurationHours,
		})
		if err != nil {
			return published, fmt.Errorf("publish attendance poll for %s: %w", date, err)
		}

		p := &types.Poll{
			ID:          uuid.NewString(),
			GuildID:     gs.GuildID,
			ChannelID:   gs.PollChannelID,
			MessageID:   posted.MessageID,
			PollDate:    date,
			PublishedAt: time.Now().UTC(),
		}
		for j, e := range chunk {
			p.Options = append(p.Options, types.PollOption{
				EventID:  e.ID,
				Title:    e.OptionTitle(),
				Kind:     e.Kind,
				AnswerID: posted.AnswerIDs[j],
			})
		}
		if err := m.store.SavePoll(p); err != nil {
			return published, err
		}
		published++

		if err := data.PublishPollEvent(ctx, m.rdb, map[string]interface{}{
			"event":     "published",
			"poll_id":   p.ID,
			"guild_id":  p.GuildID,
			"poll_date": p.PollDate,
			"options":   len(p.Options),
		}); err != nil {
			log.Printf("attendance: publish stream event: %v", err)
		}
	}
	return published, nil
}
