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

// PublishFeedback publishes feedback polls for today's eligible events.
// Feedback-only events are excluded here because they were already covered
// at attendance time. Returns the number of polls posted.
func (m *Manager) PublishFeedback(ctx context.Context, gs *types.GuildSettings) (int, error) {
	loc, err := timeutil.LoadLocation(gs.Timezone)
	if err != nil {
		return 0, err
	}
	date := timeutil.TodayIn(loc)

	events, err := m.store.EventsByDate(date)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, e := range events {
		if !e.Kind.IsFeedbackEligible() || e.FeedbackOnly {
			continue
		}
		p, err := m.createFeedbackPoll(ctx, gs, e, date)
		if err != nil {
			log.Printf("feedback: poll for event %s: %v", e.ID, err)
			continue
		}
		if p != nil {
			published++
		}
	}
	return published, nil
}

// createFeedbackPoll posts one single-choice feedback poll for an event,
// unless the event's kind has no feedback menu or an open feedback poll for
// the event already exists.
func (m *Manager) createFeedbackPoll(ctx context.Context, gs *types.GuildSettings, e types.Event, date string) (*types.Poll, error) {
	template := types.FeedbackTemplate(e.Kind)
	if len(template) == 0 {
		return nil, nil
	}

	open, err := m.store.OpenPolls(gs.GuildID)
	if err != nil {
		return nil, err
	}
	for _, p := range open {
		if !p.IsFeedback {
			continue
		}
		if p.RelatedEventID == e.ID {
			log.Printf("feedback: open poll %s already covers event %s, skipping", p.ID, e.ID)
			return nil, nil
		}
		// Older rows may predate RelatedEventID; fall back to option linkage.
		if p.RelatedEventID == "" && len(p.Options) > 0 && p.Options[0].EventID == e.ID {
			return nil, nil
		}
	}

	question := fmt.Sprintf("📝 Feedback for %s", e.OptionTitle())
	posted, err := m.client.PostPoll(platform.PollSpec{
		ChannelID:     gs.PollChannelID,
		Question:      question,
		Options:       template,
		Multi:         false,
		DurationHours: pollDurationHours,
	})
	if err != nil {
		return nil, fmt.Errorf("publish feedback poll: %w", err)
	}

	p := &types.Poll{
		ID:             uuid.NewString(),
		GuildID:        gs.GuildID,
		ChannelID:      gs.PollChannelID,
		MessageID:      posted.MessageID,
		PollDate:       date,
		RelatedEventID: e.ID,
		PublishedAt:    time.Now().UTC(),
		IsFeedback:     true,
	}
	for i, text := range template {
		p.Options = append(p.Options, types.PollOption{
			EventID:  e.ID,
			Title:    text,
			Kind:     e.Kind,
			AnswerID: posted.AnswerIDs[i],
		})
	}
	if err := m.store.SavePoll(p); err != nil {
		return nil, err
	}

	if err := data.PublishPollEvent(ctx, m.rdb, map[string]interface{}{
		"event":            "published",
		"poll_id":          p.ID,
		"guild_id":         p.GuildID,
		"poll_date":        p.PollDate,
		"related_event_id": p.RelatedEventID,
		"feedback":         true,
	}); err != nil {
		log.Printf("feedback: publish stream event: %v", err)
	}
	return p, nil
}
