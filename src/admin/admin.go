package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camppoll/camppoll/src/export"
	"github.com/camppoll/camppoll/src/poll"
	"github.com/camppoll/camppoll/src/scheduler"
	"github.com/camppoll/camppoll/src/store"
	"github.com/camppoll/camppoll/src/timeutil"
	"github.com/camppoll/camppoll/src/types"
	"github.com/google/uuid"
)

const maxTitleLength = 100

// Service exposes the admin operations: event CRUD, guild configuration,
// manual poll closing and exports. Configuration changes are persisted and
// pushed to the scheduler in one step.
type Service struct {
	store *store.Store
	sched *scheduler.Service
	mgr   *poll.Manager
}

func New(st *store.Store, sched *scheduler.Service, mgr *poll.Manager) *Service {
	return &Service{store: st, sched: sched, mgr: mgr}
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if len([]rune(title)) > maxTitleLength {
		return fmt.Errorf("title longer than %d characters", maxTitleLength)
	}
	if strings.ContainsAny(title, "\n\r\t") {
		return fmt.Errorf("title must be a single line")
	}
	return nil
}

// AddEvent creates an event. dateStr accepts YYYY-MM-DD, MM-DD or DD forms;
// now anchors the relative forms.
func (s *Service) AddEvent(kind types.EventKind, dateStr, title string, feedbackOnly bool, now time.Time) (*types.Event, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	date, err := timeutil.ParseFlexibleDate(dateStr, now)
	if err != nil {
		return nil, err
	}

	e := &types.Event{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(title),
		Date:         date,
		Kind:         kind,
		CreatedAt:    now.UTC(),
		FeedbackOnly: feedbackOnly,
	}
	if err := s.store.AddEvent(e); err != nil {
		return nil, err
	}
	return e, nil
}

// EditEvent updates an event's date and/or title. Empty arguments leave the
// field unchanged.
func (s *Service) EditEvent(id, dateStr, title string, now time.Time) (*types.Event, error) {
	e, err := s.store.Event(id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("no event with id %s", id)
	}

	if dateStr != "" {
		date, err := timeutil.ParseFlexibleDate(dateStr, now)
		if err != nil {
			return nil, err
		}
		e.Date = date
	}
	if title != "" {
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		e.Title = strings.TrimSpace(title)
	}
	if err := s.store.UpdateEvent(e); err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteEvent removes an event, reporting whether it existed.
func (s *Service) DeleteEvent(id string) (bool, error) {
	return s.store.DeleteEvent(id)
}

// ListEvents lists events, optionally filtered by date (YYYY-MM-DD) and/or
// kind. Empty filters match everything.
func (s *Service) ListEvents(date string, kind types.EventKind) ([]types.Event, error) {
	if kind != "" && !kind.IsValid() {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}

	var (
		events []types.Event
		err    error
	)
	switch {
	case date != "":
		events, err = s.store.EventsByDate(date)
	case kind != "":
		return s.store.EventsByKind(kind)
	default:
		return s.store.AllEvents()
	}
	if err != nil {
		return nil, err
	}
	if kind == "" {
		return events, nil
	}
	var out []types.Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListEventsRange lists events on every day from start to end inclusive.
func (s *Service) ListEventsRange(start, end string) ([]types.Event, error) {
	dates := timeutil.DatesBetween(start, end)
	if dates == nil {
		return nil, fmt.Errorf("invalid range %s..%s: use YYYY-MM-DD dates", start, end)
	}
	var out []types.Event
	for _, d := range dates {
		events, err := s.store.EventsByDate(d)
		if err != nil {
			return nil, err
		}
		out = append(out, events...)
	}
	return out, nil
}

// ClosePoll ends an open poll early by its message id, running the full
// closing flow (reconcile, results embed, CSV export).
func (s *Service) ClosePoll(ctx context.Context, guildID, messageID string) (*types.Poll, error) {
	p, err := s.store.PollByMessage(messageID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.GuildID != guildID {
		return nil, fmt.Errorf("no poll for message %s in this guild", messageID)
	}
	if p.IsClosed() {
		return nil, fmt.Errorf("poll %s is already closed", p.ID)
	}
	gs, err := s.loadOrDefault(guildID)
	if err != nil {
		return nil, err
	}
	if _, err := s.mgr.Close(ctx, gs, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ExportSummary renders a summary CSV of the guild's polls whose poll date
// falls in start..end inclusive. Returns the attachment filename and data.
func (s *Service) ExportSummary(guildID, start, end string, now time.Time) (string, []byte, error) {
	dates := timeutil.DatesBetween(start, end)
	if dates == nil {
		return "", nil, fmt.Errorf("invalid range %s..%s: use YYYY-MM-DD dates", start, end)
	}
	inRange := make(map[string]bool, len(dates))
	for _, d := range dates {
		inRange[d] = true
	}

	polls, err := s.store.PollsByGuild(guildID)
	if err != nil {
		return "", nil, err
	}
	var matched []types.Poll
	for _, p := range polls {
		if inRange[p.PollDate] {
			matched = append(matched, p)
		}
	}

	data, err := export.SummaryCSV(matched, start+".."+end, now)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("summary_%s_%s.csv", start, end), data, nil
}

// loadOrDefault returns the guild's settings, creating defaults when the
// guild has never been configured.
func (s *Service) loadOrDefault(guildID string) (*types.GuildSettings, error) {
	gs, err := s.store.GuildSettings(guildID)
	if err != nil {
		return nil, err
	}
	if gs == nil {
		def := types.DefaultGuildSettings(guildID)
		gs = &def
	}
	return gs, nil
}

func (s *Service) save(gs *types.GuildSettings) error {
	if err := s.store.SaveGuildSettings(gs); err != nil {
		return err
	}
	return s.sched.Configure(gs.GuildID, gs)
}

// SetChannels configures the poll, organiser and alerts channels. Empty
// arguments leave the channel unchanged.
func (s *Service) SetChannels(guildID, pollCh, organiserCh, alertsCh string) (*types.GuildSettings, error) {
	gs, err := s.loadOrDefault(guildID)
	if err != nil {
		return nil, err
	}
	if pollCh != "" {
		gs.PollChannelID = pollCh
	}
	if organiserCh != "" {
		gs.OrganiserChannelID = organiserCh
	}
	if alertsCh != "" {
		gs.AlertsChannelID = alertsCh
	}
	return gs, s.save(gs)
}

// SetTimezone validates and applies an IANA timezone.
func (s *Service) SetTimezone(guildID, tz string) (*types.GuildSettings, error) {
	if err := timeutil.ValidateTimezone(tz); err != nil {
		return nil, err
	}
	gs, err := s.loadOrDefault(guildID)
	if err != nil {
		return nil, err
	}
	gs.Timezone = tz
	return gs, s.save(gs)
}

// SetPollTimes applies the attendance clock triple "publish;close;reminder".
func (s *Service) SetPollTimes(guildID, spec string) (*types.GuildSettings, error) {
	parts := strings.Split(spec, ";")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid times %q: use publish;close;reminder (e.g. 14:30;09:00;19:00)", spec)
	}
	for _, p := range parts {
		if _, _, err := timeutil.ParseClock(p); err != nil {
			return nil, err
		}
	}
	gs, err := s.loadOrDefault(guildID)
	if err != nil {
		return nil, err
	}
	gs.PollPublishTime = strings.TrimSpace(parts[0])
	gs.PollCloseTime = strings.TrimSpace(parts[1])
	gs.ReminderTime = strings.TrimSpace(parts[2])
	return gs, s.save(gs)
}

// SetFeedbackTime applies the feedback publish clock.
func (s *Service) SetFeedbackTime(guildID, clock string) (*types.GuildSettings, error) {
	if _, _, err := timeutil.ParseClock(clock); err != nil {
		return nil, err
	}
	gs, err := s.loadOrDefault(guildID)
	if err != nil {
		return nil, err
	}
	gs.FeedbackPublishTime = strings.TrimSpace(clock)
	return gs, s.save(gs)
}

// SetRoles configures the student and organiser role ids. Empty arguments
// leave the role unchanged.
func (s *Service) SetRoles(guildID, studentRoleID, organiserRoleID string) (*types.GuildSettings, error) {
	gs, err := s.loadOrDefault(guildID)
	if err != nil {
		return nil, err
	}
	if studentRoleID != "" {
		gs.StudentRoleID = studentRoleID
	}
	if organiserRoleID != "" {
		gs.OrganiserRoleID = organiserRoleID
	}
	return gs, s.save(gs)
}

// SetMode switches a guild between the standard and feedback-only job sets.
func (s *Service) SetMode(guildID string, mode types.Mode) (*types.GuildSettings, error) {
	if mode != types.ModeStandard && mode != types.ModeFeedbackOnly {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	gs, err := s.loadOrDefault(guildID)
	if err != nil {
		return nil, err
	}
	gs.Mode = mode
	return gs, s.save(gs)
}
