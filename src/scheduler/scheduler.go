package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/camppoll/camppoll/src/poll"
	"github.com/camppoll/camppoll/src/store"
	"github.com/camppoll/camppoll/src/timeutil"
	"github.com/camppoll/camppoll/src/types"
)

// JobKind names one recurring per-guild job.
type JobKind string

const (
	JobPublishAttendance JobKind = "publish_attendance"
	JobSendReminders     JobKind = "send_reminders"
	JobClosePolls        JobKind = "close_polls"
	JobPublishFeedback   JobKind = "publish_feedback"
)

// misfireGrace bounds how late a firing may be and still run. A firing later
// than this (host suspend, long GC pause) is skipped; the next occurrence
// runs normally.
const misfireGrace = 5 * time.Minute

type jobKey struct {
	Kind    JobKind
	GuildID string
}

type job struct {
	kind    JobKind
	guildID string
	hour    int
	minute  int
	loc     *time.Location

	cancel  context.CancelFunc
	started bool
	// runMu coalesces firings: a firing that arrives while the previous run
	// is still in flight is dropped, never queued.
	runMu sync.Mutex
}

// Stats is a point-in-time snapshot of the scheduler.
type Stats struct {
	Running bool
	Jobs    int
	Guilds  int
}

// Service runs the per-guild daily jobs. Each job fires once per day at a
// guild-local wall-clock time.
type Service struct {
	mgr   *poll.Manager
	store *store.Store

	mu      sync.Mutex
	jobs    map[jobKey]*job
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

func New(mgr *poll.Manager, st *store.Store) *Service {
	return &Service{
		mgr:   mgr,
		store: st,
		jobs:  make(map[jobKey]*job),
	}
}

// jobClocks returns the job set a guild runs under its settings. Feedback-only
// guilds skip attendance publishing and closing.
func jobClocks(gs *types.GuildSettings) map[JobKind]string {
	if gs.Mode == types.ModeFeedbackOnly {
		return map[JobKind]string{
			JobPublishFeedback: gs.FeedbackPublishTime,
			JobSendReminders:   gs.ReminderTime,
		}
	}
	return map[JobKind]string{
		JobPublishAttendance: gs.PollPublishTime,
		JobSendReminders:     gs.ReminderTime,
		JobClosePolls:        gs.PollCloseTime,
		JobPublishFeedback:   gs.FeedbackPublishTime,
	}
}

// Configure replaces a guild's job set from its settings. An invalid timezone
// is rejected and the guild's existing jobs keep running; an invalid clock
// string falls back to the default for that job with a warning.
func (s *Service) Configure(guildID string, gs *types.GuildSettings) error {
	loc, err := timeutil.LoadLocation(gs.Timezone)
	if err != nil {
		return fmt.Errorf("configure guild %s: %w", guildID, err)
	}

	defaults := types.DefaultGuildSettings(guildID)
	defaultClocks := jobClocks(&defaults)

	type pending struct {
		kind         JobKind
		hour, minute int
	}
	var adds []pending
	for kind, clock := range jobClocks(gs) {
		hour, minute, err := timeutil.ParseClock(clock)
		if err != nil {
			fallback := defaultClocks[kind]
			log.Printf("scheduler: guild %s job %s has invalid time %q, using %s", guildID, kind, clock, fallback)
			hour, minute, err = timeutil.ParseClock(fallback)
			if err != nil {
				return fmt.Errorf("configure guild %s job %s: %w", guildID, kind, err)
			}
		}
		adds = append(adds, pending{kind: kind, hour: hour, minute: minute})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeGuildJobsLocked(guildID)
	for _, a := range adds {
		j := &job{kind: a.kind, guildID: guildID, hour: a.hour, minute: a.minute, loc: loc}
		s.jobs[jobKey{Kind: a.kind, GuildID: guildID}] = j
		if s.running {
			s.startJobLocked(j)
		}
	}
	return nil
}

// ConfigureAll configures every guild with stored settings. Guilds that fail
// to configure are logged and skipped.
func (s *Service) ConfigureAll() error {
	all, err := s.store.AllGuildSettings()
	if err != nil {
		return err
	}
	for i := range all {
		gs := &all[i]
		if err := s.Configure(gs.GuildID, gs); err != nil {
			log.Printf("scheduler: %v", err)
		}
	}
	return nil
}

// Remove drops all jobs of a guild.
func (s *Service) Remove(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeGuildJobsLocked(guildID)
}

func (s *Service) removeGuildJobsLocked(guildID string) {
	for key, j := range s.jobs {
		if key.GuildID != guildID {
			continue
		}
		if j.cancel != nil {
			j.cancel()
		}
		delete(s.jobs, key)
	}
}

// Start launches the timer loops. Calling Start on a running service is a
// no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true
	for _, j := range s.jobs {
		s.startJobLocked(j)
	}
	log.Printf("scheduler: started with %d jobs", len(s.jobs))
}

// Stop cancels all loops and waits for in-flight runs to finish. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	for _, j := range s.jobs {
		j.cancel = nil
		j.started = false
	}
	s.mu.Unlock()

	s.wg.Wait()
	log.Printf("scheduler: stopped")
}

func (s *Service) startJobLocked(j *job) {
	if j.started {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	j.cancel = cancel
	j.started = true
	s.wg.Add(1)
	go s.loop(ctx, j)
}

func (s *Service) loop(ctx context.Context, j *job) {
	defer s.wg.Done()
	for {
		next := NextRun(time.Now(), j.hour, j.minute, j.loc)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if late := time.Since(next); late > misfireGrace {
			log.Printf("scheduler: %s for guild %s fired %s late, skipping occurrence", j.kind, j.guildID, late.Round(time.Second))
			continue
		}
		if !j.runMu.TryLock() {
			log.Printf("scheduler: %s for guild %s still running, dropping firing", j.kind, j.guildID)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer j.runMu.Unlock()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("scheduler: %s for guild %s panicked: %v", j.kind, j.guildID, r)
				}
			}()
			s.execute(ctx, j)
		}()
	}
}

// execute loads fresh settings for every firing so admin changes between
// occurrences take effect without a reconfigure.
func (s *Service) execute(ctx context.Context, j *job) {
	gs, err := s.store.GuildSettings(j.guildID)
	if err != nil {
		log.Printf("scheduler: %s for guild %s: load settings: %v", j.kind, j.guildID, err)
		return
	}
	if gs == nil {
		log.Printf("scheduler: %s for guild %s: no settings, skipping", j.kind, j.guildID)
		return
	}

	switch j.kind {
	case JobPublishAttendance:
		n, err := s.mgr.PublishAttendance(ctx, gs)
		s.report(j, fmt.Sprintf("published %d attendance polls", n), err)
	case JobSendReminders:
		stats, err := s.mgr.SendReminders(ctx, gs)
		s.report(j, fmt.Sprintf("reminders sent=%d failed=%d", stats.Sent, stats.Failed), err)
	case JobClosePolls:
		n, err := s.mgr.CloseAllDue(ctx, gs)
		s.report(j, fmt.Sprintf("closed %d polls", n), err)
	case JobPublishFeedback:
		n, err := s.mgr.PublishFeedback(ctx, gs)
		s.report(j, fmt.Sprintf("published %d feedback polls", n), err)
	}
}

func (s *Service) report(j *job, summary string, err error) {
	if err != nil {
		log.Printf("scheduler: %s for guild %s: %v", j.kind, j.guildID, err)
		return
	}
	log.Printf("scheduler: %s for guild %s: %s", j.kind, j.guildID, summary)
}

// GuildJobs returns the kinds currently scheduled for a guild.
func (s *Service) GuildJobs(guildID string) []JobKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kinds []JobKind
	for key := range s.jobs {
		if key.GuildID == guildID {
			kinds = append(kinds, key.Kind)
		}
	}
	return kinds
}

// Stats returns a snapshot of the scheduler state.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	guilds := make(map[string]struct{})
	for key := range s.jobs {
		guilds[key.GuildID] = struct{}{}
	}
	return Stats{Running: s.running, Jobs: len(s.jobs), Guilds: len(guilds)}
}

// NextRun returns the first occurrence of the wall-clock time hour:minute in
// loc strictly after now.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	cand := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !cand.After(local) {
		next := local.AddDate(0, 0, 1)
		cand = time.Date(next.Year(), next.Month(), next.Day(), hour, minute, 0, 0, loc)
	}
	return cand
}
