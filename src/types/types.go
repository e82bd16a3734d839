package types

import "time"

// Event is a schedulable activity. Events are global (not per guild) and are
// only ever mutated by explicit admin edits.
type Event struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Title        string    `gorm:"size:128;not null" json:"title"`
	Date         string    `gorm:"size:10;index;not null" json:"date"`
	Kind         EventKind `gorm:"size:32;not null" json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
	FeedbackOnly bool      `json:"feedback_only"`
}

// IsPollable reports whether the event belongs in an attendance poll. This is
// purely a function of the kind; FeedbackOnly is a separate routing override.
func (e Event) IsPollable() bool {
	return e.Kind.IsPollable()
}

// OptionTitle is the display text used for this event inside a poll. It also
// serves as the matching key when no answer id is available.
func (e Event) OptionTitle() string {
	return e.Kind.DisplayName() + ": " + e.Title
}

// StringList is a JSON-serialized list column.
type StringList []string

// Contains reports whether v is present.
func (l StringList) Contains(v string) bool {
	for _, s := range l {
		if s == v {
			return true
		}
	}
	return false
}

// PollOption is one selectable choice inside a poll.
type PollOption struct {
	EventID  string     `json:"event_id"`
	Title    string     `json:"title"`
	Kind     EventKind  `json:"kind"`
	Votes    StringList `json:"votes"`
	AnswerID string     `json:"answer_id,omitempty"`
}

// VoteCount returns the number of votes for this option.
func (o *PollOption) VoteCount() int {
	return len(o.Votes)
}

// AddVote records a vote by userID. Returns false if the user already voted
// for this option.
func (o *PollOption) AddVote(userID string) bool {
	if o.Votes.Contains(userID) {
		return false
	}
	o.Votes = append(o.Votes, userID)
	return true
}

// RemoveVote removes userID's vote. Returns whether a vote was removed.
func (o *PollOption) RemoveVote(userID string) bool {
	for i, v := range o.Votes {
		if v == userID {
			o.Votes = append(o.Votes[:i], o.Votes[i+1:]...)
			return true
		}
	}
	return false
}

// PollOptions is the ordered option list, stored as a JSON column.
type PollOptions []PollOption

// Poll is the aggregate for one published poll message. The id is assigned at
// publish time and is stable for the poll's lifetime; MessageID ties it back
// to the platform message.
type Poll struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	GuildID   string `gorm:"index;size:64" json:"guild_id"`
	ChannelID string `gorm:"size:64" json:"channel_id"`
	MessageID string `gorm:"size:64" json:"message_id"`
	// PollDate is the calendar day (YYYY-MM-DD) the poll's events pertain to.
	PollDate string `gorm:"size:10;index" json:"poll_date"`
	// RelatedEventID links a feedback poll to its source event. Empty for
	// attendance polls.
	RelatedEventID string      `gorm:"size:64;index" json:"related_event_id,omitempty"`
	Options        PollOptions `gorm:"serializer:json" json:"options"`
	PublishedAt    time.Time   `json:"published_at"`
	ClosedAt       *time.Time  `json:"closed_at"`
	RemindedUsers  StringList  `gorm:"serializer:json" json:"reminded_users"`
	IsFeedback     bool        `json:"is_feedback"`
}

// IsClosed reports whether the poll has been closed. Closing is monotonic.
func (p *Poll) IsClosed() bool {
	return p.ClosedAt != nil
}

// TotalVotes returns the number of distinct users voting across all options.
func (p *Poll) TotalVotes() int {
	voters := make(map[string]struct{})
	for i := range p.Options {
		for _, uid := range p.Options[i].Votes {
			voters[uid] = struct{}{}
		}
	}
	return len(voters)
}

// UserVote returns the event id of the option the user voted for, if any.
func (p *Poll) UserVote(userID string) (string, bool) {
	for i := range p.Options {
		if p.Options[i].Votes.Contains(userID) {
			return p.Options[i].EventID, true
		}
	}
	return "", false
}

// clearVote removes any existing vote by userID from every option.
func (p *Poll) clearVote(userID string) {
	for i := range p.Options {
		p.Options[i].RemoveVote(userID)
	}
}

// matchOption finds the option whose answer id equals key, falling back to a
// title match when no answer id matches.
func (p *Poll) matchOption(key string) *PollOption {
	for i := range p.Options {
		if p.Options[i].AnswerID != "" && p.Options[i].AnswerID == key {
			return &p.Options[i]
		}
	}
	for i := range p.Options {
		if p.Options[i].Title == key {
			return &p.Options[i]
		}
	}
	return nil
}

// AddVote records a vote for the option matching key (answer id preferred,
// title as fallback), clearing any existing vote by the user first so that a
// user holds at most one active vote per poll. Returns whether a vote was
// recorded.
func (p *Poll) AddVote(userID, key string) bool {
	opt := p.matchOption(key)
	if opt == nil {
		return false
	}
	p.clearVote(userID)
	return opt.AddVote(userID)
}

// RecordVoteByAnswerID records a vote strictly by the opaque answer id,
// clearing any existing vote first. Used for out-of-band reconciliation.
func (p *Poll) RecordVoteByAnswerID(userID, answerID string) bool {
	for i := range p.Options {
		if p.Options[i].AnswerID == answerID {
			p.clearVote(userID)
			return p.Options[i].AddVote(userID)
		}
	}
	return false
}

// RemoveVote removes the user's vote from the option matching key only; other
// options are untouched so partial event replays stay safe.
func (p *Poll) RemoveVote(userID, key string) bool {
	if opt := p.matchOption(key); opt != nil {
		return opt.RemoveVote(userID)
	}
	return false
}

// RemoveVoteByAnswerID removes the user's vote from the option with the given
// answer id only.
func (p *Poll) RemoveVoteByAnswerID(userID, answerID string) bool {
	for i := range p.Options {
		if p.Options[i].AnswerID == answerID {
			return p.Options[i].RemoveVote(userID)
		}
	}
	return false
}

// NonVoters returns the subset of memberIDs with no vote in any option,
// preserving input order.
func (p *Poll) NonVoters(memberIDs []string) []string {
	voters := make(map[string]struct{})
	for i := range p.Options {
		for _, uid := range p.Options[i].Votes {
			voters[uid] = struct{}{}
		}
	}
	var out []string
	for _, id := range memberIDs {
		if _, ok := voters[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// MarkReminded records that the user has been reminded for this poll. The set
// only ever grows.
func (p *Poll) MarkReminded(userID string) {
	if !p.RemindedUsers.Contains(userID) {
		p.RemindedUsers = append(p.RemindedUsers, userID)
	}
}

// Mode selects which scheduled job set a guild runs.
type Mode string

const (
	// ModeStandard runs attendance publish, reminders, closing and feedback.
	ModeStandard Mode = "standard"
	// ModeFeedbackOnly runs feedback publish and reminders only.
	ModeFeedbackOnly Mode = "feedback_only"
)

// GuildSettings is the per-guild configuration snapshot consumed by the
// scheduler and the poll manager. Changes take effect after re-configuration.
type GuildSettings struct {
	GuildID             string `gorm:"primaryKey;size:64" json:"guild_id"`
	Timezone            string `gorm:"size:64" json:"timezone"`
	PollPublishTime     string `gorm:"size:5" json:"poll_publish_time"`
	PollCloseTime       string `gorm:"size:5" json:"poll_close_time"`
	ReminderTime        string `gorm:"size:5" json:"reminder_time"`
	FeedbackPublishTime string `gorm:"size:5" json:"feedback_publish_time"`
	PollChannelID       string `gorm:"size:64" json:"poll_channel_id"`
	OrganiserChannelID  string `gorm:"size:64" json:"organiser_channel_id"`
	AlertsChannelID     string `gorm:"size:64" json:"alerts_channel_id"`
	StudentRoleID       string `gorm:"size:64" json:"student_role_id"`
	OrganiserRoleID     string `gorm:"size:64" json:"organiser_role_id"`
	// Role names are a deprecated fallback for guilds without configured ids.
	StudentRoleName   string `gorm:"size:64" json:"student_role_name"`
	OrganiserRoleName string `gorm:"size:64" json:"organiser_role_name"`
	Mode              Mode   `gorm:"size:16" json:"mode"`
}

// DefaultGuildSettings returns the settings applied to a guild before any
// admin configuration.
func DefaultGuildSettings(guildID string) GuildSettings {
	return GuildSettings{
		GuildID:             guildID,
		Timezone:            "Europe/Helsinki",
		PollPublishTime:     "14:30",
		PollCloseTime:       "09:00",
		ReminderTime:        "19:00",
		FeedbackPublishTime: "22:00",
		StudentRoleName:     "student",
		OrganiserRoleName:   "organisers",
		Mode:                ModeStandard,
	}
}

// Setting is an application-level configuration row (token, redis url, ...)
// with env fallbacks handled by the config package.
type Setting struct {
	ID     uint8  `gorm:"primaryKey"`
	Name   string `gorm:"size:32;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null"`
}
