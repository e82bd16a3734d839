package types

// EventKind classifies a scheduled activity. Kinds are stored by their string
// tag, so renaming a tag is a data migration.
type EventKind string

const (
	KindLecture          EventKind = "lecture"
	KindContest          EventKind = "contest"
	KindContestEditorial EventKind = "contest_editorial"
	KindExtraLecture     EventKind = "extra"
	KindEveningActivity  EventKind = "evening"
)

// AllEventKinds lists every known kind in display order.
var AllEventKinds = []EventKind{
	KindLecture,
	KindContest,
	KindContestEditorial,
	KindExtraLecture,
	KindEveningActivity,
}

// pollableKinds are the kinds that go into attendance polls. Membership here
// is independent of the per-event feedback_only override.
var pollableKinds = map[EventKind]bool{
	KindLecture: true,
	KindContest: true,
}

// feedbackEligibleKinds are the kinds that get an evening feedback poll.
var feedbackEligibleKinds = map[EventKind]bool{
	KindLecture:          true,
	KindContest:          true,
	KindContestEditorial: true,
}

var kindDisplayNames = map[EventKind]string{
	KindLecture:          "Lecture",
	KindContest:          "Contest",
	KindContestEditorial: "Contest Editorial",
	KindExtraLecture:     "Extra Lecture",
	KindEveningActivity:  "Evening Activity",
}

// feedbackTemplates maps a kind to its fixed feedback answer menu. A kind with
// no entry is silently skipped by feedback publishing.
var feedbackTemplates = map[EventKind][]string{
	KindLecture: {
		"😻 It was super useful!",
		"🆗 I knew smth before, but still enjoyed it!",
		"😑 It could be better",
		"🏃‍♀️‍➡️ I was attending another class",
	},
	KindContest: {
		"🩷 Wow, I loved it!",
		"😿 It was too hard",
		"🙅‍♂️ I didn't participate",
	},
	KindContestEditorial: {
		"😻 It was super useful!",
		"🆗 I knew smth before, but still enjoyed it!",
		"😑 It could be better",
		"🏃‍♀️‍➡️ I didn't attend the editorial",
	},
	KindExtraLecture: {
		"🤩 Cool – It was informative and useful",
		"👍 Okay – It was interesting but not so relevant",
		"😞 Meh – It could have been better",
		"🛑 I didn't participate",
	},
	KindEveningActivity: {
		"❤️‍🔥 Cool – I want more like it",
		"😃 Okay – It was fun",
		"😕 Meh – I could do something better",
		"🙈 I didn't participate",
	},
}

// IsValid reports whether k is one of the known kinds.
func (k EventKind) IsValid() bool {
	_, ok := kindDisplayNames[k]
	return ok
}

// IsPollable reports whether events of this kind belong in attendance polls.
func (k EventKind) IsPollable() bool {
	return pollableKinds[k]
}

// IsFeedbackEligible reports whether events of this kind get a feedback poll
// on the evening of the event day.
func (k EventKind) IsFeedbackEligible() bool {
	return feedbackEligibleKinds[k]
}

// DisplayName returns the human-readable kind name.
func (k EventKind) DisplayName() string {
	if name, ok := kindDisplayNames[k]; ok {
		return name
	}
	return string(k)
}

// FeedbackTemplate returns the fixed feedback answer texts for a kind, or nil
// when the kind has no template.
func FeedbackTemplate(k EventKind) []string {
	return feedbackTemplates[k]
}
