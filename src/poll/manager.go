package poll

import (
	"context"
	"log"

	"github.com/camppoll/camppoll/src/platform"
	"github.com/camppoll/camppoll/src/store"
	"github.com/redis/go-redis/v9"
)

// MaxOptionsPerPoll is the platform limit on answers per native poll. Event
// lists longer than this are split across several poll messages.
const MaxOptionsPerPoll = 10

// pollDurationHours is passed to the platform as a hard upper bound; the
// scheduled closing job normally ends the poll well before it.
const pollDurationHours = 24

type Config struct {
	Store  *store.Store
	Client platform.Client
	Redis  *redis.Client
}

// Manager owns the poll lifecycle: publishing, vote tracking, reminders and
// closing.
type Manager struct {
	store  *store.Store
	client platform.Client
	rdb    *redis.Client
}

func NewManager(cfg Config) *Manager {
	return &Manager{store: cfg.Store, client: cfg.Client, rdb: cfg.Redis}
}

// ChunkEvents splits events into poll-sized groups preserving order.
func ChunkEvents[T any](events []T, size int) [][]T {
	if size <= 0 {
		size = MaxOptionsPerPoll
	}
	var chunks [][]T
	for len(events) > size {
		chunks = append(chunks, events[:size])
		events = events[size:]
	}
	if len(events) > 0 {
		chunks = append(chunks, events)
	}
	return chunks
}

// HandleVoteAdd applies a platform vote-add event. The poll is re-read from
// the store before mutation so concurrent updates are not clobbered. Events
// for unknown or already-closed polls are dropped.
func (m *Manager) HandleVoteAdd(ctx context.Context, messageID, userID, answerID string) {
	p, err := m.store.PollByMessage(messageID)
	if err != nil {
		log.Printf("vote add: load poll for message %s: %v", messageID, err)
		return
	}
	if p == nil || p.IsClosed() {
		return
	}
	if !p.RecordVoteByAnswerID(userID, answerID) {
		log.Printf("vote add: poll %s has no answer %s", p.ID, answerID)
		return
	}
	if err := m.store.SavePoll(p); err != nil {
		log.Printf("vote add: save poll %s: %v", p.ID, err)
	}
}

// HandleVoteRemove applies a platform vote-remove event. Only the named
// answer is touched.
func (m *Manager) HandleVoteRemove(ctx context.Context, messageID, userID, answerID string) {
	p, err := m.store.PollByMessage(messageID)
	if err != nil {
		log.Printf("vote remove: load poll for message %s: %v", messageID, err)
		return
	}
	if p == nil || p.IsClosed() {
		return
	}
	if !p.RemoveVoteByAnswerID(userID, answerID) {
		return
	}
	if err := m.store.SavePoll(p); err != nil {
		log.Printf("vote remove: save poll %s: %v", p.ID, err)
	}
}
