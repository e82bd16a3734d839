package store

import (
	"errors"
	"fmt"

	"github.com/camppoll/camppoll/src/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistence layer for events, polls and guild settings.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema for all persisted models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Event{},
		&types.Poll{},
		&types.GuildSettings{},
		&types.Setting{},
	)
}

// Events

func (s *Store) AddEvent(e *types.Event) error {
	if err := s.db.Create(e).Error; err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

func (s *Store) UpdateEvent(e *types.Event) error {
	if err := s.db.Save(e).Error; err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// DeleteEvent removes an event and reports whether it existed.
func (s *Store) DeleteEvent(id string) (bool, error) {
	res := s.db.Delete(&types.Event{}, "id = ?", id)
	if res.Error != nil {
		return false, fmt.Errorf("delete event: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Event returns the event with the given id, or nil when absent.
func (s *Store) Event(id string) (*types.Event, error) {
	var e types.Event
	err := s.db.First(&e, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

func (s *Store) EventsByDate(date string) ([]types.Event, error) {
	var events []types.Event
	if err := s.db.Where("date = ?", date).Order("created_at").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("events by date: %w", err)
	}
	return events, nil
}

func (s *Store) EventsByKind(kind types.EventKind) ([]types.Event, error) {
	var events []types.Event
	if err := s.db.Where("kind = ?", kind).Order("date").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("events by kind: %w", err)
	}
	return events, nil
}

func (s *Store) AllEvents() ([]types.Event, error) {
	var events []types.Event
	if err := s.db.Order("date").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("all events: %w", err)
	}
	return events, nil
}

// Polls

// SavePoll inserts or fully replaces a poll row.
func (s *Store) SavePoll(p *types.Poll) error {
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(p).Error
	if err != nil {
		return fmt.Errorf("save poll: %w", err)
	}
	return nil
}

// Poll returns the poll with the given id, or nil when absent.
func (s *Store) Poll(id string) (*types.Poll, error) {
	var p types.Poll
	err := s.db.First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get poll: %w", err)
	}
	return &p, nil
}

// PollByMessage looks a poll up by its Discord message id, or nil when absent.
func (s *Store) PollByMessage(messageID string) (*types.Poll, error) {
	var p types.Poll
	err := s.db.First(&p, "message_id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get poll by message: %w", err)
	}
	return &p, nil
}

func (s *Store) PollsByGuild(guildID string) ([]types.Poll, error) {
	var polls []types.Poll
	if err := s.db.Where("guild_id = ?", guildID).Order("published_at").Find(&polls).Error; err != nil {
		return nil, fmt.Errorf("polls by guild: %w", err)
	}
	return polls, nil
}

// OpenPolls returns all polls of a guild that have not been closed yet.
func (s *Store) OpenPolls(guildID string) ([]types.Poll, error) {
	var polls []types.Poll
	err := s.db.Where("guild_id = ? AND closed_at IS NULL", guildID).
		Order("published_at").Find(&polls).Error
	if err != nil {
		return nil, fmt.Errorf("open polls: %w", err)
	}
	return polls, nil
}

func (s *Store) DeletePoll(id string) (bool, error) {
	res := s.db.Delete(&types.Poll{}, "id = ?", id)
	if res.Error != nil {
		return false, fmt.Errorf("delete poll: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Guild settings

// GuildSettings returns the settings row for a guild, or nil when the guild
// has never been configured.
func (s *Store) GuildSettings(guildID string) (*types.GuildSettings, error) {
	var gs types.GuildSettings
	err := s.db.First(&gs, "guild_id = ?", guildID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get guild settings: %w", err)
	}
	return &gs, nil
}

func (s *Store) SaveGuildSettings(gs *types.GuildSettings) error {
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(gs).Error
	if err != nil {
		return fmt.Errorf("save guild settings: %w", err)
	}
	return nil
}

func (s *Store) AllGuildSettings() ([]types.GuildSettings, error) {
	var all []types.GuildSettings
	if err := s.db.Find(&all).Error; err != nil {
		return nil, fmt.Errorf("all guild settings: %w", err)
	}
	return all, nil
}
