package platform

import (
	"io"

	"github.com/bwmarrin/discordgo"
)

// PollSpec describes a native poll to post.
type PollSpec struct {
	ChannelID     string
	Question      string
	Options       []string
	Multi         bool
	DurationHours int
}

// PostedPoll identifies a freshly posted poll and maps each option, by its
// index in the submitted spec, to the platform-assigned answer id. Keying by
// index keeps options with identical text distinct.
type PostedPoll struct {
	MessageID string
	AnswerIDs map[int]string
}

// AnswerResult is the authoritative voter list for a single poll answer.
type AnswerResult struct {
	AnswerID string
	Text     string
	Voters   []string
}

// PollResults is the final tally fetched after a poll is ended.
type PollResults struct {
	Answers []AnswerResult
}

// Member is a guild member as needed for reminder fan-out.
type Member struct {
	ID       string
	Username string
	Bot      bool
	RoleIDs  []string
}

// Role is a guild role.
type Role struct {
	ID   string
	Name string
}

// Client is the chat-platform surface the poll services depend on.
type Client interface {
	PostPoll(spec PollSpec) (*PostedPoll, error)
	EndPoll(channelID, messageID string) (*PollResults, error)
	SendDM(userID string, embed *discordgo.MessageEmbed) error
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) error
	SendFile(channelID, content, filename string, r io.Reader) error
	Members(guildID string) ([]Member, error)
	Roles(guildID string) ([]Role, error)
	ChannelName(channelID string) string
	Username(guildID, userID string) string
}
