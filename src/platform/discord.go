package platform

import (
	"fmt"
	"io"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

const membersPageSize = 1000

// Discord implements Client on top of a discordgo session.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) PostPoll(spec PollSpec) (*PostedPoll, error) {
	answers := make([]discordgo.PollAnswer, 0, len(spec.Options))
	for _, opt := range spec.Options {
		answers = append(answers, discordgo.PollAnswer{
			Media: &discordgo.PollMedia{Text: opt},
		})
	}

	msg, err := d.session.ChannelMessageSendComplex(spec.ChannelID, &discordgo.MessageSend{
		Poll: &discordgo.Poll{
			Question:         discordgo.PollMedia{Text: spec.Question},
			Answers:          answers,
			AllowMultiselect: spec.Multi,
			Duration:         spec.DurationHours,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("post poll: %w", err)
	}

	posted := &PostedPoll{MessageID: msg.ID, AnswerIDs: make(map[int]string)}
	if msg.Poll != nil {
		// Answers come back in the order they were submitted.
		for i, a := range msg.Poll.Answers {
			posted.AnswerIDs[i] = strconv.Itoa(a.AnswerID)
		}
	}
	return posted, nil
}

func (d *Discord) EndPoll(channelID, messageID string) (*PollResults, error) {
	msg, err := d.session.PollExpire(channelID, messageID)
	if err != nil {
		return nil, fmt.Errorf("end poll: %w", err)
	}

	results := &PollResults{}
	if msg == nil || msg.Poll == nil {
		return results, nil
	}
	for _, a := range msg.Poll.Answers {
		text := ""
		if a.Media != nil {
			text = a.Media.Text
		}
		voters, err := d.answerVoters(channelID, messageID, a.AnswerID)
		if err != nil {
			return nil, err
		}
		results.Answers = append(results.Answers, AnswerResult{
			AnswerID: strconv.Itoa(a.AnswerID),
			Text:     text,
			Voters:   voters,
		})
	}
	return results, nil
}

func (d *Discord) answerVoters(channelID, messageID string, answerID int) ([]string, error) {
	users, err := d.session.PollAnswerVoters(channelID, messageID, answerID)
	if err != nil {
		return nil, fmt.Errorf("answer voters: %w", err)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (d *Discord) SendDM(userID string, embed *discordgo.MessageEmbed) error {
	ch, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open dm: %w", err)
	}
	if _, err := d.session.ChannelMessageSendEmbed(ch.ID, embed); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}

func (d *Discord) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	if _, err := d.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		return fmt.Errorf("send embed: %w", err)
	}
	return nil
}

func (d *Discord) SendFile(channelID, content, filename string, r io.Reader) error {
	_, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		Files:   []*discordgo.File{{Name: filename, Reader: r}},
	})
	if err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	return nil
}

// Members pages through the full guild member list.
func (d *Discord) Members(guildID string) ([]Member, error) {
	var members []Member
	after := ""
	for {
		page, err := d.session.GuildMembers(guildID, after, membersPageSize)
		if err != nil {
			return nil, fmt.Errorf("guild members: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			if m.User == nil {
				continue
			}
			members = append(members, Member{
				ID:       m.User.ID,
				Username: m.User.Username,
				Bot:      m.User.Bot,
				RoleIDs:  m.Roles,
			})
			after = m.User.ID
		}
		if len(page) < membersPageSize {
			break
		}
	}
	return members, nil
}

func (d *Discord) Roles(guildID string) ([]Role, error) {
	roles, err := d.session.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild roles: %w", err)
	}
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, Role{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (d *Discord) ChannelName(channelID string) string {
	if ch, err := d.session.State.Channel(channelID); err == nil {
		return ch.Name
	}
	if ch, err := d.session.Channel(channelID); err == nil {
		return ch.Name
	}
	return channelID
}

func (d *Discord) Username(guildID, userID string) string {
	if m, err := d.session.State.Member(guildID, userID); err == nil && m.User != nil {
		return m.User.Username
	}
	if m, err := d.session.GuildMember(guildID, userID); err == nil && m.User != nil {
		return m.User.Username
	}
	if u, err := d.session.User(userID); err == nil {
		return u.Username
	}
	return ""
}
