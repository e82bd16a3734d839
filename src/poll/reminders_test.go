package poll

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/camppoll/camppoll/src/platform"
	"github.com/camppoll/camppoll/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discordErr(status, code int) error {
	e := &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
	}
	if code != 0 {
		e.Message = &discordgo.APIErrorMessage{Code: code}
	}
	return e
}

func seedReminderFixture(t *testing.T, mgr *Manager, client *fakeClient) {
	t.Helper()

	client.members = []platform.Member{
		{ID: "u1", Username: "alice", RoleIDs: []string{"role-student"}},
		{ID: "u2", Username: "bob", RoleIDs: []string{"role-student"}},
		{ID: "u3", Username: "carol", RoleIDs: []string{"role-student"}},
		{ID: "u4", Username: "dave", RoleIDs: []string{"role-other"}},
		{ID: "u5", Username: "beep", Bot: true, RoleIDs: []string{"role-student"}},
	}

	p1 := &types.Poll{
		ID: "p1", GuildID: "g1", ChannelID: "poll-ch", MessageID: "m1",
		PollDate: "2024-06-10", PublishedAt: time.Now().UTC(),
		Options: types.PollOptions{{EventID: "e1", Title: "Lecture: Graphs", AnswerID: "0", Votes: types.StringList{"u1", "u3"}}},
	}
	p2 := &types.Poll{
		ID: "p2", GuildID: "g1", ChannelID: "poll-ch", MessageID: "m2",
		PollDate: "2024-06-10", PublishedAt: time.Now().UTC(), IsFeedback: true,
		Options: types.PollOptions{{EventID: "e2", Title: "ok", AnswerID: "0", Votes: types.StringList{"u3"}}},
	}
	require.NoError(t, mgr.store.SavePoll(p1))
	require.NoError(t, mgr.store.SavePoll(p2))
}

func TestSendRemindersFanIn(t *testing.T) {
	mgr, st, client := newTestManager(t)
	gs := testGuildSettings()
	seedReminderFixture(t, mgr, client)

	stats, err := mgr.SendReminders(context.Background(), gs)
	require.NoError(t, err)

	// u1 misses p2, u2 misses both; u3 voted everywhere, u4 lacks the role,
	// u5 is a bot. One DM each regardless of how many polls are outstanding.
	assert.Equal(t, 2, stats.Sent)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 2, stats.TotalPolls)
	assert.Equal(t, 3, stats.TotalMembers)
	assert.Equal(t, 1, client.dms["u1"])
	assert.Equal(t, 1, client.dms["u2"])
	assert.Equal(t, 0, client.dms["u3"])
	assert.Equal(t, 0, client.dms["u4"])
	assert.Equal(t, 0, client.dms["u5"])

	p1, err := st.Poll("p1")
	require.NoError(t, err)
	p2, err := st.Poll("p2")
	require.NoError(t, err)
	assert.Equal(t, types.StringList{"u2"}, p1.RemindedUsers)
	assert.ElementsMatch(t, []string{"u1", "u2"}, p2.RemindedUsers)

	// A second run has nobody left to remind.
	stats, err = mgr.SendReminders(context.Background(), gs)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 3, stats.AlreadyReminded)
	assert.Equal(t, 1, client.dms["u1"])
	assert.Equal(t, 1, client.dms["u2"])
}

func TestSendRemindersNoOpenPolls(t *testing.T) {
	mgr, _, client := newTestManager(t)
	gs := testGuildSettings()
	client.members = []platform.Member{{ID: "u1", RoleIDs: []string{"role-student"}}}

	stats, err := mgr.SendReminders(context.Background(), gs)
	require.NoError(t, err)
	assert.Equal(t, ReminderStats{}, stats)
	assert.Empty(t, client.dms)
}

func TestSendRemindersDMFailureAlerts(t *testing.T) {
	mgr, st, client := newTestManager(t)
	gs := testGuildSettings()
	seedReminderFixture(t, mgr, client)
	client.dmErr["u2"] = discordErr(http.StatusForbidden, discordgo.ErrCodeCannotSendMessagesToThisUser)

	stats, err := mgr.SendReminders(context.Background(), gs)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Failed)

	// A failed DM marks nothing: the user must be retried on the next run.
	p1, err := st.Poll("p1")
	require.NoError(t, err)
	p2, err := st.Poll("p2")
	require.NoError(t, err)
	assert.NotContains(t, p1.RemindedUsers, "u2")
	assert.NotContains(t, p2.RemindedUsers, "u2")
	assert.Contains(t, p2.RemindedUsers, "u1")

	require.Len(t, client.embeds["alerts-ch"], 1)

	// Once DMs open up again the user is reminded and marked.
	delete(client.dmErr, "u2")
	stats, err = mgr.SendReminders(context.Background(), gs)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, client.dms["u2"])

	p1, err = st.Poll("p1")
	require.NoError(t, err)
	assert.Contains(t, p1.RemindedUsers, "u2")
}

func TestSendRemindersRateLimitNotResent(t *testing.T) {
	mgr, st, client := newTestManager(t)
	gs := testGuildSettings()
	seedReminderFixture(t, mgr, client)
	client.dmErr["u2"] = discordErr(http.StatusTooManyRequests, 0)

	stats, err := mgr.SendReminders(context.Background(), gs)
	require.NoError(t, err)

	// The rate-limited DM counts as failed and is not resent in this pass.
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, client.dmAttempts["u2"])
	assert.Equal(t, 0, client.dms["u2"])

	p1, err := st.Poll("p1")
	require.NoError(t, err)
	assert.NotContains(t, p1.RemindedUsers, "u2")
}

func TestSendRemindersRoleNameFallback(t *testing.T) {
	mgr, _, client := newTestManager(t)
	gs := testGuildSettings()
	gs.StudentRoleID = ""
	gs.StudentRoleName = "Student"
	seedReminderFixture(t, mgr, client)
	client.roles = []platform.Role{
		{ID: "role-other", Name: "helper"},
		{ID: "role-student", Name: "student"},
	}

	stats, err := mgr.SendReminders(context.Background(), gs)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sent)
}

func TestSendRemindersNoRoleConfigured(t *testing.T) {
	mgr, _, client := newTestManager(t)
	gs := testGuildSettings()
	gs.StudentRoleID = ""
	gs.StudentRoleName = ""
	seedReminderFixture(t, mgr, client)

	stats, err := mgr.SendReminders(context.Background(), gs)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Sent)
	assert.Empty(t, client.dms)
}
