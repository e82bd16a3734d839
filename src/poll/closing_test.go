package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/camppoll/camppoll/src/platform"
	"github.com/camppoll/camppoll/src/timeutil"
	"github.com/camppoll/camppoll/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func savedAttendancePoll(t *testing.T, mgr *Manager, pollDate string) *types.Poll {
	t.Helper()
	p := &types.Poll{
		ID:        "p-" + pollDate,
		GuildID:   "g1",
		ChannelID: "poll-ch",
		MessageID: "msg-" + pollDate,
		PollDate:  pollDate,
		Options: types.PollOptions{
			{EventID: "e1", Title: "Lecture: Graphs", Kind: types.KindLecture, AnswerID: "0"},
			{EventID: "e2", Title: "Contest: Round 3", Kind: types.KindContest, AnswerID: "1"},
		},
		PublishedAt: time.Now().UTC(),
	}
	require.NoError(t, mgr.store.SavePoll(p))
	return p
}

func TestCloseReconcilesVotes(t *testing.T) {
	mgr, st, client := newTestManager(t)
	gs := testGuildSettings()
	p := savedAttendancePoll(t, mgr, "2024-06-10")

	// Locally tracked state is stale: u9 voted from a missed gateway event.
	p.Options[0].Votes = types.StringList{"u1"}
	require.NoError(t, st.SavePoll(p))

	client.endResults[p.MessageID] = &platform.PollResults{
		Answers: []platform.AnswerResult{
			{AnswerID: "0", Text: "Lecture: Graphs", Voters: []string{"u1", "u9"}},
			{AnswerID: "1", Text: "Contest: Round 3", Voters: []string{"u2"}},
		},
	}
	client.usernames["u1"] = "alice"

	ok, err := mgr.Close(context.Background(), gs, p)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := st.Poll(p.ID)
	require.NoError(t, err)
	require.True(t, got.IsClosed())
	assert.Equal(t, types.StringList{"u1", "u9"}, got.Options[0].Votes)
	assert.Equal(t, types.StringList{"u2"}, got.Options[1].Votes)

	// Results embed and CSV export land in the organiser channel.
	require.Len(t, client.embeds["org-ch"], 1)
	assert.Contains(t, client.embeds["org-ch"][0].Description, "🥇 Lecture: Graphs — 2 votes")
	require.Len(t, client.files, 1)
	assert.Equal(t, "org-ch", client.files[0].channelID)
	assert.Equal(t, "attendance_2024-06-10_p-2024-0.csv", client.files[0].filename)
}

func TestCloseFailsWhenEndPollFails(t *testing.T) {
	mgr, st, client := newTestManager(t)
	gs := testGuildSettings()
	p := savedAttendancePoll(t, mgr, "2024-06-10")
	client.endErr = errors.New("boom")

	ok, err := mgr.Close(context.Background(), gs, p)
	assert.Error(t, err)
	assert.False(t, ok)

	got, err := st.Poll(p.ID)
	require.NoError(t, err)
	assert.False(t, got.IsClosed())
}

func TestCloseAlreadyClosedIsNoOp(t *testing.T) {
	mgr, _, client := newTestManager(t)
	gs := testGuildSettings()
	p := savedAttendancePoll(t, mgr, "2024-06-10")
	now := time.Now().UTC()
	p.ClosedAt = &now

	ok, err := mgr.Close(context.Background(), gs, p)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, client.ended)
}

func TestCloseAllDue(t *testing.T) {
	mgr, st, client := newTestManager(t)
	gs := testGuildSettings()

	today := timeutil.TodayIn(time.UTC)
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format(timeutil.DateLayout)

	// Published yesterday at 14:30, closes today at 09:00: due.
	due := savedAttendancePoll(t, mgr, yesterday)
	// Published today, closes tomorrow: not due.
	notDue := savedAttendancePoll(t, mgr, today)

	// Feedback poll from yesterday is due, today's is not.
	feedbackDue := &types.Poll{
		ID: "f1", GuildID: "g1", ChannelID: "poll-ch", MessageID: "msg-f1",
		PollDate: yesterday, IsFeedback: true, PublishedAt: time.Now().UTC(),
		Options: types.PollOptions{{EventID: "e1", Title: "ok", AnswerID: "0"}},
	}
	feedbackFresh := &types.Poll{
		ID: "f2", GuildID: "g1", ChannelID: "poll-ch", MessageID: "msg-f2",
		PollDate: today, IsFeedback: true, PublishedAt: time.Now().UTC(),
		Options: types.PollOptions{{EventID: "e2", Title: "ok", AnswerID: "0"}},
	}
	require.NoError(t, st.SavePoll(feedbackDue))
	require.NoError(t, st.SavePoll(feedbackFresh))

	n, err := mgr.CloseAllDue(context.Background(), gs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{due.MessageID, feedbackDue.MessageID}, client.ended)

	open, err := st.OpenPolls("g1")
	require.NoError(t, err)
	require.Len(t, open, 2)
	ids := []string{open[0].ID, open[1].ID}
	assert.ElementsMatch(t, []string{notDue.ID, feedbackFresh.ID}, ids)
}
