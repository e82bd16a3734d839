package scheduler

import (
	"testing"
	"time"

	"github.com/camppoll/camppoll/src/poll"
	"github.com/camppoll/camppoll/src/store"
	"github.com/camppoll/camppoll/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	st := store.New(db)
	mgr := poll.NewManager(poll.Config{Store: st})
	return New(mgr, st), st
}

func TestConfigureStandardGuild(t *testing.T) {
	svc, _ := newTestService(t)
	gs := types.DefaultGuildSettings("g1")

	require.NoError(t, svc.Configure("g1", &gs))
	assert.ElementsMatch(t, []JobKind{
		JobPublishAttendance, JobSendReminders, JobClosePolls, JobPublishFeedback,
	}, svc.GuildJobs("g1"))

	stats := svc.Stats()
	assert.Equal(t, 4, stats.Jobs)
	assert.Equal(t, 1, stats.Guilds)
	assert.False(t, stats.Running)
}

func TestConfigureFeedbackOnlyGuild(t *testing.T) {
	svc, _ := newTestService(t)
	gs := types.DefaultGuildSettings("g1")
	gs.Mode = types.ModeFeedbackOnly

	require.NoError(t, svc.Configure("g1", &gs))
	assert.ElementsMatch(t, []JobKind{
		JobPublishFeedback, JobSendReminders,
	}, svc.GuildJobs("g1"))
}

func TestConfigureInvalidTimezoneKeepsJobs(t *testing.T) {
	svc, _ := newTestService(t)
	gs := types.DefaultGuildSettings("g1")
	require.NoError(t, svc.Configure("g1", &gs))

	bad := gs
	bad.Timezone = "Not/AZone"
	err := svc.Configure("g1", &bad)
	require.Error(t, err)

	// The failed reconfigure leaves the previous job set running.
	assert.Len(t, svc.GuildJobs("g1"), 4)
}

func TestConfigureInvalidClockFallsBack(t *testing.T) {
	svc, _ := newTestService(t)
	gs := types.DefaultGuildSettings("g1")
	gs.PollPublishTime = "25:99"

	require.NoError(t, svc.Configure("g1", &gs))
	assert.Len(t, svc.GuildJobs("g1"), 4)
}

func TestReconfigureReplacesJobSet(t *testing.T) {
	svc, _ := newTestService(t)
	gs := types.DefaultGuildSettings("g1")
	require.NoError(t, svc.Configure("g1", &gs))

	gs.Mode = types.ModeFeedbackOnly
	require.NoError(t, svc.Configure("g1", &gs))
	assert.Len(t, svc.GuildJobs("g1"), 2)

	svc.Remove("g1")
	assert.Empty(t, svc.GuildJobs("g1"))
	assert.Equal(t, 0, svc.Stats().Jobs)
}

func TestConfigureAll(t *testing.T) {
	svc, st := newTestService(t)

	g1 := types.DefaultGuildSettings("g1")
	g2 := types.DefaultGuildSettings("g2")
	g2.Mode = types.ModeFeedbackOnly
	require.NoError(t, st.SaveGuildSettings(&g1))
	require.NoError(t, st.SaveGuildSettings(&g2))

	require.NoError(t, svc.ConfigureAll())
	stats := svc.Stats()
	assert.Equal(t, 6, stats.Jobs)
	assert.Equal(t, 2, stats.Guilds)
}

func TestStartStopIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	gs := types.DefaultGuildSettings("g1")
	require.NoError(t, svc.Configure("g1", &gs))

	svc.Start()
	svc.Start()
	assert.True(t, svc.Stats().Running)

	// Configuring a running scheduler starts the new jobs immediately.
	g2 := types.DefaultGuildSettings("g2")
	require.NoError(t, svc.Configure("g2", &g2))
	assert.Equal(t, 8, svc.Stats().Jobs)

	svc.Stop()
	svc.Stop()
	assert.False(t, svc.Stats().Running)
}

func TestNextRun(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)

	// Before the clock time: today.
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, loc)
	got := NextRun(now, 14, 30, loc)
	assert.Equal(t, time.Date(2024, 6, 10, 14, 30, 0, 0, loc), got)

	// At or after the clock time: tomorrow.
	now = time.Date(2024, 6, 10, 14, 30, 0, 0, loc)
	got = NextRun(now, 14, 30, loc)
	assert.Equal(t, time.Date(2024, 6, 11, 14, 30, 0, 0, loc), got)

	// now in a different zone still resolves against loc's wall clock.
	utcNow := time.Date(2024, 6, 10, 6, 0, 0, 0, time.UTC) // 09:00 in Helsinki
	got = NextRun(utcNow, 9, 30, loc)
	assert.Equal(t, time.Date(2024, 6, 10, 9, 30, 0, 0, loc), got)
}
