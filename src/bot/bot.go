package bot

import (
	"context"
	"log"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/camppoll/camppoll/src/config"
	"github.com/camppoll/camppoll/src/platform"
	"github.com/camppoll/camppoll/src/poll"
	"github.com/camppoll/camppoll/src/scheduler"
	"github.com/camppoll/camppoll/src/store"
	"github.com/camppoll/camppoll/src/types"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Bot ties the gateway session to the poll manager and scheduler.
type Bot struct {
	session *discordgo.Session
	store   *store.Store
	mgr     *poll.Manager
	sched   *scheduler.Service

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentGuildMessagePolls

	st := store.New(db)
	mgr := poll.NewManager(poll.Config{
		Store:  st,
		Client: platform.NewDiscord(session),
		Redis:  rdb,
	})
	sched := scheduler.New(mgr, st)

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		session: session,
		store:   st,
		mgr:     mgr,
		sched:   sched,
		ctx:     ctx,
		cancel:  cancel,
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onGuildCreate)
	session.AddHandler(b.onVoteAdd)
	session.AddHandler(b.onVoteRemove)
	return b, nil
}

// Start opens the gateway connection. Scheduling begins on the ready event.
func (b *Bot) Start() error {
	return b.session.Open()
}

// Stop shuts the scheduler down, waits for in-flight handlers and closes the
// gateway session.
func (b *Bot) Stop() error {
	b.cancel()
	b.sched.Stop()
	b.wg.Wait()
	return b.session.Close()
}

// Scheduler exposes the scheduler for admin surfaces.
func (b *Bot) Scheduler() *scheduler.Service {
	return b.sched
}

// Store exposes the persistence layer for admin surfaces.
func (b *Bot) Store() *store.Store {
	return b.store
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("bot: logged in as %s#%s", r.User.Username, r.User.Discriminator)
	if err := b.sched.ConfigureAll(); err != nil {
		log.Printf("bot: configure scheduler: %v", err)
	}
	b.sched.Start()
}

// onGuildCreate ensures every joined guild has a settings row and scheduled
// jobs, so a brand new guild works before any admin configuration.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	gs, err := b.store.GuildSettings(g.ID)
	if err != nil {
		log.Printf("bot: guild %s settings: %v", g.ID, err)
		return
	}
	if gs == nil {
		def := types.DefaultGuildSettings(g.ID)
		gs = &def
		if err := b.store.SaveGuildSettings(gs); err != nil {
			log.Printf("bot: guild %s default settings: %v", g.ID, err)
			return
		}
		log.Printf("bot: initialized default settings for guild %s", g.ID)
	}
	if err := b.sched.Configure(g.ID, gs); err != nil {
		log.Printf("bot: %v", err)
	}
}

func (b *Bot) onVoteAdd(s *discordgo.Session, e *discordgo.MessagePollVoteAdd) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.mgr.HandleVoteAdd(b.ctx, e.MessageID, e.UserID, strconv.Itoa(e.AnswerID))
	}()
}

func (b *Bot) onVoteRemove(s *discordgo.Session, e *discordgo.MessagePollVoteRemove) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.mgr.HandleVoteRemove(b.ctx, e.MessageID, e.UserID, strconv.Itoa(e.AnswerID))
	}()
}
