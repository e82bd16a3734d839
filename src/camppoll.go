package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/camppoll/camppoll/src/bot"
	"github.com/camppoll/camppoll/src/config"
	"github.com/camppoll/camppoll/src/data"
	"github.com/camppoll/camppoll/src/store"
	"github.com/redis/go-redis/v9"
)

func main() {
	dsn, err := data.GetMySQLDSN()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	db, err := data.ConnectMySQL(dsn)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	cfg, err := config.Load(db)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb = data.MustRedis(cfg.RedisURL)
	} else {
		log.Printf("redis: no url configured, poll event stream disabled")
	}

	b, err := bot.New(cfg, db, rdb)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}
	if err := b.Start(); err != nil {
		log.Fatalf("bot: open gateway: %v", err)
	}
	log.Printf("camppoll is running, press ctrl+c to exit")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	if err := b.Stop(); err != nil {
		log.Printf("bot: shutdown: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
