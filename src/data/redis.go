package data

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// PollEventStream receives one entry per poll lifecycle transition
// (published, closed) for downstream consumers.
const PollEventStream = "camppoll.polls"

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// PublishPollEvent appends a poll lifecycle event to the stream. A nil client
// disables publishing.
func PublishPollEvent(ctx context.Context, rdb *redis.Client, payload map[string]interface{}) error {
	if rdb == nil {
		return nil
	}
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: PollEventStream,
		Values: payload,
	}).Result()
	return err
}
