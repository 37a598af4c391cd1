package services

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const jobGateKey = "jobs:deals:active"

// RedisJobGate keeps the background-job activation flag in redis so it
// survives worker restarts and is shared between api and worker.
type RedisJobGate struct {
	client *redis.Client
}

func NewRedisJobGate(client *redis.Client) *RedisJobGate {
	return &RedisJobGate{client: client}
}

func (g *RedisJobGate) Activate(ctx context.Context) error {
	return g.client.Set(ctx, jobGateKey, "1", 0).Err()
}

func (g *RedisJobGate) Deactivate(ctx context.Context) error {
	return g.client.Set(ctx, jobGateKey, "0", 0).Err()
}

// Active defaults to true when the flag was never written, so a fresh
// deployment starts polling until the reconciler decides otherwise.
func (g *RedisJobGate) Active(ctx context.Context) (bool, error) {
	val, err := g.client.Get(ctx, jobGateKey).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	return val != "0", nil
}
