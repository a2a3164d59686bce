package main

import (
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"dicebridge/internal/agent"
	"dicebridge/internal/bus"
	"dicebridge/internal/catalog"
	"dicebridge/internal/config"
	"dicebridge/internal/roll"
	"dicebridge/internal/state"
)

// runtime bundles everything a command needs to speak the protocol.
type runtime struct {
	cfg   config.Config
	agent *agent.Agent
	store state.Store
}

// newRuntime loads config and wires bus, store, and agent. Without a
// redis address everything degrades to in-process implementations: the
// protocol still works, it just cannot reach siblings.
func newRuntime(respond bool) (*runtime, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if ns := viper.GetString("namespace"); ns != "" {
		cfg.Instance.Namespace = ns
	}
	if addr := viper.GetString("redis-addr"); addr != "" {
		cfg.Store.RedisAddr = addr
	}
	if cfg.Instance.Version == "" {
		cfg.Instance.Version = Version
	}

	var (
		b  bus.Bus
		st state.Store
	)
	if cfg.Store.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		b = bus.NewRedisBus(client, bus.ChannelName(cfg.Instance.Namespace))
		st = state.NewRedisStore(client, cfg.Instance.Namespace)
		log.Printf("use redis: addr=%s namespace=%s", cfg.Store.RedisAddr, cfg.Instance.Namespace)
	} else {
		b = bus.NewMemoryBus()
		st = state.NewMemoryStore()
		log.Printf("no redis configured, running in-process only")
	}

	cat := catalog.New(cfg.Catalog)
	orch := &roll.Orchestrator{
		Catalog: cat,
		Executor: &roll.Executor{
			Store:       st,
			SettleDelay: 150 * time.Millisecond,
		},
	}

	a := agent.New(agent.Options{
		Namespace:          cfg.Instance.Namespace,
		Version:            cfg.Instance.Version,
		Respond:            respond,
		PublishCompletions: cfg.Instance.PublishCompletions,
		ProbeTimeout:       time.Duration(cfg.Timeouts.ProbeSeconds) * time.Second,
		RollTimeout:        time.Duration(cfg.Timeouts.RollSeconds) * time.Second,
		HeartbeatInterval:  time.Duration(cfg.Timeouts.HeartbeatIntervalSeconds) * time.Second,
	}, b, st, orch)

	return &runtime{cfg: cfg, agent: a, store: st}, nil
}

func (rt *runtime) close() {
	if err := rt.agent.Close(); err != nil {
		log.Printf("close agent failed: %v", err)
	}
	if rs, ok := rt.store.(*state.RedisStore); ok {
		if err := rs.Close(); err != nil {
			log.Printf("close store failed: %v", err)
		}
	}
}
