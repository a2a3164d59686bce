package agent

import (
	"context"
	"log"
	"time"

	"dicebridge/internal/state"
)

// heartbeatLoop refreshes the shared liveness record until Close. The
// record carries a TTL, so a crashed instance goes stale on its own.
func (a *Agent) heartbeatLoop() {
	ticker := time.NewTicker(a.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.hbDone:
			return
		case <-ticker.C:
			a.publishHeartbeat(context.Background())
		}
	}
}

func (a *Agent) publishHeartbeat(ctx context.Context) {
	hb := state.Heartbeat{
		Timestamp: time.Now().UnixMilli(),
		Version:   a.opts.Version,
	}
	if err := a.store.SetHeartbeat(ctx, hb, a.opts.HeartbeatTTL); err != nil {
		log.Printf("publish heartbeat failed: %v", err)
	}
}
