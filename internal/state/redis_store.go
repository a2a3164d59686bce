package state

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Roll records expire from Redis eventually; nothing reads a roll long
// after it settled.
const rollStateTTL = time.Hour

// RedisStore keeps shared records in Redis under namespaced keys and
// publishes change notifications on a companion pub/sub channel so
// watchers on other instances see mutations as they land.
type RedisStore struct {
	client    *redis.Client
	namespace string
	notify    string

	mu        sync.Mutex
	nextWatch int
	watchers  map[int]WatchFunc
	sub       *redis.PubSub
}

func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: namespace,
		notify:    "dicebridge:" + namespace + ":rolls",
		watchers:  make(map[int]WatchFunc),
	}
}

func (r *RedisStore) rollKey(subject, rollID string) string {
	return "dicebridge:" + r.namespace + ":roll:" + subject + ":" + rollID
}

func (r *RedisStore) heartbeatKey() string {
	return "dicebridge:" + r.namespace + ":heartbeat"
}

func (r *RedisStore) PutRollState(ctx context.Context, rs RollState) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.rollKey(rs.Subject, rs.RollID), data, rollStateTTL).Err(); err != nil {
		return err
	}
	return r.publishChange(ctx, rs.Subject, rs.RollID)
}

func (r *RedisStore) SetDieResult(ctx context.Context, subject, rollID, key string, value int) error {
	rs, ok, err := r.GetRollState(ctx, subject, rollID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	v := value
	rs.Results[key] = &v
	data, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.rollKey(subject, rollID), data, rollStateTTL).Err(); err != nil {
		return err
	}
	return r.publishChange(ctx, subject, rollID)
}

func (r *RedisStore) GetRollState(ctx context.Context, subject, rollID string) (RollState, bool, error) {
	data, err := r.client.Get(ctx, r.rollKey(subject, rollID)).Result()
	if err == redis.Nil {
		return RollState{}, false, nil
	}
	if err != nil {
		return RollState{}, false, err
	}
	var rs RollState
	if err := json.Unmarshal([]byte(data), &rs); err != nil {
		return RollState{}, false, err
	}
	if rs.Results == nil {
		rs.Results = make(map[string]*int)
	}
	return rs, true, nil
}

func (r *RedisStore) SetHeartbeat(ctx context.Context, hb Heartbeat, ttl time.Duration) error {
	data, err := json.Marshal(hb)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.heartbeatKey(), data, ttl).Err()
}

func (r *RedisStore) GetHeartbeat(ctx context.Context) (Heartbeat, bool, error) {
	data, err := r.client.Get(ctx, r.heartbeatKey()).Result()
	if err == redis.Nil {
		return Heartbeat{}, false, nil
	}
	if err != nil {
		return Heartbeat{}, false, err
	}
	var hb Heartbeat
	if err := json.Unmarshal([]byte(data), &hb); err != nil {
		return Heartbeat{}, false, err
	}
	return hb, true, nil
}

func (r *RedisStore) WatchRolls(fn WatchFunc) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		r.sub = r.client.Subscribe(context.Background(), r.notify)
		go r.receive(r.sub)
	}
	id := r.nextWatch
	r.nextWatch++
	r.watchers[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.watchers, id)
	}
}

// Close tears down the notification subscription, if any.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.watchers = make(map[int]WatchFunc)
	r.mu.Unlock()
	if sub != nil {
		return sub.Close()
	}
	return nil
}

func (r *RedisStore) publishChange(ctx context.Context, subject, rollID string) error {
	if err := r.client.Publish(ctx, r.notify, subject+"|"+rollID).Err(); err != nil {
		log.Printf("publish roll change failed: subject=%s roll_id=%s err=%v", subject, rollID, err)
		return err
	}
	return nil
}

func (r *RedisStore) receive(sub *redis.PubSub) {
	for msg := range sub.Channel() {
		subject, rollID, ok := strings.Cut(msg.Payload, "|")
		if !ok {
			continue
		}
		r.mu.Lock()
		fns := make([]WatchFunc, 0, len(r.watchers))
		for _, fn := range r.watchers {
			fns = append(fns, fn)
		}
		r.mu.Unlock()
		for _, fn := range fns {
			fn(subject, rollID)
		}
	}
}
