package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "notifications:"

// NewRedis creates a new Redis client
func NewRedis(addr, password string, db int) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	zap.L().Info("redis client created", zap.String("addr", addr))
	return rdb
}

func Channel(userID uuid.UUID) string {
	return channelPrefix + userID.String()
}

// Event is the JSON frame pushed to websocket clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Publisher fans notifications out through Redis so every API instance
// can deliver them to its own websocket clients.
type Publisher struct {
	RDB *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{RDB: rdb}
}

func (p *Publisher) Notify(ctx context.Context, userID uuid.UUID, eventType string, data any) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	return p.RDB.Publish(ctx, Channel(userID), payload).Err()
}

// Bridge relays Redis notifications into the local hub.
type Bridge struct {
	RDB *redis.Client
	Hub *Hub
}

func NewBridge(rdb *redis.Client, hub *Hub) *Bridge {
	return &Bridge{RDB: rdb, Hub: hub}
}

// Run blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.RDB.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			uid, err := uuid.Parse(strings.TrimPrefix(msg.Channel, channelPrefix))
			if err != nil {
				zap.L().Warn("notification on malformed channel", zap.String("channel", msg.Channel))
				continue
			}
			b.Hub.SendRaw(uid, []byte(msg.Payload))
		}
	}
}
