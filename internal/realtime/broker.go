package realtime

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "push:"

// eventDisconnect is a control message: the receiving instance drops the
// user's sockets instead of forwarding an event.
const eventDisconnect = "_disconnect"

// Broker fans pushes out through Redis so every API instance can reach
// the sockets it holds. Each instance runs one subscriber that relays
// into its local hub.
type Broker struct {
	rdb *redis.Client
	hub *Hub
}

func NewBroker(rdb *redis.Client, hub *Hub) *Broker {
	return &Broker{rdb: rdb, hub: hub}
}

type envelope struct {
	UserID uuid.UUID       `json:"user_id"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func (b *Broker) PushToUser(userID uuid.UUID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Broker] marshal %s: %v", event, err)
		return
	}
	msg, _ := json.Marshal(envelope{UserID: userID, Type: event, Data: data})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.rdb.Publish(ctx, channelPrefix+userID.String(), msg).Err(); err != nil {
		log.Printf("[Broker] publish failed, delivering locally: %v", err)
		b.hub.PushToUser(userID, event, json.RawMessage(data))
	}
}

// DisconnectUser asks every instance to close the user's sockets. It
// returns the local count when Redis is unreachable, zero otherwise.
func (b *Broker) DisconnectUser(userID uuid.UUID) int {
	msg, _ := json.Marshal(envelope{UserID: userID, Type: eventDisconnect})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.rdb.Publish(ctx, channelPrefix+userID.String(), msg).Err(); err != nil {
		log.Printf("[Broker] publish disconnect failed, closing locally: %v", err)
		return b.hub.DisconnectUser(userID)
	}
	return 0
}

func (b *Broker) PushToConversation(clientID, providerID uuid.UUID, event string, payload any) {
	b.PushToUser(clientID, event, payload)
	b.PushToUser(providerID, event, payload)
}

// Run relays published events into the local hub until ctx is done.
func (b *Broker) Run(ctx context.Context) error {
	sub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Println("[Broker] subscribed to", channelPrefix+"*")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.relay(msg.Channel, msg.Payload)
		}
	}
}

func (b *Broker) relay(channel, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Printf("[Broker] bad payload on %s: %v", channel, err)
		return
	}
	if env.UserID == uuid.Nil {
		if id, err := uuid.Parse(strings.TrimPrefix(channel, channelPrefix)); err == nil {
			env.UserID = id
		}
	}
	if env.Type == eventDisconnect {
		b.hub.DisconnectUser(env.UserID)
		return
	}
	b.hub.PushToUser(env.UserID, env.Type, env.Data)
}
