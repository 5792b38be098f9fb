package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// CampaignUpdatesChannel is the pub/sub channel on which the engine announces
// campaign changes. Observers subscribe to it instead of polling.
const CampaignUpdatesChannel = "campaign.updates"

// NotificationSink receives participant messages. Delivery is fire-and-forget:
// a failed notification never rolls back or blocks the operation that
// produced it.
type NotificationSink interface {
	Notify(ctx context.Context, participantID, title, body string)
}

// Message is the payload pushed to a participant's notification queue.
type Message struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"`
}

// RedisNotifier queues messages on a per-participant Redis list. When Redis
// is unavailable the message is logged and dropped.
type RedisNotifier struct {
	redis *redis.Client
}

func NewRedisNotifier(redisClient *redis.Client) *RedisNotifier {
	return &RedisNotifier{redis: redisClient}
}

func (n *RedisNotifier) Notify(ctx context.Context, participantID, title, body string) {
	msg := Message{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Title:         title,
		Body:          body,
		CreatedAt:     time.Now(),
	}

	if n.redis == nil {
		log.Printf("[NOTIFY] Redis unavailable, dropping message for %s: %s", participantID, title)
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[NOTIFY] Failed to marshal message for %s: %v", participantID, err)
		return
	}

	if err := n.redis.RPush(ctx, notificationQueueKey(participantID), string(data)).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to queue message for %s: %v", participantID, err)
	}
}

// PublishCampaignUpdate announces a campaign change on the updates channel.
// Best effort only; the engine's own goal check reads Postgres directly.
func (n *RedisNotifier) PublishCampaignUpdate(ctx context.Context, campaignID string) {
	if n.redis == nil {
		return
	}
	if err := n.redis.Publish(ctx, CampaignUpdatesChannel, campaignID).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to publish campaign update for %s: %v", campaignID, err)
	}
}

func notificationQueueKey(participantID string) string {
	return "notifications:" + participantID
}
