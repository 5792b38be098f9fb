package services

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestRedisNotifier_Notify(t *testing.T) {
	t.Run("queues message on participant list", func(t *testing.T) {
		redisClient, mockRedis := redismock.NewClientMock()
		notifier := NewRedisNotifier(redisClient)

		mockRedis.Regexp().ExpectRPush("notifications:alice", `.*"participant_id":"alice".*"title":"You won!".*`).
			SetVal(1)

		notifier.Notify(context.Background(), "alice", "You won!", "Netflix is on us this month.")
		assert.NoError(t, mockRedis.ExpectationsWereMet())
	})

	t.Run("nil client drops the message", func(t *testing.T) {
		notifier := NewRedisNotifier(nil)
		notifier.Notify(context.Background(), "alice", "You won!", "body")
	})

	t.Run("queue failure does not propagate", func(t *testing.T) {
		redisClient, mockRedis := redismock.NewClientMock()
		notifier := NewRedisNotifier(redisClient)

		mockRedis.Regexp().ExpectRPush("notifications:bob", `.*`).
			SetErr(assert.AnError)

		notifier.Notify(context.Background(), "bob", "Welcome", "body")
		assert.NoError(t, mockRedis.ExpectationsWereMet())
	})
}

func TestRedisNotifier_PublishCampaignUpdate(t *testing.T) {
	redisClient, mockRedis := redismock.NewClientMock()
	notifier := NewRedisNotifier(redisClient)

	mockRedis.ExpectPublish(CampaignUpdatesChannel, "netflix").SetVal(1)

	notifier.PublishCampaignUpdate(context.Background(), "netflix")
	assert.NoError(t, mockRedis.ExpectationsWereMet())
}
