package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

func inboxKey(userID int) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// NotificationInbox keeps the most recent notifications of each user in a
// capped Redis list, newest first.
type NotificationInbox struct {
	rdb  *redis.Client
	size int64
}

func NewNotificationInbox(rdb *redis.Client, size int) *NotificationInbox {
	if size < 1 {
		size = 1
	}
	return &NotificationInbox{rdb: rdb, size: int64(size)}
}

func (i *NotificationInbox) Push(ctx context.Context, userID int, message string) error {
	key := inboxKey(userID)
	pipe := i.rdb.TxPipeline()
	pipe.LPush(ctx, key, message)
	pipe.LTrim(ctx, key, 0, i.size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push notification for user %d: %w", userID, err)
	}
	return nil
}
