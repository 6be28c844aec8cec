package cache

import (
	"context"
	"testing"
	"time"

	"shop-svc/config"
	"shop-svc/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestProductKey(t *testing.T) {
	if got := productKey(42); got != "product:42" {
		t.Errorf("Expected product:42, got %s", got)
	}
}

func TestProductCache_UnavailableRedis(t *testing.T) {
	rdb := unreachableClient()
	defer rdb.Close()
	c := NewProductCache(rdb, time.Minute)
	ctx := context.Background()

	if _, err := c.Get(ctx, 1); err == nil {
		t.Errorf("Expected error from Get without Redis")
	}
	if err := c.Set(ctx, &models.Product{ID: 1, Name: "Keyboard"}); err == nil {
		t.Errorf("Expected error from Set without Redis")
	}
	if err := c.Invalidate(ctx, 1, 2); err == nil {
		t.Errorf("Expected error from Invalidate without Redis")
	}
}

func TestProductCache_InvalidateNothing(t *testing.T) {
	rdb := unreachableClient()
	defer rdb.Close()
	c := NewProductCache(rdb, time.Minute)

	if err := c.Invalidate(context.Background()); err != nil {
		t.Errorf("Expected no-op for empty id list, got %v", err)
	}
}

func TestInitRedis_Unreachable(t *testing.T) {
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	_, err := InitRedis(config.RedisConfig{Host: "127.0.0.1", Port: "1"}, logger)
	if err == nil {
		t.Errorf("Expected connection error")
	}
}

func TestInboxKey(t *testing.T) {
	if got := inboxKey(7); got != "notifications:user:7" {
		t.Errorf("Expected notifications:user:7, got %s", got)
	}
}

func TestNotificationInbox_UnavailableRedis(t *testing.T) {
	rdb := unreachableClient()
	defer rdb.Close()
	inbox := NewNotificationInbox(rdb, 0)

	if inbox.size != 1 {
		t.Errorf("Expected size clamped to 1, got %d", inbox.size)
	}
	if err := inbox.Push(context.Background(), 7, "Payment received"); err == nil {
		t.Errorf("Expected error from Push without Redis")
	}
}
