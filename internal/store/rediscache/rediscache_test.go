package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/flickpick/internal/domain"
)

func TestNewPanicsOnNilClient(t *testing.T) {
	assert.Panics(t, func() { New(nil, time.Minute) })
}

func TestNewDefaultsTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	assert.Equal(t, DefaultTTL, New(client, 0).ttl)
	assert.Equal(t, time.Minute, New(client, time.Minute).ttl)
}

func TestDetailKey(t *testing.T) {
	assert.Equal(t, "flickpick:detail:603", detailKey(603))
}

func TestUnreachableServerIsAnError(t *testing.T) {
	// Port 1 refuses connections on any sane host
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := New(client, time.Minute)

	_, err := c.GetDetail(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCacheMiss)

	_, err = Connect(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
