package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/links2go/links2go/internal/models"
)

func TestClickLog_Append(t *testing.T) {
	t.Run("newest first", func(t *testing.T) {
		_, client := setupStore(t)
		clickLog := NewClickLog(client)

		base := time.Now().UTC().Truncate(time.Second)
		for i := 0; i < 3; i++ {
			err := clickLog.Append(context.Background(), "abc123", models.ClickEvent{
				Timestamp: base.Add(time.Duration(i) * time.Second),
				IP:        fmt.Sprintf("192.0.2.%d", i),
			})
			require.NoError(t, err)
		}

		events, err := clickLog.ReadAll(context.Background(), "abc123")

		assert.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, "192.0.2.2", events[0].IP)
		assert.Equal(t, "192.0.2.1", events[1].IP)
		assert.Equal(t, "192.0.2.0", events[2].IP)
	})

	t.Run("retains only the 100 most recent events", func(t *testing.T) {
		_, client := setupStore(t)
		clickLog := NewClickLog(client)

		base := time.Now().UTC().Truncate(time.Second)
		for i := 0; i < 150; i++ {
			err := clickLog.Append(context.Background(), "abc123", models.ClickEvent{
				Timestamp: base.Add(time.Duration(i) * time.Second),
				IP:        fmt.Sprintf("198.51.100.%d", i%256),
			})
			require.NoError(t, err)
		}

		events, err := clickLog.ReadAll(context.Background(), "abc123")

		assert.NoError(t, err)
		require.Len(t, events, clickHistoryLimit)

		// The newest event comes first; the 50 oldest were evicted.
		assert.True(t, events[0].Timestamp.Equal(base.Add(149*time.Second)))
		assert.True(t, events[len(events)-1].Timestamp.Equal(base.Add(50*time.Second)))
	})

	t.Run("preserves requester metadata", func(t *testing.T) {
		_, client := setupStore(t)
		clickLog := NewClickLog(client)

		want := models.ClickEvent{
			Timestamp: time.Now().UTC().Truncate(time.Second),
			IP:        "192.0.2.1",
			UserAgent: "curl/8.0",
			Referer:   "https://news.example.org",
		}
		require.NoError(t, clickLog.Append(context.Background(), "abc123", want))

		events, err := clickLog.ReadAll(context.Background(), "abc123")

		assert.NoError(t, err)
		require.Len(t, events, 1)
		assert.True(t, events[0].Timestamp.Equal(want.Timestamp))
		assert.Equal(t, want.IP, events[0].IP)
		assert.Equal(t, want.UserAgent, events[0].UserAgent)
		assert.Equal(t, want.Referer, events[0].Referer)
	})
}

func TestClickLog_ReadAll(t *testing.T) {
	t.Run("no recorded clicks", func(t *testing.T) {
		_, client := setupStore(t)
		clickLog := NewClickLog(client)

		events, err := clickLog.ReadAll(context.Background(), "abc123")

		assert.NoError(t, err)
		assert.Empty(t, events)
	})
}
