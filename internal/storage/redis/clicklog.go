package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/links2go/links2go/internal/models"
)

// clickHistoryLimit caps the per-code click history. The list is trimmed on
// every append, so eviction is by count, not by age.
const clickHistoryLimit = 100

// ClickLog stores the bounded, newest-first click history of each short code
// in a Redis list of JSON-encoded events.
type ClickLog struct {
	client *goredis.Client
}

func NewClickLog(client *goredis.Client) *ClickLog {
	return &ClickLog{
		client: client,
	}
}

// Append pushes an event to the front of the code's history and trims the
// history to the most recent clickHistoryLimit entries. Both commands run in
// one MULTI/EXEC block, so the list can never be observed over the limit.
func (l *ClickLog) Append(ctx context.Context, shortCode string, event models.ClickEvent) error {
	const op = "storage.redis.ClickLog.Append"

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: failed to encode click event: %w", op, err)
	}

	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, analyticsKey(shortCode), data)
	pipe.LTrim(ctx, analyticsKey(shortCode), 0, clickHistoryLimit-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: failed to append click event: %w", op, err)
	}

	return nil
}

// ReadAll returns the retained click history, most recent first. A code with
// no recorded clicks yields an empty slice, not an error.
func (l *ClickLog) ReadAll(ctx context.Context, shortCode string) ([]models.ClickEvent, error) {
	const op = "storage.redis.ClickLog.ReadAll"

	items, err := l.client.LRange(ctx, analyticsKey(shortCode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read click events: %w", op, err)
	}

	events := make([]models.ClickEvent, 0, len(items))
	for _, item := range items {
		var event models.ClickEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("%s: failed to decode click event: %w", op, err)
		}
		events = append(events, event)
	}

	return events, nil
}
