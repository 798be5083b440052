package counter

import (
	"context"
	"strconv"

	"github.com/andrewwildgoose/nappio-backend/internal/pkg/cache"
)

const webhookOutcomesKey = "webhook:counters:outcomes"

// AddWebhookOutcome increments the counter for one webhook disposition in
// Redis. Counters are best effort; a failed increment never affects the
// webhook response.
func AddWebhookOutcome(provider, outcome string) error {
	ctx := context.Background()
	field := provider + ":" + outcome
	return cache.GetClient().HIncrBy(ctx, webhookOutcomesKey, field, 1).Err()
}

// WebhookOutcomes returns the accumulated webhook counters keyed by
// "provider:outcome".
func WebhookOutcomes() (map[string]int64, error) {
	ctx := context.Background()
	raw, err := cache.GetClient().HGetAll(ctx, webhookOutcomesKey).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		out[field] = n
	}
	return out, nil
}
