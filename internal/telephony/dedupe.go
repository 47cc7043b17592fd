package telephony

import (
	"context"
	"time"

	"github.com/Newrona-pi/Twilio-INPUT/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// DeliveryGuard flags webhook redeliveries. first=false means this exact
// delivery was already seen inside the guard window.
type DeliveryGuard interface {
	MarkDelivery(ctx context.Context, key string) (first bool, err error)
}

// RedisDeliveryGuard backs the guard with the shared Redis SET-NX helper.
type RedisDeliveryGuard struct {
	Client *redis.Client
	TTL    time.Duration
}

func (g RedisDeliveryGuard) MarkDelivery(ctx context.Context, key string) (bool, error) {
	ttl := g.TTL
	if ttl <= 0 {
		// Twilio retries failed webhooks for well under an hour.
		ttl = time.Hour
	}
	return utils.MarkDelivery(ctx, g.Client, key, ttl)
}
