package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/onurcolak/sms-dispatch-service/environments"
	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
)

type Client struct {
	client valkey.Client
}

const (
	sentMessageKeyPrefix = "sent_message:"
	sentMessageTTL       = 24 * time.Hour
)

// incrWindowScript increments a counter and sets its expiry only when the key
// is new, returning the count.
var incrWindowScript = valkey.NewLuaScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

func NewRedisClient(cfg environments.RedisConfig) (*Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Infof("Connected to Redis (via Valkey client)")

	return &Client{client: client}, nil
}

// IncrWindow implements ratelimit.Counter with one atomic round trip.
func (c *Client) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}

	count, err := incrWindowScript.Exec(ctx, c.client, []string{key}, []string{strconv.FormatInt(ms, 10)}).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}

	return count, nil
}

func (c *Client) CacheSentMessage(ctx context.Context, messageID, carrier, to string, sentAt time.Time) error {
	cache := domain.SentMessageCache{
		Carrier: carrier,
		To:      to,
		SentAt:  sentAt,
	}

	data, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	key := sentMessageKeyPrefix + messageID

	err = c.client.Do(ctx, c.client.B().Set().Key(key).Value(string(data)).Ex(sentMessageTTL).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to cache sent message: %w", err)
	}

	logger.Debugf("Cached message %s sent via %s in Redis", messageID, carrier)

	return nil
}

func (c *Client) GetCachedMessage(ctx context.Context, messageID string) (*domain.SentMessageCache, error) {
	result := c.client.Do(ctx, c.client.B().Get().Key(sentMessageKeyPrefix+messageID).Build())
	if result.Error() != nil {
		if valkey.IsValkeyNil(result.Error()) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached message: %w", result.Error())
	}

	data, err := result.ToString()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached message: %w", err)
	}

	var cache domain.SentMessageCache
	if err := json.Unmarshal([]byte(data), &cache); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return &cache, nil
}

// GetAllCachedMessages returns every cached send keyed by provider message id.
func (c *Client) GetAllCachedMessages(ctx context.Context) (map[string]*domain.SentMessageCache, error) {
	pattern := sentMessageKeyPrefix + "*"

	var keys []string
	var cursor uint64
	for {
		result := c.client.Do(ctx, c.client.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build())
		if result.Error() != nil {
			return nil, fmt.Errorf("failed to scan cache keys: %w", result.Error())
		}

		scanResult, err := result.AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to parse scan result: %w", err)
		}

		keys = append(keys, scanResult.Elements...)
		cursor = scanResult.Cursor

		if cursor == 0 {
			break
		}
	}

	result := make(map[string]*domain.SentMessageCache, len(keys))

	for _, key := range keys {
		data, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).ToString()
		if err != nil {
			continue
		}

		var cache domain.SentMessageCache
		if err := json.Unmarshal([]byte(data), &cache); err != nil {
			logger.Warnf("failed to decode cached message %q: %v", key, err)
			continue
		}

		result[key[len(sentMessageKeyPrefix):]] = &cache
	}

	return result, nil
}

func (c *Client) Close() error {
	c.client.Close()
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}
