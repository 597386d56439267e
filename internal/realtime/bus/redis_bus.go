package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/classroom-backend/internal/platform/envutil"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
	"github.com/yungbote/classroom-backend/internal/realtime"
)

const (
	defaultPrefix       = "sse"
	dialTimeout         = 5 * time.Second
	forwardBuffer       = 256
	healthCheckInterval = 30 * time.Second
)

// Config selects the Redis deployment progress events travel through. URL
// takes precedence over Addr, Password and DB.
type Config struct {
	URL            string
	Addr           string
	Password       string
	DB             int
	Prefix         string
	PublishTimeout time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		URL:            envutil.String("REDIS_URL", "", log),
		Addr:           envutil.String("REDIS_ADDR", "", log),
		Password:       envutil.String("REDIS_PASSWORD", "", log),
		DB:             envutil.Int("REDIS_DB", 0, log),
		Prefix:         envutil.String("REDIS_CHANNEL", defaultPrefix, log),
		PublishTimeout: envutil.Duration("REDIS_PUBLISH_TIMEOUT", 2*time.Second, log),
	}
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.URL) != "" || strings.TrimSpace(c.Addr) != ""
}

func (c Config) options() (*goredis.Options, error) {
	if raw := strings.TrimSpace(c.URL); raw != "" {
		opts, err := goredis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		if opts.DialTimeout == 0 {
			opts.DialTimeout = dialTimeout
		}
		return opts, nil
	}
	addr := strings.TrimSpace(c.Addr)
	if addr == "" {
		return nil, errors.New("missing REDIS_ADDR or REDIS_URL")
	}
	return &goredis.Options{
		Addr:        addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: dialTimeout,
	}, nil
}

func (c Config) prefix() string {
	if p := strings.Trim(strings.TrimSpace(c.Prefix), ":"); p != "" {
		return p
	}
	return defaultPrefix
}

// topic is the Redis channel carrying one SSE channel, i.e. one attempt.
func (c Config) topic(sseChannel string) string {
	return c.prefix() + ":" + sseChannel
}

// RedisBus publishes each SSE channel on its own Redis channel under a shared
// prefix. The forwarder pattern-subscribes to the whole prefix.
type RedisBus struct {
	cfg Config
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisBus(cfg Config, log *logger.Logger) (*RedisBus, error) {
	if log == nil {
		return nil, errors.New("logger required")
	}
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &RedisBus{
		cfg: cfg,
		log: log.With("service", "RedisSSEBus", "prefix", cfg.prefix()),
		rdb: rdb,
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if b == nil || b.rdb == nil {
		return errors.New("redis SSE bus not initialized")
	}
	if msg.Channel == "" {
		return errors.New("redis SSE bus: message has no channel")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode SSE message: %w", err)
	}
	if b.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.PublishTimeout)
		defer cancel()
	}
	return b.rdb.Publish(ctx, b.cfg.topic(msg.Channel), raw).Err()
}

// StartForwarder hands every message published under the prefix to onMsg
// until ctx is done. go-redis resubscribes on its own after a dropped
// connection.
func (b *RedisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if b == nil || b.rdb == nil {
		return errors.New("redis SSE bus not initialized")
	}
	if onMsg == nil {
		return errors.New("onMsg callback required")
	}
	sub := b.rdb.PSubscribe(ctx, b.cfg.topic("*"))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	go b.forward(ctx, sub, onMsg)
	return nil
}

func (b *RedisBus) forward(ctx context.Context, sub *goredis.PubSub, onMsg func(m realtime.SSEMessage)) {
	defer sub.Close()
	in := sub.Channel(
		goredis.WithChannelSize(forwardBuffer),
		goredis.WithChannelHealthCheckInterval(healthCheckInterval),
	)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			if msg, ok := b.decode(m); ok {
				onMsg(msg)
			}
		}
	}
}

// decode unpacks a Redis message. A payload whose channel disagrees with the
// topic it arrived on is dropped.
func (b *RedisBus) decode(m *goredis.Message) (realtime.SSEMessage, bool) {
	var msg realtime.SSEMessage
	if m == nil {
		return msg, false
	}
	sseChannel, ok := strings.CutPrefix(m.Channel, b.cfg.prefix()+":")
	if !ok || sseChannel == "" {
		return msg, false
	}
	if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
		b.log.Warn("Bad redis SSE payload", "topic", m.Channel, "error", err)
		return msg, false
	}
	switch msg.Channel {
	case "":
		msg.Channel = sseChannel
	case sseChannel:
	default:
		b.log.Warn("Redis SSE payload on wrong topic", "topic", m.Channel, "channel", msg.Channel)
		return msg, false
	}
	return msg, true
}

func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

// Client exposes the connection to health collectors. The bus keeps
// ownership; callers must not close it.
func (b *RedisBus) Client() goredis.UniversalClient {
	if b == nil {
		return nil
	}
	return b.rdb
}
