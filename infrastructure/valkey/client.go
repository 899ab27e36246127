package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-admin/core/config"
	valkeylib "github.com/valkey-io/valkey-go"
)

const (
	// DefaultConnectTimeout bounds the initial PING.
	DefaultConnectTimeout = 5 * time.Second

	clientName = "az-admin"
)

type Config struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
	// WriteTimeout fails a command whose connection stalls, so a dead server
	// surfaces as errors instead of hung requests.
	WriteTimeout time.Duration
}

// ConfigFrom extracts the Valkey settings from the application cache config.
func ConfigFrom(cfg config.CacheConfig) Config {
	return Config{
		Address:      cfg.ValkeyAddress,
		Password:     cfg.ValkeyPassword,
		DB:           cfg.ValkeyDB,
		KeyPrefix:    cfg.ValkeyKeyPrefix,
		WriteTimeout: cfg.OpTimeout,
	}
}

// Client is the connection shared by the cache backend, the quota counters
// and the event hub. Every key it builds carries the deployment prefix.
type Client struct {
	inner     valkeylib.Client
	keyPrefix string
}

// NewClient connects and pings the server. The caller owns Close.
func NewClient(cfg Config) (*Client, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
		Password:    cfg.Password,
		ClientName:  clientName,
	}
	if cfg.WriteTimeout > 0 {
		opts.ConnWriteTimeout = cfg.WriteTimeout
	}

	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c := &Client{inner: inner, keyPrefix: normalizePrefix(cfg.KeyPrefix)}
	if err := c.Ping(ctx); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey at %s (timeout: %v): %w", cfg.Address, timeout, err)
	}
	return c, nil
}

func normalizePrefix(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		return prefix + ":"
	}
	return prefix
}

func (c *Client) Inner() valkeylib.Client {
	return c.inner
}

func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// Key joins parts under the deployment prefix.
// Key("cache", "admin:users") -> "azadmin:cache:admin:users"
func (c *Client) Key(parts ...string) string {
	if len(parts) == 0 {
		return strings.TrimSuffix(c.keyPrefix, ":")
	}
	return c.keyPrefix + strings.Join(parts, ":")
}

func (c *Client) Ping(ctx context.Context) error {
	return c.inner.Do(ctx, c.inner.B().Ping().Build()).Error()
}

// Scan calls fn for every key matching the glob, walking the keyspace with
// SCAN so large keyspaces never block the server. match is used as given and
// keys reach fn exactly as stored.
func (c *Client) Scan(ctx context.Context, match string, batch int64, fn func(key string)) error {
	var cursor uint64
	for {
		cmd := c.inner.B().Scan().Cursor(cursor).Match(match).Count(batch).Build()
		entry, err := c.inner.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return err
		}
		for _, k := range entry.Elements {
			fn(k)
		}
		if cursor = entry.Cursor; cursor == 0 {
			return nil
		}
	}
}

// Publish sends message on a prefixed Pub/Sub channel.
func (c *Client) Publish(ctx context.Context, channel, message string) error {
	return c.inner.Do(ctx, c.inner.B().Publish().Channel(c.Key(channel)).Message(message).Build()).Error()
}

// Subscribe blocks delivering messages of the prefixed channel to fn until ctx
// ends or the subscription fails.
func (c *Client) Subscribe(ctx context.Context, channel string, fn func(message string)) error {
	return c.inner.Receive(ctx, c.inner.B().Subscribe().Channel(c.Key(channel)).Build(), func(msg valkeylib.PubSubMessage) {
		fn(msg.Message)
	})
}

// IsNil reports whether err is a NIL reply.
func IsNil(err error) bool {
	return valkeylib.IsValkeyNil(err)
}
