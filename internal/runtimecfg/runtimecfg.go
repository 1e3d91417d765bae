// Package runtimecfg is the client for the platform's Configuration
// Provider: runtime-tunable settings (debug routing, channel toggles,
// contact identities) stored centrally and cached in-process.
//
// The cache has a fixed TTL and is read-only within a process lifetime;
// it is not proactively invalidated when the provider changes. On provider
// failure the client degrades to environment-supplied defaults rather than
// failing the run.
package runtimecfg

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/notifyhub/signal-pipeline/internal/config"
	"github.com/notifyhub/signal-pipeline/internal/domain"
)

// redisKey is the hash holding the runtime configuration fields.
const redisKey = "notify:runtime_config"

// RuntimeConfig is the resolved runtime configuration snapshot.
type RuntimeConfig struct {
	DebugMode      bool
	DebugIdentity  domain.Recipient
	EmailEnabled   bool
	SMSEnabled     bool
	EmailFrom      string
	PrimaryContact domain.Recipient
}

// Store fetches the raw field map from the Configuration Provider.
type Store interface {
	Fetch(ctx context.Context) (map[string]string, error)
}

// RedisStore reads the configuration hash from redis.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *RedisStore) Fetch(ctx context.Context) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, redisKey).Result()
}

// Client caches Configuration Provider output in-process with a fixed TTL.
type Client struct {
	store    Store // nil = environment defaults only
	ttl      time.Duration
	defaults RuntimeConfig
	logger   *zap.Logger

	mu        sync.Mutex
	cached    RuntimeConfig
	fetchedAt time.Time
}

func NewClient(store Store, ttl time.Duration, defaults RuntimeConfig, logger *zap.Logger) *Client {
	return &Client{store: store, ttl: ttl, defaults: defaults, logger: logger}
}

// DefaultsFrom builds the environment fallback snapshot.
func DefaultsFrom(cfg *config.Config) RuntimeConfig {
	return RuntimeConfig{
		DebugMode: cfg.DebugMode,
		DebugIdentity: domain.Recipient{
			Email: cfg.DebugEmail,
			Phone: cfg.DebugPhone,
			Name:  cfg.DebugName,
		},
		EmailEnabled: cfg.EmailEnabled,
		SMSEnabled:   cfg.SMSEnabled,
		EmailFrom:    cfg.EmailFrom,
		PrimaryContact: domain.Recipient{
			Email: cfg.PrimaryContactEmail,
			Phone: cfg.PrimaryContactPhone,
			Name:  cfg.PrimaryContactName,
		},
	}
}

// Get returns the current runtime configuration, refreshing the cache when
// the TTL has elapsed. It never fails: a provider error falls back to the
// environment defaults (and caches them, so a flapping provider is not
// hammered every pass).
func (c *Client) Get(ctx context.Context) RuntimeConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < c.ttl {
		return c.cached
	}

	c.cached = c.fetch(ctx)
	c.fetchedAt = time.Now()
	return c.cached
}

func (c *Client) fetch(ctx context.Context) RuntimeConfig {
	if c.store == nil {
		return c.defaults
	}

	fields, err := c.store.Fetch(ctx)
	if err != nil {
		c.logger.Warn("configuration provider unavailable, using environment defaults",
			zap.Error(err))
		return c.defaults
	}

	// Absent fields keep their environment default.
	out := c.defaults
	if v, ok := fields["debug_mode"]; ok {
		out.DebugMode = parseBool(v, out.DebugMode)
	}
	if v, ok := fields["debug_email"]; ok {
		out.DebugIdentity.Email = v
	}
	if v, ok := fields["debug_phone"]; ok {
		out.DebugIdentity.Phone = v
	}
	if v, ok := fields["debug_name"]; ok {
		out.DebugIdentity.Name = v
	}
	if v, ok := fields["email_enabled"]; ok {
		out.EmailEnabled = parseBool(v, out.EmailEnabled)
	}
	if v, ok := fields["sms_enabled"]; ok {
		out.SMSEnabled = parseBool(v, out.SMSEnabled)
	}
	if v, ok := fields["email_from"]; ok {
		out.EmailFrom = v
	}
	if v, ok := fields["primary_email"]; ok {
		out.PrimaryContact.Email = v
	}
	if v, ok := fields["primary_phone"]; ok {
		out.PrimaryContact.Phone = v
	}
	if v, ok := fields["primary_name"]; ok {
		out.PrimaryContact.Name = v
	}
	return out
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
