package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "claimreview"

// Config configures the Redis-backed Store.
type Config struct {
	Addr         string
	DB           int
	Password     string
	Prefix       string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	Username     string
	// TTL expires every key of a session after its last write; 0 keeps them.
	TTL time.Duration
}

// Store is a Redis-backed implementation of state.Store.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	// cached SHA for the append event LUA script
	appendSHA string
	// ownsClient determines whether Close() should close the underlying client
	ownsClient bool
}

// New creates a new Redis Store with the provided configuration.
func New(cfg Config) (*Store, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	s := &Store{rdb: rdb, prefix: prefixOrDefault(cfg.Prefix), ttl: cfg.TTL, ownsClient: true}
	s.loadScripts(ctx)
	return s, nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	if s.ownsClient {
		return s.rdb.Close()
	}
	return nil
}

// NewFromClient constructs a Store from a user-managed redis.UniversalClient.
// The Store will not Close() the client.
func NewFromClient(ctx context.Context, rdb redis.UniversalClient, prefix string, ttl time.Duration) (*Store, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	s := &Store{rdb: rdb, prefix: prefixOrDefault(prefix), ttl: ttl, ownsClient: false}
	s.loadScripts(ctx)
	return s, nil
}

// loadScripts caches the append script SHA; on failure AppendEvent uses EVAL.
func (s *Store) loadScripts(ctx context.Context) {
	if sha, err := s.rdb.ScriptLoad(ctx, luaAppendEvent).Result(); err == nil {
		s.appendSHA = sha
	}
}

func prefixOrDefault(p string) string {
	if p == "" {
		return defaultPrefix
	}
	return p
}
