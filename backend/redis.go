package backend

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPort is the port used for endpoints that don't set one.
const DefaultPort = 6379

// Redis implements Backend and represents the application's connection to
// one logical Redis database.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing client. The client's DB option decides which
// logical database the backend is bound to.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// DialRedis creates a client bound to database db at host:port. Connections
// are opened lazily by the client pool, so this never fails. It is up to the
// caller to close the backend with Close().
func DialRedis(host string, port, db int) *Redis {
	if port == 0 {
		port = DefaultPort
	}
	return NewRedis(redis.NewClient(&redis.Options{
		Addr: net.JoinHostPort(host, strconv.Itoa(port)),
		DB:   db,
	}))
}

// Client exposes the underlying client.
func (r *Redis) Client() *redis.Client {
	return r.client
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *Redis) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.SetEx(ctx, key, value, ttl).Err()
}

// TTL passes the NoExpiry and Missing sentinels through untouched.
func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, key).Result()
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if isNotInteger(err) {
		return 0, ErrNotInteger
	}
	return n, err
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

func (r *Redis) Persist(ctx context.Context, key string) error {
	return r.client.Persist(ctx, key).Err()
}

func (r *Redis) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) SAdd(ctx context.Context, setKey, member string) error {
	return r.client.SAdd(ctx, setKey, member).Err()
}

func (r *Redis) SScan(ctx context.Context, setKey string, cursor uint64, count int64) ([]string, uint64, error) {
	return r.client.SScan(ctx, setKey, cursor, "", count).Result()
}

func (r *Redis) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	return r.client.Scan(ctx, cursor, match, count).Result()
}

func (r *Redis) FlushDB(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// isNotInteger detects the server's reply to INCR on a non-numeric value.
func isNotInteger(err error) bool {
	if err == nil {
		return false
	}
	var rerr redis.Error
	return errors.As(err, &rerr) && strings.Contains(rerr.Error(), "not an integer")
}
