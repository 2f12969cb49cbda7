package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Telegram redelivers a webhook update until it gets a 2xx, so a slow
// confirmation handler can receive the same update twice. Dedup happens at
// the transport edge, keyed by update_id, before telebot ever sees the body.

// UpdateDeduper reports whether an update id was already processed,
// marking it as processed in the same call.
type UpdateDeduper interface {
	Seen(ctx context.Context, updateID int64) (bool, error)
}

// NewUpdateDeduper returns a Redis-backed deduper, or an in-process one
// when no Redis address is configured or the ping fails. The in-process
// fallback is enough for a single instance; the returned error, if any,
// describes why Redis was skipped.
func NewUpdateDeduper(addr, pass string, db int, ttl time.Duration) (UpdateDeduper, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if addr == "" {
		return newLocalDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newLocalDeduper(ttl), err
	}
	return &redisDeduper{client: client, ttl: ttl}, nil
}

type redisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func (d *redisDeduper) Seen(ctx context.Context, updateID int64) (bool, error) {
	key := "kursbot:update:" + strconv.FormatInt(updateID, 10)
	stored, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !stored, nil
}

type localDeduper struct {
	mu      sync.Mutex
	expires map[int64]time.Time
	ttl     time.Duration
	sweepAt time.Time
}

func newLocalDeduper(ttl time.Duration) *localDeduper {
	return &localDeduper{
		expires: make(map[int64]time.Time),
		ttl:     ttl,
		sweepAt: time.Now().Add(ttl),
	}
}

func (d *localDeduper) Seen(_ context.Context, updateID int64) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if until, ok := d.expires[updateID]; ok && until.After(now) {
		return true, nil
	}
	d.expires[updateID] = now.Add(d.ttl)

	// Expired ids pile up between sweeps; clear them once per TTL window.
	if now.After(d.sweepAt) {
		for id, until := range d.expires {
			if until.Before(now) {
				delete(d.expires, id)
			}
		}
		d.sweepAt = now.Add(d.ttl)
	}
	return false, nil
}

// TelegramUpdateDedup short-circuits duplicate webhook deliveries with a
// 200 so Telegram stops retrying. Anything that cannot be parsed passes
// through untouched.
func TelegramUpdateDedup(deduper UpdateDeduper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if deduper == nil || c.Request().Body == nil {
				return next(c)
			}

			req := c.Request()
			raw, err := io.ReadAll(req.Body)
			if err != nil {
				return next(c)
			}
			// The handler downstream still needs the body.
			req.Body = io.NopCloser(bytes.NewReader(raw))

			var update struct {
				UpdateID int64 `json:"update_id"`
			}
			if json.Unmarshal(raw, &update) != nil || update.UpdateID == 0 {
				return next(c)
			}

			dup, err := deduper.Seen(req.Context(), update.UpdateID)
			if err == nil && dup {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}
