package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// PriceCache implements domain.PriceCache with one hash per vt_symbol at
// "mark:{vt_symbol}" holding "price" and "ts" (Unix nanoseconds). Entries
// expire after ttl when ttl is positive.
type PriceCache struct {
	c   *Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{c: c, ttl: ttl}
}

func (pc *PriceCache) markKey(vtSymbol string) string {
	return pc.c.key("mark", vtSymbol)
}

// SetPrice stores the latest mark of vtSymbol.
func (pc *PriceCache) SetPrice(ctx context.Context, vtSymbol string, price float64, ts time.Time) error {
	key := pc.markKey(vtSymbol)
	pipe := pc.c.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	})
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set mark %s: %w", vtSymbol, err)
	}
	return nil
}

// GetPrice returns the stored mark of vtSymbol, or domain.ErrNotFound.
func (pc *PriceCache) GetPrice(ctx context.Context, vtSymbol string) (float64, time.Time, error) {
	vals, err := pc.c.rdb.HGetAll(ctx, pc.markKey(vtSymbol)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get mark %s: %w", vtSymbol, err)
	}
	price, ts, err := parseMark(vals)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: mark %s: %w", vtSymbol, err)
	}
	return price, ts, nil
}

// GetPrices returns the marks of vtSymbols in one pipeline. Symbols without
// a usable mark are omitted.
func (pc *PriceCache) GetPrices(ctx context.Context, vtSymbols []string) (map[string]float64, error) {
	if len(vtSymbols) == 0 {
		return map[string]float64{}, nil
	}

	pipe := pc.c.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(vtSymbols))
	for _, vt := range vtSymbols {
		cmds[vt] = pipe.HGetAll(ctx, pc.markKey(vt))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get marks pipeline: %w", err)
	}

	out := make(map[string]float64, len(vtSymbols))
	for vt, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if price, _, err := parseMark(vals); err == nil {
			out[vt] = price
		}
	}
	return out, nil
}

func parseMark(vals map[string]string) (float64, time.Time, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse price: %w", err)
	}
	var ts time.Time
	if tsStr, ok := vals["ts"]; ok {
		nanos, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("parse ts: %w", err)
		}
		ts = time.Unix(0, nanos)
	}
	return price, ts, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
