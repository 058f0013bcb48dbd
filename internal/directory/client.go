package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/consogab/server/internal/models"
)

// Resolver looks up display profiles for users and businesses in batches.
type Resolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]*models.Profile, error)
}

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client talks to the ConsoGab directory API. Lookups go through a redis
// cache; misses hit the HTTP API behind a circuit breaker with retry.
type Client struct {
	http *http.Client
	rdb  *redis.Client
	cb   *gobreaker.CircuitBreaker
	cfg  Config
	log  *zap.SugaredLogger
}

func NewClient(cfg Config, rdb *redis.Client, log *zap.SugaredLogger) *Client {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    32,
		IdleConnTimeout: 90 * time.Second,
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "directory",
		Timeout: 30 * time.Second,
	})
	return &Client{
		http: &http.Client{Transport: tr, Timeout: cfg.Timeout},
		rdb:  rdb,
		cb:   cb,
		cfg:  cfg,
		log:  log,
	}
}

func (c *Client) Resolve(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	out := make(map[string]*models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	missing := ids
	if c.rdb != nil {
		missing = missing[:0]
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = cacheKey(id)
		}
		vals, err := c.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			// cache trouble is not fatal, fall through to the API
			c.log.Warnw("directory cache read failed", "err", err)
			missing = ids
		} else {
			for i, v := range vals {
				s, ok := v.(string)
				if !ok {
					missing = append(missing, ids[i])
					continue
				}
				var p models.Profile
				if json.Unmarshal([]byte(s), &p) != nil {
					missing = append(missing, ids[i])
					continue
				}
				out[p.ID] = &p
			}
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.fetch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, p := range fetched {
		out[p.ID] = p
		if c.rdb != nil {
			if b, err := json.Marshal(p); err == nil {
				c.rdb.Set(ctx, cacheKey(p.ID), b, c.cfg.CacheTTL)
			}
		}
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, ids []string) ([]*models.Profile, error) {
	body, err := json.Marshal(map[string][]string{"ids": ids})
	if err != nil {
		return nil, err
	}

	res, err := c.cb.Execute(func() (any, error) {
		var profiles []*models.Profile
		op := func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				c.cfg.BaseURL+"/v1/profiles/batch", bytes.NewReader(body))
			if err != nil {
				return backoff.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 500 {
				io.Copy(io.Discard, resp.Body)
				return fmt.Errorf("directory status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return backoff.Permanent(fmt.Errorf("directory status %d", resp.StatusCode))
			}
			return json.NewDecoder(resp.Body).Decode(&profiles)
		}
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = c.cfg.Timeout
		if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
			return nil, err
		}
		return profiles, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve profiles: %w", err)
	}
	return res.([]*models.Profile), nil
}

func cacheKey(id string) string { return "profile:" + id }
