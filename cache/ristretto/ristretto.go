// Package ristretto adapts dgraph-io/ristretto to the membership cache
// contract. Useful when the working set is large enough that admission
// quality matters more than strict LRU order.
package ristretto

import (
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/forumkit/membership/cache"
)

type Cache struct {
	c   *rc.Cache
	ttl time.Duration
}

var _ cache.Cache = (*Cache)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	TTL         time.Duration // 0 => 1h
	Metrics     bool
}

func New(cfg Config) (*Cache, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, ttl: ttl}, nil
}

func (p *Cache) Get(uid int64, group string) (bool, bool) {
	v, ok := p.c.Get(cache.Key(uid, group))
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	if !ok {
		// self-heal: drop unexpected entry shape
		p.c.Del(cache.Key(uid, group))
		return false, false
	}
	return b, true
}

func (p *Cache) Set(uid int64, group string, isMember bool) {
	p.c.SetWithTTL(cache.Key(uid, group), isMember, 1, p.ttl)
}

func (p *Cache) Delete(uid int64, group string) {
	p.c.Del(cache.Key(uid, group))
}

func (p *Cache) Reset() { p.c.Clear() }

func (p *Cache) Close() {
	p.c.Wait()
	p.c.Close()
}

// Metrics exposes ristretto metrics to the application (not part of the
// cache contract).
func (p *Cache) Metrics() *rc.Metrics { return p.c.Metrics }
