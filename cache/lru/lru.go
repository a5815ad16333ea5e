// Package lru is the default membership cache: a bounded LRU with a uniform
// per-entry TTL, backed by hashicorp/golang-lru's expirable variant.
package lru

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/forumkit/membership/cache"
)

type Cache struct {
	c *expirable.LRU[string, bool]
}

var _ cache.Cache = (*Cache)(nil)

type Config struct {
	Size int           // max entries; 0 => 40000
	TTL  time.Duration // 0 => 1h
}

func New(cfg Config) *Cache {
	size := cfg.Size
	if size <= 0 {
		size = 40000
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{c: expirable.NewLRU[string, bool](size, nil, ttl)}
}

func (p *Cache) Get(uid int64, group string) (bool, bool) {
	return p.c.Get(cache.Key(uid, group))
}

func (p *Cache) Set(uid int64, group string, isMember bool) {
	p.c.Add(cache.Key(uid, group), isMember)
}

func (p *Cache) Delete(uid int64, group string) {
	p.c.Remove(cache.Key(uid, group))
}

func (p *Cache) Reset() { p.c.Purge() }

func (p *Cache) Close() {}
