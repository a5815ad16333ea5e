// Package bigcache adapts allegro/bigcache to the membership cache contract.
// BigCache has no per-entry TTL; the configured life window is the uniform
// TTL for every entry.
package bigcache

import (
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/forumkit/membership/cache"
)

type Cache struct {
	c *bc.BigCache
}

var _ cache.Cache = (*Cache)(nil)

type Config struct {
	LifeWindow         time.Duration // 0 => 1h
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Cache, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = time.Hour
	}
	conf := bc.DefaultConfig(life)
	conf.MaxEntrySize = 1
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (p *Cache) Get(uid int64, group string) (bool, bool) {
	b, err := p.c.Get(cache.Key(uid, group))
	if err != nil || len(b) != 1 {
		return false, false
	}
	return b[0] == 1, true
}

func (p *Cache) Set(uid int64, group string, isMember bool) {
	v := []byte{0}
	if isMember {
		v[0] = 1
	}
	_ = p.c.Set(cache.Key(uid, group), v)
}

func (p *Cache) Delete(uid int64, group string) {
	_ = p.c.Delete(cache.Key(uid, group))
}

func (p *Cache) Reset() { _ = p.c.Reset() }

func (p *Cache) Close() { _ = p.c.Close() }
