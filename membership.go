package membership

import (
	"context"
	"fmt"
	"strconv"

	"github.com/benbjohnson/clock"

	"github.com/forumkit/membership/bus"
	"github.com/forumkit/membership/bus/local"
	"github.com/forumkit/membership/cache"
	"github.com/forumkit/membership/cache/lru"
	"github.com/forumkit/membership/store"
)

type service struct {
	store  store.Store
	cache  cache.Cache
	bus    bus.Bus
	events EventSink
	log    Logger
	clock  clock.Clock

	ephemeral []string
}

var _ Service = (*service)(nil)

func newService(opts Options) (*service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("membership: store is required")
	}

	s := &service{
		store: opts.Store,
		cache: opts.Cache,
		bus:   opts.Bus,
	}
	if s.cache == nil {
		s.cache = lru.New(lru.Config{})
	}
	if s.bus == nil {
		s.bus = local.New()
	}

	s.events = coalesce[EventSink](opts.Events, NopSink{})
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	if opts.Clock != nil {
		s.clock = opts.Clock
	} else {
		s.clock = clock.New()
	}
	if opts.EphemeralGroups != nil {
		s.ephemeral = opts.EphemeralGroups
	} else {
		s.ephemeral = defaultEphemeralGroups
	}

	// Every process applies invalidations it receives, its own included.
	s.bus.Subscribe(bus.TopicClear, func(m bus.Message) {
		s.cache.Delete(m.UID, m.Group)
	})
	s.bus.Subscribe(bus.TopicReset, func(bus.Message) {
		s.cache.Reset()
	})

	return s, nil
}

// clearCache drops one entry locally and broadcasts the drop to peers. Called
// only after every store sub-operation of the surrounding mutation has
// completed, so no peer can re-cache a verdict the store never held.
func (s *service) clearCache(ctx context.Context, uid int64, group string) {
	if err := s.bus.Publish(ctx, bus.TopicClear, bus.Message{UID: uid, Group: group}); err != nil {
		// peers converge via TTL
		s.log.Warn("invalidation broadcast failed", Fields{"uid": uid, "group": group, "err": err})
	}
	s.cache.Delete(uid, group)
}

func (s *service) ResetCache(ctx context.Context) error {
	err := s.bus.Publish(ctx, bus.TopicReset, bus.Message{})
	if err != nil {
		s.log.Warn("reset broadcast failed", Fields{"err": err})
	}
	s.cache.Reset()
	return err
}

func (s *service) Close(ctx context.Context) error {
	// Bus first so no invalidations arrive for a closed cache.
	err := s.bus.Close(ctx)
	s.cache.Close()
	if cerr := s.store.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

func uidStr(uid int64) string { return strconv.FormatInt(uid, 10) }

// uidsFromMembers converts stored member strings back to uids. Foreign or
// malformed members are dropped rather than surfaced.
func uidsFromMembers(members []string) []int64 {
	out := make([]int64, 0, len(members))
	for _, m := range members {
		uid, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, uid)
	}
	return out
}
