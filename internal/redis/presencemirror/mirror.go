// Package presencemirror periodically copies the registry into Redis so ops
// tooling can see who is online without talking to the hub.
package presencemirror

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"presencehub/internal/presence"
)

const (
	UsersKey  = "presence:users"  // hash connId -> displayName
	GroupsKey = "presence:groups" // hash groupId -> JSON group
	StatsKey  = "presence:stats"  // JSON {"users":n,"groups":m}

	pipeTimeout = 1500 * time.Millisecond
)

// Run mirrors the registry every interval until ctx is done. Keys expire after
// three missed snapshots, so a dead hub does not leave stale presence behind.
func Run(ctx context.Context, rdc *redis.Client, reg *presence.Registry, interval time.Duration) {
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				pctx, cancel := context.WithTimeout(ctx, pipeTimeout)
				if err := SyncOnce(pctx, rdc, reg, 3*interval); err != nil {
					zap.L().Error("presencemirror.sync", zap.Error(err))
				}
				cancel()
			}
		}
	}()
}

// SyncOnce replaces the mirrored keys in one MULTI/EXEC round-trip.
func SyncOnce(ctx context.Context, rdc *redis.Client, reg *presence.Registry, ttl time.Duration) error {
	users := reg.AllIdentities()
	groups := reg.AllGroups()

	// Counted from the same snapshot as the hashes.
	stats, err := json.Marshal(presence.Stats{Users: len(users), Groups: len(groups)})
	if err != nil {
		return err
	}
	userFields := make([]any, 0, 2*len(users))
	for _, u := range users {
		userFields = append(userFields, string(u.ID), u.DisplayName)
	}
	groupFields := make([]any, 0, 2*len(groups))
	for _, g := range groups {
		b, err := json.Marshal(g)
		if err != nil {
			return err
		}
		groupFields = append(groupFields, string(g.ID), string(b))
	}

	_, err = rdc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, UsersKey, GroupsKey)
		if len(userFields) > 0 {
			pipe.HSet(ctx, UsersKey, userFields...)
			pipe.Expire(ctx, UsersKey, ttl)
		}
		if len(groupFields) > 0 {
			pipe.HSet(ctx, GroupsKey, groupFields...)
			pipe.Expire(ctx, GroupsKey, ttl)
		}
		pipe.Set(ctx, StatsKey, string(stats), ttl)
		return nil
	})
	return err
}
