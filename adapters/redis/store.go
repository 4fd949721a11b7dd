package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/KamdynS/claimreview/state"
)

// Ensure Store implements state.Store
var _ state.Store = (*Store)(nil)

// ---------- Key helpers ----------

func (s *Store) sessStateKey(id string) string  { return fmt.Sprintf("%s:sess:%s:state", s.prefix, id) }
func (s *Store) sessEventsKey(id string) string { return fmt.Sprintf("%s:sess:%s:events", s.prefix, id) }
func (s *Store) sessSeqKey(id string) string    { return fmt.Sprintf("%s:sess:%s:seq", s.prefix, id) }
func (s *Store) sessCyclesKey(id string) string { return fmt.Sprintf("%s:sess:%s:cycles", s.prefix, id) }
func (s *Store) statusIdxKey(st state.SessionStatus) string {
	return fmt.Sprintf("%s:idx:status:%s", s.prefix, string(st))
}

// ---------- Sessions ----------

func (s *Store) SaveSession(ctx context.Context, sess *state.Session) error {
	// Fetch existing to detect prior status for index maintenance
	var oldStatus *state.SessionStatus
	oldJSON, err := s.rdb.Get(ctx, s.sessStateKey(sess.SessionID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis get session: %w", err)
	}
	if len(oldJSON) > 0 {
		var prev state.Session
		if uerr := json.Unmarshal(oldJSON, &prev); uerr == nil {
			os := prev.Status
			oldStatus = &os
		}
	}

	rec := *sess
	seq, err := s.rdb.Get(ctx, s.sessSeqKey(sess.SessionID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis get session seq: %w", err)
	}
	if seq > rec.LastEventSeq {
		rec.LastEventSeq = seq
	}
	b, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.sessStateKey(sess.SessionID), b, s.ttl)
	// maintain status sets
	if oldStatus != nil && *oldStatus != sess.Status {
		pipe.SRem(ctx, s.statusIdxKey(*oldStatus), sess.SessionID)
	}
	pipe.SAdd(ctx, s.statusIdxKey(sess.Status), sess.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline save session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*state.Session, error) {
	v, err := s.rdb.Get(ctx, s.sessStateKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session %s: %w", sessionID, state.ErrNotFound)
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var sess state.Session
	if err := json.Unmarshal(v, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *Store) ListSessions(ctx context.Context, st state.SessionStatus) ([]*state.Session, error) {
	statuses := []state.SessionStatus{st}
	if st == "" {
		statuses = []state.SessionStatus{state.SessionOpen, state.SessionClosed}
	}
	idSet := make(map[string]struct{})
	for _, status := range statuses {
		members, err := s.rdb.SMembers(ctx, s.statusIdxKey(status)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis smembers status %s: %w", status, err)
		}
		for _, id := range members {
			idSet[id] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return []*state.Session{}, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, 0, len(idSet))
	for id := range idSet {
		cmds = append(cmds, pipe.Get(ctx, s.sessStateKey(id)))
	}
	// Expired sessions come back as redis.Nil; individual cmds are checked below.
	_, _ = pipe.Exec(ctx)

	out := make([]*state.Session, 0, len(cmds))
	for _, cmd := range cmds {
		v, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var sess state.Session
		if uerr := json.Unmarshal(v, &sess); uerr != nil {
			continue
		}
		out = append(out, &sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	// Try to fetch current state to remove from its status set
	if sess, err := s.GetSession(ctx, sessionID); err == nil {
		_ = s.rdb.SRem(ctx, s.statusIdxKey(sess.Status), sessionID).Err()
	}
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, s.sessStateKey(sessionID))
	pipe.Del(ctx, s.sessEventsKey(sessionID))
	pipe.Del(ctx, s.sessSeqKey(sessionID))
	pipe.Del(ctx, s.sessCyclesKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline delete session: %w", err)
	}
	return nil
}

// ---------- Cycles ----------

func (s *Store) SaveCycle(ctx context.Context, c *state.Cycle) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cycle: %w", err)
	}
	key := s.sessCyclesKey(c.SessionID)
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, c.CycleID, b)
	if s.ttl > 0 {
		pipe.PExpire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset cycle: %w", err)
	}
	return nil
}

// ListCycles orders by cycle id; ids are ULIDs so this is submission order.
func (s *Store) ListCycles(ctx context.Context, sessionID string) ([]*state.Cycle, error) {
	vals, err := s.rdb.HGetAll(ctx, s.sessCyclesKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall cycles: %w", err)
	}
	out := make([]*state.Cycle, 0, len(vals))
	for _, v := range vals {
		var c state.Cycle
		if uerr := json.Unmarshal([]byte(v), &c); uerr != nil {
			continue
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CycleID < out[j].CycleID })
	return out, nil
}

// ---------- Events ----------

func (s *Store) AppendEvent(ctx context.Context, e *state.Event) error {
	// Event JSON may not have SequenceNum set; Lua will set it and update the session atomically
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	keys := []string{s.sessSeqKey(e.SessionID), s.sessEventsKey(e.SessionID), s.sessStateKey(e.SessionID)}
	args := []any{string(b), s.ttl.Milliseconds()}

	// Try EVALSHA first if we cached the SHA
	if s.appendSHA != "" {
		if seq, err := s.rdb.EvalSha(ctx, s.appendSHA, keys, args...).Int64(); err == nil {
			e.SequenceNum = seq
			return nil
		}
		// if NOSCRIPT or other error, fall through to EVAL
	}
	seq, err := s.rdb.Eval(ctx, luaAppendEvent, keys, args...).Int64()
	if err != nil {
		return fmt.Errorf("redis eval append event: %w", err)
	}
	e.SequenceNum = seq
	return nil
}

func (s *Store) GetEvents(ctx context.Context, sessionID string) ([]*state.Event, error) {
	return s.GetEventsSince(ctx, sessionID, 0)
}

func (s *Store) GetEventsSince(ctx context.Context, sessionID string, since int64) ([]*state.Event, error) {
	// ZRANGEBYSCORE (since, +inf] using exclusive min
	opt := &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(since, 10),
		Max: "+inf",
	}
	vals, err := s.rdb.ZRangeByScore(ctx, s.sessEventsKey(sessionID), opt).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore events: %w", err)
	}
	out := make([]*state.Event, 0, len(vals))
	for _, v := range vals {
		ev, uerr := state.FromJSON([]byte(v))
		if uerr != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
