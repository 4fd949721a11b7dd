package redisstore

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KamdynS/claimreview/state"
)

func redisAddrFromEnv(t *testing.T) string {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis integration tests")
	}
	return addr
}

func newTestStore(t *testing.T) *Store {
	addr := redisAddrFromEnv(t)
	cfg := Config{
		Addr:   addr,
		Prefix: "claimreview-test-" + strconv.FormatInt(time.Now().UnixNano(), 10),
		TTL:    time.Minute,
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New redis store: %v", err)
	}
	t.Cleanup(func() {
		// cleanup keys with this prefix
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
		var cursor uint64
		for {
			keys, cur, err := rdb.Scan(ctx, cursor, cfg.Prefix+"*", 200).Result()
			if err != nil {
				break
			}
			cursor = cur
			if len(keys) > 0 {
				_ = rdb.Del(ctx, keys...).Err()
			}
			if cursor == 0 {
				break
			}
		}
		_ = s.Close()
	})
	return s
}

func TestSessionRoundTripAndStatusIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := &state.Session{
		SessionID:  state.NewID(),
		Status:     state.SessionOpen,
		RemoteAddr: "10.0.0.1:4000",
		StartTime:  time.Now().UTC(),
	}
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := s.GetSession(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.SessionID != sess.SessionID || got.Status != state.SessionOpen {
		t.Fatalf("session mismatch: got %+v", got)
	}
	open, err := s.ListSessions(ctx, state.SessionOpen)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open session, got %d", len(open))
	}

	sess.Close(nil)
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession 2: %v", err)
	}
	open, _ = s.ListSessions(ctx, state.SessionOpen)
	if len(open) != 0 {
		t.Fatalf("expected 0 open after close, got %d", len(open))
	}
	all, _ := s.ListSessions(ctx, "")
	if len(all) != 1 || all[0].Status != state.SessionClosed {
		t.Fatalf("expected 1 closed session, got %+v", all)
	}

	if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCyclesOrderedByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sid := state.NewID()
	ids := []string{state.NewID(), state.NewID(), state.NewID()}
	// save out of order
	for _, i := range []int{2, 0, 1} {
		c := &state.Cycle{CycleID: ids[i], SessionID: sid, Status: state.CycleRunning, StartTime: time.Now().UTC()}
		if err := s.SaveCycle(ctx, c); err != nil {
			t.Fatalf("SaveCycle: %v", err)
		}
	}
	done := &state.Cycle{CycleID: ids[0], SessionID: sid, Suggestions: 2}
	done.Finish(state.CycleCompleted, nil)
	_ = s.SaveCycle(ctx, done)

	cycles, err := s.ListCycles(ctx, sid)
	if err != nil {
		t.Fatalf("ListCycles: %v", err)
	}
	if len(cycles) != 3 {
		t.Fatalf("expected 3 cycles, got %d", len(cycles))
	}
	for i, c := range cycles {
		if c.CycleID != ids[i] {
			t.Fatalf("cycle %d: got %s want %s", i, c.CycleID, ids[i])
		}
	}
	if cycles[0].Status != state.CycleCompleted || cycles[0].Suggestions != 2 {
		t.Fatalf("cycle update lost: %+v", cycles[0])
	}
}

func TestAppendEventConcurrentSequencing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sid := "sess-evt"
	_ = s.SaveSession(ctx, &state.Session{SessionID: sid, Status: state.SessionOpen, StartTime: time.Now().UTC()})
	const N = 50
	var wg sync.WaitGroup
	wg.Add(N)
	for i := 0; i < N; i++ {
		go func(i int) {
			defer wg.Done()
			ev := state.NewEvent(sid, state.EventProcessingStarted, map[string]any{"i": i})
			_ = s.AppendEvent(ctx, ev)
		}(i)
	}
	wg.Wait()
	evs, err := s.GetEvents(ctx, sid)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(evs) != N {
		t.Fatalf("expected %d events, got %d", N, len(evs))
	}
	seen := make(map[int64]bool, N)
	for idx, e := range evs {
		if e.SequenceNum <= 0 {
			t.Fatalf("event has non-positive sequence: %+v", e)
		}
		if idx > 0 && evs[idx-1].SequenceNum >= e.SequenceNum {
			t.Fatalf("events not strictly increasing: %d >= %d", evs[idx-1].SequenceNum, e.SequenceNum)
		}
		seen[e.SequenceNum] = true
	}
	for i := 1; i <= N; i++ {
		if !seen[int64(i)] {
			t.Fatalf("missing sequence %d", i)
		}
	}
	sess, err := s.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.LastEventSeq != N {
		t.Fatalf("expected last_event_seq %d, got %d", N, sess.LastEventSeq)
	}
}

func TestGetEventsSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sid := "sess-since"
	for i := 0; i < 10; i++ {
		ev := state.NewEvent(sid, state.EventResult, map[string]any{"i": i})
		if err := s.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
		if ev.SequenceNum != int64(i+1) {
			t.Fatalf("AppendEvent assigned seq %d, want %d", ev.SequenceNum, i+1)
		}
	}
	evs, err := s.GetEventsSince(ctx, sid, 5)
	if err != nil {
		t.Fatalf("GetEventsSince: %v", err)
	}
	if len(evs) != 5 {
		t.Fatalf("expected 5 events > 5, got %d", len(evs))
	}
	for _, e := range evs {
		if e.SequenceNum <= 5 {
			t.Fatalf("expected seq > 5, got %d", e.SequenceNum)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sid := "sess-del"
	_ = s.SaveSession(ctx, &state.Session{SessionID: sid, Status: state.SessionOpen, StartTime: time.Now().UTC()})
	_ = s.SaveCycle(ctx, &state.Cycle{CycleID: state.NewID(), SessionID: sid})
	_ = s.AppendEvent(ctx, state.NewEvent(sid, state.EventConnectionReady, nil))

	if err := s.DeleteSession(ctx, sid); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.GetSession(ctx, sid); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if evs, _ := s.GetEvents(ctx, sid); len(evs) != 0 {
		t.Fatalf("expected no events after delete, got %d", len(evs))
	}
	if cs, _ := s.ListCycles(ctx, sid); len(cs) != 0 {
		t.Fatalf("expected no cycles after delete, got %d", len(cs))
	}
	if open, _ := s.ListSessions(ctx, state.SessionOpen); len(open) != 0 {
		t.Fatalf("expected status index cleared, got %d", len(open))
	}
}
