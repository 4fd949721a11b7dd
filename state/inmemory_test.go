package state

import (
	"context"
	"sort"
	"testing"
	"time"
)

func TestInMemoryStore_EventsWindow_Table(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	sess := "sess-window"

	for _, et := range []EventType{EventConnectionReady, EventProcessingStarted, EventResult, EventProcessingStarted, EventParseError} {
		if err := store.AppendEvent(ctx, NewEvent(sess, et, nil)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	cases := []struct {
		name     string
		since    int64
		limit    int
		wantLen  int
		wantNext int64
	}{
		{name: "first_page", since: 0, limit: 2, wantLen: 2, wantNext: 2},
		{name: "middle_page", since: 2, limit: 2, wantLen: 2, wantNext: 4},
		{name: "tail", since: 4, limit: 2, wantLen: 1, wantNext: 5},
		{name: "exhausted", since: 5, limit: 2, wantLen: 0, wantNext: 5},
		{name: "zero_limit", since: 0, limit: 0, wantLen: 0, wantNext: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			window, next, err := store.GetEventsWindow(ctx, sess, tc.since, tc.limit)
			if err != nil {
				t.Fatalf("window: %v", err)
			}
			if len(window) != tc.wantLen {
				t.Fatalf("expect len=%d got %d", tc.wantLen, len(window))
			}
			if next != tc.wantNext {
				t.Fatalf("expect next=%d got %d", tc.wantNext, next)
			}
		})
	}
}

func TestEventSequence_MonotonicAndAtomic(t *testing.T) {
	store := NewInMemoryStore()
	sess := "sess-seq"

	_ = store.SaveSession(context.Background(), &Session{SessionID: sess, Status: SessionOpen, StartTime: time.Now().UTC()})

	n := 50
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_ = store.AppendEvent(context.Background(), NewEvent(sess, EventProcessingStarted, map[string]any{"i": i}))
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}

	evs, err := store.GetEvents(context.Background(), sess)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}

	if len(evs) != n {
		t.Fatalf("expected %d events, got %d", n, len(evs))
	}

	seqs := make([]int64, len(evs))
	for i, e := range evs {
		seqs[i] = e.SequenceNum
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, s := range seqs {
		expected := int64(i + 1)
		if s != expected {
			t.Fatalf("expected seq %d, got %d", expected, s)
		}
	}

	session, _ := store.GetSession(context.Background(), sess)
	if session.LastEventSeq != int64(n) {
		t.Fatalf("expected last_event_seq %d, got %d", n, session.LastEventSeq)
	}
}
