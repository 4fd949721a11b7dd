package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/KamdynS/claimreview/review"
	"github.com/KamdynS/claimreview/state"
	"github.com/KamdynS/claimreview/textnorm"
)

// Frame is a status or error message on the review channel.
type Frame struct {
	Type      state.EventType `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ResultFrame carries the outcome of one review cycle.
type ResultFrame struct {
	Type state.EventType `json:"type"`
	*review.Result
	Timestamp time.Time `json:"timestamp"`
}

// reviewSession is one websocket connection. Documents are processed one at
// a time in arrival order.
type reviewSession struct {
	srv     *Server
	conn    *websocket.Conn
	record  *state.Session
	limiter *rate.Limiter
	logger  *slog.Logger
}

// handleReviewSocket handles GET /ws/review
func (s *Server) handleReviewSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns()})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.cfg.MaxMessageBytes)

	rec := &state.Session{
		SessionID:  state.NewID(),
		Status:     state.SessionOpen,
		RemoteAddr: r.RemoteAddr,
		StartTime:  time.Now().UTC(),
	}
	sess := &reviewSession{
		srv:    s,
		conn:   conn,
		record: rec,
		logger: s.logger.With("session_id", rec.SessionID),
	}
	if n := s.cfg.ReviewsPerMinute; n > 0 {
		sess.limiter = rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
	}

	ctx := r.Context()
	sess.save(ctx)
	sess.logger.Info("review session opened", "remote", r.RemoteAddr)

	err = sess.run(ctx)
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		err = nil
	}
	if err != nil {
		sess.logger.Warn("review session ended", "error", err)
	} else {
		sess.logger.Info("review session closed", "cycles", rec.Cycles)
	}
	rec.Close(err)
	sess.save(context.WithoutCancel(ctx))
	if err == nil {
		conn.Close(websocket.StatusNormalClosure, "")
	}
}

// run returns the transport error that ended the session.
func (rs *reviewSession) run(ctx context.Context) error {
	ready := Frame{Type: state.EventConnectionReady, SessionID: rs.record.SessionID, Message: "review service ready"}
	if err := rs.send(ctx, "", ready); err != nil {
		return err
	}
	for {
		document, oversized, err := rs.readDocument(ctx)
		if err != nil {
			return err
		}
		if err := rs.cycle(ctx, document, oversized); err != nil {
			return err
		}
	}
}

// readDocument reads the next message. A message longer than
// MaxRequestBodyBytes is drained and reported as oversized.
func (rs *reviewSession) readDocument(ctx context.Context) (string, bool, error) {
	_, r, err := rs.conn.Reader(ctx)
	if err != nil {
		return "", false, err
	}
	limit := rs.srv.cfg.MaxRequestBodyBytes
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", false, err
	}
	if int64(len(data)) <= limit {
		return string(data), false, nil
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", false, err
	}
	return "", true, nil
}

// cycle reviews one document and sends exactly one terminal frame. A non-nil
// error means the channel is no longer usable.
func (rs *reviewSession) cycle(ctx context.Context, document string, oversized bool) error {
	c := &state.Cycle{
		CycleID:       state.NewID(),
		SessionID:     rs.record.SessionID,
		Status:        state.CycleRunning,
		DocumentChars: utf8.RuneCountInString(document),
		StartTime:     time.Now().UTC(),
	}
	logger := rs.logger.With("cycle_id", c.CycleID)
	rs.record.Cycles++
	defer func() {
		rs.saveCycle(context.WithoutCancel(ctx), c)
		rs.save(context.WithoutCancel(ctx))
	}()

	if rs.limiter != nil {
		if err := rs.limiter.Wait(ctx); err != nil {
			c.Finish(state.CycleFailed, err)
			return err
		}
	}
	if err := rs.send(ctx, c.CycleID, Frame{Type: state.EventProcessingStarted, Message: "analyzing document"}); err != nil {
		c.Finish(state.CycleFailed, err)
		return err
	}

	if oversized {
		err := fmt.Errorf("%w: message exceeds %d bytes", textnorm.ErrTooLong, rs.srv.cfg.MaxRequestBodyBytes)
		logger.Info("document rejected", "error", err)
		c.Finish(state.CycleRejected, err)
		return rs.send(ctx, c.CycleID, Frame{Type: state.EventValidationError, Message: err.Error()})
	}

	text, err := textnorm.Normalize(document, rs.srv.cfg.Bounds)
	if err != nil {
		logger.Info("document rejected", "error", err)
		c.Finish(state.CycleRejected, err)
		return rs.send(ctx, c.CycleID, Frame{Type: state.EventValidationError, Message: err.Error()})
	}
	c.DocumentChars = utf8.RuneCountInString(text)

	res, err := rs.srv.reviewer.Review(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			c.Finish(state.CycleFailed, ctx.Err())
			return ctx.Err()
		}
		c.Finish(state.CycleFailed, err)
		if errors.Is(err, review.ErrResponseParse) {
			logger.Warn("model response unparseable", "error", err)
			return rs.send(ctx, c.CycleID, Frame{Type: state.EventParseError, Message: "model response could not be parsed"})
		}
		logger.Error("review failed", "error", err)
		return rs.send(ctx, c.CycleID, Frame{Type: state.EventAnalysisError, Message: "analysis failed: " + err.Error()})
	}

	payload, err := json.Marshal(ResultFrame{Type: state.EventResult, Result: res, Timestamp: time.Now().UTC()})
	if err != nil {
		logger.Error("encode result", "error", err)
		c.Finish(state.CycleFailed, err)
		return rs.send(ctx, c.CycleID, Frame{Type: state.EventParseError, Message: "result could not be encoded"})
	}
	if err := rs.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		c.Finish(state.CycleFailed, err)
		return err
	}
	c.Suggestions = len(res.Issues)
	c.Insertions = len(res.DiagramInsertions)
	c.Finish(state.CycleCompleted, nil)
	rs.appendEvent(ctx, c.CycleID, state.EventResult, map[string]any{
		"issues":             c.Suggestions,
		"diagram_insertions": c.Insertions,
	})
	return nil
}

// send writes a frame and records it on the session.
func (rs *reviewSession) send(ctx context.Context, cycleID string, f Frame) error {
	f.Timestamp = time.Now().UTC()
	if err := wsjson.Write(ctx, rs.conn, f); err != nil {
		return err
	}
	var data map[string]any
	if f.Message != "" {
		data = map[string]any{"message": f.Message}
	}
	rs.appendEvent(ctx, cycleID, f.Type, data)
	return nil
}

// appendEvent records a sent frame. Store failures never end the session.
func (rs *reviewSession) appendEvent(ctx context.Context, cycleID string, t state.EventType, data map[string]any) {
	ev := state.NewEvent(rs.record.SessionID, t, data)
	ev.CycleID = cycleID
	if err := rs.srv.store.AppendEvent(context.WithoutCancel(ctx), ev); err != nil {
		rs.logger.Warn("record frame", "type", t, "error", err)
	}
}

func (rs *reviewSession) save(ctx context.Context) {
	if err := rs.srv.store.SaveSession(ctx, rs.record); err != nil {
		rs.logger.Warn("save session", "error", err)
	}
}

func (rs *reviewSession) saveCycle(ctx context.Context, c *state.Cycle) {
	if err := rs.srv.store.SaveCycle(ctx, c); err != nil {
		rs.logger.Warn("save cycle", "cycle_id", c.CycleID, "error", err)
	}
}
