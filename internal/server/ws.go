package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/verte-zerg/speedtype/internal/metrics"
	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/session"
)

const (
	writeWait      = 10 * time.Second
	maxFrameSize   = 64 * 1024
	endpointBoard  = "leaderboard"
	endpointTyping = "session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientFrame is a message sent by a session client.
type clientFrame struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	DurationSec int    `json:"durationSec,omitempty"`
	Source      string `json:"source,omitempty"`
	Passage     string `json:"passage,omitempty"`
	Text        string `json:"text,omitempty"`
}

type stateFrame struct {
	Type                 string `json:"type"`
	Phase                string `json:"phase"`
	Attempt              int    `json:"attempt"`
	TimeLimitSeconds     int    `json:"timeLimit"`
	TimeRemainingSeconds int    `json:"timeRemaining"`
	TypedLength          int    `json:"typedLength"`
	PassageLength        int    `json:"passageLength"`
	TotalKeystrokes      int    `json:"totalKeystrokes"`
	CorrectChars         int    `json:"correctChars"`
	Errors               int    `json:"errors"`
	WPM                  int    `json:"wpm"`
	Accuracy             int    `json:"accuracy"`
}

type passageFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type resultFrame struct {
	Type    string       `json:"type"`
	Attempt int          `json:"attempt"`
	Result  model.Result `json:"result"`
	Saved   bool         `json:"saved"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type leaderboardFrame struct {
	Type    string         `json:"type"`
	Results []model.Result `json:"results"`
}

func newStateFrame(s session.Snapshot) stateFrame {
	return stateFrame{
		Type:                 "state",
		Phase:                s.Phase.String(),
		Attempt:              s.Attempt,
		TimeLimitSeconds:     s.TimeLimitSeconds,
		TimeRemainingSeconds: s.TimeRemainingSeconds,
		TypedLength:          s.TypedLength,
		PassageLength:        s.PassageLength,
		TotalKeystrokes:      s.TotalKeystrokes,
		CorrectChars:         s.CorrectChars,
		Errors:               s.Errors,
		WPM:                  s.WPM,
		Accuracy:             s.Accuracy,
	}
}

// frameWriter serializes writes to one connection.
type frameWriter struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *slog.Logger
}

func (w *frameWriter) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.logger.Error("failed to encode frame", "error", err)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		w.logger.Debug("failed to write frame", "error", err)
	}
}

// sessionHandler runs one typing session per connection. Returns 503 when
// the concurrent session cap is reached.
func (s *Server) sessionHandler(c *gin.Context) {
	select {
	case s.sessionSem <- struct{}{}:
		defer func() { <-s.sessionSem }()
	default:
		metrics.SessionsRejected.WithLabelValues("capacity").Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "at capacity"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	gauge := metrics.ActiveConnections.WithLabelValues(endpointTyping)
	gauge.Inc()
	defer gauge.Dec()

	id := uuid.NewString()
	logger := s.logger.With("session_id", id)
	logger.Info("session connected", "remote", c.ClientIP())
	s.runSession(conn, logger)
	logger.Info("session closed")
}

func (s *Server) runSession(conn *websocket.Conn, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &frameWriter{conn: conn, logger: logger}
	engine := session.NewEngine(
		session.WithClock(s.clock),
		session.WithSink(s.board),
		session.WithLogger(logger),
		session.WithSubmitted(func(sub session.Submission) {
			out.send(resultFrame{Type: "result", Attempt: sub.Attempt, Result: sub.Result, Saved: sub.Err == nil})
		}),
	)
	defer engine.Wait()
	runner := session.NewRunner(engine, s.clock, func(snap session.Snapshot) {
		out.send(newStateFrame(snap))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("session runner stopped", "error", err)
		}
	}()
	defer func() {
		cancel()
		<-done
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("connection closed", "error", err)
			}
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			out.send(errorFrame{Type: "error", Message: "invalid frame"})
			continue
		}
		if err := s.handleFrame(ctx, runner, frame, out); err != nil {
			out.send(errorFrame{Type: "error", Message: err.Error()})
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, runner *session.Runner, frame clientFrame, out *frameWriter) error {
	switch frame.Type {
	case "start":
		p, _, err := s.resolvePassage(frame.Source, frame.Passage, frame.Text)
		if err != nil {
			return err
		}
		duration := frame.DurationSec
		if duration == 0 {
			duration = session.DefaultTimeLimit
		}
		if runner.Engine().Snapshot().Phase == session.PhaseIdle {
			out.send(passageFrame{Type: "passage", Text: p.String()})
		}
		return runner.Start(ctx, frame.Name, p, duration)
	case "input":
		return runner.Input(ctx, frame.Text)
	case "reset":
		return runner.Reset(ctx)
	default:
		return errors.New("unknown frame type")
	}
}

// leaderboardStreamHandler pushes the top list on connect and after every
// accepted result.
func (s *Server) leaderboardStreamHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	gauge := metrics.ActiveConnections.WithLabelValues(endpointBoard)
	gauge.Inc()
	defer gauge.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := s.board.Subscribe(ctx)
	if err != nil {
		s.logger.Error("failed to subscribe to leaderboard", "error", err)
		return
	}

	// The client never sends data; reading detects the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	out := &frameWriter{conn: conn, logger: s.logger}
	for top := range updates {
		out.send(leaderboardFrame{Type: "leaderboard", Results: nonNil(top)})
	}
}
