package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verte-zerg/speedtype/internal/model"
)

// TopSource answers top-N queries.
type TopSource interface {
	TopResults(ctx context.Context, n int) ([]model.Result, error)
}

// Watch polls src every interval and sends the top n list whenever it
// changes. It suits readers in a different process than the writer. The
// channel is closed when ctx is done.
func Watch(ctx context.Context, src TopSource, n int, interval time.Duration, logger *slog.Logger) <-chan []model.Result {
	if logger == nil {
		logger = slog.Default()
	}
	out := make(chan []model.Result, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var last []model.Result
		first := true
		for {
			top, err := src.TopResults(ctx, n)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("failed to poll leaderboard", "error", err)
			} else if first || !sameBoard(last, top) {
				first = false
				last = top
				select {
				case out <- top:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func sameBoard(a, b []model.Result) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].WPM != b[i].WPM || a[i].Accuracy != b[i].Accuracy {
			return false
		}
	}
	return true
}

type streamFrame struct {
	Type    string         `json:"type"`
	Results []model.Result `json:"results"`
}

// Stream connects to a leaderboard WebSocket endpoint and forwards every
// list it receives. The channel is closed when the connection ends or ctx
// is done.
func Stream(ctx context.Context, url string) (<-chan []model.Result, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	out := make(chan []model.Result, 1)
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame streamFrame
			if err := json.Unmarshal(data, &frame); err != nil || frame.Type != "leaderboard" {
				continue
			}
			select {
			case out <- frame.Results:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
