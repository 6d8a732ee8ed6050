package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"autoparc/internal/client/model"
)

const streamBuffer = 64

// Stream is one realtime subscription. Events is closed when the
// connection ends.
type Stream struct {
	conn   *websocket.Conn
	events chan model.Change
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Subscribe opens a realtime stream for filters in the
// "table[:column=value[:TYPES]]" form.
func (c *Client) Subscribe(ctx context.Context, logger *slog.Logger, filters ...string) (*Stream, error) {
	token := c.Token()
	if token == "" {
		return nil, ErrNoSession
	}
	if len(filters) == 0 {
		return nil, fmt.Errorf("platform: at least one filter is required")
	}
	q := url.Values{}
	for _, f := range filters {
		q.Add("filter", f)
	}
	q.Set("access_token", token)
	u, err := url.Parse(c.endpoint("/realtime", q))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: "realtime handshake refused"}
		}
		return nil, fmt.Errorf("platform: dial realtime: %w", err)
	}
	s := &Stream{
		conn:   conn,
		events: make(chan model.Change, streamBuffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.read()
	return s, nil
}

func (s *Stream) Events() <-chan model.Change { return s.events }

// Close ends the subscription. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

func (s *Stream) read() {
	defer close(s.events)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if s.logger != nil {
					s.logger.Warn("realtime stream ended", "error", err)
				}
			}
			return
		}
		var ch model.Change
		if err := json.Unmarshal(raw, &ch); err != nil {
			if s.logger != nil {
				s.logger.Debug("realtime payload skipped", "error", err)
			}
			continue
		}
		select {
		case s.events <- ch:
		case <-s.done:
			return
		}
	}
}
