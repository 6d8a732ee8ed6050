package ginserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"autoparc/internal/app/dto"
	chatapp "autoparc/internal/app/handlers/chat"
	"autoparc/internal/app/queries"
	"autoparc/internal/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

var errFilterForbidden = errors.New("realtime: filter not allowed for this user")

type RealtimeHTTP interface {
	Stream(c *gin.Context)
}

// RealtimeHandler streams hub events over a websocket. Each "filter" query
// parameter becomes one filter; rows are restricted to what the caller may
// see.
type RealtimeHandler struct {
	Hub      *realtime.Hub
	Queries  queries.Bus
	Logger   *slog.Logger
	Upgrader websocket.Upgrader
}

func (h RealtimeHandler) Stream(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Hub == nil {
		respondUnavailable(c, "realtime")
		return
	}
	rawFilters := c.QueryArray("filter")
	if len(rawFilters) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one filter is required"})
		return
	}
	filters := make([]realtime.Filter, 0, len(rawFilters))
	for _, raw := range rawFilters {
		f, err := realtime.ParseFilter(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f, err = scopeFilter(f, p.ID)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		filters = append(filters, f)
	}

	guard, err := h.newChatGuard(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	// subscribed before the upgrade so no event published after the
	// handshake is missed; the guard learns about new chats through the
	// extra filter
	sub := h.Hub.Subscribe(append(filters, realtime.Filter{Table: realtime.TableChats, Column: "participants", Value: p.ID})...)
	upgrader := h.Upgrader
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		if h.Logger != nil {
			h.Logger.Warn("websocket upgrade failed", "error", err)
		}
		return
	}

	client := &streamClient{
		conn:    conn,
		sub:     sub,
		filters: filters,
		guard:   guard,
		logger:  h.Logger,
		userID:  p.ID,
	}
	if h.Logger != nil {
		h.Logger.Info("realtime stream opened", "user_id", p.ID, "filters", len(filters))
	}
	go client.writePump()
	client.readPump()
}

// scopeFilter pins user-owned tables to the caller. Chat-scoped tables are
// checked per event by chatGuard.
func scopeFilter(f realtime.Filter, userID string) (realtime.Filter, error) {
	pin := func(column string) (realtime.Filter, error) {
		if f.Column == "" {
			f.Column, f.Value = column, userID
			return f, nil
		}
		if f.Column != column || f.Value != userID {
			return realtime.Filter{}, fmt.Errorf("%w: %s", errFilterForbidden, f)
		}
		return f, nil
	}
	switch f.Table {
	case realtime.TableListings:
		return f, nil
	case realtime.TableFavorites, realtime.TableNotifications, realtime.TableChatReads:
		return pin("user_id")
	case realtime.TableChats:
		return pin("participants")
	case realtime.TableMessages, realtime.TableTyping:
		if f.Column != "" && f.Column != "chat_id" {
			return realtime.Filter{}, fmt.Errorf("%w: %s", errFilterForbidden, f)
		}
		return f, nil
	default:
		return realtime.Filter{}, fmt.Errorf("%w: %s", errFilterForbidden, f)
	}
}

// chatGuard tracks the chats a user takes part in.
type chatGuard struct {
	mu    sync.RWMutex
	chats map[string]struct{}
}

func (h RealtimeHandler) newChatGuard(ctx context.Context, userID string) (*chatGuard, error) {
	g := &chatGuard{chats: make(map[string]struct{})}
	if h.Queries == nil {
		return g, nil
	}
	list, err := queries.Ask[chatapp.ListChatsQuery, dto.ChatList](ctx, h.Queries, chatapp.ListChatsQuery{UserID: userID})
	if err != nil {
		return nil, err
	}
	for _, chat := range list.Items {
		g.chats[chat.ID] = struct{}{}
	}
	return g, nil
}

func (g *chatGuard) observe(ev realtime.Event) {
	if ev.Table != realtime.TableChats {
		return
	}
	if id, ok := ev.Record["id"].(string); ok && id != "" {
		g.mu.Lock()
		g.chats[id] = struct{}{}
		g.mu.Unlock()
	}
}

func (g *chatGuard) allows(ev realtime.Event) bool {
	if ev.Table != realtime.TableMessages && ev.Table != realtime.TableTyping {
		return true
	}
	id, _ := ev.Record["chat_id"].(string)
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.chats[id]
	return ok
}

type streamClient struct {
	conn    *websocket.Conn
	sub     *realtime.Subscription
	filters []realtime.Filter
	guard   *chatGuard
	logger  *slog.Logger
	userID  string
}

func (s *streamClient) wanted(ev realtime.Event) bool {
	for _, f := range s.filters {
		if f.Matches(ev) {
			return true
		}
	}
	return false
}

func (s *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-s.sub.Events():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				if s.sub.Dropped() && s.logger != nil {
					s.logger.Warn("realtime stream dropped", "user_id", s.userID)
				}
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscription closed"))
				return
			}
			s.guard.observe(ev)
			if !s.wanted(ev) || !s.guard.allows(ev) {
				continue
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only keeps the connection alive; clients do not send data.
func (s *streamClient) readPump() {
	defer func() {
		s.sub.Close()
		s.conn.Close()
		if s.logger != nil {
			s.logger.Info("realtime stream closed", "user_id", s.userID)
		}
	}()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && s.logger != nil {
				s.logger.Debug("realtime read failed", "user_id", s.userID, "error", err)
			}
			return
		}
	}
}

var _ RealtimeHTTP = (*RealtimeHandler)(nil)
