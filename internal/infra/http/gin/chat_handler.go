package ginserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	chatapp "autoparc/internal/app/handlers/chat"
	"autoparc/internal/app/queries"
)

// ChatHTTP exposes chat endpoints.
type ChatHTTP interface {
	Start(c *gin.Context)
	List(c *gin.Context)
	Unread(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	Typing(c *gin.Context)
}

type ChatHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

// Start gets or creates the conversation with the seller of a listing.
func (h ChatHandler) Start(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	cmd := chatapp.StartConversationCommand{ListingID: strings.TrimSpace(c.Param("id")), BuyerID: p.ID}
	result, err := commands.Dispatch[chatapp.StartConversationCommand, *dto.Chat](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChatHandler) List(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	result, err := queries.Ask[chatapp.ListChatsQuery, dto.ChatList](c.Request.Context(), h.Queries, chatapp.ListChatsQuery{UserID: p.ID})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChatHandler) Unread(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	result, err := queries.Ask[chatapp.UnreadSummaryQuery, dto.UnreadSummary](c.Request.Context(), h.Queries, chatapp.UnreadSummaryQuery{UserID: p.ID})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListMessages pages backwards with the "before" cursor returned as
// next_cursor.
func (h ChatHandler) ListMessages(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	var before time.Time
	if raw := strings.TrimSpace(c.Query("before")); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be an RFC3339 timestamp"})
			return
		}
		before = parsed
	}
	query := chatapp.ListMessagesQuery{
		ChatID: c.Param("id"),
		UserID: p.ID,
		Limit:  parseIntWithDefault(c.Query("limit"), 0),
		Before: before,
	}
	result, err := queries.Ask[chatapp.ListMessagesQuery, dto.ChatMessageList](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChatHandler) SendMessage(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	var req struct {
		Text     string `json:"text"`
		ClientID string `json:"client_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := chatapp.SendMessageCommand{
		ChatID:   c.Param("id"),
		SenderID: p.ID,
		Text:     req.Text,
		ClientID: strings.TrimSpace(req.ClientID),
	}
	result, err := commands.Dispatch[chatapp.SendMessageCommand, *dto.ChatMessage](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// MarkRead returns the unread count the server holds after marking.
func (h ChatHandler) MarkRead(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	cmd := chatapp.MarkReadCommand{ChatID: c.Param("id"), UserID: p.ID}
	result, err := commands.Dispatch[chatapp.MarkReadCommand, *dto.ReadState](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChatHandler) Typing(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	cmd := chatapp.TypingCommand{ChatID: c.Param("id"), UserID: p.ID}
	if _, err := commands.Dispatch[chatapp.TypingCommand, *dto.Chat](c.Request.Context(), h.Commands, cmd); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusAccepted)
}

var _ ChatHTTP = (*ChatHandler)(nil)
