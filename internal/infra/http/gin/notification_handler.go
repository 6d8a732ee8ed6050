package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	notificationapp "autoparc/internal/app/handlers/notifications"
	"autoparc/internal/app/queries"
)

type NotificationHTTP interface {
	List(c *gin.Context)
	UnreadCount(c *gin.Context)
	MarkRead(c *gin.Context)
	MarkAllRead(c *gin.Context)
}

type NotificationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h NotificationHandler) List(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	query := notificationapp.ListNotificationsQuery{
		UserID:     p.ID,
		Limit:      parseIntWithDefault(c.Query("limit"), 0),
		UnreadOnly: c.Query("unread") == "true",
	}
	result, err := queries.Ask[notificationapp.ListNotificationsQuery, dto.NotificationList](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h NotificationHandler) UnreadCount(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	count, err := queries.Ask[notificationapp.UnreadCountQuery, int](c.Request.Context(), h.Queries,
		notificationapp.UnreadCountQuery{UserID: p.ID})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h NotificationHandler) MarkRead(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	result, err := commands.Dispatch[notificationapp.MarkReadCommand, *dto.NotificationReadState](c.Request.Context(), h.Commands,
		notificationapp.MarkReadCommand{UserID: p.ID, NotificationID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h NotificationHandler) MarkAllRead(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	result, err := commands.Dispatch[notificationapp.MarkAllReadCommand, *dto.NotificationReadState](c.Request.Context(), h.Commands,
		notificationapp.MarkAllReadCommand{UserID: p.ID})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ NotificationHTTP = (*NotificationHandler)(nil)
