package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	favoritesapp "autoparc/internal/app/handlers/favorites"
	"autoparc/internal/app/queries"
)

type FavoritesHTTP interface {
	List(c *gin.Context)
	Status(c *gin.Context)
	Add(c *gin.Context)
	Remove(c *gin.Context)
}

type FavoritesHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h FavoritesHandler) List(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	result, err := queries.Ask[favoritesapp.ListFavoritesQuery, dto.FavoriteList](c.Request.Context(), h.Queries,
		favoritesapp.ListFavoritesQuery{UserID: p.ID})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h FavoritesHandler) Status(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	result, err := queries.Ask[favoritesapp.FavoriteStatusQuery, *dto.FavoriteStatus](c.Request.Context(), h.Queries,
		favoritesapp.FavoriteStatusQuery{UserID: p.ID, ListingID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Add is idempotent: a second call for the same listing returns 200 with
// the unchanged status.
func (h FavoritesHandler) Add(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	result, err := commands.Dispatch[favoritesapp.AddFavoriteCommand, *dto.FavoriteStatus](c.Request.Context(), h.Commands,
		favoritesapp.AddFavoriteCommand{UserID: p.ID, ListingID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h FavoritesHandler) Remove(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	result, err := commands.Dispatch[favoritesapp.RemoveFavoriteCommand, *dto.FavoriteStatus](c.Request.Context(), h.Commands,
		favoritesapp.RemoveFavoriteCommand{UserID: p.ID, ListingID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ FavoritesHTTP = (*FavoritesHandler)(nil)
