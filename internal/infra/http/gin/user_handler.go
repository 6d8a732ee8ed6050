package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	userapp "autoparc/internal/app/handlers/users"
	"autoparc/internal/app/queries"
	domainuser "autoparc/internal/domain/user"
)

type UserHTTP interface {
	Profile(c *gin.Context)
	UpdateProfile(c *gin.Context)
	Mechanics(c *gin.Context)
}

type UserHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type profileRequest struct {
	Name            *string  `json:"name"`
	AvatarURL       *string  `json:"avatar_url"`
	Phone           *string  `json:"phone"`
	Location        *string  `json:"location"`
	ShopName        *string  `json:"shop_name"`
	Specialties     []string `json:"specialties"`
	HourlyRateCents *int64   `json:"hourly_rate_cents"`
}

// Profile is public; contact details are only returned to the owner.
func (h UserHandler) Profile(c *gin.Context) {
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	viewer := ""
	if p, ok := currentPrincipal(c); ok {
		viewer = p.ID
	}
	result, err := queries.Ask[userapp.GetProfileQuery, *dto.UserProfile](c.Request.Context(), h.Queries,
		userapp.GetProfileQuery{UserID: c.Param("id"), ViewerID: viewer})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h UserHandler) UpdateProfile(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := userapp.UpdateProfileCommand{
		UserID: p.ID,
		Profile: domainuser.Profile{
			Name:            req.Name,
			AvatarURL:       req.AvatarURL,
			Phone:           req.Phone,
			Location:        req.Location,
			ShopName:        req.ShopName,
			Specialties:     req.Specialties,
			HourlyRateCents: req.HourlyRateCents,
		},
	}
	result, err := commands.Dispatch[userapp.UpdateProfileCommand, *dto.UserProfile](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h UserHandler) Mechanics(c *gin.Context) {
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	result, err := queries.Ask[userapp.ListMechanicsQuery, []dto.UserProfile](c.Request.Context(), h.Queries,
		userapp.ListMechanicsQuery{Limit: parseIntWithDefault(c.Query("limit"), 0)})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": result})
}

var _ UserHTTP = (*UserHandler)(nil)
