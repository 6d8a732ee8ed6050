package ginserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	expertiseapp "autoparc/internal/app/handlers/expertise"
	"autoparc/internal/app/queries"
	domainexpertise "autoparc/internal/domain/expertise"
)

type ExpertiseHTTP interface {
	Submit(c *gin.Context)
	Get(c *gin.Context)
	ForListing(c *gin.Context)
	Dashboard(c *gin.Context)
}

type ExpertiseHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type reportRequest struct {
	ListingID string `json:"listing_id"`
	Vehicle   struct {
		Make     string `json:"make"`
		Model    string `json:"model"`
		Year     int    `json:"year"`
		Mileage  int    `json:"mileage"`
		VIN      string `json:"vin"`
		Plate    string `json:"plate"`
		FuelType string `json:"fuel_type"`
	} `json:"vehicle"`
	Categories []struct {
		Key   string  `json:"key"`
		Score float64 `json:"score"`
		Notes string  `json:"notes"`
	} `json:"categories"`
	Recommendations []string `json:"recommendations"`
	Signatory       struct {
		Name string    `json:"name"`
		Shop string    `json:"shop"`
		Date time.Time `json:"date"`
	} `json:"signatory"`
}

// Submit is reserved to mechanics; the bus enforces the role again.
func (h ExpertiseHandler) Submit(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := expertiseapp.SubmitReportCommand{
		MechanicID:    p.ID,
		ActorRoleName: p.Role,
		ListingID:     strings.TrimSpace(req.ListingID),
		Vehicle: domainexpertise.VehicleInfo{
			Make:     req.Vehicle.Make,
			Model:    req.Vehicle.Model,
			Year:     req.Vehicle.Year,
			Mileage:  req.Vehicle.Mileage,
			VIN:      req.Vehicle.VIN,
			Plate:    req.Vehicle.Plate,
			FuelType: req.Vehicle.FuelType,
		},
		Recommendations: req.Recommendations,
		Signatory: domainexpertise.Signatory{
			Name: req.Signatory.Name,
			Shop: req.Signatory.Shop,
			Date: req.Signatory.Date,
		},
		RequestKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	}
	for _, cat := range req.Categories {
		cmd.Categories = append(cmd.Categories, domainexpertise.CategoryScore{
			Key:   domainexpertise.CategoryKey(strings.ToLower(strings.TrimSpace(cat.Key))),
			Score: cat.Score,
			Notes: cat.Notes,
		})
	}
	result, err := commands.Dispatch[expertiseapp.SubmitReportCommand, *dto.ExpertiseReport](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ExpertiseHandler) Get(c *gin.Context) {
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	result, err := queries.Ask[expertiseapp.GetReportQuery, *dto.ExpertiseReport](c.Request.Context(), h.Queries,
		expertiseapp.GetReportQuery{ReportID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ExpertiseHandler) ForListing(c *gin.Context) {
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	result, err := queries.Ask[expertiseapp.ListingReportsQuery, dto.ExpertiseReportList](c.Request.Context(), h.Queries,
		expertiseapp.ListingReportsQuery{ListingID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ExpertiseHandler) Dashboard(c *gin.Context) {
	p, ok := requireRole(c, "mechanic")
	if !ok {
		return
	}
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	result, err := queries.Ask[expertiseapp.MechanicDashboardQuery, dto.MechanicDashboard](c.Request.Context(), h.Queries,
		expertiseapp.MechanicDashboardQuery{MechanicID: p.ID})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ ExpertiseHTTP = (*ExpertiseHandler)(nil)
