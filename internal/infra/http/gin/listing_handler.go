package ginserver

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	listingapp "autoparc/internal/app/handlers/listings"
	"autoparc/internal/app/queries"
	domainlistings "autoparc/internal/domain/listings"
)

const maxListingImageSizeBytes int64 = 10 * 1024 * 1024

type ListingHTTP interface {
	Catalog(c *gin.Context)
	Get(c *gin.Context)
	Mine(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Boost(c *gin.Context)
	Unboost(c *gin.Context)
	Delete(c *gin.Context)
	UploadImage(c *gin.Context)
	RemoveImage(c *gin.Context)
}

type ListingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type listingRequest struct {
	Title       string   `json:"title"`
	PriceCents  int64    `json:"price_cents"`
	Category    string   `json:"category"`
	Year        int      `json:"year"`
	Mileage     *int     `json:"mileage"`
	Color       string   `json:"color"`
	Condition   int      `json:"condition"`
	Description string   `json:"description"`
	SellerType  string   `json:"seller_type"`
	Status      string   `json:"status"`
	Location    string   `json:"location"`
	Images      []string `json:"images"`
}

func (r listingRequest) details() domainlistings.Details {
	return domainlistings.Details{
		Title:       r.Title,
		PriceCents:  r.PriceCents,
		Category:    domainlistings.Category(strings.ToLower(strings.TrimSpace(r.Category))),
		Year:        r.Year,
		Mileage:     r.Mileage,
		Color:       r.Color,
		Condition:   r.Condition,
		Description: r.Description,
		SellerType:  domainlistings.SellerType(strings.ToLower(strings.TrimSpace(r.SellerType))),
		Status:      domainlistings.Status(strings.ToLower(strings.TrimSpace(r.Status))),
		Location:    r.Location,
		Images:      r.Images,
	}
}

// Catalog lists public listings. Filters come from the query string.
func (h ListingHandler) Catalog(c *gin.Context) {
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	limit := parseIntWithDefault(c.Query("limit"), 0)
	page := parseIntWithDefault(c.Query("page"), 1)
	offset := parseIntWithDefault(c.Query("offset"), 0)
	if offset == 0 && page > 1 && limit > 0 {
		offset = (page - 1) * limit
	}
	query := listingapp.SearchCatalogQuery{
		Categories:    splitCSV(c.Query("category")),
		Query:         c.Query("q"),
		Location:      c.Query("location"),
		PriceMinCents: parseInt64(c.Query("price_min")),
		PriceMaxCents: parseInt64(c.Query("price_max")),
		YearMin:       parseIntWithDefault(c.Query("year_min"), 0),
		YearMax:       parseIntWithDefault(c.Query("year_max"), 0),
		Statuses:      splitCSV(c.Query("status")),
		BoostedOnly:   c.Query("boosted") == "true",
		Sort:          c.Query("sort"),
		Limit:         limit,
		Offset:        offset,
	}
	result, err := queries.Ask[listingapp.SearchCatalogQuery, dto.ListingCatalog](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Get(c *gin.Context) {
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	query := listingapp.GetListingQuery{ListingID: c.Param("id")}
	result, err := queries.Ask[listingapp.GetListingQuery, *dto.Listing](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Mine lists the caller's own listings.
func (h ListingHandler) Mine(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		respondUnavailable(c, "queries bus")
		return
	}
	query := listingapp.SellerListingsQuery{
		SellerID: p.ID,
		Limit:    parseIntWithDefault(c.Query("limit"), 0),
		Offset:   parseIntWithDefault(c.Query("offset"), 0),
	}
	result, err := queries.Ask[listingapp.SellerListingsQuery, dto.ListingCatalog](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Create(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := listingapp.CreateListingCommand{
		SellerID:   p.ID,
		Details:    req.details(),
		RequestKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	}
	result, err := commands.Dispatch[listingapp.CreateListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/api/v1/listings/%s", result.ID))
	c.JSON(http.StatusCreated, result)
}

func (h ListingHandler) Update(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := listingapp.UpdateListingCommand{SellerID: p.ID, ListingID: c.Param("id"), Details: req.details()}
	result, err := commands.Dispatch[listingapp.UpdateListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Boost(c *gin.Context)   { h.setBoost(c, true) }
func (h ListingHandler) Unboost(c *gin.Context) { h.setBoost(c, false) }

func (h ListingHandler) setBoost(c *gin.Context, boost bool) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	cmd := listingapp.BoostListingCommand{SellerID: p.ID, ListingID: c.Param("id"), Boost: boost}
	result, err := commands.Dispatch[listingapp.BoostListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Delete(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	cmd := listingapp.DeleteListingCommand{SellerID: p.ID, ListingID: c.Param("id")}
	if _, err := commands.Dispatch[listingapp.DeleteListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadImage accepts a multipart "file" field and appends the stored image
// to the listing.
func (h ListingHandler) UploadImage(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxListingImageSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file too large (max %d MB)", maxListingImageSizeBytes/1024/1024)})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxListingImageSizeBytes+1))
	if err != nil {
		respondError(c, h.Logger, fmt.Errorf("read upload: %w", err))
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
		return
	}
	if int64(len(data)) > maxListingImageSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file too large (max %d MB)", maxListingImageSizeBytes/1024/1024)})
		return
	}
	cmd := listingapp.UploadListingImageCommand{
		SellerID:    p.ID,
		ListingID:   c.Param("id"),
		FileName:    fileHeader.Filename,
		ContentType: http.DetectContentType(data),
		Reader:      bytes.NewReader(data),
	}
	result, err := commands.Dispatch[listingapp.UploadListingImageCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ListingHandler) RemoveImage(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands bus")
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := listingapp.RemoveListingImageCommand{SellerID: p.ID, ListingID: c.Param("id"), URL: req.URL}
	result, err := commands.Dispatch[listingapp.RemoveListingImageCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ ListingHTTP = (*ListingHandler)(nil)
