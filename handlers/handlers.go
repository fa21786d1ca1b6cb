package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"copa-dashboard/database"
	"copa-dashboard/middleware"
	"copa-dashboard/models"
	"copa-dashboard/services"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// ListingHandler handles HTTP requests for listing-related endpoints
type ListingHandler struct {
	listingService *database.ListingService
	neighborhoods  *services.NeighborhoodsService
	geocodeClient  *services.GeocodeClient
	storageService *services.StorageService
	hub            *services.WebSocketHub
}

// NewListingHandler creates a new listing handler
func NewListingHandler(
	listingService *database.ListingService,
	neighborhoods *services.NeighborhoodsService,
	geocodeClient *services.GeocodeClient,
	storageService *services.StorageService,
	hub *services.WebSocketHub,
) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		neighborhoods:  neighborhoods,
		geocodeClient:  geocodeClient,
		storageService: storageService,
		hub:            hub,
	}
}

// HealthHandler handles health check requests
func (h *ListingHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:           "healthy",
		Service:          "copa-dashboard",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ConnectedClients: h.hub.GetConnectedClientsCount(),
	})
}

// ListingsHandler returns the filtered listing collection, newest notice
// first. Filters combine with AND; the same request always yields the same
// order.
func (h *ListingHandler) ListingsHandler(c *gin.Context) {
	spec, err := filterSpecFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listings, err := h.listingService.ListListings(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to list listings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	now := time.Now()
	filtered := services.FilterListings(listings, spec, now)

	views := make([]models.ListingView, 0, len(filtered))
	for _, l := range filtered {
		views = append(views, services.ViewOf(l, now))
	}

	c.JSON(http.StatusOK, models.ListingsResponse{
		Listings: views,
		Count:    len(views),
	})
}

// GetListingHandler returns a single listing and records the view.
func (h *ListingHandler) GetListingHandler(c *gin.Context) {
	id := c.Param("id")

	listing, err := h.listingService.GetListing(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return
		}
		log.Errorf("Failed to get listing %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.listingService.LogAccess(middleware.GetUserIDFromContext(c), id)

	c.JSON(http.StatusOK, services.ViewOf(listing, time.Now()))
}

// UpdateListingHandler applies an editor submission. Validation failures come
// back as a field-to-message map; a stale concurrency token is a 409 and the
// client must reload before retrying.
func (h *ListingHandler) UpdateListingHandler(c *gin.Context) {
	id := c.Param("id")

	var req models.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if fieldErrors := services.ValidateListingUpdate(req); len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return
	}

	updated, err := h.listingService.UpdateListing(c.Request.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		case errors.Is(err, database.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Listing was modified by another user. Reload to see the latest version."})
		default:
			log.Errorf("Failed to update listing %s: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	view := services.ViewOf(updated, time.Now())
	h.hub.BroadcastListingUpdated(view)

	c.JSON(http.StatusOK, view)
}

// IngestListingHandler accepts a listing record from the email pipeline.
// The raw payload goes through the normalizer so vintage-specific shapes
// never reach storage, then the listing is upserted and the refreshed view
// is broadcast to open dashboards.
func (h *ListingHandler) IngestListingHandler(c *gin.Context) {
	var raw models.RawListing
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if raw.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	listing := services.Normalize(raw)
	if listing.FullAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "an address is required"})
		return
	}

	if err := h.listingService.UpsertListing(c.Request.Context(), listing, raw.Details); err != nil {
		log.Errorf("Failed to ingest listing %s: %v", listing.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	stored, err := h.listingService.GetListing(c.Request.Context(), listing.ID)
	if err != nil {
		log.Errorf("Failed to reload listing %s after ingest: %v", listing.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	view := services.ViewOf(stored, time.Now())
	h.hub.BroadcastListingUpdated(view)

	c.JSON(http.StatusOK, view)
}

// ListingDetailsHandler returns the decrypted sensitive details. A payload
// that fails to decrypt is logged and served as null so the rest of the
// detail view still renders.
func (h *ListingHandler) ListingDetailsHandler(c *gin.Context) {
	id := c.Param("id")

	details, err := h.listingService.DecryptedDetails(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return
		}
		log.Errorf("Failed to decrypt details for listing %s: %v", id, err)
		c.JSON(http.StatusOK, gin.H{"details": nil})
		return
	}

	if details == nil {
		c.JSON(http.StatusOK, gin.H{"details": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"details":            details,
		"financials_display": services.FinancialDisplay(details.Financials),
	})
}

// ListingEmailsHandler returns the listing's emails with their attachments.
func (h *ListingHandler) ListingEmailsHandler(c *gin.Context) {
	id := c.Param("id")

	emails, err := h.listingService.ListEmails(c.Request.Context(), id)
	if err != nil {
		log.Errorf("Failed to list emails for listing %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	emailIDs := make([]string, 0, len(emails))
	for _, email := range emails {
		emailIDs = append(emailIDs, email.ID)
	}

	attachments, err := h.listingService.ListAttachments(c.Request.Context(), emailIDs)
	if err != nil {
		log.Errorf("Failed to list attachments for listing %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	result := services.GroupEmailAttachments(emails, attachments)
	c.JSON(http.StatusOK, gin.H{"emails": result, "count": len(result)})
}

// SignedURLHandler returns a time-limited download URL for an attachment.
func (h *ListingHandler) SignedURLHandler(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path parameter is required"})
		return
	}

	ttl := 0
	if raw := c.Query("ttl"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ttl must be a positive integer"})
			return
		}
		ttl = parsed
	}

	url, expiresIn, err := h.storageService.SignedURL(c.Request.Context(), path, ttl)
	if err != nil {
		log.Errorf("Failed to sign URL for %s: %v", path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, models.SignedURLResponse{
		URL:       url,
		ExpiresIn: expiresIn,
	})
}

// NeighborhoodsHandler returns the neighborhood polygons for map overlays.
func (h *ListingHandler) NeighborhoodsHandler(c *gin.Context) {
	neighborhoods, err := h.neighborhoods.All()
	if err != nil {
		log.Errorf("Failed to get neighborhoods: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Neighborhood data not loaded"})
		return
	}

	c.JSON(http.StatusOK, models.NeighborhoodsResponse{
		Neighborhoods: neighborhoods,
		Count:         len(neighborhoods),
	})
}

// NeighborhoodNamesHandler returns the reference names for the editor
// dropdown.
func (h *ListingHandler) NeighborhoodNamesHandler(c *gin.Context) {
	names, err := h.listingService.NeighborhoodNames(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to get neighborhood names: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"names": names, "count": len(names)})
}

// GeocodeHandler resolves an address to coordinates and the containing
// neighborhood.
func (h *ListingHandler) GeocodeHandler(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address parameter is required"})
		return
	}

	lat, lng, err := h.geocodeClient.Geocode(c.Request.Context(), address)
	if err != nil {
		if errors.Is(err, services.ErrNoGeocodeResult) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Address not found"})
			return
		}
		log.Errorf("Failed to geocode %q: %v", address, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Geocoding service unavailable"})
		return
	}

	c.JSON(http.StatusOK, models.GeocodeResponse{
		Lat:          lat,
		Lng:          lng,
		Neighborhood: h.neighborhoods.FindNeighborhood(lat, lng),
	})
}

// filterSpecFromQuery builds the filter snapshot from query parameters.
// Defaults mirror the dashboard's initial state: active listings with at
// least one day left, unflagged.
func filterSpecFromQuery(c *gin.Context) (models.FilterSpec, error) {
	spec := models.FilterSpec{
		Query:       c.Query("q"),
		ShowActive:  true,
		MinDaysLeft: services.DefaultMinDaysLeft,
	}

	if raw := c.Query("neighborhoods"); raw != "" {
		spec.Neighborhoods = make(map[string]bool)
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				spec.Neighborhoods[name] = true
			}
		}
	}

	if raw := c.Query("units"); raw != "" {
		bucket, ok := parseUnitBucket(raw)
		if !ok {
			return spec, errors.New("units must be one of 1-10, 11-25, 26-49, 50+")
		}
		spec.UnitBucket = bucket
	}

	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return spec, errors.New("active must be a boolean")
		}
		spec.ShowActive = active
	}

	if raw := c.Query("min_days_left"); raw != "" {
		minDays, err := strconv.Atoi(raw)
		if err != nil || minDays < 0 {
			return spec, errors.New("min_days_left must be a non-negative integer")
		}
		spec.MinDaysLeft = minDays
	}

	if raw := c.Query("flagged"); raw != "" {
		flagged, err := strconv.ParseBool(raw)
		if err != nil {
			return spec, errors.New("flagged must be a boolean")
		}
		spec.Flagged = flagged
	}

	return spec, nil
}

func parseUnitBucket(s string) (models.UnitBucket, bool) {
	switch s {
	case "1-10":
		return models.UnitBucket1To10, true
	case "11-25":
		return models.UnitBucket11To25, true
	case "26-49":
		return models.UnitBucket26To49, true
	case "50+":
		return models.UnitBucket50Plus, true
	default:
		return models.UnitBucketNone, false
	}
}
