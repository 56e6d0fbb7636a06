package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"marketplace/internal/app/services/listings"
)

type ListingHTTP interface {
	Catalog(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Deactivate(c *gin.Context)
}

type ListingHandler struct {
	Service *listings.Service
	Logger  *slog.Logger
}

func (h ListingHandler) Catalog(c *gin.Context) {
	var params listings.SearchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		badRequest(c, "invalid query")
		return
	}
	catalog, err := h.Service.Search(c.Request.Context(), params)
	if err != nil {
		respondError(c, h.Logger, err, "op", "listings.catalog")
		return
	}
	c.JSON(http.StatusOK, catalog)
}

func (h ListingHandler) Get(c *gin.Context) {
	viewer := ""
	if p, ok := currentPrincipal(c); ok {
		viewer = p.ID
	}
	listing, err := h.Service.Get(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		respondError(c, h.Logger, err, "op", "listings.get", "listing_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h ListingHandler) Create(c *gin.Context) {
	p, ok := requireRole(c, "provider")
	if !ok {
		return
	}
	var req listings.CreateParams
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	req.ProviderID = p.ID
	listing, err := h.Service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.Logger, err, "op", "listings.create", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

func (h ListingHandler) Deactivate(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	listing, err := h.Service.Deactivate(c.Request.Context(), c.Param("id"), p.ID)
	if err != nil {
		respondError(c, h.Logger, err, "op", "listings.deactivate", "listing_id", c.Param("id"), "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, listing)
}

var _ ListingHTTP = ListingHandler{}
