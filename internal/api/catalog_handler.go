package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinic-backend-go/internal/core"
	"clinic-backend-go/internal/models"
)

// CatalogHandler serves the admin-curated collections. Each handler is bound
// to one collection when routes are registered.
type CatalogHandler struct {
	catalog core.CatalogService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(cs core.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: cs, logger: logger}
}

// List handles GET /{collection}. With ?slug= it returns the single matching record.
func (h *CatalogHandler) List(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if slug := c.Query("slug"); slug != "" {
			rec, err := h.catalog.FindBySlug(c.Request.Context(), collection, slug)
			if err != nil {
				mapErrorToStatus(c, h.logger, err)
				return
			}
			c.JSON(http.StatusOK, rec)
			return
		}
		recs, err := h.catalog.List(c.Request.Context(), collection)
		if err != nil {
			mapErrorToStatus(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, recs)
	}
}

// Get handles GET /{collection}/:id
func (h *CatalogHandler) Get(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := h.catalog.Get(c.Request.Context(), collection, c.Param("id"))
		if err != nil {
			mapErrorToStatus(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// Create handles POST /{collection}
func (h *CatalogHandler) Create(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := h.bind(c, collection)
		if !ok {
			return
		}
		created, err := h.catalog.Create(c.Request.Context(), collection, rec)
		if err != nil {
			mapErrorToStatus(c, h.logger, err)
			return
		}
		c.JSON(http.StatusCreated, SuccessResponse{Message: "Saved successfully.", Data: created})
	}
}

// Replace handles PUT /{collection}/:id
func (h *CatalogHandler) Replace(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := h.bind(c, collection)
		if !ok {
			return
		}
		updated, err := h.catalog.Replace(c.Request.Context(), collection, c.Param("id"), rec)
		if err != nil {
			mapErrorToStatus(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Message: "Updated successfully.", Data: updated})
	}
}

// Patch handles PATCH /{collection}/:id with a partial JSON document.
func (h *CatalogHandler) Patch(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			badRequest(c, err)
			return
		}
		updated, err := h.catalog.Patch(c.Request.Context(), collection, c.Param("id"), body)
		if err != nil {
			mapErrorToStatus(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Message: "Updated successfully.", Data: updated})
	}
}

// Delete handles DELETE /{collection}/:id
func (h *CatalogHandler) Delete(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.catalog.Delete(c.Request.Context(), collection, c.Param("id")); err != nil {
			mapErrorToStatus(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Message: "Deleted successfully."})
	}
}

// GetContactInformation handles GET /contact-information
func (h *CatalogHandler) GetContactInformation(c *gin.Context) {
	info, err := h.catalog.GetContactInformation(c.Request.Context())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// SetContactInformation handles PUT /contact-information
func (h *CatalogHandler) SetContactInformation(c *gin.Context) {
	var info models.ContactInformation
	if err := c.ShouldBindJSON(&info); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.catalog.SetContactInformation(c.Request.Context(), &info); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Contact information updated.", Data: info})
}

func (h *CatalogHandler) bind(c *gin.Context, collection string) (models.Record, bool) {
	kind, ok := models.CatalogKind(collection)
	if !ok {
		mapErrorToStatus(c, h.logger, core.ErrUnknownCollection)
		return nil, false
	}
	rec, err := models.New(kind)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return nil, false
	}
	if err := c.ShouldBindJSON(rec); err != nil {
		badRequest(c, err)
		return nil, false
	}
	return rec, true
}
