package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"fynd/internal/services"
)

// MetaHandler serves the filter metadata the storefront UI builds its
// dropdowns from.
type MetaHandler struct {
	catalogService *services.CatalogService
}

// NewMetaHandler creates a new MetaHandler.
func NewMetaHandler(catalogService *services.CatalogService) *MetaHandler {
	return &MetaHandler{catalogService: catalogService}
}

// RegisterRoutes registers the metadata routes with the Fiber app.
func (h *MetaHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/facets", h.HandleGetFacets)
}

// HandleGetFacets returns the distinct filter values of the visible catalog.
func (h *MetaHandler) HandleGetFacets(c *fiber.Ctx) error {
	facets, err := h.catalogService.Facets()
	if err != nil {
		zap.L().Error("facet query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not fetch filter metadata",
		})
	}
	return c.Status(fiber.StatusOK).JSON(facets)
}
