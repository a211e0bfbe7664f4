package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"fynd/internal/models"
	"fynd/internal/repositories"
	"fynd/internal/services"
)

// AdminHandler exposes the operator endpoints: listing backfills and a peek
// into the pricing cache. The routes are expected to sit behind the admin
// JWT middleware.
type AdminHandler struct {
	catalogService *services.CatalogService
	pricing        *services.PricingAggregator
	validate       *validator.Validate
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(catalogService *services.CatalogService, pricing *services.PricingAggregator) *AdminHandler {
	return &AdminHandler{
		catalogService: catalogService,
		pricing:        pricing,
		validate:       validator.New(),
	}
}

// RegisterRoutes registers the admin routes with the (guarded) router group.
func (h *AdminHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/pricing/cache", h.HandlePricingCacheStats)
	router.Post("/listings", h.HandleUpsertListing)
	router.Delete("/listings/:id", h.HandleArchiveListing)
}

// HandlePricingCacheStats reports the size of the pricing cache.
func (h *AdminHandler) HandlePricingCacheStats(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"cached_products": h.pricing.CachedCount(),
	})
}

// HandleUpsertListing backfills or corrects a listing row by hand, following
// the same path a scraper event takes.
func (h *AdminHandler) HandleUpsertListing(c *fiber.Ctx) error {
	var listing models.Listing
	if err := c.BodyParser(&listing); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(listing); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}

	if err := h.catalogService.SaveListing(&listing); err != nil {
		zap.L().Error("listing upsert failed", zap.Uint64("id", listing.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not save listing",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Listing saved successfully",
		"listing": listing,
	})
}

// HandleArchiveListing hides a listing from the storefront.
func (h *AdminHandler) HandleArchiveListing(c *fiber.Ctx) error {
	id, err := parseListingID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid product id",
		})
	}

	if err := h.catalogService.ArchiveListing(id); err != nil {
		if errors.Is(err, repositories.ErrListingNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		zap.L().Error("listing archive failed", zap.Uint64("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not archive listing",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Listing archived successfully",
	})
}
