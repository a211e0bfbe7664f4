package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"fynd/internal/models"
	"fynd/internal/repositories"
	"fynd/internal/services"
)

const (
	defaultPageSize = 24
	maxPageSize     = 96
)

// ProductHandler handles the storefront's product browsing endpoints.
type ProductHandler struct {
	catalogService *services.CatalogService
	pricing        *services.PricingAggregator
	validate       *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(catalogService *services.CatalogService, pricing *services.PricingAggregator) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
		pricing:        pricing,
		validate:       validator.New(),
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	products := router.Group("/products")
	products.Get("/", h.HandleListProducts)
	products.Get("/:id", h.HandleGetProduct)
	products.Get("/:id/variants", h.HandleListVariants)
	products.Get("/:id/price", h.HandleGetPrice)
	router.Post("/prices", h.HandleBatchPrices)
}

// listingQuery carries the page-level query values that must be well formed;
// set-valued filters never fail the request, bad entries are just dropped.
type listingQuery struct {
	Page     int     `validate:"gte=1"`
	Limit    int     `validate:"gte=1,lte=96"`
	MinPrice float64 `validate:"gte=0"`
	MaxPrice float64 `validate:"gte=0"`
}

// queryValues collects every occurrence of a query key, also splitting
// comma-separated values, so both ?size=S&size=M and ?size=S,M work.
func queryValues(c *fiber.Ctx, key string) []string {
	var values []string
	for _, v := range c.Context().QueryArgs().PeekMulti(key) {
		values = append(values, strings.Split(string(v), ",")...)
	}
	return values
}

// HandleListProducts runs the filter query for the storefront grid.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", defaultPageSize)

	q := listingQuery{
		Page:     page,
		Limit:    limit,
		MinPrice: c.QueryFloat("min_price", models.PriceFloor),
		MaxPrice: c.QueryFloat("max_price", models.PriceCeiling),
	}
	if err := h.validate.Struct(q); err != nil {
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

	criteria := models.NewFilterCriteria()
	criteria.ShopIDs = models.ParseShopIDs(queryValues(c, "shop"))
	criteria.SizeGroups = queryValues(c, "size")
	criteria.Types = queryValues(c, "type")
	criteria.Categories = queryValues(c, "category")
	criteria.Genders = queryValues(c, "gender")
	criteria.OnSale = c.QueryBool("on_sale", false)
	criteria.Query = c.Query("q")
	criteria.MinPrice = q.MinPrice
	criteria.MaxPrice = q.MaxPrice
	criteria.Sort = models.SortOrder(c.Query("sort"))
	criteria.Offset = (page - 1) * limit
	// Ask for one row beyond the page to detect whether another page exists.
	criteria.Limit = limit + 1

	listings, err := h.catalogService.ListListings(criteria)
	if err != nil {
		zap.L().Error("listing query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not query products",
		})
	}

	hasMore := len(listings) > limit
	if hasMore {
		listings = listings[:limit]
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"items":    listings,
		"page":     page,
		"limit":    limit,
		"has_more": hasMore,
	})
}

func parseListingID(c *fiber.Ctx) (uint64, error) {
	return strconv.ParseUint(c.Params("id"), 10, 64)
}

// HandleGetProduct fetches one listing for the detail view.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	id, err := parseListingID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid product id",
		})
	}

	listing, err := h.catalogService.GetListing(id)
	if err != nil {
		if errors.Is(err, repositories.ErrListingNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		zap.L().Error("listing lookup failed", zap.Uint64("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not fetch product",
		})
	}
	return c.Status(fiber.StatusOK).JSON(listing)
}

// HandleListVariants lists the purchasable variants of one product.
func (h *ProductHandler) HandleListVariants(c *fiber.Ctx) error {
	id, err := parseListingID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid product id",
		})
	}

	if _, err := h.catalogService.GetListing(id); err != nil {
		if errors.Is(err, repositories.ErrListingNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		zap.L().Error("listing lookup failed", zap.Uint64("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not fetch product",
		})
	}

	variants, err := h.catalogService.ListVariants(id)
	if err != nil {
		zap.L().Error("variant query failed", zap.Uint64("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not fetch variants",
		})
	}
	if variants == nil {
		variants = []models.Variant{}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"variants": variants})
}

// HandleGetPrice resolves the current pricing of one product through the
// batch aggregator. Requests landing in the same flush window share one
// store lookup.
func (h *ProductHandler) HandleGetPrice(c *fiber.Ctx) error {
	if _, err := parseListingID(c); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid product id",
		})
	}

	info, err := h.pricing.Lookup(c.UserContext(), c.Params("id"))
	if err != nil {
		// Only the caller's context can fail a lookup.
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Pricing request canceled",
		})
	}
	return c.Status(fiber.StatusOK).JSON(info)
}

// batchPriceRequest is the body of POST /prices.
type batchPriceRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,required"`
}

// HandleBatchPrices resolves pricing for many products at once. All ids are
// subscribed before waiting, so they land in one coalescing window.
func (h *ProductHandler) HandleBatchPrices(c *fiber.Ctx) error {
	var req batchPriceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}

	type subscription struct {
		id     string
		ch     <-chan models.PricingInfo
		cancel func()
	}
	subs := make([]subscription, 0, len(req.IDs))
	for _, id := range req.IDs {
		ch, cancel := h.pricing.Subscribe(id)
		subs = append(subs, subscription{id: id, ch: ch, cancel: cancel})
	}

	ctx := c.UserContext()
	prices := make(map[string]models.PricingInfo, len(subs))
	for i, sub := range subs {
		select {
		case info := <-sub.ch:
			prices[sub.id] = info
		case <-ctx.Done():
			for _, rest := range subs[i:] {
				rest.cancel()
			}
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"message": "Pricing request canceled",
			})
		}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"prices": prices})
}
