package repositories

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fynd/internal/models"
)

// excludedProductTypes are non-merchandise line items some shops expose as
// products. They are never shown in the storefront, regardless of filters.
var excludedProductTypes = []string{"Insurance", "Shipping", "Gift Card"}

// GORMCatalogRepository is a GORM implementation of CatalogRepository.
type GORMCatalogRepository struct {
	db *gorm.DB
}

// NewGORMCatalogRepository creates a new instance of GORMCatalogRepository.
func NewGORMCatalogRepository(db *gorm.DB) *GORMCatalogRepository {
	return &GORMCatalogRepository{
		db: db,
	}
}

// visibleListings applies the baseline predicates every listing query gets:
// merchandise only, in stock, not archived.
func visibleListings(db *gorm.DB) *gorm.DB {
	return db.
		Where("product_type NOT IN ?", excludedProductTypes).
		Where("in_stock = ?", true).
		Where("archived = ?", false)
}

// ComposeListingQuery translates the criteria into a single bounded, ordered
// query over the listing view. Predicates are ANDed; set-valued filters that
// are empty emit no predicate at all. The criteria are expected to be
// normalized (see models.FilterCriteria.Normalize).
func ComposeListingQuery(db *gorm.DB, c models.FilterCriteria) *gorm.DB {
	q := db.Model(&models.Listing{}).Scopes(visibleListings)

	if len(c.ShopIDs) > 0 {
		q = q.Where("shop_id IN ?", c.ShopIDs)
	}
	if len(c.SizeGroups) > 0 {
		// Overlap, not subset: one matching label is enough.
		frags := make([]string, len(c.SizeGroups))
		args := make([]interface{}, len(c.SizeGroups))
		for i, label := range c.SizeGroups {
			frags[i] = "size_groups LIKE ?"
			args[i] = "%," + label + ",%"
		}
		q = q.Where("("+strings.Join(frags, " OR ")+")", args...)
	}
	if len(c.Types) > 0 {
		q = q.Where("product_type IN ?", c.Types)
	}
	if len(c.Categories) > 0 {
		q = q.Where("category IN ?", c.Categories)
	}
	if len(c.Genders) > 0 {
		q = q.Where("gender IN ?", c.Genders)
	}
	if c.OnSale {
		q = q.Where("on_sale = ?", true)
	}
	// A bound sitting on the domain edge is "unbounded" and emits no
	// predicate, which keeps the common unfiltered query plan stable.
	if c.MinPrice > models.PriceFloor {
		q = q.Where("min_price >= ?", c.MinPrice)
	}
	if c.MaxPrice < models.PriceCeiling {
		q = q.Where("min_price <= ?", c.MaxPrice)
	}
	if query := strings.TrimSpace(c.Query); query != "" {
		if db.Dialector.Name() == "postgres" {
			// websearch_to_tsquery gives the conventional web-search grammar:
			// quoted phrases, OR, -exclusion.
			q = q.Where("to_tsvector('simple', search_text) @@ websearch_to_tsquery('simple', ?)", query)
		} else {
			q = q.Where("(title LIKE ? OR search_text LIKE ?)", "%"+query+"%", "%"+query+"%")
		}
	}

	switch c.Sort {
	case models.SortPriceAsc:
		q = q.Order("min_price ASC").Order("id DESC")
	case models.SortPriceDesc:
		q = q.Order("min_price DESC NULLS LAST").Order("id DESC")
	default:
		q = q.Order("max_discount DESC NULLS LAST").Order("created_at DESC").Order("id DESC")
	}

	if c.Offset > 0 {
		q = q.Offset(c.Offset)
	}
	if c.Limit > 0 {
		q = q.Limit(c.Limit)
	}
	return q
}

// QueryListings executes the composed filter query. Failures are wrapped as a
// QueryError and never retried.
func (r *GORMCatalogRepository) QueryListings(criteria models.FilterCriteria) ([]models.Listing, error) {
	var listings []models.Listing
	if err := ComposeListingQuery(r.db, criteria).Find(&listings).Error; err != nil {
		return nil, &QueryError{Op: "query listings", Err: err}
	}
	return listings, nil
}

// GetListingByID fetches a single listing row by id.
func (r *GORMCatalogRepository) GetListingByID(id uint64) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, &QueryError{Op: "get listing", Err: err}
	}
	return &listing, nil
}

// ListVariants returns all variants of the given product, cheapest first.
func (r *GORMCatalogRepository) ListVariants(productID uint64) ([]models.Variant, error) {
	var variants []models.Variant
	if err := r.db.Where("product_id = ?", productID).Order("price ASC").Find(&variants).Error; err != nil {
		return nil, &QueryError{Op: "list variants", Err: err}
	}
	return variants, nil
}

// formatProductID renders a row id in the canonical string form the pricing
// layer keys on.
func formatProductID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// parseProductIDs converts canonical string product ids back to row ids,
// dropping anything that is not a positive integer.
func parseProductIDs(productIDs []string) []uint64 {
	var ids []uint64
	for _, s := range productIDs {
		id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// QueryVariantPrices returns the price/compare pairs of the available
// variants of the given products.
func (r *GORMCatalogRepository) QueryVariantPrices(productIDs []string) ([]models.VariantPrice, error) {
	ids := parseProductIDs(productIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	type row struct {
		ProductID      uint64
		Price          float64
		CompareAtPrice *float64
	}
	var rows []row
	err := r.db.Model(&models.Variant{}).
		Select("product_id", "price", "compare_at_price").
		Where("product_id IN ?", ids).
		Where("available = ?", true).
		Find(&rows).Error
	if err != nil {
		return nil, &QueryError{Op: "query variant prices", Err: err}
	}

	prices := make([]models.VariantPrice, 0, len(rows))
	for _, v := range rows {
		prices = append(prices, models.VariantPrice{
			ProductID:      formatProductID(v.ProductID),
			Price:          v.Price,
			CompareAtPrice: v.CompareAtPrice,
		})
	}
	return prices, nil
}

// QueryActiveOffers returns the offer prices valid at asOf for the given
// products.
func (r *GORMCatalogRepository) QueryActiveOffers(productIDs []string, asOf time.Time) ([]models.OfferPrice, error) {
	ids := parseProductIDs(productIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	type row struct {
		ProductID uint64
		Price     float64
	}
	var rows []row
	err := r.db.Model(&models.Offer{}).
		Select("product_id", "price").
		Where("product_id IN ?", ids).
		Where("starts_at <= ?", asOf).
		Where("(ends_at IS NULL OR ends_at >= ?)", asOf).
		Find(&rows).Error
	if err != nil {
		return nil, &QueryError{Op: "query active offers", Err: err}
	}

	offers := make([]models.OfferPrice, 0, len(rows))
	for _, o := range rows {
		offers = append(offers, models.OfferPrice{
			ProductID: formatProductID(o.ProductID),
			Price:     o.Price,
		})
	}
	return offers, nil
}

// ListFacets collects the distinct filter values over the visible catalog.
func (r *GORMCatalogRepository) ListFacets() (*models.CatalogFacets, error) {
	facets := &models.CatalogFacets{}
	base := func() *gorm.DB {
		return r.db.Model(&models.Listing{}).Scopes(visibleListings)
	}

	if err := base().Distinct("shop_id").Order("shop_id").Pluck("shop_id", &facets.Shops).Error; err != nil {
		return nil, &QueryError{Op: "list shop facets", Err: err}
	}
	for column, dest := range map[string]*[]string{
		"category":     &facets.Categories,
		"product_type": &facets.Types,
		"gender":       &facets.Genders,
	} {
		err := base().Distinct(column).
			Where(column + " <> ''").
			Order(column).
			Pluck(column, dest).Error
		if err != nil {
			return nil, &QueryError{Op: "list " + column + " facets", Err: err}
		}
	}

	var rawGroups []string
	if err := base().Distinct("size_groups").Pluck("size_groups", &rawGroups).Error; err != nil {
		return nil, &QueryError{Op: "list size group facets", Err: err}
	}
	seen := map[string]bool{}
	for _, raw := range rawGroups {
		for _, label := range strings.Split(strings.Trim(raw, ","), ",") {
			if label == "" || seen[label] {
				continue
			}
			seen[label] = true
			facets.SizeGroups = append(facets.SizeGroups, label)
		}
	}
	sort.Strings(facets.SizeGroups)

	return facets, nil
}

// UpsertListing inserts the listing or replaces the existing row wholesale.
func (r *GORMCatalogRepository) UpsertListing(listing *models.Listing) error {
	if listing.ID == 0 {
		return fmt.Errorf("listing id is required for upsert")
	}
	err := r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(listing).Error
	if err != nil {
		return fmt.Errorf("failed to upsert listing %d: %w", listing.ID, err)
	}
	return nil
}

// ArchiveListing hides a listing from every storefront query.
func (r *GORMCatalogRepository) ArchiveListing(id uint64) error {
	res := r.db.Model(&models.Listing{}).Where("id = ?", id).Update("archived", true)
	if res.Error != nil {
		return fmt.Errorf("failed to archive listing %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrListingNotFound
	}
	return nil
}
