package repositories

import (
	"sort"
	"strings"
	"sync"
	"time"

	"fynd/internal/models"
)

// MockCatalogRepository is an in-memory implementation of CatalogRepository.
// It mirrors the visibility and filter semantics of the GORM implementation
// closely enough for local development and tests without a database.
type MockCatalogRepository struct {
	mu       sync.RWMutex
	listings map[uint64]models.Listing
	variants map[uint64][]models.Variant
	offers   map[uint64][]models.Offer
}

// NewMockCatalogRepository creates a new instance of MockCatalogRepository.
func NewMockCatalogRepository() *MockCatalogRepository {
	return &MockCatalogRepository{
		listings: make(map[uint64]models.Listing),
		variants: make(map[uint64][]models.Variant),
		offers:   make(map[uint64][]models.Offer),
	}
}

// SetVariants replaces the variants of a product.
func (r *MockCatalogRepository) SetVariants(productID uint64, variants []models.Variant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[productID] = variants
}

// SetOffers replaces the offers of a product.
func (r *MockCatalogRepository) SetOffers(productID uint64, offers []models.Offer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[productID] = offers
}

func isExcludedType(productType string) bool {
	for _, t := range excludedProductTypes {
		if t == productType {
			return true
		}
	}
	return false
}

func matchesCriteria(l models.Listing, c models.FilterCriteria) bool {
	if isExcludedType(l.ProductType) || !l.InStock || l.Archived {
		return false
	}
	if len(c.ShopIDs) > 0 && !containsInt64(c.ShopIDs, l.ShopID) {
		return false
	}
	if len(c.SizeGroups) > 0 && !overlaps(l.SizeGroups, c.SizeGroups) {
		return false
	}
	if len(c.Types) > 0 && !containsString(c.Types, l.ProductType) {
		return false
	}
	if len(c.Categories) > 0 && !containsString(c.Categories, l.Category) {
		return false
	}
	if len(c.Genders) > 0 && !containsString(c.Genders, l.Gender) {
		return false
	}
	if c.OnSale && !l.OnSale {
		return false
	}
	if c.MinPrice > models.PriceFloor && (l.MinPrice == nil || *l.MinPrice < c.MinPrice) {
		return false
	}
	if c.MaxPrice < models.PriceCeiling && (l.MinPrice == nil || *l.MinPrice > c.MaxPrice) {
		return false
	}
	if q := strings.TrimSpace(c.Query); q != "" {
		q = strings.ToLower(q)
		if !strings.Contains(strings.ToLower(l.Title), q) &&
			!strings.Contains(strings.ToLower(l.SearchText), q) {
			return false
		}
	}
	return true
}

func containsInt64(set []int64, v int64) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func overlaps(tags models.TagList, labels []string) bool {
	for _, label := range labels {
		for _, tag := range tags {
			if tag == label {
				return true
			}
		}
	}
	return false
}

// QueryListings filters, sorts and paginates the in-memory rows.
func (r *MockCatalogRepository) QueryListings(criteria models.FilterCriteria) ([]models.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []models.Listing
	for _, l := range r.listings {
		if matchesCriteria(l, criteria) {
			result = append(result, l)
		}
	}
	sortListings(result, criteria.Sort)

	if criteria.Offset > 0 {
		if criteria.Offset >= len(result) {
			return nil, nil
		}
		result = result[criteria.Offset:]
	}
	if criteria.Limit > 0 && len(result) > criteria.Limit {
		result = result[:criteria.Limit]
	}
	return result, nil
}

func sortListings(listings []models.Listing, order models.SortOrder) {
	switch order {
	case models.SortPriceAsc:
		sort.SliceStable(listings, func(i, j int) bool {
			a, b := listings[i], listings[j]
			ap, bp := priceOrInf(a.MinPrice), priceOrInf(b.MinPrice)
			if ap != bp {
				return ap < bp
			}
			return a.ID > b.ID
		})
	case models.SortPriceDesc:
		sort.SliceStable(listings, func(i, j int) bool {
			a, b := listings[i], listings[j]
			an, bn := a.MinPrice == nil, b.MinPrice == nil
			if an != bn {
				return bn // nulls last
			}
			if !an && *a.MinPrice != *b.MinPrice {
				return *a.MinPrice > *b.MinPrice
			}
			return a.ID > b.ID
		})
	default:
		sort.SliceStable(listings, func(i, j int) bool {
			a, b := listings[i], listings[j]
			an, bn := a.MaxDiscount == nil, b.MaxDiscount == nil
			if an != bn {
				return bn // nulls last
			}
			if !an && *a.MaxDiscount != *b.MaxDiscount {
				return *a.MaxDiscount > *b.MaxDiscount
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		})
	}
}

func priceOrInf(p *float64) float64 {
	if p == nil {
		return models.PriceCeiling + 1
	}
	return *p
}

// GetListingByID returns a listing by its id.
func (r *MockCatalogRepository) GetListingByID(id uint64) (*models.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listing, ok := r.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	return &listing, nil
}

// ListVariants returns the variants of a product, cheapest first.
func (r *MockCatalogRepository) ListVariants(productID uint64) ([]models.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	variants := append([]models.Variant(nil), r.variants[productID]...)
	sort.SliceStable(variants, func(i, j int) bool { return variants[i].Price < variants[j].Price })
	return variants, nil
}

// QueryVariantPrices returns price pairs of available variants.
func (r *MockCatalogRepository) QueryVariantPrices(productIDs []string) ([]models.VariantPrice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var prices []models.VariantPrice
	for _, id := range parseProductIDs(productIDs) {
		for _, v := range r.variants[id] {
			if !v.Available {
				continue
			}
			prices = append(prices, models.VariantPrice{
				ProductID:      formatProductID(id),
				Price:          v.Price,
				CompareAtPrice: v.CompareAtPrice,
			})
		}
	}
	return prices, nil
}

// QueryActiveOffers returns offer prices valid at asOf.
func (r *MockCatalogRepository) QueryActiveOffers(productIDs []string, asOf time.Time) ([]models.OfferPrice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var offers []models.OfferPrice
	for _, id := range parseProductIDs(productIDs) {
		for _, o := range r.offers[id] {
			if o.StartsAt.After(asOf) {
				continue
			}
			if o.EndsAt != nil && o.EndsAt.Before(asOf) {
				continue
			}
			offers = append(offers, models.OfferPrice{ProductID: formatProductID(id), Price: o.Price})
		}
	}
	return offers, nil
}

// ListFacets collects distinct filter values over the visible rows.
func (r *MockCatalogRepository) ListFacets() (*models.CatalogFacets, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	facets := &models.CatalogFacets{}
	shops := map[int64]bool{}
	categories := map[string]bool{}
	types := map[string]bool{}
	genders := map[string]bool{}
	sizeGroups := map[string]bool{}
	for _, l := range r.listings {
		if isExcludedType(l.ProductType) || !l.InStock || l.Archived {
			continue
		}
		shops[l.ShopID] = true
		if l.Category != "" {
			categories[l.Category] = true
		}
		if l.ProductType != "" {
			types[l.ProductType] = true
		}
		if l.Gender != "" {
			genders[l.Gender] = true
		}
		for _, s := range l.SizeGroups {
			sizeGroups[s] = true
		}
	}
	for shop := range shops {
		facets.Shops = append(facets.Shops, shop)
	}
	sort.Slice(facets.Shops, func(i, j int) bool { return facets.Shops[i] < facets.Shops[j] })
	facets.Categories = sortedKeys(categories)
	facets.Types = sortedKeys(types)
	facets.Genders = sortedKeys(genders)
	facets.SizeGroups = sortedKeys(sizeGroups)
	return facets, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UpsertListing inserts or replaces a listing row.
func (r *MockCatalogRepository) UpsertListing(listing *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = time.Now()
	}
	listing.UpdatedAt = time.Now()
	r.listings[listing.ID] = *listing
	return nil
}

// ArchiveListing flags a listing as archived.
func (r *MockCatalogRepository) ArchiveListing(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	listing.Archived = true
	r.listings[id] = listing
	return nil
}
