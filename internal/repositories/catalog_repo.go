package repositories

import (
	"errors"
	"fmt"
	"time"

	"fynd/internal/models"
)

// ErrListingNotFound is returned by GetListingByID when no row matches the
// given id. It is a normal outcome, distinct from a query failure.
var ErrListingNotFound = errors.New("listing not found")

// QueryError wraps a store-level failure during a catalog query. It is never
// retried and always propagated to the caller as-is.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("catalog query %q failed: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// CatalogRepository defines the read-mostly data access the storefront needs.
// Listing rows are written only by the ingestion path (scraper events and
// admin backfills).
type CatalogRepository interface {
	// QueryListings executes the filter query composed from the criteria and
	// returns the ordered, limited row set unmodified.
	QueryListings(criteria models.FilterCriteria) ([]models.Listing, error)
	// GetListingByID fetches one row, returning ErrListingNotFound when no
	// row matches.
	GetListingByID(id uint64) (*models.Listing, error)
	// ListVariants returns all variants of one product.
	ListVariants(productID uint64) ([]models.Variant, error)
	// QueryVariantPrices returns the available variant price/compare pairs
	// for the given product ids. Ids that do not parse as positive integers
	// are dropped.
	QueryVariantPrices(productIDs []string) ([]models.VariantPrice, error)
	// QueryActiveOffers returns the promotional offer prices valid at asOf
	// for the given product ids.
	QueryActiveOffers(productIDs []string, asOf time.Time) ([]models.OfferPrice, error)
	// ListFacets returns the distinct filter values over the visible catalog.
	ListFacets() (*models.CatalogFacets, error)
	// UpsertListing inserts or replaces a listing row.
	UpsertListing(listing *models.Listing) error
	// ArchiveListing flags a listing as archived, hiding it from all queries.
	ArchiveListing(id uint64) error
}
