package services

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"fynd/internal/models"
	"fynd/internal/repositories"
	"fynd/pkg/rabbitmq"
)

// CatalogService handles the storefront's read side of the catalog.
type CatalogService struct {
	repo     repositories.CatalogRepository
	mqClient *rabbitmq.Client
}

// NewCatalogService creates a new CatalogService. The RabbitMQ client may be
// nil, in which case listing updates are not announced to downstream
// consumers.
func NewCatalogService(repo repositories.CatalogRepository, mqClient *rabbitmq.Client) *CatalogService {
	return &CatalogService{
		repo:     repo,
		mqClient: mqClient,
	}
}

// ListListings runs the filter query for the given criteria. The criteria are
// normalized before composition so callers can pass raw request values.
func (s *CatalogService) ListListings(criteria models.FilterCriteria) ([]models.Listing, error) {
	criteria.Normalize()
	return s.repo.QueryListings(criteria)
}

// GetListing retrieves a single listing by its id. Returns
// repositories.ErrListingNotFound when no row matches.
func (s *CatalogService) GetListing(id uint64) (*models.Listing, error) {
	return s.repo.GetListingByID(id)
}

// ListVariants retrieves the variants of a listing for the detail view.
func (s *CatalogService) ListVariants(productID uint64) ([]models.Variant, error) {
	return s.repo.ListVariants(productID)
}

// Facets retrieves the distinct filter values for the storefront filter UI.
func (s *CatalogService) Facets() (*models.CatalogFacets, error) {
	return s.repo.ListFacets()
}

// SaveListing upserts a listing row (admin backfill path) and announces the
// change to downstream consumers. A failed publish never fails the save.
func (s *CatalogService) SaveListing(listing *models.Listing) error {
	if err := s.repo.UpsertListing(listing); err != nil {
		return fmt.Errorf("failed to save listing: %w", err)
	}

	if s.mqClient != nil {
		body, err := json.Marshal(map[string]interface{}{
			"listing_id": listing.ID,
			"shop_id":    listing.ShopID,
		})
		if err != nil {
			zap.L().Warn("failed to marshal listing update event", zap.Error(err))
			return nil
		}
		if err := s.mqClient.Publish(rabbitmq.CatalogExchange, rabbitmq.ListingUpdatedKey, body); err != nil {
			zap.L().Warn("failed to publish listing update event",
				zap.Uint64("listing_id", listing.ID), zap.Error(err))
		}
	}
	return nil
}

// ArchiveListing hides a listing from the storefront.
func (s *CatalogService) ArchiveListing(id uint64) error {
	return s.repo.ArchiveListing(id)
}
