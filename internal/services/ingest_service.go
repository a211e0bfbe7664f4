package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"fynd/internal/models"
	"fynd/internal/repositories"
)

// Listing event actions emitted by the shop scrapers.
const (
	ListingEventUpsert  = "upsert"
	ListingEventArchive = "archive"
)

// ListingEvent is the wire format of a scraper catalog event.
type ListingEvent struct {
	Action    string          `json:"action" validate:"required,oneof=upsert archive"`
	ListingID uint64          `json:"listing_id"`
	Listing   *models.Listing `json:"listing,omitempty"`
}

// IngestService applies scraper catalog events to the listing view.
type IngestService struct {
	repo     repositories.CatalogRepository
	validate *validator.Validate
}

// NewIngestService creates a new IngestService.
func NewIngestService(repo repositories.CatalogRepository) *IngestService {
	return &IngestService{
		repo:     repo,
		validate: validator.New(),
	}
}

// HandleDelivery processes one catalog event message. A returned error nacks
// the message; malformed payloads are dropped with a log line instead, since
// redelivery cannot fix them.
func (s *IngestService) HandleDelivery(msg amqp.Delivery) error {
	var event ListingEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		zap.L().Warn("dropping malformed catalog event",
			zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(err))
		return nil
	}
	if err := s.validate.Struct(event); err != nil {
		zap.L().Warn("dropping invalid catalog event",
			zap.String("action", event.Action), zap.Error(err))
		return nil
	}

	switch event.Action {
	case ListingEventUpsert:
		if event.Listing == nil {
			zap.L().Warn("dropping upsert event without listing payload")
			return nil
		}
		if err := s.validate.Struct(event.Listing); err != nil {
			zap.L().Warn("dropping upsert event with invalid listing",
				zap.Uint64("listing_id", event.Listing.ID), zap.Error(err))
			return nil
		}
		if err := s.repo.UpsertListing(event.Listing); err != nil {
			return fmt.Errorf("failed to ingest listing %d: %w", event.Listing.ID, err)
		}
		zap.L().Info("ingested listing",
			zap.Uint64("listing_id", event.Listing.ID),
			zap.Int64("shop_id", event.Listing.ShopID))
	case ListingEventArchive:
		if err := s.repo.ArchiveListing(event.ListingID); err != nil {
			if errors.Is(err, repositories.ErrListingNotFound) {
				// Already gone; archiving is idempotent from the scraper's view.
				return nil
			}
			return fmt.Errorf("failed to archive listing %d: %w", event.ListingID, err)
		}
		zap.L().Info("archived listing", zap.Uint64("listing_id", event.ListingID))
	}
	return nil
}
