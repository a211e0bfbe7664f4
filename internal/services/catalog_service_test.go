package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fynd/internal/models"
	"fynd/internal/repositories"
	"fynd/internal/services"
)

func TestListListingsNormalizesCriteria(t *testing.T) {
	store := new(storeMock)
	store.On("QueryListings", mock.MatchedBy(func(c models.FilterCriteria) bool {
		// The service hands the repo normalized criteria: clamped bounds,
		// cleaned labels, defaulted sort.
		return c.MinPrice == models.PriceFloor &&
			c.MaxPrice == models.PriceCeiling &&
			c.Sort == models.SortDiscountDesc &&
			len(c.SizeGroups) == 1 && c.SizeGroups[0] == "XS"
	})).Return([]models.Listing{{ID: 1}}, nil).Once()

	svc := services.NewCatalogService(store, nil)
	criteria := models.NewFilterCriteria()
	criteria.MinPrice = -10
	criteria.MaxPrice = 9000
	criteria.Sort = models.SortOrder("bogus")
	criteria.SizeGroups = []string{" XS ", ""}

	listings, err := svc.ListListings(criteria)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, uint64(1), listings[0].ID)
	store.AssertExpectations(t)
}

func TestListListingsPropagatesQueryError(t *testing.T) {
	store := new(storeMock)
	qerr := &repositories.QueryError{Op: "query listings", Err: assert.AnError}
	store.On("QueryListings", mock.Anything).Return(nil, qerr).Once()

	svc := services.NewCatalogService(store, nil)
	_, err := svc.ListListings(models.NewFilterCriteria())

	var got *repositories.QueryError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "query listings", got.Op)
}

func TestGetListingNotFound(t *testing.T) {
	store := new(storeMock)
	store.On("GetListingByID", uint64(42)).Return(nil, repositories.ErrListingNotFound).Once()

	svc := services.NewCatalogService(store, nil)
	_, err := svc.GetListing(42)
	assert.ErrorIs(t, err, repositories.ErrListingNotFound)
}

func TestSaveListingWithoutBrokerStillSaves(t *testing.T) {
	store := new(storeMock)
	listing := &models.Listing{ID: 5, Title: "Wool Coat", ShopID: 2}
	store.On("UpsertListing", listing).Return(nil).Once()

	svc := services.NewCatalogService(store, nil)
	require.NoError(t, svc.SaveListing(listing))
	store.AssertExpectations(t)
}

func TestSaveListingUpsertFailure(t *testing.T) {
	store := new(storeMock)
	listing := &models.Listing{ID: 5, Title: "Wool Coat", ShopID: 2}
	store.On("UpsertListing", listing).Return(assert.AnError).Once()

	svc := services.NewCatalogService(store, nil)
	err := svc.SaveListing(listing)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestFacets(t *testing.T) {
	store := new(storeMock)
	store.On("ListFacets").Return(&models.CatalogFacets{
		Shops:      []int64{2, 5},
		Categories: []string{"Knitwear"},
	}, nil).Once()

	svc := services.NewCatalogService(store, nil)
	facets, err := svc.Facets()
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5}, facets.Shops)
}
