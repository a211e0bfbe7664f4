package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fynd/internal/config"
	"fynd/internal/models"
	"fynd/internal/repositories"
)

func TestOpenRepositoryMemoryDriver(t *testing.T) {
	repo, err := openRepository(&config.Config{DatabaseDriver: "memory"})
	require.NoError(t, err)
	_, ok := repo.(*repositories.MockCatalogRepository)
	assert.True(t, ok)
}

func TestAppSmokeOverMemoryStore(t *testing.T) {
	repo := repositories.NewMockCatalogRepository()
	require.NoError(t, repo.UpsertListing(&models.Listing{
		ID: 1, Title: "Merino Sweater", ShopID: 2, InStock: true, MinPrice: fp(45),
	}))

	cfg := &config.Config{PricingFlushDelay: 5 * time.Millisecond}
	app, aggregator := NewApp(cfg, repo, nil, nil)
	defer aggregator.Stop()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// No admin secret configured: the operator API reports itself unavailable.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/admin/pricing/cache", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
