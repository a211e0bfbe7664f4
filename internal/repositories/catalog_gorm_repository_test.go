package repositories_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fynd/internal/models"
	"fynd/internal/repositories"
)

// dryRunDB opens a Postgres-dialect GORM handle that never touches a server,
// so composed SQL can be inspected.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 user=test dbname=test sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func composedSQL(t *testing.T, c models.FilterCriteria) (string, []interface{}) {
	t.Helper()
	var listings []models.Listing
	tx := repositories.ComposeListingQuery(dryRunDB(t), c).Find(&listings)
	return tx.Statement.SQL.String(), tx.Statement.Vars
}

func TestComposeListingQueryBaselineOnly(t *testing.T) {
	c := models.NewFilterCriteria()
	c.Normalize()
	sql, _ := composedSQL(t, c)

	// Baseline predicates only: merchandise, in stock, not archived.
	assert.Contains(t, sql, "product_type NOT IN")
	assert.Contains(t, sql, "in_stock")
	assert.Contains(t, sql, "archived")

	assert.NotContains(t, sql, "shop_id")
	assert.NotContains(t, sql, "size_groups LIKE")
	assert.NotContains(t, sql, "category IN")
	assert.NotContains(t, sql, "gender IN")
	assert.NotContains(t, sql, "on_sale")
	assert.NotContains(t, sql, "min_price >=")
	assert.NotContains(t, sql, "min_price <=")
	assert.NotContains(t, sql, "websearch_to_tsquery")
}

func TestComposeListingQueryPriceDomainEdgesAddNoPredicate(t *testing.T) {
	c := models.NewFilterCriteria()
	c.MinPrice = 0
	c.MaxPrice = 500
	c.Normalize()
	sql, _ := composedSQL(t, c)

	assert.NotContains(t, sql, "min_price >=")
	assert.NotContains(t, sql, "min_price <=")
}

func TestComposeListingQueryPriceRangeInclusive(t *testing.T) {
	c := models.NewFilterCriteria()
	c.MinPrice = 50
	c.MaxPrice = 200
	c.Normalize()
	sql, vars := composedSQL(t, c)

	assert.Contains(t, sql, "min_price >=")
	assert.Contains(t, sql, "min_price <=")
	assert.Contains(t, vars, 50.0)
	assert.Contains(t, vars, 200.0)
}

func TestComposeListingQueryShopFilter(t *testing.T) {
	c := models.NewFilterCriteria()
	c.ShopIDs = models.ParseShopIDs([]string{"3", "abc", "-1", "7"})
	c.Normalize()
	sql, vars := composedSQL(t, c)

	assert.Contains(t, sql, "shop_id IN")
	assert.Contains(t, vars, int64(3))
	assert.Contains(t, vars, int64(7))
	assert.NotContains(t, vars, int64(-1))
}

func TestComposeListingQuerySizeOverlap(t *testing.T) {
	c := models.NewFilterCriteria()
	c.SizeGroups = []string{"XS", "S", "  "}
	c.Normalize()
	sql, vars := composedSQL(t, c)

	assert.Contains(t, sql, "size_groups LIKE")
	assert.Contains(t, sql, " OR ")
	assert.Contains(t, vars, "%,XS,%")
	assert.Contains(t, vars, "%,S,%")
}

func TestComposeListingQueryExactMembershipFilters(t *testing.T) {
	c := models.NewFilterCriteria()
	c.Types = []string{"Sweater"}
	c.Categories = []string{"Knitwear"}
	c.Genders = []string{"women"}
	c.OnSale = true
	c.Normalize()
	sql, vars := composedSQL(t, c)

	assert.Contains(t, sql, "product_type IN")
	assert.Contains(t, sql, "category IN")
	assert.Contains(t, sql, "gender IN")
	assert.Contains(t, sql, "on_sale")
	assert.Contains(t, vars, "Sweater")
	assert.Contains(t, vars, "Knitwear")
	assert.Contains(t, vars, "women")
}

func TestComposeListingQueryFreeTextUsesWebSearchGrammar(t *testing.T) {
	c := models.NewFilterCriteria()
	c.Query = `"wool coat" OR parka`
	c.Normalize()
	sql, vars := composedSQL(t, c)

	assert.Contains(t, sql, "websearch_to_tsquery")
	assert.Contains(t, vars, `"wool coat" OR parka`)
}

func TestComposeListingQuerySortClauses(t *testing.T) {
	for sort, want := range map[models.SortOrder][]string{
		models.SortPriceAsc:     {"min_price ASC", "id DESC"},
		models.SortPriceDesc:    {"min_price DESC NULLS LAST", "id DESC"},
		models.SortDiscountDesc: {"max_discount DESC NULLS LAST", "created_at DESC", "id DESC"},
	} {
		c := models.NewFilterCriteria()
		c.Sort = sort
		c.Normalize()
		sql, _ := composedSQL(t, c)
		for _, fragment := range want {
			assert.Contains(t, sql, fragment, "sort %s", sort)
		}
	}
}

func TestComposeListingQueryPagination(t *testing.T) {
	c := models.NewFilterCriteria()
	c.Offset = 48
	c.Limit = 25
	c.Normalize()
	sql, _ := composedSQL(t, c)

	assert.Contains(t, sql, "LIMIT")
	assert.Contains(t, sql, "OFFSET")
}

// --- sqlite-backed behavior ---

var testDBSeq int

func testRepo(t *testing.T) (*repositories.GORMCatalogRepository, *gorm.DB) {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:catalogtest%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Listing{}, &models.Variant{}, &models.Offer{}))
	return repositories.NewGORMCatalogRepository(db), db
}

func price(v float64) *float64 { return &v }

func seedListing(t *testing.T, repo *repositories.GORMCatalogRepository, l models.Listing) {
	t.Helper()
	if l.Title == "" {
		l.Title = fmt.Sprintf("Listing %d", l.ID)
	}
	if l.ShopID == 0 {
		l.ShopID = 1
	}
	require.NoError(t, repo.UpsertListing(&l))
}

func TestQueryListingsPriceAscTieBreak(t *testing.T) {
	repo, _ := testRepo(t)
	seedListing(t, repo, models.Listing{ID: 1, InStock: true, MinPrice: price(10)})
	seedListing(t, repo, models.Listing{ID: 2, InStock: true, MinPrice: price(10)})
	seedListing(t, repo, models.Listing{ID: 3, InStock: true, MinPrice: price(5)})

	c := models.NewFilterCriteria()
	c.Sort = models.SortPriceAsc
	c.Normalize()
	listings, err := repo.QueryListings(c)
	require.NoError(t, err)
	require.Len(t, listings, 3)

	// Ascending price, then id descending on ties.
	assert.Equal(t, uint64(3), listings[0].ID)
	assert.Equal(t, uint64(2), listings[1].ID)
	assert.Equal(t, uint64(1), listings[2].ID)
}

func TestQueryListingsBaselineExclusions(t *testing.T) {
	repo, _ := testRepo(t)
	seedListing(t, repo, models.Listing{ID: 1, InStock: true, MinPrice: price(20)})
	seedListing(t, repo, models.Listing{ID: 2, InStock: false, MinPrice: price(20)})
	seedListing(t, repo, models.Listing{ID: 3, InStock: true, Archived: true, MinPrice: price(20)})
	seedListing(t, repo, models.Listing{ID: 4, InStock: true, ProductType: "Insurance", MinPrice: price(20)})

	c := models.NewFilterCriteria()
	c.Normalize()
	listings, err := repo.QueryListings(c)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, uint64(1), listings[0].ID)
}

func TestQueryListingsSizeOverlapNotSubset(t *testing.T) {
	repo, _ := testRepo(t)
	seedListing(t, repo, models.Listing{ID: 1, InStock: true, SizeGroups: models.TagList{"XS", "S"}})
	seedListing(t, repo, models.Listing{ID: 2, InStock: true, SizeGroups: models.TagList{"L"}})

	c := models.NewFilterCriteria()
	c.SizeGroups = []string{"S", "M"}
	c.Normalize()
	listings, err := repo.QueryListings(c)
	require.NoError(t, err)
	// Listing 1 shares only "S" with the filter; overlap is enough.
	require.Len(t, listings, 1)
	assert.Equal(t, uint64(1), listings[0].ID)
}

func TestGetListingByIDNotFound(t *testing.T) {
	repo, _ := testRepo(t)
	seedListing(t, repo, models.Listing{ID: 1, InStock: true})

	listing, err := repo.GetListingByID(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), listing.ID)

	_, err = repo.GetListingByID(99)
	assert.ErrorIs(t, err, repositories.ErrListingNotFound)
}

func TestQueryVariantPrices(t *testing.T) {
	repo, db := testRepo(t)
	seedListing(t, repo, models.Listing{ID: 7, InStock: true})
	require.NoError(t, db.Create(&models.Variant{ID: 1, ProductID: 7, Title: "S", Price: 30, Available: true}).Error)
	require.NoError(t, db.Create(&models.Variant{ID: 2, ProductID: 7, Title: "M", Price: 25, CompareAtPrice: price(40), Available: true}).Error)
	require.NoError(t, db.Create(&models.Variant{ID: 3, ProductID: 7, Title: "L", Price: 10, Available: false}).Error)

	prices, err := repo.QueryVariantPrices([]string{"7", "abc", ""})
	require.NoError(t, err)
	require.Len(t, prices, 2) // unavailable variant excluded
	for _, p := range prices {
		assert.Equal(t, "7", p.ProductID)
	}

	// Nothing parseable means no store roundtrip and no rows.
	prices, err = repo.QueryVariantPrices([]string{"abc"})
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestQueryActiveOffers(t *testing.T) {
	repo, db := testRepo(t)
	now := time.Now()
	expired := now.Add(-time.Hour)
	require.NoError(t, db.Create(&models.Offer{ID: 1, ProductID: 7, Price: 19, StartsAt: now.Add(-time.Hour)}).Error)
	require.NoError(t, db.Create(&models.Offer{ID: 2, ProductID: 7, Price: 9, StartsAt: now.Add(-2 * time.Hour), EndsAt: &expired}).Error)
	require.NoError(t, db.Create(&models.Offer{ID: 3, ProductID: 7, Price: 5, StartsAt: now.Add(time.Hour)}).Error)

	offers, err := repo.QueryActiveOffers([]string{"7"}, now)
	require.NoError(t, err)
	require.Len(t, offers, 1) // expired and future offers excluded
	assert.Equal(t, 19.0, offers[0].Price)
	assert.Equal(t, "7", offers[0].ProductID)
}

func TestArchiveListing(t *testing.T) {
	repo, _ := testRepo(t)
	seedListing(t, repo, models.Listing{ID: 1, InStock: true})

	require.NoError(t, repo.ArchiveListing(1))
	c := models.NewFilterCriteria()
	c.Normalize()
	listings, err := repo.QueryListings(c)
	require.NoError(t, err)
	assert.Empty(t, listings)

	assert.ErrorIs(t, repo.ArchiveListing(42), repositories.ErrListingNotFound)
}

func TestListFacets(t *testing.T) {
	repo, _ := testRepo(t)
	seedListing(t, repo, models.Listing{ID: 1, ShopID: 2, InStock: true, Category: "Knitwear", ProductType: "Sweater", Gender: "women", SizeGroups: models.TagList{"S", "M"}})
	seedListing(t, repo, models.Listing{ID: 2, ShopID: 5, InStock: true, Category: "Outerwear", ProductType: "Coat", Gender: "men", SizeGroups: models.TagList{"M", "L"}})
	seedListing(t, repo, models.Listing{ID: 3, ShopID: 9, InStock: false, Category: "Hidden", ProductType: "Socks"})

	facets, err := repo.ListFacets()
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5}, facets.Shops)
	assert.Equal(t, []string{"Knitwear", "Outerwear"}, facets.Categories)
	assert.Equal(t, []string{"Coat", "Sweater"}, facets.Types)
	assert.Equal(t, []string{"men", "women"}, facets.Genders)
	assert.Equal(t, []string{"L", "M", "S"}, facets.SizeGroups)
}
