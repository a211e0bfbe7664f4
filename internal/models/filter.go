package models

import (
	"strconv"
	"strings"
)

// SortOrder enumerates the supported listing sort orders.
type SortOrder string

const (
	SortPriceAsc     SortOrder = "price_asc"
	SortPriceDesc    SortOrder = "price_desc"
	SortDiscountDesc SortOrder = "discount_desc"
)

// The price filter operates on a fixed absolute domain. A bound sitting on a
// domain edge means "unbounded" on that side and emits no predicate.
const (
	PriceFloor   = 0.0
	PriceCeiling = 500.0
)

// FilterCriteria describes one listing query: which rows to include, how to
// order them and which page to return. Empty set-valued fields mean "no
// restriction", as does an empty query string.
type FilterCriteria struct {
	ShopIDs    []int64
	SizeGroups []string
	Types      []string
	Categories []string
	Genders    []string
	OnSale     bool
	Query      string
	MinPrice   float64
	MaxPrice   float64
	Sort       SortOrder
	Offset     int
	Limit      int
}

// NewFilterCriteria returns criteria with no restrictions and the full price
// domain.
func NewFilterCriteria() FilterCriteria {
	return FilterCriteria{
		MinPrice: PriceFloor,
		MaxPrice: PriceCeiling,
		Sort:     SortDiscountDesc,
	}
}

// ParseShopIDs converts caller-supplied shop identifier strings to integer
// ids. Entries that are not positive integers are silently dropped so a bad
// value never fails the whole request.
func ParseShopIDs(raw []string) []int64 {
	var ids []int64
	for _, s := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// CleanLabels trims the given labels and drops blank ones.
func CleanLabels(raw []string) []string {
	var labels []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		labels = append(labels, s)
	}
	return labels
}

// Normalize clamps the price bounds to the domain, cleans the label sets,
// trims the query string and defaults unrecognized sort orders.
func (c *FilterCriteria) Normalize() {
	// Both bounds live in the absolute domain; anything outside is clamped
	// before the edge and ordering rules run.
	if c.MinPrice < PriceFloor {
		c.MinPrice = PriceFloor
	}
	if c.MinPrice > PriceCeiling {
		c.MinPrice = PriceCeiling
	}
	if c.MaxPrice < PriceFloor {
		c.MaxPrice = PriceFloor
	}
	if c.MaxPrice > PriceCeiling || c.MaxPrice == 0 {
		c.MaxPrice = PriceCeiling
	}
	if c.MaxPrice < c.MinPrice {
		c.MaxPrice = c.MinPrice
	}
	c.SizeGroups = CleanLabels(c.SizeGroups)
	c.Types = CleanLabels(c.Types)
	c.Categories = CleanLabels(c.Categories)
	c.Genders = CleanLabels(c.Genders)
	c.Query = strings.TrimSpace(c.Query)
	switch c.Sort {
	case SortPriceAsc, SortPriceDesc, SortDiscountDesc:
	default:
		c.Sort = SortDiscountDesc
	}
	if c.Offset < 0 {
		c.Offset = 0
	}
}
