package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// TagList stores a label set in a single text column, delimited with commas on
// both ends (",xs,s,") so that a single LIKE per label can test membership.
type TagList []string

// Value implements driver.Valuer.
func (t TagList) Value() (driver.Value, error) {
	if len(t) == 0 {
		return "", nil
	}
	return "," + strings.Join(t, ",") + ",", nil
}

// Scan implements sql.Scanner.
func (t *TagList) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*t = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into TagList", value)
	}
	raw = strings.Trim(raw, ",")
	if raw == "" {
		*t = nil
		return nil
	}
	*t = strings.Split(raw, ",")
	return nil
}

// GormDataType tells GORM which column type to migrate for TagList.
func (t TagList) GormDataType() string {
	return "text"
}

// Listing is one row of the denormalized product read view the storefront
// browses. It is produced by the scraper ingestion pipeline and read-only from
// the API's perspective.
type Listing struct {
	ID          uint64   `json:"id" gorm:"primaryKey" validate:"required,gt=0"`
	Title       string   `json:"title" validate:"required,max=300"`
	ShopID      int64    `json:"shop_id" gorm:"index" validate:"required,gt=0"`
	Handle      string   `json:"handle" validate:"omitempty,max=300"`
	ImageURL    string   `json:"image_url" validate:"omitempty,url"`
	InStock     bool     `json:"in_stock"`
	Archived    bool     `json:"archived"`
	OnSale      bool     `json:"on_sale"`
	MinPrice    *float64 `json:"min_price" validate:"omitempty,gte=0"`
	MaxDiscount *float64 `json:"max_discount" validate:"omitempty,gte=0,lte=100"`
	ProductType string   `json:"product_type" validate:"omitempty,max=100"`
	Category    string   `json:"category" validate:"omitempty,max=100"`
	Gender      string   `json:"gender" validate:"omitempty,max=50"`
	SizeGroups  TagList  `json:"size_groups" gorm:"type:text"`
	// SearchText is the precomputed search document (title, shop, category
	// words) the free-text filter matches against.
	SearchText string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Variant is one purchasable variation (usually a size) of a product.
type Variant struct {
	ID             uint64   `json:"id" gorm:"primaryKey"`
	ProductID      uint64   `json:"product_id" gorm:"index"`
	Title          string   `json:"title"`
	Price          float64  `json:"price"`
	CompareAtPrice *float64 `json:"compare_at_price"`
	Available      bool     `json:"available"`
}

// Offer is a time-bounded promotional price for a product.
type Offer struct {
	ID        uint64     `json:"id" gorm:"primaryKey"`
	ProductID uint64     `json:"product_id" gorm:"index"`
	Price     float64    `json:"price"`
	StartsAt  time.Time  `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at"`
}

// VariantPrice is the price projection the pricing lookup works with.
type VariantPrice struct {
	ProductID      string
	Price          float64
	CompareAtPrice *float64
}

// OfferPrice is the offer projection the pricing lookup works with.
type OfferPrice struct {
	ProductID string
	Price     float64
}

// PricingInfo is the resolved pricing for one product. All fields are nil when
// the product had no variants/offers or the bulk lookup failed.
type PricingInfo struct {
	VariantPrice   *float64 `json:"variant_price"`
	CompareAtPrice *float64 `json:"compare_at_price"`
	OfferPrice     *float64 `json:"offer_price"`
}

// CatalogFacets holds the distinct filter values the storefront offers.
type CatalogFacets struct {
	Shops      []int64  `json:"shops"`
	Categories []string `json:"categories"`
	Types      []string `json:"types"`
	Genders    []string `json:"genders"`
	SizeGroups []string `json:"size_groups"`
}
