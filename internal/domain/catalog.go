package domain

import "time"

// Offer is a product entry of a seller feed as of the last successful load.
// OldPrice == 0 means the offer has no discount baseline.
type Offer struct {
	ID              string  `json:"id"`
	CategoryID      string  `json:"categoryId"`
	QuantityInStock int     `json:"quantityInStock"`
	Price           float64 `json:"price"`
	OldPrice        float64 `json:"oldPrice"`
	Name            string  `json:"name"`
}

// HasDiscount reports whether the offer carries a discount baseline
func (o Offer) HasDiscount() bool {
	return o.OldPrice != 0
}

// Category is a node of the feed's category forest. An empty ParentID marks a root.
// NumberOfOffers is derived on load and counts offers in the category and all descendants.
type Category struct {
	ID             string `json:"id"`
	ParentID       string `json:"parentId"`
	Name           string `json:"name"`
	NumberOfOffers int    `json:"numberOfOffers"`
}

// IsRoot reports whether the category has no parent
func (c Category) IsRoot() bool {
	return c.ParentID == ""
}

// CatalogSnapshot holds one parsed feed. It is replaced wholesale on every load.
type CatalogSnapshot struct {
	Offers     []Offer    `json:"offers"`
	Categories []Category `json:"categories"`
	LoadedAt   time.Time  `json:"loadedAt"`
}

// CatalogStats summarizes a loaded catalog
type CatalogStats struct {
	NumberOfProducts   int `json:"numberOfProducts"`
	NumberOfCategories int `json:"numberOfCategories"`
}
