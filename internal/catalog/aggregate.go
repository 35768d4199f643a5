package catalog

import (
	"fmt"

	"prom-markup/internal/domain"
)

// categoryIndex holds the parent/child and offer lookups shared by the count functions
type categoryIndex struct {
	children map[string][]string
	direct   map[string]int
}

func newCategoryIndex(categories []domain.Category, offers []domain.Offer) *categoryIndex {
	idx := &categoryIndex{
		children: make(map[string][]string, len(categories)),
		direct:   make(map[string]int, len(categories)),
	}
	for _, c := range categories {
		if c.ParentID != "" {
			idx.children[c.ParentID] = append(idx.children[c.ParentID], c.ID)
		}
	}
	for _, o := range offers {
		idx.direct[o.CategoryID]++
	}
	return idx
}

// count walks the subtree below id. onPath tracks the ids of the current
// recursion chain; meeting one again means the parent links form a cycle.
func (idx *categoryIndex) count(id string, onPath map[string]bool, memo map[string]int) (int, error) {
	if n, ok := memo[id]; ok {
		return n, nil
	}
	if onPath[id] {
		return 0, fmt.Errorf("%w: category %q", domain.ErrCyclicCategoryGraph, id)
	}

	onPath[id] = true
	defer delete(onPath, id)

	total := idx.direct[id]
	for _, childID := range idx.children[id] {
		n, err := idx.count(childID, onPath, memo)
		if err != nil {
			return 0, err
		}
		total += n
	}

	if memo != nil {
		memo[id] = total
	}
	return total, nil
}

// ComputeOfferCount returns the offers assigned directly to categoryID plus
// those of every descendant category.
func ComputeOfferCount(categories []domain.Category, offers []domain.Offer, categoryID string) (int, error) {
	idx := newCategoryIndex(categories, offers)
	return idx.count(categoryID, make(map[string]bool), nil)
}

// AggregateOfferCounts returns a copy of categories with NumberOfOffers filled in.
// Each subtree is counted once, so the whole feed costs a single pass.
func AggregateOfferCounts(categories []domain.Category, offers []domain.Offer) ([]domain.Category, error) {
	idx := newCategoryIndex(categories, offers)
	memo := make(map[string]int, len(categories))

	result := make([]domain.Category, len(categories))
	for i, c := range categories {
		n, err := idx.count(c.ID, make(map[string]bool), memo)
		if err != nil {
			return nil, err
		}
		c.NumberOfOffers = n
		result[i] = c
	}
	return result, nil
}
