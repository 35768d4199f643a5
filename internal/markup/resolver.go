package markup

import (
	"errors"
	"fmt"
	"strings"

	"prom-markup/internal/domain"

	"github.com/shopspring/decimal"
)

var ErrInvalidSettings = errors.New("invalid markup settings")

var hundred = decimal.NewFromInt(100)

// Resolve computes the price change of every offer claimed by one of the
// settings tiers. An offer setting wins over a category setting found on the
// offer's category or its nearest ancestor, which wins over the global setting.
// A matching setting that is not applied excludes the offer altogether.
func Resolve(offers []domain.Offer, categories []domain.Category, settings domain.MarkupSettings) ([]domain.OfferChange, error) {
	offerSettings := make(map[string]domain.OfferSetting, len(settings.OfferSettings))
	for _, s := range settings.OfferSettings {
		if _, ok := offerSettings[s.OfferID]; !ok {
			offerSettings[s.OfferID] = s
		}
	}

	categorySettings := make(map[string]domain.CategorySetting, len(settings.CategorySettings))
	for _, s := range settings.CategorySettings {
		if _, ok := categorySettings[s.CategoryID]; !ok {
			categorySettings[s.CategoryID] = s
		}
	}

	parents := make(map[string]string, len(categories))
	for _, c := range categories {
		if _, ok := parents[c.ID]; !ok {
			parents[c.ID] = c.ParentID
		}
	}

	changes := []domain.OfferChange{}
	for _, offer := range offers {
		if s, ok := offerSettings[offer.ID]; ok {
			if s.IsApplied && s.NewPrice != nil {
				changes = append(changes, newChange(offer, decimal.NewFromFloat(*s.NewPrice)))
			}
			continue
		}

		if len(categorySettings) > 0 {
			s, found, err := nearestCategorySetting(offer.CategoryID, parents, categorySettings)
			if err != nil {
				return nil, err
			}
			if found {
				if s.IsApplied {
					pct := 0.0
					if s.MarkupPercentage != nil {
						pct = *s.MarkupPercentage
					}
					changes = append(changes, newChange(offer, applyMarkup(offer.Price, pct)))
				}
				continue
			}
		}

		if settings.Global != nil {
			changes = append(changes, newChange(offer, applyMarkup(offer.Price, settings.Global.MarkupPercentage)))
		}
	}

	return changes, nil
}

// nearestCategorySetting walks parent links upward from categoryID and returns
// the first setting found. An id missing from the category list ends the walk.
func nearestCategorySetting(
	categoryID string,
	parents map[string]string,
	settings map[string]domain.CategorySetting,
) (domain.CategorySetting, bool, error) {
	visited := make(map[string]bool)
	id := categoryID

	for id != "" {
		if s, ok := settings[id]; ok {
			return s, true, nil
		}
		if visited[id] {
			return domain.CategorySetting{}, false, fmt.Errorf("%w: category %q", domain.ErrCyclicCategoryGraph, id)
		}
		visited[id] = true

		parentID, ok := parents[id]
		if !ok {
			break
		}
		id = parentID
	}

	return domain.CategorySetting{}, false, nil
}

// applyMarkup returns price increased by pct percent, rounded to a whole unit
// with halves rounded away from zero.
func applyMarkup(price, pct float64) decimal.Decimal {
	return decimal.NewFromFloat(price).
		Mul(hundred.Add(decimal.NewFromFloat(pct))).
		Div(hundred).
		Round(0)
}

// newChange carries the offer's absolute discount over to the new price
func newChange(offer domain.Offer, newPrice decimal.Decimal) domain.OfferChange {
	change := domain.OfferChange{
		OfferID:  offer.ID,
		NewPrice: newPrice.InexactFloat64(),
	}

	if offer.HasDiscount() {
		discount := decimal.NewFromFloat(offer.OldPrice).Sub(decimal.NewFromFloat(offer.Price))
		oldPrice := newPrice.Add(discount).InexactFloat64()
		change.OldPrice = &oldPrice
	}

	return change
}

// ValidateSettings reports applied settings that carry no value and ids that
// appear more than once within a tier.
func ValidateSettings(settings domain.MarkupSettings) error {
	var problems []string

	seenCategories := make(map[string]bool, len(settings.CategorySettings))
	for _, s := range settings.CategorySettings {
		if seenCategories[s.CategoryID] {
			problems = append(problems, fmt.Sprintf("category %q is set more than once", s.CategoryID))
		}
		seenCategories[s.CategoryID] = true

		if s.IsApplied && s.MarkupPercentage == nil {
			problems = append(problems, fmt.Sprintf("category %q is applied without a markup percentage", s.CategoryID))
		}
	}

	seenOffers := make(map[string]bool, len(settings.OfferSettings))
	for _, s := range settings.OfferSettings {
		if seenOffers[s.OfferID] {
			problems = append(problems, fmt.Sprintf("offer %q is set more than once", s.OfferID))
		}
		seenOffers[s.OfferID] = true

		if s.IsApplied && s.NewPrice == nil {
			problems = append(problems, fmt.Sprintf("offer %q is applied without a new price", s.OfferID))
		}
		if s.NewPrice != nil && *s.NewPrice < 0 {
			problems = append(problems, fmt.Sprintf("offer %q has a negative price", s.OfferID))
		}
	}

	if settings.Global != nil && settings.Global.MarkupPercentage <= -100 {
		problems = append(problems, "global markup must be greater than -100%")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}
