package domain

// GlobalSetting applies a markup to every offer no other tier claims
type GlobalSetting struct {
	MarkupPercentage float64 `json:"markupPercentage"`
}

// CategorySetting overrides the global markup for a category and its descendants
type CategorySetting struct {
	CategoryID       string   `json:"categoryId" validate:"required"`
	IsApplied        bool     `json:"isApplied"`
	MarkupPercentage *float64 `json:"markupPercentage,omitempty"`
}

// OfferSetting pins the new price of a single offer
type OfferSetting struct {
	OfferID   string   `json:"offerId" validate:"required"`
	IsApplied bool     `json:"isApplied"`
	NewPrice  *float64 `json:"newPrice,omitempty"`
}

// MarkupSettings is the layered input of a resolution run. Every layer is optional.
type MarkupSettings struct {
	Global           *GlobalSetting    `json:"globalSettings,omitempty"`
	CategorySettings []CategorySetting `json:"categorySettings,omitempty" validate:"dive"`
	OfferSettings    []OfferSetting    `json:"offerSettings,omitempty" validate:"dive"`
}

// OfferChange is the resolved price change of one offer.
// OldPrice is nil when the source offer had no discount baseline.
type OfferChange struct {
	OfferID  string   `json:"offerId"`
	NewPrice float64  `json:"newPrice"`
	OldPrice *float64 `json:"oldPrice"`
}

// OfferChangeResult is the remote outcome for one offer change
type OfferChangeResult struct {
	OfferID   string `json:"offerId"`
	IsSuccess bool   `json:"isSuccess"`
}

// CountSuccessful returns how many results succeeded
func CountSuccessful(results []OfferChangeResult) int {
	n := 0
	for _, r := range results {
		if r.IsSuccess {
			n++
		}
	}
	return n
}
