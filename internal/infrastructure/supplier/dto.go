package supplier

import "catalog_sync/internal/domain/entity"

// productSchema mirrors the supplier's product payload.
type productSchema struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Platform          string        `json:"platform"`
	RegionLimitations string        `json:"region_limitations"`
	Offers            []offerSchema `json:"offers"`
}

// offerSchema tolerates every availability field name the supplier API has
// used over the years. Normalization into the canonical Offer shape happens
// here and nowhere else.
type offerSchema struct {
	Price float64 `json:"price"`

	// Quantity-style fields, newest first.
	Quantity   *int `json:"quantity,omitempty"`
	Qty        *int `json:"qty,omitempty"`
	StockCount *int `json:"stock_count,omitempty"`

	// Boolean-style fields.
	IsAvailable *bool `json:"is_available,omitempty"`
	InStock     *bool `json:"in_stock,omitempty"`
}

func (s productSchema) toDomain() entity.SourceProduct {
	offers := make([]entity.Offer, 0, len(s.Offers))
	for _, offer := range s.Offers {
		offers = append(offers, offer.toDomain())
	}

	return entity.SourceProduct{
		SupplierID:  s.ID,
		Name:        s.Name,
		Platform:    s.Platform,
		RegionLimit: s.RegionLimitations,
		Offers:      offers,
	}
}

func (s offerSchema) toDomain() entity.Offer {
	return entity.Offer{
		Price:     s.Price,
		Available: s.available(),
	}
}

func (s offerSchema) available() bool {
	for _, flag := range []*bool{s.IsAvailable, s.InStock} {
		if flag != nil {
			return *flag
		}
	}

	for _, count := range []*int{s.Quantity, s.Qty, s.StockCount} {
		if count != nil {
			return *count > 0
		}
	}

	return false
}
