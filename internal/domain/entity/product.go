package entity

// SourceProduct is the supplier catalog's view of one product.
type SourceProduct struct {
	SupplierID  string  `json:"supplier_id"`
	Name        string  `json:"name"`
	Platform    string  `json:"platform"`
	RegionLimit string  `json:"region_limit"`
	Offers      []Offer `json:"offers"`
}

// Offer is the canonical offer shape. The supplier payload historically used
// several field names for availability; the supplier client normalizes them
// into this one at ingestion.
type Offer struct {
	Price     float64 `json:"price"`
	Available bool    `json:"available"`
}

func (o Offer) Valid() bool {
	return o.Price > 0 && o.Available
}

// BestOffer returns the lowest-price valid offer.
func (p SourceProduct) BestOffer() (Offer, bool) {
	var (
		best  Offer
		found bool
	)

	for _, offer := range p.Offers {
		if !offer.Valid() {
			continue
		}

		if !found || offer.Price < best.Price {
			best = offer
			found = true
		}
	}

	return best, found
}

// HasValidOffer reports whether at least one offer is sellable.
func (p SourceProduct) HasValidOffer() bool {
	_, ok := p.BestOffer()
	return ok
}
