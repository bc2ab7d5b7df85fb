package marketplace

import "catalog_sync/internal/domain/entity"

// itemSchema mirrors the marketplace item payload.
type itemSchema struct {
	ID     string `json:"id"`
	SKU    string `json:"sku"`
	Title  string `json:"title"`
	Price  int64  `json:"price"`
	Status string `json:"status"`
}

func (s itemSchema) toDomain() entity.MarketplaceListing {
	return entity.MarketplaceListing{
		ID:     s.ID,
		SKU:    s.SKU,
		Title:  s.Title,
		Price:  s.Price,
		Status: s.Status,
	}
}

type searchSchema struct {
	Items []itemSchema `json:"items"`
	Total int          `json:"total"`
}

// ItemDraft is the payload for creating a listing.
type ItemDraft struct {
	SKU         string `json:"sku"`
	Title       string `json:"title"`
	Price       int64  `json:"price"`
	ProductType string `json:"product_type,omitempty"`
}

// ItemPatch updates price and title only. Descriptions are managed through
// their own endpoint and are never touched on routine updates.
type ItemPatch struct {
	Price *int64  `json:"price,omitempty"`
	Title *string `json:"title,omitempty"`
}

type statusPatch struct {
	Status string `json:"status"`
}

type descriptionBody struct {
	Description string `json:"description"`
}

type errorSchema struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
