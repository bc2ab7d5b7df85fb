package entity

// ProductType is the rule-based classification of a source product, used to
// pick the listing description template.
type ProductType string

const (
	ProductTypeGiftCard  ProductType = "gift-card"
	ProductTypeAltergift ProductType = "altergift"
	ProductTypeDLC       ProductType = "dlc"
	ProductTypeGift      ProductType = "gift"
	ProductTypeAccount   ProductType = "account"
	ProductTypeKey       ProductType = "key"
)

// DerivedListing is the marketplace listing derived from a source product.
type DerivedListing struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Price       int64       `json:"price"`
	ProductType ProductType `json:"product_type"`
}

// MarketplaceListing is the live state of a listing on the marketplace.
type MarketplaceListing struct {
	ID     string `json:"id"`
	SKU    string `json:"sku"`
	Title  string `json:"title"`
	Price  int64  `json:"price"`
	Status string `json:"status"`
}

func (l MarketplaceListing) Active() bool {
	return l.Status == "active"
}
