// Package listing builds marketplace listing attributes (title, description,
// product type) from a source product.
package listing

import (
	"strings"

	"catalog_sync/internal/domain/entity"
)

const maxTitleLen = 60

// Builder derives listing attributes. Classification is rule-based keyword
// matching over the product name and platform.
type Builder struct {
	templates map[entity.ProductType]string
}

func NewBuilder() *Builder {
	return &Builder{
		templates: defaultTemplates(),
	}
}

// Build derives the sanitized title, templated description and product type
// for the product. Price is filled in by the caller.
func (b *Builder) Build(product entity.SourceProduct) entity.DerivedListing {
	productType := Classify(product)

	return entity.DerivedListing{
		Title:       Title(product),
		Description: b.description(product, productType),
		ProductType: productType,
	}
}

// Title produces the sanitized listing title, at most 60 characters.
func Title(product entity.SourceProduct) string {
	title := sanitize(product.Name)

	if product.Platform != "" {
		suffix := " (" + sanitize(product.Platform) + ")"
		if len([]rune(title))+len([]rune(suffix)) <= maxTitleLen {
			title += suffix
		}
	}

	if runes := []rune(title); len(runes) > maxTitleLen {
		title = strings.TrimSpace(string(runes[:maxTitleLen]))
	}

	return title
}

// sanitize collapses whitespace and strips characters the marketplace
// rejects in titles.
func sanitize(s string) string {
	var sb strings.Builder

	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			sb.WriteRune(' ')
		case r < 32 || r == '<' || r == '>' || r == '"':
			// skip
		default:
			sb.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}

// Classify maps a product onto a product type via keyword rules. Order
// matters: the most specific rule wins.
func Classify(product entity.SourceProduct) entity.ProductType {
	name := strings.ToLower(product.Name)
	platform := strings.ToLower(product.Platform)

	switch {
	case strings.Contains(name, "gift card") || strings.Contains(name, "giftcard") ||
		strings.Contains(name, "wallet card") || strings.Contains(platform, "gift card"):
		return entity.ProductTypeGiftCard
	case strings.Contains(name, "altergift"):
		return entity.ProductTypeAltergift
	case strings.Contains(name, "dlc") || strings.Contains(name, "expansion") ||
		strings.Contains(name, "season pass"):
		return entity.ProductTypeDLC
	case strings.Contains(name, "gift"):
		return entity.ProductTypeGift
	case strings.Contains(name, "account"):
		return entity.ProductTypeAccount
	default:
		return entity.ProductTypeKey
	}
}

func (b *Builder) description(product entity.SourceProduct, productType entity.ProductType) string {
	template, ok := b.templates[productType]
	if !ok {
		template = b.templates[entity.ProductTypeKey]
	}

	replacer := strings.NewReplacer(
		"{name}", sanitize(product.Name),
		"{platform}", sanitize(product.Platform),
	)

	return strings.TrimSpace(replacer.Replace(template))
}

func defaultTemplates() map[entity.ProductType]string {
	return map[entity.ProductType]string{
		entity.ProductTypeGiftCard: "{name} — digital gift card code, delivered instantly after purchase. " +
			"Redeemable on {platform}.",
		entity.ProductTypeAltergift: "{name} — sent to your account as a gift. " +
			"You will receive the item directly on {platform}; no code is issued.",
		entity.ProductTypeDLC: "{name} — downloadable content for the base game on {platform}. " +
			"The base game is required and is not included.",
		entity.ProductTypeGift: "{name} — delivered as a {platform} gift to the account you provide " +
			"after purchase.",
		entity.ProductTypeAccount: "{name} — account access delivered after purchase. " +
			"Follow the included instructions to secure the account.",
		entity.ProductTypeKey: "{name} — activation key for {platform}, delivered instantly after " +
			"purchase. Activate in your {platform} client to add the product to your library.",
	}
}
