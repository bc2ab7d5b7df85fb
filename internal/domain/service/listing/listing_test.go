package listing_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"catalog_sync/internal/domain/entity"
	"catalog_sync/internal/domain/service/listing"
)

func TestClassify(t *testing.T) {
	rq := require.New(t)

	testCases := []struct {
		name     string
		product  entity.SourceProduct
		expected entity.ProductType
	}{
		{
			name:     "gift card by name",
			product:  entity.SourceProduct{Name: "Steam Gift Card 20 EUR"},
			expected: entity.ProductTypeGiftCard,
		},
		{
			name:     "altergift",
			product:  entity.SourceProduct{Name: "Elden Ring (Altergift)"},
			expected: entity.ProductTypeAltergift,
		},
		{
			name:     "dlc",
			product:  entity.SourceProduct{Name: "Destiny 2: Lightfall DLC", Platform: "Steam"},
			expected: entity.ProductTypeDLC,
		},
		{
			name:     "season pass counts as dlc",
			product:  entity.SourceProduct{Name: "Borderlands 3 Season Pass"},
			expected: entity.ProductTypeDLC,
		},
		{
			name:     "gift",
			product:  entity.SourceProduct{Name: "Cyberpunk 2077 - Steam Gift"},
			expected: entity.ProductTypeGift,
		},
		{
			name:     "account",
			product:  entity.SourceProduct{Name: "Fortnite OG Account"},
			expected: entity.ProductTypeAccount,
		},
		{
			name:     "plain key is the default",
			product:  entity.SourceProduct{Name: "Hades II", Platform: "Steam"},
			expected: entity.ProductTypeKey,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			rq.Equal(tc.expected, listing.Classify(tc.product))
		})
	}
}

func TestTitle(t *testing.T) {
	rq := require.New(t)

	testCases := []struct {
		name     string
		product  entity.SourceProduct
		expected string
	}{
		{
			name:     "short name gets a platform suffix",
			product:  entity.SourceProduct{Name: "Hades II", Platform: "Steam"},
			expected: "Hades II (Steam)",
		},
		{
			name: "long name is cut to sixty characters",
			product: entity.SourceProduct{
				Name: strings.Repeat("Very Long Game Name ", 5),
			},
			expected: strings.TrimSpace(strings.Repeat("Very Long Game Name ", 3)),
		},
		{
			name:     "markup and control characters are stripped",
			product:  entity.SourceProduct{Name: "Game <b>Deluxe</b>\t\"Edition\"\n2024"},
			expected: "Game bDeluxe/b Edition 2024",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			title := listing.Title(tc.product)

			rq.LessOrEqual(len([]rune(title)), 60)
			rq.Equal(tc.expected, title)
		})
	}
}

func TestBuild(t *testing.T) {
	rq := require.New(t)

	builder := listing.NewBuilder()

	derived := builder.Build(entity.SourceProduct{
		Name:     "Hades II",
		Platform: "Steam",
	})

	rq.Equal("Hades II (Steam)", derived.Title)
	rq.Equal(entity.ProductTypeKey, derived.ProductType)
	rq.Contains(derived.Description, "Hades II")
	rq.Contains(derived.Description, "activation key")
	rq.NotContains(derived.Description, "{name}")
	rq.NotContains(derived.Description, "{platform}")
}
