package locale

import "github.com/closet/internal/comfort"

var categoryLabels = map[comfort.Category][2]string{
	comfort.Outerwear: {"ジャケット/アウター", "Jackets & outerwear"},
	comfort.Tops:      {"トップス", "Tops"},
	comfort.Pants:     {"パンツ", "Pants"},
	comfort.Skirt:     {"スカート", "Skirts"},
	comfort.OnePiece:  {"ワンピース/ドレス", "One-pieces & dresses"},
	comfort.Other:     {"その他", "Other"},
}

// CategoryLabel returns the display name of a category. Unknown categories are shown as stored.
func CategoryLabel(language string, category comfort.Category) string {
	labels, ok := categoryLabels[category]
	if !ok {
		return string(category)
	}
	if NormalizeLanguage(language) == LanguageEnglish {
		return labels[1]
	}
	return labels[0]
}
