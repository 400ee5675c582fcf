package models

// Category is a content label assigned by the collector
type Category string

const (
	CategoryPsychology Category = "psychology"
	CategoryGame       Category = "game"
	CategoryMeme       Category = "meme"
	CategoryTrend      Category = "trend"
	CategoryGeneral    Category = "general"
)

// Categories lists the closed vocabulary in display order
var Categories = []Category{
	CategoryPsychology,
	CategoryGame,
	CategoryMeme,
	CategoryTrend,
	CategoryGeneral,
}

// NormalizeCategory maps unknown labels to CategoryGeneral
func NormalizeCategory(label string) Category {
	switch c := Category(label); c {
	case CategoryPsychology, CategoryGame, CategoryMeme, CategoryTrend, CategoryGeneral:
		return c
	default:
		return CategoryGeneral
	}
}

// IsKnownCategory reports whether label is part of the vocabulary
func IsKnownCategory(label string) bool {
	for _, c := range Categories {
		if string(c) == label {
			return true
		}
	}
	return false
}

// DisplayCategories returns the normalized, de-duplicated categories of a post.
// A post without labels is treated as general.
func (p Post) DisplayCategories() []Category {
	if len(p.ContentCategories) == 0 {
		return []Category{CategoryGeneral}
	}

	seen := make(map[Category]bool)
	var categories []Category
	for _, label := range p.ContentCategories {
		c := NormalizeCategory(label)
		if !seen[c] {
			seen[c] = true
			categories = append(categories, c)
		}
	}
	return categories
}

// HasCategory reports whether the post displays under c
func (p Post) HasCategory(c Category) bool {
	for _, own := range p.DisplayCategories() {
		if own == c {
			return true
		}
	}
	return false
}
