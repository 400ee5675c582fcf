package dashboard

import (
	"strings"

	"github.com/todaytrend/trend-dashboard/internal/models"
)

// CategoryAll selects every post in FilterByCategory
const CategoryAll = "all"

// FilterByCategory returns the current posts displayed under category.
// An empty category or "all" returns every post.
func (s *Store) FilterByCategory(category string) []models.Post {
	return FilterPosts(s.Snapshot().Posts, category)
}

// CategoryCounts counts the current posts per category
func (s *Store) CategoryCounts() map[models.Category]int {
	return CountCategories(s.Snapshot().Posts)
}

// FilterPosts keeps the posts displayed under category, matching case-insensitively
func FilterPosts(posts []models.Post, category string) []models.Post {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" || category == CategoryAll {
		return posts
	}

	wanted := models.NormalizeCategory(category)
	filtered := make([]models.Post, 0, len(posts))
	for _, post := range posts {
		if post.HasCategory(wanted) {
			filtered = append(filtered, post)
		}
	}
	return filtered
}

// CountCategories counts posts per category; a post with several categories
// is counted once in each. Every known category is present.
func CountCategories(posts []models.Post) map[models.Category]int {
	counts := make(map[models.Category]int, len(models.Categories))
	for _, c := range models.Categories {
		counts[c] = 0
	}

	for _, post := range posts {
		for _, c := range post.DisplayCategories() {
			counts[c]++
		}
	}
	return counts
}
