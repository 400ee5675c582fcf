package models

import (
	"encoding/json"
	"strings"
	"time"
)

// PostIDPrefix namespaces collected posts inside the shared database
const PostIDPrefix = "twitter:"

// Post represents a collected social-media post document
type Post struct {
	ID                    string            `json:"_id"`
	Rev                   string            `json:"_rev,omitempty"` // changes on every mutation
	Platform              string            `json:"platform"`
	URL                   *string           `json:"url"`
	TextContent           string            `json:"text_content"`
	AuthorID              string            `json:"author_id"`
	AuthorName            string            `json:"author_name"`
	AuthorUsername        string            `json:"author_username"`
	AuthorProfileImageURL *string           `json:"author_profile_image_url"`
	CreatedAt             Timestamp         `json:"created_at"`
	CollectedAt           Timestamp         `json:"collected_at"`
	Media                 []MediaItem       `json:"media"`
	Hashtags              []string          `json:"hashtags"`
	Mentions              []string          `json:"mentions"`
	EngagementMetrics     EngagementMetrics `json:"engagement_metrics"`
	Location              *Location         `json:"location"`
	Language              string            `json:"language"`
	IsSensitiveContent    bool              `json:"is_sensitive_content"`
	ContentCategories     []string          `json:"content_categories"`
	RawData               json.RawMessage   `json:"raw_data,omitempty"` // provenance payload, kept as received
}

// Author identifies who wrote a post
type Author struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Username        string  `json:"username"`
	ProfileImageURL *string `json:"profile_image_url,omitempty"`
}

// MediaItem is a single attachment of a post
type MediaItem struct {
	Type         string  `json:"type"`
	URL          *string `json:"url"`
	ThumbnailURL *string `json:"thumbnail_url"`
}

// EngagementMetrics holds the counters reported by the platform
type EngagementMetrics struct {
	LikesCount    int  `json:"likes_count"`
	CommentsCount int  `json:"comments_count"`
	SharesCount   int  `json:"shares_count"`
	ViewsCount    int  `json:"views_count"`
	QuoteCount    *int `json:"quote_count,omitempty"`
}

// Location is an optional geotag
type Location struct {
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Author returns the author fields grouped together
func (p Post) Author() Author {
	return Author{
		ID:              p.AuthorID,
		Name:            p.AuthorName,
		Username:        p.AuthorUsername,
		ProfileImageURL: p.AuthorProfileImageURL,
	}
}

// HasHashtagContaining reports whether any hashtag contains term, ignoring case
func (p Post) HasHashtagContaining(term string) bool {
	needle := strings.ToLower(term)
	for _, tag := range p.Hashtags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// IsPostID reports whether a document id belongs to the post namespace
func IsPostID(id string) bool {
	return strings.HasPrefix(id, PostIDPrefix)
}

// Digest summarizes the latest keyword analysis for notifications
type Digest struct {
	GeneratedAt   time.Time        `json:"generated_at"`
	Period        string           `json:"period"` // "daily", "weekly" or "manual"
	AnalysisDate  time.Time        `json:"analysis_date"`
	TotalPosts    int              `json:"total_posts"`
	AnalyzedPosts int              `json:"analyzed_posts"`
	DaysAnalyzed  int              `json:"days_analyzed"`
	TopKeywords   []TermCount      `json:"top_keywords"`
	TopHashtags   []TermCount      `json:"top_hashtags"`
	Engagement    []EngagementRank `json:"engagement"`
}
