package models

import (
	"fmt"
	"time"
)

// Pillar is a content pillar used to scope voices, learnings, and generation.
type Pillar string

const (
	PillarMarketCommentary Pillar = "market_commentary"
	PillarEducation        Pillar = "education"
	PillarProduct          Pillar = "product"
	PillarSocialProof      Pillar = "social_proof"
)

// Pillars lists every valid pillar.
var Pillars = []Pillar{
	PillarMarketCommentary,
	PillarEducation,
	PillarProduct,
	PillarSocialProof,
}

func ParsePillar(s string) (Pillar, error) {
	for _, p := range Pillars {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown pillar %q", s)
}

// Category classifies a monitored source.
type Category string

const (
	CategoryNigeria     Category = "nigeria"
	CategoryArgentina   Category = "argentina"
	CategoryColombia    Category = "colombia"
	CategoryGlobalMacro Category = "global_macro"
	CategoryCryptoDefi  Category = "crypto_defi"
	CategoryReplyTarget Category = "reply_target"
)

var Categories = []Category{
	CategoryNigeria,
	CategoryArgentina,
	CategoryColombia,
	CategoryGlobalMacro,
	CategoryCryptoDefi,
	CategoryReplyTarget,
}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// RelevanceType classifies a scored item.
type RelevanceType string

const (
	RelevanceNews             RelevanceType = "news"
	RelevanceReplyOpportunity RelevanceType = "reply_opportunity"
	RelevanceSkip             RelevanceType = "skip"
)

// SourceType namespaces external ids in the dedup store.
type SourceType string

const (
	SourceTwitter SourceType = "twitter"
	SourceRSS     SourceType = "rss"
)

// ValidPriority reports whether p is one of the three priority tiers.
func ValidPriority(p int) bool {
	return p >= 1 && p <= 3
}

// MonitoredAccount is a Twitter account being polled for signals.
// Accounts are never deleted, only deactivated.
type MonitoredAccount struct {
	ID               string     `json:"id"`
	TwitterHandle    string     `json:"twitter_handle"`
	TwitterID        string     `json:"twitter_id,omitempty"`
	Category         Category   `json:"category"`
	Subcategory      string     `json:"subcategory,omitempty"`
	Priority         int        `json:"priority"`
	FollowerCount    int        `json:"follower_count,omitempty"`
	IsVoiceReference bool       `json:"is_voice_reference"`
	VoicePillars     []Pillar   `json:"voice_pillars,omitempty"`
	IsActive         bool       `json:"is_active"`
	LastTweetID      string     `json:"last_tweet_id,omitempty"`
	LastCheckedAt    *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// RSSSource is a feed being polled for signals. Keywords, when set,
// pre-filter items before any scoring: an item mentioning none of them is
// skipped.
type RSSSource struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Category      Category   `json:"category"`
	Subcategory   string     `json:"subcategory,omitempty"`
	Keywords      []string   `json:"keywords,omitempty"`
	Priority      int        `json:"priority"`
	IsActive      bool       `json:"is_active"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Tweet is a fetched tweet plus its relevance scoring.
// The raw fields are immutable once stored; Notified and Actioned are the
// only mutable flags.
type Tweet struct {
	ID               string        `json:"id"`
	TweetID          string        `json:"tweet_id"`
	AccountID        string        `json:"account_id"`
	AccountHandle    string        `json:"account_handle"`
	Content          string        `json:"content"`
	TweetCreatedAt   *time.Time    `json:"tweet_created_at,omitempty"`
	FetchedAt        time.Time     `json:"fetched_at"`
	RelevanceScore   float64       `json:"relevance_score"`
	RelevanceType    RelevanceType `json:"relevance_type"`
	SuggestedContent string        `json:"suggested_content,omitempty"`
	Notified         bool          `json:"notified"`
	Actioned         bool          `json:"actioned"`
}

// RSSItem is a fetched feed entry plus its relevance scoring.
type RSSItem struct {
	ID               string        `json:"id"`
	GUID             string        `json:"guid"`
	SourceID         string        `json:"source_id"`
	SourceName       string        `json:"source_name"`
	Title            string        `json:"title"`
	URL              string        `json:"url"`
	Summary          string        `json:"summary,omitempty"`
	PublishedAt      *time.Time    `json:"published_at,omitempty"`
	FetchedAt        time.Time     `json:"fetched_at"`
	RelevanceScore   float64       `json:"relevance_score"`
	RelevanceType    RelevanceType `json:"relevance_type"`
	SuggestedContent string        `json:"suggested_content,omitempty"`
	Notified         bool          `json:"notified"`
	Actioned         bool          `json:"actioned"`
}

// VoiceSample is one sample tweet attached to a voice reference account.
type VoiceSample struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	TweetID   string    `json:"tweet_id"`
	Content   string    `json:"content"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Feedback is a confirmed style learning, scoped to a pillar.
// Append-only: records are never edited, newer ones supersede at read time.
type Feedback struct {
	ID              string    `json:"id"`
	Pillar          Pillar    `json:"pillar"`
	OriginalContent string    `json:"original_content,omitempty"`
	FeedbackText    string    `json:"feedback_text"`
	ThreadID        string    `json:"thread_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ContentType distinguishes how a history record was produced.
type ContentType string

const (
	ContentWeeklyPost   ContentType = "weekly_post"
	ContentNewsReaction ContentType = "news_reaction"
	ContentReply        ContentType = "reply"
)

// ContentHistory records generated content for variety rotation.
type ContentHistory struct {
	ID        string      `json:"id"`
	Type      ContentType `json:"type"`
	Pillar    Pillar      `json:"pillar,omitempty"`
	Topic     string      `json:"topic,omitempty"`
	Angle     string      `json:"angle,omitempty"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// Alert is emitted by the ingestion pipeline for items above threshold.
type Alert struct {
	SourceType    SourceType    `json:"source_type"`
	SourceName    string        `json:"source_name"`
	Category      Category      `json:"category"`
	Headline      string        `json:"headline"`
	Link          string        `json:"link,omitempty"`
	Score         float64       `json:"score"`
	RelevanceType RelevanceType `json:"relevance_type"`
	SuggestedPost string        `json:"suggested_post,omitempty"`
	FollowerCount int           `json:"follower_count,omitempty"`
	PublishedAt   *time.Time    `json:"published_at,omitempty"`
}
