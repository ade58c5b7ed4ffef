package domain

import (
	"encoding/json"
	"time"
)

// ReviewerType describes who wrote a structured review.
type ReviewerType string

// Reviewer types.
const (
	ReviewerUser      ReviewerType = "user"
	ReviewerVerified  ReviewerType = "verified"
	ReviewerEditorial ReviewerType = "editorial"
	ReviewerEditor    ReviewerType = "editor"
)

// IsEditorial reports whether the reviewer writes on behalf of the site.
func (t ReviewerType) IsEditorial() bool {
	return t == ReviewerEditorial || t == ReviewerEditor
}

// ReviewStatus is the moderation state of a structured review.
type ReviewStatus string

// Review statuses.
const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusSpam     ReviewStatus = "spam"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// StructuredReview is a review broken down into per-metric integer scores.
//
// MetricScores is kept as the raw stored JSON: the key set varies by tool
// category and older rows hold the object double-encoded as a JSON string.
// Decoding happens in the scoring package, which tolerates both.
type StructuredReview struct {
	ID            int64           `json:"id"`
	ToolID        int64           `json:"toolId"`
	UserID        string          `json:"userId"`
	MetricScores  json.RawMessage `json:"metricScores"`
	OverallRating int             `json:"overallRating"`
	ReviewerType  ReviewerType    `json:"reviewerType"`
	IsVerified    bool            `json:"isVerified"`
	Status        ReviewStatus    `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
