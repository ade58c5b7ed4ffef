package domain

import "time"

// ToolStatus is the moderation state of a tool listing.
type ToolStatus string

// Tool statuses.
const (
	ToolStatusPending  ToolStatus = "pending"
	ToolStatusApproved ToolStatus = "approved"
	ToolStatusRejected ToolStatus = "rejected"
)

// Tool is a directory listing as seen by the scoring subsystem. Only
// IsFeatured is ever written back by this service.
type Tool struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Category        string     `json:"category"`
	Status          ToolStatus `json:"status"`
	Popularity      int64      `json:"popularity"`
	Quality         Quality    `json:"quality"`
	IsPremium       bool       `json:"isPremium"`
	IsToolOfTheWeek bool       `json:"isToolOfTheWeek"`
	IsFeatured      bool       `json:"isFeatured"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Quality holds the six editorial sub-metrics, each in [0,10]. A nil field
// has not been rated yet.
type Quality struct {
	ContentQuality     *float64 `json:"contentQuality"`
	SpeedEfficiency    *float64 `json:"speedEfficiency"`
	CreativeFeatures   *float64 `json:"creativeFeatures"`
	IntegrationOptions *float64 `json:"integrationOptions"`
	LearningCurve      *float64 `json:"learningCurve"`
	ValueForMoney      *float64 `json:"valueForMoney"`
}

// Values returns the sub-metrics in a fixed order.
func (q Quality) Values() []*float64 {
	return []*float64{
		q.ContentQuality,
		q.SpeedEfficiency,
		q.CreativeFeatures,
		q.IntegrationOptions,
		q.LearningCurve,
		q.ValueForMoney,
	}
}

// IsApproved reports whether the tool is publicly listed.
func (t *Tool) IsApproved() bool {
	return t.Status == ToolStatusApproved
}
