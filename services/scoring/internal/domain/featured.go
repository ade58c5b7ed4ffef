package domain

import "time"

// EngagementSignals are the usage numbers the featured ranker reads for a
// tool. AvgRating comes from the simple 1-5 star review table, not from
// structured reviews.
type EngagementSignals struct {
	ToolID      int64   `json:"toolId"`
	Views       int64   `json:"views"`
	Saves       int64   `json:"saves"`
	ReviewCount int64   `json:"reviewCount"`
	AvgRating   float64 `json:"avgRating"`
}

// ScoreBreakdown shows how a featured score was assembled.
type ScoreBreakdown struct {
	Quality       float64 `json:"quality"`
	Engagement    float64 `json:"engagement"`
	Recency       float64 `json:"recency"`
	Rating        float64 `json:"rating"`
	Base          float64 `json:"base"`
	Premium       bool    `json:"premium"`
	ToolOfTheWeek bool    `json:"toolOfTheWeek"`
}

// FeaturedScore is one ranked tool.
type FeaturedScore struct {
	ToolID    int64          `json:"toolId"`
	Score     int            `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// FeaturedTool is a tool as listed in the admin featured view.
type FeaturedTool struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	IsPremium       bool            `json:"isPremium"`
	IsToolOfTheWeek bool            `json:"isToolOfTheWeek"`
	FeaturedScore   int             `json:"featuredScore"`
	ScoreBreakdown  *ScoreBreakdown `json:"scoreBreakdown,omitempty"`
}

// FeaturedMeta describes how a featured list was produced.
type FeaturedMeta struct {
	Total       int       `json:"total"`
	Returned    int       `json:"returned"`
	Limit       int       `json:"limit"`
	Threshold   int       `json:"threshold"`
	MinFeatured int       `json:"minFeatured"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// FeaturedList is the response of the featured listing.
type FeaturedList struct {
	Tools []FeaturedTool `json:"tools"`
	Meta  FeaturedMeta   `json:"meta"`
}

// FeaturedUpdate counts the rows touched by a featured flag write-back.
type FeaturedUpdate struct {
	Selected  int   `json:"selected"`
	Flagged   int64 `json:"flagged"`
	Unflagged int64 `json:"unflagged"`
}

// FeaturedRefresh is the outcome of recomputing and persisting the featured
// set.
type FeaturedRefresh struct {
	Limit       int             `json:"limit"`
	Selected    []FeaturedScore `json:"selected"`
	Update      FeaturedUpdate  `json:"update"`
	RefreshedAt time.Time       `json:"refreshedAt"`
}
