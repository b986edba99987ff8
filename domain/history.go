package domain

import "time"

// Activity types written by workers and the supervisor.
const (
	ActivityWorkerStarted = "worker_started"
	ActivityWorkerStopped = "worker_stopped"
	ActivitySlotPrefix    = "slot:"
)

type ActivityEntry struct {
	ID           uint      `json:"id"`
	ActivityType string    `json:"activity_type"`
	Details      string    `json:"details,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type TweetRecord struct {
	ID        uint      `json:"id"`
	TweetID   string    `json:"tweet_id"`
	Text      string    `json:"text"`
	TweetType string    `json:"tweet_type"`
	Views     int       `json:"views"`
	Likes     int       `json:"likes"`
	Retweets  int       `json:"retweets"`
	Replies   int       `json:"replies"`
	CreatedAt time.Time `json:"created_at"`
}

type Conversion struct {
	ID              uint      `json:"id"`
	Source          string    `json:"source"`
	WAMessages      int       `json:"wa_messages"`
	ConfirmedOrders int       `json:"confirmed_orders"`
	Revenue         float64   `json:"revenue"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type ConversionSummary struct {
	Days            int     `json:"days"`
	WAMessages      int     `json:"wa_messages"`
	ConfirmedOrders int     `json:"confirmed_orders"`
	Revenue         float64 `json:"revenue"`
}

// Stats is the dashboard summary of one account's history.
type Stats struct {
	TodayActivity map[string]int    `json:"today_activity"`
	TotalTweets   int64             `json:"total_tweets"`
	TotalViews    int64             `json:"total_views"`
	TotalLikes    int64             `json:"total_likes"`
	Conversions   ConversionSummary `json:"conversions"`
	LastActivity  *time.Time        `json:"last_activity,omitempty"`
}
