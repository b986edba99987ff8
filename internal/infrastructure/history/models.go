package history

import (
	"time"

	"github.com/fastygo/botfleet/domain"
)

type ActivityModel struct {
	ID           uint `gorm:"primaryKey"`
	ActivityType string
	Details      string
	Success      bool
	Error        string
	CreatedAt    time.Time
}

func (ActivityModel) TableName() string { return "activity_log" }

func (m ActivityModel) toDomain() domain.ActivityEntry {
	return domain.ActivityEntry{
		ID:           m.ID,
		ActivityType: m.ActivityType,
		Details:      m.Details,
		Success:      m.Success,
		Error:        m.Error,
		CreatedAt:    m.CreatedAt,
	}
}

type TweetModel struct {
	ID        uint `gorm:"primaryKey"`
	TweetID   string
	Text      string
	TweetType string
	Views     int
	Likes     int
	Retweets  int
	Replies   int
	CreatedAt time.Time
}

func (TweetModel) TableName() string { return "tweets" }

func (m TweetModel) toDomain() domain.TweetRecord {
	return domain.TweetRecord{
		ID:        m.ID,
		TweetID:   m.TweetID,
		Text:      m.Text,
		TweetType: m.TweetType,
		Views:     m.Views,
		Likes:     m.Likes,
		Retweets:  m.Retweets,
		Replies:   m.Replies,
		CreatedAt: m.CreatedAt,
	}
}

type ConversionModel struct {
	ID              uint `gorm:"primaryKey"`
	Source          string
	WAMessages      int `gorm:"column:wa_messages"`
	ConfirmedOrders int
	Revenue         float64
	Notes           string
	CreatedAt       time.Time
}

func (ConversionModel) TableName() string { return "conversions" }

func (m ConversionModel) toDomain() domain.Conversion {
	return domain.Conversion{
		ID:              m.ID,
		Source:          m.Source,
		WAMessages:      m.WAMessages,
		ConfirmedOrders: m.ConfirmedOrders,
		Revenue:         m.Revenue,
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
	}
}
