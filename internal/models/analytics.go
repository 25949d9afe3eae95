package models

import (
	"time"
)

// LinkClick records one visitor click on a link.
type LinkClick struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	LinkID    string    `json:"linkId" gorm:"column:link_id;index;not null"`
	ProfileID string    `json:"profileId" gorm:"column:profile_id;index;not null"`
	ClickedAt time.Time `json:"clickedAt" gorm:"column:clicked_at;index"`
	ClickerIP string    `json:"clickerIp" gorm:"column:clicker_ip"`
	UserAgent string    `json:"userAgent,omitempty" gorm:"column:user_agent"`
	Referrer  string    `json:"referrer,omitempty"`
}

// TableName specifies the table name for LinkClick Model
func (LinkClick) TableName() string {
	return "link_clicks"
}

// ProfileView records one visit to a public profile page.
type ProfileView struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProfileID string    `json:"profileId" gorm:"column:profile_id;index;not null"`
	VisitedAt time.Time `json:"visitedAt" gorm:"column:visited_at;index"`
	VisitorIP string    `json:"visitorIp" gorm:"column:visitor_ip"`
}

// TableName specifies the table name for ProfileView Model
func (ProfileView) TableName() string {
	return "profile_views"
}

// All lists every model for migrations.
func All() []any {
	return []any{
		&User{},
		&Profile{},
		&Link{},
		&SocialLink{},
		&LinkClick{},
		&ProfileView{},
	}
}
