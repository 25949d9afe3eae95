package models

import (
	"time"
)

// Link is one entry of a profile's link list. SortOrder is the explicit
// display order; ties are broken by CreatedAt.
type Link struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	ProfileID   string     `json:"profileId" gorm:"column:profile_id;index;not null"`
	Title       string     `json:"title" gorm:"not null"`
	URL         string     `json:"url" gorm:"not null"`
	Description string     `json:"description,omitempty"`
	IsActive    bool       `json:"isActive" gorm:"column:is_active"`
	IsVisible   bool       `json:"isVisible" gorm:"column:is_visible"`
	SortOrder   int        `json:"sortOrder" gorm:"column:sort_order;default:0"`
	StartDate   *time.Time `json:"startDate,omitempty" gorm:"column:start_date"`
	EndDate     *time.Time `json:"endDate,omitempty" gorm:"column:end_date"`
	ClickCount  int64      `json:"clickCount" gorm:"column:click_count;default:0"`
	LastClickAt *time.Time `json:"lastClickAt,omitempty" gorm:"column:last_click_at"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TableName specifies the table name for Link Model
func (Link) TableName() string {
	return "links"
}

// LiveAt reports whether the link should be shown to visitors at t.
func (l Link) LiveAt(t time.Time) bool {
	if !l.IsActive || !l.IsVisible {
		return false
	}
	if l.StartDate != nil && t.Before(*l.StartDate) {
		return false
	}
	if l.EndDate != nil && t.After(*l.EndDate) {
		return false
	}
	return true
}

// SocialLink points at the owner's account on another platform.
type SocialLink struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ProfileID string    `json:"profileId" gorm:"column:profile_id;index;not null"`
	Platform  string    `json:"platform" gorm:"not null"`
	URL       string    `json:"url" gorm:"not null"`
	Username  string    `json:"username,omitempty"`
	IsVisible bool      `json:"isVisible" gorm:"column:is_visible"`
	SortOrder int       `json:"sortOrder" gorm:"column:sort_order;default:0"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for SocialLink Model
func (SocialLink) TableName() string {
	return "social_links"
}
