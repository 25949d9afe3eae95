package models

import (
	"time"
)

// Profile is the public face of a user: display attributes, visibility and
// aggregate counters. One profile per identity.
type Profile struct {
	ID               string       `json:"id" gorm:"primaryKey"`
	UserID           string       `json:"userId" gorm:"column:user_id;uniqueIndex;not null"`
	Email            string       `json:"email,omitempty"`
	FirstName        string       `json:"firstName,omitempty"`
	LastName         string       `json:"lastName,omitempty"`
	DisplayName      string       `json:"displayName,omitempty"`
	ImageURL         string       `json:"imageUrl,omitempty" gorm:"column:image_url"`
	Avatar           string       `json:"avatar,omitempty"`
	Username         *string      `json:"username,omitempty" gorm:"uniqueIndex"`
	Bio              string       `json:"bio,omitempty"`
	Title            string       `json:"title,omitempty"`
	Location         string       `json:"location,omitempty"`
	Website          string       `json:"website,omitempty"`
	IsPublic         bool         `json:"isPublic" gorm:"column:is_public"`
	IsVerified       bool         `json:"isVerified" gorm:"column:is_verified"`
	ProfileViewCount int64        `json:"profileViewCount" gorm:"column:profile_view_count;default:0"`
	LinkClicks       int64        `json:"linkClicks" gorm:"column:link_clicks;default:0"`
	LastActive       time.Time    `json:"lastActive" gorm:"column:last_active"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
	Links            []Link       `json:"links,omitempty" gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE"`
	SocialLinks      []SocialLink `json:"socialLinks,omitempty" gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Profile Model
func (Profile) TableName() string {
	return "profiles"
}

// Handle returns the username or "" when none is set.
func (p *Profile) Handle() string {
	if p == nil || p.Username == nil {
		return ""
	}
	return *p.Username
}
