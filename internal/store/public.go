package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"treebio-api/internal/models"
)

// GetPublicProfile returns a public profile by username with only the links
// live at now and the visible social links.
func (s *Store) GetPublicProfile(ctx context.Context, username string, now time.Time) (*models.Profile, error) {
	var p models.Profile
	err := s.db.WithContext(ctx).
		Preload("Links", orderedChildren).
		Preload("SocialLinks", func(db *gorm.DB) *gorm.DB {
			return orderedChildren(db.Where("is_visible = ?", true))
		}).
		Where("username = ? AND is_public = ?", strings.ToLower(username), true).
		First(&p).Error
	if err != nil {
		return nil, notFound("get public profile", err)
	}
	p.Links = lo.Filter(p.Links, func(l models.Link, _ int) bool { return l.LiveAt(now) })
	return &p, nil
}

// Visit describes the visitor behind a click or view.
type Visit struct {
	IP        string
	UserAgent string
	Referrer  string
}

// ClickResult carries what a link-clicked event needs after a click is stored.
type ClickResult struct {
	Link          models.Link
	UserID        string
	ProfileClicks int64
}

// RecordClick counts a click on a live link of a public profile.
func (s *Store) RecordClick(ctx context.Context, linkID string, v Visit) (*ClickResult, error) {
	now := s.now().UTC()
	var res ClickResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link models.Link
		if err := tx.Where("id = ?", linkID).First(&link).Error; err != nil {
			return notFound("find link", err)
		}
		var p models.Profile
		if err := tx.Where("id = ?", link.ProfileID).First(&p).Error; err != nil {
			return notFound("find profile", err)
		}
		if !p.IsPublic || !link.LiveAt(now) {
			return ErrNotFound
		}

		if err := tx.Model(&link).Updates(map[string]any{
			"click_count":   gorm.Expr("click_count + ?", 1),
			"last_click_at": now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&p).UpdateColumn("link_clicks", gorm.Expr("link_clicks + ?", 1)).Error; err != nil {
			return err
		}
		click := models.LinkClick{
			LinkID:    link.ID,
			ProfileID: p.ID,
			ClickedAt: now,
			ClickerIP: v.IP,
			UserAgent: v.UserAgent,
			Referrer:  v.Referrer,
		}
		if err := tx.Create(&click).Error; err != nil {
			return err
		}

		if err := tx.Where("id = ?", link.ID).First(&link).Error; err != nil {
			return err
		}
		var total int64
		if err := tx.Model(&models.Profile{}).Select("link_clicks").Where("id = ?", p.ID).Scan(&total).Error; err != nil {
			return err
		}
		res = ClickResult{Link: link, UserID: p.UserID, ProfileClicks: total}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record click: %w", err)
	}
	return &res, nil
}

// ViewResult carries what a profile-viewed event needs after a view is stored.
type ViewResult struct {
	ProfileID string
	UserID    string
	ViewCount int64
}

// RecordView counts a visit to a public profile.
func (s *Store) RecordView(ctx context.Context, profileID string, v Visit) (*ViewResult, error) {
	now := s.now().UTC()
	var res ViewResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Profile
		if err := tx.Where("id = ? AND is_public = ?", profileID, true).First(&p).Error; err != nil {
			return notFound("find profile", err)
		}
		if err := tx.Model(&p).UpdateColumn("profile_view_count", gorm.Expr("profile_view_count + ?", 1)).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.ProfileView{ProfileID: p.ID, VisitedAt: now, VisitorIP: v.IP}).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Profile{}).Select("profile_view_count").Where("id = ?", p.ID).Scan(&count).Error; err != nil {
			return err
		}
		res = ViewResult{ProfileID: p.ID, UserID: p.UserID, ViewCount: count}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record view: %w", err)
	}
	return &res, nil
}
