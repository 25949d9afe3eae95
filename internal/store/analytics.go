package store

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"treebio-api/internal/models"
)

const (
	analyticsDays = 7
	topLinksLimit = 5
	dateLayout    = "2006-01-02"
)

type DateClicks struct {
	Date   string `json:"date"`
	Clicks int    `json:"clicks"`
}

type DateViews struct {
	Date  string `json:"date"`
	Views int    `json:"views"`
}

// TopLink is a link ranked by lifetime clicks.
type TopLink struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Clicks int64  `json:"clicks"`
}

// Analytics summarises a profile's traffic. Dates are UTC days, oldest first.
type Analytics struct {
	TotalClicks  int64        `json:"totalClicks"`
	TotalViews   int64        `json:"totalViews"`
	ClicksToday  int          `json:"clicksToday"`
	ViewsToday   int          `json:"viewsToday"`
	TopLinks     []TopLink    `json:"topLinks"`
	ClicksByDate []DateClicks `json:"clicksByDate"`
	ViewsByDate  []DateViews  `json:"viewsByDate"`
}

// Analytics builds the dashboard summary for the owner's profile as of now.
func (s *Store) Analytics(ctx context.Context, userID string, now time.Time) (*Analytics, error) {
	db := s.db.WithContext(ctx)
	p, err := s.profileByUserID(db, userID)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}

	today := now.UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(analyticsDays - 1))

	var clicks []models.LinkClick
	if err := db.Where("profile_id = ? AND clicked_at >= ?", p.ID, since).Find(&clicks).Error; err != nil {
		return nil, fmt.Errorf("analytics: clicks: %w", err)
	}
	var views []models.ProfileView
	if err := db.Where("profile_id = ? AND visited_at >= ?", p.ID, since).Find(&views).Error; err != nil {
		return nil, fmt.Errorf("analytics: views: %w", err)
	}
	var top []models.Link
	if err := db.Where("profile_id = ? AND click_count > 0", p.ID).
		Order("click_count DESC, sort_order ASC").Limit(topLinksLimit).Find(&top).Error; err != nil {
		return nil, fmt.Errorf("analytics: top links: %w", err)
	}

	clicksPerDay := lo.CountValuesBy(clicks, func(c models.LinkClick) string { return c.ClickedAt.UTC().Format(dateLayout) })
	viewsPerDay := lo.CountValuesBy(views, func(v models.ProfileView) string { return v.VisitedAt.UTC().Format(dateLayout) })
	days := lo.Times(analyticsDays, func(i int) string { return since.AddDate(0, 0, i).Format(dateLayout) })
	todayKey := today.Format(dateLayout)

	return &Analytics{
		TotalClicks: p.LinkClicks,
		TotalViews:  p.ProfileViewCount,
		ClicksToday: clicksPerDay[todayKey],
		ViewsToday:  viewsPerDay[todayKey],
		TopLinks: lo.Map(top, func(l models.Link, _ int) TopLink {
			return TopLink{ID: l.ID, Title: l.Title, URL: l.URL, Clicks: l.ClickCount}
		}),
		ClicksByDate: lo.Map(days, func(d string, _ int) DateClicks { return DateClicks{Date: d, Clicks: clicksPerDay[d]} }),
		ViewsByDate:  lo.Map(days, func(d string, _ int) DateViews { return DateViews{Date: d, Views: viewsPerDay[d]} }),
	}, nil
}
