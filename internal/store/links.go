package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"treebio-api/internal/models"
)

// LinkInput holds the client-settable fields of a new link.
type LinkInput struct {
	Title       string     `json:"title" binding:"required"`
	URL         string     `json:"url" binding:"required"`
	Description string     `json:"description"`
	IsVisible   *bool      `json:"isVisible"`
	IsActive    *bool      `json:"isActive"`
	SortOrder   *int       `json:"sortOrder"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

func checkWindow(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("%w: endDate is before startDate", ErrInvalidInput)
	}
	return nil
}

// nextSortOrder returns one past the highest sort order in table for a profile.
func nextSortOrder(tx *gorm.DB, model any, profileID string) (int, error) {
	var last struct{ SortOrder int }
	err := tx.Model(model).Select("sort_order").Where("profile_id = ?", profileID).Order("sort_order DESC").Limit(1).Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last.SortOrder + 1, nil
}

// CreateLink appends a link to the owner's profile.
func (s *Store) CreateLink(ctx context.Context, userID string, in LinkInput) (*models.Link, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.URL) == "" {
		return nil, fmt.Errorf("create link: %w: title and url are required", ErrInvalidInput)
	}
	if err := checkWindow(in.StartDate, in.EndDate); err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}

	var link *models.Link
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.profileByUserID(tx, userID)
		if err != nil {
			return err
		}
		order := 0
		if in.SortOrder != nil {
			order = *in.SortOrder
		} else if order, err = nextSortOrder(tx, &models.Link{}, p.ID); err != nil {
			return err
		}
		link = &models.Link{
			ID:          newID(),
			ProfileID:   p.ID,
			Title:       strings.TrimSpace(in.Title),
			URL:         in.URL,
			Description: in.Description,
			IsActive:    boolOr(in.IsActive, true),
			IsVisible:   boolOr(in.IsVisible, true),
			SortOrder:   order,
			StartDate:   in.StartDate,
			EndDate:     in.EndDate,
		}
		return tx.Create(link).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}
	s.logger.Debug("link created", "userId", userID, "linkId", link.ID)
	return link, nil
}

// UpdateLink overwrites the editable fields of an owned link. Counters are
// never taken from the caller.
func (s *Store) UpdateLink(ctx context.Context, userID string, in models.Link) (*models.Link, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("update link: %w: id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.URL) == "" {
		return nil, fmt.Errorf("update link: %w: title and url are required", ErrInvalidInput)
	}
	if err := checkWindow(in.StartDate, in.EndDate); err != nil {
		return nil, fmt.Errorf("update link: %w", err)
	}

	var link models.Link
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.profileByUserID(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Where("id = ? AND profile_id = ?", in.ID, p.ID).First(&link).Error; err != nil {
			return notFound("find link", err)
		}
		link.Title = strings.TrimSpace(in.Title)
		link.URL = in.URL
		link.Description = in.Description
		link.IsActive = in.IsActive
		link.IsVisible = in.IsVisible
		link.SortOrder = in.SortOrder
		link.StartDate = in.StartDate
		link.EndDate = in.EndDate
		return tx.Save(&link).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update link: %w", err)
	}
	return &link, nil
}

// DeleteLink removes an owned link and its click history.
func (s *Store) DeleteLink(ctx context.Context, userID, linkID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.profileByUserID(tx, userID)
		if err != nil {
			return err
		}
		res := tx.Where("id = ? AND profile_id = ?", linkID, p.ID).Delete(&models.Link{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("link_id = ?", linkID).Delete(&models.LinkClick{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
