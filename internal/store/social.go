package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"treebio-api/internal/models"
)

// SocialLinkInput holds the client-settable fields of a new social link.
type SocialLinkInput struct {
	Platform  string `json:"platform" binding:"required"`
	URL       string `json:"url" binding:"required"`
	Username  string `json:"username"`
	IsVisible *bool  `json:"isVisible"`
	SortOrder *int   `json:"sortOrder"`
}

// CreateSocialLink appends a social link to the owner's profile.
func (s *Store) CreateSocialLink(ctx context.Context, userID string, in SocialLinkInput) (*models.SocialLink, error) {
	if strings.TrimSpace(in.Platform) == "" || strings.TrimSpace(in.URL) == "" {
		return nil, fmt.Errorf("create social link: %w: platform and url are required", ErrInvalidInput)
	}

	var sl *models.SocialLink
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.profileByUserID(tx, userID)
		if err != nil {
			return err
		}
		order := 0
		if in.SortOrder != nil {
			order = *in.SortOrder
		} else if order, err = nextSortOrder(tx, &models.SocialLink{}, p.ID); err != nil {
			return err
		}
		sl = &models.SocialLink{
			ID:        newID(),
			ProfileID: p.ID,
			Platform:  strings.ToLower(strings.TrimSpace(in.Platform)),
			URL:       in.URL,
			Username:  strings.TrimSpace(in.Username),
			IsVisible: boolOr(in.IsVisible, true),
			SortOrder: order,
		}
		return tx.Create(sl).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create social link: %w", err)
	}
	return sl, nil
}

// UpdateSocialLink overwrites the editable fields of an owned social link.
func (s *Store) UpdateSocialLink(ctx context.Context, userID string, in models.SocialLink) (*models.SocialLink, error) {
	if in.ID == "" || strings.TrimSpace(in.Platform) == "" || strings.TrimSpace(in.URL) == "" {
		return nil, fmt.Errorf("update social link: %w: id, platform and url are required", ErrInvalidInput)
	}

	var sl models.SocialLink
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.profileByUserID(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Where("id = ? AND profile_id = ?", in.ID, p.ID).First(&sl).Error; err != nil {
			return notFound("find social link", err)
		}
		sl.Platform = strings.ToLower(strings.TrimSpace(in.Platform))
		sl.URL = in.URL
		sl.Username = strings.TrimSpace(in.Username)
		sl.IsVisible = in.IsVisible
		sl.SortOrder = in.SortOrder
		return tx.Save(&sl).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update social link: %w", err)
	}
	return &sl, nil
}

// DeleteSocialLink removes an owned social link.
func (s *Store) DeleteSocialLink(ctx context.Context, userID, socialLinkID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.profileByUserID(tx, userID)
		if err != nil {
			return err
		}
		res := tx.Where("id = ? AND profile_id = ?", socialLinkID, p.ID).Delete(&models.SocialLink{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete social link: %w", err)
	}
	return nil
}
