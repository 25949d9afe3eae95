package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"treebio-api/internal/models"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,30}$`)

// ProfileUpdate is a partial profile change; nil fields are left untouched.
// An empty Username clears the handle and unpublishes the public channel.
type ProfileUpdate struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	Title       *string `json:"title"`
	Location    *string `json:"location"`
	Website     *string `json:"website"`
	Username    *string `json:"username"`
	Avatar      *string `json:"avatar"`
	ImageURL    *string `json:"imageUrl"`
	IsPublic    *bool   `json:"isPublic"`
}

// NormalizeUsername lowercases and validates a handle.
func NormalizeUsername(raw string) (string, error) {
	u := strings.ToLower(strings.TrimSpace(raw))
	if !usernamePattern.MatchString(u) {
		return "", ErrInvalidUsername
	}
	return u, nil
}

func orderedChildren(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC, created_at ASC")
}

// GetProfileByUserID returns the profile with its links and social links in
// display order.
func (s *Store) GetProfileByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.WithContext(ctx).
		Preload("Links", orderedChildren).
		Preload("SocialLinks", orderedChildren).
		Where("user_id = ?", userID).
		First(&p).Error
	if err != nil {
		return nil, notFound("get profile", err)
	}
	return &p, nil
}

// UpdateProfile applies a partial update and returns the stored profile.
func (s *Store) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.Profile, error) {
	var updated *models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.profileByUserID(tx, userID)
		if err != nil {
			return err
		}

		if upd.Username != nil {
			if strings.TrimSpace(*upd.Username) == "" {
				p.Username = nil
			} else {
				username, err := NormalizeUsername(*upd.Username)
				if err != nil {
					return err
				}
				var taken int64
				if err := tx.Model(&models.Profile{}).Where("username = ? AND id <> ?", username, p.ID).Count(&taken).Error; err != nil {
					return err
				}
				if taken > 0 {
					return ErrUsernameTaken
				}
				p.Username = &username
			}
		}
		setString(&p.FirstName, upd.FirstName)
		setString(&p.LastName, upd.LastName)
		setString(&p.DisplayName, upd.DisplayName)
		setString(&p.Bio, upd.Bio)
		setString(&p.Title, upd.Title)
		setString(&p.Location, upd.Location)
		setString(&p.Website, upd.Website)
		setString(&p.Avatar, upd.Avatar)
		setString(&p.ImageURL, upd.ImageURL)
		if upd.IsPublic != nil {
			p.IsPublic = *upd.IsPublic
		}
		p.LastActive = s.now()

		if err := tx.Save(p).Error; err != nil {
			return uniqueAs(err, ErrUsernameTaken)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.logger.Debug("profile updated", "userId", userID, "profileId", updated.ID)
	return updated, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// LookupProfile returns the profile row of an identity without its children.
func (s *Store) LookupProfile(ctx context.Context, userID string) (*models.Profile, error) {
	return s.profileByUserID(s.db.WithContext(ctx), userID)
}
