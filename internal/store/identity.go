package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"treebio-api/internal/auth"
	"treebio-api/internal/models"
)

// Onboarding carries the identity attributes copied onto the profile at
// sign-in.
type Onboarding struct {
	FirstName string
	LastName  string
	ImageURL  string
}

// Register creates an identity and its empty profile.
func (s *Store) Register(ctx context.Context, email, password string, attrs Onboarding) (*models.User, *models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, fmt.Errorf("register: %w: email", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("register: %w", err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, nil, fmt.Errorf("register: %w", err)
	}
	if count > 0 {
		return nil, nil, fmt.Errorf("register: %w", ErrEmailTaken)
	}

	user := &models.User{ID: newID(), Email: email, PasswordHash: hash}
	var profile *models.Profile
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return uniqueAs(err, ErrEmailTaken)
		}
		var err error
		profile, err = s.onboard(tx, user, attrs)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("register: %w", err)
	}
	s.logger.Info("user registered", "userId", user.ID)
	return user, profile, nil
}

// Authenticate checks credentials and returns the identity.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// OnboardUser creates the profile of an identity or refreshes its identity
// attributes and last-active time.
func (s *Store) OnboardUser(ctx context.Context, user *models.User, attrs Onboarding) (*models.Profile, error) {
	var profile *models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		profile, err = s.onboard(tx, user, attrs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("onboard user: %w", err)
	}
	return profile, nil
}

func (s *Store) onboard(tx *gorm.DB, user *models.User, attrs Onboarding) (*models.Profile, error) {
	now := s.now()
	existing, err := s.profileByUserID(tx, user.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		p := &models.Profile{
			ID:         newID(),
			UserID:     user.ID,
			Email:      user.Email,
			FirstName:  attrs.FirstName,
			LastName:   attrs.LastName,
			ImageURL:   attrs.ImageURL,
			IsPublic:   true,
			LastActive: now,
		}
		if err := tx.Create(p).Error; err != nil {
			return nil, err
		}
		s.logger.Debug("profile created", "userId", user.ID, "profileId", p.ID)
		return p, nil
	}

	updates := map[string]any{"email": user.Email, "last_active": now}
	if attrs.FirstName != "" {
		updates["first_name"] = attrs.FirstName
	}
	if attrs.LastName != "" {
		updates["last_name"] = attrs.LastName
	}
	if attrs.ImageURL != "" {
		updates["image_url"] = attrs.ImageURL
	}
	if err := tx.Model(existing).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.profileByUserID(tx, user.ID)
}
