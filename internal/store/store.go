// Package store is the persistence layer for profiles, links, social links
// and their analytics.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"treebio-api/internal/logging"
	"treebio-api/internal/models"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrInvalidUsername    = errors.New("username must be 3-30 characters of a-z, 0-9, '.', '_' or '-'")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("invalid input")
)

// Store wraps the gorm handle shared by every operation.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, logger: logging.Sub("store"), now: time.Now}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

// notFound maps gorm's record-not-found onto ErrNotFound.
func notFound(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// profileByUserID loads the bare profile row owned by an identity.
func (s *Store) profileByUserID(tx *gorm.DB, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := tx.Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, notFound("find profile", err)
	}
	return &p, nil
}

// uniqueAs maps a unique-constraint violation onto taken, so a write that
// loses a race against a concurrent one fails the same way the pre-check does.
func uniqueAs(err, taken error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505") {
		return taken
	}
	return err
}
