// Package mockstore is a local stand-in for the remote presence store. It
// speaks the same HTTP contract as the real backend so the client can be run
// end to end without one.
package mockstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/online-status/pkg/logging"
	"github.com/Veraticus/online-status/pkg/presence"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// activityOffline is stored for users forced offline through the debug endpoints.
const activityOffline = "offline"

// ErrUserNotFound is returned when no user has the given uuid.
var ErrUserNotFound = errors.New("user not found")

// User is one heartbeat sender as persisted by the store.
type User struct {
	UUID          string    `gorm:"column:uuid;primaryKey;size:64;not null"`
	Name          string    `gorm:"column:name;size:190;not null"`
	ActivityState string    `gorm:"column:activity_state;size:16;not null"`
	LastSeen      time.Time `gorm:"column:last_seen;not null"`
	Mock          bool      `gorm:"column:mock;not null;index"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing presence users.
func (User) TableName() string {
	return "presence_users"
}

// EffectiveState is what GET /online_status/ reports for the user. Seeded
// mock users keep their stored state; everyone else goes offline once their
// last heartbeat is older than timeout.
func (u User) EffectiveState(now time.Time, timeout time.Duration) presence.State {
	if !u.Mock && now.Sub(u.LastSeen) > timeout {
		return presence.StateOffline
	}
	switch u.ActivityState {
	case string(presence.ActivityIdle):
		return presence.StateIdle
	case string(presence.ActivityBusy):
		return presence.StateBusy
	case activityOffline:
		return presence.StateOffline
	default:
		return presence.StateOnline
	}
}

// Store persists users in SQLite through gorm.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open establishes a SQLite connection and migrates the schema. Use
// MemoryPath for a throwaway store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	logger = logging.OrNop(logger)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// A single connection keeps an in-memory database alive and shared.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, err
	}

	logger.Info("mock store database initialized", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordHeartbeat inserts or refreshes the sender of hb.
func (s *Store) RecordHeartbeat(ctx context.Context, hb presence.Heartbeat, at time.Time) error {
	user := User{
		UUID:          strings.TrimSpace(hb.UUID),
		Name:          strings.TrimSpace(hb.Name),
		ActivityState: string(hb.ActivityState),
		LastSeen:      at.UTC(),
	}
	if user.ActivityState == "" {
		user.ActivityState = string(presence.ActivityUnknown)
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "activity_state", "last_seen", "mock", "updated_at"}),
	}).Create(&user)
	return result.Error
}

// Users lists every stored user ordered by name.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).Order("name ASC").Order("uuid ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SetActivity overwrites one user's activity and last-seen time.
func (s *Store) SetActivity(ctx context.Context, uuid, activity string, lastSeen time.Time) error {
	result := s.db.WithContext(ctx).Model(&User{}).
		Where("uuid = ?", uuid).
		Updates(map[string]any{"activity_state": activity, "last_seen": lastSeen.UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, uuid)
	}
	return nil
}

// Clear deletes every user and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&User{})
	return result.RowsAffected, result.Error
}

// SeedMock inserts the demo friends unless they already exist.
func (s *Store) SeedMock(ctx context.Context, now time.Time) error {
	now = now.UTC()
	seeds := []User{
		{UUID: "mock-alice", Name: "Alice", ActivityState: string(presence.ActivityOnline), LastSeen: now, Mock: true},
		{UUID: "mock-bob", Name: "Bob", ActivityState: activityOffline, LastSeen: now.Add(-5 * time.Minute), Mock: true},
		{UUID: "mock-charlie", Name: "Charlie", ActivityState: activityOffline, LastSeen: now.Add(-time.Hour), Mock: true},
		{UUID: "mock-diana", Name: "Diana", ActivityState: string(presence.ActivityOnline), LastSeen: now, Mock: true},
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&seeds).Error
}

// RemoveMock deletes the demo friends.
func (s *Store) RemoveMock(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("mock = ?", true).Delete(&User{}).Error
}
