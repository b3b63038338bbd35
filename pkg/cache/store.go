package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrMiss is returned when no usable entry exists for a key.
var ErrMiss = errors.New("cache: miss")

type entryModel struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	ExpiresAt time.Time `gorm:"column:expires_at;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (entryModel) TableName() string { return "automation_cache" }

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&entryModel{})
}

// Store is a two tier cache for scraped payloads. Redis serves hot reads and
// drops entries at TTL; the database tier keeps rows past expiry so callers
// can fall back to stale data when a live fetch fails.
type Store struct {
	db    *gorm.DB
	redis *redis.Client
	clock func() time.Time
}

func NewStore(db *gorm.DB, rdb *redis.Client) *Store {
	return &Store{db: db, redis: rdb, clock: func() time.Time { return time.Now().UTC() }}
}

// Key builds a namespaced content-addressed cache key.
func Key(namespace string, parts ...string) string {
	h := sha1.New()
	for i, part := range parts {
		if i > 0 {
			h.Write([]byte{':'})
		}
		h.Write([]byte(part))
	}
	return fmt.Sprintf("%s:%s", namespace, hex.EncodeToString(h.Sum(nil)))
}

// Get returns the value for key if it has not expired.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if s.redis != nil {
		value, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			return value, nil
		}
	}
	var row entryModel
	if err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrMiss
		}
		return "", err
	}
	if s.clock().After(row.ExpiresAt) {
		return "", ErrMiss
	}
	return row.Value, nil
}

// GetIncludingExpired returns the stored value even past its TTL, with a flag
// telling the caller whether it is stale.
func (s *Store) GetIncludingExpired(ctx context.Context, key string) (value string, expired bool, err error) {
	var row entryModel
	if err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, ErrMiss
		}
		return "", false, err
	}
	return row.Value, s.clock().After(row.ExpiresAt), nil
}

// Set writes the value to both tiers.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := s.clock()
	row := entryModel{
		Key:       key,
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.WithContext(ctx).Save(&row).Error
	if err != nil {
		return err
	}
	if s.redis != nil {
		// Redis is best effort, the durable row is already written.
		s.redis.Set(ctx, key, value, ttl)
	}
	return nil
}
