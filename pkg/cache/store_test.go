package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db, nil)
}

func TestStoreSetAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "search:abc", "payload", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := store.Get(ctx, "search:abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "payload" {
		t.Fatalf("got %q, want payload", value)
	}
}

func TestStoreMiss(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("got %v, want ErrMiss", err)
	}
}

func TestStoreExpiredFallback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	store.clock = func() time.Time { return now }
	if err := store.Set(ctx, "product:xyz", "stale-html", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	store.clock = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := store.Get(ctx, "product:xyz"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expired entry should miss, got %v", err)
	}
	value, expired, err := store.GetIncludingExpired(ctx, "product:xyz")
	if err != nil {
		t.Fatalf("get including expired: %v", err)
	}
	if !expired {
		t.Fatal("entry should be reported expired")
	}
	if value != "stale-html" {
		t.Fatalf("got %q, want stale-html", value)
	}
}

func TestStoreOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v1", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "k", "v2", time.Hour); err != nil {
		t.Fatalf("set again: %v", err)
	}
	value, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "v2" {
		t.Fatalf("got %q, want v2", value)
	}
}

func TestKeyDeterministic(t *testing.T) {
	a := Key("clean-search", "wireless earbuds", "1")
	b := Key("clean-search", "wireless earbuds", "1")
	c := Key("clean-search", "wireless earbuds", "2")
	if a != b {
		t.Fatalf("same parts should hash equal: %s vs %s", a, b)
	}
	if a == c {
		t.Fatal("different parts should hash differently")
	}
}
