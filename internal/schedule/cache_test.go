package schedule

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSlotCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewSlotCache(client, time.Minute)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	slots := []Slot{
		{Date: date, Start: NewClock(8, 0), Label: "08:00 AM CST"},
		{Date: date, Start: NewClock(8, 30), Label: "08:30 AM CST"},
	}

	ctx := context.Background()
	if _, hit := cache.Get(ctx, date); hit {
		t.Fatal("expected cache miss before Put")
	}
	if err := cache.Put(ctx, date, slots); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, hit := cache.Get(ctx, date)
	if !hit {
		t.Fatal("expected cache hit after Put")
	}
	if len(got) != 2 || got[0].Start != NewClock(8, 0) || got[1].Label != "08:30 AM CST" {
		t.Errorf("cached slots mismatch: %+v", got)
	}
}

func TestSlotCacheExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewSlotCache(client, time.Second)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	if err := cache.Put(ctx, date, []Slot{{Date: date, Start: NewClock(9, 0)}}); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	mr.FastForward(2 * time.Second)

	if _, hit := cache.Get(ctx, date); hit {
		t.Error("expected miss after TTL expiry")
	}
}

func TestSlotCacheNilSafe(t *testing.T) {
	var cache *SlotCache
	ctx := context.Background()
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if _, hit := cache.Get(ctx, date); hit {
		t.Error("nil cache should always miss")
	}
	if err := cache.Put(ctx, date, nil); err != nil {
		t.Errorf("nil cache Put should be a no-op, got %v", err)
	}
	if NewSlotCache(nil, time.Minute) != nil {
		t.Error("NewSlotCache(nil) should return nil")
	}
}
