package memory

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestStore_MissingKey(t *testing.T) {
	s := NewStore()

	v, found, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if found || v != nil {
		t.Errorf("Get(missing) = %q, %v", v, found)
	}
}

func TestStore_PutThenGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.Put(ctx, "k", []byte("v1"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "k", []byte("v2"), time.Hour); err != nil {
		t.Fatal(err)
	}

	v, found, _ := s.Get(ctx, "k")
	if !found || string(v) != "v2" {
		t.Errorf("Get = %q, %v; want v2, true", v, found)
	}
}

func TestStore_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 7, 16, 0, 0, 0, 0, time.UTC)}
	s := NewStoreWithClock(clock.Now)
	ctx := context.Background()

	_ = s.Put(ctx, "k", []byte("v"), 48*time.Hour)

	clock.Advance(48*time.Hour - time.Second)
	if _, found, _ := s.Get(ctx, "k"); !found {
		t.Fatal("entry should still be live just before its ttl")
	}

	clock.Advance(time.Second)
	if _, found, _ := s.Get(ctx, "k"); found {
		t.Fatal("entry should be gone once its ttl has passed")
	}
}

func TestStore_PutRefreshesExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 7, 16, 0, 0, 0, 0, time.UTC)}
	s := NewStoreWithClock(clock.Now)
	ctx := context.Background()

	_ = s.Put(ctx, "k", []byte("1"), time.Hour)
	clock.Advance(50 * time.Minute)
	_ = s.Put(ctx, "k", []byte("2"), time.Hour)
	clock.Advance(50 * time.Minute)

	v, found, _ := s.Get(ctx, "k")
	if !found || string(v) != "2" {
		t.Errorf("Get = %q, %v; want refreshed entry", v, found)
	}
}

func TestStore_ZeroTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 7, 16, 0, 0, 0, 0, time.UTC)}
	s := NewStoreWithClock(clock.Now)

	_ = s.Put(context.Background(), "k", []byte("v"), 0)
	clock.Advance(10 * 365 * 24 * time.Hour)

	if _, found, _ := s.Get(context.Background(), "k"); !found {
		t.Error("entry without ttl should not expire")
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	in := []byte("abc")
	_ = s.Put(ctx, "k", in, 0)
	in[0] = 'X'

	out, _, _ := s.Get(ctx, "k")
	out[1] = 'Y'

	again, _, _ := s.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value was aliased: %q", again)
	}
}

func TestNamespace_Isolation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	quota := s.Namespace("chat_quota")
	links := s.Namespace("negotiation_links")

	_ = quota.Put(ctx, "2025-07-16", []byte("10"), time.Hour)

	if _, found, _ := links.Get(ctx, "2025-07-16"); found {
		t.Error("namespaces should be isolated")
	}
	if v, found, _ := quota.Get(ctx, "2025-07-16"); !found || string(v) != "10" {
		t.Errorf("quota.Get = %q, %v", v, found)
	}
}

func TestStore_PutSweepsExpiredEntries(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 7, 16, 0, 0, 0, 0, time.UTC)}
	s := NewStoreWithClock(clock.Now)
	ctx := context.Background()

	_ = s.Put(ctx, "2025-07-14", []byte("10"), 48*time.Hour)
	_ = s.Put(ctx, "2025-07-15", []byte("20"), 48*time.Hour)
	_ = s.Put(ctx, "forever", []byte("x"), 0)

	clock.Advance(72 * time.Hour)
	_ = s.Put(ctx, "2025-07-19", []byte("5"), 48*time.Hour)

	s.mu.RLock()
	n := len(s.entries)
	_, stale := s.entries["2025-07-14"]
	s.mu.RUnlock()

	if n != 2 {
		t.Errorf("entries = %d, want 2 (the live counter and the key without expiry)", n)
	}
	if stale {
		t.Error("expired key was not reclaimed")
	}
}
