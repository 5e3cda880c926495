package profilecache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/chessmate-desktop/enginecore/internal/style"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(client, ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func sampleProfile() style.Profile {
	return style.Profile{
		PlayerID:         "magnus",
		SkillLevel:       18,
		TargetRating:     2500,
		DepthMin:         16,
		DepthMax:         18,
		ThinkTimeMin:     1800 * time.Millisecond,
		ThinkTimeMax:     2700 * time.Millisecond,
		ErrorProbability: 0.04,
		MultiLineCount:   1,
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	want := sampleProfile()
	if err := store.Save(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx, "magnus")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a cached profile")
	}
	if *got != want {
		t.Fatalf("loaded profile %+v, want %+v", *got, want)
	}
}

func TestLoadMissReturnsNil(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	got, err := store.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("cache miss returned %+v", got)
	}
}

func TestSaveRejectsMissingPlayerID(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	p := sampleProfile()
	p.PlayerID = " "
	if err := store.Save(context.Background(), p); err == nil {
		t.Fatal("expected an error for a profile without a player id")
	}
}

func TestSaveSetsTTL(t *testing.T) {
	store, mr := newTestStore(t, 30*time.Second)
	if err := store.Save(context.Background(), sampleProfile()); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("profile:magnus"); ttl != 30*time.Second {
		t.Fatalf("ttl = %v, want 30s", ttl)
	}

	mr.FastForward(31 * time.Second)
	got, err := store.Load(context.Background(), "magnus")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("profile must expire with its TTL")
	}
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()
	if err := store.Save(ctx, sampleProfile()); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "magnus"); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx, "magnus")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("deleted profile still cached")
	}
}
