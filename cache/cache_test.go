package cache

import (
	"testing"
	"time"

	"github.com/use-agent/sieve/models"
)

func TestKey_DependsOnOptions(t *testing.T) {
	base := Key("https://x.com", "auto", false)
	if base != Key("https://x.com", "auto", false) {
		t.Fatal("Key is not deterministic")
	}
	for name, other := range map[string]string{
		"url":      Key("https://y.com", "auto", false),
		"mode":     Key("https://x.com", "static", false),
		"markdown": Key("https://x.com", "auto", true),
	} {
		if other == base {
			t.Errorf("%s does not change the key", name)
		}
	}
}

func TestNew_DisabledWhenNoEntries(t *testing.T) {
	c := New(0, time.Minute)
	if c != nil {
		t.Fatal("expected nil cache")
	}
	c.Set("k", &models.ScrapeResponse{Success: true})
	if _, ok := c.Get("k", 1000); ok {
		t.Error("nil cache must never hit")
	}
	if c.Len() != 0 {
		t.Error("nil cache must be empty")
	}
}

func TestGet_HitAndMaxAge(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("k", &models.ScrapeResponse{Success: true, CacheStatus: "miss"})

	got, ok := c.Get("k", 60_000)
	if !ok || !got.Success {
		t.Fatalf("expected hit, got %v %v", got, ok)
	}
	got.CacheStatus = "hit"
	again, _ := c.Get("k", 60_000)
	if again.CacheStatus != "miss" {
		t.Error("Get must return a copy")
	}

	if _, ok := c.Get("k", 0); ok {
		t.Error("max age 0 must not hit")
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k", 1); ok {
		t.Error("entry older than max age must not hit")
	}
	if _, ok := c.Get("missing", 60_000); ok {
		t.Error("unknown key must not hit")
	}
}

func TestSet_EvictsAtCapacity(t *testing.T) {
	c := New(2, time.Minute)
	c.Set("a", &models.ScrapeResponse{})
	c.Set("b", &models.ScrapeResponse{})
	c.Set("c", &models.ScrapeResponse{})

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("c", 60_000); !ok {
		t.Error("newest entry must be kept")
	}
}
