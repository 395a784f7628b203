package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestIsAdDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"stats.g.doubleclick.net", true},
		{"PAGEAD2.GOOGLESYNDICATION.COM", true},
		{"example.com", false},
		{"notdoubleclick.net", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isAdDomain(tt.host); got != tt.want {
			t.Errorf("isAdDomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestBlockedSet(t *testing.T) {
	got := blockedSet([]string{"Font", "Media", "Bogus"})
	if len(got) != 2 {
		t.Fatalf("expected 2 types, got %d", len(got))
	}
	if _, ok := got[proto.NetworkResourceTypeFont]; !ok {
		t.Error("Font missing")
	}
	if _, ok := got[proto.NetworkResourceTypeMedia]; !ok {
		t.Error("Media missing")
	}
}
