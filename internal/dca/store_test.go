package dca

import (
	"strings"
	"testing"
	"time"
)

func TestStore_Add(t *testing.T) {
	t.Run("assigns id and creation time", func(t *testing.T) {
		now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
		s := NewStore(WithNow(func() time.Time { return now }))

		rule := s.Add(Rule{UserID: 7, FromSymbol: "USDC", ToSymbol: "BTC", Amount: "10", Cron: "0 * * * *"})
		if len(rule.ID) != 6 {
			t.Errorf("expected 6-char id, got %q", rule.ID)
		}
		if rule.ID != strings.ToUpper(rule.ID) {
			t.Errorf("expected uppercase id, got %q", rule.ID)
		}
		if !rule.CreatedAt.Equal(now) {
			t.Errorf("expected createdAt %v, got %v", now, rule.CreatedAt)
		}

		got, ok := s.Get(rule.ID)
		if !ok {
			t.Fatal("stored rule not found")
		}
		if got.FromSymbol != "USDC" || got.UserID != 7 {
			t.Errorf("stored rule mismatch: %+v", got)
		}
	})

	t.Run("ids are unique", func(t *testing.T) {
		s := NewStore()
		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			r := s.Add(Rule{UserID: 1})
			if seen[r.ID] {
				t.Fatalf("duplicate id %s", r.ID)
			}
			seen[r.ID] = true
		}
	})
}

func TestStore_List(t *testing.T) {
	s := NewStore()
	s.Add(Rule{UserID: 1, FromSymbol: "USDC"})
	s.Add(Rule{UserID: 1, FromSymbol: "NEAR"})
	s.Add(Rule{UserID: 2, FromSymbol: "ETH"})

	if got := len(s.List(1)); got != 2 {
		t.Errorf("expected 2 rules for user 1, got %d", got)
	}
	if got := len(s.List(2)); got != 1 {
		t.Errorf("expected 1 rule for user 2, got %d", got)
	}
	if got := s.List(3); got != nil {
		t.Errorf("expected no rules for user 3, got %v", got)
	}
}

func TestStore_Remove(t *testing.T) {
	t.Run("owner removes own rule", func(t *testing.T) {
		s := NewStore()
		r := s.Add(Rule{UserID: 1})
		if !s.Remove(1, r.ID) {
			t.Fatal("expected removal to succeed")
		}
		if _, ok := s.Get(r.ID); ok {
			t.Error("rule still present after removal")
		}
	})

	t.Run("missing id and foreign owner are indistinguishable", func(t *testing.T) {
		s := NewStore()
		r := s.Add(Rule{UserID: 1})

		if s.Remove(2, r.ID) {
			t.Error("foreign owner must not remove the rule")
		}
		if s.Remove(2, "NOSUCH") {
			t.Error("missing id must report false")
		}
		// Neither attempt mutated anything.
		if _, ok := s.Get(r.ID); !ok {
			t.Error("rule was mutated by failed removal")
		}
	})
}

func TestStore_Touch(t *testing.T) {
	s := NewStore()
	r := s.Add(Rule{UserID: 1})

	at := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	s.Touch(r.ID, at)

	got, _ := s.Get(r.ID)
	if !got.LastRunAt.Equal(at) {
		t.Errorf("expected lastRunAt %v, got %v", at, got.LastRunAt)
	}

	// Touching a removed rule is a no-op.
	s.Remove(1, r.ID)
	s.Touch(r.ID, at.Add(time.Hour))
}
