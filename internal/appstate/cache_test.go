package appstate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFetchCachesUntilInvalidated(t *testing.T) {
	c := New(0)
	calls := 0
	fetch := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := Fetch(ctx, c, "users:1", []string{TagUsers}, fetch)
		if err != nil || v != 1 {
			t.Fatalf("Fetch = %d, %v; want 1", v, err)
		}
	}
	if _, err := Fetch(ctx, c, "items:1", []string{TagItems}, fetch); err != nil {
		t.Fatal(err)
	}

	if n := c.Invalidate(TagUsers); n != 1 {
		t.Fatalf("Invalidate removed %d, want 1", n)
	}
	if v, _ := Fetch(ctx, c, "users:1", []string{TagUsers}, fetch); v != 3 {
		t.Fatalf("after invalidation got %d, want fresh value 3", v)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	c := New(0)
	boom := errors.New("boom")
	if _, err := Fetch(context.Background(), c, "k", nil, func(context.Context) (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("error result was cached")
	}
}

func TestMaxAge(t *testing.T) {
	c := New(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	calls := 0
	fetch := func(context.Context) (int, error) { calls++; return calls, nil }

	Fetch(context.Background(), c, "me", []string{TagCurrentUser}, fetch)
	now = now.Add(2 * time.Minute)
	if v, _ := Fetch(context.Background(), c, "me", []string{TagCurrentUser}, fetch); v != 2 {
		t.Fatalf("stale entry served: %d", v)
	}
}
