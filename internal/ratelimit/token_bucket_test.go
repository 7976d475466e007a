package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestBurstThenDeny(t *testing.T) {
	bucket := PerMinute(3)
	for i := 0; i < 3; i++ {
		if !bucket.Allow() {
			t.Fatalf("allow %d should succeed within burst", i)
		}
	}
	if bucket.Allow() {
		t.Fatal("fourth immediate request should be denied")
	}
}

func TestRefill(t *testing.T) {
	bucket := PerMinute(60) // one token per second
	for i := 0; i < 60; i++ {
		bucket.Allow()
	}
	if bucket.Allow() {
		t.Fatal("bucket should be empty")
	}
	// Simulate time passing instead of sleeping.
	bucket.mu.Lock()
	bucket.last = bucket.last.Add(-2 * time.Second)
	bucket.mu.Unlock()
	if !bucket.Allow() {
		t.Fatal("bucket should have refilled after two seconds")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	bucket := PerMinute(1)
	if err := bucket.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := bucket.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNilBucketIsUnlimited(t *testing.T) {
	var bucket *TokenBucket
	if !bucket.Allow() {
		t.Fatal("nil bucket must allow")
	}
	if err := bucket.Wait(context.Background()); err != nil {
		t.Fatalf("nil bucket wait: %v", err)
	}
}
