package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryProviderGetSet(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()

	if _, err := provider.Get(ctx, "absent"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}

	if err := provider.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := provider.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "v" {
		t.Fatalf("value = %q", value)
	}

	if err := provider.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := provider.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestMemoryProviderSetNX(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()

	stored, err := provider.SetNX(ctx, "k", []byte("first"), 0)
	if err != nil || !stored {
		t.Fatalf("first SetNX = (%v, %v)", stored, err)
	}

	stored, err = provider.SetNX(ctx, "k", []byte("second"), 0)
	if err != nil {
		t.Fatalf("second SetNX: %v", err)
	}
	if stored {
		t.Fatal("SetNX overwrote an existing key")
	}

	value, err := provider.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "first" {
		t.Fatalf("value = %q, want first write preserved", value)
	}
}

func TestMemoryProviderTTL(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()

	if err := provider.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	if _, err := provider.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired key to miss, got %v", err)
	}

	stored, err := provider.SetNX(ctx, "k", []byte("fresh"), 0)
	if err != nil || !stored {
		t.Fatalf("SetNX after expiry = (%v, %v)", stored, err)
	}
}

func TestMemoryProviderCopiesValues(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()

	payload := []byte("original")
	if err := provider.Set(ctx, "k", payload, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	payload[0] = 'X'

	value, err := provider.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "original" {
		t.Fatalf("stored value aliased caller buffer: %q", value)
	}
}
