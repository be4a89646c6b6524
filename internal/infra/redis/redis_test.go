package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newLiveClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping redis test. Set REDIS_URL to run.")
	}
	c, err := NewClient(Config{URL: url, KeyPrefix: "test_" + uuid.NewString()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		c.rdb.Del(ctx, c.processedKey(), c.processedSeqKey())
		c.Close()
	})
	return c
}

func TestProcessedRepo_InsertionOrder(t *testing.T) {
	c := newLiveClient(t)
	repo := NewProcessedRepo(c)
	ctx := context.Background()

	if err := repo.Append(ctx, []string{"0xc", "0xa"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(ctx, []string{"0xb", "0xa"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"0xc", "0xa", "0xb"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %s, want %s", i, got[i], want[i])
		}
	}

	if err := repo.DeleteOldest(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = repo.Load(ctx)
	if len(got) != 1 || got[0] != "0xb" {
		t.Errorf("after eviction got %v, want [0xb]", got)
	}
}

func TestCooldown_Acquire(t *testing.T) {
	c := newLiveClient(t)
	cd := NewCooldown(c)
	ctx := context.Background()
	key := "chain_USDT"
	t.Cleanup(func() { cd.Release(ctx, key) })

	ok, err := cd.Acquire(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = cd.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Error("expected second acquire to be rejected during cooldown")
	}
}
