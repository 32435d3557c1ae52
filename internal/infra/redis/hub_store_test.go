package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewHubStore(client, time.Minute)

	hub := store.GetOrCreate("league-1")
	if !mr.Exists("league:live:league-1") {
		t.Fatalf("expected redis key to be set")
	}
	if again := store.GetOrCreate("league-1"); again != hub {
		t.Fatalf("expected the same hub for the same league")
	}
	if _, ok := store.Get("league-1"); !ok {
		t.Fatalf("expected hub to be registered")
	}

	store.DeleteIfIdle("league-1")
	if mr.Exists("league:live:league-1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("league-1"); ok {
		t.Fatalf("expected idle hub to be dropped")
	}
}
