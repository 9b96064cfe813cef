package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/miradorstack/mirador-correlate/internal/cache"
	"github.com/miradorstack/mirador-correlate/internal/models"
)

type stubCache struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
	setErr  error
}

func newStubCache() *stubCache {
	return &stubCache{
		entries: make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
	}
}

func (s *stubCache) Get(_ context.Context, key string) ([]byte, error) {
	if value, ok := s.entries[key]; ok {
		return value, nil
	}
	return nil, cache.ErrCacheMiss
}

func (s *stubCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *stubCache) Del(_ context.Context, key string) error {
	delete(s.entries, key)
	return nil
}

func (s *stubCache) Close() error { return nil }

func TestPublishStoresSnapshot(t *testing.T) {
	stub := newStubCache()
	pub := NewPublisher(stub, time.Hour, nil)

	inc := &models.Incident{
		ID:               "cid-1",
		Severity:         models.SeverityHigh,
		Status:           models.StatusOpen,
		InvestigationIDs: []string{"inv-1"},
	}
	pub.Publish(context.Background(), inc)

	raw, ok := stub.entries[Key("cid-1")]
	if !ok {
		t.Fatalf("snapshot not stored")
	}
	var got models.Incident
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("snapshot not valid JSON: %v", err)
	}
	if got.ID != "cid-1" || got.Severity != models.SeverityHigh {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if stub.ttls[Key("cid-1")] != time.Hour {
		t.Fatalf("expected configured TTL, got %s", stub.ttls[Key("cid-1")])
	}
}

func TestPublishIsBestEffort(t *testing.T) {
	stub := newStubCache()
	stub.setErr = errors.New("connection refused")
	pub := NewPublisher(stub, time.Hour, nil)

	// Must not panic or propagate the failure.
	pub.Publish(context.Background(), &models.Incident{ID: "cid-1"})
	pub.Publish(context.Background(), nil)
}

func TestKey(t *testing.T) {
	if got := Key("cid-1"); got != "incident:cid-1" {
		t.Fatalf("unexpected key %q", got)
	}
}
