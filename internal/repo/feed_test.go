package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/miradorstack/mirador-correlate/internal/models"
)

func feedServer(t *testing.T, batches ...[]models.InvestigationRecord) (*httptest.Server, *[]string) {
	t.Helper()
	var sinceParams []string
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sinceParams = append(sinceParams, r.URL.Query().Get("since"))
		batch := []models.InvestigationRecord{}
		if call < len(batches) {
			batch = batches[call]
		}
		call++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"investigations": batch})
	}))
	t.Cleanup(srv.Close)
	return srv, &sinceParams
}

func feedRecord(invID, createdAt string) models.InvestigationRecord {
	return models.InvestigationRecord{
		InvestigationID: invID,
		AlertID:         "alert-" + invID,
		AlertName:       "HighErrorRate",
		Severity:        "high",
		Service:         "checkout",
		Environment:     "production",
		CreatedAt:       createdAt,
	}
}

func TestFetchInvestigations(t *testing.T) {
	srv, _ := feedServer(t, []models.InvestigationRecord{
		feedRecord("inv-1", "2025-06-01T12:00:00Z"),
		feedRecord("inv-2", "2025-06-01T12:01:00Z"),
	})

	client := NewFeedClient(srv.URL, "/api/v1/investigations", 2*time.Second)
	records, err := client.FetchInvestigations(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestFetchInvestigationsSinceParam(t *testing.T) {
	srv, params := feedServer(t, nil)

	client := NewFeedClient(srv.URL, "/api/v1/investigations", 2*time.Second)
	since := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, err := client.FetchInvestigations(context.Background(), since); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*params) != 1 || (*params)[0] != "2025-06-01T12:00:00Z" {
		t.Fatalf("unexpected since params: %v", *params)
	}
}

func TestFetchInvestigationsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewFeedClient(srv.URL, "/api/v1/investigations", 2*time.Second)
	if _, err := client.FetchInvestigations(context.Background(), time.Time{}); err == nil {
		t.Fatalf("expected error on 500")
	}
}

type stubCorrelator struct {
	seen    []string
	failFor map[string]error
}

func (s *stubCorrelator) Correlate(_ context.Context, rec models.InvestigationRecord) (*models.Incident, error) {
	if err, ok := s.failFor[rec.InvestigationID]; ok {
		return nil, err
	}
	s.seen = append(s.seen, rec.InvestigationID)
	return &models.Incident{ID: "cid-" + rec.InvestigationID}, nil
}

func TestPollOnce(t *testing.T) {
	srv, params := feedServer(t,
		[]models.InvestigationRecord{
			feedRecord("inv-1", "2025-06-01T12:00:00Z"),
			feedRecord("inv-2", "2025-06-01T12:05:00Z"),
		},
		[]models.InvestigationRecord{
			feedRecord("inv-3", "2025-06-01T12:10:00Z"),
		},
	)

	correlator := &stubCorrelator{}
	client := NewFeedClient(srv.URL, "/api/v1/investigations", 2*time.Second)
	poller := NewPoller(client, correlator, time.Second, nil)

	n, err := poller.PollOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("first poll: n=%d err=%v", n, err)
	}
	n, err = poller.PollOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("second poll: n=%d err=%v", n, err)
	}

	if len(correlator.seen) != 3 {
		t.Fatalf("expected 3 correlated records, got %v", correlator.seen)
	}
	// Second request carries the watermark from the first batch.
	if (*params)[1] != "2025-06-01T12:05:00Z" {
		t.Fatalf("watermark not advanced: %v", *params)
	}
}

func TestPollOnceSkipsMalformedRecords(t *testing.T) {
	srv, _ := feedServer(t, []models.InvestigationRecord{
		feedRecord("inv-bad", "2025-06-01T12:00:00Z"),
		feedRecord("inv-good", "2025-06-01T12:01:00Z"),
	})

	correlator := &stubCorrelator{
		failFor: map[string]error{"inv-bad": &models.ValidationError{Field: "severity", Reason: "unknown"}},
	}
	client := NewFeedClient(srv.URL, "/api/v1/investigations", 2*time.Second)
	poller := NewPoller(client, correlator, time.Second, nil)

	n, err := poller.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || len(correlator.seen) != 1 || correlator.seen[0] != "inv-good" {
		t.Fatalf("malformed record must be skipped, got n=%d seen=%v", n, correlator.seen)
	}
}
