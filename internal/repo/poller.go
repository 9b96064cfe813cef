package repo

import (
	"context"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-correlate/internal/models"
)

// Correlator is the slice of the service facade the poller needs.
type Correlator interface {
	Correlate(ctx context.Context, rec models.InvestigationRecord) (*models.Incident, error)
}

// Poller periodically drains the investigation feed into the correlator. It
// tracks a created_at watermark so each poll only asks for new records;
// records the feed re-delivers anyway are harmless because correlation is
// idempotent on investigation id.
type Poller struct {
	client     *FeedClient
	correlator Correlator
	interval   time.Duration
	logger     *slog.Logger
	since      time.Time
}

// NewPoller constructs a Poller over the given feed client.
func NewPoller(client *FeedClient, correlator Correlator, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:     client,
		correlator: correlator,
		interval:   interval,
		logger:     logger,
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := p.PollOnce(ctx); err != nil {
				p.logger.Warn("feed poll failed", slog.Any("error", err))
			} else if n > 0 {
				p.logger.Debug("feed poll complete", slog.Int("investigations", n))
			}
		}
	}
}

// PollOnce fetches one batch and correlates every valid record, returning the
// number of records accepted. Malformed records are logged and skipped.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	records, err := p.client.FetchInvestigations(ctx, p.since)
	if err != nil {
		return 0, err
	}

	accepted := 0
	for _, rec := range records {
		if _, err := p.correlator.Correlate(ctx, rec); err != nil {
			p.logger.Warn("skipping malformed investigation",
				slog.String("investigation_id", rec.InvestigationID),
				slog.Any("error", err))
			continue
		}
		accepted++
		if createdAt, parseErr := time.Parse(time.RFC3339, rec.CreatedAt); parseErr == nil {
			if createdAt.After(p.since) {
				p.since = createdAt.UTC()
			}
		}
	}
	return accepted, nil
}
