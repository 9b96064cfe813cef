package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-correlate/internal/cache"
	"github.com/miradorstack/mirador-correlate/internal/models"
)

// keyPrefix namespaces incident snapshots in the shared cache.
const keyPrefix = "incident:"

// Publisher mirrors incident state into a cache so notification integrations
// can read the latest snapshot without calling the API. Publishing is best
// effort: failures are logged and never fail the originating operation.
type Publisher struct {
	provider cache.Provider
	ttl      time.Duration
	logger   *slog.Logger
}

// NewPublisher constructs a Publisher over the given provider.
func NewPublisher(provider cache.Provider, ttl time.Duration, logger *slog.Logger) *Publisher {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{provider: provider, ttl: ttl, logger: logger}
}

// Publish stores the incident's JSON snapshot under incident:<id>.
func (p *Publisher) Publish(ctx context.Context, inc *models.Incident) {
	if inc == nil {
		return
	}
	payload, err := json.Marshal(inc)
	if err != nil {
		p.logger.Warn("snapshot marshal failed", slog.String("incident_id", inc.ID), slog.Any("error", err))
		return
	}
	if err := p.provider.Set(ctx, Key(inc.ID), payload, p.ttl); err != nil {
		p.logger.Warn("snapshot publish failed", slog.String("incident_id", inc.ID), slog.Any("error", err))
	}
}

// Key returns the cache key for an incident id.
func Key(incidentID string) string {
	return fmt.Sprintf("%s%s", keyPrefix, incidentID)
}
