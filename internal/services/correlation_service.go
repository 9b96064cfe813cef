package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-correlate/internal/engine"
	"github.com/miradorstack/mirador-correlate/internal/metrics"
	"github.com/miradorstack/mirador-correlate/internal/models"
	"github.com/miradorstack/mirador-correlate/internal/snapshot"
	"github.com/miradorstack/mirador-correlate/internal/utils"
)

// CorrelationService fronts the correlation engine for transports: it owns
// boundary validation, metrics, latency tracking and snapshot publishing so
// the engine stays pure.
type CorrelationService struct {
	logger    *slog.Logger
	engine    *engine.Engine
	publisher *snapshot.Publisher
	latencies *utils.LatencyTracker
}

// NewCorrelationService constructs the service facade.
func NewCorrelationService(logger *slog.Logger, eng *engine.Engine, publisher *snapshot.Publisher) *CorrelationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorrelationService{
		logger:    logger,
		engine:    eng,
		publisher: publisher,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Correlate validates the wire record and routes it through the engine. A
// validation failure is the only error path; correlation itself cannot fail.
func (s *CorrelationService) Correlate(ctx context.Context, rec models.InvestigationRecord) (*models.Incident, error) {
	inv, err := models.ParseInvestigation(rec)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	inc, outcome := s.engine.Correlate(inv)
	duration := time.Since(start)

	metrics.ObserveCorrelation(duration, string(outcome))
	metrics.SetActiveIncidents(s.engine.ActiveIncidents())
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 100 && count%100 == 0 {
		s.logger.Info("correlation latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", count))
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, inc)
	}
	return inc, nil
}

// Merge folds source into target, returning the not-found sentinel when the
// engine rejects the pair.
func (s *CorrelationService) Merge(ctx context.Context, sourceID, targetID string) (*models.Incident, bool) {
	target, ok := s.engine.Merge(sourceID, targetID)
	metrics.ObserveMerge(ok)
	if !ok {
		return nil, false
	}
	metrics.SetActiveIncidents(s.engine.ActiveIncidents())

	if s.publisher != nil {
		s.publisher.Publish(ctx, target)
		if source, found := s.engine.GetIncident(sourceID); found {
			s.publisher.Publish(ctx, source)
		}
	}
	return target, true
}

// UpdateStatus transitions an incident's status, returning the updated
// incident or the not-found sentinel.
func (s *CorrelationService) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.Incident, bool) {
	ok := s.engine.UpdateStatus(id, status)
	metrics.ObserveStatusUpdate(ok)
	if !ok {
		return nil, false
	}
	metrics.SetActiveIncidents(s.engine.ActiveIncidents())

	inc, _ := s.engine.GetIncident(id)
	if s.publisher != nil {
		s.publisher.Publish(ctx, inc)
	}
	return inc, true
}

// GetIncident looks up an incident by id.
func (s *CorrelationService) GetIncident(id string) (*models.Incident, bool) {
	return s.engine.GetIncident(id)
}

// IncidentForInvestigation resolves an investigation id to its incident.
func (s *CorrelationService) IncidentForInvestigation(investigationID string) (*models.Incident, bool) {
	return s.engine.IncidentForInvestigation(investigationID)
}

// ListIncidents returns a page of incidents, newest first.
func (s *CorrelationService) ListIncidents(status *models.Status, limit, offset int) []*models.Incident {
	return s.engine.ListIncidents(status, limit, offset)
}

// LatencyP95 returns the current p95 correlation latency.
func (s *CorrelationService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}
