package engine

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-correlate/internal/models"
	"github.com/miradorstack/mirador-correlate/internal/store"
)

// Outcome classifies what Correlate did with an investigation.
type Outcome string

const (
	// OutcomeCreated means no incident matched and a new one was opened.
	OutcomeCreated Outcome = "created"
	// OutcomeAttached means a topology/time-window candidate absorbed it.
	OutcomeAttached Outcome = "attached"
	// OutcomeDeduped means the alert id was already known.
	OutcomeDeduped Outcome = "deduped"
)

// Engine decides whether an incoming investigation is a new incident or a
// continuation of one in flight. A single mutex guards the whole engine: the
// candidate scan and the subsequent mutation are not atomic on their own, so
// every operation runs under the one lock domain.
type Engine struct {
	mu     sync.Mutex
	store  *store.Store
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New constructs an engine over the injected store. window is the maximum
// time delta for topology correlation.
func New(st *store.Store, window time.Duration, logger *slog.Logger) *Engine {
	if st == nil {
		st = store.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  st,
		window: window,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Correlate attaches the investigation to an existing incident or opens a new
// one. Input must already be validated; there is no error path.
//
// Match order: exact dedup on alert id first, then topology plus time window
// over non-merged incidents. The window boundary is inclusive: a candidate
// whose last attachment is exactly window away still matches. When several
// candidates qualify, the most recently updated one wins.
func (e *Engine) Correlate(inv models.Investigation) (*models.Incident, Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if incidentID, ok := e.store.IncidentForAlert(inv.AlertID); ok {
		e.store.Attach(incidentID, inv, e.now())
		inc, _ := e.store.Get(incidentID)
		e.logger.Debug("investigation deduped",
			slog.String("investigation_id", inv.InvestigationID),
			slog.String("incident_id", incidentID))
		return inc.Clone(), OutcomeDeduped
	}

	if candidateID, ok := e.matchCandidate(inv); ok {
		e.store.Attach(candidateID, inv, e.now())
		inc, _ := e.store.Get(candidateID)
		e.logger.Debug("investigation correlated",
			slog.String("investigation_id", inv.InvestigationID),
			slog.String("incident_id", candidateID))
		return inc.Clone(), OutcomeAttached
	}

	inc := &models.Incident{
		ID:               "cid-" + uuid.NewString(),
		Title:            inv.AlertName,
		Severity:         inv.Severity,
		Status:           models.StatusOpen,
		InvestigationIDs: []string{inv.InvestigationID},
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        e.now(),
	}
	e.store.Insert(inc, inv)
	e.logger.Info("incident opened",
		slog.String("incident_id", inc.ID),
		slog.String("service", inv.Service),
		slog.String("environment", inv.Environment),
		slog.String("severity", string(inv.Severity)))
	return inc.Clone(), OutcomeCreated
}

func (e *Engine) matchCandidate(inv models.Investigation) (string, bool) {
	var (
		best    string
		bestSeq uint64
		found   bool
	)
	for _, id := range e.store.Candidates(inv.Service, inv.Environment) {
		if !e.withinWindow(e.store.LastAttachedAt(id), inv.CreatedAt) {
			continue
		}
		if seq := e.store.TouchSeq(id); !found || seq > bestSeq {
			best, bestSeq, found = id, seq, true
		}
	}
	return best, found
}

func (e *Engine) withinWindow(a, b time.Time) bool {
	delta := b.Sub(a)
	if delta < 0 {
		delta = -delta
	}
	return delta <= e.window
}

// Merge folds the source incident into the target. It returns (nil, false)
// without mutating anything for a self-merge, an unknown id, or when either
// incident is already merged.
func (e *Engine) Merge(sourceID, targetID string) (*models.Incident, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sourceID == targetID {
		return nil, false
	}
	source, ok := e.store.Get(sourceID)
	if !ok || source.Status == models.StatusMerged {
		return nil, false
	}
	target, ok := e.store.Get(targetID)
	if !ok || target.Status == models.StatusMerged {
		return nil, false
	}

	merged := e.store.Merge(sourceID, targetID, e.now())
	e.logger.Info("incidents merged",
		slog.String("source_id", sourceID),
		slog.String("target_id", targetID),
		slog.Int("investigations", len(merged.InvestigationIDs)))
	return merged.Clone(), true
}

// UpdateStatus sets the incident status. It returns false for an unknown id
// or for an incident already merged; merged is terminal. Any other status
// transition is accepted without a transition table.
func (e *Engine) UpdateStatus(id string, status models.Status) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	inc, ok := e.store.Get(id)
	if !ok || inc.Status == models.StatusMerged {
		return false
	}
	e.store.SetStatus(id, status, e.now())
	return true
}

// GetIncident returns a copy of the incident, or false when unknown.
func (e *Engine) GetIncident(id string) (*models.Incident, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inc, ok := e.store.Get(id)
	if !ok {
		return nil, false
	}
	return inc.Clone(), true
}

// IncidentForInvestigation resolves an investigation id to its owning
// incident through the reverse index.
func (e *Engine) IncidentForInvestigation(investigationID string) (*models.Incident, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.store.IncidentForInvestigation(investigationID)
	if !ok {
		return nil, false
	}
	inc, ok := e.store.Get(id)
	if !ok {
		return nil, false
	}
	return inc.Clone(), true
}

// ListIncidents returns incidents sorted by created_at descending (creation
// order breaks ties, so adjacent pages never overlap or skip), optionally
// filtered by exact status, then sliced by (offset, offset+limit).
func (e *Engine) ListIncidents(status *models.Status, limit, offset int) []*models.Incident {
	e.mu.Lock()
	defer e.mu.Unlock()

	all := e.store.All()
	filtered := make([]*models.Incident, 0, len(all))
	for _, inc := range all {
		if status != nil && inc.Status != *status {
			continue
		}
		filtered = append(filtered, inc)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		}
		return e.store.CreatedSeq(filtered[i].ID) > e.store.CreatedSeq(filtered[j].ID)
	})

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(filtered) {
		return []*models.Incident{}
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}

	page := make([]*models.Incident, 0, end-offset)
	for _, inc := range filtered[offset:end] {
		page = append(page, inc.Clone())
	}
	return page
}

// ActiveIncidents reports the number of non-merged incidents.
func (e *Engine) ActiveIncidents() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ActiveCount()
}
