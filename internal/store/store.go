package store

import (
	"time"

	"github.com/miradorstack/mirador-correlate/internal/models"
)

type topologyKey struct {
	service     string
	environment string
}

// incidentMeta carries correlation bookkeeping that is not part of the
// serialized incident: the topology anchor (service/environment/timestamp of
// the most recently attached investigation) and monotone sequence numbers
// used for deterministic ordering.
type incidentMeta struct {
	lastService     string
	lastEnvironment string
	lastAttachedAt  time.Time
	createdSeq      uint64
	touchSeq        uint64
}

// Store is the authoritative in-memory incident map plus the three secondary
// indexes used by correlation: exact-match (alert id -> incident), topology
// ((service, environment) -> candidate incidents) and reverse (investigation
// id -> incident). It holds no locks; the owning engine serializes access.
type Store struct {
	incidents       map[string]*models.Incident
	meta            map[string]*incidentMeta
	byAlert         map[string]string
	byInvestigation map[string]string
	byTopology      map[topologyKey]map[string]struct{}
	seq             uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		incidents:       make(map[string]*models.Incident),
		meta:            make(map[string]*incidentMeta),
		byAlert:         make(map[string]string),
		byInvestigation: make(map[string]string),
		byTopology:      make(map[topologyKey]map[string]struct{}),
	}
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// Insert registers a freshly created incident and indexes its first
// investigation.
func (s *Store) Insert(inc *models.Incident, inv models.Investigation) {
	seq := s.nextSeq()
	s.incidents[inc.ID] = inc
	s.meta[inc.ID] = &incidentMeta{
		lastService:     inv.Service,
		lastEnvironment: inv.Environment,
		lastAttachedAt:  inv.CreatedAt,
		createdSeq:      seq,
		touchSeq:        seq,
	}
	s.byAlert[inv.AlertID] = inc.ID
	s.byInvestigation[inv.InvestigationID] = inc.ID
	s.addToTopology(inc.ID, topologyKey{inv.Service, inv.Environment})
}

// Get returns the live incident object, or false when unknown.
func (s *Store) Get(id string) (*models.Incident, bool) {
	inc, ok := s.incidents[id]
	return inc, ok
}

// IncidentForAlert resolves the exact-dedup index.
func (s *Store) IncidentForAlert(alertID string) (string, bool) {
	id, ok := s.byAlert[alertID]
	return id, ok
}

// IncidentForInvestigation resolves the reverse index.
func (s *Store) IncidentForInvestigation(investigationID string) (string, bool) {
	id, ok := s.byInvestigation[investigationID]
	return id, ok
}

// Attach appends an investigation to an existing incident. Re-processing the
// same investigation is idempotent for the list and the indexes, but still
// refreshes updated_at and re-runs severity escalation.
func (s *Store) Attach(incidentID string, inv models.Investigation, now time.Time) {
	inc, ok := s.incidents[incidentID]
	if !ok {
		return
	}

	if !containsString(inc.InvestigationIDs, inv.InvestigationID) {
		inc.InvestigationIDs = append(inc.InvestigationIDs, inv.InvestigationID)
	}
	s.byInvestigation[inv.InvestigationID] = incidentID
	if _, exists := s.byAlert[inv.AlertID]; !exists {
		s.byAlert[inv.AlertID] = incidentID
	}

	inc.Severity = models.MaxSeverity(inc.Severity, inv.Severity)
	inc.UpdatedAt = now

	meta := s.meta[incidentID]
	oldKey := topologyKey{meta.lastService, meta.lastEnvironment}
	newKey := topologyKey{inv.Service, inv.Environment}
	if oldKey != newKey {
		s.removeFromTopology(incidentID, oldKey)
		s.addToTopology(incidentID, newKey)
	}
	meta.lastService = inv.Service
	meta.lastEnvironment = inv.Environment
	meta.lastAttachedAt = inv.CreatedAt
	meta.touchSeq = s.nextSeq()
}

// Candidates returns the non-merged incidents whose most recently attached
// investigation shares the given service and environment.
func (s *Store) Candidates(service, environment string) []string {
	bucket := s.byTopology[topologyKey{service, environment}]
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		if inc, ok := s.incidents[id]; ok && inc.Status != models.StatusMerged {
			ids = append(ids, id)
		}
	}
	return ids
}

// LastAttachedAt returns the created_at of the incident's most recently
// attached investigation.
func (s *Store) LastAttachedAt(id string) time.Time {
	if meta, ok := s.meta[id]; ok {
		return meta.lastAttachedAt
	}
	return time.Time{}
}

// TouchSeq returns the monotone sequence of the incident's last mutation.
// Higher means more recently updated.
func (s *Store) TouchSeq(id string) uint64 {
	if meta, ok := s.meta[id]; ok {
		return meta.touchSeq
	}
	return 0
}

// CreatedSeq returns the monotone creation sequence of the incident.
func (s *Store) CreatedSeq(id string) uint64 {
	if meta, ok := s.meta[id]; ok {
		return meta.createdSeq
	}
	return 0
}

// SetStatus transitions the incident status and refreshes updated_at.
func (s *Store) SetStatus(id string, status models.Status, now time.Time) {
	inc, ok := s.incidents[id]
	if !ok {
		return
	}
	inc.Status = status
	inc.UpdatedAt = now
	s.meta[id].touchSeq = s.nextSeq()
	if status == models.StatusMerged {
		s.removeFromTopology(id, topologyKey{s.meta[id].lastService, s.meta[id].lastEnvironment})
	}
}

// Merge concatenates the source incident's investigations onto the target,
// re-points the reverse and exact-dedup indexes at the target, retires the
// source (status merged, removed from topology candidacy) and refreshes the
// target's updated_at. The source keeps its investigation list for audit.
func (s *Store) Merge(sourceID, targetID string, now time.Time) *models.Incident {
	source, ok := s.incidents[sourceID]
	if !ok {
		return nil
	}
	target, ok := s.incidents[targetID]
	if !ok {
		return nil
	}

	for _, invID := range source.InvestigationIDs {
		if !containsString(target.InvestigationIDs, invID) {
			target.InvestigationIDs = append(target.InvestigationIDs, invID)
		}
		s.byInvestigation[invID] = targetID
	}
	for alertID, owner := range s.byAlert {
		if owner == sourceID {
			s.byAlert[alertID] = targetID
		}
	}

	sourceMeta := s.meta[sourceID]
	s.removeFromTopology(sourceID, topologyKey{sourceMeta.lastService, sourceMeta.lastEnvironment})
	source.Status = models.StatusMerged
	source.UpdatedAt = now
	sourceMeta.touchSeq = s.nextSeq()

	target.UpdatedAt = now
	s.meta[targetID].touchSeq = s.nextSeq()
	return target
}

// All returns the live incident objects in unspecified order.
func (s *Store) All() []*models.Incident {
	out := make([]*models.Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		out = append(out, inc)
	}
	return out
}

// ActiveCount reports the number of non-merged incidents.
func (s *Store) ActiveCount() int {
	n := 0
	for _, inc := range s.incidents {
		if inc.Status != models.StatusMerged {
			n++
		}
	}
	return n
}

func (s *Store) addToTopology(id string, key topologyKey) {
	bucket, ok := s.byTopology[key]
	if !ok {
		bucket = make(map[string]struct{})
		s.byTopology[key] = bucket
	}
	bucket[id] = struct{}{}
}

func (s *Store) removeFromTopology(id string, key topologyKey) {
	if bucket, ok := s.byTopology[key]; ok {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(s.byTopology, key)
		}
	}
}

func containsString(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
