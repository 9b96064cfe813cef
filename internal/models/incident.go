package models

import (
	"fmt"
	"strings"
	"time"
)

// Status enumerates the incident lifecycle states.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
	StatusMerged        Status = "merged"
)

var validStatuses = map[Status]struct{}{
	StatusOpen:          {},
	StatusInvestigating: {},
	StatusResolved:      {},
	StatusMerged:        {},
}

// ParseStatus validates a wire status string.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := validStatuses[status]; !ok {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", value)}
	}
	return status, nil
}

// Incident is a correlated grouping of investigations believed to represent
// the same underlying operational event. Severity is the maximum over all
// investigations ever attached and never decreases. A merged incident is
// terminal: it is retained for audit but never correlated against or
// modified again.
type Incident struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Severity         Severity  `json:"severity"`
	Status           Status    `json:"status"`
	InvestigationIDs []string  `json:"investigation_ids"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers never alias engine-owned state.
func (i *Incident) Clone() *Incident {
	if i == nil {
		return nil
	}
	cp := *i
	cp.InvestigationIDs = append([]string(nil), i.InvestigationIDs...)
	return &cp
}
