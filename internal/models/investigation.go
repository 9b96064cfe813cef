package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity captures impact levels on an ordinal scale.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordinal position of the severity; unknown values rank lowest.
func (s Severity) Rank() int {
	return severityRank[s]
}

// MaxSeverity returns the higher of two severities on the ordinal scale.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseSeverity validates a wire severity string.
func ParseSeverity(value string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := severityRank[sev]; !ok {
		return "", &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", value)}
	}
	return sev, nil
}

// Investigation is a normalized diagnostic record produced by the upstream
// agent pipeline. AlertID repeats across retries of the same alert.
type Investigation struct {
	InvestigationID string
	AlertID         string
	AlertName       string
	Severity        Severity
	Service         string
	Environment     string
	CreatedAt       time.Time
}

// InvestigationRecord is the wire form of an investigation as delivered by
// the pipeline. CreatedAt is RFC3339.
type InvestigationRecord struct {
	InvestigationID string `json:"investigation_id"`
	AlertID         string `json:"alert_id"`
	AlertName       string `json:"alert_name"`
	Severity        string `json:"severity"`
	Service         string `json:"service"`
	Environment     string `json:"environment"`
	CreatedAt       string `json:"created_at"`
}

// ValidationError reports a malformed field on an inbound record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ParseInvestigation validates the wire record and converts it into the typed
// form. Every required field is checked here so the correlation engine never
// sees a partial investigation.
func ParseInvestigation(rec InvestigationRecord) (Investigation, error) {
	required := []struct {
		field string
		value string
	}{
		{"investigation_id", rec.InvestigationID},
		{"alert_id", rec.AlertID},
		{"service", rec.Service},
		{"environment", rec.Environment},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return Investigation{}, &ValidationError{Field: r.field, Reason: "required"}
		}
	}

	sev, err := ParseSeverity(rec.Severity)
	if err != nil {
		return Investigation{}, err
	}

	createdAt, err := time.Parse(time.RFC3339, rec.CreatedAt)
	if err != nil {
		return Investigation{}, &ValidationError{Field: "created_at", Reason: err.Error()}
	}

	return Investigation{
		InvestigationID: rec.InvestigationID,
		AlertID:         rec.AlertID,
		AlertName:       rec.AlertName,
		Severity:        sev,
		Service:         rec.Service,
		Environment:     rec.Environment,
		CreatedAt:       createdAt.UTC(),
	}, nil
}
