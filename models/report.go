package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the ordinal civic-report priority.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// ParseSeverity accepts a severity name in any letter case.
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if strings.EqualFold(strings.TrimSpace(s), string(sev)) {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Rank orders severities from Low (0) to Critical (3); unknown values are -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// Worse returns whichever of s and o is more severe.
func (s Severity) Worse(o Severity) Severity {
	if o.Rank() > s.Rank() {
		return o
	}
	return s
}

// Status is the lifecycle state of a persisted report.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
)

func (s Status) rank() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusInProgress:
		return 1
	case StatusResolved:
		return 2
	}
	return -1
}

// Active reports whether the incident still needs attention.
func (s Status) Active() bool {
	return s == StatusOpen || s == StatusInProgress
}

// CanTransitionTo reports whether a report may move from s to next.
// Status only moves forward: Open -> In Progress -> Resolved.
func (s Status) CanTransitionTo(next Status) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to >= 0 && to > from
}

// Report is a persisted waterlogging report.
type Report struct {
	ID                   int64      `json:"id"`
	ReporterID           int64      `json:"reporter_id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Severity             Severity   `json:"severity"`
	Status               Status     `json:"status"`
	AssignedAuthorityID  int64      `json:"assigned_authority_id"`
	Lat                  float64    `json:"lat"`
	Lng                  float64    `json:"lng"`
	ImageURL             *string    `json:"image_url"`
	ResolutionNote       *string    `json:"resolution_note"`
	ResolutionProofImage *string    `json:"resolution_proof_image"`
	ResolvedAt           *time.Time `json:"resolved_at"`
	CreatedAt            time.Time  `json:"created_at"`

	ReporterName  string `json:"reporter_name,omitempty"`
	AuthorityName string `json:"authority_name,omitempty"`
	Upvotes       int64  `json:"upvotes"`
}

// Submission is an incoming report that has not cleared moderation and
// duplicate checks yet.
type Submission struct {
	Title               string
	Description         string
	Severity            Severity
	Lat                 float64
	Lng                 float64
	ReporterID          int64
	AssignedAuthorityID int64
	// Image is the stored upload, nil when the citizen attached no photo.
	Image *StoredFile
}

// StoredFile is an upload that has been written to the upload store.
type StoredFile struct {
	// Key locates the object inside the store (file path or object key).
	Key string
	// URL is the address clients use to fetch the file.
	URL string
}

// Verdict is the moderator's classification of a submission.
type Verdict struct {
	Accepted bool
	Reason   string
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	AuthorityID int64
	Status      Status
}

// Resolution is the metadata written once when a report is resolved.
type Resolution struct {
	Note       string
	ProofImage *StoredFile
}

// ReportEvent is published when a report is created or changes state.
type ReportEvent struct {
	Type   string  `json:"type"`
	Report *Report `json:"report"`
	// Cell is the s2 cell token of the report location.
	Cell      string    `json:"cell"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventReportCreated  = "report.created"
	EventReportUpdated  = "report.updated"
	EventReportResolved = "report.resolved"
)
