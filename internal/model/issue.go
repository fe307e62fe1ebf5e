package model

import (
	"time"

	"basegraph.app/triage/internal/centroid"
	"github.com/google/uuid"
)

// DocumentScope is the tenancy key every issue lives under.
type DocumentScope struct {
	WorkspaceID  int64
	ProjectID    int64
	DocumentUUID uuid.UUID
}

// Issue is a cluster of semantically similar failures of one prompt document.
type Issue struct {
	ID              int64
	UUID            uuid.UUID
	WorkspaceID     int64
	ProjectID       int64
	DocumentUUID    uuid.UUID
	Title           string
	Description     string
	Centroid        centroid.Centroid
	CreatedAt       time.Time
	UpdatedAt       time.Time
	EscalatingAt    *time.Time
	ResolvedAt      *time.Time
	IgnoredAt       *time.Time
	MergedAt        *time.Time
	MergedToIssueID *int64
}

// IsActive reports whether the issue can still receive assignments and alerts.
func (i *Issue) IsActive() bool {
	return i.ResolvedAt == nil && i.IgnoredAt == nil && i.MergedAt == nil
}

// IsMerged is permanent: a merged issue never becomes a target again.
func (i *Issue) IsMerged() bool {
	return i.MergedAt != nil
}

func (i *Issue) IsEscalating() bool {
	return i.EscalatingAt != nil
}

func (i *Issue) Scope() DocumentScope {
	return DocumentScope{
		WorkspaceID:  i.WorkspaceID,
		ProjectID:    i.ProjectID,
		DocumentUUID: i.DocumentUUID,
	}
}

// IssueEvaluationResult links an evaluation result to an issue.
type IssueEvaluationResult struct {
	ID                 int64
	WorkspaceID        int64
	IssueID            int64
	EvaluationResultID int64
	CommitID           int64
	CreatedAt          time.Time
}

// HistogramKey identifies one occurrence bucket of an issue.
type HistogramKey struct {
	CommitID int64
	Date     time.Time // truncated to the UTC day
}

// IssueHistogram counts the occurrences of an issue per commit and day.
type IssueHistogram struct {
	ID          int64
	WorkspaceID int64
	IssueID     int64
	CommitID    int64
	Date        time.Time
	Count       int32
	OccurredAt  time.Time
}

func (h IssueHistogram) Key() HistogramKey {
	return HistogramKey{CommitID: h.CommitID, Date: h.Date}
}

// HistogramDate truncates t to the UTC day it falls in.
func HistogramDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IssueDetails is the generated, human readable summary of an issue.
type IssueDetails struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
