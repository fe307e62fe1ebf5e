package store

import (
	"context"
	"errors"
	"time"

	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/model"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrLockTimeout is returned when a row lock could not be acquired within
// the transaction's lock_timeout. Callers should retry the whole operation.
var ErrLockTimeout = errors.New("lock timeout")

// IssueStore defines the contract for issue data access
type IssueStore interface {
	GetByID(ctx context.Context, id int64) (*model.Issue, error)
	// GetByIDForUpdate row-locks the issue until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Issue, error)
	ListByIDs(ctx context.Context, ids []int64) ([]model.Issue, error)
	// LockByIDs row-locks all issues in ascending id order.
	LockByIDs(ctx context.Context, ids []int64) ([]model.Issue, error)
	ListActiveCreatedSince(ctx context.Context, scope model.DocumentScope, since time.Time) ([]model.Issue, error)
	// LockDocument takes a transaction-scoped advisory lock serializing
	// issue creation within one document.
	LockDocument(ctx context.Context, scope model.DocumentScope) error
	Create(ctx context.Context, issue *model.Issue) error
	UpdateCentroid(ctx context.Context, id int64, c centroid.Centroid) error
	UpdateDetails(ctx context.Context, id int64, title, description string) error
	SetEscalating(ctx context.Context, id int64, at *time.Time) error
	MarkMerged(ctx context.Context, winnerID int64, loserIDs []int64, at time.Time) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// IssueResultStore defines the contract for issue <-> evaluation result links
type IssueResultStore interface {
	Create(ctx context.Context, link *model.IssueEvaluationResult) error
	Delete(ctx context.Context, issueID, evaluationResultID int64) error
	// LastActive returns the newest link of the result to an active issue.
	LastActive(ctx context.Context, evaluationResultID int64) (*model.IssueEvaluationResult, error)
	CountByIssue(ctx context.Context, issueID int64) (int64, error)
	HasOtherCommit(ctx context.Context, issueID, commitID int64) (bool, error)
	Repoint(ctx context.Context, winnerID int64, loserIDs []int64) (int64, error)
	ListRecentResults(ctx context.Context, issueID int64, limit int) ([]model.EvaluationResult, error)
}

// HistogramStore defines the contract for issue occurrence counters
type HistogramStore interface {
	Increment(ctx context.Context, h model.IssueHistogram) (*model.IssueHistogram, error)
	Decrement(ctx context.Context, h model.IssueHistogram) (*model.IssueHistogram, error)
	DeleteRow(ctx context.Context, id int64) error
	TotalByIssue(ctx context.Context, issueID int64) (int64, error)
	TotalsByIssues(ctx context.Context, issueIDs []int64) (map[int64]int64, error)
	// CountBetween sums occurrences on days in [from, to).
	CountBetween(ctx context.Context, issueID int64, from, to time.Time) (int64, error)
	MergeInto(ctx context.Context, winnerID int64, loserIDs []int64) error
	DeleteByIssues(ctx context.Context, issueIDs []int64) (int64, error)
	ListByIssue(ctx context.Context, issueID int64) ([]model.IssueHistogram, error)
}

// EvaluationResultStore defines the contract for evaluation result access
type EvaluationResultStore interface {
	GetByID(ctx context.Context, id int64) (*model.EvaluationResult, error)
	SetEnrichedReason(ctx context.Context, id int64, reason string) error
}

// EvaluationStore defines the contract for evaluation access
type EvaluationStore interface {
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.Evaluation, error)
	IgnoreAlertingOn(ctx context.Context, issueIDs []int64, at time.Time) (int64, error)
}

// CommitStore defines the contract for commit access
type CommitStore interface {
	GetByID(ctx context.Context, id int64) (*model.Commit, error)
}
