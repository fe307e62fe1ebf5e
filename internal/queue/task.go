package queue

import "fmt"

type TaskType string

const (
	// TaskTypeResultTransition is emitted when an evaluation result flips
	// between passing and failing.
	TaskTypeResultTransition     TaskType = "result_transition"
	TaskTypeGenerateIssueDetails TaskType = "generate_issue_details"
	TaskTypeMergeCommonIssues    TaskType = "merge_common_issues"
)

type Transition string

const (
	TransitionFailed Transition = "failed"
	TransitionPassed Transition = "passed"
)

type Task struct {
	TaskType           TaskType
	WorkspaceID        int64
	IssueID            *int64
	EvaluationResultID *int64
	Transition         Transition
	TraceID            *string
	Attempt            int
}

// DedupeKey is the idempotency key of a per-issue follow-up job.
func DedupeKey(taskType TaskType, workspaceID, issueID int64) string {
	return fmt.Sprintf("%s:%d:%d", taskType, workspaceID, issueID)
}
