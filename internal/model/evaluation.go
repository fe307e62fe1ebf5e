package model

import (
	"time"

	"github.com/google/uuid"
)

type EvaluationType string

const (
	EvaluationTypeLLM       EvaluationType = "llm"
	EvaluationTypeRule      EvaluationType = "rule"
	EvaluationTypeHuman     EvaluationType = "human"
	EvaluationTypeComposite EvaluationType = "composite"
)

// Metric names per evaluation type. Only the ones with specific reason
// extraction are listed.
const (
	MetricLLMBinary       = "binary"
	MetricLLMRating       = "rating"
	MetricLLMComparison   = "comparison"
	MetricLLMCustom       = "custom"
	MetricRuleExactMatch  = "exact_match"
	MetricRuleRegexMatch  = "regular_expression"
	MetricRuleSchemaMatch = "schema_validation"
	MetricRuleLength      = "length_count"
	MetricRuleLexical     = "lexical_overlap"
	MetricRuleSemantic    = "semantic_similarity"
	MetricHumanBinary     = "binary"
	MetricHumanRating     = "rating"
)

// Evaluation is owned by the evaluation subsystem. The engine reads it to
// pick a reason strategy and writes IgnoredAt when an alerting issue merges.
type Evaluation struct {
	UUID         uuid.UUID
	WorkspaceID  int64
	DocumentUUID uuid.UUID
	Type         EvaluationType
	Metric       string
	AlertIssueID *int64
	IgnoredAt    *time.Time
	CreatedAt    time.Time
}

// SelectedContext is a span of the conversation a human annotator
// highlighted while explaining a failure.
type SelectedContext struct {
	MessageIndex int    `json:"messageIndex"`
	ContentIndex int    `json:"contentIndex"`
	Text         string `json:"text"`
}

// ResultMetadata is the jsonb payload of an evaluation result.
type ResultMetadata struct {
	Reason           string            `json:"reason,omitempty"`
	Actual           string            `json:"actual,omitempty"`
	Expected         string            `json:"expected,omitempty"`
	Threshold        *float64          `json:"threshold,omitempty"`
	SelectedContexts []SelectedContext `json:"selectedContexts,omitempty"`
	EnrichedReason   string            `json:"enrichedReason,omitempty"`
}

// EvaluationResult is one scored run of an evaluation.
type EvaluationResult struct {
	ID              int64
	UUID            uuid.UUID
	WorkspaceID     int64
	CommitID        int64
	EvaluationUUID  uuid.UUID
	ExperimentID    *int64
	Score           *float64
	NormalizedScore *float64
	HasPassed       *bool
	Error           *string
	Metadata        ResultMetadata
	CreatedAt       time.Time

	// Embedding of the enriched reason, carried between the phases of one
	// operation so it is computed once. Never persisted.
	Embedding []float64 `json:"-"`
}

func (r *EvaluationResult) Passed() bool {
	return r.HasPassed != nil && *r.HasPassed
}

func (r *EvaluationResult) Errored() bool {
	return r.Error != nil && *r.Error != ""
}

func (r *EvaluationResult) FromExperiment() bool {
	return r.ExperimentID != nil
}

// Commit is a version of a project. A merged commit is the live one.
type Commit struct {
	ID          int64
	UUID        uuid.UUID
	WorkspaceID int64
	ProjectID   int64
	MergedAt    *time.Time
}

func (c *Commit) IsMerged() bool {
	return c.MergedAt != nil
}
