package store

import (
	"basegraph.app/triage/core/db/sqlc"
)

type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) Issues() IssueStore {
	return newIssueStore(s.queries)
}

func (s *Stores) IssueResults() IssueResultStore {
	return newIssueResultStore(s.queries)
}

func (s *Stores) Histograms() HistogramStore {
	return newHistogramStore(s.queries)
}

func (s *Stores) EvaluationResults() EvaluationResultStore {
	return newEvaluationResultStore(s.queries)
}

func (s *Stores) Evaluations() EvaluationStore {
	return newEvaluationStore(s.queries)
}

func (s *Stores) Commits() CommitStore {
	return newCommitStore(s.queries)
}
