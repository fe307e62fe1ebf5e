package issues

import (
	"context"
	"errors"
	"fmt"

	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/store"
)

// Skip bypasses individual eligibility checks. Removal skips the passed
// and assigned checks; generation from existing occurrences skips the
// assigned check.
type Skip struct {
	Passed   bool
	Assigned bool
	Reason   bool
}

type Eligibility struct {
	Result     *model.EvaluationResult
	Evaluation *model.Evaluation
	// Issue is the optional target of the operation.
	Issue *model.Issue
	Skip  Skip
}

// Validate reports whether a result may take part in issue clustering.
// Rules run in a fixed order and the first failure wins. It has no side
// effects and must be re-run once the target issue is locked.
func Validate(ctx context.Context, links store.IssueResultStore, reasons *Reasons, in Eligibility) error {
	r := in.Result

	if r.Errored() {
		return unprocessable(ErrResultErrored, fmt.Sprintf("result %d", r.ID))
	}

	if !in.Skip.Passed && r.Passed() {
		return unprocessable(ErrResultPassed, fmt.Sprintf("result %d", r.ID))
	}

	if !in.Skip.Assigned {
		link, err := links.LastActive(ctx, r.ID)
		switch {
		case err == nil:
			return unprocessable(ErrResultAlreadyAssigned, fmt.Sprintf("result %d is in issue %d", r.ID, link.IssueID))
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("looking up assignment of result %d: %w", r.ID, err)
		}
	}

	if !reasons.Supports(in.Evaluation) {
		return unprocessable(ErrUnsupportedEvaluation, string(in.Evaluation.Type))
	}

	if !in.Skip.Reason && reasons.Reason(in.Evaluation, r) == "" {
		return unprocessable(ErrNoReasoning, fmt.Sprintf("result %d", r.ID))
	}

	if in.Issue != nil && in.Issue.IsMerged() {
		return unprocessable(ErrIssueMerged, fmt.Sprintf("issue %d", in.Issue.ID))
	}

	return nil
}

func (s *service) validate(ctx context.Context, sp StoreProvider, in Eligibility) error {
	return Validate(ctx, sp.IssueResults(), s.reasons, in)
}
