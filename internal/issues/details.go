package issues

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentLookups = 4

// RegenerateDetails rewrites an issue's title and description from its
// latest occurrences, using the current details as context. An issue whose
// occurrences carry no usable reason is left unchanged.
func (s *service) RegenerateDetails(ctx context.Context, issueID int64) (*model.Issue, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		IssueID:   logger.Ptr(issueID),
		Component: "triage.issues.details",
	})

	issue, err := s.stores.Issues().GetByID(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("fetching issue %d: %w", issueID, err)
	}
	if issue.IsMerged() {
		slog.DebugContext(ctx, "skipping details of merged issue")
		return issue, nil
	}

	results, err := s.stores.IssueResults().ListRecentResults(ctx, issueID, s.cfg.DetailsSampleSize)
	if err != nil {
		return nil, fmt.Errorf("listing results of issue %d: %w", issueID, err)
	}

	pairs, err := s.withEvaluations(ctx, results)
	if err != nil {
		return nil, err
	}

	details, err := s.Generate(ctx, GenerateParams{
		Context: issue.Title + "\n" + issue.Description,
		Results: pairs,
		Skip:    Skip{Assigned: true},
	})
	if errors.Is(err, ErrNotEnoughReasons) {
		slog.InfoContext(ctx, "no usable reasons to regenerate issue details", "results", len(results))
		return issue, nil
	}
	if err != nil {
		return nil, err
	}

	var fx afterCommit
	err = s.tx.WithTx(ctx, func(sp StoreProvider) error {
		fx = afterCommit{}
		locked, err := sp.Issues().GetByIDForUpdate(ctx, issueID)
		if err != nil {
			return fmt.Errorf("locking issue %d: %w", issueID, err)
		}
		issue = locked
		if locked.IsMerged() {
			return nil
		}
		if locked.Title == details.Title && locked.Description == details.Description {
			return nil
		}
		if err := sp.Issues().UpdateDetails(ctx, issueID, details.Title, details.Description); err != nil {
			return fmt.Errorf("saving details of issue %d: %w", issueID, err)
		}
		locked.Title, locked.Description = details.Title, details.Description
		s.syncIndex(&fx, locked)
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.run(ctx)
	slog.InfoContext(ctx, "issue details regenerated", "title", issue.Title)
	return issue, nil
}

// withEvaluations pairs each result with its evaluation. Results whose
// evaluation is gone are dropped.
func (s *service) withEvaluations(ctx context.Context, results []model.EvaluationResult) ([]ResultWithEvaluation, error) {
	var (
		mu          sync.Mutex
		evaluations = make(map[uuid.UUID]*model.Evaluation)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	seen := make(map[uuid.UUID]struct{})
	for _, r := range results {
		if _, ok := seen[r.EvaluationUUID]; ok {
			continue
		}
		seen[r.EvaluationUUID] = struct{}{}
		evaluationUUID := r.EvaluationUUID
		g.Go(func() error {
			evaluation, err := s.stores.Evaluations().GetByUUID(gctx, evaluationUUID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil
				}
				return fmt.Errorf("fetching evaluation %s: %w", evaluationUUID, err)
			}
			mu.Lock()
			evaluations[evaluationUUID] = evaluation
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pairs := make([]ResultWithEvaluation, 0, len(results))
	for i := range results {
		evaluation, ok := evaluations[results[i].EvaluationUUID]
		if !ok {
			continue
		}
		pairs = append(pairs, ResultWithEvaluation{Result: &results[i], Evaluation: evaluation})
	}
	return pairs, nil
}
