package issues

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"basegraph.app/triage/common/cache"
	"basegraph.app/triage/common/llm"
	"basegraph.app/triage/internal/model"
)

// ResultWithEvaluation pairs a result with the evaluation that produced it.
type ResultWithEvaluation struct {
	Result     *model.EvaluationResult
	Evaluation *model.Evaluation
}

type GenerateParams struct {
	// Context is optional free text, e.g. the current title and description
	// when regenerating an existing issue.
	Context string
	Results []ResultWithEvaluation
	// Skip relaxes eligibility for results that are already occurrences.
	Skip Skip
}

const detailsSystemPrompt = `You name recurring failures of an LLM prompt.
Given failure reasons of evaluation results that belong to the same issue, write:
- title: at most 10 words naming the failure pattern, no trailing period
- description: one or two sentences describing what goes wrong and when
Generalize across the reasons. Do not quote a single reason verbatim and do not mention evaluations or scores.`

const generalizeSystemPrompt = `A human reviewer explained why an LLM response failed and highlighted the parts of the conversation involved.
Rewrite the explanation as a single self-contained failure reason that would also apply to similar responses.
Refer to the highlighted content by what it is, not by position.`

type generalizedReason struct {
	Reason string `json:"reason" jsonschema_description:"Generalized failure reason"`
}

// Generate summarizes failure reasons into issue details. Results without
// a usable reason are skipped; if none remain it fails with
// ErrNotEnoughReasons. Identical inputs hit the cache.
func (s *service) Generate(ctx context.Context, p GenerateParams) (*model.IssueDetails, error) {
	reasons := make([]string, 0, len(p.Results))
	for _, pair := range p.Results {
		err := s.validate(ctx, s.stores, Eligibility{
			Result:     pair.Result,
			Evaluation: pair.Evaluation,
			Skip:       Skip{Passed: p.Skip.Passed, Assigned: p.Skip.Assigned, Reason: true},
		})
		if err != nil {
			if IsUnprocessable(err) {
				slog.DebugContext(ctx, "skipping result for generation", "error", err, "evaluation_result_id", pair.Result.ID)
				continue
			}
			return nil, err
		}

		reason, err := s.enrichedReason(ctx, pair.Result, pair.Evaluation)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			reasons = append(reasons, reason)
		}
	}
	if len(reasons) == 0 {
		return nil, unprocessable(ErrNotEnoughReasons, fmt.Sprintf("%d results", len(p.Results)))
	}

	key := cache.Key(append([]string{"issue-details", p.Context}, reasons...)...)
	if s.cache != nil {
		var cached model.IssueDetails
		ok, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			slog.WarnContext(ctx, "issue details cache read failed", "error", err)
		}
		if ok {
			return &cached, nil
		}
	}

	details, err := s.summarize(ctx, p.Context, reasons)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, details, s.cfg.GenerationCacheTTL); err != nil {
			slog.WarnContext(ctx, "issue details cache write failed", "error", err)
		}
	}
	return details, nil
}

func (s *service) summarize(ctx context.Context, background string, reasons []string) (*model.IssueDetails, error) {
	var b strings.Builder
	if background != "" {
		fmt.Fprintf(&b, "Context:\n%s\n\n", background)
	}
	b.WriteString("Failure reasons:\n")
	for _, r := range reasons {
		fmt.Fprintf(&b, "- %s\n", r)
	}

	var details model.IssueDetails
	_, err := s.summarizer.Chat(ctx, llm.Request{
		SystemPrompt: detailsSystemPrompt,
		UserPrompt:   b.String(),
		SchemaName:   "issue_details",
		Schema:       llm.GenerateSchema[model.IssueDetails](),
		Temperature:  llm.Temp(0),
	}, &details)
	if err != nil {
		return nil, fmt.Errorf("generating issue details: %w", err)
	}

	details.Title = strings.TrimSpace(details.Title)
	details.Description = strings.TrimSpace(details.Description)
	if details.Title == "" {
		return nil, fmt.Errorf("generating issue details: empty title")
	}
	return &details, nil
}

// enrichedReason is the text a result is embedded and summarized by: the
// plain reason, or, for human annotations over selected context, an LLM
// generalization persisted on the result so it is computed once.
func (s *service) enrichedReason(ctx context.Context, result *model.EvaluationResult, evaluation *model.Evaluation) (string, error) {
	if result.Metadata.EnrichedReason != "" {
		return result.Metadata.EnrichedReason, nil
	}

	reason := s.reasons.Reason(evaluation, result)
	if reason == "" || len(result.Metadata.SelectedContexts) == 0 || s.summarizer == nil {
		return reason, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Reviewer explanation:\n%s\n\nHighlighted content:\n", reason)
	for _, sc := range result.Metadata.SelectedContexts {
		fmt.Fprintf(&b, "- %s\n", sc.Text)
	}

	var out generalizedReason
	_, err := s.summarizer.Chat(ctx, llm.Request{
		SystemPrompt: generalizeSystemPrompt,
		UserPrompt:   b.String(),
		SchemaName:   "generalized_reason",
		Schema:       llm.GenerateSchema[generalizedReason](),
		Temperature:  llm.Temp(0),
	}, &out)
	if err != nil {
		return "", fmt.Errorf("generalizing annotation of result %d: %w", result.ID, err)
	}

	enriched := strings.TrimSpace(out.Reason)
	if enriched == "" {
		return reason, nil
	}

	if err := s.stores.EvaluationResults().SetEnrichedReason(ctx, result.ID, enriched); err != nil {
		return "", fmt.Errorf("saving enriched reason of result %d: %w", result.ID, err)
	}
	result.Metadata.EnrichedReason = enriched
	return enriched, nil
}
