package issues

import (
	"fmt"
	"strings"

	"basegraph.app/triage/internal/model"
)

// ReasonFunc extracts the textual failure reason of a result. An empty
// string means the result carries no usable reasoning.
type ReasonFunc func(r *model.EvaluationResult) string

type reasonKey struct {
	kind   model.EvaluationType
	metric string
}

// Reasons resolves the reason strategy of an evaluation by (type, metric),
// falling back to a per-type default. Types without a strategy do not
// support issues.
type Reasons struct {
	byMetric map[reasonKey]ReasonFunc
	byType   map[model.EvaluationType]ReasonFunc
}

func DefaultReasons() *Reasons {
	return &Reasons{
		byMetric: map[reasonKey]ReasonFunc{
			{model.EvaluationTypeRule, model.MetricRuleExactMatch}:  ruleMismatch("exactly match"),
			{model.EvaluationTypeRule, model.MetricRuleRegexMatch}:  ruleMismatch("match the pattern"),
			{model.EvaluationTypeRule, model.MetricRuleSchemaMatch}: ruleMismatch("conform to the schema"),
			{model.EvaluationTypeRule, model.MetricRuleLength}:      ruleThreshold("length"),
			{model.EvaluationTypeRule, model.MetricRuleLexical}:     ruleThreshold("lexical overlap"),
			{model.EvaluationTypeRule, model.MetricRuleSemantic}:    ruleThreshold("semantic similarity"),
		},
		byType: map[model.EvaluationType]ReasonFunc{
			model.EvaluationTypeLLM:   plainReason,
			model.EvaluationTypeHuman: plainReason,
			model.EvaluationTypeRule:  plainReason,
		},
	}
}

// Supports reports whether results of the evaluation can form issues.
func (r *Reasons) Supports(e *model.Evaluation) bool {
	_, ok := r.resolve(e)
	return ok
}

func (r *Reasons) Reason(e *model.Evaluation, result *model.EvaluationResult) string {
	fn, ok := r.resolve(e)
	if !ok {
		return ""
	}
	return strings.TrimSpace(fn(result))
}

func (r *Reasons) resolve(e *model.Evaluation) (ReasonFunc, bool) {
	if e.Type == model.EvaluationTypeComposite {
		return nil, false
	}
	if fn, ok := r.byMetric[reasonKey{e.Type, e.Metric}]; ok {
		return fn, true
	}
	fn, ok := r.byType[e.Type]
	return fn, ok
}

func plainReason(r *model.EvaluationResult) string {
	return r.Metadata.Reason
}

// Rule evaluations rarely explain themselves; describe the mismatch.
func ruleMismatch(verb string) ReasonFunc {
	return func(r *model.EvaluationResult) string {
		if r.Metadata.Reason != "" {
			return r.Metadata.Reason
		}
		if r.Metadata.Expected == "" {
			return ""
		}
		return fmt.Sprintf("Output did not %s %q. Actual output: %q", verb, r.Metadata.Expected, r.Metadata.Actual)
	}
}

func ruleThreshold(measure string) ReasonFunc {
	return func(r *model.EvaluationResult) string {
		if r.Metadata.Reason != "" {
			return r.Metadata.Reason
		}
		if r.Score == nil || r.Metadata.Threshold == nil {
			return ""
		}
		return fmt.Sprintf("Output %s %.2f is outside the accepted threshold %.2f", measure, *r.Score, *r.Metadata.Threshold)
	}
}
