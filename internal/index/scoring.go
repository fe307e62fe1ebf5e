package index

import (
	"sort"

	"basegraph.app/triage/common/typesense"
)

// rankHybrid filters hybrid hits by distance and matched keywords. Hits
// keep the rank fusion score Typesense computed; a hit without one falls
// back to its alpha-weighted vector similarity.
func rankHybrid(hits []typesense.Hit, q SearchQuery) []Candidate {
	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		c, ok := candidateFrom(h)
		if !ok {
			continue
		}
		if q.MaxDistance > 0 && c.Distance > q.MaxDistance {
			continue
		}
		if c.KeywordMatches < q.MinKeywordMatches {
			continue
		}

		if h.FusionScore != nil {
			c.Score = *h.FusionScore
		} else {
			c.Score = q.Alpha * (1 - c.Distance)
		}
		out = append(out, c)
	}

	sortCandidates(out)
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// sortCandidates orders by score descending, then issue id ascending.
func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].IssueID < cs[j].IssueID
	})
}
