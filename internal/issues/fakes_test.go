package issues_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"basegraph.app/triage/common/llm"
	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/index"
	"basegraph.app/triage/internal/issues"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/queue"
	"basegraph.app/triage/internal/store"
	"github.com/google/uuid"
)

// memState is everything the fake database holds. It is deep-copied to
// snapshot a transaction.
type memState struct {
	issues      map[int64]model.Issue
	links       []model.IssueEvaluationResult
	histograms  []model.IssueHistogram
	results     map[int64]model.EvaluationResult
	evaluations map[uuid.UUID]model.Evaluation
	commits     map[int64]model.Commit
	nextID      int64
}

func (s *memState) clone() *memState {
	out := &memState{
		issues:      make(map[int64]model.Issue, len(s.issues)),
		links:       append([]model.IssueEvaluationResult(nil), s.links...),
		histograms:  append([]model.IssueHistogram(nil), s.histograms...),
		results:     make(map[int64]model.EvaluationResult, len(s.results)),
		evaluations: make(map[uuid.UUID]model.Evaluation, len(s.evaluations)),
		commits:     make(map[int64]model.Commit, len(s.commits)),
		nextID:      s.nextID,
	}
	for k, v := range s.issues {
		v.Centroid.Base = append([]float64(nil), v.Centroid.Base...)
		out.issues[k] = v
	}
	for k, v := range s.results {
		out.results[k] = v
	}
	for k, v := range s.evaluations {
		out.evaluations[k] = v
	}
	for k, v := range s.commits {
		out.commits[k] = v
	}
	return out
}

// memDB is an in-memory store with serializable transactions: one
// transaction at a time, rolled back by restoring a snapshot on error.
// Reads outside a transaction wait for the running one.
type memDB struct {
	mu    sync.Mutex
	state *memState

	// fail makes the named store method return the error.
	fail    map[string]error
	txCount int
	// documentLocks counts creation locks taken by transactions.
	documentLocks int
	// beforeLock runs when issues are row-locked, standing in for a
	// concurrent writer that committed just before.
	beforeLock func(st *memState)
}

func newMemDB() *memDB {
	return &memDB{
		state: &memState{
			issues:      map[int64]model.Issue{},
			results:     map[int64]model.EvaluationResult{},
			evaluations: map[uuid.UUID]model.Evaluation{},
			commits:     map[int64]model.Commit{},
			nextID:      1,
		},
		fail: map[string]error{},
	}
}

func (db *memDB) WithTx(ctx context.Context, fn func(stores issues.StoreProvider) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.txCount++

	snapshot := db.state.clone()
	if err := fn(&memStores{db: db, inTx: true}); err != nil {
		db.state = snapshot
		return err
	}
	return nil
}

func (db *memDB) stores() *memStores {
	return &memStores{db: db}
}

func (db *memDB) injected(method string) error {
	return db.fail[method]
}

// Test helpers. They bypass transactions.

func (db *memDB) putCommit(c model.Commit) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.commits[c.ID] = c
}

func (db *memDB) putEvaluation(e model.Evaluation) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.evaluations[e.UUID] = e
}

func (db *memDB) putResult(r model.EvaluationResult) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.results[r.ID] = r
}

func (db *memDB) putIssue(i model.Issue) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.issues[i.ID] = i
}

func (db *memDB) issue(id int64) (model.Issue, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	i, ok := db.state.issues[id]
	return i, ok
}

func (db *memDB) issueCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.state.issues)
}

func (db *memDB) linksOf(issueID int64) []int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	var ids []int64
	for _, l := range db.state.links {
		if l.IssueID == issueID {
			ids = append(ids, l.EvaluationResultID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (db *memDB) total(issueID int64) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.totalLocked(issueID)
}

func (db *memDB) evaluation(id uuid.UUID) model.Evaluation {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.evaluations[id]
}

func (db *memDB) result(id int64) model.EvaluationResult {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.results[id]
}

// addOccurrences links fresh results to an issue and counts them in the
// histogram, as if they had been assigned earlier.
func (db *memDB) addOccurrences(issueID, commitID int64, n int, at time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := 0; i < n; i++ {
		rid := db.state.nextID + 10_000
		db.state.nextID++
		db.state.results[rid] = model.EvaluationResult{ID: rid, CommitID: commitID, CreatedAt: at}
		db.state.links = append(db.state.links, model.IssueEvaluationResult{
			ID: db.state.nextID, IssueID: issueID, EvaluationResultID: rid, CommitID: commitID, CreatedAt: at,
		})
		db.state.nextID++
		db.state.bump(model.IssueHistogram{IssueID: issueID, CommitID: commitID, Date: model.HistogramDate(at), OccurredAt: at}, 1)
	}
}

func (s *memState) totalLocked(issueID int64) int64 {
	var total int64
	for _, h := range s.histograms {
		if h.IssueID == issueID {
			total += int64(h.Count)
		}
	}
	return total
}

func (s *memState) bump(h model.IssueHistogram, delta int32) model.IssueHistogram {
	for i := range s.histograms {
		row := &s.histograms[i]
		if row.IssueID == h.IssueID && row.CommitID == h.CommitID && row.Date.Equal(h.Date) {
			row.Count += delta
			if row.Count < 0 {
				row.Count = 0
			}
			if h.OccurredAt.After(row.OccurredAt) {
				row.OccurredAt = h.OccurredAt
			}
			return *row
		}
	}
	h.ID = s.nextID
	s.nextID++
	h.Count = max(delta, 0)
	s.histograms = append(s.histograms, h)
	return h
}

type memStores struct {
	db   *memDB
	inTx bool
}

// guard serializes reads made outside a transaction with running ones.
func (m *memStores) guard() func() {
	if m.inTx {
		return func() {}
	}
	m.db.mu.Lock()
	return m.db.mu.Unlock
}

func (m *memStores) st() *memState { return m.db.state }

func (m *memStores) Issues() store.IssueStore                       { return (*memIssues)(m) }
func (m *memStores) IssueResults() store.IssueResultStore           { return (*memLinks)(m) }
func (m *memStores) Histograms() store.HistogramStore               { return (*memHistograms)(m) }
func (m *memStores) EvaluationResults() store.EvaluationResultStore { return (*memResults)(m) }
func (m *memStores) Evaluations() store.EvaluationStore             { return (*memEvaluations)(m) }
func (m *memStores) Commits() store.CommitStore                     { return (*memCommits)(m) }

type memIssues memStores

func (m *memIssues) s() *memStores { return (*memStores)(m) }

func (m *memIssues) GetByID(ctx context.Context, id int64) (*model.Issue, error) {
	defer m.s().guard()()
	i, ok := m.s().st().issues[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &i, nil
}

func (m *memIssues) GetByIDForUpdate(ctx context.Context, id int64) (*model.Issue, error) {
	if err := m.db.injected("Issues.GetByIDForUpdate"); err != nil {
		return nil, err
	}
	return m.GetByID(ctx, id)
}

func (m *memIssues) ListByIDs(ctx context.Context, ids []int64) ([]model.Issue, error) {
	defer m.s().guard()()
	var out []model.Issue
	for _, id := range ids {
		if i, ok := m.s().st().issues[id]; ok {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m *memIssues) LockByIDs(ctx context.Context, ids []int64) ([]model.Issue, error) {
	if err := m.db.injected("Issues.LockByIDs"); err != nil {
		return nil, err
	}
	if m.db.beforeLock != nil && m.inTx {
		m.db.beforeLock(m.s().st())
	}
	return m.ListByIDs(ctx, ids)
}

func (m *memIssues) ListActiveCreatedSince(ctx context.Context, scope model.DocumentScope, since time.Time) ([]model.Issue, error) {
	defer m.s().guard()()
	var out []model.Issue
	for _, i := range m.s().st().issues {
		if i.IsActive() && i.Scope() == scope && !i.CreatedAt.Before(since) {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// LockDocument is a no-op beyond counting: transactions already run one
// at a time. The Postgres lock is covered by the store suite.
func (m *memIssues) LockDocument(ctx context.Context, scope model.DocumentScope) error {
	if m.inTx {
		m.db.documentLocks++
	}
	return nil
}

func (m *memIssues) Create(ctx context.Context, issue *model.Issue) error {
	defer m.s().guard()()
	if _, ok := m.s().st().issues[issue.ID]; ok {
		return fmt.Errorf("duplicate issue %d", issue.ID)
	}
	m.s().st().issues[issue.ID] = *issue
	return nil
}

func (m *memIssues) update(id int64, fn func(i *model.Issue)) error {
	defer m.s().guard()()
	i, ok := m.s().st().issues[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&i)
	m.s().st().issues[id] = i
	return nil
}

func (m *memIssues) UpdateCentroid(ctx context.Context, id int64, c centroid.Centroid) error {
	return m.update(id, func(i *model.Issue) { i.Centroid = c })
}

func (m *memIssues) UpdateDetails(ctx context.Context, id int64, title, description string) error {
	return m.update(id, func(i *model.Issue) { i.Title, i.Description = title, description })
}

func (m *memIssues) SetEscalating(ctx context.Context, id int64, at *time.Time) error {
	return m.update(id, func(i *model.Issue) { i.EscalatingAt = at })
}

func (m *memIssues) MarkMerged(ctx context.Context, winnerID int64, loserIDs []int64, at time.Time) (int64, error) {
	defer m.s().guard()()
	var n int64
	for _, id := range loserIDs {
		i, ok := m.s().st().issues[id]
		if !ok || i.MergedAt != nil {
			continue
		}
		w := winnerID
		i.MergedAt, i.MergedToIssueID = &at, &w
		m.s().st().issues[id] = i
		n++
	}
	return n, nil
}

func (m *memIssues) Delete(ctx context.Context, id int64) error {
	defer m.s().guard()()
	st := m.s().st()
	if _, ok := st.issues[id]; !ok {
		return store.ErrNotFound
	}
	delete(st.issues, id)

	links := st.links[:0]
	for _, l := range st.links {
		if l.IssueID != id {
			links = append(links, l)
		}
	}
	st.links = links

	rows := st.histograms[:0]
	for _, h := range st.histograms {
		if h.IssueID != id {
			rows = append(rows, h)
		}
	}
	st.histograms = rows

	for k, i := range st.issues {
		if i.MergedToIssueID != nil && *i.MergedToIssueID == id {
			i.MergedToIssueID = nil
			st.issues[k] = i
		}
	}
	return nil
}

type memLinks memStores

func (m *memLinks) s() *memStores { return (*memStores)(m) }

func (m *memLinks) Create(ctx context.Context, link *model.IssueEvaluationResult) error {
	if err := m.db.injected("IssueResults.Create"); err != nil {
		return err
	}
	defer m.s().guard()()
	st := m.s().st()
	for _, l := range st.links {
		if l.IssueID == link.IssueID && l.EvaluationResultID == link.EvaluationResultID {
			return fmt.Errorf("duplicate link %d/%d", link.IssueID, link.EvaluationResultID)
		}
	}
	link.ID = st.nextID
	st.nextID++
	st.links = append(st.links, *link)
	return nil
}

func (m *memLinks) Delete(ctx context.Context, issueID, evaluationResultID int64) error {
	defer m.s().guard()()
	st := m.s().st()
	for i, l := range st.links {
		if l.IssueID == issueID && l.EvaluationResultID == evaluationResultID {
			st.links = append(st.links[:i], st.links[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memLinks) LastActive(ctx context.Context, evaluationResultID int64) (*model.IssueEvaluationResult, error) {
	defer m.s().guard()()
	st := m.s().st()
	var best *model.IssueEvaluationResult
	for i := range st.links {
		l := st.links[i]
		issue, ok := st.issues[l.IssueID]
		if l.EvaluationResultID != evaluationResultID || !ok || !issue.IsActive() {
			continue
		}
		if best == nil || l.CreatedAt.After(best.CreatedAt) || (l.CreatedAt.Equal(best.CreatedAt) && l.ID > best.ID) {
			best = &l
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

func (m *memLinks) CountByIssue(ctx context.Context, issueID int64) (int64, error) {
	defer m.s().guard()()
	var n int64
	for _, l := range m.s().st().links {
		if l.IssueID == issueID {
			n++
		}
	}
	return n, nil
}

func (m *memLinks) HasOtherCommit(ctx context.Context, issueID, commitID int64) (bool, error) {
	defer m.s().guard()()
	for _, l := range m.s().st().links {
		if l.IssueID == issueID && l.CommitID != commitID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLinks) Repoint(ctx context.Context, winnerID int64, loserIDs []int64) (int64, error) {
	defer m.s().guard()()
	st := m.s().st()
	losers := map[int64]bool{}
	for _, id := range loserIDs {
		losers[id] = true
	}
	inWinner := map[int64]bool{}
	for _, l := range st.links {
		if l.IssueID == winnerID {
			inWinner[l.EvaluationResultID] = true
		}
	}
	var n int64
	for i := range st.links {
		l := &st.links[i]
		if losers[l.IssueID] && !inWinner[l.EvaluationResultID] {
			l.IssueID = winnerID
			inWinner[l.EvaluationResultID] = true
			n++
		}
	}
	return n, nil
}

func (m *memLinks) ListRecentResults(ctx context.Context, issueID int64, limit int) ([]model.EvaluationResult, error) {
	defer m.s().guard()()
	st := m.s().st()
	var links []model.IssueEvaluationResult
	for _, l := range st.links {
		if l.IssueID == issueID {
			links = append(links, l)
		}
	}
	sort.Slice(links, func(a, b int) bool {
		if !links[a].CreatedAt.Equal(links[b].CreatedAt) {
			return links[a].CreatedAt.After(links[b].CreatedAt)
		}
		return links[a].ID > links[b].ID
	})
	var out []model.EvaluationResult
	for _, l := range links {
		if len(out) == limit {
			break
		}
		if r, ok := st.results[l.EvaluationResultID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type memHistograms memStores

func (m *memHistograms) s() *memStores { return (*memStores)(m) }

func (m *memHistograms) Increment(ctx context.Context, h model.IssueHistogram) (*model.IssueHistogram, error) {
	defer m.s().guard()()
	row := m.s().st().bump(h, 1)
	return &row, nil
}

func (m *memHistograms) Decrement(ctx context.Context, h model.IssueHistogram) (*model.IssueHistogram, error) {
	defer m.s().guard()()
	row := m.s().st().bump(h, -1)
	return &row, nil
}

func (m *memHistograms) DeleteRow(ctx context.Context, id int64) error {
	defer m.s().guard()()
	st := m.s().st()
	for i, h := range st.histograms {
		if h.ID == id {
			st.histograms = append(st.histograms[:i], st.histograms[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memHistograms) TotalByIssue(ctx context.Context, issueID int64) (int64, error) {
	defer m.s().guard()()
	return m.s().st().totalLocked(issueID), nil
}

func (m *memHistograms) TotalsByIssues(ctx context.Context, issueIDs []int64) (map[int64]int64, error) {
	defer m.s().guard()()
	out := make(map[int64]int64, len(issueIDs))
	for _, id := range issueIDs {
		out[id] = m.s().st().totalLocked(id)
	}
	return out, nil
}

func (m *memHistograms) CountBetween(ctx context.Context, issueID int64, from, to time.Time) (int64, error) {
	defer m.s().guard()()
	var total int64
	for _, h := range m.s().st().histograms {
		if h.IssueID == issueID && !h.Date.Before(from) && h.Date.Before(to) {
			total += int64(h.Count)
		}
	}
	return total, nil
}

func (m *memHistograms) MergeInto(ctx context.Context, winnerID int64, loserIDs []int64) error {
	defer m.s().guard()()
	st := m.s().st()
	losers := map[int64]bool{}
	for _, id := range loserIDs {
		losers[id] = true
	}
	var moved []model.IssueHistogram
	for _, h := range st.histograms {
		if losers[h.IssueID] {
			moved = append(moved, h)
		}
	}
	for _, h := range moved {
		h.IssueID = winnerID
		st.bump(h, h.Count)
	}
	return nil
}

func (m *memHistograms) DeleteByIssues(ctx context.Context, issueIDs []int64) (int64, error) {
	defer m.s().guard()()
	st := m.s().st()
	drop := map[int64]bool{}
	for _, id := range issueIDs {
		drop[id] = true
	}
	rows := st.histograms[:0]
	var n int64
	for _, h := range st.histograms {
		if drop[h.IssueID] {
			n++
			continue
		}
		rows = append(rows, h)
	}
	st.histograms = rows
	return n, nil
}

func (m *memHistograms) ListByIssue(ctx context.Context, issueID int64) ([]model.IssueHistogram, error) {
	defer m.s().guard()()
	var out []model.IssueHistogram
	for _, h := range m.s().st().histograms {
		if h.IssueID == issueID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].Date.Equal(out[b].Date) {
			return out[a].Date.Before(out[b].Date)
		}
		return out[a].CommitID < out[b].CommitID
	})
	return out, nil
}

type memResults memStores

func (m *memResults) s() *memStores { return (*memStores)(m) }

func (m *memResults) GetByID(ctx context.Context, id int64) (*model.EvaluationResult, error) {
	defer m.s().guard()()
	r, ok := m.s().st().results[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (m *memResults) SetEnrichedReason(ctx context.Context, id int64, reason string) error {
	defer m.s().guard()()
	r, ok := m.s().st().results[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Metadata.EnrichedReason = reason
	m.s().st().results[id] = r
	return nil
}

type memEvaluations memStores

func (m *memEvaluations) s() *memStores { return (*memStores)(m) }

func (m *memEvaluations) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Evaluation, error) {
	defer m.s().guard()()
	e, ok := m.s().st().evaluations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (m *memEvaluations) IgnoreAlertingOn(ctx context.Context, issueIDs []int64, at time.Time) (int64, error) {
	defer m.s().guard()()
	st := m.s().st()
	ids := map[int64]bool{}
	for _, id := range issueIDs {
		ids[id] = true
	}
	var n int64
	for k, e := range st.evaluations {
		if e.AlertIssueID != nil && ids[*e.AlertIssueID] && e.IgnoredAt == nil {
			e.IgnoredAt = &at
			st.evaluations[k] = e
			n++
		}
	}
	return n, nil
}

type memCommits memStores

func (m *memCommits) s() *memStores { return (*memStores)(m) }

func (m *memCommits) GetByID(ctx context.Context, id int64) (*model.Commit, error) {
	defer m.s().guard()()
	c, ok := m.s().st().commits[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

// fakeEmbedder maps texts to fixed vectors; unknown texts embed to a
// default vector.
type fakeEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float64
	fallback []float64
	err      error
	calls    int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return append([]float64(nil), v...), nil
	}
	return append([]float64(nil), f.fallback...), nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.fallback) }

type fakeReranker struct {
	scores []float64
	err    error
	docs   []string
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	f.docs = docs
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

// fakeSummarizer answers issue detail requests with a title derived from
// the first reason and generalization requests with a fixed reason.
type fakeSummarizer struct {
	mu          sync.Mutex
	err         error
	generalized string
	requests    []llm.Request
}

func (f *fakeSummarizer) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}

	var reply any
	switch req.SchemaName {
	case "generalized_reason":
		reply = map[string]string{"reason": f.generalized}
	default:
		first := req.UserPrompt
		if i := strings.Index(first, "- "); i >= 0 {
			first = strings.SplitN(first[i+2:], "\n", 2)[0]
		}
		reply = model.IssueDetails{Title: "Issue: " + first, Description: "Generated from the failure reasons."}
	}

	raw, err := json.Marshal(reply)
	if err != nil {
		return nil, err
	}
	return &llm.Response{}, json.Unmarshal(raw, result)
}

func (f *fakeSummarizer) Model() string { return "fake" }

func (f *fakeSummarizer) calls(schema string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.SchemaName == schema {
			n++
		}
	}
	return n
}

type fakeIndex struct {
	mu       sync.Mutex
	hits     []index.Candidate
	nearest  []index.Candidate
	err      error
	upserted []int64
	deleted  []int64
	queries  []index.SearchQuery
}

func (f *fakeIndex) HybridSearch(ctx context.Context, q index.SearchQuery) ([]index.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return append([]index.Candidate(nil), f.hits...), nil
}

func (f *fakeIndex) Nearest(ctx context.Context, q index.NearestQuery) ([]index.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]index.Candidate(nil), f.nearest...), nil
}

func (f *fakeIndex) Upsert(ctx context.Context, issue *model.Issue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, issue.ID)
	return nil
}

func (f *fakeIndex) Delete(ctx context.Context, issueID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, issueID)
	return nil
}

type enqueued struct {
	task queue.Task
	opts queue.EnqueueOptions
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []enqueued
}

func (f *fakeJobs) Enqueue(ctx context.Context, task queue.Task, opts queue.EnqueueOptions) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, enqueued{task: task, opts: opts})
	return true, nil
}

func (f *fakeJobs) types() []queue.TaskType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]queue.TaskType, len(f.jobs))
	for i, j := range f.jobs {
		out[i] = j.task.TaskType
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.MergeEvent
	err    error
}

func (f *fakePublisher) PublishMerge(ctx context.Context, event queue.MergeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

var errBoom = errors.New("boom")
