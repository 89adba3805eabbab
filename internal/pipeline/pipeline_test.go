package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/generation"
	"github.com/lecternhq/lectern-api/internal/platform/notion"
	"github.com/lecternhq/lectern-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNotion is an in-memory workspace.
type fakeNotion struct {
	mu       sync.Mutex
	pages    map[string]*notion.Page
	blocks   map[string][]notion.Block
	queries  map[string][]notion.Page
	updates  []propertyUpdate
	created  int
	failWith error
	failOn   string
}

type propertyUpdate struct {
	pageID string
	props  map[string]notion.PropertyValue
}

func newFakeNotion() *fakeNotion {
	return &fakeNotion{
		pages:   make(map[string]*notion.Page),
		blocks:  make(map[string][]notion.Block),
		queries: make(map[string][]notion.Page),
	}
}

func (f *fakeNotion) fail(op string, err error) {
	f.failOn = op
	f.failWith = err
}

func (f *fakeNotion) maybeFail(op string) error {
	if f.failOn == op {
		return f.failWith
	}
	return nil
}

func (f *fakeNotion) GetPage(_ context.Context, pageID string) (*notion.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("GetPage"); err != nil {
		return nil, err
	}
	page, ok := f.pages[pageID]
	if !ok {
		return nil, &notion.APIError{StatusCode: 404, Code: "object_not_found"}
	}
	return page, nil
}

func (f *fakeNotion) GetBlocks(_ context.Context, blockID string) ([]notion.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("GetBlocks"); err != nil {
		return nil, err
	}
	return f.blocks[blockID], nil
}

func (f *fakeNotion) CreatePage(
	_ context.Context,
	parentPageID, title string,
	_ map[string]notion.PropertyValue,
	_ string,
) (*notion.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("CreatePage"); err != nil {
		return nil, err
	}
	f.created++
	id := fmt.Sprintf("created-%d", f.created)
	page := &notion.Page{
		ID:     id,
		Parent: &notion.Parent{Type: "page_id", PageID: parentPageID},
		Properties: map[string]notion.PropertyValue{
			"title": notion.TitleProperty(title),
		},
	}
	f.pages[id] = page
	return page, nil
}

func (f *fakeNotion) CreateDatabasePage(
	_ context.Context,
	databaseID string,
	properties map[string]notion.PropertyValue,
) (*notion.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("CreateDatabasePage"); err != nil {
		return nil, err
	}
	f.created++
	id := fmt.Sprintf("dbrow-%d", f.created)
	page := &notion.Page{
		ID:         id,
		Parent:     &notion.Parent{Type: "database_id", DatabaseID: databaseID},
		Properties: properties,
	}
	f.pages[id] = page
	return page, nil
}

func (f *fakeNotion) UpdatePageProperties(
	_ context.Context,
	pageID string,
	properties map[string]notion.PropertyValue,
) (*notion.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("UpdatePageProperties"); err != nil {
		return nil, err
	}
	page, ok := f.pages[pageID]
	if !ok {
		return nil, &notion.APIError{StatusCode: 404, Code: "object_not_found"}
	}
	f.updates = append(f.updates, propertyUpdate{pageID: pageID, props: properties})
	if page.Properties == nil {
		page.Properties = make(map[string]notion.PropertyValue)
	}
	for name, value := range properties {
		page.Properties[name] = value
	}
	return page, nil
}

func (f *fakeNotion) AppendBlocks(
	_ context.Context,
	parentID string,
	blocks []notion.Block,
) ([]notion.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("AppendBlocks"); err != nil {
		return nil, err
	}
	f.blocks[parentID] = append(f.blocks[parentID], blocks...)
	return blocks, nil
}

func (f *fakeNotion) DeleteChildren(_ context.Context, pageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("DeleteChildren"); err != nil {
		return err
	}
	f.blocks[pageID] = nil
	return nil
}

func (f *fakeNotion) QueryDatabase(
	_ context.Context,
	databaseID string,
	_ any,
	_ []map[string]string,
) ([]notion.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("QueryDatabase"); err != nil {
		return nil, err
	}
	return f.queries[databaseID], nil
}

// stageHistory returns the AI Stage values written to a page, in order.
func (f *fakeNotion) stageHistory(pageID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stages []string
	for _, update := range f.updates {
		if update.pageID != pageID {
			continue
		}
		if prop, ok := update.props[propAIStage]; ok && prop.Select != nil {
			stages = append(stages, prop.Select.Name)
		}
	}
	return stages
}

// lastProp returns the most recent rich_text value written to the named
// property of a page, or empty if never written.
func (f *fakeNotion) lastProp(pageID, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var value string
	for _, update := range f.updates {
		if update.pageID != pageID {
			continue
		}
		if prop, ok := update.props[name]; ok {
			value = prop.PlainText()
		}
	}
	return value
}

// In-memory stores.

type memJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (s *memJobStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *memJobStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *memJobStore) UpdateStatus(_ context.Context, id uuid.UUID, update store.JobStatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.Status = update.Status
	job.Error = update.Error
	if update.IncrementAttempts {
		job.Attempts++
	}
	if update.ResetAttempts {
		job.Attempts = 0
	}
	return nil
}

type memRunStore struct {
	mu       sync.Mutex
	runs     []*domain.Run
	outcomes map[uuid.UUID]store.RunOutcome
}

func newMemRunStore() *memRunStore {
	return &memRunStore{outcomes: make(map[uuid.UUID]store.RunOutcome)}
}

func (s *memRunStore) Create(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *run
	s.runs = append(s.runs, &copied)
	return nil
}

func (s *memRunStore) Finish(_ context.Context, id uuid.UUID, outcome store.RunOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[id] = outcome
	return nil
}

func (s *memRunStore) Recent(_ context.Context, limit int) ([]*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := make([]*domain.Run, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, s.runs[i])
	}
	return runs, nil
}

type memArtifactStore struct {
	mu       sync.Mutex
	pageRefs map[string]string
	versions map[string]int
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{
		pageRefs: make(map[string]string),
		versions: make(map[string]int),
	}
}

func (s *memArtifactStore) GetPageRef(_ context.Context, pageID, kind string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.pageRefs[pageID+"/"+kind]
	if !ok {
		return "", store.ErrArtifactNotFound
	}
	return ref, nil
}

func (s *memArtifactStore) SetPageRef(_ context.Context, pageID, kind, notionPageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageRefs[pageID+"/"+kind] = notionPageID
	return nil
}

func (s *memArtifactStore) LatestVersion(_ context.Context, pageID, action string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[pageID+"/"+action], nil
}

func (s *memArtifactStore) CreateVersion(
	_ context.Context,
	pageID, action string,
	_ uuid.UUID,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pageID + "/" + action
	s.versions[key]++
	return s.versions[key], nil
}

func (s *memArtifactStore) ListVersions(_ context.Context, pageID string) ([]*store.ArtifactVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.ArtifactVersion
	for key, latest := range s.versions {
		if !strings.HasPrefix(key, pageID+"/") {
			continue
		}
		action := strings.TrimPrefix(key, pageID+"/")
		for v := latest; v >= 1; v-- {
			out = append(out, &store.ArtifactVersion{PageID: pageID, Action: action, Version: v})
		}
	}
	return out, nil
}

type memTreeNodeStore struct {
	mu      sync.Mutex
	records map[string]*domain.TreeNodeRecord
}

func newMemTreeNodeStore() *memTreeNodeStore {
	return &memTreeNodeStore{records: make(map[string]*domain.TreeNodeRecord)}
}

func (s *memTreeNodeStore) Save(_ context.Context, pageID, nodeID, notionPageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[pageID+"/"+nodeID] = &domain.TreeNodeRecord{
		PageID:       pageID,
		NodeID:       nodeID,
		NotionPageID: notionPageID,
		Status:       domain.TreeNodeDraft,
	}
	return nil
}

func (s *memTreeNodeStore) ApproveAll(_ context.Context, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.PageID == pageID {
			record.Status = domain.TreeNodeApproved
		}
	}
	return nil
}

func (s *memTreeNodeStore) ListByPage(_ context.Context, pageID string) ([]*domain.TreeNodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []*domain.TreeNodeRecord
	for _, record := range s.records {
		if record.PageID == pageID {
			copied := *record
			records = append(records, &copied)
		}
	}
	return records, nil
}

// stubGenerator returns a scripted result or error.
type stubGenerator struct {
	result *generation.Result
	err    error
	calls  int
}

func (g *stubGenerator) Generate(
	_ context.Context,
	_ domain.ActionType,
	_ string,
) (*generation.Result, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

// recordingQueue captures re-enqueued jobs.
type recordingQueue struct {
	mu      sync.Mutex
	jobs    []*domain.Job
	rejects bool
}

func (q *recordingQueue) Enqueue(job *domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.rejects {
		return errors.New("queue full")
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// harness bundles a pipeline with all its fakes.
type harness struct {
	pipeline  *Pipeline
	notion    *fakeNotion
	jobs      *memJobStore
	runs      *memRunStore
	artifacts *memArtifactStore
	treeNodes *memTreeNodeStore
	generator *stubGenerator
	queue     *recordingQueue
}

func newHarness(t *testing.T, gen *stubGenerator) *harness {
	t.Helper()

	fake := newFakeNotion()
	jobs := newMemJobStore()
	runs := newMemRunStore()
	artifacts := newMemArtifactStore()
	treeNodes := newMemTreeNodeStore()
	queue := &recordingQueue{}

	writer := NewWriter(fake, artifacts, treeNodes, WriterConfig{
		TreeNodesDBID:      "db-tree-nodes",
		KnowledgePagesDBID: "db-knowledge-pages",
	}, nil)
	notes := NewNotesFetcher(fake, "db-notes", nil)

	p := New(fake, gen, writer, notes, jobs, runs, artifacts, queue,
		Config{Model: "gemini-test", PromptVersion: "v1"}, nil)

	return &harness{
		pipeline:  p,
		notion:    fake,
		jobs:      jobs,
		runs:      runs,
		artifacts: artifacts,
		treeNodes: treeNodes,
		generator: gen,
		queue:     queue,
	}
}

// seedTask creates a reading-task page with content in the fake
// workspace and a queued job for it.
func (h *harness) seedTask(t *testing.T, action domain.ActionType) *domain.Job {
	t.Helper()

	h.notion.pages["task-1"] = &notion.Page{
		ID: "task-1",
		Properties: map[string]notion.PropertyValue{
			"Name":   notion.TitleProperty("Thermodynamics"),
			"Status": notion.SelectProperty("Reading"),
		},
	}
	h.notion.blocks["task-1"] = []notion.Block{
		{Type: "heading_1", Heading1: &notion.RichTextBlock{RichText: []notion.RichText{notion.Text("Heat")}}},
		{Type: "paragraph", Paragraph: &notion.RichTextBlock{RichText: []notion.RichText{notion.Text("Energy transfer between systems.")}}},
	}

	job, err := domain.NewJob("task-1", action, 3)
	require.NoError(t, err)
	require.NoError(t, h.jobs.Create(context.Background(), job))
	return job
}

const checklistOutput = `{
	"task_title": "Thermodynamics",
	"checklist": [
		{"section": "First pass", "items": [{"text": "Read the chapter", "type": "read"}]}
	]
}`

func checklistGenerator() *stubGenerator {
	return &stubGenerator{result: &generation.Result{
		Data:          json.RawMessage(checklistOutput),
		InputTokens:   500,
		OutputTokens:  200,
		Model:         "gemini-test",
		PromptVersion: "v1",
	}}
}

func TestProcessChecklistSuccess(t *testing.T) {
	h := newHarness(t, checklistGenerator())
	job := h.seedTask(t, domain.ActionChecklist)

	h.pipeline.Process(context.Background(), job)

	stored, err := h.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, stored.Status)
	assert.Equal(t, 1, stored.Attempts)

	// The page walked Running then Needs review.
	assert.Equal(t,
		[]string{string(domain.StageRunning), string(domain.StageNeedsReview)},
		h.notion.stageHistory("task-1"))

	// One run with summed tokens and an output snapshot.
	require.Len(t, h.runs.runs, 1)
	outcome := h.runs.outcomes[h.runs.runs[0].ID]
	assert.Equal(t, domain.JobStatusSuccess, outcome.Status)
	assert.Equal(t, 500, outcome.InputTokens)
	assert.Equal(t, 200, outcome.OutputTokens)
	assert.JSONEq(t, checklistOutput, outcome.OutputSnapshot)

	// The checklist landed on a cached subpage, and the task page points
	// at it.
	subpage, err := h.artifacts.GetPageRef(context.Background(), "task-1", kindChecklist)
	require.NoError(t, err)
	assert.NotEmpty(t, h.notion.blocks[subpage])
	assert.Equal(t, subpage, h.notion.lastProp("task-1", propChecklistPageID))
}

func TestProcessReusesSubpageAcrossVersions(t *testing.T) {
	h := newHarness(t, checklistGenerator())

	job1 := h.seedTask(t, domain.ActionChecklist)
	h.pipeline.Process(context.Background(), job1)

	subpage1, err := h.artifacts.GetPageRef(context.Background(), "task-1", kindChecklist)
	require.NoError(t, err)

	job2, err := domain.NewJob("task-1", domain.ActionChecklist, 3)
	require.NoError(t, err)
	require.NoError(t, h.jobs.Create(context.Background(), job2))
	h.pipeline.Process(context.Background(), job2)

	subpage2, err := h.artifacts.GetPageRef(context.Background(), "task-1", kindChecklist)
	require.NoError(t, err)
	assert.Equal(t, subpage1, subpage2, "re-running must reuse the artifact subpage")

	// Versions are contiguous.
	version, err := h.artifacts.LatestVersion(context.Background(), "task-1", string(domain.ActionChecklist))
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	// The refreshed title carries the new version.
	title := h.notion.pages[subpage2].Title()
	assert.Contains(t, title, "v2")
}

func TestProcessEmptyContentIsTerminal(t *testing.T) {
	gen := checklistGenerator()
	h := newHarness(t, gen)
	job := h.seedTask(t, domain.ActionChecklist)
	h.notion.blocks["task-1"] = nil

	h.pipeline.Process(context.Background(), job)

	stored, err := h.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "no content")
	assert.Zero(t, gen.calls, "empty content must not reach the model")
	assert.Empty(t, h.queue.jobs, "terminal failures must not re-queue")

	// The failure was stamped onto the page.
	page := h.notion.pages["task-1"]
	assert.Equal(t, string(domain.StageFailed), page.Properties[propAIStage].PlainText())
	assert.Contains(t, page.Properties[propError].PlainText(), "no content")
}

func TestProcessContentTooLargeIsTerminal(t *testing.T) {
	gen := checklistGenerator()
	h := newHarness(t, gen)
	job := h.seedTask(t, domain.ActionChecklist)

	big := make([]byte, 4*maxPromptTokens+4096)
	for i := range big {
		big[i] = 'x'
	}
	h.notion.blocks["task-1"] = []notion.Block{
		{Type: "paragraph", Paragraph: &notion.RichTextBlock{RichText: []notion.RichText{notion.Text(string(big))}}},
	}

	h.pipeline.Process(context.Background(), job)

	stored, err := h.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "too large")
	assert.Zero(t, gen.calls)
	assert.Empty(t, h.queue.jobs)
}

func TestProcessSchemaFailureIsTerminal(t *testing.T) {
	gen := &stubGenerator{err: generation.NewSchemaValidationError(
		[]string{"$.checklist: expected array"}, `{"bad": true}`)}
	h := newHarness(t, gen)
	job := h.seedTask(t, domain.ActionChecklist)

	h.pipeline.Process(context.Background(), job)

	stored, err := h.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "schema validation")
	assert.Empty(t, h.queue.jobs, "schema failures must not re-queue")
	assert.Equal(t, 1, gen.calls)
}

func TestProcessTransientFailureRequeues(t *testing.T) {
	gen := &stubGenerator{err: errors.New("connection reset by peer")}
	h := newHarness(t, gen)
	job := h.seedTask(t, domain.ActionChecklist)

	h.pipeline.Process(context.Background(), job)

	stored, err := h.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	require.Len(t, h.queue.jobs, 1, "transient failure with attempts left must re-queue")

	// The failed run was still recorded.
	require.Len(t, h.runs.runs, 1)
	outcome := h.runs.outcomes[h.runs.runs[0].ID]
	assert.Equal(t, domain.JobStatusFailed, outcome.Status)
}

func TestProcessTransientFailureExhaustsAttempts(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream timeout")}
	h := newHarness(t, gen)
	job := h.seedTask(t, domain.ActionChecklist)

	// Drive the job through every attempt the way the worker would.
	h.pipeline.Process(context.Background(), job)
	for len(h.queue.jobs) > 0 {
		next := h.queue.jobs[len(h.queue.jobs)-1]
		h.queue.jobs = h.queue.jobs[:len(h.queue.jobs)-1]
		h.pipeline.Process(context.Background(), next)
	}

	stored, err := h.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Equal(t, job.MaxAttempts, stored.Attempts, "attempts stop at the configured maximum")
	assert.Equal(t, job.MaxAttempts, gen.calls)
	assert.Len(t, h.runs.runs, job.MaxAttempts, "one run per attempt")
}

func TestProcessWorkspaceWriteFailureRequeues(t *testing.T) {
	h := newHarness(t, checklistGenerator())
	job := h.seedTask(t, domain.ActionChecklist)
	h.notion.fail("AppendBlocks", &notion.APIError{StatusCode: 502, Code: "bad_gateway"})

	h.pipeline.Process(context.Background(), job)

	stored, err := h.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, stored.Status)
	require.Len(t, h.queue.jobs, 1)
}

func TestProcessRequeueRejectionFailsJob(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream timeout")}
	h := newHarness(t, gen)
	h.queue.rejects = true
	job := h.seedTask(t, domain.ActionChecklist)

	h.pipeline.Process(context.Background(), job)

	stored, err := h.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
}

func TestProcessTreeSyncsNodes(t *testing.T) {
	treeOutput := `{
		"scope": "Thermodynamics",
		"nodes": [
			{"node_id": "node_heat", "title": "Heat", "summary": "Energy in transit", "parent_id": null},
			{"node_id": "node_entropy", "title": "Entropy", "summary": "Disorder measure", "parent_id": "node_heat"}
		]
	}`
	gen := &stubGenerator{result: &generation.Result{Data: json.RawMessage(treeOutput)}}
	h := newHarness(t, gen)
	job := h.seedTask(t, domain.ActionTree)

	h.pipeline.Process(context.Background(), job)

	stored, err := h.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, stored.Status)

	// Both nodes are recorded as Draft with their workspace rows.
	records, err := h.treeNodes.ListByPage(context.Background(), "task-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, domain.TreeNodeDraft, record.Status)
		assert.NotEmpty(t, record.NotionPageID)
	}

	// The child node got its Parent relation in the second pass.
	var childRow *notion.Page
	for _, record := range records {
		if record.NodeID == "node_entropy" {
			childRow = h.notion.pages[record.NotionPageID]
		}
	}
	require.NotNil(t, childRow)
	assert.NotEmpty(t, childRow.Properties["Parent"].Relation)

	// The task page points at the tree subpage.
	subpage, err := h.artifacts.GetPageRef(context.Background(), "task-1", kindTree)
	require.NoError(t, err)
	assert.Equal(t, subpage, h.notion.lastProp("task-1", propTreePageID))
}

func TestProcessPagesWritesRoot(t *testing.T) {
	pagesOutput := `{
		"pages": [
			{"title": "Heat Basics", "template": "concept", "sections": [
				{"heading": "Overview", "content_markdown": "Heat is energy in transit."}
			]}
		]
	}`
	gen := &stubGenerator{result: &generation.Result{Data: json.RawMessage(pagesOutput)}}
	h := newHarness(t, gen)
	job := h.seedTask(t, domain.ActionPages)

	h.pipeline.Process(context.Background(), job)

	stored, err := h.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, stored.Status)

	// The root subpage is cached and stamped onto the task page.
	rootID, err := h.artifacts.GetPageRef(context.Background(), "task-1", kindPagesRoot)
	require.NoError(t, err)
	assert.Equal(t, rootID, h.notion.lastProp("task-1", propPagesRootID))

	// One child page under the root, with content and an index row.
	var child *notion.Page
	var indexed *notion.Page
	for _, page := range h.notion.pages {
		if page.Parent == nil {
			continue
		}
		if page.Parent.PageID == rootID {
			child = page
		}
		if page.Parent.DatabaseID == "db-knowledge-pages" {
			indexed = page
		}
	}
	require.NotNil(t, child)
	assert.NotEmpty(t, h.notion.blocks[child.ID])
	require.NotNil(t, indexed)
	assert.Equal(t, "Heat Basics", indexed.Properties["Name"].PlainText())
	assert.Equal(t, child.ID, indexed.Properties["Page ID"].PlainText())
}

func TestProcessApproveCascade(t *testing.T) {
	h := newHarness(t, &stubGenerator{})
	job := h.seedTask(t, domain.ActionApprove)

	// Existing draft nodes from an earlier tree run.
	h.notion.pages["node-row-1"] = &notion.Page{ID: "node-row-1"}
	require.NoError(t, h.treeNodes.Save(context.Background(), "task-1", "node_heat", "node-row-1"))

	// An indexed knowledge page awaiting review.
	h.notion.pages["kp-row-1"] = &notion.Page{ID: "kp-row-1"}
	h.notion.queries["db-knowledge-pages"] = []notion.Page{{ID: "kp-row-1"}}

	h.pipeline.Process(context.Background(), job)

	stored, err := h.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, stored.Status)
	assert.Zero(t, h.generator.calls, "approve must not invoke the model")

	records, err := h.treeNodes.ListByPage(context.Background(), "task-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.TreeNodeApproved, records[0].Status)

	assert.Equal(t, domain.TreeNodeApproved,
		h.notion.pages["node-row-1"].Properties["Status"].PlainText())
	assert.Equal(t, string(domain.StageApproved),
		h.notion.pages["kp-row-1"].Properties["Status"].PlainText())

	task := h.notion.pages["task-1"]
	assert.Equal(t, string(domain.StageApproved), task.Properties[propAIStage].PlainText())
	assert.Equal(t, "Synthesizing", task.Properties[propStatus].PlainText())
}

func TestProcessFlashcardsWritesCSV(t *testing.T) {
	cardsOutput := `{
		"decks": [
			{"name": "Heat", "cards": [
				{"front": "Define heat", "back": "Energy in transit", "card_type": "definition"}
			]}
		]
	}`
	gen := &stubGenerator{result: &generation.Result{Data: json.RawMessage(cardsOutput)}}
	h := newHarness(t, gen)
	job := h.seedTask(t, domain.ActionFlashcards)

	h.pipeline.Process(context.Background(), job)

	stored, err := h.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, stored.Status)

	subpage, err := h.artifacts.GetPageRef(context.Background(), "task-1", kindFlashcard)
	require.NoError(t, err)

	var csvBlock *notion.Block
	for i, block := range h.notion.blocks[subpage] {
		if block.Type == "code" {
			csvBlock = &h.notion.blocks[subpage][i]
		}
	}
	require.NotNil(t, csvBlock, "flashcards page must carry the CSV export block")
	assert.Equal(t, "csv", csvBlock.Code.Language)
	assert.Contains(t, csvBlock.Code.RichText[0].Text.Content, "Front,Back,Tags,Deck,Type,Difficulty")
	assert.Contains(t, csvBlock.Code.RichText[0].Text.Content, "Define heat")
}
