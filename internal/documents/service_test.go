package documents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"jobgenie/internal/database"
	"jobgenie/internal/database/dbtest"
	"jobgenie/internal/jobs"
	"jobgenie/internal/llm"
	"jobgenie/internal/profile"
	"jobgenie/internal/quota"
	"jobgenie/internal/tasks"
)

type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string, opts llm.Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func (s *scriptedLLM) Close() error { return nil }

type recordingQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *recordingQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

type fakeObjects struct {
	deleted []string
	signed  []string
}

func (f *fakeObjects) PresignedURL(_ context.Context, key string, ttl time.Duration, filename string) (string, error) {
	f.signed = append(f.signed, key)
	return "https://files.example/" + key + "?name=" + filename, nil
}

func (f *fakeObjects) DeletePrefix(_ context.Context, prefix string) error {
	f.deleted = append(f.deleted, prefix)
	return nil
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	gate    *quota.Gate
	llm     *scriptedLLM
	queue   *recordingQueue
	objects *fakeObjects
	jobs    *jobs.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &fixture{
		db:      db,
		gate:    quota.NewGate(db),
		llm:     &scriptedLLM{},
		queue:   &recordingQueue{},
		objects: &fakeObjects{},
		jobs:    jobs.NewStore(db),
	}
	profiles := profile.NewService(db)
	name := "Ada Lovelace"
	_, err := profiles.Upsert(context.Background(), 1, profile.Update{FullName: &name, Skills: &[]string{"Go", "SQL"}})
	require.NoError(t, err)

	f.svc = NewService(NewStore(db), f.gate, profiles, f.jobs, f.llm, f.queue, f.objects, nil)
	return f
}

const goodResume = "```json\n{\"title\":\"Ada - Go Engineer\",\"html\":\"<h1>Ada Lovelace</h1><p onclick=\\\"x()\\\">Go engineer</p><script>alert(1)</script>\"}\n```"

func TestGenerate_ConsumesOneUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.llm.replies = []string{goodResume}

	before, err := f.gate.Allowance(ctx, 1, database.DocumentTypeResume)
	require.NoError(t, err)

	doc, err := f.svc.Generate(ctx, 1, GenerateInput{Type: database.DocumentTypeResume})
	require.NoError(t, err)

	assert.Equal(t, "Ada - Go Engineer", doc.Title)
	assert.Equal(t, 1, doc.Version)
	assert.NotContains(t, doc.Content, "script")
	assert.NotContains(t, doc.Content, "onclick")
	assert.Contains(t, doc.Content, "<h1>Ada Lovelace</h1>")
	assert.Contains(t, f.llm.prompts[0], "Ada Lovelace")
	assert.Contains(t, f.llm.prompts[0], "Go, SQL")

	after, err := f.gate.Allowance(ctx, 1, database.DocumentTypeResume)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Used)
	assert.Equal(t, before.Remaining-1, after.Remaining)
}

func TestGenerate_DeniedWhenExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.llm.replies = append(f.llm.replies, goodResume)
	}
	for i := 0; i < 3; i++ {
		_, err := f.svc.Generate(ctx, 1, GenerateInput{Type: database.DocumentTypeResume})
		require.NoError(t, err)
	}

	_, err := f.svc.Generate(ctx, 1, GenerateInput{Type: database.DocumentTypeResume})
	require.ErrorIs(t, err, quota.ErrLimitReached)
	assert.Len(t, f.llm.prompts, 3)

	a, err := f.gate.Allowance(ctx, 1, database.DocumentTypeResume)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Used)
	assert.Zero(t, a.Remaining)
}

func TestGenerate_MalformedReleasesQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.llm.replies = []string{"Sorry, I can only help with resumes."}

	_, err := f.svc.Generate(ctx, 1, GenerateInput{Type: database.DocumentTypeCoverLetter})
	require.ErrorIs(t, err, llm.ErrMalformedResponse)

	a, err := f.gate.Allowance(ctx, 1, database.DocumentTypeCoverLetter)
	require.NoError(t, err)
	assert.Zero(t, a.Used)

	var count int64
	require.NoError(t, f.db.Model(&database.Document{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGenerate_ProviderErrorReleasesQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.llm.err = errors.New("503 from provider")

	_, err := f.svc.Generate(ctx, 1, GenerateInput{Type: database.DocumentTypeResume})
	require.Error(t, err)
	assert.NotErrorIs(t, err, quota.ErrLimitReached)

	a, err := f.gate.Allowance(ctx, 1, database.DocumentTypeResume)
	require.NoError(t, err)
	assert.Zero(t, a.Used)
}

func TestGenerate_UsesSavedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	saved, err := f.jobs.Save(ctx, 1, jobs.Listing{Title: "Data Engineer", Company: "Globex", Description: "Pipelines in Go"})
	require.NoError(t, err)
	f.llm.replies = []string{`{"html":"<p>Dear Globex team</p>"}`}

	doc, err := f.svc.Generate(ctx, 1, GenerateInput{Type: database.DocumentTypeCoverLetter, SavedJobID: &saved.ID})
	require.NoError(t, err)

	assert.Equal(t, "Cover Letter for Globex", doc.Title)
	require.NotNil(t, doc.SavedJobID)
	assert.Equal(t, saved.ID, *doc.SavedJobID)
	assert.Contains(t, f.llm.prompts[0], "Pipelines in Go")
}

func TestGenerate_RejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Generate(context.Background(), 1, GenerateInput{Type: "portfolio"})
	assert.ErrorIs(t, err, ErrInvalidType)
}

func seedDoc(t *testing.T, f *fixture) *Document {
	t.Helper()
	f.llm.replies = append(f.llm.replies, goodResume)
	doc, err := f.svc.Generate(context.Background(), 1, GenerateInput{Type: database.DocumentTypeResume})
	require.NoError(t, err)
	return doc
}

func TestChat_PreviewDoesNotSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := seedDoc(t, f)
	f.llm.replies = []string{`{"reply":"Shortened the summary.","html":"<h1>Ada Lovelace</h1><p>Go</p>"}`}

	res, err := f.svc.Chat(ctx, 1, doc.ID, ChatInput{
		Message: "make it shorter",
		History: []ChatTurn{{Role: "user", Content: "hi"}, {Role: "system", Content: "ignored"}},
	})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, "<h1>Ada Lovelace</h1><p>Go</p>", res.HTML)
	assert.NotContains(t, f.llm.prompts[1], "ignored")

	stored, err := f.svc.Get(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Content, stored.Content)
	assert.Equal(t, 1, stored.Version)
}

func TestChat_ApplySavesWithoutQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := seedDoc(t, f)
	f.llm.replies = []string{`{"reply":"Done.","html":"<h1>Ada Lovelace</h1><p>Senior Go engineer</p>"}`}

	res, err := f.svc.Chat(ctx, 1, doc.ID, ChatInput{Message: "say senior", Apply: true})
	require.NoError(t, err)
	require.True(t, res.Applied)
	assert.Equal(t, 2, res.Document.Version)

	a, err := f.gate.Allowance(ctx, 1, database.DocumentTypeResume)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Used)
}

func TestChat_StaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := seedDoc(t, f)
	f.llm.replies = []string{`{"reply":"Done.","html":"<p>Changed</p>"}`}

	stale := 0
	_, err := f.svc.Chat(ctx, 1, doc.ID, ChatInput{Message: "change", Apply: true, Version: &stale})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestUpdate_Versioning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := seedDoc(t, f)

	title := "  My Resume "
	v1 := 1
	updated, err := f.svc.Update(ctx, 1, doc.ID, Changes{Title: &title, Version: &v1})
	require.NoError(t, err)
	assert.Equal(t, "My Resume", updated.Title)
	assert.Equal(t, 2, updated.Version)

	_, err = f.svc.Update(ctx, 1, doc.ID, Changes{Title: &title, Version: &v1})
	assert.ErrorIs(t, err, ErrVersionConflict)

	content := "<p>Last write wins</p>"
	updated, err = f.svc.Update(ctx, 1, doc.ID, Changes{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Version)
	assert.Equal(t, content, updated.Content)

	empty := "<script>x</script>"
	_, err = f.svc.Update(ctx, 1, doc.ID, Changes{Content: &empty})
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = f.svc.Update(ctx, 2, doc.ID, Changes{Content: &content})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListGetDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := seedDoc(t, f)

	list, err := f.svc.List(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Content)
	assert.True(t, strings.HasPrefix(list[0].Excerpt, "Ada Lovelace"))

	letters, err := f.svc.List(ctx, 1, database.DocumentTypeCoverLetter)
	require.NoError(t, err)
	assert.Empty(t, letters)

	_, err = f.svc.Get(ctx, 2, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, 1, doc.ID))
	assert.Equal(t, []string{"exports/1/1/"}, f.objects.deleted)
	assert.ErrorIs(t, f.svc.Delete(ctx, 1, doc.ID), ErrNotFound)
}

func TestExportFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := seedDoc(t, f)

	_, err := f.svc.ExportLink(ctx, 1, doc.ID)
	assert.ErrorIs(t, err, ErrExportNotReady)

	queued, err := f.svc.RequestExport(ctx, 1, doc.ID, "corr-1")
	require.NoError(t, err)
	assert.Equal(t, database.ExportStatusPending, queued.ExportStatus)
	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, tasks.TypeDocumentExport, f.queue.tasks[0].Type())

	store := NewStore(f.db)
	require.NoError(t, store.MarkExported(ctx, doc.ID, doc.Version, "exports/1/1/v1.pdf"))

	link, err := f.svc.ExportLink(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/exports/1/1/v1.pdf?name=Ada-Go-Engineer.pdf", link)
}

func TestRequestExport_EnqueueFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := seedDoc(t, f)
	f.queue.err = errors.New("redis down")

	_, err := f.svc.RequestExport(ctx, 1, doc.ID, "")
	require.Error(t, err)

	stored, err := f.svc.Get(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ExportStatusFailed, stored.ExportStatus)
}

func TestMarkExported_RequiresRenderedVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := seedDoc(t, f)
	_, err := f.svc.RequestExport(ctx, 1, doc.ID, "")
	require.NoError(t, err)

	content := "<h1>Ada Lovelace</h1><p>Rust</p>"
	_, err = f.svc.Update(ctx, 1, doc.ID, Changes{Content: &content})
	require.NoError(t, err)

	err = NewStore(f.db).MarkExported(ctx, doc.ID, doc.Version, "exports/1/1/v1.pdf")
	require.ErrorIs(t, err, ErrVersionConflict)

	stored, err := f.svc.Get(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasPDF)
	assert.Empty(t, stored.PdfObjectKey)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Ada-Go-Engineer.pdf", FileName("Ada - Go Engineer"))
	assert.Equal(t, "document.pdf", FileName("  ///  "))
}
