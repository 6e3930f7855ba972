package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobgenie/internal/database"
	"jobgenie/internal/documents"
	"jobgenie/internal/errcode"
	"jobgenie/internal/tasks"
)

type fakeDocs struct {
	doc      *database.Document
	exported string
	failed   bool
	// editedTo 模拟渲染期间文档被改到的新版本。
	editedTo int
}

func (f *fakeDocs) GetByID(_ context.Context, id uint) (*database.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, documents.ErrNotFound
	}
	return f.doc, nil
}

func (f *fakeDocs) MarkExported(_ context.Context, _ uint, version int, key string) error {
	if f.editedTo != 0 && f.editedTo != version {
		return documents.ErrVersionConflict
	}
	f.exported = key
	return nil
}

func (f *fakeDocs) MarkExportFailed(context.Context, uint) error {
	f.failed = true
	return nil
}

type fakeRenderer struct {
	html string
	err  error
}

func (f *fakeRenderer) Render(_ context.Context, html string) ([]byte, error) {
	f.html = html
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7"), nil
}

type fakeUploader struct {
	key  string
	body []byte
}

func (f *fakeUploader) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	f.key = key
	f.body, _ = io.ReadAll(r)
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	messages []ExportNotifyMessage
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.mu.Lock()
	defer p.mu.Unlock()
	var msg ExportNotifyMessage
	_ = json.Unmarshal(message.([]byte), &msg)
	p.channels = append(p.channels, channel)
	p.messages = append(p.messages, msg)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func exportTask(t *testing.T, docID uint) *asynq.Task {
	t.Helper()
	task, err := tasks.NewDocumentExportTask(tasks.DocumentExportPayload{DocumentID: docID, UserID: 9, Version: 2, CorrelationID: "corr-1"})
	require.NoError(t, err)
	return task
}

func testDoc() *database.Document {
	d := &database.Document{UserID: 9, Title: "Backend Resume", Type: database.DocumentTypeResume, Content: "<h1>Ada</h1>", Version: 2}
	d.ID = 11
	return d
}

func TestExportTask_Success(t *testing.T) {
	docs := &fakeDocs{doc: testDoc()}
	renderer := &fakeRenderer{}
	up := &fakeUploader{}
	pub := &recordingPublisher{}
	h := NewExportTaskHandler(docs, renderer, up, pub, nil)

	require.NoError(t, h.ProcessTask(context.Background(), exportTask(t, 11)))

	assert.Contains(t, renderer.html, "<h1>Ada</h1>")
	assert.Equal(t, "exports/9/11/v2.pdf", up.key)
	assert.Equal(t, []byte("%PDF-1.7"), up.body)
	assert.Equal(t, up.key, docs.exported)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "user_notify:9", pub.channels[0])
	assert.Equal(t, "completed", pub.messages[0].Status)
	assert.Equal(t, exportMessageType, pub.messages[0].Type)
	assert.Equal(t, "corr-1", pub.messages[0].CorrelationID)
}

func TestExportTask_DocumentEditedDuringRender(t *testing.T) {
	docs := &fakeDocs{doc: testDoc(), editedTo: 3}
	pub := &recordingPublisher{}
	h := NewExportTaskHandler(docs, &fakeRenderer{}, &fakeUploader{}, pub, nil)

	require.NoError(t, h.ProcessTask(context.Background(), exportTask(t, 11)))
	assert.Empty(t, docs.exported)
	assert.False(t, docs.failed)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "error", pub.messages[0].Status)
	assert.Equal(t, errcode.DocumentChanged, pub.messages[0].ErrorCode)
}

func TestExportTask_MissingDocumentIsSkipped(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewExportTaskHandler(&fakeDocs{}, &fakeRenderer{}, &fakeUploader{}, pub, nil)

	require.NoError(t, h.ProcessTask(context.Background(), exportTask(t, 11)))
	assert.Empty(t, pub.messages)
}

func TestExportTask_RetryableFailureStaysQuiet(t *testing.T) {
	docs := &fakeDocs{doc: testDoc()}
	pub := &recordingPublisher{}
	h := NewExportTaskHandler(docs, &fakeRenderer{err: errors.New("chromium crashed")}, &fakeUploader{}, pub, nil)
	h.finalAttempt = func(context.Context) bool { return false }

	require.Error(t, h.ProcessTask(context.Background(), exportTask(t, 11)))
	assert.False(t, docs.failed)
	assert.Empty(t, pub.messages)
}

func TestExportTask_FinalFailureNotifies(t *testing.T) {
	docs := &fakeDocs{doc: testDoc()}
	pub := &recordingPublisher{}
	h := NewExportTaskHandler(docs, &fakeRenderer{err: errors.New("chromium crashed")}, &fakeUploader{}, pub, nil)
	h.finalAttempt = func(context.Context) bool { return true }

	require.Error(t, h.ProcessTask(context.Background(), exportTask(t, 11)))
	assert.True(t, docs.failed)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "error", pub.messages[0].Status)
	assert.Equal(t, errcode.SystemError, pub.messages[0].ErrorCode)
	assert.Contains(t, pub.messages[0].ErrorMessage, "chromium crashed")
}

func TestExportTask_BadPayloadSkipsRetry(t *testing.T) {
	h := NewExportTaskHandler(&fakeDocs{}, &fakeRenderer{}, &fakeUploader{}, &recordingPublisher{}, nil)

	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeDocumentExport, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type recordingCache struct{ skills []string }

func (c *recordingCache) Prewarm(_ context.Context, skills []string) {
	c.skills = append(c.skills, skills...)
}

func TestPrewarmTask_UsesPayloadSkills(t *testing.T) {
	cache := &recordingCache{}
	called := false
	h := NewPrewarmTaskHandler(cache, nil, func(context.Context) ([]string, error) {
		called = true
		return []string{"Kotlin"}, nil
	})
	task, err := tasks.NewResourcePrewarmTask(tasks.ResourcePrewarmPayload{Skills: []string{"Go"}})
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Equal(t, []string{"Go"}, cache.skills)
	assert.False(t, called)
}

func TestPrewarmTask_CollectsFromSources(t *testing.T) {
	cache := &recordingCache{}
	h := NewPrewarmTaskHandler(cache, nil,
		func(context.Context) ([]string, error) { return []string{"Go", "SQL"}, nil },
		func(context.Context) ([]string, error) { return nil, errors.New("db down") },
		func(context.Context) ([]string, error) { return []string{"Rust"}, nil },
	)
	task, err := tasks.NewResourcePrewarmTask(tasks.ResourcePrewarmPayload{})
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Equal(t, []string{"Go", "SQL", "Rust"}, cache.skills)
}
