package tasks

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentExportTask(t *testing.T) {
	task, err := NewDocumentExportTask(DocumentExportPayload{DocumentID: 4, UserID: 2, Version: 3, CorrelationID: "c-1"})
	require.NoError(t, err)
	assert.Equal(t, TypeDocumentExport, task.Type())

	var p DocumentExportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, uint(4), p.DocumentID)
	assert.Equal(t, 3, p.Version)
}

func TestNewResourcePrewarmTask_OmitsEmptySkills(t *testing.T) {
	task, err := NewResourcePrewarmTask(ResourcePrewarmPayload{})
	require.NoError(t, err)
	assert.Equal(t, TypeResourcePrewarm, task.Type())
	assert.JSONEq(t, `{}`, string(task.Payload()))
}
