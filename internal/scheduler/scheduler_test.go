package scheduler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobgenie/internal/tasks"
)

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func TestEnqueuePrewarm(t *testing.T) {
	q := &fakeQueue{}
	s := New(q, "0 3 * * *", nil)

	require.NoError(t, s.enqueuePrewarm(context.Background()))

	require.Len(t, q.tasks, 1)
	assert.Equal(t, tasks.TypeResourcePrewarm, q.tasks[0].Type())
	var payload tasks.ResourcePrewarmPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &payload))
	assert.Empty(t, payload.Skills)
	assert.NotEmpty(t, payload.CorrelationID)
}

func TestEnqueuePrewarm_DuplicateIsNotAnError(t *testing.T) {
	s := New(&fakeQueue{err: asynq.ErrDuplicateTask}, "0 3 * * *", nil)

	assert.NoError(t, s.enqueuePrewarm(context.Background()))
}

func TestStart_RejectsBadSpec(t *testing.T) {
	s := New(&fakeQueue{}, "every night please", nil)

	err := s.Start(context.Background())
	require.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s := New(&fakeQueue{}, "@daily", nil)

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
