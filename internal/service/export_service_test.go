package service

import (
	"alcyxob/plan-tracker/internal/domain"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storageMock struct {
	mu         sync.Mutex
	objects    map[string][]byte
	presignErr error
}

func newStorageMock() *storageMock {
	return &storageMock{objects: make(map[string][]byte)}
}

func (m *storageMock) PutObject(ctx context.Context, objectKey string, contentType string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey] = body
	return nil
}

func (m *storageMock) GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	if m.presignErr != nil {
		return "", m.presignErr
	}
	return "https://files.example.test/" + objectKey, nil
}

func (m *storageMock) DeleteObject(ctx context.Context, objectKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectKey)
	return nil
}

func TestSessionCSV(t *testing.T) {
	body, err := SessionCSV(domain.Table{
		Columns: []string{"name", "notes"},
		Rows: []domain.Row{
			{ID: "r1", Values: map[string]string{"name": "Push-up", "notes": "slow, controlled"}},
			{ID: "r2", Values: map[string]string{"name": "Dips"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "name,notes\nPush-up,\"slow, controlled\"\nDips,\n", string(body))
}

func TestExportService_Export(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)
	store := newStorageMock()
	exports := NewExportService(env.sessions, store, time.Minute, env.metrics)

	s, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)

	_, err = exports.Export(ctx, "u1", s.ID)
	assert.ErrorIs(t, err, ErrSessionNotCompleted)

	_, err = env.sessions.Complete(ctx, "u1", s.ID)
	require.NoError(t, err)

	result, err := exports.Export(ctx, "u1", s.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.ObjectKey, "exports/u1/cb/"))
	assert.Contains(t, result.URL, result.ObjectKey)
	assert.Equal(t, "name,sets,reps,weight\n", string(store.objects[result.ObjectKey]))

	_, err = exports.Export(ctx, "u2", s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExportService_CleansUpWhenPresignFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)
	store := newStorageMock()
	store.presignErr = errors.New("signer down")
	exports := NewExportService(env.sessions, store, time.Minute, env.metrics)

	s, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)
	_, err = env.sessions.Complete(ctx, "u1", s.ID)
	require.NoError(t, err)

	_, err = exports.Export(ctx, "u1", s.ID)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.Empty(t, store.objects)
}

func TestExportService_Unconfigured(t *testing.T) {
	env := newTestEnv(t)
	exports := NewExportService(env.sessions, nil, 0, env.metrics)
	_, err := exports.Export(context.Background(), "u1", "s1")
	assert.ErrorIs(t, err, ErrExportUnavailable)
}
