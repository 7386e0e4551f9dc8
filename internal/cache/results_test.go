package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResults_SetGet(t *testing.T) {
	r := NewResults(5*time.Minute, 10*time.Minute)
	jobID := uuid.New()

	_, ok := r.Get(jobID)
	assert.False(t, ok)

	r.Set(jobID, []byte(`{"questions":[]}`))
	got, ok := r.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"questions":[]}`), got)
}

func TestResults_KeyedByJobID(t *testing.T) {
	r := NewResults(5*time.Minute, 10*time.Minute)
	a, b := uuid.New(), uuid.New()

	r.Set(a, []byte("a"))
	r.Set(b, []byte("b"))

	gotA, _ := r.Get(a)
	gotB, _ := r.Get(b)
	assert.Equal(t, []byte("a"), gotA)
	assert.Equal(t, []byte("b"), gotB)
}

func TestResults_Invalidate(t *testing.T) {
	r := NewResults(5*time.Minute, 10*time.Minute)
	jobID := uuid.New()

	r.Set(jobID, []byte("payload"))
	r.Invalidate(jobID)

	_, ok := r.Get(jobID)
	assert.False(t, ok)
}

func TestResults_EntriesExpire(t *testing.T) {
	r := NewResults(10*time.Millisecond, time.Minute)
	jobID := uuid.New()

	r.Set(jobID, []byte("payload"))
	time.Sleep(25 * time.Millisecond)

	_, ok := r.Get(jobID)
	assert.False(t, ok)
}
