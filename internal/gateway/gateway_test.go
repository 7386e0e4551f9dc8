package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seojun-park/sheetwise/constants"
	"github.com/seojun-park/sheetwise/internal/cache"
	"github.com/seojun-park/sheetwise/internal/common"
	"github.com/seojun-park/sheetwise/internal/entity"
	"github.com/seojun-park/sheetwise/internal/repository"
	"github.com/seojun-park/sheetwise/internal/resilience"
)

// fakeRepo is an in-memory DocumentRepository with a scriptable error
// sequence for Insert.
type fakeRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*entity.DocumentRow
	script  []error
	inserts int
}

func newFakeRepo(script ...error) *fakeRepo {
	return &fakeRepo{rows: make(map[uuid.UUID]*entity.DocumentRow), script: script}
}

func (f *fakeRepo) Insert(_ context.Context, row *entity.DocumentRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if len(f.script) > 0 {
		err := f.script[0]
		f.script = f.script[1:]
		if err != nil {
			return err
		}
	}
	if _, exists := f.rows[row.JobID]; exists {
		return repository.ErrDuplicateJob
	}
	cp := *row
	f.rows[row.JobID] = &cp
	return nil
}

func (f *fakeRepo) GetByJobID(_ context.Context, jobID uuid.UUID) (*entity.DocumentRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[jobID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeRepo) Delete(_ context.Context, jobID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, jobID)
	return nil
}

func (f *fakeRepo) insertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts
}

func testDoc() *entity.StructuredDocument {
	return &entity.StructuredDocument{
		Info: entity.DocumentInfo{
			JobID:          "test",
			TotalQuestions: 1,
			FrontMatter:    []string{},
		},
		Questions: []entity.Question{{Number: "1"}},
	}
}

func newTestGateway(repo repository.DocumentRepository) (*Gateway, *resilience.Breaker) {
	breaker := resilience.NewBreaker(resilience.ResourcePrimaryStorage, common.BreakerConfig{
		WindowSize:       10,
		FailureRate:      0.70,
		SlowRate:         0.80,
		SlowCallDuration: 10 * time.Second,
		Cooldown:         30 * time.Second,
		HalfOpenCalls:    3,
	})
	retry := resilience.NewRetryPolicy(3, 500*time.Millisecond).
		WithSleep(func(context.Context, time.Duration) error { return nil })
	results := cache.NewResults(5*time.Minute, 10*time.Minute)
	return New(repo, breaker, retry, results, 10*time.Second, nil), breaker
}

func TestSave_Completes(t *testing.T) {
	repo := newFakeRepo()
	gw, _ := newTestGateway(repo)
	jobID := uuid.New()

	res := gw.Save(context.Background(), jobID, testDoc())
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	require.NoError(t, res.Err)

	row, err := repo.GetByJobID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, row.Status)
	assert.Equal(t, 1, row.QuestionCount)
}

func TestSave_SecondCallAlreadyExists(t *testing.T) {
	repo := newFakeRepo()
	gw, _ := newTestGateway(repo)
	jobID := uuid.New()

	first := gw.Save(context.Background(), jobID, testDoc())
	require.Equal(t, OutcomeCompleted, first.Outcome)

	second := gw.Save(context.Background(), jobID, testDoc())
	assert.Equal(t, OutcomeAlreadyExists, second.Outcome)
	assert.Equal(t, 1, repo.insertCount())
}

func TestSave_ConcurrentCallsWriteOnce(t *testing.T) {
	repo := newFakeRepo()
	gw, _ := newTestGateway(repo)
	jobID := uuid.New()

	const n = 16
	results := make([]SaveResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = gw.Save(context.Background(), jobID, testDoc())
		}()
	}
	wg.Wait()

	completed, exists := 0, 0
	for _, r := range results {
		switch r.Outcome {
		case OutcomeCompleted:
			completed++
		case OutcomeAlreadyExists:
			exists++
		default:
			t.Fatalf("unexpected outcome %v (%v)", r.Outcome, r.Err)
		}
	}
	assert.Equal(t, 1, completed)
	assert.Equal(t, n-1, exists)
	assert.Equal(t, 1, repo.insertCount())
}

func TestSave_TransientFailuresRetriedThenSucceed(t *testing.T) {
	transient := &repository.TransientError{Err: errors.New("lock timeout")}
	repo := newFakeRepo(transient, transient, nil)
	gw, breaker := newTestGateway(repo)
	jobID := uuid.New()

	res := gw.Save(context.Background(), jobID, testDoc())
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 3, repo.insertCount())
	// Both failed attempts count in the breaker's window.
	assert.Equal(t, 2, breaker.Failures())
}

func TestSave_TransientFailuresExhausted(t *testing.T) {
	transient := &repository.TransientError{Err: errors.New("lock timeout")}
	repo := newFakeRepo(transient, transient, transient)
	gw, _ := newTestGateway(repo)
	jobID := uuid.New()

	res := gw.Save(context.Background(), jobID, testDoc())
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, FailureTransient, res.Failure)
	assert.Equal(t, 3, repo.insertCount())

	// A failed job may be claimed and saved again.
	again := gw.Save(context.Background(), jobID, testDoc())
	assert.Equal(t, OutcomeCompleted, again.Outcome)
}

func TestSave_PermanentFailureNotRetried(t *testing.T) {
	permanent := errors.New("value too long for column")
	repo := newFakeRepo(permanent)
	gw, _ := newTestGateway(repo)

	res := gw.Save(context.Background(), uuid.New(), testDoc())
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, FailurePermanent, res.Failure)
	assert.Equal(t, 1, repo.insertCount())
}

func TestSave_DuplicateRowIsAlreadyExists(t *testing.T) {
	// The row landed through another path; the unique violation is
	// success-equivalent and must not count as a breaker failure.
	repo := newFakeRepo(repository.ErrDuplicateJob)
	gw, breaker := newTestGateway(repo)

	res := gw.Save(context.Background(), uuid.New(), testDoc())
	assert.Equal(t, OutcomeAlreadyExists, res.Outcome)
	assert.Equal(t, 0, breaker.Failures())
}

func TestSave_RejectedWhileBreakerOpen(t *testing.T) {
	transient := &repository.TransientError{Err: errors.New("connection refused")}
	script := make([]error, 12)
	for i := range script {
		script[i] = transient
	}
	repo := newFakeRepo(script...)
	gw, breaker := newTestGateway(repo)

	// Four exhausted saves fill the 10-call window with failures.
	for i := 0; i < 4; i++ {
		res := gw.Save(context.Background(), uuid.New(), testDoc())
		require.Equal(t, OutcomeFailed, res.Outcome)
		if breaker.State() == resilience.StateOpen {
			assert.Equal(t, FailureCircuitOpen, res.Failure)
			return
		}
	}
	t.Fatal("breaker never opened")
}

func TestLoad_ServesFromCacheAfterSave(t *testing.T) {
	repo := newFakeRepo()
	gw, _ := newTestGateway(repo)
	jobID := uuid.New()

	require.Equal(t, OutcomeCompleted, gw.Save(context.Background(), jobID, testDoc()).Outcome)

	// Remove the row underneath the cache; Load must still succeed.
	require.NoError(t, repo.Delete(context.Background(), jobID))

	doc, err := gw.Load(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Info.TotalQuestions)
}

func TestLoad_UnknownJob(t *testing.T) {
	gw, _ := newTestGateway(newFakeRepo())

	_, err := gw.Load(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReprocess_AllowsSupersedingSave(t *testing.T) {
	repo := newFakeRepo()
	gw, _ := newTestGateway(repo)
	jobID := uuid.New()

	require.Equal(t, OutcomeCompleted, gw.Save(context.Background(), jobID, testDoc()).Outcome)
	require.Equal(t, OutcomeAlreadyExists, gw.Save(context.Background(), jobID, testDoc()).Outcome)

	require.NoError(t, gw.Reprocess(context.Background(), jobID))

	res := gw.Save(context.Background(), jobID, testDoc())
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 2, repo.insertCount())
}
