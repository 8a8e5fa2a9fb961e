package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/quiz-pool/internal/database"
	"github.com/ashwinyue/quiz-pool/internal/model"
)

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db, err := database.OpenInMemory("repo_" + t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepositories(db.DB)
}

func TestPoolRepository(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	pool := &model.Pool{Name: "Algebra", Category: "math"}
	require.NoError(t, repos.Pool.Create(ctx, pool))
	assert.NotEmpty(t, pool.ID)

	got, err := repos.Pool.GetByName(ctx, "Algebra")
	require.NoError(t, err)
	assert.Equal(t, pool.ID, got.ID)

	_, err = repos.Pool.GetByName(ctx, "algebra")
	assert.ErrorIs(t, err, ErrNotFound)

	// 名称唯一
	assert.Error(t, repos.Pool.Create(ctx, &model.Pool{Name: "Algebra"}))

	require.NoError(t, repos.Pool.UpdateStats(ctx, pool.ID, model.PoolStats{TotalCount: 3, UniqueCount: 2, DuplicateCount: 1}))
	got, err = repos.Pool.GetByID(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalCount)

	assert.ErrorIs(t, repos.Pool.UpdateStats(ctx, "missing", model.PoolStats{}), ErrNotFound)
}

func TestQuestionRepository_CountStatsAndListing(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	pool := &model.Pool{Name: "Stats"}
	require.NoError(t, repos.Pool.Create(ctx, pool))

	canonical := &model.Question{PoolID: pool.ID, Text: "q1", Choices: model.StringList{"a", "b"}, Fingerprint: "fp1"}
	require.NoError(t, repos.Question.CreateBatch(ctx, []*model.Question{canonical}))
	dup := &model.Question{PoolID: pool.ID, Text: "q1", Choices: model.StringList{"a", "b"}, Fingerprint: "fp1", IsDuplicate: true, DuplicateOf: canonical.ID}
	other := &model.Question{PoolID: pool.ID, Text: "q2", Choices: model.StringList{"c", "d"}, Fingerprint: "fp2"}
	require.NoError(t, repos.Question.CreateBatch(ctx, []*model.Question{dup, other}))

	stats, err := repos.Question.CountStats(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStats{TotalCount: 3, UniqueCount: 2, DuplicateCount: 1}, stats)

	canon, err := repos.Question.ListCanonical(ctx, pool.ID)
	require.NoError(t, err)
	require.Len(t, canon, 2)
	for _, q := range canon {
		assert.False(t, q.IsDuplicate)
	}

	dups, err := repos.Question.ListDuplicates(ctx, pool.ID)
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, dup.ID, dups[0].ID)
	assert.Equal(t, "fp1", dups[0].Fingerprint)
	assert.Equal(t, canonical.ID, dups[0].DuplicateOf)

	loaded, err := repos.Question.GetByID(ctx, canonical.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StringList{"a", "b"}, loaded.Choices)
}

func TestBatchRepository_Finalize(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	batch := &model.UploadBatch{PoolID: "p", Status: model.BatchStatusProcessing, SourceFiles: model.StringList{"a.pdf"}}
	require.NoError(t, repos.Batch.Create(ctx, batch))

	batch.Status = model.BatchStatusCompleted
	batch.UniqueAdded = 4
	batch.Rejections = model.RejectionList{{Index: 2, Reason: "bad"}}
	require.NoError(t, repos.Batch.Finalize(ctx, batch))

	got, err := repos.Batch.GetByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, got.Status)
	assert.Equal(t, 4, got.UniqueAdded)
	assert.Equal(t, model.RejectionList{{Index: 2, Reason: "bad"}}, got.Rejections)
	assert.True(t, got.IsFinal())

	batch.Status = model.BatchStatusFailed
	assert.ErrorIs(t, repos.Batch.Finalize(ctx, batch), ErrBatchFinalized)
}

func TestComparisonRepository_CreateIfAbsent(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	entry := &model.ComparisonCacheEntry{PairKey: "a|b", QuestionA: "a", QuestionB: "b", Score: 97, IsDuplicate: true}
	created, err := repos.Comparison.CreateIfAbsent(ctx, entry)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repos.Comparison.CreateIfAbsent(ctx, &model.ComparisonCacheEntry{PairKey: "a|b", Score: 1})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repos.Comparison.Get(ctx, "a|b")
	require.NoError(t, err)
	assert.Equal(t, 97, got.Score)

	_, err = repos.Comparison.Get(ctx, "x|y")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransaction_Rollback(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repos.Transaction(ctx, func(tx *Repositories) error {
		if err := tx.Pool.Create(ctx, &model.Pool{Name: "Temp"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repos.Pool.GetByName(ctx, "Temp")
	assert.ErrorIs(t, err, ErrNotFound)
}
