package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/quiz-pool/internal/config"
	"github.com/ashwinyue/quiz-pool/internal/testutil"
)

func TestPageBounds(t *testing.T) {
	tests := []struct {
		page, size          int
		wantOffset, wantLim int
	}{
		{page: 1, size: 20, wantOffset: 0, wantLim: 20},
		{page: 3, size: 10, wantOffset: 20, wantLim: 10},
		{page: 0, size: 0, wantOffset: 0, wantLim: 20},
		{page: -2, size: 500, wantOffset: 0, wantLim: 20},
	}
	for _, tt := range tests {
		offset, limit := pageBounds(tt.page, tt.size)
		assert.Equal(t, tt.wantOffset, offset)
		assert.Equal(t, tt.wantLim, limit)
	}
}

func TestQueries(t *testing.T) {
	f := newFixture(t, nil, Config{DegradedPolicy: config.DegradedPolicyAccept})
	ctx := context.Background()

	candidates := testutil.Candidates("History", 4)
	_, err := f.svc.Merge(ctx, &MergeRequest{PoolName: "History", Category: "humanities", Candidates: candidates})
	require.NoError(t, err)
	res, err := f.svc.Merge(ctx, &MergeRequest{PoolName: "History", Candidates: candidates[:2]})
	require.NoError(t, err)
	poolID := res.Pool.ID

	t.Run("list pools by category", func(t *testing.T) {
		pools, total, err := f.svc.ListPools(ctx, &ListPoolsRequest{Category: "humanities"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, pools, 1)
		assert.Equal(t, "History", pools[0].Name)

		_, total, err = f.svc.ListPools(ctx, &ListPoolsRequest{Category: "science"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})

	t.Run("questions exclude duplicates by default", func(t *testing.T) {
		qs, total, err := f.svc.ListQuestions(ctx, &ListQuestionsRequest{PoolID: poolID})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, qs, 4)
		// 按上传顺序返回
		for i, q := range qs {
			assert.Equal(t, candidates[i].Text, q.Text)
		}

		_, total, err = f.svc.ListQuestions(ctx, &ListQuestionsRequest{PoolID: poolID, IncludeDuplicates: true})
		require.NoError(t, err)
		assert.Equal(t, int64(6), total)
	})

	t.Run("unknown pool", func(t *testing.T) {
		_, _, err := f.svc.ListQuestions(ctx, &ListQuestionsRequest{PoolID: "missing"})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = f.svc.GetPool(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, _, err = f.svc.ListBatches(ctx, "missing", 1, 10)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("record attempts", func(t *testing.T) {
		qID := res.Outcomes[0].DuplicateOf
		_, err := f.svc.RecordAttempt(ctx, qID, true)
		require.NoError(t, err)
		q, err := f.svc.RecordAttempt(ctx, qID, false)
		require.NoError(t, err)
		assert.Equal(t, 2, q.TimesShown)
		assert.Equal(t, 1, q.TimesCorrect)
		assert.Equal(t, 1, q.TimesIncorrect)

		_, err = f.svc.RecordAttempt(ctx, "missing", true)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
