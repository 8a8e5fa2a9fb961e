package semantic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/quiz-pool/internal/service/comparecache"
	"github.com/ashwinyue/quiz-pool/internal/service/similarity"
)

// fakeComparer 按题目 ID 返回分数，未配置的配对返回 10 分
type fakeComparer struct {
	mu     sync.Mutex
	scores map[string]int
	err    error
	calls  int
}

func (f *fakeComparer) Name() string { return "fake" }

func (f *fakeComparer) Compare(_ context.Context, a, b similarity.Question) (*similarity.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	score, ok := f.scores[comparecache.PairKey(a.ID, b.ID)]
	if !ok {
		score = 10
	}
	return &similarity.Result{Score: score, IsDuplicate: score >= 95, Reasoning: "fake", Model: "fake"}, nil
}

func (f *fakeComparer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func questions(n int) []similarity.Question {
	out := make([]similarity.Question, n)
	for i := range out {
		out[i] = similarity.Question{
			ID:      fmt.Sprintf("q-%03d", i),
			Text:    fmt.Sprintf("existing question %d", i),
			Choices: []string{"a", "b"},
		}
	}
	return out
}

func candidate(id string) Candidate {
	return Candidate{
		Question:    similarity.Question{ID: id, Text: "new question", Choices: []string{"a", "b"}},
		Fingerprint: "fp-" + id,
	}
}

func newTestDetector(t *testing.T, cmp similarity.Comparer, cfg Config) (*Detector, *comparecache.MemoryCache) {
	t.Helper()
	cache := comparecache.NewMemoryCache(nil)
	d, err := NewDetector(cmp, cache, cfg, nil)
	require.NoError(t, err)
	return d, cache
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "lower bound", cfg: Config{Threshold: 80, SampleCap: 1}},
		{name: "upper bound", cfg: Config{Threshold: 100, SampleCap: 1}},
		{name: "threshold too low", cfg: Config{Threshold: 79, SampleCap: 50}, wantErr: true},
		{name: "threshold too high", cfg: Config{Threshold: 101, SampleCap: 50}, wantErr: true},
		{name: "zero cap", cfg: Config{Threshold: 95, SampleCap: 0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDetect_EmptyPool(t *testing.T) {
	cmp := &fakeComparer{}
	d, _ := newTestDetector(t, cmp, DefaultConfig())

	dec, err := d.Detect(context.Background(), candidate("new"), nil)
	require.NoError(t, err)
	assert.False(t, dec.IsDuplicate)
	assert.Equal(t, 0, cmp.Calls())
}

func TestDetect_SampleCapBoundsCalls(t *testing.T) {
	cmp := &fakeComparer{}
	d, _ := newTestDetector(t, cmp, DefaultConfig())

	dec, err := d.Detect(context.Background(), candidate("new"), questions(60))
	require.NoError(t, err)
	assert.False(t, dec.IsDuplicate)
	assert.LessOrEqual(t, cmp.Calls(), 50)
	assert.Equal(t, 50, dec.Compared)
	assert.Equal(t, 50, dec.Calls)
}

func TestSample(t *testing.T) {
	existing := questions(60)

	first := sample("seed", existing, 50)
	second := sample("seed", existing, 50)
	require.Len(t, first, 50)
	assert.Equal(t, first, second)

	// 保持原有顺序
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].ID, first[i].ID)
	}

	other := sample("another-seed", existing, 50)
	assert.NotEqual(t, first, other)

	small := questions(3)
	assert.Equal(t, small, sample("seed", small, 50))
}

func TestDetect_ShortCircuitOnFirstMatch(t *testing.T) {
	existing := questions(5)
	cmp := &fakeComparer{scores: map[string]int{
		comparecache.PairKey("new", existing[1].ID): 97,
		comparecache.PairKey("new", existing[3].ID): 99,
	}}
	d, _ := newTestDetector(t, cmp, DefaultConfig())

	dec, err := d.Detect(context.Background(), candidate("new"), existing)
	require.NoError(t, err)
	assert.True(t, dec.IsDuplicate)
	assert.Equal(t, existing[1].ID, dec.DuplicateOf)
	assert.Equal(t, 97, dec.Score)
	assert.Equal(t, 2, dec.Compared)
	assert.Equal(t, 2, cmp.Calls())
}

func TestDetect_Threshold(t *testing.T) {
	existing := questions(1)
	key := comparecache.PairKey("new", existing[0].ID)

	tests := []struct {
		name      string
		threshold int
		score     int
		wantDup   bool
	}{
		{name: "equal to threshold", threshold: 95, score: 95, wantDup: true},
		{name: "just below", threshold: 95, score: 94},
		{name: "lower threshold", threshold: 85, score: 90, wantDup: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp := &fakeComparer{scores: map[string]int{key: tt.score}}
			d, _ := newTestDetector(t, cmp, Config{Threshold: tt.threshold, SampleCap: 50})
			dec, err := d.Detect(context.Background(), candidate("new"), existing)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDup, dec.IsDuplicate)
		})
	}
}

func TestDetect_CacheSymmetry(t *testing.T) {
	a := candidate("q-a")
	b := candidate("q-b")
	cmp := &fakeComparer{}
	d, cache := newTestDetector(t, cmp, DefaultConfig())

	_, err := d.Detect(context.Background(), a, []similarity.Question{b.Question})
	require.NoError(t, err)
	dec, err := d.Detect(context.Background(), b, []similarity.Question{a.Question})
	require.NoError(t, err)

	assert.Equal(t, 1, cmp.Calls())
	assert.Equal(t, 1, dec.CacheHits)
	assert.Equal(t, 1, cache.Len())
}

// gatedComparer 在 gate 关闭前阻塞所有比对
type gatedComparer struct {
	fakeComparer
	gate chan struct{}
}

func (g *gatedComparer) Compare(ctx context.Context, a, b similarity.Question) (*similarity.Result, error) {
	<-g.gate
	return g.fakeComparer.Compare(ctx, a, b)
}

func TestDetect_ConcurrentSamePairCountsCallsOnce(t *testing.T) {
	cmp := &gatedComparer{gate: make(chan struct{})}
	d, _ := newTestDetector(t, cmp, DefaultConfig())
	existing := questions(1)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		calls     int
		cacheHits int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := d.Detect(context.Background(), candidate("new"), existing)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			calls += dec.Calls
			cacheHits += dec.CacheHits
			mu.Unlock()
		}()
	}
	// 等待其余调用方进入同一次比对
	time.Sleep(50 * time.Millisecond)
	close(cmp.gate)
	wg.Wait()

	assert.Equal(t, cmp.Calls(), calls, "reported calls must match comparer invocations")
	assert.Equal(t, n, calls+cacheHits)
}

func TestDetect_CascadeExhaustedIsNotDuplicate(t *testing.T) {
	cmp := &fakeComparer{err: fmt.Errorf("%w: all down", similarity.ErrCascadeExhausted)}
	d, cache := newTestDetector(t, cmp, DefaultConfig())

	dec, err := d.Detect(context.Background(), candidate("new"), questions(4))
	require.NoError(t, err)
	assert.False(t, dec.IsDuplicate)
	assert.Equal(t, 4, dec.Unverified)
	assert.Equal(t, 0, dec.Compared)
	assert.Equal(t, 0, cache.Len())
}

func TestDetect_SkipsSelf(t *testing.T) {
	cmp := &fakeComparer{}
	d, _ := newTestDetector(t, cmp, DefaultConfig())

	c := candidate("q-000")
	dec, err := d.Detect(context.Background(), c, questions(2))
	require.NoError(t, err)
	assert.Equal(t, 1, dec.Compared)
}

func TestDetect_ContextCanceled(t *testing.T) {
	d, _ := newTestDetector(t, &fakeComparer{}, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Detect(ctx, candidate("new"), questions(3))
	assert.True(t, errors.Is(err, context.Canceled))
}
