package similarity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/quiz-pool/internal/config"
	"github.com/ashwinyue/quiz-pool/internal/testutil"
)

var (
	qa = Question{ID: "q-a", Text: "What is the capital of France?", Choices: []string{"Paris", "Rome", "Berlin"}}
	qb = Question{ID: "q-b", Text: "Which city is France's capital?", Choices: []string{"Rome", "Paris", "Madrid"}}
)

// scriptedComparer 按预设返回结果的比较器
type scriptedComparer struct {
	name   string
	result *Result
	err    error
	delay  time.Duration

	mu    sync.Mutex
	calls int
}

func (s *scriptedComparer) Name() string { return s.name }

func (s *scriptedComparer) Compare(ctx context.Context, a, b Question) (*Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	return &r, nil
}

func (s *scriptedComparer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantScore int
		wantDup   bool
		wantErr   bool
	}{
		{name: "well formed", content: `{"similarity_score": 97, "is_duplicate": true, "reasoning": "same fact"}`, wantScore: 97, wantDup: true},
		{name: "fenced", content: "```json\n{\"similarity_score\": 20, \"is_duplicate\": false, \"reasoning\": \"different topic\"}\n```", wantScore: 20},
		{name: "float score rounded", content: `{"similarity_score": 95.6, "is_duplicate": true, "reasoning": "r"}`, wantScore: 96, wantDup: true},
		{name: "repairable", content: `{similarity_score: 88, is_duplicate: false, reasoning: 'close',}`, wantScore: 88},
		{name: "missing score", content: `{"is_duplicate": true}`, wantErr: true},
		{name: "score above range", content: `{"similarity_score": 130, "is_duplicate": true}`, wantErr: true},
		{name: "negative score", content: `{"similarity_score": -1, "is_duplicate": false}`, wantErr: true},
		{name: "prose only", content: "These questions look alike.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parseResponse(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, r.Score)
			assert.Equal(t, tt.wantDup, r.IsDuplicate)
		})
	}
}

func TestChatComparer(t *testing.T) {
	ctx := context.Background()

	t.Run("prompt carries both questions", func(t *testing.T) {
		chat := testutil.NewFakeChatModel([]string{`{"similarity_score": 98, "is_duplicate": true, "reasoning": "same"}`}, nil)
		c := NewChatComparer("free-model", chat, 256)

		r, err := c.Compare(ctx, qa, qb)
		require.NoError(t, err)
		assert.Equal(t, 98, r.Score)
		assert.Equal(t, "free-model", r.Model)

		msgs := chat.LastMessages()
		require.Len(t, msgs, 2)
		prompt := msgs[1].Content
		assert.Contains(t, prompt, qa.Text)
		assert.Contains(t, prompt, qb.Text)
		assert.Contains(t, prompt, "A. Paris")
		assert.Contains(t, prompt, "B. Paris")
	})

	t.Run("model error propagated", func(t *testing.T) {
		c := NewChatComparer("m", testutil.NewFakeChatModel(nil, errors.New("429 rate limited")), 0)
		_, err := c.Compare(ctx, qa, qb)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("malformed response", func(t *testing.T) {
		c := NewChatComparer("m", testutil.NewFakeChatModel([]string{"I think they are similar"}, nil), 0)
		_, err := c.Compare(ctx, qa, qb)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestNewCascade_Validation(t *testing.T) {
	_, err := NewCascade(nil, time.Second, nil)
	assert.Error(t, err)

	_, err = NewCascade([]Comparer{&scriptedComparer{name: "m"}}, 0, nil)
	assert.Error(t, err)
}

func TestCascade_FirstSuccessWins(t *testing.T) {
	first := &scriptedComparer{name: "free", result: &Result{Score: 30, Reasoning: "free says no"}}
	second := &scriptedComparer{name: "paid", result: &Result{Score: 99, IsDuplicate: true}}
	c, err := NewCascade([]Comparer{first, second}, time.Second, nil)
	require.NoError(t, err)

	r, err := c.Compare(context.Background(), qa, qb)
	require.NoError(t, err)
	assert.Equal(t, 30, r.Score)
	assert.Equal(t, "free", r.Model)
	assert.Equal(t, 1, first.Calls())
	assert.Equal(t, 0, second.Calls())
}

func TestCascade_Fallback(t *testing.T) {
	failing := &scriptedComparer{name: "free", err: errors.New("503 service unavailable")}
	backup := &scriptedComparer{name: "paid", result: &Result{Score: 96, IsDuplicate: true, Reasoning: "same"}}
	c, err := NewCascade([]Comparer{failing, backup}, time.Second, nil)
	require.NoError(t, err)

	const comparisons = 5
	for i := 0; i < comparisons; i++ {
		r, err := c.Compare(context.Background(), qa, qb)
		require.NoError(t, err)
		assert.Equal(t, Result{Score: 96, IsDuplicate: true, Reasoning: "same", Model: "paid"}, *r)
	}
	assert.Equal(t, comparisons, failing.Calls())
	assert.Equal(t, comparisons, backup.Calls())
}

func TestCascade_TimeoutFallsThrough(t *testing.T) {
	slow := &scriptedComparer{name: "slow", delay: 500 * time.Millisecond, result: &Result{Score: 1}}
	fast := &scriptedComparer{name: "fast", result: &Result{Score: 42}}
	c, err := NewCascade([]Comparer{slow, fast}, 20*time.Millisecond, nil)
	require.NoError(t, err)

	start := time.Now()
	r, err := c.Compare(context.Background(), qa, qb)
	require.NoError(t, err)
	assert.Equal(t, "fast", r.Model)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestCascade_Exhausted(t *testing.T) {
	c, err := NewCascade([]Comparer{
		&scriptedComparer{name: "m1", err: errors.New("boom")},
		&scriptedComparer{name: "m2", err: ErrMalformedResponse},
		NewChatComparer("m3", testutil.NewFakeChatModel(nil, nil).WithDelay(time.Second), 0),
	}, 20*time.Millisecond, nil)
	require.NoError(t, err)

	_, err = c.Compare(context.Background(), qa, qb)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCascadeExhausted)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	for _, name := range []string{"m1", "m2", "m3"} {
		assert.True(t, strings.Contains(err.Error(), name), name)
	}
}

func TestCascade_CanceledContext(t *testing.T) {
	m := &scriptedComparer{name: "m", result: &Result{Score: 1}}
	c, err := NewCascade([]Comparer{m}, time.Second, nil)
	require.NoError(t, err)

	_, err = c.Compare(testutil.CanceledContext(), qa, qb)
	assert.ErrorIs(t, err, ErrCascadeExhausted)
	assert.Equal(t, 0, m.Calls())
}

func TestNewCascadeFromConfig(t *testing.T) {
	cfg := &config.AIConfig{
		BaseURL:        "https://shared.example/v1",
		APIKey:         "shared",
		AttemptTimeout: 5,
		MaxTokens:      128,
		Models: []config.ModelEndpoint{
			{Name: "free-model"},
			{Name: "paid-model", BaseURL: "https://paid.example/v1", APIKey: "paid"},
		},
	}

	var endpoints []config.ModelEndpoint
	factory := func(ctx context.Context, ep config.ModelEndpoint) (model.BaseChatModel, error) {
		endpoints = append(endpoints, ep)
		return testutil.NewFakeChatModel([]string{`{"similarity_score": 10, "is_duplicate": false, "reasoning": "n"}`}, nil), nil
	}

	c, err := NewCascadeFromConfig(context.Background(), cfg, factory, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"free-model", "paid-model"}, c.Models())
	require.Len(t, endpoints, 2)
	assert.Equal(t, "https://shared.example/v1", endpoints[0].BaseURL)
	assert.Equal(t, "shared", endpoints[0].APIKey)
	assert.Equal(t, "paid", endpoints[1].APIKey)

	r, err := c.Compare(context.Background(), qa, qb)
	require.NoError(t, err)
	assert.Equal(t, "free-model", r.Model)

	_, err = NewCascadeFromConfig(context.Background(), cfg, func(context.Context, config.ModelEndpoint) (model.BaseChatModel, error) {
		return nil, errors.New("bad key")
	}, nil)
	assert.Error(t, err)
}
