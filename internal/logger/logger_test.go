package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVs(t *testing.T) {
	tests := []struct {
		name string
		in   []interface{}
		want []interface{}
	}{
		{
			name: "plain fields untouched",
			in:   []interface{}{"pool", "Algebra", "count", 3},
			want: []interface{}{"pool", "Algebra", "count", 3},
		},
		{
			name: "api key redacted",
			in:   []interface{}{"api_key", "sk-123", "model", "gpt-4o-mini"},
			want: []interface{}{"api_key", "[REDACTED]", "model", "gpt-4o-mini"},
		},
		{
			name: "password redacted case insensitive",
			in:   []interface{}{"DB_Password", "hunter2"},
			want: []interface{}{"DB_Password", "[REDACTED]"},
		},
		{
			name: "credential tokens redacted",
			in:   []interface{}{"token", "t1", "access_token", "t2", "X-Auth-Token", "t3", "client_secret", "s"},
			want: []interface{}{"token", "[REDACTED]", "access_token", "[REDACTED]", "X-Auth-Token", "[REDACTED]", "client_secret", "[REDACTED]"},
		},
		{
			name: "token usage counts untouched",
			in:   []interface{}{"prompt_tokens", 3, "completion_tokens", 2, "total_tokens", 5, "max_tokens", 4096},
			want: []interface{}{"prompt_tokens", 3, "completion_tokens", 2, "total_tokens", 5, "max_tokens", 4096},
		},
		{
			name: "dangling key kept",
			in:   []interface{}{"pool", "A", "orphan"},
			want: []interface{}{"pool", "A", "orphan"},
		},
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeKVs(tt.in))
		})
	}
}

func TestNopLoggerWith(t *testing.T) {
	l := NewNop().With("component", "test")
	assert.NotNil(t, l.SugaredLogger)
	l.Info("no output", "k", "v")
}
