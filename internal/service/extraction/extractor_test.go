package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/quiz-pool/internal/logger"
	"github.com/ashwinyue/quiz-pool/internal/testutil"
)

const studyNotes = `Photosynthesis converts light energy into chemical energy.
It takes place in the chloroplasts of plant cells.`

func newTestExtractor(t *testing.T, chat *testutil.FakeChatModel) *Extractor {
	t.Helper()
	e, err := NewExtractor(chat, DefaultConfig(), logger.NewNop())
	require.NoError(t, err)
	return e
}

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{
			name:    "array",
			content: `[{"question": "Where does photosynthesis happen?", "choices": ["Chloroplast", "Nucleus"], "correct_index": 0}]`,
			want:    1,
		},
		{
			name:    "wrapped object",
			content: "```json\n{\"questions\": [{\"question\": \"Q1\", \"choices\": [\"a\", \"b\"], \"correct_index\": 1}, {\"question\": \"Q2\", \"choices\": [\"c\", \"d\"], \"correct_index\": 0}]}\n```",
			want:    2,
		},
		{name: "empty array", content: "[]", want: 0},
		{name: "prose", content: "I could not find any questions.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseQuestions(tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, errMalformed)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParseQuestions_MissingCorrectIndex(t *testing.T) {
	got, err := parseQuestions(`[{"question": " Q ", "choices": [" a ", "b"]}]`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Q", got[0].Text)
	assert.Equal(t, []string{"a", "b"}, got[0].Choices)
	// 缺失正确答案时给出越界值，由合并流程拒绝
	assert.Equal(t, -1, got[0].CorrectIndex)
}

func TestExtract_TextFile(t *testing.T) {
	chat := testutil.NewFakeChatModel([]string{
		`[{"question": "Where does photosynthesis take place?", "choices": ["Chloroplasts", "Mitochondria", "Ribosomes"], "correct_index": 0, "explanation": "Stated in the notes."}]`,
	}, nil)
	e := newTestExtractor(t, chat)

	got, err := e.Extract(context.Background(), "Biology Notes.TXT", strings.NewReader(studyNotes))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Where does photosynthesis take place?", got[0].Text)
	assert.Equal(t, 0, got[0].CorrectIndex)
	assert.Equal(t, "Biology Notes.TXT", got[0].SourceFile)

	assert.Equal(t, 1, chat.Calls())
	msgs := chat.LastMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "chloroplasts")
}

func TestExtract_MaterialWithoutQuestions(t *testing.T) {
	chat := testutil.NewFakeChatModel([]string{"[]"}, nil)
	e := newTestExtractor(t, chat)

	got, err := e.Extract(context.Background(), "notes.txt", strings.NewReader(studyNotes))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, chat.Calls())

	prompt := chat.LastMessages()[0].Content
	assert.Contains(t, prompt, "Only extract questions that already appear in the text")
	assert.Contains(t, prompt, "Return []")
	assert.NotContains(t, prompt, "write questions")
}

func TestExtract_MalformedChunkSkipped(t *testing.T) {
	chat := testutil.NewFakeChatModel([]string{"sorry, no json here"}, nil)
	e := newTestExtractor(t, chat)

	got, err := e.Extract(context.Background(), "notes.md", strings.NewReader(studyNotes))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtract_Errors(t *testing.T) {
	t.Run("unsupported type", func(t *testing.T) {
		e := newTestExtractor(t, testutil.NewFakeChatModel(nil, nil))
		_, err := e.Extract(context.Background(), "slides.pptx", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrUnsupportedFile)
	})

	t.Run("empty document", func(t *testing.T) {
		chat := testutil.NewFakeChatModel(nil, nil)
		e := newTestExtractor(t, chat)
		_, err := e.Extract(context.Background(), "empty.txt", strings.NewReader("  \n "))
		assert.ErrorIs(t, err, ErrEmptyDocument)
		assert.Equal(t, 0, chat.Calls())
	})

	t.Run("model failure", func(t *testing.T) {
		boom := errors.New("upstream unavailable")
		e := newTestExtractor(t, testutil.NewFakeChatModel(nil, boom))
		_, err := e.Extract(context.Background(), "notes.txt", strings.NewReader(studyNotes))
		assert.ErrorIs(t, err, boom)
	})
}

func TestExtractFiles_KeepsOrder(t *testing.T) {
	chat := testutil.NewFakeChatModelFunc(func(messages []*schema.Message) (string, error) {
		if strings.Contains(messages[1].Content, "first") {
			return `[{"question": "First?", "choices": ["a", "b"], "correct_index": 0}]`, nil
		}
		return `[{"question": "Second?", "choices": ["c", "d"], "correct_index": 1}]`, nil
	})
	e := newTestExtractor(t, chat)

	got, err := e.ExtractFiles(context.Background(), []File{
		{Name: "a.txt", Reader: strings.NewReader("the first file")},
		{Name: "b.txt", Reader: strings.NewReader("the second file")},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "First?", got[0].Text)
	assert.Equal(t, "a.txt", got[0].SourceFile)
	assert.Equal(t, "Second?", got[1].Text)
	assert.Equal(t, "b.txt", got[1].SourceFile)
}

func TestNewExtractor_Validation(t *testing.T) {
	_, err := NewExtractor(nil, DefaultConfig(), logger.NewNop())
	assert.Error(t, err)

	_, err = NewExtractor(testutil.NewFakeChatModel(nil, nil), Config{ChunkSize: 100, OverlapSize: 100}, logger.NewNop())
	assert.Error(t, err)
}

func TestNewExtractor_NilLogger(t *testing.T) {
	chat := testutil.NewFakeChatModel([]string{"[]"}, nil)
	var e *Extractor
	require.NotPanics(t, func() {
		var err error
		e, err = NewExtractor(chat, DefaultConfig(), nil)
		require.NoError(t, err)
	})

	got, err := e.Extract(context.Background(), "notes.txt", strings.NewReader(studyNotes))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.PDF"))
	assert.True(t, Supported("b.docx"))
	assert.True(t, Supported("c.md"))
	assert.False(t, Supported("d.doc"))
	assert.False(t, Supported("noext"))
}
