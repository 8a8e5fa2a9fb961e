package similarity

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/quiz-pool/internal/service/callback"
	"github.com/ashwinyue/quiz-pool/internal/service/llmjson"
)

const systemPrompt = `You are an expert exam editor who detects duplicate multiple-choice questions.
Two questions are duplicates when they test the same knowledge and would be answered the same way,
even if the wording, formatting or choice order differ.
Respond with a single JSON object and nothing else:
{"similarity_score": <integer 0-100>, "is_duplicate": <true|false>, "reasoning": "<one short sentence>"}`

// ChatComparer 用一个对话模型完成相似度判断
type ChatComparer struct {
	name      string
	chat      model.BaseChatModel
	maxTokens int
}

var _ Comparer = (*ChatComparer)(nil)

// NewChatComparer 创建基于对话模型的比较器，name 为模型标识
func NewChatComparer(name string, chat model.BaseChatModel, maxTokens int) *ChatComparer {
	return &ChatComparer{name: name, chat: chat, maxTokens: maxTokens}
}

// Name 模型标识
func (c *ChatComparer) Name() string {
	return c.name
}

// Compare 请求模型比较两道题目
func (c *ChatComparer) Compare(ctx context.Context, a, b Question) (*Result, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(buildPrompt(a, b)),
	}

	opts := []model.Option{model.WithTemperature(0)}
	if c.maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(c.maxTokens))
	}

	ctx = callback.WithRunInfo(ctx, c.name, "ChatComparer")
	resp, err := c.chat.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty message", ErrMalformedResponse)
	}

	result, err := parseResponse(resp.Content)
	if err != nil {
		return nil, err
	}
	result.Model = c.name
	return result, nil
}

func buildPrompt(a, b Question) string {
	var sb strings.Builder
	sb.WriteString("Compare these two exam questions.\n\n")
	writeQuestion(&sb, "Question A", a)
	sb.WriteString("\n")
	writeQuestion(&sb, "Question B", b)
	return sb.String()
}

func writeQuestion(sb *strings.Builder, title string, q Question) {
	sb.WriteString(title)
	sb.WriteString(":\n")
	sb.WriteString(q.Text)
	sb.WriteString("\nChoices:\n")
	for i, c := range q.Choices {
		fmt.Fprintf(sb, "%c. %s\n", 'A'+i, c)
	}
}

type comparisonResponse struct {
	SimilarityScore *float64 `json:"similarity_score"`
	IsDuplicate     bool     `json:"is_duplicate"`
	Reasoning       string   `json:"reasoning"`
}

func parseResponse(content string) (*Result, error) {
	var resp comparisonResponse
	if err := llmjson.Decode(content, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.SimilarityScore == nil {
		return nil, fmt.Errorf("%w: missing similarity_score", ErrMalformedResponse)
	}
	score := *resp.SimilarityScore
	if math.IsNaN(score) || score < 0 || score > 100 {
		return nil, fmt.Errorf("%w: similarity_score %v out of range", ErrMalformedResponse, score)
	}
	return &Result{
		Score:       int(math.Round(score)),
		IsDuplicate: resp.IsDuplicate,
		Reasoning:   strings.TrimSpace(resp.Reasoning),
	}, nil
}
