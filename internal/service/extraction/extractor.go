// Package extraction 从上传文档中抽取候选选择题
// 解析、分块使用 eino-ext 组件，每个分块交给对话模型输出 JSON 题目列表
package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/docx"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	einoparser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/quiz-pool/internal/logger"
	"github.com/ashwinyue/quiz-pool/internal/service/callback"
	"github.com/ashwinyue/quiz-pool/internal/service/llmjson"
	"github.com/ashwinyue/quiz-pool/internal/service/types"
)

var (
	// ErrUnsupportedFile 文件类型不支持
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrEmptyDocument 文档解析后没有内容
	ErrEmptyDocument = errors.New("no content parsed from document")
)

const systemPrompt = `You extract multiple-choice exam questions from study material.
Return a JSON array and nothing else. Each element must be:
{"question": "<question text>", "choices": ["<choice>", ...], "correct_index": <0-based index of the correct choice>, "explanation": "<optional short explanation>"}
Use 2 to 6 choices per question. Only extract questions that already appear in the text and copy them faithfully.
Do not invent new questions. Return [] when the text contains no multiple-choice questions.`

// Config 抽取配置
type Config struct {
	ChunkSize   int
	OverlapSize int
	MaxTokens   int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{ChunkSize: 4000, OverlapSize: 200, MaxTokens: 4096}
}

// File 一个待抽取的上传文件
type File struct {
	Name   string
	Reader io.Reader
}

// Extractor 题目抽取器
type Extractor struct {
	chat model.BaseChatModel
	cfg  Config
	log  *logger.Logger
}

// NewExtractor 创建抽取器
func NewExtractor(chat model.BaseChatModel, cfg Config, log *logger.Logger) (*Extractor, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive (got %d)", cfg.ChunkSize)
	}
	if cfg.OverlapSize < 0 || cfg.OverlapSize >= cfg.ChunkSize {
		return nil, fmt.Errorf("overlap size must be in [0, %d) (got %d)", cfg.ChunkSize, cfg.OverlapSize)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Extractor{chat: chat, cfg: cfg, log: log.With("component", "extraction")}, nil
}

// Supported 判断文件名是否为支持的类型
func Supported(name string) bool {
	switch fileExt(name) {
	case ".pdf", ".docx", ".txt", ".md":
		return true
	default:
		return false
	}
}

// ExtractFiles 依次抽取多个文件，结果保持文件顺序和文件内顺序
func (e *Extractor) ExtractFiles(ctx context.Context, files []File) ([]types.Candidate, error) {
	var all []types.Candidate
	for _, f := range files {
		candidates, err := e.Extract(ctx, f.Name, f.Reader)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		all = append(all, candidates...)
	}
	return all, nil
}

// Extract 抽取单个文件
func (e *Extractor) Extract(ctx context.Context, name string, r io.Reader) ([]types.Candidate, error) {
	docs, err := e.parse(ctx, name, r)
	if err != nil {
		return nil, err
	}

	chunks, err := e.split(ctx, docs)
	if err != nil {
		return nil, err
	}

	var candidates []types.Candidate
	skipped := 0
	for i, chunk := range chunks {
		items, err := e.extractChunk(ctx, chunk.Content)
		if err != nil {
			if errors.Is(err, errMalformed) {
				// 单个分块输出无法解析时跳过，不影响其余分块
				skipped++
				e.log.Warn("skip chunk with malformed model output", "file", name, "chunk", i, "error", err)
				continue
			}
			return nil, err
		}
		for _, item := range items {
			item.SourceFile = name
			candidates = append(candidates, item)
		}
	}

	e.log.Info("extracted candidates", "file", name, "chunks", len(chunks), "skipped_chunks", skipped, "candidates", len(candidates))
	return candidates, nil
}

// parse 解析文档
func (e *Extractor) parse(ctx context.Context, name string, r io.Reader) ([]*schema.Document, error) {
	fileParser, err := newParser(ctx, name)
	if err != nil {
		return nil, err
	}

	docs, err := fileParser.Parse(ctx, r, einoparser.WithURI(name))
	if err != nil {
		return nil, fmt.Errorf("parser failed: %w", err)
	}

	nonEmpty := docs[:0]
	for _, d := range docs {
		if d == nil || strings.TrimSpace(d.Content) == "" {
			continue
		}
		if d.MetaData == nil {
			d.MetaData = make(map[string]any)
		}
		d.MetaData["file_name"] = name
		nonEmpty = append(nonEmpty, d)
	}
	if len(nonEmpty) == 0 {
		return nil, ErrEmptyDocument
	}
	return nonEmpty, nil
}

// split 分块
func (e *Extractor) split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error) {
	splitter, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   e.cfg.ChunkSize,
		OverlapSize: e.cfg.OverlapSize,
		Separators:  []string{"\n\n", "\n", ". ", "。", "? ", "？", "! ", "！", " ", ""},
		KeepType:    recursive.KeepTypeNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create splitter: %w", err)
	}

	chunks, err := splitter.Transform(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("splitter failed: %w", err)
	}
	return chunks, nil
}

var errMalformed = errors.New("malformed extraction output")

type extractedQuestion struct {
	Question     string   `json:"question"`
	Choices      []string `json:"choices"`
	CorrectIndex *int     `json:"correct_index"`
	Explanation  string   `json:"explanation"`
}

// extractChunk 请求模型从一个分块中抽取题目
func (e *Extractor) extractChunk(ctx context.Context, content string) ([]types.Candidate, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(content),
	}
	opts := []model.Option{model.WithTemperature(0)}
	if e.cfg.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(e.cfg.MaxTokens))
	}

	resp, err := e.chat.Generate(callback.WithRunInfo(ctx, "extraction", "Extractor"), messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty message", errMalformed)
	}
	return parseQuestions(resp.Content)
}

// parseQuestions 解析模型输出，兼容 {"questions": [...]} 包装
func parseQuestions(content string) ([]types.Candidate, error) {
	var items []extractedQuestion
	if err := llmjson.Decode(content, &items); err != nil {
		var wrapped struct {
			Questions []extractedQuestion `json:"questions"`
		}
		if werr := llmjson.Decode(content, &wrapped); werr != nil || wrapped.Questions == nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		items = wrapped.Questions
	}

	// 字段校验交给合并流程，这里只去掉空白
	candidates := make([]types.Candidate, 0, len(items))
	for _, item := range items {
		c := types.Candidate{
			Text:         strings.TrimSpace(item.Question),
			Choices:      make([]string, len(item.Choices)),
			CorrectIndex: -1,
			Explanation:  strings.TrimSpace(item.Explanation),
		}
		for i, choice := range item.Choices {
			c.Choices[i] = strings.TrimSpace(choice)
		}
		if item.CorrectIndex != nil {
			c.CorrectIndex = *item.CorrectIndex
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// newParser 按扩展名创建解析器
func newParser(ctx context.Context, name string) (einoparser.Parser, error) {
	ext := fileExt(name)

	switch ext {
	case ".pdf":
		return pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	case ".docx":
		return docx.NewDocxParser(ctx, &docx.Config{
			ToSections:      false,
			IncludeComments: false,
			IncludeHeaders:  false,
			IncludeFooters:  false,
			IncludeTables:   true,
		})
	case ".txt", ".md":
		return &textParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
	}
}

func fileExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// textParser 纯文本解析器
type textParser struct{}

func (p *textParser) Parse(_ context.Context, reader io.Reader, opts ...einoparser.Option) ([]*schema.Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}

	text := string(content)
	if text == "" {
		return []*schema.Document{}, nil
	}

	return []*schema.Document{
		{
			Content:  text,
			MetaData: make(map[string]any),
		},
	}, nil
}
