// Package types 定义共享的类型和接口
package types

// Candidate 文档抽取得到的候选题目，按抽取顺序提交给合并流程
type Candidate struct {
	Text         string   `json:"text"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
	SourceFile   string   `json:"source_file,omitempty"`
}
