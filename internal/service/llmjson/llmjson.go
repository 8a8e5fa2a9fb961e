// Package llmjson 解析模型返回的 JSON
//
// 模型输出常带有 markdown 代码块、前后说明文字、尾逗号或未闭合的括号，
// 先截取 JSON 片段，直接解析失败后再用 jsonrepair 修复。
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNoJSON 响应中没有 JSON 内容
var ErrNoJSON = errors.New("no json found in response")

var codeFence = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?```")

// Decode 解析 text 中的 JSON 到 v
func Decode(text string, v interface{}) error {
	s := Extract(text)
	if s == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return fmt.Errorf("repair json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// Extract 去掉代码块标记，截取第一个 JSON 对象或数组
func Extract(text string) string {
	s := strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	s = s[start:]

	closer := byte('}')
	if s[0] == '[' {
		closer = ']'
	}
	// 截断的输出没有闭合符号时保留全部内容交给 jsonrepair
	if end := strings.LastIndexByte(s, closer); end > 0 {
		s = s[:end+1]
	}
	return s
}
