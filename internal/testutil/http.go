package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// ChatReply 模拟服务端对一次对话补全请求的响应
type ChatReply struct {
	Status  int // 0 视为 200
	Content string
}

// ChatCompletionServer OpenAI 兼容的 /chat/completions 模拟服务
type ChatCompletionServer struct {
	*httptest.Server

	mu    sync.Mutex
	calls map[string]int
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// NewChatCompletionServer 启动模拟服务，reply 按模型名和最后一条用户消息决定响应
func NewChatCompletionServer(t *testing.T, reply func(model, prompt string) ChatReply) *ChatCompletionServer {
	t.Helper()
	s := &ChatCompletionServer{calls: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.calls[req.Model]++
		s.mu.Unlock()

		prompt := ""
		if n := len(req.Messages); n > 0 {
			prompt = req.Messages[n-1].Content
		}
		out := reply(req.Model, prompt)
		w.Header().Set("Content-Type", "application/json")
		if out.Status != 0 && out.Status != http.StatusOK {
			w.WriteHeader(out.Status)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{
					"message": http.StatusText(out.Status),
					"type":    "server_error",
				},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   req.Model,
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]interface{}{"role": "assistant", "content": out.Content},
				"finish_reason": "stop",
			}},
			"usage": map[string]interface{}{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	}))
	t.Cleanup(s.Close)
	return s
}

// Calls 返回某个模型收到的请求数
func (s *ChatCompletionServer) Calls(model string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[model]
}
