package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// FakeChatModel 可编排响应的 ChatModel，记录调用次数和最后一次输入
type FakeChatModel struct {
	mu        sync.Mutex
	responses []string
	err       error
	delay     time.Duration
	respond   func(messages []*schema.Message) (string, error)
	calls     int
	last      []*schema.Message
}

var _ model.BaseChatModel = (*FakeChatModel)(nil)

// NewFakeChatModel 按顺序循环返回 responses，err 非空时每次返回错误
func NewFakeChatModel(responses []string, err error) *FakeChatModel {
	return &FakeChatModel{responses: responses, err: err}
}

// NewFakeChatModelFunc 由 fn 决定每次调用的响应
func NewFakeChatModelFunc(fn func(messages []*schema.Message) (string, error)) *FakeChatModel {
	return &FakeChatModel{respond: fn}
}

// WithDelay 每次调用前等待 d，context 先结束时返回 context 错误
func (m *FakeChatModel) WithDelay(d time.Duration) *FakeChatModel {
	m.delay = d
	return m
}

func (m *FakeChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.last = messages
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.respond != nil {
		content, err := m.respond(messages)
		if err != nil {
			return nil, err
		}
		return schema.AssistantMessage(content, nil), nil
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return schema.AssistantMessage("default response", nil), nil
	}
	idx := (call - 1) % len(m.responses)
	return schema.AssistantMessage(m.responses[idx], nil), nil
}

func (m *FakeChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// Calls 调用次数
func (m *FakeChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastMessages 最后一次调用的输入
func (m *FakeChatModel) LastMessages() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
